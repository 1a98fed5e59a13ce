package sign

import (
	"bytes"
	"fmt"
	"strconv"
)

// createWidget renders the invisible signature form field that binds
// the signature dictionary to the first page.
func (context *SignContext) createWidget() ([]byte, error) {
	root := context.PDFReader.Trailer().Key("Root")
	rootPtr := root.GetPtr()
	context.CatalogData.RootString = strconv.Itoa(int(rootPtr.GetID())) + " " + strconv.Itoa(int(rootPtr.GetGen())) + " R"

	pages := root.Key("Pages")
	if pages.IsNull() {
		return nil, fmt.Errorf("%w: document root has no page tree", ErrPdfStructure)
	}
	firstPage, err := findFirstPage(pages)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPdfStructure, err)
	}
	pagePtr := firstPage.GetPtr()

	var buffer bytes.Buffer
	buffer.WriteString(strconv.Itoa(int(context.WidgetObjectId)) + " 0 obj\n")
	buffer.WriteString("<< /Type /Annot")
	buffer.WriteString(" /Subtype /Widget")
	buffer.WriteString(" /Rect [0 0 0 0]")
	buffer.WriteString(" /P " + strconv.Itoa(int(pagePtr.GetID())) + " " + strconv.Itoa(int(pagePtr.GetGen())) + " R")
	buffer.WriteString(" /F 132")
	buffer.WriteString(" /FT /Sig")
	buffer.WriteString(" /T " + pdfString("Signature1"))
	buffer.WriteString(" /Ff 0")
	buffer.WriteString(" /V " + strconv.Itoa(int(context.SignatureObjectId)) + " 0 R")
	buffer.WriteString(" >>")
	buffer.WriteString("\nendobj\n")

	return buffer.Bytes(), nil
}
