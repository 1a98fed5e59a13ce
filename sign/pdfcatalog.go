package sign

import (
	"strconv"
	"strings"
)

// createCatalog renders the incremental catalog carrying the AcroForm
// dictionary with the new signature field.
func (context *SignContext) createCatalog() ([]byte, error) {
	var builder strings.Builder

	builder.WriteString(strconv.Itoa(int(context.CatalogData.ObjectId)) + " 0 obj\n")
	builder.WriteString("<< /Type /Catalog")

	root := context.PDFReader.Trailer().Key("Root")
	for _, key := range root.Keys() {
		switch key {
		case "Pages", "Names":
			ptr := root.Key(key).GetPtr()
			builder.WriteString(" /" + key + " " + strconv.Itoa(int(ptr.GetID())) + " " + strconv.Itoa(int(ptr.GetGen())) + " R")
		}
	}

	builder.WriteString(" /AcroForm << /Fields [")
	builder.WriteString(strconv.Itoa(int(context.WidgetObjectId)) + " 0 R")
	builder.WriteString("]")
	builder.WriteString(" /NeedAppearances false")

	// SigFlags 3: SignaturesExist and AppendOnly, so processors warn
	// before a full rewrite invalidates the signature.
	builder.WriteString(" /SigFlags 3")

	builder.WriteString(" >>")
	builder.WriteString(" >>\nendobj\n")

	return []byte(builder.String()), nil
}
