package sign

import (
	"fmt"
	"strconv"
	"strings"
)

// writeTrailer appends the incremental trailer. For table-type xrefs
// the original trailer text is reused with patched Root, Size and Prev
// entries; stream-type xrefs carry those keys in the stream dictionary
// and only need startxref.
func (context *SignContext) writeTrailer() error {
	if context.PDFReader.XrefInformation.Type == "table" {
		trailerLength := context.PDFReader.XrefInformation.IncludingTrailerEndPos - context.PDFReader.XrefInformation.EndPos

		if _, err := context.InputFile.Seek(context.PDFReader.XrefInformation.EndPos+1, 0); err != nil {
			return err
		}
		trailerBuf := make([]byte, trailerLength)
		if _, err := context.InputFile.Read(trailerBuf); err != nil {
			return err
		}

		rootString := "Root " + context.CatalogData.RootString
		newRoot := "Root " + strconv.FormatInt(int64(context.CatalogData.ObjectId), 10) + " 0 R"

		sizeString := "Size " + strconv.FormatInt(context.PDFReader.XrefInformation.ItemCount, 10)
		newSize := "Size " + strconv.FormatInt(context.PDFReader.XrefInformation.ItemCount+int64(len(context.newXrefEntries)), 10)

		prevString := "Prev " + context.PDFReader.Trailer().Key("Prev").String()
		newPrev := "Prev " + strconv.FormatInt(context.PDFReader.XrefInformation.StartPos, 10)

		trailerString := string(trailerBuf)
		trailerString = strings.ReplaceAll(trailerString, rootString, newRoot)
		trailerString = strings.ReplaceAll(trailerString, sizeString, newSize)
		if strings.Contains(trailerString, prevString) {
			trailerString = strings.ReplaceAll(trailerString, prevString, newPrev)
		} else {
			trailerString = strings.ReplaceAll(trailerString, newRoot, newRoot+"\n  /"+newPrev)
		}

		if _, err := context.OutputBuffer.Write([]byte(trailerString)); err != nil {
			return err
		}
		if !strings.HasSuffix(trailerString, "\n") {
			if _, err := context.OutputBuffer.Write([]byte("\n")); err != nil {
				return err
			}
		}
	} else {
		if _, err := context.OutputBuffer.Write([]byte("startxref\n")); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(context.OutputBuffer, "%d\n", context.NewXrefStart); err != nil {
		return err
	}
	if _, err := context.OutputBuffer.Write([]byte("%%EOF\n")); err != nil {
		return err
	}
	return nil
}
