package sign

import (
	"fmt"
)

// writeXref appends the incremental cross-reference section in the
// same flavour the input document uses.
func (context *SignContext) writeXref() error {
	switch context.PDFReader.XrefInformation.Type {
	case "table":
		return context.writeIncrXrefTable()
	case "stream":
		return context.writeXrefStream()
	default:
		return fmt.Errorf("%w: unknown xref type %q", ErrPdfStructure, context.PDFReader.XrefInformation.Type)
	}
}
