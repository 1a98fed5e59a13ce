package sign

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/digitorus/pdf"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// findFirstPage walks the page tree down to the first /Page leaf.
func findFirstPage(parent pdf.Value) (pdf.Value, error) {
	switch parent.Key("Type").Name() {
	case "Pages":
		kids := parent.Key("Kids")
		for i := 0; i < kids.Len(); i++ {
			page, err := findFirstPage(kids.Index(i))
			if err == nil {
				return page, nil
			}
		}
		return parent, errors.New("page tree has no page leaf")
	case "Page":
		return parent, nil
	default:
		return parent, errors.New("not a page tree node")
	}
}

// pdfString renders a text string as a PDF literal string. Non-ASCII
// text is encoded as UTF-16BE with BOM, ASCII text is escaped in
// place.
func pdfString(text string) string {
	if !isASCII(text) {
		enc := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder()
		encoded, _, err := transform.String(enc, text)
		if err == nil {
			text = encoded
		}
		return "(" + text + ")"
	}

	text = strings.ReplaceAll(text, "\\", "\\\\")
	text = strings.ReplaceAll(text, "(", "\\(")
	text = strings.ReplaceAll(text, ")", "\\)")
	text = strings.ReplaceAll(text, "\r", "\\r")
	return "(" + text + ")"
}

// pdfDateTime renders a time in the D:YYYYMMDDHHmmSSOHH'mm' format,
// including the timezone suffix Go's layout strings cannot express.
func pdfDateTime(date time.Time) string {
	_, offset := date.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	hours := offset / 3600
	minutes := (offset % 3600) / 60

	return pdfString(fmt.Sprintf("D:%s%s%02d'%02d'", date.Format("20060102150405"), sign, hours, minutes))
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > '\u007F' {
			return false
		}
	}
	return true
}
