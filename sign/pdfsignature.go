package sign

import (
	"bytes"
	"strconv"
)

const signatureByteRangePlaceholder = "/ByteRange[0 ********** ********** **********]"

// createSignaturePlaceholder renders the signature dictionary with a
// zeroed fixed-width /Contents slot. The returned offsets locate the
// /ByteRange placeholder and the first /Contents hex digit relative to
// the start of the object.
func (context *SignContext) createSignaturePlaceholder() (object []byte, byteRangeOffset, contentsOffset int64) {
	var buffer bytes.Buffer
	buffer.WriteString(strconv.Itoa(int(context.SignatureObjectId)) + " 0 obj\n")
	buffer.WriteString("<< /Type /Sig")
	buffer.WriteString(" /Filter /Adobe.PPKLite")
	buffer.WriteString(" /SubFilter /adbe.pkcs7.detached")

	buffer.WriteString(" ")
	byteRangeOffset = int64(buffer.Len())
	buffer.WriteString(signatureByteRangePlaceholder)

	buffer.WriteString(" /Contents<")
	contentsOffset = int64(buffer.Len())
	buffer.Write(bytes.Repeat([]byte("0"), context.contentsHexLength))
	buffer.WriteString(">")

	if context.SignData.Name != "" {
		buffer.WriteString(" /Name ")
		buffer.WriteString(pdfString(context.SignData.Name))
	}
	if context.SignData.Location != "" {
		buffer.WriteString(" /Location ")
		buffer.WriteString(pdfString(context.SignData.Location))
	}
	if context.SignData.Reason != "" {
		buffer.WriteString(" /Reason ")
		buffer.WriteString(pdfString(context.SignData.Reason))
	}
	if context.SignData.ContactInfo != "" {
		buffer.WriteString(" /ContactInfo ")
		buffer.WriteString(pdfString(context.SignData.ContactInfo))
	}

	buffer.WriteString(" /M ")
	buffer.WriteString(pdfDateTime(context.SignData.Date))

	buffer.WriteString(" >>")
	buffer.WriteString("\nendobj\n")

	return buffer.Bytes(), byteRangeOffset, contentsOffset
}
