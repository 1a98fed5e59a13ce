package sign

import (
	"fmt"
	"strings"
)

// updateByteRange computes the final /ByteRange values and writes them
// over the placeholder, padded with spaces to the placeholder's width
// so no byte position shifts.
func (context *SignContext) updateByteRange() error {
	fileSize := context.bufferLen()

	context.ByteRangeValues = make([]int64, 4)

	// Part 1 runs from the start of the file up to the '<' that opens
	// the /Contents hex string.
	context.ByteRangeValues[0] = 0
	context.ByteRangeValues[1] = context.contentsHexStart - 1

	// Part 2 starts at the byte behind the closing '>' and covers the
	// rest of the file.
	context.ByteRangeValues[2] = context.contentsHexStart + int64(context.contentsHexLength) + 1
	context.ByteRangeValues[3] = fileSize - context.ByteRangeValues[2]

	newByteRange := fmt.Sprintf("/ByteRange[%d %d %d %d]",
		context.ByteRangeValues[0], context.ByteRangeValues[1],
		context.ByteRangeValues[2], context.ByteRangeValues[3])

	if len(newByteRange) > len(signatureByteRangePlaceholder) {
		return fmt.Errorf("%w: byte range %q exceeds its placeholder", ErrPdfStructure, newByteRange)
	}
	newByteRange += strings.Repeat(" ", len(signatureByteRangePlaceholder)-len(newByteRange))

	return context.writeAt(context.byteRangeStart, []byte(newByteRange))
}
