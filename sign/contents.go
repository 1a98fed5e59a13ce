package sign

import (
	"encoding/hex"
	"fmt"
)

// EmbedContents hex-encodes der into the reserved /Contents slot,
// zero-padded on the right to the slot's fixed width. The document
// length does not change.
func (context *SignContext) EmbedContents(der []byte) error {
	needed := hex.EncodedLen(len(der))
	if needed > context.contentsHexLength {
		return fmt.Errorf("%w: need %d hex characters, reserved %d",
			ErrPlaceholderCapacity, needed, context.contentsHexLength)
	}

	padded := make([]byte, context.contentsHexLength)
	for i := range padded {
		padded[i] = '0'
	}
	hex.Encode(padded, der)

	return context.writeAt(context.contentsHexStart, padded)
}

// ExtractContents reads the /Contents slot back and strips the zero
// padding behind the DER structure.
func (context *SignContext) ExtractContents() ([]byte, error) {
	content := context.OutputBuffer.Buff.Bytes()
	end := context.contentsHexStart + int64(context.contentsHexLength)
	if context.contentsHexStart <= 0 || end > int64(len(content)) {
		return nil, fmt.Errorf("%w: contents slot not reserved", ErrPdfStructure)
	}

	raw := make([]byte, context.contentsHexLength/2)
	if _, err := hex.Decode(raw, content[context.contentsHexStart:end]); err != nil {
		return nil, fmt.Errorf("%w: contents slot is not hex: %v", ErrPdfStructure, err)
	}
	return trimDER(raw)
}

// trimDER cuts b down to the single DER value at its start.
func trimDER(b []byte) ([]byte, error) {
	if len(b) < 2 {
		return nil, fmt.Errorf("%w: contents too short", ErrPdfStructure)
	}
	length := int(b[1])
	headerLen := 2
	if length >= 0x80 {
		count := length & 0x7f
		if count > 4 || 2+count > len(b) {
			return nil, fmt.Errorf("%w: malformed contents length", ErrPdfStructure)
		}
		length = 0
		for i := 0; i < count; i++ {
			length = length<<8 | int(b[2+i])
		}
		headerLen += count
	}
	total := headerLen + length
	if total > len(b) {
		return nil, fmt.Errorf("%w: contents truncated", ErrPdfStructure)
	}
	return b[:total], nil
}
