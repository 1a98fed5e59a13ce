package asn1der

import (
	"encoding/asn1"
	"fmt"
	"math/big"
)

// Decode parses exactly one DER value. Trailing bytes are an error.
func Decode(der []byte) (Value, error) {
	v, n, err := decodeValue(der)
	if err != nil {
		return Value{}, err
	}
	if n != len(der) {
		return Value{}, fmt.Errorf("%w: %d trailing bytes", ErrEncoding, len(der)-n)
	}
	return v, nil
}

func decodeValue(der []byte) (Value, int, error) {
	if len(der) < 2 {
		return Value{}, 0, fmt.Errorf("%w: truncated header", ErrEncoding)
	}
	tag := der[0]
	if tag&0x1f == 0x1f {
		return Value{}, 0, fmt.Errorf("%w: multi-byte tags unsupported", ErrEncoding)
	}
	length, headerLen, err := decodeLength(der[1:])
	if err != nil {
		return Value{}, 0, err
	}
	headerLen++ // tag byte
	total := headerLen + length
	if total > len(der) {
		return Value{}, 0, fmt.Errorf("%w: length %d exceeds input", ErrEncoding, length)
	}
	content := der[headerLen:total]

	class := tag & 0xc0
	constructed := tag&0x20 != 0

	if class == 0x80 { // context-specific
		v := Value{kind: KindContext, tag: tag & 0x1f, constructed: constructed}
		if constructed {
			children, err := decodeChildren(content)
			if err != nil {
				return Value{}, 0, err
			}
			v.children = children
		} else {
			v.content = append([]byte(nil), content...)
		}
		return v, total, nil
	}
	if class != 0x00 { // application or private class: keep verbatim
		return Raw(der[:total]), total, nil
	}

	switch tag {
	case tagSequence, tagSet:
		children, err := decodeChildren(content)
		if err != nil {
			return Value{}, 0, err
		}
		kind := KindSequence
		if tag == tagSet {
			kind = KindSet
		}
		return Value{kind: kind, children: children}, total, nil
	case tagBoolean:
		if length != 1 {
			return Value{}, 0, fmt.Errorf("%w: boolean length %d", ErrEncoding, length)
		}
		return Value{kind: KindBoolean, boolVal: content[0] != 0, content: cp(content)}, total, nil
	case tagInteger:
		if length == 0 {
			return Value{}, 0, fmt.Errorf("%w: empty integer", ErrEncoding)
		}
		i := new(big.Int).SetBytes(content)
		if content[0]&0x80 != 0 {
			i.Sub(i, new(big.Int).Lsh(big.NewInt(1), uint(8*length)))
		}
		return Value{kind: KindInteger, intVal: i, content: cp(content)}, total, nil
	case tagOid:
		oid, err := decodeOID(content)
		if err != nil {
			return Value{}, 0, err
		}
		return Value{kind: KindOid, oid: oid, content: cp(content)}, total, nil
	case tagNull:
		if length != 0 {
			return Value{}, 0, fmt.Errorf("%w: non-empty null", ErrEncoding)
		}
		return Value{kind: KindNull}, total, nil
	case tagOctetString:
		return Value{kind: KindOctetString, content: cp(content)}, total, nil
	case tagUtf8String:
		return Value{kind: KindUtf8String, content: cp(content)}, total, nil
	case tagIA5String:
		return Value{kind: KindIA5String, content: cp(content)}, total, nil
	case tagUTCTime:
		return Value{kind: KindUTCTime, content: cp(content)}, total, nil
	default:
		// Any other universal type (BIT STRING, GeneralizedTime, ...)
		// is carried through verbatim.
		return Raw(der[:total]), total, nil
	}
}

func decodeChildren(content []byte) ([]Value, error) {
	var children []Value
	for len(content) > 0 {
		child, n, err := decodeValue(content)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
		content = content[n:]
	}
	return children, nil
}

func decodeLength(der []byte) (length, n int, err error) {
	if len(der) == 0 {
		return 0, 0, fmt.Errorf("%w: missing length", ErrEncoding)
	}
	b := der[0]
	if b < 0x80 {
		return int(b), 1, nil
	}
	if b == 0x80 {
		return 0, 0, fmt.Errorf("%w: indefinite length is not DER", ErrEncoding)
	}
	count := int(b & 0x7f)
	if count > 4 || count > len(der)-1 {
		return 0, 0, fmt.Errorf("%w: bad length octets", ErrEncoding)
	}
	for i := 0; i < count; i++ {
		length = length<<8 | int(der[1+i])
	}
	if length < 0 {
		return 0, 0, fmt.Errorf("%w: negative length", ErrEncoding)
	}
	return length, 1 + count, nil
}

func decodeOID(content []byte) (asn1.ObjectIdentifier, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: empty OID", ErrEncoding)
	}
	var oid asn1.ObjectIdentifier
	val := 0
	for i, b := range content {
		val = val<<7 | int(b&0x7f)
		if b&0x80 == 0 {
			if len(oid) == 0 {
				if val < 40 {
					oid = append(oid, 0, val)
				} else if val < 80 {
					oid = append(oid, 1, val-40)
				} else {
					oid = append(oid, 2, val-80)
				}
			} else {
				oid = append(oid, val)
			}
			val = 0
		} else if i == len(content)-1 {
			return nil, fmt.Errorf("%w: truncated OID", ErrEncoding)
		}
	}
	return oid, nil
}

func cp(b []byte) []byte { return append([]byte(nil), b...) }
