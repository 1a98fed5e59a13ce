// Package asn1der implements a typed ASN.1 value model with DER
// encoding and decoding. Values are immutable once built; the only way
// to "mutate" a SEQUENCE, SET or constructed context value is Append,
// which returns a new value. Decoding keeps the raw content bytes of
// every primitive, so a decoded tree re-encodes byte-for-byte as long
// as the input was DER.
package asn1der

import (
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// ErrEncoding is returned for malformed DER input and for values that
// cannot be represented in DER.
var ErrEncoding = errors.New("asn1der: malformed DER")

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBoolean
	KindInteger
	KindOctetString
	KindNull
	KindOid
	KindUtf8String
	KindIA5String
	KindUTCTime
	KindSequence
	KindSet
	KindContext
	KindRaw
)

// Universal tag numbers.
const (
	tagBoolean     = 0x01
	tagInteger     = 0x02
	tagOctetString = 0x04
	tagNull        = 0x05
	tagOid         = 0x06
	tagUtf8String  = 0x0c
	tagIA5String   = 0x16
	tagUTCTime     = 0x17
	tagSequence    = 0x30
	tagSet         = 0x31
)

// Value is a single node of an ASN.1 tree.
type Value struct {
	kind        Kind
	content     []byte // primitive content octets (without tag/length)
	children    []Value
	oid         asn1.ObjectIdentifier
	intVal      *big.Int
	boolVal     bool
	tag         uint8 // context-specific tag number
	constructed bool
}

// Boolean builds a BOOLEAN value.
func Boolean(b bool) Value {
	return Value{kind: KindBoolean, boolVal: b}
}

// Integer builds an INTEGER value.
func Integer(i int64) Value {
	return BigInt(big.NewInt(i))
}

// BigInt builds an INTEGER value from a big integer.
func BigInt(i *big.Int) Value {
	return Value{kind: KindInteger, intVal: new(big.Int).Set(i)}
}

// OctetString builds an OCTET STRING value.
func OctetString(b []byte) Value {
	return Value{kind: KindOctetString, content: append([]byte(nil), b...)}
}

// Null builds a NULL value.
func Null() Value {
	return Value{kind: KindNull}
}

// Oid builds an OBJECT IDENTIFIER value.
func Oid(oid asn1.ObjectIdentifier) Value {
	return Value{kind: KindOid, oid: append(asn1.ObjectIdentifier(nil), oid...)}
}

// Utf8String builds a UTF8String value.
func Utf8String(s string) Value {
	return Value{kind: KindUtf8String, content: []byte(s)}
}

// IA5String builds an IA5String value.
func IA5String(s string) Value {
	return Value{kind: KindIA5String, content: []byte(s)}
}

// UTCTime builds a UTCTime value. The time is rendered in UTC with
// seconds, the only form DER permits.
func UTCTime(t time.Time) Value {
	return Value{kind: KindUTCTime, content: []byte(t.UTC().Format("060102150405Z"))}
}

// Sequence builds a SEQUENCE from the given values, in order.
func Sequence(items ...Value) Value {
	return Value{kind: KindSequence, children: append([]Value(nil), items...)}
}

// Set builds a SET from the given values. The encoding order is the
// order given; use SortSet for canonical DER SET OF ordering.
func Set(items ...Value) Value {
	return Value{kind: KindSet, children: append([]Value(nil), items...)}
}

// Context builds a context-specific tagged value. A constructed value
// carries children; a primitive one must be given content via Raw
// children is invalid, use ContextPrimitive.
func Context(tag uint8, items ...Value) Value {
	return Value{kind: KindContext, tag: tag, constructed: true, children: append([]Value(nil), items...)}
}

// ContextPrimitive builds a primitive context-specific tagged value
// holding the given content octets.
func ContextPrimitive(tag uint8, content []byte) Value {
	return Value{kind: KindContext, tag: tag, content: append([]byte(nil), content...)}
}

// Raw wraps a complete, already encoded TLV. It is re-emitted
// verbatim; used to splice certificates, OCSP responses and timestamp
// tokens without re-modelling them.
func Raw(der []byte) Value {
	return Value{kind: KindRaw, content: append([]byte(nil), der...)}
}

// Kind reports the variant of the value.
func (v Value) Kind() Kind { return v.kind }

// Len reports the number of children of a constructed value.
func (v Value) Len() int { return len(v.children) }

// Child returns the i-th child of a constructed value.
func (v Value) Child(i int) (Value, error) {
	if i < 0 || i >= len(v.children) {
		return Value{}, fmt.Errorf("%w: child %d of %d", ErrEncoding, i, len(v.children))
	}
	return v.children[i], nil
}

// Children returns a copy of the child list.
func (v Value) Children() []Value {
	return append([]Value(nil), v.children...)
}

// Bytes returns the primitive content octets. For Raw values this is
// the full TLV.
func (v Value) Bytes() []byte { return append([]byte(nil), v.content...) }

// OID returns the object identifier of a KindOid value.
func (v Value) OID() asn1.ObjectIdentifier {
	return append(asn1.ObjectIdentifier(nil), v.oid...)
}

// Int returns the integer of a KindInteger value, nil otherwise.
func (v Value) Int() *big.Int {
	if v.intVal == nil {
		return nil
	}
	return new(big.Int).Set(v.intVal)
}

// Bool returns the boolean of a KindBoolean value.
func (v Value) Bool() bool { return v.boolVal }

// Tag returns the tag number of a context-specific value.
func (v Value) Tag() uint8 { return v.tag }

// Constructed reports whether a context-specific value is constructed.
func (v Value) Constructed() bool { return v.constructed }

// Append returns a copy of a SEQUENCE, SET or constructed context
// value with the given items appended. The receiver is not modified.
func (v Value) Append(items ...Value) (Value, error) {
	switch v.kind {
	case KindSequence, KindSet:
	case KindContext:
		if !v.constructed {
			return Value{}, fmt.Errorf("%w: append into primitive context value", ErrEncoding)
		}
	default:
		return Value{}, fmt.Errorf("%w: append into non-constructed value", ErrEncoding)
	}
	out := v
	out.children = make([]Value, 0, len(v.children)+len(items))
	out.children = append(out.children, v.children...)
	out.children = append(out.children, items...)
	return out, nil
}

// Encode renders the value as DER.
func (v Value) Encode() ([]byte, error) {
	tag, err := v.encodedTag()
	if err != nil {
		return nil, err
	}
	if v.kind == KindRaw {
		return append([]byte(nil), v.content...), nil
	}
	content, err := v.encodedContent()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 4+len(content))
	out = append(out, tag)
	out = appendLength(out, len(content))
	return append(out, content...), nil
}

func (v Value) encodedTag() (byte, error) {
	switch v.kind {
	case KindBoolean:
		return tagBoolean, nil
	case KindInteger:
		return tagInteger, nil
	case KindOctetString:
		return tagOctetString, nil
	case KindNull:
		return tagNull, nil
	case KindOid:
		return tagOid, nil
	case KindUtf8String:
		return tagUtf8String, nil
	case KindIA5String:
		return tagIA5String, nil
	case KindUTCTime:
		return tagUTCTime, nil
	case KindSequence:
		return tagSequence, nil
	case KindSet:
		return tagSet, nil
	case KindContext:
		t := byte(0x80 | (v.tag & 0x1f))
		if v.constructed {
			t |= 0x20
		}
		return t, nil
	case KindRaw:
		if len(v.content) == 0 {
			return 0, fmt.Errorf("%w: empty raw value", ErrEncoding)
		}
		return v.content[0], nil
	default:
		return 0, fmt.Errorf("%w: invalid value", ErrEncoding)
	}
}

func (v Value) encodedContent() ([]byte, error) {
	switch v.kind {
	case KindBoolean:
		if v.content != nil {
			return v.content, nil
		}
		if v.boolVal {
			return []byte{0xff}, nil
		}
		return []byte{0x00}, nil
	case KindInteger:
		if v.content != nil {
			return v.content, nil
		}
		return encodeInteger(v.intVal), nil
	case KindOid:
		if v.content != nil {
			return v.content, nil
		}
		return encodeOID(v.oid)
	case KindNull:
		return nil, nil
	case KindOctetString, KindUtf8String, KindIA5String, KindUTCTime:
		return v.content, nil
	case KindSequence, KindSet:
		return encodeChildren(v.children)
	case KindContext:
		if v.constructed {
			return encodeChildren(v.children)
		}
		return v.content, nil
	default:
		return nil, fmt.Errorf("%w: invalid value", ErrEncoding)
	}
}

func encodeChildren(children []Value) ([]byte, error) {
	var out []byte
	for _, c := range children {
		enc, err := c.Encode()
		if err != nil {
			return nil, err
		}
		out = append(out, enc...)
	}
	return out, nil
}

func appendLength(dst []byte, n int) []byte {
	if n < 0x80 {
		return append(dst, byte(n))
	}
	var tmp [8]byte
	i := len(tmp)
	for n > 0 {
		i--
		tmp[i] = byte(n)
		n >>= 8
	}
	dst = append(dst, byte(0x80|(len(tmp)-i)))
	return append(dst, tmp[i:]...)
}

func encodeInteger(i *big.Int) []byte {
	if i == nil || i.Sign() == 0 {
		return []byte{0x00}
	}
	if i.Sign() > 0 {
		b := i.Bytes()
		if b[0]&0x80 != 0 {
			return append([]byte{0x00}, b...)
		}
		return b
	}
	// Two's complement for negative values.
	n := (i.BitLen() / 8) + 1
	shifted := new(big.Int).Add(i, new(big.Int).Lsh(big.NewInt(1), uint(n*8)))
	b := shifted.Bytes()
	for len(b) < n {
		b = append([]byte{0x00}, b...)
	}
	// Minimal form: a leading 0xFF is redundant when the next byte
	// already carries the sign bit (-2^(8k-1) boundary values).
	for len(b) > 1 && b[0] == 0xFF && b[1]&0x80 != 0 {
		b = b[1:]
	}
	return b
}

func encodeOID(oid asn1.ObjectIdentifier) ([]byte, error) {
	if len(oid) < 2 || oid[0] > 2 || (oid[0] < 2 && oid[1] >= 40) {
		return nil, fmt.Errorf("%w: invalid OID %v", ErrEncoding, oid)
	}
	out := appendBase128(nil, oid[0]*40+oid[1])
	for _, c := range oid[2:] {
		out = appendBase128(out, c)
	}
	return out, nil
}

func appendBase128(dst []byte, n int) []byte {
	if n == 0 {
		return append(dst, 0)
	}
	var tmp [8]byte
	i := len(tmp)
	for n > 0 {
		i--
		tmp[i] = byte(n&0x7f) | 0x80
		n >>= 7
	}
	tmp[len(tmp)-1] &= 0x7f
	return append(dst, tmp[i:]...)
}

// SortSet returns a copy of a SET with its children ordered by their
// DER encoding, the canonical SET OF order. Signed attribute sets must
// be sorted this way or strict verifiers reject the signature.
func SortSet(v Value) (Value, error) {
	if v.kind != KindSet {
		return Value{}, fmt.Errorf("%w: sort of non-set value", ErrEncoding)
	}
	type item struct {
		enc []byte
		val Value
	}
	items := make([]item, len(v.children))
	for i, c := range v.children {
		enc, err := c.Encode()
		if err != nil {
			return Value{}, err
		}
		items[i] = item{enc: enc, val: c}
	}
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && lessBytes(items[j].enc, items[j-1].enc); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
	out := v
	out.children = make([]Value, len(items))
	for i, it := range items {
		out.children[i] = it.val
	}
	return out, nil
}

func lessBytes(a, b []byte) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
