// Package verify parses the signatures embedded in a PDF document and
// checks them cryptographically: the byte-range digest against the
// message-digest attribute, the signature over the signed attributes,
// and the presence of an RFC 3161 timestamp token.
package verify

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"
	"time"

	"github.com/digitorus/pdf"
	"github.com/digitorus/pkcs7"
	"github.com/digitorus/timestamp"
)

var (
	// ErrNoSignature is returned for documents without a signature
	// field.
	ErrNoSignature = errors.New("verify: no digital signature in document")
)

var oidAttrMessageDigest = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
var oidAttrTimestampToken = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 14}

// Signer describes one verified signature.
type Signer struct {
	Name        string `json:"name"`
	Reason      string `json:"reason"`
	Location    string `json:"location"`
	ContactInfo string `json:"contact_info"`

	ValidSignature bool `json:"valid_signature"`

	// DigestMatches reports that the SHA-256 hash over the /ByteRange
	// segments equals the recovered message-digest signed attribute.
	DigestMatches bool `json:"digest_matches"`

	Certificates []*x509.Certificate `json:"-"`

	HasTimestamp  bool       `json:"has_timestamp"`
	TimestampTime *time.Time `json:"timestamp_time,omitempty"`
}

// Response is the result of verifying every signature in a document.
type Response struct {
	Signers []Signer `json:"signers"`
	Error   string   `json:"error,omitempty"`
}

// Verify walks the document's cross references for Adobe.PPKLite
// signature dictionaries and verifies each embedded CMS structure.
func Verify(file []byte) (response *Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			response = nil
			err = fmt.Errorf("verify: failed to parse document (%v)", r)
		}
	}()

	// Validation material may be appended after the final %%EOF; the
	// structure parser only sees the document up to that marker while
	// the byte range digests still cover the full file.
	parseEnd := len(file)
	if i := bytes.LastIndex(file, []byte("%%EOF")); i >= 0 {
		end := i + len("%%EOF")
		for end < len(file) && (file[end] == '\r' || file[end] == '\n') {
			end++
		}
		parseEnd = end
	}

	rdr, err := pdf.NewReader(bytes.NewReader(file[:parseEnd]), int64(parseEnd))
	if err != nil {
		return nil, fmt.Errorf("verify: failed to open document: %w", err)
	}

	if rdr.Trailer().Key("Root").Key("AcroForm").Key("SigFlags").IsNull() {
		return nil, ErrNoSignature
	}

	response = &Response{}
	for _, x := range rdr.Xref() {
		v, err := rdr.GetObject(x.Ptr().GetID())
		if err != nil {
			continue
		}
		if v.Key("Filter").Name() != "Adobe.PPKLite" {
			continue
		}

		signer, err := verifySignatureObject(file, v)
		if err != nil {
			response.Error = err.Error()
			continue
		}
		response.Signers = append(response.Signers, *signer)
	}

	if len(response.Signers) == 0 {
		return nil, ErrNoSignature
	}
	return response, nil
}

func verifySignatureObject(file []byte, v pdf.Value) (*Signer, error) {
	signer := &Signer{
		Name:        v.Key("Name").Text(),
		Reason:      v.Key("Reason").Text(),
		Location:    v.Key("Location").Text(),
		ContactInfo: v.Key("ContactInfo").Text(),
	}

	p7, err := pkcs7.Parse([]byte(v.Key("Contents").RawString()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse signature contents: %w", err)
	}
	signer.Certificates = p7.Certificates

	byteRange := v.Key("ByteRange")
	if byteRange.Len() != 4 {
		return nil, fmt.Errorf("signature has no usable byte range")
	}

	var content []byte
	for i := 0; i < byteRange.Len(); i += 2 {
		start := byteRange.Index(i).Int64()
		length := byteRange.Index(i + 1).Int64()
		if start < 0 || length < 0 || start+length > int64(len(file)) {
			return nil, fmt.Errorf("byte range exceeds file size")
		}
		content = append(content, file[start:start+length]...)
	}
	p7.Content = content

	if err := p7.Verify(); err == nil {
		signer.ValidSignature = true
	}

	var recovered []byte
	if err := p7.UnmarshalSignedAttribute(oidAttrMessageDigest, &recovered); err == nil {
		digest := sha256.Sum256(content)
		signer.DigestMatches = bytes.Equal(recovered, digest[:])
	}

	for _, s := range p7.Signers {
		for _, attr := range s.UnauthenticatedAttributes {
			if !attr.Type.Equal(oidAttrTimestampToken) {
				continue
			}
			signer.HasTimestamp = true
			if ts, err := timestamp.Parse(attr.Value.Bytes); err == nil {
				signer.TimestampTime = &ts.Time
			}
		}
	}

	return signer, nil
}
