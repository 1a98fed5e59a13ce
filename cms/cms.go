// Package cms builds and manipulates detached CMS SignedData
// structures (PKCS#7) for PDF signatures. The structures are modelled
// with the asn1der value type so that an already signed structure can
// be re-opened, extended with an unsigned timestamp attribute and
// re-encoded without disturbing the signed bytes.
package cms

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"
	"time"

	"github.com/pdfseal/pdfseal/asn1der"
)

var (
	oidData               = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}
	oidSignedData         = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
	oidAttrContentType    = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}
	oidAttrMessageDigest  = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
	oidAttrSigningTime    = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 5}
	oidAttrTimestampToken = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 14}
	oidSHA256             = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	oidRSAEncryption      = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	oidECDSAWithSHA256    = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
)

var (
	ErrUnsupportedKey = errors.New("cms: unsupported signing key type")
	ErrNotSignedData  = errors.New("cms: structure is not a CMS SignedData")
)

// SignParams carries everything needed to produce a detached signature.
type SignParams struct {
	Certificate *x509.Certificate
	Chain       []*x509.Certificate
	Signer      crypto.Signer

	// Digest is the SHA-256 hash of the two /ByteRange segments.
	Digest []byte

	SigningTime time.Time
}

// SignDetached builds, signs and DER-encodes a detached CMS
// SignedData with issuer-and-serial signer identification and the
// three signed attributes content-type, message-digest and
// signing-time.
func SignDetached(p SignParams) ([]byte, error) {
	attrs, err := asn1der.SortSet(asn1der.Set(
		attribute(oidAttrContentType, asn1der.Oid(oidData)),
		attribute(oidAttrSigningTime, asn1der.UTCTime(p.SigningTime)),
		attribute(oidAttrMessageDigest, asn1der.OctetString(p.Digest)),
	))
	if err != nil {
		return nil, err
	}

	// The signature covers the attributes encoded as SET OF, even
	// though they are emitted under the implicit [0] tag.
	attrDER, err := attrs.Encode()
	if err != nil {
		return nil, err
	}
	attrDigest := sha256.Sum256(attrDER)

	signature, err := p.Signer.Sign(rand.Reader, attrDigest[:], crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("cms: signing failed: %w", err)
	}

	sigAlg, err := signatureAlgorithm(p.Signer.Public())
	if err != nil {
		return nil, err
	}

	signerInfo := asn1der.Sequence(
		asn1der.Integer(1),
		asn1der.Sequence(
			asn1der.Raw(p.Certificate.RawIssuer),
			asn1der.BigInt(p.Certificate.SerialNumber),
		),
		digestAlgorithmSHA256(),
		asn1der.Context(0, attrs.Children()...),
		sigAlg,
		asn1der.OctetString(signature),
	)

	certs := make([]asn1der.Value, 0, 1+len(p.Chain))
	certs = append(certs, asn1der.Raw(p.Certificate.Raw))
	for _, c := range p.Chain {
		certs = append(certs, asn1der.Raw(c.Raw))
	}

	signedData := asn1der.Sequence(
		asn1der.Integer(1),
		asn1der.Set(digestAlgorithmSHA256()),
		asn1der.Sequence(asn1der.Oid(oidData)), // detached: no eContent
		asn1der.Context(0, certs...),
		asn1der.Set(signerInfo),
	)

	return asn1der.Sequence(
		asn1der.Oid(oidSignedData),
		asn1der.Context(0, signedData),
	).Encode()
}

// AddTimestampToken splices an RFC 3161 token into the SignedData as
// the id-aa-signatureTimeStampToken unsigned attribute, creating the
// unsignedAttrs [1] set on first use, and returns the re-encoded
// structure. The signed portion of the structure is untouched.
func AddTimestampToken(der []byte, token []byte) ([]byte, error) {
	root, signedData, err := openSignedData(der)
	if err != nil {
		return nil, err
	}

	sdChildren := signedData.Children()
	signerInfos := sdChildren[len(sdChildren)-1]
	if signerInfos.Kind() != asn1der.KindSet || signerInfos.Len() == 0 {
		return nil, fmt.Errorf("%w: missing signerInfos", ErrNotSignedData)
	}
	signerInfo, err := signerInfos.Child(0)
	if err != nil || signerInfo.Kind() != asn1der.KindSequence {
		return nil, fmt.Errorf("%w: malformed SignerInfo", ErrNotSignedData)
	}

	attr := attribute(oidAttrTimestampToken, asn1der.Raw(token))

	siChildren := signerInfo.Children()
	spliced := false
	for i, c := range siChildren {
		if c.Kind() == asn1der.KindContext && c.Tag() == 1 && c.Constructed() {
			grown, err := c.Append(attr)
			if err != nil {
				return nil, err
			}
			siChildren[i] = grown
			spliced = true
			break
		}
	}
	if !spliced {
		siChildren = append(siChildren, asn1der.Context(1, attr))
	}

	// Rebuild the tree bottom-up; values are immutable.
	newSignerInfos := asn1der.Set(append([]asn1der.Value{asn1der.Sequence(siChildren...)}, signerInfos.Children()[1:]...)...)
	sdChildren[len(sdChildren)-1] = newSignerInfos

	rootChildren := root.Children()
	rootChildren[1] = asn1der.Context(0, asn1der.Sequence(sdChildren...))
	return asn1der.Sequence(rootChildren...).Encode()
}

// SignatureValue extracts the raw signature bytes of the first
// SignerInfo; the timestamp imprint is computed over these.
func SignatureValue(der []byte) ([]byte, error) {
	_, signedData, err := openSignedData(der)
	if err != nil {
		return nil, err
	}
	sdChildren := signedData.Children()
	signerInfos := sdChildren[len(sdChildren)-1]
	signerInfo, err := signerInfos.Child(0)
	if err != nil {
		return nil, fmt.Errorf("%w: missing SignerInfo", ErrNotSignedData)
	}
	// The signature value is the last OCTET STRING in the SignerInfo.
	var sig []byte
	for _, c := range signerInfo.Children() {
		if c.Kind() == asn1der.KindOctetString {
			sig = c.Bytes()
		}
	}
	if sig == nil {
		return nil, fmt.Errorf("%w: missing signature value", ErrNotSignedData)
	}
	return sig, nil
}

// HasTimestampToken reports whether the first SignerInfo carries the
// id-aa-signatureTimeStampToken unsigned attribute.
func HasTimestampToken(der []byte) bool {
	_, signedData, err := openSignedData(der)
	if err != nil {
		return false
	}
	sdChildren := signedData.Children()
	signerInfo, err := sdChildren[len(sdChildren)-1].Child(0)
	if err != nil {
		return false
	}
	for _, c := range signerInfo.Children() {
		if c.Kind() != asn1der.KindContext || c.Tag() != 1 || !c.Constructed() {
			continue
		}
		for _, attr := range c.Children() {
			if attr.Kind() != asn1der.KindSequence || attr.Len() == 0 {
				continue
			}
			oid, err := attr.Child(0)
			if err == nil && oid.Kind() == asn1der.KindOid && oid.OID().Equal(oidAttrTimestampToken) {
				return true
			}
		}
	}
	return false
}

// openSignedData decodes a ContentInfo and returns both the root and
// the contained SignedData sequence.
func openSignedData(der []byte) (root, signedData asn1der.Value, err error) {
	root, err = asn1der.Decode(der)
	if err != nil {
		return asn1der.Value{}, asn1der.Value{}, err
	}
	if root.Kind() != asn1der.KindSequence || root.Len() < 2 {
		return asn1der.Value{}, asn1der.Value{}, ErrNotSignedData
	}
	ct, _ := root.Child(0)
	if ct.Kind() != asn1der.KindOid || !ct.OID().Equal(oidSignedData) {
		return asn1der.Value{}, asn1der.Value{}, ErrNotSignedData
	}
	wrapper, _ := root.Child(1)
	if wrapper.Kind() != asn1der.KindContext || wrapper.Tag() != 0 || wrapper.Len() == 0 {
		return asn1der.Value{}, asn1der.Value{}, ErrNotSignedData
	}
	signedData, _ = wrapper.Child(0)
	if signedData.Kind() != asn1der.KindSequence || signedData.Len() < 4 {
		return asn1der.Value{}, asn1der.Value{}, ErrNotSignedData
	}
	return root, signedData, nil
}

func attribute(oid asn1.ObjectIdentifier, values ...asn1der.Value) asn1der.Value {
	return asn1der.Sequence(asn1der.Oid(oid), asn1der.Set(values...))
}

func digestAlgorithmSHA256() asn1der.Value {
	return asn1der.Sequence(asn1der.Oid(oidSHA256), asn1der.Null())
}

func signatureAlgorithm(pub crypto.PublicKey) (asn1der.Value, error) {
	switch pub.(type) {
	case *rsa.PublicKey:
		return asn1der.Sequence(asn1der.Oid(oidRSAEncryption), asn1der.Null()), nil
	case *ecdsa.PublicKey:
		return asn1der.Sequence(asn1der.Oid(oidECDSAWithSHA256)), nil
	default:
		return asn1der.Value{}, fmt.Errorf("%w: %T", ErrUnsupportedKey, pub)
	}
}
