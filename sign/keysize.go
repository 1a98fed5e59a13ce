package sign

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/digitorus/pkcs7"
)

var (
	ErrNilSigner      = errors.New("signer cannot be nil")
	ErrNilPublicKey   = errors.New("public key cannot be nil")
	ErrUnsupportedKey = errors.New("unsupported key type")
	ErrKeyMismatch    = errors.New("signer public key does not match certificate")
)

// DefaultSignatureSize is the fallback for unrecognized key types.
const DefaultSignatureSize = 8192

// tsaTokenHeadroom is the reserved space for an RFC 3161 token. The
// real size depends on the authority and is unknown until after
// signing.
const tsaTokenHeadroom = 9000

// PublicKeySignatureSize returns the maximum signature size in bytes
// for a public key. Certificate.SignatureAlgorithm is the wrong source
// for this - that is how the CA signed the certificate, not the size
// of signatures this key produces.
func PublicKeySignatureSize(pub crypto.PublicKey) (int, error) {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		if k.N == nil {
			return 0, fmt.Errorf("%w: RSA key has nil modulus", ErrUnsupportedKey)
		}
		return k.Size(), nil
	case *ecdsa.PublicKey:
		if k.Curve == nil {
			return 0, fmt.Errorf("%w: ECDSA key has nil curve", ErrUnsupportedKey)
		}
		// DER SEQUENCE of two INTEGERs: two coordinates plus tag,
		// length and padding overhead.
		coordSize := (k.Curve.Params().BitSize + 7) / 8
		return 2*coordSize + 9, nil
	case ed25519.PublicKey:
		return ed25519.SignatureSize, nil
	case nil:
		return 0, ErrNilPublicKey
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnsupportedKey, pub)
	}
}

// reservedHexLength decides the /Contents slot width in hex
// characters: an explicit capacity when the caller gave one, otherwise
// an estimate built from the key size, the embedded certificates and
// optional timestamp headroom.
func (context *SignContext) reservedHexLength() int {
	if context.SignData.Capacity > 0 {
		return hex.EncodedLen(int(context.SignData.Capacity))
	}

	// CMS structure overhead: OIDs, attributes, issuer and serial.
	length := hex.EncodedLen(512)

	signatureSize, err := PublicKeySignatureSize(context.SignData.Certificate.PublicKey)
	if err != nil {
		signatureSize = DefaultSignatureSize
	}
	length += hex.EncodedLen(signatureSize)

	// File digest plus the message-digest attribute copy.
	length += hex.EncodedLen(crypto.SHA256.Size() * 2)

	if degenerated, err := pkcs7.DegenerateCertificate(context.SignData.Certificate.Raw); err == nil {
		length += hex.EncodedLen(len(degenerated))
	}
	length += hex.EncodedLen(len(context.SignData.Certificate.RawIssuer))

	for _, cert := range context.SignData.CertificateChain {
		if degenerated, err := pkcs7.DegenerateCertificate(cert.Raw); err == nil {
			length += hex.EncodedLen(len(degenerated))
		}
	}

	if context.SignData.WithTimestamp {
		length += hex.EncodedLen(tsaTokenHeadroom)
	}

	return length
}

// validateSignerCertificateMatch checks that the signer's public key
// is the certificate's public key.
func validateSignerCertificateMatch(signer crypto.Signer, cert *x509.Certificate) error {
	if signer == nil {
		return ErrNilSigner
	}
	pub := signer.Public()
	if pub == nil {
		return ErrNilPublicKey
	}

	signerBytes, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return fmt.Errorf("failed to marshal signer public key: %w", err)
	}
	certBytes, err := x509.MarshalPKIXPublicKey(cert.PublicKey)
	if err != nil {
		return fmt.Errorf("failed to marshal certificate public key: %w", err)
	}

	if len(signerBytes) != len(certBytes) {
		return ErrKeyMismatch
	}
	for i := range signerBytes {
		if signerBytes[i] != certBytes[i] {
			return ErrKeyMismatch
		}
	}
	return nil
}
