// Package credentials loads a signing identity from a PKCS#12
// container. Identities are created per request from uploaded bytes
// and are never persisted.
package credentials

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"software.sslmate.com/src/go-pkcs12"
)

var (
	ErrBadPassword   = errors.New("credentials: container password incorrect")
	ErrCorrupt       = errors.New("credentials: container could not be parsed")
	ErrNoCertificate = errors.New("credentials: container holds no certificate")
	ErrNoPrivateKey  = errors.New("credentials: container holds no usable private key")

	// ErrUnsupportedKey is returned for key types the signing pipeline
	// cannot drive. Ed25519 signs whole messages, not precomputed
	// digests, so it is rejected here rather than failing mid-signing.
	ErrUnsupportedKey = errors.New("credentials: unsupported private key type")
)

// Identity is a signing identity extracted from a PKCS#12 container.
//
// Certificates is leaf-first: the certificate bound to the private key
// comes first, followed by the issuer chain in container storage
// order. PKCS#12 does not guarantee bag order; treating the key-matched
// bag as the leaf is a convention this package documents rather than a
// protocol property.
type Identity struct {
	Certificates []*x509.Certificate
	Signer       crypto.Signer
}

// Leaf returns the signer certificate.
func (id *Identity) Leaf() *x509.Certificate {
	return id.Certificates[0]
}

// Issuer returns the immediate issuer certificate when the container
// carried one, nil otherwise.
func (id *Identity) Issuer() *x509.Certificate {
	if len(id.Certificates) < 2 {
		return nil
	}
	return id.Certificates[1]
}

// SelfSigned reports whether the leaf is its own issuer, compared by
// common name as the signing pipeline does.
func (id *Identity) SelfSigned() bool {
	leaf := id.Leaf()
	return leaf.Subject.CommonName == leaf.Issuer.CommonName
}

// Load decrypts and parses a PKCS#12 container.
func Load(container []byte, password string) (*Identity, error) {
	key, leaf, chain, err := pkcs12.DecodeChain(container, password)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return nil, ErrBadPassword
		}
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if leaf == nil {
		return nil, ErrNoCertificate
	}

	signer, err := asSigner(key)
	if err != nil {
		return nil, err
	}

	certs := make([]*x509.Certificate, 0, 1+len(chain))
	certs = append(certs, leaf)
	certs = append(certs, chain...)

	return &Identity{Certificates: certs, Signer: signer}, nil
}

func asSigner(key any) (crypto.Signer, error) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return k, nil
	case *ecdsa.PrivateKey:
		return k, nil
	case ed25519.PrivateKey:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, k)
	case crypto.Signer:
		return k, nil
	case nil:
		return nil, ErrNoPrivateKey
	default:
		return nil, fmt.Errorf("%w: %T", ErrNoPrivateKey, key)
	}
}

// Info is the credential-inspection result.
type Info struct {
	CommonName   string    `json:"commonName"`
	Email        string    `json:"email"`
	Organization string    `json:"organization"`
	ValidFrom    time.Time `json:"validFrom"`
	ValidTo      time.Time `json:"validTo"`
}

// Inspect loads a container and summarizes its leaf certificate.
func Inspect(container []byte, password string) (*Info, error) {
	id, err := Load(container, password)
	if err != nil {
		return nil, err
	}
	leaf := id.Leaf()

	info := &Info{
		CommonName: leaf.Subject.CommonName,
		ValidFrom:  leaf.NotBefore,
		ValidTo:    leaf.NotAfter,
	}
	if len(leaf.EmailAddresses) > 0 {
		info.Email = leaf.EmailAddresses[0]
	}
	if len(leaf.Subject.Organization) > 0 {
		info.Organization = leaf.Subject.Organization[0]
	}
	return info, nil
}
