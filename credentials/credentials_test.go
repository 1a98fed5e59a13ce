package credentials_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/pdfseal/pdfseal/credentials"
	"github.com/pdfseal/pdfseal/internal/testpki"
)

func TestLoad(t *testing.T) {
	ca := testpki.NewAuthority(t)
	ca.StartOCSP()
	key, cert := ca.IssueSigner("John Doe", false)
	bundle := testpki.PKCS12(t, key, cert, []*x509.Certificate{ca.CACert}, "secret")

	id, err := credentials.Load(bundle, "secret")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if id.Leaf().Subject.CommonName != "John Doe" {
		t.Errorf("leaf: got %q", id.Leaf().Subject.CommonName)
	}
	if id.Issuer() == nil || id.Issuer().Subject.CommonName != ca.CACert.Subject.CommonName {
		t.Error("issuer certificate not recovered from the container")
	}
	if id.SelfSigned() {
		t.Error("CA-issued identity reported as self-signed")
	}
	if id.Signer == nil {
		t.Fatal("no signer recovered")
	}
}

func TestLoadSelfSigned(t *testing.T) {
	key, cert := testpki.SelfSigned(t, "John Doe")
	bundle := testpki.PKCS12(t, key, cert, nil, "secret")

	id, err := credentials.Load(bundle, "secret")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !id.SelfSigned() {
		t.Error("self-signed identity not recognized")
	}
	if id.Issuer() != nil {
		t.Error("self-signed identity must have no issuer")
	}
}

func TestLoadWrongPassword(t *testing.T) {
	key, cert := testpki.SelfSigned(t, "John Doe")
	bundle := testpki.PKCS12(t, key, cert, nil, "secret")

	_, err := credentials.Load(bundle, "wrong")
	if !errors.Is(err, credentials.ErrBadPassword) {
		t.Fatalf("expected ErrBadPassword, got %v", err)
	}
}

func TestLoadRejectsEd25519(t *testing.T) {
	pub, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "John Doe"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, pub, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	bundle := testpki.PKCS12(t, key, cert, nil, "secret")

	_, err = credentials.Load(bundle, "secret")
	if !errors.Is(err, credentials.ErrUnsupportedKey) {
		t.Fatalf("expected ErrUnsupportedKey, got %v", err)
	}
}

func TestLoadGarbage(t *testing.T) {
	_, err := credentials.Load([]byte("not a container"), "secret")
	if !errors.Is(err, credentials.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestInspect(t *testing.T) {
	key, cert := testpki.SelfSigned(t, "John Doe")
	bundle := testpki.PKCS12(t, key, cert, nil, "secret")

	info, err := credentials.Inspect(bundle, "secret")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if info.CommonName != "John Doe" {
		t.Errorf("common name: got %q", info.CommonName)
	}
	if !info.ValidTo.After(info.ValidFrom) {
		t.Error("validity window is inverted")
	}
}
