// Package testpki builds the throwaway PKI material the package tests
// need: an issuing CA with an OCSP responder, PKCS#12 credential
// bundles, a timestamping authority, and a small static PDF document.
package testpki

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/base64"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/digitorus/timestamp"
	"golang.org/x/crypto/ocsp"
	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// Authority is a single-level issuing CA with an optional OCSP
// responder behind an httptest server.
type Authority struct {
	T      *testing.T
	CAKey  crypto.Signer
	CACert *x509.Certificate

	OCSP         *httptest.Server
	OCSPRequests int
	FailOCSP     bool

	serial int64
}

// NewAuthority creates a fresh RSA CA.
func NewAuthority(t *testing.T) *Authority {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate CA key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName:   "pdfseal test CA",
			Organization: []string{"pdfseal"},
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	if err != nil {
		t.Fatalf("create CA certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse CA certificate: %v", err)
	}

	return &Authority{T: t, CAKey: key, CACert: cert, serial: 1}
}

// StartOCSP starts an OCSP responder answering POST requests for any
// serial with a good status. Set FailOCSP to make it answer 500.
func (a *Authority) StartOCSP() {
	a.OCSP = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.OCSPRequests++

		if a.FailOCSP {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		req, err := ocsp.ParseRequest(body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		now := time.Now()
		response, err := ocsp.CreateResponse(a.CACert, a.CACert, ocsp.Response{
			Status:       ocsp.Good,
			SerialNumber: req.SerialNumber,
			ThisUpdate:   now.Add(-time.Hour),
			NextUpdate:   now.Add(24 * time.Hour),
		}, a.CAKey)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/ocsp-response")
		_, _ = w.Write(response)
	}))
	a.T.Cleanup(a.OCSP.Close)
}

// IssueSigner issues a document-signing leaf. With withOCSP the leaf
// carries an AIA responder URL pointing at the authority's responder,
// which must be started first.
func (a *Authority) IssueSigner(commonName string, withOCSP bool) (crypto.Signer, *x509.Certificate) {
	a.T.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		a.T.Fatalf("generate leaf key: %v", err)
	}

	a.serial++
	template := &x509.Certificate{
		SerialNumber: big.NewInt(a.serial),
		Subject: pkix.Name{
			CommonName:   commonName,
			Organization: []string{"pdfseal"},
		},
		NotBefore: time.Now().Add(-time.Hour),
		NotAfter:  time.Now().Add(time.Hour),
		KeyUsage:  x509.KeyUsageDigitalSignature,
	}
	if withOCSP {
		if a.OCSP == nil {
			a.T.Fatal("StartOCSP must be called before issuing an OCSP-enabled leaf")
		}
		template.OCSPServer = []string{a.OCSP.URL}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, a.CACert, key.Public(), a.CAKey)
	if err != nil {
		a.T.Fatalf("issue leaf certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		a.T.Fatalf("parse leaf certificate: %v", err)
	}

	return key, cert
}

// SelfSigned creates a standalone self-signed signing certificate.
func SelfSigned(t *testing.T, commonName string) (crypto.Signer, *x509.Certificate) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return key, cert
}

// PKCS12 wraps a key, certificate and chain into a PKCS#12 bundle.
func PKCS12(t *testing.T, key crypto.Signer, cert *x509.Certificate, chain []*x509.Certificate, password string) []byte {
	t.Helper()

	bundle, err := pkcs12.Modern.Encode(key, cert, chain, password)
	if err != nil {
		t.Fatalf("encode PKCS#12 bundle: %v", err)
	}
	return bundle
}

// TSA is an RFC 3161 timestamping authority behind an httptest server.
type TSA struct {
	Server   *httptest.Server
	Cert     *x509.Certificate
	Requests int
	Fail     bool
}

// NewTSA starts a timestamping server with a self-signed certificate
// carrying the timestamping extended key usage.
func NewTSA(t *testing.T) *TSA {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate TSA key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "pdfseal test TSA"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageTimeStamping},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	if err != nil {
		t.Fatalf("create TSA certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse TSA certificate: %v", err)
	}

	tsa := &TSA{Cert: cert}
	tsa.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tsa.Requests++

		if tsa.Fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		req, err := timestamp.ParseRequest(body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		token := timestamp.Timestamp{
			HashAlgorithm:     req.HashAlgorithm,
			HashedMessage:     req.HashedMessage,
			Time:              time.Now().UTC().Truncate(time.Second),
			Policy:            asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 4146, 2, 3},
			SerialNumber:      serial,
			Nonce:             req.Nonce,
			AddTSACertificate: req.Certificates,
		}
		response, err := token.CreateResponse(cert, key)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/timestamp-reply")
		_, _ = w.Write(response)
	}))
	t.Cleanup(tsa.Server.Close)

	return tsa
}

// SamplePDF returns a small valid PDF 2.0 document with a table style
// cross-reference section, decoded from an embedded fixture.
func SamplePDF(t *testing.T) []byte {
	t.Helper()

	data, err := base64.StdEncoding.DecodeString(samplePDFBase64)
	if err != nil {
		t.Fatalf("decode sample document: %v", err)
	}
	return data
}
