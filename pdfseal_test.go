package pdfseal

import (
	"bytes"
	"context"
	"crypto/x509"
	"errors"
	"testing"

	"github.com/pdfseal/pdfseal/config"
	"github.com/pdfseal/pdfseal/credentials"
	"github.com/pdfseal/pdfseal/dss"
	"github.com/pdfseal/pdfseal/internal/testpki"
)

func TestSignProducesDetectableSignature(t *testing.T) {
	key, cert := testpki.SelfSigned(t, "John Doe")
	bundle := testpki.PKCS12(t, key, cert, nil, "secret")

	var p Pipeline
	result, err := p.Sign(context.Background(), SignRequest{
		PDF:      testpki.SamplePDF(t),
		P12:      bundle,
		Password: "secret",
		Name:     "John Doe",
		Reason:   "Approval",
		Location: "Rotterdam",
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", result.Warnings)
	}

	d := Detect(result.PDF)
	if !d.HasSignature {
		t.Error("signature not detected in signed output")
	}
	if !d.HasLTV {
		t.Error("validation material not detected in signed output")
	}
	if d.Signer != "John Doe" {
		t.Errorf("expected signer John Doe, got %q", d.Signer)
	}
	if d.Reason != "Approval" {
		t.Errorf("expected reason Approval, got %q", d.Reason)
	}
}

func TestSignedDocumentVerifies(t *testing.T) {
	key, cert := testpki.SelfSigned(t, "John Doe")
	bundle := testpki.PKCS12(t, key, cert, nil, "secret")

	var p Pipeline
	result, err := p.Sign(context.Background(), SignRequest{
		PDF:        testpki.SamplePDF(t),
		P12:        bundle,
		Password:   "secret",
		DisableLTV: true,
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	response, err := Verify(result.PDF)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(response.Signers) != 1 {
		t.Fatalf("expected one signer, got %d", len(response.Signers))
	}
	signer := response.Signers[0]
	if !signer.ValidSignature {
		t.Error("signature did not verify")
	}
	if !signer.DigestMatches {
		t.Error("byte range digest does not match the signed attribute")
	}
	if signer.HasTimestamp {
		t.Error("unexpected timestamp token")
	}
}

func TestSignWithTimestamp(t *testing.T) {
	tsaServer := testpki.NewTSA(t)

	key, cert := testpki.SelfSigned(t, "John Doe")
	bundle := testpki.PKCS12(t, key, cert, nil, "secret")

	var p Pipeline
	result, err := p.Sign(context.Background(), SignRequest{
		PDF:        testpki.SamplePDF(t),
		P12:        bundle,
		Password:   "secret",
		TSA:        config.TSA{URL: tsaServer.Server.URL},
		DisableLTV: true,
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", result.Warnings)
	}
	if tsaServer.Requests != 1 {
		t.Fatalf("expected one timestamp request, got %d", tsaServer.Requests)
	}

	response, err := Verify(result.PDF)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	signer := response.Signers[0]
	if !signer.ValidSignature {
		t.Error("signature did not verify after timestamping")
	}
	if !signer.HasTimestamp {
		t.Error("timestamp token missing")
	}
	if signer.TimestampTime == nil {
		t.Error("timestamp time not recovered")
	}
}

func TestTimestampFailover(t *testing.T) {
	broken := testpki.NewTSA(t)
	broken.Fail = true
	working := testpki.NewTSA(t)

	key, cert := testpki.SelfSigned(t, "John Doe")
	bundle := testpki.PKCS12(t, key, cert, nil, "secret")

	var p Pipeline
	result, err := p.Sign(context.Background(), SignRequest{
		PDF:      testpki.SamplePDF(t),
		P12:      bundle,
		Password: "secret",
		TSA: config.TSA{
			URL:         broken.Server.URL,
			FallbackURL: working.Server.URL,
		},
		DisableLTV: true,
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("expected fallback to succeed, got warnings: %v", result.Warnings)
	}
	if broken.Requests != 1 {
		t.Errorf("expected one request to the primary, got %d", broken.Requests)
	}
	if working.Requests != 1 {
		t.Errorf("expected one request to the fallback, got %d", working.Requests)
	}
}

func TestTimestampUnreachableDegradesToWarning(t *testing.T) {
	broken := testpki.NewTSA(t)
	broken.Fail = true

	key, cert := testpki.SelfSigned(t, "John Doe")
	bundle := testpki.PKCS12(t, key, cert, nil, "secret")

	var p Pipeline
	result, err := p.Sign(context.Background(), SignRequest{
		PDF:        testpki.SamplePDF(t),
		P12:        bundle,
		Password:   "secret",
		TSA:        config.TSA{URL: broken.Server.URL},
		DisableLTV: true,
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", result.Warnings)
	}

	// The document still carries a valid, untimestamped signature.
	response, err := Verify(result.PDF)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !response.Signers[0].ValidSignature {
		t.Error("signature did not verify")
	}
	if response.Signers[0].HasTimestamp {
		t.Error("unexpected timestamp token")
	}
}

func TestSignWithRevocationMaterial(t *testing.T) {
	ca := testpki.NewAuthority(t)
	ca.StartOCSP()
	key, cert := ca.IssueSigner("John Doe", true)
	bundle := testpki.PKCS12(t, key, cert, []*x509.Certificate{ca.CACert}, "secret")

	var p Pipeline
	result, err := p.Sign(context.Background(), SignRequest{
		PDF:      testpki.SamplePDF(t),
		P12:      bundle,
		Password: "secret",
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", result.Warnings)
	}
	if ca.OCSPRequests != 1 {
		t.Errorf("expected one OCSP request, got %d", ca.OCSPRequests)
	}
	if !Detect(result.PDF).HasLTV {
		t.Error("validation material not detected")
	}
}

func TestRevocationUnreachableDegradesToWarning(t *testing.T) {
	ca := testpki.NewAuthority(t)
	ca.StartOCSP()
	ca.FailOCSP = true
	key, cert := ca.IssueSigner("John Doe", true)
	bundle := testpki.PKCS12(t, key, cert, []*x509.Certificate{ca.CACert}, "secret")

	var p Pipeline
	result, err := p.Sign(context.Background(), SignRequest{
		PDF:      testpki.SamplePDF(t),
		P12:      bundle,
		Password: "secret",
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", result.Warnings)
	}

	// The chain certificates are still embedded without the response.
	if !Detect(result.PDF).HasLTV {
		t.Error("validation material not detected")
	}
}

func TestLTVGrowthOnlyAppends(t *testing.T) {
	key, cert := testpki.SelfSigned(t, "John Doe")
	bundle := testpki.PKCS12(t, key, cert, nil, "secret")

	p := Pipeline{}
	base, err := p.Sign(context.Background(), SignRequest{
		PDF:        testpki.SamplePDF(t),
		P12:        bundle,
		Password:   "secret",
		DisableLTV: true,
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	material := dss.Material{Certificates: []*x509.Certificate{cert}}
	grown, err := dss.Embed(base.PDF, material)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if !bytes.HasPrefix(grown, base.PDF) {
		t.Error("embedding validation material modified the signed bytes")
	}

	// The signature must still verify over the grown document.
	response, err := Verify(grown)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !response.Signers[0].ValidSignature {
		t.Error("signature broken by validation material")
	}
}

func TestSignWrongPassword(t *testing.T) {
	key, cert := testpki.SelfSigned(t, "John Doe")
	bundle := testpki.PKCS12(t, key, cert, nil, "secret")

	var p Pipeline
	_, err := p.Sign(context.Background(), SignRequest{
		PDF:      testpki.SamplePDF(t),
		P12:      bundle,
		Password: "wrong",
	})
	if !errors.Is(err, credentials.ErrBadPassword) {
		t.Fatalf("expected ErrBadPassword, got %v", err)
	}
}

func TestInspectCredential(t *testing.T) {
	key, cert := testpki.SelfSigned(t, "John Doe")
	bundle := testpki.PKCS12(t, key, cert, nil, "secret")

	info, err := InspectCredential(bundle, "secret")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if info.CommonName != "John Doe" {
		t.Errorf("expected common name John Doe, got %q", info.CommonName)
	}
	if !info.ValidTo.After(info.ValidFrom) {
		t.Error("validity window is inverted")
	}
}
