// Package pdfseal signs PDF documents with PKCS#12 credentials and
// optionally upgrades the result with an RFC 3161 timestamp and
// long-term-validation material. The package wires the lower level
// packages into one request-shaped pipeline; everything it takes and
// returns is an in-memory byte slice.
package pdfseal

import (
	"context"
	"fmt"
	"time"

	"github.com/pdfseal/pdfseal/common"
	"github.com/pdfseal/pdfseal/config"
	"github.com/pdfseal/pdfseal/credentials"
	"github.com/pdfseal/pdfseal/detect"
	"github.com/pdfseal/pdfseal/dss"
	"github.com/pdfseal/pdfseal/revocation"
	"github.com/pdfseal/pdfseal/sign"
	"github.com/pdfseal/pdfseal/tsa"
	"github.com/pdfseal/pdfseal/verify"
)

// Pipeline executes signing requests. The zero value is ready to use;
// the client fields exist so tests and embedders can substitute the
// network dependencies.
type Pipeline struct {
	// TSA overrides the timestamp client built from the request's TSA
	// configuration.
	TSA tsa.Client

	// OCSP overrides the revocation client used for LTV material.
	OCSP revocation.Client
}

// SignRequest carries one document, one credential and the signing
// options.
type SignRequest struct {
	PDF      []byte
	P12      []byte
	Password string

	// Appearance metadata written into the signature dictionary. All
	// fields are optional.
	Name        string
	Reason      string
	Location    string
	ContactInfo string

	// Capacity overrides the reserved signature slot size in bytes.
	// Zero derives the slot size from the credential.
	Capacity uint32

	// TSA names the timestamping endpoints. An empty URL skips
	// timestamping.
	TSA config.TSA

	// OCSP configures the revocation lookup for the LTV material.
	OCSP config.OCSP

	// DisableLTV skips the DSS embedding stage entirely.
	DisableLTV bool
}

// SignResult is the signed document plus the warnings of the
// best-effort stages. A document with warnings still carries a valid
// signature; only the timestamp or LTV upgrade is missing.
type SignResult struct {
	PDF      []byte
	Warnings []string
}

// Sign runs the pipeline: load the credential, sign the document,
// then timestamp and embed LTV material best-effort. Credential and
// signing failures abort; timestamp and LTV failures degrade to
// warnings.
func (p *Pipeline) Sign(ctx context.Context, req SignRequest) (*SignResult, error) {
	id, err := credentials.Load(req.P12, req.Password)
	if err != nil {
		return nil, err
	}

	data := sign.SignData{
		Certificate:      id.Leaf(),
		CertificateChain: id.Certificates[1:],
		Signer:           id.Signer,
		Name:             req.Name,
		Reason:           req.Reason,
		Location:         req.Location,
		ContactInfo:      req.ContactInfo,
		Date:             time.Now(),
		Capacity:         req.Capacity,
		WithTimestamp:    req.TSA.URL != "",
	}

	sc, err := sign.SignBytes(req.PDF, data)
	if err != nil {
		return nil, err
	}

	result := &SignResult{}

	if req.TSA.URL != "" {
		if err := tsa.Embed(ctx, sc, p.timestampClient(req.TSA)); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("timestamp not embedded: %v", err))
		}
	}

	result.PDF = sc.Bytes()

	if !req.DisableLTV {
		material, err := dss.Plan(ctx, id.Certificates, p.revocationClient(req.OCSP))
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("revocation status not embedded: %v", err))
		}
		grown, err := dss.Embed(result.PDF, material)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("validation material not embedded: %v", err))
		} else {
			result.PDF = grown
		}
	}

	return result, nil
}

func (p *Pipeline) timestampClient(cfg config.TSA) tsa.Client {
	if p.TSA != nil {
		return p.TSA
	}
	return &tsa.HTTPClient{
		Primary:  cfg.URL,
		Fallback: cfg.FallbackURL,
		Username: cfg.Username,
		Password: cfg.Password,
		Timeout:  time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

func (p *Pipeline) revocationClient(cfg config.OCSP) revocation.Client {
	if p.OCSP != nil {
		return p.OCSP
	}
	if cfg.Disabled {
		return nil
	}
	return &revocation.HTTPClient{
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

// Detect scans a document for signature and LTV markers without
// verifying anything cryptographically.
func Detect(data []byte) common.SignatureDescriptor {
	return detect.Scan(data)
}

// Verify cryptographically verifies the signatures in a document.
func Verify(data []byte) (*verify.Response, error) {
	return verify.Verify(data)
}

// InspectCredential summarizes the leaf certificate of a PKCS#12
// container.
func InspectCredential(p12 []byte, password string) (*credentials.Info, error) {
	return credentials.Inspect(p12, password)
}
