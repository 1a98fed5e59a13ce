// Package revocation fetches OCSP responses for leaf certificates.
// The response bytes are treated as opaque material for LTV embedding;
// revocation failures never fail a signing operation.
package revocation

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/crypto/ocsp"
)

var (
	// ErrNoResponder is returned when the certificate carries no OCSP
	// responder URL in its Authority Information Access extension.
	ErrNoResponder = errors.New("revocation: certificate names no ocsp responder")

	// ErrUnavailable is returned when the responder could not be
	// reached or returned an unusable response.
	ErrUnavailable = errors.New("revocation: ocsp responder unavailable")
)

// DefaultTimeout bounds one OCSP request.
const DefaultTimeout = 10 * time.Second

// Client obtains a DER-encoded OCSP response for a certificate.
type Client interface {
	Check(ctx context.Context, cert, issuer *x509.Certificate) ([]byte, error)
}

// HTTPClient POSTs RFC 6960 requests to the responder the certificate
// itself advertises.
type HTTPClient struct {
	// Timeout bounds each request; zero means DefaultTimeout.
	Timeout time.Duration
}

// Check builds a SHA-1 CertID request and POSTs it to the first OCSP
// responder named by the certificate's AIA extension. The returned
// bytes are the raw DER response.
func (c *HTTPClient) Check(ctx context.Context, cert, issuer *x509.Certificate) ([]byte, error) {
	if cert == nil || issuer == nil {
		return nil, ErrNoResponder
	}
	if len(cert.OCSPServer) == 0 {
		return nil, ErrNoResponder
	}

	request, err := ocsp.CreateRequest(cert, issuer, &ocsp.RequestOptions{Hash: crypto.SHA1})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cert.OCSPServer[0], bytes.NewReader(request))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/ocsp-request")

	timeout := c.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	client := &http.Client{Timeout: timeout}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: responder returned status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Parse only to reject garbage; the caller stores the raw bytes.
	if _, err := ocsp.ParseResponseForCert(body, cert, issuer); err != nil {
		return nil, fmt.Errorf("%w: invalid response: %v", ErrUnavailable, err)
	}

	return body, nil
}
