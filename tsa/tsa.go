// Package tsa requests RFC 3161 timestamp tokens and splices them
// into an already signed document. Timestamping is a best-effort
// stage: every failure here leaves the signed document untouched.
package tsa

import (
	"bytes"
	"context"
	"crypto"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/digitorus/timestamp"

	"github.com/pdfseal/pdfseal/cms"
	"github.com/pdfseal/pdfseal/sign"
)

// ErrUnavailable is returned when no configured timestamp authority
// produced a usable token.
var ErrUnavailable = errors.New("tsa: no timestamp authority reachable")

// DefaultTimeout bounds one request to one authority.
const DefaultTimeout = 15 * time.Second

// Client obtains a timestamp token over a signature value.
type Client interface {
	Token(ctx context.Context, signature []byte) ([]byte, error)
}

// HTTPClient is the RFC 3161 HTTP client. On any failure against the
// primary URL it retries exactly once against the fallback.
type HTTPClient struct {
	Primary  string
	Fallback string
	Username string
	Password string

	// Timeout bounds each request; zero means DefaultTimeout.
	Timeout time.Duration
}

// Token requests a token binding the SHA-256 imprint of the signature
// value, asking the authority to include its certificate.
func (c *HTTPClient) Token(ctx context.Context, signature []byte) ([]byte, error) {
	request, err := timestamp.CreateRequest(bytes.NewReader(signature), &timestamp.RequestOptions{
		Hash:         crypto.SHA256,
		Certificates: true,
	})
	if err != nil {
		return nil, fmt.Errorf("tsa: failed to create request: %w", err)
	}

	var lastErr error
	for _, url := range []string{c.Primary, c.Fallback} {
		if url == "" {
			continue
		}
		token, err := c.request(ctx, url, request)
		if err == nil {
			return token, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no authority configured")
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (c *HTTPClient) request(ctx context.Context, url string, request []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(request))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare request (%s): %w", url, err)
	}
	req.Header.Set("Content-Type", "application/timestamp-query")
	if c.Username != "" && c.Password != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}

	timeout := c.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	client := &http.Client{Timeout: timeout}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("non success response (%d) from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// ParseResponse rejects any status other than granted.
	ts, err := timestamp.ParseResponse(body)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp response from %s: %w", url, err)
	}
	return ts.RawToken, nil
}

// Embed obtains a token over the document's signature value and
// rewrites the /Contents slot with the timestamped CMS structure. The
// document's byte length does not change; only the fixed-width slot's
// content does.
func Embed(ctx context.Context, sc *sign.SignContext, client Client) error {
	der, err := sc.ExtractContents()
	if err != nil {
		return err
	}

	signature, err := cms.SignatureValue(der)
	if err != nil {
		return err
	}

	token, err := client.Token(ctx, signature)
	if err != nil {
		return err
	}

	stamped, err := cms.AddTimestampToken(der, token)
	if err != nil {
		return err
	}

	return sc.EmbedContents(stamped)
}
