package tsa_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/digitorus/timestamp"

	"github.com/pdfseal/pdfseal/cms"
	"github.com/pdfseal/pdfseal/internal/testpki"
	"github.com/pdfseal/pdfseal/sign"
	"github.com/pdfseal/pdfseal/tsa"
)

func TestTokenFromAuthority(t *testing.T) {
	server := testpki.NewTSA(t)

	client := &tsa.HTTPClient{Primary: server.Server.URL}
	token, err := client.Token(context.Background(), []byte("signature value"))
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	ts, err := timestamp.Parse(token)
	if err != nil {
		t.Fatalf("returned token does not parse: %v", err)
	}
	if len(ts.Certificates) == 0 {
		t.Error("expected the authority certificate in the token")
	}
}

func TestTokenFailover(t *testing.T) {
	broken := testpki.NewTSA(t)
	broken.Fail = true
	working := testpki.NewTSA(t)

	client := &tsa.HTTPClient{
		Primary:  broken.Server.URL,
		Fallback: working.Server.URL,
	}
	if _, err := client.Token(context.Background(), []byte("signature value")); err != nil {
		t.Fatalf("expected fallback to succeed: %v", err)
	}
	if broken.Requests != 1 {
		t.Errorf("expected one request to the primary, got %d", broken.Requests)
	}
	if working.Requests != 1 {
		t.Errorf("expected one request to the fallback, got %d", working.Requests)
	}
}

func TestTokenAllAuthoritiesDown(t *testing.T) {
	broken := testpki.NewTSA(t)
	broken.Fail = true

	client := &tsa.HTTPClient{Primary: broken.Server.URL, Fallback: broken.Server.URL}
	_, err := client.Token(context.Background(), []byte("signature value"))
	if !errors.Is(err, tsa.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if broken.Requests != 2 {
		t.Errorf("expected primary and fallback to be tried, got %d requests", broken.Requests)
	}
}

func TestTokenNoAuthorityConfigured(t *testing.T) {
	client := &tsa.HTTPClient{}
	_, err := client.Token(context.Background(), []byte("signature value"))
	if !errors.Is(err, tsa.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestTokenSendsBasicAuth(t *testing.T) {
	var user, pass string
	var ok bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok = r.BasicAuth()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := &tsa.HTTPClient{
		Primary:  server.URL,
		Username: "user",
		Password: "secret",
		Timeout:  5 * time.Second,
	}
	_, _ = client.Token(context.Background(), []byte("signature value"))

	if !ok || user != "user" || pass != "secret" {
		t.Errorf("expected basic auth user/secret, got %q/%q (set: %v)", user, pass, ok)
	}
}

func TestEmbedAddsTokenWithoutGrowth(t *testing.T) {
	server := testpki.NewTSA(t)

	key, cert := testpki.SelfSigned(t, "John Doe")
	sc, err := sign.SignBytes(testpki.SamplePDF(t), sign.SignData{
		Certificate:   cert,
		Signer:        key,
		WithTimestamp: true,
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	before := len(sc.Bytes())

	client := &tsa.HTTPClient{Primary: server.Server.URL}
	if err := tsa.Embed(context.Background(), sc, client); err != nil {
		t.Fatalf("embed: %v", err)
	}

	if after := len(sc.Bytes()); after != before {
		t.Errorf("embedding the token changed the document length: %d != %d", after, before)
	}

	der, err := sc.ExtractContents()
	if err != nil {
		t.Fatalf("extract contents: %v", err)
	}
	if !cms.HasTimestampToken(der) {
		t.Error("timestamp token missing from the embedded signature")
	}
}
