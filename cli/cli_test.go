package cli

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdfseal/pdfseal/common"
	"github.com/pdfseal/pdfseal/credentials"
	"github.com/pdfseal/pdfseal/internal/testpki"
)

// run executes a command with stubbed arguments and captures stdout.
func run(t *testing.T, args ...string) string {
	t.Helper()

	origArgs := os.Args
	origExit := osExit
	origStdout := os.Stdout
	defer func() {
		os.Args = origArgs
		osExit = origExit
		os.Stdout = origStdout
	}()

	os.Args = append([]string{"pdfseal"}, args...)
	osExit = func(code int) {
		t.Fatalf("command exited with code %d", code)
	}

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w

	Run()

	_ = w.Close()
	output, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return string(output)
}

func writeCredential(t *testing.T, dir string) string {
	t.Helper()
	key, cert := testpki.SelfSigned(t, "John Doe")
	bundle := testpki.PKCS12(t, key, cert, nil, "secret")
	path := filepath.Join(dir, "credential.p12")
	if err := os.WriteFile(path, bundle, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSignAndDetectCommands(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.pdf")
	output := filepath.Join(dir, "output.pdf")
	if err := os.WriteFile(input, testpki.SamplePDF(t), 0o600); err != nil {
		t.Fatal(err)
	}
	credential := writeCredential(t, dir)

	run(t, "sign", "-p12", credential, "-password", "secret", "-name", "John Doe", input, output)

	signed, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("signed output missing: %v", err)
	}
	if len(signed) <= len(testpki.SamplePDF(t)) {
		t.Error("signed output not larger than the input")
	}

	stdout := run(t, "detect", output)
	var d common.SignatureDescriptor
	if err := json.Unmarshal([]byte(stdout), &d); err != nil {
		t.Fatalf("detect output is not JSON: %v\n%s", err, stdout)
	}
	if !d.HasSignature {
		t.Error("detect did not report the signature")
	}
	if !d.HasLTV {
		t.Error("detect did not report the validation material")
	}
}

func TestDetectCommandUnsigned(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(input, testpki.SamplePDF(t), 0o600); err != nil {
		t.Fatal(err)
	}

	stdout := run(t, "detect", input)
	var d common.SignatureDescriptor
	if err := json.Unmarshal([]byte(stdout), &d); err != nil {
		t.Fatalf("detect output is not JSON: %v", err)
	}
	if d.HasSignature {
		t.Error("unsigned input reported as signed")
	}
}

func TestInspectCommand(t *testing.T) {
	credential := writeCredential(t, t.TempDir())

	stdout := run(t, "inspect", "-password", "secret", credential)
	var info credentials.Info
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		t.Fatalf("inspect output is not JSON: %v", err)
	}
	if info.CommonName != "John Doe" {
		t.Errorf("common name: got %q", info.CommonName)
	}
}

func TestVerifyCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.pdf")
	output := filepath.Join(dir, "output.pdf")
	if err := os.WriteFile(input, testpki.SamplePDF(t), 0o600); err != nil {
		t.Fatal(err)
	}
	credential := writeCredential(t, dir)

	run(t, "sign", "-p12", credential, "-password", "secret", "-no-ltv", input, output)

	stdout := run(t, "verify", output)
	if !strings.Contains(stdout, `"valid_signature": true`) {
		t.Errorf("verify output misses a valid signature:\n%s", stdout)
	}
}

func TestUsageOnUnknownCommand(t *testing.T) {
	origArgs := os.Args
	origExit := osExit
	origStdout := os.Stdout
	defer func() {
		os.Args = origArgs
		osExit = origExit
		os.Stdout = origStdout
	}()

	devnull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer devnull.Close()
	os.Stdout = devnull

	var code int
	called := false
	osExit = func(c int) {
		code = c
		called = true
	}

	os.Args = []string{"pdfseal", "frobnicate"}
	Run()

	if !called || code != 1 {
		t.Errorf("expected exit code 1, got called=%v code=%d", called, code)
	}
}
