package sign

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/digitorus/pkcs7"

	"github.com/pdfseal/pdfseal/internal/testpki"
)

func testSignData(t *testing.T) SignData {
	t.Helper()
	key, cert := testpki.SelfSigned(t, "John Doe")
	return SignData{
		Certificate: cert,
		Signer:      key,
		Name:        "John Doe",
		Location:    "Rotterdam",
		Reason:      "Test",
		Date:        time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestReserveFixesByteRange(t *testing.T) {
	input := testpki.SamplePDF(t)
	context, err := NewContext(input, testSignData(t))
	if err != nil {
		t.Fatalf("new context: %v", err)
	}
	if err := context.Reserve(); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	output := context.Bytes()
	if !bytes.HasPrefix(output, input) {
		t.Fatal("reserve modified the original document bytes")
	}

	br := context.ByteRangeValues
	if len(br) != 4 {
		t.Fatalf("expected 4 byte range values, got %d", len(br))
	}
	if br[0] != 0 {
		t.Errorf("byte range must start at 0, got %d", br[0])
	}
	if output[br[1]] != '<' {
		t.Errorf("expected < at offset %d, got %q", br[1], output[br[1]])
	}
	if output[br[2]-1] != '>' {
		t.Errorf("expected > at offset %d, got %q", br[2]-1, output[br[2]-1])
	}
	if br[2]+br[3] != int64(len(output)) {
		t.Errorf("byte range does not cover the file: %d + %d != %d", br[2], br[3], len(output))
	}

	// The reserved slot is zero padding until the signature lands.
	slot := output[br[1]+1 : br[2]-1]
	if len(slot) != context.contentsHexLength {
		t.Errorf("slot width %d does not match reservation %d", len(slot), context.contentsHexLength)
	}
	for _, c := range slot {
		if c != '0' {
			t.Fatal("reserved slot contains non-zero bytes")
		}
	}
}

func TestWriteAtPatchesInPlace(t *testing.T) {
	context, err := NewContext(testpki.SamplePDF(t), testSignData(t))
	if err != nil {
		t.Fatalf("new context: %v", err)
	}
	if err := context.Reserve(); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	before := context.Bytes()
	if err := context.writeAt(10, []byte("ABCD")); err != nil {
		t.Fatalf("writeAt: %v", err)
	}
	after := context.Bytes()

	if len(after) != len(before) {
		t.Fatalf("patch changed the buffer length: %d != %d", len(after), len(before))
	}
	if string(after[10:14]) != "ABCD" {
		t.Errorf("patch not applied: got %q", after[10:14])
	}
	if !bytes.Equal(after[:10], before[:10]) || !bytes.Equal(after[14:], before[14:]) {
		t.Error("patch modified bytes outside the target range")
	}

	// Appending after a patch continues at the end of the buffer.
	if _, err := context.OutputBuffer.Write([]byte("tail")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := context.Bytes(); string(got[len(got)-4:]) != "tail" {
		t.Error("append after patch did not land at the end")
	}

	if err := context.writeAt(int64(len(before)), []byte("overflow-beyond-end")); err == nil {
		t.Error("expected an error for a patch past the end of the buffer")
	}
}

func TestSignKeepsDocumentLength(t *testing.T) {
	context, err := NewContext(testpki.SamplePDF(t), testSignData(t))
	if err != nil {
		t.Fatalf("new context: %v", err)
	}
	if err := context.Reserve(); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	reserved := len(context.Bytes())

	if err := context.Sign(); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if signed := len(context.Bytes()); signed != reserved {
		t.Errorf("signing changed the document length: %d != %d", signed, reserved)
	}
}

func TestSignedContentsVerify(t *testing.T) {
	context, err := SignBytes(testpki.SamplePDF(t), testSignData(t))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	der, err := context.ExtractContents()
	if err != nil {
		t.Fatalf("extract contents: %v", err)
	}
	p7, err := pkcs7.Parse(der)
	if err != nil {
		t.Fatalf("parse contents: %v", err)
	}

	output := context.Bytes()
	br := context.ByteRangeValues
	var content []byte
	content = append(content, output[br[0]:br[0]+br[1]]...)
	content = append(content, output[br[2]:br[2]+br[3]]...)
	p7.Content = content

	if err := p7.Verify(); err != nil {
		t.Errorf("embedded signature does not verify: %v", err)
	}
}

func TestCapacityTooSmall(t *testing.T) {
	data := testSignData(t)
	data.Capacity = 16

	context, err := NewContext(testpki.SamplePDF(t), data)
	if err != nil {
		t.Fatalf("new context: %v", err)
	}
	if err := context.Reserve(); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := context.Sign(); !errors.Is(err, ErrPlaceholderCapacity) {
		t.Fatalf("expected ErrPlaceholderCapacity, got %v", err)
	}
}

func TestNewContextRejectsGarbage(t *testing.T) {
	_, err := NewContext([]byte("not a pdf document"), testSignData(t))
	if !errors.Is(err, ErrPdfStructure) {
		t.Fatalf("expected ErrPdfStructure, got %v", err)
	}
}

func TestNewContextRejectsMismatchedSigner(t *testing.T) {
	key, _ := testpki.SelfSigned(t, "Key Holder")
	_, cert := testpki.SelfSigned(t, "Someone Else")

	_, err := NewContext(testpki.SamplePDF(t), SignData{
		Certificate: cert,
		Signer:      key,
	})
	if !errors.Is(err, ErrKeyMismatch) {
		t.Fatalf("expected ErrKeyMismatch, got %v", err)
	}
}

func TestPdfDateTime(t *testing.T) {
	zone := time.FixedZone("CEST", 2*3600)
	date := time.Date(2024, 3, 1, 12, 30, 45, 0, zone)
	if got, want := pdfDateTime(date), "(D:20240301123045+02'00')"; got != want {
		t.Errorf("got %s, want %s", got, want)
	}

	date = time.Date(2024, 3, 1, 12, 30, 45, 0, time.FixedZone("EST", -5*3600))
	if got, want := pdfDateTime(date), "(D:20240301123045-05'00')"; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestPdfStringEscaping(t *testing.T) {
	if got, want := pdfString(`with (parens) and \slash`), `(with \(parens\) and \\slash)`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}

	// Non-ASCII strings switch to UTF-16BE with a BOM.
	got := pdfString("Łódź")
	if !bytes.HasPrefix([]byte(got), []byte{'(', 0xFE, 0xFF}) {
		t.Errorf("expected UTF-16BE BOM, got %q", got)
	}
}
