// Package dss embeds long-term-validation material (certificates and
// OCSP responses) into a signed PDF as a Document Security Store. The
// material is appended after the final %%EOF so the signed byte
// ranges stay untouched; the catalog is redefined in the appended
// block to carry the /DSS reference. No new cross-reference section is
// written for the appended objects, a pragmatic shortcut most viewers
// resolve by linear object scan.
package dss

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdfseal/pdfseal/revocation"
)

// ErrPdfStructure is returned when the buffer has no object structure
// to extend. Callers keep the prior buffer in that case.
var ErrPdfStructure = errors.New("dss: invalid pdf structure")

// Material is the certificate and OCSP material of one embedding pass.
type Material struct {
	Certificates []*x509.Certificate
	OCSPs        [][]byte
}

var (
	objectHeaderRe = regexp.MustCompile(`(\d+)\s+0\s+obj\b`)
	dssEntryRe     = regexp.MustCompile(`/DSS\s+\d+\s+\d+\s+R`)
)

// Plan decides what material a certificate chain yields. A self-signed
// leaf embeds only itself and skips OCSP entirely; a leaf with an
// issuer present attempts OCSP against that issuer. A non-nil error
// reports an OCSP failure; the returned material is still complete
// apart from the response and must still be embedded.
func Plan(ctx context.Context, chain []*x509.Certificate, client revocation.Client) (Material, error) {
	var m Material
	if len(chain) == 0 {
		return m, nil
	}

	leaf := chain[0]
	if leaf.Subject.CommonName == leaf.Issuer.CommonName {
		m.Certificates = chain[:1]
		return m, nil
	}

	m.Certificates = chain
	if len(chain) < 2 || client == nil {
		return m, nil
	}

	response, err := client.Check(ctx, leaf, chain[1])
	if err != nil {
		if errors.Is(err, revocation.ErrNoResponder) {
			// No AIA responder named: skipped silently.
			return m, nil
		}
		return m, err
	}
	m.OCSPs = append(m.OCSPs, response)
	return m, nil
}

// Embed appends the DSS objects and a redefined catalog to the
// document and returns the grown buffer. On any error the input is
// returned unchanged.
func Embed(input []byte, m Material) ([]byte, error) {
	if len(m.Certificates) == 0 && len(m.OCSPs) == 0 {
		return input, nil
	}

	next := maxObjectNumber(input)
	if next == 0 {
		return input, fmt.Errorf("%w: no indirect objects found", ErrPdfStructure)
	}
	next++

	catalogNumber, catalogDict, err := findCatalog(input)
	if err != nil {
		return input, err
	}

	var block bytes.Buffer
	block.WriteString("\n")

	var certRefs []uint32
	for _, cert := range m.Certificates {
		certRefs = append(certRefs, next)
		writeStreamObject(&block, next, cert.Raw)
		next++
	}

	var ocspRefs []uint32
	for _, response := range m.OCSPs {
		ocspRefs = append(ocspRefs, next)
		writeStreamObject(&block, next, response)
		next++
	}

	certsArray := next
	writeArrayObject(&block, certsArray, certRefs)
	next++

	ocspsArray := next
	writeArrayObject(&block, ocspsArray, ocspRefs)
	next++

	dssNumber := next
	fmt.Fprintf(&block, "%d 0 obj\n<< /Type /DSS /Certs %d 0 R /OCSPs %d 0 R >>\nendobj\n",
		dssNumber, certsArray, ocspsArray)

	// Redefine the catalog with the /DSS back-reference. Without a new
	// xref the redefinition is only visible to linear scans, which is
	// how the detection path resolves it. A second embedding pass finds
	// the previous redefinition, so any earlier /DSS entry is stripped
	// before the new one lands.
	catalogDict = strings.TrimSpace(dssEntryRe.ReplaceAllString(catalogDict, " "))
	fmt.Fprintf(&block, "%d 0 obj\n<< %s /DSS %d 0 R >>\nendobj\n",
		catalogNumber, catalogDict, dssNumber)

	out := make([]byte, 0, len(input)+block.Len())
	out = append(out, input...)
	out = append(out, block.Bytes()...)
	return out, nil
}

func writeStreamObject(b *bytes.Buffer, number uint32, content []byte) {
	encoded := base64.StdEncoding.EncodeToString(content)
	fmt.Fprintf(b, "%d 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n",
		number, len(encoded), encoded)
}

func writeArrayObject(b *bytes.Buffer, number uint32, refs []uint32) {
	fmt.Fprintf(b, "%d 0 obj\n[", number)
	for i, ref := range refs {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(b, "%d 0 R", ref)
	}
	b.WriteString("]\nendobj\n")
}

// maxObjectNumber scans for every "N 0 obj" marker; re-running an
// embedding pass therefore always allocates past earlier DSS objects.
func maxObjectNumber(data []byte) uint32 {
	var max uint32
	for _, match := range objectHeaderRe.FindAllSubmatch(data, -1) {
		n, err := strconv.ParseUint(string(match[1]), 10, 32)
		if err != nil {
			continue
		}
		if uint32(n) > max {
			max = uint32(n)
		}
	}
	return max
}

// findCatalog locates the last /Type /Catalog object and returns its
// number and the inner dictionary text without the outer delimiters.
func findCatalog(data []byte) (uint32, string, error) {
	var typeCatalogRe = regexp.MustCompile(`/Type\s*/Catalog\b`)

	headers := objectHeaderRe.FindAllSubmatchIndex(data, -1)
	for i := len(headers) - 1; i >= 0; i-- {
		start := headers[i][1]
		end := bytes.Index(data[start:], []byte("endobj"))
		if end < 0 {
			continue
		}
		body := data[start : start+end]
		if !typeCatalogRe.Match(body) {
			continue
		}

		dict, ok := outerDict(body)
		if !ok {
			continue
		}
		number, err := strconv.ParseUint(string(data[headers[i][2]:headers[i][3]]), 10, 32)
		if err != nil {
			continue
		}
		return uint32(number), dict, nil
	}
	return 0, "", fmt.Errorf("%w: no catalog object found", ErrPdfStructure)
}

// outerDict extracts the content of the outermost << >> pair,
// honoring nested dictionaries.
func outerDict(body []byte) (string, bool) {
	open := bytes.Index(body, []byte("<<"))
	if open < 0 {
		return "", false
	}
	depth := 0
	for i := open; i < len(body)-1; i++ {
		switch {
		case body[i] == '<' && body[i+1] == '<':
			depth++
			i++
		case body[i] == '>' && body[i+1] == '>':
			depth--
			if depth == 0 {
				return string(bytes.TrimSpace(body[open+2 : i])), true
			}
			i++
		}
	}
	return "", false
}
