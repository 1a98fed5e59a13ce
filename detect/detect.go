// Package detect heuristically scans arbitrary PDF buffers for
// signature and long-term-validation markers and extracts the
// signature metadata. It is a pure presence detector over the raw
// bytes; nothing cryptographic is checked and the input need not
// originate from this module.
package detect

import (
	"bytes"
	"compress/zlib"
	"io"
	"regexp"
	"time"

	"github.com/pdfseal/pdfseal/common"
)

// maxInflatedStreams caps how many FlateDecode streams are inflated
// while looking for DSS markers hidden in object streams.
const maxInflatedStreams = 50

var (
	typeSigRe   = regexp.MustCompile(`(?i)/Type\s*/Sig\b`)
	fieldSigRe  = regexp.MustCompile(`(?i)/FT\s*/Sig\b`)
	subFilterRe = regexp.MustCompile(`(?i)/SubFilter\s*/adbe\.pkcs7`)

	dssRefRe  = regexp.MustCompile(`(?i)/DSS\s+\d+\s+\d+\s+R`)
	dssTypeRe = regexp.MustCompile(`(?i)/Type\s*/DSS\b`)
	vriTypeRe = regexp.MustCompile(`(?i)/Type\s*/VRI\b`)

	streamRe = regexp.MustCompile(`(?s)stream\r?\n(.*?)endstream`)
	flateRe  = regexp.MustCompile(`(?i)/Filter\s*/FlateDecode`)

	nameRe     = regexp.MustCompile(`/Name\s*\(((?:\\.|[^\\()])*)\)`)
	widgetTRe  = regexp.MustCompile(`/T\s*\(((?:\\.|[^\\()])*)\)`)
	reasonRe   = regexp.MustCompile(`/Reason\s*\(((?:\\.|[^\\()])*)\)`)
	locationRe = regexp.MustCompile(`/Location\s*\(((?:\\.|[^\\()])*)\)`)
	dateRe     = regexp.MustCompile(`/M\s*\(D:(\d{14})`)
)

// Scan inspects a PDF buffer for signature presence, LTV material and
// signature metadata.
func Scan(data []byte) common.SignatureDescriptor {
	var d common.SignatureDescriptor

	d.HasSignature = typeSigRe.Match(data) || fieldSigRe.Match(data) || subFilterRe.Match(data)
	if !d.HasSignature {
		return d
	}

	d.HasLTV = hasLTV(data)

	if m := nameRe.FindSubmatch(data); m != nil {
		d.Signer = Unescape(string(m[1]))
	} else if m := widgetTRe.FindSubmatch(data); m != nil {
		d.Signer = Unescape(string(m[1]))
	} else {
		d.Signer = "Signature1"
	}

	if m := reasonRe.FindSubmatch(data); m != nil {
		d.Reason = Unescape(string(m[1]))
	}
	if m := locationRe.FindSubmatch(data); m != nil {
		d.Location = Unescape(string(m[1]))
	}
	if m := dateRe.FindSubmatch(data); m != nil {
		if t, err := time.Parse("20060102150405", string(m[1])); err == nil {
			d.Date = t.Format("02/01/2006 15:04:05")
		}
	}

	return d
}

// hasLTV resolves the LTV markers in priority order: the catalog's
// /DSS reference, a /Type /DSS object, DSS markers hidden inside
// FlateDecode streams, and finally per-signature /Type /VRI objects.
func hasLTV(data []byte) bool {
	if dssRefRe.Match(data) || dssTypeRe.Match(data) {
		return true
	}

	inflated := 0
	for _, match := range streamRe.FindAllSubmatchIndex(data, -1) {
		if inflated >= maxInflatedStreams {
			break
		}
		body := data[match[2]:match[3]]

		// Non-Flate stream bodies were already covered by the raw
		// buffer scan above; only compressed ones hide markers.
		if !flateCoded(data, match[0]) {
			continue
		}
		inflated++

		plain, err := inflate(body)
		if err != nil {
			continue
		}
		if dssRefRe.Match(plain) || dssTypeRe.Match(plain) || vriTypeRe.Match(plain) {
			return true
		}
	}

	return vriTypeRe.Match(data)
}

// flateCoded reports whether the stream starting at streamPos belongs
// to a dictionary declaring /Filter /FlateDecode. The dictionary sits
// directly before the stream keyword.
func flateCoded(data []byte, streamPos int) bool {
	from := streamPos - 512
	if from < 0 {
		from = 0
	}
	dict := data[from:streamPos]
	open := bytes.LastIndex(dict, []byte("<<"))
	if open < 0 {
		return false
	}
	return flateRe.Match(dict[open:])
}

func inflate(body []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(io.LimitReader(r, 10<<20))
}
