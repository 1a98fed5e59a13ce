// Package sign appends a PAdES signature to a PDF document as an
// incremental update: a signature dictionary with a fixed-width
// /Contents placeholder, an invisible signature widget, an updated
// catalog and an incremental xref section. The placeholder is filled
// with a detached CMS structure afterwards; its width never changes
// once the byte range has been fixed.
package sign

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	"github.com/digitorus/pdf"
	"github.com/mattetti/filebuffer"

	"github.com/pdfseal/pdfseal/cms"
)

// NewContext parses the input document and prepares a signing context.
func NewContext(input []byte, data SignData) (*SignContext, error) {
	if data.Certificate == nil {
		return nil, fmt.Errorf("sign: certificate is required")
	}
	if data.Signer != nil {
		if err := validateSignerCertificateMatch(data.Signer, data.Certificate); err != nil {
			return nil, fmt.Errorf("sign: signer does not match certificate: %w", err)
		}
	}
	if data.Date.IsZero() {
		data.Date = time.Now()
	}

	reader := bytes.NewReader(input)
	rdr, err := pdf.NewReader(reader, int64(len(input)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPdfStructure, err)
	}
	if rdr.XrefInformation.ItemCount == 0 {
		return nil, fmt.Errorf("%w: empty xref", ErrPdfStructure)
	}

	return &SignContext{
		InputFile:  reader,
		PDFReader:  rdr,
		SignData:   data,
		lastXrefID: uint32(rdr.XrefInformation.ItemCount) - 1,
	}, nil
}

// Reserve appends the signature dictionary, widget, catalog, xref and
// trailer, and patches /ByteRange once all byte positions are final.
// The /Contents slot is left as zero padding.
func (context *SignContext) Reserve() error {
	context.contentsHexLength = context.reservedHexLength()

	context.OutputBuffer = filebuffer.New([]byte{})
	if _, err := context.InputFile.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := io.Copy(context.OutputBuffer, context.InputFile); err != nil {
		return err
	}

	// The update needs its own line after the previous %%EOF.
	if _, err := context.OutputBuffer.Write([]byte("\n")); err != nil {
		return err
	}

	context.SignatureObjectId = context.nextObjectID()
	signatureObject, relByteRange, relContents := context.createSignaturePlaceholder()
	signatureOffset := context.bufferLen()
	if _, err := context.addObject(signatureObject); err != nil {
		return fmt.Errorf("failed to add signature object: %w", err)
	}
	context.byteRangeStart = signatureOffset + relByteRange
	context.contentsHexStart = signatureOffset + relContents

	context.WidgetObjectId = context.nextObjectID()
	widget, err := context.createWidget()
	if err != nil {
		return fmt.Errorf("failed to create signature widget: %w", err)
	}
	if _, err := context.addObject(widget); err != nil {
		return fmt.Errorf("failed to add signature widget: %w", err)
	}

	context.CatalogData.ObjectId = context.nextObjectID()
	catalog, err := context.createCatalog()
	if err != nil {
		return fmt.Errorf("failed to create catalog: %w", err)
	}
	if _, err := context.addObject(catalog); err != nil {
		return fmt.Errorf("failed to add catalog: %w", err)
	}

	context.NewXrefStart = context.bufferLen()
	if err := context.writeXref(); err != nil {
		return fmt.Errorf("failed to write xref: %w", err)
	}
	if err := context.writeTrailer(); err != nil {
		return fmt.Errorf("failed to write trailer: %w", err)
	}

	return context.updateByteRange()
}

// Sign hashes the byte-range segments, builds the detached CMS
// signature and writes it into the reserved slot.
func (context *SignContext) Sign() error {
	digest, err := context.Digest()
	if err != nil {
		return err
	}

	der, err := cms.SignDetached(cms.SignParams{
		Certificate: context.SignData.Certificate,
		Chain:       context.SignData.CertificateChain,
		Signer:      context.SignData.Signer,
		Digest:      digest,
		SigningTime: context.SignData.Date,
	})
	if err != nil {
		return err
	}

	return context.EmbedContents(der)
}

// SignBytes reserves a placeholder in input and fills it with a
// detached CMS signature in one call.
func SignBytes(input []byte, data SignData) (*SignContext, error) {
	context, err := NewContext(input, data)
	if err != nil {
		return nil, err
	}
	if err := context.Reserve(); err != nil {
		return nil, err
	}
	if err := context.Sign(); err != nil {
		return nil, err
	}
	return context, nil
}

// Digest returns the SHA-256 hash over the two /ByteRange segments.
func (context *SignContext) Digest() ([]byte, error) {
	if len(context.ByteRangeValues) != 4 {
		return nil, fmt.Errorf("%w: byte range not computed", ErrPdfStructure)
	}
	content := context.OutputBuffer.Buff.Bytes()
	br := context.ByteRangeValues

	h := sha256.New()
	h.Write(content[br[0] : br[0]+br[1]])
	h.Write(content[br[2] : br[2]+br[3]])
	return h.Sum(nil), nil
}

// Bytes returns a copy of the current document.
func (context *SignContext) Bytes() []byte {
	return append([]byte(nil), context.OutputBuffer.Buff.Bytes()...)
}

func (context *SignContext) nextObjectID() uint32 {
	return context.lastXrefID + uint32(len(context.newXrefEntries)) + 1
}

// addObject writes a complete "N 0 obj ... endobj" block and records
// its xref entry. The caller builds the block with nextObjectID.
func (context *SignContext) addObject(object []byte) (uint32, error) {
	id := context.nextObjectID()
	context.newXrefEntries = append(context.newXrefEntries, xrefEntry{ID: id, Offset: context.bufferLen()})
	if _, err := context.OutputBuffer.Write(object); err != nil {
		return 0, err
	}
	return id, nil
}

func (context *SignContext) bufferLen() int64 {
	return int64(context.OutputBuffer.Buff.Len())
}

// writeAt overwrites len(b) bytes at the given offset in place. The
// buffer's Write is append-only after a rewind, so patches go through
// the underlying bytes directly and the write position never moves.
func (context *SignContext) writeAt(offset int64, b []byte) error {
	buff := context.OutputBuffer.Buff.Bytes()
	if offset < 0 || offset+int64(len(b)) > int64(len(buff)) {
		return fmt.Errorf("%w: patch outside buffer", ErrPdfStructure)
	}
	copy(buff[offset:], b)
	return nil
}
