package sign

import (
	"crypto"
	"crypto/x509"
	"errors"
	"io"
	"time"

	"github.com/digitorus/pdf"
	"github.com/mattetti/filebuffer"
)

var (
	// ErrPdfStructure is returned when the input has no usable
	// trailer, xref or page tree.
	ErrPdfStructure = errors.New("sign: invalid pdf structure")

	// ErrPlaceholderCapacity is returned when the encoded signature
	// does not fit the reserved /Contents slot.
	ErrPlaceholderCapacity = errors.New("sign: signature exceeds reserved placeholder")
)

// SignData describes one signing operation.
type SignData struct {
	Certificate      *x509.Certificate
	CertificateChain []*x509.Certificate
	Signer           crypto.Signer

	Name        string
	Location    string
	Reason      string
	ContactInfo string
	Date        time.Time

	// Capacity is the reserved /Contents size in bytes. Zero means
	// estimate from the key and chain.
	Capacity uint32

	// WithTimestamp reserves extra headroom for an RFC 3161 token.
	WithTimestamp bool
}

type CatalogData struct {
	ObjectId   uint32
	RootString string
}

type xrefEntry struct {
	ID     uint32
	Offset int64
}

// SignContext carries the state of one incremental signing update. It
// stays alive after Sign so that later stages can rewrite the
// fixed-width /Contents slot in place.
type SignContext struct {
	InputFile    io.ReadSeeker
	OutputBuffer *filebuffer.Buffer
	PDFReader    *pdf.Reader
	SignData     SignData
	CatalogData  CatalogData

	SignatureObjectId uint32
	WidgetObjectId    uint32

	NewXrefStart    int64
	ByteRangeValues []int64

	byteRangeStart    int64 // offset of the /ByteRange placeholder
	contentsHexStart  int64 // offset of the first hex digit in /Contents
	contentsHexLength int   // reserved slot width in hex characters

	lastXrefID     uint32
	newXrefEntries []xrefEntry
}
