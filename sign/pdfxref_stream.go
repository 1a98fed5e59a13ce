package sign

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// writeXrefStream appends a cross-reference stream object covering the
// new objects, itself included.
func (context *SignContext) writeXrefStream() error {
	id := context.nextObjectID()
	context.newXrefEntries = append(context.newXrefEntries, xrefEntry{ID: id, Offset: context.NewXrefStart})

	var entries bytes.Buffer
	for _, entry := range context.newXrefEntries {
		writeXrefStreamLine(&entries, 1, int(entry.Offset), 0)
	}

	streamBytes, err := flateCompress(entries.Bytes())
	if err != nil {
		return fmt.Errorf("failed to encode xref stream: %w", err)
	}

	totalSize := int64(context.lastXrefID) + int64(len(context.newXrefEntries)) + 1

	var object bytes.Buffer
	fmt.Fprintf(&object, "%d 0 obj\n", id)
	object.WriteString("<< /Type /XRef\n")
	fmt.Fprintf(&object, "  /Length %d\n", len(streamBytes))
	object.WriteString("  /Filter /FlateDecode\n")
	object.WriteString("  /W [ 1 4 1 ]\n")
	fmt.Fprintf(&object, "  /Prev %d\n", context.PDFReader.XrefInformation.StartPos)
	fmt.Fprintf(&object, "  /Size %d\n", totalSize)
	fmt.Fprintf(&object, "  /Index [ %d %d ]\n", context.lastXrefID+1, len(context.newXrefEntries))
	fmt.Fprintf(&object, "  /Root %d 0 R\n", context.CatalogData.ObjectId)

	trailerID := context.PDFReader.Trailer().Key("ID")
	if !trailerID.IsNull() {
		id0 := hex.EncodeToString([]byte(trailerID.Index(0).RawString()))
		id1 := hex.EncodeToString([]byte(trailerID.Index(1).RawString()))
		fmt.Fprintf(&object, "  /ID [<%s><%s>]\n", id0, id1)
	}

	object.WriteString(">>\n")
	object.WriteString("stream\n")
	object.Write(streamBytes)
	object.WriteString("\nendstream\nendobj\n")

	if _, err := context.OutputBuffer.Write(object.Bytes()); err != nil {
		return fmt.Errorf("failed to write xref stream object: %w", err)
	}
	return nil
}

// writeXrefStreamLine writes one [type offset generation] row in the
// fixed 1+4+1 byte layout declared by /W.
func writeXrefStreamLine(b *bytes.Buffer, xreftype byte, offset int, gen byte) {
	b.WriteByte(xreftype)

	offsetBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(offsetBytes, uint32(offset))
	b.Write(offsetBytes)

	b.WriteByte(gen)
}

func flateCompress(data []byte) ([]byte, error) {
	var b bytes.Buffer
	w := zlib.NewWriter(&b)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
