package sign

import (
	"fmt"
)

// writeIncrXrefTable appends a classic incremental xref table holding
// one contiguous subsection for the new objects.
func (context *SignContext) writeIncrXrefTable() error {
	if _, err := context.OutputBuffer.Write([]byte("xref\n")); err != nil {
		return fmt.Errorf("failed to write xref header: %w", err)
	}

	subsection := fmt.Sprintf("%d %d\n", context.lastXrefID+1, len(context.newXrefEntries))
	if _, err := context.OutputBuffer.Write([]byte(subsection)); err != nil {
		return fmt.Errorf("failed to write xref subsection header: %w", err)
	}

	for _, entry := range context.newXrefEntries {
		// Each entry is exactly 20 bytes.
		line := fmt.Sprintf("%010d 00000 n\r\n", entry.Offset)
		if _, err := context.OutputBuffer.Write([]byte(line)); err != nil {
			return fmt.Errorf("failed to write xref entry: %w", err)
		}
	}

	return nil
}
