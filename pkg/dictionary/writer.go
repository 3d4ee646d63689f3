package dictionary

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"
)

// WriteBinary encodes entries in the binary dictionary format. Entries are
// written in key order; the caller's slice is not modified.
func WriteBinary(w io.Writer, entries []Entry) error {
	if len(entries) > math.MaxInt32 {
		return fmt.Errorf("%w: %d entries", ErrTooLarge, len(entries))
	}
	sorted := slices.Clone(entries)
	SortEntries(sorted)

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(binaryMagic[:]); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, int32(len(sorted))); err != nil {
		return err
	}
	for _, e := range sorted {
		if err := writeString16(bw, e.Key); err != nil {
			return fmt.Errorf("entry %q: %w", e.Key, err)
		}
		if err := writeString16(bw, e.Surface); err != nil {
			return fmt.Errorf("entry %q: %w", e.Key, err)
		}
		if err := binary.Write(bw, binary.LittleEndian, e.Cost); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, e.Class); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeString16(w io.Writer, s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("%w: string of %d bytes does not fit", ErrMalformed, len(s))
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// WriteBinaryFile writes entries to a single binary dictionary file.
func WriteBinaryFile(path string, entries []Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteBinary(f, entries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteChunks splits entries into dict_NNNN.bin files of at most chunkSize
// entries each. A key never spans two chunks. Returns the number of chunks.
func WriteChunks(dir string, entries []Entry, chunkSize int) (int, error) {
	if chunkSize <= 0 {
		return 0, fmt.Errorf("invalid chunk size %d", chunkSize)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("create chunk directory: %w", err)
	}
	sorted := slices.Clone(entries)
	SortEntries(sorted)

	chunkID := 0
	for start := 0; start < len(sorted); {
		end := min(start+chunkSize, len(sorted))
		// keep homophones together
		for end < len(sorted) && end > start && sorted[end].Key == sorted[end-1].Key {
			end++
		}
		chunkID++
		name := filepath.Join(dir, fmt.Sprintf("dict_%04d.bin", chunkID))
		if err := WriteBinaryFile(name, sorted[start:end]); err != nil {
			return chunkID - 1, fmt.Errorf("write chunk %d: %w", chunkID, err)
		}
		log.Debugf("Wrote chunk %s with %d entries", name, end-start)
		start = end
	}
	return chunkID, nil
}
