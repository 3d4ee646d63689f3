package dictionary

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// FileFormat represents different dictionary file formats
type FileFormat int

const (
	FormatUnknown  FileFormat = iota
	FormatText                // key<TAB>surface<TAB>cost[<TAB>class] lines
	FormatBinary              // single binary file written by WriteBinary
	FormatChunkDir            // directory of dict_NNNN.bin binary chunks
	FormatSQLite              // SQLite database with an entries table
)

func (f FileFormat) String() string {
	if info, ok := supportedFormats[f]; ok {
		return info.Description
	}
	return "unknown"
}

// binaryMagic opens every binary dictionary and chunk file.
var binaryMagic = [4]byte{'K', 'S', 'D', '1'}

var sqliteMagic = []byte("SQLite format 3\x00")

// FormatInfo contains metadata about a dictionary file format
type FormatInfo struct {
	Format      FileFormat
	Description string
	Extensions  []string
	MinSize     int64 // Minimum expected file size in bytes
}

var supportedFormats = map[FileFormat]FormatInfo{
	FormatText: {
		Format:      FormatText,
		Description: "Plain Text Dictionary",
		Extensions:  []string{".txt", ".tsv", ".dic"},
		MinSize:     0,
	},
	FormatBinary: {
		Format:      FormatBinary,
		Description: "Binary Dictionary",
		Extensions:  []string{".bin"},
		MinSize:     8, // magic + entry count
	},
	FormatChunkDir: {
		Format:      FormatChunkDir,
		Description: "Chunked Binary Dictionary",
		Extensions:  nil,
		MinSize:     0,
	},
	FormatSQLite: {
		Format:      FormatSQLite,
		Description: "SQLite Dictionary",
		Extensions:  []string{".db", ".sqlite", ".sqlite3"},
		MinSize:     int64(len(sqliteMagic)),
	},
}

// DetectFileFormat works out which loader a path needs: directories holding
// dict_*.bin chunks, known extensions, and finally content sniffing.
func DetectFileFormat(path string) (FileFormat, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FormatUnknown, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	if info.IsDir() {
		chunks, err := listChunks(path)
		if err != nil {
			return FormatUnknown, err
		}
		if len(chunks) == 0 {
			return FormatUnknown, fmt.Errorf("%w: no dict_*.bin chunks in %s", ErrUnknownFormat, path)
		}
		return FormatChunkDir, nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	for format, fi := range supportedFormats {
		for _, e := range fi.Extensions {
			if e == ext {
				return format, nil
			}
		}
	}

	// No known extension: sniff the header.
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, err
	}
	defer f.Close()
	head := make([]byte, len(sqliteMagic))
	n, _ := io.ReadFull(f, head)
	head = head[:n]
	switch {
	case bytes.HasPrefix(head, sqliteMagic):
		return FormatSQLite, nil
	case bytes.HasPrefix(head, binaryMagic[:]):
		return FormatBinary, nil
	}
	return FormatUnknown, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// ValidateFileFormat runs the cheap header checks for a format before a full load.
func ValidateFileFormat(path string, format FileFormat, maxEntries int) error {
	formatInfo, exists := supportedFormats[format]
	if !exists {
		return fmt.Errorf("%w: %v", ErrUnknownFormat, format)
	}

	fileInfo, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if format != FormatChunkDir && fileInfo.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrUnknownFormat, path)
	}
	if fileInfo.Size() < formatInfo.MinSize {
		return fmt.Errorf("%w: file is too small (%d bytes) for %s (minimum: %d bytes)",
			ErrMalformed, fileInfo.Size(), formatInfo.Description, formatInfo.MinSize)
	}

	if format == FormatBinary {
		return validateBinaryHeader(path, maxEntries)
	}
	return nil
}

// validateBinaryHeader checks magic and entry count of a binary file.
func validateBinaryHeader(filename string, maxEntries int) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = readBinaryHeader(file, maxEntries)
	if err != nil {
		return err
	}
	return nil
}

// readBinaryHeader reads and checks the magic and entry count.
func readBinaryHeader(r io.Reader, maxEntries int) (int, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return 0, fmt.Errorf("%w: failed to read header: %v", ErrMalformed, err)
	}
	if magic != binaryMagic {
		return 0, fmt.Errorf("%w: bad magic %q", ErrMalformed, magic[:])
	}

	var count int32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return 0, fmt.Errorf("%w: failed to read entry count: %v", ErrMalformed, err)
	}
	if count < 0 {
		return 0, fmt.Errorf("%w: invalid entry count %d (negative)", ErrMalformed, count)
	}
	if maxEntries > 0 && int(count) > maxEntries {
		return 0, fmt.Errorf("%w: %d entries (limit %d)", ErrTooLarge, count, maxEntries)
	}
	log.Debugf("Binary header validated: %d entries", count)
	return int(count), nil
}

// GetFormatInfo returns information about a specific format
func GetFormatInfo(format FileFormat) (FormatInfo, bool) {
	info, exists := supportedFormats[format]
	return info, exists
}
