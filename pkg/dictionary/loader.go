package dictionary

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultMaxEntries is the sanity bound on the number of entries a single
// dictionary resource may declare.
const DefaultMaxEntries = 5_000_000

// LoadOptions tunes dictionary loading.
type LoadOptions struct {
	// MaxEntries rejects resources declaring more entries. 0 means DefaultMaxEntries.
	MaxEntries int
}

func (o LoadOptions) maxEntries() int {
	if o.MaxEntries <= 0 {
		return DefaultMaxEntries
	}
	return o.MaxEntries
}

// ChunkInfo contains metadata about a chunk file
type ChunkInfo struct {
	ChunkID    int
	Filename   string
	EntryCount int
}

// Load reads the dictionary at path in whichever supported format it is in
// and builds an Index. All failures are *LoadError.
func Load(path string, opts LoadOptions) (*Index, error) {
	start := time.Now()
	maxEntries := opts.maxEntries()

	format, err := DetectFileFormat(path)
	if err != nil {
		return nil, asLoadError(path, err)
	}
	if err := ValidateFileFormat(path, format, maxEntries); err != nil {
		return nil, asLoadError(path, err)
	}

	var entries []Entry
	switch format {
	case FormatText:
		entries, err = loadTextFile(path, maxEntries)
	case FormatBinary:
		entries, err = loadBinaryFile(path, maxEntries)
	case FormatChunkDir:
		entries, err = loadChunkDir(path, maxEntries)
	case FormatSQLite:
		entries, err = loadSQLite(path, maxEntries)
	default:
		err = fmt.Errorf("%w: %v", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, asLoadError(path, err)
	}

	idx := NewIndex(path, entries)
	kind := format.String()
	if info, ok := GetFormatInfo(format); ok {
		kind = info.Description
	}
	log.Debugf("Loaded %s dictionary %s: %d keys, %d entries in %v",
		kind, path, idx.Len(), len(entries), time.Since(start))
	return idx, nil
}

// asLoadError keeps an existing *LoadError and wraps anything else.
func asLoadError(path string, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		return le
	}
	return loadErr(path, 0, err)
}

// ReadText parses text dictionary lines from r:
//
//	key<TAB>surface<TAB>cost[<TAB>class]
//
// Blank lines and lines starting with '#' are skipped.
func ReadText(r io.Reader, path string, maxEntries int) ([]Entry, error) {
	chk := newRecordChecker(path, maxEntries)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var entries []Entry
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Split(text, "\t")
		if len(fields) < 3 || len(fields) > 4 {
			return nil, loadErr(path, line, fmt.Errorf("%w: want 3 or 4 tab-separated fields, got %d", ErrMalformed, len(fields)))
		}
		cost, err := strconv.ParseInt(strings.TrimSpace(fields[2]), 10, 32)
		if err != nil {
			return nil, loadErr(path, line, fmt.Errorf("%w: cost %q", ErrMalformed, fields[2]))
		}
		var class uint64
		if len(fields) == 4 {
			class, err = strconv.ParseUint(strings.TrimSpace(fields[3]), 10, 16)
			if err != nil {
				return nil, loadErr(path, line, fmt.Errorf("%w: class %q", ErrMalformed, fields[3]))
			}
		}

		e := Entry{Key: fields[0], Surface: fields[1], Cost: int32(cost), Class: uint16(class)}
		if err := chk.check(&e, line); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, loadErr(path, line, err)
	}
	return entries, nil
}

func loadTextFile(path string, maxEntries int) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadText(f, path, maxEntries)
}

// ReadBinary decodes a binary dictionary stream written by WriteBinary.
func ReadBinary(r io.Reader, path string, maxEntries int) ([]Entry, error) {
	reader := bufio.NewReader(r)
	count, err := readBinaryHeader(reader, maxEntries)
	if err != nil {
		return nil, loadErr(path, 0, err)
	}

	chk := newRecordChecker(path, maxEntries)
	entries := make([]Entry, 0, min(count, 1<<16))
	for i := 1; i <= count; i++ {
		e, err := readBinaryRecord(reader)
		if err != nil {
			return nil, loadErr(path, i, err)
		}
		if err := chk.check(&e, i); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if _, err := reader.Peek(1); err != io.EOF {
		return nil, loadErr(path, 0, fmt.Errorf("%w: trailing data after %d entries", ErrMalformed, count))
	}
	return entries, nil
}

func readBinaryRecord(r *bufio.Reader) (Entry, error) {
	key, err := readString16(r)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: key: %v", ErrMalformed, err)
	}
	surface, err := readString16(r)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: surface: %v", ErrMalformed, err)
	}
	var fixed struct {
		Cost  int32
		Class uint16
	}
	if err := binary.Read(r, binary.LittleEndian, &fixed); err != nil {
		return Entry{}, fmt.Errorf("%w: cost/class: %v", ErrMalformed, err)
	}
	return Entry{Key: key, Surface: surface, Cost: fixed.Cost, Class: fixed.Class}, nil
}

func readString16(r *bufio.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func loadBinaryFile(path string, maxEntries int) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadBinary(f, path, maxEntries)
}

// listChunks scans dir for dict_NNNN.bin files, ordered by chunk ID.
func listChunks(dir string) ([]ChunkInfo, error) {
	files, err := filepath.Glob(filepath.Join(dir, "dict_*.bin"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan for chunk files: %w", err)
	}

	var chunks []ChunkInfo
	for _, file := range files {
		idStr := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(file), "dict_"), ".bin")
		chunkID, err := strconv.Atoi(idStr)
		if err != nil {
			log.Warnf("Skipping chunk with non-numeric id: %s", file)
			continue
		}
		chunks = append(chunks, ChunkInfo{ChunkID: chunkID, Filename: file})
	}

	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].ChunkID < chunks[j].ChunkID
	})
	return chunks, nil
}

// loadChunkDir reads every chunk concurrently, then merges them in chunk ID
// order. Key order must hold across chunk boundaries too.
func loadChunkDir(dir string, maxEntries int) ([]Entry, error) {
	chunks, err := listChunks(dir)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunk files found in %s", ErrUnknownFormat, dir)
	}
	log.Debugf("Found %d chunk files", len(chunks))

	results := make([][]Entry, len(chunks))
	errs := make([]error, len(chunks))
	var wg sync.WaitGroup
	for i := range chunks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = loadBinaryFile(chunks[i].Filename, maxEntries)
			if errs[i] == nil {
				chunks[i].EntryCount = len(results[i])
			}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, asLoadError(chunks[i].Filename, err)
		}
	}

	total := 0
	for i, part := range results {
		total += len(part)
		if total > maxEntries {
			return nil, loadErr(dir, 0, fmt.Errorf("%w: more than %d entries", ErrTooLarge, maxEntries))
		}
		if i > 0 && len(part) > 0 {
			prev := lastKey(results[:i])
			if prev != "" && part[0].Key < prev {
				return nil, loadErr(chunks[i].Filename, 1,
					fmt.Errorf("%w: chunk %d starts with %q after %q", ErrUnsorted, chunks[i].ChunkID, part[0].Key, prev))
			}
		}
	}

	entries := make([]Entry, 0, total)
	for i, part := range results {
		log.Debugf("Chunk %d (%s): %d entries", chunks[i].ChunkID, filepath.Base(chunks[i].Filename), chunks[i].EntryCount)
		entries = append(entries, part...)
	}
	return entries, nil
}

func lastKey(parts [][]Entry) string {
	for i := len(parts) - 1; i >= 0; i-- {
		if n := len(parts[i]); n > 0 {
			return parts[i][n-1].Key
		}
	}
	return ""
}
