// Package dictionary loads conversion dictionaries and serves the
// common-prefix lookups the lattice builder runs for every buffer position.
//
// An Index is immutable once built: any number of sessions may read it
// concurrently without locking. Dictionaries come from plain text, the binary
// format written by WriteBinary, a directory of binary chunks, or a SQLite
// database; every loader applies the same structural checks and reports
// failures as *LoadError.
package dictionary

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

// Entry is one reading/surface pair.
type Entry struct {
	// Key is the normalized phonetic reading.
	Key string
	// Surface is the text the reading converts to.
	Surface string
	// Cost is the base cost; lower is more likely.
	Cost int32
	// Class is an opaque part-of-speech id consumed by the scorer.
	Class uint16
}

// compareEntries orders homophones deterministically: cost, then surface, then class.
func compareEntries(a, b Entry) int {
	if c := cmp.Compare(a.Cost, b.Cost); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Surface, b.Surface); c != 0 {
		return c
	}
	return cmp.Compare(a.Class, b.Class)
}

// SortEntries sorts entries by key and then by compareEntries.
func SortEntries(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		if c := cmp.Compare(a.Key, b.Key); c != 0 {
			return c
		}
		return compareEntries(a, b)
	})
}

var (
	// ErrLoad matches every dictionary load failure via errors.Is.
	ErrLoad = errors.New("dictionary: load failed")

	ErrNotFound      = errors.New("dictionary: resource not found")
	ErrUnknownFormat = errors.New("dictionary: unknown format")
	ErrMalformed     = errors.New("dictionary: malformed record")
	ErrUnsorted      = errors.New("dictionary: keys out of order")
	ErrInvalidKey    = errors.New("dictionary: invalid key characters")
	ErrTooLarge      = errors.New("dictionary: suspicious entry count")
)

// LoadError describes why a dictionary resource could not be loaded.
type LoadError struct {
	Path string
	// Line is the 1-based line or record number, 0 when not applicable.
	Line int
	Err  error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("dictionary %s: record %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("dictionary %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrLoad) match any LoadError.
func (e *LoadError) Is(target error) bool { return target == ErrLoad }

func loadErr(path string, line int, err error) *LoadError {
	return &LoadError{Path: path, Line: line, Err: err}
}
