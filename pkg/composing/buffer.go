// Package composing holds the mutable phonetic input that a conversion session
// edits before asking for candidates.
//
// A Buffer is a sequence of phonetic units (one rune each, after
// normalization) with a cursor that is always a valid insertion point.
// Deletions clamp to what is available in the requested direction; nothing in
// this package ever underflows or fails on an empty buffer.
//
// A Buffer is owned by a single session and is not safe for concurrent use.
package composing

import (
	"errors"
	"fmt"

	"github.com/bastiangx/kanaserve/internal/utils"
)

// ErrInvalidInput is returned when an insert carries non-phonetic symbols.
// The buffer is left unchanged.
var ErrInvalidInput = errors.New("composing: invalid phonetic input")

// Buffer is a cursor-addressable phonetic composing buffer.
type Buffer struct {
	units  []rune
	cursor int
}

// New returns an empty buffer with the cursor at 0.
func New() *Buffer {
	return &Buffer{units: make([]rune, 0, 32)}
}

// Insert normalizes text and inserts it at the cursor, moving the cursor past
// the inserted units. If any unit is not phonetic the buffer is untouched and
// an error wrapping ErrInvalidInput is returned.
func (b *Buffer) Insert(text string) error {
	if text == "" {
		return nil
	}
	normalized := utils.NormalizePhonetic(text)
	if off, r, bad := utils.FirstInvalid(normalized); bad {
		return fmt.Errorf("%w: %q at offset %d", ErrInvalidInput, r, off)
	}

	ins := []rune(normalized)
	b.units = append(b.units, ins...)
	copy(b.units[b.cursor+len(ins):], b.units[b.cursor:len(b.units)-len(ins)])
	copy(b.units[b.cursor:], ins)
	b.cursor += len(ins)
	return nil
}

// DeleteForward removes up to n units starting at the cursor. The cursor does
// not move. It returns the number of units removed.
func (b *Buffer) DeleteForward(n int) int {
	if n <= 0 {
		return 0
	}
	removed := min(n, len(b.units)-b.cursor)
	if removed == 0 {
		return 0
	}
	b.units = append(b.units[:b.cursor], b.units[b.cursor+removed:]...)
	return removed
}

// DeleteBackward removes up to n units ending at the cursor and moves the
// cursor back by the number removed, which is returned.
func (b *Buffer) DeleteBackward(n int) int {
	if n <= 0 {
		return 0
	}
	removed := min(n, b.cursor)
	if removed == 0 {
		return 0
	}
	start := b.cursor - removed
	b.units = append(b.units[:start], b.units[b.cursor:]...)
	b.cursor = start
	return removed
}

// MoveCursor shifts the cursor by delta, clamped to the buffer, and returns
// the new position.
func (b *Buffer) MoveCursor(delta int) int {
	return b.SetCursor(b.cursor + delta)
}

// SetCursor places the cursor at pos, clamped to [0, Len()].
func (b *Buffer) SetCursor(pos int) int {
	b.cursor = utils.ClampInt(pos, 0, len(b.units))
	return b.cursor
}

// Reset empties the buffer and puts the cursor back at 0.
func (b *Buffer) Reset() {
	b.units = b.units[:0]
	b.cursor = 0
}

// Len returns the number of units in the buffer.
func (b *Buffer) Len() int { return len(b.units) }

// Cursor returns the cursor position.
func (b *Buffer) Cursor() int { return b.cursor }

// IsEmpty reports whether the buffer holds no units.
func (b *Buffer) IsEmpty() bool { return len(b.units) == 0 }

// Units returns a copy of the units, safe to hand to a search worker.
func (b *Buffer) Units() []rune {
	out := make([]rune, len(b.units))
	copy(out, b.units)
	return out
}

// String returns the buffer contents as a string.
func (b *Buffer) String() string { return string(b.units) }

// Kana renders the buffer through the romaji table. See ToKana.
func (b *Buffer) Kana() string { return ToKana(string(b.units)) }
