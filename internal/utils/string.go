package utils

import (
	"sync"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Kana ranges used for folding katakana onto hiragana.
const (
	katakanaFirst = 'ァ'
	katakanaLast  = 'ヶ'
	kanaOffset    = 'ァ' - 'ぁ'
)

// runeBufPool keeps scratch rune slices for normalization of short inputs.
var runeBufPool = sync.Pool{
	New: func() any {
		buf := make([]rune, 0, 32)
		return &buf
	},
}

// NormalizePhonetic folds raw keystroke text into the phonetic alphabet used
// for composing buffers and dictionary keys.
// NFKC takes fullwidth latin to ASCII and halfwidth katakana to fullwidth,
// then latin is lowercased and katakana is mapped onto hiragana.
// Runes outside the alphabet are passed through for the caller to reject.
func NormalizePhonetic(s string) string {
	if s == "" {
		return s
	}
	s = norm.NFKC.String(s)

	bufPtr := runeBufPool.Get().(*[]rune)
	buf := (*bufPtr)[:0]
	for _, r := range s {
		buf = append(buf, FoldRune(r))
	}
	out := string(buf)
	*bufPtr = buf
	runeBufPool.Put(bufPtr)
	return out
}

// FoldRune lowercases ASCII letters and maps katakana to hiragana.
func FoldRune(r rune) rune {
	switch {
	case r >= 'A' && r <= 'Z':
		return r + ('a' - 'A')
	case r >= katakanaFirst && r <= katakanaLast:
		return r - kanaOffset
	case r == 'ヽ' || r == 'ヾ':
		return r - kanaOffset
	}
	return r
}

// RuneLen counts the phonetic units in s.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}
