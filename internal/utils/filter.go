package utils

import "unicode/utf8"

// IsPhoneticRune reports whether r belongs to the normalized phonetic alphabet:
// lowercase latin, the hyphen and apostrophe used by romaji input, hiragana,
// the prolonged sound mark and the hiragana iteration marks.
func IsPhoneticRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r == '-' || r == '\'':
		return true
	case r >= 'ぁ' && r <= 'ゖ':
		return true
	case r == 'ー' || r == 'ゝ' || r == 'ゞ':
		return true
	}
	return false
}

// FirstInvalid returns the rune offset and value of the first rune of s that is
// not phonetic. ok is false when every rune is valid.
func FirstInvalid(s string) (offset int, r rune, ok bool) {
	i := 0
	for _, c := range s {
		if c == utf8.RuneError || !IsPhoneticRune(c) {
			return i, c, true
		}
		i++
	}
	return 0, 0, false
}

// IsValidInput reports whether s is non-empty and made only of phonetic runes.
// s is expected to be normalized already.
func IsValidInput(s string) bool {
	if len(s) == 0 {
		return false
	}
	_, _, bad := FirstInvalid(s)
	return !bad
}

// IsRepetitive checks if a string is the same rune repeated three or more times,
// like "aaa". The CLI warns on these since they are usually stuck keys.
func IsRepetitive(s string) bool {
	if utf8.RuneCountInString(s) <= 2 {
		return false
	}
	first, _ := utf8.DecodeRuneInString(s)
	for _, r := range s {
		if r != first {
			return false
		}
	}
	return true
}
