package composing

import (
	"slices"
	"strings"
)

// romajiTable maps romaji syllables to hiragana. Lookups try the longest key
// first, so "sha" wins over "s"+"ha".
var romajiTable = map[string]string{
	"a": "あ", "i": "い", "u": "う", "e": "え", "o": "お",
	"ka": "か", "ki": "き", "ku": "く", "ke": "け", "ko": "こ",
	"sa": "さ", "si": "し", "su": "す", "se": "せ", "so": "そ",
	"ta": "た", "ti": "ち", "tu": "つ", "te": "て", "to": "と",
	"na": "な", "ni": "に", "nu": "ぬ", "ne": "ね", "no": "の",
	"ha": "は", "hi": "ひ", "hu": "ふ", "he": "へ", "ho": "ほ",
	"ma": "ま", "mi": "み", "mu": "む", "me": "め", "mo": "も",
	"ya": "や", "yu": "ゆ", "yo": "よ",
	"ra": "ら", "ri": "り", "ru": "る", "re": "れ", "ro": "ろ",
	"wa": "わ", "wi": "うぃ", "we": "うぇ", "wo": "を",
	"ga": "が", "gi": "ぎ", "gu": "ぐ", "ge": "げ", "go": "ご",
	"za": "ざ", "zi": "じ", "zu": "ず", "ze": "ぜ", "zo": "ぞ",
	"da": "だ", "di": "ぢ", "du": "づ", "de": "で", "do": "ど",
	"ba": "ば", "bi": "び", "bu": "ぶ", "be": "べ", "bo": "ぼ",
	"pa": "ぱ", "pi": "ぴ", "pu": "ぷ", "pe": "ぺ", "po": "ぽ",
	"va": "ゔぁ", "vi": "ゔぃ", "vu": "ゔ", "ve": "ゔぇ", "vo": "ゔぉ",
	"fa": "ふぁ", "fi": "ふぃ", "fu": "ふ", "fe": "ふぇ", "fo": "ふぉ",
	"ja": "じゃ", "ji": "じ", "ju": "じゅ", "je": "じぇ", "jo": "じょ",
	"shi": "し", "sha": "しゃ", "shu": "しゅ", "she": "しぇ", "sho": "しょ",
	"chi": "ち", "cha": "ちゃ", "chu": "ちゅ", "che": "ちぇ", "cho": "ちょ",
	"tsu": "つ", "thi": "てぃ", "dhi": "でぃ", "dhu": "でゅ", "twu": "とぅ",
	"kya": "きゃ", "kyu": "きゅ", "kyo": "きょ",
	"gya": "ぎゃ", "gyu": "ぎゅ", "gyo": "ぎょ",
	"sya": "しゃ", "syu": "しゅ", "syo": "しょ",
	"zya": "じゃ", "zyu": "じゅ", "zyo": "じょ",
	"jya": "じゃ", "jyu": "じゅ", "jyo": "じょ",
	"tya": "ちゃ", "tyu": "ちゅ", "tyo": "ちょ",
	"cya": "ちゃ", "cyu": "ちゅ", "cyo": "ちょ",
	"dya": "ぢゃ", "dyu": "ぢゅ", "dyo": "ぢょ",
	"nya": "にゃ", "nyu": "にゅ", "nyo": "にょ",
	"hya": "ひゃ", "hyu": "ひゅ", "hyo": "ひょ",
	"bya": "びゃ", "byu": "びゅ", "byo": "びょ",
	"pya": "ぴゃ", "pyu": "ぴゅ", "pyo": "ぴょ",
	"mya": "みゃ", "myu": "みゅ", "myo": "みょ",
	"rya": "りゃ", "ryu": "りゅ", "ryo": "りょ",
	"xa": "ぁ", "xi": "ぃ", "xu": "ぅ", "xe": "ぇ", "xo": "ぉ",
	"la": "ぁ", "li": "ぃ", "lu": "ぅ", "le": "ぇ", "lo": "ぉ",
	"xya": "ゃ", "xyu": "ゅ", "xyo": "ょ", "lya": "ゃ", "lyu": "ゅ", "lyo": "ょ",
	"xtu": "っ", "ltu": "っ", "xtsu": "っ", "ltsu": "っ", "xwa": "ゎ", "lwa": "ゎ",
	"nn": "ん", "n'": "ん", "xn": "ん",
	"-": "ー",
}

const maxRomajiKey = 4

// ToKana converts romaji in s to hiragana. Kana already in s is kept.
// An unfinished syllable at the end (e.g. the "k" of "sak") stays as latin
// letters, and a lone trailing "n" is kept as "n" since the next keystroke may
// still turn it into "な" or "に".
func ToKana(s string) string {
	if s == "" {
		return s
	}
	var out strings.Builder
	out.Grow(len(s))
	walkRomaji([]rune(s), func(kana string, _ int) {
		out.WriteString(kana)
	})
	return out.String()
}

// Reading is the kana rendering of a run of input units.
type Reading struct {
	Kana []rune
	// Offsets has len(Kana)+1 entries. Offsets[i] is the input unit where
	// kana rune i begins, or -1 when rune i is the tail of a multi-rune
	// syllable such as the "ゃ" of "sha". The last entry is the input length.
	Offsets []int
}

// Transliterate renders units as kana and records where each kana rune came
// from in the input.
func Transliterate(units []rune) Reading {
	r := Reading{
		Kana:    make([]rune, 0, len(units)),
		Offsets: make([]int, 0, len(units)+1),
	}
	walkRomaji(units, func(kana string, start int) {
		first := true
		for _, k := range kana {
			r.Kana = append(r.Kana, k)
			if first {
				r.Offsets = append(r.Offsets, start)
				first = false
			} else {
				r.Offsets = append(r.Offsets, -1)
			}
		}
	})
	r.Offsets = append(r.Offsets, len(units))
	return r
}

// Same reports whether the rendering is identical to units.
func (r Reading) Same(units []rune) bool {
	return slices.Equal(r.Kana, units)
}

// walkRomaji splits in into syllables and calls emit with each syllable's
// output and the input unit it starts at.
func walkRomaji(in []rune, emit func(kana string, start int)) {
	for i := 0; i < len(in); {
		r := in[i]
		if !isLatin(r) {
			emit(string(r), i)
			i++
			continue
		}

		// sokuon: a doubled consonant other than n
		if i+1 < len(in) && r == in[i+1] && isConsonant(r) && r != 'n' {
			emit("っ", i)
			i++
			continue
		}

		// n before a consonant other than y reads as ん
		if r == 'n' && i+1 < len(in) && isConsonant(in[i+1]) && in[i+1] != 'y' && in[i+1] != 'n' {
			emit("ん", i)
			i++
			continue
		}

		matched := false
		for l := min(maxRomajiKey, len(in)-i); l > 0; l-- {
			if kana, ok := romajiTable[string(in[i:i+l])]; ok {
				emit(kana, i)
				i += l
				matched = true
				break
			}
		}
		if !matched {
			emit(string(r), i)
			i++
		}
	}
}

func isLatin(r rune) bool {
	return (r >= 'a' && r <= 'z') || r == '-' || r == '\''
}

func isConsonant(r rune) bool {
	if r < 'a' || r > 'z' {
		return false
	}
	switch r {
	case 'a', 'i', 'u', 'e', 'o':
		return false
	}
	return true
}
