package utils

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhonetic(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"seido", "seido"},
		{"SeIdo", "seido"},
		{"ｓｅｉｄｏ", "seido"},
		{"セイド", "せいど"},
		{"ｾｲﾄﾞ", "せいど"},
		{"らーめん", "らーめん"},
		{"ヴ", "ゔ"},
		{"", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, NormalizePhonetic(tc.input))
		})
	}
}

func TestFirstInvalid(t *testing.T) {
	_, _, bad := FirstInvalid("kon'nichiha")
	assert.False(t, bad)

	off, r, bad := FirstInvalid("ab1c")
	require.True(t, bad)
	assert.Equal(t, 2, off)
	assert.Equal(t, '1', r)

	off, r, bad = FirstInvalid("せい漢")
	require.True(t, bad)
	assert.Equal(t, 2, off)
	assert.Equal(t, '漢', r)
}

func TestIsValidInput(t *testing.T) {
	assert.True(t, IsValidInput("tempu"))
	assert.True(t, IsValidInput("てんぷ"))
	assert.False(t, IsValidInput(""))
	assert.False(t, IsValidInput("hello world"))
	assert.False(t, IsValidInput("A"))
}

func TestIsRepetitive(t *testing.T) {
	assert.True(t, IsRepetitive("aaa"))
	assert.True(t, IsRepetitive("あああ"))
	assert.False(t, IsRepetitive("aa"))
	assert.False(t, IsRepetitive("aab"))
}

func TestFoldRune(t *testing.T) {
	assert.Equal(t, 'ひ', FoldRune('ヒ'))
	assert.Equal(t, 'a', FoldRune('A'))
	assert.Equal(t, 'ゝ', FoldRune('ヽ'))
	assert.Equal(t, 'ー', FoldRune('ー'))
}

func TestCandidateFilter(t *testing.T) {
	f := NewCandidateFilter("skip")
	assert.False(t, f.ShouldInclude("skip"))
	assert.True(t, f.ShouldInclude("制度"))
	assert.False(t, f.ShouldInclude("制度"))
	assert.True(t, f.ShouldInclude("精度"))
	assert.Equal(t, 3, f.Seen())
}

func TestCreateRankList(t *testing.T) {
	assert.Equal(t, []uint16{}, CreateRankList(0))
	assert.Equal(t, []uint16{1, 2, 3}, CreateRankList(3))
}

func TestTOMLRecoveryHelpers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.toml")
	require.NoError(t, SaveTOMLFile(map[string]any{
		"convert": map[string]any{"max_candidates": 12, "prediction": true, "label": "x"},
	}, path))

	data, err := ParseTOMLWithRecovery(path)
	require.NoError(t, err)

	section, ok := ExtractSection(data, "convert")
	require.True(t, ok)

	n, ok := ExtractInt64(section, "max_candidates")
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	b, ok := ExtractBool(section, "prediction")
	assert.True(t, ok)
	assert.True(t, b)

	s, ok := ExtractString(section, "label")
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	_, ok = ExtractInt64(section, "missing")
	assert.False(t, ok)
}
