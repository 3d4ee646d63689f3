package composing

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAdvancesCursor(t *testing.T) {
	b := New()
	require.NoError(t, b.Insert("seido"))
	assert.Equal(t, "seido", b.String())
	assert.Equal(t, 5, b.Len())
	assert.Equal(t, 5, b.Cursor())

	b.SetCursor(2)
	require.NoError(t, b.Insert("XY"))
	assert.Equal(t, "sexyido", b.String())
	assert.Equal(t, 4, b.Cursor())
}

func TestInsertNormalizes(t *testing.T) {
	b := New()
	require.NoError(t, b.Insert("ｾｲﾄﾞ"))
	assert.Equal(t, "せいど", b.String())
	assert.Equal(t, 3, b.Len())
}

func TestInsertRejectsInvalidInput(t *testing.T) {
	b := New()
	require.NoError(t, b.Insert("abc"))
	b.SetCursor(1)

	err := b.Insert("d7e")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "abc", b.String())
	assert.Equal(t, 1, b.Cursor())

	err = b.Insert("漢字")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "abc", b.String())
}

func TestInsertEmptyIsNoop(t *testing.T) {
	b := New()
	require.NoError(t, b.Insert(""))
	assert.True(t, b.IsEmpty())
}

func TestDeleteForwardClamps(t *testing.T) {
	b := New()
	require.NoError(t, b.Insert("ab"))
	b.SetCursor(0)

	removed := b.DeleteForward(5)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 0, b.Cursor())
}

func TestDeleteForwardKeepsCursor(t *testing.T) {
	b := New()
	require.NoError(t, b.Insert("abcde"))
	b.SetCursor(1)

	assert.Equal(t, 2, b.DeleteForward(2))
	assert.Equal(t, "ade", b.String())
	assert.Equal(t, 1, b.Cursor())

	b.SetCursor(b.Len())
	assert.Equal(t, 0, b.DeleteForward(3))
	assert.Equal(t, "ade", b.String())
}

func TestDeleteBackwardClamps(t *testing.T) {
	b := New()
	require.NoError(t, b.Insert("abcde"))
	b.SetCursor(3)

	assert.Equal(t, 2, b.DeleteBackward(2))
	assert.Equal(t, "ade", b.String())
	assert.Equal(t, 1, b.Cursor())

	assert.Equal(t, 1, b.DeleteBackward(10))
	assert.Equal(t, "de", b.String())
	assert.Equal(t, 0, b.Cursor())
}

func TestDeleteOnEmptyBufferIsNoop(t *testing.T) {
	b := New()
	assert.Equal(t, 0, b.DeleteBackward(3))
	assert.Equal(t, 0, b.DeleteForward(3))
	assert.Equal(t, 0, b.DeleteForward(-1))
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 0, b.Cursor())
}

func TestMoveCursorClamps(t *testing.T) {
	b := New()
	require.NoError(t, b.Insert("abc"))
	assert.Equal(t, 0, b.MoveCursor(-10))
	assert.Equal(t, 2, b.MoveCursor(2))
	assert.Equal(t, 3, b.MoveCursor(99))
}

func TestResetEmptiesBuffer(t *testing.T) {
	b := New()
	require.NoError(t, b.Insert("seido"))
	b.SetCursor(2)
	b.Reset()
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 0, b.Cursor())
	assert.Equal(t, "", b.String())
}

func TestUnitsReturnsCopy(t *testing.T) {
	b := New()
	require.NoError(t, b.Insert("abc"))
	units := b.Units()
	units[0] = 'z'
	assert.Equal(t, "abc", b.String())
}

// Random edit sequences must keep 0 <= cursor <= len.
func TestRandomEditsKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	inputs := []string{"a", "ka", "せい", "do", "", "x1"}
	b := New()

	for i := 0; i < 5000; i++ {
		before := b.Len()
		switch rng.Intn(6) {
		case 0:
			_ = b.Insert(inputs[rng.Intn(len(inputs))])
		case 1:
			n := rng.Intn(4)
			removed := b.DeleteForward(n)
			assert.Equal(t, before-removed, b.Len())
		case 2:
			n := rng.Intn(4)
			removed := b.DeleteBackward(n)
			assert.Equal(t, before-removed, b.Len())
		case 3:
			b.MoveCursor(rng.Intn(7) - 3)
		case 4:
			b.SetCursor(rng.Intn(12) - 2)
		case 5:
			if rng.Intn(20) == 0 {
				b.Reset()
			}
		}
		require.GreaterOrEqual(t, b.Len(), 0)
		require.GreaterOrEqual(t, b.Cursor(), 0)
		require.LessOrEqual(t, b.Cursor(), b.Len())
	}
}

func TestToKana(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"seido", "せいど"},
		{"kitte", "きって"},
		{"shinbun", "しんぶn"},
		{"kyouto", "きょうと"},
		{"tsukue", "つくえ"},
		{"n'ai", "んあい"},
		{"sak", "さk"},
		{"らーめん", "らーめん"},
		{"ra-men", "らーめn"},
		{"", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, ToKana(tc.input))
		})
	}
}

func TestBufferKana(t *testing.T) {
	b := New()
	require.NoError(t, b.Insert("seido"))
	assert.Equal(t, "せいど", b.Kana())
}

func TestTransliterateOffsets(t *testing.T) {
	testCases := []struct {
		input   string
		kana    string
		offsets []int
	}{
		{"seido", "せいど", []int{0, 2, 3, 5}},
		{"shasin", "しゃしn", []int{0, -1, 3, 5, 6}},
		{"kitte", "きって", []int{0, 2, 3, 5}},
		{"せいど", "せいど", []int{0, 1, 2, 3}},
		{"", "", []int{0}},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			r := Transliterate([]rune(tc.input))
			assert.Equal(t, tc.kana, string(r.Kana))
			assert.Equal(t, tc.offsets, r.Offsets)
			assert.Equal(t, tc.input == tc.kana, r.Same([]rune(tc.input)))
		})
	}
}
