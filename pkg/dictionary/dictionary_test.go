package dictionary

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntries() []Entry {
	return []Entry{
		{Key: "seido", Surface: "精度", Cost: 2},
		{Key: "se", Surface: "背", Cost: 30, Class: 1},
		{Key: "seido", Surface: "制度", Cost: 1},
		{Key: "sei", Surface: "性", Cost: 10, Class: 2},
		{Key: "tem", Surface: "天", Cost: 5},
		{Key: "せいど", Surface: "制度", Cost: 1},
		{Key: "せい", Surface: "性", Cost: 10},
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestCommonPrefixesShortestFirst(t *testing.T) {
	idx := NewIndex("mem", sampleEntries())

	var units []int
	var surfaces []string
	err := idx.CommonPrefixes("seidoka", func(n int, entries []Entry) error {
		units = append(units, n)
		for _, e := range entries {
			surfaces = append(surfaces, e.Surface)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 5}, units)
	assert.Equal(t, []string{"背", "性", "制度", "精度"}, surfaces)
}

func TestCommonPrefixesCountsRunes(t *testing.T) {
	idx := NewIndex("mem", sampleEntries())

	var units []int
	require.NoError(t, idx.CommonPrefixes("せいどか", func(n int, _ []Entry) error {
		units = append(units, n)
		return nil
	}))
	assert.Equal(t, []int{2, 3}, units)
}

func TestCommonPrefixesStopsOnError(t *testing.T) {
	idx := NewIndex("mem", sampleEntries())
	stop := errors.New("stop")
	calls := 0
	err := idx.CommonPrefixes("seido", func(int, []Entry) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestLookupOrdersHomophones(t *testing.T) {
	idx := NewIndex("mem", sampleEntries())
	got := idx.Lookup("seido")
	require.Len(t, got, 2)
	assert.Equal(t, "制度", got[0].Surface)
	assert.Equal(t, "精度", got[1].Surface)
	assert.Nil(t, idx.Lookup("seid"))
}

func TestPredictExtendsPrefix(t *testing.T) {
	idx := NewIndex("mem", sampleEntries())
	got := idx.Predict("sei", 10)
	require.Len(t, got, 2)
	assert.Equal(t, "制度", got[0].Surface)
	assert.Equal(t, "精度", got[1].Surface)

	assert.Len(t, idx.Predict("se", 1), 1)
	assert.Empty(t, idx.Predict("x", 10))
	assert.Empty(t, idx.Predict("", 10))
}

func TestPredictKeepsCheapestAcrossKeys(t *testing.T) {
	var entries []Entry
	for i := 0; i < 3000; i++ {
		key := fmt.Sprintf("k%04d", i)
		entries = append(entries,
			Entry{Key: key, Surface: "a" + key, Cost: int32(10000 - i)},
			Entry{Key: key, Surface: "b" + key, Cost: int32(20000 - i)},
		)
	}
	idx := NewIndex("mem", entries)

	got := idx.Predict("k", 3)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"ak2999", "ak2998", "ak2997"},
		[]string{got[0].Surface, got[1].Surface, got[2].Surface})
	assert.Equal(t, int32(7001), got[0].Cost)
}

func TestPredictTiesBreakOnKey(t *testing.T) {
	idx := NewIndex("mem", []Entry{
		{Key: "sec", Surface: "C", Cost: 5},
		{Key: "sea", Surface: "A", Cost: 5},
		{Key: "seb", Surface: "B", Cost: 1},
	})
	got := idx.Predict("se", 3)
	require.Len(t, got, 3)
	assert.Equal(t, "B", got[0].Surface)
	assert.Equal(t, "A", got[1].Surface)
	assert.Equal(t, "C", got[2].Surface)
}

func TestGetFormatInfo(t *testing.T) {
	info, ok := GetFormatInfo(FormatBinary)
	require.True(t, ok)
	assert.Contains(t, info.Extensions, ".bin")
	_, ok = GetFormatInfo(FormatUnknown)
	assert.False(t, ok)
}

func TestIndexStats(t *testing.T) {
	idx := NewIndex("mem", sampleEntries())
	st := idx.Stats()
	assert.Equal(t, 6, st.Keys)
	assert.Equal(t, 7, st.Entries)
	assert.Equal(t, 5, st.MaxKeyLen)
	assert.Equal(t, int32(1), st.MinCost)
	assert.Equal(t, int32(30), st.MaxCost)
	assert.Equal(t, []string{"se", "sei", "seido", "tem", "せい", "せいど"}, idx.Keys())
}

func TestLoadText(t *testing.T) {
	path := writeFile(t, "dict.txt", strings.Join([]string{
		"# reading\tsurface\tcost\tclass",
		"",
		"seido\t制度\t1\t3",
		"seido\t精度\t2",
		"tem\t天\t5\r",
	}, "\n"))

	idx, err := Load(path, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, path, idx.Source())
	assert.Equal(t, []Entry{
		{Key: "seido", Surface: "制度", Cost: 1, Class: 3},
		{Key: "seido", Surface: "精度", Cost: 2},
	}, idx.Lookup("seido"))
	assert.Equal(t, int32(5), idx.Lookup("tem")[0].Cost)
}

func TestLoadTextErrors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		want    error
		line    int
	}{
		{"unsorted", "seido\t制度\t1\nsei\t性\t1\n", ErrUnsorted, 2},
		{"kanji key", "漢\t漢\t1\n", ErrInvalidKey, 1},
		{"katakana key", "セイド\t制度\t1\n", ErrInvalidKey, 1},
		{"uppercase key", "Seido\t制度\t1\n", ErrInvalidKey, 1},
		{"missing field", "seido\t制度\n", ErrMalformed, 1},
		{"bad cost", "seido\t制度\tcheap\n", ErrMalformed, 1},
		{"bad class", "seido\t制度\t1\t70000\n", ErrMalformed, 1},
		{"empty surface", "# c\nseido\t\t1\n", ErrMalformed, 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, "dict.tsv", tc.content)
			idx, err := Load(path, LoadOptions{})
			require.Error(t, err)
			assert.Nil(t, idx)
			assert.ErrorIs(t, err, ErrLoad)
			assert.ErrorIs(t, err, tc.want)

			var le *LoadError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, path, le.Path)
			assert.Equal(t, tc.line, le.Line)
		})
	}
}

func TestLoadTextTooManyEntries(t *testing.T) {
	path := writeFile(t, "dict.txt", "a\tあ\t1\nb\tび\t1\n")
	_, err := Load(path, LoadOptions{MaxEntries: 1})
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestLoadMissingPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.bin"), LoadOptions{})
	assert.ErrorIs(t, err, ErrLoad)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadUnknownFormat(t *testing.T) {
	path := writeFile(t, "dict.weird", "not a dictionary")
	_, err := Load(path, LoadOptions{})
	assert.ErrorIs(t, err, ErrLoad)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestBinaryRoundTrip(t *testing.T) {
	entries := sampleEntries()
	path := filepath.Join(t.TempDir(), "dict.bin")
	require.NoError(t, WriteBinaryFile(path, entries))

	format, err := DetectFileFormat(path)
	require.NoError(t, err)
	assert.Equal(t, FormatBinary, format)

	idx, err := Load(path, LoadOptions{})
	require.NoError(t, err)

	want := append([]Entry(nil), entries...)
	SortEntries(want)
	assert.Equal(t, want, idx.Entries())
}

func TestBinarySniffedWithoutExtension(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBinary(&buf, sampleEntries()))
	path := writeFile(t, "dict", buf.String())

	format, err := DetectFileFormat(path)
	require.NoError(t, err)
	assert.Equal(t, FormatBinary, format)
}

func TestBinaryErrors(t *testing.T) {
	var good bytes.Buffer
	require.NoError(t, WriteBinary(&good, sampleEntries()))

	negative := append([]byte("KSD1"), 0xff, 0xff, 0xff, 0xff)

	unsorted := new(bytes.Buffer)
	unsorted.WriteString("KSD1")
	require.NoError(t, binary.Write(unsorted, binary.LittleEndian, int32(2)))
	for _, e := range []Entry{{Key: "b", Surface: "び"}, {Key: "a", Surface: "あ"}} {
		require.NoError(t, writeString16(unsorted, e.Key))
		require.NoError(t, writeString16(unsorted, e.Surface))
		require.NoError(t, binary.Write(unsorted, binary.LittleEndian, e.Cost))
		require.NoError(t, binary.Write(unsorted, binary.LittleEndian, e.Class))
	}

	testCases := []struct {
		name string
		data []byte
		max  int
		want error
	}{
		{"bad magic", append([]byte("XXXX"), good.Bytes()[4:]...), 0, ErrMalformed},
		{"too short", []byte("KSD"), 0, ErrMalformed},
		{"negative count", negative, 0, ErrMalformed},
		{"count above limit", good.Bytes(), 3, ErrTooLarge},
		{"truncated", good.Bytes()[:good.Len()-3], 0, ErrMalformed},
		{"trailing data", append(append([]byte(nil), good.Bytes()...), 0x00), 0, ErrMalformed},
		{"unsorted", unsorted.Bytes(), 0, ErrUnsorted},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, "dict.bin", string(tc.data))
			_, err := Load(path, LoadOptions{MaxEntries: tc.max})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrLoad)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestChunkDirRoundTrip(t *testing.T) {
	dir := t.TempDir()
	n, err := WriteChunks(dir, sampleEntries(), 2)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	chunks, err := listChunks(dir)
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	assert.Equal(t, 1, chunks[0].ChunkID)

	idx, err := Load(dir, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 7, idx.Stats().Entries)
	assert.Len(t, idx.Lookup("seido"), 2)
}

func TestChunkDirKeepsHomophonesTogether(t *testing.T) {
	dir := t.TempDir()
	// "se" alone, then both "seido" entries must share a chunk
	entries := []Entry{
		{Key: "se", Surface: "背"},
		{Key: "seido", Surface: "制度", Cost: 1},
		{Key: "seido", Surface: "精度", Cost: 2},
	}
	n, err := WriteChunks(dir, entries, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestChunkDirOrderAcrossChunks(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteBinaryFile(filepath.Join(dir, "dict_0001.bin"), []Entry{{Key: "tem", Surface: "天"}}))
	require.NoError(t, WriteBinaryFile(filepath.Join(dir, "dict_0002.bin"), []Entry{{Key: "seido", Surface: "制度"}}))

	_, err := Load(dir, LoadOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsorted)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, filepath.Join(dir, "dict_0002.bin"), le.Path)
}

func TestChunkDirBadChunk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteBinaryFile(filepath.Join(dir, "dict_0001.bin"), []Entry{{Key: "a", Surface: "あ"}}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dict_0002.bin"), []byte("KSD1"), 0644))

	_, err := Load(dir, LoadOptions{})
	assert.ErrorIs(t, err, ErrLoad)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEmptyDirIsUnknownFormat(t *testing.T) {
	_, err := Load(t.TempDir(), LoadOptions{})
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestSQLiteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.db")
	require.NoError(t, WriteSQLite(path, sampleEntries()))

	format, err := DetectFileFormat(path)
	require.NoError(t, err)
	assert.Equal(t, FormatSQLite, format)

	idx, err := Load(path, LoadOptions{})
	require.NoError(t, err)

	want := sampleEntries()
	SortEntries(want)
	assert.Equal(t, want, idx.Entries())
}

func TestSQLiteInvalidKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.sqlite")
	require.NoError(t, WriteSQLite(path, []Entry{{Key: "KANJI", Surface: "漢字"}}))

	_, err := Load(path, LoadOptions{})
	assert.ErrorIs(t, err, ErrLoad)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestSQLiteTooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.db")
	require.NoError(t, WriteSQLite(path, sampleEntries()))

	_, err := Load(path, LoadOptions{MaxEntries: 2})
	assert.ErrorIs(t, err, ErrTooLarge)
}
