package dictionary

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/bastiangx/kanaserve/internal/utils"
	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"
)

// maxPredictVisit bounds how many keys a prediction walk inspects, so short
// prefixes over large dictionaries stay interactive.
const maxPredictVisit = 4096

var errStopVisit = errors.New("dictionary: stop visit")

// Index maps phonetic keys to their homophone entries.
type Index struct {
	trie      *patricia.Trie
	source    string
	keys      int
	entries   int
	maxKeyLen int
	minCost   int32
	maxCost   int32
}

// Stats is a snapshot of index metrics.
type Stats struct {
	Source    string `json:"source" msgpack:"source"`
	Keys      int    `json:"keys" msgpack:"keys"`
	Entries   int    `json:"entries" msgpack:"entries"`
	MaxKeyLen int    `json:"max_key_len" msgpack:"max_key_len"`
	MinCost   int32  `json:"min_cost" msgpack:"min_cost"`
	MaxCost   int32  `json:"max_cost" msgpack:"max_cost"`
}

// NewIndex builds an index from entries. Entries are grouped by key; each
// group is ordered by cost, surface, class. The input slice is sorted in place.
func NewIndex(source string, entries []Entry) *Index {
	SortEntries(entries)

	idx := &Index{
		trie:   patricia.NewTrie(),
		source: source,
	}
	for start := 0; start < len(entries); {
		end := start + 1
		for end < len(entries) && entries[end].Key == entries[start].Key {
			end++
		}
		group := slices.Clip(entries[start:end])
		idx.trie.Insert(patricia.Prefix(group[0].Key), group)
		idx.keys++
		idx.entries += len(group)
		if l := utf8.RuneCountInString(group[0].Key); l > idx.maxKeyLen {
			idx.maxKeyLen = l
		}
		for i, e := range group {
			if idx.keys == 1 && i == 0 {
				idx.minCost, idx.maxCost = e.Cost, e.Cost
			}
			idx.minCost = min(idx.minCost, e.Cost)
			idx.maxCost = max(idx.maxCost, e.Cost)
		}
		start = end
	}

	log.Debug("Dictionary index built", "source", source, "keys", idx.keys, "entries", idx.entries)
	return idx
}

// CommonPrefixes calls fn for every key that is a prefix of s, shortest first,
// with the key length in units and its entries. The entries slice is shared
// and must not be modified. A non-nil error from fn stops the walk and is
// returned.
func (idx *Index) CommonPrefixes(s string, fn func(units int, entries []Entry) error) error {
	if idx == nil || s == "" {
		return nil
	}
	return idx.trie.VisitPrefixes(patricia.Prefix(s), func(p patricia.Prefix, item patricia.Item) error {
		group, ok := item.([]Entry)
		if !ok || len(p) == 0 {
			return nil
		}
		return fn(utf8.RuneCount(p), group)
	})
}

// Lookup returns the entries stored under exactly key.
func (idx *Index) Lookup(key string) []Entry {
	if idx == nil {
		return nil
	}
	item := idx.trie.Get(patricia.Prefix(key))
	if item == nil {
		return nil
	}
	return item.([]Entry)
}

// Predict returns up to limit entries whose key strictly extends prefix,
// cheapest first. Ties break on key then surface.
//
// At most maxPredictVisit extending keys are inspected, in key order. When a
// prefix has more extensions than that, cheaper entries under later keys are
// not considered.
func (idx *Index) Predict(prefix string, limit int) []Entry {
	if idx == nil || prefix == "" || limit <= 0 {
		return nil
	}

	best := make([]Entry, 0, limit)
	visited := 0
	err := idx.trie.VisitSubtree(patricia.Prefix(prefix), func(p patricia.Prefix, item patricia.Item) error {
		if len(p) == len(prefix) {
			return nil
		}
		visited++
		if visited > maxPredictVisit {
			return errStopVisit
		}
		group, ok := item.([]Entry)
		if !ok {
			log.Errorf("Unknown item type: %T for key %s", item, p)
			return nil
		}
		for _, e := range group {
			// groups are cost ordered, so the rest cannot qualify either
			if !keepPrediction(&best, e, limit) {
				break
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopVisit) {
		log.Errorf("Error visiting trie subtree: %v", err)
		return nil
	}
	return best
}

func comparePrediction(a, b Entry) int {
	if c := cmp.Compare(a.Cost, b.Cost); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Key, b.Key); c != 0 {
		return c
	}
	return compareEntries(a, b)
}

// keepPrediction inserts e into the sorted, bounded best list. It reports
// false when e ranks below every kept entry of a full list.
func keepPrediction(best *[]Entry, e Entry, limit int) bool {
	list := *best
	if len(list) == limit && comparePrediction(e, list[len(list)-1]) >= 0 {
		return false
	}
	at, _ := slices.BinarySearchFunc(list, e, comparePrediction)
	list = slices.Insert(list, at, e)
	if len(list) > limit {
		list = list[:limit]
	}
	*best = list
	return true
}

// Entries returns all entries ordered by key. Used for format conversion.
func (idx *Index) Entries() []Entry {
	if idx == nil {
		return nil
	}
	out := make([]Entry, 0, idx.entries)
	_ = idx.trie.Visit(func(p patricia.Prefix, item patricia.Item) error {
		out = append(out, item.([]Entry)...)
		return nil
	})
	SortEntries(out)
	return out
}

// Keys returns every distinct key in order.
func (idx *Index) Keys() []string {
	if idx == nil {
		return nil
	}
	keys := make([]string, 0, idx.keys)
	_ = idx.trie.Visit(func(p patricia.Prefix, item patricia.Item) error {
		keys = append(keys, string(p))
		return nil
	})
	slices.Sort(keys)
	return keys
}

// Len returns the number of distinct keys.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return idx.keys
}

// MaxKeyLen returns the longest key length in units.
func (idx *Index) MaxKeyLen() int {
	if idx == nil {
		return 0
	}
	return idx.maxKeyLen
}

// Source returns the path the index was loaded from.
func (idx *Index) Source() string {
	if idx == nil {
		return ""
	}
	return idx.source
}

// Stats returns index metrics.
func (idx *Index) Stats() Stats {
	if idx == nil {
		return Stats{}
	}
	return Stats{
		Source:    idx.source,
		Keys:      idx.keys,
		Entries:   idx.entries,
		MaxKeyLen: idx.maxKeyLen,
		MinCost:   idx.minCost,
		MaxCost:   idx.maxCost,
	}
}

// recordChecker applies the structural checks shared by every loader:
// valid key characters, non-empty surface, non-decreasing key order and a
// sanity bound on the entry count.
type recordChecker struct {
	path    string
	prevKey string
	count   int
	max     int
}

func newRecordChecker(path string, maxEntries int) *recordChecker {
	return &recordChecker{path: path, max: maxEntries}
}

func (c *recordChecker) check(e *Entry, line int) error {
	if e.Key == "" || e.Surface == "" {
		return loadErr(c.path, line, fmt.Errorf("%w: empty key or surface", ErrMalformed))
	}
	if utils.NormalizePhonetic(e.Key) != e.Key || !utils.IsValidInput(e.Key) {
		return loadErr(c.path, line, fmt.Errorf("%w: %q", ErrInvalidKey, e.Key))
	}
	if e.Key < c.prevKey {
		return loadErr(c.path, line, fmt.Errorf("%w: %q after %q", ErrUnsorted, e.Key, c.prevKey))
	}
	c.prevKey = e.Key
	c.count++
	if c.max > 0 && c.count > c.max {
		return loadErr(c.path, line, fmt.Errorf("%w: more than %d entries", ErrTooLarge, c.max))
	}
	return nil
}
