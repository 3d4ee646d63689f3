package lm

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bastiangx/kanaserve/pkg/dictionary"
)

// maxHistoryRunes bounds how far back into the left context surface
// history is matched.
const maxHistoryRunes = 8

type surfacePair [2]string

// BigramScorer adds class transition and surface bigram adjustments to the
// dictionary cost.
type BigramScorer struct {
	classes       int
	trans         []int32 // classes*classes, row = previous class
	eos           []int32
	rules         []ContextRule // longest suffix first
	bigrams       map[surfacePair]int32
	histories     map[string]struct{}
	uncoveredCost int64
}

// NewBigramScorer builds a scorer from validated weights.
func NewBigramScorer(w *Weights, uncoveredCost int64) (*BigramScorer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if uncoveredCost <= 0 {
		uncoveredCost = DefaultUncoveredCost
	}

	s := &BigramScorer{
		classes:       w.Classes,
		trans:         make([]int32, 0, w.Classes*w.Classes),
		eos:           append([]int32(nil), w.EOS...),
		rules:         append([]ContextRule(nil), w.Context...),
		bigrams:       make(map[surfacePair]int32, len(w.Bigrams)),
		histories:     make(map[string]struct{}),
		uncoveredCost: uncoveredCost,
	}
	for _, row := range w.Transition {
		s.trans = append(s.trans, row...)
	}
	sort.SliceStable(s.rules, func(i, j int) bool {
		return utf8.RuneCountInString(s.rules[i].Suffix) > utf8.RuneCountInString(s.rules[j].Suffix)
	})
	for _, b := range w.Bigrams {
		s.bigrams[surfacePair{b.Prev, b.Next}] += b.Cost
		s.histories[b.Prev] = struct{}{}
	}
	return s, nil
}

// Begin picks the class of the longest matching context rule and the
// longest context suffix known as bigram history.
func (s *BigramScorer) Begin(leftContext string) State {
	var st State
	if leftContext == "" {
		return st
	}
	for _, r := range s.rules {
		if strings.HasSuffix(leftContext, r.Suffix) {
			st.Class = r.Class
			break
		}
	}

	tail := leftContext
	if n := utf8.RuneCountInString(tail); n > maxHistoryRunes {
		for i := 0; i < n-maxHistoryRunes; i++ {
			_, size := utf8.DecodeRuneInString(tail)
			tail = tail[size:]
		}
	}
	for ; tail != ""; tail = dropFirstRune(tail) {
		if _, ok := s.histories[tail]; ok {
			st.Surface = tail
			break
		}
	}
	return st
}

func dropFirstRune(s string) string {
	_, size := utf8.DecodeRuneInString(s)
	return s[size:]
}

func (s *BigramScorer) Edge(prev State, e *dictionary.Entry) int64 {
	cost := int64(e.Cost) + int64(s.transition(prev.Class, e.Class))
	if prev.Surface != "" {
		cost += int64(s.bigrams[surfacePair{prev.Surface, e.Surface}])
	}
	return cost
}

func (s *BigramScorer) End(last State, uncovered int) int64 {
	var eos int64
	if int(last.Class) < len(s.eos) {
		eos = int64(s.eos[last.Class])
	}
	return eos + int64(uncovered)*s.uncoveredCost
}

// transition returns 0 for classes outside the matrix.
func (s *BigramScorer) transition(from, to uint16) int32 {
	if int(from) >= s.classes || int(to) >= s.classes {
		return 0
	}
	return s.trans[int(from)*s.classes+int(to)]
}

// Classes returns the size of the class set.
func (s *BigramScorer) Classes() int { return s.classes }
