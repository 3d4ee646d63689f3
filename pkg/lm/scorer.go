// Package lm scores conversion paths.
//
// A Scorer is a pure function of its loaded weights: a path's total cost is
// the sum of its edge costs plus an end cost, and lower totals are more
// plausible. The lattice search calls Edge once per node expansion, so
// implementations keep it allocation free.
package lm

import (
	"github.com/bastiangx/kanaserve/pkg/dictionary"
)

// DefaultUncoveredCost is charged per buffer unit a path leaves unconverted.
const DefaultUncoveredCost = 3000

// State is what a scorer remembers about the path so far.
type State struct {
	Class   uint16
	Surface string
}

// Scorer costs a path segment by segment.
type Scorer interface {
	// Begin derives the initial state from text preceding the buffer.
	Begin(leftContext string) State
	// Edge is the cost of appending e after prev.
	Edge(prev State, e *dictionary.Entry) int64
	// End is the cost of stopping after last with uncovered units left over.
	End(last State, uncovered int) int64
}

// Next returns the state after taking e.
func Next(e *dictionary.Entry) State {
	return State{Class: e.Class, Surface: e.Surface}
}

// PathCost scores a whole path the way the lattice search does incrementally.
func PathCost(s Scorer, leftContext string, path []*dictionary.Entry, uncovered int) int64 {
	st := s.Begin(leftContext)
	var total int64
	for _, e := range path {
		total += s.Edge(st, e)
		st = Next(e)
	}
	return total + s.End(st, uncovered)
}

// CostScorer ranks by dictionary cost alone.
type CostScorer struct {
	UncoveredCost int64
}

// NewCostScorer returns a CostScorer; uncoveredCost <= 0 selects the default.
func NewCostScorer(uncoveredCost int64) *CostScorer {
	if uncoveredCost <= 0 {
		uncoveredCost = DefaultUncoveredCost
	}
	return &CostScorer{UncoveredCost: uncoveredCost}
}

func (s *CostScorer) Begin(string) State { return State{} }

func (s *CostScorer) Edge(_ State, e *dictionary.Entry) int64 { return int64(e.Cost) }

func (s *CostScorer) End(_ State, uncovered int) int64 {
	return int64(uncovered) * s.UncoveredCost
}
