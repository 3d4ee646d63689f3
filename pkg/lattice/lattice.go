// Package lattice segments a composing buffer against a dictionary and
// extracts the cheapest conversions.
//
// A lattice is built fresh for every request and owned by that request.
// Both Build and Search poll their context between steps, so a superseded
// request stops within one node expansion.
package lattice

import (
	"context"
	"errors"
	"fmt"

	"github.com/bastiangx/kanaserve/pkg/composing"
	"github.com/bastiangx/kanaserve/pkg/dictionary"
)

var (
	// ErrCancelled is returned when the context ends mid-build or mid-search.
	ErrCancelled = errors.New("lattice: search cancelled")
	// ErrFault marks an internal invariant violation in an extracted path.
	ErrFault = errors.New("lattice: engine fault")
)

const (
	DefaultK              = 20
	DefaultBeam           = 32
	DefaultPredictLimit   = 3
	DefaultPredictionCost = 2000
)

// Options tunes lattice construction and search.
type Options struct {
	// K is the maximum number of results.
	K int
	// Beam is how many partial paths survive per buffer position; raised to K if smaller.
	Beam int
	// Prediction adds nodes whose key extends past the end of the buffer.
	Prediction     bool
	PredictLimit   int
	PredictionCost int64
}

// DefaultOptions returns the stock search settings.
func DefaultOptions() Options {
	return Options{
		K:              DefaultK,
		Beam:           DefaultBeam,
		PredictLimit:   DefaultPredictLimit,
		PredictionCost: DefaultPredictionCost,
	}
}

func (o Options) normalized() Options {
	if o.K <= 0 {
		o.K = DefaultK
	}
	if o.Beam < o.K {
		o.Beam = o.K
	}
	if o.PredictLimit < 0 {
		o.PredictLimit = 0
	}
	if o.PredictionCost < 0 {
		o.PredictionCost = 0
	}
	return o
}

// Node is one dictionary entry spanning units [Start, End).
type Node struct {
	Start, End int
	Entry      *dictionary.Entry
	// Predicted nodes read past the buffer end; End is always the buffer length.
	Predicted bool
}

// Lattice holds every node of one buffer, grouped by start position.
type Lattice struct {
	n       int
	byStart [][]Node
	nodes   int
}

// Len returns the buffer length in units.
func (l *Lattice) Len() int { return l.n }

// NodeCount returns the total number of nodes.
func (l *Lattice) NodeCount() int { return l.nodes }

// NodesAt returns the nodes starting at pos. The slice must not be modified.
func (l *Lattice) NodesAt(pos int) []Node {
	if pos < 0 || pos >= len(l.byStart) {
		return nil
	}
	return l.byStart[pos]
}

func cancelled(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
}

// Build finds every dictionary key that starts at each buffer position.
// Keys are matched against the units as typed and against their kana
// reading, so romaji input reaches kana keyed entries. Node positions are
// always input units.
func Build(ctx context.Context, units []rune, dict *dictionary.Index, opts Options) (*Lattice, error) {
	opts = opts.normalized()
	n := len(units)
	l := &Lattice{n: n, byStart: make([][]Node, n)}
	if dict == nil {
		return l, nil
	}

	b := &builder{l: l, dict: dict, opts: opts, seen: make(map[nodeKey]struct{})}
	if err := b.scan(ctx, units, nil); err != nil {
		return nil, err
	}
	if reading := composing.Transliterate(units); !reading.Same(units) {
		if err := b.scan(ctx, reading.Kana, reading.Offsets); err != nil {
			return nil, err
		}
	}
	for _, nodes := range l.byStart {
		l.nodes += len(nodes)
	}
	return l, nil
}

type nodeKey struct {
	start, end int
	predicted  bool
	entry      dictionary.Entry
}

type builder struct {
	l    *Lattice
	dict *dictionary.Index
	opts Options
	seen map[nodeKey]struct{}
}

func (b *builder) add(node Node) {
	k := nodeKey{start: node.Start, end: node.End, predicted: node.Predicted, entry: *node.Entry}
	if _, dup := b.seen[k]; dup {
		return
	}
	b.seen[k] = struct{}{}
	b.l.byStart[node.Start] = append(b.l.byStart[node.Start], node)
}

// scan looks up every suffix of text. offsets maps text positions to input
// units, -1 marking positions inside a syllable; nil means text is the input.
func (b *builder) scan(ctx context.Context, text []rune, offsets []int) error {
	at := func(i int) int {
		if offsets == nil {
			return i
		}
		return offsets[i]
	}

	for k := 0; k < len(text); k++ {
		if err := cancelled(ctx); err != nil {
			return err
		}
		start := at(k)
		if start < 0 {
			continue
		}
		rest := string(text[k:])
		err := b.dict.CommonPrefixes(rest, func(size int, entries []dictionary.Entry) error {
			end := at(k + size)
			if end < 0 {
				return nil
			}
			for i := range entries {
				b.add(Node{Start: start, End: end, Entry: &entries[i]})
			}
			return nil
		})
		if err != nil {
			return err
		}

		if b.opts.Prediction && b.opts.PredictLimit > 0 {
			preds := b.dict.Predict(rest, b.opts.PredictLimit)
			for i := range preds {
				b.add(Node{Start: start, End: b.l.n, Entry: &preds[i], Predicted: true})
			}
		}
	}
	return nil
}
