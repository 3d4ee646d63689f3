// Package convert runs kana-kanji conversion for editing sessions.
//
// An Engine owns the process-wide resources: dictionaries and scorers loaded
// once per path and shared read-only, the conversion options, and a result
// cache. Sessions pair a composing buffer with at most one in-flight search;
// any edit or newer request supersedes the search, and a superseded result
// is never returned.
package convert

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bastiangx/kanaserve/internal/utils"
	"github.com/bastiangx/kanaserve/pkg/composing"
	"github.com/bastiangx/kanaserve/pkg/dictionary"
	"github.com/bastiangx/kanaserve/pkg/lattice"
	"github.com/bastiangx/kanaserve/pkg/lm"
	"github.com/charmbracelet/log"
)

// Candidate is one ranked conversion of the buffer.
type Candidate struct {
	Text string `json:"text" msgpack:"t"`
	// CorrespondingCount is how many units from the start of the buffer Text covers.
	CorrespondingCount int    `json:"corresponding_count" msgpack:"c"`
	Rank               uint16 `json:"rank" msgpack:"r"`
	Cost               int64  `json:"-" msgpack:"-"`
}

// Request selects the resources and context for one conversion.
// Empty paths fall back to the engine defaults.
type Request struct {
	LeftContext    string
	DictionaryPath string
	WeightPath     string
}

// Config configures a new Engine.
type Config struct {
	DictionaryPath string
	WeightPath     string
	// MaxEntries bounds dictionary size; 0 selects the loader default.
	MaxEntries int
	Options    Options
}

// Engine is safe for concurrent use.
type Engine struct {
	dicts          *registry[*dictionary.Index]
	scorers        *registry[lm.Scorer]
	opts           atomic.Pointer[Options]
	cache          atomic.Pointer[ResultCache]
	defaultDict    string
	defaultWeights string
	sessions       atomic.Int64
}

func NewEngine(cfg Config) *Engine {
	loadOpts := dictionary.LoadOptions{MaxEntries: cfg.MaxEntries}
	e := &Engine{
		defaultDict:    utils.CanonicalPath(cfg.DictionaryPath),
		defaultWeights: utils.CanonicalPath(cfg.WeightPath),
	}
	e.dicts = newRegistry(func(path string) (*dictionary.Index, error) {
		return dictionary.Load(path, loadOpts)
	})
	e.scorers = newRegistry(loadScorer)

	opts := cfg.Options.Normalize()
	e.opts.Store(&opts)
	e.cache.Store(NewResultCache(opts.CacheSize))
	return e
}

// scorer registry keys are "<uncovered cost>|<path>"
func scorerKey(path string, uncoveredCost int64) string {
	return strconv.FormatInt(uncoveredCost, 10) + "|" + path
}

func loadScorer(key string) (lm.Scorer, error) {
	costStr, path, _ := strings.Cut(key, "|")
	cost, err := strconv.ParseInt(costStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad scorer key %q: %w", key, err)
	}
	return lm.Load(path, cost)
}

// Options returns the current conversion options.
func (e *Engine) Options() Options {
	return *e.opts.Load()
}

// SetOptions replaces the conversion options. Requests already running keep
// the options they started with. The result cache is dropped.
func (e *Engine) SetOptions(o Options) {
	o = o.Normalize()
	prev := e.opts.Swap(&o)
	if prev.CacheSize != o.CacheSize {
		e.cache.Store(NewResultCache(o.CacheSize))
	} else {
		e.cache.Load().Purge()
	}
	log.Debug("Conversion options updated", "max_candidates", o.MaxCandidates, "beam", o.BeamWidth,
		"prediction", o.Prediction, "kana_fallback", o.KanaFallback)
}

// Dictionary returns the index for path, loading it on first use.
func (e *Engine) Dictionary(ctx context.Context, path string) (*dictionary.Index, error) {
	return e.dicts.get(ctx, utils.CanonicalPath(path))
}

// Scorer returns the scorer for a weight path; "" is the cost-only scorer.
func (e *Engine) Scorer(ctx context.Context, path string) (lm.Scorer, error) {
	return e.scorers.get(ctx, scorerKey(utils.CanonicalPath(path), e.Options().UncoveredCost))
}

// Preload loads the default resources so the first request does not pay for them.
func (e *Engine) Preload(ctx context.Context) error {
	if e.defaultDict != "" {
		if _, err := e.Dictionary(ctx, e.defaultDict); err != nil {
			return err
		}
	}
	_, err := e.Scorer(ctx, e.defaultWeights)
	return err
}

func (e *Engine) resolve(req Request) (dictPath, weightPath string) {
	dictPath, weightPath = utils.CanonicalPath(req.DictionaryPath), utils.CanonicalPath(req.WeightPath)
	if dictPath == "" {
		dictPath = e.defaultDict
	}
	if weightPath == "" {
		weightPath = e.defaultWeights
	}
	return dictPath, weightPath
}

// Convert runs one conversion of units. It does not touch any session.
func (e *Engine) Convert(ctx context.Context, units []rune, req Request) ([]Candidate, error) {
	if len(units) == 0 {
		return []Candidate{}, nil
	}
	start := time.Now()
	opts := e.Options()

	dictPath, weightPath := e.resolve(req)
	if dictPath == "" {
		return nil, ErrNoDictionary
	}
	dict, err := e.dicts.get(ctx, dictPath)
	if err != nil {
		return nil, err
	}
	scorer, err := e.scorers.get(ctx, scorerKey(weightPath, opts.UncoveredCost))
	if err != nil {
		return nil, err
	}

	cache := e.cache.Load()
	key := cacheKey(dictPath, weightPath, req.LeftContext, units)
	if cands, ok := cache.Get(key); ok {
		return cands, nil
	}

	lopts := opts.latticeOptions()
	l, err := lattice.Build(ctx, units, dict, lopts)
	if err != nil {
		return nil, err
	}
	paths, err := lattice.Search(ctx, l, scorer, req.LeftContext, lopts)
	if err != nil {
		return nil, err
	}

	cands := toCandidates(paths, units, opts)
	cache.Put(key, cands)
	log.Debugf("Converted %q: %d nodes, %d candidates in %v", string(units), l.NodeCount(), len(cands), time.Since(start))
	return cands, nil
}

func toCandidates(paths []lattice.Path, units []rune, opts Options) []Candidate {
	cands := make([]Candidate, 0, len(paths)+1)
	for _, p := range paths {
		cands = append(cands, Candidate{Text: p.Text, CorrespondingCount: p.Count, Cost: p.Cost})
	}

	if opts.KanaFallback {
		kana := composing.ToKana(string(units))
		present := false
		for _, c := range cands {
			if c.Text == kana {
				present = true
				break
			}
		}
		if !present {
			if len(cands) >= opts.MaxCandidates {
				cands = cands[:opts.MaxCandidates-1]
			}
			cands = append(cands, Candidate{Text: kana, CorrespondingCount: len(units)})
		}
	}

	ranks := utils.CreateRankList(len(cands))
	for i := range cands {
		cands[i].Rank = ranks[i]
	}
	return cands
}

// NewSession creates an idle session bound to this engine.
func (e *Engine) NewSession() *Session {
	e.sessions.Add(1)
	return newSession(e)
}

// Stats returns resource and cache counters.
func (e *Engine) Stats() map[string]int {
	stats := map[string]int{
		"dictionaries": e.dicts.len(),
		"scorers":      e.scorers.len(),
		"sessions":     int(e.sessions.Load()),
	}
	for k, v := range e.cache.Load().Stats() {
		stats[k] = v
	}
	return stats
}
