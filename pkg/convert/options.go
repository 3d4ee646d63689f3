package convert

import (
	"github.com/bastiangx/kanaserve/internal/utils"
	"github.com/bastiangx/kanaserve/pkg/lattice"
	"github.com/bastiangx/kanaserve/pkg/lm"
)

const (
	DefaultMaxCandidates = 20
	MaxCandidatesLimit   = 64
	DefaultCacheSize     = 512
)

// Options are the conversion settings shared by every session of an Engine.
type Options struct {
	MaxCandidates  int   `toml:"max_candidates" yaml:"max_candidates"`
	BeamWidth      int   `toml:"beam_width" yaml:"beam_width"`
	Prediction     bool  `toml:"prediction" yaml:"prediction"`
	PredictLimit   int   `toml:"predict_limit" yaml:"predict_limit"`
	PredictionCost int64 `toml:"prediction_cost" yaml:"prediction_cost"`
	// KanaFallback appends the hiragana rendering of the whole buffer as the last candidate.
	KanaFallback  bool  `toml:"kana_fallback" yaml:"kana_fallback"`
	UncoveredCost int64 `toml:"uncovered_cost" yaml:"uncovered_cost"`
	CacheSize     int   `toml:"cache_size" yaml:"cache_size"`
}

// DefaultOptions returns the stock conversion settings.
func DefaultOptions() Options {
	return Options{
		MaxCandidates:  DefaultMaxCandidates,
		BeamWidth:      lattice.DefaultBeam,
		Prediction:     true,
		PredictLimit:   lattice.DefaultPredictLimit,
		PredictionCost: lattice.DefaultPredictionCost,
		UncoveredCost:  lm.DefaultUncoveredCost,
		CacheSize:      DefaultCacheSize,
	}
}

// Normalize clamps every field into its valid range.
func (o Options) Normalize() Options {
	if o.MaxCandidates <= 0 {
		o.MaxCandidates = DefaultMaxCandidates
	}
	o.MaxCandidates = utils.ClampInt(o.MaxCandidates, 1, MaxCandidatesLimit)
	if o.BeamWidth < o.MaxCandidates {
		o.BeamWidth = o.MaxCandidates
	}
	if o.PredictLimit < 0 {
		o.PredictLimit = 0
	}
	if o.PredictionCost < 0 {
		o.PredictionCost = 0
	}
	if o.UncoveredCost <= 0 {
		o.UncoveredCost = lm.DefaultUncoveredCost
	}
	if o.CacheSize < 0 {
		o.CacheSize = 0
	}
	return o
}

func (o Options) latticeOptions() lattice.Options {
	return lattice.Options{
		K:              o.MaxCandidates,
		Beam:           o.BeamWidth,
		Prediction:     o.Prediction,
		PredictLimit:   o.PredictLimit,
		PredictionCost: o.PredictionCost,
	}
}
