package lm

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

const weightsVersion = 1

var (
	// ErrWeightLoad matches every weight load failure via errors.Is.
	ErrWeightLoad = errors.New("lm: weight load failed")

	ErrWeightNotFound = errors.New("lm: weight resource not found")
	ErrWeightFormat   = errors.New("lm: unsupported weight format")
	ErrWeightCorrupt  = errors.New("lm: corrupt weight resource")
	ErrWeightInvalid  = errors.New("lm: invalid weights")
)

// WeightLoadError describes why a weight resource could not be loaded.
type WeightLoadError struct {
	Path string
	Err  error
}

func (e *WeightLoadError) Error() string {
	return fmt.Sprintf("weights %s: %v", e.Path, e.Err)
}

func (e *WeightLoadError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrWeightLoad) match any WeightLoadError.
func (e *WeightLoadError) Is(target error) bool { return target == ErrWeightLoad }

// ContextRule maps a left-context suffix to the class the path starts from.
type ContextRule struct {
	Suffix string `msgpack:"suffix" toml:"suffix"`
	Class  uint16 `msgpack:"class" toml:"class"`
}

// Bigram adjusts the cost of Next directly following Prev.
type Bigram struct {
	Prev string `msgpack:"prev" toml:"prev"`
	Next string `msgpack:"next" toml:"next"`
	Cost int32  `msgpack:"cost" toml:"cost"`
}

// Weights is the on-disk model.
type Weights struct {
	Version    int           `msgpack:"version" toml:"version"`
	Classes    int           `msgpack:"classes" toml:"classes"`
	Transition [][]int32     `msgpack:"trans" toml:"transition"`
	EOS        []int32       `msgpack:"eos" toml:"eos"`
	Context    []ContextRule `msgpack:"context" toml:"context"`
	Bigrams    []Bigram      `msgpack:"bigrams" toml:"bigrams"`
}

// Validate runs the structural checks every weight resource must pass.
func (w *Weights) Validate() error {
	if w == nil {
		return fmt.Errorf("%w: no weights", ErrWeightInvalid)
	}
	if w.Version != weightsVersion {
		return fmt.Errorf("%w: version %d, want %d", ErrWeightInvalid, w.Version, weightsVersion)
	}
	if w.Classes < 1 || w.Classes > 1<<16 {
		return fmt.Errorf("%w: class count %d", ErrWeightInvalid, w.Classes)
	}
	if len(w.Transition) != w.Classes {
		return fmt.Errorf("%w: transition matrix has %d rows, want %d", ErrWeightInvalid, len(w.Transition), w.Classes)
	}
	for i, row := range w.Transition {
		if len(row) != w.Classes {
			return fmt.Errorf("%w: transition row %d has %d columns, want %d", ErrWeightInvalid, i, len(row), w.Classes)
		}
	}
	if len(w.EOS) != w.Classes {
		return fmt.Errorf("%w: eos has %d costs, want %d", ErrWeightInvalid, len(w.EOS), w.Classes)
	}
	for i, r := range w.Context {
		if r.Suffix == "" {
			return fmt.Errorf("%w: context rule %d has empty suffix", ErrWeightInvalid, i)
		}
		if int(r.Class) >= w.Classes {
			return fmt.Errorf("%w: context rule %d class %d out of range", ErrWeightInvalid, i, r.Class)
		}
	}
	for i, b := range w.Bigrams {
		if b.Prev == "" || b.Next == "" {
			return fmt.Errorf("%w: bigram %d has empty surface", ErrWeightInvalid, i)
		}
	}
	return nil
}

type weightFormat int

const (
	weightUnknown weightFormat = iota
	weightMsgpack
	weightTOML
)

func detectWeightFormat(path string) weightFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".msgpack", ".mpk", ".weights":
		return weightMsgpack
	case ".toml":
		return weightTOML
	}
	return weightUnknown
}

// LoadWeights reads and validates a weight file. Failures are *WeightLoadError.
func LoadWeights(path string) (*Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &WeightLoadError{Path: path, Err: fmt.Errorf("%w: %v", ErrWeightNotFound, err)}
		}
		return nil, &WeightLoadError{Path: path, Err: err}
	}

	w := new(Weights)
	switch detectWeightFormat(path) {
	case weightMsgpack:
		if err := msgpack.Unmarshal(data, w); err != nil {
			return nil, &WeightLoadError{Path: path, Err: fmt.Errorf("%w: %v", ErrWeightCorrupt, err)}
		}
	case weightTOML:
		md, err := toml.Decode(string(data), w)
		if err != nil {
			return nil, &WeightLoadError{Path: path, Err: fmt.Errorf("%w: %v", ErrWeightCorrupt, err)}
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			log.Warnf("Ignoring unknown weight keys in %s: %v", path, undecoded)
		}
	default:
		return nil, &WeightLoadError{Path: path, Err: fmt.Errorf("%w: %s", ErrWeightFormat, filepath.Ext(path))}
	}

	if err := w.Validate(); err != nil {
		return nil, &WeightLoadError{Path: path, Err: err}
	}
	return w, nil
}

// Load returns the scorer for a weight path. An empty path selects the
// CostScorer.
func Load(path string, uncoveredCost int64) (Scorer, error) {
	if path == "" {
		return NewCostScorer(uncoveredCost), nil
	}
	w, err := LoadWeights(path)
	if err != nil {
		return nil, err
	}
	s, err := NewBigramScorer(w, uncoveredCost)
	if err != nil {
		return nil, &WeightLoadError{Path: path, Err: err}
	}
	log.Debugf("Loaded weights %s: %d classes, %d context rules, %d bigrams",
		path, s.Classes(), len(w.Context), len(w.Bigrams))
	return s, nil
}

// SaveWeights writes w in the format selected by the path extension.
func SaveWeights(path string, w *Weights) error {
	if err := w.Validate(); err != nil {
		return err
	}

	var data []byte
	switch detectWeightFormat(path) {
	case weightMsgpack:
		b, err := msgpack.Marshal(w)
		if err != nil {
			return fmt.Errorf("encode weights: %w", err)
		}
		data = b
	case weightTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(w); err != nil {
			return fmt.Errorf("encode weights: %w", err)
		}
		data = buf.Bytes()
	default:
		return fmt.Errorf("%w: %s", ErrWeightFormat, filepath.Ext(path))
	}
	return os.WriteFile(path, data, 0644)
}
