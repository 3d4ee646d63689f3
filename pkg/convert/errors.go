package convert

import (
	"context"
	"errors"

	"github.com/bastiangx/kanaserve/pkg/composing"
	"github.com/bastiangx/kanaserve/pkg/dictionary"
	"github.com/bastiangx/kanaserve/pkg/lattice"
	"github.com/bastiangx/kanaserve/pkg/lm"
)

var (
	ErrInvalidInput = composing.ErrInvalidInput
	ErrDictLoad     = dictionary.ErrLoad
	ErrWeightLoad   = lm.ErrWeightLoad
	ErrFault        = lattice.ErrFault
	ErrCancelled    = lattice.ErrCancelled

	// ErrSuperseded is returned to a waiter whose request was replaced by a
	// newer request, an edit, or StopComposition. It carries no result.
	ErrSuperseded = errors.New("convert: request superseded")
	// ErrSessionClosed is returned by every operation on a closed session.
	ErrSessionClosed = errors.New("convert: session closed")
	// ErrNoDictionary means the request named no dictionary and the engine has no default.
	ErrNoDictionary = errors.New("convert: no dictionary path")
)

// Error codes reported over IPC.
const (
	CodeBadRequest      = 400
	CodeNotFound        = 404
	CodeTooManySessions = 429
	CodeUnprocessable   = 422
	CodeInternal        = 500
	// CodeCancelled means the caller gave up before the search finished.
	CodeCancelled       = 499
)

// Classify maps an error to its IPC code.
func Classify(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrInvalidInput):
		return CodeBadRequest
	case errors.Is(err, ErrSessionClosed):
		return CodeNotFound
	case errors.Is(err, ErrDictLoad), errors.Is(err, ErrWeightLoad), errors.Is(err, ErrNoDictionary):
		return CodeUnprocessable
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCancelled
	}
	return CodeInternal
}
