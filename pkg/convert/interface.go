package convert

import "context"

// Converter defines the interface for conversion engines
type Converter interface {
	// Convert ranks conversions of units without touching any session
	Convert(ctx context.Context, units []rune, req Request) ([]Candidate, error)

	// NewSession creates an idle editing session
	NewSession() *Session

	// Preload loads the default dictionary and weights
	Preload(ctx context.Context) error

	// Options and SetOptions read and replace the conversion settings
	Options() Options
	SetOptions(o Options)

	// Stats returns statistics about loaded resources and the result cache
	Stats() map[string]int
}

var _ Converter = (*Engine)(nil)
