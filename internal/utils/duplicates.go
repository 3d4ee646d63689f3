package utils

// CandidateFilter drops candidate texts that were already emitted.
// Not safe for concurrent use; each search owns its own filter.
type CandidateFilter struct {
	seen map[string]struct{}
}

// NewCandidateFilter creates a filter. Texts listed in exclude are treated as
// already seen.
func NewCandidateFilter(exclude ...string) *CandidateFilter {
	seen := make(map[string]struct{}, 16+len(exclude))
	for _, e := range exclude {
		seen[e] = struct{}{}
	}
	return &CandidateFilter{seen: seen}
}

// ShouldInclude reports whether text is new, and marks it as seen.
func (f *CandidateFilter) ShouldInclude(text string) bool {
	if _, dup := f.seen[text]; dup {
		return false
	}
	f.seen[text] = struct{}{}
	return true
}

// Seen returns how many distinct texts passed through the filter.
func (f *CandidateFilter) Seen() int {
	return len(f.seen)
}
