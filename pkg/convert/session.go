package convert

import (
	"context"
	"errors"
	"sync"

	"github.com/bastiangx/kanaserve/pkg/composing"
	"github.com/charmbracelet/log"
)

// State is the session lifecycle state.
type State int

const (
	Idle State = iota
	Composing
	Searching
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Composing:
		return "composing"
	case Searching:
		return "searching"
	}
	return "unknown"
}

// Session is one editing context. Edits and requests must come from one
// caller at a time; only the in-flight search handle is shared with the
// search worker and guarded here.
type Session struct {
	engine *Engine
	buf    *composing.Buffer

	mu     sync.Mutex
	state  State
	gen    uint64
	cancel context.CancelCauseFunc
	closed bool
}

func newSession(e *Engine) *Session {
	return &Session{engine: e, buf: composing.New()}
}

// supersede invalidates the in-flight search, if any. Caller holds s.mu.
func (s *Session) supersede() {
	s.gen++
	if s.cancel != nil {
		s.cancel(ErrSuperseded)
		s.cancel = nil
	}
}

// edited marks a buffer mutation.
func (s *Session) edited() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supersede()
	s.state = Composing
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Insert adds phonetic text at the cursor. Invalid input leaves the buffer
// and any running search untouched.
func (s *Session) Insert(text string) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	if err := s.buf.Insert(text); err != nil {
		return err
	}
	s.edited()
	return nil
}

// DeleteForward removes up to n units after the cursor.
func (s *Session) DeleteForward(n int) (int, error) {
	if s.isClosed() {
		return 0, ErrSessionClosed
	}
	removed := s.buf.DeleteForward(n)
	s.edited()
	return removed, nil
}

// DeleteBackward removes up to n units before the cursor.
func (s *Session) DeleteBackward(n int) (int, error) {
	if s.isClosed() {
		return 0, ErrSessionClosed
	}
	removed := s.buf.DeleteBackward(n)
	s.edited()
	return removed, nil
}

// MoveCursor shifts the cursor by delta units, clamped to the buffer. The
// buffer contents do not change, so a running search stays valid.
func (s *Session) MoveCursor(delta int) (int, error) {
	if s.isClosed() {
		return 0, ErrSessionClosed
	}
	return s.buf.MoveCursor(delta), nil
}

// StopComposition empties the buffer and drops any in-flight search.
func (s *Session) StopComposition() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.supersede()
	s.buf.Reset()
	s.state = Idle
	return nil
}

// Close stops composition and releases the session. Further calls fail with
// ErrSessionClosed. Closing twice is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.supersede()
	s.buf.Reset()
	s.state = Idle
	s.closed = true
	s.engine.sessions.Add(-1)
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Text returns the buffer as phonetic units.
func (s *Session) Text() string { return s.buf.String() }

// Kana returns the buffer rendered as hiragana.
func (s *Session) Kana() string { return s.buf.Kana() }

// Cursor returns the cursor position in units.
func (s *Session) Cursor() int { return s.buf.Cursor() }

// Len returns the buffer length in units.
func (s *Session) Len() int { return s.buf.Len() }

// Pending is a started candidate request.
type Pending struct {
	session *Session
	gen     uint64
	done    chan struct{}
	cancel  context.CancelCauseFunc
	cands   []Candidate
	err     error
}

// Start snapshots the buffer and launches a search for it, superseding any
// search already running. The search runs until it finishes, is superseded,
// or ctx ends.
func (s *Session) Start(ctx context.Context, req Request) (*Pending, error) {
	units := s.buf.Units()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	s.supersede()

	p := &Pending{session: s, gen: s.gen, done: make(chan struct{})}
	if len(units) == 0 {
		if s.state == Searching {
			s.state = Composing
		}
		p.cands = []Candidate{}
		close(p.done)
		return p, nil
	}

	sctx, cancel := context.WithCancelCause(ctx)
	p.cancel = cancel
	s.cancel = cancel
	s.state = Searching

	go func() {
		p.cands, p.err = s.engine.Convert(sctx, units, req)
		close(p.done)
		cancel(nil)
		s.finish(p.gen)
	}()
	return p, nil
}

// finish returns the session to Composing if gen is still current.
func (s *Session) finish(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.cancel = nil
	if s.state == Searching {
		s.state = Composing
	}
}

func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen && !s.closed
}

// Wait blocks until the search completes. It returns ErrSuperseded when a
// newer request, an edit, or StopComposition replaced this one, whether or
// not the search itself had finished. If ctx ends first the search is
// cancelled.
func (p *Pending) Wait(ctx context.Context) ([]Candidate, error) {
	select {
	case <-p.done:
	case <-ctx.Done():
		if p.cancel != nil {
			p.cancel(context.Cause(ctx))
		}
		<-p.done
	}

	if !p.session.current(p.gen) {
		return nil, ErrSuperseded
	}
	if p.err != nil {
		if errors.Is(p.err, ErrFault) {
			log.Error("Conversion failed", "err", p.err)
		}
		return nil, p.err
	}
	return p.cands, nil
}

// Done is closed when the search has stopped.
func (p *Pending) Done() <-chan struct{} { return p.done }

// RequestCandidates converts the current buffer and waits for the result.
func (s *Session) RequestCandidates(ctx context.Context, req Request) ([]Candidate, error) {
	p, err := s.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	return p.Wait(ctx)
}
