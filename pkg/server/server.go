package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bastiangx/kanaserve/internal/utils"
	"github.com/bastiangx/kanaserve/pkg/config"
	"github.com/bastiangx/kanaserve/pkg/convert"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

// Server handles msgpack IPC for conversion sessions
type Server struct {
	converter  convert.Converter
	configPath string
	watch      bool

	decoder *msgpack.Decoder
	writeMu sync.Mutex
	encoder *msgpack.Encoder

	// sessions is only touched by the reader loop
	sessions map[string]*convert.Session
	nextID   int

	maxSessions atomic.Int64
	maxBuffer   atomic.Int64

	pending sync.WaitGroup
}

// NewServer creates a server using stdin/stdout for IPC.
func NewServer(converter convert.Converter, cfg *config.Config, configPath string) *Server {
	return NewServerWithIO(converter, cfg, configPath, os.Stdin, os.Stdout)
}

// NewServerWithIO creates a server over the given streams.
func NewServerWithIO(converter convert.Converter, cfg *config.Config, configPath string, r io.Reader, w io.Writer) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Server{
		converter:  converter,
		configPath: configPath,
		watch:      cfg.Server.WatchConfig && configPath != "",
		decoder:    msgpack.NewDecoder(r),
		encoder:    msgpack.NewEncoder(w),
		sessions:   make(map[string]*convert.Session),
	}
	s.applyLimits(cfg.Server)
	return s
}

func (s *Server) applyLimits(sc config.ServerConfig) {
	s.maxSessions.Store(int64(sc.MaxSessions))
	s.maxBuffer.Store(int64(sc.MaxBuffer))
}

// Start serves requests until the input stream ends. In-flight candidate
// requests are allowed to finish before it returns.
func (s *Server) Start() error {
	log.Debug("Starting Server.")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if s.watch {
		w, err := config.NewWatcher(s.configPath, 0)
		if err != nil {
			log.Warnf("Config hot reload disabled: %v", err)
		} else {
			defer w.Close()
			w.OnChange(s.reloadConfig)
		}
	}

	s.send(map[string]string{"status": "ready"})

	defer s.closeAll()
	for {
		var req Request
		if err := s.decoder.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				s.pending.Wait()
				return nil
			}
			log.Errorf("Decoding request: %v", err)
			s.pending.Wait()
			return err
		}
		s.handleRequest(ctx, req)
	}
}

func (s *Server) reloadConfig(cfg *config.Config) {
	s.converter.SetOptions(cfg.Convert)
	s.applyLimits(cfg.Server)
	log.Debug("Applied reloaded config", "max_sessions", cfg.Server.MaxSessions, "max_candidates", cfg.Convert.MaxCandidates)
}

func (s *Server) closeAll() {
	for id, sess := range s.sessions {
		sess.Close()
		delete(s.sessions, id)
	}
}

// handleRequest dispatches one decoded request.
func (s *Server) handleRequest(ctx context.Context, req Request) {
	log.Debug("Request", "id", req.ID, "op", req.Op, "sid", req.SessionID)

	switch req.Op {
	case OpHealth:
		s.send(Response{ID: req.ID, Status: "ok", Stats: s.converter.Stats()})
		return
	case OpCreate:
		s.handleCreate(req)
		return
	case "":
		s.sendError(req.ID, "Missing 'op' field", convert.CodeBadRequest)
		return
	}

	sess, ok := s.sessions[req.SessionID]
	if !ok {
		s.sendError(req.ID, fmt.Sprintf("Unknown session: %q", req.SessionID), convert.CodeNotFound)
		return
	}

	var err error
	switch req.Op {
	case OpDestroy:
		sess.Close()
		delete(s.sessions, req.SessionID)
		s.send(Response{ID: req.ID, Status: "ok", SessionID: req.SessionID})
		return
	case OpInsert:
		if limit := int(s.maxBuffer.Load()); sess.Len()+utils.RuneLen(utils.NormalizePhonetic(req.Text)) > limit {
			s.sendError(req.ID, fmt.Sprintf("Buffer exceeds maximum length of %d units", limit), convert.CodeBadRequest)
			return
		}
		err = sess.Insert(req.Text)
	case OpDeleteForward:
		_, err = sess.DeleteForward(req.N)
	case OpDeleteBackward:
		_, err = sess.DeleteBackward(req.N)
	case OpMove:
		_, err = sess.MoveCursor(req.N)
	case OpStop:
		err = sess.StopComposition()
	case OpState:
	case OpCandidates:
		s.handleCandidates(ctx, req, sess)
		return
	default:
		s.sendError(req.ID, fmt.Sprintf("Unknown op: %s", req.Op), convert.CodeBadRequest)
		return
	}

	if err != nil {
		s.sendFailure(req.ID, err)
		return
	}
	s.send(s.snapshot(req, sess))
}

func (s *Server) handleCreate(req Request) {
	if limit := int(s.maxSessions.Load()); len(s.sessions) >= limit {
		s.sendError(req.ID, fmt.Sprintf("Session limit of %d reached", limit), convert.CodeTooManySessions)
		return
	}
	s.nextID++
	sid := "s" + strconv.Itoa(s.nextID)
	s.sessions[sid] = s.converter.NewSession()
	log.Debugf("Created session %s", sid)
	s.send(Response{ID: req.ID, Status: "ok", SessionID: sid})
}

// handleCandidates starts the search on the reader loop, so ordering against
// later edits is preserved, and waits for it on a separate goroutine.
func (s *Server) handleCandidates(ctx context.Context, req Request, sess *convert.Session) {
	start := time.Now()
	p, err := sess.Start(ctx, convert.Request{
		LeftContext:    req.Context,
		DictionaryPath: req.Dictionary,
		WeightPath:     req.Weights,
	})
	if err != nil {
		s.sendFailure(req.ID, err)
		return
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		cands, err := p.Wait(ctx)
		if errors.Is(err, convert.ErrSuperseded) {
			log.Debug("Dropping superseded request", "id", req.ID, "sid", req.SessionID)
			return
		}
		if err != nil {
			s.sendFailure(req.ID, err)
			return
		}
		if req.N > 0 && len(cands) > req.N {
			cands = cands[:req.N]
		}
		s.send(Response{
			ID:          req.ID,
			Status:      "ok",
			SessionID:   req.SessionID,
			Suggestions: cands,
			Count:       len(cands),
			TimeTaken:   time.Since(start).Microseconds(),
		})
	}()
}

func (s *Server) snapshot(req Request, sess *convert.Session) Response {
	return Response{
		ID:        req.ID,
		Status:    "ok",
		SessionID: req.SessionID,
		Count:     sess.Len(),
		Buffer:    sess.Text(),
		Kana:      sess.Kana(),
		Cursor:    sess.Cursor(),
		State:     sess.State().String(),
	}
}

// send encodes a reply. Writers from search goroutines and the reader loop
// are serialized so messages never interleave.
func (s *Server) send(response any) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.encoder.Encode(response); err != nil {
		log.Errorf("Encoding response: %v", err)
	}
}

func (s *Server) sendFailure(id string, err error) {
	code := convert.Classify(err)
	switch code {
	case convert.CodeInternal:
		log.Error("Request failed", "id", id, "err", err)
	case convert.CodeCancelled:
		log.Debug("Request cancelled", "id", id, "err", err)
	}
	s.sendError(id, err.Error(), code)
}

// sendError sends an error response
func (s *Server) sendError(id, message string, code int) {
	s.send(ErrorResponse{ID: id, Error: message, Code: code})
}
