// Package cli handles cmd line input and conversions for DBG and testing various features
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bastiangx/kanaserve/internal/logger"
	"github.com/bastiangx/kanaserve/pkg/convert"
	"github.com/charmbracelet/log"
)

const help = `type romaji or kana and press Enter to append it and convert the buffer.
commands:
  :b N      delete N units before the cursor
  :f N      delete N units after the cursor
  :m N      move the cursor by N (negative moves left)
  :ctx TEXT set the left context (empty clears it)
  :stop     clear the buffer
  :state    show the buffer
  :help     show this message`

// InputHandler drives one conversion session from line based input.
type InputHandler struct {
	session     *convert.Session
	limit       int
	leftContext string
	in          io.Reader
	out         *log.Logger
}

// NewInputHandler creates a handler reading stdin and printing to stderr.
func NewInputHandler(converter convert.Converter, limit int, leftContext string) *InputHandler {
	return NewInputHandlerWithIO(converter, limit, leftContext, os.Stdin, os.Stderr)
}

// NewInputHandlerWithIO creates a handler over the given streams.
func NewInputHandlerWithIO(converter convert.Converter, limit int, leftContext string, r io.Reader, w io.Writer) *InputHandler {
	return &InputHandler{
		session:     converter.NewSession(),
		limit:       limit,
		leftContext: leftContext,
		in:          r,
		out:         logger.NewWithWriter(w, ""),
	}
}

// Start runs the input loop until the input ends. EOF is not an error.
func (h *InputHandler) Start() error {
	defer h.session.Close()
	h.out.Print("KanaServe CLI [BETA]")
	h.out.Print("type :help for commands (Ctrl+C to exit)")

	scanner := bufio.NewScanner(h.in)
	for {
		h.out.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		h.handleInput(line)
	}
}

// handleInput runs a command or inserts text, then converts the buffer.
func (h *InputHandler) handleInput(line string) {
	if strings.HasPrefix(line, ":") {
		if !h.handleCommand(line) {
			return
		}
	} else if err := h.session.Insert(line); err != nil {
		h.out.Errorf("Rejected input: %v", err)
		return
	}
	h.convert()
}

// handleCommand applies an editing command. It reports whether the buffer
// should be converted afterwards.
func (h *InputHandler) handleCommand(line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	count := func() (int, bool) {
		if arg == "" {
			return 1, true
		}
		n, err := strconv.Atoi(arg)
		if err != nil {
			h.out.Errorf("Expected a number, got %q", arg)
			return 0, false
		}
		return n, true
	}

	switch name {
	case ":b", ":f", ":m":
		n, ok := count()
		if !ok {
			return false
		}
		var err error
		switch name {
		case ":b":
			_, err = h.session.DeleteBackward(n)
		case ":f":
			_, err = h.session.DeleteForward(n)
		default:
			_, err = h.session.MoveCursor(n)
		}
		if err != nil {
			h.out.Errorf("%v", err)
			return false
		}
		return true
	case ":ctx":
		h.leftContext = arg
		h.out.Printf("Left context: %q", arg)
		return true
	case ":stop":
		if err := h.session.StopComposition(); err != nil {
			h.out.Errorf("%v", err)
		}
		h.out.Print("Buffer cleared")
		return false
	case ":state":
		h.printState()
		return false
	case ":help":
		h.out.Print(help)
		return false
	}
	h.out.Errorf("Unknown command: %s", name)
	return false
}

func (h *InputHandler) printState() {
	cur := h.session.Cursor()
	units := []rune(h.session.Text())
	h.out.Printf("[%s|%s] (%s) state=%s", string(units[:cur]), string(units[cur:]), h.session.Kana(), h.session.State())
}

func (h *InputHandler) convert() {
	h.printState()
	if h.session.Len() == 0 {
		return
	}

	start := time.Now()
	cands, err := h.session.RequestCandidates(context.Background(), convert.Request{LeftContext: h.leftContext})
	elapsed := time.Since(start)
	if err != nil {
		h.out.Errorf("Conversion failed: %v", err)
		return
	}
	log.Debugf("Took [ %v ] for %q", elapsed, h.session.Text())

	if len(cands) == 0 {
		h.out.Warnf("No candidates for '%s'", h.session.Text())
		return
	}
	if h.limit > 0 && len(cands) > h.limit {
		cands = cands[:h.limit]
	}

	h.out.Printf("Found %d candidates:", len(cands))
	for i, c := range cands {
		text := fmt.Sprintf("\033[38;5;75m%s\033[0m", c.Text)
		h.out.Printf("%2d. %-30s (units: %2d, cost: %8s)", i+1, text, c.CorrespondingCount, formatWithCommas(c.Cost))
	}
}

// formatWithCommas formats an integer with comma separators
func formatWithCommas(n int64) string {
	str := strconv.FormatInt(n, 10)
	sign := ""
	if n < 0 {
		sign, str = "-", str[1:]
	}
	if len(str) <= 3 {
		return sign + str
	}
	var b strings.Builder
	for i, char := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(char)
	}
	return sign + b.String()
}
