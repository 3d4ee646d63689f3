package lattice

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/bastiangx/kanaserve/internal/utils"
	"github.com/bastiangx/kanaserve/pkg/lm"
	"github.com/charmbracelet/log"
)

// Path is one ranked conversion.
type Path struct {
	Text string
	// Count is how many buffer units from position 0 the path covers.
	Count int
	Cost  int64
	Nodes []*Node
}

// Segments renders the path as "surface/key" pieces joined by spaces.
func (p Path) Segments() string {
	parts := make([]string, 0, len(p.Nodes))
	for _, n := range p.Nodes {
		seg := n.Entry.Surface + "/" + n.Entry.Key
		if n.Predicted {
			seg += "*"
		}
		parts = append(parts, seg)
	}
	return strings.Join(parts, " ")
}

// hyp is a partial path ending at some buffer position.
type hyp struct {
	cost  int64
	text  string
	state lm.State
	node  *Node
	prev  *hyp
}

func lessHyp(a, b *hyp) bool {
	if a.cost != b.cost {
		return a.cost < b.cost
	}
	return a.text < b.text
}

// beam keeps the best partial paths ending at one position, sorted, one per text.
type beam struct {
	hyps  []*hyp
	width int
}

func (b *beam) push(h *hyp) {
	for i, o := range b.hyps {
		if o.text != h.text {
			continue
		}
		if !lessHyp(h, o) {
			return
		}
		b.hyps = slices.Delete(b.hyps, i, i+1)
		break
	}
	if len(b.hyps) >= b.width && !lessHyp(h, b.hyps[len(b.hyps)-1]) {
		return
	}
	at := sort.Search(len(b.hyps), func(i int) bool { return lessHyp(h, b.hyps[i]) })
	b.hyps = slices.Insert(b.hyps, at, h)
	if len(b.hyps) > b.width {
		b.hyps = b.hyps[:b.width]
	}
}

type ending struct {
	h     *hyp
	count int
	total int64
}

// Search returns up to opts.K paths from position 0, ordered by total cost,
// then longer coverage, then smaller text. Texts are unique.
func Search(ctx context.Context, l *Lattice, scorer lm.Scorer, leftContext string, opts Options) ([]Path, error) {
	opts = opts.normalized()
	if l == nil || l.n == 0 {
		return nil, nil
	}
	n := l.n

	beams := make([]*beam, n+1)
	beams[0] = &beam{hyps: []*hyp{{state: scorer.Begin(leftContext)}}, width: opts.Beam}

	for pos := 0; pos < n; pos++ {
		from := beams[pos]
		if from == nil || len(from.hyps) == 0 {
			continue
		}
		nodes := l.byStart[pos]
		for i := range nodes {
			if err := cancelled(ctx); err != nil {
				return nil, err
			}
			node := &nodes[i]
			to := beams[node.End]
			if to == nil {
				to = &beam{width: opts.Beam}
				beams[node.End] = to
			}
			for _, h := range from.hyps {
				cost := h.cost + scorer.Edge(h.state, node.Entry)
				if node.Predicted {
					cost += opts.PredictionCost
				}
				to.push(&hyp{
					cost:  cost,
					text:  h.text + node.Entry.Surface,
					state: lm.Next(node.Entry),
					node:  node,
					prev:  h,
				})
			}
		}
	}

	var endings []ending
	for pos := 1; pos <= n; pos++ {
		if beams[pos] == nil {
			continue
		}
		for _, h := range beams[pos].hyps {
			endings = append(endings, ending{h: h, count: pos, total: h.cost + scorer.End(h.state, n-pos)})
		}
	}
	slices.SortFunc(endings, func(a, b ending) int {
		switch {
		case a.total != b.total:
			if a.total < b.total {
				return -1
			}
			return 1
		case a.count != b.count:
			return b.count - a.count
		}
		return strings.Compare(a.h.text, b.h.text)
	})

	filter := utils.NewCandidateFilter()
	paths := make([]Path, 0, min(opts.K, len(endings)))
	for _, e := range endings {
		if len(paths) == opts.K {
			break
		}
		if !filter.ShouldInclude(e.h.text) {
			continue
		}
		p := e.path()
		if err := validate(p, n); err != nil {
			log.Error("Discarding search result", "err", err, "text", p.Text, "count", p.Count)
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func (e ending) path() Path {
	var nodes []*Node
	for h := e.h; h.node != nil; h = h.prev {
		nodes = append(nodes, h.node)
	}
	slices.Reverse(nodes)
	return Path{Text: e.h.text, Count: e.count, Cost: e.total, Nodes: nodes}
}

// validate checks the invariants every returned path must hold.
func validate(p Path, n int) error {
	if p.Count < 1 || p.Count > n {
		return fmt.Errorf("%w: coverage %d outside [1,%d]", ErrFault, p.Count, n)
	}
	if p.Text == "" {
		return fmt.Errorf("%w: empty text covering %d units", ErrFault, p.Count)
	}
	pos := 0
	for _, node := range p.Nodes {
		if node.Start != pos {
			return fmt.Errorf("%w: gap at unit %d", ErrFault, pos)
		}
		pos = node.End
	}
	if pos != p.Count {
		return fmt.Errorf("%w: nodes end at %d, path claims %d", ErrFault, pos, p.Count)
	}
	return nil
}
