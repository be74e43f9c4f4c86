// Package aligner produces word-level alignment operations. Inside each
// window it runs an edit-distance dynamic program with domain costs (spoken
// equivalences are near-free substitutions, filler disfluencies are
// near-free transcript insertions); anchor positions become match records
// directly. Windows are independent, so alignment may fan out across a
// worker pool; results are merged back in window order so output is
// deterministic regardless of scheduling.
package aligner

import (
	"context"
	"fmt"
	"runtime"

	"github.com/antzucaro/matchr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bookalign/internal/anchor"
	"bookalign/internal/window"
)

// Cost constants for the window dynamic program. Equivalent substitutions
// and filler insertions are cheap but not free, so the traceback still
// prefers an exact match when one is available.
const (
	costMatch     = 0.0
	costEquiv     = 0.01
	costFiller    = 0.1
	costSub       = 1.0
	costInsertion = 1.0
	costDeletion  = 1.0
)

// Score assigned to equivalence-table substitutions. Exact matches score 1;
// plain substitutions carry their Jaro-Winkler similarity instead.
const equivScore = 0.95

// defaultFillers are disfluency tokens the ASR emits that never appear in a
// manuscript.
var defaultFillers = []string{"um", "uh", "uhm", "erm", "er", "ah", "mm", "hmm", "mhm"}

// defaultEquivalences maps spelled variants to a shared canonical form so
// they align as near-matches instead of full substitutions.
var defaultEquivalences = map[string]string{
	"ok":      "okay",
	"grey":    "gray",
	"mr":      "mister",
	"mrs":     "missus",
	"dr":      "doctor",
	"st":      "saint",
	"theater": "theatre",
	"color":   "colour",
	"honor":   "honour",
}

// Options configures the aligner. The zero value disables equivalences and
// fillers and runs windows sequentially; start from DefaultOptions for the
// standard behavior.
type Options struct {
	// Equivalences maps a token to its canonical form; two tokens are
	// equivalent when their canonical forms agree.
	Equivalences map[string]string
	// Fillers are transcript tokens treated as near-free insertions.
	Fillers map[string]bool
	// Workers bounds concurrent window alignment; values below 1 mean
	// one worker per CPU.
	Workers int
}

// DefaultOptions returns the standard equivalence table, filler set, and a
// CPU-bound worker count.
func DefaultOptions() Options {
	fillers := make(map[string]bool, len(defaultFillers))
	for _, f := range defaultFillers {
		fillers[f] = true
	}
	equiv := make(map[string]string, len(defaultEquivalences))
	for k, v := range defaultEquivalences {
		equiv[k] = v
	}
	return Options{
		Equivalences: equiv,
		Fillers:      fillers,
		Workers:      runtime.NumCPU(),
	}
}

// Aligner runs windowed alignment under fixed options.
type Aligner struct {
	opts   Options
	logger *zap.Logger
}

// NewAligner creates an Aligner with the given options.
func NewAligner(opts Options) *Aligner {
	return NewAlignerWithLogger(opts, nil)
}

// NewAlignerWithLogger creates an Aligner with the given options and logger.
func NewAlignerWithLogger(opts Options, logger *zap.Logger) *Aligner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aligner{opts: opts, logger: logger}
}

// Align produces the complete ordered WordAlign list for the two filtered
// token streams: one match record per anchor plus the dynamic-program output
// of every window, merged in position order with duplicate
// (bookIdx, asrIdx, op) triples removed. Windows run
// concurrently up to Options.Workers; cancellation is cooperative at window
// granularity.
func (al *Aligner) Align(ctx context.Context, bookTokens, asrTokens []string, anchors []anchor.Anchor, windows []window.Window) ([]WordAlign, error) {
	for i, w := range windows {
		if w.BookLo < 0 || w.BookHi > len(bookTokens) || w.BookLo > w.BookHi ||
			w.ASRLo < 0 || w.ASRHi > len(asrTokens) || w.ASRLo > w.ASRHi {
			return nil, fmt.Errorf("window %d out of range: book [%d,%d) of %d, asr [%d,%d) of %d",
				i, w.BookLo, w.BookHi, len(bookTokens), w.ASRLo, w.ASRHi, len(asrTokens))
		}
	}

	windowResults := make([][]WordAlign, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	workers := al.opts.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	g.SetLimit(workers)

	for i, w := range windows {
		i, w := i, w
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			windowResults[i] = al.AlignWindow(
				bookTokens[w.BookLo:w.BookHi],
				asrTokens[w.ASRLo:w.ASRHi],
				w.BookLo, w.ASRLo)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("window alignment cancelled: %w", err)
	}

	merged := al.merge(anchors, windows, windowResults)
	al.logger.Info("alignment complete",
		zap.Int("anchors", len(anchors)),
		zap.Int("windows", len(windows)),
		zap.Int("records", len(merged)))
	return merged, nil
}

// merge interleaves anchor match records with window results in ascending
// book order. Anchors and windows partition the index space without overlap,
// so a two-pointer walk suffices; an insertion-only window whose BookLo
// equals the next anchor's position precedes that anchor.
func (al *Aligner) merge(anchors []anchor.Anchor, windows []window.Window, results [][]WordAlign) []WordAlign {
	total := len(anchors)
	for _, r := range results {
		total += len(r)
	}
	out := make([]WordAlign, 0, total)
	seen := make(map[string]bool, total)

	appendRecord := func(rec WordAlign) {
		key := tripleKey(rec)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, rec)
	}

	ai, wi := 0, 0
	for ai < len(anchors) || wi < len(windows) {
		takeWindow := wi < len(windows) &&
			(ai >= len(anchors) || windows[wi].BookLo <= anchors[ai].BookPos)
		if takeWindow {
			for _, rec := range results[wi] {
				appendRecord(rec)
			}
			wi++
			continue
		}
		a := anchors[ai]
		appendRecord(Match(a.BookPos, a.ASRPos, "anchor", 1.0))
		ai++
	}
	return out
}

func tripleKey(rec WordAlign) string {
	b, a := -1, -1
	if rec.BookIdx != nil {
		b = *rec.BookIdx
	}
	if rec.ASRIdx != nil {
		a = *rec.ASRIdx
	}
	return fmt.Sprintf("%d:%d:%d", b, a, int(rec.Op))
}

// AlignWindow aligns one book sub-array against one transcript sub-array
// with edit-distance dynamic programming and re-expresses the traceback as
// WordAlign records. bookOffset and asrOffset translate window-local
// positions back to absolute filtered coordinates.
func (al *Aligner) AlignWindow(bookTokens, asrTokens []string, bookOffset, asrOffset int) []WordAlign {
	n, m := len(bookTokens), len(asrTokens)
	if n == 0 && m == 0 {
		return nil
	}

	// cost[i][j] is the cheapest alignment of bookTokens[:i] with
	// asrTokens[:j].
	cost := make([][]float64, n+1)
	for i := range cost {
		cost[i] = make([]float64, m+1)
	}
	for i := 1; i <= n; i++ {
		cost[i][0] = cost[i-1][0] + costDeletion
	}
	for j := 1; j <= m; j++ {
		cost[0][j] = cost[0][j-1] + al.insertionCost(asrTokens[j-1])
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			diag := cost[i-1][j-1] + al.pairCost(bookTokens[i-1], asrTokens[j-1])
			up := cost[i-1][j] + costDeletion
			left := cost[i][j-1] + al.insertionCost(asrTokens[j-1])
			// Ties prefer the diagonal so spurious ins/del pairs never
			// replace a usable match or substitution.
			best := diag
			if up < best {
				best = up
			}
			if left < best {
				best = left
			}
			cost[i][j] = best
		}
	}

	// Traceback, preferring diagonal moves on ties per the cost loop.
	records := make([]WordAlign, 0, max(n, m))
	i, j := n, m
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && cost[i][j] == cost[i-1][j-1]+al.pairCost(bookTokens[i-1], asrTokens[j-1]):
			records = append(records, al.pairRecord(bookTokens[i-1], asrTokens[j-1], bookOffset+i-1, asrOffset+j-1))
			i--
			j--
		case j > 0 && cost[i][j] == cost[i][j-1]+al.insertionCost(asrTokens[j-1]):
			records = append(records, al.insertionRecord(asrTokens[j-1], asrOffset+j-1))
			j--
		default:
			records = append(records, Del(bookOffset+i-1, "del"))
			i--
		}
	}

	// Traceback walks back to front; restore forward order.
	for lo, hi := 0, len(records)-1; lo < hi; lo, hi = lo+1, hi-1 {
		records[lo], records[hi] = records[hi], records[lo]
	}
	return records
}

// pairCost is the diagonal cost of aligning a book token with an ASR token.
func (al *Aligner) pairCost(bookTok, asrTok string) float64 {
	if bookTok == asrTok {
		return costMatch
	}
	if al.equivalent(bookTok, asrTok) {
		return costEquiv
	}
	return costSub
}

// insertionCost is the cost of consuming an ASR token with no book
// counterpart. Fillers are near-free so disfluencies do not inflate error
// counts.
func (al *Aligner) insertionCost(asrTok string) float64 {
	if al.opts.Fillers[asrTok] {
		return costFiller
	}
	return costInsertion
}

func (al *Aligner) pairRecord(bookTok, asrTok string, bookIdx, asrIdx int) WordAlign {
	if bookTok == asrTok {
		return Match(bookIdx, asrIdx, "match", 1.0)
	}
	if al.equivalent(bookTok, asrTok) {
		return Sub(bookIdx, asrIdx, "equiv", equivScore)
	}
	return Sub(bookIdx, asrIdx, "sub", matchr.JaroWinkler(bookTok, asrTok, false))
}

func (al *Aligner) insertionRecord(asrTok string, asrIdx int) WordAlign {
	if al.opts.Fillers[asrTok] {
		return Ins(asrIdx, "filler")
	}
	return Ins(asrIdx, "ins")
}

// equivalent reports whether two differing tokens share a canonical form in
// the equivalence table.
func (al *Aligner) equivalent(a, b string) bool {
	if len(al.opts.Equivalences) == 0 {
		return false
	}
	return al.canonical(a) == al.canonical(b)
}

func (al *Aligner) canonical(tok string) string {
	if c, ok := al.opts.Equivalences[tok]; ok {
		return c
	}
	return tok
}
