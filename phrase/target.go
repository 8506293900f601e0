package phrase

import (
	"fmt"
	"sort"
	"strings"
)

// AlignPoint links a source word to a target word, both phrase relative.
type AlignPoint struct {
	Source int
	Target int
}

// Alignment is a sorted set of alignment points.
type Alignment []AlignPoint

// NewAlignment builds the set of points, dropping duplicates.
func NewAlignment(points []AlignPoint) Alignment {
	a := make(Alignment, len(points))
	copy(a, points)
	sort.Slice(a, func(i, j int) bool {
		if a[i].Source != a[j].Source {
			return a[i].Source < a[j].Source
		}
		return a[i].Target < a[j].Target
	})
	out := a[:0]
	for i, p := range a {
		if i == 0 || p != a[i-1] {
			out = append(out, p)
		}
	}
	return out
}

func (a Alignment) String() string {
	parts := make([]string, len(a))
	for i, p := range a {
		parts[i] = fmt.Sprintf("%d-%d", p.Source, p.Target)
	}
	return strings.Join(parts, " ")
}

// Scores is a dense vector of feature score components plus their weighted
// total. The layout of Values is owned by scoring.System.
type Scores struct {
	Values []float64
	Total  float64
}

// NewScores returns a zeroed vector of n components.
func NewScores(n int) Scores {
	return Scores{Values: make([]float64, n)}
}

// Clone returns a deep copy.
func (s Scores) Clone() Scores {
	v := make([]float64, len(s.Values))
	copy(v, s.Values)
	return Scores{Values: v, Total: s.Total}
}

// TargetPhrase is one candidate rendering of a source span.
type TargetPhrase struct {
	Words     Phrase
	Alignment Alignment
	Scores    Scores

	// Estimated holds weighted scores that are only estimates in isolation,
	// such as the language model cost of the leading words.
	Estimated float64
}

// FutureScore is the ranking key used for pruning candidate lists.
func (tp *TargetPhrase) FutureScore() float64 {
	return tp.Scores.Total + tp.Estimated
}

// Len returns the number of target words.
func (tp *TargetPhrase) Len() int { return len(tp.Words) }

func (tp *TargetPhrase) String() string {
	return fmt.Sprintf("%s ||| %s ||| %.4f", tp.Words, tp.Alignment, tp.FutureScore())
}

// TargetPhrases is the candidate list of one source span.
type TargetPhrases struct {
	items []*TargetPhrase
}

// NewTargetPhrases allocates a list with room for n candidates.
func NewTargetPhrases(n int) *TargetPhrases {
	return &TargetPhrases{items: make([]*TargetPhrase, 0, n)}
}

// Add appends a candidate.
func (t *TargetPhrases) Add(tp *TargetPhrase) {
	t.items = append(t.items, tp)
}

// Len returns the number of candidates.
func (t *TargetPhrases) Len() int { return len(t.items) }

// At returns candidate i.
func (t *TargetPhrases) At(i int) *TargetPhrase { return t.items[i] }

// All returns the candidates in their current order.
func (t *TargetPhrases) All() []*TargetPhrase { return t.items }

// SortAndPrune orders candidates by FutureScore, best first, and keeps at
// most limit of them. Equal scores keep their insertion order. limit <= 0
// keeps everything. The discarded candidates are returned.
func (t *TargetPhrases) SortAndPrune(limit int) []*TargetPhrase {
	sort.SliceStable(t.items, func(i, j int) bool {
		return t.items[i].FutureScore() > t.items[j].FutureScore()
	})
	if limit <= 0 || len(t.items) <= limit {
		return nil
	}
	dropped := t.items[limit:]
	t.items = t.items[:limit:limit]
	return dropped
}
