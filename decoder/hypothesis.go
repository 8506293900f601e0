package decoder

import (
	"fmt"

	"github.com/ieee0824/translate-go/phrase"
	"github.com/ieee0824/translate-go/scoring"
)

// Hypothesis is a partial translation covering a prefix of the source.
// Hypotheses form a linked list back to the empty hypothesis so the target
// sequence is shared rather than copied.
type Hypothesis struct {
	prev    *Hypothesis
	target  *phrase.TargetPhrase
	source  phrase.Range
	length  int // target words so far
	unknown bool

	Scores phrase.Scores
	states []scoring.State
}

// Len implements scoring.Sequence.
func (h *Hypothesis) Len() int { return h.length }

// At implements scoring.Sequence.
func (h *Hypothesis) At(i int) phrase.Word {
	for n := h; n != nil && n.target != nil; n = n.prev {
		start := n.length - n.target.Len()
		if i >= start {
			return n.target.Words[i-start]
		}
	}
	panic(fmt.Sprintf("decoder: target position %d out of range [0,%d)", i, h.length))
}

// Covered returns the number of source words translated so far.
func (h *Hypothesis) Covered() int { return h.source.End }

// Score returns the weighted total score.
func (h *Hypothesis) Score() float64 { return h.Scores.Total }

// recombinationHash combines the hashes of all feature states.
func (h *Hypothesis) recombinationHash() uint64 {
	var x uint64 = 17
	for _, s := range h.states {
		x = x*31 + s.Hash()
	}
	return x
}

// recombinable reports whether h and o share every feature state, so only
// the better of the two can lead to the best translation.
func (h *Hypothesis) recombinable(o *Hypothesis) bool {
	if h.source.End != o.source.End || len(h.states) != len(o.states) {
		return false
	}
	for i, s := range h.states {
		if !s.Equal(o.states[i]) {
			return false
		}
	}
	return true
}

// chain returns the hypotheses from the first extension to h.
func (h *Hypothesis) chain() []*Hypothesis {
	var out []*Hypothesis
	for n := h; n != nil && n.target != nil; n = n.prev {
		out = append(out, n)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
