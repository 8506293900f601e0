// Package scoring implements the feature-function protocol of the decoder:
// the score layout shared by all features, the per-task cache and arena,
// and the incremental n-gram language model scorer.
package scoring

import (
	"fmt"

	"github.com/ieee0824/translate-go/phrase"
)

// Feature is anything that contributes score components.
type Feature interface {
	Name() string
	NumScores() int
}

// IsolatedFeature scores a candidate before it enters the search.
type IsolatedFeature interface {
	Feature
	EvaluateInIsolation(sys *System, t *Task, source phrase.Phrase, target *phrase.TargetPhrase)
}

// PruningFeature is defined only over the candidates surviving table-limit
// pruning of one span. It runs once per span, after truncation.
type PruningFeature interface {
	Feature
	EvaluateAfterTablePruning(sys *System, t *Task, targets *phrase.TargetPhrases, source phrase.Phrase)
}

// StatefulFeature scores hypothesis extensions and carries a State from a
// hypothesis to its successors.
type StatefulFeature interface {
	Feature
	BlankState(t *Task) State
	EvaluateWhenApplied(sys *System, t *Task, ext Extension, prev State, scores *phrase.Scores) State
}

// State summarizes everything about a hypothesis that affects future scores
// of one stateful feature. Equal states allow hypothesis recombination.
type State interface {
	Hash() uint64
	Equal(other State) bool
}

// Sequence is the target side of a hypothesis.
type Sequence interface {
	Len() int
	At(i int) phrase.Word
}

// Extension describes one hypothesis extension: the whole target sequence
// of the new hypothesis and the positions [Begin, End) it added.
type Extension struct {
	Target           Sequence
	Begin            int
	End              int
	SentenceFinal    bool
	CoverageComplete bool
}

// System owns the score layout: which components belong to which feature
// and how they are weighted.
type System struct {
	features  []Feature
	offsets   map[Feature]int
	names     map[string]bool
	weights   []float64
	stateful  []StatefulFeature
	isolated  []IsolatedFeature
	postPrune []PruningFeature
}

// NewSystem creates an empty score layout.
func NewSystem() *System {
	return &System{offsets: make(map[Feature]int), names: make(map[string]bool)}
}

// Register appends f to the layout. weights must have NumScores entries;
// nil means weight 1 for every component.
func (s *System) Register(f Feature, weights []float64) error {
	if s.names[f.Name()] {
		return fmt.Errorf("feature %q registered twice", f.Name())
	}
	if weights == nil {
		weights = make([]float64, f.NumScores())
		for i := range weights {
			weights[i] = 1
		}
	}
	if len(weights) != f.NumScores() {
		return fmt.Errorf("feature %q: %d weights for %d scores", f.Name(), len(weights), f.NumScores())
	}
	s.names[f.Name()] = true
	s.offsets[f] = len(s.weights)
	s.weights = append(s.weights, weights...)
	s.features = append(s.features, f)
	if sf, ok := f.(StatefulFeature); ok {
		s.stateful = append(s.stateful, sf)
	}
	if iso, ok := f.(IsolatedFeature); ok {
		s.isolated = append(s.isolated, iso)
	}
	if pp, ok := f.(PruningFeature); ok {
		s.postPrune = append(s.postPrune, pp)
	}
	return nil
}

// NumScores returns the length of the score vector.
func (s *System) NumScores() int { return len(s.weights) }

// Features returns the registered features in order.
func (s *System) Features() []Feature { return s.features }

// StatefulFeatures returns the stateful features in registration order.
// Hypotheses store one State per entry, in the same order.
func (s *System) StatefulFeatures() []StatefulFeature { return s.stateful }

// Weights returns the weights of f.
func (s *System) Weights(f Feature) []float64 {
	off := s.offset(f)
	return s.weights[off : off+f.NumScores()]
}

// NewScores returns a zeroed score vector for this layout.
func (s *System) NewScores() phrase.Scores {
	return phrase.NewScores(s.NumScores())
}

// PlusEquals adds vals to the components of f and their weighted sum to the
// total.
func (s *System) PlusEquals(scores *phrase.Scores, f Feature, vals ...float64) {
	off := s.offset(f)
	if len(vals) != f.NumScores() {
		panic(fmt.Sprintf("scoring: feature %q adds %d scores, declared %d", f.Name(), len(vals), f.NumScores()))
	}
	for i, v := range vals {
		scores.Values[off+i] += v
		scores.Total += s.weights[off+i] * v
	}
}

// Assign replaces the components of f, keeping the total consistent.
func (s *System) Assign(scores *phrase.Scores, f Feature, vals []float64) {
	off := s.offset(f)
	if len(vals) != f.NumScores() {
		panic(fmt.Sprintf("scoring: feature %q assigns %d scores, declared %d", f.Name(), len(vals), f.NumScores()))
	}
	for i, v := range vals {
		scores.Total += s.weights[off+i] * (v - scores.Values[off+i])
		scores.Values[off+i] = v
	}
}

// WeightedScore returns the dot product of vals with the weights of f.
func (s *System) WeightedScore(f Feature, vals ...float64) float64 {
	w := s.Weights(f)
	total := 0.0
	for i, v := range vals {
		total += w[i] * v
	}
	return total
}

// EvaluateInIsolation runs every isolated feature on target.
func (s *System) EvaluateInIsolation(t *Task, source phrase.Phrase, target *phrase.TargetPhrase) {
	for _, f := range s.isolated {
		f.EvaluateInIsolation(s, t, source, target)
	}
}

// EvaluateAfterTablePruning runs every post-pruning feature on targets.
func (s *System) EvaluateAfterTablePruning(t *Task, targets *phrase.TargetPhrases, source phrase.Phrase) {
	for _, f := range s.postPrune {
		f.EvaluateAfterTablePruning(s, t, targets, source)
	}
}

func (s *System) offset(f Feature) int {
	off, ok := s.offsets[f]
	if !ok {
		panic(fmt.Sprintf("scoring: feature %q is not registered", f.Name()))
	}
	return off
}
