package scoring

import (
	"github.com/ieee0824/translate-go/internal/mathutil"
	"github.com/ieee0824/translate-go/phrase"
)

// WordPenalty adds -1 per target word.
type WordPenalty struct {
	name string
}

// NewWordPenalty creates a word penalty feature.
func NewWordPenalty(name string) *WordPenalty {
	if name == "" {
		name = "WordPenalty0"
	}
	return &WordPenalty{name: name}
}

// Name implements Feature.
func (f *WordPenalty) Name() string { return f.name }

// NumScores implements Feature.
func (f *WordPenalty) NumScores() int { return 1 }

// EvaluateInIsolation implements IsolatedFeature.
func (f *WordPenalty) EvaluateInIsolation(sys *System, _ *Task, _ phrase.Phrase, target *phrase.TargetPhrase) {
	sys.PlusEquals(&target.Scores, f, -float64(target.Len()))
}

// PrunedPosterior scores each surviving candidate by its log share of the
// surviving candidates' future-score mass:
//
//	s_i - log sum_j exp(s_j)
//
// It only makes sense after table-limit pruning, which is why it is a
// PruningFeature.
type PrunedPosterior struct {
	name string
}

// NewPrunedPosterior creates a post-pruning posterior feature.
func NewPrunedPosterior(name string) *PrunedPosterior {
	if name == "" {
		name = "PrunedPosterior0"
	}
	return &PrunedPosterior{name: name}
}

// Name implements Feature.
func (f *PrunedPosterior) Name() string { return f.name }

// NumScores implements Feature.
func (f *PrunedPosterior) NumScores() int { return 1 }

// EvaluateAfterTablePruning implements PruningFeature.
func (f *PrunedPosterior) EvaluateAfterTablePruning(sys *System, _ *Task, targets *phrase.TargetPhrases, _ phrase.Phrase) {
	if targets.Len() == 0 {
		return
	}
	xs := make([]float64, targets.Len())
	for i, tp := range targets.All() {
		xs[i] = tp.FutureScore()
	}
	z := mathutil.LogSumExp(xs)
	for i, tp := range targets.All() {
		sys.PlusEquals(&tp.Scores, f, xs[i]-z)
	}
}

// ParseStatelessFeature builds a WordPenalty or PrunedPosterior from its
// feature line.
func ParseStatelessFeature(p *Params) (Feature, bool, error) {
	var f Feature
	switch p.Kind {
	case "WordPenalty":
		f = NewWordPenalty(p.String("name", ""))
	case "PrunedPosterior":
		f = NewPrunedPosterior(p.String("name", ""))
	default:
		return nil, false, nil
	}
	return f, true, p.Check()
}
