package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ieee0824/translate-go/phrase"
)

func TestSystem_Layout(t *testing.T) {
	sys := NewSystem()
	wp := NewWordPenalty("")
	pp := NewPrunedPosterior("")
	require.NoError(t, sys.Register(wp, []float64{-0.5}))
	require.NoError(t, sys.Register(pp, nil))
	assert.Error(t, sys.Register(NewWordPenalty(""), nil), "duplicate name")
	assert.Error(t, sys.Register(NewWordPenalty("wp2"), []float64{1, 2}), "weight count")
	assert.Equal(t, 2, sys.NumScores())
	assert.Empty(t, sys.StatefulFeatures())

	s := sys.NewScores()
	sys.PlusEquals(&s, wp, 2)
	sys.PlusEquals(&s, pp, 3)
	assert.Equal(t, []float64{2, 3}, s.Values)
	assert.InDelta(t, 2.0, s.Total, 1e-12)

	sys.Assign(&s, wp, []float64{4})
	assert.Equal(t, []float64{4, 3}, s.Values)
	assert.InDelta(t, 1.0, s.Total, 1e-12)

	assert.InDelta(t, -1.0, sys.WeightedScore(wp, 2), 1e-12)
	assert.Panics(t, func() { sys.PlusEquals(&s, NewWordPenalty("unregistered"), 1) })
	assert.Panics(t, func() { sys.PlusEquals(&s, wp, 1, 2) })
}

func TestWordPenalty(t *testing.T) {
	sys := NewSystem()
	wp := NewWordPenalty("")
	require.NoError(t, sys.Register(wp, nil))

	tp := &phrase.TargetPhrase{Words: phrase.Parse("a b c"), Scores: sys.NewScores()}
	sys.EvaluateInIsolation(nil, nil, tp)
	assert.Equal(t, []float64{-3}, tp.Scores.Values)
}

func TestPrunedPosterior(t *testing.T) {
	sys := NewSystem()
	pp := NewPrunedPosterior("")
	require.NoError(t, sys.Register(pp, []float64{0}))

	tps := phrase.NewTargetPhrases(3)
	for _, x := range []float64{-1, -2, -3} {
		tps.Add(&phrase.TargetPhrase{Scores: phrase.Scores{Values: []float64{0}, Total: x}})
	}
	sys.EvaluateAfterTablePruning(nil, tps, nil)

	mass := 0.0
	for _, tp := range tps.All() {
		mass += math.Exp(tp.Scores.Values[0])
	}
	assert.InDelta(t, 1.0, mass, 1e-12)
	assert.Greater(t, tps.At(0).Scores.Values[0], tps.At(1).Scores.Values[0])
	// zero weight leaves the totals untouched
	assert.Equal(t, -1.0, tps.At(0).Scores.Total)
}

func TestParseFeatureLine(t *testing.T) {
	p, err := ParseFeatureLine("  PhraseMemory name=PT0 table-limit=20   in-memory=true ")
	require.NoError(t, err)
	assert.Equal(t, "PhraseMemory", p.Kind)
	assert.Equal(t, "PT0", p.String("name", ""))
	n, err := p.Int("table-limit", 5)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
	b, err := p.Bool("in-memory", false)
	require.NoError(t, err)
	assert.True(t, b)
	f, err := p.Float("missing", 1.5)
	require.NoError(t, err)
	assert.Equal(t, 1.5, f)
	assert.NoError(t, p.Check())

	_, err = ParseFeatureLine("")
	assert.Error(t, err)
	_, err = ParseFeatureLine("name=x")
	assert.Error(t, err)
	_, err = ParseFeatureLine("LM path")
	assert.Error(t, err)
	_, err = ParseFeatureLine("LM a=1 a=2")
	assert.Error(t, err)

	p, _ = ParseFeatureLine("LM order=three")
	_, err = p.Int("order", 0)
	assert.Error(t, err)
}

func TestParseStatelessFeature(t *testing.T) {
	p, _ := ParseFeatureLine("WordPenalty name=WP")
	f, ok, err := ParseStatelessFeature(p)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "WP", f.Name())

	p, _ = ParseFeatureLine("PrunedPosterior bogus=1")
	_, ok, err = ParseStatelessFeature(p)
	assert.True(t, ok)
	assert.ErrorIs(t, err, ErrUnknownParameter)

	p, _ = ParseFeatureLine("InterpolatedLM path=x")
	_, ok, _ = ParseStatelessFeature(p)
	assert.False(t, ok)
}
