package phrasetable

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ieee0824/translate-go/internal/logger"
	"github.com/ieee0824/translate-go/language"
	"github.com/ieee0824/translate-go/phrase"
	"github.com/ieee0824/translate-go/phrasemem"
	"github.com/ieee0824/translate-go/scoring"
)

// hook records every post-pruning call.
type hook struct {
	calls [][]string
}

func (h *hook) Name() string   { return "hook" }
func (h *hook) NumScores() int { return 1 }

func (h *hook) EvaluateAfterTablePruning(_ *scoring.System, _ *scoring.Task, targets *phrase.TargetPhrases, _ phrase.Phrase) {
	var got []string
	for _, tp := range targets.All() {
		got = append(got, tp.Words.String())
	}
	h.calls = append(h.calls, got)
}

func record(vocab *language.Vocabulary, target string, score float64) phrasemem.TranslationOption {
	var ids []language.WordID
	for _, w := range strings.Fields(target) {
		ids = append(ids, vocab.Add(w))
	}
	return phrasemem.TranslationOption{
		TargetPhrase: ids,
		Alignment:    []phrasemem.AlignmentPoint{{Source: 0, Target: 0}},
		Scores:       []float64{score, 0, 0, 0},
	}
}

type setup struct {
	vocab *language.Vocabulary
	index *phrasemem.MemoryIndex
	pt    *PhraseTable
	hook  *hook
	sys   *scoring.System
	task  *scoring.Task
}

func newSetup(t *testing.T, tableLimit int) *setup {
	t.Helper()
	vocab := language.NewVocabulary()
	index := phrasemem.NewMemoryIndex(vocab)
	cfg := DefaultConfig()
	cfg.TableLimit = tableLimit
	pt := New(cfg, index, vocab)
	pt.log = logger.Discard()

	h := &hook{}
	sys := scoring.NewSystem()
	require.NoError(t, sys.Register(pt, nil))
	require.NoError(t, sys.Register(h, nil))
	task := scoring.BeginTask(nil, nil, scoring.WithLogger(logger.Discard()))
	t.Cleanup(task.EndTask)
	return &setup{vocab: vocab, index: index, pt: pt, hook: h, sys: sys, task: task}
}

func (s *setup) add(source string, opt phrasemem.TranslationOption) {
	var ids []language.WordID
	for _, w := range strings.Fields(source) {
		ids = append(ids, s.vocab.Add(w))
	}
	s.index.Add(ids, opt)
}

func TestSpanLifecycle(t *testing.T) {
	s := newSetup(t, 2)
	s.add("haus", record(s.vocab, "house", -1))
	s.add("haus", record(s.vocab, "home", -3))
	s.add("haus", record(s.vocab, "building", -2))

	sentence := phrase.Parse("haus")
	paths := NewInputPaths(sentence, s.pt.MaxPhraseLength())
	require.Len(t, paths, 1)
	p := paths[0]
	assert.Equal(t, NotRequested, p.Stage())

	require.NoError(t, s.pt.Lookup(context.Background(), s.sys, s.task, sentence, paths))
	assert.Equal(t, Pruned, p.Stage())
	assert.Len(t, p.Options(), 3)
	require.Len(t, s.hook.calls, 1)
	assert.Equal(t, []string{"house", "building"}, s.hook.calls[0])

	targets := p.Consume()
	assert.Equal(t, Consumed, p.Stage())
	require.Equal(t, 2, targets.Len())
	assert.Equal(t, "house", targets.At(0).Words.String())
	assert.Equal(t, phrase.Alignment{{Source: 0, Target: 0}}, targets.At(0).Alignment)
	assert.Equal(t, []float64{-1, 0, 0, 0, 0}, targets.At(0).Scores.Values)

	assert.Panics(t, func() { p.Consume() })
}

func TestRankingIsStable(t *testing.T) {
	s := newSetup(t, 0)
	for _, w := range []string{"a", "b", "c", "d"} {
		s.add("x", record(s.vocab, w, -1))
	}
	s.add("x", record(s.vocab, "best", -0.5))

	sentence := phrase.Parse("x")
	paths := NewInputPaths(sentence, 1)
	require.NoError(t, s.pt.Lookup(context.Background(), s.sys, s.task, sentence, paths))
	require.Len(t, s.hook.calls, 1)
	assert.Equal(t, []string{"best", "a", "b", "c", "d"}, s.hook.calls[0])
}

func TestLookup_SpansWithoutRecords(t *testing.T) {
	s := newSetup(t, 20)
	s.add("das haus", record(s.vocab, "the house", -1))
	s.add("haus", record(s.vocab, "house", -1))

	sentence := phrase.Parse("das haus ist")
	paths := NewInputPaths(sentence, 2)
	require.Len(t, paths, 5)

	require.NoError(t, s.pt.Lookup(context.Background(), s.sys, s.task, sentence, paths))
	var ready []string
	for _, p := range paths {
		if p.HasCandidates() {
			ready = append(ready, p.Source.String())
		} else {
			assert.Equal(t, Retrieved, p.Stage())
			assert.Panics(t, func() { p.Consume() })
		}
	}
	assert.Equal(t, []string{"das haus", "haus"}, ready)
	assert.Len(t, s.hook.calls, 2)
}

func TestLookupSpanPanics(t *testing.T) {
	s := newSetup(t, 20)
	p := NewInputPaths(phrase.Parse("x"), 1)[0]
	assert.PanicsWithValue(t, ErrSpanLookupUnsupported, func() {
		s.pt.LookupSpan(context.Background(), s.sys, s.task, p)
	})
}

func TestMaterializeWithLanguageModel(t *testing.T) {
	b := language.NewBuilder(2)
	b.AddSentence([]string{"the", "house"})
	b.AddSentence([]string{"the", "house"})
	b.AddSentence([]string{"house", "the"})
	lmVocab := language.NewVocabulary()
	src := language.NewInterpolatedModel(b.Model(lmVocab), 0)
	lm := scoring.NewLM(scoring.LMConfig{Name: "LM0"}, src)

	vocab := language.NewVocabulary()
	index := phrasemem.NewMemoryIndex(vocab)
	pt := New(DefaultConfig(), index, vocab)
	pt.log = logger.Discard()
	sys := scoring.NewSystem()
	require.NoError(t, sys.Register(pt, []float64{0, 0, 0, 0}))
	require.NoError(t, sys.Register(lm, nil))
	task := scoring.BeginTask(src, nil, scoring.WithLogger(logger.Discard()))
	defer task.EndTask()

	s := &setup{vocab: vocab, index: index}
	s.add("das haus", record(vocab, "house the", 0))
	s.add("das haus", record(vocab, "the house", 0))

	sentence := phrase.Parse("das haus")
	paths := NewInputPaths(sentence, 2)
	require.NoError(t, pt.Lookup(context.Background(), sys, task, sentence, paths))

	var targets *phrase.TargetPhrases
	for _, p := range paths {
		if p.HasCandidates() {
			targets = p.Consume()
		}
	}
	require.NotNil(t, targets)
	require.Equal(t, 2, targets.Len())
	best := targets.At(0)
	assert.Equal(t, "the house", best.Words.String())

	full, ngram, _ := lm.IsolatedScore(task, best.Words)
	assert.InDelta(t, ngram, best.Scores.Total, 1e-12)
	assert.InDelta(t, full-ngram, best.Estimated, 1e-12)
	assert.False(t, math.IsInf(best.FutureScore(), 0))
}

func TestParseConfig(t *testing.T) {
	p, err := scoring.ParseFeatureLine("PhraseMemory name=TM0 path=pm.db table-limit=5 sample-limit=50 in-memory=true")
	require.NoError(t, err)
	cfg, err := ParseConfig(p)
	require.NoError(t, err)
	assert.Equal(t, Config{
		Name: "TM0", Path: "pm.db", TableLimit: 5, SampleLimit: 50, MaxPhraseLength: 7, InMemory: true,
	}, cfg)

	p, _ = scoring.ParseFeatureLine("PhraseMemory table-limit=5")
	_, err = ParseConfig(p)
	assert.Error(t, err)

	p, _ = scoring.ParseFeatureLine("PhraseMemory path=pm.db tablelimit=5")
	_, err = ParseConfig(p)
	assert.ErrorIs(t, err, scoring.ErrUnknownParameter)

	p, _ = scoring.ParseFeatureLine("PhraseMemory path=pm.db max-phrase-length=0")
	_, err = ParseConfig(p)
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pm.db")
	store, err := phrasemem.Open(path)
	require.NoError(t, err)
	require.NoError(t, store.AddEntries(context.Background(), []phrasemem.Entry{
		{Source: []string{"haus"}, Target: []string{"house"}, Scores: []float64{-1, -1, -1, -1}},
		{Source: []string{"das", "haus"}, Target: []string{"the", "house"}, Scores: []float64{-1, -1, -1, -1}},
	}))
	require.NoError(t, store.Close())

	for _, inMemory := range []bool{false, true} {
		cfg := DefaultConfig()
		cfg.Path = path
		cfg.InMemory = inMemory
		pt, err := Open(context.Background(), cfg)
		require.NoError(t, err)
		pt.log = logger.Discard()
		assert.Equal(t, 2, pt.MaxPhraseLength())

		sys := scoring.NewSystem()
		require.NoError(t, sys.Register(pt, nil))
		task := scoring.BeginTask(nil, nil, scoring.WithLogger(logger.Discard()))
		sentence := phrase.Parse("das haus")
		paths := NewInputPaths(sentence, pt.MaxPhraseLength())
		require.NoError(t, pt.Lookup(context.Background(), sys, task, sentence, paths))

		n := 0
		for _, p := range paths {
			if p.HasCandidates() {
				n++
			}
		}
		assert.Equal(t, 2, n, "in-memory=%v", inMemory)
		task.EndTask()
		require.NoError(t, pt.Close())
	}
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "pruned", Pruned.String())
	assert.Equal(t, "stage(9)", Stage(9).String())
}
