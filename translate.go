package translate

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/ieee0824/translate-go/config"
	"github.com/ieee0824/translate-go/decoder"
	"github.com/ieee0824/translate-go/internal/logger"
	"github.com/ieee0824/translate-go/language"
	"github.com/ieee0824/translate-go/phrase"
	"github.com/ieee0824/translate-go/phrasetable"
	"github.com/ieee0824/translate-go/scoring"
)

// Translator is the top-level phrase-based translator. Models and the
// phrase memory are shared; every sentence gets its own scoring task.
type Translator struct {
	System  *scoring.System
	LM      *scoring.LM // nil when no language model is configured
	Table   *phrasetable.PhraseTable
	DecCfg  decoder.Config
	Workers int

	log *log.Logger
}

// Option configures a Translator.
type Option func(*Translator)

// WithDecoderConfig sets custom search parameters.
func WithDecoderConfig(cfg decoder.Config) Option {
	return func(t *Translator) {
		t.DecCfg = cfg
	}
}

// WithWorkers sets the number of sentences translated concurrently by
// TranslateAll.
func WithWorkers(n int) Option {
	return func(t *Translator) {
		t.Workers = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(t *Translator) {
		t.log = l
	}
}

// New loads every feature listed in cfg and registers it with its weights.
// Exactly one PhraseMemory is required; at most one InterpolatedLM is
// supported.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Translator, error) {
	t := &Translator{
		System: scoring.NewSystem(),
		DecCfg: decoder.Config{
			BeamWidth:    cfg.Decoder.BeamWidth,
			MaxStackSize: cfg.Decoder.MaxStackSize,
		},
		Workers: cfg.Decoder.Workers,
		log:     logger.New("translate"),
	}
	for _, opt := range opts {
		opt(t)
	}

	ok := false
	defer func() {
		if !ok {
			t.Close()
		}
	}()

	used := make(map[string]bool)
	for _, line := range cfg.Features {
		f, err := t.loadFeature(ctx, cfg, line)
		if err != nil {
			return nil, err
		}
		weights, has := cfg.Weights[f.Name()]
		if has {
			used[f.Name()] = true
		}
		if err := t.System.Register(f, weights); err != nil {
			return nil, err
		}
		t.log.Info("loaded feature", "name", f.Name(), "scores", f.NumScores())
	}
	for name := range cfg.Weights {
		if !used[name] {
			return nil, fmt.Errorf("weights given for unknown feature %q", name)
		}
	}
	if t.Table == nil {
		return nil, errors.New("no PhraseMemory feature configured")
	}
	ok = true
	return t, nil
}

func (t *Translator) loadFeature(ctx context.Context, cfg *config.Config, line string) (scoring.Feature, error) {
	p, err := scoring.ParseFeatureLine(line)
	if err != nil {
		return nil, err
	}
	switch p.Kind {
	case scoring.LMKind:
		if t.LM != nil {
			return nil, fmt.Errorf("%s: only one language model is supported", p.Kind)
		}
		lmCfg, err := scoring.ParseLMConfig(p)
		if err != nil {
			return nil, err
		}
		lmCfg.Path = cfg.Resolve(lmCfg.Path)
		for id, path := range lmCfg.Domains {
			lmCfg.Domains[id] = cfg.Resolve(path)
		}
		t.LM, err = scoring.LoadLM(lmCfg, language.NewVocabulary())
		if err != nil {
			return nil, err
		}
		return t.LM, nil

	case phrasetable.Kind:
		if t.Table != nil {
			return nil, fmt.Errorf("%s: only one phrase table is supported", p.Kind)
		}
		ptCfg, err := phrasetable.ParseConfig(p)
		if err != nil {
			return nil, err
		}
		ptCfg.Path = cfg.Resolve(ptCfg.Path)
		t.Table, err = phrasetable.Open(ctx, ptCfg)
		if err != nil {
			return nil, err
		}
		return t.Table, nil
	}

	f, found, err := scoring.ParseStatelessFeature(p)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("unknown feature kind %q", p.Kind)
	}
	return f, nil
}

// NewFromModels creates a Translator from a registered score layout and
// pre-loaded models. lm may be nil.
func NewFromModels(sys *scoring.System, lm *scoring.LM, table *phrasetable.PhraseTable, opts ...Option) *Translator {
	t := &Translator{
		System:  sys,
		LM:      lm,
		Table:   table,
		DecCfg:  decoder.DefaultConfig(),
		Workers: 1,
		log:     logger.New("translate"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Close releases the phrase memory.
func (t *Translator) Close() error {
	if t.Table == nil {
		return nil
	}
	return t.Table.Close()
}

// Translate translates one whitespace-tokenized sentence under the given
// domain context.
func (t *Translator) Translate(ctx context.Context, sentence string, domains language.Context) (*decoder.Result, error) {
	task := t.beginTask(domains)
	defer task.EndTask()

	s := phrase.Parse(sentence)
	paths := phrasetable.NewInputPaths(s, t.Table.MaxPhraseLength())
	if err := t.Table.Lookup(ctx, t.System, task, s, paths); err != nil {
		return nil, err
	}
	res, err := decoder.Decode(ctx, t.System, task, s, paths, t.DecCfg)
	if err != nil {
		return nil, fmt.Errorf("translate %q: %w", sentence, err)
	}
	t.log.Debug("translated", "task", task.ID, "score", res.LogScore, "hypotheses", res.Stats.Created)
	return res, nil
}

func (t *Translator) beginTask(domains language.Context) *scoring.Task {
	if t.LM == nil {
		return scoring.BeginTask(nil, domains, scoring.WithLogger(t.log))
	}
	return scoring.BeginTask(t.LM.Source(), domains,
		scoring.WithCacheSize(t.LM.CacheSize()),
		scoring.WithLogger(t.log),
	)
}

// Request is one sentence of a batch.
type Request struct {
	Text    string
	Context language.Context
}

// TranslateAll translates a batch with up to Workers sentences in flight.
// Results are in request order. The first error cancels the batch.
func (t *Translator) TranslateAll(ctx context.Context, reqs []Request) ([]*decoder.Result, error) {
	results := make([]*decoder.Result, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(t.Workers, 1))
	for i, req := range reqs {
		g.Go(func() error {
			res, err := t.Translate(ctx, req.Text, req.Context)
			if err != nil {
				return fmt.Errorf("sentence %d: %w", i+1, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
