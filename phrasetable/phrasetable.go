// Package phrasetable turns phrase-memory records into ranked candidate
// lists for every source span of a sentence.
package phrasetable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ieee0824/translate-go/internal/logger"
	"github.com/ieee0824/translate-go/internal/metrics"
	"github.com/ieee0824/translate-go/language"
	"github.com/ieee0824/translate-go/phrase"
	"github.com/ieee0824/translate-go/phrasemem"
	"github.com/ieee0824/translate-go/scoring"
)

// Kind is the feature-line kind of the phrase table.
const Kind = "PhraseMemory"

// ErrSpanLookupUnsupported is the panic value of LookupSpan. Candidates are
// only retrieved in bulk, one query per sentence.
var ErrSpanLookupUnsupported = errors.New("phrasetable: per-span lookup is not supported, use Lookup")

var tracer = otel.Tracer("translate.phrasetable")

// Config configures a PhraseTable.
type Config struct {
	Name            string
	Path            string // SQLite phrase memory
	TableLimit      int    // candidates kept per span, 0 keeps all
	SampleLimit     int    // records sampled per source phrase
	MaxPhraseLength int
	InputFactor     int
	OutputFactor    int
	InMemory        bool // load the store into a trie index at startup
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{
		Name:            "PT0",
		TableLimit:      20,
		SampleLimit:     1000,
		MaxPhraseLength: 7,
	}
}

// ParseConfig reads a PhraseMemory feature line.
func ParseConfig(p *scoring.Params) (Config, error) {
	cfg := DefaultConfig()
	var err error
	cfg.Name = p.String("name", cfg.Name)
	cfg.Path = p.String("path", "")
	if cfg.Path == "" {
		return cfg, fmt.Errorf("%s: missing path", p.Kind)
	}
	if cfg.TableLimit, err = p.Int("table-limit", cfg.TableLimit); err != nil {
		return cfg, err
	}
	if cfg.SampleLimit, err = p.Int("sample-limit", cfg.SampleLimit); err != nil {
		return cfg, err
	}
	if cfg.MaxPhraseLength, err = p.Int("max-phrase-length", cfg.MaxPhraseLength); err != nil {
		return cfg, err
	}
	if cfg.InputFactor, err = p.Int("input-factor", 0); err != nil {
		return cfg, err
	}
	if cfg.OutputFactor, err = p.Int("output-factor", 0); err != nil {
		return cfg, err
	}
	if cfg.InMemory, err = p.Bool("in-memory", false); err != nil {
		return cfg, err
	}
	if cfg.TableLimit < 0 || cfg.SampleLimit < 0 || cfg.MaxPhraseLength < 1 ||
		cfg.InputFactor < 0 || cfg.OutputFactor < 0 {
		return cfg, fmt.Errorf("%s: negative limit or factor", p.Kind)
	}
	return cfg, p.Check()
}

// PhraseTable is the candidate retriever and ranker. It is a Feature
// contributing the phrasemem.NumScores record scores of each candidate.
type PhraseTable struct {
	cfg    Config
	engine phrasemem.Engine
	vocab  *language.Vocabulary
	store  *phrasemem.Store
	log    *log.Logger
}

// New wraps an engine whose records use vocab.
func New(cfg Config, engine phrasemem.Engine, vocab *language.Vocabulary) *PhraseTable {
	if cfg.Name == "" {
		cfg.Name = DefaultConfig().Name
	}
	return &PhraseTable{cfg: cfg, engine: engine, vocab: vocab, log: logger.New(cfg.Name)}
}

// Open opens the SQLite phrase memory of cfg, loading it into memory when
// cfg.InMemory is set.
func Open(ctx context.Context, cfg Config) (*PhraseTable, error) {
	store, err := phrasemem.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Name, err)
	}
	var engine phrasemem.Engine = store
	if cfg.InMemory {
		idx, err := store.LoadIndex(ctx)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("%s: %w", cfg.Name, err)
		}
		engine = idx
	}
	pt := New(cfg, engine, store.Vocabulary())
	pt.store = store
	return pt, nil
}

// Close releases the underlying store, if any.
func (pt *PhraseTable) Close() error {
	if pt.store == nil {
		return nil
	}
	return pt.store.Close()
}

// Name implements scoring.Feature.
func (pt *PhraseTable) Name() string { return pt.cfg.Name }

// NumScores implements scoring.Feature.
func (pt *PhraseTable) NumScores() int { return phrasemem.NumScores }

// Config returns the table settings.
func (pt *PhraseTable) Config() Config { return pt.cfg }

// MaxPhraseLength returns the longest source span worth enumerating.
func (pt *PhraseTable) MaxPhraseLength() int {
	n := pt.cfg.MaxPhraseLength
	if e, ok := pt.engine.(interface{ MaxPhraseLength() int }); ok {
		n = min(n, e.MaxPhraseLength())
	}
	return max(n, 1)
}

// Retrieve fetches the records of every source phrase of sentence in a
// single engine call, sampled under the task context.
func (pt *PhraseTable) Retrieve(ctx context.Context, task *scoring.Task, sentence phrase.Phrase) (phrasemem.Table, error) {
	ctx, span := tracer.Start(ctx, "phrasetable.Retrieve",
		trace.WithAttributes(
			attribute.String("task.id", task.ID.String()),
			attribute.Int("sentence.words", sentence.Len()),
		),
	)
	defer span.End()

	ids := pt.sourceIDs(sentence)
	start := time.Now()
	table, err := pt.engine.GetAllTranslationOptions(ctx, ids, task.Context(), pt.cfg.SampleLimit)
	metrics.RetrievalDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%s: retrieve: %w", pt.cfg.Name, err)
	}

	records := table.Records()
	metrics.CandidatesRetrieved.Add(float64(records))
	span.SetAttributes(attribute.Int("records", records), attribute.Int("phrases", len(table)))
	span.SetStatus(codes.Ok, "")
	pt.log.Debug("retrieved", "task", task.ID, "phrases", len(table), "records", records)
	return table, nil
}

// Lookup retrieves records for the whole sentence and materializes the
// candidate list of every path whose source phrase has records.
func (pt *PhraseTable) Lookup(ctx context.Context, sys *scoring.System, task *scoring.Task, sentence phrase.Phrase, paths []*InputPath) error {
	table, err := pt.Retrieve(ctx, task, sentence)
	if err != nil {
		return err
	}
	for _, p := range paths {
		p.advance(Retrieved)
		opts := table.Options(pt.sourceIDs(p.Source))
		if len(opts) == 0 {
			continue
		}
		pt.Materialize(sys, task, p, opts)
	}
	return nil
}

// LookupSpan would retrieve the records of a single span. It is not
// supported and always panics with ErrSpanLookupUnsupported.
func (pt *PhraseTable) LookupSpan(context.Context, *scoring.System, *scoring.Task, *InputPath) {
	panic(ErrSpanLookupUnsupported)
}

// Materialize builds, scores, ranks and prunes the candidates of path from
// its records. Post-pruning features see only the surviving candidates and
// run once per span.
func (pt *PhraseTable) Materialize(sys *scoring.System, task *scoring.Task, path *InputPath, options []phrasemem.TranslationOption) {
	path.options = options
	targets := phrase.NewTargetPhrases(len(options))
	for _, opt := range options {
		tp := &phrase.TargetPhrase{
			Words:     pt.targetWords(opt.TargetPhrase),
			Alignment: alignment(opt.Alignment),
			Scores:    sys.NewScores(),
		}
		sys.Assign(&tp.Scores, pt, recordScores(opt.Scores))
		sys.EvaluateInIsolation(task, path.Source, tp)
		targets.Add(tp)
	}
	path.advance(Materialized)

	dropped := targets.SortAndPrune(pt.cfg.TableLimit)
	path.advance(Ranked)
	metrics.CandidatesPruned.Add(float64(len(dropped)))

	path.targets = targets
	path.advance(Pruned)
	sys.EvaluateAfterTablePruning(task, targets, path.Source)
}

func (pt *PhraseTable) sourceIDs(p phrase.Phrase) []language.WordID {
	ids := make([]language.WordID, p.Len())
	for i, w := range p {
		ids[i] = pt.vocab.Lookup(w.Factor(pt.cfg.InputFactor))
	}
	return ids
}

func (pt *PhraseTable) targetWords(ids []language.WordID) phrase.Phrase {
	words := make(phrase.Phrase, len(ids))
	for i, id := range ids {
		w := make(phrase.Word, pt.cfg.OutputFactor+1)
		w[pt.cfg.OutputFactor] = pt.vocab.Word(id)
		words[i] = w
	}
	return words
}

func alignment(points []phrasemem.AlignmentPoint) phrase.Alignment {
	out := make([]phrase.AlignPoint, len(points))
	for i, p := range points {
		out[i] = phrase.AlignPoint{Source: int(p.Source), Target: int(p.Target)}
	}
	return phrase.NewAlignment(out)
}

// recordScores fits a record's scores to the declared layout.
func recordScores(scores []float64) []float64 {
	out := make([]float64, phrasemem.NumScores)
	copy(out, scores)
	return out
}
