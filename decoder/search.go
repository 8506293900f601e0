// Package decoder is a monotone phrase-based stack decoder. It drives the
// scoring core: candidate lists come from the phrase table, and every
// hypothesis extension is scored by the stateful features.
package decoder

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ieee0824/translate-go/phrase"
	"github.com/ieee0824/translate-go/phrasetable"
	"github.com/ieee0824/translate-go/scoring"
)

// ErrNoTranslation is returned when no hypothesis covers the whole input.
var ErrNoTranslation = errors.New("decoder: no complete hypothesis")

var tracer = otel.Tracer("translate.decoder")

// Config holds stack search parameters.
type Config struct {
	BeamWidth    float64 // hypotheses scoring below best - BeamWidth are dropped
	MaxStackSize int     // maximum hypotheses kept per stack
}

// DefaultConfig returns reasonable default parameters.
func DefaultConfig() Config {
	return Config{
		BeamWidth:    10.0,
		MaxStackSize: 100,
	}
}

type option struct {
	source  phrase.Range
	targets []*phrase.TargetPhrase
	unknown bool
}

// stack holds the hypotheses covering the same number of source words.
type stack struct {
	hyps  []*Hypothesis
	index map[uint64][]int
}

func newStack() *stack {
	return &stack{index: make(map[uint64][]int)}
}

// add inserts h, recombining it with an equivalent hypothesis if there is
// one. It reports whether h was merged into an existing entry.
func (s *stack) add(h *Hypothesis) bool {
	key := h.recombinationHash()
	for _, i := range s.index[key] {
		if old := s.hyps[i]; old.recombinable(h) {
			if h.Score() > old.Score() {
				s.hyps[i] = h
			}
			return true
		}
	}
	s.index[key] = append(s.index[key], len(s.hyps))
	s.hyps = append(s.hyps, h)
	return false
}

// Decode translates sentence left to right. paths must have been filled by
// phrasetable.Lookup; their candidate lists are consumed. Source words
// without any single-word candidate are copied through.
func Decode(ctx context.Context, sys *scoring.System, task *scoring.Task, sentence phrase.Phrase, paths []*phrasetable.InputPath, cfg Config) (*Result, error) {
	ctx, span := tracer.Start(ctx, "decoder.Decode",
		trace.WithAttributes(
			attribute.String("task.id", task.ID.String()),
			attribute.Int("sentence.words", sentence.Len()),
		),
	)
	defer span.End()

	n := sentence.Len()
	byStart := collectOptions(sys, task, sentence, paths)
	stateful := sys.StatefulFeatures()
	pool := scoring.NewPool[Hypothesis](0)
	log := task.Logger()

	root := pool.Get()
	root.Scores = sys.NewScores()
	root.states = make([]scoring.State, len(stateful))
	for i, f := range stateful {
		root.states[i] = f.BlankState(task)
	}

	stacks := make([]*stack, n+1)
	for i := range stacks {
		stacks[i] = newStack()
	}
	stacks[0].add(root)

	var stats Stats
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		before := len(stacks[i].hyps)
		active := pruneHypotheses(stacks[i].hyps, cfg.BeamWidth, cfg.MaxStackSize)
		stats.Pruned += before - len(active)
		log.Debug("expanding stack", "covered", i, "hypotheses", len(active))

		for _, prev := range active {
			for _, opt := range byStart[i] {
				end := opt.source.End
				for _, tp := range opt.targets {
					h := extend(pool, sys, task, stateful, prev, tp, opt, end == n)
					stats.Created++
					if stacks[end].add(h) {
						stats.Recombined++
					}
				}
			}
		}
	}

	final := pruneHypotheses(stacks[n].hyps, cfg.BeamWidth, cfg.MaxStackSize)
	if len(final) == 0 {
		span.SetStatus(codes.Error, ErrNoTranslation.Error())
		return nil, ErrNoTranslation
	}
	best := final[0]
	for _, h := range final[1:] {
		if h.Score() > best.Score() {
			best = h
		}
	}

	result := buildResult(best)
	result.Stats = stats
	span.SetAttributes(
		attribute.Int("hypotheses.created", stats.Created),
		attribute.Int("hypotheses.recombined", stats.Recombined),
	)
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func extend(pool *scoring.Pool[Hypothesis], sys *scoring.System, task *scoring.Task, stateful []scoring.StatefulFeature,
	prev *Hypothesis, tp *phrase.TargetPhrase, opt option, complete bool) *Hypothesis {
	h := pool.Get()
	h.prev = prev
	h.target = tp
	h.source = opt.source
	h.length = prev.length + tp.Len()
	h.unknown = opt.unknown

	h.Scores = prev.Scores.Clone()
	for k, v := range tp.Scores.Values {
		h.Scores.Values[k] += v
	}
	h.Scores.Total += tp.Scores.Total

	ext := scoring.Extension{
		Target:           h,
		Begin:            prev.length,
		End:              h.length,
		SentenceFinal:    complete,
		CoverageComplete: complete,
	}
	h.states = make([]scoring.State, len(stateful))
	for k, f := range stateful {
		h.states[k] = f.EvaluateWhenApplied(sys, task, ext, prev.states[k], &h.Scores)
	}
	return h
}

// collectOptions consumes the candidate lists of paths and adds a copy-
// through candidate for every source word that has no single-word
// candidate.
func collectOptions(sys *scoring.System, task *scoring.Task, sentence phrase.Phrase, paths []*phrasetable.InputPath) [][]option {
	byStart := make([][]option, sentence.Len())
	covered := make([]bool, sentence.Len())
	for _, p := range paths {
		if !p.HasCandidates() {
			continue
		}
		targets := p.Consume()
		if targets.Len() == 0 {
			continue
		}
		byStart[p.Range.Start] = append(byStart[p.Range.Start], option{source: p.Range, targets: targets.All()})
		if p.Range.Len() == 1 {
			covered[p.Range.Start] = true
		}
	}
	for i, ok := range covered {
		if ok {
			continue
		}
		r := phrase.Range{Start: i, End: i + 1}
		src := sentence.Sub(r)
		tp := &phrase.TargetPhrase{
			Words:     phrase.Phrase{append(phrase.Word(nil), src[0]...)},
			Alignment: phrase.Alignment{{Source: 0, Target: 0}},
			Scores:    sys.NewScores(),
		}
		sys.EvaluateInIsolation(task, src, tp)
		byStart[i] = append(byStart[i], option{source: r, targets: []*phrase.TargetPhrase{tp}, unknown: true})
	}
	return byStart
}

func buildResult(best *Hypothesis) *Result {
	result := &Result{Scores: best.Scores.Clone(), LogScore: best.Score()}
	var words []string
	for _, h := range best.chain() {
		result.Segments = append(result.Segments, Segment{
			Source:    h.source,
			Target:    h.target.Words.String(),
			Alignment: h.target.Alignment,
			Unknown:   h.unknown,
		})
		if h.target.Len() > 0 {
			words = append(words, h.target.Words.String())
		}
	}
	result.Text = strings.Join(words, " ")
	return result
}

func pruneHypotheses(src []*Hypothesis, beamWidth float64, maxActive int) []*Hypothesis {
	if len(src) == 0 {
		return nil
	}

	bestScore := src[0].Score()
	for _, h := range src[1:] {
		if h.Score() > bestScore {
			bestScore = h.Score()
		}
	}

	threshold := bestScore - beamWidth
	dst := make([]*Hypothesis, 0, len(src))
	for _, h := range src {
		if h.Score() >= threshold {
			dst = append(dst, h)
		}
	}

	if maxActive > 0 && len(dst) > maxActive {
		sort.SliceStable(dst, func(i, j int) bool {
			return dst[i].Score() > dst[j].Score()
		})
		dst = dst[:maxActive]
	}
	return dst
}
