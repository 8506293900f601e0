package phrasetable

import (
	"fmt"

	"github.com/ieee0824/translate-go/phrase"
	"github.com/ieee0824/translate-go/phrasemem"
)

// Stage is the position of a source span in the candidate lifecycle.
type Stage int

const (
	NotRequested Stage = iota
	Retrieved
	Materialized
	Ranked
	Pruned
	Consumed
)

var stageNames = [...]string{"not-requested", "retrieved", "materialized", "ranked", "pruned", "consumed"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// InputPath is one contiguous source span of a sentence and its candidate
// list. Stages only move forward one step at a time; a span whose source
// phrase has no records stays Retrieved.
type InputPath struct {
	Range  phrase.Range
	Source phrase.Phrase

	stage   Stage
	options []phrasemem.TranslationOption
	targets *phrase.TargetPhrases
}

// NewInputPaths enumerates every span of sentence up to maxLength words,
// ordered by start then length.
func NewInputPaths(sentence phrase.Phrase, maxLength int) []*InputPath {
	var paths []*InputPath
	for start := range sentence {
		for end := start + 1; end <= len(sentence) && end-start <= maxLength; end++ {
			r := phrase.Range{Start: start, End: end}
			paths = append(paths, &InputPath{Range: r, Source: sentence.Sub(r)})
		}
	}
	return paths
}

// Stage returns the current stage.
func (p *InputPath) Stage() Stage { return p.stage }

// Options returns the raw records attached at retrieval.
func (p *InputPath) Options() []phrasemem.TranslationOption { return p.options }

// HasCandidates reports whether the span holds a pruned candidate list
// ready to be consumed.
func (p *InputPath) HasCandidates() bool { return p.stage == Pruned }

// Consume hands the candidate list to the search driver. It may be called
// once, after pruning.
func (p *InputPath) Consume() *phrase.TargetPhrases {
	p.advance(Consumed)
	return p.targets
}

func (p *InputPath) advance(to Stage) {
	if to != p.stage+1 {
		panic(fmt.Sprintf("phrasetable: span %d-%d cannot move from %s to %s",
			p.Range.Start, p.Range.End, p.stage, to))
	}
	p.stage = to
}
