package scoring

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/ieee0824/translate-go/internal/logger"
	"github.com/ieee0824/translate-go/language"
	"github.com/ieee0824/translate-go/phrase"
)

// LMKind is the feature-line kind of the adaptive language model.
const LMKind = "InterpolatedLM"

// LMConfig configures an adaptive language model feature.
type LMConfig struct {
	Name            string
	Path            string            // background ARPA file
	Domains         map[uint32]string // domain id -> ARPA file
	Order           int               // 0 means the order of the loaded model
	Factor          int
	AdaptivityRatio float64
	OOVFeature      bool
	CacheSize       int
}

// ParseLMConfig reads an InterpolatedLM feature line.
func ParseLMConfig(p *Params) (LMConfig, error) {
	cfg := LMConfig{Domains: make(map[uint32]string)}
	var err error
	cfg.Name = p.String("name", "LM0")
	cfg.Path = p.String("path", "")
	if cfg.Path == "" {
		return cfg, fmt.Errorf("%s: missing path", p.Kind)
	}
	if cfg.Order, err = p.Int("order", 0); err != nil {
		return cfg, err
	}
	if cfg.Order < 0 || cfg.Order > language.MaxOrder {
		return cfg, fmt.Errorf("%s: order %d out of range 1..%d", p.Kind, cfg.Order, language.MaxOrder)
	}
	if cfg.Factor, err = p.Int("factor", 0); err != nil {
		return cfg, err
	}
	if cfg.AdaptivityRatio, err = p.Float("adaptivity-ratio", 0); err != nil {
		return cfg, err
	}
	if cfg.AdaptivityRatio < 0 || cfg.AdaptivityRatio > 1 {
		return cfg, fmt.Errorf("%s: adaptivity-ratio %v out of range [0,1]", p.Kind, cfg.AdaptivityRatio)
	}
	if cfg.OOVFeature, err = p.Bool("oov-feature", false); err != nil {
		return cfg, err
	}
	if cfg.CacheSize, err = p.Int("cache-size", DefaultCacheSize); err != nil {
		return cfg, err
	}
	for key, path := range p.Prefixed("domain-") {
		id, err := strconv.ParseUint(key, 10, 32)
		if err != nil {
			return cfg, fmt.Errorf("%s: domain-%s: %w", p.Kind, key, err)
		}
		cfg.Domains[uint32(id)] = path
	}
	return cfg, p.Check()
}

// LoadLM loads the background and domain models of cfg into vocab and
// wraps them in an LM feature.
func LoadLM(cfg LMConfig, vocab *language.Vocabulary) (*LM, error) {
	bg, err := language.LoadARPAFile(cfg.Path, vocab)
	if err != nil {
		return nil, fmt.Errorf("load %s background: %w", cfg.Name, err)
	}
	m := language.NewInterpolatedModel(bg, cfg.AdaptivityRatio)
	for id, path := range cfg.Domains {
		dm, err := language.LoadARPAFile(path, vocab)
		if err != nil {
			return nil, fmt.Errorf("load %s domain %d: %w", cfg.Name, id, err)
		}
		if err := m.AddDomain(id, dm); err != nil {
			return nil, fmt.Errorf("load %s: %w", cfg.Name, err)
		}
	}
	return NewLM(cfg, m), nil
}

// LM is the incremental n-gram language model feature. It scores target
// phrases in isolation and hypothesis extensions during search, and keeps
// the trailing order-1 words of each hypothesis as its State.
//
// Score decomposition: for any target sequence built from phrases, the sum
// of the isolated n-gram scores of the phrases plus the sum of the applied
// scores of the extensions equals the score of the whole sentence with
// <s> and </s>.
type LM struct {
	name       string
	src        ProbabilitySource
	order      int
	factor     int
	oovFeature bool
	cacheSize  int
	log        *log.Logger
}

// NewLM wraps src as a feature. cfg.Order is clamped to the order of src.
func NewLM(cfg LMConfig, src ProbabilitySource) *LM {
	order := src.Order()
	if cfg.Order > 0 && cfg.Order < order {
		order = cfg.Order
	}
	name := cfg.Name
	if name == "" {
		name = "LM0"
	}
	return &LM{
		name:       name,
		src:        src,
		order:      order,
		factor:     cfg.Factor,
		oovFeature: cfg.OOVFeature,
		cacheSize:  cfg.CacheSize,
		log:        logger.New(name),
	}
}

// Name implements Feature.
func (lm *LM) Name() string { return lm.name }

// NumScores implements Feature: the log probability, plus the OOV count
// when enabled.
func (lm *LM) NumScores() int {
	if lm.oovFeature {
		return 2
	}
	return 1
}

// Order returns the n-gram order used for scoring.
func (lm *LM) Order() int { return lm.order }

// Source returns the underlying probability source.
func (lm *LM) Source() ProbabilitySource { return lm.src }

// CacheSize returns the configured per-task cache capacity.
func (lm *LM) CacheSize() int { return lm.cacheSize }

// IsolatedScore scores p on its own, starting from an empty history.
// full sums every word; ngram only the words that have a complete order-1
// word history inside p, i.e. positions >= order-1. The difference is an
// estimate that the search will replace with the exact score once the left
// context is known. oov counts out-of-vocabulary words when the OOV
// feature is enabled.
func (lm *LM) IsolatedScore(t *Task, p phrase.Phrase) (full, ngram float64, oov int) {
	t.mustUse(lm.src)
	boundary := lm.order - 1
	h := lm.src.MakeEmptyHistoryKey()
	for i, w := range p {
		id := lm.wordID(w)
		lp, next := lm.probability(t, id, h)
		h = next
		full += lp
		if i >= boundary {
			ngram += lp
		}
		if lm.oovFeature && t.IsOOV(id) {
			oov++
		}
	}
	return full, ngram, oov
}

// EvaluateInIsolation implements IsolatedFeature. The n-gram score goes
// into the scores; the rest of the full score into the estimate.
func (lm *LM) EvaluateInIsolation(sys *System, t *Task, _ phrase.Phrase, target *phrase.TargetPhrase) {
	full, ngram, oov := lm.IsolatedScore(t, target.Words)
	if lm.oovFeature {
		sys.PlusEquals(&target.Scores, lm, ngram, float64(oov))
		target.Estimated += sys.WeightedScore(lm, full-ngram, 0)
		return
	}
	sys.PlusEquals(&target.Scores, lm, ngram)
	target.Estimated += sys.WeightedScore(lm, full-ngram)
}

// BlankState implements StatefulFeature: the history of a hypothesis that
// has produced no target words yet.
func (lm *LM) BlankState(t *Task) State {
	t.mustUse(lm.src)
	return t.newState(lm.historyKey([]language.WordID{language.StartID}))
}

// ApplyAndExtend scores the words of ext that were only estimated in
// isolation and returns the successor state. Only the first order-1 new
// words are scored; the rest were already counted by IsolatedScore. When
// coverage is complete the end-of-sentence marker is scored as well.
func (lm *LM) ApplyAndExtend(t *Task, ext Extension, prev State) (float64, State) {
	t.mustUse(lm.src)
	in, ok := prev.(*lmState)
	if !ok {
		panic(fmt.Sprintf("scoring: %s got a state of type %T", lm.name, prev))
	}
	if ext.SentenceFinal && !ext.CoverageComplete {
		panic(fmt.Sprintf("scoring: %s: sentence-final extension without complete coverage", lm.name))
	}

	boundary := lm.order - 1
	adjustEnd := min(ext.Begin+boundary, ext.End)

	score := 0.0
	h := in.history
	for pos := ext.Begin; pos < adjustEnd; pos++ {
		lp, next := lm.probability(t, lm.wordID(ext.Target.At(pos)), h)
		h = next
		score += lp
	}

	switch {
	case ext.CoverageComplete:
		from := ext.End - boundary
		var words []language.WordID
		if from < 0 {
			words = append(words, language.StartID)
			from = 0
		}
		words = append(words, lm.ids(ext.Target, from, ext.End)...)
		lp, next := lm.probability(t, language.EndID, lm.historyKey(words))
		score += lp
		h = next
	case adjustEnd < ext.End:
		h = lm.historyKey(lm.ids(ext.Target, ext.End-boundary, ext.End))
	}

	if lm.log.GetLevel() <= log.DebugLevel {
		lm.log.Debug("applied", "begin", ext.Begin, "end", ext.End, "score", score, "state", h)
	}
	return score, t.newState(h)
}

// EvaluateWhenApplied implements StatefulFeature.
func (lm *LM) EvaluateWhenApplied(sys *System, t *Task, ext Extension, prev State, scores *phrase.Scores) State {
	score, next := lm.ApplyAndExtend(t, ext, prev)
	if lm.oovFeature {
		sys.PlusEquals(scores, lm, score, 0)
	} else {
		sys.PlusEquals(scores, lm, score)
	}
	return next
}

// SentenceScore scores a complete sentence in one pass, with <s> and </s>.
func (lm *LM) SentenceScore(t *Task, p phrase.Phrase) float64 {
	t.mustUse(lm.src)
	h := lm.historyKey([]language.WordID{language.StartID})
	total := 0.0
	for _, w := range p {
		lp, next := lm.probability(t, lm.wordID(w), h)
		h = next
		total += lp
	}
	lp, _ := lm.probability(t, language.EndID, h)
	return total + lp
}

// probability looks word up through the task and cuts the returned history
// to the scoring order, which may be below the order of the source.
func (lm *LM) probability(t *Task, word language.WordID, h language.HistoryKey) (float64, language.HistoryKey) {
	lp, next := t.Probability(word, h)
	return lp, next.Truncate(lm.order - 1)
}

func (lm *LM) historyKey(words []language.WordID) language.HistoryKey {
	return lm.src.MakeHistoryKey(words).Truncate(lm.order - 1)
}

func (lm *LM) wordID(w phrase.Word) language.WordID {
	return lm.src.Index(w.Factor(lm.factor))
}

func (lm *LM) ids(seq Sequence, from, to int) []language.WordID {
	out := make([]language.WordID, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, lm.wordID(seq.At(i)))
	}
	return out
}

// lmState is the language model State: the trailing words of a hypothesis.
type lmState struct {
	history language.HistoryKey
}

// Hash implements State.
func (s *lmState) Hash() uint64 { return s.history.Hash() }

// Equal implements State.
func (s *lmState) Equal(other State) bool {
	o, ok := other.(*lmState)
	return ok && s.history == o.history
}

func (s *lmState) String() string { return s.history.String() }
