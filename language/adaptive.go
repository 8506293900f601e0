package language

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/ieee0824/translate-go/internal/mathutil"
)

// ContextWeight is one component of a domain-adaptation mixture.
type ContextWeight struct {
	Domain uint32
	Weight float64
}

// Context is an ordered set of domain weights. An empty Context means
// "no adaptation": only the background model is used.
type Context []ContextWeight

// ParseContext converts task metadata (decimal domain id -> weight) into a
// Context. The result is not normalized.
func ParseContext(weights map[string]float64) (Context, error) {
	ctx := make(Context, 0, len(weights))
	for key, w := range weights {
		id, err := strconv.ParseUint(key, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("context domain %q: %w", key, err)
		}
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("context domain %q: weight %v is not finite", key, w)
		}
		ctx = append(ctx, ContextWeight{Domain: uint32(id), Weight: w})
	}
	sort.Slice(ctx, func(i, j int) bool { return ctx[i].Domain < ctx[j].Domain })
	return ctx, nil
}

// Has reports whether domain carries weight in the context.
func (c Context) Has(domain uint32) bool {
	for _, cw := range c {
		if cw.Domain == domain {
			return true
		}
	}
	return false
}

// InterpolatedModel mixes a background n-gram model with domain models
// weighted by a per-task Context:
//
//	P(w|h) = (1-r) * P_bg(w|h) + r * sum_d c_d * P_d(w|h)
//
// where r is the adaptivity ratio. It is safe for concurrent reads once
// loaded.
type InterpolatedModel struct {
	Background      *NGramModel
	Domains         map[uint32]*NGramModel
	AdaptivityRatio float64
	order           int
}

// NewInterpolatedModel creates a model over background with no domains.
func NewInterpolatedModel(background *NGramModel, adaptivityRatio float64) *InterpolatedModel {
	return &InterpolatedModel{
		Background:      background,
		Domains:         make(map[uint32]*NGramModel),
		AdaptivityRatio: adaptivityRatio,
		order:           background.Order,
	}
}

// AddDomain registers the model of a domain. Its vocabulary must be the
// background model's vocabulary.
func (m *InterpolatedModel) AddDomain(domain uint32, model *NGramModel) error {
	if model.Vocab != m.Background.Vocab {
		return fmt.Errorf("domain %d: model uses a different vocabulary", domain)
	}
	m.Domains[domain] = model
	if model.Order > m.order {
		m.order = model.Order
	}
	return nil
}

// Order returns the highest order among the mixed models.
func (m *InterpolatedModel) Order() int { return m.order }

// Index returns the id of a surface word, UnknownID if never seen.
func (m *InterpolatedModel) Index(word string) WordID {
	return m.Background.Vocab.Lookup(word)
}

// MakeEmptyHistoryKey returns the key of an empty history.
func (m *InterpolatedModel) MakeEmptyHistoryKey() HistoryKey {
	return HistoryKey{}
}

// MakeHistoryKey builds the key for the trailing words of words. Words are
// folded the same way ComputeProbability folds them, so a rebuilt key equals
// the key reached incrementally over the same words.
func (m *InterpolatedModel) MakeHistoryKey(words []WordID) HistoryKey {
	folded := make([]WordID, len(words))
	for i, w := range words {
		folded[i] = m.stateWord(w)
	}
	return NewHistoryKey(folded, m.order-1)
}

// ComputeProbability returns the natural log probability of word after
// history under ctx, and the history extended by word.
func (m *InterpolatedModel) ComputeProbability(word WordID, history HistoryKey, ctx Context) (float64, HistoryKey) {
	words := history.Words()
	lp := m.Background.LogProb(words, word)

	if r := m.AdaptivityRatio; r > 0 && len(ctx) > 0 {
		adapted := mathutil.LogZero
		for _, cw := range ctx {
			dm, ok := m.Domains[cw.Domain]
			if !ok || cw.Weight <= 0 {
				continue
			}
			adapted = mathutil.LogAdd(adapted, math.Log(cw.Weight)+dm.LogProb(words, word))
		}
		if adapted > mathutil.LogZero {
			lp = mathutil.LogMix(r, lp, adapted)
		}
	}

	return lp, history.Extend(m.stateWord(word), m.order-1)
}

// stateWord folds words no model knows into UnknownID, so histories that
// differ only in which OOV word they saw compare equal.
func (m *InterpolatedModel) stateWord(word WordID) WordID {
	if word == StartID || word == EndID || m.Background.Contains(word) {
		return word
	}
	for _, dm := range m.Domains {
		if dm.Contains(word) {
			return word
		}
	}
	return UnknownID
}

// NormalizeContext drops unknown domains and non-positive weights, and
// rescales the rest to sum to one. The input is not modified.
func (m *InterpolatedModel) NormalizeContext(ctx Context) Context {
	out := make(Context, 0, len(ctx))
	sum := 0.0
	for _, cw := range ctx {
		if _, ok := m.Domains[cw.Domain]; !ok || cw.Weight <= 0 {
			continue
		}
		out = append(out, cw)
		sum += cw.Weight
	}
	if sum == 0 {
		return nil
	}
	for i := range out {
		out[i].Weight /= sum
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out
}

// IsOOV reports whether word is unknown to the background model and to every
// domain model active in ctx.
func (m *InterpolatedModel) IsOOV(ctx Context, word WordID) bool {
	if m.Background.Contains(word) && word != UnknownID {
		return false
	}
	for _, cw := range ctx {
		if dm, ok := m.Domains[cw.Domain]; ok && dm.Contains(word) && word != UnknownID {
			return false
		}
	}
	return true
}
