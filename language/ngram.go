package language

import (
	"encoding/binary"

	"github.com/ieee0824/translate-go/internal/mathutil"
)

// NGramModel represents a backoff n-gram language model over word ids.
type NGramModel struct {
	Order int // highest n-gram order present in the model
	Vocab *Vocabulary

	// OOVLogProb is the natural log probability used for words that are
	// neither in the model nor covered by an <unk> entry. 0 means LogZero.
	OOVLogProb float64

	grams []map[string]ngramEntry // grams[k] holds (k+1)-grams
}

type ngramEntry struct {
	LogProb    float64
	LogBackoff float64
}

// NewNGramModel creates an empty n-gram model of the given order.
func NewNGramModel(order int, vocab *Vocabulary) *NGramModel {
	if vocab == nil {
		vocab = NewVocabulary()
	}
	m := &NGramModel{Vocab: vocab}
	m.setOrder(order)
	return m
}

func (m *NGramModel) setOrder(order int) {
	if order > MaxOrder {
		order = MaxOrder
	}
	for len(m.grams) < order {
		m.grams = append(m.grams, make(map[string]ngramEntry))
	}
	m.Order = order
}

// Add stores an n-gram entry; probabilities are natural logs.
func (m *NGramModel) Add(words []WordID, logProb, logBackoff float64) {
	if len(words) == 0 || len(words) > MaxOrder {
		return
	}
	if len(words) > m.Order {
		m.setOrder(len(words))
	}
	m.grams[len(words)-1][packKey(words)] = ngramEntry{LogProb: logProb, LogBackoff: logBackoff}
}

// Count returns the number of n-grams of order n.
func (m *NGramModel) Count(n int) int {
	if n < 1 || n > len(m.grams) {
		return 0
	}
	return len(m.grams[n-1])
}

// Contains reports whether id has a unigram entry.
func (m *NGramModel) Contains(id WordID) bool {
	if len(m.grams) == 0 {
		return false
	}
	_, ok := m.grams[0][packKey([]WordID{id})]
	return ok
}

// LogProb returns the natural log probability of word given history.
// Uses backoff when the exact n-gram is not found. Words without a unigram
// entry are scored as <unk>.
func (m *NGramModel) LogProb(history []WordID, word WordID) float64 {
	if n := m.Order - 1; len(history) > n {
		history = history[len(history)-n:]
	}
	word = m.known(word)
	ctx := make([]WordID, len(history), len(history)+1)
	for i, w := range history {
		ctx[i] = m.known(w)
	}

	backoff := 0.0
	for start := 0; start < len(ctx); start++ {
		h := ctx[start:]
		if e, ok := m.entry(append(h[:len(h):len(h)], word)); ok {
			return backoff + e.LogProb
		}
		if e, ok := m.entry(h); ok {
			backoff += e.LogBackoff
		}
	}
	return backoff + m.logProbUnigram(word)
}

func (m *NGramModel) logProbUnigram(word WordID) float64 {
	if e, ok := m.entry([]WordID{word}); ok {
		return e.LogProb
	}
	if m.OOVLogProb != 0 {
		return m.OOVLogProb
	}
	return mathutil.LogZero
}

// known maps words missing from the unigram table to UnknownID.
func (m *NGramModel) known(word WordID) WordID {
	if m.Contains(word) {
		return word
	}
	return UnknownID
}

func (m *NGramModel) entry(words []WordID) (ngramEntry, bool) {
	if len(words) == 0 || len(words) > len(m.grams) {
		return ngramEntry{}, false
	}
	e, ok := m.grams[len(words)-1][packKey(words)]
	return e, ok
}

// SentenceLogProb returns the total log probability of a sentence.
// Automatically adds <s> at the beginning and </s> at the end.
func (m *NGramModel) SentenceLogProb(words []WordID) float64 {
	total := 0.0
	history := []WordID{StartID}
	for _, w := range words {
		total += m.LogProb(history, w)
		history = append(history, w)
	}
	total += m.LogProb(history, EndID)
	return total
}

func packKey(words []WordID) string {
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.BigEndian.PutUint32(buf[4*i:], uint32(w))
	}
	return string(buf)
}
