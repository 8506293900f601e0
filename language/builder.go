package language

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
)

// Builder accumulates sentences and builds a Witten-Bell smoothed
// backoff N-gram model. It is used for the background model as well as for
// the per-domain models mixed in by InterpolatedModel.
type Builder struct {
	order  int
	counts []map[string]int // counts[k]: space-joined (k+1)-gram -> count
}

// NewBuilder creates a new N-gram builder.
// order is clamped to [2, MaxOrder].
func NewBuilder(order int) *Builder {
	if order < 2 {
		order = 2
	}
	if order > MaxOrder {
		order = MaxOrder
	}
	b := &Builder{order: order, counts: make([]map[string]int, order)}
	for i := range b.counts {
		b.counts[i] = make(map[string]int)
	}
	return b
}

// AddSentence adds a tokenized sentence. <s> and </s> are added automatically.
func (b *Builder) AddSentence(words []string) {
	if len(words) == 0 {
		return
	}
	seq := make([]string, 0, len(words)+2)
	seq = append(seq, StartSymbol)
	seq = append(seq, words...)
	seq = append(seq, EndSymbol)

	for i := range seq {
		for n := 1; n <= b.order && n <= i+1; n++ {
			b.counts[n-1][strings.Join(seq[i-n+1:i+1], " ")]++
		}
	}
}

type arpaEntry struct {
	key        string
	logProb    float64 // log10
	logBackoff float64 // log10
}

// estimate computes log10 probabilities and backoff weights for every order.
func (b *Builder) estimate() [][]arpaEntry {
	uniTotal := 0
	for _, c := range b.counts[0] {
		uniTotal += c
	}

	// Witten-Bell statistics per history: N(h) tokens and T(h) types seen after h.
	histTotal := make(map[string]int)
	histTypes := make(map[string]int)
	for n := 2; n <= b.order; n++ {
		for key, c := range b.counts[n-1] {
			h := key[:strings.LastIndexByte(key, ' ')]
			histTotal[h] += c
			histTypes[h]++
		}
	}

	prob := func(key string) (float64, bool) {
		sp := strings.LastIndexByte(key, ' ')
		if sp < 0 {
			c, ok := b.counts[0][key]
			return float64(c) / float64(uniTotal), ok
		}
		n := strings.Count(key, " ") + 1
		c, ok := b.counts[n-1][key]
		if !ok {
			return 0, false
		}
		h := key[:sp]
		return float64(c) / float64(histTotal[h]+histTypes[h]), true
	}
	// lower returns the explicit probability of the longest stored suffix.
	var lower func(key string) float64
	lower = func(key string) float64 {
		if p, ok := prob(key); ok {
			return p
		}
		sp := strings.IndexByte(key, ' ')
		if sp < 0 {
			return 0
		}
		return lower(key[sp+1:])
	}

	// Children of each history, for backoff weights.
	children := make(map[string][]string)
	for n := 2; n <= b.order; n++ {
		for key := range b.counts[n-1] {
			h := key[:strings.LastIndexByte(key, ' ')]
			children[h] = append(children[h], key)
		}
	}

	entries := make([][]arpaEntry, b.order)
	for n := 1; n <= b.order; n++ {
		for key := range b.counts[n-1] {
			p, _ := prob(key)
			e := arpaEntry{key: key, logProb: math.Log10(p)}
			if kids, ok := children[key]; ok && n < b.order {
				sumHigh, sumLow := 0.0, 0.0
				for _, kid := range kids {
					ph, _ := prob(kid)
					sumHigh += ph
					sumLow += lower(kid[strings.IndexByte(kid, ' ')+1:])
				}
				if sumLow < 1.0 && sumHigh < 1.0 {
					e.logBackoff = math.Log10((1.0 - sumHigh) / (1.0 - sumLow))
				}
			}
			entries[n-1] = append(entries[n-1], e)
		}
		sort.Slice(entries[n-1], func(i, j int) bool { return entries[n-1][i].key < entries[n-1][j].key })
	}
	return entries
}

// WriteARPA writes the model in ARPA format (log10 probabilities) to w.
func (b *Builder) WriteARPA(w io.Writer) error {
	entries := b.estimate()

	var buf bytes.Buffer
	buf.WriteString("\\data\\\n")
	for n, es := range entries {
		if len(es) > 0 {
			fmt.Fprintf(&buf, "ngram %d=%d\n", n+1, len(es))
		}
	}
	buf.WriteString("\n")

	for n, es := range entries {
		if len(es) == 0 {
			continue
		}
		fmt.Fprintf(&buf, "\\%d-grams:\n", n+1)
		for _, e := range es {
			words := strings.ReplaceAll(e.key, " ", "\t")
			if e.logBackoff != 0 {
				fmt.Fprintf(&buf, "%.6f\t%s\t%.6f\n", e.logProb, words, e.logBackoff)
			} else {
				fmt.Fprintf(&buf, "%.6f\t%s\n", e.logProb, words)
			}
		}
		buf.WriteString("\n")
	}
	buf.WriteString("\\end\\\n")

	_, err := w.Write(buf.Bytes())
	return err
}

// Model estimates the n-gram model directly, registering words in vocab.
func (b *Builder) Model(vocab *Vocabulary) *NGramModel {
	m := NewNGramModel(b.order, vocab)
	for n, es := range b.estimate() {
		for _, e := range es {
			fields := strings.Split(e.key, " ")
			ids := make([]WordID, len(fields))
			for i, f := range fields {
				ids[i] = m.Vocab.Add(f)
			}
			m.Add(ids[:n+1], e.logProb*math.Ln10, e.logBackoff*math.Ln10)
		}
	}
	return m
}
