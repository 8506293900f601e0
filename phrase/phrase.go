// Package phrase holds the data types shared by the scoring core, the
// phrase table and the decoder: factored words, phrases, source ranges and
// scored target-side candidates.
package phrase

import "strings"

// FactorDelimiter separates factors inside a token, e.g. "house|NN".
const FactorDelimiter = "|"

// Word is a token made of one or more factors (surface, lemma, tag, ...).
type Word []string

// ParseWord splits a token into its factors.
func ParseWord(token string) Word {
	return Word(strings.Split(token, FactorDelimiter))
}

// Factor returns factor i, or "" when the word has fewer factors.
func (w Word) Factor(i int) string {
	if i < 0 || i >= len(w) {
		return ""
	}
	return w[i]
}

func (w Word) String() string {
	return strings.Join(w, FactorDelimiter)
}

// Phrase is a sequence of words.
type Phrase []Word

// Parse splits a whitespace separated string into a phrase.
func Parse(s string) Phrase {
	fields := strings.Fields(s)
	p := make(Phrase, len(fields))
	for i, f := range fields {
		p[i] = ParseWord(f)
	}
	return p
}

// FromFactors builds a single-factor phrase from surface strings.
func FromFactors(surface []string) Phrase {
	p := make(Phrase, len(surface))
	for i, s := range surface {
		p[i] = Word{s}
	}
	return p
}

// Len returns the number of words.
func (p Phrase) Len() int { return len(p) }

// At returns word i.
func (p Phrase) At(i int) Word { return p[i] }

// Sub returns the words covered by r.
func (p Phrase) Sub(r Range) Phrase { return p[r.Start:r.End] }

// Factors returns factor i of every word.
func (p Phrase) Factors(i int) []string {
	out := make([]string, len(p))
	for j, w := range p {
		out[j] = w.Factor(i)
	}
	return out
}

func (p Phrase) String() string {
	parts := make([]string, len(p))
	for i, w := range p {
		parts[i] = w.String()
	}
	return strings.Join(parts, " ")
}

// Range is the half-open interval [Start, End) of word positions.
type Range struct {
	Start int
	End   int
}

// Len returns the number of positions in r.
func (r Range) Len() int { return r.End - r.Start }
