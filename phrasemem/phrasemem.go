// Package phrasemem is the phrase memory: bilingual alignment records
// indexed by source phrase, queried once per sentence for every source span.
//
// Two engines are provided. MemoryIndex keeps everything in a patricia trie;
// Store persists records in SQLite and can either answer queries directly
// or load a MemoryIndex at startup.
package phrasemem

import (
	"context"
	"encoding/binary"
	"sort"

	"github.com/ieee0824/translate-go/language"
)

// NumScores is the number of score components of a record: inverse phrase,
// inverse lexical, direct phrase and direct lexical log probabilities.
const NumScores = 4

// AlignmentPoint links a source word to a target word of one record.
type AlignmentPoint struct {
	Source uint16 `msgpack:"s"`
	Target uint16 `msgpack:"t"`
}

// TranslationOption is one raw alignment record: a target phrase seen
// aligned to some source phrase, with its scores and the domain it came from.
type TranslationOption struct {
	TargetPhrase []language.WordID `msgpack:"tgt"`
	Alignment    []AlignmentPoint  `msgpack:"al"`
	Scores       []float64         `msgpack:"sc"`
	Domain       uint32            `msgpack:"dom"`
}

// Table holds the records of every source phrase of a sentence, keyed by
// Key(source phrase).
type Table map[string][]TranslationOption

// Options returns the records of source.
func (t Table) Options(source []language.WordID) []TranslationOption {
	return t[Key(source)]
}

// Records returns the total number of records in the table.
func (t Table) Records() int {
	n := 0
	for _, opts := range t {
		n += len(opts)
	}
	return n
}

// Engine retrieves the records of every source phrase of a sentence in one
// call. At most sampleLimit records are returned per source phrase
// (sampleLimit <= 0 means all), preferring records whose domain carries
// weight in domains.
type Engine interface {
	GetAllTranslationOptions(ctx context.Context, sentence []language.WordID, domains language.Context, sampleLimit int) (Table, error)
}

// Key packs a sequence of word ids into a map and trie key.
func Key(words []language.WordID) string {
	return string(appendKey(nil, words))
}

func appendKey(buf []byte, words []language.WordID) []byte {
	for _, w := range words {
		buf = binary.BigEndian.AppendUint32(buf, uint32(w))
	}
	return buf
}

func decodeKey(key []byte) []language.WordID {
	out := make([]language.WordID, len(key)/4)
	for i := range out {
		out[i] = language.WordID(binary.BigEndian.Uint32(key[4*i:]))
	}
	return out
}

// sample orders records with in-context domains first, keeping insertion
// order otherwise, and truncates to limit.
func sample(opts []TranslationOption, domains language.Context, limit int) []TranslationOption {
	out := make([]TranslationOption, len(opts))
	copy(out, opts)
	if len(domains) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			return domains.Has(out[i].Domain) && !domains.Has(out[j].Domain)
		})
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
