package phrasemem

import (
	"context"
	"sync"

	"github.com/tchap/go-patricia/v2/patricia"

	"github.com/ieee0824/translate-go/language"
)

// MemoryIndex is an in-memory Engine. Source phrases are stored in a
// patricia trie keyed by their packed word ids, so all phrases starting at
// one sentence position are found with a single prefix walk.
type MemoryIndex struct {
	mu        sync.RWMutex
	trie      *patricia.Trie
	vocab     *language.Vocabulary
	records   int
	maxLength int
}

// NewMemoryIndex creates an empty index over vocab.
func NewMemoryIndex(vocab *language.Vocabulary) *MemoryIndex {
	return &MemoryIndex{trie: patricia.NewTrie(), vocab: vocab}
}

// Vocabulary returns the vocabulary of the indexed phrases.
func (m *MemoryIndex) Vocabulary() *language.Vocabulary { return m.vocab }

// Add appends a record for source.
func (m *MemoryIndex) Add(source []language.WordID, opt TranslationOption) {
	if len(source) == 0 {
		return
	}
	key := patricia.Prefix(appendKey(nil, source))

	m.mu.Lock()
	defer m.mu.Unlock()
	if item := m.trie.Get(key); item != nil {
		opts := item.(*[]TranslationOption)
		*opts = append(*opts, opt)
	} else {
		m.trie.Insert(key, &[]TranslationOption{opt})
	}
	m.records++
	m.maxLength = max(m.maxLength, len(source))
}

// AddEntry adds a text record, registering its words in the vocabulary.
func (m *MemoryIndex) AddEntry(e Entry) {
	source, opt := e.Option(m.vocab)
	m.Add(source, opt)
}

// Len returns the number of records.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.records
}

// MaxPhraseLength returns the length of the longest indexed source phrase.
func (m *MemoryIndex) MaxPhraseLength() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxLength
}

// GetAllTranslationOptions implements Engine.
func (m *MemoryIndex) GetAllTranslationOptions(ctx context.Context, sentence []language.WordID, domains language.Context, sampleLimit int) (Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	table := make(Table)
	packed := appendKey(nil, sentence)
	for start := range sentence {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := m.trie.VisitPrefixes(patricia.Prefix(packed[4*start:]), func(prefix patricia.Prefix, item patricia.Item) error {
			key := string(prefix)
			if _, seen := table[key]; !seen {
				table[key] = sample(*item.(*[]TranslationOption), domains, sampleLimit)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return table, nil
}
