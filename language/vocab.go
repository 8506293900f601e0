package language

import "sync"

// WordID identifies a word in a Vocabulary.
type WordID uint32

// Reserved symbols. Every Vocabulary starts with these three ids.
const (
	UnknownSymbol = "<unk>"
	StartSymbol   = "<s>"
	EndSymbol     = "</s>"
)

const (
	UnknownID WordID = iota
	StartID
	EndID
)

// Vocabulary maps surface strings to dense word ids.
// It is shared by the language models and the phrase memory, so ids
// written by one are understood by the other.
type Vocabulary struct {
	mu    sync.RWMutex
	ids   map[string]WordID
	words []string
}

// NewVocabulary creates a vocabulary holding only the reserved symbols.
func NewVocabulary() *Vocabulary {
	v := &Vocabulary{ids: make(map[string]WordID)}
	for _, w := range []string{UnknownSymbol, StartSymbol, EndSymbol} {
		v.add(w)
	}
	return v
}

// Add returns the id of word, assigning a new one if needed.
func (v *Vocabulary) Add(word string) WordID {
	word = canonical(word)
	v.mu.RLock()
	id, ok := v.ids[word]
	v.mu.RUnlock()
	if ok {
		return id
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if id, ok := v.ids[word]; ok {
		return id
	}
	return v.add(word)
}

func (v *Vocabulary) add(word string) WordID {
	id := WordID(len(v.words))
	v.ids[word] = id
	v.words = append(v.words, word)
	return id
}

// Lookup returns the id of word, or UnknownID if it was never added.
func (v *Vocabulary) Lookup(word string) WordID {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if id, ok := v.ids[canonical(word)]; ok {
		return id
	}
	return UnknownID
}

// Word returns the surface string of id.
func (v *Vocabulary) Word(id WordID) string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if int(id) < len(v.words) {
		return v.words[id]
	}
	return UnknownSymbol
}

// Words maps a sequence of ids to surface strings.
func (v *Vocabulary) Words(ids []WordID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = v.Word(id)
	}
	return out
}

// Size returns the number of ids assigned so far.
func (v *Vocabulary) Size() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.words)
}

// canonical folds the spellings of the unknown word used by common toolkits.
func canonical(word string) string {
	switch word {
	case "<UNK>", "<Unk>":
		return UnknownSymbol
	}
	return word
}
