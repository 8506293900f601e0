package language

import (
	"strconv"
	"strings"
)

// MaxOrder is the highest n-gram order a HistoryKey can represent.
const MaxOrder = 6

// HistoryKey holds the trailing words that condition the next n-gram
// probability. It is a plain comparable value: copies are independent and
// nothing needs to be released when a key is dropped.
type HistoryKey struct {
	words [MaxOrder - 1]WordID
	n     uint8
}

// NewHistoryKey keeps the last size words of words.
func NewHistoryKey(words []WordID, size int) HistoryKey {
	if size > MaxOrder-1 {
		size = MaxOrder - 1
	}
	if size < 0 {
		size = 0
	}
	if len(words) > size {
		words = words[len(words)-size:]
	}
	var h HistoryKey
	h.n = uint8(copy(h.words[:], words))
	return h
}

// Len returns the number of words in the key.
func (h HistoryKey) Len() int { return int(h.n) }

// Words returns the words of the key, oldest first.
func (h HistoryKey) Words() []WordID {
	out := make([]WordID, h.n)
	copy(out, h.words[:h.n])
	return out
}

// Extend appends word and keeps at most size trailing words.
func (h HistoryKey) Extend(word WordID, size int) HistoryKey {
	if size > MaxOrder-1 {
		size = MaxOrder - 1
	}
	if size <= 0 {
		return HistoryKey{}
	}
	if int(h.n) < size {
		h.words[h.n] = word
		h.n++
		return h
	}
	copy(h.words[:size-1], h.words[int(h.n)-size+1:h.n])
	h.words[size-1] = word
	h.n = uint8(size)
	for i := size; i < MaxOrder-1; i++ {
		h.words[i] = 0
	}
	return h
}

// Truncate keeps at most the last size words of the key.
func (h HistoryKey) Truncate(size int) HistoryKey {
	if size < 0 {
		size = 0
	}
	if int(h.n) <= size {
		return h
	}
	return NewHistoryKey(h.words[:h.n], size)
}

// Hash returns the FNV-1a hash of the key.
func (h HistoryKey) Hash() uint64 {
	const (
		offset = 14695981039346656037
		prime  = 1099511628211
	)
	x := uint64(offset)
	x ^= uint64(h.n)
	x *= prime
	for _, w := range h.words[:h.n] {
		for s := 0; s < 32; s += 8 {
			x ^= uint64(byte(w >> s))
			x *= prime
		}
	}
	return x
}

// String formats the key as space separated ids.
func (h HistoryKey) String() string {
	parts := make([]string, h.n)
	for i, w := range h.words[:h.n] {
		parts[i] = strconv.FormatUint(uint64(w), 10)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
