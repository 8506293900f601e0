package language

import (
	"bytes"
	"math"
	"strings"
	"testing"
)

func TestBuilderBigram(t *testing.T) {
	b := NewBuilder(2)
	b.AddSentence([]string{"東京", "タワー"})
	b.AddSentence([]string{"東京", "タワー", "に", "行く"})
	b.AddSentence([]string{"東京", "駅"})

	var buf bytes.Buffer
	if err := b.WriteARPA(&buf); err != nil {
		t.Fatalf("WriteARPA error: %v", err)
	}

	arpa := buf.String()
	for _, section := range []string{"\\data\\", "\\1-grams:", "\\2-grams:", "\\end\\"} {
		if !strings.Contains(arpa, section) {
			t.Errorf("missing %s section", section)
		}
	}
	// Should not have trigrams for order=2
	if strings.Contains(arpa, "\\3-grams:") {
		t.Error("unexpected \\3-grams: section for bigram model")
	}

	// Verify it can be loaded back
	vocab := NewVocabulary()
	model, err := LoadARPA(strings.NewReader(arpa), vocab)
	if err != nil {
		t.Fatalf("LoadARPA error: %v", err)
	}
	if model.Order != 2 {
		t.Errorf("Order = %d, want 2", model.Order)
	}
	if vocab.Lookup("東京") == UnknownID {
		t.Error("東京 not in vocabulary")
	}

	// Score a sentence: should be finite
	score := model.SentenceLogProb([]WordID{vocab.Lookup("東京"), vocab.Lookup("タワー")})
	if math.IsNaN(score) || math.IsInf(score, 0) {
		t.Errorf("SentenceLogProb = %f (not finite)", score)
	}
}

func TestBuilderTrigram(t *testing.T) {
	b := NewBuilder(3)
	b.AddSentence([]string{"今日", "は", "いい", "天気", "です"})
	b.AddSentence([]string{"今日", "は", "暑い", "です"})
	b.AddSentence([]string{"明日", "は", "いい", "天気", "です"})

	var buf bytes.Buffer
	if err := b.WriteARPA(&buf); err != nil {
		t.Fatalf("WriteARPA error: %v", err)
	}
	if !strings.Contains(buf.String(), "\\3-grams:") {
		t.Error("missing \\3-grams: section")
	}

	vocab := NewVocabulary()
	model, err := LoadARPA(strings.NewReader(buf.String()), vocab)
	if err != nil {
		t.Fatalf("LoadARPA error: %v", err)
	}
	if model.Order != 3 {
		t.Errorf("Order = %d, want 3", model.Order)
	}

	ids := func(words ...string) []WordID {
		out := make([]WordID, len(words))
		for i, w := range words {
			out[i] = vocab.Add(w)
		}
		return out
	}
	// P("今日 は いい 天気 です") should be higher than P("今日 は 寒い 天気 です")
	s1 := model.SentenceLogProb(ids("今日", "は", "いい", "天気", "です"))
	s2 := model.SentenceLogProb(ids("今日", "は", "寒い", "天気", "です"))
	if s1 <= s2 {
		t.Errorf("seen sentence should score higher: %.4f <= %.4f", s1, s2)
	}
}

func TestBuilderModelMatchesARPA(t *testing.T) {
	b := NewBuilder(2)
	for _, s := range [][]string{{"あ", "い"}, {"あ", "い", "う"}, {"い", "う"}} {
		b.AddSentence(s)
	}

	var buf bytes.Buffer
	if err := b.WriteARPA(&buf); err != nil {
		t.Fatalf("WriteARPA error: %v", err)
	}
	fromText, err := LoadARPA(strings.NewReader(buf.String()), NewVocabulary())
	if err != nil {
		t.Fatalf("LoadARPA round-trip error: %v", err)
	}
	direct := b.Model(NewVocabulary())

	for n := 1; n <= 2; n++ {
		if fromText.Count(n) != direct.Count(n) {
			t.Errorf("Count(%d): text %d, direct %d", n, fromText.Count(n), direct.Count(n))
		}
	}

	sent := []string{"あ", "い", "う"}
	textIDs := make([]WordID, len(sent))
	directIDs := make([]WordID, len(sent))
	for i, w := range sent {
		textIDs[i] = fromText.Vocab.Lookup(w)
		directIDs[i] = direct.Vocab.Lookup(w)
	}
	a := fromText.SentenceLogProb(textIDs)
	d := direct.SentenceLogProb(directIDs)
	// ARPA text keeps six decimals of log10.
	if math.Abs(a-d) > 1e-4 {
		t.Errorf("SentenceLogProb: text %f, direct %f", a, d)
	}
	if a >= 0 {
		t.Errorf("SentenceLogProb = %f, want negative", a)
	}
}
