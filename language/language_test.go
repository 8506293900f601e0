package language

import (
	"math"
	"strings"
	"testing"
)

const testARPA = `\data\
ngram 1=4
ngram 2=3

\1-grams:
-1.0	</s>
-1.0	<s>	-0.5
-0.5	東京
-0.7	タワー	-0.3

\2-grams:
-0.3	<s>	東京
-0.4	東京	タワー
-0.2	タワー	</s>

\end\
`

func loadTestModel(t *testing.T) (*NGramModel, *Vocabulary) {
	t.Helper()
	vocab := NewVocabulary()
	model, err := LoadARPA(strings.NewReader(testARPA), vocab)
	if err != nil {
		t.Fatalf("LoadARPA error: %v", err)
	}
	return model, vocab
}

func TestLoadARPA(t *testing.T) {
	model, vocab := loadTestModel(t)

	if model.Order != 2 {
		t.Errorf("Order = %d, want 2", model.Order)
	}
	if model.Count(1) != 4 {
		t.Errorf("Count(1) = %d, want 4", model.Count(1))
	}
	if model.Count(2) != 3 {
		t.Errorf("Count(2) = %d, want 3", model.Count(2))
	}

	// Check unigram for 東京: log10 prob = -0.5 -> ln prob = -0.5 * ln(10)
	tokyo := vocab.Lookup("東京")
	if tokyo == UnknownID {
		t.Fatal("東京 not in vocabulary")
	}
	want := -0.5 * math.Ln10
	if got := model.LogProb(nil, tokyo); math.Abs(got-want) > 1e-10 {
		t.Errorf("東京 unigram LogProb = %f, want %f", got, want)
	}
}

func TestLoadARPA_NoCounts(t *testing.T) {
	if _, err := LoadARPA(strings.NewReader("\\data\\\n\\end\\\n"), NewVocabulary()); err == nil {
		t.Error("expected error for ARPA without n-gram counts")
	}
}

func TestLoadARPA_Malformed(t *testing.T) {
	cases := map[string]string{
		"no data":        "\\1-grams:\n-1.0\ta\n\\end\\\n",
		"count mismatch": "\\data\\\nngram 1=2\n\n\\1-grams:\n-1.0\ta\n\n\\end\\\n",
		"no end":         "\\data\\\nngram 1=1\n\n\\1-grams:\n-1.0\ta\n",
		"bad prob":       "\\data\\\nngram 1=1\n\n\\1-grams:\nx\ta\n\n\\end\\\n",
		"undeclared":     "\\data\\\nngram 1=1\n\n\\1-grams:\n-1.0\ta\n\n\\2-grams:\n-1.0\ta\ta\n\n\\end\\\n",
		"extra fields":   "\\data\\\nngram 1=1\n\n\\1-grams:\n-1.0\ta\t-0.1\tb\n\n\\end\\\n",
	}
	for name, data := range cases {
		if _, err := LoadARPA(strings.NewReader(data), NewVocabulary()); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLogProb_Bigram(t *testing.T) {
	model, vocab := loadTestModel(t)

	// P(東京 | <s>) should use the bigram
	lp := model.LogProb([]WordID{StartID}, vocab.Lookup("東京"))
	want := -0.3 * math.Ln10
	if math.Abs(lp-want) > 1e-10 {
		t.Errorf("LogProb(<s>, 東京) = %f, want %f", lp, want)
	}
}

func TestLogProb_Backoff(t *testing.T) {
	model, vocab := loadTestModel(t)

	// P(東京 | タワー) -- no bigram exists, should backoff
	// backoff(タワー) + P_unigram(東京)
	lp := model.LogProb([]WordID{vocab.Lookup("タワー")}, vocab.Lookup("東京"))
	want := -0.3*math.Ln10 + -0.5*math.Ln10
	if math.Abs(lp-want) > 1e-10 {
		t.Errorf("LogProb(タワー, 東京) = %f, want %f", lp, want)
	}
}

func TestLogProb_OOV(t *testing.T) {
	model, vocab := loadTestModel(t)
	oov := vocab.Add("大阪") // known to the vocabulary, not to the model

	if got := model.LogProb(nil, oov); got > -1e29 {
		t.Errorf("LogProb(OOV) without <unk> = %f, want LogZero", got)
	}
	model.OOVLogProb = -5.0 * math.Ln10
	if got := model.LogProb(nil, oov); math.Abs(got-model.OOVLogProb) > 1e-10 {
		t.Errorf("LogProb(OOV) = %f, want %f", got, model.OOVLogProb)
	}
}

func TestSentenceLogProb(t *testing.T) {
	model, vocab := loadTestModel(t)

	lp := model.SentenceLogProb([]WordID{vocab.Lookup("東京"), vocab.Lookup("タワー")})
	// P(<s>, 東京) + P(東京, タワー) + P(タワー, </s>)
	want := -0.3*math.Ln10 + -0.4*math.Ln10 + -0.2*math.Ln10
	if math.Abs(lp-want) > 1e-10 {
		t.Errorf("SentenceLogProb = %f, want %f", lp, want)
	}
}

func TestVocabulary(t *testing.T) {
	v := NewVocabulary()
	if v.Lookup("<s>") != StartID || v.Lookup("</s>") != EndID || v.Lookup("<UNK>") != UnknownID {
		t.Fatal("reserved symbols not at their fixed ids")
	}
	a := v.Add("a")
	if v.Add("a") != a {
		t.Error("Add is not idempotent")
	}
	if v.Word(a) != "a" {
		t.Errorf("Word(%d) = %q, want a", a, v.Word(a))
	}
	if v.Lookup("missing") != UnknownID {
		t.Error("Lookup of unseen word should be UnknownID")
	}
	if v.Size() != 4 {
		t.Errorf("Size = %d, want 4", v.Size())
	}
}
