package phrasemem

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/ieee0824/translate-go/language"
)

// FieldSeparator separates the columns of a text phrase table.
const FieldSeparator = "|||"

// Entry is one line of a text phrase table:
//
//	source ||| target ||| alignment ||| scores [||| domain]
//
// Scores are probabilities in the file and log probabilities in Entry.
type Entry struct {
	Source    []string
	Target    []string
	Alignment []AlignmentPoint
	Scores    []float64
	Domain    uint32
}

// Option converts e into word ids, registering new words in vocab.
func (e Entry) Option(vocab *language.Vocabulary) ([]language.WordID, TranslationOption) {
	source := make([]language.WordID, len(e.Source))
	for i, w := range e.Source {
		source[i] = vocab.Add(w)
	}
	target := make([]language.WordID, len(e.Target))
	for i, w := range e.Target {
		target[i] = vocab.Add(w)
	}
	return source, TranslationOption{
		TargetPhrase: target,
		Alignment:    e.Alignment,
		Scores:       e.Scores,
		Domain:       e.Domain,
	}
}

// ReadPhraseTable parses a text phrase table and calls fn for every entry.
// Lines are numbered from 1 in errors.
func ReadPhraseTable(r io.Reader, fn func(Entry) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		e, err := parseEntry(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if err := fn(e); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	return scanner.Err()
}

func parseEntry(line string) (Entry, error) {
	fields := strings.Split(line, FieldSeparator)
	if len(fields) != 4 && len(fields) != 5 {
		return Entry{}, fmt.Errorf("want 4 or 5 fields, got %d", len(fields))
	}
	e := Entry{
		Source: strings.Fields(fields[0]),
		Target: strings.Fields(fields[1]),
	}
	if len(e.Source) == 0 {
		return Entry{}, fmt.Errorf("empty source phrase")
	}

	for _, tok := range strings.Fields(fields[2]) {
		s, t, ok := strings.Cut(tok, "-")
		if !ok {
			return Entry{}, fmt.Errorf("alignment point %q", tok)
		}
		si, err := strconv.ParseUint(s, 10, 16)
		if err != nil {
			return Entry{}, fmt.Errorf("alignment point %q: %w", tok, err)
		}
		ti, err := strconv.ParseUint(t, 10, 16)
		if err != nil {
			return Entry{}, fmt.Errorf("alignment point %q: %w", tok, err)
		}
		if int(si) >= len(e.Source) || int(ti) >= len(e.Target) {
			return Entry{}, fmt.Errorf("alignment point %q outside the phrase pair", tok)
		}
		e.Alignment = append(e.Alignment, AlignmentPoint{Source: uint16(si), Target: uint16(ti)})
	}

	probs := strings.Fields(fields[3])
	if len(probs) != NumScores {
		return Entry{}, fmt.Errorf("want %d scores, got %d", NumScores, len(probs))
	}
	for _, p := range probs {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return Entry{}, fmt.Errorf("score %q: %w", p, err)
		}
		if v <= 0 || math.IsNaN(v) {
			return Entry{}, fmt.Errorf("score %q is not a positive probability", p)
		}
		e.Scores = append(e.Scores, math.Log(v))
	}

	if len(fields) == 5 {
		d := strings.TrimSpace(fields[4])
		id, err := strconv.ParseUint(d, 10, 32)
		if err != nil {
			return Entry{}, fmt.Errorf("domain %q: %w", d, err)
		}
		e.Domain = uint32(id)
	}
	return e, nil
}
