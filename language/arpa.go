package language

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// arpaReader walks the sections of an ARPA file line by line.
type arpaReader struct {
	scanner *bufio.Scanner
	lineNo  int
}

// next returns the next non-blank trimmed line.
func (r *arpaReader) next() (string, bool) {
	for r.scanner.Scan() {
		r.lineNo++
		if line := strings.TrimSpace(r.scanner.Text()); line != "" {
			return line, true
		}
	}
	return "", false
}

func (r *arpaReader) errorf(format string, args ...any) error {
	return fmt.Errorf("line %d: %s", r.lineNo, fmt.Sprintf(format, args...))
}

// LoadARPA reads a language model in ARPA format, adding its words to vocab.
// Probabilities and backoffs are stored as natural logs. The number of
// entries in each section must match the \data\ header.
func LoadARPA(r io.Reader, vocab *Vocabulary) (*NGramModel, error) {
	ar := &arpaReader{scanner: bufio.NewScanner(r)}
	ar.scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	line, ok := ar.next()
	for ok && line != `\data\` {
		line, ok = ar.next()
	}
	if !ok {
		return nil, scanErr(ar, errors.New(`missing \data\ section`))
	}

	declared := make(map[int]int)
	maxOrder := 0
	for line, ok = ar.next(); ok && strings.HasPrefix(line, "ngram "); line, ok = ar.next() {
		n, count, err := parseCountLine(line[len("ngram "):])
		if err != nil {
			return nil, ar.errorf("%v", err)
		}
		declared[n] = count
		maxOrder = max(maxOrder, n)
	}
	if maxOrder == 0 {
		return nil, scanErr(ar, errors.New(`no n-gram counts in \data\ section`))
	}
	if maxOrder > MaxOrder {
		return nil, fmt.Errorf("order %d exceeds supported maximum %d", maxOrder, MaxOrder)
	}

	model := NewNGramModel(maxOrder, vocab)
	for ok && line != `\end\` {
		n, isHeader := sectionOrder(line)
		if !isHeader {
			return nil, ar.errorf("unexpected %q outside an n-gram section", line)
		}
		if n < 1 || n > maxOrder {
			return nil, ar.errorf("section %q has no declared count", line)
		}
		read := 0
		for line, ok = ar.next(); ok && !strings.HasPrefix(line, `\`); line, ok = ar.next() {
			if err := parseNGramLine(model, n, line); err != nil {
				return nil, ar.errorf("%v", err)
			}
			read++
		}
		if read != declared[n] {
			return nil, fmt.Errorf("%d-grams: header declares %d entries, read %d", n, declared[n], read)
		}
	}
	if !ok {
		return nil, scanErr(ar, errors.New(`missing \end\ marker`))
	}
	return model, nil
}

// LoadARPAFile opens path and reads it with LoadARPA.
func LoadARPAFile(path string, vocab *Vocabulary) (*NGramModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open language model: %w", err)
	}
	defer f.Close()
	m, err := LoadARPA(f, vocab)
	if err != nil {
		return nil, fmt.Errorf("load language model %s: %w", path, err)
	}
	return m, nil
}

// scanErr prefers the scanner's own failure over the structural one.
func scanErr(ar *arpaReader, fallback error) error {
	if err := ar.scanner.Err(); err != nil {
		return err
	}
	return fallback
}

// parseCountLine parses the "N=count" part of an "ngram N=count" line.
func parseCountLine(s string) (n, count int, err error) {
	lhs, rhs, found := strings.Cut(s, "=")
	if !found {
		return 0, 0, fmt.Errorf("malformed count %q", s)
	}
	if n, err = strconv.Atoi(strings.TrimSpace(lhs)); err != nil || n < 1 {
		return 0, 0, fmt.Errorf("malformed order in %q", s)
	}
	if count, err = strconv.Atoi(strings.TrimSpace(rhs)); err != nil || count < 0 {
		return 0, 0, fmt.Errorf("malformed count in %q", s)
	}
	return n, count, nil
}

// sectionOrder recognizes headers like \2-grams:.
func sectionOrder(line string) (int, bool) {
	if !strings.HasPrefix(line, `\`) || !strings.HasSuffix(line, "-grams:") {
		return 0, false
	}
	n, err := strconv.Atoi(line[1 : len(line)-len("-grams:")])
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseNGramLine(model *NGramModel, order int, line string) error {
	fields := strings.Fields(line)
	if len(fields) < order+1 || len(fields) > order+2 {
		return fmt.Errorf("wrong number of fields for %d-gram: %q", order, line)
	}

	logProb, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return fmt.Errorf("parse log prob: %w", err)
	}

	words := make([]WordID, order)
	for i, w := range fields[1 : order+1] {
		words[i] = model.Vocab.Add(w)
	}

	var logBackoff float64
	if len(fields) == order+2 {
		bo, err := strconv.ParseFloat(fields[order+1], 64)
		if err != nil {
			return fmt.Errorf("parse backoff: %w", err)
		}
		logBackoff = bo * math.Ln10
	}

	model.Add(words, logProb*math.Ln10, logBackoff)
	return nil
}
