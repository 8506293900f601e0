package scoring

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrUnknownParameter is wrapped by Params.Check for keys no feature consumed.
var ErrUnknownParameter = errors.New("unknown parameter")

// Params is the key=value parameter surface of one feature line, e.g.
//
//	InterpolatedLM name=LM0 path=lm.arpa order=3 factor=0 adaptivity-ratio=0.4
//
// Every getter marks its key as consumed so Check can reject typos.
type Params struct {
	Kind   string
	values map[string]string
	used   map[string]bool
}

// ParseFeatureLine splits a feature line into its kind and parameters.
func ParseFeatureLine(line string) (*Params, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, errors.New("empty feature line")
	}
	if strings.Contains(fields[0], "=") {
		return nil, fmt.Errorf("feature line %q: missing feature kind", line)
	}
	p := NewParams(fields[0], nil)
	for _, f := range fields[1:] {
		key, value, ok := strings.Cut(f, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%s: malformed parameter %q, want key=value", p.Kind, f)
		}
		if _, dup := p.values[key]; dup {
			return nil, fmt.Errorf("%s: duplicate parameter %q", p.Kind, key)
		}
		p.values[key] = value
	}
	return p, nil
}

// NewParams wraps an existing key/value map.
func NewParams(kind string, values map[string]string) *Params {
	p := &Params{Kind: kind, values: make(map[string]string, len(values)), used: make(map[string]bool)}
	for k, v := range values {
		p.values[k] = v
	}
	return p
}

// String returns the value of key or def.
func (p *Params) String(key, def string) string {
	p.used[key] = true
	if v, ok := p.values[key]; ok {
		return v
	}
	return def
}

// Int returns the value of key parsed as an integer, or def.
func (p *Params) Int(key string, def int) (int, error) {
	p.used[key] = true
	v, ok := p.values[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: parameter %s=%q: %w", p.Kind, key, v, err)
	}
	return n, nil
}

// Float returns the value of key parsed as a float, or def.
func (p *Params) Float(key string, def float64) (float64, error) {
	p.used[key] = true
	v, ok := p.values[key]
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: parameter %s=%q: %w", p.Kind, key, v, err)
	}
	return f, nil
}

// Bool returns the value of key parsed as a boolean, or def.
func (p *Params) Bool(key string, def bool) (bool, error) {
	p.used[key] = true
	v, ok := p.values[key]
	if !ok {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: parameter %s=%q: %w", p.Kind, key, v, err)
	}
	return b, nil
}

// Prefixed returns every key starting with prefix, with the prefix removed.
func (p *Params) Prefixed(prefix string) map[string]string {
	out := make(map[string]string)
	for k, v := range p.values {
		if rest, ok := strings.CutPrefix(k, prefix); ok {
			p.used[k] = true
			out[rest] = v
		}
	}
	return out
}

// Check fails on the first parameter that no getter consumed.
func (p *Params) Check() error {
	var unknown []string
	for k := range p.values {
		if !p.used[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("%s: %w %q", p.Kind, ErrUnknownParameter, unknown[0])
}
