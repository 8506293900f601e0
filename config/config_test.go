package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
features = [
  "PhraseMemory name=TM0 path=pm.db",
  "InterpolatedLM name=LM0 path=lm.arpa",
]

[weights]
TM0 = [0.2, 0.2, 0.2, 0.2]
LM0 = [0.5]

[decoder]
beam_width = 5.0
workers = 2
`

func TestParse(t *testing.T) {
	cfg, err := Parse(sample)
	require.NoError(t, err)
	assert.Len(t, cfg.Features, 2)
	assert.Equal(t, []float64{0.5}, cfg.Weights["LM0"])
	assert.Equal(t, 5.0, cfg.Decoder.BeamWidth)
	assert.Equal(t, 2, cfg.Decoder.Workers)
	// untouched keys keep their defaults
	assert.Equal(t, 100, cfg.Decoder.MaxStackSize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLogConfig_Formatter(t *testing.T) {
	cases := map[string]log.Formatter{
		"":       log.TextFormatter,
		"text":   log.TextFormatter,
		"json":   log.JSONFormatter,
		"logfmt": log.LogfmtFormatter,
	}
	for format, want := range cases {
		got, err := LogConfig{Format: format}.Formatter()
		require.NoError(t, err, format)
		assert.Equal(t, want, got, format)
	}
	_, err := LogConfig{Format: "xml"}.Formatter()
	assert.Error(t, err)
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"syntax":      "features = [",
		"unknown key": "[decoder]\nbeam = 3.0",
		"beam":        "[decoder]\nbeam_width = 0.0",
		"stack":       "[decoder]\nmax_stack_size = 0",
		"workers":     "[decoder]\nworkers = 0",
		"log level":   "[log]\nlevel = \"loud\"",
		"log format":  "[log]\nformat = \"xml\"",
		"empty line":  "features = [\"  \"]",
	}
	for name, data := range cases {
		_, err := Parse(data)
		assert.Error(t, err, name)
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "translate.toml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Dir)
	assert.Equal(t, filepath.Join(dir, "pm.db"), cfg.Resolve("pm.db"))
	assert.Equal(t, "/abs/lm.arpa", cfg.Resolve("/abs/lm.arpa"))

	out := filepath.Join(dir, "copy.toml")
	require.NoError(t, cfg.Save(out))
	again, err := Load(out)
	require.NoError(t, err)
	assert.Equal(t, cfg.Features, again.Features)
	assert.Equal(t, cfg.Weights, again.Weights)
	assert.Equal(t, cfg.Decoder, again.Decoder)

	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}
