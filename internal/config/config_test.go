package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/edgegraph/internal/layer"
	"github.com/FlavioCFOliveira/edgegraph/internal/opt"
)

func TestLoad(t *testing.T) {
	src := `
epochs: 50
batch_size: 4
learning_rate: 0.001
optimizer: adam
seed: 1234
shuffle: false
init: kaiming
pdf: uniform
`
	cfg, err := Load(strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Epochs)
	assert.Equal(t, 4, cfg.BatchSize)
	assert.Equal(t, 0.001, cfg.LearningRate)
	assert.Equal(t, uint64(1234), cfg.Seed)
	assert.False(t, cfg.Shuffle)
	assert.Equal(t, layer.Kaiming, cfg.InitMethod())
	assert.Equal(t, layer.Uniform, cfg.Distribution())

	o, ok := cfg.NewOptimizer().(*opt.Adam)
	require.True(t, ok)
	assert.Equal(t, 0.001, o.LearningRate())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(strings.NewReader("epochs: 3\n"))
	require.NoError(t, err)

	want := Default()
	want.Epochs = 3
	assert.Equal(t, want, cfg)
	assert.IsType(t, &opt.GD{}, cfg.NewOptimizer())
	assert.Equal(t, layer.Auto, cfg.InitMethod())

	empty, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), empty)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"zero epochs", "epochs: 0"},
		{"negative batch", "batch_size: -1"},
		{"zero rate", "learning_rate: 0"},
		{"optimizer", "optimizer: rmsprop"},
		{"init", "init: lecun"},
		{"pdf", "pdf: cauchy"},
		{"unknown field", "momentum: 0.9"},
		{"bad type", "epochs: many"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.src))
			assert.True(t, errors.Is(err, ErrInvalid), "got %v", err)
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Optimizer = "adam"
	cfg.Seed = 99

	var buf bytes.Buffer
	require.NoError(t, cfg.Encode(&buf))

	got, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.yaml")
	require.NoError(t, os.WriteFile(path, []byte("epochs: 2\nbatch_size: 2\n"), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.BatchSize)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
