// Package config holds the training configuration read from YAML.
package config

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/FlavioCFOliveira/edgegraph/internal/layer"
	"github.com/FlavioCFOliveira/edgegraph/internal/opt"
)

// ErrInvalid is returned when a configuration fails validation.
var ErrInvalid = errors.New("config: invalid")

// Train configures a training run.
type Train struct {
	Epochs       int     `yaml:"epochs"`
	BatchSize    int     `yaml:"batch_size"`
	LearningRate float64 `yaml:"learning_rate"`
	// Optimizer is "gd" or "adam".
	Optimizer string `yaml:"optimizer"`
	// Seed 0 draws a time-derived seed.
	Seed    uint64 `yaml:"seed"`
	Shuffle bool   `yaml:"shuffle"`
	Init    string `yaml:"init"`
	PDF     string `yaml:"pdf"`
}

// Default returns the configuration used when a field is left out.
func Default() Train {
	return Train{
		Epochs:       10,
		BatchSize:    1,
		LearningRate: 0.01,
		Optimizer:    "gd",
		Shuffle:      true,
		Init:         "auto",
		PDF:          "normal",
	}
}

// Load decodes a YAML document over the defaults and validates it.
func Load(r io.Reader) (Train, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Train{}, errors.Wrap(ErrInvalid, err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return Train{}, err
	}
	return cfg, nil
}

// LoadFile reads and validates the YAML file at path.
func LoadFile(path string) (Train, error) {
	f, err := os.Open(path)
	if err != nil {
		return Train{}, errors.Wrap(err, "failed to open config")
	}
	defer f.Close()
	return Load(f)
}

// Validate checks every field.
func (c Train) Validate() error {
	switch {
	case c.Epochs < 1:
		return errors.Wrapf(ErrInvalid, "epochs %d", c.Epochs)
	case c.BatchSize < 1:
		return errors.Wrapf(ErrInvalid, "batch_size %d", c.BatchSize)
	case c.LearningRate <= 0:
		return errors.Wrapf(ErrInvalid, "learning_rate %v", c.LearningRate)
	}
	switch strings.ToLower(c.Optimizer) {
	case "gd", "adam":
	default:
		return errors.Wrapf(ErrInvalid, "optimizer %q", c.Optimizer)
	}
	if _, err := layer.ParseInitMethod(c.Init); err != nil {
		return errors.Wrapf(ErrInvalid, "init %q", c.Init)
	}
	if _, err := layer.ParsePDF(c.PDF); err != nil {
		return errors.Wrapf(ErrInvalid, "pdf %q", c.PDF)
	}
	return nil
}

// InitMethod returns the parsed initialisation method.
func (c Train) InitMethod() layer.InitMethod {
	m, _ := layer.ParseInitMethod(c.Init)
	return m
}

// Distribution returns the parsed weight distribution.
func (c Train) Distribution() layer.PDF {
	p, _ := layer.ParsePDF(c.PDF)
	return p
}

// NewOptimizer builds the configured optimizer.
func (c Train) NewOptimizer() opt.Optimizer {
	if strings.ToLower(c.Optimizer) == "adam" {
		return opt.NewAdam(c.LearningRate)
	}
	return opt.NewGD(c.LearningRate)
}

// Encode writes c as YAML.
func (c Train) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}
