package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/edgegraph/edgegraph"
)

// Trains a 4-8-6-3 classifier on a CSV file with four feature columns and a
// one-hot label in the last three columns. Without -data a synthetic set
// drawn around the class means of the iris flowers is used.
func main() {
	dataPath := flag.String("data", "", "CSV file with a header row")
	labels := flag.String("labels", "4,5,6", "comma-separated label columns")
	configPath := flag.String("config", "", "YAML training configuration")
	save := flag.String("save", "", "write the trained parameters to this file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg := edgegraph.DefaultConfig()
	cfg.Epochs = 300
	cfg.BatchSize = 10
	cfg.LearningRate = 0.01
	cfg.Optimizer = "adam"
	cfg.Seed = 42
	if *configPath != "" {
		var err error
		if cfg, err = edgegraph.LoadConfigFile(*configPath); err != nil {
			fail(err)
		}
	}

	ds, err := load(*dataPath, *labels)
	if err != nil {
		fail(err)
	}
	ds.Normalize()
	train, test := ds.Split(0.8)

	m, err := edgegraph.NewSequential(edgegraph.CCELoss(0, cfg.BatchSize), []edgegraph.Layer{
		edgegraph.Dense(ds.FeatureSize(), 8), edgegraph.ReLU(0),
		edgegraph.Dense(0, 6), edgegraph.ReLU(0),
		edgegraph.Dense(0, 3), edgegraph.Softmax(0),
	}, edgegraph.WithName("iris"), edgegraph.WithLogger(logger))
	if err != nil {
		fail(err)
	}
	m.Summary(os.Stdout)
	m.Init(cfg.InitMethod(), cfg.Distribution(), cfg.Seed)

	if _, err := m.Fit(train, cfg, cfg.NewOptimizer(), edgegraph.Logger(50)); err != nil {
		fail(err)
	}
	s, err := m.Evaluate(test)
	if err != nil {
		fail(err)
	}
	fmt.Printf("\nTest accuracy: %.1f%% (%d samples)\n", s.Accuracy*100, s.Samples)

	if *save != "" {
		if err := m.SaveFile(*save); err != nil {
			fail(err)
		}
	}
}

func load(path, labels string) (*edgegraph.Dataset, error) {
	if path == "" {
		return synthetic(), nil
	}
	var cols []int
	for _, f := range strings.Split(labels, ",") {
		c, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, errors.Wrapf(err, "label column %q", f)
		}
		cols = append(cols, c)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return edgegraph.LoadCSV(file, cols, true)
}

// synthetic spreads 30 samples per class around the class means.
func synthetic() *edgegraph.Dataset {
	means := [][]float64{
		{5.0, 3.4, 1.5, 0.2}, // setosa
		{5.9, 2.8, 4.3, 1.3}, // versicolor
		{6.6, 3.0, 5.6, 2.0}, // virginica
	}
	var rows [][]float64
	for i := 0; i < 30; i++ {
		for class, mean := range means {
			row := make([]float64, 0, 7)
			for k, v := range mean {
				// Deterministic jitter in [-0.25, 0.25].
				row = append(row, v+0.25*float64((i*7+k*3+class*5)%11-5)/5)
			}
			label := []float64{0, 0, 0}
			label[class] = 1
			rows = append(rows, append(row, label...))
		}
	}
	ds, err := edgegraph.NewDataset(rows, []int{4, 5, 6})
	if err != nil {
		fail(err)
	}
	return ds
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
