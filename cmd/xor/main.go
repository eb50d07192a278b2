package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/FlavioCFOliveira/edgegraph/edgegraph"
)

func main() {
	epochs := flag.Int("epochs", 2000, "training epochs")
	lr := flag.Float64("lr", 0.01, "Adam learning rate")
	seed := flag.Uint64("seed", 42, "initialisation and shuffle seed (0 picks one)")
	out := flag.String("out", "", "write the trained model dump to this file")
	verbose := flag.Bool("v", false, "log every 200 epochs")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	fmt.Println("=== XOR Training Example ===")
	fmt.Println("Network architecture: 2-8-1, tanh hidden layer, MSE loss, Adam")

	m, err := edgegraph.NewSequential(edgegraph.MSELoss(0, 1, 0.01),
		[]edgegraph.Layer{edgegraph.Dense(2, 8), edgegraph.Tanh(0), edgegraph.Dense(0, 1)},
		edgegraph.WithName("xor"), edgegraph.WithLogger(logger))
	if err != nil {
		fail(err)
	}
	used := m.Init(edgegraph.Auto, edgegraph.Normal, *seed)
	fmt.Printf("Seed: %d\n", used)

	ds, err := edgegraph.NewDataset([][]float64{
		{0, 0, 0},
		{0, 1, 1},
		{1, 0, 1},
		{1, 1, 0},
	}, []int{2})
	if err != nil {
		fail(err)
	}

	cfg := edgegraph.DefaultConfig()
	cfg.Epochs = *epochs
	cfg.BatchSize = 1
	cfg.LearningRate = *lr
	cfg.Seed = used
	history, err := m.Fit(ds, cfg, edgegraph.Adam(*lr), edgegraph.Logger(200))
	if err != nil {
		fail(err)
	}
	last := history[len(history)-1]
	fmt.Printf("Final loss: %.6f, accuracy: %.0f%%\n", last.Loss, last.Accuracy*100)

	fmt.Println("\nTesting trained network:")
	for i := 0; i < ds.Size(); i++ {
		pred, err := m.Predict(ds.Trainset(i))
		if err != nil {
			fail(err)
		}
		fmt.Printf("Input: %v, Predicted: %.4f, Target: %v\n", ds.Trainset(i), pred[0], ds.Labels(i)[0])
	}

	if *out != "" {
		dump, err := m.Dump()
		if err != nil {
			fail(err)
		}
		if err := os.WriteFile(*out, dump, 0o644); err != nil {
			fail(err)
		}
		fmt.Printf("\nModel written to %s\n", *out)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
