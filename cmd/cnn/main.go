package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/exp/rand"

	"github.com/FlavioCFOliveira/edgegraph/edgegraph"
)

const side = 6

// Two branches read the same 6x6 image: a convolution with max pooling and
// a plain average pooling. Their volumes are joined along the channel axis
// before the dense classifier.
func main() {
	epochs := flag.Int("epochs", 30, "training epochs")
	batch := flag.Int("batch", 8, "batch size")
	lr := flag.Float64("lr", 0.005, "Adam learning rate")
	seed := flag.Uint64("seed", 42, "initialisation and data seed")
	samples := flag.Int("samples", 200, "number of generated images")
	summary := flag.Bool("summary", true, "print the model summary")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	m := edgegraph.New(edgegraph.WithName("bars"), edgegraph.WithLogger(logger))

	image := edgegraph.Volume(side, side, 1)
	pool := edgegraph.Window(2, 2)
	conv := edgegraph.Conv2D(image, edgegraph.Window(3, 3), 4, edgegraph.Window(1, 1), edgegraph.Window(1, 1))
	relu := edgegraph.ReLU(0)
	maxPool := edgegraph.MaxPool2D(edgegraph.Shape3d{}, pool, pool)
	avgPool := edgegraph.AvgPool2D(image, pool, pool)
	join, err := edgegraph.Concatenate(edgegraph.Shapes(
		edgegraph.Volume(side/2, side/2, 4),
		edgegraph.Volume(side/2, side/2, 1),
	), edgegraph.AxisChannels)
	if err != nil {
		fail(err)
	}
	dense := edgegraph.Dense(0, 2)
	softmax := edgegraph.Softmax(0)
	loss := edgegraph.CCELoss(0, *batch)

	for _, l := range []edgegraph.Layer{conv, relu, maxPool, avgPool, join, dense, softmax} {
		m.AddLayer(l)
	}
	m.AddLoss(loss)
	edges := [][2]edgegraph.Layer{
		{conv, relu}, {relu, maxPool}, {maxPool, join}, {avgPool, join}, {join, dense}, {dense, softmax},
	}
	for _, e := range edges {
		if err := m.CreateEdge(e[0], e[1]); err != nil {
			fail(err)
		}
	}
	if err := m.CreateLossEdge(softmax, loss); err != nil {
		fail(err)
	}
	if *summary {
		m.Summary(os.Stdout)
	}
	m.Init(edgegraph.Auto, edgegraph.Normal, *seed)

	train, test := bars(*samples, rand.New(rand.NewSource(*seed))).Split(0.8)

	cfg := edgegraph.DefaultConfig()
	cfg.Epochs = *epochs
	cfg.BatchSize = *batch
	cfg.LearningRate = *lr
	cfg.Seed = *seed
	adam := edgegraph.Adam(*lr)
	_, err = m.Fit(train, cfg, adam,
		edgegraph.Logger(5),
		edgegraph.SchedulerCallback(edgegraph.ExponentialLR(adam, 0.97)),
		edgegraph.EarlyStopping(5, 1e-4),
	)
	if err != nil {
		fail(err)
	}

	s, err := m.Evaluate(test)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Test loss: %.4f, accuracy: %.1f%% over %d images\n", s.Loss, s.Accuracy*100, s.Samples)
}

// bars generates noisy images holding either a vertical (class 0) or a
// horizontal (class 1) bar. Each row is the image given once per input
// branch, followed by the one-hot label.
func bars(n int, r *rand.Rand) *edgegraph.Dataset {
	rows := make([][]float64, n)
	for i := range rows {
		img := make([]float64, side*side)
		for p := range img {
			img[p] = r.Float64() * 0.2
		}
		class := r.Intn(2)
		at := r.Intn(side)
		for k := 0; k < side; k++ {
			if class == 0 {
				img[k*side+at] = 1
			} else {
				img[at*side+k] = 1
			}
		}
		row := append(append(img, img...), 0, 0)
		row[len(row)-2+class] = 1
		rows[i] = row
	}
	ds, err := edgegraph.NewDataset(rows, []int{2 * side * side, 2*side*side + 1})
	if err != nil {
		fail(err)
	}
	return ds
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
