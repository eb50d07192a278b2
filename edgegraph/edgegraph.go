// Package edgegraph re-exports the model-building API: layers, losses,
// optimizers, callbacks, datasets and the training configuration.
package edgegraph

import (
	"io"
	"log/slog"

	"github.com/FlavioCFOliveira/edgegraph/internal/config"
	"github.com/FlavioCFOliveira/edgegraph/internal/data"
	"github.com/FlavioCFOliveira/edgegraph/internal/dlmath"
	"github.com/FlavioCFOliveira/edgegraph/internal/layer"
	"github.com/FlavioCFOliveira/edgegraph/internal/net"
	"github.com/FlavioCFOliveira/edgegraph/internal/opt"
)

// Re-export common types and functions for easier access
type (
	Model       = net.Model
	Option      = net.Option
	Stats       = net.Stats
	Layer       = layer.Layer
	LossLayer   = layer.LossLayer
	LayerShape  = layer.LayerShape
	Shape2d     = dlmath.Shape2d
	Shape3d     = dlmath.Shape3d
	Optimizer   = opt.Optimizer
	Scheduler   = opt.Scheduler
	Callback    = net.Callback
	Dataset     = data.Dataset
	Provider    = data.Provider
	TrainConfig = config.Train
	InitMethod  = layer.InitMethod
	PDF         = layer.PDF
)

// Initialisation.
const (
	Xavier  = layer.Xavier
	Kaiming = layer.Kaiming
	Auto    = layer.Auto
	Normal  = layer.Normal
	Uniform = layer.Uniform
)

// Concatenation axes.
const (
	AxisHeight   = dlmath.AxisHeight
	AxisWidth    = dlmath.AxisWidth
	AxisChannels = dlmath.AxisChannels
)

// Errors.
var (
	ErrShapeMismatch = layer.ErrShapeMismatch
	ErrNoTarget      = layer.ErrNoTarget
	ErrInvalidTarget = layer.ErrInvalidTarget
	ErrNoInput       = net.ErrNoInput
	ErrNoLoss        = net.ErrNoLoss
	ErrInvalidConfig = config.ErrInvalid
)

// Model creation
func New(opts ...Option) *Model { return net.New(opts...) }

func WithName(name string) Option { return net.WithName(name) }

func WithLogger(l *slog.Logger) Option { return net.WithLogger(l) }

func NewSequential(loss LossLayer, layers []Layer, opts ...Option) (*Model, error) {
	return net.NewSequential(loss, layers, opts...)
}

// Shapes
func Flat(size int) LayerShape { return layer.FlatShape(size) }

func Shapes(shapes ...Shape3d) LayerShape { return layer.NewLayerShape(shapes...) }

func Volume(height, width, channels int) Shape3d {
	return Shape3d{Height: height, Width: width, Channels: channels}
}

func Window(height, width int) Shape2d { return Shape2d{Height: height, Width: width} }

// Layers
func Dense(in, units int) Layer { return layer.NewDense(in, units) }

func ReLU(size int) Layer { return layer.NewReLU(size) }

func Softmax(size int) Layer { return layer.NewSoftmax(size) }

func Tanh(size int) Layer { return layer.NewTanh(size) }

func Sigmoid(size int) Layer { return layer.NewSigmoid(size) }

func Linear(size int) Layer { return layer.NewLinear(size) }

func ELU(size int, alpha float64) Layer { return layer.NewELU(size, alpha) }

func Conv2D(input Shape3d, kernel Shape2d, filters int, stride, padding Shape2d) Layer {
	return layer.NewConvolutional(input, kernel, filters, stride, padding)
}

func MaxPool2D(input Shape3d, kernel, stride Shape2d) Layer {
	return layer.NewMaxPool(input, kernel, stride)
}

func AvgPool2D(input Shape3d, kernel, stride Shape2d) Layer {
	return layer.NewAveragePool(input, kernel, stride)
}

// Recurrent creates an Elman layer over steps time steps of in values each.
func Recurrent(in, units, hidden, steps int) Layer {
	return layer.NewRecurrent(in, units, hidden, steps)
}

func Dropout(p float64, size int) Layer { return layer.NewDropout(p, size) }

func Concatenate(inputs LayerShape, axis int) (Layer, error) {
	return layer.NewConcatenate(inputs, axis)
}

// Losses
func MSELoss(size, batchSize int, tolerance float64) LossLayer {
	return layer.NewMSELoss(size, batchSize, tolerance)
}

func CCELoss(size, batchSize int) LossLayer { return layer.NewCCELoss(size, batchSize) }

// Optimizers
func GD(eta float64) *opt.GD { return opt.NewGD(eta) }

func Adam(eta float64) *opt.Adam { return opt.NewAdam(eta) }

func StepLR(o opt.LearningRater, stepSize int, gamma float64) *opt.StepLR {
	return opt.NewStepLR(o, stepSize, gamma)
}

func ExponentialLR(o opt.LearningRater, gamma float64) *opt.ExponentialLR {
	return opt.NewExponentialLR(o, gamma)
}

func ReduceLROnPlateau(o opt.LearningRater, factor float64, patience int, threshold, minLR float64) *opt.ReduceLROnPlateau {
	return opt.NewReduceLROnPlateau(o, factor, patience, threshold, minLR)
}

// Callbacks
func Logger(interval int) net.Logger { return net.Logger{Interval: interval} }

func ModelCheckpoint(filename string) *net.ModelCheckpoint { return net.NewModelCheckpoint(filename) }

func EarlyStopping(patience int, minDelta float64) *net.EarlyStopping {
	return net.NewEarlyStopping(patience, minDelta)
}

func SchedulerCallback(s Scheduler) *net.SchedulerCallback { return net.NewSchedulerCallback(s) }

func CSVLogger(filename string, append bool) *net.CSVLogger {
	return net.NewCSVLogger(filename, append)
}

// Data and configuration
func NewDataset(rows [][]float64, labelCols []int) (*Dataset, error) {
	return data.New(rows, labelCols)
}

func LoadCSV(r io.Reader, labelCols []int, hasHeader bool) (*Dataset, error) {
	return data.LoadCSV(r, labelCols, hasHeader)
}

func DefaultConfig() TrainConfig { return config.Default() }

func LoadConfig(r io.Reader) (TrainConfig, error) { return config.Load(r) }

func LoadConfigFile(path string) (TrainConfig, error) { return config.LoadFile(path) }

// Model Persistence
func LoadModel(data []byte, opts ...Option) (*Model, error) { return net.LoadModel(data, opts...) }
