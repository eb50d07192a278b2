package net

import (
	"math"

	"github.com/FlavioCFOliveira/edgegraph/internal/opt"
)

// Stats is the score of a batch or an epoch.
type Stats struct {
	Loss     float64
	Accuracy float64
	Samples  int
}

// Callback defines the interface for training callbacks.
type Callback interface {
	OnTrainBegin(m *Model)
	OnTrainEnd(m *Model)
	OnEpochBegin(epoch int, m *Model)
	OnEpochEnd(epoch int, s Stats, m *Model)
	OnBatchBegin(batch int, m *Model)
	OnBatchEnd(batch int, s Stats, m *Model)
}

// Stopper is a callback able to end training early.
type Stopper interface {
	ShouldStop() bool
}

// BaseCallback provides default empty implementations for Callback.
type BaseCallback struct{}

func (c BaseCallback) OnTrainBegin(m *Model)                   {}
func (c BaseCallback) OnTrainEnd(m *Model)                     {}
func (c BaseCallback) OnEpochBegin(epoch int, m *Model)        {}
func (c BaseCallback) OnEpochEnd(epoch int, s Stats, m *Model) {}
func (c BaseCallback) OnBatchBegin(batch int, m *Model)        {}
func (c BaseCallback) OnBatchEnd(batch int, s Stats, m *Model) {}

// SchedulerCallback steps a learning rate scheduler at the end of every
// epoch with the epoch loss.
type SchedulerCallback struct {
	BaseCallback
	scheduler opt.Scheduler
}

func NewSchedulerCallback(scheduler opt.Scheduler) *SchedulerCallback {
	return &SchedulerCallback{scheduler: scheduler}
}

func (c *SchedulerCallback) OnEpochEnd(epoch int, s Stats, m *Model) {
	c.scheduler.StepWithLoss(s.Loss)
	m.logger.Debug("learning rate", "epoch", epoch, "lr", c.scheduler.LR())
}

// EarlyStopping stops training when the epoch loss has stopped improving.
type EarlyStopping struct {
	BaseCallback
	Patience  int
	Threshold float64

	bestLoss     float64
	numBadEpochs int
	Stopped      bool
}

func NewEarlyStopping(patience int, threshold float64) *EarlyStopping {
	return &EarlyStopping{
		Patience:  patience,
		Threshold: threshold,
		bestLoss:  math.Inf(1),
	}
}

func (c *EarlyStopping) OnEpochEnd(epoch int, s Stats, m *Model) {
	if s.Loss < c.bestLoss-c.Threshold {
		c.bestLoss = s.Loss
		c.numBadEpochs = 0
	} else {
		c.numBadEpochs++
	}

	if c.numBadEpochs >= c.Patience {
		m.logger.Info("early stopping", "epoch", epoch, "loss", s.Loss, "patience", c.Patience)
		c.Stopped = true
	}
}

func (c *EarlyStopping) ShouldStop() bool { return c.Stopped }

// ModelCheckpoint saves the parameters after every epoch that improves on
// the best loss so far.
type ModelCheckpoint struct {
	BaseCallback
	Filename string

	bestLoss float64
}

func NewModelCheckpoint(filename string) *ModelCheckpoint {
	return &ModelCheckpoint{
		Filename: filename,
		bestLoss: math.Inf(1),
	}
}

func (c *ModelCheckpoint) OnEpochEnd(epoch int, s Stats, m *Model) {
	if s.Loss < c.bestLoss {
		c.bestLoss = s.Loss
		if err := m.SaveFile(c.Filename); err != nil {
			m.logger.Error("saving checkpoint", "file", c.Filename, "err", err)
		} else {
			m.logger.Info("checkpoint saved", "file", c.Filename, "loss", s.Loss)
		}
	}
}

// Logger logs training progress through the model's logger.
type Logger struct {
	BaseCallback
	// Interval logs every Interval epochs; 0 disables epoch logs.
	Interval int
	// Batches also logs every batch at debug level.
	Batches bool
}

func (c Logger) OnEpochEnd(epoch int, s Stats, m *Model) {
	if c.Interval > 0 && epoch%c.Interval == 0 {
		m.logger.Info("epoch", "model", m.name, "epoch", epoch, "loss", s.Loss,
			"accuracy", s.Accuracy, "samples", s.Samples)
	}
}

func (c Logger) OnBatchEnd(batch int, s Stats, m *Model) {
	if c.Batches {
		m.logger.Debug("batch", "model", m.name, "batch", batch, "loss", s.Loss, "accuracy", s.Accuracy)
	}
}
