package opt

import "math"

// Scheduler adjusts the learning rate of an optimizer once per epoch.
type Scheduler interface {
	Step()
	StepWithLoss(loss float64)
	LR() float64
}

// baseScheduler provides default implementations for Scheduler.
type baseScheduler struct {
	optimizer LearningRater
}

func (s baseScheduler) Step()                {}
func (s baseScheduler) StepWithLoss(float64) {}
func (s baseScheduler) LR() float64          { return s.optimizer.LearningRate() }

// StepLR decays the learning rate by gamma every stepSize epochs.
type StepLR struct {
	baseScheduler
	stepSize  int
	gamma     float64
	lastEpoch int
}

func NewStepLR(optimizer LearningRater, stepSize int, gamma float64) *StepLR {
	if stepSize < 1 {
		stepSize = 1
	}
	return &StepLR{
		baseScheduler: baseScheduler{optimizer: optimizer},
		stepSize:      stepSize,
		gamma:         gamma,
	}
}

func (s *StepLR) Step() {
	s.lastEpoch++
	if s.lastEpoch%s.stepSize == 0 {
		s.optimizer.SetLearningRate(s.optimizer.LearningRate() * s.gamma)
	}
}

func (s *StepLR) StepWithLoss(float64) { s.Step() }

// ExponentialLR decays the learning rate by gamma every epoch.
type ExponentialLR struct {
	baseScheduler
	gamma float64
}

func NewExponentialLR(optimizer LearningRater, gamma float64) *ExponentialLR {
	return &ExponentialLR{baseScheduler: baseScheduler{optimizer: optimizer}, gamma: gamma}
}

func (s *ExponentialLR) Step() {
	s.optimizer.SetLearningRate(s.optimizer.LearningRate() * s.gamma)
}

func (s *ExponentialLR) StepWithLoss(float64) { s.Step() }

// ReduceLROnPlateau reduces the learning rate when the loss has stopped
// improving for patience epochs.
type ReduceLROnPlateau struct {
	baseScheduler
	factor    float64
	patience  int
	threshold float64
	cooldown  int
	minLR     float64

	bestLoss        float64
	numBadEpochs    int
	cooldownCounter int
}

func NewReduceLROnPlateau(optimizer LearningRater, factor float64, patience int, threshold, minLR float64) *ReduceLROnPlateau {
	return &ReduceLROnPlateau{
		baseScheduler: baseScheduler{optimizer: optimizer},
		factor:        factor,
		patience:      patience,
		threshold:     threshold,
		minLR:         minLR,
		bestLoss:      math.Inf(1),
	}
}

// StepWithLoss records the epoch loss and decays the rate after patience
// epochs without an improvement larger than threshold.
func (s *ReduceLROnPlateau) StepWithLoss(currentLoss float64) {
	if s.cooldownCounter > 0 {
		s.cooldownCounter--
		return
	}

	if currentLoss < s.bestLoss-s.threshold {
		s.bestLoss = currentLoss
		s.numBadEpochs = 0
	} else {
		s.numBadEpochs++
	}

	if s.numBadEpochs >= s.patience {
		s.optimizer.SetLearningRate(math.Max(s.optimizer.LearningRate()*s.factor, s.minLR))
		s.numBadEpochs = 0
		s.cooldownCounter = s.cooldown
	}
}
