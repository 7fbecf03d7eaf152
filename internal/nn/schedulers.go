package nn

import (
	"fmt"
	"math"
)

// ConstantScheduler keeps the base learning rate for the whole run.
type ConstantScheduler struct {
	opt    Optimizer
	baseLR float64
	step   int64
}

func NewConstantScheduler(opt Optimizer, baseLR float64) *ConstantScheduler {
	opt.SetLearningRate(baseLR)
	return &ConstantScheduler{opt: opt, baseLR: baseLR}
}

func (s *ConstantScheduler) Step()                        { s.step++ }
func (s *ConstantScheduler) CurrentLearningRate() float64 { return s.baseLR }
func (s *ConstantScheduler) StepCount() int64             { return s.step }
func (s *ConstantScheduler) SetStep(step int64)           { s.step = step }

// LinearScheduler decays the learning rate linearly from the base rate to
// zero over the horizon, then holds at zero.
type LinearScheduler struct {
	opt     Optimizer
	baseLR  float64
	horizon int64
	step    int64
}

func NewLinearScheduler(opt Optimizer, baseLR float64, horizon int64) *LinearScheduler {
	opt.SetLearningRate(baseLR)
	return &LinearScheduler{opt: opt, baseLR: baseLR, horizon: horizon}
}

func (s *LinearScheduler) Step() {
	s.step++
	s.opt.SetLearningRate(s.CurrentLearningRate())
}

func (s *LinearScheduler) CurrentLearningRate() float64 {
	if s.step >= s.horizon {
		return 0
	}
	return s.baseLR * (1 - float64(s.step)/float64(s.horizon))
}

func (s *LinearScheduler) StepCount() int64 { return s.step }

func (s *LinearScheduler) SetStep(step int64) {
	s.step = step
	s.opt.SetLearningRate(s.CurrentLearningRate())
}

// CosineScheduler anneals the learning rate from the base rate to zero along
// a half cosine over the horizon.
type CosineScheduler struct {
	opt     Optimizer
	baseLR  float64
	horizon int64
	step    int64
}

func NewCosineScheduler(opt Optimizer, baseLR float64, horizon int64) *CosineScheduler {
	opt.SetLearningRate(baseLR)
	return &CosineScheduler{opt: opt, baseLR: baseLR, horizon: horizon}
}

func (s *CosineScheduler) Step() {
	s.step++
	s.opt.SetLearningRate(s.CurrentLearningRate())
}

func (s *CosineScheduler) CurrentLearningRate() float64 {
	if s.step >= s.horizon {
		return 0
	}
	return 0.5 * s.baseLR * (1 + math.Cos(math.Pi*float64(s.step)/float64(s.horizon)))
}

func (s *CosineScheduler) StepCount() int64 { return s.step }

func (s *CosineScheduler) SetStep(step int64) {
	s.step = step
	s.opt.SetLearningRate(s.CurrentLearningRate())
}

// SchedulerFromName resolves a learning-rate schedule by configuration name.
func SchedulerFromName(name string, opt Optimizer, baseLR float64, horizon int64) (Scheduler, error) {
	switch name {
	case "", "constant":
		return NewConstantScheduler(opt, baseLR), nil
	case "linear":
		if horizon <= 0 {
			return nil, fmt.Errorf("linear schedule requires a horizon > 0, got %d", horizon)
		}
		return NewLinearScheduler(opt, baseLR, horizon), nil
	case "cosine":
		if horizon <= 0 {
			return nil, fmt.Errorf("cosine schedule requires a horizon > 0, got %d", horizon)
		}
		return NewCosineScheduler(opt, baseLR, horizon), nil
	default:
		return nil, fmt.Errorf("unsupported lr schedule: %s", name)
	}
}
