package nn

import "math/rand"

// Parameter is one learnable tensor with its accumulated gradient. Data and
// Grad always have the same length.
type Parameter struct {
	Name string
	Data []float64
	Grad []float64
}

// Model enumerates learnable parameters. The order must be stable across
// calls: distributed gradient reduction pairs parameters across ranks by
// position.
type Model interface {
	Parameters() []*Parameter
}

// Policy is the actor capability the trainer drives. Backward methods
// accumulate into parameter gradients and never apply updates themselves.
type Policy interface {
	Model
	// EvaluateAction returns the per-sample log-probability and entropy of
	// the given actions under the current policy.
	EvaluateAction(states, actions [][]float64) (logProbs, entropy []float64)
	// BackwardAction accumulates parameter gradients from upstream
	// per-sample gradients with respect to log-probability and entropy.
	BackwardAction(states, actions [][]float64, dLogProb, dEntropy []float64)
	// Sample draws a stochastic action and its log-probability.
	Sample(state []float64, rng *rand.Rand) (action []float64, logProb float64)
	// Mean returns the deterministic action.
	Mean(state []float64) []float64
}

// Critic is the state-action value capability.
type Critic interface {
	Model
	// EvaluateBatch returns one value estimate per (state, action) pair.
	EvaluateBatch(states, actions [][]float64) []float64
	// BackwardBatch accumulates parameter gradients from upstream
	// per-sample gradients with respect to the value output.
	BackwardBatch(states, actions [][]float64, upstream []float64)
	// Evaluate returns the value estimate for a single pair.
	Evaluate(state, action []float64) float64
}

// Optimizer applies accumulated gradients to the parameters it owns.
type Optimizer interface {
	ZeroGrad()
	Step()
	SetLearningRate(lr float64)
	LearningRate() float64
}

// Scheduler adjusts its optimizer's learning rate once per training step.
type Scheduler interface {
	Step()
	CurrentLearningRate() float64
	StepCount() int64
	// SetStep repositions the schedule, used when restoring a checkpoint.
	SetStep(step int64)
}

// MetricsSink receives scalar training metrics. Implementations must never
// block the training step; emission is best-effort and gated to the
// designated rank.
type MetricsSink interface {
	Log(modelName, metricName string, step int64, value float64)
}
