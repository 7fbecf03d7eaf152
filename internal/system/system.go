// Package system defines the contract every on-policy training system
// implements, so host loops and cross-cutting helpers (checkpointing,
// logging) can drive any concrete algorithm uniformly.
package system

import "strategos/internal/comm"

// System is the on-policy training contract. PPO is the sole concrete
// variant in this repository; additional algorithms plug in through the
// same interface, selected by name at configuration time.
type System interface {
	// UpdateRolloutBuffer records one environment step.
	UpdateRolloutBuffer(state, action []float64, reward, valueEstimate, logProb float64, done bool)
	// FinalizeRolloutBuffer supplies the bootstrap value for the final
	// transition when the segment ends without a natural terminal.
	FinalizeRolloutBuffer(finalValueEstimate float64, done bool)
	// IsReady reports whether a full segment is available for training.
	IsReady() bool
	// TrainStep performs exactly one gradient step on one minibatch and
	// returns the policy and critic losses.
	TrainStep() (policyLoss, criticLoss float64, err error)

	// Explore returns a stochastic action for the state.
	Explore(state []float64) []float64
	// Predict returns the deterministic (mean) action for the state.
	Predict(state []float64) []float64
	// PredictExplore returns an exploring action under the current
	// stochastic policy in a single call.
	PredictExplore(state []float64) []float64
	// Evaluate returns the critic's value estimate for the pair.
	Evaluate(state, action []float64) float64

	SaveCheckpoint(dir string) error
	LoadCheckpoint(dir string) error
	PrintInfo()
	InitComm(c comm.Communicator)
}
