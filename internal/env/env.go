// Package env provides the environments host loops train against.
package env

import (
	"fmt"
	"math/rand"
)

// Env is an episodic control task with continuous observations and actions.
// Implementations are owned by a single rank and are not safe for
// concurrent use.
type Env interface {
	Name() string
	StateDim() int
	ActionDim() int
	// Reset starts a new episode and returns the initial observation.
	Reset(rng *rand.Rand) []float64
	// Step applies an action and returns the next observation, the reward,
	// and whether the episode terminated.
	Step(action []float64) (state []float64, reward float64, done bool)
}

// FromName resolves an environment by configuration name.
func FromName(name string) (Env, error) {
	switch name {
	case "", "cartpole":
		return NewCartPole(), nil
	default:
		return nil, fmt.Errorf("unsupported environment: %s", name)
	}
}
