package nn

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// LinearCritic estimates the state-action value as a linear map of the
// concatenated (state, action) vector.
type LinearCritic struct {
	stateDim  int
	actionDim int

	weight *Parameter // stateDim + actionDim
	bias   *Parameter // 1
}

func NewLinearCritic(stateDim, actionDim int, rng *rand.Rand) *LinearCritic {
	if stateDim <= 0 || actionDim <= 0 {
		panic(fmt.Sprintf("nn: invalid critic dims state=%d action=%d", stateDim, actionDim))
	}
	c := &LinearCritic{
		stateDim:  stateDim,
		actionDim: actionDim,
		weight:    newParameter("critic.weight", stateDim+actionDim),
		bias:      newParameter("critic.bias", 1),
	}
	scale := 1.0 / float64(stateDim+actionDim)
	for i := range c.weight.Data {
		c.weight.Data[i] = (rng.Float64() - 0.5) * scale
	}
	return c
}

func (c *LinearCritic) Parameters() []*Parameter {
	return []*Parameter{c.weight, c.bias}
}

// Evaluate returns the value estimate for one (state, action) pair.
func (c *LinearCritic) Evaluate(state, action []float64) float64 {
	x := c.input(state, action)
	w := mat.NewVecDense(len(c.weight.Data), c.weight.Data)
	return mat.Dot(w, mat.NewVecDense(len(x), x)) + c.bias.Data[0]
}

// EvaluateBatch returns one value estimate per pair.
func (c *LinearCritic) EvaluateBatch(states, actions [][]float64) []float64 {
	if len(states) != len(actions) {
		panic(fmt.Sprintf("nn: batch mismatch: %d states vs %d actions", len(states), len(actions)))
	}
	out := make([]float64, len(states))
	for i := range states {
		out[i] = c.Evaluate(states[i], actions[i])
	}
	return out
}

// BackwardBatch accumulates gradients given upstream per-sample gradients
// with respect to the value output.
func (c *LinearCritic) BackwardBatch(states, actions [][]float64, upstream []float64) {
	if len(states) != len(actions) || len(states) != len(upstream) {
		panic(fmt.Sprintf("nn: backward batch mismatch: states=%d actions=%d upstream=%d",
			len(states), len(actions), len(upstream)))
	}
	for i := range states {
		x := c.input(states[i], actions[i])
		for j, v := range x {
			c.weight.Grad[j] += upstream[i] * v
		}
		c.bias.Grad[0] += upstream[i]
	}
}

func (c *LinearCritic) input(state, action []float64) []float64 {
	if len(state) != c.stateDim || len(action) != c.actionDim {
		panic(fmt.Sprintf("nn: pair has dims (%d, %d), critic expects (%d, %d)",
			len(state), len(action), c.stateDim, c.actionDim))
	}
	x := make([]float64, 0, c.stateDim+c.actionDim)
	x = append(x, state...)
	return append(x, action...)
}
