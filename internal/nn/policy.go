package nn

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

const logTwoPi = 1.8378770664093453

// LinearGaussianPolicy is a diagonal-Gaussian policy whose mean is a linear
// map of the state, with a learnable per-dimension log standard deviation.
// Log-probability, entropy and their gradients are closed-form.
type LinearGaussianPolicy struct {
	stateDim  int
	actionDim int

	weight *Parameter // actionDim x stateDim, row-major
	bias   *Parameter // actionDim
	logStd *Parameter // actionDim
}

func NewLinearGaussianPolicy(stateDim, actionDim int, initStd float64, rng *rand.Rand) *LinearGaussianPolicy {
	if stateDim <= 0 || actionDim <= 0 {
		panic(fmt.Sprintf("nn: invalid policy dims state=%d action=%d", stateDim, actionDim))
	}
	p := &LinearGaussianPolicy{
		stateDim:  stateDim,
		actionDim: actionDim,
		weight:    newParameter("policy.weight", actionDim*stateDim),
		bias:      newParameter("policy.bias", actionDim),
		logStd:    newParameter("policy.log_std", actionDim),
	}
	scale := math.Sqrt(2.0 / float64(stateDim))
	for i := range p.weight.Data {
		p.weight.Data[i] = (rng.Float64() - 0.5) * scale
	}
	if initStd <= 0 {
		initStd = 1.0
	}
	for i := range p.logStd.Data {
		p.logStd.Data[i] = math.Log(initStd)
	}
	return p
}

func (p *LinearGaussianPolicy) Parameters() []*Parameter {
	return []*Parameter{p.weight, p.bias, p.logStd}
}

func (p *LinearGaussianPolicy) StateDim() int  { return p.stateDim }
func (p *LinearGaussianPolicy) ActionDim() int { return p.actionDim }

// Mean returns the deterministic action for a state.
func (p *LinearGaussianPolicy) Mean(state []float64) []float64 {
	if len(state) != p.stateDim {
		panic(fmt.Sprintf("nn: state has %d components, policy expects %d", len(state), p.stateDim))
	}
	w := mat.NewDense(p.actionDim, p.stateDim, p.weight.Data)
	mean := mat.NewVecDense(p.actionDim, nil)
	mean.MulVec(w, mat.NewVecDense(p.stateDim, state))
	mean.AddVec(mean, mat.NewVecDense(p.actionDim, p.bias.Data))

	out := make([]float64, p.actionDim)
	copy(out, mean.RawVector().Data)
	return out
}

// Sample draws an action from the current Gaussian and returns its
// log-probability.
func (p *LinearGaussianPolicy) Sample(state []float64, rng *rand.Rand) ([]float64, float64) {
	mean := p.Mean(state)
	action := make([]float64, p.actionDim)
	logProb := 0.0
	for a := 0; a < p.actionDim; a++ {
		std := math.Exp(p.logStd.Data[a])
		action[a] = mean[a] + std*rng.NormFloat64()
		z := (action[a] - mean[a]) / std
		logProb += -0.5*z*z - p.logStd.Data[a] - 0.5*logTwoPi
	}
	return action, logProb
}

// EvaluateAction computes per-sample log-probability and entropy for a batch
// of (state, action) pairs.
func (p *LinearGaussianPolicy) EvaluateAction(states, actions [][]float64) ([]float64, []float64) {
	if len(states) != len(actions) {
		panic(fmt.Sprintf("nn: batch mismatch: %d states vs %d actions", len(states), len(actions)))
	}

	entropyPerSample := 0.0
	for a := 0; a < p.actionDim; a++ {
		entropyPerSample += p.logStd.Data[a] + 0.5*(logTwoPi+1)
	}

	logProbs := make([]float64, len(states))
	entropies := make([]float64, len(states))
	for i := range states {
		mean := p.Mean(states[i])
		lp := 0.0
		for a := 0; a < p.actionDim; a++ {
			std := math.Exp(p.logStd.Data[a])
			z := (actions[i][a] - mean[a]) / std
			lp += -0.5*z*z - p.logStd.Data[a] - 0.5*logTwoPi
		}
		logProbs[i] = lp
		entropies[i] = entropyPerSample
	}
	return logProbs, entropies
}

// BackwardAction accumulates gradients for a batch given upstream gradients
// with respect to each sample's log-probability and entropy.
func (p *LinearGaussianPolicy) BackwardAction(states, actions [][]float64, dLogProb, dEntropy []float64) {
	if len(states) != len(actions) || len(states) != len(dLogProb) || len(states) != len(dEntropy) {
		panic(fmt.Sprintf("nn: backward batch mismatch: states=%d actions=%d dlogp=%d dent=%d",
			len(states), len(actions), len(dLogProb), len(dEntropy)))
	}

	for i := range states {
		mean := p.Mean(states[i])
		for a := 0; a < p.actionDim; a++ {
			std := math.Exp(p.logStd.Data[a])
			z := (actions[i][a] - mean[a]) / std

			// dlogp/dmean = z/std, routed through weight rows and bias
			dMean := dLogProb[i] * z / std
			row := a * p.stateDim
			for j := 0; j < p.stateDim; j++ {
				p.weight.Grad[row+j] += dMean * states[i][j]
			}
			p.bias.Grad[a] += dMean

			// dlogp/dlogstd = z^2 - 1, dentropy/dlogstd = 1
			p.logStd.Grad[a] += dLogProb[i]*(z*z-1) + dEntropy[i]
		}
	}
}

func newParameter(name string, size int) *Parameter {
	return &Parameter{
		Name: name,
		Data: make([]float64, size),
		Grad: make([]float64, size),
	}
}
