package env

import (
	"fmt"
	"math"
	"math/rand"
)

// CartPole is the classic pole-balancing task with a continuous force
// action. The observation is [x, xDot, theta, thetaDot]; the single action
// component scales the applied force. Reward is 1 per step survived; the
// episode ends when the cart leaves the track, the pole falls past the
// angle limit, or the step limit is reached.
type CartPole struct {
	state    [4]float64
	steps    int
	finished bool
}

const (
	cartPoleGravity     = 9.8
	cartPoleMassCart    = 1.0
	cartPoleMassPole    = 0.1
	cartPolePoleHalfLen = 0.5
	cartPoleForceScale  = 10.0
	cartPoleTau         = 0.02
	cartPoleMaxSteps    = 500
	cartPoleXThreshold  = 2.4
	cartPoleThetaLimit  = 12.0 * math.Pi / 180.0
	cartPoleInitialSpan = 0.05
	cartPoleTotalMass   = cartPoleMassCart + cartPoleMassPole
	cartPolePoleMassLen = cartPoleMassPole * cartPolePoleHalfLen
)

func NewCartPole() *CartPole {
	return &CartPole{finished: true}
}

func (c *CartPole) Name() string   { return "cartpole" }
func (c *CartPole) StateDim() int  { return 4 }
func (c *CartPole) ActionDim() int { return 1 }

func (c *CartPole) Reset(rng *rand.Rand) []float64 {
	for i := range c.state {
		c.state[i] = (2*rng.Float64() - 1) * cartPoleInitialSpan
	}
	c.steps = 0
	c.finished = false
	return c.observe()
}

func (c *CartPole) Step(action []float64) ([]float64, float64, bool) {
	if len(action) != 1 {
		panic(fmt.Sprintf("env: cartpole takes one action component, got %d", len(action)))
	}
	if c.finished {
		panic("env: step on a finished episode, call Reset first")
	}

	force := cartPoleForceScale * clamp(action[0], -1, 1)
	x, xDot, theta, thetaDot := c.state[0], c.state[1], c.state[2], c.state[3]

	cosTheta := math.Cos(theta)
	sinTheta := math.Sin(theta)
	temp := (force + cartPolePoleMassLen*thetaDot*thetaDot*sinTheta) / cartPoleTotalMass
	thetaAcc := (cartPoleGravity*sinTheta - cosTheta*temp) /
		(cartPolePoleHalfLen * (4.0/3.0 - cartPoleMassPole*cosTheta*cosTheta/cartPoleTotalMass))
	xAcc := temp - cartPolePoleMassLen*thetaAcc*cosTheta/cartPoleTotalMass

	// semi-implicit Euler
	x += cartPoleTau * xDot
	xDot += cartPoleTau * xAcc
	theta += cartPoleTau * thetaDot
	thetaDot += cartPoleTau * thetaAcc

	c.state = [4]float64{x, xDot, theta, thetaDot}
	c.steps++

	failed := math.Abs(x) > cartPoleXThreshold || math.Abs(theta) > cartPoleThetaLimit
	c.finished = failed || c.steps >= cartPoleMaxSteps
	return c.observe(), 1.0, c.finished
}

func (c *CartPole) observe() []float64 {
	out := make([]float64, 4)
	copy(out, c.state[:])
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
