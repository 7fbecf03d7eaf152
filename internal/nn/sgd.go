package nn

import "fmt"

// SGD is a momentum stochastic-gradient-descent optimizer over a model's
// parameters.
type SGD struct {
	params   []*Parameter
	velocity [][]float64
	lr       float64
	momentum float64
}

func NewSGD(m Model, lr, momentum float64) *SGD {
	params := m.Parameters()
	velocity := make([][]float64, len(params))
	for i, p := range params {
		velocity[i] = make([]float64, len(p.Data))
	}
	return &SGD{
		params:   params,
		velocity: velocity,
		lr:       lr,
		momentum: momentum,
	}
}

func (o *SGD) ZeroGrad() {
	for _, p := range o.params {
		for i := range p.Grad {
			p.Grad[i] = 0
		}
	}
}

func (o *SGD) Step() {
	for i, p := range o.params {
		v := o.velocity[i]
		for j := range p.Data {
			v[j] = o.momentum*v[j] + p.Grad[j]
			p.Data[j] -= o.lr * v[j]
		}
	}
}

func (o *SGD) SetLearningRate(lr float64) { o.lr = lr }

func (o *SGD) LearningRate() float64 { return o.lr }

// Velocity exposes the momentum buffers for checkpointing.
func (o *SGD) Velocity() [][]float64 {
	out := make([][]float64, len(o.velocity))
	for i, v := range o.velocity {
		out[i] = append([]float64(nil), v...)
	}
	return out
}

// SetVelocity restores momentum buffers from a checkpoint.
func (o *SGD) SetVelocity(velocity [][]float64) error {
	if len(velocity) != len(o.velocity) {
		return fmt.Errorf("nn: velocity has %d buffers, optimizer owns %d", len(velocity), len(o.velocity))
	}
	for i, v := range velocity {
		if len(v) != len(o.velocity[i]) {
			return fmt.Errorf("nn: velocity buffer %d has %d elements, want %d", i, len(v), len(o.velocity[i]))
		}
		copy(o.velocity[i], v)
	}
	return nil
}
