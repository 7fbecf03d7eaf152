package nn

import (
	"fmt"

	"strategos/internal/comm"
	"strategos/internal/model"
)

// ModelPack groups one model with the capabilities that train it. Comm and
// Metrics are optional; a nil Comm means single-participant training.
type ModelPack struct {
	Name      string
	Model     Model
	Optimizer Optimizer
	Scheduler Scheduler
	Comm      comm.Communicator
	State     *model.TrainingState
	Metrics   MetricsSink
}

// Gradients returns the pack's parameter gradients in enumeration order,
// ready to hand to an allreduce.
func (p *ModelPack) Gradients() [][]float64 {
	params := p.Model.Parameters()
	grads := make([][]float64, len(params))
	for i, param := range params {
		grads[i] = param.Grad
	}
	return grads
}

// ShouldReport reports whether this step falls on the reporting cadence for
// the designated rank.
func (p *ModelPack) ShouldReport() bool {
	if p.State == nil || p.State.ReportFrequency <= 0 {
		return false
	}
	if p.State.StepTrain%p.State.ReportFrequency != 0 {
		return false
	}
	return p.Comm == nil || p.Comm.Rank() == 0
}

// Snapshot captures the pack's restartable state.
func (p *ModelPack) Snapshot() model.ModelSnapshot {
	params := p.Model.Parameters()
	snap := model.ModelSnapshot{
		Name:       p.Name,
		Parameters: make([]model.ParameterSnapshot, len(params)),
	}
	for i, param := range params {
		snap.Parameters[i] = model.ParameterSnapshot{
			Name: param.Name,
			Data: append([]float64(nil), param.Data...),
		}
	}
	if sgd, ok := p.Optimizer.(*SGD); ok {
		snap.Momentum = sgd.Velocity()
	}
	if p.Scheduler != nil {
		snap.SchedulerStep = p.Scheduler.StepCount()
	}
	if p.State != nil {
		snap.State = *p.State
	}
	return snap
}

// RestoreSnapshot loads a previously captured snapshot into the pack.
func (p *ModelPack) RestoreSnapshot(snap model.ModelSnapshot) error {
	params := p.Model.Parameters()
	if len(snap.Parameters) != len(params) {
		return fmt.Errorf("snapshot %s holds %d parameters, model owns %d", snap.Name, len(snap.Parameters), len(params))
	}
	for i, param := range params {
		stored := snap.Parameters[i]
		if stored.Name != param.Name || len(stored.Data) != len(param.Data) {
			return fmt.Errorf("snapshot parameter %q (%d values) does not match %q (%d values)",
				stored.Name, len(stored.Data), param.Name, len(param.Data))
		}
	}
	for i, param := range params {
		copy(param.Data, snap.Parameters[i].Data)
	}
	if sgd, ok := p.Optimizer.(*SGD); ok && snap.Momentum != nil {
		if err := sgd.SetVelocity(snap.Momentum); err != nil {
			return err
		}
	}
	if p.Scheduler != nil {
		p.Scheduler.SetStep(snap.SchedulerStep)
	}
	if p.State != nil {
		*p.State = snap.State
	}
	return nil
}
