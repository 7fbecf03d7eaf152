package nn

import (
	"math/rand"
	"testing"

	"strategos/internal/model"
)

func testPack(t *testing.T, seed int64) *ModelPack {
	t.Helper()
	critic := NewLinearCritic(2, 1, rand.New(rand.NewSource(seed)))
	opt := NewSGD(critic, 0.1, 0.9)
	return &ModelPack{
		Name:      "critic",
		Model:     critic,
		Optimizer: opt,
		Scheduler: NewConstantScheduler(opt, 0.1),
		State:     &model.TrainingState{ReportFrequency: 10},
	}
}

func TestPackSnapshotRestoreRoundTrip(t *testing.T) {
	src := testPack(t, 1)
	src.State.StepTrain = 42
	src.Scheduler.SetStep(42)
	for _, p := range src.Model.Parameters() {
		for i := range p.Grad {
			p.Grad[i] = 1
		}
	}
	src.Optimizer.Step()

	snap := src.Snapshot()

	dst := testPack(t, 2)
	if err := dst.RestoreSnapshot(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}

	srcParams, dstParams := src.Model.Parameters(), dst.Model.Parameters()
	for i := range srcParams {
		for j := range srcParams[i].Data {
			if srcParams[i].Data[j] != dstParams[i].Data[j] {
				t.Fatalf("parameter %s[%d] mismatch: got=%g want=%g",
					dstParams[i].Name, j, dstParams[i].Data[j], srcParams[i].Data[j])
			}
		}
	}
	if dst.State.StepTrain != 42 {
		t.Fatalf("step counter: got=%d want=42", dst.State.StepTrain)
	}
	if dst.Scheduler.StepCount() != 42 {
		t.Fatalf("scheduler step: got=%d want=42", dst.Scheduler.StepCount())
	}
}

func TestPackRestoreRejectsForeignSnapshot(t *testing.T) {
	policy := NewLinearGaussianPolicy(2, 1, 1, rand.New(rand.NewSource(1)))
	opt := NewSGD(policy, 0.1, 0.9)
	pack := &ModelPack{
		Name:      "actor",
		Model:     policy,
		Optimizer: opt,
		Scheduler: NewConstantScheduler(opt, 0.1),
		State:     &model.TrainingState{},
	}

	critic := testPack(t, 1)
	if err := pack.RestoreSnapshot(critic.Snapshot()); err == nil {
		t.Fatal("expected error restoring a critic snapshot into a policy pack")
	}
}

func TestShouldReportCadence(t *testing.T) {
	pack := testPack(t, 1)
	pack.State.ReportFrequency = 5

	pack.State.StepTrain = 4
	if pack.ShouldReport() {
		t.Fatal("off-cadence step should not report")
	}
	pack.State.StepTrain = 5
	if !pack.ShouldReport() {
		t.Fatal("on-cadence step should report")
	}

	pack.State.ReportFrequency = 0
	if pack.ShouldReport() {
		t.Fatal("zero frequency disables reporting")
	}
}

func TestGradientsShareBacking(t *testing.T) {
	pack := testPack(t, 1)
	grads := pack.Gradients()

	grads[0][0] = 7
	if got := pack.Model.Parameters()[0].Grad[0]; got != 7 {
		t.Fatalf("gradients must alias parameter storage, got=%g", got)
	}
}
