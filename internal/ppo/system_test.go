package ppo

import (
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
)

func newTestConfig() Config {
	cfg := DefaultConfig()
	cfg.StateDim = testStateDim
	cfg.ActionDim = testActionDim
	cfg.RolloutCapacity = 32
	cfg.BatchSize = 8
	cfg.Epochs = 2
	cfg.ReportFrequency = 0
	cfg.Seed = 1
	return cfg
}

// collectSegment drives one full rollout segment through the system the way
// a host loop would.
func collectSegment(t *testing.T, s *System, seed int64) {
	t.Helper()

	rng := rand.New(rand.NewSource(seed))
	state := make([]float64, testStateDim)
	for j := range state {
		state[j] = rng.NormFloat64()
	}
	for i := 0; i < 32; i++ {
		action, logProb := s.SampleAction(state)
		value := s.Evaluate(state, action)
		reward := rng.NormFloat64()
		done := i%10 == 9
		s.UpdateRolloutBuffer(state, action, reward, value, logProb, done)

		next := make([]float64, testStateDim)
		for j := range next {
			next[j] = rng.NormFloat64()
		}
		state = next
	}
	finalAction := s.Predict(state)
	s.FinalizeRolloutBuffer(s.Evaluate(state, finalAction), false)
}

func TestSystemSegmentLifecycle(t *testing.T) {
	s, err := NewSystem("test", newTestConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("new system: %v", err)
	}

	if s.IsReady() {
		t.Fatal("fresh system must not be ready")
	}
	collectSegment(t, s, 10)
	if !s.IsReady() {
		t.Fatal("system must be ready after a full segment plus finalize")
	}

	// epochs * capacity / batch = 8 steps drain the segment
	for i := 0; i < 8; i++ {
		if !s.IsReady() {
			t.Fatalf("buffer drained early at step %d", i)
		}
		if _, _, err := s.TrainStep(); err != nil {
			t.Fatalf("train step %d: %v", i, err)
		}
	}
	if s.IsReady() {
		t.Fatal("segment must be discarded after the epoch budget")
	}
}

func TestSystemTargetKLEndsSegmentEarly(t *testing.T) {
	cfg := newTestConfig()
	cfg.TargetKL = 1e-10
	cfg.PolicyLR = 1e-2

	s, err := NewSystem("test", cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("new system: %v", err)
	}
	collectSegment(t, s, 10)

	// the first step sees ratio 1 exactly; once the policy moves, any
	// later step pushes the KL estimate over the tiny target
	steps := 0
	for s.IsReady() {
		if steps >= 8 {
			t.Fatal("segment was not cut before the epoch budget")
		}
		if _, _, err := s.TrainStep(); err != nil {
			t.Fatalf("train step %d: %v", steps, err)
		}
		steps++
	}
	if steps >= 8 {
		t.Fatalf("expected early stop, ran all %d steps", steps)
	}
}

func TestSystemTrainStepBeforeReadyPanics(t *testing.T) {
	s, err := NewSystem("test", newTestConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("new system: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for train step on an incomplete segment")
		}
	}()
	_, _, _ = s.TrainStep()
}

func TestSystemActionClamping(t *testing.T) {
	cfg := newTestConfig()
	cfg.ActionLow = -0.1
	cfg.ActionHigh = 0.1

	s, err := NewSystem("test", cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("new system: %v", err)
	}

	rng := rand.New(rand.NewSource(4))
	for i := 0; i < 50; i++ {
		state := make([]float64, testStateDim)
		for j := range state {
			state[j] = 10 * rng.NormFloat64()
		}
		for _, action := range [][]float64{s.Explore(state), s.Predict(state), s.PredictExplore(state)} {
			for a, v := range action {
				if v < cfg.ActionLow || v > cfg.ActionHigh {
					t.Fatalf("action[%d]=%g outside [%g, %g]", a, v, cfg.ActionLow, cfg.ActionHigh)
				}
			}
		}
	}
}

func TestSystemCheckpointRoundTrip(t *testing.T) {
	dir := t.TempDir()

	src, err := NewSystem("test", newTestConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("new source system: %v", err)
	}
	collectSegment(t, src, 10)
	for i := 0; i < 3; i++ {
		if _, _, err := src.TrainStep(); err != nil {
			t.Fatalf("train step %d: %v", i, err)
		}
	}
	if err := src.SaveCheckpoint(dir); err != nil {
		t.Fatalf("save: %v", err)
	}

	cfg := newTestConfig()
	cfg.Seed = 99
	dst, err := NewSystem("test", cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("new target system: %v", err)
	}
	if err := dst.LoadCheckpoint(dir); err != nil {
		t.Fatalf("load: %v", err)
	}

	state := []float64{0.3, -0.7, 1.1}
	want := src.Predict(state)
	got := dst.Predict(state)
	for a := range want {
		if got[a] != want[a] {
			t.Fatalf("restored policy diverges: got=%v want=%v", got, want)
		}
	}

	wantV := src.Evaluate(state, want)
	if gotV := dst.Evaluate(state, want); gotV != wantV {
		t.Fatalf("restored critic diverges: got=%g want=%g", gotV, wantV)
	}
	if !dst.IsReady() {
		t.Fatal("restored system must carry the live segment")
	}
}

type recordingSink struct {
	entries []string
}

func (r *recordingSink) Log(modelName, metricName string, step int64, value float64) {
	r.entries = append(r.entries, modelName+"/"+metricName)
}

func TestSystemMetricsHook(t *testing.T) {
	cfg := newTestConfig()
	cfg.ReportFrequency = 1
	cfg.EnableMetricsHook = true

	s, err := NewSystem("test", cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("new system: %v", err)
	}
	sink := &recordingSink{}
	s.SetMetricsSink(sink)

	collectSegment(t, s, 10)
	if _, _, err := s.TrainStep(); err != nil {
		t.Fatalf("train step: %v", err)
	}

	want := map[string]bool{
		"actor/train_loss":          false,
		"actor/train_lr":            false,
		"actor/train_clip_fraction": false,
		"critic/train_loss":         false,
		"critic/train_lr":           false,
	}
	for _, entry := range sink.entries {
		if _, ok := want[entry]; ok {
			want[entry] = true
		}
	}
	for entry, seen := range want {
		if !seen {
			t.Fatalf("metric %s was never emitted: %v", entry, sink.entries)
		}
	}
}

func TestNewSystemRejectsBadConfig(t *testing.T) {
	cfg := newTestConfig()
	cfg.BatchSize = cfg.RolloutCapacity + 1
	if _, err := NewSystem("test", cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected config validation error")
	}
}
