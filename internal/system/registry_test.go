package system

import (
	"errors"
	"testing"

	"strategos/internal/comm"
)

type stubSystem struct{ name string }

func (s *stubSystem) UpdateRolloutBuffer(_, _ []float64, _, _, _ float64, _ bool) {}
func (s *stubSystem) FinalizeRolloutBuffer(_ float64, _ bool)                     {}
func (s *stubSystem) IsReady() bool                                               { return false }
func (s *stubSystem) TrainStep() (float64, float64, error)                        { return 0, 0, nil }
func (s *stubSystem) Explore(state []float64) []float64                           { return state }
func (s *stubSystem) Predict(state []float64) []float64                           { return state }
func (s *stubSystem) PredictExplore(state []float64) []float64                    { return state }
func (s *stubSystem) Evaluate(_, _ []float64) float64                             { return 0 }
func (s *stubSystem) SaveCheckpoint(_ string) error                               { return nil }
func (s *stubSystem) LoadCheckpoint(_ string) error                               { return nil }
func (s *stubSystem) PrintInfo()                                                  {}
func (s *stubSystem) InitComm(_ comm.Communicator)                                {}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	sys := &stubSystem{name: "a"}

	if err := r.Register("a", sys); err != nil {
		t.Fatalf("register: %v", err)
	}
	got, err := r.Get("a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != sys {
		t.Fatal("registry returned a different system")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("a", &stubSystem{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register("a", &stubSystem{}); !errors.Is(err, ErrSystemExists) {
		t.Fatalf("got err=%v want ErrSystemExists", err)
	}
}

func TestRegistryRejectsInvalidArgs(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("", &stubSystem{}); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := r.Register("a", nil); err == nil {
		t.Fatal("expected error for nil system")
	}
}

func TestRegistryMissingSystem(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("missing"); !errors.Is(err, ErrSystemNotFound) {
		t.Fatalf("got err=%v want ErrSystemNotFound", err)
	}
}

func TestRegistryDeregisterLeavesOthers(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"a", "b"} {
		if err := r.Register(name, &stubSystem{name: name}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	r.Deregister("a")
	r.Deregister("missing")

	if _, err := r.Get("a"); !errors.Is(err, ErrSystemNotFound) {
		t.Fatalf("got err=%v want ErrSystemNotFound", err)
	}
	if _, err := r.Get("b"); err != nil {
		t.Fatalf("deregister removed an unrelated system: %v", err)
	}
}

func TestRegistryNamesSortedAndShutdown(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"c", "a", "b"} {
		if err := r.Register(name, &stubSystem{name: name}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	names := r.Names()
	want := []string{"a", "b", "c"}
	if len(names) != len(want) {
		t.Fatalf("names: got=%v want=%v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names: got=%v want=%v", names, want)
		}
	}

	r.Shutdown()
	if got := r.Names(); len(got) != 0 {
		t.Fatalf("names after shutdown: got=%v want empty", got)
	}
}
