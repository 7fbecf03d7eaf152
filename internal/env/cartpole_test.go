package env

import (
	"math"
	"math/rand"
	"testing"
)

func TestFromName(t *testing.T) {
	e, err := FromName("cartpole")
	if err != nil {
		t.Fatalf("from name: %v", err)
	}
	if e.Name() != "cartpole" || e.StateDim() != 4 || e.ActionDim() != 1 {
		t.Fatalf("unexpected env: name=%s state=%d action=%d", e.Name(), e.StateDim(), e.ActionDim())
	}

	if _, err := FromName("lunar-lander"); err == nil {
		t.Fatal("expected error for unknown environment")
	}
}

func TestCartPoleResetBoundsInitialState(t *testing.T) {
	c := NewCartPole()
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 20; i++ {
		state := c.Reset(rng)
		if len(state) != 4 {
			t.Fatalf("state dims: got=%d want=4", len(state))
		}
		for j, v := range state {
			if math.Abs(v) > cartPoleInitialSpan {
				t.Fatalf("state[%d]=%g outside initial span", j, v)
			}
		}
	}
}

func TestCartPoleEpisodeTerminates(t *testing.T) {
	c := NewCartPole()
	rng := rand.New(rand.NewSource(2))
	c.Reset(rng)

	// constant full push drives the pole over quickly
	total := 0.0
	done := false
	steps := 0
	for !done {
		if steps > cartPoleMaxSteps {
			t.Fatal("episode did not terminate")
		}
		var reward float64
		_, reward, done = c.Step([]float64{1})
		total += reward
		steps++
	}
	if total != float64(steps) {
		t.Fatalf("reward must be 1 per step: total=%g steps=%d", total, steps)
	}
	if steps >= cartPoleMaxSteps {
		t.Fatalf("constant push should fail before the step limit, survived %d", steps)
	}
}

func TestCartPoleStepAfterDonePanics(t *testing.T) {
	c := NewCartPole()
	rng := rand.New(rand.NewSource(3))
	c.Reset(rng)
	for done := false; !done; {
		_, _, done = c.Step([]float64{1})
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic stepping a finished episode")
		}
	}()
	c.Step([]float64{0})
}

func TestCartPoleForceIsClamped(t *testing.T) {
	a := NewCartPole()
	b := NewCartPole()
	rngA := rand.New(rand.NewSource(4))
	rngB := rand.New(rand.NewSource(4))
	a.Reset(rngA)
	b.Reset(rngB)

	sa, _, _ := a.Step([]float64{1})
	sb, _, _ := b.Step([]float64{100})
	for i := range sa {
		if sa[i] != sb[i] {
			t.Fatalf("oversized action must clamp to the force limit: %v vs %v", sa, sb)
		}
	}
}
