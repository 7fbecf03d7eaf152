package comm

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrGroupMismatch = errors.New("allreduce contribution mismatch")
	ErrGroupClosed   = errors.New("communicator group is closed")
)

// Group is an in-process communicator over N ranks running on separate
// goroutines. Each collective is a barrier: contributions accumulate under
// the group lock and every rank blocks until the last one arrives.
type Group struct {
	mu   sync.Mutex
	cond *sync.Cond

	size       int
	arrived    int
	generation uint64
	closed     bool

	// in-progress collective
	sums    [][]float64
	failure error

	// latched at finish; stable while ranks from the completed
	// generation drain
	result      [][]float64
	lastFailure error
}

type groupRank struct {
	group *Group
	rank  int
}

// NewGroup creates an in-process group and returns one Communicator per
// rank.
func NewGroup(size int) ([]Communicator, error) {
	if size <= 0 {
		return nil, fmt.Errorf("group size must be > 0, got %d", size)
	}
	g := &Group{size: size}
	g.cond = sync.NewCond(&g.mu)

	ranks := make([]Communicator, size)
	for i := range ranks {
		ranks[i] = &groupRank{group: g, rank: i}
	}
	return ranks, nil
}

// Close releases all ranks blocked in a collective with ErrGroupClosed.
func (g *Group) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.cond.Broadcast()
}

func (r *groupRank) Rank() int { return r.rank }

func (r *groupRank) Size() int { return r.group.size }

func (r *groupRank) AllReduce(tensors [][]float64, average bool) error {
	g := r.group
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return ErrGroupClosed
	}

	if g.arrived == 0 {
		g.sums = make([][]float64, len(tensors))
		for i, t := range tensors {
			g.sums[i] = append([]float64(nil), t...)
		}
		g.failure = nil
	} else if err := g.accumulate(tensors); err != nil {
		// poison the collective so peers fail instead of deadlocking
		g.failure = err
	}
	g.arrived++

	if g.arrived == g.size {
		g.finish()
	} else {
		gen := g.generation
		for g.generation == gen && !g.closed {
			g.cond.Wait()
		}
		if g.closed && g.generation == gen {
			return ErrGroupClosed
		}
	}

	if g.lastFailure != nil {
		return g.lastFailure
	}
	r.copyOut(tensors, average)
	return nil
}

// accumulate folds a contribution into the running sums. Caller holds the
// group lock.
func (g *Group) accumulate(tensors [][]float64) error {
	if len(tensors) != len(g.sums) {
		return fmt.Errorf("%w: %d tensors vs %d", ErrGroupMismatch, len(tensors), len(g.sums))
	}
	for i, t := range tensors {
		if len(t) != len(g.sums[i]) {
			return fmt.Errorf("%w: tensor %d has %d elements vs %d", ErrGroupMismatch, i, len(t), len(g.sums[i]))
		}
	}
	for i, t := range tensors {
		for j, v := range t {
			g.sums[i][j] += v
		}
	}
	return nil
}

// finish completes the current collective and wakes waiters. A rank still
// draining the finished generation cannot take part in the next one, so the
// latched result stays valid until every waiter has copied it out. Caller
// holds the group lock.
func (g *Group) finish() {
	g.result = g.sums
	g.lastFailure = g.failure
	g.sums = nil
	g.failure = nil
	g.arrived = 0
	g.generation++
	g.cond.Broadcast()
}

// copyOut writes the combined result into this rank's tensors. Caller holds
// the group lock.
func (r *groupRank) copyOut(tensors [][]float64, average bool) {
	scale := 1.0
	if average {
		scale = 1.0 / float64(r.group.size)
	}
	for i, t := range tensors {
		for j := range t {
			t[j] = r.group.result[i][j] * scale
		}
	}
}
