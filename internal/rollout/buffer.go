package rollout

import (
	"fmt"
	"math/rand"
	"time"

	"strategos/internal/model"
)

// Batch is one sampled minibatch. States and Actions keep the buffer's fixed
// shapes; the remaining columns are one scalar per sample.
type Batch struct {
	States         [][]float64
	Actions        [][]float64
	ValueEstimates []float64
	LogProbs       []float64
	Advantages     []float64
	Returns        []float64
}

// GAELambdaBuffer is a fixed-capacity ring of transitions collected under one
// policy. It holds capacity+1 entries so the value estimate one step beyond
// the last usable transition is available to seed the GAE backward recursion;
// that bootstrap entry is never sampled.
//
// The buffer is owned by a single rank and is not safe for concurrent use.
type GAELambdaBuffer struct {
	capacity int
	gamma    float64
	lambda   float64
	nStep    int // kept for interface symmetry with the off-policy buffer, unused by GAE

	transitions []model.Transition
	head        int
	count       int

	computed   bool
	advantages []float64
	returns    []float64

	rng *rand.Rand
}

// NewGAELambdaBuffer creates a buffer for segments of the given capacity.
// A nil rng falls back to a time-seeded source.
func NewGAELambdaBuffer(capacity int, gamma, lambda float64, nStep int, rng *rand.Rand) *GAELambdaBuffer {
	if capacity <= 0 {
		panic(fmt.Sprintf("rollout: capacity must be > 0, got %d", capacity))
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &GAELambdaBuffer{
		capacity:    capacity,
		gamma:       gamma,
		lambda:      lambda,
		nStep:       nStep,
		transitions: make([]model.Transition, capacity+1),
		advantages:  make([]float64, capacity),
		returns:     make([]float64, capacity),
		rng:         rng,
	}
}

// Update appends one transition at the next ring position. It always
// succeeds; once capacity+1 entries are live the oldest entry is evicted
// first. Callers must drain via training before overflow or un-trained data
// is silently discarded.
func (b *GAELambdaBuffer) Update(state, action []float64, reward, valueEstimate, logProb float64, done bool) {
	if b.count > 0 {
		ref := b.at(0)
		if len(state) != len(ref.State) || len(action) != len(ref.Action) {
			panic(fmt.Sprintf("rollout: shape mismatch: state %d/%d action %d/%d",
				len(state), len(ref.State), len(action), len(ref.Action)))
		}
	}
	b.transitions[b.head] = model.Transition{
		State:         append([]float64(nil), state...),
		Action:        append([]float64(nil), action...),
		Reward:        reward,
		ValueEstimate: valueEstimate,
		LogProb:       logProb,
		Done:          done,
	}
	b.head = (b.head + 1) % len(b.transitions)
	if b.count < len(b.transitions) {
		b.count++
	}
	b.computed = false
}

// IsReady reports whether a full segment (capacity+1 entries including the
// bootstrap transition) has been written since the last reset. Advantage and
// return targets are computed lazily on the first ready check.
func (b *GAELambdaBuffer) IsReady() bool {
	if b.count < len(b.transitions) {
		return false
	}
	if !b.computed {
		b.computeAdvantagesAndReturns()
	}
	return true
}

// computeAdvantagesAndReturns runs the GAE backward recursion over the
// current segment. The (1-done) factor cuts bootstrapping across episode
// boundaries; the advantage beyond the last usable index seeds at zero.
func (b *GAELambdaBuffer) computeAdvantagesAndReturns() {
	next := 0.0
	for i := b.capacity - 1; i >= 0; i-- {
		t := b.at(i)
		notDone := 1.0
		if t.Done {
			notDone = 0.0
		}
		delta := t.Reward + b.gamma*b.at(i+1).ValueEstimate*notDone - t.ValueEstimate
		next = delta + b.gamma*b.lambda*notDone*next
		b.advantages[i] = next
		b.returns[i] = next + t.ValueEstimate
	}
	b.computed = true
}

// Sample draws batchSize indices uniformly without replacement from the
// usable segment and returns the batched columns. Repeated calls against the
// same segment are the normal multi-epoch minibatching pattern; one call
// makes no full-coverage guarantee.
func (b *GAELambdaBuffer) Sample(batchSize int) Batch {
	if batchSize <= 0 || batchSize > b.capacity {
		panic(fmt.Sprintf("rollout: batch size %d outside (0, %d]", batchSize, b.capacity))
	}
	if !b.IsReady() {
		panic("rollout: sample called before the buffer is ready")
	}

	indices := b.rng.Perm(b.capacity)[:batchSize]
	batch := Batch{
		States:         make([][]float64, batchSize),
		Actions:        make([][]float64, batchSize),
		ValueEstimates: make([]float64, batchSize),
		LogProbs:       make([]float64, batchSize),
		Advantages:     make([]float64, batchSize),
		Returns:        make([]float64, batchSize),
	}
	for j, i := range indices {
		t := b.at(i)
		batch.States[j] = t.State
		batch.Actions[j] = t.Action
		batch.ValueEstimates[j] = t.ValueEstimate
		batch.LogProbs[j] = t.LogProb
		batch.Advantages[j] = b.advantages[i]
		batch.Returns[j] = b.returns[i]
	}
	return batch
}

// Get returns the i-th live transition in chronological order.
func (b *GAELambdaBuffer) Get(i int) model.Transition {
	if i < 0 || i >= b.count {
		panic(fmt.Sprintf("rollout: index %d outside [0, %d)", i, b.count))
	}
	return b.at(i)
}

// Size returns the usable segment length (the construction capacity).
func (b *GAELambdaBuffer) Size() int {
	return b.capacity
}

// Len returns the number of live entries, at most capacity+1.
func (b *GAELambdaBuffer) Len() int {
	return b.count
}

// Reset discards all live entries and stale advantage/return targets.
func (b *GAELambdaBuffer) Reset() {
	b.head = 0
	b.count = 0
	b.computed = false
}

// Snapshot returns the live entries in chronological order, for
// checkpointing.
func (b *GAELambdaBuffer) Snapshot() []model.Transition {
	out := make([]model.Transition, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.at(i)
	}
	return out
}

// Restore replaces the buffer contents with a previously snapshotted
// segment.
func (b *GAELambdaBuffer) Restore(transitions []model.Transition) error {
	if len(transitions) > len(b.transitions) {
		return fmt.Errorf("rollout: snapshot holds %d entries, buffer fits %d", len(transitions), len(b.transitions))
	}
	b.Reset()
	for _, t := range transitions {
		b.Update(t.State, t.Action, t.Reward, t.ValueEstimate, t.LogProb, t.Done)
	}
	return nil
}

// at maps a chronological index to its ring slot. When the ring is full the
// oldest entry sits at head, otherwise writing has not wrapped yet.
func (b *GAELambdaBuffer) at(i int) model.Transition {
	n := len(b.transitions)
	return b.transitions[(b.head-b.count+i+2*n)%n]
}
