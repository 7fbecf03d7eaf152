package comm

// Communicator provides the collective operations data-parallel training
// relies on. AllReduce is a blocking, barrier-like collective: every rank
// must call it exactly once per step in the same order or the group
// deadlocks. Failures are fatal to the training step; callers never retry.
type Communicator interface {
	// Rank identifies this participant within the group, starting at 0.
	// Rank 0 is the designated reporter.
	Rank() int
	// Size returns the number of participants.
	Size() int
	// AllReduce sums each tensor element-wise across all ranks, divides by
	// the group size when average is set, and writes the combined result
	// back into every rank's tensors in place.
	AllReduce(tensors [][]float64, average bool) error
}
