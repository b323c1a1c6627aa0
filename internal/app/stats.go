package app

// RunStats aggregates counters for one dispatcher pass. Errors counts
// per-participant send failures as well as per-request processing failures;
// neither aborts a pass.
type RunStats struct {
	Processed int
	Sent      int
	Errors    int
}

// Merge adds the other pass's counters into s.
func (s *RunStats) Merge(other RunStats) {
	s.Processed += other.Processed
	s.Sent += other.Sent
	s.Errors += other.Errors
}
