package app

import "time"

// Run describes one invocation of the binary: a long-lived serve or a
// one-shot inspection command. Its ID tags every log line the invocation writes.
type Run struct {
	ID        string
	Command   string
	StartedAt time.Time
	Status    string // "running", "success" or "error"
	Err       error
}

// NewRun creates a running record whose ID is the UTC start time.
func NewRun(command string, now time.Time) *Run {
	return &Run{
		ID:        now.UTC().Format("20060102T150405Z"),
		Command:   command,
		StartedAt: now,
		Status:    "running",
	}
}

// Finish records the outcome and returns how long the run took.
// The first error wins; later calls do not overwrite it.
func (r *Run) Finish(now time.Time, err error) time.Duration {
	if r.Err == nil && err != nil {
		r.Err = err
	}
	if r.Err != nil {
		r.Status = "error"
	} else {
		r.Status = "success"
	}
	return now.Sub(r.StartedAt)
}

// Done reports whether Finish has been called.
func (r *Run) Done() bool {
	return r.Status != "running"
}
