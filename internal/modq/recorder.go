package modq

import "time"

// Recorder receives operational measurements from the core.
// The prometheus-backed implementation lives in internal/metrics.
type Recorder interface {
	SubmissionAttempt(result string)
	Decision(outcome Outcome)
	PendingSize(n int)
	SecretDiscovery()
	Notification(kind EventKind, ok bool)
	Checkpoint(d time.Duration, err error)
}

// NopRecorder discards all measurements.
type NopRecorder struct{}

func (NopRecorder) SubmissionAttempt(string)        {}
func (NopRecorder) Decision(Outcome)                {}
func (NopRecorder) PendingSize(int)                 {}
func (NopRecorder) SecretDiscovery()                {}
func (NopRecorder) Notification(EventKind, bool)    {}
func (NopRecorder) Checkpoint(time.Duration, error) {}
