package modq

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so queue and ledger timestamps are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator produces the disambiguation token appended to a submission id
// when the time-based id is already taken.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }
