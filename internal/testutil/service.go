package testutil

import (
	"modq/internal/bot"
	"modq/internal/modq"
)

// TestReviewerID is the reviewer configured by NewTestService.
const TestReviewerID int64 = 1000

// TestEnv bundles a Service with the in-memory components behind it.
type TestEnv struct {
	Service  *bot.Service
	Registry *modq.Registry
	Ledger   *modq.Ledger
	Queue    *modq.Queue
	Channel  *RecordingChannel
	Clock    *StubClock
}

// NewTestService wires a Service over fresh in-memory components, a
// RecordingChannel and a FixedClock. reviewerID 0 configures no reviewer.
func NewTestService(reviewerID int64) *TestEnv {
	clock := FixedClock()
	ch := NewRecordingChannel()
	ledger := modq.NewLedger(clock, nil)
	registry := modq.NewRegistry(clock, ledger)
	queue := modq.NewQueue(reviewerID, clock, NewStubIDGenerator(), nil)
	notifier := bot.NewNotifier(ch, reviewerID, nil, nil)
	svc := bot.NewService(registry, ledger, queue, notifier, ch, clock, nil, bot.Options{ReviewerID: reviewerID})
	return &TestEnv{
		Service:  svc,
		Registry: registry,
		Ledger:   ledger,
		Queue:    queue,
		Channel:  ch,
		Clock:    clock,
	}
}

// User returns an actor whose private chat id equals its user id.
func User(id int64, username string) modq.Actor {
	return modq.Actor{ID: id, Username: username, FullName: username, ChatID: id}
}
