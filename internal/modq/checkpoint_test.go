package modq_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"modq/internal/modq"
	"modq/internal/testutil"
)

type mapStore struct {
	mu     sync.Mutex
	tables map[string][]byte
	saves  int
	err    error

	// afterSave runs once a table is written, outside the lock.
	afterSave func(table string)
}

func newMapStore() *mapStore { return &mapStore{tables: make(map[string][]byte)} }

func (s *mapStore) Load(_ context.Context, table string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tables[table], nil
}

func (s *mapStore) Save(_ context.Context, table string, data []byte) error {
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return s.err
	}
	s.saves++
	s.tables[table] = data
	hook := s.afterSave
	s.mu.Unlock()

	if hook != nil {
		hook(table)
	}
	return nil
}

func (s *mapStore) Close() error { return nil }

func (s *mapStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

type workingSet struct {
	registry *modq.Registry
	ledger   *modq.Ledger
	queue    *modq.Queue
}

func newWorkingSet() workingSet {
	clock := testutil.FixedClock()
	ledger := modq.NewLedger(clock, nil)
	return workingSet{
		registry: modq.NewRegistry(clock, ledger),
		ledger:   ledger,
		queue:    modq.NewQueue(reviewer, clock, testutil.NewStubIDGenerator(), nil),
	}
}

func (w workingSet) owners() []modq.Table {
	return []modq.Table{w.registry, w.queue, w.ledger}
}

func TestCheckpointer_FlushAndLoad(t *testing.T) {
	store := newMapStore()
	ws := newWorkingSet()
	ws.registry.Ensure(1, "a", "A")
	ws.ledger.Discover(1, "a", "A")
	sub := submit(t, ws.queue, 1, "a.json")

	cp := modq.NewCheckpointer(store, ws.owners(), time.Minute, nil, nil)
	if err := cp.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if got := store.saveCount(); got != len(modq.Tables) {
		t.Errorf("saves = %d, want %d", got, len(modq.Tables))
	}

	fresh := newWorkingSet()
	if err := modq.NewCheckpointer(store, fresh.owners(), time.Minute, nil, nil).Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if fresh.registry.Count() != 1 || !fresh.ledger.HasGrant(1) {
		t.Error("registry or ledger not restored")
	}
	if _, ok := fresh.queue.Get(sub.ID); !ok {
		t.Error("pending submission not restored")
	}
}

func TestCheckpointer_LoadCorruptTable(t *testing.T) {
	store := newMapStore()
	store.tables[modq.TableUsers] = []byte("garbage")
	ws := newWorkingSet()
	ws.registry.Ensure(9, "z", "Z")

	cp := modq.NewCheckpointer(store, ws.owners(), time.Minute, nil, nil)
	if err := cp.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if ws.registry.Count() != 0 {
		t.Errorf("corrupt users table should load empty, got %d users", ws.registry.Count())
	}
}

func TestCheckpointer_FlushError(t *testing.T) {
	store := newMapStore()
	store.err = errors.New("disk full")
	ws := newWorkingSet()

	err := modq.NewCheckpointer(store, ws.owners(), time.Minute, nil, nil).Flush(context.Background())
	var perr *modq.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("Flush() error = %v, want PersistenceError", err)
	}
	if !errors.Is(err, store.err) {
		t.Error("PersistenceError does not unwrap to the store error")
	}
}

func TestCheckpointer_RunFlushesOnCancel(t *testing.T) {
	store := newMapStore()
	ws := newWorkingSet()
	cp := modq.NewCheckpointer(store, ws.owners(), time.Hour, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cp.Run(ctx)
		close(done)
	}()

	ws.registry.Ensure(4, "d", "D")
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if store.saveCount() != len(modq.Tables) {
		t.Errorf("saves = %d, want one final flush of %d tables", store.saveCount(), len(modq.Tables))
	}
	if len(store.tables[modq.TableUsers]) == 0 {
		t.Error("users table not written by final flush")
	}
}

func TestCheckpointer_RunFlushesOnInterval(t *testing.T) {
	store := newMapStore()
	ws := newWorkingSet()
	cp := modq.NewCheckpointer(store, ws.owners(), 10*time.Millisecond, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cp.Run(ctx)

	deadline := time.Now().Add(5 * time.Second)
	for store.saveCount() < 2*len(modq.Tables) {
		if time.Now().After(deadline) {
			t.Fatalf("only %d saves after 5s", store.saveCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCheckpointer_Status(t *testing.T) {
	store := newMapStore()
	cp := modq.NewCheckpointer(store, newWorkingSet().owners(), time.Minute, nil, nil)

	if st := cp.Status(); !st.LastFlush.IsZero() || st.Err != nil {
		t.Fatalf("Status() before flush = %+v, want zero", st)
	}

	if err := cp.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if st := cp.Status(); st.LastFlush.IsZero() || st.Err != nil {
		t.Errorf("Status() after flush = %+v, want a successful flush", st)
	}

	store.err = errors.New("read-only filesystem")
	cp.Flush(context.Background())
	if st := cp.Status(); !errors.Is(st.Err, store.err) {
		t.Errorf("Status().Err = %v, want %v", st.Err, store.err)
	}
}

func TestCheckpointer_FlushIsConsistentAcrossTables(t *testing.T) {
	store := newMapStore()
	ws := newWorkingSet()
	sub := submit(t, ws.queue, 7, "a.json")

	decided := false
	store.afterSave = func(table string) {
		if table != modq.TablePending || decided {
			return
		}
		decided = true
		if _, err := ws.queue.Decide(sub.ID, modq.OutcomeApprove, reviewer, ""); err != nil {
			t.Errorf("Decide() during flush error = %v", err)
		}
	}

	cp := modq.NewCheckpointer(store, ws.owners(), time.Minute, nil, nil)
	if err := cp.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if !decided {
		t.Fatal("decision hook did not run")
	}

	reload := func() workingSet {
		t.Helper()
		fresh := newWorkingSet()
		if err := modq.NewCheckpointer(store, fresh.owners(), time.Minute, nil, nil).Load(context.Background()); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		return fresh
	}

	if c := reload().queue.Counts(); c.Total() != 1 {
		t.Errorf("after concurrent decide, reloaded Counts() = %+v, want the submission in exactly one table", c)
	}

	if err := cp.Flush(context.Background()); err != nil {
		t.Fatalf("second Flush() error = %v", err)
	}
	fresh := reload()
	if c := fresh.queue.Counts(); c.Pending != 0 || c.Approved != 1 {
		t.Errorf("after second flush, reloaded Counts() = %+v, want one approved", c)
	}
	if _, err := fresh.queue.Decide(sub.ID, modq.OutcomeReject, reviewer, ""); !errors.Is(err, modq.ErrNotFound) {
		t.Errorf("reloaded Decide() error = %v, want ErrNotFound", err)
	}
}
