package modq

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultFlushInterval is how often the Checkpointer writes the working set.
const DefaultFlushInterval = 60 * time.Second

// Table is an in-memory component that owns one or more persisted tables.
type Table interface {
	// TableNames lists the tables the component owns.
	TableNames() []string

	// SnapshotAll encodes every owned table, keyed by table name, as one
	// consistent view.
	SnapshotAll() (map[string][]byte, error)

	// Restore replaces the named table with the decoded data. nil data means empty.
	Restore(table string, data []byte) error
}

// Checkpointer moves the shared working set between memory and a Store.
type Checkpointer struct {
	store    Store
	owners   []Table
	interval time.Duration
	logger   Logger
	recorder Recorder

	mu     sync.Mutex
	status CheckpointStatus
}

// CheckpointStatus describes the most recent flush.
type CheckpointStatus struct {
	LastFlush time.Time
	Duration  time.Duration
	Err       error
}

func NewCheckpointer(store Store, owners []Table, interval time.Duration, logger Logger, recorder Recorder) *Checkpointer {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Checkpointer{
		store:    store,
		owners:   owners,
		interval: interval,
		logger:   logger,
		recorder: recorder,
	}
}

// Load restores every table from the store. A table that fails to decode is
// logged and starts empty; a store read failure aborts the load.
func (c *Checkpointer) Load(ctx context.Context) error {
	for _, owner := range c.owners {
		for _, table := range owner.TableNames() {
			data, err := c.store.Load(ctx, table)
			if err != nil {
				return &PersistenceError{Table: table, Err: err}
			}
			if err := owner.Restore(table, data); err != nil {
				c.logger.Error("table unreadable, starting empty", "table", table, "error", err)
				if err := owner.Restore(table, nil); err != nil {
					return &PersistenceError{Table: table, Err: err}
				}
				continue
			}
			c.logger.Debug("table loaded", "table", table, "bytes", len(data))
		}
	}
	return nil
}

// Flush snapshots every owner, then writes every table. Snapshots are taken
// before any Save so a mutation during a slow write cannot leave one record
// in two tables. All tables are attempted; failures are joined.
func (c *Checkpointer) Flush(ctx context.Context) error {
	start := time.Now()
	var errs []error

	snapshots := make([]map[string][]byte, len(c.owners))
	for i, owner := range c.owners {
		snap, err := owner.SnapshotAll()
		if err != nil {
			for _, table := range owner.TableNames() {
				errs = append(errs, &PersistenceError{Table: table, Err: err})
			}
			continue
		}
		snapshots[i] = snap
	}

	for i, owner := range c.owners {
		if snapshots[i] == nil {
			continue
		}
		for _, table := range owner.TableNames() {
			if err := c.store.Save(ctx, table, snapshots[i][table]); err != nil {
				errs = append(errs, &PersistenceError{Table: table, Err: err})
			}
		}
	}
	err := errors.Join(errs...)
	elapsed := time.Since(start)
	c.recorder.Checkpoint(elapsed, err)

	c.mu.Lock()
	c.status = CheckpointStatus{LastFlush: start, Duration: elapsed, Err: err}
	c.mu.Unlock()
	return err
}

// Status returns the outcome of the most recent flush. LastFlush is zero
// until the first flush runs.
func (c *Checkpointer) Status() CheckpointStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Run flushes on every interval until ctx is cancelled, then flushes once
// more and returns. The final flush is not bound by ctx.
func (c *Checkpointer) Run(ctx context.Context) {
	c.logger.Info("checkpointer started", "interval", c.interval.String())

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := c.Flush(context.WithoutCancel(ctx)); err != nil {
				c.logger.Error("final flush failed", "error", err)
			} else {
				c.logger.Info("final flush complete")
			}
			return
		case <-ticker.C:
			if err := c.Flush(ctx); err != nil {
				c.logger.Error("flush failed", "error", err)
			} else {
				c.logger.Debug("flush complete")
			}
		}
	}
}
