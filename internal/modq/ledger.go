package modq

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// GrantLedger records users who discovered the hidden panel trigger.
// Grants are never revoked.
type GrantLedger interface {
	// Discover creates the grant on first use, otherwise bumps AccessCount and LastAccess.
	Discover(id int64, username, fullName string) Grant

	HasGrant(id int64) bool
	Get(id int64) (Grant, bool)
	Count() int
	Summary() LedgerSummary
}

var _ GrantLedger = (*Ledger)(nil)
var _ GrantChecker = (*Ledger)(nil)
var _ Table = (*Ledger)(nil)

// Ledger is the in-memory GrantLedger. It owns the secret_admins table.
type Ledger struct {
	mu       sync.Mutex
	grants   map[int64]*Grant
	clock    Clock
	recorder Recorder
}

func NewLedger(clock Clock, recorder Recorder) *Ledger {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Ledger{
		grants:   make(map[int64]*Grant),
		clock:    clock,
		recorder: recorder,
	}
}

func (l *Ledger) Discover(id int64, username, fullName string) Grant {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	g, ok := l.grants[id]
	if !ok {
		g = &Grant{
			UserID:       id,
			Username:     username,
			FullName:     fullName,
			DiscoveredAt: now,
			LastAccess:   now,
			AccessCount:  1,
		}
		l.grants[id] = g
		l.recorder.SecretDiscovery()
		return *g
	}

	g.AccessCount++
	g.LastAccess = now
	return *g
}

func (l *Ledger) HasGrant(id int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.grants[id]
	return ok
}

func (l *Ledger) Get(id int64) (Grant, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.grants[id]
	if !ok {
		return Grant{}, false
	}
	return *g, true
}

func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.grants)
}

// Summary aggregates the ledger. On an empty ledger both time fields are nil.
func (l *Ledger) Summary() LedgerSummary {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := LedgerSummary{Count: len(l.grants)}
	for _, g := range l.grants {
		if s.EarliestDiscovery == nil || g.DiscoveredAt.Before(*s.EarliestDiscovery) {
			t := g.DiscoveredAt
			s.EarliestDiscovery = &t
		}
		if s.LatestAccess == nil || g.LastAccess.After(*s.LatestAccess) {
			t := g.LastAccess
			s.LatestAccess = &t
		}
	}
	return s
}

// Holders returns every grant, in discovery order.
func (l *Ledger) Holders() []Grant {
	l.mu.Lock()
	out := make([]Grant, 0, len(l.grants))
	for _, g := range l.grants {
		out = append(out, *g)
	}
	l.mu.Unlock()

	sortGrants(out)
	return out
}

func sortGrants(gs []Grant) {
	sort.Slice(gs, func(i, j int) bool {
		if !gs[i].DiscoveredAt.Equal(gs[j].DiscoveredAt) {
			return gs[i].DiscoveredAt.Before(gs[j].DiscoveredAt)
		}
		return gs[i].UserID < gs[j].UserID
	})
}

// TableNames implements Table.
func (l *Ledger) TableNames() []string { return []string{TableSecretAdmins} }

// SnapshotAll implements Table.
func (l *Ledger) SnapshotAll() (map[string][]byte, error) {
	data, err := l.Snapshot(TableSecretAdmins)
	if err != nil {
		return nil, err
	}
	return map[string][]byte{TableSecretAdmins: data}, nil
}

// Snapshot encodes the named table.
func (l *Ledger) Snapshot(table string) ([]byte, error) {
	if table != TableSecretAdmins {
		return nil, fmt.Errorf("ledger does not own table %q", table)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return json.Marshal(l.grants)
}

// Restore implements Table. The current contents are replaced.
func (l *Ledger) Restore(table string, data []byte) error {
	if table != TableSecretAdmins {
		return fmt.Errorf("ledger does not own table %q", table)
	}
	grants := make(map[int64]*Grant)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &grants); err != nil {
			return fmt.Errorf("decoding secret admins: %w", err)
		}
	}
	for id, g := range grants {
		if g == nil {
			delete(grants, id)
		}
	}
	l.mu.Lock()
	l.grants = grants
	l.mu.Unlock()
	return nil
}
