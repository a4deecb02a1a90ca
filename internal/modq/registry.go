package modq

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// IdentityRegistry tracks every user who has interacted with the bot.
type IdentityRegistry interface {
	// Ensure returns the user with the given id, creating it on first contact.
	// Identity fields of an existing user are never overwritten.
	Ensure(id int64, username, fullName string) User

	// RecordSubmission bumps FilesCount and LastUpload. Unknown ids are ignored.
	RecordSubmission(id int64)

	// RecordDecision bumps the approved or rejected counter. Unknown ids are ignored.
	RecordDecision(id int64, outcome Outcome)

	Get(id int64) (User, bool)
	List() []User
	Count() int

	// Top returns at most n users ordered by FilesCount, highest first.
	Top(n int) []User
}

// GrantChecker is the ledger lookup the registry uses to refresh the derived
// secret-admin flag. Ledger satisfies it.
type GrantChecker interface {
	Get(id int64) (Grant, bool)
}

var _ IdentityRegistry = (*Registry)(nil)
var _ Table = (*Registry)(nil)

// Registry is the in-memory IdentityRegistry. It owns the users table.
type Registry struct {
	mu     sync.Mutex
	users  map[int64]*User
	clock  Clock
	grants GrantChecker
}

// NewRegistry creates an empty registry. grants may be nil, in which case
// the secret-admin flag is never set.
func NewRegistry(clock Clock, grants GrantChecker) *Registry {
	return &Registry{
		users:  make(map[int64]*User),
		clock:  clock,
		grants: grants,
	}
}

func (r *Registry) Ensure(id int64, username, fullName string) User {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		u = &User{
			ID:       id,
			Username: username,
			FullName: fullName,
			JoinDate: r.clock.Now(),
		}
		r.users[id] = u
	}

	if r.grants != nil {
		if g, found := r.grants.Get(id); found {
			since := g.DiscoveredAt
			u.IsSecretAdmin = true
			u.SecretAdminSince = &since
		}
	}
	return *u
}

func (r *Registry) RecordSubmission(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return
	}
	now := r.clock.Now()
	u.FilesCount++
	u.LastUpload = &now
}

func (r *Registry) RecordDecision(id int64, outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return
	}
	switch outcome {
	case OutcomeApprove:
		u.ApprovedCount++
	case OutcomeReject:
		u.RejectedCount++
	}
}

func (r *Registry) Get(id int64) (User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return User{}, false
	}
	return *u, true
}

// List returns all users ordered by join date, then id.
func (r *Registry) List() []User {
	r.mu.Lock()
	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinDate.Equal(out[j].JoinDate) {
			return out[i].JoinDate.Before(out[j].JoinDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

func (r *Registry) Top(n int) []User {
	users := r.List()
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].FilesCount > users[j].FilesCount
	})
	if n >= 0 && len(users) > n {
		users = users[:n]
	}
	return users
}

// TableNames implements Table.
func (r *Registry) TableNames() []string { return []string{TableUsers} }

// SnapshotAll implements Table.
func (r *Registry) SnapshotAll() (map[string][]byte, error) {
	data, err := r.Snapshot(TableUsers)
	if err != nil {
		return nil, err
	}
	return map[string][]byte{TableUsers: data}, nil
}

// Snapshot encodes the named table.
func (r *Registry) Snapshot(table string) ([]byte, error) {
	if table != TableUsers {
		return nil, fmt.Errorf("registry does not own table %q", table)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return json.Marshal(r.users)
}

// Restore implements Table. The current contents are replaced.
func (r *Registry) Restore(table string, data []byte) error {
	if table != TableUsers {
		return fmt.Errorf("registry does not own table %q", table)
	}
	users := make(map[int64]*User)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &users); err != nil {
			return fmt.Errorf("decoding users: %w", err)
		}
	}
	for id, u := range users {
		if u == nil {
			delete(users, id)
		}
	}
	r.mu.Lock()
	r.users = users
	r.mu.Unlock()
	return nil
}
