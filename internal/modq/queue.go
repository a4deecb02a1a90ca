package modq

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MaxFileSize is the largest declared upload size accepted by Submit.
const MaxFileSize int64 = 20 << 20

// AllowedExtensions are the lowercase filename suffixes accepted by Submit.
var AllowedExtensions = []string{".json", ".txt", ".csv", ".xlsx", ".xls", ".log"}

// Submission attempt results reported to the Recorder.
const (
	ResultAccepted      = "accepted"
	ResultInvalidFormat = "invalid_format"
	ResultTooLarge      = "too_large"
)

// validTransitions is the submission state machine. Both decided states are terminal.
var validTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusApproved: true,
		StatusRejected: true,
	},
}

// CanTransition reports whether a submission may move from one status to another.
func CanTransition(from, to Status) bool {
	return validTransitions[from][to]
}

// SubmissionQueue is the moderation state machine over the pending,
// approved and rejected tables. A submission id lives in exactly one table.
type SubmissionQueue interface {
	// Submit validates and enqueues a new pending submission.
	Submit(user User, filename string, size *int64, source MessageRef) (Submission, error)

	// Decide moves a pending submission into its terminal table.
	// Only the configured reviewer may decide.
	Decide(id string, outcome Outcome, actorID int64, comment string) (Submission, error)

	// ListPending returns pending submissions matching filter, oldest first.
	ListPending(filter Filter) []Submission

	// ListDecided returns decided submissions with the given outcome, newest last.
	ListDecided(outcome Outcome, filter Filter) []Submission

	// Get returns a pending submission.
	Get(id string) (Submission, bool)

	Counts() QueueCounts
	CountsFor(userID int64) QueueCounts

	// CreatedSince counts submissions in any table created at or after t.
	CreatedSince(t time.Time) int

	// Annotate sets the reviewer comment on a rejected submission.
	// It reports false when id is not in the rejected table.
	Annotate(id, comment string) bool
}

// Filter scopes a queue listing.
type Filter struct {
	userID int64
	scoped bool
}

// All matches every submission.
func All() Filter { return Filter{} }

// OwnedBy matches submissions by a single user.
func OwnedBy(userID int64) Filter { return Filter{userID: userID, scoped: true} }

func (f Filter) matches(s *Submission) bool {
	return !f.scoped || s.UserID == f.userID
}

var _ SubmissionQueue = (*Queue)(nil)
var _ Table = (*Queue)(nil)

// Queue is the in-memory SubmissionQueue. It owns the pending, approved and
// rejected tables and guards all three with one mutex so a decision moves a
// submission atomically.
type Queue struct {
	mu       sync.Mutex
	tables   map[Status]map[string]*Submission
	nextSeq  uint64
	reviewer int64
	clock    Clock
	idgen    IDGenerator
	recorder Recorder
}

// NewQueue creates an empty queue. reviewerID 0 means no reviewer is configured
// and every Decide fails with ErrUnauthorized.
func NewQueue(reviewerID int64, clock Clock, idgen IDGenerator, recorder Recorder) *Queue {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Queue{
		tables: map[Status]map[string]*Submission{
			StatusPending:  {},
			StatusApproved: {},
			StatusRejected: {},
		},
		nextSeq:  1,
		reviewer: reviewerID,
		clock:    clock,
		idgen:    idgen,
		recorder: recorder,
	}
}

// ReviewerID returns the configured reviewer, or 0.
func (q *Queue) ReviewerID() int64 { return q.reviewer }

// ValidateUpload checks the filename extension and declared size.
func ValidateUpload(filename string, size *int64) error {
	name := strings.ToLower(filename)
	ok := false
	for _, ext := range AllowedExtensions {
		if strings.HasSuffix(name, ext) {
			ok = true
			break
		}
	}
	if !ok {
		return ErrInvalidFormat
	}
	if size != nil && *size > MaxFileSize {
		return ErrTooLarge
	}
	return nil
}

func (q *Queue) Submit(user User, filename string, size *int64, source MessageRef) (Submission, error) {
	if err := ValidateUpload(filename, size); err != nil {
		switch err {
		case ErrInvalidFormat:
			q.recorder.SubmissionAttempt(ResultInvalidFormat)
		case ErrTooLarge:
			q.recorder.SubmissionAttempt(ResultTooLarge)
		}
		return Submission{}, err
	}

	q.mu.Lock()
	now := q.clock.Now()
	id := q.newIDLocked(user.ID, now)
	var sz *int64
	if size != nil {
		v := *size
		sz = &v
	}
	sub := &Submission{
		ID:        id,
		Seq:       q.nextSeq,
		UserID:    user.ID,
		Username:  user.Username,
		FullName:  user.FullName,
		Filename:  filename,
		FileSize:  sz,
		CreatedAt: now,
		Status:    StatusPending,
		Source:    source,
	}
	q.nextSeq++
	q.tables[StatusPending][id] = sub
	pending := len(q.tables[StatusPending])
	out := *sub
	q.mu.Unlock()

	q.recorder.SubmissionAttempt(ResultAccepted)
	q.recorder.PendingSize(pending)
	return out, nil
}

// idSuffixLen bounds the collision suffix so ids fit in button payloads.
const idSuffixLen = 8

// newIDLocked returns "<user>_<unix>", suffixed with a short generated token
// when that id is already present in any table.
func (q *Queue) newIDLocked(userID int64, now time.Time) string {
	id := fmt.Sprintf("%d_%d", userID, now.Unix())
	for q.existsLocked(id) {
		id = fmt.Sprintf("%d_%d_%s", userID, now.Unix(), shortToken(q.idgen.New()))
	}
	return id
}

func shortToken(tok string) string {
	tok = strings.ReplaceAll(tok, "-", "")
	if len(tok) > idSuffixLen {
		tok = tok[:idSuffixLen]
	}
	return tok
}

func (q *Queue) existsLocked(id string) bool {
	for _, t := range q.tables {
		if _, ok := t[id]; ok {
			return true
		}
	}
	return false
}

func (q *Queue) Decide(id string, outcome Outcome, actorID int64, comment string) (Submission, error) {
	if !outcome.Valid() {
		return Submission{}, fmt.Errorf("unknown outcome %q", outcome)
	}
	if q.reviewer == 0 || actorID != q.reviewer {
		return Submission{}, ErrUnauthorized
	}

	q.mu.Lock()
	sub, ok := q.tables[StatusPending][id]
	if !ok {
		q.mu.Unlock()
		return Submission{}, ErrNotFound
	}
	to := outcome.Status()
	if !CanTransition(sub.Status, to) {
		q.mu.Unlock()
		return Submission{}, fmt.Errorf("submission %s: %s -> %s: %w", id, sub.Status, to, ErrNotFound)
	}

	now := q.clock.Now()
	delete(q.tables[StatusPending], id)
	sub.Status = to
	sub.DecisionTime = &now
	sub.AdminComment = comment
	sub.ReviewerID = actorID
	q.tables[to][id] = sub
	pending := len(q.tables[StatusPending])
	out := *sub
	q.mu.Unlock()

	q.recorder.Decision(outcome)
	q.recorder.PendingSize(pending)
	return out, nil
}

func (q *Queue) ListPending(filter Filter) []Submission {
	q.mu.Lock()
	out := collect(q.tables[StatusPending], filter)
	q.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (q *Queue) ListDecided(outcome Outcome, filter Filter) []Submission {
	q.mu.Lock()
	out := collect(q.tables[outcome.Status()], filter)
	q.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].DecisionTime, out[j].DecisionTime
		if a != nil && b != nil && !a.Equal(*b) {
			return a.Before(*b)
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

func collect(table map[string]*Submission, filter Filter) []Submission {
	out := make([]Submission, 0, len(table))
	for _, s := range table {
		if filter.matches(s) {
			out = append(out, *s)
		}
	}
	return out
}

func (q *Queue) Get(id string) (Submission, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	s, ok := q.tables[StatusPending][id]
	if !ok {
		return Submission{}, false
	}
	return *s, true
}

// Find looks id up in every table.
func (q *Queue) Find(id string) (Submission, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, t := range q.tables {
		if s, ok := t[id]; ok {
			return *s, true
		}
	}
	return Submission{}, false
}

func (q *Queue) Counts() QueueCounts {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueCounts{
		Pending:  len(q.tables[StatusPending]),
		Approved: len(q.tables[StatusApproved]),
		Rejected: len(q.tables[StatusRejected]),
	}
}

func (q *Queue) CountsFor(userID int64) QueueCounts {
	q.mu.Lock()
	defer q.mu.Unlock()
	count := func(t map[string]*Submission) int {
		n := 0
		for _, s := range t {
			if s.UserID == userID {
				n++
			}
		}
		return n
	}
	return QueueCounts{
		Pending:  count(q.tables[StatusPending]),
		Approved: count(q.tables[StatusApproved]),
		Rejected: count(q.tables[StatusRejected]),
	}
}

// CreatedSince counts submissions in any table created at or after t.
func (q *Queue) CreatedSince(t time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, table := range q.tables {
		for _, s := range table {
			if !s.CreatedAt.Before(t) {
				n++
			}
		}
	}
	return n
}

func (q *Queue) Annotate(id, comment string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	s, ok := q.tables[StatusRejected][id]
	if !ok {
		return false
	}
	s.AdminComment = comment
	return true
}

var tableStatus = map[string]Status{
	TablePending:  StatusPending,
	TableApproved: StatusApproved,
	TableRejected: StatusRejected,
}

// TableNames implements Table.
func (q *Queue) TableNames() []string {
	return []string{TablePending, TableApproved, TableRejected}
}

// Snapshot encodes a single table.
func (q *Queue) Snapshot(table string) ([]byte, error) {
	status, ok := tableStatus[table]
	if !ok {
		return nil, fmt.Errorf("queue does not own table %q", table)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return json.Marshal(q.tables[status])
}

// SnapshotAll implements Table. All three tables are encoded in one critical
// section, so a submission never appears in two of them.
func (q *Queue) SnapshotAll() (map[string][]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make(map[string][]byte, len(tableStatus))
	for table, status := range tableStatus {
		data, err := json.Marshal(q.tables[status])
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", table, err)
		}
		out[table] = data
	}
	return out, nil
}

// Restore implements Table. The table's contents are replaced and each record's
// status is forced to match the table it was loaded from.
func (q *Queue) Restore(table string, data []byte) error {
	status, ok := tableStatus[table]
	if !ok {
		return fmt.Errorf("queue does not own table %q", table)
	}
	subs := make(map[string]*Submission)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &subs); err != nil {
			return fmt.Errorf("decoding %s: %w", table, err)
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	var unsequenced []*Submission
	for id, s := range subs {
		if s == nil {
			delete(subs, id)
			continue
		}
		s.ID = id
		s.Status = status
		if s.Seq == 0 {
			unsequenced = append(unsequenced, s)
		}
	}
	// A decided record wins over a stale pending copy of the same id.
	if status == StatusPending {
		for id := range subs {
			if q.decidedLocked(id) {
				delete(subs, id)
			}
		}
	} else {
		for id := range subs {
			delete(q.tables[StatusPending], id)
		}
	}
	q.tables[status] = subs

	var max uint64
	for _, t := range q.tables {
		for _, s := range t {
			if s.Seq > max {
				max = s.Seq
			}
		}
	}
	q.nextSeq = max + 1

	sort.Slice(unsequenced, func(i, j int) bool {
		if !unsequenced[i].CreatedAt.Equal(unsequenced[j].CreatedAt) {
			return unsequenced[i].CreatedAt.Before(unsequenced[j].CreatedAt)
		}
		return unsequenced[i].ID < unsequenced[j].ID
	})
	for _, s := range unsequenced {
		s.Seq = q.nextSeq
		q.nextSeq++
	}
	q.recorder.PendingSize(len(q.tables[StatusPending]))
	return nil
}

func (q *Queue) decidedLocked(id string) bool {
	_, approved := q.tables[StatusApproved][id]
	_, rejected := q.tables[StatusRejected][id]
	return approved || rejected
}
