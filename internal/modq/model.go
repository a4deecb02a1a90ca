package modq

import "time"

// Status is the lifecycle state of a submission.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Outcome is a reviewer decision. It maps onto the terminal Status of the same name.
type Outcome string

const (
	OutcomeApprove Outcome = "approve"
	OutcomeReject  Outcome = "reject"
)

// Status returns the terminal status a decision moves a submission into.
func (o Outcome) Status() Status {
	if o == OutcomeApprove {
		return StatusApproved
	}
	return StatusRejected
}

// Valid reports whether o is one of the known outcomes.
func (o Outcome) Valid() bool {
	return o == OutcomeApprove || o == OutcomeReject
}

// StaleAfter is the age beyond which a pending submission is reported as stale.
// Staleness is informational; nothing expires automatically.
const StaleAfter = time.Hour

// MessageRef identifies a message on the chat channel, e.g. the upload to forward.
type MessageRef struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int   `json:"message_id"`
}

// Actor is the identity behind an inbound event.
type Actor struct {
	ID       int64
	Username string
	FullName string
	ChatID   int64

	// Message is the inbound message that carried the event. Zero for button presses.
	Message MessageRef
}

// Handle returns the display handle used in messages.
func (a Actor) Handle() string {
	if a.Username == "" {
		return "no username"
	}
	return a.Username
}

// User is a registry record for anyone who has interacted with the bot.
type User struct {
	ID               int64      `json:"id"`
	Username         string     `json:"username"`
	FullName         string     `json:"full_name"`
	JoinDate         time.Time  `json:"join_date"`
	FilesCount       int        `json:"files_count"`
	ApprovedCount    int        `json:"approved_count"`
	RejectedCount    int        `json:"rejected_count"`
	LastUpload       *time.Time `json:"last_upload,omitempty"`
	IsSecretAdmin    bool       `json:"is_secret_admin"`
	SecretAdminSince *time.Time `json:"secret_admin_since,omitempty"`
}

// Submission is one file moderation request.
type Submission struct {
	ID           string     `json:"id"`
	Seq          uint64     `json:"seq"`
	UserID       int64      `json:"user_id"`
	Username     string     `json:"username"`
	FullName     string     `json:"full_name"`
	Filename     string     `json:"filename"`
	FileSize     *int64     `json:"file_size,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	Status       Status     `json:"status"`
	AdminComment string     `json:"admin_comment,omitempty"`
	DecisionTime *time.Time `json:"decision_time,omitempty"`
	ReviewerID   int64      `json:"reviewer_id,omitempty"`
	Source       MessageRef `json:"source"`
}

// IsStale reports whether a pending submission has waited longer than StaleAfter.
func (s Submission) IsStale(now time.Time) bool {
	return s.Status == StatusPending && now.Sub(s.CreatedAt) > StaleAfter
}

// Age returns how long ago the submission was created.
func (s Submission) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}

// SizeOrZero returns the declared file size, or 0 when the channel did not report one.
func (s Submission) SizeOrZero() int64 {
	if s.FileSize == nil {
		return 0
	}
	return *s.FileSize
}

// Grant records that a user has found the hidden panel trigger.
type Grant struct {
	UserID       int64     `json:"user_id"`
	Username     string    `json:"username"`
	FullName     string    `json:"full_name"`
	DiscoveredAt time.Time `json:"discovered_at"`
	LastAccess   time.Time `json:"last_access"`
	AccessCount  int       `json:"access_count"`
}

// LedgerSummary aggregates the grant ledger for reviewer statistics.
// The time pointers are nil when the ledger is empty.
type LedgerSummary struct {
	Count             int
	EarliestDiscovery *time.Time
	LatestAccess      *time.Time
}

// QueueCounts is the number of submissions per table.
type QueueCounts struct {
	Pending  int
	Approved int
	Rejected int
}

// Total returns the number of submissions across all tables.
func (c QueueCounts) Total() int {
	return c.Pending + c.Approved + c.Rejected
}

// Processed returns the number of decided submissions.
func (c QueueCounts) Processed() int {
	return c.Approved + c.Rejected
}
