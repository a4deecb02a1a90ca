package render

import (
	"fmt"
	"html"
	"time"

	"modq/internal/modq"
)

// TimeLayout is the timestamp format shown in messages.
const TimeLayout = "2006-01-02 15:04:05"

// esc escapes user-controlled text for HTML parse mode.
func esc(s string) string { return html.EscapeString(s) }

func handle(username string) string {
	if username == "" {
		return "(no username)"
	}
	return "@" + esc(username)
}

// KB formats a size in kibibytes with one decimal.
func KB(size *int64) string {
	if size == nil {
		return "0.0 KB"
	}
	return fmt.Sprintf("%.1f KB", float64(*size)/1024)
}

// Ago formats an elapsed duration as "N min" or "H h M min".
func Ago(d time.Duration) string {
	minutes := int(d / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	return fmt.Sprintf("%d h %d min", minutes/60, minutes%60)
}

func stamp(t *time.Time, none string) string {
	if t == nil {
		return none
	}
	return t.Format(TimeLayout)
}

// ShortID returns the first eight characters of a submission id.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func decisionTime(s modq.Submission) string {
	if s.DecisionTime != nil {
		return s.DecisionTime.Format(TimeLayout)
	}
	return s.CreatedAt.Format(TimeLayout)
}
