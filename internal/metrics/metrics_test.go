package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"modq/internal/modq"
)

func TestMetrics_Recorder(t *testing.T) {
	m := New()

	m.SubmissionAttempt(modq.ResultAccepted)
	m.SubmissionAttempt(modq.ResultAccepted)
	m.SubmissionAttempt(modq.ResultTooLarge)
	m.Decision(modq.OutcomeApprove)
	m.PendingSize(3)
	m.SecretDiscovery()
	m.Notification(modq.EventSubmitted, true)
	m.Notification(modq.EventApproved, false)
	m.Checkpoint(10*time.Millisecond, nil)
	m.Checkpoint(20*time.Millisecond, errors.New("disk full"))

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"accepted submissions", testutil.ToFloat64(m.submissions.WithLabelValues(modq.ResultAccepted)), 2},
		{"too large submissions", testutil.ToFloat64(m.submissions.WithLabelValues(modq.ResultTooLarge)), 1},
		{"approvals", testutil.ToFloat64(m.decisions.WithLabelValues("approve")), 1},
		{"pending gauge", testutil.ToFloat64(m.pending), 3},
		{"discoveries", testutil.ToFloat64(m.secretDiscoveries), 1},
		{"delivered", testutil.ToFloat64(m.notifications.WithLabelValues("submitted", "ok")), 1},
		{"failed deliveries", testutil.ToFloat64(m.notifications.WithLabelValues("approved", "failed")), 1},
		{"checkpoint errors", testutil.ToFloat64(m.checkpointErrors), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	a, b := New(), New()
	a.SecretDiscovery()

	if got := testutil.ToFloat64(b.secretDiscoveries); got != 0 {
		t.Errorf("second instance saw %v discoveries, want 0", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.PendingSize(7)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "modq_pending_submissions 7") {
		t.Errorf("exposition missing pending gauge:\n%s", rec.Body.String())
	}
}

func TestMetrics_Middleware(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, path := range []string{"/items/1", "/items/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	got := testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "/items/{id}", "418"))
	if got != 2 {
		t.Errorf("requests for route = %v, want 2", got)
	}
}
