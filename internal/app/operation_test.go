package app

import (
	"errors"
	"testing"
	"time"
)

func TestNewRun(t *testing.T) {
	start := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	r := NewRun("serve", start)

	if r.ID != "20240115T103000Z" {
		t.Errorf("ID = %q, want %q", r.ID, "20240115T103000Z")
	}
	if r.Command != "serve" {
		t.Errorf("Command = %q, want %q", r.Command, "serve")
	}
	if r.Done() {
		t.Error("new run should not be done")
	}
}

func TestRun_Finish(t *testing.T) {
	start := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	t.Run("success", func(t *testing.T) {
		r := NewRun("queue", start)
		d := r.Finish(start.Add(2*time.Second), nil)

		if d != 2*time.Second {
			t.Errorf("duration = %v, want 2s", d)
		}
		if r.Status != "success" || !r.Done() {
			t.Errorf("Status = %q, Done = %v", r.Status, r.Done())
		}
	})

	t.Run("first error wins", func(t *testing.T) {
		r := NewRun("serve", start)
		first := errors.New("port in use")
		r.Finish(start, first)
		r.Finish(start, errors.New("later"))
		r.Finish(start, nil)

		if r.Status != "error" || !errors.Is(r.Err, first) {
			t.Errorf("Status = %q, Err = %v", r.Status, r.Err)
		}
	})
}
