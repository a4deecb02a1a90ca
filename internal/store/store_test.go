package store

import (
	"bytes"
	"context"
	"testing"

	"modq/internal/modq"
)

// testStoreContract exercises the behavior every modq.Store must share.
func testStoreContract(t *testing.T, s modq.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing table loads nil", func(t *testing.T) {
		got, err := s.Load(ctx, "never_saved")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got != nil {
			t.Errorf("Load() = %q, want nil", got)
		}
	})

	t.Run("save then load", func(t *testing.T) {
		want := []byte(`{"42":{"id":42,"username":"alice"}}`)
		if err := s.Save(ctx, modq.TableUsers, want); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		got, err := s.Load(ctx, modq.TableUsers)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Load() = %q, want %q", got, want)
		}
	})

	t.Run("save replaces", func(t *testing.T) {
		if err := s.Save(ctx, modq.TablePending, []byte("v1")); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if err := s.Save(ctx, modq.TablePending, []byte("v2")); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		got, _ := s.Load(ctx, modq.TablePending)
		if string(got) != "v2" {
			t.Errorf("Load() = %q, want %q", got, "v2")
		}
	})

	t.Run("empty blob", func(t *testing.T) {
		if err := s.Save(ctx, modq.TableRejected, []byte{}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		got, err := s.Load(ctx, modq.TableRejected)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("Load() = %q, want empty", got)
		}
	})
}
