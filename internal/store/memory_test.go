package store

import (
	"context"
	"sort"
	"testing"

	"modq/internal/modq"
)

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, NewMemoryStore())
}

func TestMemoryStore_CopiesData(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	data := []byte("abc")
	s.Save(ctx, modq.TableUsers, data)
	data[0] = 'X'

	got, _ := s.Load(ctx, modq.TableUsers)
	if string(got) != "abc" {
		t.Errorf("stored blob changed with caller slice: %q", got)
	}

	got[1] = 'Y'
	again, _ := s.Load(ctx, modq.TableUsers)
	if string(again) != "abc" {
		t.Errorf("stored blob changed with loaded slice: %q", again)
	}
}

func TestMemoryStore_Tables(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Save(ctx, modq.TablePending, nil)
	s.Save(ctx, modq.TableUsers, nil)

	got := s.Tables()
	sort.Strings(got)
	if len(got) != 2 || got[0] != modq.TablePending || got[1] != modq.TableUsers {
		t.Errorf("Tables() = %v", got)
	}
}
