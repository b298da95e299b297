package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/nahin/boardsync/internal/apperror"
)

// newTestStore opens an in-memory database so tests touch no real files.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New(:memory:): %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetMissingKey(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "nope")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "token", "abc.def.ghi"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "token")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "abc.def.ghi" {
		t.Errorf("Get = %q, want %q", got, "abc.def.ghi")
	}
}

func TestSetOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "gameStates", `{"u1":{}}`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "gameStates", `{"u1":{"42":{"isLiked":true}}}`); err != nil {
		t.Fatalf("Set (second): %v", err)
	}

	got, err := s.Get(ctx, "gameStates")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != `{"u1":{"42":{"isLiked":true}}}` {
		t.Errorf("Get after overwrite = %q", got)
	}
}

func TestRemove(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "sessionId", "s-1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Remove(ctx, "sessionId"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := s.Get(ctx, "sessionId"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Get after Remove error = %v, want ErrNotFound", err)
	}

	// Removing a key that is already gone must not error.
	if err := s.Remove(ctx, "sessionId"); err != nil {
		t.Errorf("Remove(missing) = %v, want nil", err)
	}
}
