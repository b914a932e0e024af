package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/springfield-ops/townctl/internal/db"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestSetAndGet(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, KeyNucleusToken, "nt-1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, KeyNucleusToken)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "nt-1" {
		t.Errorf("Get = %q, want %q", got, "nt-1")
	}

	// Last writer wins.
	if err := s.Set(ctx, KeyNucleusToken, "nt-2"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, _ = s.Get(ctx, KeyNucleusToken)
	if got != "nt-2" {
		t.Errorf("Get after overwrite = %q, want %q", got, "nt-2")
	}
}

func TestGetMissing(t *testing.T) {
	s := setupStore(t)
	if _, err := s.Get(context.Background(), KeySession); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing: err = %v, want ErrNotFound", err)
	}
	if _, ok := s.Lookup(context.Background(), KeySession); ok {
		t.Error("Lookup missing: ok = true")
	}
}

func TestSessionExpiry(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	if err := s.SetWithTTL(ctx, KeySession, "sess", SessionTTL); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}

	s.now = func() time.Time { return base.Add(23 * time.Hour) }
	if v, ok := s.Lookup(ctx, KeySession); !ok || v != "sess" {
		t.Fatalf("before expiry: got %q ok=%v", v, ok)
	}

	s.now = func() time.Time { return base.Add(24 * time.Hour) }
	if _, err := s.Get(ctx, KeySession); !errors.Is(err, ErrNotFound) {
		t.Errorf("after expiry: err = %v, want ErrNotFound", err)
	}

	// The expired row is gone, not just hidden.
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM slots WHERE key = ?`, string(KeySession)).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expired slot rows = %d, want 0", n)
	}
}

func TestExpiryStoredAsUnixSeconds(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	if err := s.SetWithTTL(ctx, KeySession, "sess", SessionTTL); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}

	var exp int64
	if err := s.db.QueryRow(`SELECT expires_at FROM slots WHERE key = ?`, string(KeySession)).Scan(&exp); err != nil {
		t.Fatalf("scanning expires_at: %v", err)
	}
	if want := base.Add(SessionTTL).Unix(); exp != want {
		t.Errorf("expires_at = %d, want %d", exp, want)
	}

	s.now = func() time.Time { return base.Add(30 * 24 * time.Hour) }
	if v, ok := s.Lookup(ctx, KeySession); ok {
		t.Errorf("a month later: Lookup = %q, want no session", v)
	}
}

func TestSetClearsExpiry(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	if err := s.SetWithTTL(ctx, KeySession, "old", time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, KeySession, "new"); err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return base.Add(48 * time.Hour) }
	if v, ok := s.Lookup(ctx, KeySession); !ok || v != "new" {
		t.Errorf("Lookup = %q ok=%v, want new", v, ok)
	}
}

func TestPublicSessionOverwrite(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	if err := s.SavePublicSession(ctx, PublicSession{Email: "player@example.com", Token: "t1", DisplayName: "Homer"}); err != nil {
		t.Fatalf("SavePublicSession: %v", err)
	}
	if err := s.SavePublicSession(ctx, PublicSession{Email: "other@example.com", Token: "admin_view_1"}); err != nil {
		t.Fatalf("SavePublicSession: %v", err)
	}

	got, ok := s.PublicSession(ctx)
	if !ok {
		t.Fatal("PublicSession: not found")
	}
	if got.Email != "other@example.com" || got.Token != "admin_view_1" {
		t.Errorf("PublicSession = %+v", got)
	}
	if got.DisplayName != "" {
		t.Errorf("stale display name survived overwrite: %q", got.DisplayName)
	}
}

func TestClearPublicSession(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_ = s.SavePublicSession(ctx, PublicSession{Email: "a@b.com", Token: "t"})
	_ = s.Set(ctx, KeyDonuts, "500")
	_ = s.SetBool(ctx, KeyDarkMode, true)

	if err := s.ClearPublicSession(ctx); err != nil {
		t.Fatalf("ClearPublicSession: %v", err)
	}
	if _, ok := s.PublicSession(ctx); ok {
		t.Error("public session still present")
	}
	if _, ok := s.Lookup(ctx, KeyDonuts); ok {
		t.Error("cached donuts still present")
	}
	if !s.Bool(ctx, KeyDarkMode) {
		t.Error("preferences should survive logout")
	}
}
