package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
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

func TestLogAndGetByID(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	entry := Entry{
		ID:      "test-1",
		Actor:   "admin",
		Surface: "staff",
		Action:  ActionTownImport,
		Target:  "user@example.com",
		Summary: "imported town.pb (3145728 bytes)",
	}
	if err := store.Log(ctx, entry); err != nil {
		t.Fatalf("Log: %v", err)
	}

	got, err := store.GetByID(ctx, "test-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Action != ActionTownImport {
		t.Errorf("Action = %q, want %q", got.Action, ActionTownImport)
	}
	if got.Target != "user@example.com" {
		t.Errorf("Target = %q", got.Target)
	}
	if got.Outcome != OutcomeOK {
		t.Errorf("Outcome = %q, want default %q", got.Outcome, OutcomeOK)
	}
	if got.Timestamp.IsZero() {
		t.Error("Timestamp not parsed")
	}
}

func TestRecordOutcomes(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	errCancelled := errors.New("cancelled by user")

	store.Record(ctx, Entry{Action: ActionTownDelete, Target: "a@b.com"}, nil, errCancelled)
	store.Record(ctx, Entry{Action: ActionTownDelete, Target: "c@d.com"}, errCancelled, errCancelled)
	store.Record(ctx, Entry{Action: ActionTownDelete, Target: "e@f.com"}, errors.New("town not found"), errCancelled)

	cases := map[string]Outcome{
		"a@b.com": OutcomeOK,
		"c@d.com": OutcomeCancelled,
		"e@f.com": OutcomeFailed,
	}
	for target, want := range cases {
		entries, err := store.Query(ctx, QueryFilter{Target: target})
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("%s: got %d entries", target, len(entries))
		}
		if entries[0].Outcome != want {
			t.Errorf("%s: outcome = %q, want %q", target, entries[0].Outcome, want)
		}
	}

	failed, _ := store.Query(ctx, QueryFilter{Outcome: OutcomeFailed})
	if len(failed) != 1 || failed[0].Error != "town not found" {
		t.Errorf("failed entries = %+v", failed)
	}
}

func TestRecordNilStore(t *testing.T) {
	var store *Store
	// Must not panic: components run without an audit log in tests.
	store.Record(context.Background(), Entry{Action: ActionBackup}, nil)
}

func TestQueryNewestFirstWithLimit(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for _, target := range []string{"first", "second", "third"} {
		if err := store.Log(ctx, Entry{Action: ActionEventSet, Target: target}); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	entries, err := store.Query(ctx, QueryFilter{Action: ActionEventSet, Limit: 2})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Target != "third" || entries[1].Target != "second" {
		t.Errorf("order = %s, %s", entries[0].Target, entries[1].Target)
	}
}

func TestDeleteBefore(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.Log(ctx, Entry{Action: ActionBackup}); err != nil {
		t.Fatal(err)
	}
	n, err := store.DeleteBefore(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}
}

func TestQueryEndpoint(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	_ = store.Log(ctx, Entry{ID: "e1", Action: ActionUserDelete, Target: "a@b.com"})

	r := chi.NewRouter()
	RegisterRoutes(r, store)

	req := httptest.NewRequest(http.MethodGet, "/panel/api/audit/?action=user_delete", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var entries []Entry
	if err := json.NewDecoder(w.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "e1" {
		t.Errorf("entries = %+v", entries)
	}

	req = httptest.NewRequest(http.MethodGet, "/panel/api/audit/missing", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing id status = %d, want 404", w.Code)
	}
}
