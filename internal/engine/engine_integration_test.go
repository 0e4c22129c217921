package engine_test

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/moryhq/mory/internal/engine"
	"github.com/moryhq/mory/internal/store"
)

func newTestEngine(t *testing.T) (*engine.Engine, *store.DB) {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	eng := engine.New(engine.Options{
		Storage: db,
		Logger:  log.New(io.Discard, "", 0),
	})
	return eng, db
}

func ingestPreference(t *testing.T, eng *engine.Engine, value string) engine.IngestResult {
	t.Helper()
	result, err := eng.Ingest(context.Background(), engine.IngestInput{
		UserID: "u1",
		Memory: map[string]any{
			"path":       "mory://user_preference/language",
			"type":       "user_preference",
			"subject":    "language",
			"value":      value,
			"confidence": 0.9,
		},
		Source: "chat",
	})
	if err != nil {
		t.Fatalf("ingest %q: %v", value, err)
	}
	return result
}

func TestEngine_IngestLifecycle(t *testing.T) {
	eng, db := newTestEngine(t)
	ctx := context.Background()

	// First write inserts version 1.
	first := ingestPreference(t, eng, "answers in German")
	if first.Action != engine.ActionInsert {
		t.Fatalf("first ingest should insert, got %s (%s)", first.Action, first.Reason)
	}

	// The identical value again is a duplicate skip.
	dup := ingestPreference(t, eng, "Answers  in German")
	if dup.Action != engine.ActionSkip {
		t.Fatalf("duplicate should skip, got %s (%s)", dup.Action, dup.Reason)
	}

	// A changed value under the overwrite policy bumps the version.
	updated := ingestPreference(t, eng, "answers in French")
	if updated.Action != engine.ActionUpdate {
		t.Fatalf("changed value should update, got %s (%s)", updated.Action, updated.Reason)
	}

	active, err := db.ReadByPath(ctx, "u1", "mory://user_preference/language", false)
	if err != nil {
		t.Fatalf("read active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("exactly one active snapshot expected, got %d", len(active))
	}
	if active[0].Value != "answers in French" || active[0].Version != 2 {
		t.Errorf("active snapshot %q v%d, want the French value at v2", active[0].Value, active[0].Version)
	}
	if active[0].Supersedes != first.ID {
		t.Errorf("new snapshot should supersede %s, got %s", first.ID, active[0].Supersedes)
	}

	all, err := db.ReadByPath(ctx, "u1", "mory://user_preference/language", true)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("history should keep both versions, got %d", len(all))
	}

	snap := eng.MetricsSnapshot()
	if snap.WritesInserted != 1 || snap.WritesUpdated != 1 || snap.WritesSkipped != 1 {
		t.Errorf("counters insert=%d update=%d skip=%d, want 1/1/1",
			snap.WritesInserted, snap.WritesUpdated, snap.WritesSkipped)
	}
	if snap.DuplicateSkips != 1 {
		t.Errorf("duplicate skips %d, want 1", snap.DuplicateSkips)
	}
}

func TestEngine_IngestValidationFailure(t *testing.T) {
	eng, _ := newTestEngine(t)
	result, err := eng.Ingest(context.Background(), engine.IngestInput{
		UserID: "u1",
		Memory: map[string]any{"path": "mory://user_fact/name"},
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.Action != engine.ActionSkip || len(result.Issues) == 0 {
		t.Errorf("invalid memory should skip with issues, got %+v", result)
	}
}

func TestEngine_Commit(t *testing.T) {
	eng, _ := newTestEngine(t)
	result, err := eng.Commit(context.Background(), engine.CommitInput{
		UserID: "u1",
		Payload: engine.ExtractionPayload{Memories: []map[string]any{
			{"path": "mory://user_fact/name", "value": "calls themselves Sam", "confidence": 0.9},
			{"path": "mory://user_fact/location"}, // missing value
		}},
		Dialogue: "a short dialogue turn about names",
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if result.Accepted != 1 {
		t.Errorf("accepted %d, want 1", result.Accepted)
	}
	if result.Errors != 1 || len(result.Issues) != 1 {
		t.Errorf("invalid entry should surface as an issue: %+v", result)
	}
	if snap := eng.MetricsSnapshot(); snap.TokenCost == 0 {
		t.Error("commit with dialogue should charge token cost")
	}
}

func TestEngine_RetrieveAfterIngest(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	ingestPreference(t, eng, "answers in German")
	result, err := eng.Retrieve(ctx, "u1", "what is my preference for replies", engine.RetrieveOptions{})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if result.Plan.Intent != engine.IntentProfile {
		t.Errorf("intent %s, want profile", result.Plan.Intent)
	}
	if len(result.Hits) == 0 {
		t.Error("preference should be retrievable")
	}

	snap := eng.MetricsSnapshot()
	if snap.RetrievalRequests != 1 || snap.RetrievalHits != 1 {
		t.Errorf("retrieval counters requests=%d hits=%d, want 1/1", snap.RetrievalRequests, snap.RetrievalHits)
	}
}

func TestEngine_ReadByPathTouchesAccess(t *testing.T) {
	eng, db := newTestEngine(t)
	ctx := context.Background()

	ingestPreference(t, eng, "answers in German")
	rows, err := eng.ReadByPath(ctx, "u1", "mory://user_preference/language")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("want 1 row, got %d", len(rows))
	}

	got, err := db.ReadByID(ctx, "u1", rows[0].ID)
	if err != nil {
		t.Fatalf("read by id: %v", err)
	}
	if got.AccessCount != 1 || got.LastAccessedAt == "" {
		t.Errorf("access touch missing: count=%d lastAccessed=%q", got.AccessCount, got.LastAccessedAt)
	}
}

func TestEngine_ForgetArchivesOverflow(t *testing.T) {
	eng, db := newTestEngine(t)
	ctx := context.Background()

	stale := time.Now().UTC().Add(-400 * 24 * time.Hour).Format(time.RFC3339)
	for _, n := range []*engine.PersistedMemoryNode{
		{UserID: "u1", Path: "mory://event/2025-07-01.old", MemoryType: "event", Subject: "old", Value: "old note one", Confidence: 0.2, Importance: 0.1, Version: 1, UpdatedAt: stale, CreatedAt: stale},
		{UserID: "u1", Path: "mory://event/2025-07-02.old", MemoryType: "event", Subject: "old", Value: "old note two", Confidence: 0.2, Importance: 0.1, Version: 1, UpdatedAt: stale, CreatedAt: stale},
		{UserID: "u1", Path: "mory://user_fact/name", MemoryType: "user_fact", Subject: "name", Value: "calls themselves Sam", Confidence: 0.9, Importance: 0.9, AccessCount: 10, Version: 1},
	} {
		if err := db.Insert(ctx, n); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	plan, err := eng.Forget(ctx, "u1", engine.ForgettingPolicy{Capacity: 1})
	if err != nil {
		t.Fatalf("forget: %v", err)
	}
	if len(plan.ArchivedIDs) != 2 {
		t.Fatalf("want 2 archived, got %d", len(plan.ArchivedIDs))
	}
	if plan.Keep[0].Path != "mory://user_fact/name" {
		t.Errorf("the high-retention fact should survive, kept %s", plan.Keep[0].Path)
	}

	count, err := db.CountActive(ctx, "u1")
	if err != nil || count != 1 {
		t.Errorf("active count %d (%v), want 1", count, err)
	}
	if snap := eng.MetricsSnapshot(); snap.ArchivedCount != 2 {
		t.Errorf("archived counter %d, want 2", snap.ArchivedCount)
	}
}

func TestEngine_Consolidate(t *testing.T) {
	eng, db := newTestEngine(t)
	ctx := context.Background()

	path := "mory://event/2026-08-20.standup"
	for i, value := range []string{
		"mentioned migrating the billing service",
		"mentioned migrating the billing service again",
	} {
		node := &engine.PersistedMemoryNode{
			UserID: "u1", Path: path, MemoryType: "event", Subject: "standup",
			Value: value, Confidence: 0.5 + float64(i)*0.1, Importance: 0.5, Version: 1,
		}
		if err := db.Insert(ctx, node); err != nil {
			t.Fatalf("insert episode: %v", err)
		}
	}

	results, err := eng.Consolidate(ctx, "u1", engine.ConsolidateOptions{})
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("want 1 consolidated rule, got %d", len(results))
	}
	if results[0].Action != engine.ActionUpdate && results[0].Action != engine.ActionInsert {
		t.Errorf("rule should be written, got %s (%s)", results[0].Action, results[0].Reason)
	}
}

func TestEngine_ExpireWorkspace(t *testing.T) {
	eng, db := newTestEngine(t)
	ctx := context.Background()

	stale := time.Now().UTC().Add(-26 * time.Hour).Format(time.RFC3339)
	fresh := time.Now().UTC().Format(time.RFC3339)
	for _, n := range []*engine.PersistedMemoryNode{
		{UserID: "u1", Path: "mory://task/session.s1.state", MemoryType: "task", Subject: "state", Value: "stale scratch", Confidence: 0.7, Importance: 0.7, Version: 1, UpdatedAt: stale, CreatedAt: stale},
		{UserID: "u1", Path: "mory://task/session.s2.state", MemoryType: "task", Subject: "state", Value: "fresh scratch", Confidence: 0.7, Importance: 0.7, Version: 1, UpdatedAt: fresh, CreatedAt: fresh},
	} {
		if err := db.Insert(ctx, n); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	archived, err := eng.ExpireWorkspace(ctx, "u1", 24)
	if err != nil {
		t.Fatalf("expire workspace: %v", err)
	}
	if archived != 1 {
		t.Errorf("want 1 expired record, got %d", archived)
	}

	rows, err := db.ReadByPath(ctx, "u1", "mory://task/session.s2.state", false)
	if err != nil || len(rows) != 1 {
		t.Errorf("fresh workspace record should survive: %d rows (%v)", len(rows), err)
	}
}
