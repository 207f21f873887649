package storage

import (
	"context"
	"path/filepath"
	"testing"

	"smartcash/internal/core"
)

func testRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "smartcash.db"), nil)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSessionRoundTrip(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	rec := SessionRecord{
		User:      core.User{ID: 1, Name: "Ana", Email: "ana@example.com"},
		IssuedAt:  1_700_000_000_000,
		ExpiresAt: 1_700_000_180_000,
	}
	if err := repo.SaveSession(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := repo.LoadSession(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil {
		t.Fatal("expected a record")
	}
	if *got != rec {
		t.Fatalf("round trip mismatch: got %+v, want %+v", *got, rec)
	}
}

func TestLoadSessionAbsent(t *testing.T) {
	repo := testRepo(t)

	got, err := repo.LoadSession(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for absent record, got %+v", got)
	}
}

func TestSaveSessionReplaces(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	first := SessionRecord{User: core.User{ID: 1, Name: "Ana"}, IssuedAt: 100, ExpiresAt: 200}
	second := SessionRecord{User: core.User{ID: 2, Name: "Bruno"}, IssuedAt: 300, ExpiresAt: 400}
	if err := repo.SaveSession(ctx, first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := repo.SaveSession(ctx, second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	got, err := repo.LoadSession(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil || got.User.ID != 2 {
		t.Fatalf("expected second record, got %+v", got)
	}
}

func TestDeleteSessionIdempotent(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	if err := repo.DeleteSession(ctx); err != nil {
		t.Fatalf("delete on empty store: %v", err)
	}

	rec := SessionRecord{User: core.User{ID: 1}, IssuedAt: 100, ExpiresAt: 200}
	if err := repo.SaveSession(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.DeleteSession(ctx); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteSession(ctx); err != nil {
		t.Fatalf("second delete: %v", err)
	}

	got, err := repo.LoadSession(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil after delete, got %+v", got)
	}
}

func TestLoadSessionCorruptUserJSON(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO session (key, user_json, issued_at_ms, expires_at_ms) VALUES (?, ?, ?, ?)`,
		sessionKey, "{not json", int64(100), int64(200))
	if err != nil {
		t.Fatalf("seed corrupt row: %v", err)
	}

	got, err := repo.LoadSession(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != nil {
		t.Fatalf("corrupt record must read as no session, got %+v", got)
	}

	// The corrupt row is cleared as a side effect.
	var count int
	if err := repo.db.QueryRow(`SELECT COUNT(*) FROM session`).Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected corrupt row deleted, %d rows remain", count)
	}
}
