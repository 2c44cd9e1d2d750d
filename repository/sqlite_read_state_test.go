package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/gustavoprado11/carvao-app-sub000/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), database.EmbeddedMigrations)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("failed to parse time %q: %v", value, err)
	}
	return parsed
}

func TestReadStateUpsertAndLoad(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteReadStateRepo(db.Conn)
	ctx := context.Background()

	t10 := mustTime(t, "2026-03-10T10:00:00Z")
	t11 := mustTime(t, "2026-03-10T11:00:00Z")

	if err := repo.Upsert(ctx, "user@example.com", "conv-1", t10); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := repo.Upsert(ctx, "user@example.com", "conv-2", t11); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	reads, err := repo.Load(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(reads) != 2 {
		t.Fatalf("Load() returned %d marks, want 2", len(reads))
	}
	if !reads["conv-1"].Equal(t10) || !reads["conv-2"].Equal(t11) {
		t.Fatalf("Load() = %v", reads)
	}

	// Usuário sem marcas: mapa vazio, sem erro.
	empty, err := repo.Load(ctx, "nobody@example.com")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("Load() for unknown user returned %d marks, want 0", len(empty))
	}
}

func TestReadStateUpsertNeverRegresses(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteReadStateRepo(db.Conn)
	ctx := context.Background()

	t10 := mustTime(t, "2026-03-10T10:00:00Z")
	t12 := mustTime(t, "2026-03-10T12:00:00Z")

	if err := repo.Upsert(ctx, "user@example.com", "conv-1", t12); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	// Escrita atrasada com timestamp mais antigo: a linha não muda.
	if err := repo.Upsert(ctx, "user@example.com", "conv-1", t10); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	reads, err := repo.Load(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reads["conv-1"].Equal(t12) {
		t.Fatalf("read mark regressed to %v, want %v", reads["conv-1"], t12)
	}

	// Timestamp igual também é aceito (idempotência).
	if err := repo.Upsert(ctx, "user@example.com", "conv-1", t12); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
}

func TestReadStateLoadSkipsCorruptedTimestamps(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteReadStateRepo(db.Conn)
	ctx := context.Background()

	t10 := mustTime(t, "2026-03-10T10:00:00Z")
	if err := repo.Upsert(ctx, "user@example.com", "conv-good", t10); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	// Linha corrompida inserida direto, fora do repo.
	if _, err := db.Conn.Exec(`
		INSERT INTO conversation_reads (user_key, conversation_id, last_read_at, updated_at)
		VALUES ('user@example.com', 'conv-bad', 'garbage', CURRENT_TIMESTAMP)`); err != nil {
		t.Fatalf("failed to insert corrupted row: %v", err)
	}

	reads, err := repo.Load(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(reads) != 1 {
		t.Fatalf("Load() returned %d marks, want 1 (corrupted row skipped)", len(reads))
	}
	if _, exists := reads["conv-bad"]; exists {
		t.Fatal("corrupted row leaked into the read state map")
	}
}

func TestReadStateIsolatedPerUser(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteReadStateRepo(db.Conn)
	ctx := context.Background()

	t10 := mustTime(t, "2026-03-10T10:00:00Z")
	if err := repo.Upsert(ctx, "a@example.com", "conv-1", t10); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := repo.Upsert(ctx, "b@example.com", "conv-1", t10.Add(time.Hour)); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	readsA, err := repo.Load(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !readsA["conv-1"].Equal(t10) {
		t.Fatalf("user a read mark = %v, want %v", readsA["conv-1"], t10)
	}
}
