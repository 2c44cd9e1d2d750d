package repository

import (
	"context"
	"testing"

	"github.com/gustavoprado11/carvao-app-sub000/models"
)

func TestConversationCacheReplaceAllAndLoad(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteConversationCacheRepo(db.Conn)
	ctx := context.Background()

	t10 := mustTime(t, "2026-03-10T10:00:00Z")
	t11 := mustTime(t, "2026-03-10T11:00:00Z")

	first := []models.Conversation{
		{ID: "conv-1", OtherPartyEmail: "siderurgica@example.com", Status: "ativa", LastMessageBody: "x", LastMessageAt: t10},
		{ID: "conv-2", OtherPartyEmail: "usina@example.com", Status: "ativa", LastMessageBody: "y", LastMessageAt: t11},
	}
	if err := repo.ReplaceAll(ctx, "user@example.com", first); err != nil {
		t.Fatalf("ReplaceAll() error = %v", err)
	}

	convs, err := repo.Load(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("Load() returned %d conversations, want 2", len(convs))
	}

	// O snapshot novo troca o cache inteiro — conv-2 saiu da lista.
	second := []models.Conversation{
		{ID: "conv-1", OtherPartyEmail: "siderurgica@example.com", Status: "encerrada", LastMessageBody: "z", LastMessageAt: t11},
	}
	if err := repo.ReplaceAll(ctx, "user@example.com", second); err != nil {
		t.Fatalf("ReplaceAll() error = %v", err)
	}

	convs, err = repo.Load(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("Load() after replace returned %d conversations, want 1", len(convs))
	}
	if convs[0].Status != "encerrada" || !convs[0].LastMessageAt.Equal(t11) {
		t.Fatalf("Load() = %+v", convs[0])
	}
}

func TestConversationCacheIsolatedPerUser(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteConversationCacheRepo(db.Conn)
	ctx := context.Background()

	t10 := mustTime(t, "2026-03-10T10:00:00Z")
	if err := repo.ReplaceAll(ctx, "a@example.com", []models.Conversation{
		{ID: "conv-1", LastMessageAt: t10},
	}); err != nil {
		t.Fatalf("ReplaceAll() error = %v", err)
	}

	// Substituir o cache de b não pode tocar o de a.
	if err := repo.ReplaceAll(ctx, "b@example.com", nil); err != nil {
		t.Fatalf("ReplaceAll() error = %v", err)
	}

	convs, err := repo.Load(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("Load() returned %d conversations, want 1", len(convs))
	}
}

func TestConversationCacheLoadSkipsCorruptedTimestamps(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteConversationCacheRepo(db.Conn)
	ctx := context.Background()

	if _, err := db.Conn.Exec(`
		INSERT INTO conversation_cache
			(user_key, conversation_id, other_party_email, status, preview_enc, last_activity_at, fetched_at)
		VALUES ('user@example.com', 'conv-bad', 'x@example.com', 'ativa', '', 'garbage', CURRENT_TIMESTAMP)`); err != nil {
		t.Fatalf("failed to insert corrupted row: %v", err)
	}

	convs, err := repo.Load(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(convs) != 0 {
		t.Fatalf("Load() returned %d conversations, want 0 (corrupted row skipped)", len(convs))
	}
}
