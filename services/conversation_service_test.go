package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gustavoprado11/carvao-app-sub000/models"
	"github.com/gustavoprado11/carvao-app-sub000/pkg/crypto"
)

type fakeConversationRepo struct {
	mu     sync.Mutex
	stored map[string][]models.Conversation
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{stored: make(map[string][]models.Conversation)}
}

func (f *fakeConversationRepo) Load(_ context.Context, userKey string) ([]models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stored[userKey], nil
}

func (f *fakeConversationRepo) ReplaceAll(_ context.Context, userKey string, convs []models.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored[userKey] = convs
	return nil
}

func testPreviewKey(t *testing.T) []byte {
	t.Helper()
	salt, err := crypto.NewSalt()
	if err != nil {
		t.Fatalf("failed to create salt: %v", err)
	}
	key, err := crypto.DeriveKey("test-passphrase", salt)
	if err != nil {
		t.Fatalf("failed to derive key: %v", err)
	}
	return key
}

func TestRefreshFetchesValidatesAndCaches(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("apikey"); got != "service-key" {
			t.Errorf("apikey header = %q, want service-key", got)
		}
		if got := r.URL.Query().Get("user"); got != "carvoaria@example.com" {
			t.Errorf("user query = %q", got)
		}
		if got := r.URL.Query().Get("role"); got != models.RoleSupplier {
			t.Errorf("role query = %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		// conv-bad tem timestamp inválido e deve ser descartada.
		w.Write([]byte(`[
			{"id": "conv-1", "other_party_email": "siderurgica@example.com", "status": "ativa",
			 "last_message_body": "fechamos 30 toneladas?", "last_message_at": "2026-03-10T10:00:00Z"},
			{"id": "conv-bad", "other_party_email": "outra@example.com", "status": "ativa",
			 "last_message_body": "oi", "last_message_at": "not-a-timestamp"},
			{"id": "conv-2", "other_party_email": "usina@example.com", "status": "ativa",
			 "last_message_body": "", "last_message_at": ""}
		]`))
	}))
	defer backend.Close()

	repo := newFakeConversationRepo()
	key := testPreviewKey(t)
	svc := NewConversationService(repo, backend.URL, "service-key", 0, key)
	defer svc.Close()

	convs, err := svc.Refresh(context.Background(), "carvoaria@example.com", models.RoleSupplier)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if len(convs) != 2 {
		t.Fatalf("Refresh() returned %d conversations, want 2 (bad timestamp skipped)", len(convs))
	}
	if convs[0].LastMessageBody != "fechamos 30 toneladas?" {
		t.Fatalf("Refresh() preview = %q, want plaintext", convs[0].LastMessageBody)
	}

	// No cache local o preview fica cifrado.
	repo.mu.Lock()
	stored := repo.stored["carvoaria@example.com"]
	repo.mu.Unlock()
	if len(stored) != 2 {
		t.Fatalf("cached %d conversations, want 2", len(stored))
	}
	if stored[0].LastMessageBody == "fechamos 30 toneladas?" {
		t.Fatal("cached preview is plaintext, want ciphertext")
	}
	plain, err := crypto.Decrypt(stored[0].LastMessageBody, key)
	if err != nil || plain != "fechamos 30 toneladas?" {
		t.Fatalf("cached preview did not decrypt: %q, %v", plain, err)
	}
}

func TestRefreshPropagatesBackendFailure(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer backend.Close()

	svc := NewConversationService(newFakeConversationRepo(), backend.URL, "service-key", 0, nil)
	defer svc.Close()

	if _, err := svc.Refresh(context.Background(), "carvoaria@example.com", models.RoleSupplier); err == nil {
		t.Fatal("Refresh() error = nil, want error on 500")
	}
}

func TestLoadCachedDecryptsPreviews(t *testing.T) {
	repo := newFakeConversationRepo()
	key := testPreviewKey(t)

	enc, err := crypto.Encrypt("proposta enviada", key)
	if err != nil {
		t.Fatalf("failed to encrypt: %v", err)
	}
	repo.stored["carvoaria@example.com"] = []models.Conversation{
		{ID: "conv-1", LastMessageBody: enc},
	}

	svc := NewConversationService(repo, "http://unused", "service-key", 0, key)
	defer svc.Close()

	convs, err := svc.LoadCached(context.Background(), "carvoaria@example.com")
	if err != nil {
		t.Fatalf("LoadCached() error = %v", err)
	}
	if len(convs) != 1 || convs[0].LastMessageBody != "proposta enviada" {
		t.Fatalf("LoadCached() = %+v, want decrypted preview", convs)
	}
}

func TestLoadCachedSurvivesUndecryptablePreview(t *testing.T) {
	repo := newFakeConversationRepo()
	repo.stored["carvoaria@example.com"] = []models.Conversation{
		{ID: "conv-1", LastMessageBody: "not-valid-ciphertext"},
	}

	svc := NewConversationService(repo, "http://unused", "service-key", 0, testPreviewKey(t))
	defer svc.Close()

	convs, err := svc.LoadCached(context.Background(), "carvoaria@example.com")
	if err != nil {
		t.Fatalf("LoadCached() error = %v", err)
	}
	if len(convs) != 1 || convs[0].LastMessageBody != "" {
		t.Fatalf("LoadCached() = %+v, want conversation with empty preview", convs)
	}
}
