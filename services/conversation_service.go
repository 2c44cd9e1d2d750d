package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/gustavoprado11/carvao-app-sub000/models"
	"github.com/gustavoprado11/carvao-app-sub000/pkg"
	"github.com/gustavoprado11/carvao-app-sub000/pkg/cache"
	"github.com/gustavoprado11/carvao-app-sub000/pkg/crypto"
	"github.com/gustavoprado11/carvao-app-sub000/repository"
)

// conversationListTTL, validade da lista de conversas no cache em memória.
// Curta de propósito: a fonte da verdade é o backend, o cache só absorve
// o F5 compulsivo das UIs.
const conversationListTTL = 30 * time.Second

// ConversationService busca as conversas do usuário no backend e mantém o
// cache local (SQLite) para partida offline.
type ConversationService interface {
	// Refresh busca a lista no backend, atualiza o cache local e devolve
	// a lista já decifrada.
	Refresh(ctx context.Context, userKey, role string) ([]models.Conversation, error)
	// LoadCached devolve a última lista conhecida, do cache em memória ou
	// do SQLite. Lista vazia sem erro quando não há nada.
	LoadCached(ctx context.Context, userKey string) ([]models.Conversation, error)
	// Invalidate descarta a entrada do cache em memória do usuário.
	Invalidate(userKey string)
	Close()
}

// conversationWire, DTO da resposta do backend. Timestamps chegam como
// string RFC3339 e são validados aqui na borda.
type conversationWire struct {
	ID              string `json:"id"`
	OtherPartyEmail string `json:"other_party_email"`
	Status          string `json:"status"`
	LastMessageBody string `json:"last_message_body"`
	LastMessageAt   string `json:"last_message_at"`
}

type conversationService struct {
	convRepo   repository.ConversationCacheRepository
	httpClient *http.Client
	apiURL     string
	serviceKey string
	previewKey []byte
	listCache  *cache.TTLCache[string, []models.Conversation]
}

// NewConversationService, constructor. previewKey é a chave AES derivada
// na subida do processo; com ela nil os previews ficam em claro no cache.
func NewConversationService(convRepo repository.ConversationCacheRepository, apiURL, serviceKey string, fetchTimeout time.Duration, previewKey []byte) ConversationService {
	return &conversationService{
		convRepo:   convRepo,
		httpClient: &http.Client{Timeout: fetchTimeout},
		apiURL:     apiURL,
		serviceKey: serviceKey,
		previewKey: previewKey,
		listCache:  cache.New[string, []models.Conversation](conversationListTTL, time.Minute),
	}
}

func (s *conversationService) Refresh(ctx context.Context, userKey, role string) ([]models.Conversation, error) {
	convs, err := s.fetchRemote(ctx, userKey, role)
	if err != nil {
		return nil, err
	}

	// Cache local para a próxima partida offline. Falha aqui não derruba
	// o refresh: a lista fresca já está na mão.
	if err := s.storeCache(ctx, userKey, convs); err != nil {
		log.Printf("[conversations] failed to cache conversations for user %s: %v", userKey, err)
	}

	s.listCache.Set(userKey, convs)
	return convs, nil
}

func (s *conversationService) LoadCached(ctx context.Context, userKey string) ([]models.Conversation, error) {
	if convs, ok := s.listCache.Get(userKey); ok {
		return convs, nil
	}

	rows, err := s.convRepo.Load(ctx, userKey)
	if err != nil {
		return nil, fmt.Errorf("%w: load conversation cache: %v", pkg.ErrInternal, err)
	}

	convs := make([]models.Conversation, 0, len(rows))
	for _, conv := range rows {
		if s.previewKey != nil && conv.LastMessageBody != "" {
			plain, err := crypto.Decrypt(conv.LastMessageBody, s.previewKey)
			if err != nil {
				// Chave trocada ou linha corrompida: segue sem preview.
				log.Printf("[conversations] failed to decrypt preview for conversation %s: %v", conv.ID, err)
				conv.LastMessageBody = ""
			} else {
				conv.LastMessageBody = plain
			}
		}
		convs = append(convs, conv)
	}

	s.listCache.Set(userKey, convs)
	return convs, nil
}

func (s *conversationService) Invalidate(userKey string) {
	s.listCache.Delete(userKey)
}

func (s *conversationService) Close() {
	s.listCache.Close()
}

// fetchRemote busca a lista no backend, descartando (e logando) as linhas
// com timestamp malformado — uma conversa podre não derruba o lote.
func (s *conversationService) fetchRemote(ctx context.Context, userKey, role string) ([]models.Conversation, error) {
	endpoint := fmt.Sprintf("%s/rest/conversations?user=%s&role=%s",
		s.apiURL, url.QueryEscape(userKey), url.QueryEscape(role))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build conversations request: %v", pkg.ErrInternal, err)
	}
	req.Header.Set("apikey", s.serviceKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch conversations: %v", pkg.ErrInternal, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: backend returned %d for conversations", pkg.ErrInternal, resp.StatusCode)
	}

	var wires []conversationWire
	if err := json.NewDecoder(resp.Body).Decode(&wires); err != nil {
		return nil, fmt.Errorf("%w: decode conversations: %v", pkg.ErrInternal, err)
	}

	convs := make([]models.Conversation, 0, len(wires))
	for _, wire := range wires {
		if wire.ID == "" {
			continue
		}

		var lastMessageAt time.Time
		if wire.LastMessageAt != "" {
			parsed, err := time.Parse(time.RFC3339, wire.LastMessageAt)
			if err != nil {
				log.Printf("[conversations] skipping conversation %s: bad last_message_at %q", wire.ID, wire.LastMessageAt)
				continue
			}
			lastMessageAt = parsed
		}

		convs = append(convs, models.Conversation{
			ID:              wire.ID,
			OtherPartyEmail: wire.OtherPartyEmail,
			Status:          wire.Status,
			LastMessageBody: wire.LastMessageBody,
			LastMessageAt:   lastMessageAt,
		})
	}

	return convs, nil
}

// storeCache grava a lista no SQLite com os previews cifrados.
func (s *conversationService) storeCache(ctx context.Context, userKey string, convs []models.Conversation) error {
	stored := make([]models.Conversation, 0, len(convs))
	for _, conv := range convs {
		if s.previewKey != nil && conv.LastMessageBody != "" {
			enc, err := crypto.Encrypt(conv.LastMessageBody, s.previewKey)
			if err != nil {
				return fmt.Errorf("encrypt preview: %w", err)
			}
			conv.LastMessageBody = enc
		}
		stored = append(stored, conv)
	}
	return s.convRepo.ReplaceAll(ctx, userKey, stored)
}

// BuildSnapshot monta o mapa id → última atividade a partir da lista de
// conversas. Conversa sem mensagem (zero time) fica fora: sem atividade,
// nada a reconciliar.
func BuildSnapshot(convs []models.Conversation) map[string]time.Time {
	snapshot := make(map[string]time.Time, len(convs))
	for _, conv := range convs {
		if conv.LastMessageAt.IsZero() {
			continue
		}
		snapshot[conv.ID] = conv.LastMessageAt
	}
	return snapshot
}
