// Package handlers, os endpoints HTTP do daemon.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gustavoprado11/carvao-app-sub000/models"
	"github.com/gustavoprado11/carvao-app-sub000/pkg"
	"github.com/gustavoprado11/carvao-app-sub000/services"
)

// contextKey, tipo próprio para as chaves de context — string crua pode
// colidir com outros pacotes.
type contextKey string

// ClaimsContextKey, claims do token colocados pelo AuthMiddleware.
const ClaimsContextKey contextKey = "claims"

// claimsFromContext extrai os claims do request. Falta deles é bug de
// wiring (rota sem o middleware), respondida como 401.
func claimsFromContext(w http.ResponseWriter, r *http.Request) (*models.TokenClaims, bool) {
	claims, ok := r.Context().Value(ClaimsContextKey).(*models.TokenClaims)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return nil, false
	}
	return claims, true
}

// ConversationHandler, endpoints de conversas e leitura.
type ConversationHandler struct {
	conversations services.ConversationService
	tracker       services.TrackerService
}

// NewConversationHandler, constructor.
func NewConversationHandler(conversations services.ConversationService, tracker services.TrackerService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, tracker: tracker}
}

// List godoc
// GET /api/conversations
// Lista as conversas do usuário a partir do cache local.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(w, r)
	if !ok {
		return
	}

	convs, err := h.conversations.LoadCached(r.Context(), claims.Email)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, convs)
}

// GetUnread godoc
// GET /api/conversations/unread
// Devolve o contador e o estado por conversa da sessão atual.
func (h *ConversationHandler) GetUnread(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(w, r)
	if !ok {
		return
	}

	pkg.JSON(w, http.StatusOK, h.tracker.FullState(claims.Email))
}

// markReadRequest, body opcional do POST /api/conversations/{id}/read.
// read_at ausente ou vazio: marca até a última atividade conhecida.
type markReadRequest struct {
	ReadAt string `json:"read_at"`
}

// MarkRead godoc
// POST /api/conversations/{id}/read
// Marca a conversa como lida. Idempotente.
func (h *ConversationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(w, r)
	if !ok {
		return
	}

	conversationID := r.PathValue("id")
	if conversationID == "" {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "conversation id required")
		return
	}

	var readAt time.Time
	if r.Body != nil && r.ContentLength != 0 {
		var req markReadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.ReadAt != "" {
			parsed, err := time.Parse(time.RFC3339, req.ReadAt)
			if err != nil {
				pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid read_at, expected RFC3339")
				return
			}
			readAt = parsed
		}
	}

	h.tracker.MarkRead(claims.Email, conversationID, readAt)

	pkg.JSON(w, http.StatusOK, map[string]string{"message": "marked as read"})
}

// focusRequest, body do PUT /api/conversations/focus.
type focusRequest struct {
	ConversationID string `json:"conversation_id"`
}

// SetFocus godoc
// PUT /api/conversations/focus
// Registra a conversa aberta na UI; id vazio limpa o foco.
func (h *ConversationHandler) SetFocus(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(w, r)
	if !ok {
		return
	}

	var req focusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.tracker.SetActiveConversation(claims.Email, req.ConversationID)

	pkg.JSON(w, http.StatusOK, map[string]string{"message": "focus updated"})
}
