package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gustavoprado11/carvao-app-sub000/pkg"
	"github.com/gustavoprado11/carvao-app-sub000/services"
	"github.com/gustavoprado11/carvao-app-sub000/ws"
)

// SessionHandler, ciclo de vida da sessão de rastreio via HTTP.
// O caminho normal é o WebSocket (primeira conexão abre a sessão), mas o
// portal consegue operar só com estes endpoints.
type SessionHandler struct {
	tracker services.TrackerService
}

// NewSessionHandler, constructor.
func NewSessionHandler(tracker services.TrackerService) *SessionHandler {
	return &SessionHandler{tracker: tracker}
}

// Open godoc
// POST /api/session
// Abre a sessão de rastreio do usuário do token. Idempotente.
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(w, r)
	if !ok {
		return
	}

	h.tracker.Login(r.Context(), claims.Email, claims.Role)

	pkg.JSON(w, http.StatusOK, map[string]string{"message": "session opened"})
}

// Close godoc
// DELETE /api/session
// Encerra a sessão (logout): derruba o feed e zera o badge.
// Sem sessão aberta responde 409 (ErrNoSession).
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(w, r)
	if !ok {
		return
	}

	if err := h.tracker.Logout(claims.Email); err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]string{"message": "session closed"})
}

// appStateRequest, body do POST /api/session/app-state.
type appStateRequest struct {
	State string `json:"state"`
}

// SetAppState godoc
// POST /api/session/app-state
// Alterna a sessão entre primeiro e segundo plano.
func (h *SessionHandler) SetAppState(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(w, r)
	if !ok {
		return
	}

	var req appStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.State {
	case ws.AppStateForeground, ws.AppStateBackground:
	default:
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "state must be foreground or background")
		return
	}

	h.tracker.SetAppState(claims.Email, req.State)

	pkg.JSON(w, http.StatusOK, map[string]string{"message": "app state updated"})
}
