package handlers

import (
	"net/http"

	"github.com/gustavoprado11/carvao-app-sub000/pkg"
	"github.com/gustavoprado11/carvao-app-sub000/ws"
)

// HealthHandler, liveness do daemon. Sem auth: usado pelo supervisor.
type HealthHandler struct {
	hub ws.EventPublisher
}

// NewHealthHandler, constructor.
func NewHealthHandler(hub ws.EventPublisher) *HealthHandler {
	return &HealthHandler{hub: hub}
}

// Check godoc
// GET /api/health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	pkg.JSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"online_users": len(h.hub.GetOnlineUserKeys()),
	})
}
