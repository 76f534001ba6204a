package handlers

import (
	"net/http"

	"github.com/chromabot/referee/internal/engine"
	"github.com/chromabot/referee/pkg/database"
	"github.com/chromabot/referee/pkg/utils"

	"github.com/gorilla/mux"
)

// WorldHandler exposes read-only world and player status endpoints.
type WorldHandler struct {
	db       *database.Database
	reporter *engine.Reporter
}

// NewWorldHandler создает новый обработчик состояния мира.
func NewWorldHandler(db *database.Database, reporter *engine.Reporter) *WorldHandler {
	return &WorldHandler{db: db, reporter: reporter}
}

// GetWorldStatus handles GET /api/v1/world.
func (h *WorldHandler) GetWorldStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.reporter.WorldStatusReport(r.Context(), h.db.GetConnection(), 0)
	if err != nil {
		utils.WriteInternalError(w, "Failed to load world status")
		return
	}
	utils.WriteSuccess(w, status)
}

// GetPlayerStatus handles GET /api/v1/players/{name}.
func (h *WorldHandler) GetPlayerStatus(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	player, err := h.reporter.PlayerStatusReport(r.Context(), h.db.GetConnection(), name)
	if err != nil {
		utils.WriteNotFound(w, "Player not found")
		return
	}
	utils.WriteSuccess(w, player)
}

// RegisterRoutes registers world-status routes on router.
func (h *WorldHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/world", h.GetWorldStatus).Methods("GET")
	api.HandleFunc("/players/{name}", h.GetPlayerStatus).Methods("GET")
}
