package handlers

import (
	"net/http"

	"github.com/chromabot/referee/pkg/database"
	"github.com/chromabot/referee/pkg/redis"
	"github.com/chromabot/referee/pkg/utils"

	"github.com/gorilla/mux"
)

// HealthHandler reports liveness of the referee process and its backing
// stores.
type HealthHandler struct {
	db    *database.Database
	redis *redis.Client
}

// NewHealthHandler создает новый обработчик проверки здоровья.
func NewHealthHandler(db *database.Database, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"database": "ok", "redis": "ok"}
	healthy := true

	if err := h.db.HealthCheck(); err != nil {
		status["database"] = "down"
		healthy = false
	}
	if err := h.redis.HealthCheck(); err != nil {
		status["redis"] = "down"
		healthy = false
	}

	if !healthy {
		utils.WriteError(w, http.StatusServiceUnavailable, "unhealthy")
		return
	}
	utils.WriteSuccess(w, status)
}

// RegisterRoutes registers the health route on router.
func (h *HealthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.Health).Methods("GET")
}
