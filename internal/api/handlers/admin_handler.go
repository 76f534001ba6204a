package handlers

import (
	"net/http"

	"github.com/chromabot/referee/internal/engine"
	"github.com/chromabot/referee/internal/world"
	"github.com/chromabot/referee/pkg/database"
	"github.com/chromabot/referee/pkg/logger"
	"github.com/chromabot/referee/pkg/utils"

	"github.com/gorilla/mux"
)

// AdminHandler exposes operator-only world management endpoints: bootstrap
// (seed regions) and manual tick.
type AdminHandler struct {
	db     *database.Database
	store  *world.Store
	ticker *engine.Ticker
	logger *logger.Logger
}

// NewAdminHandler создает новый обработчик администрирования.
func NewAdminHandler(db *database.Database, store *world.Store, ticker *engine.Ticker, log *logger.Logger) *AdminHandler {
	return &AdminHandler{db: db, store: store, ticker: ticker, logger: log}
}

// BootstrapRegion is one entry of a POST /api/v1/admin/bootstrap payload.
type BootstrapRegion struct {
	Name             string   `json:"name"`
	Aliases          []string `json:"aliases"`
	Borders          []string `json:"borders"`
	IsCapitalOf      int      `json:"is_capital_of"`
	IsEternal        bool     `json:"is_eternal"`
	TravelMultiplier float64  `json:"travel_multiplier"`
}

// Bootstrap handles POST /api/v1/admin/bootstrap, seeding the region graph
// from a one-time JSON payload inside one transaction. A payload naming a
// region that already exists fails the insert and rolls the whole batch back.
func (h *AdminHandler) Bootstrap(w http.ResponseWriter, r *http.Request) {
	var regions []BootstrapRegion
	if err := utils.ParseJSON(r, &regions); err != nil {
		utils.WriteValidationError(w, "Invalid request format", map[string]string{"body": "Request body must be valid JSON"})
		return
	}

	tx, err := h.db.BeginTxWithContext(r.Context())
	if err != nil {
		utils.WriteInternalError(w, "Failed to begin transaction")
		return
	}

	byName := make(map[string]*world.Region, len(regions))
	for _, rr := range regions {
		region := &world.Region{
			Name:             rr.Name,
			Aliases:          rr.Aliases,
			Owner:            world.TeamNone,
			IsCapitalOf:      world.Team(rr.IsCapitalOf),
			IsEternal:        rr.IsEternal,
			TravelMultiplier: rr.TravelMultiplier,
		}
		if region.TravelMultiplier == 0 {
			region.TravelMultiplier = 1
		}
		if err := h.store.CreateRegion(r.Context(), tx, region); err != nil {
			_ = tx.Rollback()
			utils.WriteInternalError(w, "Failed to create region "+rr.Name)
			return
		}
		for _, alias := range rr.Aliases {
			if err := h.store.AddAlias(r.Context(), tx, region.ID, alias); err != nil {
				_ = tx.Rollback()
				utils.WriteInternalError(w, "Failed to add alias for "+rr.Name)
				return
			}
		}
		byName[rr.Name] = region
	}

	for _, rr := range regions {
		region := byName[rr.Name]
		for _, borderName := range rr.Borders {
			other, ok := byName[borderName]
			if !ok {
				continue
			}
			if err := h.store.AddBorder(r.Context(), tx, region.ID, other.ID); err != nil {
				_ = tx.Rollback()
				utils.WriteInternalError(w, "Failed to add border")
				return
			}
		}
	}

	if err := tx.Commit(); err != nil {
		utils.WriteInternalError(w, "Failed to commit bootstrap")
		return
	}

	utils.WriteSuccess(w, map[string]int{"regions_created": len(regions)})
}

// Tick handles POST /api/v1/admin/tick, running one world tick immediately.
func (h *AdminHandler) Tick(w http.ResponseWriter, r *http.Request) {
	if err := h.ticker.Tick(r.Context(), h.db.GetConnection()); err != nil {
		h.logger.Error("manual tick failed", "error", err)
		utils.WriteInternalError(w, "Tick failed")
		return
	}
	utils.WriteSuccess(w, map[string]string{"message": "tick completed"})
}

// RegisterRoutes registers admin routes under an already-auth-gated router.
func (h *AdminHandler) RegisterRoutes(router *mux.Router) {
	admin := router.PathPrefix("/api/v1/admin").Subrouter()
	admin.HandleFunc("/tick", h.Tick).Methods("POST")
	admin.HandleFunc("/bootstrap", h.Bootstrap).Methods("POST")
}
