package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/chromabot/referee/internal/world"
	"github.com/chromabot/referee/pkg/logger"
	"github.com/chromabot/referee/pkg/redis"
)

// WorldStatus is the rendered snapshot handed to forum posts and the HTTP
// world endpoint.
type WorldStatus struct {
	TickSeq int64          `json:"tick_seq"`
	Regions []RegionStatus `json:"regions"`
}

// RegionStatus summarizes one region's ownership and battle state for the
// world-status view.
type RegionStatus struct {
	Name      string `json:"name"`
	Owner     int    `json:"owner"`
	HasBattle bool   `json:"has_battle"`
}

// SkirmishSummary renders one resolved skirmish tree for posting back to
// the battle thread.
type SkirmishSummary struct {
	SkirmishID int64  `json:"skirmish_id"`
	Victor     int    `json:"victor"`
	Margin     int    `json:"margin"`
	Unopposed  bool   `json:"unopposed"`
	VP         int    `json:"vp"`
	Children   []SkirmishSummary `json:"children,omitempty"`
}

// Reporter renders world and skirmish state, caching the world view in
// Redis between ticks so repeated "lands status" queries don't round-trip
// Postgres.
type Reporter struct {
	store  *world.Store
	redis  *redis.Client
	logger *logger.Logger
}

// NewReporter создает репортер состояния мира.
func NewReporter(store *world.Store, redisClient *redis.Client, log *logger.Logger) *Reporter {
	return &Reporter{store: store, redis: redisClient, logger: log}
}

// WorldStatusReport returns the current world status, serving from the
// Redis cache for tickSeq when present.
func (r *Reporter) WorldStatusReport(ctx context.Context, db *sql.DB, tickSeq int64) (*WorldStatus, error) {
	q := db
	if cached, err := r.redis.GetWorldSnapshot(tickSeq); err == nil && cached != "" {
		status := &WorldStatus{}
		if err := json.Unmarshal([]byte(cached), status); err == nil {
			return status, nil
		}
	}

	regions, err := r.store.ListRegions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	battles, err := r.store.ListBattles(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list battles: %w", err)
	}
	hasBattle := make(map[int64]bool, len(battles))
	for _, b := range battles {
		hasBattle[b.RegionID] = true
	}

	status := &WorldStatus{TickSeq: tickSeq}
	for _, reg := range regions {
		status.Regions = append(status.Regions, RegionStatus{
			Name:      reg.Name,
			Owner:     int(reg.Owner),
			HasBattle: hasBattle[reg.ID],
		})
	}

	if data, err := json.Marshal(status); err == nil {
		if err := r.redis.SetWorldSnapshot(tickSeq, string(data), 0); err != nil {
			r.logger.Warn("failed to cache world snapshot", "error", err)
		}
	}

	return status, nil
}

// PlayerStatusReport renders a single player's status for the /players/{name} endpoint.
func (r *Reporter) PlayerStatusReport(ctx context.Context, db *sql.DB, name string) (*world.Player, error) {
	return r.store.GetPlayerByName(ctx, db, name)
}

// SkirmishTreeReport renders a resolved skirmish tree for posting back to
// the originating battle thread.
func (r *Reporter) SkirmishTreeReport(root *world.SkirmishAction) SkirmishSummary {
	summary := SkirmishSummary{
		SkirmishID: root.ID,
		Victor:     int(root.Victor),
		Margin:     root.Margin,
		Unopposed:  root.Unopposed,
		VP:         root.VP,
	}
	for _, child := range root.Children {
		summary.Children = append(summary.Children, r.SkirmishTreeReport(child))
	}
	return summary
}
