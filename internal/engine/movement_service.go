package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chromabot/referee/internal/config"
	"github.com/chromabot/referee/internal/world"
	"github.com/chromabot/referee/pkg/logger"
)

// MovementService предоставляет методы для планирования и применения
// движения игроков по графу регионов.
type MovementService struct {
	store  *world.Store
	logger *logger.Logger
}

// NewMovementService создает новый сервис движения.
func NewMovementService(store *world.Store, log *logger.Logger) *MovementService {
	return &MovementService{store: store, logger: log}
}

// Hop is one leg of a requested move: a destination region and, for the
// final hop only, an optional target sector.
type Hop struct {
	RegionID   int64
	DestSector int
	HasSector  bool
}

// Move validates and schedules (or immediately applies) a movement order
// chain for player, per spec §4.3.
func (s *MovementService) Move(ctx context.Context, tx *sql.Tx, now Clock, p *world.Player, count int, path []Hop, perHopDelay time.Duration, cfg config.GameConfig) error {
	existing, err := s.store.OrdersForPlayer(ctx, tx, p.ID)
	if err != nil {
		return fmt.Errorf("load existing orders: %w", err)
	}
	if len(existing) > 0 {
		return &InProgressError{Other: "existing movement"}
	}

	root, err := s.store.OpenRootSkirmishForPlayer(ctx, tx, p.ID)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("check active skirmish: %w", err)
	}
	if root != nil {
		return &InProgressError{Other: "skirmish"}
	}

	if count == -1 {
		count = p.AvailableLoyalists()
	}
	if count > p.Loyalists {
		return &InsufficientError{Requested: count, Available: p.Loyalists, OfWhat: "loyalists"}
	}

	if len(path) == 0 {
		return fmt.Errorf("move requires at least one destination")
	}
	last := path[len(path)-1]
	if last.HasSector && (last.DestSector < 0 || last.DestSector >= cfg.NumSectors) {
		return &NoSuchSectorError{Sector: last.DestSector, NumSectors: cfg.NumSectors}
	}

	regions := make([]*world.Region, 0, len(path)+1)
	cur, err := s.store.GetRegionByID(ctx, tx, p.RegionID)
	if err != nil {
		return fmt.Errorf("load current region: %w", err)
	}
	regions = append(regions, cur)
	for _, hop := range path {
		next, err := s.store.GetRegionByID(ctx, tx, hop.RegionID)
		if err != nil {
			return fmt.Errorf("load hop region: %w", err)
		}
		if next.ID != cur.ID && !cur.HasBorder(next.ID) {
			return &NonAdjacentError{Source: cur.Name, Dest: next.Name}
		}
		policy := world.TraversalPolicy{Team: p.Team, TraverseNeutrals: cfg.TraversableNeutrals}
		if !policy.Enterable(next, s.hasActiveBattle(ctx, tx, next.ID)) {
			return &TeamError{What: next.Name, Friendly: false}
		}
		regions = append(regions, next)
		cur = next
	}

	intraSector := len(path) == 1 && path[0].RegionID == p.RegionID
	destSector := p.Sector
	if last.HasSector {
		destSector = last.DestSector
	}

	if perHopDelay == 0 && len(path) == 1 && !intraSector {
		p.RegionID = path[0].RegionID
		p.Sector = destSector
		p.Defectable = false
		return s.store.SavePlayer(ctx, tx, p)
	}

	now0 := now.Now()
	if intraSector {
		order := &world.MarchingOrder{
			PlayerID:    p.ID,
			SourceID:    p.RegionID,
			DestID:      p.RegionID,
			DestSector:  destSector,
			ArrivalTime: now0.Add(cfg.IntrasectorTravel),
			Sequence:    0,
		}
		if err := s.store.InsertMarchingOrder(ctx, tx, order); err != nil {
			return fmt.Errorf("insert intrasector order: %w", err)
		}
		p.Defectable = false
		return s.store.SavePlayer(ctx, tx, p)
	}

	cumulative := now0
	for i, hop := range path {
		dest := regions[i+1]
		delay := time.Duration(float64(perHopDelay) * dest.TravelMultiplier)
		cumulative = cumulative.Add(delay)
		sector := p.Sector
		if i == len(path)-1 && hop.HasSector {
			sector = hop.DestSector
		}
		order := &world.MarchingOrder{
			PlayerID:    p.ID,
			SourceID:    regions[i].ID,
			DestID:      dest.ID,
			DestSector:  sector,
			ArrivalTime: cumulative,
			Sequence:    i,
		}
		if err := s.store.InsertMarchingOrder(ctx, tx, order); err != nil {
			return fmt.Errorf("insert marching order: %w", err)
		}
	}

	p.Defectable = false
	return s.store.SavePlayer(ctx, tx, p)
}

// Cancel deletes every pending order for player; they stay where they are.
func (s *MovementService) Cancel(ctx context.Context, tx *sql.Tx, p *world.Player) error {
	return s.store.DeleteOrdersForPlayer(ctx, tx, p.ID)
}

// Extract evacuates player to their team's capital, provided they are not
// engaged in an open skirmish.
func (s *MovementService) Extract(ctx context.Context, tx *sql.Tx, p *world.Player) error {
	root, err := s.store.OpenRootSkirmishForPlayer(ctx, tx, p.ID)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("check active skirmish: %w", err)
	}
	if root != nil {
		return &InProgressError{Other: "skirmish"}
	}

	if err := s.store.DeleteOrdersForPlayer(ctx, tx, p.ID); err != nil {
		return fmt.Errorf("clear orders: %w", err)
	}

	capital, err := s.store.CapitalFor(ctx, tx, p.Team)
	if err != nil {
		return fmt.Errorf("find capital: %w", err)
	}
	p.RegionID = capital.ID
	p.Sector = 0
	return s.store.SavePlayer(ctx, tx, p)
}

// TickArrivals applies every due head order: teleports the player if the
// chain is still valid, or cancels the whole remaining chain otherwise.
func (s *MovementService) TickArrivals(ctx context.Context, tx *sql.Tx, now Clock, cfg config.GameConfig) error {
	due, err := s.store.DueHeadOrders(ctx, tx, now.Now())
	if err != nil {
		return fmt.Errorf("load due orders: %w", err)
	}

	for _, order := range due {
		player, err := s.store.LockPlayerByID(ctx, tx, order.PlayerID)
		if err != nil {
			return fmt.Errorf("lock arriving player: %w", err)
		}

		dest, err := s.store.GetRegionByID(ctx, tx, order.DestID)
		if err != nil {
			return fmt.Errorf("load destination region: %w", err)
		}

		policy := world.TraversalPolicy{Team: player.Team, TraverseNeutrals: cfg.TraversableNeutrals}
		valid := player.RegionID == order.SourceID && policy.Enterable(dest, s.hasActiveBattle(ctx, tx, dest.ID))

		if valid {
			player.RegionID = order.DestID
			player.Sector = order.DestSector
			if err := s.store.SavePlayer(ctx, tx, player); err != nil {
				return fmt.Errorf("save arrived player: %w", err)
			}
			if err := s.store.DeleteMarchingOrder(ctx, tx, order.ID); err != nil {
				return fmt.Errorf("delete consumed order: %w", err)
			}
			if err := s.store.PromoteChain(ctx, tx, player.ID); err != nil {
				return fmt.Errorf("promote chain: %w", err)
			}
		} else {
			if err := s.store.DeleteOrdersForPlayer(ctx, tx, player.ID); err != nil {
				return fmt.Errorf("cancel invalidated chain: %w", err)
			}
			s.logger.Warn("marching order invalidated on arrival", "player_id", player.ID, "order_id", order.ID)
		}
	}
	return nil
}

func (s *MovementService) hasActiveBattle(ctx context.Context, tx *sql.Tx, regionID int64) bool {
	b, err := s.store.GetBattleByRegion(ctx, tx, regionID)
	return err == nil && b != nil
}
