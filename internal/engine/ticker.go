package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chromabot/referee/internal/config"
	"github.com/chromabot/referee/internal/forum"
	"github.com/chromabot/referee/internal/world"
	"github.com/chromabot/referee/pkg/logger"
)

// Ticker drives the world forward in four ordered phases, each inside its
// own transaction, per §4.6.
type Ticker struct {
	store      *world.Store
	pathfinder *world.Pathfinder
	movement   *MovementService
	battle     *BattleService
	recruiter  *RecruitmentService
	host       forum.Host
	logger     *logger.Logger
	clock      Clock
	rng        Rand
	cfg        config.GameConfig
}

// NewTicker создает тикер мира поверх переданных сервисов.
func NewTicker(store *world.Store, pathfinder *world.Pathfinder, movement *MovementService, battle *BattleService, recruiter *RecruitmentService, host forum.Host, log *logger.Logger, clock Clock, rng Rand, cfg config.GameConfig) *Ticker {
	return &Ticker{
		store:      store,
		pathfinder: pathfinder,
		movement:   movement,
		battle:     battle,
		recruiter:  recruiter,
		host:       host,
		logger:     log,
		clock:      clock,
		rng:        rng,
		cfg:        cfg,
	}
}

// Tick runs the four phases in order: arrivals, eternal-region battle
// spawning, battle lifecycle transitions, and buff expiration.
func (t *Ticker) Tick(ctx context.Context, db *sql.DB) error {
	if err := t.withTx(ctx, db, "arrivals", t.phaseArrivals); err != nil {
		return err
	}
	if err := t.withTx(ctx, db, "eternal battles", t.phaseEternalBattles); err != nil {
		return err
	}
	if err := t.withTx(ctx, db, "battle lifecycle", t.phaseBattleLifecycle); err != nil {
		return err
	}
	if err := t.withTx(ctx, db, "buff expiration", t.phaseBuffExpiration); err != nil {
		return err
	}
	return nil
}

func (t *Ticker) withTx(ctx context.Context, db *sql.DB, label string, fn func(context.Context, *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s tx: %w", label, err)
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("tick phase %s: %w", label, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s tx: %w", label, err)
	}
	return nil
}

func (t *Ticker) phaseArrivals(ctx context.Context, tx *sql.Tx) error {
	return t.movement.TickArrivals(ctx, tx, t.clock, t.cfg)
}

// phaseEternalBattles opens a fresh Invade-equivalent battle over any
// eternal region not currently hosting one, so contested eternal regions
// never fall idle between conflicts.
func (t *Ticker) phaseEternalBattles(ctx context.Context, tx *sql.Tx) error {
	regions, err := t.store.ListEternalRegionsWithoutBattle(ctx, tx)
	if err != nil {
		return fmt.Errorf("list eternal regions: %w", err)
	}
	now := t.clock.Now()
	for _, region := range regions {
		battle := &world.Battle{
			RegionID:      region.ID,
			BeginsAt:      now,
			DisplayEndsAt: now.Add(t.cfg.BattleTime),
			EndsAt:        now.Add(t.cfg.BattleTime),
			Victor:        world.TeamNone,
		}
		if err := t.store.CreateBattle(ctx, tx, battle); err != nil {
			return fmt.Errorf("spawn eternal battle: %w", err)
		}
	}
	return nil
}

func (t *Ticker) phaseBattleLifecycle(ctx context.Context, tx *sql.Tx) error {
	battles, err := t.store.ListBattles(ctx, tx)
	if err != nil {
		return fmt.Errorf("list battles: %w", err)
	}
	now := t.clock.Now()
	for _, battle := range battles {
		if battle.SubmissionID == "" && !now.Before(battle.BeginsAt) {
			if err := t.openBattle(ctx, tx, battle); err != nil {
				return fmt.Errorf("open battle %d: %w", battle.ID, err)
			}
		}
		if err := t.battle.ExpireSkirmishes(ctx, tx, t.clock, battle); err != nil {
			return fmt.Errorf("expire skirmishes for battle %d: %w", battle.ID, err)
		}
		if battle.State(now) == world.BattleResolved {
			if err := t.battle.ResolveBattle(ctx, tx, t.clock, battle, t.pathfinder, t.cfg); err != nil {
				return fmt.Errorf("resolve battle %d: %w", battle.ID, err)
			}
		}
	}
	return nil
}

// openBattle performs the Scheduled→Open transition (§4.6 phase 3): assigns
// the battle a forum thread and recomputes display_ends_at/ends_at from
// begins_at, now that the thread actually exists.
func (t *Ticker) openBattle(ctx context.Context, tx *sql.Tx, battle *world.Battle) error {
	region, err := t.store.GetRegionByID(ctx, tx, battle.RegionID)
	if err != nil {
		return fmt.Errorf("load battle region: %w", err)
	}

	threadID, err := t.host.SubmitPost(ctx, fmt.Sprintf("Battle for %s", region.SRName), "")
	if err != nil {
		return fmt.Errorf("submit battle thread: %w", err)
	}
	if threadID == "" {
		// No forum driver wired (NullHost, or one returning no id): fall
		// back to a synthetic thread id so the battle can still open.
		threadID = fmt.Sprintf("battle-%d", battle.ID)
	}

	lockout := time.Duration(battle.LockoutSeconds) * time.Second
	jitter := time.Duration(0)
	if lockout > 0 {
		jitter = time.Duration(t.rng.Intn(int(lockout)))
	}

	battle.SubmissionID = threadID
	battle.DisplayEndsAt = battle.BeginsAt.Add(t.cfg.BattleTime)
	battle.EndsAt = battle.DisplayEndsAt.Add(jitter - lockout/2)

	return t.store.SaveBattle(ctx, tx, battle)
}

func (t *Ticker) phaseBuffExpiration(ctx context.Context, tx *sql.Tx) error {
	_, err := t.store.DeleteExpiredBuffs(ctx, tx, t.clock.Now())
	return err
}

// Run starts a background loop that calls Tick every interval until ctx is
// canceled. Intended to be started once from cmd/referee.
func (t *Ticker) Run(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.Tick(ctx, db); err != nil {
				t.logger.Error("world tick failed", "error", err)
			}
		}
	}
}
