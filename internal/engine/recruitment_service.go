package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/chromabot/referee/internal/config"
	"github.com/chromabot/referee/internal/world"
	"github.com/chromabot/referee/pkg/logger"
)

// RecruitmentService turns a new forum recruitment post into a Player row,
// per §4.7.
type RecruitmentService struct {
	store  *world.Store
	logger *logger.Logger
	rng    Rand
}

// NewRecruitmentService создает сервис набора новых игроков.
func NewRecruitmentService(store *world.Store, log *logger.Logger, rng Rand) *RecruitmentService {
	return &RecruitmentService{store: store, logger: log, rng: rng}
}

// Recruit assigns a team to name per cfg.Assignment and creates the player
// at their team's capital with the starting loyalist count.
func (s *RecruitmentService) Recruit(ctx context.Context, tx *sql.Tx, now Clock, name string, uid int64, cfg config.GameConfig) (*world.Player, error) {
	if existing, err := s.store.GetPlayerByName(ctx, tx, name); err == nil && existing != nil {
		return nil, &InProgressError{Other: "already recruited"}
	} else if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("check existing player: %w", err)
	}

	team := s.assignTeam(uid, cfg)

	capital, err := s.store.CapitalFor(ctx, tx, team)
	if err != nil {
		return nil, fmt.Errorf("find capital for %d: %w", team, err)
	}

	leader := false
	for _, leaderName := range cfg.Leaders {
		if leaderName == name {
			leader = true
			break
		}
	}

	p := &world.Player{
		Name:        name,
		Team:        team,
		Loyalists:   100,
		RegionID:    capital.ID,
		Sector:      0,
		Leader:      leader,
		Defectable:  true,
		RecruitedAt: now.Now(),
	}
	if err := s.store.CreatePlayer(ctx, tx, p); err != nil {
		return nil, fmt.Errorf("create player: %w", err)
	}

	s.logger.Info("recruited player", "name", name, "team", team)
	return p, nil
}

func (s *RecruitmentService) assignTeam(uid int64, cfg config.GameConfig) world.Team {
	switch cfg.Assignment {
	case "random":
		if s.rng.Intn(2) == 0 {
			return world.Team0
		}
		return world.Team1
	case "uid":
		return world.Team(uid % 2)
	default:
		return world.Team0
	}
}
