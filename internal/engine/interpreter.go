package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/chromabot/referee/internal/config"
	"github.com/chromabot/referee/internal/world"
)

// Context carries everything a single command dispatch needs: the issuing
// player, a transaction to run inside, and the live config snapshot.
type Context struct {
	Tx       *sql.Tx
	Player   *world.Player
	Config   config.GameConfig
	Clock    Clock
	Rand     Rand
}

// Interpreter dispatches parsed Commands against the world store, mapping
// every engine error to user-visible reply text in one place.
type Interpreter struct {
	store      *world.Store
	pathfinder *world.Pathfinder
	movement   *MovementService
	battle     *BattleService
}

// NewInterpreter создает интерпретатор команд поверх переданных сервисов.
func NewInterpreter(store *world.Store, pathfinder *world.Pathfinder, movement *MovementService, battle *BattleService) *Interpreter {
	return &Interpreter{store: store, pathfinder: pathfinder, movement: movement, battle: battle}
}

// Dispatch executes cmd against ctx and returns reply text, or an error that
// has already been translated to a user-facing message via Explain.
func (in *Interpreter) Dispatch(ctx context.Context, c *Context, cmd Command) (string, error) {
	var err error

	switch v := cmd.(type) {
	case StatusCommand:
		return in.status(c), nil

	case LandsStatusCommand:
		return in.landsStatus(ctx, c)

	case MoveCommand:
		err = in.movement.Move(ctx, c.Tx, c.Clock, c.Player, v.Count, v.Path, c.Config.Speed, c.Config)

	case LeadCommand:
		err = in.movement.Move(ctx, c.Tx, c.Clock, c.Player, v.Count, v.Path, c.Config.Speed, c.Config)

	case StopCommand:
		err = in.movement.Cancel(ctx, c.Tx, c.Player)

	case ExtractCommand:
		err = in.movement.Extract(ctx, c.Tx, c.Player)

	case InvadeCommand:
		return in.invade(ctx, c, v)

	case SkirmishCommand:
		return in.skirmish(ctx, c, v)

	case AttackCommand:
		return in.react(ctx, c, v.ParentCommentID, v.Amount, v.TroopType, true)

	case OpposeCommand:
		return in.react(ctx, c, v.ParentCommentID, v.Amount, v.TroopType, true)

	case SupportCommand:
		return in.react(ctx, c, v.ParentCommentID, v.Amount, v.TroopType, false)

	case DefectCommand:
		err = in.defect(ctx, c)

	case PromoteCommand:
		err = in.setLeader(ctx, c, v.TargetName, true)

	case DemoteCommand:
		err = in.setLeader(ctx, c, v.TargetName, false)

	case CodewordCommand:
		err = in.codeword(ctx, c, v)

	case TimeCommand:
		return c.Clock.Now().String(), nil

	default:
		return "", fmt.Errorf("unrecognized command")
	}

	if err != nil {
		return "", fmt.Errorf("%s", Explain(err))
	}
	return "done", nil
}

func (in *Interpreter) status(c *Context) string {
	p := c.Player
	return fmt.Sprintf("%s: %d loyalists (%d committed), region %d, sector %d",
		p.Name, p.Loyalists, p.CommittedLoyalists, p.RegionID, p.Sector)
}

func (in *Interpreter) landsStatus(ctx context.Context, c *Context) (string, error) {
	regions, err := in.store.ListRegions(ctx, c.Tx)
	if err != nil {
		return "", fmt.Errorf("list regions: %w", err)
	}
	out := ""
	for _, r := range regions {
		out += fmt.Sprintf("%s: team %d\n", r.Name, r.Owner)
	}
	return out, nil
}

func (in *Interpreter) invade(ctx context.Context, c *Context, v InvadeCommand) (string, error) {
	region, err := in.store.GetRegionByName(ctx, c.Tx, v.RegionName)
	if err != nil {
		return "", fmt.Errorf("%s", Explain(err))
	}
	battle, err := in.battle.Invade(ctx, c.Tx, c.Clock, c.Rand, region, c.Player, c.Clock.Now(), c.Config)
	if err != nil {
		return "", fmt.Errorf("%s", Explain(err))
	}
	return fmt.Sprintf("battle opened over %s (id %d)", region.Name, battle.ID), nil
}

func (in *Interpreter) skirmish(ctx context.Context, c *Context, v SkirmishCommand) (string, error) {
	battle, err := in.store.GetBattleByRegion(ctx, c.Tx, c.Player.RegionID)
	if err != nil {
		return "", fmt.Errorf("no battle in your region")
	}
	sk, err := in.battle.CreateRoot(ctx, c.Tx, c.Clock, c.Rand, battle, c.Player, v.Amount, v.TroopType, true, c.Config)
	if err != nil {
		return "", fmt.Errorf("%s", Explain(err))
	}
	return fmt.Sprintf("skirmish %d opened", sk.ID), nil
}

func (in *Interpreter) react(ctx context.Context, c *Context, parentCommentID string, amount int, troopType string, hinder bool) (string, error) {
	battle, err := in.store.GetBattleByRegion(ctx, c.Tx, c.Player.RegionID)
	if err != nil {
		return "", fmt.Errorf("no battle in your region")
	}
	parent, err := in.store.GetSkirmishByCommentID(ctx, c.Tx, battle.ID, parentCommentID)
	if err != nil {
		return "", fmt.Errorf("no such skirmish")
	}
	sk, err := in.battle.React(ctx, c.Tx, c.Clock, battle, parent, c.Player, amount, troopType, hinder, true, c.Config)
	if err != nil {
		return "", fmt.Errorf("%s", Explain(err))
	}
	return fmt.Sprintf("skirmish %d opened", sk.ID), nil
}

func (in *Interpreter) defect(ctx context.Context, c *Context) error {
	if c.Config.DisableDefect {
		return &DisabledError{Feature: "defect"}
	}
	if !c.Player.Defectable && !c.Config.UnlimitedDefect {
		return &DisabledError{Feature: "defect"}
	}
	c.Player.Team = c.Player.Team.Other()
	c.Player.Defectable = false
	if err := in.store.RemoveAllCodewords(ctx, c.Tx, c.Player.ID); err != nil {
		return fmt.Errorf("clear codewords on defect: %w", err)
	}
	return in.store.SavePlayer(ctx, c.Tx, c.Player)
}

func (in *Interpreter) setLeader(ctx context.Context, c *Context, targetName string, leader bool) error {
	if !c.Player.Leader {
		return &RankError{}
	}
	target, err := in.store.GetPlayerByName(ctx, c.Tx, targetName)
	if err != nil {
		return fmt.Errorf("no such player")
	}
	if target.Team != c.Player.Team {
		return &TeamError{What: target.Name, Friendly: false}
	}
	target.Leader = leader
	return in.store.SavePlayer(ctx, c.Tx, target)
}

func (in *Interpreter) codeword(ctx context.Context, c *Context, v CodewordCommand) error {
	if v.Clear {
		if v.Code == "" {
			return in.store.RemoveAllCodewords(ctx, c.Tx, c.Player.ID)
		}
		return in.store.RemoveCodeword(ctx, c.Tx, c.Player.ID, v.Code)
	}
	if v.Word == "" {
		return nil
	}
	return in.store.SetCodeword(ctx, c.Tx, c.Player.ID, v.Code, v.Word)
}

// Explain translates an engine error into stable, user-facing text. This is
// the single place that maps the closed error set from errors.go to prose.
func Explain(err error) string {
	var insufficient *InsufficientError
	var tooMany *TooManyError
	var nonAdjacent *NonAdjacentError
	var notPresent *NotPresentError
	var inProgress *InProgressError
	var team *TeamError
	var timing *TimingError
	var rank *RankError
	var disabled *DisabledError
	var noSector *NoSuchSectorError
	var wrongSector *WrongSectorError

	switch {
	case errors.As(err, &insufficient):
		return insufficient.Error()
	case errors.As(err, &tooMany):
		return tooMany.Error()
	case errors.As(err, &nonAdjacent):
		return nonAdjacent.Error()
	case errors.As(err, &notPresent):
		return notPresent.Error()
	case errors.As(err, &inProgress):
		return inProgress.Error()
	case errors.As(err, &team):
		return team.Error()
	case errors.As(err, &timing):
		return timing.Error()
	case errors.As(err, &rank):
		return rank.Error()
	case errors.As(err, &disabled):
		return disabled.Error()
	case errors.As(err, &noSector):
		return noSector.Error()
	case errors.As(err, &wrongSector):
		return wrongSector.Error()
	default:
		return err.Error()
	}
}
