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

// BattleService owns invasion scheduling, the battle lifecycle, skirmish
// tree construction, and the recursive scoring algorithm.
type BattleService struct {
	store  *world.Store
	logger *logger.Logger
}

// NewBattleService создает новый сервис сражений.
func NewBattleService(store *world.Store, log *logger.Logger) *BattleService {
	return &BattleService{store: store, logger: log}
}

// attackRing is the rock-paper-scissors order used when evaluating an
// attacking (hinder=true) child against the defending skirmish's type.
var attackRing = []world.TroopType{world.TroopRanged, world.TroopInfantry, world.TroopCavalry}

// supportRing is the reversed order used for supporting (hinder=false)
// children.
var supportRing = []world.TroopType{world.TroopCavalry, world.TroopInfantry, world.TroopRanged}

// Invade creates a new Battle over region on behalf of byPlayer, per §4.4.
func (s *BattleService) Invade(ctx context.Context, tx *sql.Tx, now Clock, rng Rand, region *world.Region, byPlayer *world.Player, beginAt time.Time, cfg config.GameConfig) (*world.Battle, error) {
	if !byPlayer.Leader {
		return nil, &RankError{}
	}
	if region.Owner == byPlayer.Team {
		return nil, &TeamError{What: region.Name, Friendly: true}
	}

	existing, err := s.store.GetBattleByRegion(ctx, tx, region.ID)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("check existing battle: %w", err)
	}
	if existing != nil {
		return nil, &InProgressError{Other: "existing battle"}
	}

	hasFriendlyNeighbor := false
	for _, neighborID := range region.Borders {
		neighbor, err := s.store.GetRegionByID(ctx, tx, neighborID)
		if err != nil {
			return nil, fmt.Errorf("load neighbor: %w", err)
		}
		if neighbor.Owner == byPlayer.Team {
			hasFriendlyNeighbor = true
			break
		}
	}
	if !hasFriendlyNeighbor {
		return nil, &NonAdjacentError{Source: "friendly territory", Dest: region.Name}
	}

	fortified, ok, err := s.store.HasBuff(ctx, tx, world.BuffTargetRegion, region.ID, world.BuffKeyFortified)
	if err != nil {
		return nil, fmt.Errorf("check fortified buff: %w", err)
	}
	if ok {
		expected := ""
		if fortified.ExpiresAt != nil {
			expected = fortified.ExpiresAt.Format(time.RFC3339)
		}
		return nil, &TimingError{Side: TimingSoon, Expected: expected}
	}

	if region.IsCapitalOf != world.TeamNone && cfg.CapitalInvasion == "none" {
		return nil, fmt.Errorf("cannot invade capital")
	}

	displayEnds := beginAt.Add(cfg.BattleTime)
	jitter := time.Duration(0)
	if cfg.BattleLockout > 0 {
		jitter = time.Duration(rng.Intn(int(cfg.BattleLockout)))
	}
	battle := &world.Battle{
		RegionID:       region.ID,
		BeginsAt:       beginAt,
		DisplayEndsAt:  displayEnds,
		EndsAt:         displayEnds.Add(jitter),
		LockoutSeconds: int(cfg.BattleLockout.Seconds()),
		Victor:         world.TeamNone,
	}
	if err := s.store.CreateBattle(ctx, tx, battle); err != nil {
		return nil, fmt.Errorf("create battle: %w", err)
	}

	byPlayer.Defectable = false
	if err := s.store.SavePlayer(ctx, tx, byPlayer); err != nil {
		return nil, fmt.Errorf("save invader: %w", err)
	}

	return battle, nil
}

// CreateRoot opens a new root SkirmishAction for player in battle, per §4.4.
func (s *BattleService) CreateRoot(ctx context.Context, tx *sql.Tx, now Clock, rng Rand, battle *world.Battle, player *world.Player, amount int, troopType string, enforceNoob bool, cfg config.GameConfig) (*world.SkirmishAction, error) {
	n := now.Now()
	state := battle.State(n)
	if state == world.BattleScheduled {
		return nil, &TimingError{Side: TimingSoon}
	}
	if state == world.BattleResolved {
		return nil, &TimingError{Side: TimingLate}
	}

	if player.RegionID != battle.RegionID {
		return nil, &NotPresentError{NeedToBeIn: fmt.Sprintf("region %d", battle.RegionID), ActuallyIn: fmt.Sprintf("region %d", player.RegionID)}
	}

	orders, err := s.store.OrdersForPlayer(ctx, tx, player.ID)
	if err != nil {
		return nil, fmt.Errorf("check marching orders: %w", err)
	}
	if len(orders) > 0 {
		return nil, &InProgressError{Other: "move"}
	}

	if enforceNoob && player.RecruitedAt.After(battle.BeginsAt) {
		return nil, &TimingError{Side: TimingSoon}
	}

	if cfg.BattleLockout > 0 && !n.Before(battle.DisplayEndsAt.Add(-cfg.BattleLockout)) {
		return nil, &TimingError{Side: TimingLate, Expected: "within the lockout window"}
	}

	if existing, err := s.store.GetPlayerRootSkirmish(ctx, tx, battle.ID, player.ID); err == nil && existing != nil {
		return nil, &InProgressError{Other: "root skirmish"}
	} else if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("check existing root: %w", err)
	}

	if amount <= 0 {
		return nil, &InsufficientError{Requested: amount, Available: 0, OfWhat: "argument"}
	}
	if amount+player.CommittedLoyalists > player.Loyalists {
		return nil, &InsufficientError{Requested: amount, Available: player.Loyalists - player.CommittedLoyalists, OfWhat: "loyalists"}
	}

	troop := translateTroopType(troopType)

	var endsAt *time.Time
	if cfg.SkirmishTime > 0 {
		jitter := time.Duration(0)
		if cfg.SkirmishVariability > 0 {
			jitter = time.Duration(rng.Intn(2*int(cfg.SkirmishVariability)+1)) - cfg.SkirmishVariability
		}
		t := n.Add(cfg.SkirmishTime + jitter)
		endsAt = &t
	}

	sk := &world.SkirmishAction{
		BattleID:  battle.ID,
		PlayerID:  player.ID,
		Amount:    amount,
		TroopType: troop,
		Hinder:    false,
		EndsAt:    endsAt,
	}
	priorCount, err := s.countPriorSkirmishes(ctx, tx, battle.ID, player.ID)
	if err != nil {
		return nil, fmt.Errorf("count prior skirmishes: %w", err)
	}
	if err := s.store.CreateSkirmish(ctx, tx, sk); err != nil {
		return nil, fmt.Errorf("create root skirmish: %w", err)
	}

	if n.Before(battle.BeginsAt.Add(cfg.FFTBTime)) && priorCount <= 1 {
		buff := &world.Buff{Name: "First Strike", InternalKey: world.BuffKeyFirstStrike, Multiplier: 0.25, TargetType: world.BuffTargetSkirmish, TargetID: sk.ID}
		if err := s.store.AddBuff(ctx, tx, buff); err != nil {
			return nil, fmt.Errorf("attach first strike buff: %w", err)
		}
	}

	player.CommittedLoyalists += amount
	player.Defectable = false
	if err := s.store.SavePlayer(ctx, tx, player); err != nil {
		return nil, fmt.Errorf("save committing player: %w", err)
	}

	return sk, nil
}

// React attaches a child skirmish under parent, per §4.4.
func (s *BattleService) React(ctx context.Context, tx *sql.Tx, now Clock, battle *world.Battle, parent *world.SkirmishAction, player *world.Player, amount int, troopType string, hinder bool, enforceNoob bool, cfg config.GameConfig) (*world.SkirmishAction, error) {
	n := now.Now()
	if parent.Resolved {
		return nil, &TimingError{Side: TimingLate}
	}

	parentOwner, err := s.store.GetPlayerByID(ctx, tx, parent.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("load parent owner: %w", err)
	}

	if hinder == (player.Team == parentOwner.Team) {
		return nil, &TeamError{What: "skirmish side", Friendly: !hinder}
	}

	if existing, err := s.store.GetChildForParticipant(ctx, tx, parent.ID, player.ID); err == nil && existing != nil {
		return nil, &InProgressError{Other: "sub-skirmish"}
	} else if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("check existing child: %w", err)
	}

	root, err := s.getRoot(ctx, tx, parent)
	if err != nil {
		return nil, fmt.Errorf("load root: %w", err)
	}
	if amount > root.Amount {
		return nil, &TooManyError{Requested: amount, Max: root.Amount, OfWhat: "loyalists"}
	}

	if enforceNoob && player.RecruitedAt.After(battle.BeginsAt) {
		return nil, &TimingError{Side: TimingSoon}
	}
	if player.RegionID != battle.RegionID {
		return nil, &NotPresentError{NeedToBeIn: fmt.Sprintf("region %d", battle.RegionID), ActuallyIn: fmt.Sprintf("region %d", player.RegionID)}
	}
	if amount <= 0 {
		return nil, &InsufficientError{Requested: amount, Available: 0, OfWhat: "argument"}
	}
	if amount+player.CommittedLoyalists > player.Loyalists {
		return nil, &InsufficientError{Requested: amount, Available: player.Loyalists - player.CommittedLoyalists, OfWhat: "loyalists"}
	}

	var endsAt *time.Time
	if cfg.SkirmishTime > 0 {
		t := n.Add(cfg.SkirmishTime)
		endsAt = &t
	}

	sk := &world.SkirmishAction{
		BattleID:  battle.ID,
		ParentID:  &parent.ID,
		PlayerID:  player.ID,
		Amount:    amount,
		TroopType: translateTroopType(troopType),
		Hinder:    hinder,
		EndsAt:    endsAt,
	}
	if err := s.store.CreateSkirmish(ctx, tx, sk); err != nil {
		return nil, fmt.Errorf("create child skirmish: %w", err)
	}

	player.CommittedLoyalists += amount
	player.Defectable = false
	if err := s.store.SavePlayer(ctx, tx, player); err != nil {
		return nil, fmt.Errorf("save reacting player: %w", err)
	}

	return sk, nil
}

func (s *BattleService) getRoot(ctx context.Context, tx *sql.Tx, sk *world.SkirmishAction) (*world.SkirmishAction, error) {
	cur := sk
	for cur.ParentID != nil {
		parent, err := s.store.GetSkirmish(ctx, tx, *cur.ParentID)
		if err != nil {
			return nil, err
		}
		cur = parent
	}
	return cur, nil
}

func (s *BattleService) countPriorSkirmishes(ctx context.Context, tx *sql.Tx, battleID, playerID int64) (int, error) {
	forest, err := s.store.LoadForest(ctx, tx, battleID)
	if err != nil {
		return 0, err
	}
	count := 0
	var walk func(nodes []*world.SkirmishAction)
	walk = func(nodes []*world.SkirmishAction) {
		for _, n := range nodes {
			if n.PlayerID == playerID {
				count++
			}
			walk(n.Children)
		}
	}
	walk(forest)
	return count, nil
}

func translateTroopType(raw string) world.TroopType {
	switch raw {
	case "infantry":
		return world.TroopInfantry
	case "cavalry", "calvary", "calvalry":
		return world.TroopCavalry
	case "ranged", "range":
		return world.TroopRanged
	default:
		return world.TroopInfantry
	}
}

// ringIndex locates t's position in ring.
func ringIndex(ring []world.TroopType, t world.TroopType) int {
	for i, v := range ring {
		if v == t {
			return i
		}
	}
	return 1 // default to the middle (infantry-equivalent) slot
}

// typeModifier returns the multiplier applying attacker/supporter type
// childType against a defending skirmish of type defenderType, per the §4.4
// matchup table.
func typeModifier(ring []world.TroopType, defenderType, childType world.TroopType) float64 {
	n := len(ring)
	d := ringIndex(ring, defenderType)
	c := ringIndex(ring, childType)
	left := (d - 1 + n) % n
	right := (d + 1) % n
	switch c {
	case left:
		return 0.5
	case right:
		return 1.5
	default:
		return 1.0
	}
}

// Resolve recursively scores s and its descendants, per §4.4 steps 1-8.
// Idempotent once s.Resolved is true.
func (s *BattleService) Resolve(ctx context.Context, tx *sql.Tx, s0 *world.SkirmishAction, isRoot bool) error {
	if s0.Resolved {
		return nil
	}

	buffs, err := s.store.BuffsFor(ctx, tx, world.BuffTargetSkirmish, s0.ID)
	if err != nil {
		return fmt.Errorf("load skirmish buffs: %w", err)
	}
	s0.Buffs = buffs

	adjusted := adjustedAmount(s0)
	victor := s0.ParticipantTeam
	margin := adjusted
	unopposed := true
	cap := margin

	var supporters, attackers []*world.SkirmishAction
	for _, child := range s0.Children {
		if child.Hinder {
			attackers = append(attackers, child)
		} else {
			supporters = append(supporters, child)
		}
	}
	for _, child := range append(append([]*world.SkirmishAction{}, supporters...), attackers...) {
		if err := s.Resolve(ctx, tx, child, false); err != nil {
			return err
		}
	}

	rawSupport, support := s0.Amount, float64(adjusted)
	for _, child := range supporters {
		if child.Victor != s0.ParticipantTeam {
			continue
		}
		rawSupport += child.Margin
		support += float64(child.Margin) * typeModifier(supportRing, s0.TroopType, child.TroopType)
	}

	rawAttack, attack := 0, 0.0
	for _, child := range attackers {
		if child.Victor == s0.ParticipantTeam {
			continue
		}
		rawAttack += child.Margin
		attack += float64(child.Margin) * typeModifier(attackRing, s0.TroopType, child.TroopType)
	}

	unopposed = attack == 0

	switch {
	case attack > support:
		victor = s0.ParticipantTeam.Other()
		margin = int(attack - support)
		s0.VP += rawSupport
	case support > attack:
		victor = s0.ParticipantTeam
		margin = int(support - attack)
		s0.VP += rawAttack
	default:
		victor = world.TeamNone
		margin = 0
		if rawAttack > rawSupport {
			s0.VP += rawAttack
		} else {
			s0.VP += rawSupport
		}
	}

	if !s0.Hinder && margin > cap {
		margin = cap
	}

	s0.Victor = victor
	s0.Margin = margin
	s0.Unopposed = unopposed

	if isRoot {
		var sumVP func(n *world.SkirmishAction) int
		sumVP = func(n *world.SkirmishAction) int {
			total := 0
			if n.Victor == s0.Victor {
				total += n.VP
			}
			for _, c := range n.Children {
				total += sumVP(c)
			}
			return total
		}
		total := sumVP(s0)
		if s0.Unopposed {
			doubled := s0.Amount * 2
			if total*2 > doubled {
				total *= 2
			} else {
				total = doubled
			}
		}
		s0.VP = total
	}

	s0.Resolved = true
	return s.store.SaveSkirmish(ctx, tx, s0)
}

func adjustedAmount(s *world.SkirmishAction) int {
	bonus := 0.0
	for _, b := range s.Buffs {
		bonus += b.Multiplier
	}
	return int(float64(s.Amount) * (1 + bonus))
}

// ResolveBattle runs the full open-to-resolved transition for battle: scores
// every root skirmish, applies region buffs and homeland defense, determines
// the victor, transfers ownership, attaches post-battle buffs, rewards and
// ejects, and finally deletes the battle and its skirmishes.
func (s *BattleService) ResolveBattle(ctx context.Context, tx *sql.Tx, now Clock, battle *world.Battle, pathfinder *world.Pathfinder, cfg config.GameConfig) error {
	region, err := s.store.GetRegionByID(ctx, tx, battle.RegionID)
	if err != nil {
		return fmt.Errorf("load battle region: %w", err)
	}

	roots, err := s.store.LoadForest(ctx, tx, battle.ID)
	if err != nil {
		return fmt.Errorf("load skirmish forest: %w", err)
	}

	score := map[world.Team]int{world.Team0: 0, world.Team1: 0}
	teamOf := make(map[int64]world.Team)
	for _, root := range roots {
		if err := s.assignParticipantTeams(ctx, tx, root, teamOf); err != nil {
			return fmt.Errorf("assign participant teams: %w", err)
		}
		if err := s.Resolve(ctx, tx, root, true); err != nil {
			return fmt.Errorf("resolve root skirmish: %w", err)
		}
		if root.Victor == world.Team0 || root.Victor == world.Team1 {
			score[root.Victor] += root.VP
		}
	}

	regionBuffs, err := s.store.BuffsFor(ctx, tx, world.BuffTargetRegion, region.ID)
	if err != nil {
		return fmt.Errorf("load region buffs: %w", err)
	}
	if region.Owner != world.TeamNone {
		for _, b := range regionBuffs {
			score[region.Owner] += int(float64(score[region.Owner]) * b.Multiplier)
		}
	}

	percents := cfg.HomelandDefensePercents()
	for _, team := range []world.Team{world.Team0, world.Team1} {
		capital, err := s.store.CapitalFor(ctx, tx, team)
		if err != nil {
			continue
		}
		path, found, err := pathfinder.FindPath(ctx, tx, capital.ID, region.ID, world.TraversalPolicy{Team: world.TeamNone})
		if err != nil {
			return fmt.Errorf("homeland defense path: %w", err)
		}
		if !found {
			continue
		}
		dist := len(path) - 1
		if dist >= 1 && dist <= len(percents) {
			score[team] += int(float64(score[team]) * percents[dist-1])
		}
	}

	victor := world.TeamNone
	switch {
	case score[world.Team0] > score[world.Team1]:
		victor = world.Team0
	case score[world.Team1] > score[world.Team0]:
		victor = world.Team1
	}

	battle.ResolvedScore0 = score[world.Team0]
	battle.ResolvedScore1 = score[world.Team1]
	battle.Victor = victor

	if victor != world.TeamNone {
		previousOwner := region.Owner
		region.Owner = victor
		if err := s.store.SetRegionOwner(ctx, tx, region.ID, victor); err != nil {
			return fmt.Errorf("transfer ownership: %w", err)
		}

		expires := now.Now().Add(cfg.DefenseBuffTime)
		if previousOwner != victor {
			buff := &world.Buff{Name: "On the Defense", InternalKey: world.BuffKeyOTD, Multiplier: 0.10, ExpiresAt: &expires, TargetType: world.BuffTargetRegion, TargetID: region.ID}
			if err := s.store.AddBuff(ctx, tx, buff); err != nil {
				return fmt.Errorf("attach otd buff: %w", err)
			}
		} else {
			buff := &world.Buff{Name: "Fortified", InternalKey: world.BuffKeyFortified, Multiplier: 0, ExpiresAt: &expires, TargetType: world.BuffTargetRegion, TargetID: region.ID}
			if err := s.store.AddBuff(ctx, tx, buff); err != nil {
				return fmt.Errorf("attach fortified buff: %w", err)
			}
		}
	}

	if err := s.applyRewardsAndEjection(ctx, tx, region, victor, cfg); err != nil {
		return fmt.Errorf("apply rewards: %w", err)
	}

	return s.store.DeleteBattle(ctx, tx, battle.ID)
}

// assignParticipantTeams sets ParticipantTeam on n and every descendant from
// each node's own PlayerID (per §4.4 step 1, "victor = s.participant.team"),
// caching lookups since the same player commonly appears more than once in
// a tree. Must run before Resolve.
func (s *BattleService) assignParticipantTeams(ctx context.Context, tx *sql.Tx, n *world.SkirmishAction, teamOf map[int64]world.Team) error {
	team, ok := teamOf[n.PlayerID]
	if !ok {
		player, err := s.store.GetPlayerByID(ctx, tx, n.PlayerID)
		if err != nil {
			return fmt.Errorf("load participant: %w", err)
		}
		team = player.Team
		teamOf[n.PlayerID] = team
	}
	n.ParticipantTeam = team
	for _, c := range n.Children {
		if err := s.assignParticipantTeams(ctx, tx, c, teamOf); err != nil {
			return err
		}
	}
	return nil
}

func (s *BattleService) applyRewardsAndEjection(ctx context.Context, tx *sql.Tx, region *world.Region, victor world.Team, cfg config.GameConfig) error {
	players, err := s.playersInRegion(ctx, tx, region.ID)
	if err != nil {
		return fmt.Errorf("load players in region: %w", err)
	}

	for _, p := range players {
		reward := cfg.LoseReward
		if p.Team == victor {
			reward = cfg.WinReward
		}
		p.Loyalists += int(float64(p.CommittedLoyalists) * reward)
		if cfg.TroopCap > 0 && p.Loyalists > cfg.TroopCap {
			p.Loyalists = cfg.TroopCap
		}
		p.CommittedLoyalists = 0

		if victor != world.TeamNone && p.Team != victor {
			capital, err := s.store.CapitalFor(ctx, tx, p.Team)
			if err != nil {
				return fmt.Errorf("find capital for ejection: %w", err)
			}
			p.RegionID = capital.ID
			p.Sector = 0
		}

		if err := s.store.SavePlayer(ctx, tx, p); err != nil {
			return fmt.Errorf("save rewarded player: %w", err)
		}
	}
	return nil
}

func (s *BattleService) playersInRegion(ctx context.Context, tx *sql.Tx, regionID int64) ([]*world.Player, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM players WHERE region_id = $1`, regionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	players := make([]*world.Player, 0, len(ids))
	for _, id := range ids {
		p, err := s.store.GetPlayerByID(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, nil
}

// ExpireSkirmishes resolves every skirmish in battle whose ends_at has
// passed, even though the battle itself may still be open.
func (s *BattleService) ExpireSkirmishes(ctx context.Context, tx *sql.Tx, now Clock, battle *world.Battle) error {
	expired, err := s.store.ExpiredSkirmishes(ctx, tx, battle.ID, now.Now())
	if err != nil {
		return fmt.Errorf("load expired skirmishes: %w", err)
	}
	if len(expired) == 0 {
		return nil
	}
	forest, err := s.store.LoadForest(ctx, tx, battle.ID)
	if err != nil {
		return fmt.Errorf("load skirmish forest for expiry: %w", err)
	}
	trees := make(map[int64]*world.SkirmishAction, len(forest))
	for _, r := range forest {
		trees[r.ID] = r
	}
	for _, sk := range expired {
		top, err := s.getRoot(ctx, tx, sk)
		if err != nil {
			return fmt.Errorf("load root for expiry: %w", err)
		}
		root, ok := trees[top.ID]
		if !ok {
			continue
		}
		if err := s.assignParticipantTeams(ctx, tx, root, make(map[int64]world.Team)); err != nil {
			return fmt.Errorf("assign participant teams for expiry: %w", err)
		}
		if err := s.Resolve(ctx, tx, root, true); err != nil {
			return fmt.Errorf("resolve expired tree: %w", err)
		}
	}
	return nil
}
