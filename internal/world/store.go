// Package world implements the persistent repository of regions, players,
// battles, skirmishes, buffs and codewords that the referee engine mutates.
// Every mutation goes through Store, transactionally.
package world

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/chromabot/referee/pkg/database"
	"github.com/chromabot/referee/pkg/logger"
)

// Store is the transactional repository backing the whole game world.
type Store struct {
	db     *database.Database
	logger *logger.Logger
}

// New создаёт новое хранилище мира поверх соединения с Postgres.
func New(db *database.Database, log *logger.Logger) *Store {
	return &Store{db: db, logger: log}
}

// queryer is satisfied by both *sql.DB and *sql.Tx, letting repository
// methods run either standalone or inside a caller-managed transaction.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// WithTx runs fn inside a single Postgres transaction, committing on success
// and rolling back on any error (including a panic, which is re-raised after
// rollback). The ticker opens its phase transactions itself (Ticker.withTx)
// rather than through this helper.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTxWithContext(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", "error", rbErr)
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// conn returns the underlying *sql.DB for read-only queries issued outside
// any transaction (status endpoints, reporting).
func (s *Store) conn() queryer {
	return s.db.GetConnection()
}

// ---- Regions ----------------------------------------------------------

func (s *Store) CreateRegion(ctx context.Context, q queryer, r *Region) error {
	row := q.QueryRowContext(ctx, `
		INSERT INTO regions (name, srname, owner, is_capital_of, is_eternal, travel_multiplier, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id`,
		strings.ToLower(r.Name), r.SRName, int(r.Owner), int(r.IsCapitalOf), r.IsEternal, r.TravelMultiplier, time.Now())
	return row.Scan(&r.ID)
}

func (s *Store) AddBorder(ctx context.Context, q queryer, a, b int64) error {
	if _, err := q.ExecContext(ctx, `
		INSERT INTO region_borders (left_id, right_id) VALUES ($1, $2), ($2, $1)
		ON CONFLICT DO NOTHING`, a, b); err != nil {
		return fmt.Errorf("add border: %w", err)
	}
	return nil
}

func (s *Store) AddAlias(ctx context.Context, q queryer, regionID int64, alias string) error {
	if _, err := q.ExecContext(ctx, `
		INSERT INTO region_aliases (region_id, alias) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, regionID, strings.ToLower(alias)); err != nil {
		return fmt.Errorf("add alias: %w", err)
	}
	return nil
}

func (s *Store) GetRegionByID(ctx context.Context, q queryer, id int64) (*Region, error) {
	r := &Region{}
	err := q.QueryRowContext(ctx, `
		SELECT id, name, srname, owner, is_capital_of, is_eternal, travel_multiplier, created_at, updated_at
		FROM regions WHERE id = $1`, id).Scan(
		&r.ID, &r.Name, &r.SRName, &r.Owner, &r.IsCapitalOf, &r.IsEternal, &r.TravelMultiplier, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := s.hydrateRegion(ctx, q, r); err != nil {
		return nil, err
	}
	return r, nil
}

// GetRegionByName finds a region by its canonical name or by any alias.
func (s *Store) GetRegionByName(ctx context.Context, q queryer, name string) (*Region, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	r := &Region{}
	err := q.QueryRowContext(ctx, `
		SELECT id, name, srname, owner, is_capital_of, is_eternal, travel_multiplier, created_at, updated_at
		FROM regions WHERE name = $1`, name).Scan(
		&r.ID, &r.Name, &r.SRName, &r.Owner, &r.IsCapitalOf, &r.IsEternal, &r.TravelMultiplier, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		err = q.QueryRowContext(ctx, `
			SELECT r.id, r.name, r.srname, r.owner, r.is_capital_of, r.is_eternal, r.travel_multiplier, r.created_at, r.updated_at
			FROM regions r JOIN region_aliases a ON a.region_id = r.id WHERE a.alias = $1`, name).Scan(
			&r.ID, &r.Name, &r.SRName, &r.Owner, &r.IsCapitalOf, &r.IsEternal, &r.TravelMultiplier, &r.CreatedAt, &r.UpdatedAt)
	}
	if err != nil {
		return nil, err
	}
	if err := s.hydrateRegion(ctx, q, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) hydrateRegion(ctx context.Context, q queryer, r *Region) error {
	rows, err := q.QueryContext(ctx, `SELECT right_id FROM region_borders WHERE left_id = $1`, r.ID)
	if err != nil {
		return fmt.Errorf("load borders: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		r.Borders = append(r.Borders, id)
	}

	aliasRows, err := q.QueryContext(ctx, `SELECT alias FROM region_aliases WHERE region_id = $1`, r.ID)
	if err != nil {
		return fmt.Errorf("load aliases: %w", err)
	}
	defer aliasRows.Close()
	for aliasRows.Next() {
		var alias string
		if err := aliasRows.Scan(&alias); err != nil {
			return err
		}
		r.Aliases = append(r.Aliases, alias)
	}
	return nil
}

func (s *Store) ListRegions(ctx context.Context, q queryer) ([]*Region, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, srname, owner, is_capital_of, is_eternal, travel_multiplier, created_at, updated_at
		FROM regions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regions []*Region
	for rows.Next() {
		r := &Region{}
		if err := rows.Scan(&r.ID, &r.Name, &r.SRName, &r.Owner, &r.IsCapitalOf, &r.IsEternal, &r.TravelMultiplier, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		if err := s.hydrateRegion(ctx, q, r); err != nil {
			return nil, err
		}
		regions = append(regions, r)
	}
	return regions, nil
}

func (s *Store) CapitalFor(ctx context.Context, q queryer, team Team) (*Region, error) {
	r := &Region{}
	err := q.QueryRowContext(ctx, `
		SELECT id, name, srname, owner, is_capital_of, is_eternal, travel_multiplier, created_at, updated_at
		FROM regions WHERE is_capital_of = $1`, int(team)).Scan(
		&r.ID, &r.Name, &r.SRName, &r.Owner, &r.IsCapitalOf, &r.IsEternal, &r.TravelMultiplier, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := s.hydrateRegion(ctx, q, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) SetRegionOwner(ctx context.Context, q queryer, regionID int64, owner Team) error {
	_, err := q.ExecContext(ctx, `UPDATE regions SET owner = $1, updated_at = $2 WHERE id = $3`, int(owner), time.Now(), regionID)
	return err
}

func (s *Store) ListEternalRegionsWithoutBattle(ctx context.Context, q queryer) ([]*Region, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT r.id, r.name, r.srname, r.owner, r.is_capital_of, r.is_eternal, r.travel_multiplier, r.created_at, r.updated_at
		FROM regions r
		WHERE r.is_eternal AND NOT EXISTS (SELECT 1 FROM battles b WHERE b.region_id = r.id)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regions []*Region
	for rows.Next() {
		r := &Region{}
		if err := rows.Scan(&r.ID, &r.Name, &r.SRName, &r.Owner, &r.IsCapitalOf, &r.IsEternal, &r.TravelMultiplier, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		regions = append(regions, r)
	}
	return regions, nil
}

// ---- Players ------------------------------------------------------------

func (s *Store) CreatePlayer(ctx context.Context, q queryer, p *Player) error {
	row := q.QueryRowContext(ctx, `
		INSERT INTO players (name, team, loyalists, committed_loyalists, region_id, sector, leader, defectable, recruited_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		strings.ToLower(p.Name), int(p.Team), p.Loyalists, p.CommittedLoyalists, p.RegionID, p.Sector, p.Leader, p.Defectable, p.RecruitedAt)
	return row.Scan(&p.ID)
}

func (s *Store) GetPlayerByName(ctx context.Context, q queryer, name string) (*Player, error) {
	p := &Player{}
	err := q.QueryRowContext(ctx, `
		SELECT id, name, team, loyalists, committed_loyalists, region_id, sector, leader, defectable, recruited_at
		FROM players WHERE name = $1`, strings.ToLower(strings.TrimSpace(name))).Scan(
		&p.ID, &p.Name, &p.Team, &p.Loyalists, &p.CommittedLoyalists, &p.RegionID, &p.Sector, &p.Leader, &p.Defectable, &p.RecruitedAt)
	if err != nil {
		return nil, err
	}
	if err := s.loadCodewords(ctx, q, p); err != nil {
		return nil, err
	}
	return p, nil
}

// LockPlayerByName locks the player row for update; callers must be inside a
// transaction. This is what serializes the "exactly one of {idle, moving,
// fighting}" invariant per player.
func (s *Store) LockPlayerByName(ctx context.Context, tx *sql.Tx, name string) (*Player, error) {
	p := &Player{}
	err := tx.QueryRowContext(ctx, `
		SELECT id, name, team, loyalists, committed_loyalists, region_id, sector, leader, defectable, recruited_at
		FROM players WHERE name = $1 FOR UPDATE`, strings.ToLower(strings.TrimSpace(name))).Scan(
		&p.ID, &p.Name, &p.Team, &p.Loyalists, &p.CommittedLoyalists, &p.RegionID, &p.Sector, &p.Leader, &p.Defectable, &p.RecruitedAt)
	if err != nil {
		return nil, err
	}
	if err := s.loadCodewords(ctx, tx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// LockPlayerByID locks the player row for update by numeric id; callers must
// be inside a transaction.
func (s *Store) LockPlayerByID(ctx context.Context, tx *sql.Tx, id int64) (*Player, error) {
	p := &Player{}
	err := tx.QueryRowContext(ctx, `
		SELECT id, name, team, loyalists, committed_loyalists, region_id, sector, leader, defectable, recruited_at
		FROM players WHERE id = $1 FOR UPDATE`, id).Scan(
		&p.ID, &p.Name, &p.Team, &p.Loyalists, &p.CommittedLoyalists, &p.RegionID, &p.Sector, &p.Leader, &p.Defectable, &p.RecruitedAt)
	if err != nil {
		return nil, err
	}
	if err := s.loadCodewords(ctx, tx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetPlayerByID looks up a player by numeric id, outside any lock.
func (s *Store) GetPlayerByID(ctx context.Context, q queryer, id int64) (*Player, error) {
	p := &Player{}
	err := q.QueryRowContext(ctx, `
		SELECT id, name, team, loyalists, committed_loyalists, region_id, sector, leader, defectable, recruited_at
		FROM players WHERE id = $1`, id).Scan(
		&p.ID, &p.Name, &p.Team, &p.Loyalists, &p.CommittedLoyalists, &p.RegionID, &p.Sector, &p.Leader, &p.Defectable, &p.RecruitedAt)
	if err != nil {
		return nil, err
	}
	if err := s.loadCodewords(ctx, q, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) loadCodewords(ctx context.Context, q queryer, p *Player) error {
	p.Codewords = make(map[string]string)
	rows, err := q.QueryContext(ctx, `SELECT code, word FROM codewords WHERE player_id = $1`, p.ID)
	if err != nil {
		return fmt.Errorf("load codewords: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var code, word string
		if err := rows.Scan(&code, &word); err != nil {
			return err
		}
		p.Codewords[code] = word
	}
	return nil
}

func (s *Store) SavePlayer(ctx context.Context, q queryer, p *Player) error {
	_, err := q.ExecContext(ctx, `
		UPDATE players SET team = $1, loyalists = $2, committed_loyalists = $3, region_id = $4,
			sector = $5, leader = $6, defectable = $7 WHERE id = $8`,
		int(p.Team), p.Loyalists, p.CommittedLoyalists, p.RegionID, p.Sector, p.Leader, p.Defectable, p.ID)
	return err
}

func (s *Store) SetCodeword(ctx context.Context, q queryer, playerID int64, code, word string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO codewords (player_id, code, word) VALUES ($1, $2, $3)
		ON CONFLICT (player_id, code) DO UPDATE SET word = EXCLUDED.word`,
		playerID, strings.ToLower(code), word)
	return err
}

func (s *Store) RemoveCodeword(ctx context.Context, q queryer, playerID int64, code string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM codewords WHERE player_id = $1 AND code = $2`, playerID, strings.ToLower(code))
	return err
}

func (s *Store) RemoveAllCodewords(ctx context.Context, q queryer, playerID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM codewords WHERE player_id = $1`, playerID)
	return err
}

// ---- Marching orders ------------------------------------------------------

func (s *Store) InsertMarchingOrder(ctx context.Context, q queryer, o *MarchingOrder) error {
	row := q.QueryRowContext(ctx, `
		INSERT INTO marching_orders (player_id, source_id, dest_id, dest_sector, arrival_time, sequence)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		o.PlayerID, o.SourceID, o.DestID, o.DestSector, o.ArrivalTime, o.Sequence)
	return row.Scan(&o.ID)
}

func (s *Store) OrdersForPlayer(ctx context.Context, q queryer, playerID int64) ([]*MarchingOrder, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, player_id, source_id, dest_id, dest_sector, arrival_time, sequence
		FROM marching_orders WHERE player_id = $1 ORDER BY sequence`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*MarchingOrder
	for rows.Next() {
		o := &MarchingOrder{}
		if err := rows.Scan(&o.ID, &o.PlayerID, &o.SourceID, &o.DestID, &o.DestSector, &o.ArrivalTime, &o.Sequence); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (s *Store) DeleteOrdersForPlayer(ctx context.Context, q queryer, playerID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM marching_orders WHERE player_id = $1`, playerID)
	return err
}

func (s *Store) DeleteMarchingOrder(ctx context.Context, q queryer, id int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM marching_orders WHERE id = $1`, id)
	return err
}

// DueHeadOrders returns the head (sequence=0) orders whose arrival has passed.
func (s *Store) DueHeadOrders(ctx context.Context, q queryer, now time.Time) ([]*MarchingOrder, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, player_id, source_id, dest_id, dest_sector, arrival_time, sequence
		FROM marching_orders WHERE sequence = 0 AND arrival_time <= $1`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*MarchingOrder
	for rows.Next() {
		o := &MarchingOrder{}
		if err := rows.Scan(&o.ID, &o.PlayerID, &o.SourceID, &o.DestID, &o.DestSector, &o.ArrivalTime, &o.Sequence); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// PromoteChain shifts every remaining order for playerID down by one
// sequence position after the head order is consumed.
func (s *Store) PromoteChain(ctx context.Context, q queryer, playerID int64) error {
	_, err := q.ExecContext(ctx, `UPDATE marching_orders SET sequence = sequence - 1 WHERE player_id = $1`, playerID)
	return err
}

// ---- Battles --------------------------------------------------------------

func (s *Store) CreateBattle(ctx context.Context, q queryer, b *Battle) error {
	row := q.QueryRowContext(ctx, `
		INSERT INTO battles (region_id, begins_at, display_ends_at, ends_at, submission_id, lockout_seconds, victor)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		b.RegionID, b.BeginsAt, b.DisplayEndsAt, b.EndsAt, b.SubmissionID, b.LockoutSeconds, int(b.Victor))
	return row.Scan(&b.ID)
}

func (s *Store) GetBattleByRegion(ctx context.Context, q queryer, regionID int64) (*Battle, error) {
	return s.scanBattle(q.QueryRowContext(ctx, `
		SELECT id, region_id, begins_at, display_ends_at, ends_at, submission_id, lockout_seconds, resolved_score0, resolved_score1, victor
		FROM battles WHERE region_id = $1`, regionID))
}

func (s *Store) GetBattle(ctx context.Context, q queryer, id int64) (*Battle, error) {
	return s.scanBattle(q.QueryRowContext(ctx, `
		SELECT id, region_id, begins_at, display_ends_at, ends_at, submission_id, lockout_seconds, resolved_score0, resolved_score1, victor
		FROM battles WHERE id = $1`, id))
}

func (s *Store) scanBattle(row *sql.Row) (*Battle, error) {
	b := &Battle{}
	err := row.Scan(&b.ID, &b.RegionID, &b.BeginsAt, &b.DisplayEndsAt, &b.EndsAt, &b.SubmissionID,
		&b.LockoutSeconds, &b.ResolvedScore0, &b.ResolvedScore1, &b.Victor)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) ListBattles(ctx context.Context, q queryer) ([]*Battle, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, region_id, begins_at, display_ends_at, ends_at, submission_id, lockout_seconds, resolved_score0, resolved_score1, victor
		FROM battles`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var battles []*Battle
	for rows.Next() {
		b := &Battle{}
		if err := rows.Scan(&b.ID, &b.RegionID, &b.BeginsAt, &b.DisplayEndsAt, &b.EndsAt, &b.SubmissionID,
			&b.LockoutSeconds, &b.ResolvedScore0, &b.ResolvedScore1, &b.Victor); err != nil {
			return nil, err
		}
		battles = append(battles, b)
	}
	return battles, nil
}

func (s *Store) SaveBattle(ctx context.Context, q queryer, b *Battle) error {
	_, err := q.ExecContext(ctx, `
		UPDATE battles SET begins_at = $1, display_ends_at = $2, ends_at = $3, submission_id = $4,
			lockout_seconds = $5, resolved_score0 = $6, resolved_score1 = $7, victor = $8
		WHERE id = $9`,
		b.BeginsAt, b.DisplayEndsAt, b.EndsAt, b.SubmissionID, b.LockoutSeconds,
		b.ResolvedScore0, b.ResolvedScore1, int(b.Victor), b.ID)
	return err
}

func (s *Store) DeleteBattle(ctx context.Context, q queryer, id int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM skirmish_actions WHERE battle_id = $1`, id); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, `DELETE FROM battles WHERE id = $1`, id)
	return err
}

// ---- Skirmish actions -------------------------------------------------------

func (s *Store) CreateSkirmish(ctx context.Context, q queryer, sk *SkirmishAction) error {
	row := q.QueryRowContext(ctx, `
		INSERT INTO skirmish_actions (battle_id, parent_id, comment_id, player_id, amount, troop_type, hinder, ends_at, resolved, victor, vp, margin, unopposed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, $9, 0, 0, false) RETURNING id`,
		sk.BattleID, sk.ParentID, sk.CommentID, sk.PlayerID, sk.Amount, sk.TroopType, sk.Hinder, sk.EndsAt, int(TeamNone))
	return row.Scan(&sk.ID)
}

func (s *Store) SaveSkirmish(ctx context.Context, q queryer, sk *SkirmishAction) error {
	_, err := q.ExecContext(ctx, `
		UPDATE skirmish_actions SET resolved = $1, victor = $2, vp = $3, margin = $4, unopposed = $5, comment_id = $6
		WHERE id = $7`,
		sk.Resolved, int(sk.Victor), sk.VP, sk.Margin, sk.Unopposed, sk.CommentID, sk.ID)
	return err
}

func (s *Store) GetSkirmish(ctx context.Context, q queryer, id int64) (*SkirmishAction, error) {
	return s.scanSkirmish(q.QueryRowContext(ctx, skirmishSelect+` WHERE id = $1`, id))
}

func (s *Store) GetSkirmishByCommentID(ctx context.Context, q queryer, battleID int64, commentID string) (*SkirmishAction, error) {
	return s.scanSkirmish(q.QueryRowContext(ctx, skirmishSelect+` WHERE battle_id = $1 AND comment_id = $2`, battleID, commentID))
}

func (s *Store) GetPlayerRootSkirmish(ctx context.Context, q queryer, battleID, playerID int64) (*SkirmishAction, error) {
	return s.scanSkirmish(q.QueryRowContext(ctx,
		skirmishSelect+` WHERE battle_id = $1 AND player_id = $2 AND parent_id IS NULL`, battleID, playerID))
}

// OpenRootSkirmishForPlayer finds an unresolved root skirmish for playerID
// in any battle, used to enforce the "engaged ⇒ no new move" invariant.
func (s *Store) OpenRootSkirmishForPlayer(ctx context.Context, q queryer, playerID int64) (*SkirmishAction, error) {
	return s.scanSkirmish(q.QueryRowContext(ctx,
		skirmishSelect+` WHERE player_id = $1 AND parent_id IS NULL AND resolved = false`, playerID))
}

func (s *Store) GetChildForParticipant(ctx context.Context, q queryer, parentID, playerID int64) (*SkirmishAction, error) {
	return s.scanSkirmish(q.QueryRowContext(ctx,
		skirmishSelect+` WHERE parent_id = $1 AND player_id = $2`, parentID, playerID))
}

const skirmishSelect = `
	SELECT id, battle_id, parent_id, comment_id, player_id, amount, troop_type, hinder, ends_at, resolved, victor, vp, margin, unopposed
	FROM skirmish_actions`

func (s *Store) scanSkirmish(row *sql.Row) (*SkirmishAction, error) {
	sk := &SkirmishAction{}
	err := row.Scan(&sk.ID, &sk.BattleID, &sk.ParentID, &sk.CommentID, &sk.PlayerID, &sk.Amount, &sk.TroopType,
		&sk.Hinder, &sk.EndsAt, &sk.Resolved, &sk.Victor, &sk.VP, &sk.Margin, &sk.Unopposed)
	if err != nil {
		return nil, err
	}
	return sk, nil
}

// LoadForest eagerly loads every skirmish in a battle and wires Children, the
// "one-shot eager load of the forest per battle" the teacher's DESIGN NOTES
// recommend for a recursive tree shaped this way.
func (s *Store) LoadForest(ctx context.Context, q queryer, battleID int64) ([]*SkirmishAction, error) {
	rows, err := q.QueryContext(ctx, skirmishSelect+` WHERE battle_id = $1`, battleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[int64]*SkirmishAction)
	var all []*SkirmishAction
	for rows.Next() {
		sk := &SkirmishAction{}
		if err := rows.Scan(&sk.ID, &sk.BattleID, &sk.ParentID, &sk.CommentID, &sk.PlayerID, &sk.Amount, &sk.TroopType,
			&sk.Hinder, &sk.EndsAt, &sk.Resolved, &sk.Victor, &sk.VP, &sk.Margin, &sk.Unopposed); err != nil {
			return nil, err
		}
		byID[sk.ID] = sk
		all = append(all, sk)
	}

	var roots []*SkirmishAction
	for _, sk := range all {
		if sk.ParentID == nil {
			roots = append(roots, sk)
			continue
		}
		parent, ok := byID[*sk.ParentID]
		if ok {
			parent.Children = append(parent.Children, sk)
		}
	}
	return roots, nil
}

func (s *Store) ExpiredSkirmishes(ctx context.Context, q queryer, battleID int64, now time.Time) ([]*SkirmishAction, error) {
	rows, err := q.QueryContext(ctx, skirmishSelect+
		` WHERE battle_id = $1 AND resolved = false AND ends_at IS NOT NULL AND ends_at < $2`, battleID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*SkirmishAction
	for rows.Next() {
		sk := &SkirmishAction{}
		if err := rows.Scan(&sk.ID, &sk.BattleID, &sk.ParentID, &sk.CommentID, &sk.PlayerID, &sk.Amount, &sk.TroopType,
			&sk.Hinder, &sk.EndsAt, &sk.Resolved, &sk.Victor, &sk.VP, &sk.Margin, &sk.Unopposed); err != nil {
			return nil, err
		}
		result = append(result, sk)
	}
	return result, nil
}

// ---- Buffs ------------------------------------------------------------------

func (s *Store) AddBuff(ctx context.Context, q queryer, b *Buff) error {
	row := q.QueryRowContext(ctx, `
		INSERT INTO buffs (name, internal_key, multiplier, expires_at, target_type, target_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (internal_key, target_type, target_id) DO UPDATE SET
			name = EXCLUDED.name, multiplier = EXCLUDED.multiplier, expires_at = EXCLUDED.expires_at
		RETURNING id`,
		b.Name, b.InternalKey, b.Multiplier, b.ExpiresAt, b.TargetType, b.TargetID)
	return row.Scan(&b.ID)
}

func (s *Store) BuffsFor(ctx context.Context, q queryer, targetType BuffTarget, targetID int64) ([]*Buff, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, internal_key, multiplier, expires_at, target_type, target_id
		FROM buffs WHERE target_type = $1 AND target_id = $2`, targetType, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buffs []*Buff
	for rows.Next() {
		b := &Buff{}
		if err := rows.Scan(&b.ID, &b.Name, &b.InternalKey, &b.Multiplier, &b.ExpiresAt, &b.TargetType, &b.TargetID); err != nil {
			return nil, err
		}
		buffs = append(buffs, b)
	}
	return buffs, nil
}

func (s *Store) HasBuff(ctx context.Context, q queryer, targetType BuffTarget, targetID int64, key string) (*Buff, bool, error) {
	b := &Buff{}
	err := q.QueryRowContext(ctx, `
		SELECT id, name, internal_key, multiplier, expires_at, target_type, target_id
		FROM buffs WHERE target_type = $1 AND target_id = $2 AND internal_key = $3`, targetType, targetID, key).Scan(
		&b.ID, &b.Name, &b.InternalKey, &b.Multiplier, &b.ExpiresAt, &b.TargetType, &b.TargetID)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *Store) DeleteExpiredBuffs(ctx context.Context, q queryer, now time.Time) (int64, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM buffs WHERE expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ---- Processed markers --------------------------------------------------------

func (s *Store) IsProcessed(ctx context.Context, q queryer, battleID int64, externalID string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM processed_messages WHERE battle_id = $1 AND external_message_id = $2`,
		battleID, externalID).Scan(&count)
	return count > 0, err
}

func (s *Store) MarkProcessed(ctx context.Context, q queryer, battleID int64, externalID string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO processed_messages (battle_id, external_message_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, battleID, externalID)
	return err
}

// ---- Team info -----------------------------------------------------------------

func (s *Store) TeamName(ctx context.Context, q queryer, team Team) (string, error) {
	var name string
	err := q.QueryRowContext(ctx, `SELECT name FROM team_info WHERE team = $1`, int(team)).Scan(&name)
	if err == sql.ErrNoRows {
		return fmt.Sprintf("team %d", int(team)), nil
	}
	return name, err
}

func (s *Store) SetTeamName(ctx context.Context, q queryer, team Team, name string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO team_info (team, name) VALUES ($1, $2)
		ON CONFLICT (team) DO UPDATE SET name = EXCLUDED.name`, int(team), name)
	return err
}

// Conn exposes the read-only connection for callers (reporting, HTTP
// handlers) that only ever issue SELECTs outside a transaction.
func (s *Store) Conn() queryer { return s.conn() }
