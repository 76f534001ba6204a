package world

import "time"

// Team identifies one of the two factions.
type Team int

const (
	TeamNone Team = -1
	Team0    Team = 0
	Team1    Team = 1
)

// Other возвращает противоположную команду.
func (t Team) Other() Team {
	switch t {
	case Team0:
		return Team1
	case Team1:
		return Team0
	default:
		return TeamNone
	}
}

// Region представляет узел графа мира.
type Region struct {
	ID               int64     `json:"id" db:"id"`
	Name             string    `json:"name" db:"name"` // lowercase, unique
	SRName           string    `json:"srname" db:"srname"`
	Owner            Team      `json:"owner" db:"owner"`
	IsCapitalOf      Team      `json:"is_capital_of" db:"is_capital_of"`
	IsEternal        bool      `json:"is_eternal" db:"is_eternal"`
	TravelMultiplier float64   `json:"travel_multiplier" db:"travel_multiplier"`
	Aliases          []string  `json:"aliases" db:"-"`
	Borders          []int64   `json:"borders" db:"-"` // region ids, always symmetric
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// HasBorder проверяет наличие прямой границы с регионом dest.
func (r *Region) HasBorder(destID int64) bool {
	for _, id := range r.Borders {
		if id == destID {
			return true
		}
	}
	return false
}

// Player представляет лоялиста-командира в игре.
type Player struct {
	ID                 int64             `json:"id" db:"id"`
	Name               string            `json:"name" db:"name"` // lowercase
	Team               Team              `json:"team" db:"team"`
	Loyalists          int               `json:"loyalists" db:"loyalists"`
	CommittedLoyalists int               `json:"committed_loyalists" db:"committed_loyalists"`
	RegionID           int64             `json:"region_id" db:"region_id"`
	Sector             int               `json:"sector" db:"sector"`
	Leader             bool              `json:"leader" db:"leader"`
	Defectable         bool              `json:"defectable" db:"defectable"`
	RecruitedAt        time.Time         `json:"recruited_at" db:"recruited_at"`
	Codewords          map[string]string `json:"codewords" db:"-"` // code -> word
}

// AvailableLoyalists возвращает число не задействованных в боях лоялистов.
func (p *Player) AvailableLoyalists() int {
	n := p.Loyalists - p.CommittedLoyalists
	if n < 0 {
		return 0
	}
	return n
}

// MarchingOrder представляет один переход в цепочке движения игрока.
type MarchingOrder struct {
	ID          int64     `json:"id" db:"id"`
	PlayerID    int64     `json:"player_id" db:"player_id"`
	SourceID    int64     `json:"source_id" db:"source_id"`
	DestID      int64     `json:"dest_id" db:"dest_id"`
	DestSector  int       `json:"dest_sector" db:"dest_sector"`
	ArrivalTime time.Time `json:"arrival_time" db:"arrival_time"`
	Sequence    int       `json:"sequence" db:"sequence"` // position within the chain, 0 = head
}

// BattleState представляет фазу боя.
type BattleState string

const (
	BattleScheduled BattleState = "scheduled"
	BattleOpen      BattleState = "open"
	BattleResolved  BattleState = "resolved"
)

// Battle представляет назначенный или идущий бой за регион.
type Battle struct {
	ID              int64       `json:"id" db:"id"`
	RegionID        int64       `json:"region_id" db:"region_id"`
	BeginsAt        time.Time   `json:"begins_at" db:"begins_at"`
	DisplayEndsAt   time.Time   `json:"display_ends_at" db:"display_ends_at"`
	EndsAt          time.Time   `json:"ends_at" db:"ends_at"`
	SubmissionID    string      `json:"submission_id" db:"submission_id"` // forum thread id
	LockoutSeconds  int         `json:"lockout_seconds" db:"lockout_seconds"`
	ResolvedScore0  int         `json:"resolved_score0" db:"resolved_score0"`
	ResolvedScore1  int         `json:"resolved_score1" db:"resolved_score1"`
	Victor          Team        `json:"victor" db:"victor"`
}

// State рассчитывает текущее состояние боя относительно времени now.
func (b *Battle) State(now time.Time) BattleState {
	if now.Before(b.BeginsAt) || b.SubmissionID == "" {
		return BattleScheduled
	}
	if !now.Before(b.EndsAt) {
		return BattleResolved
	}
	return BattleOpen
}

// TroopType представляет род войск в столкновении.
type TroopType string

const (
	TroopInfantry TroopType = "infantry"
	TroopCavalry  TroopType = "cavalry"
	TroopRanged   TroopType = "ranged"
)

// SkirmishAction представляет узел дерева разрешения боя.
type SkirmishAction struct {
	ID          int64      `json:"id" db:"id"`
	BattleID    int64      `json:"battle_id" db:"battle_id"`
	ParentID    *int64     `json:"parent_id" db:"parent_id"`
	CommentID   string     `json:"comment_id" db:"comment_id"` // forum comment this skirmish was posted as
	PlayerID    int64      `json:"player_id" db:"player_id"`
	Amount      int        `json:"amount" db:"amount"`
	TroopType   TroopType  `json:"troop_type" db:"troop_type"`
	Hinder      bool       `json:"hinder" db:"hinder"`
	EndsAt      *time.Time `json:"ends_at" db:"ends_at"`
	Resolved    bool       `json:"resolved" db:"resolved"`
	Victor      Team       `json:"victor" db:"victor"`
	VP          int        `json:"vp" db:"vp"`
	Margin      int        `json:"margin" db:"margin"`
	Unopposed   bool       `json:"unopposed" db:"unopposed"`

	// in-memory only, populated by the forest loader for one resolution pass
	Children     []*SkirmishAction `json:"-" db:"-"`
	ParticipantTeam Team           `json:"-" db:"-"`
	Buffs        []*Buff           `json:"-" db:"-"`
}

// BuffTarget идентифицирует владельца баффа.
type BuffTarget string

const (
	BuffTargetRegion   BuffTarget = "region"
	BuffTargetSkirmish BuffTarget = "skirmish"
)

// Buff представляет именованный, опционально истекающий модификатор.
type Buff struct {
	ID         int64      `json:"id" db:"id"`
	Name       string     `json:"name" db:"name"`
	InternalKey string    `json:"internal_key" db:"internal_key"`
	Multiplier float64    `json:"multiplier" db:"multiplier"`
	ExpiresAt  *time.Time `json:"expires_at" db:"expires_at"`
	TargetType BuffTarget `json:"target_type" db:"target_type"`
	TargetID   int64      `json:"target_id" db:"target_id"`
}

// Expired проверяет, истёк ли бафф к моменту now.
func (b *Buff) Expired(now time.Time) bool {
	return b.ExpiresAt != nil && !b.ExpiresAt.After(now)
}

// Named buff keys used throughout the battle engine.
const (
	BuffKeyFirstStrike = "first_strike"
	BuffKeyOTD         = "otd"
	BuffKeyFortified   = "fortified"
)

// Codeword represents a player's private vocabulary entry.
type Codeword struct {
	ID       int64  `json:"id" db:"id"`
	PlayerID int64  `json:"player_id" db:"player_id"`
	Code     string `json:"code" db:"code"`
	Word     string `json:"word" db:"word"`
}

// Processed — дедупликация обработанных внешних сообщений форума.
type Processed struct {
	BattleID         int64  `json:"battle_id" db:"battle_id"`
	ExternalMessageID string `json:"external_message_id" db:"external_message_id"`
}

// TeamInfo holds the display label for a side, mirroring the original
// chromabot teaminfo table.
type TeamInfo struct {
	Team Team   `json:"team" db:"team"`
	Name string `json:"name" db:"name"` // e.g. "orangered", "periwinkle"
}
