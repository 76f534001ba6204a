package engine

// Command is the marker interface implemented by every parsed player
// command, per the grammar in §6.
type Command interface {
	commandName() string
}

// StatusCommand reports the issuing player's own status.
type StatusCommand struct{}

func (StatusCommand) commandName() string { return "status" }

// LandsStatusCommand reports the world-wide region ownership view.
type LandsStatusCommand struct{}

func (LandsStatusCommand) commandName() string { return "lands status" }

// MoveCommand schedules (or immediately applies) a movement chain.
type MoveCommand struct {
	Count int // -1 means "all available"
	Path  []Hop
}

func (MoveCommand) commandName() string { return "move" }

// LeadCommand is an alias of MoveCommand historically reserved for leaders
// pulling loyalists along; carries the same payload.
type LeadCommand struct {
	Count int
	Path  []Hop
}

func (LeadCommand) commandName() string { return "lead" }

// StopCommand cancels the issuer's pending marching orders in place.
type StopCommand struct{}

func (StopCommand) commandName() string { return "stop" }

// ExtractCommand evacuates the issuer to their capital.
type ExtractCommand struct{}

func (ExtractCommand) commandName() string { return "extract" }

// InvadeCommand opens a new battle over a region.
type InvadeCommand struct {
	RegionName string
}

func (InvadeCommand) commandName() string { return "invade" }

// SkirmishCommand opens a root skirmish in the issuer's current battle.
type SkirmishCommand struct {
	Amount    int
	TroopType string
}

func (SkirmishCommand) commandName() string { return "skirmish" }

// AttackCommand opens a hindering child skirmish under a parent.
type AttackCommand struct {
	ParentCommentID string
	Amount          int
	TroopType       string
}

func (AttackCommand) commandName() string { return "attack" }

// SupportCommand opens a supporting child skirmish under a parent.
type SupportCommand struct {
	ParentCommentID string
	Amount          int
	TroopType       string
}

func (SupportCommand) commandName() string { return "support" }

// OpposeCommand is an alias of AttackCommand used by some forum threads.
type OpposeCommand struct {
	ParentCommentID string
	Amount          int
	TroopType       string
}

func (OpposeCommand) commandName() string { return "oppose" }

// DefectCommand switches the issuer's team, when eligible.
type DefectCommand struct{}

func (DefectCommand) commandName() string { return "defect" }

// PromoteCommand grants leadership to a named player on the issuer's team.
type PromoteCommand struct {
	TargetName string
}

func (PromoteCommand) commandName() string { return "promote" }

// DemoteCommand revokes leadership from a named player.
type DemoteCommand struct {
	TargetName string
}

func (DemoteCommand) commandName() string { return "demote" }

// CodewordCommand sets or clears one of the issuer's private codewords.
type CodewordCommand struct {
	Code  string
	Word  string // empty for the remove and status forms, which set nothing
	Clear bool   // with an empty Code, removes every codeword
}

func (CodewordCommand) commandName() string { return "codeword" }

// TimeCommand reports the current server time, mostly for debugging.
type TimeCommand struct{}

func (TimeCommand) commandName() string { return "time" }
