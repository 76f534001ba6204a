package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/chromabot/referee/internal/world"
)

// token is one lexeme of a command line; quoted preserves whether it came
// from a "double quoted" segment, for LOC and codeword word literals.
type token struct {
	text   string
	quoted bool
}

func tokenize(s string) []token {
	var tokens []token
	runes := []rune(s)
	i := 0
	for i < len(runes) {
		for i < len(runes) && isSpace(runes[i]) {
			i++
		}
		if i >= len(runes) {
			break
		}
		if runes[i] == '"' {
			j := i + 1
			for j < len(runes) && runes[j] != '"' {
				j++
			}
			tokens = append(tokens, token{text: string(runes[i+1 : j]), quoted: true})
			if j < len(runes) {
				j++
			}
			i = j
			continue
		}
		j := i
		for j < len(runes) && !isSpace(runes[j]) {
			j++
		}
		tokens = append(tokens, token{text: string(runes[i:j])})
		i = j
	}
	return tokens
}

func isSpace(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }

// ParseCommand parses one line of player command text per the grammar and
// resolves any location references against the world store. Resolution
// needs store access (region lookups by name or alias), so parsing and
// resolving happen in the same pass rather than as two phases.
func ParseCommand(ctx context.Context, tx *sql.Tx, store *world.Store, text string) (Command, error) {
	toks := tokenize(text)
	if len(toks) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	head := strings.ToLower(toks[0].text)
	rest := toks[1:]

	switch head {
	case "status":
		return StatusCommand{}, nil
	case "lands":
		if len(rest) > 0 && strings.ToLower(rest[0].text) == "status" {
			return LandsStatusCommand{}, nil
		}
		return nil, fmt.Errorf("unknown command: %s", text)
	case "stop":
		return StopCommand{}, nil
	case "extract":
		return ExtractCommand{}, nil
	case "time":
		return TimeCommand{}, nil
	case "defect":
		return DefectCommand{}, nil
	case "invade":
		if len(rest) == 0 {
			return nil, fmt.Errorf("invade requires a destination")
		}
		return InvadeCommand{RegionName: normalizeLoc(joinTokens(rest))}, nil
	case "promote":
		if len(rest) == 0 {
			return nil, fmt.Errorf("promote requires a name")
		}
		return PromoteCommand{TargetName: strings.ToLower(rest[0].text)}, nil
	case "demote":
		if len(rest) == 0 {
			return nil, fmt.Errorf("demote requires a name")
		}
		return DemoteCommand{TargetName: strings.ToLower(rest[0].text)}, nil
	case "codeword":
		return parseCodeword(rest)
	case "lead", "move":
		return parseMove(ctx, tx, store, head, rest)
	case "attack", "oppose", "support":
		return parseSkirmishCmd(head, rest)
	}
	return nil, fmt.Errorf("unknown command: %s", head)
}

func joinTokens(toks []token) string {
	parts := make([]string, len(toks))
	for i, t := range toks {
		parts[i] = t.text
	}
	return strings.Join(parts, " ")
}

func normalizeLoc(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 3 && strings.EqualFold(s[:3], "/r/") {
		s = s[3:]
	}
	return strings.ToLower(s)
}

// translateTroopAlias resolves a troop-type token, including grammar
// aliases (range→ranged, calvary/calvalry→cavalry), to the canonical name
// expected by BattleService. It is a thin wrapper so the parser never
// constructs world.TroopType directly.
func translateTroopAlias(raw string) string {
	switch strings.ToLower(raw) {
	case "range":
		return "ranged"
	case "calvary", "calvalry":
		return "cavalry"
	default:
		return strings.ToLower(raw)
	}
}

// parseCodeword handles:
//
//	codeword remove (all|"CODE")
//	codeword status ["CODE"]
//	codeword "CODE" is (TROOP|"WORD")
func parseCodeword(rest []token) (Command, error) {
	if len(rest) == 0 {
		return CodewordCommand{Clear: false}, nil
	}
	switch strings.ToLower(rest[0].text) {
	case "remove":
		if len(rest) < 2 {
			return nil, fmt.Errorf("codeword remove requires all or a code")
		}
		if strings.ToLower(rest[1].text) == "all" {
			return CodewordCommand{Clear: true}, nil
		}
		return CodewordCommand{Code: strings.ToLower(rest[1].text), Clear: true}, nil
	case "status":
		code := ""
		if len(rest) > 1 {
			code = strings.ToLower(rest[1].text)
		}
		return CodewordCommand{Code: code}, nil
	default:
		code := strings.ToLower(rest[0].text)
		if len(rest) < 3 || strings.ToLower(rest[1].text) != "is" {
			return nil, fmt.Errorf("codeword %q requires \"is\" TROOP|WORD", code)
		}
		return CodewordCommand{Code: code, Word: translateTroopAlias(rest[2].text)}, nil
	}
}

// parseSkirmishCmd handles:
//
//	(attack|oppose|support) ["#" NUM] with NUM [TROOP|"CODEWORD"]
//
// The "#" NUM is the parent skirmish's comment id. When it is omitted, the
// command opens a new root skirmish rather than reacting to one, since a
// root has no parent by definition (see SkirmishAction's invariants).
func parseSkirmishCmd(head string, rest []token) (Command, error) {
	parentID := ""
	i := 0
	if i < len(rest) && strings.HasPrefix(rest[i].text, "#") {
		parentID = strings.TrimPrefix(rest[i].text, "#")
		i++
	}
	if i >= len(rest) || strings.ToLower(rest[i].text) != "with" {
		return nil, fmt.Errorf("%s requires \"with\" NUM [TROOP]", head)
	}
	i++
	if i >= len(rest) {
		return nil, fmt.Errorf("%s requires an amount", head)
	}
	amount, err := strconv.Atoi(rest[i].text)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", rest[i].text, err)
	}
	i++
	troopType := "infantry"
	if i < len(rest) {
		troopType = translateTroopAlias(rest[i].text)
	}

	if parentID == "" {
		return SkirmishCommand{Amount: amount, TroopType: troopType}, nil
	}

	switch head {
	case "attack", "oppose":
		return AttackCommand{ParentCommentID: parentID, Amount: amount, TroopType: troopType}, nil
	default:
		return SupportCommand{ParentCommentID: parentID, Amount: amount, TroopType: troopType}, nil
	}
}

// parseMove handles:
//
//	lead (NUM|all)? to DEST ("," DEST)*
//
// "move" is accepted as a synonym of "lead"; the grammar in §6 only lists
// "lead", but the engine's command set keeps both as distinct Command
// variants (see command.go), so the parser must pick one deterministically.
func parseMove(ctx context.Context, tx *sql.Tx, store *world.Store, head string, rest []token) (Command, error) {
	i := 0
	count := -1
	if i < len(rest) && strings.ToLower(rest[i].text) != "to" {
		if strings.ToLower(rest[i].text) == "all" {
			count = -1
		} else {
			n, err := strconv.Atoi(rest[i].text)
			if err != nil {
				return nil, fmt.Errorf("invalid troop count %q: %w", rest[i].text, err)
			}
			count = n
		}
		i++
	}
	if i >= len(rest) || strings.ToLower(rest[i].text) != "to" {
		return nil, fmt.Errorf("%s requires \"to\" DEST", head)
	}
	i++
	if i >= len(rest) {
		return nil, fmt.Errorf("%s requires at least one destination", head)
	}

	destText := joinTokens(rest[i:])
	segments := strings.Split(destText, ",")
	path := make([]Hop, 0, len(segments))
	for _, seg := range segments {
		hop, err := parseDest(ctx, tx, store, seg)
		if err != nil {
			return nil, err
		}
		path = append(path, hop)
	}

	if head == "move" {
		return MoveCommand{Count: count, Path: path}, nil
	}
	return LeadCommand{Count: count, Path: path}, nil
}

// parseDest resolves one DEST segment (LOC ["#" NUM] | "#" NUM | "*") into a
// Hop. The sector-only and wildcard forms need a caller-supplied "current
// region" to mean anything; since the parser runs ahead of knowing which
// player issued the command in some call sites, those two forms are
// rejected here rather than guessed at. Callers that need them should
// resolve LOC explicitly in the command text.
func parseDest(ctx context.Context, tx *sql.Tx, store *world.Store, seg string) (Hop, error) {
	seg = strings.TrimSpace(seg)
	if seg == "" {
		return Hop{}, fmt.Errorf("empty destination")
	}
	if seg == "*" {
		return Hop{}, fmt.Errorf("wildcard destination (\"*\") is not supported; name the region explicitly")
	}

	locPart := seg
	sector := -1
	if idx := strings.LastIndex(seg, "#"); idx >= 0 {
		numPart := strings.TrimSpace(seg[idx+1:])
		n, err := strconv.Atoi(numPart)
		if err != nil {
			return Hop{}, fmt.Errorf("invalid sector %q: %w", numPart, err)
		}
		sector = n
		locPart = strings.TrimSpace(seg[:idx])
	}
	if locPart == "" {
		return Hop{}, fmt.Errorf("sector-only destination (\"#%d\") is not supported; name the region explicitly", sector)
	}

	region, err := store.GetRegionByName(ctx, tx, normalizeLoc(locPart))
	if err != nil {
		return Hop{}, fmt.Errorf("unknown region %q", locPart)
	}
	if sector >= 0 {
		return Hop{RegionID: region.ID, DestSector: sector, HasSector: true}, nil
	}
	return Hop{RegionID: region.ID}, nil
}
