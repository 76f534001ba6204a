package engine

import (
	"testing"

	"github.com/chromabot/referee/internal/world"
)

func TestTranslateTroopType(t *testing.T) {
	cases := []struct {
		raw  string
		want world.TroopType
	}{
		{"infantry", world.TroopInfantry},
		{"cavalry", world.TroopCavalry},
		{"calvary", world.TroopCavalry},
		{"calvalry", world.TroopCavalry},
		{"ranged", world.TroopRanged},
		{"range", world.TroopRanged},
		{"siege", world.TroopInfantry}, // unknown falls back to infantry
		{"", world.TroopInfantry},
	}
	for _, c := range cases {
		t.Run(c.raw, func(t *testing.T) {
			if got := translateTroopType(c.raw); got != c.want {
				t.Errorf("translateTroopType(%q) = %v, want %v", c.raw, got, c.want)
			}
		})
	}
}

func TestRingIndex(t *testing.T) {
	t.Run("FindsEachMember", func(t *testing.T) {
		for i, ty := range attackRing {
			if got := ringIndex(attackRing, ty); got != i {
				t.Errorf("ringIndex(%v) = %d, want %d", ty, got, i)
			}
		}
	})

	t.Run("DefaultsToMiddleSlot", func(t *testing.T) {
		if got := ringIndex(attackRing, world.TroopType("unknown")); got != 1 {
			t.Errorf("ringIndex(unknown) = %d, want 1", got)
		}
	})
}

func TestTypeModifier(t *testing.T) {
	// attackRing = [ranged, infantry, cavalry]; cavalry beats infantry beats
	// ranged beats cavalry, each at 1.5x, the reverse at 0.5x.
	t.Run("AttackRingAdvantage", func(t *testing.T) {
		cases := []struct {
			defender, attacker world.TroopType
			want               float64
		}{
			{world.TroopInfantry, world.TroopRanged, 0.5},  // ranged attacking infantry: infantry's left neighbor
			{world.TroopInfantry, world.TroopCavalry, 1.5}, // cavalry attacking infantry: infantry's right neighbor
			{world.TroopInfantry, world.TroopInfantry, 1.0},
			{world.TroopRanged, world.TroopCavalry, 0.5},
			{world.TroopRanged, world.TroopInfantry, 1.5},
			{world.TroopCavalry, world.TroopInfantry, 0.5},
			{world.TroopCavalry, world.TroopRanged, 1.5},
		}
		for _, c := range cases {
			if got := typeModifier(attackRing, c.defender, c.attacker); got != c.want {
				t.Errorf("typeModifier(attackRing, defender=%v, attacker=%v) = %v, want %v",
					c.defender, c.attacker, got, c.want)
			}
		}
	})

	t.Run("SupportRingIsReversed", func(t *testing.T) {
		// supportRing reverses the ring order, so the advantage relationship
		// between the same two types flips relative to attackRing.
		attack := typeModifier(attackRing, world.TroopInfantry, world.TroopRanged)
		support := typeModifier(supportRing, world.TroopInfantry, world.TroopRanged)
		if attack == support {
			t.Errorf("expected attackRing and supportRing modifiers to differ for the same pair, both = %v", attack)
		}
	})
}

func TestAdjustedAmount(t *testing.T) {
	t.Run("NoBuffs", func(t *testing.T) {
		s := &world.SkirmishAction{Amount: 100}
		if got := adjustedAmount(s); got != 100 {
			t.Errorf("adjustedAmount() = %d, want 100", got)
		}
	})

	t.Run("SingleBuffStacksAdditively", func(t *testing.T) {
		s := &world.SkirmishAction{
			Amount: 100,
			Buffs:  []*world.Buff{{Multiplier: 0.5}},
		}
		if got := adjustedAmount(s); got != 150 {
			t.Errorf("adjustedAmount() = %d, want 150", got)
		}
	})

	t.Run("MultipleBuffsSum", func(t *testing.T) {
		s := &world.SkirmishAction{
			Amount: 100,
			Buffs: []*world.Buff{
				{Multiplier: 0.25},
				{Multiplier: 0.25},
			},
		}
		if got := adjustedAmount(s); got != 150 {
			t.Errorf("adjustedAmount() = %d, want 150", got)
		}
	})
}
