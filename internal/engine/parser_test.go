package engine

import "testing"

func TestTokenize(t *testing.T) {
	t.Run("SplitsOnWhitespace", func(t *testing.T) {
		toks := tokenize("lead 10 to riverside")
		want := []string{"lead", "10", "to", "riverside"}
		if len(toks) != len(want) {
			t.Fatalf("got %d tokens, want %d: %v", len(toks), len(want), toks)
		}
		for i, w := range want {
			if toks[i].text != w {
				t.Errorf("token %d = %q, want %q", i, toks[i].text, w)
			}
		}
	})

	t.Run("PreservesQuotedSegments", func(t *testing.T) {
		toks := tokenize(`codeword foo is "the eagle flies"`)
		if len(toks) != 4 {
			t.Fatalf("got %d tokens, want 4: %v", len(toks), toks)
		}
		if toks[3].text != "the eagle flies" {
			t.Errorf("quoted token = %q, want %q", toks[3].text, "the eagle flies")
		}
		if !toks[3].quoted {
			t.Errorf("expected quoted token to be marked quoted")
		}
	})

	t.Run("EmptyInput", func(t *testing.T) {
		if toks := tokenize("   "); len(toks) != 0 {
			t.Errorf("got %d tokens for blank input, want 0", len(toks))
		}
	})
}

func TestNormalizeLoc(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Riverside", "riverside"},
		{"/r/Riverside", "riverside"},
		{"/R/Riverside", "riverside"},
		{"  riverside  ", "riverside"},
	}
	for _, c := range cases {
		if got := normalizeLoc(c.in); got != c.want {
			t.Errorf("normalizeLoc(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestTranslateTroopAlias(t *testing.T) {
	cases := []struct{ in, want string }{
		{"range", "ranged"},
		{"calvary", "cavalry"},
		{"calvalry", "cavalry"},
		{"Infantry", "infantry"},
		{"RANGED", "ranged"},
	}
	for _, c := range cases {
		if got := translateTroopAlias(c.in); got != c.want {
			t.Errorf("translateTroopAlias(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

// parseNoStore exercises ParseCommand with nil ctx/tx/store, which is safe
// for every command variant that never resolves a region name.
func parseNoStore(t *testing.T, text string) Command {
	t.Helper()
	cmd, err := ParseCommand(nil, nil, nil, text)
	if err != nil {
		t.Fatalf("ParseCommand(%q) returned error: %v", text, err)
	}
	return cmd
}

func TestParseCommandSimpleVariants(t *testing.T) {
	t.Run("Status", func(t *testing.T) {
		if _, ok := parseNoStore(t, "status").(StatusCommand); !ok {
			t.Errorf("expected StatusCommand")
		}
	})

	t.Run("LandsStatus", func(t *testing.T) {
		if _, ok := parseNoStore(t, "lands status").(LandsStatusCommand); !ok {
			t.Errorf("expected LandsStatusCommand")
		}
	})

	t.Run("Stop", func(t *testing.T) {
		if _, ok := parseNoStore(t, "stop").(StopCommand); !ok {
			t.Errorf("expected StopCommand")
		}
	})

	t.Run("Extract", func(t *testing.T) {
		if _, ok := parseNoStore(t, "extract").(ExtractCommand); !ok {
			t.Errorf("expected ExtractCommand")
		}
	})

	t.Run("Time", func(t *testing.T) {
		if _, ok := parseNoStore(t, "time").(TimeCommand); !ok {
			t.Errorf("expected TimeCommand")
		}
	})

	t.Run("Defect", func(t *testing.T) {
		if _, ok := parseNoStore(t, "defect").(DefectCommand); !ok {
			t.Errorf("expected DefectCommand")
		}
	})

	t.Run("Promote", func(t *testing.T) {
		cmd, ok := parseNoStore(t, "promote Bob").(PromoteCommand)
		if !ok {
			t.Fatalf("expected PromoteCommand")
		}
		if cmd.TargetName != "bob" {
			t.Errorf("TargetName = %q, want %q", cmd.TargetName, "bob")
		}
	})

	t.Run("Demote", func(t *testing.T) {
		cmd, ok := parseNoStore(t, "demote Bob").(DemoteCommand)
		if !ok {
			t.Fatalf("expected DemoteCommand")
		}
		if cmd.TargetName != "bob" {
			t.Errorf("TargetName = %q, want %q", cmd.TargetName, "bob")
		}
	})

	t.Run("UnknownCommand", func(t *testing.T) {
		if _, err := ParseCommand(nil, nil, nil, "frobnicate"); err == nil {
			t.Errorf("expected an error for an unknown command")
		}
	})

	t.Run("EmptyCommand", func(t *testing.T) {
		if _, err := ParseCommand(nil, nil, nil, "   "); err == nil {
			t.Errorf("expected an error for an empty command")
		}
	})
}

func TestParseCommandCodeword(t *testing.T) {
	t.Run("Bare", func(t *testing.T) {
		cmd, ok := parseNoStore(t, "codeword").(CodewordCommand)
		if !ok {
			t.Fatalf("expected CodewordCommand")
		}
		if cmd.Clear {
			t.Errorf("bare codeword should not clear")
		}
	})

	t.Run("RemoveAll", func(t *testing.T) {
		cmd, ok := parseNoStore(t, "codeword remove all").(CodewordCommand)
		if !ok {
			t.Fatalf("expected CodewordCommand")
		}
		if !cmd.Clear || cmd.Code != "" {
			t.Errorf("got %+v, want Clear=true, Code=\"\"", cmd)
		}
	})

	t.Run("RemoveOne", func(t *testing.T) {
		cmd, ok := parseNoStore(t, "codeword remove red").(CodewordCommand)
		if !ok {
			t.Fatalf("expected CodewordCommand")
		}
		if !cmd.Clear || cmd.Code != "red" {
			t.Errorf("got %+v, want Clear=true, Code=\"red\"", cmd)
		}
	})

	t.Run("StatusAll", func(t *testing.T) {
		cmd, ok := parseNoStore(t, "codeword status").(CodewordCommand)
		if !ok {
			t.Fatalf("expected CodewordCommand")
		}
		if cmd.Clear || cmd.Code != "" {
			t.Errorf("got %+v, want Clear=false, Code=\"\"", cmd)
		}
	})

	t.Run("StatusOne", func(t *testing.T) {
		cmd, ok := parseNoStore(t, "codeword status red").(CodewordCommand)
		if !ok {
			t.Fatalf("expected CodewordCommand")
		}
		if cmd.Code != "red" {
			t.Errorf("Code = %q, want %q", cmd.Code, "red")
		}
	})

	t.Run("AssignTroopAlias", func(t *testing.T) {
		cmd, ok := parseNoStore(t, "codeword red is range").(CodewordCommand)
		if !ok {
			t.Fatalf("expected CodewordCommand")
		}
		if cmd.Code != "red" || cmd.Word != "ranged" {
			t.Errorf("got %+v, want Code=\"red\", Word=\"ranged\"", cmd)
		}
	})

	t.Run("AssignMissingIs", func(t *testing.T) {
		if _, err := ParseCommand(nil, nil, nil, "codeword red foo"); err == nil {
			t.Errorf("expected an error for a missing \"is\"")
		}
	})
}

func TestParseCommandSkirmish(t *testing.T) {
	t.Run("RootAttackHasNoParent", func(t *testing.T) {
		cmd, ok := parseNoStore(t, "attack with 50 cavalry").(SkirmishCommand)
		if !ok {
			t.Fatalf("expected a root SkirmishCommand")
		}
		if cmd.Amount != 50 || cmd.TroopType != "cavalry" {
			t.Errorf("got %+v, want Amount=50, TroopType=\"cavalry\"", cmd)
		}
	})

	t.Run("RootSupportHasNoParent", func(t *testing.T) {
		cmd, ok := parseNoStore(t, "support with 20").(SkirmishCommand)
		if !ok {
			t.Fatalf("expected a root SkirmishCommand")
		}
		if cmd.Amount != 20 || cmd.TroopType != "infantry" {
			t.Errorf("got %+v, want Amount=20, TroopType=\"infantry\" (default)", cmd)
		}
	})

	t.Run("AttackWithParentIsChildReaction", func(t *testing.T) {
		cmd, ok := parseNoStore(t, "attack #42 with 30 ranged").(AttackCommand)
		if !ok {
			t.Fatalf("expected AttackCommand")
		}
		if cmd.ParentCommentID != "42" || cmd.Amount != 30 || cmd.TroopType != "ranged" {
			t.Errorf("got %+v", cmd)
		}
	})

	t.Run("OpposeWithParentIsChildReaction", func(t *testing.T) {
		cmd, ok := parseNoStore(t, "oppose #7 with 15").(AttackCommand)
		if !ok {
			t.Fatalf("expected AttackCommand")
		}
		if cmd.ParentCommentID != "7" {
			t.Errorf("ParentCommentID = %q, want %q", cmd.ParentCommentID, "7")
		}
	})

	t.Run("SupportWithParentIsChildReaction", func(t *testing.T) {
		cmd, ok := parseNoStore(t, "support #7 with 15 cavalry").(SupportCommand)
		if !ok {
			t.Fatalf("expected SupportCommand")
		}
		if cmd.ParentCommentID != "7" || cmd.TroopType != "cavalry" {
			t.Errorf("got %+v", cmd)
		}
	})

	t.Run("MissingWithKeyword", func(t *testing.T) {
		if _, err := ParseCommand(nil, nil, nil, "attack 50"); err == nil {
			t.Errorf("expected an error for a missing \"with\"")
		}
	})

	t.Run("InvalidAmount", func(t *testing.T) {
		if _, err := ParseCommand(nil, nil, nil, "attack with many"); err == nil {
			t.Errorf("expected an error for a non-numeric amount")
		}
	})
}
