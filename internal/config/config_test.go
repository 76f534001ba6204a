package config

import (
	"os"
	"testing"
)

func TestLoadAppliesEnvOverrides(t *testing.T) {
	os.Setenv("DB_HOST", "db.internal")
	os.Setenv("DB_USER", "ref")
	os.Setenv("DB_NAME", "refereedb")
	os.Setenv("JWT_SECRET", "test-secret")
	os.Setenv("GAME_LEADERS", "alice,bob")
	defer func() {
		os.Unsetenv("DB_HOST")
		os.Unsetenv("DB_USER")
		os.Unsetenv("DB_NAME")
		os.Unsetenv("JWT_SECRET")
		os.Unsetenv("GAME_LEADERS")
	}()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Host != "db.internal" {
		t.Errorf("Database.Host = %q, want db.internal", cfg.Database.Host)
	}
	if len(cfg.Game.Leaders) != 2 || cfg.Game.Leaders[0] != "alice" {
		t.Errorf("Game.Leaders = %v, want [alice bob]", cfg.Game.Leaders)
	}
	if len(cfg.Game.Sides) != 2 {
		t.Errorf("Game.Sides = %v, want 2 default sides", cfg.Game.Sides)
	}
}

func TestLoadMissingRequiredFields(t *testing.T) {
	os.Unsetenv("DB_HOST")
	os.Setenv("DB_USER", "")
	os.Setenv("JWT_SECRET", "")
	defer os.Unsetenv("JWT_SECRET")

	if _, err := Load(""); err == nil {
		t.Fatal("Load() expected validation error for missing JWT secret, got nil")
	}
}

func TestHomelandDefensePercents(t *testing.T) {
	g := GameConfig{HomelandDefense: "25/10/5"}
	got := g.HomelandDefensePercents()
	want := []float64{0.25, 0.10, 0.05}
	if len(got) != len(want) {
		t.Fatalf("HomelandDefensePercents() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("HomelandDefensePercents()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
