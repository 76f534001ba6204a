package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/chromabot/referee/internal/config"
	"github.com/chromabot/referee/pkg/database"
)

func main() {
	var (
		configPath = flag.String("config", "config.json", "Path to config file")
		action     = flag.String("action", "up", "Migration action: up, down, status")
		version    = flag.String("version", "", "Migration version for down action")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	switch *action {
	case "up":
		if err := runMigrations(db); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		fmt.Println("migrations completed successfully")
	case "down":
		if *version == "" {
			log.Fatal("version is required for down migration")
		}
		if err := rollbackMigration(db, *version); err != nil {
			log.Fatalf("failed to rollback migration: %v", err)
		}
		fmt.Printf("migration %s rolled back successfully\n", *version)
	case "status":
		if err := showMigrationStatus(db); err != nil {
			log.Fatalf("failed to show migration status: %v", err)
		}
	default:
		log.Fatalf("unknown action: %s", *action)
	}
}

func runMigrations(db *database.Database) error {
	createMigrationsTable := `
		CREATE TABLE IF NOT EXISTS migrations (
			id SERIAL PRIMARY KEY,
			version VARCHAR(255) UNIQUE NOT NULL,
			description TEXT,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := db.Exec(createMigrationsTable); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	appliedMigrations, err := getAppliedMigrations(db)
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, migration := range getMigrations() {
		if _, applied := appliedMigrations[migration.Version]; applied {
			fmt.Printf("migration %s already applied\n", migration.Version)
			continue
		}

		fmt.Printf("running migration %s: %s\n", migration.Version, migration.Description)
		if _, err := db.Exec(migration.SQL); err != nil {
			return fmt.Errorf("run migration %s: %w", migration.Version, err)
		}

		if _, err := db.Exec(`INSERT INTO migrations (version, description) VALUES ($1, $2)`,
			migration.Version, migration.Description); err != nil {
			return fmt.Errorf("record migration %s: %w", migration.Version, err)
		}
		fmt.Printf("migration %s completed\n", migration.Version)
	}

	return nil
}

func rollbackMigration(db *database.Database, version string) error {
	migration, exists := getMigrationByVersion(version)
	if !exists {
		return fmt.Errorf("migration %s not found", version)
	}

	fmt.Printf("rolling back migration %s: %s\n", migration.Version, migration.Description)

	if migration.RollbackSQL != "" {
		if _, err := db.Exec(migration.RollbackSQL); err != nil {
			return fmt.Errorf("rollback migration %s: %w", migration.Version, err)
		}
	}

	if _, err := db.Exec("DELETE FROM migrations WHERE version = $1", version); err != nil {
		return fmt.Errorf("remove migration record %s: %w", migration.Version, err)
	}
	return nil
}

func showMigrationStatus(db *database.Database) error {
	appliedMigrations, err := getAppliedMigrations(db)
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	fmt.Println("migration status:")
	fmt.Println("==================")
	for _, migration := range getMigrations() {
		status := "not applied"
		if _, applied := appliedMigrations[migration.Version]; applied {
			status = "applied"
		}
		fmt.Printf("[%s] %s: %s\n", status, migration.Version, migration.Description)
	}
	return nil
}

func getAppliedMigrations(db *database.Database) (map[string]bool, error) {
	rows, err := db.Query("SELECT version FROM migrations ORDER BY applied_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// Migration описывает одну схемную миграцию и её откат.
type Migration struct {
	Version     string
	Description string
	SQL         string
	RollbackSQL string
}

func getMigrations() []Migration {
	return []Migration{
		{
			Version:     "001_world",
			Description: "regions, borders, aliases, and team names",
			SQL: `
				CREATE TABLE IF NOT EXISTS regions (
					id SERIAL PRIMARY KEY,
					name VARCHAR(100) UNIQUE NOT NULL,
					srname VARCHAR(20) NOT NULL DEFAULT '',
					owner INTEGER NOT NULL DEFAULT -1,
					is_capital_of INTEGER NOT NULL DEFAULT -1,
					is_eternal BOOLEAN NOT NULL DEFAULT false,
					travel_multiplier DOUBLE PRECISION NOT NULL DEFAULT 1.0,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
				);

				CREATE TABLE IF NOT EXISTS region_borders (
					left_id INTEGER NOT NULL REFERENCES regions(id) ON DELETE CASCADE,
					right_id INTEGER NOT NULL REFERENCES regions(id) ON DELETE CASCADE,
					PRIMARY KEY (left_id, right_id)
				);

				CREATE TABLE IF NOT EXISTS region_aliases (
					region_id INTEGER NOT NULL REFERENCES regions(id) ON DELETE CASCADE,
					alias VARCHAR(100) NOT NULL,
					PRIMARY KEY (region_id, alias)
				);

				CREATE TABLE IF NOT EXISTS team_info (
					team INTEGER PRIMARY KEY,
					name VARCHAR(100) NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_regions_owner ON regions(owner);
				CREATE INDEX IF NOT EXISTS idx_region_borders_right ON region_borders(right_id);
			`,
			RollbackSQL: `
				DROP TABLE IF EXISTS team_info;
				DROP TABLE IF EXISTS region_aliases;
				DROP TABLE IF EXISTS region_borders;
				DROP TABLE IF EXISTS regions;
			`,
		},
		{
			Version:     "002_players",
			Description: "players, codewords, and marching orders",
			SQL: `
				CREATE TABLE IF NOT EXISTS players (
					id SERIAL PRIMARY KEY,
					name VARCHAR(100) UNIQUE NOT NULL,
					team INTEGER NOT NULL DEFAULT -1,
					loyalists INTEGER NOT NULL DEFAULT 0,
					committed_loyalists INTEGER NOT NULL DEFAULT 0,
					region_id INTEGER NOT NULL REFERENCES regions(id),
					sector INTEGER NOT NULL DEFAULT 0,
					leader BOOLEAN NOT NULL DEFAULT false,
					defectable BOOLEAN NOT NULL DEFAULT true,
					recruited_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE TABLE IF NOT EXISTS codewords (
					player_id INTEGER NOT NULL REFERENCES players(id) ON DELETE CASCADE,
					code VARCHAR(50) NOT NULL,
					word VARCHAR(255) NOT NULL,
					PRIMARY KEY (player_id, code)
				);

				CREATE TABLE IF NOT EXISTS marching_orders (
					id SERIAL PRIMARY KEY,
					player_id INTEGER NOT NULL REFERENCES players(id) ON DELETE CASCADE,
					source_id INTEGER NOT NULL REFERENCES regions(id),
					dest_id INTEGER NOT NULL REFERENCES regions(id),
					dest_sector INTEGER NOT NULL DEFAULT 0,
					arrival_time TIMESTAMP WITH TIME ZONE NOT NULL,
					sequence INTEGER NOT NULL DEFAULT 0
				);

				CREATE INDEX IF NOT EXISTS idx_players_region_id ON players(region_id);
				CREATE INDEX IF NOT EXISTS idx_marching_orders_player_id ON marching_orders(player_id);
				CREATE INDEX IF NOT EXISTS idx_marching_orders_arrival_time ON marching_orders(arrival_time);
			`,
			RollbackSQL: `
				DROP TABLE IF EXISTS marching_orders;
				DROP TABLE IF EXISTS codewords;
				DROP TABLE IF EXISTS players;
			`,
		},
		{
			Version:     "003_battles",
			Description: "battles, skirmish actions, buffs, and processed markers",
			SQL: `
				CREATE TABLE IF NOT EXISTS battles (
					id SERIAL PRIMARY KEY,
					region_id INTEGER NOT NULL REFERENCES regions(id),
					begins_at TIMESTAMP WITH TIME ZONE NOT NULL,
					display_ends_at TIMESTAMP WITH TIME ZONE NOT NULL,
					ends_at TIMESTAMP WITH TIME ZONE NOT NULL,
					submission_id VARCHAR(255) NOT NULL DEFAULT '',
					lockout_seconds INTEGER NOT NULL DEFAULT 0,
					resolved_score0 INTEGER NOT NULL DEFAULT 0,
					resolved_score1 INTEGER NOT NULL DEFAULT 0,
					victor INTEGER NOT NULL DEFAULT -1
				);

				CREATE TABLE IF NOT EXISTS skirmish_actions (
					id SERIAL PRIMARY KEY,
					battle_id INTEGER NOT NULL REFERENCES battles(id) ON DELETE CASCADE,
					parent_id INTEGER REFERENCES skirmish_actions(id) ON DELETE CASCADE,
					comment_id VARCHAR(255) NOT NULL DEFAULT '',
					player_id INTEGER NOT NULL REFERENCES players(id),
					amount INTEGER NOT NULL,
					troop_type VARCHAR(20) NOT NULL,
					hinder BOOLEAN NOT NULL DEFAULT false,
					ends_at TIMESTAMP WITH TIME ZONE,
					resolved BOOLEAN NOT NULL DEFAULT false,
					victor INTEGER NOT NULL DEFAULT -1,
					vp INTEGER NOT NULL DEFAULT 0,
					margin INTEGER NOT NULL DEFAULT 0,
					unopposed BOOLEAN NOT NULL DEFAULT false
				);

				CREATE TABLE IF NOT EXISTS buffs (
					id SERIAL PRIMARY KEY,
					name VARCHAR(100) NOT NULL,
					internal_key VARCHAR(100) NOT NULL,
					multiplier DOUBLE PRECISION NOT NULL,
					expires_at TIMESTAMP WITH TIME ZONE,
					target_type VARCHAR(20) NOT NULL,
					target_id INTEGER NOT NULL,
					UNIQUE (internal_key, target_type, target_id)
				);

				CREATE TABLE IF NOT EXISTS processed_messages (
					battle_id INTEGER NOT NULL REFERENCES battles(id) ON DELETE CASCADE,
					external_message_id VARCHAR(255) NOT NULL,
					PRIMARY KEY (battle_id, external_message_id)
				);

				CREATE INDEX IF NOT EXISTS idx_battles_region_id ON battles(region_id);
				CREATE INDEX IF NOT EXISTS idx_skirmish_actions_battle_id ON skirmish_actions(battle_id);
				CREATE INDEX IF NOT EXISTS idx_skirmish_actions_parent_id ON skirmish_actions(parent_id);
				CREATE INDEX IF NOT EXISTS idx_buffs_target ON buffs(target_type, target_id);
			`,
			RollbackSQL: `
				DROP TABLE IF EXISTS processed_messages;
				DROP TABLE IF EXISTS buffs;
				DROP TABLE IF EXISTS skirmish_actions;
				DROP TABLE IF EXISTS battles;
			`,
		},
		{
			Version:     "004_operators",
			Description: "operator accounts for world administration",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id SERIAL PRIMARY KEY,
					username VARCHAR(50) UNIQUE NOT NULL,
					password_hash VARCHAR(255) NOT NULL,
					role VARCHAR(20) NOT NULL DEFAULT 'op',
					created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
					last_login TIMESTAMP WITH TIME ZONE
				);

				CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
			`,
			RollbackSQL: `
				DROP TABLE IF EXISTS users;
			`,
		},
	}
}

func getMigrationByVersion(version string) (Migration, bool) {
	for _, migration := range getMigrations() {
		if migration.Version == version {
			return migration, true
		}
	}
	return Migration{}, false
}
