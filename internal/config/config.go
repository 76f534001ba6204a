package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config представляет основную структуру конфигурации.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Redis    RedisConfig    `json:"redis"`
	JWT      JWTConfig      `json:"jwt"`
	Game     GameConfig     `json:"game"`
	Log      LogConfig      `json:"log"`
}

// ServerConfig настройки HTTP сервера.
type ServerConfig struct {
	Address      string        `json:"address" env:"SERVER_ADDRESS" envDefault:":8080"`
	ReadTimeout  time.Duration `json:"read_timeout" env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `json:"write_timeout" env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout  time.Duration `json:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
}

// DatabaseConfig настройки PostgreSQL.
type DatabaseConfig struct {
	Host     string `json:"host" env:"DB_HOST" envDefault:"localhost"`
	Port     int    `json:"port" env:"DB_PORT" envDefault:"5432"`
	User     string `json:"user" env:"DB_USER" envDefault:"referee"`
	Password string `json:"password" env:"DB_PASSWORD"`
	Name     string `json:"name" env:"DB_NAME" envDefault:"referee"`
	SSLMode  string `json:"ssl_mode" env:"DB_SSL_MODE" envDefault:"disable"`
}

// RedisConfig настройки Redis.
type RedisConfig struct {
	Address  string `json:"address" env:"REDIS_ADDRESS" envDefault:"localhost:6379"`
	Password string `json:"password" env:"REDIS_PASSWORD"`
	DB       int    `json:"db" env:"REDIS_DB" envDefault:"0"`
}

// JWTConfig настройки JWT токенов операторского доступа.
type JWTConfig struct {
	Secret     string        `json:"secret" env:"JWT_SECRET"`
	Expiration time.Duration `json:"expiration" env:"JWT_EXPIRATION" envDefault:"24h"`
}

// LogConfig настройки логирования.
type LogConfig struct {
	Level    string `json:"level" env:"LOG_LEVEL" envDefault:"info"`
	Format   string `json:"format" env:"LOG_FORMAT" envDefault:"json"`
	FilePath string `json:"file_path" env:"LOG_FILE_PATH"`
}

// GameConfig holds every referee-specific knob from the config table, one
// field per key, loaded the same env-tagged way as the ambient sub-structs.
type GameConfig struct {
	BattleDelay         time.Duration `json:"battle_delay" env:"GAME_BATTLE_DELAY" envDefault:"1h"`
	BattleTime          time.Duration `json:"battle_time" env:"GAME_BATTLE_TIME" envDefault:"48h"`
	BattleLockout       time.Duration `json:"battle_lockout" env:"GAME_BATTLE_LOCKOUT" envDefault:"30m"`
	SkirmishTime        time.Duration `json:"skirmish_time" env:"GAME_SKIRMISH_TIME" envDefault:"6h"`
	SkirmishVariability time.Duration `json:"skirmish_variability" env:"GAME_SKIRMISH_VARIABILITY" envDefault:"30m"`
	FFTBTime            time.Duration `json:"fftb_time" env:"GAME_FFTB_TIME" envDefault:"15m"`
	Speed               time.Duration `json:"speed" env:"GAME_SPEED" envDefault:"10m"`
	IntrasectorTravel   time.Duration `json:"intrasector_travel" env:"GAME_INTRASECTOR_TRAVEL" envDefault:"5m"`
	NumSectors          int           `json:"num_sectors" env:"GAME_NUM_SECTORS" envDefault:"4"`
	TraversableNeutrals bool          `json:"traversable_neutrals" env:"GAME_TRAVERSABLE_NEUTRALS" envDefault:"false"`
	CapitalInvasion     string        `json:"capital_invasion" env:"GAME_CAPITAL_INVASION" envDefault:"allow"`
	HomelandDefense     string        `json:"homeland_defense" env:"GAME_HOMELAND_DEFENSE" envDefault:"25/10/5"`
	DefenseBuffTime     time.Duration `json:"defense_buff_time" env:"GAME_DEFENSE_BUFF_TIME" envDefault:"168h"`
	WinReward           float64       `json:"winreward" env:"GAME_WINREWARD" envDefault:"0.15"`
	LoseReward          float64       `json:"losereward" env:"GAME_LOSEREWARD" envDefault:"0.10"`
	TroopCap            int           `json:"troopcap" env:"GAME_TROOPCAP" envDefault:"0"` // 0 = uncapped
	Assignment          string        `json:"assignment" env:"GAME_ASSIGNMENT" envDefault:"uid"`
	Leaders             []string      `json:"leaders" env:"GAME_LEADERS" envSeparator:","`
	Sides               []string      `json:"sides" env:"GAME_SIDES" envSeparator:"," envDefault:"orangered,periwinkle"`
	UnlimitedDefect     bool          `json:"unlimited_defect" env:"GAME_UNLIMITED_DEFECT" envDefault:"false"`
	DisableDefect       bool          `json:"disable_defect" env:"GAME_DISABLE_DEFECT" envDefault:"false"`
	BattlePM            bool          `json:"battle_pm" env:"GAME_BATTLE_PM" envDefault:"false"`
}

// HomelandDefensePercents разбирает "25/10/5" в [0.25, 0.10, 0.05].
func (g GameConfig) HomelandDefensePercents() []float64 {
	if g.HomelandDefense == "" {
		return nil
	}
	parts := strings.Split(g.HomelandDefense, "/")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		var v float64
		if _, err := fmt.Sscanf(strings.TrimSpace(p), "%f", &v); err == nil {
			out = append(out, v/100)
		}
	}
	return out
}

// Load загружает конфигурацию: опциональный JSON-файл как база, затем
// переменные окружения поверх него через caarlos0/env.
func Load(configPath string) (*Config, error) {
	cfg := defaultConfig()

	if configPath != "" {
		if err := loadFromFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse env config: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{}
}

// loadFromFile overlays a JSON config file onto cfg, in the teacher's own
// optional pre-load style; env.Parse() below still has the final say since
// envDefault only fills zero values.
func loadFromFile(configPath string, cfg *Config) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return nil
}

func validateConfig(cfg *Config) error {
	var problems []string

	if cfg.Database.Host == "" {
		problems = append(problems, "database host is required")
	}
	if cfg.Database.User == "" {
		problems = append(problems, "database user is required")
	}
	if cfg.Database.Name == "" {
		problems = append(problems, "database name is required")
	}
	if cfg.JWT.Secret == "" {
		problems = append(problems, "JWT secret is required")
	}
	if cfg.Game.NumSectors <= 0 {
		problems = append(problems, "game.num_sectors must be positive")
	}
	if len(cfg.Game.Sides) != 2 {
		problems = append(problems, "game.sides must name exactly two teams")
	}

	if len(problems) > 0 {
		return fmt.Errorf("validation errors: %s", strings.Join(problems, "; "))
	}
	return nil
}

// GetEnv возвращает текущее окружение приложения.
func GetEnv() string {
	e := os.Getenv("APP_ENV")
	if e == "" {
		return "development"
	}
	return e
}

func (c *Config) IsDevelopment() bool { return GetEnv() == "development" }
func (c *Config) IsProduction() bool  { return GetEnv() == "production" }
