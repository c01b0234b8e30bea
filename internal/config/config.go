// Package config loads server configuration from an optional YAML file with
// environment overrides
package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/KirkDiggler/rpg-narrator/internal/errors"
)

// EnvPrefix is prepended to every environment variable name
const EnvPrefix = "RPG_NARRATOR_"

// Config is the full server configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"   envPrefix:"SERVER_"`
	Redis    RedisConfig    `yaml:"redis"    envPrefix:"REDIS_"`
	Narrator NarratorConfig `yaml:"narrator" envPrefix:"NARRATOR_"`
	Budget   BudgetConfig   `yaml:"budget"   envPrefix:"BUDGET_"`
	Game     GameConfig     `yaml:"game"     envPrefix:"GAME_"`
}

// ServerConfig controls the gRPC listener and logging
type ServerConfig struct {
	Port      int    `yaml:"port"       env:"PORT"`
	LogLevel  string `yaml:"log_level"  env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`
}

// RedisConfig is the connection to the state store
type RedisConfig struct {
	Endpoint     string `yaml:"endpoint"       env:"ENDPOINT"`
	Password     string `yaml:"password"       env:"PASSWORD"`
	DB           int    `yaml:"db"             env:"DB"`
	PoolSize     int    `yaml:"pool_size"      env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	UseTLS       bool   `yaml:"use_tls"        env:"USE_TLS"`
}

// NarratorConfig is the OpenAI-compatible completion provider
type NarratorConfig struct {
	BaseURL           string        `yaml:"base_url"            env:"BASE_URL"`
	APIKey            string        `yaml:"api_key"             env:"API_KEY"`
	Model             string        `yaml:"model"               env:"MODEL"`
	MaxTokens         int           `yaml:"max_tokens"          env:"MAX_TOKENS"`
	Temperature       float32       `yaml:"temperature"         env:"TEMPERATURE"`
	Timeout           time.Duration `yaml:"timeout"             env:"TIMEOUT"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	Burst             int           `yaml:"burst"               env:"BURST"`
}

// BudgetConfig holds the daily token ceilings
type BudgetConfig struct {
	SessionDailyTokens int64 `yaml:"session_daily_tokens" env:"SESSION_DAILY_TOKENS"`
	GlobalDailyTokens  int64 `yaml:"global_daily_tokens"  env:"GLOBAL_DAILY_TOKENS"`
	EstimatePerCall    int64 `yaml:"estimate_per_call"    env:"ESTIMATE_PER_CALL"`
}

// GameConfig tunes session behavior
type GameConfig struct {
	HistoryWindow      int           `yaml:"history_window"           env:"HISTORY_WINDOW"`
	MaxSessionsPerUser int           `yaml:"max_sessions_per_user"    env:"MAX_SESSIONS_PER_USER"`
	StartingGold       int           `yaml:"starting_gold"            env:"STARTING_GOLD"`
	CombatLogEntries   int           `yaml:"combat_log_entries"       env:"COMBAT_LOG_ENTRIES"`
	HydrateCatalog     bool          `yaml:"hydrate_catalog"          env:"HYDRATE_CATALOG"`
	SRDBaseURL         string        `yaml:"srd_base_url"             env:"SRD_BASE_URL"`
	SRDCacheTTL        time.Duration `yaml:"srd_cache_ttl"            env:"SRD_CACHE_TTL"`
	SRDEquipment       []string      `yaml:"srd_equipment"            env:"SRD_EQUIPMENT" envSeparator:","`
}

// Default returns a configuration suitable for local development
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:      50051,
			LogLevel:  "info",
			LogFormat: "text",
		},
		Redis: RedisConfig{
			Endpoint:     "localhost:6379",
			PoolSize:     10,
			MinIdleConns: 2,
		},
		Narrator: NarratorConfig{
			BaseURL:           "https://api.openai.com/v1",
			Model:             "gpt-4o-mini",
			MaxTokens:         800,
			Temperature:       0.8,
			Timeout:           30 * time.Second,
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Budget: BudgetConfig{
			SessionDailyTokens: 200_000,
			GlobalDailyTokens:  5_000_000,
			EstimatePerCall:    2_000,
		},
		Game: GameConfig{
			HistoryWindow:      20,
			MaxSessionsPerUser: 3,
			StartingGold:       15,
			CombatLogEntries:   5,
			SRDBaseURL:         "https://www.dnd5eapi.co/api/",
			SRDCacheTTL:        24 * time.Hour,
		},
	}
}

// Load starts from Default, overlays the YAML file at path when path is not
// empty, then applies RPG_NARRATOR_* environment variables
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapWithCode(err, errors.CodeInvalidArgument, "failed to parse config file")
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeInvalidArgument, "failed to parse environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		vb.Field("server.port", "must be between 1 and 65535")
	}
	if _, err := ParseLevel(c.Server.LogLevel); err != nil {
		vb.Field("server.log_level", "must be one of debug, info, warn, error")
	}
	errors.ValidateEnum("server.log_format", c.Server.LogFormat, []string{"text", "json"}, vb)

	errors.ValidateRequired("redis.endpoint", c.Redis.Endpoint, vb)

	errors.ValidateRequired("narrator.base_url", c.Narrator.BaseURL, vb)
	errors.ValidateRequired("narrator.model", c.Narrator.Model, vb)
	errors.ValidatePositive("narrator.max_tokens", int64(c.Narrator.MaxTokens), vb)
	if c.Narrator.Timeout <= 0 {
		vb.Field("narrator.timeout", "must be positive")
	}
	if c.Narrator.RequestsPerSecond <= 0 {
		vb.Field("narrator.requests_per_second", "must be positive")
	}

	errors.ValidatePositive("budget.session_daily_tokens", c.Budget.SessionDailyTokens, vb)
	errors.ValidatePositive("budget.global_daily_tokens", c.Budget.GlobalDailyTokens, vb)
	errors.ValidatePositive("budget.estimate_per_call", c.Budget.EstimatePerCall, vb)
	if c.Budget.SessionDailyTokens > c.Budget.GlobalDailyTokens {
		vb.Field("budget.session_daily_tokens", "must not exceed budget.global_daily_tokens")
	}

	errors.ValidatePositive("game.history_window", int64(c.Game.HistoryWindow), vb)
	errors.ValidatePositive("game.max_sessions_per_user", int64(c.Game.MaxSessionsPerUser), vb)
	if c.Game.StartingGold < 0 {
		vb.Field("game.starting_gold", "must not be negative")
	}
	if c.Game.HydrateCatalog {
		errors.ValidateRequired("game.srd_base_url", c.Game.SRDBaseURL, vb)
	}

	return vb.Build()
}

// ParseLevel maps a config level name to a slog level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, errors.InvalidArgumentf("unknown log level %q", level)
}
