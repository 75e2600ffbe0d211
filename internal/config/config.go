package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

type LevelThreshold struct {
	MinXP int64  `toml:"min_xp"`
	Name  string `toml:"name"`
}

type Config struct {
	Environment string `toml:"environment"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// postgres
	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`
	PostgresUser   string `toml:"postgres_user"`

	// redis
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`

	// prometheus metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`

	RateLimitAllowedPerMin int `toml:"rate_limit_allowed_per_min"`

	// gamification tuning
	BaseXP                  float64          `toml:"base_xp"`
	PRBonusXP               float64          `toml:"pr_bonus_xp"`
	AchievementBonusXP      float64          `toml:"achievement_bonus_xp"`
	StreakMultiplierStep    float64          `toml:"streak_multiplier_step"`
	StreakMultiplierMax     float64          `toml:"streak_multiplier_max"`
	ApplyMultiplierOnRepeat bool             `toml:"apply_multiplier_on_repeat"`
	AchievementsCatalogPath string           `toml:"achievements_catalog_path"`
	Levels                  []LevelThreshold `toml:"levels"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		return t.Development, nil
	case "prod", "production":
		return t.Production, nil
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
}

func Load(env, path string) (*Config, error) {
	var tomlFile Toml
	if _, err := toml.DecodeFile(path, &tomlFile); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}

	cfg, err := tomlFile.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("config for env %s missing in %s", env, path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.BaseXP < 0 || c.PRBonusXP < 0 || c.AchievementBonusXP < 0 {
		return fmt.Errorf("xp amounts must be non-negative")
	}
	if c.StreakMultiplierMax < 1 {
		return fmt.Errorf("streak multiplier max must be >= 1, got %f", c.StreakMultiplierMax)
	}
	if c.StreakMultiplierStep < 0 {
		return fmt.Errorf("streak multiplier step must be non-negative, got %f", c.StreakMultiplierStep)
	}
	if len(c.Levels) == 0 {
		return fmt.Errorf("at least one level threshold is required")
	}
	if c.Levels[0].MinXP != 0 {
		return fmt.Errorf("first level threshold must start at 0 XP, got %d", c.Levels[0].MinXP)
	}
	for i := 1; i < len(c.Levels); i++ {
		if c.Levels[i].MinXP <= c.Levels[i-1].MinXP {
			return fmt.Errorf(
				"level thresholds must be strictly ascending: level %d (%d XP) <= level %d (%d XP)",
				i+1, c.Levels[i].MinXP, i, c.Levels[i-1].MinXP,
			)
		}
	}
	return nil
}
