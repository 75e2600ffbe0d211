package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	cfg, err := Load("development", "testdata/config_valid.toml")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "trace", cfg.LogLevel)
	assert.True(t, cfg.LogToStdout)
	assert.False(t, cfg.SentryEnabled)
	assert.Equal(t, "gamify", cfg.PostgresDBName)
	assert.Equal(t, 300, cfg.RateLimitAllowedPerMin)
	assert.Equal(t, 50.0, cfg.BaseXP)
	assert.Equal(t, 25.0, cfg.PRBonusXP)
	assert.Equal(t, 100.0, cfg.AchievementBonusXP)
	assert.Equal(t, 0.05, cfg.StreakMultiplierStep)
	assert.Equal(t, 2.0, cfg.StreakMultiplierMax)
	assert.False(t, cfg.ApplyMultiplierOnRepeat)
	assert.Equal(t, "./achievements.toml", cfg.AchievementsCatalogPath)
	require.Len(t, cfg.Levels, 2)
	assert.Equal(t, int64(0), cfg.Levels[0].MinXP)
	assert.Equal(t, "Novice", cfg.Levels[0].Name)
	assert.Equal(t, int64(500), cfg.Levels[1].MinXP)
	assert.Equal(t, "Beginner", cfg.Levels[1].Name)
}

func TestLoad_prod(t *testing.T) {
	cfg, err := Load("prod", "testdata/config_valid.toml")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 9000, cfg.Port)
	assert.False(t, cfg.LogToStdout)
	assert.True(t, cfg.SentryEnabled)
	assert.Equal(t, "/var/log/gamify/service.log", cfg.LogsPath)
}

func TestLoad_unknownEnv(t *testing.T) {
	cfg, err := Load("staging", "testdata/config_valid.toml")
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "unknown env")
}

func TestLoad_missingFile(t *testing.T) {
	cfg, err := Load("development", "testdata/no_such_file.toml")
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_invalidLevels(t *testing.T) {
	cfg, err := Load("development", "testdata/config_bad_levels.toml")
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "strictly ascending")
}

func TestConfig_Validate(t *testing.T) {
	validLevels := []LevelThreshold{
		{MinXP: 0, Name: "Novice"},
		{MinXP: 500, Name: "Beginner"},
	}

	testCases := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:   "bad port",
			mutate: func(c *Config) { c.Port = 0 },
			errMsg: "invalid port",
		},
		{
			name:   "negative base xp",
			mutate: func(c *Config) { c.BaseXP = -1 },
			errMsg: "non-negative",
		},
		{
			name:   "multiplier max below one",
			mutate: func(c *Config) { c.StreakMultiplierMax = 0.5 },
			errMsg: "must be >= 1",
		},
		{
			name:   "negative multiplier step",
			mutate: func(c *Config) { c.StreakMultiplierStep = -0.1 },
			errMsg: "non-negative",
		},
		{
			name:   "no levels",
			mutate: func(c *Config) { c.Levels = nil },
			errMsg: "at least one level",
		},
		{
			name: "first level not at zero",
			mutate: func(c *Config) {
				c.Levels = []LevelThreshold{{MinXP: 100, Name: "Novice"}}
			},
			errMsg: "must start at 0",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{
				Port:                 8080,
				BaseXP:               50,
				PRBonusXP:            25,
				AchievementBonusXP:   100,
				StreakMultiplierStep: 0.05,
				StreakMultiplierMax:  2.0,
				Levels:               validLevels,
			}
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.errMsg == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errMsg)
			}
		})
	}
}
