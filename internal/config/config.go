package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken string        `yaml:"discord_token"`
	DatabasePath string        `yaml:"database_path"`
	LogLevel     string        `yaml:"log_level"`
	IndexResync  string        `yaml:"index_resync"`
	Health       HealthConfig  `yaml:"health"`
	Cache        CacheConfig   `yaml:"cache"`
	Context      ContextConfig `yaml:"context"`
	Timers       TimersConfig  `yaml:"timers"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type CacheConfig struct {
	PerChannelCapacity int `yaml:"per_channel_capacity"`
}

type ContextConfig struct {
	BeforeCount        int `yaml:"before_count"`
	AfterCount         int `yaml:"after_count"`
	WaitTimeoutSeconds int `yaml:"wait_timeout_seconds"`
	TruncateLength     int `yaml:"truncate_length"`
	EmbedColor         int `yaml:"embed_color"`
}

type TimersConfig struct {
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	ShortDelaySeconds   int `yaml:"short_delay_seconds"`
	WakeHorizonDays     int `yaml:"wake_horizon_days"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath: "/data/glados.db",
		LogLevel:     "info",
		IndexResync:  "@hourly",
		Health:       HealthConfig{Enabled: false, Addr: ":8080"},
		Cache:        CacheConfig{PerChannelCapacity: 1000},
		Context: ContextConfig{
			BeforeCount:        3,
			AfterCount:         2,
			WaitTimeoutSeconds: 5,
			TruncateLength:     50,
			EmbedColor:         0x7289DA,
		},
		Timers: TimersConfig{
			PollIntervalSeconds: 30,
			ShortDelaySeconds:   60,
			WakeHorizonDays:     40,
		},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.IndexResync = envString("INDEX_RESYNC", cfg.IndexResync)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Cache.PerChannelCapacity = envInt("CACHE_PER_CHANNEL_CAPACITY", cfg.Cache.PerChannelCapacity)
	cfg.Context.BeforeCount = envInt("CONTEXT_BEFORE_COUNT", cfg.Context.BeforeCount)
	cfg.Context.AfterCount = envInt("CONTEXT_AFTER_COUNT", cfg.Context.AfterCount)
	cfg.Context.WaitTimeoutSeconds = envInt("CONTEXT_WAIT_TIMEOUT_SECONDS", cfg.Context.WaitTimeoutSeconds)
	cfg.Context.TruncateLength = envInt("CONTEXT_TRUNCATE_LENGTH", cfg.Context.TruncateLength)
	cfg.Context.EmbedColor = envInt("CONTEXT_EMBED_COLOR", cfg.Context.EmbedColor)
	cfg.Timers.PollIntervalSeconds = envInt("TIMERS_POLL_INTERVAL_SECONDS", cfg.Timers.PollIntervalSeconds)
	cfg.Timers.ShortDelaySeconds = envInt("TIMERS_SHORT_DELAY_SECONDS", cfg.Timers.ShortDelaySeconds)
	cfg.Timers.WakeHorizonDays = envInt("TIMERS_WAKE_HORIZON_DAYS", cfg.Timers.WakeHorizonDays)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
