package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis" envPrefix:"REDIS_"`
	Postgres PostgresConfig `yaml:"postgres" envPrefix:"POSTGRES_"`
	Session  SessionConfig  `yaml:"session" envPrefix:"SESSION_"`
	Log      LogConfig      `yaml:"log" envPrefix:"LOG_"`
}

type ServerConfig struct {
	Port string `yaml:"port" env:"PORT"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
	// TTL bounds how long cached question sets live in Redis.
	TTL string `yaml:"ttl" env:"TTL"`
}

type PostgresConfig struct {
	URL string `yaml:"url" env:"URL"`
}

type SessionConfig struct {
	CodeLength      int    `yaml:"code_length" env:"CODE_LENGTH"`
	CodeAttempts    int    `yaml:"code_attempts" env:"CODE_ATTEMPTS"`
	Points          int    `yaml:"points" env:"POINTS"`
	SpeedBonus      int    `yaml:"speed_bonus" env:"SPEED_BONUS"`
	AutoEnd         *bool  `yaml:"auto_end" env:"AUTO_END"`
	PollInterval    string `yaml:"poll_interval" env:"POLL_INTERVAL"`
	SweepInterval   string `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
	QuestionTTL     string `yaml:"question_ttl" env:"QUESTION_TTL"`
	RetryMaxElapsed string `yaml:"retry_max_elapsed" env:"RETRY_MAX_ELAPSED"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Load reads YAML config from path and applies environment overrides. A
// missing file is not an error; the service then runs on environment and
// defaults alone.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return cfg, err
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// AutoEndDefault reports the default auto_end for new rooms, true unless disabled.
func (s SessionConfig) AutoEndDefault() bool {
	if s.AutoEnd == nil {
		return true
	}
	return *s.AutoEnd
}

// Logger builds the process logger from the log section.
func (l LogConfig) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
