package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"greenplay-service/internal/domain"
)

type Config struct {
	Server struct {
		Port            string `yaml:"port"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		FeedInterval    string `yaml:"feed_interval"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	App struct {
		Name     string `yaml:"name"`
		Timezone string `yaml:"timezone"`
	} `yaml:"app"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL          string `yaml:"url"`
		MaxOpenConns int    `yaml:"max_open_conns"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL              string `yaml:"ttl"`
		QuestionsPerGame int    `yaml:"questions_per_game"`
		TimeLimit        string `yaml:"time_limit"`
		PointsPerCorrect int    `yaml:"points_per_correct"`
	} `yaml:"quiz"`
	Auth struct {
		JWTSecret   string `yaml:"jwt_secret"`
		TokenTTL    string `yaml:"token_ttl"`
		EmailDomain string `yaml:"email_domain"`
	} `yaml:"auth"`
	// Faculties maps a faculty code to extra spellings found in stored data.
	Faculties map[string][]string `yaml:"faculties"`
}

// Default returns the settings used when no file is present.
func Default() Config {
	var cfg Config
	cfg.Server.Port = "8080"
	cfg.Server.ReadTimeout = "15s"
	cfg.Server.WriteTimeout = "15s"
	cfg.Server.FeedInterval = "5s"
	cfg.Server.ShutdownTimeout = "5s"
	cfg.App.Name = "greenplay"
	cfg.App.Timezone = "Asia/Kuala_Lumpur"
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.Redis.TTL = "10m"
	cfg.Postgres.MaxOpenConns = 10
	cfg.Quiz.TTL = "10m"
	cfg.Quiz.QuestionsPerGame = 5
	cfg.Quiz.TimeLimit = "60s"
	cfg.Quiz.PointsPerCorrect = 10
	cfg.Auth.TokenTTL = "24h"
	cfg.Auth.EmailDomain = "mmu.edu.my"
	cfg.Faculties = make(map[string][]string, len(domain.DefaultFacultyAliases))
	for code, names := range domain.DefaultFacultyAliases {
		cfg.Faculties[code] = append([]string(nil), names...)
	}
	return cfg
}

// Load reads YAML config from path on top of Default, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	applyEnv(&cfg, os.LookupEnv)
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set("PORT", &cfg.Server.Port)
	set("DATABASE_URL", &cfg.Postgres.URL)
	set("REDIS_ADDR", &cfg.Redis.Addr)
	set("REDIS_PASSWORD", &cfg.Redis.Password)
	set("JWT_SECRET", &cfg.Auth.JWTSecret)
	set("LOG_LEVEL", &cfg.Log.Level)
	set("APP_TIMEZONE", &cfg.App.Timezone)
	if v, ok := lookup("REDIS_DB"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		problems = append(problems, "auth.jwt_secret is required")
	}
	if c.Quiz.PointsPerCorrect <= 0 {
		problems = append(problems, "quiz.points_per_correct must be positive")
	}
	if c.Quiz.QuestionsPerGame <= 0 {
		problems = append(problems, "quiz.questions_per_game must be positive")
	}
	if strings.TrimSpace(c.Auth.EmailDomain) == "" {
		problems = append(problems, "auth.email_domain is required")
	}
	if _, err := c.Location(); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := c.FacultyDirectory(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return domain.Validation("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Location resolves app.timezone; empty means UTC.
func (c Config) Location() (*time.Location, error) {
	if c.App.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("app.timezone: %w", err)
	}
	return loc, nil
}

// FacultyDirectory checks the synonym table against the authoritative faculty list.
func (c Config) FacultyDirectory() (*domain.FacultyDirectory, error) {
	return domain.NewFacultyDirectory(domain.Faculties, c.Faculties)
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
