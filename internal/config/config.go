package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage drivers for the attempt snapshot.
const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// Quiz definition sources.
const (
	SourceAPI      = "api"
	SourcePostgres = "postgres"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	API struct {
		BaseURL string `yaml:"base_url"`
		Token   string `yaml:"token"`
		Timeout string `yaml:"timeout"`
	} `yaml:"api"`
	// Profile namespaces the persisted snapshot, like a browser origin does.
	Profile string `yaml:"profile"`
	Storage struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
	} `yaml:"storage"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL      string  `yaml:"ttl"`
		Tick     string  `yaml:"tick"`
		PassMark float64 `yaml:"pass_mark"`
		Source   string  `yaml:"source"`
	} `yaml:"quiz"`
}

// Load reads YAML config from path, then applies .env and environment overrides.
// A missing config file is not an error; defaults and the environment still apply.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("QUIZ_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("QUIZ_API_TOKEN"); v != "" {
		cfg.API.Token = v
	}
	if v := os.Getenv("QUIZ_PROFILE"); v != "" {
		cfg.Profile = v
	}
	if v := os.Getenv("QUIZ_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if v := os.Getenv("QUIZ_PASS_MARK"); v != "" {
		if mark, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Quiz.PassMark = mark
		}
	}
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Profile) == "" {
		cfg.Profile = "default"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = StorageFile
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = ".quiz-client"
	}
	if cfg.Quiz.Source == "" {
		cfg.Quiz.Source = SourceAPI
	}
	if cfg.Quiz.PassMark <= 0 {
		cfg.Quiz.PassMark = 70
	}
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
