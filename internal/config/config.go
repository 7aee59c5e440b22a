package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token          string `yaml:"token"`
	Workers        int    `yaml:"workers"`      // update workers
	PollTimeout    int    `yaml:"poll_timeout"` // long polling timeout, seconds
	LinkText       string `yaml:"link_text"`
	LinkURL        string `yaml:"link_url"`
	StartRateLimit int    `yaml:"start_rate_limit"` // /start replies per user per minute, 0 disables
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port      int    `yaml:"port"` // 0 disables the admin HTTP server
	JWTSecret string `yaml:"jwt_secret"`
}

type DatabaseConfig struct {
	URL            string        `yaml:"url"`
	MaxConns       int32         `yaml:"max_conns"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// StrictTLS disables the relaxed-verification retry after a failed
	// verified handshake.
	StrictTLS bool `yaml:"strict_tls"`

	WriteWorkers int           `yaml:"write_workers"`
	WriteQueue   int           `yaml:"write_queue"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	StatsEvery   time.Duration `yaml:"stats_every"`
	RetryEvery   time.Duration `yaml:"retry_every"` // reconnect interval after a failed dial
}

type RedisConfig struct {
	URL      string        `yaml:"url"` // empty disables lease and rate limiting
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LeaseTTL time.Duration `yaml:"lease_ttl"`
}

type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	Log      LogConfig      `yaml:"log"`
	Admin    AdminConfig    `yaml:"admin"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the optional YAML file at path, overlays environment
// variables (after loading a .env file when present), applies defaults and
// validates the required settings.
func LoadConfig(path string, dev bool) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// env-only deployment
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Bot.Token == "" {
		return nil, errors.New("bot token is required (TELEGRAM_TOKEN or bot.token)")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database url is required (DATABASE_URL or database.url)")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	// "token" is the historical variable name.
	if v := firstEnv("TELEGRAM_TOKEN", "token"); v != "" {
		cfg.Bot.Token = v
	}
	if v := firstEnv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := firstEnv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := firstEnv("BOT_LINK_URL"); v != "" {
		cfg.Bot.LinkURL = v
	}
	if v := firstEnv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := firstEnv("ADMIN_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Admin.Port = port
		}
	}
	if v := firstEnv("ADMIN_JWT_SECRET"); v != "" {
		cfg.Admin.JWTSecret = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 4
	}
	if cfg.Bot.PollTimeout <= 0 {
		cfg.Bot.PollTimeout = 60
	}
	if cfg.Bot.LinkText == "" {
		cfg.Bot.LinkText = "Open"
	}
	if cfg.Bot.LinkURL == "" {
		cfg.Bot.LinkURL = "https://core.telegram.org/bots"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 4
	}
	if cfg.Database.ConnectTimeout <= 0 {
		cfg.Database.ConnectTimeout = 5 * time.Second
	}
	if cfg.Database.WriteWorkers <= 0 {
		cfg.Database.WriteWorkers = 2
	}
	if cfg.Database.WriteQueue <= 0 {
		cfg.Database.WriteQueue = cfg.Database.WriteWorkers * 64
	}
	if cfg.Database.WriteTimeout <= 0 {
		cfg.Database.WriteTimeout = 5 * time.Second
	}
	if cfg.Database.StatsEvery <= 0 {
		cfg.Database.StatsEvery = 15 * time.Second
	}
	if cfg.Database.RetryEvery <= 0 {
		cfg.Database.RetryEvery = 10 * time.Second
	}
	if cfg.Redis.LeaseTTL <= 0 {
		cfg.Redis.LeaseTTL = 30 * time.Second
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
