// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port       int           `yaml:"port"`
	APIKey     string        `yaml:"api_key"`
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"` // optional; archive disabled when empty
}

type RedisConfig struct {
	URL      string        `yaml:"url"` // optional; in-memory store when empty
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // default cache entry TTL
}

type AIConfig struct {
	GeminiKey       string        `yaml:"gemini_key"`
	GeminiURL       string        `yaml:"gemini_url"`
	OpenAIKey       string        `yaml:"openai_key"`
	DefaultModel    string        `yaml:"default_model"`
	ConcurrentLimit int           `yaml:"concurrent_limit"` // max concurrent AI calls
	CallTimeout     time.Duration `yaml:"call_timeout"`     // per model call
}

// ServicesConfig points at the downstream agent services. Any empty URL
// disables its chain stage.
type ServicesConfig struct {
	RetrieverURL string        `yaml:"retriever_url"`
	WriterURL    string        `yaml:"writer_url"`
	ReviewerURL  string        `yaml:"reviewer_url"`
	Timeout      time.Duration `yaml:"timeout"`
}

type LimitConfig struct {
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

type LimitsConfig struct {
	User     LimitConfig `yaml:"user"`     // inbound generate requests per user
	Provider LimitConfig `yaml:"provider"` // model calls, paced chain-side
}

type WorkerConfig struct {
	QueueSize     int           `yaml:"queue_size"`
	JobTimeout    time.Duration `yaml:"job_timeout"`   // wall clock per job
	AgentTimeout  time.Duration `yaml:"agent_timeout"` // per chain stage
	Retention     time.Duration `yaml:"retention"`     // terminal jobs kept in memory
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type CacheConfig struct {
	StrategyTTL time.Duration `yaml:"strategy_ttl"` // blueprint: namespace entries
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Admin    AdminConfig    `yaml:"admin"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AI       AIConfig       `yaml:"ai"`
	Services ServicesConfig `yaml:"services"`
	Limits   LimitsConfig   `yaml:"limits"`
	Worker   WorkerConfig   `yaml:"worker"`
	Cache    CacheConfig    `yaml:"cache"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	var cfg Config
	b, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && dev && configPath == "config.yaml":
		// dev runs on defaults when the default file is absent
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}
	// defaults
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Admin.Port <= 0 {
		cfg.Admin.Port = 9090
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 12 * time.Hour
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 4
	}
	if cfg.AI.CallTimeout <= 0 {
		cfg.AI.CallTimeout = 45 * time.Second
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gemini-2.0-flash"
	}
	if cfg.Services.Timeout <= 0 {
		cfg.Services.Timeout = 30 * time.Second
	}
	if cfg.Limits.User.MaxRequests <= 0 {
		cfg.Limits.User.MaxRequests = 10
	}
	if cfg.Limits.User.Window <= 0 {
		cfg.Limits.User.Window = time.Minute
	}
	if cfg.Limits.Provider.MaxRequests <= 0 {
		cfg.Limits.Provider.MaxRequests = 8
	}
	if cfg.Limits.Provider.Window <= 0 {
		cfg.Limits.Provider.Window = time.Minute
	}
	if cfg.Worker.QueueSize <= 0 {
		cfg.Worker.QueueSize = 64
	}
	if cfg.Worker.JobTimeout <= 0 {
		cfg.Worker.JobTimeout = 5 * time.Minute
	}
	if cfg.Worker.AgentTimeout <= 0 {
		cfg.Worker.AgentTimeout = 45 * time.Second
	}
	if cfg.Worker.Retention <= 0 {
		cfg.Worker.Retention = time.Hour
	}
	if cfg.Worker.SweepInterval <= 0 {
		cfg.Worker.SweepInterval = 5 * time.Minute
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Cache.StrategyTTL <= 0 {
		cfg.Cache.StrategyTTL = 24 * time.Hour
	}

	// Minimal validation
	if !dev && cfg.AI.GeminiKey == "" && cfg.AI.OpenAIKey == "" {
		return nil, errors.New("ai.gemini_key or ai.openai_key is required")
	}
	if !dev && cfg.Admin.APIKey == "" {
		return nil, errors.New("admin.api_key is required")
	}
	if cfg.Admin.JWTSecret == "" {
		cfg.Admin.JWTSecret = cfg.Admin.APIKey
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
