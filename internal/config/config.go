package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the Devboard server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	GitHub   GitHubConfig
	HF       HFConfig
	Auth     AuthConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type GitHubConfig struct {
	BaseURL   string
	Token     string // classic PAT, optional
	FineToken string // fine-grained PAT, preferred when set
	Timeout   time.Duration
	// Defaults used by task kinds that fetch repository context when the
	// caller does not name a repo/path explicitly.
	DefaultRepo string
	DefaultPath string
}

type HFConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	Retries   int
	Backoff   time.Duration
}

type AuthConfig struct {
	JWTSecret      string
	TokenTTL       time.Duration
	GuestTaskLimit int // task runs per minute for unauthenticated callers
}

// Load reads configuration from the environment (and an optional .env file)
// and returns a validated Config. Returns a descriptive error if any required
// value is missing or invalid.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("DEVBOARD_PORT", 8080),
			Env:  envString("DEVBOARD_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		GitHub: GitHubConfig{
			BaseURL:     envString("GITHUB_BASE_URL", "https://api.github.com"),
			Token:       os.Getenv("GITHUB_TOKEN"),
			FineToken:   os.Getenv("GITHUB_FINE_TOKEN"),
			Timeout:     envDuration("GITHUB_TIMEOUT", 10*time.Second),
			DefaultRepo: envString("GITHUB_DEFAULT_REPO", ""),
			DefaultPath: envString("GITHUB_DEFAULT_PATH", "README.md"),
		},
		HF: HFConfig{
			BaseURL:   envString("HF_BASE_URL", "https://router.huggingface.co/v1"),
			APIKey:    os.Getenv("HF_API_KEY"),
			Model:     envString("HF_MODEL", "meta-llama/Llama-3.1-8B-Instruct"),
			MaxTokens: envInt("HF_MAX_TOKENS", 8192),
			Timeout:   envDurationSecs("HF_TIMEOUT_SECS", 60*time.Second),
			Retries:   envInt("HF_RETRIES", 3),
			Backoff:   envDuration("HF_BACKOFF", 2*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:      os.Getenv("JWT_SECRET"),
			TokenTTL:       envDuration("TOKEN_TTL", 60*time.Minute),
			GuestTaskLimit: envInt("GUEST_TASK_LIMIT", 5),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.HF.APIKey == "" {
		return fmt.Errorf("HF_API_KEY is required")
	}
	if !strings.HasPrefix(c.HF.BaseURL, "http://") && !strings.HasPrefix(c.HF.BaseURL, "https://") {
		return fmt.Errorf("HF_BASE_URL must start with http:// or https://, got %q", c.HF.BaseURL)
	}

	if !strings.HasPrefix(c.GitHub.BaseURL, "http://") && !strings.HasPrefix(c.GitHub.BaseURL, "https://") {
		return fmt.Errorf("GITHUB_BASE_URL must start with http:// or https://, got %q", c.GitHub.BaseURL)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Auth.GuestTaskLimit <= 0 {
		return fmt.Errorf("GUEST_TASK_LIMIT must be positive, got %d", c.Auth.GuestTaskLimit)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
