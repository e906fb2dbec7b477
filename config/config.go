package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config is the service configuration loaded from config.json.
type Config struct {
	LLM            *LLMConfig  `json:"llm,omitempty"`
	ServerAddr     string      `json:"server_addr,omitempty"`
	TimeoutSeconds int         `json:"timeout_seconds,omitempty"`
	Auth           AuthConfig  `json:"auth"`
	Store          StoreConfig `json:"store"`
	Diff           DiffConfig  `json:"diff"`
}

// LLMConfig selects the generation backend.
type LLMConfig struct {
	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
	APIKey    string `json:"api_key,omitempty"`
	APIKeyEnv string `json:"api_key_env,omitempty"`
	BaseURL   string `json:"base_url,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

type AuthConfig struct {
	JWTSecret     string `json:"jwt_secret,omitempty"`
	TokenTTLHours int    `json:"token_ttl_hours,omitempty"`
}

// StoreConfig picks where article versions are recorded.
type StoreConfig struct {
	Driver     string `json:"driver,omitempty"` // memory | postgres | firestore
	DSN        string `json:"dsn,omitempty"`
	ProjectID  string `json:"project_id,omitempty"`
	Collection string `json:"collection,omitempty"`
}

// DiffConfig tunes the change highlighting.
type DiffConfig struct {
	Granularity string `json:"granularity,omitempty"` // words | lines
	DropOld     bool   `json:"drop_substituted,omitempty"`
	Window      int    `json:"window,omitempty"`
	MaxTokens   int    `json:"max_tokens,omitempty"`
}

const (
	EnvAPIKey      = "BLACKNIGHT_API_KEY"
	EnvJWTSecret   = "JWT_SECRET"
	EnvDatabaseURL = "DATABASE_URL"
	EnvFirestore   = "FIRESTORE_PROJECT"
)

// Load reads JSON config from disk, then applies .env and environment
// overrides. A missing .env file is not an error.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	if c.LLM != nil {
		if c.LLM.APIKeyEnv != "" {
			if v := os.Getenv(c.LLM.APIKeyEnv); v != "" {
				c.LLM.APIKey = v
			}
		}
		if v := os.Getenv(EnvAPIKey); v != "" {
			c.LLM.APIKey = v
		}
	}
	if v := os.Getenv(EnvJWTSecret); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv(EnvDatabaseURL); v != "" && c.Store.DSN == "" {
		c.Store.DSN = v
	}
	if v := os.Getenv(EnvFirestore); v != "" && c.Store.ProjectID == "" {
		c.Store.ProjectID = v
	}
}

func (c Config) Validate() error {
	if c.LLM == nil || c.LLM.Provider == "" {
		return errors.New("llm config missing; please set llm.provider/model/api_key_env in config")
	}
	switch c.Store.Driver {
	case "", "memory":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store driver postgres requires store.dsn or %s", EnvDatabaseURL)
		}
	case "firestore":
		if c.Store.ProjectID == "" {
			return fmt.Errorf("store driver firestore requires store.project_id or %s", EnvFirestore)
		}
	default:
		return fmt.Errorf("store driver %s not supported", c.Store.Driver)
	}
	switch c.Diff.Granularity {
	case "", "words", "lines":
	default:
		return fmt.Errorf("diff granularity %s not supported", c.Diff.Granularity)
	}
	return nil
}

// Timeout is the per-call generation timeout.
func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c Config) TokenTTL() time.Duration {
	if c.Auth.TokenTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Auth.TokenTTLHours) * time.Hour
}
