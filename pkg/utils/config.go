package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Providers accepted in LLMConfig.Provider.
const (
	ProviderOpenAI = "openai"
	ProviderEcho   = "echo"
)

var (
	ErrMissingAPIKey     = errors.New("llm.api_key (OPENAI_API_KEY) is required for the openai provider")
	ErrInvalidProvider   = errors.New("llm.provider must be 'openai' or 'echo'")
	ErrInvalidLogLevel   = errors.New("log_level must be one of: debug, info, warn, error")
	ErrInvalidAttempts   = errors.New("max_merge_attempts must be at least 1")
	ErrInvalidMaxTokens  = errors.New("llm.max_tokens must be at least 1")
	ErrInvalidJWTSecret  = errors.New("auth.jwt_secret must not be empty")
	ErrInvalidJWTTimeout = errors.New("auth.jwt_ttl must be positive")
)

// Config is the process configuration. Values come from defaults, then the
// YAML file named by COLLABWIKI_CONFIG, then environment variables.
type Config struct {
	HTTPAddr         string     `yaml:"http_addr"`
	EventsAddr       string     `yaml:"events_addr"`
	GRPCAddr         string     `yaml:"grpc_addr"`
	AllowedOrigins   []string   `yaml:"allowed_origins"`
	LogLevel         string     `yaml:"log_level"`
	DBPath           string     `yaml:"db_path"`
	MaxMergeAttempts int        `yaml:"max_merge_attempts"`
	LLM              LLMConfig  `yaml:"llm"`
	Auth             AuthConfig `yaml:"auth"`
}

type LLMConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	// Model serves personas and improv; MergeModel serves merges and summaries.
	Model      string        `yaml:"model"`
	MergeModel string        `yaml:"merge_model"`
	MaxTokens  int           `yaml:"max_tokens"`
	Timeout    time.Duration `yaml:"timeout"`
}

type AuthConfig struct {
	JWTSecret   string        `yaml:"jwt_secret"`
	JWTIssuer   string        `yaml:"jwt_issuer"`
	JWTDuration time.Duration `yaml:"jwt_ttl"`
}

func Defaults() Config {
	return Config{
		HTTPAddr:         ":8080",
		EventsAddr:       ":7070",
		GRPCAddr:         ":9090",
		AllowedOrigins:   []string{"*"},
		LogLevel:         "info",
		MaxMergeAttempts: 3,
		LLM: LLMConfig{
			Provider:   ProviderOpenAI,
			Model:      "gpt-3.5-turbo",
			MergeModel: "gpt-4-turbo",
			MaxTokens:  500,
			Timeout:    60 * time.Second,
		},
		Auth: AuthConfig{
			// dev default (change for demo / production)
			JWTSecret:   "dev-secret-change-me",
			JWTIssuer:   "collabwiki",
			JWTDuration: 24 * time.Hour,
		},
	}
}

// Load builds the configuration and validates it.
func Load() (Config, error) {
	cfg, err := Resolve()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Resolve applies the config file and environment over Defaults without
// validating. Offline tools that only touch the database use it directly.
func Resolve() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("COLLABWIKI_CONFIG"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderOpenAI:
		if strings.TrimSpace(c.LLM.APIKey) == "" {
			return ErrMissingAPIKey
		}
	case ProviderEcho:
	default:
		return ErrInvalidProvider
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return ErrInvalidLogLevel
	}
	if c.MaxMergeAttempts < 1 {
		return ErrInvalidAttempts
	}
	if c.LLM.MaxTokens < 1 {
		return ErrInvalidMaxTokens
	}
	if c.Auth.JWTSecret == "" {
		return ErrInvalidJWTSecret
	}
	if c.Auth.JWTDuration <= 0 {
		return ErrInvalidJWTTimeout
	}
	return nil
}

func applyEnv(c *Config) error {
	setString(&c.HTTPAddr, "COLLABWIKI_HTTP_ADDR")
	setString(&c.EventsAddr, "COLLABWIKI_EVENTS_ADDR")
	setString(&c.GRPCAddr, "COLLABWIKI_GRPC_ADDR")
	setString(&c.LogLevel, "COLLABWIKI_LOG_LEVEL")
	setString(&c.DBPath, "COLLABWIKI_DB_PATH")
	if v := os.Getenv("COLLABWIKI_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}

	setString(&c.LLM.Provider, "COLLABWIKI_LLM_PROVIDER")
	setString(&c.LLM.APIKey, "OPENAI_API_KEY")
	setString(&c.LLM.BaseURL, "COLLABWIKI_LLM_BASE_URL")
	setString(&c.LLM.Model, "COLLABWIKI_LLM_MODEL")
	setString(&c.LLM.MergeModel, "COLLABWIKI_LLM_MERGE_MODEL")

	setString(&c.Auth.JWTSecret, "COLLABWIKI_JWT_SECRET")
	setString(&c.Auth.JWTIssuer, "COLLABWIKI_JWT_ISSUER")

	if err := setInt(&c.MaxMergeAttempts, "COLLABWIKI_MAX_MERGE_ATTEMPTS"); err != nil {
		return err
	}
	if err := setInt(&c.LLM.MaxTokens, "COLLABWIKI_LLM_MAX_TOKENS"); err != nil {
		return err
	}
	if v := os.Getenv("COLLABWIKI_LLM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("COLLABWIKI_LLM_TIMEOUT: %w", err)
		}
		c.LLM.Timeout = d
	}
	if v := os.Getenv("COLLABWIKI_JWT_TTL_HOURS"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("COLLABWIKI_JWT_TTL_HOURS: %w", err)
		}
		c.Auth.JWTDuration = time.Duration(hours) * time.Hour
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
