package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultConfigPath is read when no explicit path is given. It is optional.
const DefaultConfigPath = "config.yaml"

// Generation modes.
const (
	ModeSingle   = "single"
	ModeTwoStage = "two_stage"
)

// Config holds all configuration for askdb.
// Configuration can come from a YAML file or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (DSN, API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	Database  DatabaseConfig  `yaml:"database"`
	LLM       LLMConfig       `yaml:"llm"`
	Generator GeneratorConfig `yaml:"generator"`
	Identity  IdentityConfig  `yaml:"identity"`
}

// DatabaseConfig holds the target PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string `yaml:"-" env:"POSTGRES_DSN"` // Secret - not in YAML
	Schema          string `yaml:"schema" env:"PG_SCHEMA" env-default:"public"`
	ReadOnlyRole    string `yaml:"readonly_role" env:"READONLY_ROLE" env-default:""`
	ReadOnlySession bool   `yaml:"read_only_session" env:"PG_READ_ONLY_SESSION" env-default:"true"`
	UsersTable      string `yaml:"users_table" env:"USERS_TABLE" env-default:"users"`
	MaxConnections  int    `yaml:"max_connections" env:"PG_MAX_CONNECTIONS" env-default:"10"`
}

// LLMConfig selects and tunes the generation backend.
type LLMConfig struct {
	Provider            string  `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	BaseURL             string  `yaml:"base_url" env:"LLM_BASE_URL" env-default:""`
	Model               string  `yaml:"model" env:"OPENAI_MODEL" env-default:"gpt-4o-mini"`
	OpenAIAPIKey        string  `yaml:"-" env:"OPENAI_API_KEY"`    // Secret - not in YAML
	AnthropicAPIKey     string  `yaml:"-" env:"ANTHROPIC_API_KEY"` // Secret - not in YAML
	Temperature         float64 `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0.1"`
	TimeoutSeconds      int     `yaml:"timeout_seconds" env:"LLM_TIMEOUT_SECONDS" env-default:"30"`
	MaxTokens           int     `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"1024"`
	BreakerThreshold    int     `yaml:"breaker_threshold" env:"LLM_BREAKER_THRESHOLD" env-default:"5"`
	BreakerResetSeconds int     `yaml:"breaker_reset_seconds" env:"LLM_BREAKER_RESET_SECONDS" env-default:"30"`
	JSONMode            bool    `yaml:"json_mode" env:"LLM_JSON_MODE" env-default:"false"` // OpenAI-compatible only
}

// Timeout bounds a single backend call.
func (c *LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BreakerReset is how long an open circuit waits before a trial call.
func (c *LLMConfig) BreakerReset() time.Duration {
	return time.Duration(c.BreakerResetSeconds) * time.Second
}

// GeneratorConfig tunes SQL generation.
type GeneratorConfig struct {
	Mode                   string `yaml:"mode" env:"GENERATOR_MODE" env-default:"single"`
	ContextSize            int    `yaml:"context_size" env:"CONTEXT_SIZE" env-default:"12"`
	ExamplesPath           string `yaml:"examples_path" env:"EXAMPLES_PATH" env-default:"data/sql_examples.yaml"`
	MaxExamples            int    `yaml:"max_examples" env:"MAX_EXAMPLES" env-default:"10"`
	DateColumn             string `yaml:"date_column" env:"DATE_COLUMN" env-default:"created_at"`
	ScopeColumn            string `yaml:"scope_column" env:"SCOPE_COLUMN" env-default:"company_id"`
	DefaultLimit           int    `yaml:"default_limit" env:"DEFAULT_LIMIT" env-default:"200"`
	ExecuteOnClarification bool   `yaml:"execute_on_clarification" env:"EXECUTE_ON_CLARIFICATION" env-default:"false"`

	// PreferredTablesStr is a comma-separated list in priority order.
	PreferredTablesStr string `yaml:"preferred_tables" env:"PREFERRED_TABLES" env-default:"tasks,task,users,user"`
	// BusinessRulesStr is a "|"-separated list of rule lines; empty keeps the built-in rules.
	BusinessRulesStr string `yaml:"business_rules" env:"BUSINESS_RULES" env-default:""`

	// Parsed from the string fields above (not from config file).
	PreferredTables []string `yaml:"-"`
	BusinessRules   []string `yaml:"-"`
}

// IdentityConfig controls identity enrichment from the users table.
type IdentityConfig struct {
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds" env:"IDENTITY_CACHE_TTL_SECONDS" env-default:"60"`
	CacheCapacity   uint64 `yaml:"cache_capacity" env:"IDENTITY_CACHE_CAPACITY" env-default:"1000"`
}

// CacheTTL is how long an enriched identity is reused.
func (c *IdentityConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Load reads configuration from path (or config.yaml when empty) with environment
// variable overrides. A missing default file is not an error; a missing explicit
// path is. The version parameter is injected at build time.
func Load(version, path string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}

	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	case errors.Is(statErr, fs.ErrNotExist) && !explicit:
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, statErr)
	}

	cfg.parseComplexFields()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// parseComplexFields handles fields that need post-processing after loading.
func (c *Config) parseComplexFields() {
	c.Generator.PreferredTables = splitList(c.Generator.PreferredTablesStr, ",")
	c.Generator.BusinessRules = splitList(c.Generator.BusinessRulesStr, "|")
	c.Database.DSN = ResolveDSNForDocker(c.Database.DSN)
}

// Validate checks ranges and enumerations. The DSN is checked by commands that need it.
func (c *Config) Validate() error {
	var errs []error

	switch c.Generator.Mode {
	case ModeSingle, ModeTwoStage:
	default:
		errs = append(errs, fmt.Errorf("generator mode must be %q or %q, got %q", ModeSingle, ModeTwoStage, c.Generator.Mode))
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "openai", "anthropic":
	default:
		errs = append(errs, fmt.Errorf("llm provider must be openai or anthropic, got %q", c.LLM.Provider))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log level must be debug, info, warn or error, got %q", c.LogLevel))
	}

	if c.Generator.DefaultLimit < 1 || c.Generator.DefaultLimit > 10000 {
		errs = append(errs, fmt.Errorf("default limit must be between 1 and 10000, got %d", c.Generator.DefaultLimit))
	}
	if c.Generator.ContextSize < 1 {
		errs = append(errs, fmt.Errorf("context size must be positive, got %d", c.Generator.ContextSize))
	}
	if c.Generator.MaxExamples < 0 || c.Generator.MaxExamples > 10 {
		errs = append(errs, fmt.Errorf("max examples must be between 0 and 10, got %d", c.Generator.MaxExamples))
	}
	if c.Generator.ScopeColumn == "" {
		errs = append(errs, errors.New("scope column must not be empty"))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("llm temperature must be between 0 and 2, got %g", c.LLM.Temperature))
	}
	if c.LLM.TimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("llm timeout must be at least 1 second, got %d", c.LLM.TimeoutSeconds))
	}
	if c.LLM.BreakerThreshold < 1 {
		errs = append(errs, fmt.Errorf("breaker threshold must be positive, got %d", c.LLM.BreakerThreshold))
	}
	if c.Database.MaxConnections < 1 {
		errs = append(errs, fmt.Errorf("max connections must be positive, got %d", c.Database.MaxConnections))
	}
	if c.Identity.CacheTTLSeconds < 0 {
		errs = append(errs, fmt.Errorf("identity cache ttl must not be negative, got %d", c.Identity.CacheTTLSeconds))
	}

	return errors.Join(errs...)
}

// RequireDatabase reports an error when no DSN is configured.
func (c *Config) RequireDatabase() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("POSTGRES_DSN is required")
	}
	return nil
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return c.BindAddr + ":" + c.Port
}

func splitList(value, sep string) []string {
	var out []string
	for _, part := range strings.Split(value, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
