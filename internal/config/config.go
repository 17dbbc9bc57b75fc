// Package config provides configuration for the API server.
//
// Values come from built-in defaults, then an optional YAML file named by
// TITI_CONFIG_FILE, then environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Host               string        `yaml:"host"`
	ServerPort         string        `yaml:"port"`
	ServerReadTimeout  time.Duration `yaml:"read_timeout"`
	ServerWriteTimeout time.Duration `yaml:"write_timeout"`
	TLSCertFile        string        `yaml:"tls_cert_file"`
	TLSKeyFile         string        `yaml:"tls_key_file"`
	StaticDir          string        `yaml:"static_dir"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`

	// Storage
	StoreBackend     string `yaml:"store_backend"`
	ConversationsDir string `yaml:"conversations_dir"`
	BoltPath         string `yaml:"bolt_path"`

	// LLM settings
	LLMProvider     string  `yaml:"llm_provider"`
	LLMModel        string  `yaml:"llm_model"`
	LLMBaseURL      string  `yaml:"llm_base_url"`
	LLMTemperature  float64 `yaml:"llm_temperature"`
	LLMWarmup       bool    `yaml:"llm_warmup"`
	QueryMaxTokens  int     `yaml:"query_max_tokens"`
	AnswerMaxTokens int     `yaml:"answer_max_tokens"`
	PromptFormat    string  `yaml:"prompt_format"`
	AnthropicAPIKey string  `yaml:"-"`
	OpenAIAPIKey    string  `yaml:"-"`
	GeminiAPIKey    string  `yaml:"-"`

	// Search settings
	SearchProvider     string        `yaml:"search_provider"`
	SearXNGURL         string        `yaml:"searxng_url"`
	BraveAPIKey        string        `yaml:"-"`
	SearchTimeout      time.Duration `yaml:"search_timeout"`
	AcademicMaxResults int           `yaml:"academic_max_results"`
	LegalMaxResults    int           `yaml:"legal_max_results"`
	MaxHistoryTurns    int           `yaml:"max_history_turns"`

	// Auth and rate limiting
	JWTSecret         string        `yaml:"-"`
	RateLimitRequests int           `yaml:"rate_limit_requests"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window"`

	// NATS journal (disabled when URL is empty)
	NATSURL      string `yaml:"nats_url"`
	NATSCAFile   string `yaml:"nats_ca_file"`
	NATSCertFile string `yaml:"nats_cert_file"`
	NATSKeyFile  string `yaml:"nats_key_file"`
	NATSToken    string `yaml:"-"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Tracing
	TracingEndpoint string `yaml:"tracing_endpoint"`
	TracingEnabled  bool   `yaml:"tracing_enabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Host:               "127.0.0.1",
		ServerPort:         "8010",
		ServerReadTimeout:  30 * time.Second,
		ServerWriteTimeout: 10 * time.Minute,
		StaticDir:          "static",
		CORSAllowedOrigins: []string{"*"},

		StoreBackend:     "file",
		ConversationsDir: "conversations",
		BoltPath:         "data/titi.bolt",

		LLMProvider:     "local",
		LLMModel:        "gemma2:2b",
		LLMBaseURL:      "http://localhost:11434/v1",
		LLMTemperature:  0.35,
		LLMWarmup:       true,
		QueryMaxTokens:  50,
		AnswerMaxTokens: 2000,
		PromptFormat:    "auto",

		SearchProvider:     "duckduckgo",
		SearchTimeout:      15 * time.Second,
		AcademicMaxResults: 12,
		LegalMaxResults:    4,
		MaxHistoryTurns:    6,

		RateLimitRequests: 30,
		RateLimitWindow:   time.Minute,

		LogLevel: "info",

		TracingEndpoint: "localhost:4318",
	}
}

// Load reads configuration from the optional file and environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("TITI_CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	// Server
	cfg.Host = getEnv("HOST", cfg.Host)
	cfg.ServerPort = getEnv("PORT", cfg.ServerPort)
	cfg.ServerReadTimeout = getDurationEnv("SERVER_READ_TIMEOUT", cfg.ServerReadTimeout)
	cfg.ServerWriteTimeout = getDurationEnv("SERVER_WRITE_TIMEOUT", cfg.ServerWriteTimeout)
	cfg.TLSCertFile = getEnv("TLS_CERT_FILE", cfg.TLSCertFile)
	cfg.TLSKeyFile = getEnv("TLS_KEY_FILE", cfg.TLSKeyFile)
	cfg.StaticDir = getEnv("STATIC_DIR", cfg.StaticDir)
	cfg.CORSAllowedOrigins = getListEnv("CORS_ALLOWED_ORIGINS", cfg.CORSAllowedOrigins)

	// Storage
	cfg.StoreBackend = getEnv("STORE_BACKEND", cfg.StoreBackend)
	cfg.ConversationsDir = getEnv("CONVERSATIONS_DIR", cfg.ConversationsDir)
	cfg.BoltPath = getEnv("BOLT_PATH", cfg.BoltPath)

	// LLM
	cfg.LLMProvider = getEnv("LLM_PROVIDER", cfg.LLMProvider)
	cfg.LLMModel = getEnv("LLM_MODEL", cfg.LLMModel)
	cfg.LLMBaseURL = getEnv("LLM_BASE_URL", cfg.LLMBaseURL)
	cfg.LLMTemperature = getFloatEnv("LLM_TEMPERATURE", cfg.LLMTemperature)
	cfg.LLMWarmup = getBoolEnv("LLM_WARMUP", cfg.LLMWarmup)
	cfg.QueryMaxTokens = getIntEnv("QUERY_MAX_TOKENS", cfg.QueryMaxTokens)
	cfg.AnswerMaxTokens = getIntEnv("ANSWER_MAX_TOKENS", cfg.AnswerMaxTokens)
	cfg.PromptFormat = getEnv("PROMPT_FORMAT", cfg.PromptFormat)
	cfg.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)
	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.GeminiAPIKey = getEnv("GEMINI_API_KEY", cfg.GeminiAPIKey)

	// Search
	cfg.SearchProvider = getEnv("SEARCH_PROVIDER", cfg.SearchProvider)
	cfg.SearXNGURL = getEnv("SEARXNG_URL", cfg.SearXNGURL)
	cfg.BraveAPIKey = getEnv("BRAVE_API_KEY", cfg.BraveAPIKey)
	cfg.SearchTimeout = getDurationEnv("SEARCH_TIMEOUT", cfg.SearchTimeout)
	cfg.AcademicMaxResults = getIntEnv("ACADEMIC_MAX_RESULTS", cfg.AcademicMaxResults)
	cfg.LegalMaxResults = getIntEnv("LEGAL_MAX_RESULTS", cfg.LegalMaxResults)
	cfg.MaxHistoryTurns = getIntEnv("MAX_HISTORY_TURNS", cfg.MaxHistoryTurns)

	// Auth and rate limiting
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.RateLimitRequests = getIntEnv("RATE_LIMIT_REQUESTS", cfg.RateLimitRequests)
	cfg.RateLimitWindow = getDurationEnv("RATE_LIMIT_WINDOW", cfg.RateLimitWindow)

	// NATS
	cfg.NATSURL = getEnv("NATS_URL", cfg.NATSURL)
	cfg.NATSCAFile = getEnv("NATS_CA_FILE", cfg.NATSCAFile)
	cfg.NATSCertFile = getEnv("NATS_CERT_FILE", cfg.NATSCertFile)
	cfg.NATSKeyFile = getEnv("NATS_KEY_FILE", cfg.NATSKeyFile)
	cfg.NATSToken = getEnv("NATS_TOKEN", cfg.NATSToken)

	// Logging
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	// Tracing
	cfg.TracingEndpoint = getEnv("TRACING_ENDPOINT", cfg.TracingEndpoint)
	cfg.TracingEnabled = getBoolEnv("TRACING_ENABLED", cfg.TracingEnabled)
}

// Validate rejects values the server cannot start with.
func (c *Config) Validate() error {
	if err := oneOf("STORE_BACKEND", c.StoreBackend, "file", "bolt"); err != nil {
		return err
	}
	if err := oneOf("LLM_PROVIDER", c.LLMProvider, "local", "openai", "anthropic", "gemini"); err != nil {
		return err
	}
	if err := oneOf("SEARCH_PROVIDER", c.SearchProvider, "duckduckgo", "searxng", "brave"); err != nil {
		return err
	}
	if err := oneOf("PROMPT_FORMAT", c.PromptFormat, "auto", "gemma", "plain"); err != nil {
		return err
	}
	if c.SearchProvider == "searxng" && c.SearXNGURL == "" {
		return fmt.Errorf("SEARXNG_URL is required when SEARCH_PROVIDER=searxng")
	}
	if c.SearchProvider == "brave" && c.BraveAPIKey == "" {
		return fmt.Errorf("BRAVE_API_KEY is required when SEARCH_PROVIDER=brave")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	if c.MaxHistoryTurns < 0 {
		return fmt.Errorf("MAX_HISTORY_TURNS must not be negative")
	}
	return nil
}

// ResolvedPromptFormat returns the prompt format to use. "auto" picks the
// gemma turn template for a local server, which then receives prompts on its
// raw completions endpoint, and plain sections for hosted chat APIs.
func (c *Config) ResolvedPromptFormat() string {
	if c.PromptFormat != "auto" {
		return c.PromptFormat
	}
	if c.LLMProvider == "local" {
		return "gemma"
	}
	return "plain"
}

// RawPrompt reports whether prompts go to the model verbatim, bypassing a
// chat template. Only a local server exposes a raw completions endpoint.
func (c *Config) RawPrompt() bool {
	return c.LLMProvider == "local" && c.ResolvedPromptFormat() == "gemma"
}

// TLSEnabled reports whether the server should serve HTTPS.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Host + ":" + c.ServerPort
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q (allowed: %s)", key, value, strings.Join(allowed, ", "))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
