package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every service configuration section.
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Store   StoreConfig
	Cache   CacheConfig
	Summary SummaryConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	cache, err := loadCacheConfig()
	if err != nil {
		return nil, err
	}

	summary, err := loadSummaryConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		AI:      ai,
		Store:   loadStoreConfig(),
		Cache:   cache,
		Summary: summary,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" as-is.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig describes the language-model backend.
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled reports whether the required credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds an Ark model instance from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("missing Ark credentials: provide ARK_API_KEY + ARK_MODEL, or AK/SK")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// StoreConfig describes the database of record.
type StoreConfig struct {
	// DatabaseURL is a Postgres connection string. Empty selects the
	// in-memory store, which is sufficient for local development.
	DatabaseURL string
}

func loadStoreConfig() StoreConfig {
	return StoreConfig{
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
	}
}

// CacheConfig describes the two session cache tiers.
type CacheConfig struct {
	// Path locates the SQLite cache file; empty uses the default location.
	Path string
	// MemoryTTL bounds the freshness window of the in-process tier.
	MemoryTTL time.Duration
}

func loadCacheConfig() (CacheConfig, error) {
	ttlMinutes := 30
	if override, err := parseOptionalIntEnv("CACHE_MEMORY_TTL_MINUTES"); err != nil {
		return CacheConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return CacheConfig{}, fmt.Errorf("CACHE_MEMORY_TTL_MINUTES must be at least 1")
		}
		ttlMinutes = *override
	}

	return CacheConfig{
		Path:      strings.TrimSpace(os.Getenv("CACHE_PATH")),
		MemoryTTL: time.Duration(ttlMinutes) * time.Minute,
	}, nil
}

// SummaryConfig describes summary generation behavior.
type SummaryConfig struct {
	// Timeout bounds each model call in the summary/title/prompt generators.
	Timeout time.Duration
}

func loadSummaryConfig() (SummaryConfig, error) {
	timeoutSeconds := 10
	if override, err := parseOptionalIntEnv("SUMMARY_TIMEOUT_SECONDS"); err != nil {
		return SummaryConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return SummaryConfig{}, fmt.Errorf("SUMMARY_TIMEOUT_SECONDS must be at least 1")
		}
		timeoutSeconds = *override
	}

	return SummaryConfig{Timeout: time.Duration(timeoutSeconds) * time.Second}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
