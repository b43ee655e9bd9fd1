// Package config provides configuration loading, validation, and management
// for the halobot service.
//
// KEY PRINCIPLES:
//
//  1. SEPARATION OF CONCERNS: the business profile (identity, bank details,
//     catalog seed, loyalty parameters) lives in a YAML file; secrets (LLM
//     API keys) come from the environment and are never written to disk.
//
//  2. GLOBAL SINGLETON: a single Config instance is maintained in memory,
//     protected by a mutex.
//
//  3. VALUE-BASED ACCESS: Get() returns the config BY VALUE to prevent
//     external mutation. State (order status, timestamps) belongs in the
//     database, never in config.
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"halobot/pkg/logx"
)

//nolint:gochecknoglobals // Intentional singleton pattern for config management
var (
	config *Config
	mu     sync.RWMutex
	logger = logx.NewLogger("config")
)

// BankDetails are included verbatim in payment instructions.
type BankDetails struct {
	BankName      string `yaml:"bank_name"`
	AccountName   string `yaml:"account_name"`
	AccountNumber string `yaml:"account_number"`
}

// CatalogItem is one sellable product in the business profile.
type CatalogItem struct {
	Name      string  `yaml:"name"`
	Price     float64 `yaml:"price"`
	Available bool    `yaml:"available"`
}

// BusinessConfig identifies the business and its storefront details.
type BusinessConfig struct {
	ID            string        `yaml:"id"`
	Name          string        `yaml:"name"`
	OwnerPhone    string        `yaml:"owner_phone"`
	CurrencySign  string        `yaml:"currency_sign"`
	PickupAddress string        `yaml:"pickup_address"`
	PickupHours   string        `yaml:"pickup_hours"`
	Bank          BankDetails   `yaml:"bank"`
	Catalog       []CatalogItem `yaml:"catalog"`
}

// LLMConfig selects the reply-composition model and its bounds.
type LLMConfig struct {
	Provider    string        `yaml:"provider"` // anthropic, openai, ollama
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`

	// Local usage caps. Zero disables the corresponding check.
	MaxTokensPerMinute int `yaml:"max_tokens_per_minute"`
	DailyRequestBudget int `yaml:"daily_request_budget"`
}

// EngineConfig bounds conversation context reconstruction.
type EngineConfig struct {
	HistoryTurns       int `yaml:"history_turns"`        // message turns included in context
	ContextTokenBudget int `yaml:"context_token_budget"` // hard token cap on serialized context
}

// LoyaltyConfig controls point accrual on completed orders.
type LoyaltyConfig struct {
	PointsPerUnit float64 `yaml:"points_per_unit"` // points per 1 currency unit spent
	WelcomeBonus  int     `yaml:"welcome_bonus"`
	SilverAt      float64 `yaml:"silver_at"` // lifetime spend thresholds
	GoldAt        float64 `yaml:"gold_at"`
}

// ReminderConfig controls the stale-payment nudge job.
type ReminderConfig struct {
	Schedule string        `yaml:"schedule"` // cron expression
	StaleAge time.Duration `yaml:"stale_age"`
}

// Config is the root configuration object.
type Config struct {
	Business BusinessConfig `yaml:"business"`
	LLM      LLMConfig      `yaml:"llm"`
	Engine   EngineConfig   `yaml:"engine"`
	Loyalty  LoyaltyConfig  `yaml:"loyalty"`
	Reminder ReminderConfig `yaml:"reminder"`

	DBPath     string `yaml:"db_path"`
	ListenAddr string `yaml:"listen_addr"`

	// GatewayURL is the outbound messaging bridge endpoint. Empty means
	// console-only delivery (development mode).
	GatewayURL string `yaml:"gateway_url"`

	// Secrets, populated from the environment on load. Never serialized.
	AnthropicAPIKey string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	OllamaHost      string `yaml:"-"`
	GatewayAPIKey   string `yaml:"-"`
	AdminToken      string `yaml:"-"`
}

// defaults returns a config with every non-identity field filled in.
func defaults() Config {
	return Config{
		LLM: LLMConfig{
			Provider:    "anthropic",
			Model:       "claude-sonnet-4-5",
			MaxTokens:   1024,
			Temperature: 0.7,
			Timeout:     20 * time.Second,
		},
		Engine: EngineConfig{
			HistoryTurns:       6,
			ContextTokenBudget: 2048,
		},
		Loyalty: LoyaltyConfig{
			PointsPerUnit: 0.01, // 1 point per ₦100
			WelcomeBonus:  100,
			SilverAt:      50000,
			GoldAt:        100000,
		},
		Reminder: ReminderConfig{
			Schedule: "0 * * * *", // hourly
			StaleAge: 6 * time.Hour,
		},
		DBPath:     "halobot.db",
		ListenAddr: ":8080",
	}
}

// Load reads the business profile YAML, merges env secrets, validates, and
// installs the global config. Must be called once at startup.
func Load(path string) error {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OllamaHost = os.Getenv("OLLAMA_HOST")
	cfg.GatewayAPIKey = os.Getenv("HALOBOT_GATEWAY_API_KEY")
	cfg.AdminToken = os.Getenv("HALOBOT_ADMIN_TOKEN")

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	mu.Lock()
	config = &cfg
	mu.Unlock()

	logger.Info("Config loaded for business %s (%d catalog items)", cfg.Business.ID, len(cfg.Business.Catalog))
	return nil
}

// Set installs a config directly. Intended for tests.
func Set(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	config = &cfg
}

// Get returns the current config by value.
func Get() (Config, error) {
	mu.RLock()
	defer mu.RUnlock()

	if config == nil {
		return Config{}, fmt.Errorf("config not loaded: call config.Load first")
	}
	return *config, nil
}

// Validate rejects configs that would misbehave at runtime.
func (c *Config) Validate() error {
	if c.Business.ID == "" {
		return fmt.Errorf("business.id is required")
	}
	if c.Business.Name == "" {
		return fmt.Errorf("business.name is required")
	}
	switch c.LLM.Provider {
	case "anthropic", "openai", "ollama":
	default:
		return fmt.Errorf("llm.provider must be anthropic, openai, or ollama (got %q)", c.LLM.Provider)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive")
	}
	if c.Engine.HistoryTurns <= 0 {
		return fmt.Errorf("engine.history_turns must be positive")
	}
	for i := range c.Business.Catalog {
		item := &c.Business.Catalog[i]
		if item.Name == "" {
			return fmt.Errorf("catalog item %d has empty name", i)
		}
		if item.Price < 0 {
			return fmt.Errorf("catalog item %q has negative price", item.Name)
		}
	}
	return nil
}
