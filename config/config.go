// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

// Package config loads and validates the gateway configuration file.
// Secrets are never stored inline: `${VAR}` references in the YAML are
// expanded from the environment at load time, so the same file works
// across environments and can be committed without credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"educhat/platform/gateway"
	"educhat/platform/metering"
)

// Defaults applied when the file leaves fields unset.
const (
	DefaultPort            = 8080
	DefaultShutdownTimeout = 30 * time.Second
	DefaultRateLimitPerMin = 60
	DefaultBudgetMinutes   = 60 * 24 * 30
)

// Config is the top-level gateway configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Models   []ModelEntry   `yaml:"models"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// AdminToken guards the key-management API. Leave it unset to
	// disable that surface entirely.
	AdminToken string `yaml:"admin_token"`
}

// DatabaseConfig names the postgres connection.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig names the redis connection used by the rate limiter.
type RedisConfig struct {
	Addr            string `yaml:"addr"`
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// ModelEntry is one routable model: vendor wiring plus pricing.
type ModelEntry struct {
	ID       string           `yaml:"id"`
	Vendor   string           `yaml:"vendor"`
	Model    string           `yaml:"model"`
	BaseURL  string           `yaml:"base_url"`
	APIKey   string           `yaml:"api_key"`
	Settings gateway.Settings `yaml:"settings"`
	Pricing  PricingEntry     `yaml:"pricing"`
}

// PricingEntry is the per-model price card. Rates are integer
// hundredths of a cent per million tokens, images are hundredths of a
// cent per image.
type PricingEntry struct {
	Kind              string `yaml:"kind"`
	PromptPerMTok     int64  `yaml:"prompt_per_mtok"`
	CompletionPerMTok int64  `yaml:"completion_per_mtok"`
	PerImage          int64  `yaml:"per_image"`
}

// Load reads, env-expands, parses, and validates the file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(raw)
}

// Parse parses and validates raw YAML config bytes.
func Parse(raw []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(raw))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Redis.RateLimitPerMin == 0 {
		c.Redis.RateLimitPerMin = DefaultRateLimitPerMin
	}
}

// Validate checks structural consistency. Vendor-specific settings are
// validated later by adapter construction; this pass catches what the
// file format itself can get wrong.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if len(c.Models) == 0 {
		return fmt.Errorf("at least one model is required")
	}

	seen := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		if m.ID == "" {
			return fmt.Errorf("models[%d]: id is required", i)
		}
		if seen[m.ID] {
			return fmt.Errorf("models[%d]: duplicate model id %q", i, m.ID)
		}
		seen[m.ID] = true
		if m.Vendor == "" {
			return fmt.Errorf("model %q: vendor is required", m.ID)
		}
		if err := m.Pricing.validate(m.ID); err != nil {
			return err
		}
	}
	return nil
}

func (p PricingEntry) validate(modelID string) error {
	switch p.Kind {
	case "", string(metering.PriceKindText), string(metering.PriceKindEmbedding), string(metering.PriceKindImage):
	default:
		return fmt.Errorf("model %q: unknown pricing kind %q", modelID, p.Kind)
	}
	if p.PromptPerMTok < 0 || p.CompletionPerMTok < 0 || p.PerImage < 0 {
		return fmt.Errorf("model %q: pricing rates must be non-negative", modelID)
	}
	return nil
}

// ModelConfigs maps the entries into adapter construction inputs.
func (c *Config) ModelConfigs() []gateway.ModelConfig {
	out := make([]gateway.ModelConfig, 0, len(c.Models))
	for _, m := range c.Models {
		out = append(out, gateway.ModelConfig{
			ID:       m.ID,
			Vendor:   gateway.VendorType(m.Vendor),
			Model:    m.Model,
			BaseURL:  m.BaseURL,
			APIKey:   m.APIKey,
			Settings: m.Settings,
		})
	}
	return out
}

// Prices returns the per-model price table. Models without a pricing
// block get an unknown-kind price, which meters to zero cost and is
// logged by the recorder.
func (c *Config) Prices() map[string]metering.PriceModel {
	out := make(map[string]metering.PriceModel, len(c.Models))
	for _, m := range c.Models {
		out[m.ID] = metering.PriceModel{
			Kind:              metering.PriceKind(m.Pricing.Kind),
			PromptPerMTok:     m.Pricing.PromptPerMTok,
			CompletionPerMTok: m.Pricing.CompletionPerMTok,
			PerImage:          m.Pricing.PerImage,
		}
	}
	return out
}
