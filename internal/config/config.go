package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models toolroom.yml. It is loaded once at startup and read-only
// afterwards; the engine never mutates it.
type Config struct {
	Workshop struct {
		ID   string `yaml:"id" json:"id"`
		Name string `yaml:"name" json:"name"`
	} `yaml:"workshop" json:"workshop"`
	Rental struct {
		// DailyFineRateCents is charged per late day, rounded up.
		DailyFineRateCents int64 `yaml:"daily_fine_rate_cents" json:"daily_fine_rate_cents"`
		// DefaultDays sets the rental end date when none is given at approval.
		DefaultDays int `yaml:"default_days" json:"default_days"`
	} `yaml:"rental" json:"rental"`
	Locks struct {
		// AcquireTimeoutSeconds bounds how long a mutating operation waits
		// for the per-item lock before failing with lock_timeout.
		AcquireTimeoutSeconds int `yaml:"acquire_timeout_seconds" json:"acquire_timeout_seconds"`
	} `yaml:"locks" json:"locks"`
	Webhooks []WebhookConfig `yaml:"webhooks" json:"webhooks,omitempty"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url" json:"url"`
	Secret         string   `yaml:"secret" json:"secret,omitempty"`
	Events         []string `yaml:"events" json:"events,omitempty"`
	Enabled        *bool    `yaml:"enabled" json:"enabled,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds" json:"timeout_seconds,omitempty"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Workshop.ID == "" {
		return fmt.Errorf("config.workshop.id is required")
	}
	if c.Rental.DailyFineRateCents < 0 {
		return fmt.Errorf("config.rental.daily_fine_rate_cents must be >= 0")
	}
	if c.Rental.DefaultDays <= 0 {
		return fmt.Errorf("config.rental.default_days must be > 0")
	}
	if c.Locks.AcquireTimeoutSeconds < 0 {
		return fmt.Errorf("config.locks.acquire_timeout_seconds must be >= 0")
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "toolroom.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config for a workshop.
func Default(workshopID string) *Config {
	var cfg Config
	cfg.Workshop.ID = workshopID
	cfg.Workshop.Name = workshopID
	cfg.Rental.DailyFineRateCents = 250
	cfg.Rental.DefaultDays = 7
	cfg.Locks.AcquireTimeoutSeconds = 5
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault(workshopID string) string {
	return fmt.Sprintf(`workshop:
  id: %s
  name: %s

rental:
  # fine charged per late day, in cents (250 = 2.50)
  daily_fine_rate_cents: 250
  default_days: 7

locks:
  acquire_timeout_seconds: 5

webhooks: []
`, workshopID, workshopID)
}
