package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/routekit/routekit/prompt"
)

// Config is the versioned on-disk form of the model catalog and failover
// chains. It loads from TOML or YAML, chosen by file extension.
type Config struct {
	// DefaultModel designates the low-cost fallback model id.
	DefaultModel string `json:"default_model" toml:"default_model" yaml:"default_model"`

	// Models lists the catalog entries.
	Models []ModelConfig `json:"models" toml:"models" yaml:"models"`

	// Chains maps a model id to its ordered substitutes.
	Chains map[string][]string `json:"chains" toml:"chains" yaml:"chains"`
}

// ModelConfig is one catalog entry in configuration form. Category keys are
// plain strings here and validated during conversion.
type ModelConfig struct {
	ID                   string            `json:"id" toml:"id" yaml:"id"`
	Provider             string            `json:"provider" toml:"provider" yaml:"provider"`
	DisplayName          string            `json:"display_name" toml:"display_name" yaml:"display_name"`
	CostPerMillionInput  float64           `json:"cost_per_1m_input" toml:"cost_per_1m_input" yaml:"cost_per_1m_input"`
	CostPerMillionOutput float64           `json:"cost_per_1m_output" toml:"cost_per_1m_output" yaml:"cost_per_1m_output"`
	MaxContextTokens     int               `json:"max_context_tokens" toml:"max_context_tokens" yaml:"max_context_tokens"`
	SupportsStreaming    bool              `json:"supports_streaming" toml:"supports_streaming" yaml:"supports_streaming"`
	Ranks                map[string]int    `json:"ranks" toml:"ranks" yaml:"ranks"`
	MinimumTier          string            `json:"minimum_tier" toml:"minimum_tier" yaml:"minimum_tier"`
	PreferredCategories  []string          `json:"preferred_categories,omitempty" toml:"preferred_categories,omitempty" yaml:"preferred_categories,omitempty"`
	MonthlyTokenCap      int64             `json:"monthly_token_cap,omitempty" toml:"monthly_token_cap,omitempty" yaml:"monthly_token_cap,omitempty"`
}

// LoadConfig reads a catalog configuration file and builds a Catalog.
// Supported extensions: .toml, .yaml, .yml.
func LoadConfig(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog config: %w", err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported catalog config extension %q", ext)
	}

	return cfg.Build()
}

// Build converts the configuration into a Catalog, validating tiers and
// category names along the way.
func (c *Config) Build() (*Catalog, error) {
	models := make([]Descriptor, 0, len(c.Models))
	for _, mc := range c.Models {
		d, err := mc.descriptor()
		if err != nil {
			return nil, err
		}
		models = append(models, d)
	}

	defaultID := c.DefaultModel
	if defaultID == "" && len(models) > 0 {
		defaultID = models[0].ID
	}

	return NewCatalog(models, FailoverChains(c.Chains), defaultID)
}

func (mc *ModelConfig) descriptor() (Descriptor, error) {
	tier := Tier(mc.MinimumTier)
	if !tier.Valid() {
		return Descriptor{}, fmt.Errorf("model %s: invalid minimum tier %q", mc.ID, mc.MinimumTier)
	}

	ranks := make(map[prompt.Category]int, len(mc.Ranks))
	for name, rank := range mc.Ranks {
		cat := prompt.Category(name)
		if !cat.Valid() {
			return Descriptor{}, fmt.Errorf("model %s: unknown category %q", mc.ID, name)
		}
		ranks[cat] = rank
	}

	var preferred []prompt.Category
	for _, name := range mc.PreferredCategories {
		cat := prompt.Category(name)
		if !cat.Valid() {
			return Descriptor{}, fmt.Errorf("model %s: unknown preferred category %q", mc.ID, name)
		}
		preferred = append(preferred, cat)
	}

	return Descriptor{
		ID:                   mc.ID,
		Provider:             mc.Provider,
		DisplayName:          mc.DisplayName,
		CostPerMillionInput:  mc.CostPerMillionInput,
		CostPerMillionOutput: mc.CostPerMillionOutput,
		MaxContextTokens:     mc.MaxContextTokens,
		SupportsStreaming:    mc.SupportsStreaming,
		RankByCategory:       ranks,
		MinimumTier:          tier,
		PreferredCategories:  preferred,
		MonthlyTokenCap:      mc.MonthlyTokenCap,
	}, nil
}

// ConfigSchema returns the JSON Schema for the catalog configuration file,
// for editor validation and config linting tooling.
func ConfigSchema() *jsonschema.Schema {
	return jsonschema.Reflect(&Config{})
}
