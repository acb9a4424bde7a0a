// Package config loads the YAML runtime configuration: per-provider driver
// settings, the fallback order, and the loop iteration bound.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dimdasci/agent-primitives/pkg/driver"
	"github.com/dimdasci/agent-primitives/pkg/errmodel"
)

// Section holds the settings for one named provider. Zero fields inherit
// from the default section.
type Section struct {
	Provider    string   `yaml:"provider"`
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   *int     `yaml:"max_tokens"`
	APIKey      string   `yaml:"api_key"`
	BaseURL     string   `yaml:"base_url"`
}

// File is the parsed configuration document.
type File struct {
	Default       Section            `yaml:"default"`
	Providers     map[string]Section `yaml:"providers"`
	Fallback      []string           `yaml:"fallback"`
	MaxIterations int                `yaml:"max_iterations"`
}

// Load reads and parses a config file.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(b)
}

// Parse parses a YAML configuration document.
func Parse(b []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	return &f, nil
}

// merged overlays a provider section on top of the default section and
// expands environment references in the API key, so configs can carry
// "${OPENAI_API_KEY}" instead of the credential itself.
func (f *File) merged(name string, s Section) driver.Config {
	cfg := driver.Config{
		Provider: s.Provider,
		Model:    s.Model,
		APIKey:   s.APIKey,
		BaseURL:  s.BaseURL,
	}
	if cfg.Provider == "" {
		cfg.Provider = name
	}
	if cfg.Model == "" {
		cfg.Model = f.Default.Model
	}
	if cfg.APIKey == "" {
		cfg.APIKey = f.Default.APIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = f.Default.BaseURL
	}
	temp := s.Temperature
	if temp == nil {
		temp = f.Default.Temperature
	}
	if temp != nil {
		cfg.Temperature = *temp
	}
	maxTokens := s.MaxTokens
	if maxTokens == nil {
		maxTokens = f.Default.MaxTokens
	}
	if maxTokens != nil {
		cfg.MaxTokens = *maxTokens
	}
	cfg.APIKey = os.ExpandEnv(cfg.APIKey)
	return cfg
}

// DriverConfigs returns the merged config for every named provider, keyed by
// lookup name, ready to seed a driver pool.
func (f *File) DriverConfigs() map[string]driver.Config {
	out := make(map[string]driver.Config, len(f.Providers))
	for name, s := range f.Providers {
		out[name] = f.merged(name, s)
	}
	return out
}

// DriverConfig returns the merged config for one named provider.
func (f *File) DriverConfig(name string) (driver.Config, error) {
	s, ok := f.Providers[name]
	if !ok {
		return driver.Config{}, errmodel.Config("unknown_provider",
			"no configuration for provider "+name, map[string]any{"provider": name})
	}
	return f.merged(name, s), nil
}

// FallbackOrder returns the configured provider order. With no explicit
// order, configs with a single provider fall back to that provider alone.
func (f *File) FallbackOrder() []string {
	if len(f.Fallback) > 0 {
		return f.Fallback
	}
	if len(f.Providers) == 1 {
		for name := range f.Providers {
			return []string{name}
		}
	}
	return nil
}

// Iterations returns the configured loop bound, defaulting when unset.
func (f *File) Iterations() int {
	if f.MaxIterations > 0 {
		return f.MaxIterations
	}
	return 10
}
