package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/civic-map-service/internal/domain"
)

// localeFile mirrors domain.Locale with pointer colors so an explicit black
// override is told apart from an absent key.
type localeFile struct {
	Palette      map[domain.State]domain.RGB `yaml:"palette"`
	Fallback     *domain.RGB                 `yaml:"fallback"`
	NoiseColor   *domain.RGB                 `yaml:"noise_color"`
	Categories   []string                    `yaml:"categories"`
	StateAliases map[string]domain.State     `yaml:"state_aliases"`
}

// LoadLocale returns the default locale, overridden by the YAML file at path
// when path is non-empty. Keys absent from the file keep their defaults.
func LoadLocale(path string) (*domain.Locale, error) {
	locale := domain.DefaultLocale()
	if path == "" {
		return locale, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locale file: %w", err)
	}

	var override localeFile
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parse locale file %s: %w", path, err)
	}

	for state, color := range override.Palette {
		locale.Palette[state] = color
	}
	for alias, state := range override.StateAliases {
		locale.StateAliases[alias] = state
	}
	if len(override.Categories) > 0 {
		locale.Categories = override.Categories
	}
	if override.Fallback != nil {
		locale.Fallback = *override.Fallback
	}
	if override.NoiseColor != nil {
		locale.NoiseColor = *override.NoiseColor
	}
	return locale, nil
}
