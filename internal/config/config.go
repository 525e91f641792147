// Package config handles configuration loading and shared data structures.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/woozymasta/nbmap/internal/places"

	"gopkg.in/yaml.v3"
)

//go:embed varese.yaml
var defaultConfig []byte

// Config represents the root configuration file structure.
type Config struct {
	// Places grouped by category key ("bars", "cinemas", ...).
	Places      map[string][]places.Place `yaml:"places" json:"-"`
	ExternalIDs map[string]string         `yaml:"external_ids" json:"-"`
	Attribution string                    `yaml:"attribution,omitempty" json:"attribution,omitempty"`
	Foursquare  Foursquare                `yaml:"foursquare" json:"-"`
	Town        Town                      `yaml:"town" json:"town"`
}

// Town describes the initial map view.
type Town struct {
	Name   string          `yaml:"name" json:"name"`
	Center places.Position `yaml:"center" json:"center"`
	Zoom   int             `yaml:"zoom,omitempty" json:"zoom"`
}

// Foursquare holds venues API settings. Credentials are usually injected
// from the environment rather than stored in the file.
type Foursquare struct {
	BaseURL      string        `yaml:"base_url"`
	Version      string        `yaml:"version"`
	ClientID     string        `yaml:"client_id,omitempty"`
	ClientSecret string        `yaml:"client_secret,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`
}

// Load reads and parses the YAML configuration file from the specified path.
// An empty path yields the built-in town.
func Load(path string) (*Config, error) {
	if path == "" {
		return Parse(defaultConfig)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Default returns the built-in town configuration.
func Default() *Config {
	cfg, err := Parse(defaultConfig)
	if err != nil {
		panic(fmt.Sprintf("embedded config: %v", err))
	}
	return cfg
}

// Parse decodes YAML configuration and fills defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Town.Zoom <= 0 {
		cfg.Town.Zoom = 15
	}
	if cfg.Foursquare.BaseURL == "" {
		cfg.Foursquare.BaseURL = "https://api.foursquare.com/v2"
	}
	if cfg.Foursquare.Version == "" {
		cfg.Foursquare.Version = "20180323"
	}

	return &cfg, nil
}

// Catalog flattens the grouped places in category order and builds the catalog.
// The group key decides the category of every place under it.
func (c *Config) Catalog() (*places.Catalog, error) {
	grouped := make(map[places.Category][]places.Place, len(places.Categories))
	for key, list := range c.Places {
		cat, err := places.ParseCategory(key)
		if err != nil {
			return nil, fmt.Errorf("places group %q: %w", key, err)
		}
		for _, p := range list {
			p.Category = cat
			grouped[cat] = append(grouped[cat], p)
		}
	}

	flat := make([]places.Place, 0)
	for _, cat := range places.Categories {
		flat = append(flat, grouped[cat]...)
	}

	return places.NewCatalog(flat, c.ExternalIDs)
}
