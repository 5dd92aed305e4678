package config

import (
	"context"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	// Compositing surface
	Surface SurfaceConfig `yaml:"surface"`

	// Timeline editing behavior
	Timeline TimelineConfig `yaml:"timeline"`

	// Asset preloading
	Preload PreloadConfig `yaml:"preload"`

	// Autosave cadence
	Autosave AutosaveConfig `yaml:"autosave"`

	// External collaborators
	Services ServiceConfig `yaml:"services"`
}

type SurfaceConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type TimelineConfig struct {
	// SnapGranularity is the time snapped to, in seconds.
	SnapGranularity float64 `yaml:"snap_granularity"`
	// ImageDuration is the default duration of a newly placed image clip.
	ImageDuration float64 `yaml:"image_duration"`
	// MinHandleSize is the smallest transform box edge a drag may produce, px.
	MinHandleSize float64 `yaml:"min_handle_size"`
}

type PreloadConfig struct {
	// TimeoutSeconds bounds each individual asset fetch.
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// Workers is the number of concurrent preload fetches.
	Workers int `yaml:"workers"`
}

type AutosaveConfig struct {
	Enabled bool `yaml:"enabled"`
	// DebounceSeconds coalesces edit bursts into one persisted write.
	DebounceSeconds float64 `yaml:"debounce_seconds"`
}

type ServiceConfig struct {
	PersistURL string `yaml:"persist_url"`
	RenderURL  string `yaml:"render_url"`
	UploadURL  string `yaml:"upload_url"`
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func defaultConfig() *Config {
	return &Config{
		Surface: SurfaceConfig{
			Width:  1920,
			Height: 1080,
		},
		Timeline: TimelineConfig{
			SnapGranularity: 0.1,
			ImageDuration:   2.0,
			MinHandleSize:   40,
		},
		Preload: PreloadConfig{
			TimeoutSeconds: 15,
			Workers:        4,
		},
		Autosave: AutosaveConfig{
			Enabled:         true,
			DebounceSeconds: 2.0,
		},
		Services: ServiceConfig{
			PersistURL: "http://localhost:8080/api/projects",
			RenderURL:  "http://localhost:8080/api/render",
			UploadURL:  "http://localhost:8080/api/assets",
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"config.yaml",
		"panelreel.yaml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "panelreel", "config.yaml"))
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}

	return ""
}

// WithConfig stores the config in a context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves the config from a context, falling back to defaults
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
