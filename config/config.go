package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"newsdeck/models"

	"github.com/BurntSushi/toml"
)

const (
	DefaultRefreshInterval = 30
	MinRefreshInterval     = 1
	MaxRefreshInterval     = 1440
	DefaultMaxArticles     = 20
	DefaultFetchLimit      = 100
	DefaultSourceTimeout   = 10 * time.Second
	DefaultSummaryLength   = 150
)

// Config is the feeds file. Zero values mean "use the default".
type Config struct {
	// Minutes between refreshes, clamped to 1..1440
	RefreshInterval int `toml:"refresh_interval"`
	// How many articles a reader is shown
	MaxArticles int `toml:"max_articles"`
	// How many articles an aggregation cycle keeps
	FetchLimit        int                `toml:"fetch_limit"`
	SourceTimeout     time.Duration      `toml:"source_timeout"`
	SummaryLength     int                `toml:"summary_length"`
	RequestsPerSecond float64            `toml:"requests_per_second,omitempty"`
	UserAgent         string             `toml:"user_agent,omitempty"`
	Feeds             []models.RawSource `toml:"feeds"`
}

func Default() Config {
	return Config{
		RefreshInterval: DefaultRefreshInterval,
		MaxArticles:     DefaultMaxArticles,
		FetchLimit:      DefaultFetchLimit,
		SourceTimeout:   DefaultSourceTimeout,
		SummaryLength:   DefaultSummaryLength,
		Feeds:           []models.RawSource{},
	}
}

// ApplyDefaults fills unset fields and clamps the refresh interval
func (c *Config) ApplyDefaults() {
	if c.RefreshInterval == 0 {
		c.RefreshInterval = DefaultRefreshInterval
	}
	c.RefreshInterval = max(MinRefreshInterval, min(MaxRefreshInterval, c.RefreshInterval))

	if c.MaxArticles == 0 {
		c.MaxArticles = DefaultMaxArticles
	}
	if c.FetchLimit == 0 {
		c.FetchLimit = DefaultFetchLimit
	}
	if c.SourceTimeout == 0 {
		c.SourceTimeout = DefaultSourceTimeout
	}
	if c.SummaryLength == 0 {
		c.SummaryLength = DefaultSummaryLength
	}
	if c.Feeds == nil {
		c.Feeds = []models.RawSource{}
	}
}

func (c *Config) Validate() error {
	if c.MaxArticles < 1 {
		return models.NewValidationError("max_articles", "must be at least 1, got %d", c.MaxArticles)
	}
	if c.FetchLimit < 1 {
		return models.NewValidationError("fetch_limit", "must be at least 1, got %d", c.FetchLimit)
	}
	if c.SourceTimeout <= 0 {
		return models.NewValidationError("source_timeout", "must be positive, got %s", c.SourceTimeout)
	}
	if c.SummaryLength < 1 {
		return models.NewValidationError("summary_length", "must be at least 1, got %d", c.SummaryLength)
	}
	if c.RequestsPerSecond < 0 {
		return models.NewValidationError("requests_per_second", "must not be negative, got %g", c.RequestsPerSecond)
	}
	return nil
}

// Interval returns the refresh interval as a duration
func (c Config) Interval() time.Duration {
	return time.Duration(c.RefreshInterval) * time.Minute
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}

	return &config, nil
}

// SaveConfig writes the config atomically by renaming a temporary file
func SaveConfig(path string, config Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".feeds-*.toml")
	if err != nil {
		return fmt.Errorf("error creating config file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return os.Rename(tmp.Name(), path)
}
