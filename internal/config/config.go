package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"tradeday/internal/domain"
	"tradeday/internal/store"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for tradeday.
type Config struct {
	Calendar Calendar `yaml:"calendar"`
	Server   Server   `yaml:"server"`
	Alpaca   Alpaca   `yaml:"alpaca"`
	Logging  Logging  `yaml:"logging"`
}

// Calendar selects the exchange and where its exception list lives.
type Calendar struct {
	Market        string `yaml:"market"`
	Timezone      string `yaml:"timezone"`
	MaxSearchDays int    `yaml:"max_search_days"`
	Source        Source `yaml:"source"`
}

// Source names an exception store: kind is one of store.Kinds.
type Source struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Alpaca holds credentials and the session range for the alpaca source kind.
type Alpaca struct {
	APIKey          string `yaml:"api_key"`
	APISecret       string `yaml:"api_secret"`
	BaseURL         string `yaml:"base_url"`
	StartDate       string `yaml:"start_date"`
	EndDate         string `yaml:"end_date"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	return &Config{
		Calendar: Calendar{
			Market: string(domain.MarketTW),
			Source: Source{Kind: store.KindCSV, Path: "data/opendate.csv"},
		},
		Server: Server{
			Host:     "0.0.0.0",
			Port:     8080,
			GRPCPort: 9090,
		},
		Alpaca: Alpaca{
			BaseURL:         "https://paper-api.alpaca.markets",
			RateLimitPerMin: 200,
		},
		Logging: Logging{Level: "info", Format: "json"},
	}
}

// Load reads the YAML configuration file at the given path over the
// defaults, applies environment variable overrides, and validates the
// result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRADEDAY_MARKET"); v != "" {
		cfg.Calendar.Market = v
	}
	if v := os.Getenv("TRADEDAY_TIMEZONE"); v != "" {
		cfg.Calendar.Timezone = v
	}
	if v := os.Getenv("TRADEDAY_SOURCE_KIND"); v != "" {
		cfg.Calendar.Source.Kind = v
	}
	if v := os.Getenv("TRADEDAY_SOURCE_PATH"); v != "" {
		cfg.Calendar.Source.Path = v
	}
	if v := os.Getenv("TRADEDAY_MAX_SEARCH_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Calendar.MaxSearchDays = n
		}
	}

	if v := os.Getenv("TRADEDAY_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("TRADEDAY_GRPC_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.GRPCPort = n
		}
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (highest priority, canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

// ---------------------------------------------------------------------------
// Validation and derived values
// ---------------------------------------------------------------------------

// Validate reports configuration errors that would otherwise surface late.
func (c *Config) Validate() error {
	if !c.Market().Valid() {
		return fmt.Errorf("calendar.market %q: must be one of tw, us, cn", c.Calendar.Market)
	}
	if !slices.Contains(store.Kinds, c.Calendar.Source.Kind) {
		return fmt.Errorf("calendar.source.kind %q: must be one of %v", c.Calendar.Source.Kind, store.Kinds)
	}
	if c.Calendar.Source.Kind != store.KindAlpaca && c.Calendar.Source.Path == "" {
		return fmt.Errorf("calendar.source.path is required for kind %q", c.Calendar.Source.Kind)
	}
	if c.Calendar.MaxSearchDays < 0 {
		return fmt.Errorf("calendar.max_search_days must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Calendar.Source.Kind == store.KindAlpaca {
		if _, _, err := c.AlpacaRange(); err != nil {
			return err
		}
	}
	return nil
}

// Market returns the configured market.
func (c *Config) Market() domain.Market {
	if c.Calendar.Market == "" {
		return domain.MarketTW
	}
	return domain.Market(c.Calendar.Market)
}

// Location resolves calendar.timezone, falling back to the market's zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Calendar.Timezone == "" {
		return c.Market().DefaultLocation(), nil
	}
	loc, err := time.LoadLocation(c.Calendar.Timezone)
	if err != nil {
		return nil, fmt.Errorf("calendar.timezone %q: %w", c.Calendar.Timezone, err)
	}
	return loc, nil
}

// AlpacaRange parses alpaca.start_date and alpaca.end_date.
func (c *Config) AlpacaRange() (domain.Date, domain.Date, error) {
	start, err := domain.ParseDate(c.Alpaca.StartDate)
	if err != nil {
		return domain.Date{}, domain.Date{}, fmt.Errorf("alpaca.start_date: %w", err)
	}
	end, err := domain.ParseDate(c.Alpaca.EndDate)
	if err != nil {
		return domain.Date{}, domain.Date{}, fmt.Errorf("alpaca.end_date: %w", err)
	}
	return start, end, nil
}

// StoreOptions builds store.Options from the Alpaca section.
func (c *Config) StoreOptions() store.Options {
	opts := store.Options{}
	opts.Alpaca = store.AlpacaOptions{
		APIKey:          c.Alpaca.APIKey,
		APISecret:       c.Alpaca.APISecret,
		BaseURL:         c.Alpaca.BaseURL,
		RateLimitPerMin: c.Alpaca.RateLimitPerMin,
	}
	if start, end, err := c.AlpacaRange(); err == nil {
		opts.Alpaca.Start, opts.Alpaca.End = start, end
	}
	return opts
}

// HTTPAddr returns host:port for the HTTP listener.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GRPCAddr returns host:grpc_port for the gRPC listener, or "" when gRPC is
// disabled with grpc_port: 0.
func (c *Config) GRPCAddr() string {
	if c.Server.GRPCPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}
