package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port              int `yaml:"port"`
	ReadTimeoutMS     int `yaml:"read_timeout_ms"`
	WriteTimeoutMS    int `yaml:"write_timeout_ms"`
	ShutdownTimeoutMS int `yaml:"shutdown_timeout_ms"`
}

// APIConfig tunes the shared Polymarket data API client.
type APIConfig struct {
	DataURL          string `yaml:"data_url"`
	GammaURL         string `yaml:"gamma_url"`
	MaxConcurrent    int    `yaml:"max_concurrent"`
	RequestDelayMS   int    `yaml:"request_delay_ms"`
	RequestTimeoutMS int    `yaml:"request_timeout_ms"`
}

// DiscoveryConfig controls the trader discovery pass.
type DiscoveryConfig struct {
	// Strategy selects candidate sourcing: "leaderboard" or "market".
	Strategy         string      `yaml:"strategy"`
	LeaderboardTopN  int         `yaml:"leaderboard_top_n"`
	MarketCount      int         `yaml:"market_count"`
	TradersPerMarket int         `yaml:"traders_per_market"`
	BatchSize        int         `yaml:"batch_size"`
	ScanIntervalMins int         `yaml:"scan_interval_minutes"`
	SeedWhales       []SeedWhale `yaml:"seed_whales"`
}

// SeedWhale is a manually tracked wallet merged into every discovery pass.
type SeedWhale struct {
	Alias     string  `yaml:"alias"`
	Address   string  `yaml:"address"`
	Profit    float64 `yaml:"profit"`
	Specialty string  `yaml:"specialty"`
}

// SignalConfig controls the copy-signal detector.
type SignalConfig struct {
	TopPerTier        int     `yaml:"top_per_tier"`
	MaxTraders        int     `yaml:"max_traders"`
	MinPositionValue  float64 `yaml:"min_position_value"`
	CheckIntervalMins int     `yaml:"check_interval_minutes"`
}

// Config aggregates all app configuration knobs.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	API       APIConfig       `yaml:"api"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Signals   SignalConfig    `yaml:"signals"`
}

// Load reads configuration from disk, falling back to defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	configPath := path
	if configPath == "" {
		configPath = filepath.Join("config", "default.yaml")
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("config: unable to read %s: %w", configPath, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: unable to parse %s: %w", configPath, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns baseline configuration values.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:              8081,
			ReadTimeoutMS:     10000,
			WriteTimeoutMS:    10000,
			ShutdownTimeoutMS: 5000,
		},
		API: APIConfig{
			DataURL:          "https://data-api.polymarket.com",
			GammaURL:         "https://gamma-api.polymarket.com",
			MaxConcurrent:    8,
			RequestDelayMS:   400,
			RequestTimeoutMS: 30000,
		},
		Discovery: DiscoveryConfig{
			Strategy:         "market",
			LeaderboardTopN:  50,
			MarketCount:      200,
			TradersPerMarket: 20,
			BatchSize:        25,
			ScanIntervalMins: 360,
		},
		Signals: SignalConfig{
			TopPerTier:        5,
			MaxTraders:        20,
			MinPositionValue:  10,
			CheckIntervalMins: 5,
		},
	}
}

func (c *Config) applyDefaults() {
	def := Default()

	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.ReadTimeoutMS == 0 {
		c.Server.ReadTimeoutMS = def.Server.ReadTimeoutMS
	}
	if c.Server.WriteTimeoutMS == 0 {
		c.Server.WriteTimeoutMS = def.Server.WriteTimeoutMS
	}
	if c.Server.ShutdownTimeoutMS == 0 {
		c.Server.ShutdownTimeoutMS = def.Server.ShutdownTimeoutMS
	}

	if c.API.DataURL == "" {
		c.API.DataURL = def.API.DataURL
	}
	if c.API.GammaURL == "" {
		c.API.GammaURL = def.API.GammaURL
	}
	if c.API.MaxConcurrent == 0 {
		c.API.MaxConcurrent = def.API.MaxConcurrent
	}
	if c.API.RequestDelayMS == 0 {
		c.API.RequestDelayMS = def.API.RequestDelayMS
	}
	if c.API.RequestTimeoutMS == 0 {
		c.API.RequestTimeoutMS = def.API.RequestTimeoutMS
	}

	if c.Discovery.Strategy == "" {
		c.Discovery.Strategy = def.Discovery.Strategy
	}
	if c.Discovery.LeaderboardTopN == 0 {
		c.Discovery.LeaderboardTopN = def.Discovery.LeaderboardTopN
	}
	if c.Discovery.MarketCount == 0 {
		c.Discovery.MarketCount = def.Discovery.MarketCount
	}
	if c.Discovery.TradersPerMarket == 0 {
		c.Discovery.TradersPerMarket = def.Discovery.TradersPerMarket
	}
	if c.Discovery.BatchSize == 0 {
		c.Discovery.BatchSize = def.Discovery.BatchSize
	}
	if c.Discovery.ScanIntervalMins == 0 {
		c.Discovery.ScanIntervalMins = def.Discovery.ScanIntervalMins
	}

	if c.Signals.TopPerTier == 0 {
		c.Signals.TopPerTier = def.Signals.TopPerTier
	}
	if c.Signals.MaxTraders == 0 {
		c.Signals.MaxTraders = def.Signals.MaxTraders
	}
	if c.Signals.MinPositionValue == 0 {
		c.Signals.MinPositionValue = def.Signals.MinPositionValue
	}
	if c.Signals.CheckIntervalMins == 0 {
		c.Signals.CheckIntervalMins = def.Signals.CheckIntervalMins
	}
}
