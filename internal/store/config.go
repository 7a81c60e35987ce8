package store

import (
	"errors"
	"fmt"
	"os"

	"market-analytics/internal/types"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Feed struct {
		Source  string `yaml:"source"` // BINANCE or STATIC
		WSURL   string `yaml:"ws_url"`
		RESTURL string `yaml:"rest_url"`
	} `yaml:"feed"`
	Markets     []string `yaml:"markets"`
	Timeframe   string   `yaml:"timeframe"`
	PollSeconds int      `yaml:"poll_seconds"`
	Buffers     struct {
		Candles int `yaml:"candles"`
		Trades  int `yaml:"trades"`
		Depth   int `yaml:"depth"`
	} `yaml:"buffers"`
	Analytics struct {
		ProfileBuckets    int     `yaml:"profile_buckets"`
		ValueAreaFraction float64 `yaml:"value_area_fraction"`
		FlowBucketWidth   float64 `yaml:"flow_bucket_width"`
		FlowWindow        string  `yaml:"flow_window"`
	} `yaml:"analytics"`
	Indicators struct {
		SMAWindows []int   `yaml:"sma_windows"`
		EMAWindows []int   `yaml:"ema_windows"`
		RSIPeriod  int     `yaml:"rsi_period"`
		MACDFast   int     `yaml:"macd_fast"`
		MACDSlow   int     `yaml:"macd_slow"`
		MACDSignal int     `yaml:"macd_signal"`
		BBWindow   int     `yaml:"bb_window"`
		BBStdDev   float64 `yaml:"bb_stddev"`
	} `yaml:"indicators"`
}

func (c *Config) Validate() error {
	if c.Feed.Source != "BINANCE" && c.Feed.Source != "STATIC" {
		return fmt.Errorf("invalid feed.source '%s': must be 'BINANCE' or 'STATIC'", c.Feed.Source)
	}
	if len(c.Markets) == 0 {
		return errors.New("markets cannot be empty")
	}
	if _, err := types.ParseWindow(c.Analytics.FlowWindow); err != nil {
		return fmt.Errorf("analytics.flow_window: %w", err)
	}
	if c.Analytics.ProfileBuckets <= 0 {
		return fmt.Errorf("analytics.profile_buckets must be positive, got %d", c.Analytics.ProfileBuckets)
	}
	if c.Analytics.ValueAreaFraction <= 0 || c.Analytics.ValueAreaFraction > 1 {
		return fmt.Errorf("analytics.value_area_fraction must be in (0, 1], got %.2f", c.Analytics.ValueAreaFraction)
	}
	if c.Analytics.FlowBucketWidth <= 0 {
		return fmt.Errorf("analytics.flow_bucket_width must be positive, got %.2f", c.Analytics.FlowBucketWidth)
	}
	if c.Buffers.Candles <= 0 || c.Buffers.Trades <= 0 {
		return fmt.Errorf("buffers.candles and buffers.trades must be positive, got %d/%d", c.Buffers.Candles, c.Buffers.Trades)
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultConfig seeds the knobs a config file usually leaves out.
func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Feed.Source = "STATIC"
	cfg.Feed.WSURL = "wss://stream.binance.com:9443/stream"
	cfg.Feed.RESTURL = "https://api.binance.com"
	cfg.Timeframe = string(types.Timeframe1m)
	cfg.PollSeconds = 10
	cfg.Buffers.Candles = 500
	cfg.Buffers.Trades = 50
	cfg.Buffers.Depth = 20
	cfg.Analytics.ProfileBuckets = 50
	cfg.Analytics.ValueAreaFraction = 0.70
	cfg.Analytics.FlowBucketWidth = 10
	cfg.Analytics.FlowWindow = string(types.Window5m)
	cfg.Indicators.SMAWindows = []int{20, 50, 200}
	cfg.Indicators.EMAWindows = []int{12, 26}
	cfg.Indicators.RSIPeriod = 14
	cfg.Indicators.MACDFast = 12
	cfg.Indicators.MACDSlow = 26
	cfg.Indicators.MACDSignal = 9
	cfg.Indicators.BBWindow = 20
	cfg.Indicators.BBStdDev = 2.0
	return cfg
}
