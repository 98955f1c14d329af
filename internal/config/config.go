package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"fundwatch/internal/holdings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Port         string   `yaml:"port"`
		GinMode      string   `yaml:"gin_mode"`
		AllowOrigins []string `yaml:"cors_allow_origins"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Holdings struct {
		File        string           `yaml:"file"`
		PostgresURL string           `yaml:"postgres_url"`
		Defaults    []DefaultHolding `yaml:"defaults"`
	} `yaml:"holdings"`
	Upstream struct {
		EstimateBaseURL string  `yaml:"estimate_base_url"`
		DetailBaseURL   string  `yaml:"detail_base_url"`
		SearchBaseURL   string  `yaml:"search_base_url"`
		Proxy           string  `yaml:"proxy"`
		TimeoutSeconds  int     `yaml:"timeout_seconds"`
		Concurrency     int     `yaml:"concurrency"`
		RateLimit       float64 `yaml:"rate_limit"`
	} `yaml:"upstream"`
}

// DefaultHolding is a holding seeded when nothing is stored yet. Cost and
// share are kept as text so they are parsed as exact decimals.
type DefaultHolding struct {
	Code  string `yaml:"code" json:"code"`
	Name  string `yaml:"name" json:"name"`
	Cost  string `yaml:"cost" json:"cost"`
	Share string `yaml:"share" json:"share"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("GIN_MODE"); v != "" {
		cfg.Server.GinMode = v
	}
	if v := os.Getenv("CORS_ALLOW_ORIGINS"); v != "" {
		cfg.Server.AllowOrigins = splitList(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("HOLDINGS_FILE"); v != "" {
		cfg.Holdings.File = v
	}
	if v := os.Getenv("HOLDINGS_POSTGRES_URL"); v != "" {
		cfg.Holdings.PostgresURL = v
	}
	if v := os.Getenv("ESTIMATE_BASE_URL"); v != "" {
		cfg.Upstream.EstimateBaseURL = v
	}
	if v := os.Getenv("DETAIL_BASE_URL"); v != "" {
		cfg.Upstream.DetailBaseURL = v
	}
	if v := os.Getenv("SEARCH_BASE_URL"); v != "" {
		cfg.Upstream.SearchBaseURL = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Upstream.Proxy = v
	}
	if v := os.Getenv("FETCH_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("FETCH_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Upstream.TimeoutSeconds = n
	}
	if v := os.Getenv("FETCH_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("FETCH_CONCURRENCY: %w", err)
		}
		cfg.Upstream.Concurrency = n
	}
	if v := os.Getenv("UPSTREAM_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("UPSTREAM_RATE_LIMIT: %w", err)
		}
		cfg.Upstream.RateLimit = f
	}

	// Defaults
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if len(cfg.Server.AllowOrigins) == 0 {
		cfg.Server.AllowOrigins = []string{"*"}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Holdings.File == "" {
		cfg.Holdings.File = "hold_funds.json"
	}
	if cfg.Upstream.EstimateBaseURL == "" {
		cfg.Upstream.EstimateBaseURL = "https://fundgz.1234567.com.cn"
	}
	if cfg.Upstream.DetailBaseURL == "" {
		cfg.Upstream.DetailBaseURL = "https://fund.eastmoney.com"
	}
	if cfg.Upstream.SearchBaseURL == "" {
		cfg.Upstream.SearchBaseURL = "https://fundsuggest.eastmoney.com"
	}
	if cfg.Upstream.TimeoutSeconds == 0 {
		cfg.Upstream.TimeoutSeconds = 10
	}
	if cfg.Upstream.Concurrency == 0 {
		cfg.Upstream.Concurrency = 4
	}
	if cfg.Upstream.RateLimit == 0 {
		cfg.Upstream.RateLimit = 10
	}

	return cfg, nil
}

// Validate checks that all settings are usable.
func (c *Config) Validate() error {
	if c.Upstream.TimeoutSeconds <= 0 {
		return fmt.Errorf("upstream.timeout_seconds must be positive")
	}
	if c.Upstream.Concurrency <= 0 {
		return fmt.Errorf("upstream.concurrency must be positive")
	}
	if c.Upstream.RateLimit <= 0 {
		return fmt.Errorf("upstream.rate_limit must be positive")
	}
	if c.Upstream.Proxy != "" {
		if _, err := url.Parse(c.Upstream.Proxy); err != nil {
			return fmt.Errorf("upstream.proxy: %w", err)
		}
	}
	if _, err := c.DefaultInputs(); err != nil {
		return err
	}
	return nil
}

func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Upstream.TimeoutSeconds) * time.Second
}

// DefaultInputs converts the configured default holdings for the store.
func (c *Config) DefaultInputs() ([]holdings.Input, error) {
	return ToInputs(c.Holdings.Defaults)
}

// ToInputs parses cost and share of each entry as decimals.
func ToInputs(list []DefaultHolding) ([]holdings.Input, error) {
	out := make([]holdings.Input, 0, len(list))
	for i, d := range list {
		cost, err := decimal.NewFromString(strings.TrimSpace(d.Cost))
		if err != nil {
			return nil, fmt.Errorf("holding %d (%s): cost: %w", i, d.Code, err)
		}
		share, err := decimal.NewFromString(strings.TrimSpace(d.Share))
		if err != nil {
			return nil, fmt.Errorf("holding %d (%s): share: %w", i, d.Code, err)
		}
		code, name := d.Code, d.Name
		out = append(out, holdings.Input{Code: &code, Name: &name, Cost: &cost, Share: &share})
	}
	return out, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
