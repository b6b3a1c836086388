package infra

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every application setting. Secrets are never stored in
// the yaml file; they are merged from the environment after loading.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Broker struct {
		BaseURL            string `yaml:"base_url"`
		WSURL              string `yaml:"ws_url"`
		AppKey             string `yaml:"app_key"`
		AppSecret          string `yaml:"app_secret"`
		AccountNo          string `yaml:"account_no"`
		AccountProductCode string `yaml:"account_product_code"`
		TimeoutSec         int    `yaml:"timeout_sec"`
	} `yaml:"broker"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Scheduler struct {
		PollIntervalSec int `yaml:"poll_interval_sec"`
	} `yaml:"scheduler"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads the yaml config file, then applies environment
// overrides. A missing file is not fatal: defaults plus environment
// variables are enough to run.
func LoadConfig(path string) (*Config, error) {
	// .env convention carried over from the reference deployment
	_ = godotenv.Load()

	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// fall through to defaults
	default:
		return nil, err
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.App.Name = "stock-go"
	cfg.Broker.BaseURL = "https://openapi.koreainvestment.com:9443"
	cfg.Broker.WSURL = "ws://ops.koreainvestment.com:21000"
	cfg.Broker.TimeoutSec = 10
	cfg.Server.Addr = ":8010"
	cfg.Scheduler.PollIntervalSec = 20
	cfg.Logging.Level = "info"
	return cfg
}

// Validate checks configuration validity. Broker credentials are
// deliberately not required here: their absence degrades the order
// subsystem to service-unavailable instead of failing startup.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Broker.BaseURL, "http://") && !strings.HasPrefix(c.Broker.BaseURL, "https://") {
		return fmt.Errorf("invalid broker base URL: %s", c.Broker.BaseURL)
	}
	if c.Broker.WSURL != "" && !strings.HasPrefix(c.Broker.WSURL, "ws://") && !strings.HasPrefix(c.Broker.WSURL, "wss://") {
		return fmt.Errorf("invalid broker WS URL: %s", c.Broker.WSURL)
	}
	if c.Broker.TimeoutSec <= 0 {
		return fmt.Errorf("broker timeout must be positive")
	}
	if c.Scheduler.PollIntervalSec <= 0 {
		return fmt.Errorf("scheduler poll interval must be positive")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr is required")
	}
	return nil
}

// HasCredentials reports whether every identifier needed for order
// operations is present.
func (c *Config) HasCredentials() bool {
	return c.Broker.AppKey != "" && c.Broker.AppSecret != "" &&
		c.Broker.AccountNo != "" && c.Broker.AccountProductCode != ""
}

// MissingCredentials lists the unset credential variables for error messages.
func (c *Config) MissingCredentials() []string {
	var missing []string
	for _, v := range []struct{ name, val string }{
		{"KIS_APP_KEY", c.Broker.AppKey},
		{"KIS_APP_SECRET", c.Broker.AppSecret},
		{"KIS_ACNT_NO", c.Broker.AccountNo},
		{"KIS_ACNT_PRDT_CD", c.Broker.AccountProductCode},
	} {
		if v.val == "" {
			missing = append(missing, v.name)
		}
	}
	return missing
}

// overrideWithEnv merges environment variables over the file values.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("KIS_BASE_URL"); v != "" {
		cfg.Broker.BaseURL = v
	}
	if v := os.Getenv("KIS_WS_URL"); v != "" {
		cfg.Broker.WSURL = v
	}
	if v := os.Getenv("KIS_APP_KEY"); v != "" {
		cfg.Broker.AppKey = v
	}
	if v := os.Getenv("KIS_APP_SECRET"); v != "" {
		cfg.Broker.AppSecret = v
	}
	if v := os.Getenv("KIS_ACNT_NO"); v != "" {
		cfg.Broker.AccountNo = v
	}
	if v := os.Getenv("KIS_ACNT_PRDT_CD"); v != "" {
		cfg.Broker.AccountProductCode = v
	}
}
