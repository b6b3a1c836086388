package infra

import (
	"os"
	"path/filepath"
	"testing"
)

func clearBrokerEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"KIS_BASE_URL", "KIS_WS_URL", "KIS_APP_KEY", "KIS_APP_SECRET",
		"KIS_ACNT_NO", "KIS_ACNT_PRDT_CD",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearBrokerEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Broker.BaseURL != "https://openapi.koreainvestment.com:9443" {
		t.Errorf("unexpected base URL: %s", cfg.Broker.BaseURL)
	}
	if cfg.Broker.TimeoutSec != 10 {
		t.Errorf("unexpected timeout: %d", cfg.Broker.TimeoutSec)
	}
	if cfg.Server.Addr != ":8010" {
		t.Errorf("unexpected server addr: %s", cfg.Server.Addr)
	}
	if cfg.Scheduler.PollIntervalSec != 20 {
		t.Errorf("unexpected poll interval: %d", cfg.Scheduler.PollIntervalSec)
	}
	if cfg.HasCredentials() {
		t.Error("expected no credentials from defaults")
	}
}

func TestLoadConfigFile(t *testing.T) {
	clearBrokerEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
broker:
  base_url: "https://openapivts.koreainvestment.com:29443"
  timeout_sec: 5
server:
  addr: ":9999"
scheduler:
  poll_interval_sec: 7
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Broker.BaseURL != "https://openapivts.koreainvestment.com:29443" {
		t.Errorf("file value not applied: %s", cfg.Broker.BaseURL)
	}
	if cfg.Broker.TimeoutSec != 5 {
		t.Errorf("file timeout not applied: %d", cfg.Broker.TimeoutSec)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("file addr not applied: %s", cfg.Server.Addr)
	}
	if cfg.Scheduler.PollIntervalSec != 7 {
		t.Errorf("file interval not applied: %d", cfg.Scheduler.PollIntervalSec)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	clearBrokerEnv(t)
	t.Setenv("KIS_BASE_URL", "http://localhost:18080")
	t.Setenv("KIS_APP_KEY", "test-key")
	t.Setenv("KIS_APP_SECRET", "test-secret")
	t.Setenv("KIS_ACNT_NO", "12345678")
	t.Setenv("KIS_ACNT_PRDT_CD", "01")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Broker.BaseURL != "http://localhost:18080" {
		t.Errorf("env override not applied: %s", cfg.Broker.BaseURL)
	}
	if !cfg.HasCredentials() {
		t.Error("expected credentials from environment")
	}
	if missing := cfg.MissingCredentials(); len(missing) != 0 {
		t.Errorf("expected no missing credentials, got %v", missing)
	}
}

func TestMissingCredentials(t *testing.T) {
	cfg := defaultConfig()
	cfg.Broker.AppKey = "key"

	missing := cfg.MissingCredentials()
	if len(missing) != 3 {
		t.Fatalf("expected 3 missing, got %v", missing)
	}
	if missing[0] != "KIS_APP_SECRET" {
		t.Errorf("unexpected first missing var: %s", missing[0])
	}
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	bad := defaultConfig()
	bad.Broker.BaseURL = "openapi.koreainvestment.com"
	if err := bad.Validate(); err == nil {
		t.Error("expected error for scheme-less base URL")
	}

	bad = defaultConfig()
	bad.Scheduler.PollIntervalSec = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error for zero poll interval")
	}

	bad = defaultConfig()
	bad.Broker.WSURL = "http://not-a-websocket"
	if err := bad.Validate(); err == nil {
		t.Error("expected error for non-ws websocket URL")
	}
}
