package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadYAML(t *testing.T) {
	p := writeFile(t, "carfeed.yaml", `
encar:
  timeout: 3s
  rate_limit: 2.5
  headers:
    User-Agent: carfeed
search:
  manufacturer: 기아
  model_group: K5
  year_from: 2020
  year_to: 2022
pipeline:
  workers: 8
output:
  dir: /tmp/out
schedule: "@every 6h"
`)
	empty := writeFile(t, "empty.env", "")
	cfg, err := Load(p, empty)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Encar.Timeout != 3*time.Second || cfg.Encar.RateLimit != 2.5 {
		t.Errorf("encar = %+v", cfg.Encar)
	}
	if cfg.Encar.Headers["User-Agent"] != "carfeed" {
		t.Errorf("headers = %v", cfg.Encar.Headers)
	}
	if cfg.Search.Manufacturer != "기아" || cfg.Search.YearFrom != 2020 {
		t.Errorf("search = %+v", cfg.Search)
	}
	if cfg.Pipeline.Workers != 8 || cfg.Schedule != "@every 6h" {
		t.Errorf("cfg = %+v", cfg)
	}
	// Untouched fields keep their defaults.
	if cfg.Output.Snapshot != "car_details.json" || cfg.Encar.Retry.MaxAttempts != 3 {
		t.Errorf("defaults lost: %+v", cfg.Output)
	}
}

func TestLoadUnknownKeyFails(t *testing.T) {
	p := writeFile(t, "c.yaml", "pipline:\n  workers: 2\n")
	if _, err := Load(p, writeFile(t, "e.env", "")); err == nil {
		t.Fatal("expected error for misspelled key")
	}
}

func TestLoadPageSizeNotConfigurable(t *testing.T) {
	p := writeFile(t, "c.yaml", "encar:\n  page_size: 50\n")
	if _, err := Load(p, writeFile(t, "e.env", "")); err == nil {
		t.Fatal("page_size must be rejected")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), writeFile(t, "e.env", "")); err == nil {
		t.Fatal("expected error")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	p := writeFile(t, "c.yaml", "pipeline:\n  workers: 2\n")
	t.Setenv("CARFEED_WORKERS", "6")
	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("CARFEED_DOWNLOAD_PHOTOS", "true")
	t.Setenv("CARFEED_ENCAR_COOKIE", "PCID=1; WMONID=abc")

	cfg, err := Load(p, writeFile(t, "e.env", ""))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Pipeline.Workers != 6 {
		t.Errorf("workers = %d, want 6", cfg.Pipeline.Workers)
	}
	if cfg.Sinks.DatabaseURL != "postgres://x" || !cfg.Output.DownloadPhotos {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Encar.Cookies["PCID"] != "1" || cfg.Encar.Cookies["WMONID"] != "abc" {
		t.Errorf("cookies = %v", cfg.Encar.Cookies)
	}
}

func TestDotEnvFile(t *testing.T) {
	env := writeFile(t, ".env", "NATS_URL=nats://from-dotenv:4222\nCARFEED_MAX_PAGES=3\n")
	t.Setenv("NATS_URL", "")
	os.Unsetenv("NATS_URL")
	t.Setenv("CARFEED_MAX_PAGES", "")
	os.Unsetenv("CARFEED_MAX_PAGES")

	cfg, err := Load("", env)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sinks.NATSURL != "nats://from-dotenv:4222" || cfg.Search.MaxPages != 3 {
		t.Errorf("sinks = %+v search = %+v", cfg.Sinks, cfg.Search)
	}
}

func TestBadEnvNumber(t *testing.T) {
	t.Setenv("CARFEED_WORKERS", "many")
	if _, err := Load("", writeFile(t, "e.env", "")); err == nil || !strings.Contains(err.Error(), "CARFEED_WORKERS") {
		t.Fatalf("err = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"year below range", func(c *Config) { c.Search.YearFrom = 2017 }, "year range"},
		{"inverted years", func(c *Config) { c.Search.YearFrom, c.Search.YearTo = 2023, 2020 }, "year range"},
		{"no workers", func(c *Config) { c.Pipeline.Workers = 0 }, "workers"},
		{"no manufacturer", func(c *Config) { c.Search.Manufacturer = "" }, "manufacturer"},
		{"zero rate", func(c *Config) { c.Encar.RateLimit = 0 }, "rate_limit"},
		{"escape without backslash", func(c *Config) { c.Message.Escape = "_*" }, "message.escape"},
		{"unknown path", func(c *Config) { c.Encar.Paths = map[string]string{"photos": "/x"} }, "unknown endpoint"},
		{"bad schedule", func(c *Config) { c.Schedule = "every day" }, "schedule"},
		{"negative pages", func(c *Config) { c.Search.MaxPages = -1 }, "max_pages"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestValidateReportsAll(t *testing.T) {
	c := Default()
	c.Pipeline.Workers = 0
	c.Output.Snapshot = ""
	err := c.Validate()
	if err == nil || !strings.Contains(err.Error(), "workers") || !strings.Contains(err.Error(), "snapshot") {
		t.Fatalf("err = %v", err)
	}
}
