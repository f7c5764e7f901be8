// Package config loads carfeed settings from a YAML file, an optional .env
// file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v2"
)

// Year bounds accepted by the normalizer.
const (
	MinYear = 2018
	MaxYear = 2024
)

type Config struct {
	Encar    EncarConfig    `yaml:"encar"`
	Search   SearchConfig   `yaml:"search"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Message  MessageConfig  `yaml:"message"`
	Output   OutputConfig   `yaml:"output"`
	Sinks    SinksConfig    `yaml:"sinks"`
	Session  SessionConfig  `yaml:"session"`
	API      APIConfig      `yaml:"api"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Schedule string         `yaml:"schedule"`
}

type EncarConfig struct {
	BaseURL       string            `yaml:"base_url"`
	PhotoBaseURL  string            `yaml:"photo_base_url"`
	DetailPageURL string            `yaml:"detail_page_url"`
	Paths         map[string]string `yaml:"paths"`
	Headers       map[string]string `yaml:"headers"`
	Cookies       map[string]string `yaml:"cookies"`
	Timeout       time.Duration     `yaml:"timeout"`
	RateLimit     float64           `yaml:"rate_limit"`
	Burst         int               `yaml:"burst"`
	Retry         RetryConfig       `yaml:"retry"`
	Breaker       BreakerConfig     `yaml:"breaker"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	InitialWait time.Duration `yaml:"initial_wait"`
	MaxWait     time.Duration `yaml:"max_wait"`
}

type BreakerConfig struct {
	FailThreshold int           `yaml:"fail_threshold"`
	Timeout       time.Duration `yaml:"timeout"`
}

type SearchConfig struct {
	Manufacturer string `yaml:"manufacturer"`
	ModelGroup   string `yaml:"model_group"`
	YearFrom     int    `yaml:"year_from"`
	YearTo       int    `yaml:"year_to"`
	// MaxPages caps pagination; 0 means until an empty page.
	MaxPages int `yaml:"max_pages"`
}

type PipelineConfig struct {
	Workers int `yaml:"workers"`
}

// MessageConfig holds the escape sets. Empty means Telegram MarkdownV2.
type MessageConfig struct {
	Escape     string `yaml:"escape"`
	LinkEscape string `yaml:"link_escape"`
}

type OutputConfig struct {
	Dir            string `yaml:"dir"`
	Snapshot       string `yaml:"snapshot"`
	Journal        string `yaml:"journal"`
	Markdown       string `yaml:"markdown"`
	DownloadPhotos bool   `yaml:"download_photos"`
	PhotosDir      string `yaml:"photos_dir"`
}

type SinksConfig struct {
	DatabaseURL   string `yaml:"database_url"`
	Neo4jURL      string `yaml:"neo4j_url"`
	Neo4jUser     string `yaml:"neo4j_user"`
	Neo4jPassword string `yaml:"neo4j_password"`
	Neo4jDatabase string `yaml:"neo4j_database"`
	NATSURL       string `yaml:"nats_url"`
	NATSSubject   string `yaml:"nats_subject"`
}

type SessionConfig struct {
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

type APIConfig struct {
	Port int `yaml:"port"`
}

type MetricsConfig struct {
	Port int `yaml:"port"`
}

// Default returns a config that runs with no file and no environment.
func Default() *Config {
	return &Config{
		Encar: EncarConfig{
			Timeout:   15 * time.Second,
			RateLimit: 5,
			Burst:     1,
			Retry:     RetryConfig{MaxAttempts: 3, InitialWait: 500 * time.Millisecond, MaxWait: 10 * time.Second},
			Breaker:   BreakerConfig{FailThreshold: 5, Timeout: 30 * time.Second},
		},
		Search: SearchConfig{
			Manufacturer: "현대",
			YearFrom:     MinYear,
			YearTo:       MaxYear,
		},
		Pipeline: PipelineConfig{Workers: 4},
		Output: OutputConfig{
			Dir:       "data",
			Snapshot:  "car_details.json",
			Journal:   "car_details.jsonl",
			Markdown:  "car_details.md",
			PhotosDir: "photos",
		},
		Sinks:   SinksConfig{Neo4jUser: "neo4j", NATSSubject: "carfeed.listings"},
		Session: SessionConfig{TTL: 24 * time.Hour},
		API:     APIConfig{Port: 8080},
		Metrics: MetricsConfig{Port: 9090},
	}
}

// Load builds the config. path may be empty; a named file that does not
// exist is an error. Each envFile is loaded with godotenv without
// overriding variables already set; with no envFiles a missing ./.env is
// ignored.
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: .env: %w", err)
		}
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("config: env file: %w", err)
	}

	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.UnmarshalStrict(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str("CARFEED_MANUFACTURER", &c.Search.Manufacturer)
	str("CARFEED_MODEL_GROUP", &c.Search.ModelGroup)
	num("CARFEED_YEAR_FROM", &c.Search.YearFrom)
	num("CARFEED_YEAR_TO", &c.Search.YearTo)
	num("CARFEED_MAX_PAGES", &c.Search.MaxPages)
	num("CARFEED_WORKERS", &c.Pipeline.Workers)
	str("CARFEED_ENCAR_BASE_URL", &c.Encar.BaseURL)
	str("CARFEED_OUTPUT_DIR", &c.Output.Dir)
	str("CARFEED_SCHEDULE", &c.Schedule)
	num("CARFEED_API_PORT", &c.API.Port)
	num("CARFEED_METRICS_PORT", &c.Metrics.Port)
	if v, ok := lookup("CARFEED_RATE_LIMIT"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: CARFEED_RATE_LIMIT: %w", err))
		} else {
			c.Encar.RateLimit = f
		}
	}
	if v, ok := lookup("CARFEED_DOWNLOAD_PHOTOS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: CARFEED_DOWNLOAD_PHOTOS: %w", err))
		} else {
			c.Output.DownloadPhotos = b
		}
	}
	if v, ok := lookup("CARFEED_ENCAR_COOKIE"); ok && v != "" {
		c.Encar.Cookies = parseCookies(v)
	}

	str("DATABASE_URL", &c.Sinks.DatabaseURL)
	str("NEO4J_URL", &c.Sinks.Neo4jURL)
	str("NEO4J_USER", &c.Sinks.Neo4jUser)
	str("NEO4J_PASSWORD", &c.Sinks.Neo4jPassword)
	str("NEO4J_DATABASE", &c.Sinks.Neo4jDatabase)
	str("NATS_URL", &c.Sinks.NATSURL)
	str("REDIS_URL", &c.Session.RedisURL)
	return errors.Join(errs...)
}

// parseCookies reads a Cookie header value ("a=1; b=2").
func parseCookies(header string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && name != "" {
			out[name] = value
		}
	}
	return out
}

var knownPaths = map[string]bool{
	"search": true, "profile": true, "diagnosis": true, "inspection": true, "description": true,
}

// Validate reports every problem that would make a run pointless.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("config: "+format, args...))
	}

	s := c.Search
	if s.Manufacturer == "" {
		bad("search.manufacturer is required")
	}
	if s.YearFrom < MinYear || s.YearTo > MaxYear || s.YearFrom > s.YearTo {
		bad("search year range %d..%d must lie within %d..%d", s.YearFrom, s.YearTo, MinYear, MaxYear)
	}
	if s.MaxPages < 0 {
		bad("search.max_pages must not be negative")
	}
	if c.Pipeline.Workers < 1 {
		bad("pipeline.workers must be at least 1, got %d", c.Pipeline.Workers)
	}
	if c.Encar.RateLimit <= 0 {
		bad("encar.rate_limit must be positive")
	}
	if c.Encar.Timeout <= 0 {
		bad("encar.timeout must be positive")
	}
	if c.Encar.Retry.MaxAttempts < 1 {
		bad("encar.retry.max_attempts must be at least 1")
	}
	for k := range c.Encar.Paths {
		if !knownPaths[k] {
			bad("encar.paths: unknown endpoint %q", k)
		}
	}
	for name, set := range map[string]string{"message.escape": c.Message.Escape, "message.link_escape": c.Message.LinkEscape} {
		if set != "" && !strings.Contains(set, `\`) {
			bad("%s must include the backslash", name)
		}
	}
	if c.Output.Snapshot == "" {
		bad("output.snapshot is required")
	}
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			bad("schedule %q: %v", c.Schedule, err)
		}
	}
	return errors.Join(errs...)
}
