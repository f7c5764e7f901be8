package encar

import (
	"time"

	"github.com/WessleyAI/carfeed/pkg/fn"
	"github.com/WessleyAI/carfeed/pkg/resilience"
)

// Paths are the endpoint path templates. %s is replaced by the listing id.
type Paths struct {
	Search      string `yaml:"search"`
	Profile     string `yaml:"profile"`
	Diagnosis   string `yaml:"diagnosis"`
	Inspection  string `yaml:"inspection"`
	Description string `yaml:"description"`
}

// DefaultPaths are the production endpoint paths.
var DefaultPaths = Paths{
	Search:      "/search/car/list/premium",
	Profile:     "/v1/readside/record/vehicle/%s/open",
	Diagnosis:   "/v1/readside/diagnosis/vehicle/%s",
	Inspection:  "/v1/readside/inspection/vehicle/%s",
	Description: "/v1/readside/vehicle/%s?include=CONTENTS",
}

// Config configures a Client.
type Config struct {
	BaseURL      string
	PhotoBaseURL string
	// DetailPageURL is the human-facing listing page; %s is the id.
	DetailPageURL string
	Paths         Paths
	// Headers and Cookies are sent verbatim with every API request.
	Headers map[string]string
	Cookies map[string]string

	Timeout      time.Duration
	RateLimit    float64 // requests per second
	Burst        int
	MaxBodyBytes int64

	Retry   fn.RetryOpts
	Breaker resilience.BreakerOpts
}

const (
	DefaultBaseURL       = "https://api.encar.com"
	DefaultPhotoBaseURL  = "https://ci.encar.com"
	DefaultDetailPageURL = "http://www.encar.com/dc/dc_cardetailview.do?carid=%s"
)

// PageSize is the number of rows per search page. The search API indexes
// pages by row offset, so it is fixed rather than configured.
const PageSize = 20

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.PhotoBaseURL == "" {
		c.PhotoBaseURL = DefaultPhotoBaseURL
	}
	if c.DetailPageURL == "" {
		c.DetailPageURL = DefaultDetailPageURL
	}
	if c.Paths.Search == "" {
		c.Paths.Search = DefaultPaths.Search
	}
	if c.Paths.Profile == "" {
		c.Paths.Profile = DefaultPaths.Profile
	}
	if c.Paths.Diagnosis == "" {
		c.Paths.Diagnosis = DefaultPaths.Diagnosis
	}
	if c.Paths.Inspection == "" {
		c.Paths.Inspection = DefaultPaths.Inspection
	}
	if c.Paths.Description == "" {
		c.Paths.Description = DefaultPaths.Description
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 5
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 16 << 20
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = fn.RetryOpts{MaxAttempts: 3, InitialWait: 500 * time.Millisecond, MaxWait: 10 * time.Second, Jitter: true}
	}
	if c.Breaker.FailThreshold == 0 {
		c.Breaker = resilience.DefaultBreakerOpts
	}
	return c
}
