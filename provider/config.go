package provider

import (
	"fmt"
	"net/http"
	"time"
)

// Config holds configuration for creating a vendor client.
// Common fields apply to all vendors.
type Config struct {
	// APIKey authenticates with the vendor. Required.
	APIKey string `json:"api_key" yaml:"api_key" toml:"api_key"`

	// BaseURL overrides the vendor's default API endpoint.
	// Useful for proxies and tests.
	BaseURL string `json:"base_url" yaml:"base_url" toml:"base_url"`

	// Timeout bounds how long a request may wait for response headers.
	// The body is not covered, so slow streams are never cut off mid-read.
	// 0 uses the default.
	Timeout time.Duration `json:"timeout" yaml:"timeout" toml:"timeout"`

	// HTTPClient overrides the HTTP client used for requests.
	// When set, Timeout is ignored in favor of the client's own.
	HTTPClient *http.Client `json:"-" yaml:"-" toml:"-"`
}

// DefaultTimeout bounds the wait for response headers when Config.Timeout
// is zero.
const DefaultTimeout = 2 * time.Minute

// DefaultConfig returns a Config with sensible defaults.
// APIKey must still be set before use.
func DefaultConfig() Config {
	return Config{Timeout: DefaultTimeout}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api key is required")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %v", c.Timeout)
	}
	return nil
}

// Client returns the HTTP client to use, building one from Timeout when
// none was supplied. The timeout is applied to the response headers only:
// an http.Client.Timeout would also cover reading the body, killing any
// stream that outlives it. Callers bound total duration through the
// request context instead.
func (c *Config) Client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout
	return &http.Client{Transport: transport}
}

// WithAPIKey returns a copy of the config with the specified API key.
func (c Config) WithAPIKey(key string) Config {
	c.APIKey = key
	return c
}

// WithBaseURL returns a copy of the config with the specified base URL.
func (c Config) WithBaseURL(url string) Config {
	c.BaseURL = url
	return c
}

// WithTimeout returns a copy of the config with the specified timeout.
func (c Config) WithTimeout(d time.Duration) Config {
	c.Timeout = d
	return c
}
