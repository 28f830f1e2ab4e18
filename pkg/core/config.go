package core

import (
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	// DefaultBaseURL is the host serving the authenticated REST API.
	DefaultBaseURL = "https://api.bitfinex.com"
	// DefaultPublicURL is the host serving the public, unauthenticated REST API.
	DefaultPublicURL = "https://api-pub.bitfinex.com"
)

// Credentials holds API authentication credentials for an exchange.
type Credentials struct {
	// APIKey is the public API key identifier.
	APIKey string `json:"api_key" validate:"required"`
	// SecretKey is the private API key used for signing requests.
	SecretKey string `json:"secret_key" validate:"required"`
}

// Config contains all configuration options for an exchange gateway.
type Config struct {
	// BaseURL is the endpoint for authenticated calls.
	BaseURL string `json:"base_url" validate:"required,url"`
	// PublicURL is the endpoint for public market data calls.
	PublicURL string `json:"public_url" validate:"required,url"`
	// Credentials are checked by ValidateCredentials when an authenticated
	// call is made, not by Validate.
	Credentials *Credentials `json:"credentials,omitempty" validate:"-"`

	// Timeout is the maximum duration for HTTP requests.
	Timeout time.Duration `json:"timeout" validate:"min=1ms"`

	LogLevel string `json:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// DefaultConfig returns a Config initialized with the production hosts,
// a 10s timeout and info logging. Credentials are left unset.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:   DefaultBaseURL,
		PublicURL: DefaultPublicURL,
		Timeout:   10 * time.Second,
		LogLevel:  "info",
	}
}

var validate = validator.New()

func (c *Config) Validate() error {
	return validate.Struct(c)
}

// ValidateCredentials reports a CONFIG error when the credentials needed for
// authenticated calls are missing.
func (c *Config) ValidateCredentials() error {
	if c.Credentials == nil {
		return NewExchangeError(ExchangeName, ErrorTypeConfig, 0, ErrNoCredentials.Error()).
			WithCode(ErrCodeNoCredentials).
			WithCause(ErrNoCredentials)
	}
	if err := validate.Struct(c.Credentials); err != nil {
		return NewExchangeError(ExchangeName, ErrorTypeConfig, 0, err.Error()).
			WithCode(ErrCodeMissingCredential).
			WithCause(err)
	}
	return nil
}

// WithCredentials sets the API credentials and returns the config for chaining.
func (c *Config) WithCredentials(creds *Credentials) *Config {
	c.Credentials = creds
	return c
}

// WithBaseURL sets the authenticated endpoint and returns the config for chaining.
func (c *Config) WithBaseURL(url string) *Config {
	c.BaseURL = url
	return c
}

// WithPublicURL sets the public endpoint and returns the config for chaining.
func (c *Config) WithPublicURL(url string) *Config {
	c.PublicURL = url
	return c
}

// WithTimeout sets the request timeout and returns the config for chaining.
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithLogLevel sets the log level and returns the config for chaining.
func (c *Config) WithLogLevel(level string) *Config {
	c.LogLevel = level
	return c
}
