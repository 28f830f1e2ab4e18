// Package config builds a core.Config from a .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"bfxtrade/pkg/core"
)

// Environment variable names.
const (
	EnvBaseEndpoint   = "BASE_ENDPOINT"
	EnvAPIKey         = "API_KEY"
	EnvSecretKey      = "SECRET_KEY"
	EnvPublicEndpoint = "PUBLIC_ENDPOINT"
	EnvLogLevel       = "LOG_LEVEL"
	EnvHTTPTimeout    = "HTTP_TIMEOUT"
)

// DefaultEnvFile is the file read when no path is given.
const DefaultEnvFile = ".env"

// LookupFunc resolves a single environment variable.
type LookupFunc func(key string) (string, bool)

// Load reads path (or DefaultEnvFile when empty) and the process environment.
// Variables already set in the environment take priority over the file.
func Load(path string) (*core.Config, error) {
	return LoadWithLookup(path, os.LookupEnv)
}

// LoadWithLookup is Load with an explicit environment lookup.
func LoadWithLookup(path string, lookup LookupFunc) (*core.Config, error) {
	if path == "" {
		path = DefaultEnvFile
	}

	file, err := godotenv.Read(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, configError(core.ErrCodeInvalidConfig, fmt.Sprintf("read %s: %v", path, err), err)
	}

	get := func(key string) string {
		if lookup != nil {
			if v, ok := lookup(key); ok && v != "" {
				return v
			}
		}
		return file[key]
	}

	// Checked in this order so the first missing variable is reported.
	required := []string{EnvBaseEndpoint, EnvAPIKey, EnvSecretKey}
	for _, key := range required {
		if get(key) == "" {
			return nil, configError(core.ErrCodeMissingCredential,
				fmt.Sprintf("Please set %s in the %s file", key, DefaultEnvFile), nil)
		}
	}

	cfg := core.DefaultConfig().
		WithBaseURL(get(EnvBaseEndpoint)).
		WithCredentials(&core.Credentials{
			APIKey:    get(EnvAPIKey),
			SecretKey: get(EnvSecretKey),
		})

	if v := get(EnvPublicEndpoint); v != "" {
		cfg.WithPublicURL(v)
	}
	if v := get(EnvLogLevel); v != "" {
		cfg.WithLogLevel(v)
	}
	if v := get(EnvHTTPTimeout); v != "" {
		timeout, err := parseTimeout(v)
		if err != nil {
			return nil, configError(core.ErrCodeInvalidConfig,
				fmt.Sprintf("invalid %s %q", EnvHTTPTimeout, v), err)
		}
		cfg.WithTimeout(timeout)
	}

	if err := cfg.Validate(); err != nil {
		return nil, configError(core.ErrCodeInvalidConfig, err.Error(), err)
	}
	return cfg, nil
}

// parseTimeout accepts a Go duration ("5s", "1500ms") or a whole number of seconds.
func parseTimeout(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs) * time.Second, nil
}

func configError(code core.ErrorCode, msg string, cause error) error {
	e := core.NewExchangeErrorWithCode(core.ExchangeName, core.ErrorTypeConfig, 0, string(code), msg)
	if cause != nil {
		e = e.WithCause(cause)
	}
	return e
}
