// Package http sends prepared exchange requests over resty. Each Client talks
// to a single host and never retries.
package http

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"resty.dev/v3"

	"bfxtrade/pkg/core"
)

type Client struct {
	client *resty.Client
	mu     sync.RWMutex
	closed bool
}

type Config struct {
	BaseURL   string          `validate:"required,url"`
	Timeout   time.Duration   `validate:"min=1ms"`
	UserAgent string          `validate:"omitempty"`
	Logger    *zerolog.Logger `validate:"-"`
}

// headers that must never reach the logs
var redacted = map[string]bool{
	"bfx-apikey":    true,
	"bfx-signature": true,
}

func NewClient(config *Config) (*Client, error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	client := resty.New().
		SetBaseURL(config.BaseURL).
		SetTimeout(config.Timeout).
		SetRetryCount(0)

	if config.UserAgent != "" {
		client.SetHeader("User-Agent", config.UserAgent)
	}

	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}

	client.AddRequestMiddleware(func(_ *resty.Client, req *resty.Request) error {
		ev := logger.Debug().
			Str("method", req.Method).
			Str("url", req.URL)
		for k, v := range req.Header {
			if redacted[strings.ToLower(k)] || len(v) == 0 {
				continue
			}
			ev = ev.Str(k, v[0])
		}
		ev.Msg("http request")
		return nil
	})

	client.AddResponseMiddleware(func(_ *resty.Client, resp *resty.Response) error {
		logger.Debug().
			Str("method", resp.Request.Method).
			Str("url", resp.Request.URL).
			Int("status", resp.StatusCode()).
			Int("size", len(resp.Bytes())).
			Msg("http response")
		return nil
	})

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.client.Close()
}

// Do sends req to the client's host. The body bytes go on the wire unchanged,
// so a signature computed over them stays valid. A response with any status
// is returned without error; only a failure to get a response is an error.
func (c *Client) Do(ctx context.Context, req *core.Request) (*resty.Response, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, core.ErrClientClosed
	}

	r := c.client.R().
		SetContext(ctx).
		SetHeaders(req.Headers)
	if len(req.Body) > 0 {
		r.SetBody(req.Body)
	}
	return r.Execute(req.Method, req.Path)
}
