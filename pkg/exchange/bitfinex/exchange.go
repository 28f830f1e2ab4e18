package bitfinex

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cockroachdb/apd/v3"
	"github.com/rs/zerolog"
	"github.com/samber/mo"
	"resty.dev/v3"

	"bfxtrade/internal/auth"
	httpClient "bfxtrade/internal/http"
	"bfxtrade/pkg/core"
)

const userAgent = "bfxtrade/1"

// BitfinexExchange implements the Exchange interface for the Bitfinex v2 REST API.
// Each call is a single build, sign, send and decode pass; nothing is retried.
type BitfinexExchange struct {
	config     *core.Config
	httpClient *httpClient.Client
	publicHTTP *httpClient.Client
	signer     auth.Signer
	nonce      auth.NonceSource
	logger     zerolog.Logger
	protocol   core.Protocol
}

// Option is a functional option for configuring the BitfinexExchange.
type Option func(*Options)

// Options holds configuration options for the BitfinexExchange.
type Options struct {
	Logger zerolog.Logger
	Signer auth.Signer
	Nonce  auth.NonceSource
}

// WithLogger returns an option that sets the logger for the exchange.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithSigner replaces the HMAC-SHA384 signer derived from the credentials.
func WithSigner(s auth.Signer) Option {
	return func(o *Options) {
		o.Signer = s
	}
}

// WithNonceSource replaces the millisecond nonce source.
func WithNonceSource(n auth.NonceSource) Option {
	return func(o *Options) {
		o.Nonce = n
	}
}

// New creates a new BitfinexExchange. Credentials are optional at construction;
// authenticated calls fail with a CONFIG error when they are missing.
func New(config *core.Config, opts ...Option) (*BitfinexExchange, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	options := &Options{
		Logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(options)
	}

	logger := options.Logger.With().Str("exchange", core.ExchangeName).Logger()

	authClient, err := httpClient.NewClient(&httpClient.Config{
		BaseURL:   config.BaseURL,
		Timeout:   config.Timeout,
		UserAgent: userAgent,
		Logger:    &logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}

	publicClient, err := httpClient.NewClient(&httpClient.Config{
		BaseURL:   config.PublicURL,
		Timeout:   config.Timeout,
		UserAgent: userAgent,
		Logger:    &logger,
	})
	if err != nil {
		_ = authClient.Close()
		return nil, fmt.Errorf("create public http client: %w", err)
	}

	// the gateway keeps its own copy so later edits to config do not leak in
	cfg := *config
	if config.Credentials != nil {
		creds := *config.Credentials
		cfg.Credentials = &creds
	}

	signer := options.Signer
	if signer == nil && cfg.Credentials != nil {
		signer = auth.NewHMACSHA384(cfg.Credentials.SecretKey)
	}

	nonce := options.Nonce
	if nonce == nil {
		nonce = auth.NewMillisNonce()
	}

	return &BitfinexExchange{
		config:     &cfg,
		httpClient: authClient,
		publicHTTP: publicClient,
		signer:     signer,
		nonce:      nonce,
		logger:     logger,
		protocol:   NewProtocol(),
	}, nil
}

// Name returns the exchange identifier "bitfinex".
func (e *BitfinexExchange) Name() string {
	return core.ExchangeName
}

// Version returns the Bitfinex API version.
func (e *BitfinexExchange) Version() string {
	return e.protocol.Version()
}

// Close releases the HTTP clients.
func (e *BitfinexExchange) Close() error {
	var firstErr error
	for _, c := range []*httpClient.Client{e.httpClient, e.publicHTTP} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SubmitOrder places order. A sell is sent with a negated amount. The amount
// must be positive, otherwise the sign could not carry the side.
func (e *BitfinexExchange) SubmitOrder(ctx context.Context, order core.Order) (*core.OrderResponse, error) {
	if err := checkAmount(order.Amount); err != nil {
		return nil, err
	}

	params := core.Params{
		"symbol": order.Symbol,
		"type":   order.Type.String(),
		"amount": EncodeAmount(order.Amount, order.Side == core.SideSell),
		"price":  order.Price.Text('f'),
	}

	return e.orderCall(ctx, core.OpSubmitOrder, params)
}

// UpdateOrder moves the limit price of an open order.
func (e *BitfinexExchange) UpdateOrder(ctx context.Context, orderID string, price apd.Decimal) (*core.OrderResponse, error) {
	params := core.Params{
		"id":    orderID,
		"price": price.Text('f'),
	}

	return e.orderCall(ctx, core.OpUpdateOrder, params)
}

// CancelOrder cancels an open order. On success only OrderID is populated.
func (e *BitfinexExchange) CancelOrder(ctx context.Context, orderID string) (*core.OrderResponse, error) {
	return e.orderCall(ctx, core.OpCancelOrder, core.Params{"id": orderID})
}

func (e *BitfinexExchange) orderCall(ctx context.Context, op core.Operation, params core.Params) (*core.OrderResponse, error) {
	result, err := e.call(ctx, op, params)
	if err != nil {
		return nil, err
	}

	resp, ok := result.(*core.OrderResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", result)
	}

	e.logResult(op, resp.HTTPStatus, resp.Message)
	return resp, nil
}

// GetTicker retrieves the public ticker for symbol. The call is not signed.
func (e *BitfinexExchange) GetTicker(ctx context.Context, symbol string) (*core.TickerResponse, error) {
	result, err := e.call(ctx, core.OpGetTicker, core.Params{"symbol": symbol})
	if err != nil {
		return nil, err
	}

	ticker, ok := result.(*core.TickerResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", result)
	}

	ticker.Symbol = symbol
	e.logResult(core.OpGetTicker, ticker.HTTPStatus, core.StatusSuccess)
	return ticker, nil
}

// RetrieveOrders returns the open orders for symbol, or mo.None when the
// exchange answered with a non-200 status.
func (e *BitfinexExchange) RetrieveOrders(ctx context.Context, symbol string) (mo.Option[core.OrderBook], error) {
	result, err := e.call(ctx, core.OpRetrieveOrders, core.Params{"symbol": symbol})
	if err != nil {
		return mo.None[core.OrderBook](), err
	}

	book, ok := result.(mo.Option[core.OrderBook])
	if !ok {
		return mo.None[core.OrderBook](), fmt.Errorf("unexpected response type: %T", result)
	}

	return book, nil
}

// IncreasePosition grows a margin position. A short is sent with a negated
// amount, so amount must be positive.
func (e *BitfinexExchange) IncreasePosition(ctx context.Context, side core.PositionSide, symbol string, amount apd.Decimal) (*core.IncreasePositionResponse, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}

	params := core.Params{
		"symbol": symbol,
		"amount": EncodeAmount(amount, side == core.PositionShort),
	}

	result, err := e.call(ctx, core.OpIncreasePosition, params)
	if err != nil {
		return nil, err
	}

	resp, ok := result.(*core.IncreasePositionResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", result)
	}

	e.logResult(core.OpIncreasePosition, resp.HTTPStatus, resp.Message)
	return resp, nil
}

// RetrievePositions returns the active positions, or mo.None when the
// exchange answered with a non-200 status.
func (e *BitfinexExchange) RetrievePositions(ctx context.Context) (mo.Option[core.Positions], error) {
	result, err := e.call(ctx, core.OpRetrievePositions, core.Params{})
	if err != nil {
		return mo.None[core.Positions](), err
	}

	positions, ok := result.(mo.Option[core.Positions])
	if !ok {
		return mo.None[core.Positions](), fmt.Errorf("unexpected response type: %T", result)
	}

	return positions, nil
}

func (e *BitfinexExchange) call(ctx context.Context, op core.Operation, params core.Params) (any, error) {
	if !core.Supports(e.protocol, op) {
		return nil, unsupported(fmt.Sprintf("unsupported operation: %s", op))
	}

	req, err := e.protocol.BuildRequest(ctx, op, params)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	var resp *resty.Response
	if req.RequireAuth {
		resp, err = e.doSignedRequest(ctx, req)
	} else {
		resp, err = e.doRequest(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != http.StatusOK {
		e.logger.Warn().
			Str("operation", op.String()).
			Int("status", resp.StatusCode()).
			Str("body", resp.String()).
			Msg("unexpected http status")
	}

	result, err := e.protocol.ParseResponse(op, resp.StatusCode(), resp.Bytes())
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return result, nil
}

func (e *BitfinexExchange) doRequest(ctx context.Context, req *core.Request) (*resty.Response, error) {
	if req.Method != http.MethodGet {
		return nil, unsupported(fmt.Sprintf("unsupported method: %s", req.Method))
	}

	resp, err := e.publicHTTP.Do(ctx, req)
	if err != nil {
		return nil, transportError(err)
	}
	return resp, nil
}

func (e *BitfinexExchange) doSignedRequest(ctx context.Context, req *core.Request) (*resty.Response, error) {
	if err := e.config.ValidateCredentials(); err != nil {
		return nil, err
	}

	if err := e.protocol.SignRequest(req, *e.config.Credentials, e.nonce.Next(), e.signer); err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}

	if req.Method != http.MethodPost {
		return nil, unsupported(fmt.Sprintf("unsupported method: %s", req.Method))
	}

	resp, err := e.httpClient.Do(ctx, req)
	if err != nil {
		return nil, transportError(err)
	}
	return resp, nil
}

func (e *BitfinexExchange) logResult(op core.Operation, status int, message string) {
	switch {
	case status != http.StatusOK:
		e.logger.Warn().Str("operation", op.String()).Int("status", status).Msg("call failed")
	case message != core.StatusSuccess:
		e.logger.Warn().Str("operation", op.String()).Str("message", message).Msg("call rejected")
	default:
		e.logger.Debug().Str("operation", op.String()).Msg("call succeeded")
	}
}

func transportError(err error) error {
	code := core.ErrCodeNetwork
	if errors.Is(err, core.ErrClientClosed) {
		code = core.ErrCodeClientClosed
	}
	return core.NewExchangeError(core.ExchangeName, core.ErrorTypeTransport, 0, err.Error()).
		WithCode(code).
		WithCause(err)
}

func unsupported(message string) error {
	return core.NewExchangeErrorWithCode(core.ExchangeName, core.ErrorTypeBadRequest, 0,
		string(core.ErrCodeUnsupported), message)
}

func checkAmount(amount apd.Decimal) error {
	if amount.Sign() > 0 {
		return nil
	}
	return core.NewExchangeErrorWithCode(core.ExchangeName, core.ErrorTypeBadRequest, 0,
		string(core.ErrCodeInvalidAmount), fmt.Sprintf("amount must be positive, got %s", amount.Text('f')))
}
