package bitfinex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/samber/mo"

	"bfxtrade/pkg/core"
)

const (
	ProductionURL = core.DefaultBaseURL
	PublicURL     = core.DefaultPublicURL
)

// Header names used by authenticated calls.
const (
	HeaderNonce     = "bfx-nonce"
	HeaderAPIKey    = "bfx-apikey"
	HeaderSignature = "bfx-signature"
)

const (
	pathSubmitOrder       = "/v2/auth/w/order/submit"
	pathUpdateOrder       = "/v2/auth/w/order/update"
	pathCancelOrder       = "/v2/auth/w/order/cancel"
	pathTicker            = "/v2/ticker/"
	pathRetrieveOrders    = "/v2/auth/r/orders/"
	pathIncreasePosition  = "/v2/auth/w/position/increase"
	pathRetrievePositions = "/v2/auth/r/positions"
)

// Protocol builds, signs and parses Bitfinex REST calls. It holds no state.
type Protocol struct {
	normalizer *Normalizer
}

var _ core.Protocol = (*Protocol)(nil)

// NewProtocol creates a new Bitfinex protocol instance.
func NewProtocol() *Protocol {
	return &Protocol{normalizer: NewNormalizer()}
}

// Name returns the protocol identifier "bitfinex".
func (p *Protocol) Name() string {
	return core.ExchangeName
}

// Version returns the Bitfinex API version string.
func (p *Protocol) Version() string {
	return "2"
}

// SupportedOperations returns the list of operations supported by this protocol.
func (p *Protocol) SupportedOperations() []core.Operation {
	return []core.Operation{
		core.OpSubmitOrder,
		core.OpUpdateOrder,
		core.OpCancelOrder,
		core.OpGetTicker,
		core.OpRetrieveOrders,
		core.OpIncreasePosition,
		core.OpRetrievePositions,
	}
}

type submitOrderBody struct {
	Symbol string `json:"symbol"`
	Type   string `json:"type"`
	Amount string `json:"amount"`
	Price  string `json:"price"`
}

type updateOrderBody struct {
	ID    int64  `json:"id"`
	Price string `json:"price"`
}

type cancelOrderBody struct {
	ID int64 `json:"id"`
}

type increasePositionBody struct {
	Symbol string `json:"symbol"`
	Amount string `json:"amount"`
}

// BuildRequest constructs the HTTP request for the given operation.
// Amounts in params must already carry the wire sign.
func (p *Protocol) BuildRequest(ctx context.Context, op core.Operation, params core.Params) (*core.Request, error) {
	switch op {
	case core.OpSubmitOrder:
		return p.buildSubmitOrderRequest(params)
	case core.OpUpdateOrder:
		return p.buildUpdateOrderRequest(params)
	case core.OpCancelOrder:
		return p.buildCancelOrderRequest(params)
	case core.OpGetTicker:
		return p.buildGetTickerRequest(params)
	case core.OpRetrieveOrders:
		return p.buildRetrieveOrdersRequest(params)
	case core.OpIncreasePosition:
		return p.buildIncreasePositionRequest(params)
	case core.OpRetrievePositions:
		return p.buildRetrievePositionsRequest()
	default:
		return nil, badRequest(fmt.Sprintf("unsupported operation: %s", op)).WithCode(core.ErrCodeUnsupported)
	}
}

// ParseResponse decodes a reply into the operation's result type.
// A non-200 status is not an error: order and position calls yield a result
// carrying only the status, list calls yield mo.None.
func (p *Protocol) ParseResponse(op core.Operation, status int, body []byte) (any, error) {
	n := p.normalizer

	switch op {
	case core.OpSubmitOrder, core.OpUpdateOrder, core.OpCancelOrder:
		if status != http.StatusOK {
			return &core.OrderResponse{HTTPStatus: status}, nil
		}
		var (
			resp *core.OrderResponse
			err  error
		)
		switch op {
		case core.OpSubmitOrder:
			resp, err = n.NormalizeSubmitReply(body)
		case core.OpUpdateOrder:
			resp, err = n.NormalizeUpdateReply(body)
		default:
			resp, err = n.NormalizeCancelReply(body)
		}
		if err != nil {
			return nil, err
		}
		resp.HTTPStatus = status
		return resp, nil

	case core.OpGetTicker:
		if status != http.StatusOK {
			return &core.TickerResponse{HTTPStatus: status}, nil
		}
		ticker, err := n.NormalizeTicker(body)
		if err != nil {
			return nil, err
		}
		ticker.HTTPStatus = status
		return ticker, nil

	case core.OpRetrieveOrders:
		if status != http.StatusOK {
			return mo.None[core.OrderBook](), nil
		}
		book, err := n.NormalizeOrderBook(body)
		if err != nil {
			return nil, err
		}
		return mo.Some(*book), nil

	case core.OpIncreasePosition:
		if status != http.StatusOK {
			return &core.IncreasePositionResponse{HTTPStatus: status}, nil
		}
		resp, err := n.NormalizeIncreasePositionReply(body)
		if err != nil {
			return nil, err
		}
		resp.HTTPStatus = status
		return resp, nil

	case core.OpRetrievePositions:
		if status != http.StatusOK {
			return mo.None[core.Positions](), nil
		}
		positions, err := n.NormalizePositions(body)
		if err != nil {
			return nil, err
		}
		return mo.Some(*positions), nil

	default:
		return nil, badRequest(fmt.Sprintf("unsupported operation: %s", op)).WithCode(core.ErrCodeUnsupported)
	}
}

// SignRequest stamps req with the nonce, API key and signature headers.
// The signature covers the exact body bytes held by req.
func (p *Protocol) SignRequest(req *core.Request, creds core.Credentials, nonce string, signer core.Signer) error {
	if signer == nil {
		return core.NewExchangeError(p.Name(), core.ErrorTypeSigning, 0, "no signer configured").
			WithCode(core.ErrCodeEmptySecret)
	}

	signature, err := signer.Sign(req.Path, nonce, req.BodyString())
	if err != nil {
		if core.IsSigningError(err) {
			return err
		}
		return core.NewExchangeError(p.Name(), core.ErrorTypeSigning, 0, err.Error()).
			WithCode(core.ErrCodeDigest).
			WithCause(err)
	}

	req.SetHeader(HeaderNonce, nonce)
	req.SetHeader(HeaderAPIKey, creds.APIKey)
	req.SetHeader(HeaderSignature, signature)
	return nil
}

func (p *Protocol) buildSubmitOrderRequest(params core.Params) (*core.Request, error) {
	symbol, err := getRequiredStringParam(params, "symbol")
	if err != nil {
		return nil, err
	}

	orderType, err := getRequiredStringParam(params, "type")
	if err != nil {
		return nil, err
	}

	amount, err := getRequiredStringParam(params, "amount")
	if err != nil {
		return nil, err
	}

	price, err := getRequiredStringParam(params, "price")
	if err != nil {
		return nil, err
	}

	req := newAuthRequest(http.MethodPost, pathSubmitOrder)
	if err := req.SetJSONBody(submitOrderBody{
		Symbol: symbol,
		Type:   orderType,
		Amount: amount,
		Price:  price,
	}); err != nil {
		return nil, fmt.Errorf("encode submit body: %w", err)
	}

	return req, nil
}

func (p *Protocol) buildUpdateOrderRequest(params core.Params) (*core.Request, error) {
	id, err := getRequiredIDParam(params, "id")
	if err != nil {
		return nil, err
	}

	price, err := getRequiredStringParam(params, "price")
	if err != nil {
		return nil, err
	}

	req := newAuthRequest(http.MethodPost, pathUpdateOrder)
	if err := req.SetJSONBody(updateOrderBody{ID: id, Price: price}); err != nil {
		return nil, fmt.Errorf("encode update body: %w", err)
	}

	return req, nil
}

func (p *Protocol) buildCancelOrderRequest(params core.Params) (*core.Request, error) {
	id, err := getRequiredIDParam(params, "id")
	if err != nil {
		return nil, err
	}

	req := newAuthRequest(http.MethodPost, pathCancelOrder)
	if err := req.SetJSONBody(cancelOrderBody{ID: id}); err != nil {
		return nil, fmt.Errorf("encode cancel body: %w", err)
	}

	return req, nil
}

func (p *Protocol) buildGetTickerRequest(params core.Params) (*core.Request, error) {
	symbol, err := getRequiredStringParam(params, "symbol")
	if err != nil {
		return nil, err
	}

	req := core.NewRequest(http.MethodGet, pathTicker+url.PathEscape(symbol))
	req.SetHeader("Accept", "application/json")

	return req, nil
}

func (p *Protocol) buildRetrieveOrdersRequest(params core.Params) (*core.Request, error) {
	symbol, err := getRequiredStringParam(params, "symbol")
	if err != nil {
		return nil, err
	}

	return newAuthRequest(http.MethodPost, pathRetrieveOrders+url.PathEscape(symbol)), nil
}

func (p *Protocol) buildIncreasePositionRequest(params core.Params) (*core.Request, error) {
	symbol, err := getRequiredStringParam(params, "symbol")
	if err != nil {
		return nil, err
	}

	amount, err := getRequiredStringParam(params, "amount")
	if err != nil {
		return nil, err
	}

	req := newAuthRequest(http.MethodPost, pathIncreasePosition)
	if err := req.SetJSONBody(increasePositionBody{Symbol: symbol, Amount: amount}); err != nil {
		return nil, fmt.Errorf("encode increase position body: %w", err)
	}

	return req, nil
}

func (p *Protocol) buildRetrievePositionsRequest() (*core.Request, error) {
	return newAuthRequest(http.MethodPost, pathRetrievePositions), nil
}

func newAuthRequest(method, path string) *core.Request {
	req := core.NewRequest(method, path)
	req.SetHeader("Content-Type", "application/json")
	req.SetHeader("Accept", "application/json")
	req.SetRequireAuth(true)
	return req
}

func badRequest(message string) *core.ExchangeError {
	return core.NewExchangeError(core.ExchangeName, core.ErrorTypeBadRequest, 0, message)
}

func getRequiredStringParam(params core.Params, key string) (string, error) {
	val, ok := params[key]
	if !ok {
		return "", badRequest(fmt.Sprintf("missing required parameter: %s", key))
	}

	str, ok := val.(string)
	if !ok {
		return "", badRequest(fmt.Sprintf("parameter %s must be a string", key))
	}

	if str == "" {
		return "", badRequest(fmt.Sprintf("parameter %s cannot be empty", key))
	}

	return str, nil
}

// getRequiredIDParam accepts an order id as an integer or a decimal string.
func getRequiredIDParam(params core.Params, key string) (int64, error) {
	val, ok := params[key]
	if !ok {
		return 0, badRequest(fmt.Sprintf("missing required parameter: %s", key))
	}

	switch v := val.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, badRequest(fmt.Sprintf("parameter %s must be numeric, got %q", key, v)).WithCause(err)
		}
		return id, nil
	default:
		return 0, badRequest(fmt.Sprintf("parameter %s has unsupported type %T", key, val))
	}
}
