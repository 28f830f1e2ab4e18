package bitfinex

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/apd/v3"

	"bfxtrade/pkg/core"
)

// Reply envelope indices shared by every write endpoint.
const (
	envelopeMinLen  = 7
	envelopeData    = 4
	envelopeMessage = 6
)

// Order array indices.
const (
	orderMinLen    = 17
	orderID        = 0
	orderSymbol    = 3
	orderCreatedAt = 4
	orderAmount    = 6
	orderType      = 8
	orderPrice     = 16
)

// Ticker array indices.
const (
	tickerMinLen    = 8
	tickerBid       = 0
	tickerLastPrice = 6
	tickerVolume    = 7
)

// Position array indices.
const (
	positionMinLen           = 13
	positionSymbol           = 0
	positionStatus           = 1
	positionAmount           = 2
	positionBasePrice        = 3
	positionProfitLoss       = 6
	positionProfitLossPct    = 7
	positionLiquidationPrice = 8
	positionLeverage         = 9
	positionID               = 11
	positionCreatedAt        = 12
)

// Increase-position payload indices.
const (
	increaseSymbol = 0
	increaseAmount = 2
)

// numbers decode as json.Number so amounts keep their exact decimal text.
var decodeAPI = sonic.Config{UseNumber: true}.Froze()

// Normalizer converts Bitfinex positional replies into canonical types.
type Normalizer struct{}

// NewNormalizer creates a new Bitfinex normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// NormalizeSubmitReply decodes an order-submit reply. The affected orders at
// index 4 are an array of order arrays; the first one is decoded.
func (n *Normalizer) NormalizeSubmitReply(body []byte) (*core.OrderResponse, error) {
	return n.normalizeOrderReply(body, "submit reply", false)
}

// NormalizeUpdateReply decodes an order-update reply. Index 4 may hold either
// an array of order arrays or a single flat order array.
func (n *Normalizer) NormalizeUpdateReply(body []byte) (*core.OrderResponse, error) {
	return n.normalizeOrderReply(body, "update reply", true)
}

func (n *Normalizer) normalizeOrderReply(body []byte, what string, allowFlat bool) (*core.OrderResponse, error) {
	envelope, message, err := decodeEnvelope(body, what)
	if err != nil {
		return nil, err
	}

	resp := &core.OrderResponse{Message: message}
	if message != core.StatusSuccess {
		return resp, nil
	}

	raw, err := orderArray(envelope[envelopeData], what, allowFlat)
	if err != nil {
		return nil, err
	}

	order, err := n.NormalizeOrder(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}

	id, err := strconv.ParseInt(order.ID, 10, 64)
	if err != nil {
		return nil, malformed(fmt.Sprintf("%s: order id %q is not an integer", what, order.ID))
	}

	resp.OrderID = id
	resp.Symbol = order.Symbol
	resp.Side = order.Side
	resp.Amount = order.Amount
	resp.Price = order.Price
	resp.Type = order.Type
	resp.CreatedAt = order.CreatedAt
	return resp, nil
}

// NormalizeCancelReply decodes an order-cancel reply. Only the order id is
// populated; it is read from [4][0], or from [4] when that is a bare number.
func (n *Normalizer) NormalizeCancelReply(body []byte) (*core.OrderResponse, error) {
	const what = "cancel reply"

	envelope, message, err := decodeEnvelope(body, what)
	if err != nil {
		return nil, err
	}

	resp := &core.OrderResponse{Message: message}
	if message != core.StatusSuccess {
		return resp, nil
	}

	switch data := envelope[envelopeData].(type) {
	case json.Number:
		id, err := numberToInt64(data, what+"[4]")
		if err != nil {
			return nil, err
		}
		resp.OrderID = id
	case []any:
		id, err := intAt(data, orderID, what+"[4]")
		if err != nil {
			return nil, err
		}
		resp.OrderID = id
	default:
		return nil, malformed(fmt.Sprintf("%s: expected order id or order array at index 4, got %T", what, data))
	}

	return resp, nil
}

// NormalizeTicker decodes a public trading-pair ticker.
func (n *Normalizer) NormalizeTicker(body []byte) (*core.TickerResponse, error) {
	const what = "ticker"

	root, err := decodeRoot(body, what)
	if err != nil {
		return nil, err
	}
	arr, err := asArray(root, tickerMinLen, what)
	if err != nil {
		return nil, err
	}

	ticker := &core.TickerResponse{}
	if ticker.Bid, err = decimalAt(arr, tickerBid, what); err != nil {
		return nil, err
	}
	if ticker.LastPrice, err = decimalAt(arr, tickerLastPrice, what); err != nil {
		return nil, err
	}
	if ticker.Volume, err = decimalAt(arr, tickerVolume, what); err != nil {
		return nil, err
	}
	return ticker, nil
}

// NormalizeOrderBook decodes the open-orders reply. An empty array is an
// empty book.
func (n *Normalizer) NormalizeOrderBook(body []byte) (*core.OrderBook, error) {
	const what = "orders reply"

	root, err := decodeRoot(body, what)
	if err != nil {
		return nil, err
	}
	rows, err := asArray(root, 0, what)
	if err != nil {
		return nil, err
	}

	book := &core.OrderBook{Orders: make([]core.Order, 0, len(rows))}
	for i, row := range rows {
		raw, err := asArray(row, orderMinLen, fmt.Sprintf("%s[%d]", what, i))
		if err != nil {
			return nil, err
		}
		order, err := n.NormalizeOrder(raw)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", what, i, err)
		}
		book.Append(order)
	}
	return book, nil
}

// NormalizeOrder converts a single order array to a canonical Order.
// A negative amount is a sell; the stored amount is its magnitude.
func (n *Normalizer) NormalizeOrder(raw []any) (core.Order, error) {
	const what = "order"

	if len(raw) < orderMinLen {
		return core.Order{}, malformed(fmt.Sprintf("%s: expected at least %d fields, got %d", what, orderMinLen, len(raw)))
	}

	var order core.Order

	id, err := intAt(raw, orderID, what)
	if err != nil {
		return core.Order{}, err
	}
	order.ID = strconv.FormatInt(id, 10)

	if order.Symbol, err = stringAt(raw, orderSymbol, what); err != nil {
		return core.Order{}, err
	}

	created, err := intAt(raw, orderCreatedAt, what)
	if err != nil {
		return core.Order{}, err
	}
	order.CreatedAt = core.FormatTimestamp(created)

	signed, err := decimalAt(raw, orderAmount, what)
	if err != nil {
		return core.Order{}, err
	}
	var negative bool
	order.Amount, negative = DecodeAmount(signed)
	if negative {
		order.Side = core.SideSell
	} else {
		order.Side = core.SideBuy
	}

	typeName, err := stringAt(raw, orderType, what)
	if err != nil {
		return core.Order{}, err
	}
	if order.Type, err = core.ParseOrderType(typeName); err != nil {
		return core.Order{}, malformed(fmt.Sprintf("%s: %v", what, err))
	}

	if order.Price, err = decimalAt(raw, orderPrice, what); err != nil {
		return core.Order{}, err
	}

	return order, nil
}

// NormalizeIncreasePositionReply decodes a position-increase reply. When the
// call succeeded and index 4 holds a position array, its symbol and signed
// amount populate the response.
func (n *Normalizer) NormalizeIncreasePositionReply(body []byte) (*core.IncreasePositionResponse, error) {
	const what = "increase position reply"

	envelope, message, err := decodeEnvelope(body, what)
	if err != nil {
		return nil, err
	}

	resp := &core.IncreasePositionResponse{Message: message}
	if message != core.StatusSuccess {
		return resp, nil
	}

	data, ok := envelope[envelopeData].([]any)
	if !ok {
		return resp, nil
	}
	if len(data) > 0 {
		if nested, ok := data[0].([]any); ok {
			data = nested
		}
	}
	if len(data) <= increaseAmount {
		return nil, malformed(fmt.Sprintf("%s: expected at least %d position fields, got %d", what, increaseAmount+1, len(data)))
	}

	if resp.Symbol, err = stringAt(data, increaseSymbol, what+"[4]"); err != nil {
		return nil, err
	}
	signed, err := decimalAt(data, increaseAmount, what+"[4]")
	if err != nil {
		return nil, err
	}
	var negative bool
	resp.Amount, negative = DecodeAmount(signed)
	if negative {
		resp.Side = core.PositionShort
	} else {
		resp.Side = core.PositionLong
	}
	return resp, nil
}

// NormalizePositions decodes the active-positions reply.
func (n *Normalizer) NormalizePositions(body []byte) (*core.Positions, error) {
	const what = "positions reply"

	root, err := decodeRoot(body, what)
	if err != nil {
		return nil, err
	}
	rows, err := asArray(root, 0, what)
	if err != nil {
		return nil, err
	}

	positions := &core.Positions{Positions: make([]core.Position, 0, len(rows))}
	for i, row := range rows {
		raw, err := asArray(row, positionMinLen, fmt.Sprintf("%s[%d]", what, i))
		if err != nil {
			return nil, err
		}
		pos, err := n.NormalizePosition(raw)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", what, i, err)
		}
		positions.Append(pos)
	}
	return positions, nil
}

// NormalizePosition converts a single position array to a canonical Position.
// Profit/loss, liquidation price, leverage and creation time may be null.
func (n *Normalizer) NormalizePosition(raw []any) (core.Position, error) {
	const what = "position"

	if len(raw) < positionMinLen {
		return core.Position{}, malformed(fmt.Sprintf("%s: expected at least %d fields, got %d", what, positionMinLen, len(raw)))
	}

	var (
		pos core.Position
		err error
	)

	if pos.Symbol, err = stringAt(raw, positionSymbol, what); err != nil {
		return core.Position{}, err
	}
	if pos.Status, err = stringAt(raw, positionStatus, what); err != nil {
		return core.Position{}, err
	}

	signed, err := decimalAt(raw, positionAmount, what)
	if err != nil {
		return core.Position{}, err
	}
	var negative bool
	pos.Amount, negative = DecodeAmount(signed)
	if negative {
		pos.Side = core.PositionShort
	} else {
		pos.Side = core.PositionLong
	}

	if pos.BasePrice, err = decimalAt(raw, positionBasePrice, what); err != nil {
		return core.Position{}, err
	}
	if pos.ProfitLoss, err = optionalDecimalAt(raw, positionProfitLoss, what); err != nil {
		return core.Position{}, err
	}
	if pos.ProfitLossPercent, err = optionalDecimalAt(raw, positionProfitLossPct, what); err != nil {
		return core.Position{}, err
	}
	if pos.LiquidationPrice, err = optionalDecimalAt(raw, positionLiquidationPrice, what); err != nil {
		return core.Position{}, err
	}
	if pos.Leverage, err = optionalDecimalAt(raw, positionLeverage, what); err != nil {
		return core.Position{}, err
	}
	if pos.ID, err = intAt(raw, positionID, what); err != nil {
		return core.Position{}, err
	}
	if raw[positionCreatedAt] != nil {
		created, err := intAt(raw, positionCreatedAt, what)
		if err != nil {
			return core.Position{}, err
		}
		pos.CreatedAt = core.FormatTimestamp(created)
	}

	return pos, nil
}

// EncodeAmount renders amount in plain decimal notation, negated when negate
// is set and the amount is non-zero.
func EncodeAmount(amount apd.Decimal, negate bool) string {
	if negate && !amount.IsZero() {
		var neg apd.Decimal
		neg.Neg(&amount)
		return neg.Text('f')
	}
	return amount.Text('f')
}

// DecodeAmount splits a signed wire amount into its magnitude and sign.
func DecodeAmount(signed apd.Decimal) (apd.Decimal, bool) {
	var abs apd.Decimal
	abs.Abs(&signed)
	return abs, signed.Negative && !signed.IsZero()
}

func malformed(message string) *core.ExchangeError {
	return core.NewExchangeErrorWithCode(core.ExchangeName, core.ErrorTypeMalformedResponse, 200,
		string(core.ErrCodeUnexpectedShape), message)
}

func decodeRoot(body []byte, what string) (any, error) {
	var root any
	if err := decodeAPI.Unmarshal(body, &root); err != nil {
		return nil, core.NewExchangeError(core.ExchangeName, core.ErrorTypeMalformedResponse, 200,
			fmt.Sprintf("%s: invalid JSON: %v", what, err)).
			WithCode(core.ErrCodeInvalidJSON).
			WithCause(err)
	}
	return root, nil
}

// decodeEnvelope returns the top-level write reply and its status message.
func decodeEnvelope(body []byte, what string) ([]any, string, error) {
	root, err := decodeRoot(body, what)
	if err != nil {
		return nil, "", err
	}
	envelope, err := asArray(root, envelopeMinLen, what)
	if err != nil {
		return nil, "", err
	}
	message, err := stringAt(envelope, envelopeMessage, what)
	if err != nil {
		return nil, "", err
	}
	return envelope, message, nil
}

// orderArray extracts the first order from the payload at index 4. Nested
// payloads are detected by the type of their first element.
func orderArray(data any, what string, allowFlat bool) ([]any, error) {
	payload, err := asArray(data, 1, what+"[4]")
	if err != nil {
		return nil, err
	}

	if first, ok := payload[0].([]any); ok {
		return asArray(first, orderMinLen, what+"[4][0]")
	}
	if !allowFlat {
		return nil, malformed(fmt.Sprintf("%s[4]: expected array of orders, got flat %T element", what, payload[0]))
	}
	return asArray(payload, orderMinLen, what+"[4]")
}

func asArray(v any, minLen int, what string) ([]any, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, malformed(fmt.Sprintf("%s: expected array, got %T", what, v))
	}
	if len(arr) < minLen {
		return nil, malformed(fmt.Sprintf("%s: expected at least %d elements, got %d", what, minLen, len(arr)))
	}
	return arr, nil
}

func stringAt(arr []any, idx int, what string) (string, error) {
	if idx >= len(arr) {
		return "", malformed(fmt.Sprintf("%s: index %d out of range", what, idx))
	}
	s, ok := arr[idx].(string)
	if !ok {
		return "", malformed(fmt.Sprintf("%s: expected string at index %d, got %T", what, idx, arr[idx]))
	}
	return s, nil
}

func intAt(arr []any, idx int, what string) (int64, error) {
	if idx >= len(arr) {
		return 0, malformed(fmt.Sprintf("%s: index %d out of range", what, idx))
	}
	num, ok := arr[idx].(json.Number)
	if !ok {
		return 0, malformed(fmt.Sprintf("%s: expected number at index %d, got %T", what, idx, arr[idx]))
	}
	return numberToInt64(num, fmt.Sprintf("%s[%d]", what, idx))
}

// numberToInt64 also accepts integral values written in exponent or
// fractional form, e.g. 1.69e12.
func numberToInt64(num json.Number, what string) (int64, error) {
	if v, err := num.Int64(); err == nil {
		return v, nil
	}
	f, err := num.Float64()
	if err != nil {
		return 0, malformed(fmt.Sprintf("%s: invalid number %q", what, num.String()))
	}
	if f != math.Trunc(f) || math.Abs(f) > maxExactInt {
		return 0, malformed(fmt.Sprintf("%s: expected integer, got %s", what, num.String()))
	}
	return int64(f), nil
}

// maxExactInt is the largest integer a float64 represents exactly.
const maxExactInt = 1 << 53

func decimalAt(arr []any, idx int, what string) (apd.Decimal, error) {
	if idx >= len(arr) {
		return apd.Decimal{}, malformed(fmt.Sprintf("%s: index %d out of range", what, idx))
	}
	num, ok := arr[idx].(json.Number)
	if !ok {
		return apd.Decimal{}, malformed(fmt.Sprintf("%s: expected number at index %d, got %T", what, idx, arr[idx]))
	}
	var d apd.Decimal
	if _, _, err := apd.BaseContext.SetString(&d, num.String()); err != nil {
		return apd.Decimal{}, malformed(fmt.Sprintf("%s: invalid decimal %q at index %d", what, num.String(), idx))
	}
	return d, nil
}

// optionalDecimalAt yields zero for null.
func optionalDecimalAt(arr []any, idx int, what string) (apd.Decimal, error) {
	if idx < len(arr) && arr[idx] == nil {
		return apd.Decimal{}, nil
	}
	return decimalAt(arr, idx, what)
}
