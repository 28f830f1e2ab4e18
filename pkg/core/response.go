package core

import (
	"fmt"
	"net/http"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// StatusSuccess is the status message the exchange puts in a reply when the
// operation was carried out.
const StatusSuccess = "SUCCESS"

// OrderResponse is the outcome of a submit, update or cancel call.
// Callers must check HTTPStatus first and Message second; the remaining fields
// are only populated on a successful reply.
type OrderResponse struct {
	HTTPStatus int         `json:"http_status"`
	Message    string      `json:"message"`
	OrderID    int64       `json:"order_id"`
	Symbol     string      `json:"symbol"`
	Side       OrderSide   `json:"side"`
	Amount     apd.Decimal `json:"amount"`
	Price      apd.Decimal `json:"price"`
	Type       OrderType   `json:"type"`
	CreatedAt  string      `json:"created_at"`
}

// OK reports whether the call succeeded at both HTTP and business level.
func (r *OrderResponse) OK() bool {
	return r.HTTPStatus == http.StatusOK && r.Message == StatusSuccess
}

// Err converts a failed status or a business rejection into an ExchangeError.
// It returns nil when OK.
func (r *OrderResponse) Err() error {
	return resultErr(r.HTTPStatus, r.Message)
}

// TickerResponse is the public market snapshot of a trading pair.
type TickerResponse struct {
	HTTPStatus int         `json:"http_status"`
	Symbol     string      `json:"symbol"`
	LastPrice  apd.Decimal `json:"last_price"`
	Bid        apd.Decimal `json:"bid"`
	Volume     apd.Decimal `json:"volume"`
}

// OK reports whether the ticker was retrieved.
func (r *TickerResponse) OK() bool {
	return r.HTTPStatus == http.StatusOK
}

// IncreasePositionResponse is the outcome of a position increase.
type IncreasePositionResponse struct {
	HTTPStatus int          `json:"http_status"`
	Message    string       `json:"message"`
	Symbol     string       `json:"symbol"`
	Side       PositionSide `json:"side"`
	Amount     apd.Decimal  `json:"amount"`
}

// OK reports whether the call succeeded at both HTTP and business level.
func (r *IncreasePositionResponse) OK() bool {
	return r.HTTPStatus == http.StatusOK && r.Message == StatusSuccess
}

// Err converts a failed status or a business rejection into an ExchangeError.
// It returns nil when OK.
func (r *IncreasePositionResponse) Err() error {
	return resultErr(r.HTTPStatus, r.Message)
}

func resultErr(status int, message string) error {
	if status != http.StatusOK {
		return NewExchangeError(ExchangeName, ErrorTypeHTTPStatus, status,
			fmt.Sprintf("HTTP error: %d %s", status, http.StatusText(status)))
	}
	if message != StatusSuccess {
		return NewExchangeError(ExchangeName, ErrorTypeBusinessRejection, status, message)
	}
	return nil
}

const timestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders epoch milliseconds as an ISO-8601 UTC timestamp
// with millisecond precision, e.g. "1970-01-01T00:00:00.000Z".
func FormatTimestamp(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(timestampLayout)
}
