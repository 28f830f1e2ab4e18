package exchange

import (
	"context"

	"github.com/cockroachdb/apd/v3"
	"github.com/samber/mo"

	"bfxtrade/pkg/core"
)

// Exchange defines the order-lifecycle and position operations of an
// authenticated exchange gateway.
//
// Order and position calls report a non-200 status through the result's
// HTTPStatus and a business rejection through its Message; only transport,
// signing, configuration and decoding failures are returned as errors.
type Exchange interface {
	Name() string
	Version() string
	Close() error

	SubmitOrder(ctx context.Context, order core.Order) (*core.OrderResponse, error)
	UpdateOrder(ctx context.Context, orderID string, price apd.Decimal) (*core.OrderResponse, error)
	CancelOrder(ctx context.Context, orderID string) (*core.OrderResponse, error)

	GetTicker(ctx context.Context, symbol string) (*core.TickerResponse, error)
	RetrieveOrders(ctx context.Context, symbol string) (mo.Option[core.OrderBook], error)

	IncreasePosition(ctx context.Context, side core.PositionSide, symbol string, amount apd.Decimal) (*core.IncreasePositionResponse, error)
	RetrievePositions(ctx context.Context) (mo.Option[core.Positions], error)
}
