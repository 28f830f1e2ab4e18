package core

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// OrderSide represents the direction of an order (buy or sell).
type OrderSide int

// Order side constants define the direction of a trade.
const (
	// SideBuy indicates an order to purchase an asset.
	SideBuy OrderSide = iota
	// SideSell indicates an order to sell an asset.
	SideSell
)

// String returns the string representation of the order side ("buy" or "sell").
func (s OrderSide) String() string {
	return [...]string{"buy", "sell"}[s]
}

// ParseOrderSide parses "buy" or "sell". Matching is case-sensitive.
func ParseOrderSide(s string) (OrderSide, error) {
	switch s {
	case "buy":
		return SideBuy, nil
	case "sell":
		return SideSell, nil
	}
	return 0, fmt.Errorf("invalid order side %q", s)
}

// PositionSide represents the direction of a margin position.
type PositionSide int

const (
	PositionShort PositionSide = iota
	PositionLong
)

// String returns "short" or "long".
func (s PositionSide) String() string {
	return [...]string{"short", "long"}[s]
}

// ParsePositionSide parses "short" or "long". Matching is case-sensitive.
func ParsePositionSide(s string) (PositionSide, error) {
	switch s {
	case "short":
		return PositionShort, nil
	case "long":
		return PositionLong, nil
	}
	return 0, fmt.Errorf("invalid position side %q", s)
}

// TradeMode represents the margin mode of an account or position.
type TradeMode int

const (
	TradeModeCross TradeMode = iota
	TradeModeIsolated
	TradeModeCash
	TradeModeSpotIsolated
)

// String returns the lowercase token of the trade mode.
func (m TradeMode) String() string {
	return [...]string{"cross", "isolated", "cash", "spot_isolated"}[m]
}

// ParseTradeMode parses a trade mode token. Matching is case-sensitive.
func ParseTradeMode(s string) (TradeMode, error) {
	switch s {
	case "cross":
		return TradeModeCross, nil
	case "isolated":
		return TradeModeIsolated, nil
	case "cash":
		return TradeModeCash, nil
	case "spot_isolated":
		return TradeModeSpotIsolated, nil
	}
	return 0, fmt.Errorf("invalid trade mode %q", s)
}

// OrderType represents the type of order to place on the exchange.
// Every type has an EXCHANGE variant that trades from the exchange wallet
// instead of the margin wallet.
type OrderType int

// Order type constants define how an order is executed.
const (
	TypeLimit OrderType = iota
	TypeExchangeLimit
	TypeMarket
	TypeExchangeMarket
	TypeStop
	TypeExchangeStop
	TypeStopLimit
	TypeExchangeStopLimit
	TypeTrailingStop
	TypeExchangeTrailingStop
	TypeFillOrKill
	TypeExchangeFillOrKill
	TypeImmediateOrCancel
	TypeExchangeImmediateOrCancel
)

var orderTypeNames = [...]string{
	"LIMIT",
	"EXCHANGE LIMIT",
	"MARKET",
	"EXCHANGE MARKET",
	"STOP",
	"EXCHANGE STOP",
	"STOP LIMIT",
	"EXCHANGE STOP LIMIT",
	"TRAILING STOP",
	"EXCHANGE TRAILING STOP",
	"FOK",
	"EXCHANGE FOK",
	"IOC",
	"EXCHANGE IOC",
}

var orderTypeTokens = map[string]OrderType{
	"limit":                  TypeLimit,
	"exchange_limit":         TypeExchangeLimit,
	"market":                 TypeMarket,
	"exchange_market":        TypeExchangeMarket,
	"stop":                   TypeStop,
	"exchange_stop":          TypeExchangeStop,
	"stop_limit":             TypeStopLimit,
	"exchange_stop_limit":    TypeExchangeStopLimit,
	"trailing_stop":          TypeTrailingStop,
	"exchange_trailing_stop": TypeExchangeTrailingStop,
	"fill_or_kill":           TypeFillOrKill,
	"fok":                    TypeFillOrKill,
	"exchange_fok":           TypeExchangeFillOrKill,
	"immediate_or_cancel":    TypeImmediateOrCancel,
	"ioc":                    TypeImmediateOrCancel,
	"exchange_ioc":           TypeExchangeImmediateOrCancel,
}

// String returns the exchange's wire name for the order type, e.g. "EXCHANGE LIMIT".
func (t OrderType) String() string {
	return orderTypeNames[t]
}

// ParseOrderType parses an order type token. Matching is case-insensitive and
// words may be separated by underscores or spaces, so "exchange_limit",
// "EXCHANGE LIMIT" and "Exchange_Limit" are equivalent. "fok" and "ioc" are
// accepted as aliases.
func ParseOrderType(s string) (OrderType, error) {
	token := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
	if t, ok := orderTypeTokens[token]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("invalid order type %q", s)
}

// Order represents an exchange order.
// Amount is always a non-negative magnitude; the direction is carried by Side.
type Order struct {
	// ID is the exchange-assigned order identifier, empty until acknowledged.
	ID string `json:"id"`
	// Side indicates whether this is a buy or sell order.
	Side OrderSide `json:"side"`
	// Symbol is the trading pair, e.g. "tBTCUSD".
	Symbol string `json:"symbol"`
	// Amount is the order size.
	Amount apd.Decimal `json:"amount"`
	// Type defines how the order executes.
	Type OrderType `json:"type"`
	// Price is the limit price.
	Price apd.Decimal `json:"price"`
	// CreatedAt is the ISO-8601 UTC creation time with millisecond precision.
	CreatedAt string `json:"created_at"`
}

// OrderBook holds the open orders of an account in the order the exchange returned them.
type OrderBook struct {
	Orders []Order `json:"orders"`
}

// Append adds an order to the end of the book.
func (b *OrderBook) Append(o Order) {
	b.Orders = append(b.Orders, o)
}

// Empty reports whether the book holds no orders.
func (b OrderBook) Empty() bool {
	return len(b.Orders) == 0
}

// Len returns the number of orders.
func (b OrderBook) Len() int {
	return len(b.Orders)
}

// Position represents an open margin position.
// Amount is always a non-negative magnitude; the direction is carried by Side.
type Position struct {
	ID                int64        `json:"id"`
	Symbol            string       `json:"symbol"`
	Status            string       `json:"status"`
	Side              PositionSide `json:"side"`
	Amount            apd.Decimal  `json:"amount"`
	BasePrice         apd.Decimal  `json:"base_price"`
	ProfitLoss        apd.Decimal  `json:"profit_loss"`
	ProfitLossPercent apd.Decimal  `json:"profit_loss_percent"`
	LiquidationPrice  apd.Decimal  `json:"liquidation_price"`
	Leverage          apd.Decimal  `json:"leverage"`
	CreatedAt         string       `json:"created_at"`
}

// Positions holds the active positions in the order the exchange returned them.
type Positions struct {
	Positions []Position `json:"positions"`
}

// Append adds a position to the end of the collection.
func (p *Positions) Append(pos Position) {
	p.Positions = append(p.Positions, pos)
}

// Empty reports whether there are no positions.
func (p Positions) Empty() bool {
	return len(p.Positions) == 0
}

// Len returns the number of positions.
func (p Positions) Len() int {
	return len(p.Positions)
}
