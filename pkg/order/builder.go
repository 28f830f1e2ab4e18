package order

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"

	"bfxtrade/pkg/core"
)

// OrderBuilder provides a fluent interface for constructing orders.
// It accumulates validation errors and reports them on Build.
//
// Example:
//
//	o, err := order.NewOrderBuilder("tBTCUSD").
//	    Sell().
//	    ExchangeLimit().
//	    Price("30000").
//	    Amount("0.5").
//	    Build()
type OrderBuilder struct {
	order *core.Order
	err   error
}

// NewOrderBuilder creates a new order builder for the given trading symbol.
func NewOrderBuilder(symbol string) *OrderBuilder {
	return &OrderBuilder{
		order: &core.Order{
			Symbol: symbol,
			Type:   core.TypeExchangeLimit,
		},
	}
}

// Side sets the order side (buy or sell).
func (b *OrderBuilder) Side(side core.OrderSide) *OrderBuilder {
	if b.err != nil {
		return b
	}
	b.order.Side = side
	return b
}

// SideString parses and sets the order side. Matching is case-sensitive.
func (b *OrderBuilder) SideString(side string) *OrderBuilder {
	if b.err != nil {
		return b
	}
	s, err := core.ParseOrderSide(side)
	if err != nil {
		b.err = err
		return b
	}
	b.order.Side = s
	return b
}

// Buy sets the order side to buy.
func (b *OrderBuilder) Buy() *OrderBuilder {
	return b.Side(core.SideBuy)
}

// Sell sets the order side to sell.
func (b *OrderBuilder) Sell() *OrderBuilder {
	return b.Side(core.SideSell)
}

// Type sets the order type.
func (b *OrderBuilder) Type(orderType core.OrderType) *OrderBuilder {
	if b.err != nil {
		return b
	}
	b.order.Type = orderType
	return b
}

// TypeString parses and sets the order type. Matching is case-insensitive.
func (b *OrderBuilder) TypeString(orderType string) *OrderBuilder {
	if b.err != nil {
		return b
	}
	t, err := core.ParseOrderType(orderType)
	if err != nil {
		b.err = err
		return b
	}
	b.order.Type = t
	return b
}

// ExchangeLimit sets the order type to exchange limit.
func (b *OrderBuilder) ExchangeLimit() *OrderBuilder {
	return b.Type(core.TypeExchangeLimit)
}

// Limit sets the order type to margin limit.
func (b *OrderBuilder) Limit() *OrderBuilder {
	return b.Type(core.TypeLimit)
}

// Price sets the order price from a string representation.
func (b *OrderBuilder) Price(price string) *OrderBuilder {
	if b.err != nil {
		return b
	}
	_, _, err := b.order.Price.SetString(price)
	if err != nil {
		b.err = fmt.Errorf("parse price: %w", err)
	}
	return b
}

// PriceDecimal sets the order price from an apd.Decimal value.
func (b *OrderBuilder) PriceDecimal(price apd.Decimal) *OrderBuilder {
	if b.err != nil {
		return b
	}
	b.order.Price.Set(&price)
	return b
}

// Amount sets the order size from a string representation.
func (b *OrderBuilder) Amount(amount string) *OrderBuilder {
	if b.err != nil {
		return b
	}
	_, _, err := b.order.Amount.SetString(amount)
	if err != nil {
		b.err = fmt.Errorf("parse amount: %w", err)
	}
	return b
}

// AmountDecimal sets the order size from an apd.Decimal value.
func (b *OrderBuilder) AmountDecimal(amount apd.Decimal) *OrderBuilder {
	if b.err != nil {
		return b
	}
	b.order.Amount.Set(&amount)
	return b
}

// Build validates and returns the constructed order.
// Returns an error if any required fields are missing or invalid.
func (b *OrderBuilder) Build() (*core.Order, error) {
	if b.err != nil {
		return nil, b.err
	}

	if err := validateOrder(b.order); err != nil {
		return nil, err
	}

	return b.order, nil
}

func validateOrder(order *core.Order) error {
	if order.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}

	if order.Amount.IsZero() || order.Amount.Negative || order.Amount.Form != apd.Finite {
		return fmt.Errorf("amount must be positive")
	}

	if order.Price.IsZero() || order.Price.Negative || order.Price.Form != apd.Finite {
		return fmt.Errorf("price must be positive")
	}

	if order.Side != core.SideBuy && order.Side != core.SideSell {
		return fmt.Errorf("invalid order side")
	}

	if order.Type < core.TypeLimit || order.Type > core.TypeExchangeImmediateOrCancel {
		return fmt.Errorf("invalid order type")
	}

	return nil
}

// ParsePositive parses s as a decimal greater than zero.
func ParsePositive(s string) (apd.Decimal, error) {
	var d apd.Decimal
	if _, _, err := d.SetString(s); err != nil {
		return apd.Decimal{}, fmt.Errorf("parse %q: %w", s, err)
	}
	if d.IsZero() || d.Negative || d.Form != apd.Finite {
		return apd.Decimal{}, fmt.Errorf("%q must be a positive number", s)
	}
	return d, nil
}
