package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/cockroachdb/apd/v3"
	"github.com/rs/zerolog"

	"bfxtrade/pkg/core"
	"bfxtrade/pkg/exchange"
	"bfxtrade/pkg/order"
)

// app carries what every command needs once the gateway is up.
type app struct {
	gw     exchange.Exchange
	prompt *prompter
	out    io.Writer
	errOut io.Writer
	log    zerolog.Logger
}

type command interface {
	// validate checks flag values before any config is loaded.
	validate() error
	// public reports whether the command works without credentials.
	public() bool
	run(ctx context.Context, a *app) int
}

func requiredOption(name string) error {
	return fmt.Errorf("the option '--%s' is required but missing", name)
}

func invalidOption(name, value string) error {
	return fmt.Errorf("the argument ('%s') for option '--%s' is invalid", value, name)
}

// fail logs err and prints the generic failure line.
func (a *app) fail(op string, err error) int {
	a.log.Error().Err(err).Str("operation", op).Msg("request failed")
	fmt.Fprintln(a.errOut, genericFailure)
	return exitFailure
}

func (a *app) failStatus(op string, status int) int {
	a.log.Debug().Str("operation", op).Int("status", status).Msg("non-200 reply")
	fmt.Fprintln(a.errOut, genericFailure)
	return exitFailure
}

var calc = apd.BaseContext.WithPrecision(34)

type placeOrderCommand struct {
	side, symbol, amount, typ, price string
}

func (c placeOrderCommand) public() bool { return false }

func (c placeOrderCommand) validate() error {
	for _, opt := range []struct{ name, value string }{
		{"side", c.side},
		{"symbol", c.symbol},
		{"amount", c.amount},
		{"type", c.typ},
		{"price", c.price},
	} {
		if opt.value == "" {
			return requiredOption(opt.name)
		}
	}
	if _, err := core.ParseOrderSide(c.side); err != nil {
		return invalidOption("side", c.side)
	}
	t, err := core.ParseOrderType(c.typ)
	if err != nil {
		return invalidOption("type", c.typ)
	}
	if t != core.TypeExchangeLimit {
		return fmt.Errorf("oops ! Only exchange limit orders are supported at this time")
	}
	if _, err := order.ParsePositive(c.amount); err != nil {
		return invalidOption("amount", c.amount)
	}
	if _, err := order.ParsePositive(c.price); err != nil {
		return invalidOption("price", c.price)
	}
	return nil
}

func (c placeOrderCommand) build() (*core.Order, error) {
	return order.NewOrderBuilder(c.symbol).
		SideString(c.side).
		TypeString(c.typ).
		Amount(c.amount).
		Price(c.price).
		Build()
}

func (c placeOrderCommand) run(ctx context.Context, a *app) int {
	o, err := c.build()
	if err != nil {
		fmt.Fprintln(a.errOut, err)
		return exitFailure
	}

	resp, err := a.gw.SubmitOrder(ctx, *o)
	if err != nil {
		return a.fail("submit_order", err)
	}
	if resp.HTTPStatus != http.StatusOK {
		return a.failStatus("submit_order", resp.HTTPStatus)
	}
	if !resp.OK() {
		fmt.Fprintln(a.errOut, "Oops ! order didn't go through")
		return exitRejected
	}

	fmt.Fprintf(a.out, "Placed a %s %s order for pair %s for the price of %s for %s amount, order id: (%d)\n",
		resp.Type, resp.Side, resp.Symbol, resp.Price.Text('f'), resp.Amount.Text('f'), resp.OrderID)

	orderID := resp.OrderID

	fmt.Fprintln(a.out, "Would you like to change the order price ? (y,n)")
	yes, err := a.prompt.confirm()
	if err != nil {
		return a.fail("prompt", err)
	}
	if yes {
		a.printPriceHint(ctx, resp.Symbol, o.Amount)

		fmt.Fprintln(a.out, "Please enter the new order price:")
		price, err := a.prompt.positiveDecimal()
		if err != nil {
			return a.fail("prompt", err)
		}

		updated, err := a.gw.UpdateOrder(ctx, fmt.Sprint(orderID), price)
		if err != nil {
			return a.fail("update_order", err)
		}
		if updated.HTTPStatus != http.StatusOK {
			return a.failStatus("update_order", updated.HTTPStatus)
		}
		if !updated.OK() {
			fmt.Fprintln(a.errOut, "Oops ! could not update the price")
		} else {
			fmt.Fprintf(a.out, "Successfully changed order price to %s\n", updated.Price.Text('f'))
			orderID = updated.OrderID
		}
	}

	fmt.Fprintf(a.out, "Would you like to cancel the order (%d) ? (y,n)\n", orderID)
	yes, err = a.prompt.confirm()
	if err != nil {
		return a.fail("prompt", err)
	}
	if !yes {
		return exitOK
	}
	return cancelOrderCommand{orderID: fmt.Sprint(orderID)}.run(ctx, a)
}

// printPriceHint shows last trade price times amount. A failed ticker lookup
// is skipped silently.
func (a *app) printPriceHint(ctx context.Context, symbol string, amount apd.Decimal) {
	ticker, err := a.gw.GetTicker(ctx, symbol)
	if err != nil {
		a.log.Debug().Err(err).Str("symbol", symbol).Msg("ticker lookup failed")
		return
	}
	if !ticker.OK() {
		return
	}

	var suggested apd.Decimal
	if _, err := calc.Mul(&suggested, &ticker.LastPrice, &amount); err != nil {
		return
	}
	suggested.Reduce(&suggested)

	fmt.Fprintf(a.out, "last trade price for pair %s for the amount %s is %s to make sure the order does not fill offer a much higher/lower price\n",
		symbol, amount.Text('f'), suggested.Text('f'))
}

type tickerCommand struct {
	symbol string
}

func (c tickerCommand) public() bool    { return true }
func (c tickerCommand) validate() error { return nil }

func (c tickerCommand) run(ctx context.Context, a *app) int {
	ticker, err := a.gw.GetTicker(ctx, c.symbol)
	if err != nil {
		return a.fail("get_ticker", err)
	}
	if !ticker.OK() {
		return a.failStatus("get_ticker", ticker.HTTPStatus)
	}
	fmt.Fprintf(a.out, "Price of the last trade: %s\n", ticker.LastPrice.Text('f'))
	fmt.Fprintf(a.out, "Price of last highest bid: %s\n", ticker.Bid.Text('f'))
	fmt.Fprintf(a.out, "Daily volume: %s\n", ticker.Volume.Text('f'))
	return exitOK
}

type cancelOrderCommand struct {
	orderID string
}

func (c cancelOrderCommand) public() bool    { return false }
func (c cancelOrderCommand) validate() error { return nil }

func (c cancelOrderCommand) run(ctx context.Context, a *app) int {
	resp, err := a.gw.CancelOrder(ctx, c.orderID)
	if err != nil {
		return a.fail("cancel_order", err)
	}
	if resp.HTTPStatus != http.StatusOK {
		return a.failStatus("cancel_order", resp.HTTPStatus)
	}
	if !resp.OK() {
		fmt.Fprintln(a.errOut, "Oops ! could not cancel order")
		return exitRejected
	}
	fmt.Fprintf(a.out, "Successfully submitted order (%d) for cancellation\n", resp.OrderID)
	return exitOK
}

type orderBookCommand struct {
	symbol string
}

func (c orderBookCommand) public() bool    { return false }
func (c orderBookCommand) validate() error { return nil }

func (c orderBookCommand) run(ctx context.Context, a *app) int {
	result, err := a.gw.RetrieveOrders(ctx, c.symbol)
	if err != nil {
		return a.fail("retrieve_orders", err)
	}
	book, ok := result.Get()
	if !ok {
		fmt.Fprintln(a.errOut, genericFailure)
		return exitFailure
	}
	if book.Empty() {
		fmt.Fprintln(a.out, "Order book is empty")
		return exitOK
	}
	for _, o := range book.Orders {
		fmt.Fprintf(a.out, "%s %s %s %s %s %s @ %s\n",
			o.ID, o.CreatedAt, o.Symbol, o.Side, o.Type, o.Amount.Text('f'), o.Price.Text('f'))
	}
	return exitOK
}

type increasePositionCommand struct {
	side, symbol, amount string
}

func (c increasePositionCommand) public() bool { return false }

func (c increasePositionCommand) validate() error {
	for _, opt := range []struct{ name, value string }{
		{"position-side", c.side},
		{"position-symbol", c.symbol},
		{"position-amount", c.amount},
	} {
		if opt.value == "" {
			return requiredOption(opt.name)
		}
	}
	if _, err := core.ParsePositionSide(c.side); err != nil {
		return invalidOption("position-side", c.side)
	}
	if _, err := order.ParsePositive(c.amount); err != nil {
		return invalidOption("position-amount", c.amount)
	}
	return nil
}

func (c increasePositionCommand) run(ctx context.Context, a *app) int {
	side, err := core.ParsePositionSide(c.side)
	if err != nil {
		fmt.Fprintln(a.errOut, invalidOption("position-side", c.side))
		return exitFailure
	}
	amount, err := order.ParsePositive(c.amount)
	if err != nil {
		fmt.Fprintln(a.errOut, invalidOption("position-amount", c.amount))
		return exitFailure
	}

	resp, err := a.gw.IncreasePosition(ctx, side, c.symbol, amount)
	if err != nil {
		return a.fail("increase_position", err)
	}
	if resp.HTTPStatus != http.StatusOK {
		return a.failStatus("increase_position", resp.HTTPStatus)
	}
	if !resp.OK() {
		fmt.Fprintln(a.errOut, "Oops ! Could not submit position increase")
		return exitRejected
	}
	fmt.Fprintln(a.out, "Successfully submitted position increase")
	return exitOK
}

type retrievePositionsCommand struct{}

func (retrievePositionsCommand) public() bool    { return false }
func (retrievePositionsCommand) validate() error { return nil }

func (retrievePositionsCommand) run(ctx context.Context, a *app) int {
	result, err := a.gw.RetrievePositions(ctx)
	if err != nil {
		return a.fail("retrieve_positions", err)
	}
	positions, ok := result.Get()
	if !ok {
		fmt.Fprintln(a.errOut, genericFailure)
		return exitFailure
	}
	if positions.Empty() {
		fmt.Fprintln(a.out, "You don't have any open positions")
		return exitOK
	}
	for _, p := range positions.Positions {
		fmt.Fprintf(a.out, "%d %s %s %s %s @ %s P/L %s (%s%%) liq %s lev %s %s\n",
			p.ID, p.Symbol, p.Status, p.Side, p.Amount.Text('f'), p.BasePrice.Text('f'),
			p.ProfitLoss.Text('f'), p.ProfitLossPercent.Text('f'),
			p.LiquidationPrice.Text('f'), p.Leverage.Text('f'), p.CreatedAt)
	}
	return exitOK
}
