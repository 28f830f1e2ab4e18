// Command bfx places and manages orders and margin positions on Bitfinex.
//
// Credentials are read from a .env file (see internal/config):
//
//	BASE_ENDPOINT=https://api.bitfinex.com
//	API_KEY=...
//	SECRET_KEY=...
//
// Examples:
//
//	bfx --ticker tBTCUSD
//	bfx --order --side sell --symbol tBTCUSD --amount 0.5 --type exchange_limit --price 30000
//	bfx --order-book tBTCUSD
//	bfx --increase-position --position-side long --position-symbol tBTCF0:USTF0 --position-amount 0.01
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/rs/zerolog"

	"bfxtrade/internal/config"
	"bfxtrade/pkg/core"
	"bfxtrade/pkg/exchange"
	"bfxtrade/pkg/exchange/bitfinex"
)

const (
	exitOK       = 0
	exitFailure  = 1
	exitRejected = 2
)

const genericFailure = "An error occurred, please try again later"

// dependencies are the seams replaced in tests.
type dependencies struct {
	loadConfig func(path string) (*core.Config, error)
	newGateway func(cfg *core.Config, log zerolog.Logger) (exchange.Exchange, error)
}

func defaultDependencies() dependencies {
	return dependencies{
		loadConfig: config.Load,
		newGateway: func(cfg *core.Config, log zerolog.Logger) (exchange.Exchange, error) {
			return bitfinex.New(cfg, bitfinex.WithLogger(log))
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr, defaultDependencies())
	stop()
	os.Exit(code)
}

type flags struct {
	envFile string

	order  bool
	side   string
	symbol string
	amount string
	typ    string
	price  string

	ticker      string
	cancelOrder string
	orderBook   string

	increasePosition bool
	positionSide     string
	positionSymbol   string
	positionAmount   string

	retrievePositions bool
}

func newFlagSet(f *flags, errOut io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("bfx", flag.ContinueOnError)
	fs.SetOutput(errOut)

	fs.StringVar(&f.envFile, "env", config.DefaultEnvFile, "Path of the .env file holding the credentials")

	fs.BoolVar(&f.order, "order", false, "Place a new order")
	fs.StringVar(&f.ticker, "ticker", "", "Print information about the given ticker")
	fs.StringVar(&f.cancelOrder, "cancel-order", "", "Cancel order with the given order id")
	fs.StringVar(&f.orderBook, "order-book", "", "Retrieve order book for given symbol")
	fs.BoolVar(&f.increasePosition, "increase-position", false, "Create a new position using the funds in your margin wallet")
	fs.BoolVar(&f.retrievePositions, "retrieve-positions", false, "Get active positions")

	fs.StringVar(&f.side, "side", "", "Order side (buy, sell)")
	fs.StringVar(&f.symbol, "symbol", "", "The trading pair symbol to submit the order on")
	fs.StringVar(&f.amount, "amount", "", "Amount of order")
	fs.StringVar(&f.typ, "type", "", "The type of the order")
	fs.StringVar(&f.price, "price", "", "Price of the order")

	fs.StringVar(&f.positionSide, "position-side", "", "Position side (short, long)")
	fs.StringVar(&f.positionSymbol, "position-symbol", "", "Trading pair on which you wish to open a position")
	fs.StringVar(&f.positionAmount, "position-amount", "", "Amount of the position")

	return fs
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, deps dependencies) int {
	var f flags
	fs := newFlagSet(&f, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitFailure
	}

	var cmd command
	switch {
	case f.retrievePositions:
		cmd = retrievePositionsCommand{}
	case f.increasePosition:
		cmd = increasePositionCommand{side: f.positionSide, symbol: f.positionSymbol, amount: f.positionAmount}
	case f.orderBook != "":
		cmd = orderBookCommand{symbol: f.orderBook}
	case f.cancelOrder != "":
		cmd = cancelOrderCommand{orderID: f.cancelOrder}
	case f.ticker != "":
		cmd = tickerCommand{symbol: f.ticker}
	case f.order:
		cmd = placeOrderCommand{side: f.side, symbol: f.symbol, amount: f.amount, typ: f.typ, price: f.price}
	default:
		fs.SetOutput(stdout)
		fmt.Fprintln(stdout, "Usage of bfx:")
		fs.PrintDefaults()
		return exitOK
	}

	if err := cmd.validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}

	cfg, err := deps.loadConfig(f.envFile)
	if err != nil {
		if !cmd.public() {
			fmt.Fprintln(stderr, userMessage(err))
			return exitFailure
		}
		cfg = core.DefaultConfig()
	}

	log := newLogger(stderr, cfg.LogLevel)

	gw, err := deps.newGateway(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to create gateway")
		fmt.Fprintln(stderr, userMessage(err))
		return exitFailure
	}
	defer gw.Close()

	a := &app{
		gw:     gw,
		prompt: newPrompter(stdin, stderr),
		out:    stdout,
		errOut: stderr,
		log:    log,
	}
	return cmd.run(ctx, a)
}

func newLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// userMessage strips the error classification for console output.
func userMessage(err error) string {
	var exErr *core.ExchangeError
	if errors.As(err, &exErr) {
		return exErr.Message
	}
	return err.Error()
}
