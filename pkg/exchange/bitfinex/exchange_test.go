package bitfinex

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bfxtrade/pkg/core"
	"bfxtrade/pkg/exchange"
)

var _ exchange.Exchange = (*BitfinexExchange)(nil)

const (
	testAPIKey = "test-key"
	testSecret = "test-secret"
	testNonce  = "1690000000000"
)

type fixedNonce struct{ value string }

func (n fixedNonce) Next() string { return n.value }

type capturedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   string
}

type fakeBitfinex struct {
	mu       sync.Mutex
	requests []capturedRequest
	status   int
	reply    string
}

func (f *fakeBitfinex) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, capturedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Body:   string(body),
	})
	status, reply := f.status, f.reply
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(reply))
}

func (f *fakeBitfinex) last(t *testing.T) capturedRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func newTestExchange(t *testing.T, fake *fakeBitfinex) *BitfinexExchange {
	t.Helper()

	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	config := core.DefaultConfig().
		WithBaseURL(server.URL).
		WithPublicURL(server.URL).
		WithTimeout(2 * time.Second).
		WithCredentials(&core.Credentials{APIKey: testAPIKey, SecretKey: testSecret})

	ex, err := New(config, WithNonceSource(fixedNonce{value: testNonce}), WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ex.Close() })
	return ex
}

func expectedSignature(path, nonce, body string) string {
	mac := hmac.New(sha512.New384, []byte(testSecret))
	mac.Write([]byte("/api" + path + nonce + body))
	return hex.EncodeToString(mac.Sum(nil))
}

func assertSigned(t *testing.T, req capturedRequest) {
	t.Helper()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
	assert.Equal(t, testNonce, req.Header.Get("bfx-nonce"))
	assert.Equal(t, testAPIKey, req.Header.Get("bfx-apikey"))
	assert.Equal(t, expectedSignature(req.Path, testNonce, req.Body), req.Header.Get("bfx-signature"))
}

func dec(t *testing.T, s string) apd.Decimal {
	t.Helper()
	var d apd.Decimal
	_, _, err := d.SetString(s)
	require.NoError(t, err)
	return d
}

func TestNew_ValidConfig(t *testing.T) {
	ex, err := New(core.DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, ex)
	defer ex.Close()

	assert.Equal(t, "bitfinex", ex.Name())
	assert.Equal(t, "2", ex.Version())
}

func TestNew_InvalidConfig(t *testing.T) {
	ex, err := New(&core.Config{})
	require.Error(t, err)
	require.Nil(t, ex)
}

func TestNew_CopiesCredentials(t *testing.T) {
	creds := &core.Credentials{APIKey: "a", SecretKey: "b"}
	config := core.DefaultConfig().WithCredentials(creds)

	ex, err := New(config)
	require.NoError(t, err)
	defer ex.Close()

	creds.APIKey = "changed"
	assert.Equal(t, "a", ex.config.Credentials.APIKey)
}

func TestSubmitOrder_Sell(t *testing.T) {
	fake := &fakeBitfinex{
		reply: writeReply("["+orderRow(12345, "tBTCUSD", 1690000000000, "-0.5", "EXCHANGE LIMIT", "30000")+"]", "SUCCESS"),
	}
	ex := newTestExchange(t, fake)

	resp, err := ex.SubmitOrder(context.Background(), core.Order{
		Side:   core.SideSell,
		Symbol: "tBTCUSD",
		Amount: dec(t, "0.5"),
		Type:   core.TypeExchangeLimit,
		Price:  dec(t, "30000"),
	})
	require.NoError(t, err)

	req := fake.last(t)
	assert.Equal(t, "/v2/auth/w/order/submit", req.Path)
	assert.JSONEq(t, `{"symbol":"tBTCUSD","type":"EXCHANGE LIMIT","amount":"-0.5","price":"30000"}`, req.Body)
	assertSigned(t, req)

	assert.True(t, resp.OK())
	assert.Equal(t, http.StatusOK, resp.HTTPStatus)
	assert.Equal(t, int64(12345), resp.OrderID)
	assert.Equal(t, "tBTCUSD", resp.Symbol)
	assert.Equal(t, core.SideSell, resp.Side)
	assert.Equal(t, "0.5", resp.Amount.String())
	assert.Equal(t, "30000", resp.Price.String())
}

func TestSubmitOrder_BuyKeepsPositiveAmount(t *testing.T) {
	fake := &fakeBitfinex{
		reply: writeReply("["+orderRow(1, "tETHUSD", 0, "2", "EXCHANGE LIMIT", "1800")+"]", "SUCCESS"),
	}
	ex := newTestExchange(t, fake)

	_, err := ex.SubmitOrder(context.Background(), core.Order{
		Side:   core.SideBuy,
		Symbol: "tETHUSD",
		Amount: dec(t, "2"),
		Type:   core.TypeExchangeLimit,
		Price:  dec(t, "1800"),
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{"symbol":"tETHUSD","type":"EXCHANGE LIMIT","amount":"2","price":"1800"}`, fake.last(t).Body)
}

func TestSubmitOrder_BusinessRejection(t *testing.T) {
	fake := &fakeBitfinex{
		reply: `[1690000000000,"on-req",null,null,null,null,"ERROR","Invalid order: not enough exchange balance"]`,
	}
	ex := newTestExchange(t, fake)

	resp, err := ex.SubmitOrder(context.Background(), core.Order{
		Side:   core.SideBuy,
		Symbol: "tBTCUSD",
		Amount: dec(t, "100"),
		Type:   core.TypeExchangeLimit,
		Price:  dec(t, "30000"),
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.HTTPStatus)
	assert.Equal(t, "ERROR", resp.Message)
	assert.True(t, core.IsBusinessRejection(resp.Err()))
}

func TestSubmitOrder_HTTPStatus(t *testing.T) {
	fake := &fakeBitfinex{
		status: http.StatusInternalServerError,
		reply:  `["error",10100,"apikey: invalid"]`,
	}
	ex := newTestExchange(t, fake)

	resp, err := ex.SubmitOrder(context.Background(), core.Order{
		Side:   core.SideBuy,
		Symbol: "tBTCUSD",
		Amount: dec(t, "1"),
		Type:   core.TypeExchangeLimit,
		Price:  dec(t, "1"),
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, resp.HTTPStatus)
	assert.Equal(t, int64(0), resp.OrderID)
	assert.True(t, core.IsHTTPStatusError(resp.Err()))
}

func TestUpdateOrder(t *testing.T) {
	fake := &fakeBitfinex{
		reply: writeReply(orderRow(12345, "tBTCUSD", 1690000000000, "-0.5", "EXCHANGE LIMIT", "30500"), "SUCCESS"),
	}
	ex := newTestExchange(t, fake)

	resp, err := ex.UpdateOrder(context.Background(), "12345", dec(t, "30500"))
	require.NoError(t, err)

	req := fake.last(t)
	assert.Equal(t, "/v2/auth/w/order/update", req.Path)
	assert.JSONEq(t, `{"id":12345,"price":"30500"}`, req.Body)
	assertSigned(t, req)

	assert.True(t, resp.OK())
	assert.Equal(t, "30500", resp.Price.String())
}

func TestUpdateOrder_NonNumericID(t *testing.T) {
	fake := &fakeBitfinex{}
	ex := newTestExchange(t, fake)

	_, err := ex.UpdateOrder(context.Background(), "abc", dec(t, "1"))
	require.Error(t, err)
	assert.True(t, core.IsBadRequestError(err))
	assert.Empty(t, fake.requests)
}

func TestCancelOrder(t *testing.T) {
	fake := &fakeBitfinex{
		reply: writeReply(orderRow(12345, "tBTCUSD", 0, "-0.5", "EXCHANGE LIMIT", "30000"), "SUCCESS"),
	}
	ex := newTestExchange(t, fake)

	resp, err := ex.CancelOrder(context.Background(), "12345")
	require.NoError(t, err)

	req := fake.last(t)
	assert.Equal(t, "/v2/auth/w/order/cancel", req.Path)
	assert.JSONEq(t, `{"id":12345}`, req.Body)
	assertSigned(t, req)

	assert.True(t, resp.OK())
	assert.Equal(t, int64(12345), resp.OrderID)
	assert.Equal(t, "", resp.Symbol)
}

func TestGetTicker(t *testing.T) {
	fake := &fakeBitfinex{
		reply: `[29990.5,12.3,30010,8.1,-150,-0.005,30000.25,1234.5678,30500,29500]`,
	}
	ex := newTestExchange(t, fake)

	ticker, err := ex.GetTicker(context.Background(), "tBTCUSD")
	require.NoError(t, err)

	req := fake.last(t)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/v2/ticker/tBTCUSD", req.Path)
	assert.Empty(t, req.Header.Get("bfx-signature"))
	assert.Empty(t, req.Header.Get("bfx-apikey"))

	assert.True(t, ticker.OK())
	assert.Equal(t, "tBTCUSD", ticker.Symbol)
	assert.Equal(t, "30000.25", ticker.LastPrice.String())
	assert.Equal(t, "29990.5", ticker.Bid.String())
	assert.Equal(t, "1234.5678", ticker.Volume.String())
}

func TestGetTicker_WithoutCredentials(t *testing.T) {
	fake := &fakeBitfinex{reply: `[1,2,3,4,5,6,7,8,9,10]`}
	server := httptest.NewServer(fake)
	defer server.Close()

	ex, err := New(core.DefaultConfig().WithBaseURL(server.URL).WithPublicURL(server.URL))
	require.NoError(t, err)
	defer ex.Close()

	ticker, err := ex.GetTicker(context.Background(), "tBTCUSD")
	require.NoError(t, err)
	assert.Equal(t, "7", ticker.LastPrice.String())
}

func TestGetTicker_NotFound(t *testing.T) {
	fake := &fakeBitfinex{status: http.StatusNotFound, reply: `["error",10020,"symbol: invalid"]`}
	ex := newTestExchange(t, fake)

	ticker, err := ex.GetTicker(context.Background(), "tNOPE")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, ticker.HTTPStatus)
	assert.False(t, ticker.OK())
}

func TestRetrieveOrders(t *testing.T) {
	fake := &fakeBitfinex{
		reply: "[" +
			orderRow(1, "tBTCUSD", 1690000000000, "0.5", "EXCHANGE LIMIT", "29000") + "," +
			orderRow(2, "tBTCUSD", 1690000000000, "-0.25", "EXCHANGE LIMIT", "31000") +
			"]",
	}
	ex := newTestExchange(t, fake)

	result, err := ex.RetrieveOrders(context.Background(), "tBTCUSD")
	require.NoError(t, err)

	req := fake.last(t)
	assert.Equal(t, "/v2/auth/r/orders/tBTCUSD", req.Path)
	assert.Equal(t, "", req.Body)
	assertSigned(t, req)

	book, ok := result.Get()
	require.True(t, ok)
	require.Equal(t, 2, book.Len())
	assert.Equal(t, core.SideBuy, book.Orders[0].Side)
	assert.Equal(t, core.SideSell, book.Orders[1].Side)
}

func TestRetrieveOrders_EmptyVersusAbsent(t *testing.T) {
	fake := &fakeBitfinex{reply: `[]`}
	ex := newTestExchange(t, fake)

	result, err := ex.RetrieveOrders(context.Background(), "tBTCUSD")
	require.NoError(t, err)
	require.True(t, result.IsPresent())
	assert.True(t, result.MustGet().Empty())

	fake.mu.Lock()
	fake.status = http.StatusInternalServerError
	fake.reply = `["error",10001,"oops"]`
	fake.mu.Unlock()

	result, err = ex.RetrieveOrders(context.Background(), "tBTCUSD")
	require.NoError(t, err)
	assert.True(t, result.IsAbsent())
}

func TestIncreasePosition_Short(t *testing.T) {
	fake := &fakeBitfinex{
		reply: writeReply(`["tBTCUSD","ACTIVE",-0.1,30000]`, "SUCCESS"),
	}
	ex := newTestExchange(t, fake)

	resp, err := ex.IncreasePosition(context.Background(), core.PositionShort, "tBTCUSD", dec(t, "0.1"))
	require.NoError(t, err)

	req := fake.last(t)
	assert.Equal(t, "/v2/auth/w/position/increase", req.Path)
	assert.JSONEq(t, `{"symbol":"tBTCUSD","amount":"-0.1"}`, req.Body)
	assertSigned(t, req)

	assert.True(t, resp.OK())
	assert.Equal(t, "tBTCUSD", resp.Symbol)
	assert.Equal(t, core.PositionShort, resp.Side)
	assert.Equal(t, "0.1", resp.Amount.String())
}

func TestIncreasePosition_Long(t *testing.T) {
	fake := &fakeBitfinex{reply: writeReply(`["tETHUSD","ACTIVE",2,1800]`, "SUCCESS")}
	ex := newTestExchange(t, fake)

	_, err := ex.IncreasePosition(context.Background(), core.PositionLong, "tETHUSD", dec(t, "2"))
	require.NoError(t, err)

	assert.JSONEq(t, `{"symbol":"tETHUSD","amount":"2"}`, fake.last(t).Body)
}

func TestRetrievePositions(t *testing.T) {
	fake := &fakeBitfinex{
		reply: `[["tBTCUSD","ACTIVE",-0.5,30000,0,0,12.5,0.08,45000,3.2,null,142355652,1690000000000,null,null,0,null,0,0,null]]`,
	}
	ex := newTestExchange(t, fake)

	result, err := ex.RetrievePositions(context.Background())
	require.NoError(t, err)

	req := fake.last(t)
	assert.Equal(t, "/v2/auth/r/positions", req.Path)
	assert.Equal(t, "", req.Body)
	assertSigned(t, req)

	positions, ok := result.Get()
	require.True(t, ok)
	require.Equal(t, 1, positions.Len())
	assert.Equal(t, core.PositionShort, positions.Positions[0].Side)
	assert.Equal(t, int64(142355652), positions.Positions[0].ID)
}

func TestRetrievePositions_HTTPStatus(t *testing.T) {
	fake := &fakeBitfinex{status: http.StatusBadGateway}
	ex := newTestExchange(t, fake)

	result, err := ex.RetrievePositions(context.Background())
	require.NoError(t, err)
	assert.True(t, result.IsAbsent())
}

func TestMalformedReply(t *testing.T) {
	fake := &fakeBitfinex{reply: `{"unexpected":"object"}`}
	ex := newTestExchange(t, fake)

	_, err := ex.CancelOrder(context.Background(), "1")
	require.Error(t, err)
	assert.True(t, core.IsMalformedResponseError(err))

	_, err = ex.RetrievePositions(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsMalformedResponseError(err))
}

func TestMissingCredentials(t *testing.T) {
	fake := &fakeBitfinex{}
	server := httptest.NewServer(fake)
	defer server.Close()

	ex, err := New(core.DefaultConfig().WithBaseURL(server.URL).WithPublicURL(server.URL))
	require.NoError(t, err)
	defer ex.Close()

	_, err = ex.CancelOrder(context.Background(), "1")
	require.Error(t, err)
	assert.True(t, core.IsConfigError(err))
	assert.Empty(t, fake.requests)
}

func TestPartialCredentials(t *testing.T) {
	tests := []struct {
		name  string
		creds *core.Credentials
	}{
		{"api_key_only", &core.Credentials{APIKey: "key"}},
		{"secret_only", &core.Credentials{SecretKey: "secret"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeBitfinex{}
			server := httptest.NewServer(fake)
			defer server.Close()

			config := core.DefaultConfig().
				WithBaseURL(server.URL).
				WithPublicURL(server.URL).
				WithCredentials(tt.creds)

			ex, err := New(config)
			require.NoError(t, err)
			defer ex.Close()

			_, err = ex.RetrievePositions(context.Background())
			require.Error(t, err)
			assert.True(t, core.IsConfigError(err))
			assert.True(t, core.IsErrorCode(err, core.ErrCodeMissingCredential))

			fake.mu.Lock()
			defer fake.mu.Unlock()
			assert.Empty(t, fake.requests)
		})
	}
}

func TestNonPositiveAmountSendsNothing(t *testing.T) {
	tests := []struct {
		name string
		call func(ex *BitfinexExchange) error
	}{
		{"sell_zero", func(ex *BitfinexExchange) error {
			_, err := ex.SubmitOrder(context.Background(), core.Order{
				Symbol: "tBTCUSD", Side: core.SideSell, Type: core.TypeExchangeLimit,
				Amount: dec(t, "0"), Price: dec(t, "30000"),
			})
			return err
		}},
		{"buy_zero", func(ex *BitfinexExchange) error {
			_, err := ex.SubmitOrder(context.Background(), core.Order{
				Symbol: "tBTCUSD", Side: core.SideBuy, Type: core.TypeExchangeLimit,
				Amount: dec(t, "0.000"), Price: dec(t, "30000"),
			})
			return err
		}},
		{"sell_negative", func(ex *BitfinexExchange) error {
			_, err := ex.SubmitOrder(context.Background(), core.Order{
				Symbol: "tBTCUSD", Side: core.SideSell, Type: core.TypeExchangeLimit,
				Amount: dec(t, "-0.5"), Price: dec(t, "30000"),
			})
			return err
		}},
		{"short_zero", func(ex *BitfinexExchange) error {
			_, err := ex.IncreasePosition(context.Background(), core.PositionShort, "tBTCUSD", dec(t, "0"))
			return err
		}},
		{"long_negative", func(ex *BitfinexExchange) error {
			_, err := ex.IncreasePosition(context.Background(), core.PositionLong, "tBTCUSD", dec(t, "-1"))
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeBitfinex{reply: `[]`}
			ex := newTestExchange(t, fake)

			err := tt.call(ex)
			require.Error(t, err)
			assert.True(t, core.IsBadRequestError(err))
			assert.True(t, core.IsErrorCode(err, core.ErrCodeInvalidAmount))

			fake.mu.Lock()
			defer fake.mu.Unlock()
			assert.Empty(t, fake.requests)
		})
	}
}

func TestSigningFailureSendsNothing(t *testing.T) {
	fake := &fakeBitfinex{}
	server := httptest.NewServer(fake)
	defer server.Close()

	config := core.DefaultConfig().
		WithBaseURL(server.URL).
		WithPublicURL(server.URL).
		WithCredentials(&core.Credentials{APIKey: "key", SecretKey: "secret"})

	ex, err := New(config, WithSigner(failingSigner{err: assert.AnError}))
	require.NoError(t, err)
	defer ex.Close()

	_, err = ex.RetrievePositions(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsSigningError(err))
	assert.Empty(t, fake.requests)
}

func TestTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	config := core.DefaultConfig().
		WithBaseURL(url).
		WithPublicURL(url).
		WithTimeout(time.Second).
		WithCredentials(&core.Credentials{APIKey: "key", SecretKey: "secret"})

	ex, err := New(config)
	require.NoError(t, err)
	defer ex.Close()

	_, err = ex.CancelOrder(context.Background(), "1")
	require.Error(t, err)
	assert.True(t, core.IsTransportError(err))

	_, err = ex.GetTicker(context.Background(), "tBTCUSD")
	require.Error(t, err)
	assert.True(t, core.IsTransportError(err))
}

func TestClosedExchange(t *testing.T) {
	fake := &fakeBitfinex{reply: `[]`}
	ex := newTestExchange(t, fake)
	require.NoError(t, ex.Close())

	_, err := ex.RetrieveOrders(context.Background(), "tBTCUSD")
	require.Error(t, err)
	assert.True(t, core.IsTransportError(err))
	assert.True(t, core.IsErrorCode(err, core.ErrCodeClientClosed))
}

func TestNonceAdvancesPerCall(t *testing.T) {
	fake := &fakeBitfinex{reply: `[]`}
	server := httptest.NewServer(fake)
	defer server.Close()

	config := core.DefaultConfig().
		WithBaseURL(server.URL).
		WithPublicURL(server.URL).
		WithCredentials(&core.Credentials{APIKey: testAPIKey, SecretKey: testSecret})

	ex, err := New(config)
	require.NoError(t, err)
	defer ex.Close()

	for i := 0; i < 3; i++ {
		_, err := ex.RetrieveOrders(context.Background(), "tBTCUSD")
		require.NoError(t, err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.requests, 3)
	seen := map[string]bool{}
	for _, req := range fake.requests {
		nonce := req.Header.Get("bfx-nonce")
		assert.False(t, seen[nonce], "nonce %s reused", nonce)
		seen[nonce] = true
		assert.Equal(t, expectedSignature(req.Path, nonce, req.Body), req.Header.Get("bfx-signature"))
	}
}

func TestUnsupportedOperationSendsNothing(t *testing.T) {
	fake := &fakeBitfinex{reply: `[]`}
	ex := newTestExchange(t, fake)

	_, err := ex.call(context.Background(), core.Operation(99), core.Params{})
	require.Error(t, err)
	assert.True(t, core.IsBadRequestError(err))
	assert.True(t, core.IsErrorCode(err, core.ErrCodeUnsupported))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Empty(t, fake.requests)
}
