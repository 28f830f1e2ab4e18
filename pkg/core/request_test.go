package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest(t *testing.T) {
	req := NewRequest("POST", "/v2/auth/w/order/submit")

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/v2/auth/w/order/submit", req.Path)
	assert.NotNil(t, req.Headers)
	assert.Empty(t, req.Body)
	assert.Equal(t, "", req.BodyString())
}

func TestRequest_SetJSONBody(t *testing.T) {
	req := NewRequest("POST", "/v2/auth/w/order/cancel")

	body := struct {
		ID int64 `json:"id"`
	}{ID: 12345}
	require.NoError(t, req.SetJSONBody(body))

	assert.Equal(t, `{"id":12345}`, req.BodyString())
}

func TestRequest_SetHeader(t *testing.T) {
	req := NewRequest("GET", "/v2/ticker/tBTCUSD")
	result := req.SetHeader("bfx-nonce", "1690000000000")

	assert.Equal(t, req, result)
	assert.Equal(t, "1690000000000", req.Headers["bfx-nonce"])
}

func TestRequest_SetRequireAuth(t *testing.T) {
	req := NewRequest("POST", "/v2/auth/r/positions")
	result := req.SetRequireAuth(true)

	assert.Equal(t, req, result)
	assert.True(t, req.RequireAuth)
}

func TestRequest_Chained(t *testing.T) {
	req := NewRequest("POST", "/v2/auth/r/positions").
		SetHeader("bfx-apikey", "test-key").
		SetRequireAuth(true)

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "test-key", req.Headers["bfx-apikey"])
	assert.True(t, req.RequireAuth)
}
