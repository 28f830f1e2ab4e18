package core

import (
	"context"
	"slices"
)

// Signer produces the signature header value for an authenticated call from
// the request path, nonce and exact body bytes.
type Signer interface {
	Sign(path, nonce, body string) (string, error)
}

// Protocol defines the exchange-specific half of a gateway: how requests are
// built and signed, and how raw replies become domain results.
type Protocol interface {
	// Name returns the exchange identifier, e.g. "bitfinex".
	Name() string

	// Version returns the API version being used.
	Version() string

	// SupportedOperations returns the list of operations this protocol supports.
	SupportedOperations() []Operation

	// BuildRequest constructs the request for op. Invalid params are a
	// BAD_REQUEST error.
	BuildRequest(ctx context.Context, op Operation, params Params) (*Request, error)

	// ParseResponse decodes body into the result type of op. A non-200 status
	// yields a result that carries only the status, never an error.
	ParseResponse(op Operation, status int, body []byte) (any, error)

	// SignRequest adds the nonce, key and signature headers to req.
	SignRequest(req *Request, creds Credentials, nonce string, signer Signer) error
}

// Supports reports whether p lists op among its supported operations.
func Supports(p Protocol, op Operation) bool {
	return slices.Contains(p.SupportedOperations(), op)
}
