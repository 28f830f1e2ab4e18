// Package bitfinex implements an authenticated gateway for the Bitfinex v2 REST API.
// It covers order submission, amendment and cancellation, public tickers, open orders
// and margin positions.
//
// Authenticated calls are signed with HMAC-SHA384 over "/api" + path + nonce + body.
// Replies are positional JSON arrays and are decoded by index.
//
// Bitfinex API Documentation: https://docs.bitfinex.com/docs/rest-auth
package bitfinex
