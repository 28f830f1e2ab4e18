package auth

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"

	"bfxtrade/pkg/core"
)

// APIPrefix is prepended to the request path when building the signed payload.
const APIPrefix = "/api"

// Signer produces the bfx-signature header value for an authenticated call.
type Signer = core.Signer

var _ Signer = (*HMACSHA384)(nil)

// HMACSHA384 signs payloads with HMAC-SHA384 keyed by the API secret.
// It is immutable and safe for concurrent use.
type HMACSHA384 struct {
	secret []byte
}

func NewHMACSHA384(secret string) *HMACSHA384 {
	return &HMACSHA384{secret: []byte(secret)}
}

// CanonicalPayload returns "/api" + path + nonce + body. The body must be the
// exact bytes that will be transmitted, "" for bodyless calls.
func CanonicalPayload(path, nonce, body string) string {
	return APIPrefix + path + nonce + body
}

// Sign returns the lowercase hex HMAC-SHA384 digest of the canonical payload.
func (s *HMACSHA384) Sign(path, nonce, body string) (string, error) {
	if len(s.secret) == 0 {
		return "", core.NewExchangeError(core.ExchangeName, core.ErrorTypeSigning, 0, "secret key is empty").
			WithCode(core.ErrCodeEmptySecret)
	}

	mac := hmac.New(sha512.New384, s.secret)
	if _, err := mac.Write([]byte(CanonicalPayload(path, nonce, body))); err != nil {
		return "", core.NewExchangeError(core.ExchangeName, core.ErrorTypeSigning, 0, err.Error()).
			WithCode(core.ErrCodeDigest).
			WithCause(err)
	}

	sum := mac.Sum(nil)
	if len(sum) != sha512.Size384 {
		return "", core.NewExchangeError(core.ExchangeName, core.ErrorTypeSigning, 0,
			fmt.Sprintf("unexpected digest length %d", len(sum))).
			WithCode(core.ErrCodeDigest)
	}
	return hex.EncodeToString(sum), nil
}
