package auth

import (
	"strconv"
	"sync/atomic"
	"time"
)

// NonceSource yields the bfx-nonce value for each authenticated call.
type NonceSource interface {
	Next() string
}

// MillisNonce issues epoch-millisecond nonces. Successive values are strictly
// increasing even when several calls land in the same millisecond or the wall
// clock steps backwards.
type MillisNonce struct {
	last atomic.Int64
	now  func() time.Time
}

func NewMillisNonce() *MillisNonce {
	return &MillisNonce{now: time.Now}
}

// NewMillisNonceWithClock uses now instead of time.Now.
func NewMillisNonceWithClock(now func() time.Time) *MillisNonce {
	return &MillisNonce{now: now}
}

// Next returns max(now_ms, last+1) as a decimal string.
func (n *MillisNonce) Next() string {
	return strconv.FormatInt(n.NextInt(), 10)
}

// NextInt is Next without the string conversion.
func (n *MillisNonce) NextInt() int64 {
	for {
		last := n.last.Load()
		next := n.now().UnixMilli()
		if next <= last {
			next = last + 1
		}
		if n.last.CompareAndSwap(last, next) {
			return next
		}
	}
}
