// Package ratelimit wires per-client request budgets onto httprate.
package ratelimit

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// Headers names the response headers after the IETF RateLimit draft.
var Headers = httprate.ResponseHeaders{
	Limit:      "RateLimit-Limit",
	Remaining:  "RateLimit-Remaining",
	Reset:      "RateLimit-Reset",
	RetryAfter: "Retry-After",
}

// Tier is one request budget per client address.
type Tier struct {
	Name     string
	Requests int
	Window   time.Duration
	// Counter holds the counts; nil keeps them in process memory.
	Counter httprate.LimitCounter
}

// Middleware limits requests keyed by client IP. Extra options, such as the
// limit and error handlers, are applied last.
func (t Tier) Middleware(opts ...httprate.Option) func(http.Handler) http.Handler {
	options := []httprate.Option{
		httprate.WithKeyByIP(),
		httprate.WithResponseHeaders(Headers),
	}
	if t.Counter != nil {
		options = append(options, httprate.WithLimitCounter(t.Counter))
	}
	options = append(options, opts...)
	return httprate.Limit(t.Requests, t.Window, options...)
}
