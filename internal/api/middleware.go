package api

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
	"vibecode.dev/vibe-code/internal/ratelimit"
)

// RequestLogger logs each request using zap.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", clientIP(r)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// Recoverer turns a panic into a 500 envelope and logs the stack. When the
// handler already started its response only the log entry is written.
func Recoverer(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error("panic while handling request",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.Stack("stack"),
				)
				if ww.Status() != 0 {
					return
				}
				respondError(ww, http.StatusInternalServerError, "Internal server error", "")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// SecureHeaders sets the browser hardening headers for every response.
// Strict-Transport-Security is left out in development.
func SecureHeaders(development bool) func(http.Handler) http.Handler {
	return secure.New(secure.Options{
		ContentSecurityPolicy:     "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self'; img-src 'self' data: https:",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "same-origin",
		ReferrerPolicy:            "no-referrer",
		STSSeconds:                15552000,
		STSIncludeSubdomains:      true,
		ForceSTSHeader:            true,
		ContentTypeNosniff:        true,
		XDNSPrefetchControl:       "off",
		CustomFrameOptionsValue:   "SAMEORIGIN",
		CustomBrowserXssValue:     "0",
		IsDevelopment:             development,
	}).Handler
}

// RateLimit enforces tier per client address and answers rejected requests
// with the 429 envelope.
func RateLimit(tier ratelimit.Tier, log *zap.Logger) func(http.Handler) http.Handler {
	return tier.Middleware(
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, http.StatusTooManyRequests, "Too many requests from this IP, please try again later.", "")
		}),
		httprate.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			log.Error("rate limiter failed", zap.String("tier", tier.Name), zap.String("ip", clientIP(r)), zap.Error(err))
			respondError(w, http.StatusInternalServerError, "Internal server error", "")
		}),
	)
}

// clientIP returns the host part of RemoteAddr, which RealIP has already
// rewritten from the proxy headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
