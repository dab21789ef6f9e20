package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/gomarketplace/internal/cart"
	"github.com/go-chi/chi/v5/middleware"
)

// CartProvider puts store into every request context so handlers can reach
// it with cart.FromContext.
func CartProvider(store *cart.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(cart.NewContext(r.Context(), store)))
		})
	}
}

// RequestLogger logs one line per request with the chi request id.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
