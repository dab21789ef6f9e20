package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/gomarketplace/internal/cart"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewRouter builds the cart API. Every route under /api/v1 sees store
// through the request context.
func NewRouter(store *cart.Store, requestTimeout time.Duration, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	cartHandler := NewCartHandler(logger)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(CartProvider(store))
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Post("/items", cartHandler.AddToCart)
			r.Post("/items/{id}/increment", cartHandler.Increment)
			r.Post("/items/{id}/decrement", cartHandler.Decrement)
		})
	})

	return otelhttp.NewHandler(r, "cart-api")
}
