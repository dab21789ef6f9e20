package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fjod/gomarketplace/internal/cart"
	"github.com/fjod/gomarketplace/internal/domain"
	"github.com/go-chi/chi/v5"
)

const maxRequestBodySize = 1 << 20 // 1MB

type CartHandler struct {
	logger *slog.Logger
}

func NewCartHandler(logger *slog.Logger) *CartHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CartHandler{logger: logger}
}

type ProductsResponse struct {
	Products domain.Collection `json:"products"`
	Count    int               `json:"count"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	respondProducts(w, http.StatusOK, store.Products())
}

func (h *CartHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	var req domain.ProductInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_product", "invalid product", err.Error())
		return
	}

	store.AddToCart(req)
	respondProducts(w, http.StatusCreated, store.Products())
}

func (h *CartHandler) Increment(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	store.Increment(chi.URLParam(r, "id"))
	respondProducts(w, http.StatusOK, store.Products())
}

func (h *CartHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	store.Decrement(chi.URLParam(r, "id"))
	respondProducts(w, http.StatusOK, store.Products())
}

// store resolves the cart from the request context. A missing provider is a
// wiring bug, reported as a 500.
func (h *CartHandler) store(w http.ResponseWriter, r *http.Request) (*cart.Store, bool) {
	store, err := cart.FromContext(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "cart handler called without provider", "path", r.URL.Path)
		code := "internal_error"
		if errors.Is(err, cart.ErrNoProvider) {
			code = "no_provider"
		}
		respondError(w, http.StatusInternalServerError, code, err.Error(), "")
		return nil, false
	}
	return store, true
}

func respondProducts(w http.ResponseWriter, status int, products domain.Collection) {
	if products == nil {
		products = domain.Collection{}
	}
	respondJSON(w, status, ProductsResponse{
		Products: products,
		Count:    products.Count(),
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message, details string) {
	respondJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}
