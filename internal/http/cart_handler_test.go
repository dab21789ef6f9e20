package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/gomarketplace/internal/cart"
	"github.com/fjod/gomarketplace/internal/domain"
	"github.com/fjod/gomarketplace/internal/kv"
	"github.com/fjod/gomarketplace/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) (http.Handler, *cart.Store, *kv.MemoryStore) {
	t.Helper()
	backend := kv.NewMemoryStore()
	store := cart.New(backend, cart.WithLogger(logger.Discard()))
	t.Cleanup(func() { store.Close(context.Background()) })

	return NewRouter(store, 5*time.Second, logger.Discard()), store, backend
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	recorder := httptest.NewRecorder()
	h.ServeHTTP(recorder, httptest.NewRequest(method, path, &buf))
	return recorder
}

func decodeProducts(t *testing.T, recorder *httptest.ResponseRecorder) ProductsResponse {
	t.Helper()
	var resp ProductsResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	return resp
}

func TestGetCart_Empty(t *testing.T) {
	router, _, _ := setupRouter(t)

	recorder := do(t, router, http.MethodGet, "/api/v1/cart", nil)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"products":[],"count":0}`, recorder.Body.String())
}

func TestAddToCart_Created(t *testing.T) {
	router, store, _ := setupRouter(t)

	recorder := do(t, router, http.MethodPost, "/api/v1/cart/items",
		map[string]any{"id": "1", "title": "Shirt", "image_url": "u", "price": 10})

	require.Equal(t, http.StatusCreated, recorder.Code)
	resp := decodeProducts(t, recorder)
	assert.Equal(t, domain.Collection{
		{ID: "1", Title: "Shirt", ImageURL: "u", Price: 10, Quantity: 1},
	}, resp.Products)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, resp.Products, store.Products())
}

func TestAddToCart_SameTitleMerges(t *testing.T) {
	router, _, _ := setupRouter(t)

	do(t, router, http.MethodPost, "/api/v1/cart/items",
		map[string]any{"id": "1", "title": "Shirt", "image_url": "u", "price": 10})
	recorder := do(t, router, http.MethodPost, "/api/v1/cart/items",
		map[string]any{"id": "2", "title": "Shirt", "image_url": "u2", "price": 15})

	resp := decodeProducts(t, recorder)
	require.Len(t, resp.Products, 1)
	assert.Equal(t, "1", resp.Products[0].ID)
	assert.Equal(t, 2, resp.Products[0].Quantity)
}

func TestAddToCart_InvalidJSON(t *testing.T) {
	router, _, _ := setupRouter(t)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/cart/items",
		bytes.NewBufferString(`{"id":`)))

	require.Equal(t, http.StatusBadRequest, recorder.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.Equal(t, "invalid_request", resp.Code)
}

func TestAddToCart_ValidationError(t *testing.T) {
	router, store, _ := setupRouter(t)

	recorder := do(t, router, http.MethodPost, "/api/v1/cart/items",
		map[string]any{"id": "1", "title": "Shirt", "price": -3})

	require.Equal(t, http.StatusBadRequest, recorder.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.Equal(t, "invalid_product", resp.Code)
	assert.Contains(t, resp.Details, "price")
	assert.Empty(t, store.Products())
}

func TestIncrementAndDecrement(t *testing.T) {
	router, _, _ := setupRouter(t)
	do(t, router, http.MethodPost, "/api/v1/cart/items",
		map[string]any{"id": "1", "title": "Shirt", "price": 10})

	recorder := do(t, router, http.MethodPost, "/api/v1/cart/items/1/increment", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 2, decodeProducts(t, recorder).Products[0].Quantity)

	do(t, router, http.MethodPost, "/api/v1/cart/items/1/decrement", nil)
	recorder = do(t, router, http.MethodPost, "/api/v1/cart/items/1/decrement", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"products":[],"count":0}`, recorder.Body.String())
}

func TestIncrement_UnknownIDIsNoop(t *testing.T) {
	router, _, _ := setupRouter(t)

	recorder := do(t, router, http.MethodPost, "/api/v1/cart/items/404/increment", nil)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 0, decodeProducts(t, recorder).Count)
}

func TestMutationsArePersisted(t *testing.T) {
	router, store, backend := setupRouter(t)

	do(t, router, http.MethodPost, "/api/v1/cart/items",
		map[string]any{"id": "1", "title": "Shirt", "price": 10})
	do(t, router, http.MethodPost, "/api/v1/cart/items/1/increment", nil)
	require.NoError(t, store.Flush(context.Background()))

	data, err := backend.Get(context.Background(), cart.DefaultKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"1","title":"Shirt","image_url":"","price":10,"quantity":2}]`, string(data))
}

func TestHandler_WithoutProvider(t *testing.T) {
	handler := NewCartHandler(logger.Discard())

	recorder := httptest.NewRecorder()
	handler.GetCart(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, recorder.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.Equal(t, "no_provider", resp.Code)
	assert.Equal(t, cart.ErrNoProvider.Error(), resp.Error)
}

func TestHealth(t *testing.T) {
	router, _, _ := setupRouter(t)

	recorder := do(t, router, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"status":"ok"}`, recorder.Body.String())
}
