package cart

import (
	"context"
	"errors"
)

var ErrNoProvider = errors.New("cart: no provider in scope")

type ctxKey struct{}

// NewContext returns a copy of ctx that carries store.
func NewContext(ctx context.Context, store *Store) context.Context {
	return context.WithValue(ctx, ctxKey{}, store)
}

// FromContext returns the store carried by ctx, or ErrNoProvider.
func FromContext(ctx context.Context) (*Store, error) {
	store, ok := ctx.Value(ctxKey{}).(*Store)
	if !ok || store == nil {
		return nil, ErrNoProvider
	}
	return store, nil
}

// MustFromContext is FromContext for code paths where a missing store is a
// wiring bug.
func MustFromContext(ctx context.Context) *Store {
	store, err := FromContext(ctx)
	if err != nil {
		panic(err)
	}
	return store
}
