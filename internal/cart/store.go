package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/gomarketplace/internal/domain"
	"github.com/fjod/gomarketplace/internal/kv"
	"golang.org/x/sync/singleflight"
)

const DefaultKey = "@GoMarketplace:products"

// Observer receives every new cart snapshot. It runs synchronously inside the
// mutating call and must not call AddToCart, Increment or Decrement.
type Observer func(products domain.Collection)

// Store owns the in-memory cart and writes every new snapshot through to kv.
type Store struct {
	kv           kv.Store
	key          string
	logger       *slog.Logger
	writeTimeout time.Duration

	// mutateMu serializes mutations end to end so observers and the writer
	// see snapshots in invocation order.
	mutateMu sync.Mutex

	mu        sync.RWMutex
	products  domain.Collection
	observers []subscription
	nextSubID int

	sfg    singleflight.Group // shares one read between concurrent Hydrate calls
	writer *writer
}

type subscription struct {
	id int
	fn Observer
}

type Option func(*Store)

func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithWriteTimeout bounds each background persistence write.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Store) { s.writeTimeout = d }
}

func New(store kv.Store, opts ...Option) *Store {
	s := &Store{
		kv:           store,
		key:          DefaultKey,
		logger:       slog.Default(),
		writeTimeout: 5 * time.Second,
		products:     domain.Collection{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "cart", "key", s.key)
	s.writer = newWriter(s.persist)
	return s
}

// Hydrate loads the persisted cart. A missing or malformed value leaves the
// cart empty and is not an error; a failing read is logged and returned, and
// the cart stays empty. Hydrate never writes back.
func (s *Store) Hydrate(ctx context.Context) error {
	_, err, _ := s.sfg.Do(s.key, func() (interface{}, error) {
		data, err := s.kv.Get(ctx, s.key)
		if errors.Is(err, kv.ErrNotFound) {
			s.logger.DebugContext(ctx, "no persisted cart")
			return nil, nil
		}
		if err != nil {
			s.logger.ErrorContext(ctx, "cart hydration read failed", "error", err)
			return nil, fmt.Errorf("hydrate cart: %w", err)
		}

		var products domain.Collection
		if err := json.Unmarshal(data, &products); err != nil {
			s.logger.WarnContext(ctx, "persisted cart is malformed, starting empty", "error", err)
			return nil, nil
		}

		products = domain.Sanitize(products)
		s.replace(func(domain.Collection) domain.Collection { return products }, false)
		s.logger.InfoContext(ctx, "cart hydrated", "items", len(products))
		return nil, nil
	})
	return err
}

// Products returns the current snapshot. Every mutation produces a new slice,
// so callers can compare snapshots to detect change; they must not modify it.
func (s *Store) Products() domain.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.products
}

func (s *Store) AddToCart(p domain.ProductInput) {
	s.mutate(func(c domain.Collection) domain.Collection {
		return domain.Add(c, p)
	})
}

func (s *Store) Increment(id string) {
	s.mutate(func(c domain.Collection) domain.Collection {
		return domain.Increment(c, id)
	})
}

func (s *Store) Decrement(id string) {
	s.mutate(func(c domain.Collection) domain.Collection {
		return domain.Decrement(c, id)
	})
}

// Subscribe registers fn for future snapshots and returns a function that
// removes it.
func (s *Store) Subscribe(fn Observer) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.observers = append(s.observers, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.observers {
				if sub.id == id {
					s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// Flush waits until every snapshot produced so far has been handed to kv.
func (s *Store) Flush(ctx context.Context) error {
	return s.writer.flush(ctx)
}

// Close writes the last snapshot and stops the background writer. Mutations
// after Close still update memory but are no longer persisted.
func (s *Store) Close(ctx context.Context) error {
	return s.writer.close(ctx)
}

func (s *Store) mutate(fn func(domain.Collection) domain.Collection) {
	s.replace(fn, true)
}

// replace swaps in the collection computed by fn, publishes it and, when
// persist is set, schedules it for writing. Scheduling happens under
// mutateMu so the writer never receives an older snapshot after a newer one.
func (s *Store) replace(fn func(domain.Collection) domain.Collection, persist bool) {
	s.mutateMu.Lock()
	defer s.mutateMu.Unlock()

	s.mu.Lock()
	next := fn(s.products)
	s.products = next
	observers := make([]Observer, len(s.observers))
	for i, sub := range s.observers {
		observers[i] = sub.fn
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(next)
	}

	if persist && !s.writer.schedule(next) {
		s.logger.Warn("cart store closed, snapshot not persisted", "items", len(next))
	}
}

func (s *Store) persist(products domain.Collection) {
	if products == nil {
		products = domain.Collection{}
	}

	data, err := json.Marshal(products)
	if err != nil {
		s.logger.Error("failed to marshal cart", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	if err := s.kv.Set(ctx, s.key, data); err != nil {
		s.logger.Error("cart persistence failed", "error", err, "items", len(products))
		return
	}
	s.logger.Debug("cart persisted", "items", len(products))
}
