package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger is satisfied by kv.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Watcher keeps the gRPC health status of a service in line with the
// reachability of its storage backend.
type Watcher struct {
	server   *health.Server
	service  string
	pinger   Pinger
	interval time.Duration
	logger   *slog.Logger

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func NewWatcher(server *health.Server, service string, pinger Pinger, interval time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		server:   server,
		service:  service,
		pinger:   pinger,
		interval: interval,
		logger:   logger.With("component", "health"),
		stop:     make(chan struct{}),
	}
}

// Start runs one check right away and then one per interval until Stop.
func (w *Watcher) Start() {
	w.Check(context.Background())

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				w.Check(context.Background())
			case <-w.stop:
				return
			}
		}
	}()
}

// Check pings the backend once and updates both the named service and the
// overall ("") status.
func (w *Watcher) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := w.pinger.Ping(ctx); err != nil {
		w.logger.Warn("storage ping failed", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}

	w.server.SetServingStatus(w.service, status)
	w.server.SetServingStatus("", status)
	return status
}

// Stop ends the background checks and marks the service as not serving.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stop)
		w.wg.Wait()
		w.server.Shutdown()
	})
}
