package circuitbreaker

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

type Settings struct {
	Name string
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before letting a probe through.
	OpenTimeout time.Duration
	// IsSuccessful reports whether err should count as a success. Nil errors
	// always count as success.
	IsSuccessful func(err error) bool
}

// New builds a breaker that trips after MaxFailures consecutive failures and
// logs every state change.
func New[T any](s Settings, logger *slog.Logger) *gobreaker.CircuitBreaker[T] {
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	if s.OpenTimeout == 0 {
		s.OpenTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return s.IsSuccessful != nil && s.IsSuccessful(err)
		},
	})
}
