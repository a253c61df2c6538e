package fetch

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenk/backoff"
	"github.com/git-pkgs/mossmeta/internal/core"
	circuit "github.com/rubyist/circuitbreaker"
	"go.uber.org/zap"
)

// CircuitBreakerFetcher wraps a Fetcher with a per-remote circuit breaker,
// so a single unreachable remote can't stall every other remote's fetches
// with one retry loop after another.
type CircuitBreakerFetcher struct {
	fetcher  *Fetcher
	breakers map[string]*circuit.Breaker
	mu       sync.RWMutex
	log      *zap.Logger
}

// CBOption configures a CircuitBreakerFetcher.
type CBOption func(*CircuitBreakerFetcher)

// WithBreakerLogger attaches a logger for circuit state transitions,
// matching internal/metadb/internal/statedb's constructor-injected
// *zap.Logger idiom rather than a package global.
func WithBreakerLogger(log *zap.Logger) CBOption {
	return func(cbf *CircuitBreakerFetcher) {
		cbf.log = log
	}
}

// NewCircuitBreakerFetcher creates a new circuit breaker wrapper for a fetcher.
func NewCircuitBreakerFetcher(f *Fetcher, opts ...CBOption) *CircuitBreakerFetcher {
	cbf := &CircuitBreakerFetcher{
		fetcher:  f,
		breakers: make(map[string]*circuit.Breaker),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cbf)
	}
	return cbf
}

// getBreaker returns or creates a circuit breaker for the given remote.
func (cbf *CircuitBreakerFetcher) getBreaker(remote string) *circuit.Breaker {
	cbf.mu.RLock()
	breaker, exists := cbf.breakers[remote]
	cbf.mu.RUnlock()

	if exists {
		return breaker
	}

	cbf.mu.Lock()
	defer cbf.mu.Unlock()

	// Double-check after acquiring write lock
	if breaker, exists := cbf.breakers[remote]; exists {
		return breaker
	}

	// Create new circuit breaker with exponential backoff
	// Trips after 5 consecutive failures
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	opts := &circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(5),
	}
	breaker = circuit.NewBreakerWithOptions(opts)

	cbf.breakers[remote] = breaker
	return breaker
}

// Fetch wraps the underlying fetcher's Fetch with circuit breaker logic.
func (cbf *CircuitBreakerFetcher) Fetch(ctx context.Context, fetchURL string) (*Artifact, error) {
	remote := extractRemote(fetchURL)
	breaker := cbf.getBreaker(remote)

	// Check if circuit is open
	if !breaker.Ready() {
		cbf.log.Warn("circuit breaker open, refusing fetch", zap.String("remote", remote))
		return nil, core.Wrap("fetch.CircuitBreaker", core.IOError, fmt.Errorf("circuit breaker open for remote %s: %w", remote, ErrUpstreamDown))
	}

	// Attempt fetch
	var artifact *Artifact
	err := breaker.Call(func() error {
		var fetchErr error
		artifact, fetchErr = cbf.fetcher.Fetch(ctx, fetchURL)
		return fetchErr
	}, 0)

	if err != nil {
		if breaker.Tripped() {
			cbf.log.Warn("circuit breaker tripped", zap.String("remote", remote), zap.Error(err))
		}
		return nil, err
	}

	return artifact, nil
}

// Head wraps the underlying fetcher's Head with circuit breaker logic.
func (cbf *CircuitBreakerFetcher) Head(ctx context.Context, headURL string) (size int64, err error) {
	remote := extractRemote(headURL)
	breaker := cbf.getBreaker(remote)

	if !breaker.Ready() {
		cbf.log.Warn("circuit breaker open, refusing head request", zap.String("remote", remote))
		return 0, core.Wrap("fetch.CircuitBreaker", core.IOError, fmt.Errorf("circuit breaker open for remote %s: %w", remote, ErrUpstreamDown))
	}

	err = breaker.Call(func() error {
		var headErr error
		size, headErr = cbf.fetcher.Head(ctx, headURL)
		return headErr
	}, 0)

	return size, err
}

// extractRemote derives the circuit-breaker grouping key (the remote's
// host) from a fetch URL.
func extractRemote(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		// Fallback to simple truncation
		if len(rawURL) > 50 {
			return rawURL[:50]
		}
		return rawURL
	}
	return parsed.Host
}

// GetBreakerState returns the current state of each remote's circuit
// breaker, for health checks.
func (cbf *CircuitBreakerFetcher) GetBreakerState() map[string]string {
	cbf.mu.RLock()
	defer cbf.mu.RUnlock()

	states := make(map[string]string)
	for remote, breaker := range cbf.breakers {
		if breaker.Tripped() {
			states[remote] = "open"
		} else {
			states[remote] = "closed"
		}
	}
	return states
}
