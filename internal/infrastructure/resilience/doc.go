/*
Package resilience provides a circuit breaker for calls to external services.

# Overview

The page importer fetches rendered pages from the site origin. When the site
is down every import would otherwise wait for its full retry budget; the
breaker fails those calls immediately until the site answers again.

# Features

- Three-state circuit breaker (Closed, Open, Half-Open)
- Configurable failure thresholds and timeouts
- Automatic state transitions
- Concurrent request handling
- Context cancellation is not counted as a failure
- Pluggable failure classification
- State change callbacks for monitoring

# Usage

	// Create a circuit breaker
	breaker := resilience.New("site", resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name), zap.Stringer("from", from), zap.Stringer("to", to))
		},
	})

	// Run a call through the breaker
	err := breaker.Do(ctx, func(ctx context.Context) error {
		return fetch(ctx, url)
	})

# States

- Closed: Normal operation, requests pass through
- Open: Service unavailable, requests fail immediately
- Half-Open: Testing if service recovered, limited requests allowed

# Pattern

The circuit breaker transitions between states based on success/failure rates:

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
