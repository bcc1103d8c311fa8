// Package breaker wraps an http.RoundTripper in a circuit breaker.
package breaker

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Ad1th/Poster-Website/pkg/config"
	"github.com/sony/gobreaker/v2"
)

// Transport fails fast while the remote is unhealthy. It never retries: a request
// rejected by an open breaker surfaces as an ordinary transport error.
type Transport struct {
	next http.RoundTripper
	cb   *gobreaker.CircuitBreaker[*http.Response]
}

// NewTransport wraps next. Responses with status >= 500 count as failures; 4xx
// responses are the caller's fault and keep the breaker closed.
func NewTransport(name string, cfg config.CircuitBreakerConfig, next http.RoundTripper, logger *slog.Logger) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			total := counts.TotalSuccesses + counts.TotalFailures
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures ||
				(total > cfg.ConsecutiveFailures &&
					float64(counts.TotalFailures)/float64(total)*100 > float64(cfg.ErrorRatePercent))
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &Transport{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[*http.Response](st),
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	var served *http.Response
	_, err := t.cb.Execute(func() (*http.Response, error) {
		resp, err := t.next.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		served = resp
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errServerStatus(resp.StatusCode)
		}
		return resp, nil
	})
	if served != nil {
		// a 5xx still reaches the caller so it can read the body; the breaker
		// has already counted it as a failure
		return served, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	return nil, fmt.Errorf("%s %s: no response", req.Method, req.URL.Redacted())
}

// State exposes the breaker state for health reporting.
func (t *Transport) State() gobreaker.State {
	return t.cb.State()
}

type errServerStatus int

func (e errServerStatus) Error() string {
	return fmt.Sprintf("server responded with status %d", int(e))
}
