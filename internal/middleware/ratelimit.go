package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RoundTripperFunc adapts a function to http.RoundTripper
type RoundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip implements http.RoundTripper
func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// HostRateLimiter manages outbound rate limiting per target host
type HostRateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	maxHosts int
}

// NewHostRateLimiter creates a new host-based rate limiter
// r: requests per second, b: burst size
func NewHostRateLimiter(r rate.Limit, b int) *HostRateLimiter {
	return &HostRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    b,
		maxHosts: 1000,
	}
}

// GetLimiter returns the rate limiter for the given host
func (l *HostRateLimiter) GetLimiter(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.limiters[host]
	if !exists {
		// Simple cleanup: a client talks to a handful of hosts, so a
		// runaway map means something is generating hosts; start over
		if len(l.limiters) >= l.maxHosts {
			l.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[host] = limiter
	}

	return limiter
}

// Wait blocks until a request to host is allowed or the request context ends
func (l *HostRateLimiter) Wait(r *http.Request) error {
	return l.GetLimiter(r.URL.Host).Wait(r.Context())
}

// RateLimit creates a middleware that delays requests to stay under the host's limit.
// A request whose context ends while waiting fails with the context error.
func RateLimit(limiter *HostRateLimiter) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			if err := limiter.Wait(r); err != nil {
				return nil, err
			}
			return next.RoundTrip(r)
		})
	}
}

// Chain wraps base with the given middlewares; the first one runs outermost
func Chain(base http.RoundTripper, mws ...func(http.RoundTripper) http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	for i := len(mws) - 1; i >= 0; i-- {
		base = mws[i](base)
	}
	return base
}

// NewHTTPClient builds the client used for game service calls
func NewHTTPClient(timeout time.Duration, mws ...func(http.RoundTripper) http.RoundTripper) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: Chain(http.DefaultTransport, mws...),
	}
}
