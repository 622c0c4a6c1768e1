package crawler

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter enforces a minimum interval between requests to the same
// host. Different hosts do not wait for each other.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	delay    time.Duration
	delayFor func(host string) time.Duration
}

// NewHostLimiter creates a limiter with the given default interval.
// delayFor, when not nil, may override it per host by returning a
// positive duration.
func NewHostLimiter(delay time.Duration, delayFor func(host string) time.Duration) *HostLimiter {
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		delay:    delay,
		delayFor: delayFor,
	}
}

// Wait blocks until a request to host may be sent. The first request to a
// host never waits.
func (h *HostLimiter) Wait(ctx context.Context, host string) error {
	return h.limiter(host).Wait(ctx)
}

// Delay returns the interval applied to host.
func (h *HostLimiter) Delay(host string) time.Duration {
	if h.delayFor != nil {
		if d := h.delayFor(strings.ToLower(host)); d > 0 {
			return d
		}
	}
	return h.delay
}

func (h *HostLimiter) limiter(host string) *rate.Limiter {
	host = strings.ToLower(host)
	h.mu.Lock()
	defer h.mu.Unlock()
	if l, ok := h.limiters[host]; ok {
		return l
	}
	limit := rate.Inf
	if d := h.Delay(host); d > 0 {
		limit = rate.Every(d)
	}
	l := rate.NewLimiter(limit, 1)
	h.limiters[host] = l
	return l
}
