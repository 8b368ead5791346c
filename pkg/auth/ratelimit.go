package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter checks whether a request should be allowed based on
// the identity's service tier.
type RateLimiter interface {
	Allow(ctx context.Context, identity *Identity) error
}

// InProcessLimiter is a fixed-window rate limiter that tracks request
// counts per subject and tier in memory. Tiers map tier names to
// requests-per-minute; a tier with RPM <= 0 is unlimited.
type InProcessLimiter struct {
	tiers      map[string]int
	defaultRPM int

	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

type window struct {
	count   int
	startAt time.Time
}

// NewInProcessLimiter creates a rate limiter with per-tier RPM settings.
// defaultRPM applies to tiers not present in the map.
func NewInProcessLimiter(tiers map[string]int, defaultRPM int) *InProcessLimiter {
	return &InProcessLimiter{
		tiers:      tiers,
		defaultRPM: defaultRPM,
		windows:    make(map[string]*window),
		now:        time.Now,
	}
}

// Allow checks if the request is within the rate limit for the identity's
// tier. Returns ErrTooManyRequests when the window is exhausted.
func (l *InProcessLimiter) Allow(_ context.Context, identity *Identity) error {
	tier := identity.ServiceTier
	if tier == "" {
		tier = "default"
	}

	rpm := l.defaultRPM
	if t, ok := l.tiers[tier]; ok {
		rpm = t
	}
	if rpm <= 0 {
		return nil
	}

	key := identity.Subject + ":" + tier

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.startAt) >= time.Minute {
		l.windows[key] = &window{count: 1, startAt: now}
		return nil
	}

	w.count++
	if w.count > rpm {
		return ErrTooManyRequests
	}
	return nil
}
