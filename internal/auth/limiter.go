package auth

import (
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// LoginLimiter throttles login attempts per client. Idle clients are
// forgotten after a while.
type LoginLimiter struct {
	clients *cache.Cache
	limit   rate.Limit
	burst   int
}

// NewLoginLimiter allows perMinute attempts per minute and client. A
// non-positive value disables limiting.
func NewLoginLimiter(perMinute int) *LoginLimiter {
	if perMinute <= 0 {
		return &LoginLimiter{limit: rate.Inf}
	}
	return &LoginLimiter{
		clients: cache.New(10*time.Minute, 20*time.Minute),
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
	}
}

// Allow consumes one attempt of client.
func (l *LoginLimiter) Allow(client string) bool {
	if l.clients == nil {
		return true
	}
	fresh := rate.NewLimiter(l.limit, l.burst)
	if err := l.clients.Add(client, fresh, cache.DefaultExpiration); err == nil {
		return fresh.Allow()
	}
	if v, ok := l.clients.Get(client); ok {
		return v.(*rate.Limiter).Allow()
	}
	return fresh.Allow()
}
