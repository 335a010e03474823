// Package server implements the token bucket used to throttle inbound
// frames per connection, protecting the hub and the store from abuse.
package server

import (
	"sync"
	"time"
)

// tokenBucket refills at Burst tokens per RefillInterval and never holds
// more than Burst tokens. Each accepted frame costs one token.
type tokenBucket struct {
	mu     sync.Mutex
	tokens float64
	burst  float64
	perSec float64
	last   time.Time
}

func newTokenBucket(cfg RateLimitConfig) *tokenBucket {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	interval := cfg.RefillInterval
	if interval <= 0 {
		interval = time.Second
	}

	return &tokenBucket{
		tokens: float64(burst),
		burst:  float64(burst),
		perSec: float64(burst) / interval.Seconds(),
		last:   time.Now(),
	}
}

// take consumes a token, refilling the bucket for the time elapsed since
// the last call. It reports whether the caller may proceed.
func (b *tokenBucket) take() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * b.perSec
		if b.tokens > b.burst {
			b.tokens = b.burst
		}
	}
	b.last = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
