package chat

import (
	"time"

	"github.com/vovakirdan/linechat/internal/core"
)

// rateLimiter counts chat lines in fixed windows. It belongs to one
// connection and is only touched by that connection's read loop.
type rateLimiter struct {
	limit   int
	window  time.Duration
	start   time.Time
	counter int
	now     func() time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	if limit <= 0 {
		return nil
	}
	return &rateLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (r *rateLimiter) allow() bool {
	if r == nil {
		return true
	}
	now := r.now()
	if now.Sub(r.start) >= r.window {
		r.start = now
		r.counter = 0
	}
	r.counter++
	return r.counter <= r.limit
}

// allow reports whether another chat line may be relayed, replying with
// rate_limited when it may not.
func (c *connection) allow(action string) bool {
	if c.limiter.allow() {
		return true
	}
	c.h.metrics.RateLimited.Add(1)
	c.log.Debug().Str("action", action).Msg("rate limited")
	c.replyError(action, core.ErrRateLimited)
	return false
}
