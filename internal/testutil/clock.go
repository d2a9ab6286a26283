package testutil

import (
	"sync"
	"time"
)

// FixedClock 在调用 Advance 之前始终返回同一时刻。
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock 以 t 作为起始时间。
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{now: t}
}

// Now 以 clock.Now 的形式传入时满足 func() time.Time。
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance 将时钟向前推进 d。
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
