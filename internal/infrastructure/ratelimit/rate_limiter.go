package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	ActionSendMessage = "send_message"
	ActionRefresh     = "refresh"
	ActionBridge      = "bridge"
)

// Limit describes a bucket: Burst tokens, refilled at PerMinute tokens a
// minute.
type Limit struct {
	PerMinute int
	Burst     int
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per "key:action" pair.
type RateLimiter struct {
	buckets map[string]*bucket
	limits  map[string]Limit
	mutex   sync.Mutex
	now     func() time.Time
}

func NewRateLimiter(limits map[string]Limit) *RateLimiter {
	if limits == nil {
		limits = map[string]Limit{}
	}
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		limits:  limits,
		now:     time.Now,
	}
}

// DefaultLimits mirrors the configured per minute rates.
func DefaultLimits(sendPerMinute, refreshPerMinute int) map[string]Limit {
	return map[string]Limit{
		ActionSendMessage: {PerMinute: sendPerMinute, Burst: 10},
		ActionRefresh:     {PerMinute: refreshPerMinute, Burst: 5},
		ActionBridge:      {PerMinute: 600, Burst: 50},
	}
}

func (rl *RateLimiter) limitFor(action string) Limit {
	if l, ok := rl.limits[action]; ok && l.PerMinute > 0 {
		if l.Burst <= 0 {
			l.Burst = 1
		}
		return l
	}
	return Limit{PerMinute: 20, Burst: 20}
}

// Allow consumes a token for key and action. When the bucket is empty it
// returns false and the time until the next token.
func (rl *RateLimiter) Allow(key, action string) (bool, time.Duration) {
	id := key + ":" + action
	now := rl.now()

	rl.mutex.Lock()
	b, ok := rl.buckets[id]
	if !ok {
		l := rl.limitFor(action)
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(float64(l.PerMinute)/60), l.Burst)}
		rl.buckets[id] = b
	}
	b.lastSeen = now
	rl.mutex.Unlock()

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Minute
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Cleanup removes buckets idle for longer than maxIdle.
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	for id, b := range rl.buckets {
		if now.Sub(b.lastSeen) > maxIdle {
			delete(rl.buckets, id)
		}
	}
}

// StartCleanupRoutine runs Cleanup every interval until done is closed.
func (rl *RateLimiter) StartCleanupRoutine(interval time.Duration, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rl.Cleanup(time.Hour)
			case <-done:
				return
			}
		}
	}()
}

func (rl *RateLimiter) Len() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	return len(rl.buckets)
}
