// Package ratelimit implements per-client admission control with a
// discretised token bucket.
package ratelimit

import (
	"sync"
	"time"
)

// Config holds the bucket capacity and its refill period. Limit tokens are
// added back for every whole Window elapsed, capped at Limit.
type Config struct {
	Limit  int
	Window time.Duration
}

// DefaultConfig mirrors the public defaults: 120 requests per minute.
func DefaultConfig() Config {
	return Config{
		Limit:  120,
		Window: time.Minute,
	}
}

type bucket struct {
	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
	lastSeen   time.Time
	evicted    bool
}

// State owns every client bucket. It is constructed once per process and
// handed to whatever needs admission checks. Buckets are locked individually,
// so clients never contend with each other.
type State struct {
	cfg     Config
	buckets sync.Map // string -> *bucket
}

// NewState returns an empty limiter state. Non-positive settings fall back to
// DefaultConfig.
func NewState(cfg Config) *State {
	def := DefaultConfig()
	if cfg.Limit <= 0 {
		cfg.Limit = def.Limit
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	return &State{cfg: cfg}
}

// Config returns the effective limiter configuration.
func (s *State) Config() Config {
	return s.cfg
}

// Decision is the outcome of a single admission check.
type Decision struct {
	Allowed   bool
	Remaining int
}

// Admit consumes one token for key if any is left.
func (s *State) Admit(key string, now time.Time) bool {
	return s.Check(key, now).Allowed
}

// Check is Admit plus the number of tokens left after the call.
func (s *State) Check(key string, now time.Time) Decision {
	for {
		b := s.load(key, now)
		b.mu.Lock()
		if b.evicted {
			// Lost a race with Sweep; the key now maps to a fresh bucket.
			b.mu.Unlock()
			continue
		}
		d := s.take(b, now)
		b.mu.Unlock()
		return d
	}
}

// take must be called with b.mu held.
func (s *State) take(b *bucket, now time.Time) Decision {
	if elapsed := now.Sub(b.lastRefill); elapsed >= s.cfg.Window {
		windows := int64(elapsed / s.cfg.Window)
		b.tokens = refill(b.tokens, windows, s.cfg.Limit)
		b.lastRefill = now
	}
	b.lastSeen = now

	if b.tokens <= 0 {
		return Decision{Allowed: false, Remaining: 0}
	}
	b.tokens--
	return Decision{Allowed: true, Remaining: b.tokens}
}

func (s *State) load(key string, now time.Time) *bucket {
	if v, ok := s.buckets.Load(key); ok {
		return v.(*bucket)
	}
	v, _ := s.buckets.LoadOrStore(key, &bucket{
		tokens:     s.cfg.Limit,
		lastRefill: now,
		lastSeen:   now,
	})
	return v.(*bucket)
}

func refill(tokens int, windows int64, limit int) int {
	if windows <= 0 {
		return tokens
	}
	// A single window already tops the bucket up; clamping keeps
	// windows*limit from overflowing after long idle periods.
	if windows > 1 {
		windows = 1
	}
	return min(limit, tokens+int(windows)*limit)
}

// Sweep drops buckets not touched since idleBefore and reports how many were
// removed. A swept client starts again with a full bucket, which is what a
// refill would have given it anyway once a window has passed.
func (s *State) Sweep(idleBefore time.Time) int {
	removed := 0
	s.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		b.mu.Lock()
		idle := b.lastSeen.Before(idleBefore)
		if idle {
			b.evicted = true
			s.buckets.CompareAndDelete(key, b)
			removed++
		}
		b.mu.Unlock()
		return true
	})
	return removed
}

// Len returns the number of tracked clients.
func (s *State) Len() int {
	n := 0
	s.buckets.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
