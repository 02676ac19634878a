// Package ratelimit suppresses repeated identical warnings so a noisy
// source doesn't flood the log, using the same TTL-cache idiom the SIP
// parser uses to track call sessions.
package ratelimit

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

const defaultCleanupInterval = 1 * time.Minute

// Limiter suppresses repeated warnings for the same key within window.
type Limiter struct {
	seen   *cache.Cache
	window time.Duration
}

// New returns a Limiter that allows at most one warning per key per
// window. A non-positive window disables suppression entirely: every
// call to Allow returns true.
func New(window time.Duration) *Limiter {
	if window <= 0 {
		return &Limiter{window: 0}
	}
	cleanup := window
	if cleanup < defaultCleanupInterval {
		cleanup = defaultCleanupInterval
	}
	return &Limiter{
		seen:   cache.New(window, cleanup),
		window: window,
	}
}

// Allow reports whether a warning for key should be emitted now. The
// first call for a given key always returns true; subsequent calls
// within window return false until the entry expires.
func (l *Limiter) Allow(key string) bool {
	if l.window <= 0 {
		return true
	}
	if _, found := l.seen.Get(key); found {
		return false
	}
	l.seen.SetDefault(key, struct{}{})
	return true
}

// SourceKey builds the cache key used for non-monotonic timestamp
// warnings keyed per source id.
func SourceKey(sourceID uint32) string {
	return fmt.Sprintf("source:%d", sourceID)
}
