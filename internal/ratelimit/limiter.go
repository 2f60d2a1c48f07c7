// Package ratelimit provides admission control for the analysis endpoints:
// a sliding-window limiter keyed by (tenant, route) with a global backstop,
// checked before any classifier spend is committed.
package ratelimit

import (
	"sync"
	"time"

	"github.com/CleanExpo/ATO-sub007/internal/platform/envutil"
)

type Limiter struct {
	mu        sync.Mutex
	perKeyMax int
	globalMax int
	window    time.Duration
	keys      map[string][]int64
	global    []int64
}

func New(perKeyMax, globalMax int, window time.Duration) *Limiter {
	if perKeyMax < 0 {
		perKeyMax = 0
	}
	if globalMax < 0 {
		globalMax = 0
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		perKeyMax: perKeyMax,
		globalMax: globalMax,
		window:    window,
		keys:      map[string][]int64{},
		global:    make([]int64, 0, 256),
	}
}

func NewFromEnv() *Limiter {
	perKey := envutil.Int("ANALYSIS_RATE_LIMIT_PER_MIN", 30)
	global := envutil.Int("ANALYSIS_GLOBAL_RATE_LIMIT_PER_MIN", 300)
	return New(perKey, global, time.Minute)
}

// Allow admits or rejects one request for (tenant, route) at now. When
// rejected, retryAfter is how long until the oldest in-window request ages
// out. A zero max on both axes disables limiting.
func (l *Limiter) Allow(tenant, route string, now time.Time) (bool, time.Duration) {
	if l == nil || (l.perKeyMax == 0 && l.globalMax == 0) {
		return true, 0
	}
	ts := now.UTC().Unix()
	cutoff := ts - int64(l.window.Seconds())
	key := tenant + "|" + route

	l.mu.Lock()
	defer l.mu.Unlock()

	l.global = trimCutoff(l.global, cutoff)
	if l.globalMax > 0 && len(l.global) >= l.globalMax {
		return false, l.retryAfter(l.global, ts)
	}

	history := trimCutoff(l.keys[key], cutoff)
	if l.perKeyMax > 0 && len(history) >= l.perKeyMax {
		l.keys[key] = history
		return false, l.retryAfter(history, ts)
	}

	history = append(history, ts)
	l.keys[key] = history
	l.global = append(l.global, ts)
	return true, 0
}

func (l *Limiter) retryAfter(history []int64, now int64) time.Duration {
	if len(history) == 0 {
		return time.Second
	}
	oldest := history[0]
	remaining := int64(l.window.Seconds()) - (now - oldest)
	if remaining < 1 {
		remaining = 1
	}
	return time.Duration(remaining) * time.Second
}

func trimCutoff(in []int64, cutoff int64) []int64 {
	if len(in) == 0 {
		return in
	}
	i := 0
	for i < len(in) && in[i] <= cutoff {
		i++
	}
	if i == 0 {
		return in
	}
	out := make([]int64, len(in)-i)
	copy(out, in[i:])
	return out
}
