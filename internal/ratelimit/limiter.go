// Package ratelimit implements the per-user multi-window admission check.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/ashureev/lunchbot/internal/metrics"
)

// Retention is the longest window tracked; older timestamps are pruned.
const Retention = 24 * time.Hour

// Limits are the ceilings for each window.
type Limits struct {
	PerMinute int
	PerHour   int
	PerDay    int
}

// DefaultLimits mirrors the production ceilings.
var DefaultLimits = Limits{PerMinute: 10, PerHour: 50, PerDay: 200}

// Usage reports how many requests a user made in each window.
type Usage struct {
	LastMinute int `json:"last_minute"`
	LastHour   int `json:"last_hour"`
	LastDay    int `json:"last_day"`
	Limits     struct {
		PerMinute int `json:"per_minute"`
		PerHour   int `json:"per_hour"`
		PerDay    int `json:"per_day"`
	} `json:"limits"`
}

// Limiter admits requests per user across 1 minute, 1 hour and 24 hour
// windows. The key is the platform user id, so the check cannot be bypassed
// by reconnecting.
type Limiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limits   Limits
	now      func() time.Time
}

// New creates a limiter with the given ceilings.
func New(limits Limits) *Limiter {
	return &Limiter{
		requests: make(map[string][]time.Time),
		limits:   limits,
		now:      time.Now,
	}
}

// Allow checks and records one request for userID. A denied request leaves
// no trace, so denials never extend the user's wait.
func (l *Limiter) Allow(userID string) (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := prune(l.requests[userID], now.Add(-Retention))

	minute, hour := 0, 0
	minuteCutoff := now.Add(-time.Minute)
	hourCutoff := now.Add(-time.Hour)
	for _, t := range recent {
		if t.After(hourCutoff) {
			hour++
			if t.After(minuteCutoff) {
				minute++
			}
		}
	}

	var window, reason string
	switch {
	case minute >= l.limits.PerMinute:
		window = "minute"
		reason = fmt.Sprintf("분당 최대 %d회 요청 제한을 초과했습니다. 잠시 후 다시 시도해주세요.", l.limits.PerMinute)
	case hour >= l.limits.PerHour:
		window = "hour"
		reason = fmt.Sprintf("시간당 최대 %d회 요청 제한을 초과했습니다. 잠시 후 다시 시도해주세요.", l.limits.PerHour)
	case len(recent) >= l.limits.PerDay:
		window = "day"
		reason = fmt.Sprintf("하루 최대 %d회 요청 제한을 초과했습니다. 내일 다시 이용해주세요.", l.limits.PerDay)
	}

	if window != "" {
		l.store(userID, recent)
		metrics.RateLimitDenied.WithLabelValues(window).Inc()
		return false, reason
	}

	l.requests[userID] = append(recent, now)
	return true, ""
}

// Usage returns the request counts for userID without recording anything.
func (l *Limiter) Usage(userID string) Usage {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := prune(l.requests[userID], now.Add(-Retention))
	l.store(userID, recent)

	var u Usage
	for _, t := range recent {
		u.LastDay++
		if t.After(now.Add(-time.Hour)) {
			u.LastHour++
		}
		if t.After(now.Add(-time.Minute)) {
			u.LastMinute++
		}
	}
	u.Limits.PerMinute = l.limits.PerMinute
	u.Limits.PerHour = l.limits.PerHour
	u.Limits.PerDay = l.limits.PerDay
	return u
}

// Reset forgets all requests for userID.
func (l *Limiter) Reset(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.requests, userID)
}

// Evict removes users with no requests inside the retention window and
// returns how many were dropped.
func (l *Limiter) Evict() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-Retention)
	evicted := 0
	for key, times := range l.requests {
		fresh := prune(times, cutoff)
		if len(fresh) == 0 {
			delete(l.requests, key)
			evicted++
		} else {
			l.requests[key] = fresh
		}
	}
	return evicted
}

// store writes back a pruned slice, dropping the key when empty.
func (l *Limiter) store(userID string, times []time.Time) {
	if len(times) == 0 {
		delete(l.requests, userID)
		return
	}
	l.requests[userID] = times
}

// prune returns the timestamps strictly after cutoff. Timestamps are
// appended in order, so the first fresh entry ends the scan.
func prune(times []time.Time, cutoff time.Time) []time.Time {
	for i, t := range times {
		if t.After(cutoff) {
			return times[i:]
		}
	}
	return nil
}
