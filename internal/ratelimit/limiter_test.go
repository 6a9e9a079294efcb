package ratelimit

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(limits Limits) (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)}
	l := New(limits)
	l.now = clock.Now
	return l, clock
}

func TestAllowMinuteCeiling(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(DefaultLimits)
	for i := 0; i < 10; i++ {
		if ok, reason := l.Allow("u1"); !ok {
			t.Fatalf("request %d denied: %s", i+1, reason)
		}
	}
	ok, reason := l.Allow("u1")
	if ok {
		t.Fatal("11th request within a minute should be denied")
	}
	if reason == "" {
		t.Fatal("expected a denial reason")
	}
	if ok, _ := l.Allow("u2"); !ok {
		t.Fatal("other users must not be affected")
	}
}

func TestDeniedRequestsAreNotRecorded(t *testing.T) {
	t.Parallel()

	l, clock := newTestLimiter(Limits{PerMinute: 2, PerHour: 100, PerDay: 100})
	l.Allow("u1")
	l.Allow("u1")
	for i := 0; i < 5; i++ {
		if ok, _ := l.Allow("u1"); ok {
			t.Fatal("expected denial")
		}
	}
	if got := l.Usage("u1").LastMinute; got != 2 {
		t.Fatalf("denials must not be recorded, got %d entries", got)
	}

	clock.Advance(61 * time.Second)
	if ok, _ := l.Allow("u1"); !ok {
		t.Fatal("expected admission once the minute window passed")
	}
}

func TestAllowHourAndDayCeilings(t *testing.T) {
	t.Parallel()

	l, clock := newTestLimiter(Limits{PerMinute: 100, PerHour: 3, PerDay: 4})
	for i := 0; i < 3; i++ {
		if ok, _ := l.Allow("u1"); !ok {
			t.Fatalf("request %d denied", i+1)
		}
		clock.Advance(2 * time.Minute)
	}
	if ok, _ := l.Allow("u1"); ok {
		t.Fatal("expected hourly denial")
	}

	clock.Advance(time.Hour)
	if ok, _ := l.Allow("u1"); !ok {
		t.Fatal("expected admission after the hour window")
	}
	if ok, _ := l.Allow("u1"); ok {
		t.Fatal("expected daily denial")
	}

	clock.Advance(Retention)
	if ok, _ := l.Allow("u1"); !ok {
		t.Fatal("expected admission after the day window")
	}
}

func TestResetAndEvict(t *testing.T) {
	t.Parallel()

	l, clock := newTestLimiter(Limits{PerMinute: 1, PerHour: 10, PerDay: 10})
	l.Allow("u1")
	l.Allow("u2")
	l.Reset("u1")
	if ok, _ := l.Allow("u1"); !ok {
		t.Fatal("expected admission after reset")
	}

	clock.Advance(Retention + time.Second)
	if got := l.Evict(); got != 2 {
		t.Fatalf("expected 2 evicted users, got %d", got)
	}
	if got := l.Usage("u2").LastDay; got != 0 {
		t.Fatalf("expected empty usage after eviction, got %d", got)
	}
}

func TestAllowConcurrentNeverExceedsCeiling(t *testing.T) {
	t.Parallel()

	l := New(Limits{PerMinute: 10, PerHour: 50, PerDay: 200})
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Allow("shared"); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed != 10 {
		t.Fatalf("expected exactly 10 admissions, got %d", allowed)
	}
}
