package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func newTestController(credentials int, floor, max time.Duration) (*Controller, *time.Time) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	c := NewController(credentials, floor, max, nil)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestThrottleWithoutAlternateEntersCooldown(t *testing.T) {
	t.Parallel()

	c, now := newTestController(1, 30*time.Second, 10*time.Minute)
	if c.InCooldown() {
		t.Fatal("new controller must be closed")
	}
	if action := c.ReportThrottled(); action != ActionCooldown {
		t.Fatalf("expected cooldown, got %v", action)
	}
	if !c.InCooldown() {
		t.Fatal("expected cooldown after quota error")
	}

	*now = now.Add(29 * time.Second)
	if !c.InCooldown() {
		t.Fatal("cooldown should last the full backoff")
	}
	*now = now.Add(2 * time.Second)
	if c.InCooldown() {
		t.Fatal("cooldown should end after the backoff")
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	t.Parallel()

	c, now := newTestController(1, 30*time.Second, 100*time.Second)
	want := []time.Duration{30 * time.Second, 60 * time.Second, 100 * time.Second, 100 * time.Second}
	for i, w := range want {
		c.ReportThrottled()
		if got := c.Snapshot().LastCooldown; got != w {
			t.Fatalf("cooldown %d: got %v, want %v", i+1, got, w)
		}
		*now = now.Add(w + time.Second)
	}
}

func TestSuccessResetsBackoffToFloor(t *testing.T) {
	t.Parallel()

	c, now := newTestController(1, 30*time.Second, 10*time.Minute)
	c.ReportThrottled()
	*now = now.Add(31 * time.Second)
	c.ReportThrottled()
	if got := c.Snapshot().LastCooldown; got != time.Minute {
		t.Fatalf("expected doubled cooldown, got %v", got)
	}
	*now = now.Add(61 * time.Second)

	c.ReportSuccess()
	c.ReportThrottled()
	if got := c.Snapshot().LastCooldown; got != 30*time.Second {
		t.Fatalf("expected floor after success, got %v", got)
	}
}

func TestThrottleRotatesCredentialsBeforeCooldown(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(3, time.Second, time.Minute)
	if action := c.ReportThrottled(); action != ActionRotated {
		t.Fatalf("expected rotation, got %v", action)
	}
	if c.ActiveCredential() != 1 || c.InCooldown() {
		t.Fatalf("expected credential 1 and closed breaker, got %+v", c.Snapshot())
	}
	if action := c.ReportThrottled(); action != ActionRotated {
		t.Fatalf("expected second rotation, got %v", action)
	}
	if action := c.ReportThrottled(); action != ActionCooldown {
		t.Fatalf("expected cooldown once every credential was tried, got %v", action)
	}
	if !c.InCooldown() {
		t.Fatal("expected cooldown")
	}
}

func TestCallSkipsDuringCooldown(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(1, time.Minute, time.Minute)
	c.ReportThrottled()

	var calls atomic.Int32
	res := Call(context.Background(), c, "test", time.Second, func(ctx context.Context, _ int) (string, error) {
		calls.Add(1)
		return "x", nil
	})
	if res.Outcome != OutcomeSkipped || !errors.Is(res.Err, ErrCooldown) {
		t.Fatalf("expected skipped, got %+v", res)
	}
	if calls.Load() != 0 {
		t.Fatal("remote must not be called during cooldown")
	}
}

func TestCallAbandonsSlowCallWithoutTripping(t *testing.T) {
	t.Parallel()

	c := NewController(1, time.Minute, time.Minute, nil)
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	res := Call(context.Background(), c, "test", 50*time.Millisecond, func(ctx context.Context, _ int) (string, error) {
		<-release // ignores ctx on purpose
		return "late", nil
	})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("call was awaited past its timeout: %v", elapsed)
	}
	if res.Outcome != OutcomeTimeout {
		t.Fatalf("expected timeout, got %+v", res)
	}
	if c.InCooldown() {
		t.Fatal("timeouts must not trip the breaker")
	}
}

func TestCallThrottledFeedsController(t *testing.T) {
	t.Parallel()

	c := NewController(1, time.Minute, time.Minute, nil)
	res := Call(context.Background(), c, "test", time.Second, func(ctx context.Context, _ int) (string, error) {
		return "", genai.APIError{Code: 429, Message: "quota", Status: "RESOURCE_EXHAUSTED"}
	})
	if res.Outcome != OutcomeThrottled {
		t.Fatalf("expected throttled, got %+v", res)
	}
	if !c.InCooldown() {
		t.Fatal("expected cooldown after throttled call")
	}
}

func TestCallPassesActiveCredential(t *testing.T) {
	t.Parallel()

	c := NewController(2, time.Minute, time.Minute, nil)
	c.ReportThrottled()

	res := Call(context.Background(), c, "test", time.Second, func(ctx context.Context, credential int) (int, error) {
		return credential, nil
	})
	if !res.OK() || res.Value != 1 {
		t.Fatalf("expected credential 1, got %+v", res)
	}
}

func TestCallMalformedAndFailuresDoNotTrip(t *testing.T) {
	t.Parallel()

	c := NewController(1, time.Minute, time.Minute, nil)
	errs := []error{
		fmt.Errorf("parse: %w", ErrMalformed),
		errors.New("connection reset"),
	}
	for _, e := range errs {
		res := Call(context.Background(), c, "test", time.Second, func(ctx context.Context, _ int) (string, error) {
			return "", e
		})
		if res.OK() {
			t.Fatalf("expected failure for %v", e)
		}
	}
	if c.InCooldown() {
		t.Fatal("non-quota failures must not trip the breaker")
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"nil", nil, OutcomeOK},
		{"api 429", fmt.Errorf("generate: %w", genai.APIError{Code: 429}), OutcomeThrottled},
		{"api 500", genai.APIError{Code: 500, Message: "internal"}, OutcomeFailed},
		{"grpc exhausted", status.Error(codes.ResourceExhausted, "slow down"), OutcomeThrottled},
		{"grpc deadline", status.Error(codes.DeadlineExceeded, "late"), OutcomeTimeout},
		{"quota text", errors.New("Quota exceeded for project"), OutcomeThrottled},
		{"deadline", context.DeadlineExceeded, OutcomeTimeout},
		{"malformed", fmt.Errorf("x: %w", ErrMalformed), OutcomeMalformed},
		{"generic", errors.New("boom"), OutcomeFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Fatalf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
