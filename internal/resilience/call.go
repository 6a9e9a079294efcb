package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ashureev/lunchbot/internal/metrics"
)

var (
	// ErrCooldown is reported when a call is skipped during cooldown.
	ErrCooldown = errors.New("remote generator cooling down")
	// ErrThrottled marks a quota or rate-limit rejection.
	ErrThrottled = errors.New("remote generator throttled")
	// ErrTimeout marks a call that overran its budget.
	ErrTimeout = errors.New("remote generator timeout")
	// ErrMalformed marks a reply that could not be parsed.
	ErrMalformed = errors.New("remote generator reply malformed")
)

// Outcome classifies a guarded call.
type Outcome string

// Outcomes.
const (
	OutcomeOK        Outcome = "ok"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeThrottled Outcome = "throttled"
	OutcomeMalformed Outcome = "malformed"
	OutcomeFailed    Outcome = "failed"
)

// Result carries a guarded call's value or the reason it has none.
type Result[T any] struct {
	Value   T
	Outcome Outcome
	Err     error
}

// OK reports whether the call produced a value.
func (r Result[T]) OK() bool {
	return r.Outcome == OutcomeOK
}

// Call runs fn against the active credential under a per-call timeout
// nested in ctx. A call that overruns is abandoned, not awaited. Only quota
// errors feed the controller; timeouts and other failures leave it alone.
func Call[T any](ctx context.Context, c *Controller, op string, timeout time.Duration, fn func(ctx context.Context, credential int) (T, error)) Result[T] {
	var zero T
	if c == nil {
		return Result[T]{Outcome: OutcomeSkipped, Err: ErrCooldown}
	}
	if c.InCooldown() {
		metrics.RemoteCalls.WithLabelValues(op, string(OutcomeSkipped)).Inc()
		return Result[T]{Outcome: OutcomeSkipped, Err: ErrCooldown}
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type reply struct {
		value T
		err   error
	}
	// Buffered so an abandoned call can still finish and exit.
	done := make(chan reply, 1)
	credential := c.ActiveCredential()
	start := time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- reply{err: fmt.Errorf("remote call panicked: %v", r)}
			}
		}()
		v, err := fn(callCtx, credential)
		done <- reply{value: v, err: err}
	}()

	var res Result[T]
	select {
	case r := <-done:
		if r.err == nil {
			res = Result[T]{Value: r.value, Outcome: OutcomeOK}
		} else {
			res = Result[T]{Value: zero, Outcome: Classify(r.err), Err: r.err}
		}
	case <-callCtx.Done():
		res = Result[T]{Outcome: OutcomeTimeout, Err: fmt.Errorf("%s: %w", op, ErrTimeout)}
	}

	metrics.RemoteCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.RemoteCalls.WithLabelValues(op, string(res.Outcome)).Inc()

	switch res.Outcome {
	case OutcomeOK:
		c.ReportSuccess()
	case OutcomeThrottled:
		c.ReportThrottled()
	default:
		c.logger.Debug("Remote call failed",
			"operation", op,
			"outcome", res.Outcome,
			"elapsed", time.Since(start),
			"error", res.Err)
	}
	return res
}

// Classify maps an error from the remote generator to an outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case IsThrottled(err):
		return OutcomeThrottled
	case errors.Is(err, ErrMalformed):
		return OutcomeMalformed
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	}
	if st, ok := status.FromError(err); ok && st.Code() == codes.DeadlineExceeded {
		return OutcomeTimeout
	}
	return OutcomeFailed
}

// IsThrottled reports whether err signals quota exhaustion.
func IsThrottled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrThrottled) {
		return true
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		return true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil && apiErrPtr.Code == 429 {
		return true
	}

	if st, ok := status.FromError(err); ok && st.Code() == codes.ResourceExhausted {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "quota")
}

// LogValue lets a Snapshot be logged as a group.
func (s Snapshot) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("in_cooldown", s.InCooldown),
		slog.Duration("last_cooldown", s.LastCooldown),
		slog.Int("active_credential", s.ActiveCredential),
		slog.Int("credentials", s.Credentials),
	)
}
