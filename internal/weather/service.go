package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ashureev/lunchbot/internal/metrics"
)

// ErrUnavailable is returned when no provider answered and nothing is cached.
var ErrUnavailable = errors.New("weather: unavailable")

// Service memoizes the latest report and falls back across providers.
type Service struct {
	providers []Provider
	ttl       time.Duration
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time

	group singleflight.Group

	mu     sync.RWMutex
	last   Report
	cached bool
}

// NewService creates a memoizing weather source. Providers are tried in order.
func NewService(ttl, timeout time.Duration, logger *slog.Logger, providers ...Provider) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		providers: providers,
		ttl:       ttl,
		timeout:   timeout,
		logger:    logger,
		now:       time.Now,
	}
}

// Current returns the memoized report, refreshing it when older than the TTL.
// Concurrent refreshes collapse into one upstream fetch. When every provider
// fails, the last known report is returned if there is one.
func (s *Service) Current(ctx context.Context) (Report, error) {
	if r, ok := s.fresh(); ok {
		metrics.WeatherCache.WithLabelValues("hit").Inc()
		return r, nil
	}

	ch := s.group.DoChan("current", func() (any, error) {
		// Detached so one caller leaving does not cancel the shared refresh.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.refresh(fetchCtx)
	})

	select {
	case res := <-ch:
		if res.Err == nil {
			metrics.WeatherCache.WithLabelValues("refresh").Inc()
			return res.Val.(Report), nil
		}
		if r, ok := s.stale(); ok {
			metrics.WeatherCache.WithLabelValues("stale").Inc()
			return r, nil
		}
		metrics.WeatherCache.WithLabelValues("miss").Inc()
		return Report{}, res.Err
	case <-ctx.Done():
		if r, ok := s.stale(); ok {
			metrics.WeatherCache.WithLabelValues("stale").Inc()
			return r, nil
		}
		return Report{}, ctx.Err()
	}
}

func (s *Service) refresh(ctx context.Context) (Report, error) {
	var errs []error
	for _, p := range s.providers {
		r, err := p.Fetch(ctx)
		if err != nil {
			s.logger.Warn("Weather provider failed",
				"provider", p.Name(),
				"rejected", IsRejected(err),
				"error", err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}

		r.FetchedAt = s.now()
		s.mu.Lock()
		s.last = r
		s.cached = true
		s.mu.Unlock()

		s.logger.Debug("Weather refreshed",
			"provider", r.Provider,
			"condition", r.Condition,
			"description", r.Description,
			"temp_c", r.TempC)
		return r, nil
	}
	return Report{}, errors.Join(append([]error{ErrUnavailable}, errs...)...)
}

func (s *Service) fresh() (Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.cached || s.now().Sub(s.last.FetchedAt) >= s.ttl {
		return Report{}, false
	}
	return s.last, true
}

func (s *Service) stale() (Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.cached
}
