// Package recommend picks a menu by filtering, relaxing and weighted
// sampling over the catalog.
package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"

	"github.com/ashureev/lunchbot/internal/domain"
)

// DefaultRecentDays is how far back eaten menus are excluded.
const DefaultRecentDays = 2

// Catalog supplies candidates.
type Catalog interface {
	Candidates(ctx context.Context) ([]domain.Candidate, error)
}

// History reports what a user ate recently.
type History interface {
	RecentlyEaten(ctx context.Context, userID string, days int) (map[string]struct{}, error)
}

// Rand is the randomness the engine draws from.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Request describes one recommendation.
type Request struct {
	UserID         string
	Weather        domain.Weather
	Mood           domain.Mood
	CuisineFilters []string
	TagFilters     []string
	Excluded       []string
}

// Engine recommends one candidate per request.
type Engine struct {
	catalog    Catalog
	history    History
	recentDays int
	rand       Rand
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the random source.
func WithRand(r Rand) Option {
	return func(e *Engine) { e.rand = r }
}

// WithRecentDays sets the recency exclusion window.
func WithRecentDays(days int) Option {
	return func(e *Engine) { e.recentDays = days }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine. history may be nil.
func NewEngine(catalog Catalog, history History, opts ...Option) *Engine {
	e := &Engine{
		catalog:    catalog,
		history:    history,
		recentDays: DefaultRecentDays,
		rand:       globalRand{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Recommend returns one candidate. When filters leave nothing, the cuisine
// filter is dropped first and then the exclusion set; only an empty catalog
// yields domain.ErrNoCandidate.
func (e *Engine) Recommend(ctx context.Context, req Request) (domain.Candidate, error) {
	all, err := e.catalog.Candidates(ctx)
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("load catalog: %w", err)
	}
	if len(all) == 0 {
		return domain.Candidate{}, domain.ErrNoCandidate
	}

	excluded := e.exclusionSet(ctx, req)
	pool := Filter(all, excluded, req.CuisineFilters)
	stage := "filtered"
	if len(pool) == 0 {
		pool = Filter(all, excluded, nil)
		stage = "without_cuisine"
	}
	if len(pool) == 0 {
		pool = all
		stage = "without_exclusion"
	}

	scored := Score(pool, req)
	choice := Pick(scored, e.rand)

	e.logger.Debug("Recommendation selected",
		"user_id", req.UserID,
		"menu", choice.Name,
		"stage", stage,
		"pool", len(pool),
		"excluded", len(excluded))
	return choice, nil
}

func (e *Engine) exclusionSet(ctx context.Context, req Request) map[string]struct{} {
	excluded := make(map[string]struct{}, len(req.Excluded))
	for _, name := range req.Excluded {
		excluded[name] = struct{}{}
	}
	if e.history == nil || req.UserID == "" || e.recentDays <= 0 {
		return excluded
	}

	recent, err := e.history.RecentlyEaten(ctx, req.UserID, e.recentDays)
	if err != nil {
		e.logger.Warn("Failed to load recent history, skipping recency exclusion",
			"user_id", req.UserID,
			"error", err)
		return excluded
	}
	for name := range recent {
		excluded[name] = struct{}{}
	}
	return excluded
}

// Filter drops excluded names and, when cuisines is non-empty, keeps only
// candidates whose cuisine is listed.
func Filter(all []domain.Candidate, excluded map[string]struct{}, cuisines []string) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(all))
	for _, c := range all {
		if _, skip := excluded[c.Name]; skip {
			continue
		}
		if len(cuisines) > 0 && !slices.Contains(cuisines, c.CuisineLabel()) {
			continue
		}
		out = append(out, c)
	}
	return out
}
