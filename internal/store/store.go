// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/lunchbot/internal/domain"
)

// Repository persists the long-term meal history.
type Repository interface {
	// RecordChoice appends a meal for today.
	RecordChoice(ctx context.Context, userID string, c domain.Candidate) (*domain.HistoryRecord, error)

	// RecentlyEaten returns the menu names eaten from `days` days ago through today.
	RecentlyEaten(ctx context.Context, userID string, days int) (map[string]struct{}, error)

	// Records lists meals newest first. days <= 0 means all time; limit <= 0 means no limit.
	Records(ctx context.Context, userID string, days, limit int) ([]domain.HistoryRecord, error)

	// Stats counts meals by area and category.
	Stats(ctx context.Context, userID string, days int) (*domain.HistoryStats, error)

	// DeleteToday removes the user's most recent meal recorded today.
	DeleteToday(ctx context.Context, userID string) (bool, error)

	// PruneOlderThan removes meals recorded before now minus age.
	PruneOlderThan(ctx context.Context, age time.Duration) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
