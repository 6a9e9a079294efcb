package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ashureev/lunchbot/internal/domain"
	"github.com/ashureev/lunchbot/internal/metrics"
	"github.com/ashureev/lunchbot/internal/shared"
)

const dateLayout = "2006-01-02"

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL lets readers proceed while the webhook writes.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS lunch_history (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		menu_name TEXT NOT NULL,
		area TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		eaten_on TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_user_date ON lunch_history(user_id, eaten_on);
	CREATE INDEX IF NOT EXISTS idx_history_created ON lunch_history(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordChoice appends a meal dated today.
func (s *SQLiteStore) RecordChoice(ctx context.Context, userID string, c domain.Candidate) (*domain.HistoryRecord, error) {
	now := s.now()
	rec := &domain.HistoryRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		MenuName:  c.Name,
		Area:      c.Area,
		Category:  c.Category,
		EatenOn:   now.Format(dateLayout),
		CreatedAt: now,
	}

	query := `
	INSERT INTO lunch_history (id, user_id, menu_name, area, category, eaten_on, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	err := shared.RetryOnConflict(ctx, "record_choice", shared.DefaultRetryPolicy, func() error {
		_, err := s.db.ExecContext(ctx, query,
			rec.ID, rec.UserID, rec.MenuName, rec.Area, rec.Category, rec.EatenOn, now.UnixNano())
		return err
	})
	if err != nil {
		metrics.HistoryWrites.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("insert history record: %w", err)
	}
	metrics.HistoryWrites.WithLabelValues("ok").Inc()
	return rec, nil
}

// RecentlyEaten returns menu names eaten on or after today minus days.
func (s *SQLiteStore) RecentlyEaten(ctx context.Context, userID string, days int) (map[string]struct{}, error) {
	query := `
		SELECT DISTINCT menu_name FROM lunch_history
		WHERE user_id = ? AND eaten_on >= ?`

	rows, err := s.db.QueryContext(ctx, query, userID, s.cutoff(days))
	if err != nil {
		return nil, fmt.Errorf("query recent menus: %w", err)
	}
	defer func() { _ = rows.Close() }()

	recent := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan recent menu: %w", err)
		}
		recent[name] = struct{}{}
	}
	return recent, rows.Err()
}

// Records lists meals newest first.
func (s *SQLiteStore) Records(ctx context.Context, userID string, days, limit int) ([]domain.HistoryRecord, error) {
	query := `
		SELECT id, user_id, menu_name, area, category, eaten_on, created_at
		FROM lunch_history
		WHERE user_id = ? AND eaten_on >= ?
		ORDER BY created_at DESC`
	args := []any{userID, s.cutoff(days)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []domain.HistoryRecord
	for rows.Next() {
		var rec domain.HistoryRecord
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.MenuName, &rec.Area, &rec.Category, &rec.EatenOn, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history record: %w", err)
		}
		rec.CreatedAt = time.Unix(0, createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Stats counts meals by area and category.
func (s *SQLiteStore) Stats(ctx context.Context, userID string, days int) (*domain.HistoryStats, error) {
	query := `
		SELECT area, category, COUNT(*) FROM lunch_history
		WHERE user_id = ? AND eaten_on >= ?
		GROUP BY area, category`

	rows, err := s.db.QueryContext(ctx, query, userID, s.cutoff(days))
	if err != nil {
		return nil, fmt.Errorf("query history stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := &domain.HistoryStats{
		ByArea:     make(map[string]int),
		ByCategory: make(map[string]int),
	}
	for rows.Next() {
		var area, category string
		var n int
		if err := rows.Scan(&area, &category, &n); err != nil {
			return nil, fmt.Errorf("scan history stats: %w", err)
		}
		stats.Total += n
		stats.ByArea[area] += n
		stats.ByCategory[category] += n
	}
	return stats, rows.Err()
}

// DeleteToday removes the user's latest meal recorded today.
func (s *SQLiteStore) DeleteToday(ctx context.Context, userID string) (bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM lunch_history
		WHERE user_id = ? AND eaten_on = ?
		ORDER BY created_at DESC LIMIT 1`,
		userID, s.now().Format(dateLayout)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find today's record: %w", err)
	}

	err = shared.RetryOnConflict(ctx, "delete_today", shared.DefaultRetryPolicy, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM lunch_history WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("delete today's record: %w", err)
	}
	return true, nil
}

// PruneOlderThan removes meals created before now minus age.
func (s *SQLiteStore) PruneOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := s.now().Add(-age).UnixNano()

	var affected int64
	err := shared.RetryOnConflict(ctx, "prune_history", shared.DefaultRetryPolicy, func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM lunch_history WHERE created_at < ?`, cutoff)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return affected, nil
}

// cutoff returns the first date included in a days-long window. A
// non-positive days covers all time.
func (s *SQLiteStore) cutoff(days int) string {
	if days <= 0 {
		return "0000-00-00"
	}
	return s.now().AddDate(0, 0, -days).Format(dateLayout)
}
