package domain

import "time"

// HistoryRecord is one meal persisted in the long-term history log.
type HistoryRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	MenuName  string    `json:"menu_name"`
	Area      string    `json:"area"`
	Category  string    `json:"category"`
	EatenOn   string    `json:"eaten_on"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryStats aggregates a user's recent history.
type HistoryStats struct {
	Total      int            `json:"total"`
	ByArea     map[string]int `json:"by_area"`
	ByCategory map[string]int `json:"by_category"`
}
