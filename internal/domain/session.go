package domain

import "time"

// Message roles.
const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// Message is one turn stored in a session.
type Message struct {
	Role           string
	Text           string
	Timestamp      time.Time
	Recommendation *Candidate
}

// Session is a snapshot of per-user conversation state.
type Session struct {
	UserID              string
	CreatedAt           time.Time
	LastUpdatedAt       time.Time
	Messages            []Message
	LastRecommendation  *Candidate
	RecommendationCount int
}
