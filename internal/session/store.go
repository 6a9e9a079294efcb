// Package session keeps short-lived per-user conversation state in memory.
package session

import (
	"container/list"
	"sync"
	"time"

	"github.com/ashureev/lunchbot/internal/domain"
	"github.com/ashureev/lunchbot/internal/metrics"
)

// Defaults for a production store.
const (
	DefaultTTL        = 30 * time.Minute
	DefaultMaxHistory = 10
)

type entry struct {
	userID    string
	createdAt time.Time
	updatedAt time.Time
	messages  *list.List // of domain.Message, oldest first
	lastRec   *domain.Candidate
	recCount  int
}

// Store holds sessions keyed by user id. Every operation first purges
// sessions idle for longer than the TTL; there is no background sweeper.
// Any access to a live session counts as activity.
type Store struct {
	mu         sync.Mutex
	sessions   map[string]*entry
	ttl        time.Duration
	maxHistory int
	now        func() time.Time
}

// NewStore creates a store. Non-positive arguments fall back to defaults.
func NewStore(ttl time.Duration, maxHistory int) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Store{
		sessions:   make(map[string]*entry),
		ttl:        ttl,
		maxHistory: maxHistory,
		now:        time.Now,
	}
}

// GetOrCreate returns a snapshot of the user's session, creating it if absent.
func (s *Store) GetOrCreate(userID string) domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.purgeLocked(now)
	e := s.entryLocked(userID, now)
	e.updatedAt = now
	return e.snapshot()
}

// AppendMessage records one turn, dropping the oldest beyond the cap.
func (s *Store) AppendMessage(userID, role, text string, rec *domain.Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.purgeLocked(now)
	e := s.entryLocked(userID, now)
	e.messages.PushBack(domain.Message{
		Role:           role,
		Text:           text,
		Timestamp:      now,
		Recommendation: cloneCandidate(rec),
	})
	for e.messages.Len() > s.maxHistory {
		e.messages.Remove(e.messages.Front())
	}
	e.updatedAt = now
}

// SetLastRecommendation stores the latest recommendation and bumps the count.
func (s *Store) SetLastRecommendation(userID string, c domain.Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.purgeLocked(now)
	e := s.entryLocked(userID, now)
	e.lastRec = cloneCandidate(&c)
	e.recCount++
	e.updatedAt = now
}

// LastRecommendation returns the latest recommendation, if any.
func (s *Store) LastRecommendation(userID string) (domain.Candidate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.purgeLocked(now)
	e, ok := s.sessions[userID]
	if !ok {
		return domain.Candidate{}, false
	}
	e.updatedAt = now
	if e.lastRec == nil {
		return domain.Candidate{}, false
	}
	return *cloneCandidate(e.lastRec), true
}

// RecentMessages returns up to limit of the newest messages, oldest first.
func (s *Store) RecentMessages(userID string, limit int) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.purgeLocked(now)
	e, ok := s.sessions[userID]
	if !ok {
		return nil
	}
	e.updatedAt = now
	msgs := e.messageSlice()
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs
}

// Clear drops the user's session.
func (s *Store) Clear(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeLocked(s.now())
	_, ok := s.sessions[userID]
	delete(s.sessions, userID)
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	return ok
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeLocked(s.now())
	return len(s.sessions)
}

func (s *Store) entryLocked(userID string, now time.Time) *entry {
	e, ok := s.sessions[userID]
	if !ok {
		e = &entry{
			userID:    userID,
			createdAt: now,
			updatedAt: now,
			messages:  list.New(),
		}
		s.sessions[userID] = e
		metrics.ActiveSessions.Set(float64(len(s.sessions)))
	}
	return e
}

func (s *Store) purgeLocked(now time.Time) {
	cutoff := now.Add(-s.ttl)
	purged := false
	for id, e := range s.sessions {
		if e.updatedAt.Before(cutoff) {
			delete(s.sessions, id)
			purged = true
		}
	}
	if purged {
		metrics.ActiveSessions.Set(float64(len(s.sessions)))
	}
}

func (e *entry) messageSlice() []domain.Message {
	msgs := make([]domain.Message, 0, e.messages.Len())
	for el := e.messages.Front(); el != nil; el = el.Next() {
		msg := el.Value.(domain.Message)
		msg.Recommendation = cloneCandidate(msg.Recommendation)
		msgs = append(msgs, msg)
	}
	return msgs
}

func (e *entry) snapshot() domain.Session {
	return domain.Session{
		UserID:              e.userID,
		CreatedAt:           e.createdAt,
		LastUpdatedAt:       e.updatedAt,
		Messages:            e.messageSlice(),
		LastRecommendation:  cloneCandidate(e.lastRec),
		RecommendationCount: e.recCount,
	}
}

func cloneCandidate(c *domain.Candidate) *domain.Candidate {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Tags = append([]string(nil), c.Tags...)
	return &cp
}
