package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/ashureev/lunchbot/internal/domain"
)

func newTestStore(ttl time.Duration, max int) (*Store, *time.Time) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	s := NewStore(ttl, max)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestAppendMessageKeepsNewest(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(DefaultTTL, 10)
	for i := 0; i < 15; i++ {
		s.AppendMessage("u1", domain.RoleUser, fmt.Sprintf("msg-%d", i), nil)
	}

	msgs := s.RecentMessages("u1", 0)
	if len(msgs) != 10 {
		t.Fatalf("expected 10 messages, got %d", len(msgs))
	}
	if msgs[0].Text != "msg-5" || msgs[9].Text != "msg-14" {
		t.Fatalf("unexpected window: first=%q last=%q", msgs[0].Text, msgs[9].Text)
	}

	last3 := s.RecentMessages("u1", 3)
	if len(last3) != 3 || last3[0].Text != "msg-12" {
		t.Fatalf("unexpected limited window: %+v", last3)
	}
}

func TestSessionExpiresAfterTTL(t *testing.T) {
	t.Parallel()

	s, now := newTestStore(30*time.Minute, 10)
	s.AppendMessage("u1", domain.RoleUser, "hello", nil)
	s.SetLastRecommendation("u1", domain.Candidate{Name: "마라탕"})

	*now = now.Add(29 * time.Minute)
	if _, ok := s.LastRecommendation("u1"); !ok {
		t.Fatal("session should still be live before TTL")
	}

	*now = now.Add(31 * time.Minute)
	sess := s.GetOrCreate("u1")
	if len(sess.Messages) != 0 || sess.LastRecommendation != nil || sess.RecommendationCount != 0 {
		t.Fatalf("expected a fresh session after TTL, got %+v", sess)
	}
}

func TestAccessRefreshesSession(t *testing.T) {
	t.Parallel()

	s, now := newTestStore(30*time.Minute, 10)
	s.SetLastRecommendation("u1", domain.Candidate{Name: "마라탕"})

	*now = now.Add(20 * time.Minute)
	if sess := s.GetOrCreate("u1"); !sess.LastUpdatedAt.Equal(*now) {
		t.Fatalf("GetOrCreate did not refresh: %v", sess.LastUpdatedAt)
	}

	*now = now.Add(20 * time.Minute)
	if _, ok := s.LastRecommendation("u1"); !ok {
		t.Fatal("session read 20 minutes ago should still be live")
	}

	*now = now.Add(20 * time.Minute)
	if sess := s.GetOrCreate("u1"); sess.LastRecommendation == nil || sess.LastRecommendation.Name != "마라탕" {
		t.Fatalf("expected the refreshed session to survive, got %+v", sess)
	}
}

func TestSetLastRecommendationCounts(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(DefaultTTL, 10)
	s.SetLastRecommendation("u1", domain.Candidate{Name: "돈까스"})
	s.SetLastRecommendation("u1", domain.Candidate{Name: "김치찌개", Tags: []string{"soup"}})

	sess := s.GetOrCreate("u1")
	if sess.RecommendationCount != 2 {
		t.Fatalf("expected count 2, got %d", sess.RecommendationCount)
	}
	if sess.LastRecommendation == nil || sess.LastRecommendation.Name != "김치찌개" {
		t.Fatalf("unexpected last recommendation: %+v", sess.LastRecommendation)
	}

	// Snapshots must not alias internal state.
	sess.LastRecommendation.Tags[0] = "mutated"
	got, _ := s.LastRecommendation("u1")
	if got.Tags[0] != "soup" {
		t.Fatalf("snapshot aliased store state: %v", got.Tags)
	}
}

func TestClear(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(DefaultTTL, 10)
	s.GetOrCreate("u1")
	if !s.Clear("u1") {
		t.Fatal("expected Clear to report an existing session")
	}
	if s.Clear("u1") {
		t.Fatal("expected second Clear to report nothing removed")
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d", s.Len())
	}
}
