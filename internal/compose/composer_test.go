package compose

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/lunchbot/internal/domain"
	"github.com/ashureev/lunchbot/internal/llm"
	"github.com/ashureev/lunchbot/internal/resilience"
)

var kimchi = domain.Candidate{
	Name:     "김치찌개",
	Area:     "건너편 먹자골목",
	Category: "찌개",
	Tags:     []string{domain.TagSoup, domain.TagHot, domain.TagSpicy},
}

func replyWith(text string, err error) llm.Func {
	return llm.Func{Fn: func(context.Context, int, llm.Request) (string, error) {
		return text, err
	}}
}

func TestPrefixPriority(t *testing.T) {
	t.Parallel()

	full := domain.IntentResult{
		Mood:           domain.MoodTired,
		Emotion:        domain.EmotionNegative,
		CuisineFilters: []string{"한식"},
	}
	if got := Prefix(full, domain.WeatherRain); !strings.HasPrefix(got, "피곤할 땐") {
		t.Fatalf("mood should win, got %q", got)
	}

	full.Mood = ""
	if got := Prefix(full, domain.WeatherRain); !strings.HasPrefix(got, "힘든 하루") {
		t.Fatalf("emotion should beat weather, got %q", got)
	}

	full.Emotion = domain.EmotionNeutral
	if got := Prefix(full, domain.WeatherRain); !strings.HasPrefix(got, "비 오는 날엔") {
		t.Fatalf("weather should beat cuisine, got %q", got)
	}

	if got := Prefix(full, ""); got != "한식 좋아하시는군요! " {
		t.Fatalf("expected cuisine mention, got %q", got)
	}

	if got := Prefix(domain.IntentResult{}, ""); got != "" {
		t.Fatalf("expected no prefix, got %q", got)
	}
}

func TestRecommendationTemplateFormat(t *testing.T) {
	t.Parallel()

	got := RecommendationTemplate(kimchi, domain.IntentResult{}, domain.WeatherRain)
	want := "비 오는 날엔 이게 최고죠! 🌧️ 추천드립니다: [김치찌개] 🍜\n\n📍 위치: 건너편 먹자골목\n🍽️ 종류: 찌개"
	if got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}
}

func TestEscalation(t *testing.T) {
	t.Parallel()

	if Escalation(2) != "" {
		t.Fatal("no escalation expected below the first threshold")
	}
	if got := Escalation(3); !strings.Contains(got, "3번째") {
		t.Fatalf("expected mild escalation, got %q", got)
	}
	if got := Escalation(7); !strings.Contains(got, "이번엔 꼭") {
		t.Fatalf("expected strong escalation, got %q", got)
	}
}

func TestRecommendationUsesRemoteWhenHealthy(t *testing.T) {
	t.Parallel()

	ctrl := resilience.NewController(1, time.Minute, time.Minute, nil)
	c := New(replyWith("비 오는 날엔 김치찌개 어때요?\n📍 위치: 건너편 먹자골목", nil), ctrl, time.Second, nil)

	text, src := c.Recommendation(context.Background(), Input{Candidate: kimchi, Count: 1})
	if src != SourceRemote || !strings.HasPrefix(text, "비 오는 날엔 김치찌개") {
		t.Fatalf("expected remote text, got %s: %q", src, text)
	}
}

func TestRecommendationFallsBackToTemplate(t *testing.T) {
	t.Parallel()

	cases := map[string]llm.Generator{
		"error":        replyWith("", errors.New("boom")),
		"missing name": replyWith("오늘은 라멘 어때요?", nil),
		"none":         nil,
	}
	for name, gen := range cases {
		t.Run(name, func(t *testing.T) {
			ctrl := resilience.NewController(1, time.Minute, time.Minute, nil)
			c := New(gen, ctrl, time.Second, nil)
			text, src := c.Recommendation(context.Background(), Input{
				Candidate: kimchi,
				Intent:    domain.IntentResult{Mood: domain.MoodHappy},
				Count:     4,
			})
			if src != SourceTemplate {
				t.Fatalf("expected template, got %s", src)
			}
			if !strings.Contains(text, "[김치찌개]") || !strings.Contains(text, "기분 좋은 날엔") {
				t.Fatalf("unexpected template text: %q", text)
			}
			if !strings.HasPrefix(text, "😅") {
				t.Fatalf("expected escalation prefix, got %q", text)
			}
		})
	}
}

func TestExplanationTemplate(t *testing.T) {
	t.Parallel()

	c := New(nil, nil, 0, nil)
	text, src := c.Explanation(context.Background(), "왜?", kimchi, domain.WeatherRain, domain.MoodTired, nil)
	if src != SourceTemplate {
		t.Fatalf("expected template, got %s", src)
	}
	for _, want := range []string{"김치찌개을(를) 추천한 이유는", "비 오는 날씨", "피곤하실 때", "국물 요리", "건너편 먹자골목"} {
		if !strings.Contains(text, want) {
			t.Errorf("explanation missing %q: %q", want, text)
		}
	}
}

func TestCasualGreetingStaysLocal(t *testing.T) {
	t.Parallel()

	called := false
	gen := llm.Func{Fn: func(context.Context, int, llm.Request) (string, error) {
		called = true
		return "hi", nil
	}}
	c := New(gen, resilience.NewController(1, time.Minute, time.Minute, nil), time.Second, nil)

	text, src := c.Casual(context.Background(), "안녕", domain.CasualGreeting, nil)
	if called || src != SourceTemplate || text != CasualFallback(domain.CasualGreeting) {
		t.Fatalf("greeting should be answered locally, got %s %q", src, text)
	}
}
