// Package intent turns an utterance into a structured intent using ordered
// local rules and, when available, a remote classifier.
package intent

import (
	"context"
	"log/slog"

	"github.com/ashureev/lunchbot/internal/domain"
	"github.com/ashureev/lunchbot/internal/metrics"
)

// shortFoodRunes bounds the "short simple utterance" food rule.
const shortFoodRunes = 20

// Rule is one ordered short-circuit. The first matching rule wins.
type Rule struct {
	Name  string
	Match func(u utterance) (domain.IntentResult, bool)
}

// Classifier is a remote intent classifier.
type Classifier interface {
	Classify(ctx context.Context, text string, history []domain.Message) (domain.IntentResult, bool)
}

// Resolver resolves intents. A nil classifier means local rules only.
type Resolver struct {
	rules      []Rule
	classifier Classifier
	logger     *slog.Logger
}

// NewResolver creates a resolver with the default rule order.
func NewResolver(classifier Classifier, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		rules:      DefaultRules(),
		classifier: classifier,
		logger:     logger,
	}
}

// DefaultRules returns the local short-circuits in priority order. Explain
// precedes every keyword rule so a "why" question is never reinterpreted.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "greeting", Match: func(u utterance) (domain.IntentResult, bool) {
			if u.length == 0 || u.isGreeting() {
				return casual(domain.CasualGreeting), true
			}
			return domain.IntentResult{}, false
		}},
		{Name: "help", Match: func(u utterance) (domain.IntentResult, bool) {
			if u.has(helpKeywords) {
				return domain.IntentResult{Kind: domain.IntentHelp, Emotion: domain.EmotionNeutral}, true
			}
			return domain.IntentResult{}, false
		}},
		{Name: "explain", Match: func(u utterance) (domain.IntentResult, bool) {
			if u.has(explainKeywords) {
				return domain.IntentResult{Kind: domain.IntentExplain, Emotion: detectEmotion(u)}, true
			}
			return domain.IntentResult{}, false
		}},
		{Name: "tiny", Match: func(u utterance) (domain.IntentResult, bool) {
			if u.length <= 2 {
				return casual(domain.CasualChitchat), true
			}
			return domain.IntentResult{}, false
		}},
		{Name: "keyword", Match: func(u utterance) (domain.IntentResult, bool) {
			res := extractAttributes(u)
			if len(res.CuisineFilters) == 0 && len(res.TagFilters) == 0 && res.Weather == "" && res.Mood == "" {
				return domain.IntentResult{}, false
			}
			res.Kind = domain.IntentRecommend
			return res, true
		}},
		// Short food talk skips the remote call, but the cascade still decides
		// so "그거 먹을게" stays an accept and "다른 메뉴" stays a reject.
		{Name: "food", Match: func(u utterance) (domain.IntentResult, bool) {
			if u.length <= shortFoodRunes && u.has(foodKeywords) {
				return Cascade(u.raw), true
			}
			return domain.IntentResult{}, false
		}},
	}
}

// Resolve runs the local rules, then the remote classifier, then the local
// cascade. It always returns a result.
func (r *Resolver) Resolve(ctx context.Context, text string, history []domain.Message) domain.IntentResult {
	u := newUtterance(text)
	if res, ok := r.matchRules(u); ok {
		return r.observe(res)
	}

	if r.classifier != nil {
		if res, ok := r.classifier.Classify(ctx, u.raw, history); ok {
			res.Source = "remote"
			return r.observe(res)
		}
	}

	return r.observe(Cascade(u.raw))
}

// ResolveLocal resolves without any remote call.
func (r *Resolver) ResolveLocal(text string) domain.IntentResult {
	u := newUtterance(text)
	if res, ok := r.matchRules(u); ok {
		return res
	}
	return Cascade(u.raw)
}

func (r *Resolver) matchRules(u utterance) (domain.IntentResult, bool) {
	for _, rule := range r.rules {
		if res, ok := rule.Match(u); ok {
			res.Source = rule.Name
			return res, true
		}
	}
	return domain.IntentResult{}, false
}

func (r *Resolver) observe(res domain.IntentResult) domain.IntentResult {
	metrics.IntentsResolved.WithLabelValues(string(res.Kind), res.Source).Inc()
	r.logger.Debug("Intent resolved",
		"kind", res.Kind,
		"source", res.Source,
		"casual_type", res.CasualType,
		"cuisines", res.CuisineFilters,
		"weather", res.Weather,
		"mood", res.Mood)
	return res
}

// Cascade is the local keyword classifier used when no remote result is
// available.
func Cascade(text string) domain.IntentResult {
	u := newUtterance(text)
	res := extractAttributes(u)
	res.Source = "cascade"
	food := u.has(foodKeywords)

	switch {
	case u.has(greetingKeywords):
		res.Kind, res.CasualType = domain.IntentCasual, domain.CasualGreeting
	case u.has(thanksKeywords):
		res.Kind, res.CasualType = domain.IntentCasual, domain.CasualThanks
	case u.has(explainKeywords):
		res.Kind = domain.IntentExplain
	case u.has(rejectKeywords):
		res.Kind = domain.IntentReject
	case u.has(acceptKeywords):
		res.Kind = domain.IntentAccept
	case u.has(chitchatKeywords) && !food:
		res.Kind, res.CasualType = domain.IntentCasual, domain.CasualChitchat
	case u.length < 5 && !food:
		res.Kind, res.CasualType = domain.IntentCasual, domain.CasualChitchat
	default:
		res.Kind = domain.IntentRecommend
	}

	// A question without any food word is small talk, not a request.
	if res.Kind == domain.IntentRecommend && !food && u.isQuestion() {
		res.Kind, res.CasualType = domain.IntentCasual, domain.CasualChitchat
	}
	return res
}

// extractAttributes fills emotion, cuisine, tag, weather and mood.
func extractAttributes(u utterance) domain.IntentResult {
	res := domain.IntentResult{
		Emotion:        detectEmotion(u),
		CuisineFilters: u.matchAll(cuisineKeywords),
		TagFilters:     u.matchAll(tagKeywords),
	}
	if w, ok := domain.ParseWeather(u.matchFirst(weatherKeywords)); ok {
		res.Weather = w
	}
	if m, ok := domain.ParseMood(u.matchFirst(moodKeywords)); ok {
		res.Mood = m
	}
	return res
}

func detectEmotion(u utterance) domain.Emotion {
	switch {
	case u.has(negativeKeywords):
		return domain.EmotionNegative
	case u.has(positiveKeywords):
		return domain.EmotionPositive
	}
	return domain.EmotionNeutral
}

func casual(t domain.CasualType) domain.IntentResult {
	return domain.IntentResult{Kind: domain.IntentCasual, CasualType: t, Emotion: domain.EmotionNeutral}
}
