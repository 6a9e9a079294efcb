package intent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"github.com/ashureev/lunchbot/internal/domain"
	"github.com/ashureev/lunchbot/internal/llm"
	"github.com/ashureev/lunchbot/internal/resilience"
)

// DefaultClassifyTimeout bounds one remote classification.
const DefaultClassifyTimeout = 1800 * time.Millisecond

// RemoteClassifier asks the remote generator for a JSON classification.
type RemoteClassifier struct {
	gen     llm.Generator
	ctrl    *resilience.Controller
	timeout time.Duration
	logger  *slog.Logger
}

// NewRemoteClassifier creates a classifier guarded by ctrl.
func NewRemoteClassifier(gen llm.Generator, ctrl *resilience.Controller, timeout time.Duration, logger *slog.Logger) *RemoteClassifier {
	if timeout <= 0 {
		timeout = DefaultClassifyTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteClassifier{gen: gen, ctrl: ctrl, timeout: timeout, logger: logger}
}

// Classify implements Classifier. The second return value is false when the
// breaker is cooling down or the call failed for any reason.
func (c *RemoteClassifier) Classify(ctx context.Context, text string, history []domain.Message) (domain.IntentResult, bool) {
	req := llm.ClassifyRequest(text, history)
	res := resilience.Call(ctx, c.ctrl, "classify", c.timeout, func(ctx context.Context, credential int) (domain.IntentResult, error) {
		raw, err := c.gen.Generate(ctx, credential, req)
		if err != nil {
			return domain.IntentResult{}, err
		}
		return ParseClassification(raw)
	})
	if !res.OK() {
		if res.Outcome != resilience.OutcomeSkipped {
			c.logger.Info("Remote classification unavailable, using local rules",
				"outcome", res.Outcome,
				"error", res.Err)
		}
		return domain.IntentResult{}, false
	}
	return res.Value, true
}

type classification struct {
	Intent         string   `json:"intent"`
	CasualType     *string  `json:"casual_type"`
	Emotion        string   `json:"emotion"`
	CuisineFilters []string `json:"cuisine_filters"`
	TagFilters     []string `json:"tag_filters"`
	Weather        *string  `json:"weather"`
	Mood           *string  `json:"mood"`
}

var knownCuisines = map[string]bool{"한식": true, "중식": true, "일식": true, "양식": true, "분식": true}

var knownTags = map[string]bool{
	domain.TagSoup: true, domain.TagHot: true, domain.TagNoodle: true, domain.TagSpicy: true,
	domain.TagHeavy: true, domain.TagLight: true, domain.TagMeat: true, domain.TagRice: true,
	domain.TagPremium: true,
}

// ParseClassification validates a remote JSON reply. An unknown intent is
// malformed; unknown optional attributes are dropped.
func ParseClassification(raw string) (domain.IntentResult, error) {
	var c classification
	if err := json.Unmarshal([]byte(llm.StripCodeFence(raw)), &c); err != nil {
		return domain.IntentResult{}, fmt.Errorf("decode classification: %v: %w", err, resilience.ErrMalformed)
	}

	kind := domain.IntentKind(c.Intent)
	if !kind.Valid() {
		return domain.IntentResult{}, fmt.Errorf("unknown intent %q: %w", c.Intent, resilience.ErrMalformed)
	}

	res := domain.IntentResult{Kind: kind, Emotion: domain.EmotionNeutral}
	switch domain.Emotion(c.Emotion) {
	case domain.EmotionNegative, domain.EmotionPositive:
		res.Emotion = domain.Emotion(c.Emotion)
	}

	if kind == domain.IntentCasual {
		res.CasualType = domain.CasualChitchat
		if c.CasualType != nil {
			switch t := domain.CasualType(*c.CasualType); t {
			case domain.CasualGreeting, domain.CasualThanks:
				res.CasualType = t
			}
		}
	}

	for _, cu := range c.CuisineFilters {
		if knownCuisines[cu] {
			res.CuisineFilters = append(res.CuisineFilters, cu)
		}
	}
	for _, t := range c.TagFilters {
		if knownTags[t] {
			res.TagFilters = append(res.TagFilters, t)
		}
	}
	if c.Weather != nil {
		if w, ok := domain.ParseWeather(*c.Weather); ok {
			res.Weather = w
		}
	}
	if c.Mood != nil {
		if m, ok := domain.ParseMood(*c.Mood); ok {
			res.Mood = m
		}
	}
	return res, nil
}
