// Package compose turns a recommendation and intent into reply text, using
// the remote generator when it is healthy and templates otherwise.
package compose

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/lunchbot/internal/domain"
	"github.com/ashureev/lunchbot/internal/llm"
	"github.com/ashureev/lunchbot/internal/resilience"
)

// DefaultTimeout bounds one remote phrasing call.
const DefaultTimeout = 2 * time.Second

// Source says where a text came from.
type Source string

// Text sources.
const (
	SourceRemote   Source = "remote"
	SourceTemplate Source = "template"
)

// Input is what the composer needs for a recommendation.
type Input struct {
	Utterance string
	Candidate domain.Candidate
	Intent    domain.IntentResult
	Weather   domain.Weather
	Count     int // recommendations so far in this session, including this one
	History   []domain.Message
}

// Composer builds reply texts. A nil generator means templates only.
type Composer struct {
	gen     llm.Generator
	ctrl    *resilience.Controller
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a composer.
func New(gen llm.Generator, ctrl *resilience.Controller, timeout time.Duration, logger *slog.Logger) *Composer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{gen: gen, ctrl: ctrl, timeout: timeout, logger: logger}
}

// Recommendation phrases a recommendation.
func (c *Composer) Recommendation(ctx context.Context, in Input) (string, Source) {
	text, src := c.remote(ctx, "compose_recommendation",
		llm.RecommendRequest(in.Utterance, in.Candidate, in.Intent, in.Weather, in.History),
		func(s string) bool { return strings.Contains(s, in.Candidate.Name) })
	if src != SourceRemote {
		text = RecommendationTemplate(in.Candidate, in.Intent, in.Weather)
	}
	return Escalation(in.Count) + text, src
}

// Template phrases a recommendation without any remote call.
func (c *Composer) Template(in Input) string {
	return Escalation(in.Count) + RecommendationTemplate(in.Candidate, in.Intent, in.Weather)
}

// Explanation says why cand was recommended.
func (c *Composer) Explanation(ctx context.Context, utterance string, cand domain.Candidate, weather domain.Weather, mood domain.Mood, history []domain.Message) (string, Source) {
	text, src := c.remote(ctx, "compose_explanation",
		llm.ExplainRequest(utterance, cand, weather, mood, history), nil)
	if src != SourceRemote {
		text = ExplanationTemplate(cand, weather, mood)
	}
	return text, src
}

// Casual answers small talk.
func (c *Composer) Casual(ctx context.Context, utterance string, t domain.CasualType, history []domain.Message) (string, Source) {
	// Greetings are answered locally; they are the bot's most common input.
	if t == domain.CasualGreeting {
		return CasualFallback(t), SourceTemplate
	}
	text, src := c.remote(ctx, "compose_casual", llm.CasualRequest(utterance, history), nil)
	if src != SourceRemote {
		text = CasualFallback(t)
	}
	return text, src
}

// remote runs one guarded generation. accept, when set, rejects replies that
// do not fit, e.g. ones that forgot the menu name.
func (c *Composer) remote(ctx context.Context, op string, req llm.Request, accept func(string) bool) (string, Source) {
	if c.gen == nil || c.ctrl == nil {
		return "", SourceTemplate
	}
	res := resilience.Call(ctx, c.ctrl, op, c.timeout, func(ctx context.Context, credential int) (string, error) {
		return c.gen.Generate(ctx, credential, req)
	})
	if !res.OK() {
		if res.Outcome != resilience.OutcomeSkipped {
			c.logger.Info("Remote phrasing unavailable, using template",
				"operation", op,
				"outcome", res.Outcome,
				"error", res.Err)
		}
		return "", SourceTemplate
	}
	text := strings.TrimSpace(res.Value)
	if text == "" || (accept != nil && !accept(text)) {
		c.logger.Info("Remote phrasing rejected, using template", "operation", op)
		return "", SourceTemplate
	}
	return text, SourceRemote
}
