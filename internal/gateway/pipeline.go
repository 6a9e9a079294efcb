package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ashureev/lunchbot/internal/compose"
	"github.com/ashureev/lunchbot/internal/domain"
	"github.com/ashureev/lunchbot/internal/metrics"
	"github.com/ashureev/lunchbot/internal/recommend"
)

// request carries what every branch of the dispatch needs.
type request struct {
	userID    string
	text      string
	intent    domain.IntentResult
	weather   domain.Weather
	mood      domain.Mood
	history   []domain.Message
	session   domain.Session
	lastRec   *domain.Candidate
	emergency bool
}

// pipeline resolves, recommends and composes. It must not mutate sessions.
func (g *Gateway) pipeline(ctx context.Context, userID, text string, params map[string]any) (turn, error) {
	sess := g.sessions.GetOrCreate(userID)
	history := g.sessions.RecentMessages(userID, g.historyLimit)

	live := g.startWeather(ctx)
	intent := g.resolver.Resolve(ctx, text, history)

	var liveWeather domain.Weather
	select {
	case liveWeather = <-live:
	case <-ctx.Done():
		return turn{}, ctx.Err()
	}

	req := request{
		userID:  userID,
		text:    text,
		intent:  intent,
		weather: pickWeather(liveWeather, params, intent),
		mood:    pickMood(params, intent),
		history: history,
		session: sess,
		lastRec: sess.LastRecommendation,
	}
	t, err := g.dispatch(ctx, req)
	if err == nil && ctx.Err() != nil {
		// Finished after the deadline; the caller has moved on.
		err = ctx.Err()
	}
	return t, err
}

// startWeather fetches current conditions concurrently with intent
// resolution. The channel yields "" when weather is unknown.
func (g *Gateway) startWeather(ctx context.Context) <-chan domain.Weather {
	out := make(chan domain.Weather, 1)
	if g.weather == nil {
		out <- ""
		return out
	}
	go func() {
		wctx, cancel := context.WithTimeout(ctx, g.weatherTimeout)
		defer cancel()
		r, err := g.weather.Current(wctx)
		if err != nil {
			g.logger.Debug("Weather unavailable", "error", err)
			out <- ""
			return
		}
		out <- r.Condition
	}()
	return out
}

// pickWeather prefers live weather, then the webhook parameter, then what
// the user said.
func pickWeather(live domain.Weather, params map[string]any, intent domain.IntentResult) domain.Weather {
	if live != "" {
		return live
	}
	if w, ok := domain.ParseWeather(stringParam(params, "weather")); ok {
		return w
	}
	return intent.Weather
}

func pickMood(params map[string]any, intent domain.IntentResult) domain.Mood {
	if m, ok := domain.ParseMood(stringParam(params, "mood")); ok {
		return m
	}
	return intent.Mood
}

func stringParam(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	switch v := params[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return ""
	}
}

func (g *Gateway) dispatch(ctx context.Context, req request) (turn, error) {
	switch req.intent.Kind {
	case domain.IntentHelp:
		return g.help(req), nil
	case domain.IntentCasual:
		return g.casual(ctx, req)
	case domain.IntentExplain:
		return g.explain(ctx, req), nil
	case domain.IntentReject:
		return g.reject(ctx, req)
	case domain.IntentAccept:
		return g.accept(ctx, req), nil
	default:
		req.intent.Kind = domain.IntentRecommend
		return g.recommendTurn(ctx, req)
	}
}

func (g *Gateway) help(req request) turn {
	return turn{reply: domain.Reply{
		Text:         compose.HelpText,
		QuickReplies: compose.StarterQuickReplies(),
		Intent:       domain.IntentHelp,
	}}
}

func (g *Gateway) casual(ctx context.Context, req request) (turn, error) {
	var text string
	if req.emergency {
		text = compose.CasualFallback(req.intent.CasualType)
	} else {
		text, _ = g.composer.Casual(ctx, req.text, req.intent.CasualType, req.history)
	}

	t := turn{reply: domain.Reply{Text: text, Intent: domain.IntentCasual}}
	autoRecommend := mentionsFood(req.text) ||
		(isTiny(req.text) && req.intent.CasualType == domain.CasualChitchat)
	if !autoRecommend {
		if req.intent.CasualType == domain.CasualGreeting {
			t.reply.QuickReplies = compose.StarterQuickReplies()
		}
		return t, nil
	}

	cand, err := g.pick(ctx, req, nil)
	if errors.Is(err, domain.ErrNoCandidate) {
		return t, nil
	}
	if err != nil {
		return turn{}, err
	}
	t.reply.Text = text + compose.CasualBridge + g.phrase(ctx, req, cand)
	t.reply.QuickReplies = compose.RecommendQuickReplies()
	t.recommended = &cand
	return t, nil
}

func (g *Gateway) explain(ctx context.Context, req request) turn {
	if req.lastRec == nil {
		return turn{reply: domain.Reply{Text: compose.NothingYetText, Intent: domain.IntentExplain}}
	}
	var text string
	if req.emergency {
		text = compose.ExplanationTemplate(*req.lastRec, req.weather, req.mood)
	} else {
		text, _ = g.composer.Explanation(ctx, req.text, *req.lastRec, req.weather, req.mood, req.history)
	}
	return turn{reply: domain.Reply{
		Text:         text,
		QuickReplies: compose.RecommendQuickReplies(),
		Intent:       domain.IntentExplain,
	}}
}

func (g *Gateway) reject(ctx context.Context, req request) (turn, error) {
	var excluded []string
	if req.lastRec != nil {
		excluded = []string{req.lastRec.Name}
	}
	cand, err := g.pick(ctx, req, excluded)
	if err == nil && req.lastRec != nil && cand.Name == req.lastRec.Name {
		err = domain.ErrNoCandidate
	}
	if errors.Is(err, domain.ErrNoCandidate) {
		return turn{reply: domain.Reply{Text: compose.NoOtherText, Intent: domain.IntentReject}}, nil
	}
	if err != nil {
		return turn{}, err
	}
	return turn{
		reply: domain.Reply{
			Text:         compose.RejectPrefix + g.phrase(ctx, req, cand),
			QuickReplies: compose.RecommendQuickReplies(),
			Intent:       domain.IntentReject,
		},
		recommended: &cand,
	}, nil
}

func (g *Gateway) accept(ctx context.Context, req request) turn {
	if req.lastRec == nil {
		return turn{reply: domain.Reply{
			Text:         compose.AcceptNoRecText,
			QuickReplies: compose.StarterQuickReplies(),
			Intent:       domain.IntentAccept,
		}}
	}
	if g.recorder != nil && !req.emergency {
		if _, err := g.recorder.RecordChoice(ctx, req.userID, *req.lastRec); err != nil {
			g.logger.Warn("Failed to record choice",
				"user_id", req.userID,
				"menu", req.lastRec.Name,
				"error", err)
		}
	}
	return turn{reply: domain.Reply{Text: compose.AcceptText(*req.lastRec), Intent: domain.IntentAccept}}
}

func (g *Gateway) recommendTurn(ctx context.Context, req request) (turn, error) {
	cand, err := g.pick(ctx, req, nil)
	if errors.Is(err, domain.ErrNoCandidate) {
		return turn{reply: domain.Reply{Text: compose.NoCandidateText, Intent: domain.IntentRecommend}}, nil
	}
	if err != nil {
		return turn{}, err
	}
	return turn{
		reply: domain.Reply{
			Text:         g.phrase(ctx, req, cand),
			QuickReplies: compose.RecommendQuickReplies(),
			Intent:       domain.IntentRecommend,
		},
		recommended: &cand,
	}, nil
}

func (g *Gateway) pick(ctx context.Context, req request, excluded []string) (domain.Candidate, error) {
	return g.recommender.Recommend(ctx, recommend.Request{
		UserID:         req.userID,
		Weather:        req.weather,
		Mood:           req.mood,
		CuisineFilters: req.intent.CuisineFilters,
		TagFilters:     req.intent.TagFilters,
		Excluded:       excluded,
	})
}

func (g *Gateway) phrase(ctx context.Context, req request, cand domain.Candidate) string {
	in := compose.Input{
		Utterance: req.text,
		Candidate: cand,
		Intent:    req.intent,
		Weather:   req.weather,
		Count:     req.session.RecommendationCount + 1,
		History:   req.history,
	}
	if req.emergency {
		return g.composer.Template(in)
	}
	text, _ := g.composer.Recommendation(ctx, in)
	return text
}

// emergency answers with local rules and templates only. It runs on a fresh
// context because the request deadline has usually already fired.
func (g *Gateway) emergency(parent context.Context, userID, text string, params map[string]any, reason string) turn {
	metrics.EmergencyTotal.WithLabelValues(reason).Inc()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), emergencyBudget)
	defer cancel()

	intent := g.resolver.ResolveLocal(text)
	sess := g.sessions.GetOrCreate(userID)
	req := request{
		userID:    userID,
		text:      text,
		intent:    intent,
		weather:   pickWeather("", params, intent),
		mood:      pickMood(params, intent),
		session:   sess,
		lastRec:   sess.LastRecommendation,
		emergency: true,
	}

	t, err := g.safeDispatch(ctx, req)
	if err != nil {
		g.logger.Error("Emergency path failed", "user_id", userID, "error", err)
		t = turn{reply: domain.Reply{Text: compose.EmergencyText, Intent: intent.Kind}}
	}
	t.reply.Path = domain.PathEmergency
	return t
}

func (g *Gateway) safeDispatch(ctx context.Context, req request) (t turn, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("emergency dispatch panic: %v", r)
		}
	}()
	return g.dispatch(ctx, req)
}
