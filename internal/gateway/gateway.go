// Package gateway runs one conversational turn end to end under a hard
// deadline and always produces a reply.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/lunchbot/internal/compose"
	"github.com/ashureev/lunchbot/internal/convlog"
	"github.com/ashureev/lunchbot/internal/domain"
	"github.com/ashureev/lunchbot/internal/metrics"
	"github.com/ashureev/lunchbot/internal/recommend"
	"github.com/ashureev/lunchbot/internal/weather"
)

// Defaults.
const (
	DefaultDeadline       = 4300 * time.Millisecond
	DefaultWeatherTimeout = 1500 * time.Millisecond
	DefaultHistoryLimit   = 6

	// emergencyBudget bounds the local recommendation on the emergency path.
	emergencyBudget = 300 * time.Millisecond
	channelKakao    = "kakao"
)

// Admitter decides whether a user may be served.
type Admitter interface {
	Allow(userID string) (bool, string)
}

// Sessions is the short-lived conversation memory.
type Sessions interface {
	GetOrCreate(userID string) domain.Session
	AppendMessage(userID, role, text string, rec *domain.Candidate)
	SetLastRecommendation(userID string, c domain.Candidate)
	RecentMessages(userID string, limit int) []domain.Message
}

// Resolver classifies utterances.
type Resolver interface {
	Resolve(ctx context.Context, text string, history []domain.Message) domain.IntentResult
	ResolveLocal(text string) domain.IntentResult
}

// Recommender picks one candidate.
type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) (domain.Candidate, error)
}

// Composer phrases replies.
type Composer interface {
	Recommendation(ctx context.Context, in compose.Input) (string, compose.Source)
	Template(in compose.Input) string
	Explanation(ctx context.Context, utterance string, cand domain.Candidate, w domain.Weather, m domain.Mood, history []domain.Message) (string, compose.Source)
	Casual(ctx context.Context, utterance string, t domain.CasualType, history []domain.Message) (string, compose.Source)
}

// WeatherSource reports current conditions.
type WeatherSource interface {
	Current(ctx context.Context) (weather.Report, error)
}

// Recorder persists accepted choices.
type Recorder interface {
	RecordChoice(ctx context.Context, userID string, c domain.Candidate) (*domain.HistoryRecord, error)
}

// Config holds the gateway's collaborators and budgets. Weather, Recorder
// and ConvLog are optional.
type Config struct {
	Limiter     Admitter
	Sessions    Sessions
	Resolver    Resolver
	Recommender Recommender
	Composer    Composer
	Weather     WeatherSource
	Recorder    Recorder
	ConvLog     convlog.Logger
	Logger      *slog.Logger

	Deadline       time.Duration
	WeatherTimeout time.Duration
	HistoryLimit   int
	CreatorName    string
}

// Gateway handles utterances.
type Gateway struct {
	limiter     Admitter
	sessions    Sessions
	resolver    Resolver
	recommender Recommender
	composer    Composer
	weather     WeatherSource
	recorder    Recorder
	convlog     convlog.Logger
	logger      *slog.Logger

	deadline       time.Duration
	weatherTimeout time.Duration
	historyLimit   int
	creatorName    string
	easterEggs     []string
}

// New creates a gateway.
func New(cfg Config) (*Gateway, error) {
	if cfg.Limiter == nil || cfg.Sessions == nil || cfg.Resolver == nil ||
		cfg.Recommender == nil || cfg.Composer == nil {
		return nil, errors.New("gateway: limiter, sessions, resolver, recommender and composer are required")
	}
	g := &Gateway{
		limiter:        cfg.Limiter,
		sessions:       cfg.Sessions,
		resolver:       cfg.Resolver,
		recommender:    cfg.Recommender,
		composer:       cfg.Composer,
		weather:        cfg.Weather,
		recorder:       cfg.Recorder,
		convlog:        cfg.ConvLog,
		logger:         cfg.Logger,
		deadline:       cfg.Deadline,
		weatherTimeout: cfg.WeatherTimeout,
		historyLimit:   cfg.HistoryLimit,
		creatorName:    cfg.CreatorName,
	}
	if g.convlog == nil {
		g.convlog = convlog.Noop{}
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	if g.deadline <= 0 {
		g.deadline = DefaultDeadline
	}
	if g.weatherTimeout <= 0 {
		g.weatherTimeout = DefaultWeatherTimeout
	}
	if g.historyLimit <= 0 {
		g.historyLimit = DefaultHistoryLimit
	}
	g.easterEggs = easterEggKeywords(cfg.CreatorName)
	return g, nil
}

// turn is the outcome of one pipeline run. The pipeline itself never
// touches the session; Handle commits the turn so an abandoned run leaves
// no trace.
type turn struct {
	reply       domain.Reply
	recommended *domain.Candidate
}

type pipelineResult struct {
	turn turn
	err  error
}

// Handle answers one utterance. It never fails: deadline overruns, errors
// and panics all end in the local emergency reply.
func (g *Gateway) Handle(ctx context.Context, u domain.Utterance, params map[string]any) domain.Reply {
	start := time.Now()
	if u.UserID == "" {
		u.UserID = "anonymous"
	}
	if u.ReceivedAt.IsZero() {
		u.ReceivedAt = start
	}
	text := strings.TrimSpace(u.Text)
	logger := g.logger.With("user_id", u.UserID, "request_id", middleware.GetReqID(ctx))

	g.logEvent(u, convlog.DirectionInbound, "utterance", u.Text, domain.Reply{}, "")

	if g.isEasterEgg(text) {
		reply := domain.Reply{Text: compose.EasterEggText(g.creatorName), Path: domain.PathEasterEgg}
		return g.finish(u, turn{reply: reply}, start, logger)
	}

	if ok, reason := g.limiter.Allow(u.UserID); !ok {
		logger.Info("Request denied by rate limiter", "reason", reason, "error", domain.ErrAdmissionDenied)
		reply := domain.Reply{Text: compose.DeniedText(reason), Path: domain.PathDenied}
		return g.finish(u, turn{reply: reply}, start, logger)
	}

	runCtx, cancel := context.WithTimeout(ctx, g.deadline)
	defer cancel()

	// Buffered so an abandoned pipeline can always deliver and exit.
	done := make(chan pipelineResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Pipeline panic", "panic", r, "stack", string(debug.Stack()))
				done <- pipelineResult{err: fmt.Errorf("pipeline panic: %v", r)}
			}
		}()
		t, err := g.pipeline(runCtx, u.UserID, text, params)
		done <- pipelineResult{turn: t, err: err}
	}()

	var t turn
	select {
	case res := <-done:
		if res.err != nil {
			reason := "error"
			if errors.Is(res.err, context.DeadlineExceeded) {
				reason = "deadline"
			}
			logger.Warn("Pipeline failed, using emergency path", "reason", reason, "error", res.err)
			t = g.emergency(ctx, u.UserID, text, params, reason)
		} else {
			t = res.turn
		}
	case <-runCtx.Done():
		logger.Warn("Request deadline exceeded, using emergency path",
			"deadline", g.deadline,
			"error", domain.ErrDeadlineExceeded)
		t = g.emergency(ctx, u.UserID, text, params, "deadline")
	}

	g.commit(u.UserID, text, t)
	return g.finish(u, t, start, logger)
}

func (g *Gateway) commit(userID, text string, t turn) {
	g.sessions.AppendMessage(userID, domain.RoleUser, text, t.recommended)
	if t.recommended != nil {
		g.sessions.SetLastRecommendation(userID, *t.recommended)
	}
	g.sessions.AppendMessage(userID, domain.RoleBot, t.reply.Text, nil)
}

func (g *Gateway) finish(u domain.Utterance, t turn, start time.Time, logger *slog.Logger) domain.Reply {
	reply := t.reply
	if reply.Path == "" {
		reply.Path = domain.PathNormal
	}
	elapsed := time.Since(start)
	metrics.RequestsTotal.WithLabelValues(reply.Path, string(reply.Intent)).Inc()
	metrics.RequestDuration.WithLabelValues(reply.Path).Observe(elapsed.Seconds())

	var menu string
	if t.recommended != nil {
		menu = t.recommended.Name
	}
	g.logEvent(u, convlog.DirectionOutbound, "reply", reply.Text, reply, menu)
	logger.Info("Request handled",
		"path", reply.Path,
		"intent", reply.Intent,
		"duration_ms", elapsed.Milliseconds())
	return reply
}

func (g *Gateway) logEvent(u domain.Utterance, direction, eventType, content string, reply domain.Reply, menu string) {
	g.convlog.Log(convlog.Event{
		UserID:     u.UserID,
		SessionID:  u.ReceivedAt.Format("2006-01-02"),
		Channel:    channelKakao,
		Direction:  direction,
		EventType:  eventType,
		Intent:     string(reply.Intent),
		Path:       reply.Path,
		Menu:       menu,
		ContentRaw: content,
	})
}

func (g *Gateway) isEasterEgg(text string) bool {
	compact := strings.ReplaceAll(text, " ", "")
	for _, kw := range g.easterEggs {
		if strings.Contains(compact, kw) {
			return true
		}
	}
	return false
}

func easterEggKeywords(creator string) []string {
	kws := []string{"만든사람", "누가만듬", "누가만들었", "개발자", "제작자"}
	if c := strings.ReplaceAll(strings.TrimSpace(creator), " ", ""); c != "" {
		kws = append(kws, c)
	}
	return kws
}

// mentionsFood reports whether small talk should carry a recommendation.
func mentionsFood(text string) bool {
	lower := strings.ToLower(text)
	for _, w := range []string{"점심", "추천", "메뉴", "먹", "배고", "식사"} {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func isTiny(text string) bool {
	return utf8.RuneCountInString(text) < 3
}
