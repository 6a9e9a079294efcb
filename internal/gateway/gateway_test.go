package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ashureev/lunchbot/internal/catalog"
	"github.com/ashureev/lunchbot/internal/compose"
	"github.com/ashureev/lunchbot/internal/convlog"
	"github.com/ashureev/lunchbot/internal/domain"
	"github.com/ashureev/lunchbot/internal/intent"
	"github.com/ashureev/lunchbot/internal/llm"
	"github.com/ashureev/lunchbot/internal/ratelimit"
	"github.com/ashureev/lunchbot/internal/recommend"
	"github.com/ashureev/lunchbot/internal/resilience"
	"github.com/ashureev/lunchbot/internal/session"
	"github.com/ashureev/lunchbot/internal/weather"
)

var testMenus = []domain.Candidate{
	{Name: "김치찌개", Area: catalog.AreaBasement, Category: "한식", Cuisine: "한식", Tags: []string{domain.TagSoup, domain.TagHot}},
	{Name: "돈코츠라멘", Area: catalog.AreaMeokja, Category: "일식", Cuisine: "일식", Tags: []string{domain.TagNoodle, domain.TagHot}},
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []domain.Candidate
}

func (f *fakeRecorder) RecordChoice(_ context.Context, _ string, c domain.Candidate) (*domain.HistoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, c)
	return &domain.HistoryRecord{MenuName: c.Name}, nil
}

type fakeWeather struct {
	report weather.Report
	err    error
}

func (f fakeWeather) Current(context.Context) (weather.Report, error) {
	return f.report, f.err
}

type memoryConvLog struct {
	mu     sync.Mutex
	events []convlog.Event
}

func (m *memoryConvLog) Log(e convlog.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

func (m *memoryConvLog) Close() error { return nil }

type panicOnce struct {
	next  Recommender
	calls atomic.Int32
}

func (p *panicOnce) Recommend(ctx context.Context, req recommend.Request) (domain.Candidate, error) {
	if p.calls.Add(1) == 1 {
		panic("boom")
	}
	return p.next.Recommend(ctx, req)
}

type testDeps struct {
	limits      ratelimit.Limits
	gen         llm.Generator
	recommender Recommender
	weather     WeatherSource
	deadline    time.Duration
}

type testRig struct {
	gw       *Gateway
	sessions *session.Store
	recorder *fakeRecorder
	convlog  *memoryConvLog
}

func newRig(t *testing.T, deps testDeps) *testRig {
	t.Helper()

	if deps.limits == (ratelimit.Limits{}) {
		deps.limits = ratelimit.DefaultLimits
	}
	sessions := session.NewStore(30*time.Minute, 10)
	engine := recommend.NewEngine(catalog.NewStatic(testMenus), nil)

	var ctrl *resilience.Controller
	var classifier intent.Classifier
	if deps.gen != nil {
		ctrl = resilience.NewController(deps.gen.Credentials(), time.Second, time.Minute, nil)
		classifier = intent.NewRemoteClassifier(deps.gen, ctrl, 2*time.Second, nil)
	}
	var rec Recommender = engine
	if deps.recommender != nil {
		rec = deps.recommender
	}
	recorder := &fakeRecorder{}
	convLog := &memoryConvLog{}

	gw, err := New(Config{
		Limiter:     ratelimit.New(deps.limits),
		Sessions:    sessions,
		Resolver:    intent.NewResolver(classifier, nil),
		Recommender: rec,
		Composer:    compose.New(deps.gen, ctrl, 2*time.Second, nil),
		Weather:     deps.weather,
		Recorder:    recorder,
		ConvLog:     convLog,
		Deadline:    deps.deadline,
		CreatorName: "홍길동",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return &testRig{gw: gw, sessions: sessions, recorder: recorder, convlog: convLog}
}

func (r *testRig) ask(userID, text string) domain.Reply {
	return r.gw.Handle(context.Background(), domain.Utterance{UserID: userID, Text: text}, nil)
}

func mentionsMenu(text string) bool {
	for _, m := range testMenus {
		if strings.Contains(text, m.Name) {
			return true
		}
	}
	return false
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty config")
	}
}

func TestRecommendStoresLastRecommendation(t *testing.T) {
	t.Parallel()

	rig := newRig(t, testDeps{})
	reply := rig.ask("u1", "점심 추천")

	if reply.Path != domain.PathNormal || reply.Intent != domain.IntentRecommend {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if !mentionsMenu(reply.Text) {
		t.Fatalf("expected a menu in %q", reply.Text)
	}
	if len(reply.QuickReplies) == 0 {
		t.Fatal("expected quick replies on a recommendation")
	}

	last, ok := rig.sessions.LastRecommendation("u1")
	if !ok || !strings.Contains(reply.Text, last.Name) {
		t.Fatalf("expected last recommendation %q in reply", last.Name)
	}
	if n := len(rig.sessions.RecentMessages("u1", 10)); n != 2 {
		t.Fatalf("expected user and bot messages, got %d", n)
	}
}

func TestConversationLogCarriesRecommendedMenu(t *testing.T) {
	t.Parallel()

	rig := newRig(t, testDeps{})
	rig.ask("u1", "점심 추천")
	rig.ask("u1", "안녕")
	last, _ := rig.sessions.LastRecommendation("u1")

	rig.convlog.mu.Lock()
	defer rig.convlog.mu.Unlock()
	if len(rig.convlog.events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(rig.convlog.events))
	}
	in, out, greet := rig.convlog.events[0], rig.convlog.events[1], rig.convlog.events[3]
	if in.Direction != convlog.DirectionInbound || in.Menu != "" {
		t.Fatalf("unexpected inbound event: %+v", in)
	}
	if out.Direction != convlog.DirectionOutbound || out.Menu != last.Name {
		t.Fatalf("expected outbound menu %q, got %+v", last.Name, out)
	}
	if greet.Menu != "" {
		t.Fatalf("greeting reply should carry no menu: %+v", greet)
	}
}

func TestGreetingMakesNoRemoteCall(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	gen := llm.Func{Fn: func(context.Context, int, llm.Request) (string, error) {
		calls.Add(1)
		return "", errors.New("should not be called")
	}}
	rig := newRig(t, testDeps{gen: gen})

	reply := rig.ask("u1", "안녕")
	if reply.Intent != domain.IntentCasual {
		t.Fatalf("expected casual intent, got %+v", reply)
	}
	if reply.Text != compose.CasualFallback(domain.CasualGreeting) {
		t.Fatalf("expected greeting template, got %q", reply.Text)
	}
	if got := calls.Load(); got != 0 {
		t.Fatalf("expected no remote calls, got %d", got)
	}
}

func TestHangingRemoteStillAnswersWithinDeadline(t *testing.T) {
	t.Parallel()

	gen := llm.Func{Fn: func(ctx context.Context, _ int, _ llm.Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	rig := newRig(t, testDeps{gen: gen, deadline: 150 * time.Millisecond})

	start := time.Now()
	reply := rig.ask("u1", "오늘 점심 뭐 먹을까")
	elapsed := time.Since(start)

	if elapsed > time.Second {
		t.Fatalf("reply took %v", elapsed)
	}
	if reply.Path != domain.PathEmergency {
		t.Fatalf("expected emergency path, got %+v", reply)
	}
	if !mentionsMenu(reply.Text) {
		t.Fatalf("expected a local recommendation, got %q", reply.Text)
	}
	if _, ok := rig.sessions.LastRecommendation("u1"); !ok {
		t.Fatal("expected emergency recommendation to be remembered")
	}
}

func TestPanicFallsBackToEmergency(t *testing.T) {
	t.Parallel()

	engine := recommend.NewEngine(catalog.NewStatic(testMenus), nil)
	rig := newRig(t, testDeps{recommender: &panicOnce{next: engine}})

	reply := rig.ask("u1", "점심 추천")
	if reply.Path != domain.PathEmergency {
		t.Fatalf("expected emergency path, got %+v", reply)
	}
	if !mentionsMenu(reply.Text) {
		t.Fatalf("expected a recommendation, got %q", reply.Text)
	}
}

func TestRateLimitDenies(t *testing.T) {
	t.Parallel()

	rig := newRig(t, testDeps{limits: ratelimit.Limits{PerMinute: 2, PerHour: 50, PerDay: 200}})

	for i := 0; i < 2; i++ {
		if reply := rig.ask("u1", "점심 추천"); reply.Path != domain.PathNormal {
			t.Fatalf("request %d unexpectedly %s", i, reply.Path)
		}
	}
	reply := rig.ask("u1", "점심 추천")
	if reply.Path != domain.PathDenied || !strings.HasPrefix(reply.Text, compose.DeniedTextPrefix) {
		t.Fatalf("expected denial, got %+v", reply)
	}
	if other := rig.ask("u2", "점심 추천"); other.Path != domain.PathNormal {
		t.Fatalf("expected other user allowed, got %s", other.Path)
	}
}

func TestEasterEggSkipsAdmission(t *testing.T) {
	t.Parallel()

	rig := newRig(t, testDeps{limits: ratelimit.Limits{PerMinute: 1, PerHour: 1, PerDay: 1}})

	for i := 0; i < 3; i++ {
		reply := rig.ask("u1", "이거 누가 만든 사람이야?")
		if reply.Path != domain.PathEasterEgg || !strings.Contains(reply.Text, "홍길동") {
			t.Fatalf("unexpected reply: %+v", reply)
		}
	}
}

func TestRejectExcludesLastRecommendation(t *testing.T) {
	t.Parallel()

	rig := newRig(t, testDeps{})
	rig.ask("u1", "점심 추천")
	first, _ := rig.sessions.LastRecommendation("u1")

	reply := rig.ask("u1", "다른 거")
	if reply.Intent != domain.IntentReject || !strings.HasPrefix(reply.Text, compose.RejectPrefix) {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	second, _ := rig.sessions.LastRecommendation("u1")
	if second.Name == first.Name {
		t.Fatalf("expected a different menu than %q", first.Name)
	}
}

func TestAcceptRecordsChoice(t *testing.T) {
	t.Parallel()

	rig := newRig(t, testDeps{})
	rig.ask("u1", "점심 추천")
	last, _ := rig.sessions.LastRecommendation("u1")

	reply := rig.ask("u1", "좋아요, 거기로 갈게요")
	if reply.Intent != domain.IntentAccept || reply.Text != compose.AcceptText(last) {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	rig.recorder.mu.Lock()
	defer rig.recorder.mu.Unlock()
	if len(rig.recorder.records) != 1 || rig.recorder.records[0].Name != last.Name {
		t.Fatalf("expected %q recorded, got %+v", last.Name, rig.recorder.records)
	}
}

func TestShortFoodPhrasesKeepAcceptAndReject(t *testing.T) {
	t.Parallel()

	rig := newRig(t, testDeps{})
	rig.ask("u1", "점심 추천")
	first, _ := rig.sessions.LastRecommendation("u1")

	reply := rig.ask("u1", "이거 말고 다른 메뉴")
	if reply.Intent != domain.IntentReject {
		t.Fatalf("expected reject, got %+v", reply)
	}
	second, _ := rig.sessions.LastRecommendation("u1")
	if second.Name == first.Name {
		t.Fatalf("expected a different menu than %q", first.Name)
	}

	reply = rig.ask("u1", "그거 먹을게")
	if reply.Intent != domain.IntentAccept || reply.Text != compose.AcceptText(second) {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	rig.recorder.mu.Lock()
	defer rig.recorder.mu.Unlock()
	if len(rig.recorder.records) != 1 || rig.recorder.records[0].Name != second.Name {
		t.Fatalf("expected %q recorded, got %+v", second.Name, rig.recorder.records)
	}
}

func TestExplainWithoutRecommendation(t *testing.T) {
	t.Parallel()

	rig := newRig(t, testDeps{})
	reply := rig.ask("u1", "왜?")
	if reply.Intent != domain.IntentExplain || reply.Text != compose.NothingYetText {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}

func TestExplainAfterRecommendation(t *testing.T) {
	t.Parallel()

	rig := newRig(t, testDeps{})
	rig.ask("u1", "점심 추천")
	last, _ := rig.sessions.LastRecommendation("u1")

	reply := rig.ask("u1", "왜")
	if reply.Intent != domain.IntentExplain || !strings.Contains(reply.Text, last.Name) {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}

func TestLiveWeatherOutranksParams(t *testing.T) {
	t.Parallel()

	live := domain.Weather("rain")
	if got := pickWeather(live, map[string]any{"weather": "hot"}, domain.IntentResult{Weather: domain.WeatherSnow}); got != live {
		t.Fatalf("expected live weather, got %s", got)
	}
	if got := pickWeather("", map[string]any{"weather": "hot"}, domain.IntentResult{Weather: domain.WeatherSnow}); got != domain.WeatherHot {
		t.Fatalf("expected param weather, got %s", got)
	}
	if got := pickWeather("", nil, domain.IntentResult{Weather: domain.WeatherSnow}); got != domain.WeatherSnow {
		t.Fatalf("expected intent weather, got %s", got)
	}
}

func TestWeatherFailureDoesNotBreakRequest(t *testing.T) {
	t.Parallel()

	rig := newRig(t, testDeps{weather: fakeWeather{err: errors.New("down")}})
	reply := rig.ask("u1", "점심 추천")
	if reply.Path != domain.PathNormal || !mentionsMenu(reply.Text) {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}

func TestCasualTinyUtteranceAutoRecommends(t *testing.T) {
	t.Parallel()

	rig := newRig(t, testDeps{})
	reply := rig.ask("u1", ".")
	if reply.Intent != domain.IntentCasual {
		t.Fatalf("expected casual intent, got %+v", reply)
	}
	if !strings.Contains(reply.Text, compose.CasualBridge) || !mentionsMenu(reply.Text) {
		t.Fatalf("expected small talk plus a recommendation, got %q", reply.Text)
	}
}
