package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/ashureev/lunchbot/internal/compose"
	"github.com/ashureev/lunchbot/internal/domain"
)

type fakeResponder struct {
	mu     sync.Mutex
	last   domain.Utterance
	params map[string]any
	reply  domain.Reply
}

func (f *fakeResponder) Handle(_ context.Context, u domain.Utterance, params map[string]any) domain.Reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = u
	f.params = params
	return f.reply
}

func newSkillRouter(resp *fakeResponder, perIP int) http.Handler {
	r := chi.NewRouter()
	NewSkillHandler(resp, perIP, nil).RegisterRoutes(r)
	return r
}

func postSkill(t *testing.T, h http.Handler, path, body string) SkillResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp SkillResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode skill response: %v", err)
	}
	if resp.Version != "2.0" || len(resp.Template.Outputs) != 1 {
		t.Fatalf("malformed skill response: %s", w.Body.String())
	}
	return resp
}

func TestSkillPassesUtteranceAndParams(t *testing.T) {
	t.Parallel()

	resp := &fakeResponder{reply: domain.Reply{
		Text:         "추천드립니다: [김치찌개]",
		QuickReplies: []domain.QuickReply{{Label: "왜? 🤔", MessageText: "왜?"}},
	}}
	h := newSkillRouter(resp, 0)

	body := `{"userRequest":{"utterance":"점심 추천","user":{"id":"abc"}},"action":{"params":{"weather":"rain"}}}`
	out := postSkill(t, h, "/api/lunch", body)

	if out.Template.Outputs[0].SimpleText.Text != "추천드립니다: [김치찌개]" {
		t.Fatalf("unexpected text: %q", out.Template.Outputs[0].SimpleText.Text)
	}
	if len(out.Template.QuickReplies) != 1 || out.Template.QuickReplies[0].Action != "message" {
		t.Fatalf("unexpected quick replies: %+v", out.Template.QuickReplies)
	}

	resp.mu.Lock()
	defer resp.mu.Unlock()
	if resp.last.UserID != "abc" || resp.last.Text != "점심 추천" {
		t.Fatalf("unexpected utterance: %+v", resp.last)
	}
	if resp.params["weather"] != "rain" {
		t.Fatalf("unexpected params: %v", resp.params)
	}
}

func TestSkillAliasAndAnonymousUser(t *testing.T) {
	t.Parallel()

	resp := &fakeResponder{reply: domain.Reply{Text: "ok"}}
	h := newSkillRouter(resp, 0)

	postSkill(t, h, "/skill", `{"userRequest":{"utterance":"안녕"}}`)

	resp.mu.Lock()
	defer resp.mu.Unlock()
	if !strings.HasPrefix(resp.last.UserID, "anon_") {
		t.Fatalf("expected pseudonymous user, got %q", resp.last.UserID)
	}
}

func TestSkillUndecodableBodyStillReplies(t *testing.T) {
	t.Parallel()

	h := newSkillRouter(&fakeResponder{}, 0)
	out := postSkill(t, h, "/api/lunch", `{not json`)
	if out.Template.Outputs[0].SimpleText.Text != compose.UnreadableText {
		t.Fatalf("unexpected text: %q", out.Template.Outputs[0].SimpleText.Text)
	}
}

func TestSkillRejectsOversizedUtterance(t *testing.T) {
	t.Parallel()

	h := newSkillRouter(&fakeResponder{}, 0)
	body := `{"userRequest":{"utterance":"` + strings.Repeat("가", 1001) + `","user":{"id":"u"}}}`
	out := postSkill(t, h, "/api/lunch", body)
	if out.Template.Outputs[0].SimpleText.Text != compose.TooLongText {
		t.Fatalf("unexpected text: %q", out.Template.Outputs[0].SimpleText.Text)
	}
}

func TestSkillPerIPLimitKeepsShape(t *testing.T) {
	t.Parallel()

	h := newSkillRouter(&fakeResponder{reply: domain.Reply{Text: "ok"}}, 1)
	body := `{"userRequest":{"utterance":"점심","user":{"id":"u"}}}`

	if out := postSkill(t, h, "/api/lunch", body); out.Template.Outputs[0].SimpleText.Text != "ok" {
		t.Fatalf("expected first request served")
	}
	out := postSkill(t, h, "/api/lunch", body)
	if !strings.HasPrefix(out.Template.Outputs[0].SimpleText.Text, compose.DeniedTextPrefix) {
		t.Fatalf("expected denial text, got %q", out.Template.Outputs[0].SimpleText.Text)
	}
}

func TestSkillReplyTruncatesLabels(t *testing.T) {
	t.Parallel()

	out := SkillReply(domain.Reply{
		Text:         "x",
		QuickReplies: []domain.QuickReply{{Label: strings.Repeat("가", 20), MessageText: "m"}},
	})
	if got := []rune(out.Template.QuickReplies[0].Label); len(got) != quickReplyLabel {
		t.Fatalf("expected label truncated to %d runes, got %d", quickReplyLabel, len(got))
	}
}
