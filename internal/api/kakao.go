package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/ashureev/lunchbot/internal/compose"
	"github.com/ashureev/lunchbot/internal/domain"
	"github.com/ashureev/lunchbot/internal/identity"
	"github.com/ashureev/lunchbot/internal/metrics"
)

const (
	skillVersion    = "2.0"
	maxSkillBody    = 64 << 10
	maxSimpleText   = 1000
	quickReplyLabel = 14 // rune limit the platform enforces on button labels
)

var validate = validator.New()

// SkillRequest is the inbound skill payload. Only the fields the bot reads
// are declared.
type SkillRequest struct {
	UserRequest SkillUserRequest `json:"userRequest"`
	Action      SkillAction      `json:"action"`
}

// SkillUserRequest carries the utterance and the platform user.
type SkillUserRequest struct {
	Utterance string     `json:"utterance" validate:"max=1000"`
	User      *SkillUser `json:"user"`
}

// SkillUser identifies the sender.
type SkillUser struct {
	ID string `json:"id" validate:"max=256"`
}

// SkillAction carries block parameters extracted by the platform.
type SkillAction struct {
	Params map[string]any `json:"params"`
}

// SkillResponse is the v2.0 skill reply.
type SkillResponse struct {
	Version  string        `json:"version"`
	Template SkillTemplate `json:"template"`
}

// SkillTemplate holds outputs and optional quick replies.
type SkillTemplate struct {
	Outputs      []SkillOutput     `json:"outputs"`
	QuickReplies []SkillQuickReply `json:"quickReplies,omitempty"`
}

// SkillOutput is one output bubble.
type SkillOutput struct {
	SimpleText SimpleText `json:"simpleText"`
}

// SimpleText is a plain text bubble.
type SimpleText struct {
	Text string `json:"text"`
}

// SkillQuickReply is a suggested follow-up button.
type SkillQuickReply struct {
	Label       string `json:"label"`
	Action      string `json:"action"`
	MessageText string `json:"messageText"`
}

// Responder answers one utterance.
type Responder interface {
	Handle(ctx context.Context, u domain.Utterance, params map[string]any) domain.Reply
}

// SkillHandler serves the chat platform webhook.
type SkillHandler struct {
	gateway Responder
	perIP   int
	logger  *slog.Logger
}

// NewSkillHandler creates the webhook handler. perIP caps requests per
// client IP per minute; zero disables the cap.
func NewSkillHandler(gateway Responder, perIP int, logger *slog.Logger) *SkillHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SkillHandler{gateway: gateway, perIP: perIP, logger: logger}
}

// RegisterRoutes registers the webhook and its alias.
func (h *SkillHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.perIP > 0 {
			r.Use(httprate.Limit(h.perIP, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByRealIP),
				httprate.WithLimitHandler(h.tooManyRequests)))
		}
		r.Post("/api/lunch", h.Skill)
		r.Post("/skill", h.Skill)
	})
}

// Skill handles one webhook call. Every outcome is HTTP 200 with a
// well-formed reply, because the platform shows a generic error otherwise.
func (h *SkillHandler) Skill(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSkill(r)
	if err != nil {
		h.logger.Warn("Rejected skill payload", "error", err)
		text := compose.UnreadableText
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			text = compose.TooLongText
		}
		WriteSkill(w, domain.Reply{Text: text})
		return
	}

	var rawID string
	if req.UserRequest.User != nil {
		rawID = req.UserRequest.User.ID
	}
	userID := identity.UserID(rawID, r)

	reply := h.gateway.Handle(r.Context(), domain.Utterance{
		UserID:     userID,
		Text:       req.UserRequest.Utterance,
		ReceivedAt: time.Now(),
	}, req.Action.Params)
	WriteSkill(w, reply)
}

func (h *SkillHandler) tooManyRequests(w http.ResponseWriter, r *http.Request) {
	metrics.RateLimitDenied.WithLabelValues("ip").Inc()
	h.logger.Warn("Per-IP limit hit", "remote_addr", r.RemoteAddr)
	WriteSkill(w, domain.Reply{Text: compose.DeniedText(compose.BusyText), Path: domain.PathDenied})
}

func decodeSkill(r *http.Request) (*SkillRequest, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSkillBody+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxSkillBody {
		return nil, errors.New("payload too large")
	}

	var req SkillRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// SkillReply renders a reply in the v2.0 skill shape.
func SkillReply(reply domain.Reply) SkillResponse {
	resp := SkillResponse{
		Version: skillVersion,
		Template: SkillTemplate{
			Outputs: []SkillOutput{{SimpleText: SimpleText{Text: truncateRunes(reply.Text, maxSimpleText)}}},
		},
	}
	for _, qr := range reply.QuickReplies {
		resp.Template.QuickReplies = append(resp.Template.QuickReplies, SkillQuickReply{
			Label:       truncateRunes(qr.Label, quickReplyLabel),
			Action:      "message",
			MessageText: qr.MessageText,
		})
	}
	return resp
}

// WriteSkill writes reply as a 200 skill response.
func WriteSkill(w http.ResponseWriter, reply domain.Reply) {
	JSON(w, http.StatusOK, SkillReply(reply))
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
