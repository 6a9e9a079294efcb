package compose

import (
	"fmt"
	"strings"

	"github.com/ashureev/lunchbot/internal/domain"
)

// Fixed replies.
const (
	HelpText = "🍱 점심 추천 챗봇 사용법\n\n" +
		"• \"점심 추천\" 이라고 말하면 메뉴를 골라드려요.\n" +
		"• \"비 와\", \"피곤해\", \"중식\" 처럼 날씨, 기분, 음식 종류를 말하면 반영해요.\n" +
		"• \"다른 거\" 라고 하면 다른 메뉴를 찾아드려요.\n" +
		"• \"왜?\" 라고 물으면 추천 이유를 알려드려요.\n" +
		"• \"좋아\" 라고 하면 오늘 메뉴로 기록해둘게요."
	NoCandidateText  = "추천할 만한 메뉴가 없어요 ㅠㅠ 조건을 바꿔보세요."
	NoOtherText      = "추천할 만한 다른 메뉴가 없어요 ㅠㅠ"
	NothingYetText   = "아직 추천드린 메뉴가 없어요. 점심 추천해드릴까요? 😊"
	AcceptNoRecText  = "점심 메뉴 추천해드릴까요? 😊"
	RejectPrefix     = "알겠습니다! 그럼 다른 메뉴로 추천드릴게요 😊\n\n"
	CasualBridge     = "\n\n그나저나 점심은 드셨어요? 오늘은 이 메뉴 어떠세요?\n\n"
	EmergencyText    = "지금은 생각이 조금 느리네요 🐢 잠시 후 다시 물어봐 주세요!"
	UnreadableText   = "메시지를 이해하지 못했어요 😅 \"점심 추천\" 이라고 말해보세요!"
	TooLongText      = "메시지가 너무 길어요 😅 짧게 말씀해 주세요!"
	BusyText         = "요청이 너무 많아요. 잠시 후 다시 시도해 주세요."
	DeniedTextPrefix = "⚠️ "
)

// Escalation thresholds on the per-session recommendation count.
const (
	escalateMild   = 3
	escalateStrong = 6
)

// DeniedText formats a rate limit denial.
func DeniedText(reason string) string {
	return DeniedTextPrefix + reason
}

// AcceptText confirms the user's choice.
func AcceptText(c domain.Candidate) string {
	return fmt.Sprintf("좋은 선택이에요! %s 맛있게 드세요~ 🍽️😊", c.Name)
}

// EasterEggText answers questions about who built the bot.
func EasterEggText(creator string) string {
	if creator == "" {
		creator = "개발자"
	}
	return fmt.Sprintf("🕶️ Top Secret Information\n\n"+
		"이 봇은 %s님이 여러분의 배고픔을 해결하려고 만들었어요.\n\n"+
		"🤖 AI보다 정확한 추천이 필요하다면?\n"+
		"%s님께 직접 \"오늘 뭐 먹죠?\" 라고 물어보세요. 인생 메뉴가 나올지도 몰라요 😋", creator, creator)
}

// CasualFallback is the small-talk reply used without the remote generator.
func CasualFallback(t domain.CasualType) string {
	switch t {
	case domain.CasualGreeting:
		return "안녕하세요! 😊 점심 메뉴 고민되시나요? 추천해드릴게요!"
	case domain.CasualThanks:
		return "천만에요! 맛있게 드세요~ 🍽️ 다음에도 점심 고민되시면 언제든 불러주세요!"
	default:
		return "저는 점심 추천 챗봇이에요! 😄 오늘 점심 뭐 드실지 추천해드릴까요?"
	}
}

// Prefix picks the situational opener. Mood wins over emotion, emotion over
// weather, weather over a cuisine mention.
func Prefix(intent domain.IntentResult, weather domain.Weather) string {
	if p := moodPrefix(intent.Mood); p != "" {
		return p
	}
	switch intent.Emotion {
	case domain.EmotionNegative:
		return "힘든 하루시네요 😔 맛있는 걸로 기운 내세요! "
	case domain.EmotionPositive:
		return "좋은 기분 그대로 맛있게! ✨ "
	}
	if p := weatherPrefix(weather); p != "" {
		return p
	}
	if len(intent.CuisineFilters) > 0 {
		return strings.Join(intent.CuisineFilters, ", ") + " 좋아하시는군요! "
	}
	return ""
}

func moodPrefix(m domain.Mood) string {
	switch m {
	case domain.MoodTired:
		return "피곤할 땐 든든하게! 💪 "
	case domain.MoodHappy:
		return "기분 좋은 날엔 맛있는 걸로! 😊 "
	case domain.MoodSad:
		return "기분 전환이 필요하시군요! 🌈 "
	case domain.MoodAngry:
		return "맛있는 거 먹고 풀어요! 😤 "
	case domain.MoodFlex:
		return "오늘은 플렉스하는 날! 💸 "
	case domain.MoodDiet:
		return "가볍게 챙겨 드세요! 🥗 "
	}
	return ""
}

func weatherPrefix(w domain.Weather) string {
	switch w {
	case domain.WeatherRain:
		return "비 오는 날엔 이게 최고죠! 🌧️ "
	case domain.WeatherSnow:
		return "눈 오는 날엔 따뜻한 게 최고! ❄️ "
	case domain.WeatherHot:
		return "더울 땐 시원한 게 최고! ☀️ "
	case domain.WeatherCold:
		return "추울 땐 따뜻한 게 최고! 🥶 "
	case domain.WeatherFreezing:
		return "한파엔 멀리 가지 말고 따뜻하게! 🧊 "
	case domain.WeatherCloudy:
		return "흐린 날엔 따끈한 한 그릇! ☁️ "
	}
	return ""
}

// Escalation returns a tone prefix once a user keeps asking for more.
func Escalation(count int) string {
	switch {
	case count >= escalateStrong:
		return fmt.Sprintf("🤯 벌써 %d번째 추천이에요! 이번엔 꼭 골라주세요~\n\n", count)
	case count >= escalateMild:
		return fmt.Sprintf("😅 고민이 많으시네요! %d번째 추천이에요.\n\n", count)
	}
	return ""
}

// RecommendationTemplate renders the deterministic recommendation text.
func RecommendationTemplate(c domain.Candidate, intent domain.IntentResult, weather domain.Weather) string {
	return fmt.Sprintf("%s추천드립니다: [%s] 🍜\n\n📍 위치: %s\n🍽️ 종류: %s",
		Prefix(intent, weather), c.Name, c.Area, c.Category)
}

// ExplanationTemplate lists the reasons behind a recommendation.
func ExplanationTemplate(c domain.Candidate, weather domain.Weather, mood domain.Mood) string {
	var reasons []string
	switch weather {
	case domain.WeatherRain:
		reasons = append(reasons, "비 오는 날씨에 따뜻한 음식이 좋아서")
	case domain.WeatherSnow:
		reasons = append(reasons, "눈 오는 날씨에 따뜻하게 드실 수 있어서")
	case domain.WeatherHot:
		reasons = append(reasons, "더운 날씨에 부담 없이 드실 수 있어서")
	case domain.WeatherCold, domain.WeatherFreezing, domain.WeatherCloudy:
		reasons = append(reasons, "쌀쌀한 날씨에 몸을 녹이기 좋아서")
	}
	switch mood {
	case domain.MoodTired:
		reasons = append(reasons, "피곤하실 때 힘이 나는 메뉴라서")
	case domain.MoodHappy:
		reasons = append(reasons, "기분 좋은 날에 맛있게 드실 수 있어서")
	case domain.MoodSad:
		reasons = append(reasons, "기분 전환에 좋아서")
	case domain.MoodAngry:
		reasons = append(reasons, "스트레스 해소에 좋아서")
	case domain.MoodFlex:
		reasons = append(reasons, "오늘 같은 날엔 특별한 한 끼가 어울려서")
	case domain.MoodDiet:
		reasons = append(reasons, "속이 편하고 가벼워서")
	}
	for _, tag := range c.Tags {
		if tag == domain.TagIndoor {
			continue
		}
		reasons = append(reasons, domain.TagLabel(tag)+"가 당기실 것 같아서")
		break
	}
	if c.Area != "" {
		reasons = append(reasons, c.Area+"에 있어서 가깝고 편해서")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "점심시간에 딱 맞는 메뉴라서")
	}
	return fmt.Sprintf("%s을(를) 추천한 이유는 %s예요! 😊", c.Name, strings.Join(reasons, ", "))
}

// RecommendQuickReplies follow every recommendation.
func RecommendQuickReplies() []domain.QuickReply {
	return []domain.QuickReply{
		{Label: "좋아요 👍", MessageText: "좋아요, 거기로 갈게요"},
		{Label: "다른 메뉴 🔄", MessageText: "다른 거"},
		{Label: "왜? 🤔", MessageText: "왜?"},
	}
}

// StarterQuickReplies follow help and greetings.
func StarterQuickReplies() []domain.QuickReply {
	return []domain.QuickReply{
		{Label: "점심 추천 🍱", MessageText: "점심 추천"},
		{Label: "국물 요리 🍲", MessageText: "국물 요리 추천"},
		{Label: "가볍게 🥗", MessageText: "가볍게 먹고 싶어"},
	}
}
