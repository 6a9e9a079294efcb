package llm

import (
	"fmt"
	"strings"

	"github.com/ashureev/lunchbot/internal/domain"
)

const personaPrompt = `당신은 회사 근처 점심 메뉴를 골라주는 친근한 챗봇입니다.
- 항상 한국어로, 밝고 친근한 말투로 답합니다.
- 이모지는 한두 개만 사용합니다.
- 메뉴 이름, 위치, 종류는 주어진 정보만 사용하고 지어내지 않습니다.`

const classifySystemPrompt = `You classify messages sent to a Korean lunch recommendation chatbot.
Reply with a single JSON object and nothing else, using exactly these keys:
{"intent": "recommend|explain|reject|accept|casual|help",
 "casual_type": "greeting|thanks|chitchat|null",
 "emotion": "negative|neutral|positive",
 "cuisine_filters": ["한식|중식|일식|양식|분식"],
 "tag_filters": ["soup|hot|noodle|spicy|heavy|light|meat|rice|premium"],
 "weather": "rain|snow|cloudy|cold|freezing|hot|clear|null",
 "mood": "tired|happy|sad|angry|flex|diet|null"}
Rules:
- recommend: the user wants a menu suggestion, even without food words.
- explain: the user asks why the last menu was suggested.
- reject: the user dislikes the last suggestion and wants another one.
- accept: the user agrees to eat the last suggestion.
- casual: small talk unrelated to choosing a menu.
- help: the user asks how to use the bot.
Classify by intent in context, not by dictionary words.`

// ClassifyRequest builds the JSON-only intent classification call.
func ClassifyRequest(utterance string, history []domain.Message) Request {
	var b strings.Builder
	if h := formatHistory(history, 4); h != "" {
		b.WriteString("Recent conversation:\n")
		b.WriteString(h)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Message: %q", utterance)

	return Request{
		System:      classifySystemPrompt,
		Prompt:      b.String(),
		JSON:        true,
		Temperature: 0.1,
		MaxTokens:   256,
	}
}

// RecommendRequest asks for a short pitch of the chosen menu.
func RecommendRequest(utterance string, c domain.Candidate, intent domain.IntentResult, weather domain.Weather, history []domain.Message) Request {
	var b strings.Builder
	if h := formatHistory(history, 3); h != "" {
		fmt.Fprintf(&b, "최근 대화:\n%s\n", h)
	}
	fmt.Fprintf(&b, "사용자: %s\n\n", utterance)
	fmt.Fprintf(&b, "추천할 메뉴:\n- 이름: %s\n- 위치: %s\n- 종류: %s\n- 특징: %s\n",
		c.Name, c.Area, c.Category, describeTags(c.Tags))
	if ctx := situation(weather, intent.Mood, intent.Emotion, intent.CuisineFilters); ctx != "" {
		fmt.Fprintf(&b, "\n상황:\n%s\n", ctx)
	}
	b.WriteString(`
이 메뉴를 2-3문장으로 추천해주세요. 상황이 있다면 자연스럽게 연결하세요.
마지막 줄에는 반드시 "📍 위치: {위치}" 를 적어주세요.`)

	return Request{System: personaPrompt, Prompt: b.String(), Temperature: 0.8, MaxTokens: 300}
}

// ExplainRequest asks why the last menu was recommended.
func ExplainRequest(utterance string, c domain.Candidate, weather domain.Weather, mood domain.Mood, history []domain.Message) Request {
	var b strings.Builder
	if h := formatHistory(history, 3); h != "" {
		fmt.Fprintf(&b, "최근 대화:\n%s\n", h)
	}
	fmt.Fprintf(&b, "사용자가 방금 추천받은 메뉴에 대해 %q 라고 물었습니다.\n\n", utterance)
	fmt.Fprintf(&b, "추천한 메뉴:\n- 이름: %s\n- 종류: %s\n- 위치: %s\n- 특징: %s\n",
		c.Name, c.Category, c.Area, describeTags(c.Tags))
	if ctx := situation(weather, mood, "", nil); ctx != "" {
		fmt.Fprintf(&b, "\n추천 시 고려한 상황:\n%s\n", ctx)
	}
	b.WriteString(`
이 메뉴를 추천한 이유를 3-4문장의 대화체로 설명해주세요.
메뉴의 실제 특징과 위치의 장점을 구체적으로 언급하고, 날씨나 기분을 고려했다면 꼭 말해주세요.
"맛있어서" 같은 막연한 표현만으로 끝내지 마세요.`)

	return Request{System: personaPrompt, Prompt: b.String(), Temperature: 0.9, MaxTokens: 400}
}

// CasualRequest asks for a short small-talk reply steering toward lunch.
func CasualRequest(utterance string, history []domain.Message) Request {
	var b strings.Builder
	if h := formatHistory(history, 3); h != "" {
		fmt.Fprintf(&b, "대화 히스토리:\n%s\n", h)
	}
	fmt.Fprintf(&b, "사용자: %s\n\n", utterance)
	b.WriteString("위 메시지에 2-3문장으로 자연스럽게 답하고, 점심 추천으로 대화를 이어가 주세요.")

	return Request{System: personaPrompt, Prompt: b.String(), Temperature: 0.9, MaxTokens: 200}
}

func formatHistory(history []domain.Message, n int) string {
	if len(history) > n {
		history = history[len(history)-n:]
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, fmt.Sprintf("- %s: %s", m.Role, m.Text))
	}
	return strings.Join(lines, "\n")
}

func describeTags(tags []string) string {
	if len(tags) == 0 {
		return "점심으로 무난한 메뉴"
	}
	labels := make([]string, 0, len(tags))
	for _, t := range tags {
		labels = append(labels, domain.TagLabel(t))
	}
	return strings.Join(labels, ", ")
}

func situation(weather domain.Weather, mood domain.Mood, emotion domain.Emotion, cuisines []string) string {
	var parts []string
	if weather != "" {
		parts = append(parts, "- 날씨: "+weather.Label())
	}
	if mood != "" {
		parts = append(parts, "- 기분: "+mood.Label())
	}
	if emotion == domain.EmotionNegative {
		parts = append(parts, "- 사용자가 지쳐 보입니다")
	}
	if len(cuisines) > 0 {
		parts = append(parts, "- 원하는 종류: "+strings.Join(cuisines, ", "))
	}
	return strings.Join(parts, "\n")
}
