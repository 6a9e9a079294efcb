package intent

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ashureev/lunchbot/internal/domain"
)

type group struct {
	key      string
	keywords []string
}

// Keyword tables. ASCII keywords match whole words; Hangul keywords match
// anywhere, since Korean attaches particles and endings to the stem.
var (
	cuisineKeywords = []group{
		{"한식", []string{"한식", "한국", "김치", "된장", "비빔밥", "국밥", "찌개"}},
		{"중식", []string{"중식", "중국", "짜장", "짬뽕", "탕수육", "마라"}},
		{"일식", []string{"일식", "일본", "초밥", "라멘", "돈까스", "우동"}},
		{"양식", []string{"양식", "서양", "파스타", "스테이크", "피자", "햄버거"}},
		{"분식", []string{"분식", "떡볶이", "김밥", "라면", "순대"}},
	}

	tagKeywords = []group{
		{domain.TagSoup, []string{"국물", "국밥", "찌개", "전골", "해장", "soup"}},
		{domain.TagHot, []string{"뜨끈", "따뜻", "뜨거운"}},
		{domain.TagNoodle, []string{"면요리", "면 요리", "국수", "냉면", "칼국수", "noodle"}},
		{domain.TagSpicy, []string{"매운", "매콤", "얼큰", "칼칼", "spicy"}},
		{domain.TagHeavy, []string{"든든", "배불", "푸짐", "헤비"}},
		{domain.TagLight, []string{"가벼운", "가볍게", "간단", "샐러드"}},
		{domain.TagMeat, []string{"고기", "삼겹", "갈비", "치킨", "meat"}},
		{domain.TagRice, []string{"덮밥", "백반", "볶음밥", "rice"}},
	}

	// Order matters: freezing is checked before cold.
	weatherKeywords = []group{
		{string(domain.WeatherRain), []string{"비가", "비와", "비 와", "비오", "비 오", "우산", "장마", "빗", "소나기"}},
		{string(domain.WeatherSnow), []string{"눈이", "눈와", "눈 와", "눈오", "눈 오", "함박눈", "폭설"}},
		{string(domain.WeatherFreezing), []string{"한파", "영하", "꽁꽁"}},
		{string(domain.WeatherCold), []string{"추워", "춥", "추운", "쌀쌀", "겨울"}},
		{string(domain.WeatherHot), []string{"더워", "덥", "더운", "무더위", "폭염", "여름"}},
	}

	moodKeywords = []group{
		{string(domain.MoodTired), []string{"피곤", "힘들", "지쳐", "지친", "졸려", "피로"}},
		{string(domain.MoodHappy), []string{"행복", "기분좋", "기분 좋", "신나", "즐거"}},
		{string(domain.MoodSad), []string{"우울", "슬퍼", "슬프", "기분안좋", "기분 안 좋", "울적"}},
		{string(domain.MoodAngry), []string{"화나", "화난", "짜증", "열받", "빡쳐"}},
		{string(domain.MoodFlex), []string{"플렉스", "flex", "월급", "법카", "쏜다", "쏠게", "고급"}},
		{string(domain.MoodDiet), []string{"다이어트", "살빼", "살 빼", "식단", "diet"}},
	}

	greetingTriggers = map[string]bool{
		"안녕": true, "안녕하세요": true, "안녕하십니까": true, "하이": true, "헬로": true,
		"hi": true, "hello": true, "hey": true, "시작": true, "시작하기": true, "start": true,
	}

	greetingKeywords = []string{"안녕", "하이", "헬로", "반가", "hello", "hi", "hey"}
	thanksKeywords   = []string{"고마", "감사", "땡큐", "thanks", "thank"}
	helpKeywords     = []string{"도움말", "도와줘", "사용법", "사용 방법", "뭐 할 수", "뭘 할 수", "기능", "명령어", "help"}
	explainKeywords  = []string{"왜", "이유", "어째서", "근거", "why"}
	rejectKeywords   = []string{"싫", "별로", "다른", "아니", "패스", "말고", "no", "pass"}
	acceptKeywords   = []string{"좋아", "좋다", "좋네", "좋은데", "맛있", "거기", "그거", "먹을게", "먹으러", "굿", "오케이", "ok", "okay", "yes"}
	chitchatKeywords = []string{"날씨", "어때", "뭐해", "심심"}
	foodKeywords     = []string{"점심", "추천", "메뉴", "먹", "배고", "식사", "밥", "lunch", "food", "menu"}

	negativeKeywords = []string{"짜증", "열받", "화나", "힘들", "피곤", "우울", "슬프", "지쳐", "스트레스"}
	positiveKeywords = []string{"행복", "좋", "신나", "즐거", "최고"}

	questionEndings = []string{"?", "까", "나요", "니", "냐", "어때", "죠"}
)

// utterance is a normalized view of the user's text.
type utterance struct {
	raw     string
	lower   string
	compact string // lower with whitespace removed
	words   map[string]bool
	length  int // runes in the trimmed text
}

func newUtterance(text string) utterance {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = true
	}

	return utterance{
		raw:     trimmed,
		lower:   lower,
		compact: strings.Join(strings.Fields(lower), ""),
		words:   words,
		length:  utf8.RuneCountInString(trimmed),
	}
}

// has reports whether any keyword occurs in the utterance.
func (u utterance) has(keywords []string) bool {
	for _, kw := range keywords {
		if isASCII(kw) {
			if u.words[kw] {
				return true
			}
			continue
		}
		if strings.Contains(u.lower, kw) {
			return true
		}
	}
	return false
}

// matchAll returns the keys of every group with a matching keyword.
func (u utterance) matchAll(groups []group) []string {
	var keys []string
	for _, g := range groups {
		if u.has(g.keywords) {
			keys = append(keys, g.key)
		}
	}
	return keys
}

// matchFirst returns the key of the first matching group.
func (u utterance) matchFirst(groups []group) string {
	for _, g := range groups {
		if u.has(g.keywords) {
			return g.key
		}
	}
	return ""
}

// isGreeting reports whether the whole utterance is a greeting trigger.
func (u utterance) isGreeting() bool {
	stripped := strings.TrimFunc(u.compact, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	return greetingTriggers[stripped]
}

func (u utterance) isQuestion() bool {
	text := strings.TrimRight(u.lower, " ~.!")
	for _, end := range questionEndings {
		if strings.HasSuffix(text, end) {
			return true
		}
	}
	return false
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
