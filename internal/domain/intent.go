// Package domain defines the core types shared by the recommendation pipeline.
package domain

import "time"

// IntentKind is the resolved purpose of an utterance.
type IntentKind string

// Intent kinds.
const (
	IntentRecommend IntentKind = "recommend"
	IntentExplain   IntentKind = "explain"
	IntentReject    IntentKind = "reject"
	IntentAccept    IntentKind = "accept"
	IntentCasual    IntentKind = "casual"
	IntentHelp      IntentKind = "help"
)

// Valid reports whether k is a known intent kind.
func (k IntentKind) Valid() bool {
	switch k {
	case IntentRecommend, IntentExplain, IntentReject, IntentAccept, IntentCasual, IntentHelp:
		return true
	}
	return false
}

// CasualType refines a casual intent.
type CasualType string

// Casual types.
const (
	CasualGreeting CasualType = "greeting"
	CasualThanks   CasualType = "thanks"
	CasualChitchat CasualType = "chitchat"
)

// Emotion is the coarse polarity detected in an utterance.
type Emotion string

// Emotions.
const (
	EmotionNegative Emotion = "negative"
	EmotionNeutral  Emotion = "neutral"
	EmotionPositive Emotion = "positive"
)

// Weather is a normalized weather condition.
type Weather string

// Weather conditions.
const (
	WeatherRain     Weather = "rain"
	WeatherSnow     Weather = "snow"
	WeatherCloudy   Weather = "cloudy"
	WeatherCold     Weather = "cold"
	WeatherFreezing Weather = "freezing"
	WeatherHot      Weather = "hot"
	WeatherClear    Weather = "clear"
)

// ColdOrWet reports whether the condition favors hot soup.
func (w Weather) ColdOrWet() bool {
	switch w {
	case WeatherRain, WeatherSnow, WeatherCloudy, WeatherCold, WeatherFreezing:
		return true
	}
	return false
}

// ParseWeather maps an English or Korean label to a Weather. The second
// return value is false for unknown labels.
func ParseWeather(s string) (Weather, bool) {
	switch s {
	case "rain", "비":
		return WeatherRain, true
	case "snow", "눈":
		return WeatherSnow, true
	case "cloudy", "흐림":
		return WeatherCloudy, true
	case "cold", "추위":
		return WeatherCold, true
	case "freezing", "한파":
		return WeatherFreezing, true
	case "hot", "더위":
		return WeatherHot, true
	case "clear", "맑음":
		return WeatherClear, true
	}
	return "", false
}

// Mood is the user's stated or inferred mood.
type Mood string

// Moods.
const (
	MoodTired Mood = "tired"
	MoodHappy Mood = "happy"
	MoodSad   Mood = "sad"
	MoodAngry Mood = "angry"
	MoodFlex  Mood = "flex"
	MoodDiet  Mood = "diet"
)

// ParseMood maps an English or Korean label to a Mood.
func ParseMood(s string) (Mood, bool) {
	switch s {
	case "tired", "피곤":
		return MoodTired, true
	case "happy", "행복":
		return MoodHappy, true
	case "sad", "우울":
		return MoodSad, true
	case "angry", "화남":
		return MoodAngry, true
	case "flex", "플렉스":
		return MoodFlex, true
	case "diet", "다이어트":
		return MoodDiet, true
	}
	return "", false
}

// IntentResult is the output of intent resolution.
type IntentResult struct {
	Kind           IntentKind
	CasualType     CasualType
	Emotion        Emotion
	CuisineFilters []string
	TagFilters     []string
	Weather        Weather
	Mood           Mood
	// Source names the rule or classifier that produced the result.
	Source string
}

// Utterance is one inbound message.
type Utterance struct {
	UserID     string
	Text       string
	ReceivedAt time.Time
}
