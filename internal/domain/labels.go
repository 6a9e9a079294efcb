package domain

var tagLabels = map[string]string{
	TagSoup:    "국물 요리",
	TagHot:     "따뜻한 음식",
	TagNoodle:  "면 요리",
	TagSpicy:   "매운 음식",
	TagHeavy:   "든든한 음식",
	TagLight:   "가벼운 음식",
	TagMeat:    "고기 요리",
	TagRice:    "밥 요리",
	TagPremium: "특별한 한 끼",
	TagIndoor:  "실내 식당",
}

// TagLabel returns the Korean description of a tag.
func TagLabel(tag string) string {
	if l, ok := tagLabels[tag]; ok {
		return l
	}
	return tag
}

// Label returns the Korean description of the weather.
func (w Weather) Label() string {
	switch w {
	case WeatherRain:
		return "비 오는 날씨"
	case WeatherSnow:
		return "눈 오는 날씨"
	case WeatherCloudy:
		return "흐린 날씨"
	case WeatherCold:
		return "추운 날씨"
	case WeatherFreezing:
		return "한파"
	case WeatherHot:
		return "더운 날씨"
	case WeatherClear:
		return "맑은 날씨"
	}
	return string(w)
}

// Label returns the Korean description of the mood.
func (m Mood) Label() string {
	switch m {
	case MoodTired:
		return "피곤한 상태"
	case MoodHappy:
		return "기분 좋은 상태"
	case MoodSad:
		return "우울한 기분"
	case MoodAngry:
		return "화난 상태"
	case MoodFlex:
		return "한턱 쏘고 싶은 기분"
	case MoodDiet:
		return "다이어트 중"
	}
	return string(m)
}
