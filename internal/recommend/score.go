package recommend

import "github.com/ashureev/lunchbot/internal/domain"

// BaseScore is every candidate's starting score.
const BaseScore = 10

// Scored pairs a candidate with its weight.
type Scored struct {
	Candidate domain.Candidate
	Score     int
}

// Score computes a weight for each candidate from weather, mood and the
// requested tags.
func Score(pool []domain.Candidate, req Request) []Scored {
	out := make([]Scored, len(pool))
	for i, c := range pool {
		out[i] = Scored{Candidate: c, Score: ScoreOne(c, req)}
	}
	return out
}

// ScoreOne scores a single candidate.
func ScoreOne(c domain.Candidate, req Request) int {
	score := BaseScore

	switch {
	case req.Weather.ColdOrWet():
		switch {
		case c.HasTag(domain.TagSoup):
			score += 20
		case c.HasTag(domain.TagHot) && c.HasTag(domain.TagNoodle):
			score += 15
		case c.HasTag(domain.TagHot):
			score += 5
		default:
			score -= 10
		}
	case req.Weather == domain.WeatherHot:
		if c.HasTag(domain.TagHot) {
			score -= 15
		}
		if c.HasTag(domain.TagLight) {
			score += 10
		}
	}

	switch req.Mood {
	case domain.MoodAngry:
		if c.HasTag(domain.TagSpicy) {
			score += 5
		}
		if c.HasTag(domain.TagHeavy) {
			score += 3
		}
	case domain.MoodHappy:
		if c.HasTag(domain.TagMeat) {
			score += 5
		}
	case domain.MoodSad:
		if c.HasTag(domain.TagHeavy) || c.HasTag(domain.TagMeat) {
			score += 3
		}
		if c.HasTag(domain.TagSpicy) {
			score += 3
		}
	case domain.MoodTired:
		switch {
		case c.HasTag(domain.TagRice) && c.HasTag(domain.TagMeat):
			score += 15
		case c.HasTag(domain.TagSoup) && c.HasTag(domain.TagMeat):
			score += 12
		case c.HasTag(domain.TagRice) || c.HasTag(domain.TagMeat):
			score += 4
		}
	case domain.MoodFlex:
		if c.HasTag(domain.TagPremium) {
			score += 40
		} else {
			score -= 10
		}
	case domain.MoodDiet:
		if c.HasTag(domain.TagLight) {
			score += 25
		}
		if c.HasTag(domain.TagHeavy) {
			score -= 15
		}
		if c.HasTag(domain.TagPremium) {
			score -= 10
		}
	}

	// In a cold snap, stay indoors unless treating yourself.
	if req.Weather == domain.WeatherFreezing && req.Mood != domain.MoodFlex {
		if c.HasTag(domain.TagIndoor) {
			score += 20
		} else {
			score -= 10
		}
	}

	for _, tag := range req.TagFilters {
		if c.HasTag(tag) {
			score += 25
		}
	}
	return score
}

// Pick draws one candidate with probability proportional to its positive
// score. If no score is positive, it picks uniformly. pool must be non-empty.
func Pick(pool []Scored, r Rand) domain.Candidate {
	total := 0
	for _, s := range pool {
		if s.Score > 0 {
			total += s.Score
		}
	}
	if total <= 0 {
		return pool[r.IntN(len(pool))].Candidate
	}

	n := r.IntN(total)
	for _, s := range pool {
		if s.Score <= 0 {
			continue
		}
		if n < s.Score {
			return s.Candidate
		}
		n -= s.Score
	}
	return pool[len(pool)-1].Candidate
}
