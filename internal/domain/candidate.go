package domain

import "slices"

// Menu tags understood by the scorer.
const (
	TagSoup    = "soup"
	TagHot     = "hot"
	TagNoodle  = "noodle"
	TagSpicy   = "spicy"
	TagHeavy   = "heavy"
	TagLight   = "light"
	TagMeat    = "meat"
	TagRice    = "rice"
	TagPremium = "premium"
	TagIndoor  = "indoor"
)

// Candidate is one catalog entry.
type Candidate struct {
	Name     string   `json:"name" yaml:"name"`
	Area     string   `json:"area" yaml:"area"`
	Category string   `json:"category" yaml:"category"`
	Cuisine  string   `json:"cuisine,omitempty" yaml:"cuisine,omitempty"`
	Tags     []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// HasTag reports whether the candidate carries tag.
func (c Candidate) HasTag(tag string) bool {
	return slices.Contains(c.Tags, tag)
}

// CuisineLabel returns the cuisine, falling back to the category.
func (c Candidate) CuisineLabel() string {
	if c.Cuisine != "" {
		return c.Cuisine
	}
	return c.Category
}
