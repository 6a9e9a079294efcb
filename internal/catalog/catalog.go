// Package catalog loads the menu catalog the recommender draws from.
package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ashureev/lunchbot/internal/domain"
)

// Dining areas near the office.
const (
	AreaBasement = "회사 지하식당"
	AreaYTN      = "YTN 지하식당"
	AreaMeokja   = "건너편 먹자골목"
)

// Defaults is the built-in catalog used when no menu file is configured.
var Defaults = []domain.Candidate{
	{Name: "구내식당", Area: AreaBasement, Category: "백반", Cuisine: "한식", Tags: []string{domain.TagRice, domain.TagLight}},
	{Name: "마라탕", Area: AreaMeokja, Category: "마라탕", Cuisine: "중식", Tags: []string{domain.TagSoup, domain.TagSpicy, domain.TagHot}},
	{Name: "돈까스", Area: AreaYTN, Category: "돈까스", Cuisine: "양식", Tags: []string{domain.TagMeat, domain.TagHeavy}},
	{Name: "김치찌개", Area: AreaMeokja, Category: "찌개", Cuisine: "한식", Tags: []string{domain.TagSoup, domain.TagHot, domain.TagSpicy}},
	{Name: "샌드위치", Area: AreaYTN, Category: "샌드위치", Cuisine: "양식", Tags: []string{domain.TagLight}},
}

// Static is an in-memory catalog. It is safe for concurrent use.
type Static struct {
	mu    sync.RWMutex
	menus []domain.Candidate
}

// NewStatic creates a catalog from menus. Entries in a basement area are
// tagged indoor.
func NewStatic(menus []domain.Candidate) *Static {
	s := &Static{}
	s.Replace(menus)
	return s
}

// Candidates returns a copy of the catalog.
func (s *Static) Candidates(_ context.Context) ([]domain.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Candidate, len(s.menus))
	for i, m := range s.menus {
		out[i] = m
		out[i].Tags = append([]string(nil), m.Tags...)
	}
	return out, nil
}

// Replace swaps the catalog contents.
func (s *Static) Replace(menus []domain.Candidate) {
	normalized := make([]domain.Candidate, 0, len(menus))
	for _, m := range menus {
		m.Name = strings.TrimSpace(m.Name)
		if m.Name == "" {
			continue
		}
		m.Tags = append([]string(nil), m.Tags...)
		if strings.Contains(m.Area, "지하") && !m.HasTag(domain.TagIndoor) {
			m.Tags = append(m.Tags, domain.TagIndoor)
		}
		normalized = append(normalized, m)
	}

	s.mu.Lock()
	s.menus = normalized
	s.mu.Unlock()
}

// Len returns the number of menus.
func (s *Static) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.menus)
}

type menuFile struct {
	Menus []domain.Candidate `yaml:"menus"`
}

// Load reads a YAML (or JSON) menu file. The file may be a bare list or a
// mapping with a "menus" key. An empty path returns the defaults.
func Load(path string) (*Static, error) {
	if path == "" {
		return NewStatic(Defaults), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read menu file: %w", err)
	}

	menus, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse menu file %s: %w", path, err)
	}
	if len(menus) == 0 {
		return NewStatic(Defaults), nil
	}
	return NewStatic(menus), nil
}

// Parse decodes menu data. JSON is valid YAML, so both formats work.
func Parse(data []byte) ([]domain.Candidate, error) {
	var list []domain.Candidate
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var file menuFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	return file.Menus, nil
}
