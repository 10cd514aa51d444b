// Package model defines the core memory, session, and history data types.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Memory represents a stored long-term memory about a user.
// An empty Owner marks a globally visible memory.
type Memory struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner,omitempty"`
	Text      string    `json:"text"`
	Summary   string    `json:"summary"`
	Category  *Category `json:"category"`
	Embedding []float32 `json:"embedding,omitempty"`
	Pinned    bool      `json:"pinned"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Global reports whether the memory is visible to every owner.
func (m *Memory) Global() bool { return m.Owner == "" }

// Display returns the summary when present, else the full text.
func (m *Memory) Display() string {
	if m.Summary != "" {
		return m.Summary
	}
	return m.Text
}

// CategoryName returns the category as a string, or "" when uncategorized.
func (m *Memory) CategoryName() string {
	if m.Category == nil {
		return ""
	}
	return string(*m.Category)
}

// Category is the closed set of long-term memory categories.
type Category string

const (
	CategoryIdentity        Category = "identity"
	CategoryPreferences     Category = "preferences"
	CategoryRelationships   Category = "relationships"
	CategoryBiography       Category = "biography"
	CategoryProjects        Category = "projects"
	CategoryWork            Category = "work"
	CategoryKnowledge       Category = "knowledge"
	CategoryEmotionalTraits Category = "emotional-traits"
)

// Categories lists every valid category in canonical order.
var Categories = []Category{
	CategoryIdentity,
	CategoryPreferences,
	CategoryRelationships,
	CategoryBiography,
	CategoryProjects,
	CategoryWork,
	CategoryKnowledge,
	CategoryEmotionalTraits,
}

// salientCategories are always part of core context.
var salientCategories = map[Category]bool{
	CategoryIdentity:        true,
	CategoryPreferences:     true,
	CategoryEmotionalTraits: true,
}

// Salient reports whether memories of this category are always core.
func (c Category) Salient() bool { return salientCategories[c] }

// Valid reports whether c is a member of the closed set.
func (c Category) Valid() bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// Ptr returns a pointer to a copy of c.
func (c Category) Ptr() *Category { return &c }

// SalientCategories returns the always-core categories in canonical order.
func SalientCategories() []Category {
	var out []Category
	for _, c := range Categories {
		if c.Salient() {
			out = append(out, c)
		}
	}
	return out
}

// ParseCategory normalizes case and surrounding whitespace and validates s.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q (valid: %s)", s, CategoryList())
	}
	return c, nil
}

// CategoryList returns the valid categories as a comma-separated string.
func CategoryList() string {
	names := make([]string, len(Categories))
	for i, c := range Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
