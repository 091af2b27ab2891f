package profile

import (
	"strings"

	"github.com/aleister1102/hostpulse/internal/models"
)

// classifyOrder is the precedence used when a key matches several categories
var classifyOrder = []models.Category{
	models.CategoryGame,
	models.CategoryCreative,
	models.CategoryBrowser,
}

// Table maps each category to the process-name tokens that identify it.
// It is built once and read-only afterwards.
type Table struct {
	tokens map[models.Category][]string
}

// NewTable builds a table from category token lists. Tokens are lowercased
// and blanks are dropped.
func NewTable(entries map[models.Category][]string) *Table {
	t := &Table{tokens: make(map[models.Category][]string, len(entries))}
	for cat, list := range entries {
		clean := make([]string, 0, len(list))
		for _, tok := range list {
			tok = strings.ToLower(strings.TrimSpace(tok))
			if tok != "" {
				clean = append(clean, tok)
			}
		}
		t.tokens[cat] = clean
	}
	return t
}

// NewTableFromLists is a convenience for the three config lists
func NewTableFromLists(gaming, creative, browser []string) *Table {
	return NewTable(map[models.Category][]string{
		models.CategoryGame:     gaming,
		models.CategoryCreative: creative,
		models.CategoryBrowser:  browser,
	})
}

// Matches reports whether key contains any token of category
func (t *Table) Matches(category models.Category, key string) bool {
	for _, tok := range t.tokens[category] {
		if strings.Contains(key, tok) {
			return true
		}
	}
	return false
}

// Classify returns the highest-precedence category key matches, or other
func (t *Table) Classify(key string) models.Category {
	for _, cat := range classifyOrder {
		if t.Matches(cat, key) {
			return cat
		}
	}
	return models.CategoryOther
}

// Tokens returns a copy of one category's tokens
func (t *Table) Tokens(category models.Category) []string {
	return append([]string(nil), t.tokens[category]...)
}
