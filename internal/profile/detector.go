// Package profile derives the usage profile from a process census.
package profile

import (
	"github.com/aleister1102/hostpulse/internal/census"
	"github.com/aleister1102/hostpulse/internal/models"
)

// DefaultBrowsingThreshold is the browser count that must be exceeded
const DefaultBrowsingThreshold = 2

// Counts holds how many distinct census keys matched each category
type Counts struct {
	Game     int `json:"game"`
	Creative int `json:"creative"`
	Browser  int `json:"browser"`
}

// Detector applies the priority rules. It holds no per-call state.
type Detector struct {
	table             *Table
	browsingThreshold int
}

// NewDetector creates a detector. A negative threshold uses the default.
func NewDetector(table *Table, browsingThreshold int) *Detector {
	if browsingThreshold < 0 {
		browsingThreshold = DefaultBrowsingThreshold
	}
	return &Detector{table: table, browsingThreshold: browsingThreshold}
}

// Count tallies category matches. A key may count toward several categories.
func (d *Detector) Count(c census.Census) Counts {
	var counts Counts
	for key := range c {
		if d.table.Matches(models.CategoryGame, key) {
			counts.Game++
		}
		if d.table.Matches(models.CategoryCreative, key) {
			counts.Creative++
		}
		if d.table.Matches(models.CategoryBrowser, key) {
			counts.Browser++
		}
	}
	return counts
}

// Detect returns gaming, creative, browsing or balanced, first match wins
func (d *Detector) Detect(c census.Census) models.UsageProfile {
	counts := d.Count(c)
	switch {
	case counts.Game > 0:
		return models.ProfileGaming
	case counts.Creative > 0:
		return models.ProfileCreative
	case counts.Browser > d.browsingThreshold:
		return models.ProfileBrowsing
	default:
		return models.ProfileBalanced
	}
}
