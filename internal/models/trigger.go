// Package models defines the core domain entities for the trigfit service.
// These models represent single-detector triggers, per-bin tail-fit results,
// and the daily and combined fit records the service persists.
// All models include built-in validation to ensure data integrity throughout the pipeline.
//
// Terminology (matching the detection pipeline's own naming):
//   - Trigger: one candidate event from the streaming detection pipeline.
//   - Daily record: per-detector, per-day collection of per-bin fit results.
//   - Combined record: a rolling-window aggregation of daily records.
package models

import (
	"errors"
	"math"
)

// Trigger represents one candidate detection produced by the upstream pipeline.
// Triggers are immutable once loaded; a day's triggers form a collection
// ordered by arrival, not by statistic value.
type Trigger struct {
	Stat       float64 `json:"stat"`        // Ranking/significance statistic
	Time       float64 `json:"time"`        // GPS timestamp in seconds
	Duration   float64 `json:"duration"`    // Template-characteristic duration, used for binning
	TemplateID int64   `json:"template_id"` // Identifies the generating template
}

// Validate checks that all trigger fields are valid.
func (t *Trigger) Validate() error {
	if math.IsNaN(t.Stat) || math.IsInf(t.Stat, 0) {
		return errors.New("trigger stat must be finite")
	}
	if math.IsNaN(t.Time) || math.IsInf(t.Time, 0) {
		return errors.New("trigger time must be finite")
	}
	if t.Time < 0 {
		return errors.New("trigger time must not be negative")
	}
	if t.Duration <= 0 || math.IsNaN(t.Duration) || math.IsInf(t.Duration, 0) {
		return errors.New("trigger duration must be positive and finite")
	}
	if t.TemplateID < 0 {
		return errors.New("trigger template ID must not be negative")
	}
	return nil
}

// CountTemplates returns the number of distinct template IDs among the triggers.
func CountTemplates(triggers []Trigger) int {
	seen := make(map[int64]struct{}, len(triggers))
	for _, t := range triggers {
		seen[t.TemplateID] = struct{}{}
	}
	return len(seen)
}
