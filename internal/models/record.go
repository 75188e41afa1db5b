package models

import (
	"errors"
	"time"
)

// DateLayout is the calendar-day format used in record dates and file names.
const DateLayout = "2006-01-02"

// DailyFitRecord holds one detector's per-bin fit results for one day.
// A record is owned by the day's run and immutable after creation; a
// rerun supersedes the record by publishing a replacement, never by
// mutating the existing one.
type DailyFitRecord struct {
	ID          string            `json:"id"`
	IFO         string            `json:"ifo"`
	Date        string            `json:"date"` // Calendar day, DateLayout
	FitFunction string            `json:"fit_function"`
	Threshold   float64           `json:"threshold"`
	LiveTime    float64           `json:"live_time"` // Observed seconds after vetoes
	BinEdges    []float64         `json:"bin_edges"`
	BinSpacing  string            `json:"bin_spacing"`
	Bins        map[int]FitResult `json:"bins"`
	// Retained holds the post-prune, above-threshold trigger sample for
	// audit and plotting.
	Retained  []Trigger `json:"retained_triggers,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks that the record is internally consistent.
func (r *DailyFitRecord) Validate() error {
	if r.ID == "" {
		return errors.New("daily record ID must not be empty")
	}
	if r.IFO == "" {
		return errors.New("daily record IFO must not be empty")
	}
	if _, err := time.Parse(DateLayout, r.Date); err != nil {
		return errors.New("daily record date must be formatted as " + DateLayout)
	}
	if r.FitFunction == "" {
		return errors.New("daily record fit function must not be empty")
	}
	if r.LiveTime < 0 {
		return errors.New("daily record live time must not be negative")
	}
	if len(r.BinEdges) < 2 {
		return errors.New("daily record needs at least two bin edges")
	}
	for i := 1; i < len(r.BinEdges); i++ {
		if r.BinEdges[i] <= r.BinEdges[i-1] {
			return errors.New("daily record bin edges must be strictly increasing")
		}
	}
	nbins := len(r.BinEdges) - 1
	for idx, fit := range r.Bins {
		if idx < 0 || idx >= nbins {
			return errors.New("daily record bin index out of range")
		}
		if err := fit.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// CombinedBin is the per-bin output of a multi-day combination.
type CombinedBin struct {
	Fitted   bool    `json:"fitted"` // False when no day in the window fit this bin
	Alpha    float64 `json:"alpha"`
	Count    int     `json:"count"`     // Total events above threshold across the window
	LiveTime float64 `json:"live_time"` // Total live seconds across the window
}

// CombinedFitRecord aggregates a contiguous span of daily records for one
// detector into a single conservative estimate per bin. Built fresh each
// combination run; previously published combined records are never mutated.
type CombinedFitRecord struct {
	ID          string              `json:"id"`
	IFO         string              `json:"ifo"`
	FirstDate   string              `json:"first_date"` // Oldest day in the span
	LastDate    string              `json:"last_date"`  // Newest day in the span
	DaysUsed    int                 `json:"days_used"`
	Truncated   bool                `json:"truncated"` // Window shortened by a missing-day gap
	Percentile  float64             `json:"percentile"`
	FitFunction string              `json:"fit_function"`
	Threshold   float64             `json:"threshold"`
	BinEdges    []float64           `json:"bin_edges"`
	Bins        map[int]CombinedBin `json:"bins"`
	SourceIDs   []string            `json:"source_ids"` // Daily record IDs, oldest first
	CreatedAt   time.Time           `json:"created_at"`
}

// Validate checks that the combined record is internally consistent.
func (r *CombinedFitRecord) Validate() error {
	if r.ID == "" {
		return errors.New("combined record ID must not be empty")
	}
	if r.IFO == "" {
		return errors.New("combined record IFO must not be empty")
	}
	first, err := time.Parse(DateLayout, r.FirstDate)
	if err != nil {
		return errors.New("combined record first date must be formatted as " + DateLayout)
	}
	last, err := time.Parse(DateLayout, r.LastDate)
	if err != nil {
		return errors.New("combined record last date must be formatted as " + DateLayout)
	}
	if first.After(last) {
		return errors.New("combined record first date must not be after last date")
	}
	if r.DaysUsed < 1 {
		return errors.New("combined record must use at least one day")
	}
	if r.Percentile <= 0 || r.Percentile >= 1 {
		return errors.New("combined record percentile must be in (0,1)")
	}
	if r.DaysUsed != len(r.SourceIDs) {
		return errors.New("combined record days used must match source ID count")
	}
	for _, bin := range r.Bins {
		if bin.Count < 0 {
			return errors.New("combined bin count must not be negative")
		}
		if bin.LiveTime < 0 {
			return errors.New("combined bin live time must not be negative")
		}
		if bin.Fitted && bin.Alpha <= 0 {
			return errors.New("combined bin alpha must be positive when fitted")
		}
	}
	return nil
}
