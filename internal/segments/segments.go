// Package segments handles veto segment lists: time intervals to exclude
// from a day's trigger sample before pruning and fitting.
package segments

import (
	"fmt"
	"sort"

	"github.com/gwobs/trigfit/internal/models"
)

// Segment is a half-open time interval [Start, End).
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// List is an ordered collection of veto segments.
type List []Segment

// Normalize sorts the segments by start time and merges overlapping or
// touching intervals. Returns an error if any segment is inverted.
func Normalize(segs List) (List, error) {
	for _, s := range segs {
		if s.End <= s.Start {
			return nil, fmt.Errorf("invalid veto segment [%g, %g): end must exceed start", s.Start, s.End)
		}
	}
	if len(segs) == 0 {
		return List{}, nil
	}
	sorted := make(List, len(segs))
	copy(sorted, segs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := List{sorted[0]}
	for _, s := range sorted[1:] {
		last := &merged[len(merged)-1]
		if s.Start <= last.End {
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged, nil
}

// Contains reports whether t falls inside any segment of a normalized list.
func (l List) Contains(t float64) bool {
	i := sort.Search(len(l), func(i int) bool { return l[i].End > t })
	return i < len(l) && l[i].Start <= t
}

// Apply returns the triggers whose times fall outside every segment.
// The list must be normalized. The input slice is not modified.
func (l List) Apply(triggers []models.Trigger) []models.Trigger {
	kept := make([]models.Trigger, 0, len(triggers))
	for _, t := range triggers {
		if !l.Contains(t.Time) {
			kept = append(kept, t)
		}
	}
	return kept
}

// TotalDuration returns the summed duration of a normalized list, used to
// correct the day's live time before rates are computed.
func (l List) TotalDuration() float64 {
	var total float64
	for _, s := range l {
		total += s.End - s.Start
	}
	return total
}
