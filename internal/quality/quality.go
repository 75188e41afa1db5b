// Package quality checks fitted coefficients against configured bounds and
// surfaces violations to operators.
//
// Checks are advisory: an out-of-bounds alpha is logged and notified but
// the offending record is never mutated or discarded, so the pipeline
// keeps operating on the published estimates with full visibility into
// their quality.
package quality

import (
	"fmt"
	"sort"

	"github.com/gwobs/trigfit/internal/logger"
	"github.com/gwobs/trigfit/internal/models"
)

// Limits configures the bound check. Bins whose lower edge does not exceed
// MinDurationForCheck are exempt: the shortest-duration bins are known to
// run hot and would alert constantly.
type Limits struct {
	Lower               float64
	Upper               float64
	MinDurationForCheck float64
}

// Violation is one out-of-bounds fitted coefficient.
type Violation struct {
	IFO      string
	Source   string // Record identifier, e.g. "daily 2026-08-25"
	BinLower float64
	BinUpper float64
	Alpha    float64
}

func (v Violation) String() string {
	return fmt.Sprintf("%s %s bin [%g, %g): alpha %.3f", v.IFO, v.Source, v.BinLower, v.BinUpper, v.Alpha)
}

// CheckDaily returns the violations in a daily record, sorted by bin.
func CheckDaily(rec *models.DailyFitRecord, lim Limits) []Violation {
	source := "daily " + rec.Date
	var out []Violation
	for _, b := range sortedKeys(rec.Bins) {
		fit := rec.Bins[b]
		if !fit.Fitted || fit.LowerEdge <= lim.MinDurationForCheck {
			continue
		}
		if fit.Alpha < lim.Lower || fit.Alpha > lim.Upper {
			out = append(out, Violation{
				IFO:      rec.IFO,
				Source:   source,
				BinLower: fit.LowerEdge,
				BinUpper: fit.UpperEdge,
				Alpha:    fit.Alpha,
			})
		}
	}
	return out
}

// CheckCombined returns the violations in a combined record, sorted by bin.
func CheckCombined(rec *models.CombinedFitRecord, lim Limits) []Violation {
	source := fmt.Sprintf("combined %s..%s", rec.FirstDate, rec.LastDate)
	var out []Violation
	for b := 0; b < len(rec.BinEdges)-1; b++ {
		bin, ok := rec.Bins[b]
		if !ok || !bin.Fitted || rec.BinEdges[b] <= lim.MinDurationForCheck {
			continue
		}
		if bin.Alpha < lim.Lower || bin.Alpha > lim.Upper {
			out = append(out, Violation{
				IFO:      rec.IFO,
				Source:   source,
				BinLower: rec.BinEdges[b],
				BinUpper: rec.BinEdges[b+1],
				Alpha:    bin.Alpha,
			})
		}
	}
	return out
}

// Notifier delivers one summary covering all violations of a run.
type Notifier interface {
	SendViolations(violations []Violation) error
}

// Report logs every violation and sends a single summary through the
// notifier. Delivery failure is logged, never fatal; the fits remain in
// service regardless.
func Report(violations []Violation, notifier Notifier) {
	if len(violations) == 0 {
		return
	}
	for _, v := range violations {
		logger.Warn("fit coefficient out of bounds: %s", v)
	}
	if notifier == nil {
		return
	}
	if err := notifier.SendViolations(violations); err != nil {
		logger.Error("failed to send quality violation notification: %v", err)
	}
}

func sortedKeys(m map[int]models.FitResult) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
