// Package dailyfit runs one detector-day of background fitting: veto
// application, binning by template duration, optional loud-event pruning,
// and per-bin tail fits, producing one immutable daily fit record.
package dailyfit

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gwobs/trigfit/internal/bins"
	"github.com/gwobs/trigfit/internal/logger"
	"github.com/gwobs/trigfit/internal/models"
	"github.com/gwobs/trigfit/internal/prune"
	"github.com/gwobs/trigfit/internal/segments"
	"github.com/gwobs/trigfit/internal/tailfit"
)

// Params configures one daily fit run. Every field is explicit and
// validated up front; nothing is read from global state.
type Params struct {
	IFO       string
	Date      time.Time
	Family    tailfit.Family
	Threshold float64

	// Fit binning over template duration.
	Spacing  bins.Spacing
	BinCount int       // For linear/logarithmic spacing
	BinEdges []float64 // For irregular spacing

	// Optional pruning of loud clustered triggers before fitting.
	PruneEnabled  bool
	PruneBinCount int
	PruneQuota    int
	PruneWindow   float64
}

// Run fits one detector-day. Vetoed triggers are excluded and the live
// time reduced accordingly before pruning and fitting.
func Run(triggers []models.Trigger, liveTime float64, vetoes segments.List, p Params, asOf time.Time) (*models.DailyFitRecord, error) {
	vetoes, err := segments.Normalize(vetoes)
	if err != nil {
		return nil, fmt.Errorf("veto segments: %w", err)
	}
	if vetoed := vetoes.TotalDuration(); vetoed > 0 {
		before := len(triggers)
		triggers = vetoes.Apply(triggers)
		liveTime -= vetoed
		if liveTime < 0 {
			liveTime = 0
		}
		logger.Debug("%s %s: vetoes removed %d triggers, %.1f s", p.IFO,
			p.Date.Format(models.DateLayout), before-len(triggers), vetoed)
	}

	fitBins, err := buildFitBins(triggers, p)
	if err != nil {
		return nil, err
	}

	// Drop triggers whose duration falls outside the bin set. Only the
	// irregular policy can exclude here; constructed bins cover the sample.
	inRange := triggers[:0:0]
	for _, t := range triggers {
		if _, ok := fitBins.Index(t.Duration); ok {
			inRange = append(inRange, t)
		}
	}
	if dropped := len(triggers) - len(inRange); dropped > 0 {
		logger.Debug("%s %s: %d triggers outside the bin range excluded", p.IFO,
			p.Date.Format(models.DateLayout), dropped)
	}
	triggers = inRange

	if p.PruneEnabled && len(triggers) > 0 {
		pruneBins, err := bins.Linear(durations(triggers), p.PruneBinCount)
		if err != nil {
			return nil, fmt.Errorf("prune bins: %w", err)
		}
		res, err := prune.Prune(triggers,
			func(t models.Trigger) float64 { return t.Duration },
			pruneBins,
			prune.Config{Window: p.PruneWindow, Quota: p.PruneQuota})
		if err != nil {
			return nil, fmt.Errorf("pruning: %w", err)
		}
		logger.Info("%s %s: pruned %d of %d triggers in %d iterations", p.IFO,
			p.Date.Format(models.DateLayout), res.Removed, len(triggers), res.Iterations)
		triggers = res.Kept
	}

	results := make(map[int]models.FitResult, fitBins.N())
	var retained []models.Trigger
	for b := 0; b < fitBins.N(); b++ {
		var stats []float64
		var binTriggers []models.Trigger
		for _, t := range triggers {
			if idx, ok := fitBins.Index(t.Duration); ok && idx == b {
				stats = append(stats, t.Stat)
				binTriggers = append(binTriggers, t)
			}
		}

		nTemplates := models.CountTemplates(binTriggers)
		fit, err := tailfit.FitBin(p.Family, stats, p.Threshold, fitBins.Lower(b), fitBins.Upper(b), nTemplates)
		if err != nil {
			return nil, err
		}
		results[b] = fit

		for _, t := range binTriggers {
			if t.Stat >= p.Threshold {
				retained = append(retained, t)
			}
		}
	}

	rec := &models.DailyFitRecord{
		ID:          uuid.New().String(),
		IFO:         p.IFO,
		Date:        p.Date.Format(models.DateLayout),
		FitFunction: string(p.Family),
		Threshold:   p.Threshold,
		LiveTime:    liveTime,
		BinEdges:    fitBins.Edges,
		BinSpacing:  string(fitBins.Spacing),
		Bins:        results,
		Retained:    retained,
		CreatedAt:   asOf,
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("assembled daily record: %w", err)
	}
	return rec, nil
}

func buildFitBins(triggers []models.Trigger, p Params) (bins.BinSet, error) {
	switch p.Spacing {
	case bins.SpacingIrregular:
		return bins.Irregular(p.BinEdges)
	case bins.SpacingLinear:
		return bins.Linear(durations(triggers), p.BinCount)
	case bins.SpacingLogarithmic:
		return bins.Logarithmic(durations(triggers), p.BinCount)
	default:
		return bins.BinSet{}, fmt.Errorf("%w: unknown bin spacing %q", bins.ErrInvalidInput, p.Spacing)
	}
}

func durations(triggers []models.Trigger) []float64 {
	out := make([]float64, len(triggers))
	for i, t := range triggers {
		out[i] = t.Duration
	}
	return out
}
