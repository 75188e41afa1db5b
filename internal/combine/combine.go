// Package combine aggregates a rolling window of daily fit records into a
// single conservative multi-day background estimate per bin.
//
// Daily statistics are noisy at low per-bin counts. The combiner walks
// backward from a requested end date collecting the most recent daily
// records, then replaces each bin's across-day alphas with a weighted
// conservative percentile so that days with more statistics dominate the
// estimate and the tail behavior of the noisiest days cannot drag the
// combined estimate anti-conservative.
//
// The combination rule: per bin, take the weighted empirical quantile of
// the fitted daily alphas at the configured conservative percentile
// (default 0.84), weighting each day by its event count above threshold
// times its live time. The combined estimate is therefore never pulled
// below the bulk of well-measured days by a single anomalously flat
// (low-alpha) noisy day, while remaining a pure deterministic function of
// the records read and the configured parameters.
package combine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/gwobs/trigfit/internal/logger"
	"github.com/gwobs/trigfit/internal/models"
	"github.com/gwobs/trigfit/internal/store"
)

// ErrInsufficientData reports that no qualifying daily records exist in
// the requested window, so no combined estimate can be produced at all.
var ErrInsufficientData = errors.New("no qualifying daily records found for combination")

// Defaults for Config fields left at zero.
const (
	DefaultDays       = 7
	DefaultMaxGapDays = 10
	DefaultPercentile = 0.84
)

// Config controls one combination run.
type Config struct {
	Days                   int     // Daily records to combine
	MaxGapDays             int     // Longest tolerated consecutive-missing-day streak
	ConservativePercentile float64 // Weighted quantile taken across days, in (0,1)
}

func (c Config) withDefaults() Config {
	if c.Days <= 0 {
		c.Days = DefaultDays
	}
	if c.MaxGapDays <= 0 {
		c.MaxGapDays = DefaultMaxGapDays
	}
	if c.ConservativePercentile <= 0 || c.ConservativePercentile >= 1 {
		c.ConservativePercentile = DefaultPercentile
	}
	return c
}

// DailyReader supplies previously published daily records. *store.Store
// satisfies it.
type DailyReader interface {
	LoadDaily(ifo string, date time.Time) (*models.DailyFitRecord, error)
}

// Combine reads up to cfg.Days daily records for ifo walking backward from
// end, and produces one combined record. Missing days are skipped; a
// consecutive-missing streak longer than cfg.MaxGapDays truncates the
// window with a warning. Zero qualifying records is a hard error. asOf
// stamps the record's creation time so reruns over the same inputs can
// reproduce their output exactly.
func Combine(src DailyReader, ifo string, end time.Time, cfg Config, asOf time.Time) (*models.CombinedFitRecord, error) {
	cfg = cfg.withDefaults()

	var records []*models.DailyFitRecord // newest first
	missStreak := 0
	truncated := false

	for date := end; len(records) < cfg.Days; date = date.AddDate(0, 0, -1) {
		rec, err := src.LoadDaily(ifo, date)
		if errors.Is(err, store.ErrNotFound) {
			missStreak++
			if missStreak > cfg.MaxGapDays {
				truncated = true
				break
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read daily record for %s %s: %w",
				ifo, date.Format(models.DateLayout), err)
		}
		if len(records) > 0 && !compatible(records[0], rec) {
			// A rerun with different binning or fit settings cannot be
			// combined with the newer records; treat the day as missing.
			logger.Warn("daily record %s %s has incompatible fit settings, skipping", ifo, rec.Date)
			missStreak++
			if missStreak > cfg.MaxGapDays {
				truncated = true
				break
			}
			continue
		}
		records = append(records, rec)
		missStreak = 0
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s ending %s", ErrInsufficientData, ifo, end.Format(models.DateLayout))
	}
	if truncated {
		logger.Warn("combination window for %s truncated to %d of %d days: gap longer than %d days",
			ifo, len(records), cfg.Days, cfg.MaxGapDays)
	}

	// Reverse to oldest-first for the span and source bookkeeping.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	newest := records[len(records)-1]
	nbins := len(newest.BinEdges) - 1
	bins := make(map[int]models.CombinedBin, nbins)

	for b := 0; b < nbins; b++ {
		bins[b] = combineBin(records, b, cfg.ConservativePercentile)
	}

	sourceIDs := make([]string, len(records))
	for i, rec := range records {
		sourceIDs[i] = rec.ID
	}

	out := &models.CombinedFitRecord{
		ID:          deterministicID(ifo, records[0].Date, newest.Date, sourceIDs),
		IFO:         ifo,
		FirstDate:   records[0].Date,
		LastDate:    newest.Date,
		DaysUsed:    len(records),
		Truncated:   truncated,
		Percentile:  cfg.ConservativePercentile,
		FitFunction: newest.FitFunction,
		Threshold:   newest.Threshold,
		BinEdges:    append([]float64(nil), newest.BinEdges...),
		Bins:        bins,
		SourceIDs:   sourceIDs,
		CreatedAt:   asOf,
	}
	return out, nil
}

// combineBin collapses one bin's across-day alphas into the weighted
// conservative percentile, and totals counts and live time.
func combineBin(records []*models.DailyFitRecord, b int, percentile float64) models.CombinedBin {
	type sample struct {
		alpha  float64
		weight float64
	}
	var samples []sample
	out := models.CombinedBin{}

	for _, rec := range records {
		fit, ok := rec.Bins[b]
		if !ok || !fit.Fitted {
			continue
		}
		w := float64(fit.CountAboveThreshold) * rec.LiveTime
		if w <= 0 {
			w = float64(fit.CountAboveThreshold)
		}
		samples = append(samples, sample{alpha: fit.Alpha, weight: w})
		out.Count += fit.CountAboveThreshold
		out.LiveTime += rec.LiveTime
	}

	if len(samples) == 0 {
		return out
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i].alpha < samples[j].alpha })
	alphas := make([]float64, len(samples))
	weights := make([]float64, len(samples))
	for i, s := range samples {
		alphas[i] = s.alpha
		weights[i] = s.weight
	}

	out.Fitted = true
	out.Alpha = stat.Quantile(percentile, stat.Empirical, alphas, weights)
	return out
}

// compatible reports whether two daily records can be combined: same bin
// layout, fit function and threshold.
func compatible(a, b *models.DailyFitRecord) bool {
	if a.FitFunction != b.FitFunction || a.Threshold != b.Threshold {
		return false
	}
	if len(a.BinEdges) != len(b.BinEdges) {
		return false
	}
	for i := range a.BinEdges {
		if a.BinEdges[i] != b.BinEdges[i] {
			return false
		}
	}
	return true
}

// deterministicID derives the record ID from the inputs so that re-running
// a combination over the same daily records reproduces the same output.
func deterministicID(ifo, first, last string, sourceIDs []string) string {
	key := ifo + "|" + first + "|" + last + "|" + strings.Join(sourceIDs, ",")
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}
