package models

import "errors"

// KSResult holds a one-sample Kolmogorov-Smirnov goodness-of-fit outcome.
// A nil *KSResult on a FitResult means the test was undefined (too few
// events above threshold to compare against the model).
type KSResult struct {
	Statistic float64 `json:"statistic"` // Max distance between empirical and model CDF
	PValue    float64 `json:"p_value"`   // In [0,1]; low values signal family mismatch
}

// FitResult is the per-bin, per-epoch outcome of a tail fit.
// Fitted is false when the bin had no events above threshold; in that
// case Alpha, AlphaStderr and KS carry no information.
type FitResult struct {
	Fitted              bool      `json:"fitted"`
	Alpha               float64   `json:"alpha"`        // Fitted shape parameter
	AlphaStderr         float64   `json:"alpha_stderr"` // Asymptotic standard error, >= 0
	Threshold           float64   `json:"threshold"`
	CountAboveThreshold int       `json:"count_above_threshold"`
	NTemplates          int       `json:"n_templates"` // Distinct templates contributing to the bin
	LowerEdge           float64   `json:"lower_edge"`  // Bin interval [LowerEdge, UpperEdge)
	UpperEdge           float64   `json:"upper_edge"`
	KS                  *KSResult `json:"ks,omitempty"`
}

// NoFit returns the sentinel result for a bin with no events above threshold.
func NoFit(threshold, lower, upper float64) FitResult {
	return FitResult{
		Fitted:    false,
		Threshold: threshold,
		LowerEdge: lower,
		UpperEdge: upper,
	}
}

// Validate checks internal consistency of a fit result.
func (r *FitResult) Validate() error {
	if r.LowerEdge >= r.UpperEdge {
		return errors.New("fit result bin edges must satisfy lower < upper")
	}
	if r.CountAboveThreshold < 0 {
		return errors.New("count above threshold must not be negative")
	}
	if r.NTemplates < 0 {
		return errors.New("template count must not be negative")
	}
	if !r.Fitted {
		if r.CountAboveThreshold != 0 {
			return errors.New("un-fitted result must have zero events above threshold")
		}
		return nil
	}
	if r.Alpha <= 0 {
		return errors.New("fitted alpha must be positive")
	}
	if r.AlphaStderr < 0 {
		return errors.New("alpha stderr must not be negative")
	}
	if r.CountAboveThreshold < 1 {
		return errors.New("fitted result requires at least one event above threshold")
	}
	if r.KS != nil && (r.KS.PValue < 0 || r.KS.PValue > 1) {
		return errors.New("KS p-value must be in [0,1]")
	}
	return nil
}
