// Package tailfit estimates the decay rate of an above-threshold statistic
// tail by maximum likelihood, so the background distribution can be
// extrapolated to loud, rare events.
//
// Three one-parameter families are supported, each with a closed-form MLE
// for the shape parameter alpha and its asymptotic standard error:
//
//	exponential: P(X > x | X > t) = exp(-alpha (x - t))
//	rayleigh:    P(X > x | X > t) = exp(-alpha (x^2 - t^2) / 2)
//	power:       P(X > x | X > t) = (x / t)^(1 - alpha), alpha > 1
//
// Goodness of fit is evaluated with a one-sample Kolmogorov-Smirnov test
// against the fitted tail CDF.
package tailfit

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/gwobs/trigfit/internal/models"
)

// Family identifies the parametric form of the fitted tail.
type Family string

const (
	Exponential Family = "exponential"
	Rayleigh    Family = "rayleigh"
	Power       Family = "power"
)

// ErrUnknownFamily reports a fit request for an unsupported functional family.
var ErrUnknownFamily = errors.New("unknown fit family")

// ParseFamily validates a fit-function name from configuration.
func ParseFamily(name string) (Family, error) {
	switch Family(name) {
	case Exponential, Rayleigh, Power:
		return Family(name), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFamily, name)
	}
}

// Tail selects the values at or above threshold. The input is not modified.
func Tail(stats []float64, threshold float64) []float64 {
	tail := make([]float64, 0, len(stats))
	for _, v := range stats {
		if v >= threshold {
			tail = append(tail, v)
		}
	}
	return tail
}

// Estimate computes the maximum-likelihood alpha and its asymptotic
// standard error for the given family from the above-threshold values.
// The tail must be non-empty; for the power family the threshold must be
// positive.
func Estimate(family Family, tail []float64, threshold float64) (alpha, stderr float64, err error) {
	if len(tail) == 0 {
		return 0, 0, errors.New("tail estimate requires at least one value above threshold")
	}
	n := float64(len(tail))

	switch family {
	case Exponential:
		var sum float64
		for _, v := range tail {
			sum += v - threshold
		}
		if sum <= 0 {
			return 0, 0, errors.New("degenerate tail sample: all values at threshold")
		}
		alpha = n / sum
		stderr = alpha / math.Sqrt(n)

	case Rayleigh:
		var sum float64
		for _, v := range tail {
			sum += (v*v - threshold*threshold) / 2
		}
		if sum <= 0 {
			return 0, 0, errors.New("degenerate tail sample: all values at threshold")
		}
		alpha = n / sum
		stderr = alpha / math.Sqrt(n)

	case Power:
		if threshold <= 0 {
			return 0, 0, errors.New("power-law tail requires a positive threshold")
		}
		var sum float64
		for _, v := range tail {
			sum += math.Log(v / threshold)
		}
		if sum <= 0 {
			return 0, 0, errors.New("degenerate tail sample: all values at threshold")
		}
		alpha = 1 + n/sum
		stderr = (alpha - 1) / math.Sqrt(n)

	default:
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownFamily, family)
	}

	return alpha, stderr, nil
}

// TailCDF returns the model survival probability P(X > x | X > threshold)
// for the fitted family. It is 1 at the threshold and decreases
// monotonically above it.
func TailCDF(family Family, alpha, threshold, x float64) float64 {
	if x <= threshold {
		return 1
	}
	switch family {
	case Exponential:
		return math.Exp(-alpha * (x - threshold))
	case Rayleigh:
		return math.Exp(-alpha * (x*x - threshold*threshold) / 2)
	case Power:
		return math.Pow(x/threshold, 1-alpha)
	default:
		return math.NaN()
	}
}

// KSTest runs a one-sample Kolmogorov-Smirnov test of the above-threshold
// values against the fitted tail CDF. Returns nil when fewer than two
// values are available, since the comparison is then undefined.
func KSTest(family Family, alpha, threshold float64, tail []float64) *models.KSResult {
	if len(tail) < 2 {
		return nil
	}
	sorted := make([]float64, len(tail))
	copy(sorted, tail)
	sort.Float64s(sorted)

	n := float64(len(sorted))
	var d float64
	for i, v := range sorted {
		model := 1 - TailCDF(family, alpha, threshold, v)
		if up := float64(i+1)/n - model; up > d {
			d = up
		}
		if down := model - float64(i)/n; down > d {
			d = down
		}
	}

	return &models.KSResult{
		Statistic: d,
		PValue:    ksPValue(d, len(sorted)),
	}
}

// ksPValue is the asymptotic Kolmogorov p-value with the finite-sample
// effective lambda of Stephens: lambda = (sqrt(n) + 0.12 + 0.11/sqrt(n)) D.
func ksPValue(d float64, n int) float64 {
	sqrtN := math.Sqrt(float64(n))
	lambda := (sqrtN + 0.12 + 0.11/sqrtN) * d
	if lambda < 1e-3 {
		return 1
	}

	// Alternating series 2 sum (-1)^(k-1) exp(-2 k^2 lambda^2); terms
	// shrink fast, 100 is far beyond convergence for any lambda of interest.
	var sum float64
	sign := 1.0
	for k := 1; k <= 100; k++ {
		term := sign * math.Exp(-2*float64(k*k)*lambda*lambda)
		sum += term
		sign = -sign
		if math.Abs(term) < 1e-12 {
			break
		}
	}
	p := 2 * sum
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// FitBin fits one bin's statistic values above threshold and assembles the
// per-bin result. A bin with no values above threshold yields the
// un-fitted sentinel result rather than an error.
func FitBin(family Family, stats []float64, threshold, lower, upper float64, nTemplates int) (models.FitResult, error) {
	tail := Tail(stats, threshold)
	if len(tail) == 0 {
		return models.NoFit(threshold, lower, upper), nil
	}

	alpha, stderr, err := Estimate(family, tail, threshold)
	if err != nil {
		return models.FitResult{}, fmt.Errorf("fit of bin [%g, %g): %w", lower, upper, err)
	}

	return models.FitResult{
		Fitted:              true,
		Alpha:               alpha,
		AlphaStderr:         stderr,
		Threshold:           threshold,
		CountAboveThreshold: len(tail),
		NTemplates:          nTemplates,
		LowerEdge:           lower,
		UpperEdge:           upper,
		KS:                  KSTest(family, alpha, threshold, tail),
	}, nil
}
