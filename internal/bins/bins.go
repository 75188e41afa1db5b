// Package bins maps continuous template parameters onto integer bin indices.
//
// A BinSet is an ordered sequence of contiguous half-open intervals
// [lower_i, upper_i) with strictly increasing edges. Linear and logarithmic
// bin sets are built from an observed sample with a small padding factor so
// that every sample point used for construction lands strictly inside the
// outer edges. Irregular bin sets take caller-supplied edges; values outside
// them are reported as out of range and the caller is expected to drop those
// triggers before fitting rather than clip them.
package bins

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Spacing identifies how a BinSet's edges were constructed.
type Spacing string

const (
	SpacingLinear      Spacing = "linear"
	SpacingLogarithmic Spacing = "logarithmic"
	SpacingIrregular   Spacing = "irregular"
)

// ErrInvalidInput reports a malformed bin construction request.
var ErrInvalidInput = errors.New("invalid bin input")

// Padding factors applied to the sample minimum and maximum so that no
// construction sample falls exactly on an outer edge.
const (
	padLow  = 0.999
	padHigh = 1.001
)

// BinSet holds strictly increasing bin edges for N = len(Edges)-1 bins.
type BinSet struct {
	Edges   []float64
	Spacing Spacing
}

// Linear builds n equally spaced bins covering the given sample values,
// padded so every value falls strictly inside the outer edges.
func Linear(values []float64, n int) (BinSet, error) {
	lo, hi, err := paddedRange(values, n, false)
	if err != nil {
		return BinSet{}, err
	}
	edges := make([]float64, n+1)
	step := (hi - lo) / float64(n)
	for i := 0; i <= n; i++ {
		edges[i] = lo + float64(i)*step
	}
	edges[n] = hi
	return BinSet{Edges: edges, Spacing: SpacingLinear}, nil
}

// Logarithmic builds n bins equally spaced in log-space over the given
// sample values, with the same padding as Linear. All values must be
// strictly positive.
func Logarithmic(values []float64, n int) (BinSet, error) {
	lo, hi, err := paddedRange(values, n, true)
	if err != nil {
		return BinSet{}, err
	}
	edges := make([]float64, n+1)
	logLo, logHi := math.Log(lo), math.Log(hi)
	step := (logHi - logLo) / float64(n)
	for i := 0; i <= n; i++ {
		edges[i] = math.Exp(logLo + float64(i)*step)
	}
	edges[0] = lo
	edges[n] = hi
	return BinSet{Edges: edges, Spacing: SpacingLogarithmic}, nil
}

// Irregular builds a BinSet from caller-supplied edges. At least two
// strictly increasing edges are required.
func Irregular(edges []float64) (BinSet, error) {
	if len(edges) < 2 {
		return BinSet{}, fmt.Errorf("%w: irregular bins need at least 2 edges, got %d", ErrInvalidInput, len(edges))
	}
	for i := 1; i < len(edges); i++ {
		if edges[i] <= edges[i-1] {
			return BinSet{}, fmt.Errorf("%w: irregular bin edges must be strictly increasing", ErrInvalidInput)
		}
	}
	out := make([]float64, len(edges))
	copy(out, edges)
	return BinSet{Edges: out, Spacing: SpacingIrregular}, nil
}

func paddedRange(values []float64, n int, logSpace bool) (float64, float64, error) {
	if n < 1 {
		return 0, 0, fmt.Errorf("%w: bin count must be at least 1, got %d", ErrInvalidInput, n)
	}
	if len(values) == 0 {
		return 0, 0, fmt.Errorf("%w: no values to bin", ErrInvalidInput)
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, 0, fmt.Errorf("%w: values must be finite", ErrInvalidInput)
		}
		if logSpace && v <= 0 {
			return 0, 0, fmt.Errorf("%w: logarithmic bins require positive values, got %g", ErrInvalidInput, v)
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	lo *= padLow
	hi *= padHigh
	if lo >= hi {
		return 0, 0, fmt.Errorf("%w: degenerate value range [%g, %g]", ErrInvalidInput, lo, hi)
	}
	return lo, hi, nil
}

// N returns the number of bins.
func (b BinSet) N() int {
	return len(b.Edges) - 1
}

// Index returns the bin containing v, or false when v lies outside
// [Edges[0], Edges[last]).
func (b BinSet) Index(v float64) (int, bool) {
	if len(b.Edges) < 2 || v < b.Edges[0] || v >= b.Edges[len(b.Edges)-1] {
		return 0, false
	}
	// SearchFloat64s finds the first edge > v when v sits between edges;
	// the bin index is one less than that insertion point.
	i := sort.SearchFloat64s(b.Edges, v)
	if i < len(b.Edges) && b.Edges[i] == v {
		return i, true
	}
	return i - 1, true
}

// Lower returns the lower edge of bin i.
func (b BinSet) Lower(i int) float64 { return b.Edges[i] }

// Upper returns the upper edge of bin i.
func (b BinSet) Upper(i int) float64 { return b.Edges[i+1] }

// Centers returns per-bin centres: arithmetic midpoints for linear and
// irregular spacing, geometric midpoints for logarithmic spacing. Centres
// are record metadata for labeling; they take no part in the fitting math.
func (b BinSet) Centers() []float64 {
	out := make([]float64, b.N())
	for i := range out {
		if b.Spacing == SpacingLogarithmic {
			out[i] = math.Sqrt(b.Edges[i] * b.Edges[i+1])
		} else {
			out[i] = 0.5 * (b.Edges[i] + b.Edges[i+1])
		}
	}
	return out
}

// Widths returns per-bin widths.
func (b BinSet) Widths() []float64 {
	out := make([]float64, b.N())
	for i := range out {
		out[i] = b.Edges[i+1] - b.Edges[i]
	}
	return out
}
