// Package prune removes loud, temporally clustered triggers from a fit
// sample so that genuine or rare loud signals cannot bias the background
// model.
//
// The pruner keeps two aligned views of the day's triggers: the
// authoritative sample that will be fit, and a reference copy used only to
// find candidates. On each pass the loudest surviving reference trigger is
// located and its prune-parameter bin consulted: if the bin still has
// quota, the trigger and all of its neighbors within the time window are
// removed from both views and the removal is charged to the bin; if the
// bin is already at quota, the trigger and its neighbors are spent as
// candidates (dropped from the reference copy) but stay in the fit sample.
// The loop stops when every bin has reached quota, when no candidates
// remain, or at a hard iteration cap.
package prune

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/gwobs/trigfit/internal/bins"
	"github.com/gwobs/trigfit/internal/logger"
	"github.com/gwobs/trigfit/internal/models"
)

// DefaultWindow is the default clustering time window in seconds.
const DefaultWindow = 0.1

// maxIterations bounds the pruning loop so it terminates regardless of
// data pathologies such as duplicate timestamps.
const maxIterations = 1000

// ErrConsistency reports that the pruning bookkeeping removed more events
// than the total quota permits. This indicates an internal invariant
// violation and aborts the run.
var ErrConsistency = errors.New("pruning removed more events than the total quota permits")

// Config controls one pruning pass.
type Config struct {
	Window float64 // Clustering window in seconds; DefaultWindow when <= 0
	Quota  int     // Removals permitted per prune bin
}

// State records the per-bin timestamps of pruned triggers. Carrying a
// prior State into PruneWithState counts earlier removals against the
// quota, so re-running on an already pruned sample removes nothing.
type State struct {
	PrunedTimes map[int][]float64 `json:"pruned_times"`
}

// NewState returns an empty pruning state.
func NewState() State {
	return State{PrunedTimes: make(map[int][]float64)}
}

func (s State) totalPruned() int {
	n := 0
	for _, times := range s.PrunedTimes {
		n += len(times)
	}
	return n
}

// Result is the outcome of a pruning pass.
type Result struct {
	Kept       []models.Trigger // The desensitized fit sample
	State      State
	Removed    int  // Triggers removed from the fit sample by this pass
	Iterations int  // Candidate-selection passes performed
	Partial    bool // Iteration cap hit before all bins reached quota
}

// Prune runs one pruning pass from an empty state. param extracts the
// pruning parameter from a trigger (it may differ from the fit's binning
// parameter), and binSet partitions that parameter into quota bins.
func Prune(triggers []models.Trigger, param func(models.Trigger) float64, binSet bins.BinSet, cfg Config) (Result, error) {
	return PruneWithState(triggers, param, binSet, cfg, NewState())
}

// PruneWithState runs a pruning pass that honors removals already recorded
// in a prior state.
func PruneWithState(triggers []models.Trigger, param func(models.Trigger) float64, binSet bins.BinSet, cfg Config, prior State) (Result, error) {
	window := cfg.Window
	if window <= 0 {
		window = DefaultWindow
	}
	if cfg.Quota < 0 {
		return Result{}, fmt.Errorf("prune quota must not be negative, got %d", cfg.Quota)
	}

	state := NewState()
	for b, times := range prior.PrunedTimes {
		state.PrunedTimes[b] = append([]float64(nil), times...)
	}

	keep := make([]bool, len(triggers))
	for i := range keep {
		keep[i] = true
	}
	ref := make([]int, len(triggers))
	for i := range ref {
		ref[i] = i
	}

	nbins := binSet.N()
	removed := 0
	iterations := 0
	partial := false

	for ; iterations < maxIterations; iterations++ {
		if allBinsFull(state, nbins, cfg.Quota) {
			break
		}
		if state.totalPruned() > nbins*cfg.Quota {
			return Result{}, ErrConsistency
		}
		if len(ref) == 0 {
			// Quiet bins may never reach quota once the candidates run out.
			break
		}

		stats := make([]float64, len(ref))
		for i, idx := range ref {
			stats[i] = triggers[idx].Stat
		}
		loudest := ref[floats.MaxIdx(stats)]
		t0 := triggers[loudest].Time

		b, inRange := binSet.Index(param(triggers[loudest]))
		if !inRange || len(state.PrunedTimes[b]) >= cfg.Quota {
			// Spent as a candidate: the trigger and its window neighbors
			// stay in the fit sample but stop competing for removal.
			ref = dropWithinWindow(ref, triggers, t0, window)
			continue
		}

		for i, t := range triggers {
			if keep[i] && math.Abs(t.Time-t0) < window {
				keep[i] = false
				removed++
			}
		}
		ref = dropWithinWindow(ref, triggers, t0, window)
		state.PrunedTimes[b] = append(state.PrunedTimes[b], t0)
	}

	if iterations == maxIterations && !allBinsFull(state, nbins, cfg.Quota) {
		partial = true
		logger.Warn("pruning stopped at iteration cap %d with %d/%d bin quotas filled; proceeding with partial result",
			maxIterations, fullBins(state, nbins, cfg.Quota), nbins)
	}

	kept := make([]models.Trigger, 0, len(triggers)-removed)
	for i, t := range triggers {
		if keep[i] {
			kept = append(kept, t)
		}
	}

	return Result{
		Kept:       kept,
		State:      state,
		Removed:    removed,
		Iterations: iterations,
		Partial:    partial,
	}, nil
}

func dropWithinWindow(ref []int, triggers []models.Trigger, t0, window float64) []int {
	out := ref[:0]
	for _, idx := range ref {
		if math.Abs(triggers[idx].Time-t0) >= window {
			out = append(out, idx)
		}
	}
	return out
}

func allBinsFull(s State, nbins, quota int) bool {
	return fullBins(s, nbins, quota) == nbins
}

func fullBins(s State, nbins, quota int) int {
	full := 0
	for b := 0; b < nbins; b++ {
		if len(s.PrunedTimes[b]) >= quota {
			full++
		}
	}
	return full
}
