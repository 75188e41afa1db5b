package dailyfit

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/gwobs/trigfit/internal/bins"
	"github.com/gwobs/trigfit/internal/models"
	"github.com/gwobs/trigfit/internal/segments"
	"github.com/gwobs/trigfit/internal/tailfit"
)

var testDay = time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)

func baseParams() Params {
	return Params{
		IFO:       "H1",
		Date:      testDay,
		Family:    tailfit.Exponential,
		Threshold: 5.0,
		Spacing:   bins.SpacingIrregular,
		BinEdges:  []float64{0, 1, 2, 3},
	}
}

// exponentialDay builds perBin triggers per duration bin with statistics
// drawn from an exponential tail above the threshold with the given alpha.
func exponentialDay(perBin int, alpha float64, seed uint64) []models.Trigger {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	dist := distuv.Exponential{Rate: alpha, Src: rng}
	centers := []float64{0.5, 1.5, 2.5}

	var out []models.Trigger
	i := 0
	for _, c := range centers {
		for j := 0; j < perBin; j++ {
			out = append(out, models.Trigger{
				Stat:       5.0 + dist.Rand(),
				Time:       float64(i), // 1 s apart, no accidental clustering
				Duration:   c,
				TemplateID: int64(j % 25),
			})
			i++
		}
	}
	return out
}

func TestRun_ThreeBinExponentialScenario(t *testing.T) {
	triggers := exponentialDay(100, 2.0, 99)

	rec, err := Run(triggers, 86000, nil, baseParams(), time.Now())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(rec.Bins) != 3 {
		t.Fatalf("Expected 3 bins, got %d", len(rec.Bins))
	}

	var alphaSum float64
	ksAbove := 0
	for b := 0; b < 3; b++ {
		fit := rec.Bins[b]
		if !fit.Fitted {
			t.Fatalf("Bin %d not fitted", b)
		}
		if fit.CountAboveThreshold != 100 {
			t.Errorf("Bin %d count = %d, want 100", b, fit.CountAboveThreshold)
		}
		if math.Abs(fit.Alpha-2.0) > 0.6 {
			t.Errorf("Bin %d alpha = %g, too far from 2.0", b, fit.Alpha)
		}
		if fit.NTemplates != 25 {
			t.Errorf("Bin %d templates = %d, want 25", b, fit.NTemplates)
		}
		alphaSum += fit.Alpha
		if fit.KS != nil && fit.KS.PValue > 0.05 {
			ksAbove++
		}
	}

	if mean := alphaSum / 3; math.Abs(mean-2.0) > 0.3 {
		t.Errorf("Mean fitted alpha %g outside 2.0 +/- 0.3", mean)
	}
	if ksAbove < 2 {
		t.Errorf("Only %d/3 bins had KS p-value above 0.05", ksAbove)
	}
	if len(rec.Retained) != 300 {
		t.Errorf("Retained sample = %d triggers, want 300", len(rec.Retained))
	}
}

func TestRun_VetoesReduceSampleAndLiveTime(t *testing.T) {
	triggers := exponentialDay(50, 2.0, 7)
	// Veto the first 10 seconds: 10 triggers (times 0..9) fall inside.
	vetoes := segments.List{{Start: 0, End: 10}}

	rec, err := Run(triggers, 86000, vetoes, baseParams(), time.Now())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rec.LiveTime != 85990 {
		t.Errorf("Live time = %g, want 85990", rec.LiveTime)
	}
	if got := rec.Bins[0].CountAboveThreshold; got != 40 {
		t.Errorf("Bin 0 count = %d, want 40 after vetoes", got)
	}
}

func TestRun_OutOfRangeDurationsExcluded(t *testing.T) {
	triggers := exponentialDay(20, 2.0, 11)
	triggers = append(triggers, models.Trigger{Stat: 50, Time: 9000, Duration: 10, TemplateID: 1})

	rec, err := Run(triggers, 86000, nil, baseParams(), time.Now())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, trig := range rec.Retained {
		if trig.Duration >= 3 {
			t.Errorf("Out-of-range trigger retained: %+v", trig)
		}
	}
}

func TestRun_PruningRemovesLoudCluster(t *testing.T) {
	triggers := exponentialDay(50, 2.0, 13)
	// A loud cluster: three triggers within 0.1 s, far above the rest.
	for k := 0; k < 3; k++ {
		triggers = append(triggers, models.Trigger{
			Stat:       60 + float64(k),
			Time:       50000 + 0.03*float64(k),
			Duration:   0.5,
			TemplateID: 99,
		})
	}

	p := baseParams()
	p.PruneEnabled = true
	p.PruneBinCount = 2
	p.PruneQuota = 1
	p.PruneWindow = 0.1

	rec, err := Run(triggers, 86000, nil, p, time.Now())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, trig := range rec.Retained {
		if trig.Stat >= 60 {
			t.Errorf("Loud clustered trigger survived pruning: %+v", trig)
		}
	}
}

func TestRun_RecordMetadata(t *testing.T) {
	triggers := exponentialDay(10, 2.0, 17)
	rec, err := Run(triggers, 86000, nil, baseParams(), time.Now())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rec.IFO != "H1" || rec.Date != "2026-08-25" {
		t.Errorf("Record identity wrong: %s %s", rec.IFO, rec.Date)
	}
	if rec.FitFunction != "exponential" || rec.Threshold != 5.0 {
		t.Errorf("Record fit metadata wrong: %s %g", rec.FitFunction, rec.Threshold)
	}
	if rec.BinSpacing != "irregular" || len(rec.BinEdges) != 4 {
		t.Errorf("Record bin metadata wrong: %s %v", rec.BinSpacing, rec.BinEdges)
	}
	if rec.ID == "" {
		t.Error("Record must carry an ID")
	}
}
