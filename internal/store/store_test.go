package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gwobs/trigfit/internal/models"
)

func testDaily(ifo, date string) *models.DailyFitRecord {
	return &models.DailyFitRecord{
		ID:          "daily-" + ifo + "-" + date,
		IFO:         ifo,
		Date:        date,
		FitFunction: "exponential",
		Threshold:   6.5,
		LiveTime:    80000,
		BinEdges:    []float64{0, 1, 2},
		BinSpacing:  "irregular",
		Bins: map[int]models.FitResult{
			0: {
				Fitted:              true,
				Alpha:               2.1,
				AlphaStderr:         0.2,
				Threshold:           6.5,
				CountAboveThreshold: 120,
				NTemplates:          8,
				LowerEdge:           0,
				UpperEdge:           1,
				KS:                  &models.KSResult{Statistic: 0.05, PValue: 0.6},
			},
			1: models.NoFit(6.5, 1, 2),
		},
		CreatedAt: time.Date(2026, 8, 26, 1, 0, 0, 0, time.UTC),
	}
}

func TestStore_SaveAndLoadDaily(t *testing.T) {
	s := New(t.TempDir())
	rec := testDaily("H1", "2026-08-25")

	if err := s.SaveDaily(rec); err != nil {
		t.Fatalf("SaveDaily failed: %v", err)
	}

	date, _ := time.Parse(models.DateLayout, rec.Date)
	loaded, err := s.LoadDaily("H1", date)
	if err != nil {
		t.Fatalf("LoadDaily failed: %v", err)
	}
	if loaded.ID != rec.ID {
		t.Errorf("Loaded ID %s, want %s", loaded.ID, rec.ID)
	}
	fit := loaded.Bins[0]
	if !fit.Fitted || fit.Alpha != 2.1 || fit.KS == nil || fit.KS.PValue != 0.6 {
		t.Errorf("Bin 0 did not round-trip: %+v", fit)
	}
	if loaded.Bins[1].Fitted {
		t.Error("Un-fitted sentinel bin did not round-trip")
	}
}

func TestStore_LoadDailyNotFound(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.LoadDaily("H1", time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStore_SaveDailyRejectsInvalid(t *testing.T) {
	s := New(t.TempDir())
	rec := testDaily("H1", "2026-08-25")
	rec.BinEdges = []float64{1} // Invalid

	if err := s.SaveDaily(rec); err == nil {
		t.Error("Expected validation error for malformed record")
	}
}

func TestStore_RerunSupersedesAtomically(t *testing.T) {
	s := New(t.TempDir())
	date := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)

	first := testDaily("H1", "2026-08-25")
	if err := s.SaveDaily(first); err != nil {
		t.Fatalf("First SaveDaily failed: %v", err)
	}

	second := testDaily("H1", "2026-08-25")
	second.ID = "daily-rerun"
	if err := s.SaveDaily(second); err != nil {
		t.Fatalf("Second SaveDaily failed: %v", err)
	}

	loaded, err := s.LoadDaily("H1", date)
	if err != nil {
		t.Fatalf("LoadDaily failed: %v", err)
	}
	if loaded.ID != "daily-rerun" {
		t.Errorf("Rerun did not supersede: loaded %s", loaded.ID)
	}
}

func TestStore_StaleTempFileCleanedOnLoad(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	rec := testDaily("H1", "2026-08-25")
	if err := s.SaveDaily(rec); err != nil {
		t.Fatalf("SaveDaily failed: %v", err)
	}

	date, _ := time.Parse(models.DateLayout, rec.Date)
	tempPath := s.DailyPath("H1", date) + ".tmp"
	if err := os.WriteFile(tempPath, []byte("partial"), 0o644); err != nil {
		t.Fatalf("Failed to plant stale temp file: %v", err)
	}

	if _, err := s.LoadDaily("H1", date); err != nil {
		t.Fatalf("LoadDaily failed: %v", err)
	}
	if _, err := os.Stat(tempPath); !os.IsNotExist(err) {
		t.Error("Stale temp file was not cleaned up")
	}
}

func TestStore_SaveCombined(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	rec := &models.CombinedFitRecord{
		ID:          "0a1b2c3d-0000-0000-0000-000000000000",
		IFO:         "L1",
		FirstDate:   "2026-08-19",
		LastDate:    "2026-08-25",
		DaysUsed:    2,
		Percentile:  0.84,
		FitFunction: "exponential",
		Threshold:   6.5,
		BinEdges:    []float64{0, 1, 2},
		Bins: map[int]models.CombinedBin{
			0: {Fitted: true, Alpha: 2.0, Count: 240, LiveTime: 160000},
			1: {},
		},
		SourceIDs: []string{"a", "b"},
		CreatedAt: time.Now(),
	}

	if err := s.SaveCombined(rec); err != nil {
		t.Fatalf("SaveCombined failed: %v", err)
	}

	path := s.CombinedPath(rec)
	if filepath.Base(path) != "L1-2026-08-19_2026-08-25-0a1b2c3d.json" {
		t.Errorf("Unexpected combined file name: %s", filepath.Base(path))
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Combined record not published: %v", err)
	}
}

func TestStore_EmptyDirUsesTmp(t *testing.T) {
	s := New("")
	if s.dir == "" {
		t.Fatal("Store dir should not be empty")
	}
	want := filepath.Join(os.TempDir(), "trigfit")
	if s.dir != want {
		t.Errorf("Store dir = %s, want %s", s.dir, want)
	}
}
