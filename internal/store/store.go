// Package store persists daily and combined fit records as JSON files.
//
// Each record is written to its own uniquely named file under the data
// directory, using a write-to-temporary-then-rename discipline so that a
// partial or failed run can never corrupt or partially overwrite a
// previously published record. Reruns of a day supersede the old record by
// publishing a replacement atomically over the same name.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gwobs/trigfit/internal/models"
)

// ErrNotFound reports that no record exists for the requested detector and day.
var ErrNotFound = errors.New("record not found")

const (
	dailySubdir    = "daily"
	combinedSubdir = "combined"
)

// Store reads and writes fit records under a data directory.
type Store struct {
	dir      string
	filePerm os.FileMode
	dirPerm  os.FileMode
}

// New creates a Store rooted at dir. If dir is empty, an OS-appropriate
// tmp directory is used.
func New(dir string) *Store {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "trigfit")
	}
	return &Store{
		dir:      dir,
		filePerm: 0o644,
		dirPerm:  0o755,
	}
}

// DailyPath returns the file path for a detector's daily record.
func (s *Store) DailyPath(ifo string, date time.Time) string {
	name := fmt.Sprintf("%s-%s.json", ifo, date.Format(models.DateLayout))
	return filepath.Join(s.dir, dailySubdir, name)
}

// CombinedPath returns the file path for a combined record.
func (s *Store) CombinedPath(rec *models.CombinedFitRecord) string {
	short := rec.ID
	if len(short) > 8 {
		short = short[:8]
	}
	name := fmt.Sprintf("%s-%s_%s-%s.json", rec.IFO, rec.FirstDate, rec.LastDate, short)
	return filepath.Join(s.dir, combinedSubdir, name)
}

// SaveDaily validates and publishes a daily record.
func (s *Store) SaveDaily(rec *models.DailyFitRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid daily record: %w", err)
	}
	date, err := time.Parse(models.DateLayout, rec.Date)
	if err != nil {
		return fmt.Errorf("invalid daily record date: %w", err)
	}
	return s.writeJSON(s.DailyPath(rec.IFO, date), rec)
}

// LoadDaily reads a detector's daily record. Returns ErrNotFound when no
// record has been published for that day.
func (s *Store) LoadDaily(ifo string, date time.Time) (*models.DailyFitRecord, error) {
	path := s.DailyPath(ifo, date)

	// Clean up any stale temp file from a previous crash.
	if _, err := os.Stat(path + ".tmp"); err == nil {
		_ = os.Remove(path + ".tmp")
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, ifo, date.Format(models.DateLayout))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read daily record: %w", err)
	}

	var rec models.DailyFitRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal daily record %s: %w", path, err)
	}
	return &rec, nil
}

// SaveCombined validates and publishes a combined record.
func (s *Store) SaveCombined(rec *models.CombinedFitRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid combined record: %w", err)
	}
	return s.writeJSON(s.CombinedPath(rec), rec)
}

// writeJSON marshals v and publishes it atomically at path.
func (s *Store) writeJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), s.dirPerm); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, s.filePerm); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath) // Clean up temp file on rename failure
		return fmt.Errorf("failed to publish record: %w", err)
	}
	return nil
}
