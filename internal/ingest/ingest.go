// Package ingest loads per-detector, per-day trigger files. It is the thin
// shell over the external columnar trigger store: one JSON document per
// detector per day carrying the trigger sample, the observed live time and
// any veto segments to exclude.
package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gwobs/trigfit/internal/models"
	"github.com/gwobs/trigfit/internal/segments"
)

// TriggerFile is the on-disk shape of one detector-day of triggers.
type TriggerFile struct {
	IFO          string           `json:"ifo"`
	Date         string           `json:"date"` // models.DateLayout
	LiveTime     float64          `json:"live_time"`
	Triggers     []models.Trigger `json:"triggers"`
	VetoSegments segments.List    `json:"veto_segments,omitempty"`
}

// Path returns the conventional trigger-file location for a detector-day.
func Path(dir, ifo string, date time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%s.json", ifo, date.Format(models.DateLayout)))
}

// Load reads and validates one trigger file.
func Load(path string) (*TriggerFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trigger file: %w", err)
	}

	var tf TriggerFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger file %s: %w", path, err)
	}

	if tf.IFO == "" {
		return nil, fmt.Errorf("trigger file %s: ifo must not be empty", path)
	}
	if _, err := time.Parse(models.DateLayout, tf.Date); err != nil {
		return nil, fmt.Errorf("trigger file %s: date must be formatted as %s", path, models.DateLayout)
	}
	if tf.LiveTime < 0 {
		return nil, fmt.Errorf("trigger file %s: live time must not be negative", path)
	}
	for i := range tf.Triggers {
		if err := tf.Triggers[i].Validate(); err != nil {
			return nil, fmt.Errorf("trigger file %s: trigger %d: %w", path, i, err)
		}
	}
	return &tf, nil
}
