package importer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Checkpoint is the import resumability marker, persisted as a flat JSON
// file after every record. Deleting the file forces a full re-run.
type Checkpoint struct {
	LastProcessedID int64         `json:"last_processed_id"`
	TotalProcessed  int           `json:"total_processed"`
	TotalFailed     int           `json:"total_failed"`
	Errors          []RecordError `json:"errors,omitempty"`
	StartedAt       time.Time     `json:"started_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// LoadCheckpoint reads a checkpoint from disk. A missing file is a fresh
// start, not an error.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Checkpoint{StartedAt: time.Now()}, nil
	}
	if err != nil {
		return nil, err
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

// Save writes the checkpoint atomically (temp file + rename), so an
// interrupted write can never corrupt the previous checkpoint.
func (cp *Checkpoint) Save(path string) error {
	cp.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// DeleteCheckpoint removes the checkpoint file. Missing is fine.
func DeleteCheckpoint(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
