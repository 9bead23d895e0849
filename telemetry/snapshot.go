package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/pthm-cable/cellflow/field"
	"github.com/pthm-cable/cellflow/systems"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot is a resumable checkpoint of a run.
type Snapshot struct {
	Version int       `json:"version"`
	RunID   uuid.UUID `json:"run_id"`
	Seed    int64     `json:"seed"`

	Types systems.Types `json:"types"`
	Size  field.Size    `json:"size"`

	// Source holds the random stream position (numeric.Source binary form).
	Source []byte `json:"source"`

	State systems.State `json:"state"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// Validate checks that a loaded snapshot can drive a run with the given
// kinds and size.
func (s *Snapshot) Validate(types systems.Types, size field.Size) error {
	if s.Version != SnapshotVersion {
		return fmt.Errorf("snapshot version %d, want %d", s.Version, SnapshotVersion)
	}
	if s.Types != types {
		return fmt.Errorf("snapshot types %s do not match run types %s", s.Types, types)
	}
	if s.Size != size {
		return fmt.Errorf("snapshot size %s does not match run size %s", s.Size, size)
	}
	return nil
}

// SaveSnapshot writes a snapshot to dir.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("snapshot_%d", snapshot.State.Iteration)
	if snapshot.Bookmark != nil {
		sanitized := strings.ReplaceAll(string(snapshot.Bookmark.Type), " ", "_")
		name = fmt.Sprintf("snapshot_%d_%s", snapshot.State.Iteration, sanitized)
	}
	path := filepath.Join(dir, name+".json")

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}
