package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rahul/reforge/internal/plan"
)

// ErrPersistence wraps every checkpoint read or write failure. Correctness
// across a host reload depends on the checkpoint, so these are fatal for a run.
var ErrPersistence = errors.New("checkpoint persistence error")

// CheckpointFile is the well-known name inside the state directory.
const CheckpointFile = "pending_plan.json"

// Checkpoint is the durable record of an in-flight plan's unexecuted remainder.
type Checkpoint struct {
	plan.Plan
	Phase     plan.Phase `json:"phase"`
	CreatedAt time.Time  `json:"createdAt"`

	// Preceding are the pre-reset steps of the same plan. Their results are
	// only present when the process lived long enough to record them.
	Preceding        []plan.Step       `json:"preceding,omitempty"`
	PrecedingResults []plan.StepResult `json:"precedingResults,omitempty"`
}

// CheckpointStore persists at most one checkpoint. There is one writer and one
// reader because the host runs a single process at a time.
type CheckpointStore struct {
	Path string
}

func NewCheckpointStore(stateDir string) *CheckpointStore {
	return &CheckpointStore{Path: filepath.Join(stateDir, CheckpointFile)}
}

// Save persists p as the post-reset remainder, replacing any stale checkpoint.
func (s *CheckpointStore) Save(p plan.Plan) error {
	return s.Write(Checkpoint{Plan: p})
}

// Write persists cp atomically and fsyncs it before returning.
func (s *CheckpointStore) Write(cp Checkpoint) error {
	if cp.Phase == "" {
		cp.Phase = plan.PhasePostReset
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrPersistence, err)
	}
	if err := writeFileAtomic(s.Path, data, 0600); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// TryResume consumes the pending checkpoint. It returns nil, nil when there
// is none. The file is deleted before the caller runs anything so a crash
// after this point does not replay the remainder.
func (s *CheckpointStore) TryResume() (*Checkpoint, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read: %v", ErrPersistence, err)
	}
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: delete: %v", ErrPersistence, err)
	}
	return decodeCheckpoint(data)
}

// Peek reads the pending checkpoint without consuming it.
func (s *CheckpointStore) Peek() (*Checkpoint, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read: %v", ErrPersistence, err)
	}
	return decodeCheckpoint(data)
}

func (s *CheckpointStore) Pending() (bool, error) {
	_, err := os.Stat(s.Path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("%w: stat: %v", ErrPersistence, err)
}

// Discard abandons the pending checkpoint, if any.
func (s *CheckpointStore) Discard() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: delete: %v", ErrPersistence, err)
	}
	return nil
}

func decodeCheckpoint(data []byte) (*Checkpoint, error) {
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrPersistence, err)
	}
	if err := cp.Validate(true); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return &cp, nil
}
