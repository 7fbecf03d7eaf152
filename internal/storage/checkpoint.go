package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"strategos/internal/model"
)

const checkpointFileName = "checkpoint.json"

// WriteCheckpoint persists a checkpoint as a single JSON file under dir,
// creating the directory if needed. The write goes through a temp file and
// rename so a crash never leaves a half-written checkpoint behind.
func WriteCheckpoint(dir string, ckpt *model.Checkpoint) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	ckpt.VersionedRecord = StampVersion()

	payload, err := EncodeCheckpoint(*ckpt)
	if err != nil {
		return err
	}

	target := filepath.Join(dir, checkpointFileName)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// ReadCheckpoint loads the checkpoint written by WriteCheckpoint.
func ReadCheckpoint(dir string) (*model.Checkpoint, error) {
	payload, err := os.ReadFile(filepath.Join(dir, checkpointFileName))
	if err != nil {
		return nil, err
	}
	ckpt, err := DecodeCheckpoint(payload)
	if err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &ckpt, nil
}
