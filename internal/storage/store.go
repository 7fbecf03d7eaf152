package storage

import (
	"context"

	"strategos/internal/model"
)

// Store defines persistence for training artifacts: restartable
// checkpoints keyed by system name, run records keyed by run ID, and the
// per-step diagnostics series of each run.
type Store interface {
	Init(ctx context.Context) error
	SaveCheckpoint(ctx context.Context, ckpt model.Checkpoint) error
	GetCheckpoint(ctx context.Context, systemName string) (model.Checkpoint, bool, error)
	SaveRunRecord(ctx context.Context, record model.RunRecord) error
	GetRunRecord(ctx context.Context, runID string) (model.RunRecord, bool, error)
	ListRunRecords(ctx context.Context) ([]model.RunRecord, error)
	SaveDiagnostics(ctx context.Context, runID string, diagnostics []model.TrainDiagnostics) error
	GetDiagnostics(ctx context.Context, runID string) ([]model.TrainDiagnostics, bool, error)
}
