package storage

import (
	"context"
	"testing"

	"strategos/internal/model"
)

func TestMemoryStoreCheckpointRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := testCheckpoint()
	if err := store.SaveCheckpoint(ctx, input); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}

	output, ok, err := store.GetCheckpoint(ctx, input.SystemName)
	if err != nil {
		t.Fatalf("get checkpoint: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted checkpoint")
	}
	if output.Algorithm != "ppo" || len(output.Transitions) != 1 {
		t.Fatalf("unexpected checkpoint: %+v", output)
	}
}

func TestMemoryStoreRunRecordsKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	for _, id := range []string{"run-b", "run-a", "run-c"} {
		record := model.RunRecord{VersionedRecord: StampVersion(), RunID: id}
		if err := store.SaveRunRecord(ctx, record); err != nil {
			t.Fatalf("save run record %s: %v", id, err)
		}
	}

	records, err := store.ListRunRecords(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	want := []string{"run-b", "run-a", "run-c"}
	if len(records) != len(want) {
		t.Fatalf("run count: got=%d want=%d", len(records), len(want))
	}
	for i := range want {
		if records[i].RunID != want[i] {
			t.Fatalf("run order: got=%s want=%s at %d", records[i].RunID, want[i], i)
		}
	}
}

func TestMemoryStoreDiagnosticsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := []model.TrainDiagnostics{
		{Step: 1, PolicyLoss: -0.01, CriticLoss: 0.8, KLDivergence: 0.002, ClipFraction: 0.1},
		{Step: 2, PolicyLoss: -0.02, CriticLoss: 0.7, KLDivergence: 0.004, ClipFraction: 0.2},
	}
	if err := store.SaveDiagnostics(ctx, "run-1", input); err != nil {
		t.Fatalf("save diagnostics: %v", err)
	}
	output, ok, err := store.GetDiagnostics(ctx, "run-1")
	if err != nil {
		t.Fatalf("get diagnostics: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted diagnostics")
	}
	if len(output) != len(input) || output[1].ClipFraction != input[1].ClipFraction {
		t.Fatalf("unexpected diagnostics: %+v", output)
	}

	output[0].Step = 99
	again, _, err := store.GetDiagnostics(ctx, "run-1")
	if err != nil {
		t.Fatalf("get diagnostics again: %v", err)
	}
	if again[0].Step != 1 {
		t.Fatal("store must hand out copies, not shared slices")
	}
}

func TestMemoryStoreMissingKeys(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	if _, ok, err := store.GetCheckpoint(ctx, "missing"); err != nil || ok {
		t.Fatalf("checkpoint: got ok=%v err=%v want absent", ok, err)
	}
	if _, ok, err := store.GetRunRecord(ctx, "missing"); err != nil || ok {
		t.Fatalf("run record: got ok=%v err=%v want absent", ok, err)
	}
	if _, ok, err := store.GetDiagnostics(ctx, "missing"); err != nil || ok {
		t.Fatalf("diagnostics: got ok=%v err=%v want absent", ok, err)
	}
}
