package stats

import (
	"os"
	"path/filepath"
	"testing"

	"strategos/internal/model"
)

func testArtifacts(runID string) RunArtifacts {
	return RunArtifacts{
		Config: RunConfig{
			RunID:           runID,
			Env:             "cartpole",
			Algorithm:       "ppo",
			Seed:            7,
			Ranks:           1,
			Segments:        3,
			RolloutCapacity: 64,
			BatchSize:       16,
			Epochs:          4,
			Gamma:           0.99,
			GAELambda:       0.95,
			Epsilon:         0.2,
			ValueLossCoeff:  0.5,
			PolicyLR:        3e-4,
			CriticLR:        1e-3,
			LRSchedule:      "constant",
		},
		Diagnostics: []model.TrainDiagnostics{
			{Step: 1, PolicyLoss: -0.01, CriticLoss: 0.9, KLDivergence: 0, ClipFraction: 0, PolicyLR: 3e-4, CriticLR: 1e-3},
			{Step: 2, PolicyLoss: -0.02, CriticLoss: 0.8, KLDivergence: 0.003, ClipFraction: 0.12, PolicyLR: 3e-4, CriticLR: 1e-3},
		},
		EpisodeRewards:  []float64{12, 19, 33},
		FinalMeanReward: 21.333,
	}
}

func TestWriteRunArtifactsLayout(t *testing.T) {
	baseDir := t.TempDir()

	runDir, err := WriteRunArtifacts(baseDir, testArtifacts("run-1"))
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	for _, file := range []string{"config.json", "diagnostics.json", "episode_rewards.json", "diagnostics_series.csv"} {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("missing artifact %s: %v", file, err)
		}
	}

	cfg, ok, err := ReadRunConfig(baseDir, "run-1")
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted config")
	}
	if cfg.Env != "cartpole" || cfg.Epochs != 4 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestWriteRunArtifactsRequiresRunID(t *testing.T) {
	artifacts := testArtifacts("")
	if _, err := WriteRunArtifacts(t.TempDir(), artifacts); err == nil {
		t.Fatal("expected error for missing run id")
	}
}

func TestDiagnosticsSeriesRoundTrip(t *testing.T) {
	baseDir := t.TempDir()
	artifacts := testArtifacts("run-1")
	if _, err := WriteRunArtifacts(baseDir, artifacts); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	series, ok, err := ReadDiagnosticsSeries(baseDir, "run-1")
	if err != nil {
		t.Fatalf("read series: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted series")
	}
	if len(series) != len(artifacts.Diagnostics) {
		t.Fatalf("series length: got=%d want=%d", len(series), len(artifacts.Diagnostics))
	}
	if series[1].Step != 2 || series[1].ClipFraction != 0.12 {
		t.Fatalf("unexpected series row: %+v", series[1])
	}
}

func TestRunIndexAppendAndReplace(t *testing.T) {
	baseDir := t.TempDir()

	first := model.RunRecord{RunID: "run-1", Env: "cartpole", CreatedAtUTC: "2026-08-25T10:00:00Z", FinalMeanReward: 10}
	second := model.RunRecord{RunID: "run-2", Env: "cartpole", CreatedAtUTC: "2026-08-25T11:00:00Z", FinalMeanReward: 20}
	for _, entry := range []model.RunRecord{first, second} {
		if err := AppendRunIndex(baseDir, entry); err != nil {
			t.Fatalf("append %s: %v", entry.RunID, err)
		}
	}

	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || entries[0].RunID != "run-2" {
		t.Fatalf("expected newest first, got: %+v", entries)
	}

	first.FinalMeanReward = 99
	if err := AppendRunIndex(baseDir, first); err != nil {
		t.Fatalf("replace: %v", err)
	}
	entries, err = ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list after replace: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("replace duplicated entry: %+v", entries)
	}
	for _, entry := range entries {
		if entry.RunID == "run-1" && entry.FinalMeanReward != 99 {
			t.Fatalf("entry not replaced: %+v", entry)
		}
	}
}

func TestListRunIndexMissingFile(t *testing.T) {
	entries, err := ListRunIndex(t.TempDir())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty index, got: %+v", entries)
	}
}

func TestExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	if _, err := WriteRunArtifacts(baseDir, testArtifacts("run-1")); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	outDir := t.TempDir()
	dst, err := ExportRunArtifacts(baseDir, "run-1", outDir)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "config.json")); err != nil {
		t.Fatalf("exported config missing: %v", err)
	}

	if _, err := ExportRunArtifacts(baseDir, "missing", outDir); err == nil {
		t.Fatal("expected error exporting a missing run")
	}
}
