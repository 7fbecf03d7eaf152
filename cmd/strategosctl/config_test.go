package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadTrainRequestFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train_config.json")
	payload := map[string]any{
		"env":                "cartpole",
		"seed":               77,
		"ranks":              2,
		"segments":           5,
		"rollout_capacity":   256,
		"batch_size":         32,
		"epochs":             3,
		"gamma":              0.98,
		"gae_lambda":         0.9,
		"epsilon":            0.1,
		"entropy_loss_coeff": 0.01,
		"value_loss_coeff":   0.25,
		"target_kl":          0.02,
		"policy_lr":          1e-4,
		"critic_lr":          5e-4,
		"lr_schedule":        "linear",
		"schedule_span":      400,
		"report_frequency":   10,
		"save_checkpoint":    true,
		"checkpoint_dir":     "ckpt",
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	req, err := loadTrainRequestFromConfig(path)
	if err != nil {
		t.Fatalf("load train request: %v", err)
	}
	if req.Env != "cartpole" || req.Seed != 77 || req.Ranks != 2 || req.Segments != 5 {
		t.Fatalf("unexpected base fields: %+v", req)
	}
	if req.RolloutCapacity != 256 || req.BatchSize != 32 || req.Epochs != 3 {
		t.Fatalf("unexpected rollout fields: %+v", req)
	}
	if req.Gamma != 0.98 || req.GAELambda != 0.9 || req.Epsilon != 0.1 {
		t.Fatalf("unexpected loss fields: %+v", req)
	}
	if req.EntropyLossCoeff != 0.01 || req.ValueLossCoeff != 0.25 || req.TargetKL != 0.02 {
		t.Fatalf("unexpected coefficient fields: %+v", req)
	}
	if req.PolicyLR != 1e-4 || req.CriticLR != 5e-4 || req.LRSchedule != "linear" || req.ScheduleSpan != 400 {
		t.Fatalf("unexpected optimizer fields: %+v", req)
	}
	if req.ReportFrequency != 10 {
		t.Fatalf("report frequency: got=%d want=10", req.ReportFrequency)
	}
	if !req.SaveCheckpoint || req.CheckpointDir != "ckpt" {
		t.Fatalf("unexpected checkpoint fields: %+v", req)
	}
}

func TestOverrideTrainRequestOnlyTouchesSetFlags(t *testing.T) {
	req, err := loadOrDefaultTrainRequest("")
	if err != nil {
		t.Fatalf("default request: %v", err)
	}
	req.Env = "cartpole"
	req.Seed = 5
	req.BatchSize = 64

	overrideTrainRequest(&req, map[string]bool{"seed": true, "batch": true}, map[string]any{
		"env":   "other",
		"seed":  int64(9),
		"batch": 16,
	})

	if req.Env != "cartpole" {
		t.Fatalf("env overridden without its flag set: %s", req.Env)
	}
	if req.Seed != 9 || req.BatchSize != 16 {
		t.Fatalf("expected flag overrides applied: seed=%d batch=%d", req.Seed, req.BatchSize)
	}
}

func TestLoadOrDefaultTrainRequestWrapsLoadError(t *testing.T) {
	if _, err := loadOrDefaultTrainRequest(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestRunUnknownCommand(t *testing.T) {
	if err := run(context.Background(), []string{"evolve"}); err == nil {
		t.Fatal("expected usage error for unknown command")
	}
	if err := run(context.Background(), nil); err == nil {
		t.Fatal("expected usage error for missing command")
	}
}
