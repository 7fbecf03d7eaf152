package main

import (
	"encoding/json"
	"fmt"
	"os"

	"strategos/pkg/strategos"
)

func loadTrainRequestFromConfig(path string) (strategos.TrainRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return strategos.TrainRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return strategos.TrainRequest{}, err
	}

	var req strategos.TrainRequest
	if v, ok := asString(raw["env"]); ok {
		req.Env = v
	}
	if v, ok := asString(raw["algorithm"]); ok {
		req.Algorithm = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asInt(raw["ranks"]); ok {
		req.Ranks = v
	}
	if v, ok := asInt(raw["segments"]); ok {
		req.Segments = v
	}
	if v, ok := asInt(raw["rollout_capacity"]); ok {
		req.RolloutCapacity = v
	}
	if v, ok := asInt(raw["batch_size"]); ok {
		req.BatchSize = v
	}
	if v, ok := asInt(raw["epochs"]); ok {
		req.Epochs = v
	}
	if v, ok := asFloat64(raw["gamma"]); ok {
		req.Gamma = v
	}
	if v, ok := asFloat64(raw["gae_lambda"]); ok {
		req.GAELambda = v
	}
	if v, ok := asFloat64(raw["epsilon"]); ok {
		req.Epsilon = v
	}
	if v, ok := asFloat64(raw["entropy_loss_coeff"]); ok {
		req.EntropyLossCoeff = v
	}
	if v, ok := asFloat64(raw["value_loss_coeff"]); ok {
		req.ValueLossCoeff = v
	}
	if v, ok := asFloat64(raw["target_kl"]); ok {
		req.TargetKL = v
	}
	if v, ok := asFloat64(raw["policy_lr"]); ok {
		req.PolicyLR = v
	}
	if v, ok := asFloat64(raw["critic_lr"]); ok {
		req.CriticLR = v
	}
	if v, ok := asString(raw["lr_schedule"]); ok {
		req.LRSchedule = v
	}
	if v, ok := asInt64(raw["schedule_span"]); ok {
		req.ScheduleSpan = v
	}
	if v, ok := asInt64(raw["report_frequency"]); ok {
		req.ReportFrequency = v
	}
	if v, ok := asBool(raw["save_checkpoint"]); ok {
		req.SaveCheckpoint = v
	}
	if v, ok := asString(raw["checkpoint_dir"]); ok {
		req.CheckpointDir = v
	}

	return req, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

func overrideTrainRequest(req *strategos.TrainRequest, set map[string]bool, flagValue map[string]any) {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "env":
			req.Env = v.(string)
		case "seed":
			req.Seed = v.(int64)
		case "ranks":
			req.Ranks = v.(int)
		case "segments":
			req.Segments = v.(int)
		case "capacity":
			req.RolloutCapacity = v.(int)
		case "batch":
			req.BatchSize = v.(int)
		case "epochs":
			req.Epochs = v.(int)
		case "gamma":
			req.Gamma = v.(float64)
		case "gae-lambda":
			req.GAELambda = v.(float64)
		case "epsilon":
			req.Epsilon = v.(float64)
		case "entropy-coeff":
			req.EntropyLossCoeff = v.(float64)
		case "value-coeff":
			req.ValueLossCoeff = v.(float64)
		case "target-kl":
			req.TargetKL = v.(float64)
		case "policy-lr":
			req.PolicyLR = v.(float64)
		case "critic-lr":
			req.CriticLR = v.(float64)
		case "lr-schedule":
			req.LRSchedule = v.(string)
		case "schedule-span":
			req.ScheduleSpan = v.(int64)
		case "report-freq":
			req.ReportFrequency = v.(int64)
		case "save-checkpoint":
			req.SaveCheckpoint = v.(bool)
		case "checkpoint-dir":
			req.CheckpointDir = v.(string)
		}
	}
}

func loadOrDefaultTrainRequest(configPath string) (strategos.TrainRequest, error) {
	if configPath == "" {
		return strategos.TrainRequest{}, nil
	}
	req, err := loadTrainRequestFromConfig(configPath)
	if err != nil {
		return strategos.TrainRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}
