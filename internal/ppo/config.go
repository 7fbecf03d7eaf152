package ppo

import (
	"errors"
	"fmt"
)

// Config carries every PPO hyperparameter. Zero values are not usable;
// start from DefaultConfig and override.
type Config struct {
	StateDim  int `json:"state_dim"`
	ActionDim int `json:"action_dim"`

	RolloutCapacity int `json:"rollout_capacity"`
	BatchSize       int `json:"batch_size"`
	Epochs          int `json:"epochs"`

	Gamma     float64 `json:"gamma"`
	GAELambda float64 `json:"gae_lambda"`

	Epsilon            float64 `json:"epsilon"`
	EntropyLossCoeff   float64 `json:"entropy_loss_coeff"`
	ValueLossCoeff     float64 `json:"value_loss_coeff"`
	NormalizeAdvantage bool    `json:"normalize_advantage"`

	// TargetKL, when positive, aborts the remaining epochs of a segment
	// once the estimated divergence from the rollout policy exceeds it.
	TargetKL float64 `json:"target_kl"`

	// ActionLow/ActionHigh clamp sampled and predicted actions. Clamping
	// is disabled unless ActionHigh > ActionLow.
	ActionLow  float64 `json:"action_low"`
	ActionHigh float64 `json:"action_high"`

	InitialActionStd float64 `json:"initial_action_std"`

	PolicyLR     float64 `json:"policy_lr"`
	CriticLR     float64 `json:"critic_lr"`
	Momentum     float64 `json:"momentum"`
	LRSchedule   string  `json:"lr_schedule"`
	ScheduleSpan int64   `json:"schedule_span"`

	ReportFrequency   int64 `json:"report_frequency"`
	EnableMetricsHook bool  `json:"enable_metrics_hook"`

	Seed int64 `json:"seed"`
}

// DefaultConfig returns the conventional PPO hyperparameters. State and
// action dimensions stay zero and must be set by the caller.
func DefaultConfig() Config {
	return Config{
		RolloutCapacity:    1024,
		BatchSize:          64,
		Epochs:             4,
		Gamma:              0.99,
		GAELambda:          0.95,
		Epsilon:            0.2,
		EntropyLossCoeff:   0,
		ValueLossCoeff:     0.5,
		NormalizeAdvantage: true,
		TargetKL:           0,
		ActionLow:          0,
		ActionHigh:         0,
		InitialActionStd:   0.5,
		PolicyLR:           3e-4,
		CriticLR:           1e-3,
		Momentum:           0.9,
		LRSchedule:         "constant",
		ScheduleSpan:       0,
		ReportFrequency:    100,
		Seed:               1,
	}
}

// Validate rejects configurations that cannot produce a working system.
func (c Config) Validate() error {
	if c.StateDim <= 0 || c.ActionDim <= 0 {
		return fmt.Errorf("state_dim=%d action_dim=%d: both must be positive", c.StateDim, c.ActionDim)
	}
	if c.RolloutCapacity <= 0 {
		return errors.New("rollout_capacity must be positive")
	}
	if c.BatchSize <= 0 || c.BatchSize > c.RolloutCapacity {
		return fmt.Errorf("batch_size=%d must be in [1, rollout_capacity=%d]", c.BatchSize, c.RolloutCapacity)
	}
	if c.Epochs <= 0 {
		return errors.New("epochs must be positive")
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("gamma=%g out of [0, 1]", c.Gamma)
	}
	if c.GAELambda < 0 || c.GAELambda > 1 {
		return fmt.Errorf("gae_lambda=%g out of [0, 1]", c.GAELambda)
	}
	if c.Epsilon <= 0 {
		return errors.New("epsilon must be positive")
	}
	if c.InitialActionStd <= 0 {
		return errors.New("initial_action_std must be positive")
	}
	if c.PolicyLR <= 0 || c.CriticLR <= 0 {
		return errors.New("learning rates must be positive")
	}
	return nil
}

// clampEnabled reports whether action bounds are in effect.
func (c Config) clampEnabled() bool {
	return c.ActionHigh > c.ActionLow
}
