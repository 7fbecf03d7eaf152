package ppo

import (
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"

	"strategos/internal/comm"
	"strategos/internal/model"
	"strategos/internal/nn"
	"strategos/internal/rollout"
	"strategos/internal/storage"
	"strategos/internal/system"
)

// AlgorithmName identifies checkpoints produced by this system.
const AlgorithmName = "ppo"

// System trains a Gaussian policy and a state-action critic with PPO. It
// owns the rollout buffer, both model packs, and the per-segment epoch
// accounting. One System belongs to one rank; ranks coordinate only through
// the communicator installed by InitComm.
type System struct {
	name string
	cfg  Config

	policy *nn.LinearGaussianPolicy
	critic *nn.LinearCritic
	p      *nn.ModelPack
	q      *nn.ModelPack

	buffer *rollout.GAELambdaBuffer
	rng    *rand.Rand
	logger zerolog.Logger

	state           model.TrainingState
	stepsPerSegment int
	segmentSteps    int
	currentKL       float64
	clipFraction    float64
	lastDiagnostics model.TrainDiagnostics
}

var _ system.System = (*System)(nil)

// NewSystem builds a PPO system from the configuration. The name tags log
// lines and checkpoints.
func NewSystem(name string, cfg Config, logger zerolog.Logger) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ppo config: %w", err)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	policy := nn.NewLinearGaussianPolicy(cfg.StateDim, cfg.ActionDim, cfg.InitialActionStd, rng)
	critic := nn.NewLinearCritic(cfg.StateDim, cfg.ActionDim, rng)

	policyOpt := nn.NewSGD(policy, cfg.PolicyLR, cfg.Momentum)
	criticOpt := nn.NewSGD(critic, cfg.CriticLR, cfg.Momentum)

	policySched, err := nn.SchedulerFromName(cfg.LRSchedule, policyOpt, cfg.PolicyLR, cfg.ScheduleSpan)
	if err != nil {
		return nil, fmt.Errorf("policy scheduler: %w", err)
	}
	criticSched, err := nn.SchedulerFromName(cfg.LRSchedule, criticOpt, cfg.CriticLR, cfg.ScheduleSpan)
	if err != nil {
		return nil, fmt.Errorf("critic scheduler: %w", err)
	}

	stepsPerSegment := cfg.Epochs * cfg.RolloutCapacity / cfg.BatchSize
	if stepsPerSegment < 1 {
		stepsPerSegment = 1
	}

	s := &System{
		name:   name,
		cfg:    cfg,
		policy: policy,
		critic: critic,
		buffer: rollout.NewGAELambdaBuffer(cfg.RolloutCapacity, cfg.Gamma, cfg.GAELambda, 1, rng),
		rng:    rng,
		logger: logger.With().Str("system", name).Logger(),
		state: model.TrainingState{
			ReportFrequency:   cfg.ReportFrequency,
			EnableMetricsHook: cfg.EnableMetricsHook,
		},
		stepsPerSegment: stepsPerSegment,
	}
	s.p = &nn.ModelPack{
		Name:      "actor",
		Model:     policy,
		Optimizer: policyOpt,
		Scheduler: policySched,
		State: &model.TrainingState{
			ReportFrequency:   cfg.ReportFrequency,
			EnableMetricsHook: cfg.EnableMetricsHook,
		},
	}
	s.q = &nn.ModelPack{
		Name:      "critic",
		Model:     critic,
		Optimizer: criticOpt,
		Scheduler: criticSched,
		State: &model.TrainingState{
			ReportFrequency:   cfg.ReportFrequency,
			EnableMetricsHook: cfg.EnableMetricsHook,
		},
	}
	return s, nil
}

// InitComm installs the communicator on both model packs. Call before the
// first TrainStep; every rank of the group must install its own endpoint.
func (s *System) InitComm(c comm.Communicator) {
	s.p.Comm = c
	s.q.Comm = c
}

// SetMetricsSink routes per-step scalars to the sink when the metrics hook
// is enabled.
func (s *System) SetMetricsSink(sink nn.MetricsSink) {
	s.p.Metrics = sink
	s.q.Metrics = sink
}

// UpdateRolloutBuffer records one environment step.
func (s *System) UpdateRolloutBuffer(state, action []float64, reward, valueEstimate, logProb float64, done bool) {
	s.buffer.Update(state, action, reward, valueEstimate, logProb, done)
}

// FinalizeRolloutBuffer writes the bootstrap entry that closes the current
// segment. Its state and action are placeholders and are never sampled;
// only the value estimate (and the done flag cutting it) feed the
// advantage recursion.
func (s *System) FinalizeRolloutBuffer(finalValueEstimate float64, done bool) {
	s.buffer.Update(
		make([]float64, s.cfg.StateDim),
		make([]float64, s.cfg.ActionDim),
		0, finalValueEstimate, 0, done,
	)
}

// IsReady reports whether a full segment is buffered.
func (s *System) IsReady() bool {
	return s.buffer.IsReady()
}

// TrainStep runs one PPO gradient step on a fresh minibatch. After the
// segment's epoch budget is spent, or the KL estimate exceeds the
// configured target, the segment is discarded and collection starts over.
func (s *System) TrainStep() (float64, float64, error) {
	if !s.buffer.IsReady() {
		panic("ppo: train step requested before the rollout segment is complete")
	}

	batch := s.buffer.Sample(s.cfg.BatchSize)
	diag, err := Train(s.p, s.q, batch, TrainConfig{
		Epsilon:            s.cfg.Epsilon,
		EntropyLossCoeff:   s.cfg.EntropyLossCoeff,
		ValueLossCoeff:     s.cfg.ValueLossCoeff,
		NormalizeAdvantage: s.cfg.NormalizeAdvantage,
	}, s.logger)
	if err != nil {
		return 0, 0, err
	}

	s.state.StepTrain++
	s.segmentSteps++
	s.currentKL = diag.KLDivergence
	s.clipFraction = diag.ClipFraction
	s.lastDiagnostics = model.TrainDiagnostics{
		Step:         s.state.StepTrain,
		PolicyLoss:   diag.PolicyLoss,
		CriticLoss:   diag.CriticLoss,
		KLDivergence: diag.KLDivergence,
		ClipFraction: diag.ClipFraction,
		PolicyLR:     s.p.Scheduler.CurrentLearningRate(),
		CriticLR:     s.q.Scheduler.CurrentLearningRate(),
	}

	exhausted := s.segmentSteps >= s.stepsPerSegment
	diverged := s.cfg.TargetKL > 0 && diag.KLDivergence > s.cfg.TargetKL
	if diverged && !exhausted {
		s.logger.Warn().
			Float64("kl", diag.KLDivergence).
			Float64("target_kl", s.cfg.TargetKL).
			Int("segment_steps", s.segmentSteps).
			Msg("kl target exceeded, ending segment early")
	}
	if exhausted || diverged {
		s.buffer.Reset()
		s.segmentSteps = 0
	}
	return diag.PolicyLoss, diag.CriticLoss, nil
}

// SampleAction draws a stochastic action and its log-probability under the
// current policy. The log-probability belongs to the unclamped draw; bounds
// are applied afterwards.
func (s *System) SampleAction(state []float64) ([]float64, float64) {
	action, logProb := s.policy.Sample(state, s.rng)
	s.clampAction(action)
	return action, logProb
}

// Explore returns a stochastic action for the state.
func (s *System) Explore(state []float64) []float64 {
	action, _ := s.SampleAction(state)
	return action
}

// Predict returns the deterministic policy mean for the state.
func (s *System) Predict(state []float64) []float64 {
	action := s.policy.Mean(state)
	s.clampAction(action)
	return action
}

// PredictExplore returns an exploring action in a single call.
func (s *System) PredictExplore(state []float64) []float64 {
	return s.Explore(state)
}

// Evaluate returns the critic's value estimate for the pair.
func (s *System) Evaluate(state, action []float64) float64 {
	return s.critic.Evaluate(state, action)
}

// CurrentKLDivergence returns the KL estimate of the most recent step.
func (s *System) CurrentKLDivergence() float64 { return s.currentKL }

// ClipFraction returns the clip fraction of the most recent step.
func (s *System) ClipFraction() float64 { return s.clipFraction }

// LastDiagnostics returns the full scalar record of the most recent step.
func (s *System) LastDiagnostics() model.TrainDiagnostics { return s.lastDiagnostics }

// SaveCheckpoint persists models, optimizer and scheduler state, system
// counters, and the live rollout segment under dir.
func (s *System) SaveCheckpoint(dir string) error {
	ckpt := &model.Checkpoint{
		SystemName:  s.name,
		Algorithm:   AlgorithmName,
		Policy:      s.p.Snapshot(),
		Critic:      s.q.Snapshot(),
		System:      s.state,
		Transitions: s.buffer.Snapshot(),
	}
	if err := storage.WriteCheckpoint(dir, ckpt); err != nil {
		return fmt.Errorf("save checkpoint %q: %w", dir, err)
	}
	s.logger.Info().Str("dir", dir).Int64("step_train", s.state.StepTrain).Msg("checkpoint saved")
	return nil
}

// LoadCheckpoint restores the state written by SaveCheckpoint. The
// checkpoint must come from a PPO system with matching model shapes.
func (s *System) LoadCheckpoint(dir string) error {
	ckpt, err := storage.ReadCheckpoint(dir)
	if err != nil {
		return fmt.Errorf("load checkpoint %q: %w", dir, err)
	}
	if ckpt.Algorithm != AlgorithmName {
		return fmt.Errorf("load checkpoint %q: algorithm %q is not %q", dir, ckpt.Algorithm, AlgorithmName)
	}
	if err := s.p.RestoreSnapshot(ckpt.Policy); err != nil {
		return fmt.Errorf("load checkpoint %q: policy: %w", dir, err)
	}
	if err := s.q.RestoreSnapshot(ckpt.Critic); err != nil {
		return fmt.Errorf("load checkpoint %q: critic: %w", dir, err)
	}
	if err := s.buffer.Restore(ckpt.Transitions); err != nil {
		return fmt.Errorf("load checkpoint %q: %w", dir, err)
	}
	s.state = ckpt.System
	s.segmentSteps = 0
	s.logger.Info().Str("dir", dir).Int64("step_train", s.state.StepTrain).Msg("checkpoint loaded")
	return nil
}

// PrintInfo logs the effective configuration.
func (s *System) PrintInfo() {
	s.logger.Info().
		Str("algorithm", AlgorithmName).
		Int("state_dim", s.cfg.StateDim).
		Int("action_dim", s.cfg.ActionDim).
		Int("rollout_capacity", s.cfg.RolloutCapacity).
		Int("batch_size", s.cfg.BatchSize).
		Int("epochs", s.cfg.Epochs).
		Float64("gamma", s.cfg.Gamma).
		Float64("gae_lambda", s.cfg.GAELambda).
		Float64("epsilon", s.cfg.Epsilon).
		Float64("target_kl", s.cfg.TargetKL).
		Str("lr_schedule", s.cfg.LRSchedule).
		Msg("training system configuration")
}

func (s *System) clampAction(action []float64) {
	if !s.cfg.clampEnabled() {
		return
	}
	for i := range action {
		action[i] = clamp(action[i], s.cfg.ActionLow, s.cfg.ActionHigh)
	}
}
