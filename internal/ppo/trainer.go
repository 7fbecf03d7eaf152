// Package ppo implements the clipped-surrogate on-policy training step and
// the PPO training system built on it.
//
// Reference: https://spinningup.openai.com/en/latest/algorithms/ppo.html
package ppo

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"strategos/internal/nn"
	"strategos/internal/rollout"
)

const normEpsilon = 1e-8

// TrainConfig carries the loss hyperparameters of one gradient step.
type TrainConfig struct {
	Epsilon            float64
	EntropyLossCoeff   float64
	ValueLossCoeff     float64
	NormalizeAdvantage bool
}

// StepDiagnostics are the scalar health metrics of one gradient step.
type StepDiagnostics struct {
	PolicyLoss   float64
	CriticLoss   float64
	KLDivergence float64
	ClipFraction float64
}

// Train performs one PPO gradient step on one minibatch: advantage
// normalization (globally consistent under a communicator), clipped
// surrogate policy loss, MSE critic loss, entropy bonus, backward pass,
// per-model gradient allreduce, and optimizer/scheduler steps.
//
// Model parameters, optimizer and scheduler state are mutated. A collective
// failure is returned as an error and leaves model state indeterminate;
// callers must not retry the step.
func Train(p, q *nn.ModelPack, batch rollout.Batch, cfg TrainConfig, logger zerolog.Logger) (StepDiagnostics, error) {
	policy, ok := p.Model.(nn.Policy)
	if !ok {
		panic(fmt.Sprintf("ppo: pack %q does not hold a policy", p.Name))
	}
	critic, ok := q.Model.(nn.Critic)
	if !ok {
		panic(fmt.Sprintf("ppo: pack %q does not hold a critic", q.Name))
	}

	batchSize := len(batch.States)
	if batchSize == 0 {
		panic("ppo: empty minibatch")
	}
	if len(batch.Actions) != batchSize || len(batch.ValueEstimates) != batchSize ||
		len(batch.LogProbs) != batchSize || len(batch.Advantages) != batchSize ||
		len(batch.Returns) != batchSize {
		panic(fmt.Sprintf("ppo: minibatch columns disagree: states=%d actions=%d values=%d logp=%d adv=%d ret=%d",
			batchSize, len(batch.Actions), len(batch.ValueEstimates),
			len(batch.LogProbs), len(batch.Advantages), len(batch.Returns)))
	}

	advantages := append([]float64(nil), batch.Advantages...)
	if cfg.NormalizeAdvantage && batchSize > 1 {
		if err := normalizeAdvantages(advantages, p); err != nil {
			return StepDiagnostics{}, err
		}
	}

	logProbsNew, _ := policy.EvaluateAction(batch.States, batch.Actions)
	qNew := critic.EvaluateBatch(batch.States, batch.Actions)

	n := float64(batchSize)
	dLogProb := make([]float64, batchSize)
	dEntropy := make([]float64, batchSize)
	dQ := make([]float64, batchSize)

	policyLoss := 0.0
	criticLoss := 0.0
	klDivergence := 0.0
	clipped := 0.0
	for i := 0; i < batchSize; i++ {
		logRatio := logProbsNew[i] - batch.LogProbs[i]
		ratio := math.Exp(logRatio)

		surr := advantages[i] * ratio
		surrClipped := advantages[i] * clamp(ratio, 1-cfg.Epsilon, 1+cfg.Epsilon)
		// element-wise minimum; a greedy first-operand choice is wrong here
		if surr <= surrClipped {
			policyLoss -= surr / n
			dLogProb[i] = -advantages[i] * ratio / n
		} else {
			policyLoss -= surrClipped / n
			// the clipped branch is flat in the policy
			dLogProb[i] = 0
		}
		// the entropy bonus reaches the policy through dEntropy only; the
		// reported loss is the clipped surrogate alone
		dEntropy[i] = -cfg.EntropyLossCoeff / n

		diff := qNew[i] - batch.Returns[i]
		criticLoss += diff * diff / n
		dQ[i] = cfg.ValueLossCoeff * 2 * diff / n

		klDivergence += ((ratio - 1) - logRatio) / n
		if math.Abs(ratio-1) > cfg.Epsilon {
			clipped++
		}
	}
	clipFraction := clipped / n

	// share one KL and clip-fraction estimate across ranks; a divergence
	// decision taken from local data only would desynchronize the group
	if p.Comm != nil {
		shared := []float64{klDivergence, clipFraction}
		if err := p.Comm.AllReduce([][]float64{shared}, true); err != nil {
			return StepDiagnostics{}, fmt.Errorf("step stats allreduce: %w", err)
		}
		klDivergence, clipFraction = shared[0], shared[1]
	}

	p.Optimizer.ZeroGrad()
	q.Optimizer.ZeroGrad()
	policy.BackwardAction(batch.States, batch.Actions, dLogProb, dEntropy)
	critic.BackwardBatch(batch.States, batch.Actions, dQ)

	// two separate collectives: the models are optimized independently
	if p.Comm != nil {
		if err := p.Comm.AllReduce(p.Gradients(), true); err != nil {
			return StepDiagnostics{}, fmt.Errorf("policy gradient allreduce: %w", err)
		}
	}
	if q.Comm != nil {
		if err := q.Comm.AllReduce(q.Gradients(), true); err != nil {
			return StepDiagnostics{}, fmt.Errorf("critic gradient allreduce: %w", err)
		}
	}

	p.Optimizer.Step()
	p.Scheduler.Step()
	q.Optimizer.Step()
	q.Scheduler.Step()

	diag := StepDiagnostics{
		PolicyLoss:   policyLoss,
		CriticLoss:   criticLoss,
		KLDivergence: klDivergence,
		ClipFraction: clipFraction,
	}

	report(p, diag.PolicyLoss, &diag, logger)
	report(q, diag.CriticLoss, nil, logger)

	return diag, nil
}

// normalizeAdvantages shifts and scales the batch to zero mean and unit
// variance. Under a communicator the mean and variance are averaged across
// ranks first, so normalization is globally consistent rather than
// per-shard.
func normalizeAdvantages(advantages []float64, p *nn.ModelPack) error {
	mean := []float64{stat.Mean(advantages, nil)}
	if p.Comm != nil {
		if err := p.Comm.AllReduce([][]float64{mean}, true); err != nil {
			return fmt.Errorf("advantage mean allreduce: %w", err)
		}
	}

	variance := []float64{0}
	for _, a := range advantages {
		d := a - mean[0]
		variance[0] += d * d
	}
	variance[0] /= float64(len(advantages))
	if p.Comm != nil {
		if err := p.Comm.AllReduce([][]float64{variance}, true); err != nil {
			return fmt.Errorf("advantage variance allreduce: %w", err)
		}
	}

	std := math.Sqrt(variance[0])
	for i := range advantages {
		advantages[i] = (advantages[i] - mean[0]) / (std + normEpsilon)
	}
	return nil
}

// report advances the pack's step counter and, on the reporting cadence,
// emits a structured log line and optional metric callbacks. Only the
// designated rank emits. diag is non-nil for the policy pack, which
// additionally reports its clip fraction.
func report(pack *nn.ModelPack, loss float64, diag *StepDiagnostics, logger zerolog.Logger) {
	if pack.State == nil {
		return
	}
	pack.State.StepTrain++
	if !pack.ShouldReport() {
		return
	}

	lr := pack.Scheduler.CurrentLearningRate()
	event := logger.Info().
		Str("model", pack.Name).
		Int64("step_train", pack.State.StepTrain).
		Float64("loss", loss).
		Float64("lr", lr)
	if diag != nil {
		event = event.Float64("clip_fraction", diag.ClipFraction)
	}
	event.Msg("train step")

	if pack.State.EnableMetricsHook && pack.Metrics != nil {
		pack.Metrics.Log(pack.Name, "train_loss", pack.State.StepTrain, loss)
		pack.Metrics.Log(pack.Name, "train_lr", pack.State.StepTrain, lr)
		if diag != nil {
			pack.Metrics.Log(pack.Name, "train_clip_fraction", pack.State.StepTrain, diag.ClipFraction)
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
