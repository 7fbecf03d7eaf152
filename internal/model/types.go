package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Transition is a single environment step recorded during rollout collection.
// State and Action keep the fixed shapes negotiated at buffer construction.
type Transition struct {
	State         []float64 `json:"state"`
	Action        []float64 `json:"action"`
	Reward        float64   `json:"reward"`
	ValueEstimate float64   `json:"value_estimate"`
	LogProb       float64   `json:"log_prob"`
	Done          bool      `json:"done"`
}

// TrainingState is the mutable per-model bookkeeping advanced on every
// training step.
type TrainingState struct {
	StepTrain         int64 `json:"step_train"`
	ReportFrequency   int64 `json:"report_frequency"`
	EnableMetricsHook bool  `json:"enable_metrics_hook"`
}

// TrainDiagnostics is one training step's scalar health record.
type TrainDiagnostics struct {
	Step         int64   `json:"step"`
	PolicyLoss   float64 `json:"policy_loss"`
	CriticLoss   float64 `json:"critic_loss"`
	KLDivergence float64 `json:"kl_divergence"`
	ClipFraction float64 `json:"clip_fraction"`
	PolicyLR     float64 `json:"policy_lr"`
	CriticLR     float64 `json:"critic_lr"`
}

type ParameterSnapshot struct {
	Name string    `json:"name"`
	Data []float64 `json:"data"`
}

type ModelSnapshot struct {
	Name          string              `json:"name"`
	Parameters    []ParameterSnapshot `json:"parameters"`
	Momentum      [][]float64         `json:"momentum,omitempty"`
	SchedulerStep int64               `json:"scheduler_step"`
	State         TrainingState       `json:"state"`
}

// Checkpoint is the full restartable state of one training system: both
// model packs, the system counters, and the live rollout segment.
type Checkpoint struct {
	VersionedRecord
	SystemName  string        `json:"system_name"`
	Algorithm   string        `json:"algorithm"`
	Policy      ModelSnapshot `json:"policy"`
	Critic      ModelSnapshot `json:"critic"`
	System      TrainingState `json:"system"`
	Transitions []Transition  `json:"transitions"`
}

// RunRecord summarizes a completed training run for the run index.
type RunRecord struct {
	VersionedRecord
	RunID            string  `json:"run_id"`
	Env              string  `json:"env"`
	Seed             int64   `json:"seed"`
	Ranks            int     `json:"ranks"`
	Segments         int     `json:"segments"`
	FinalMeanReward  float64 `json:"final_mean_reward"`
	FinalKL          float64 `json:"final_kl"`
	FinalClipFrac    float64 `json:"final_clip_fraction"`
	CreatedAtUTC     string  `json:"created_at_utc"`
	CheckpointSaved  bool    `json:"checkpoint_saved"`
	DiagnosticsCount int     `json:"diagnostics_count"`
}
