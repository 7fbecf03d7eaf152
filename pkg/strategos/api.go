// Package strategos is the embeddable client for training continuous-control
// policies with on-policy reinforcement learning. A Client owns the artifact
// directories and the persistence backend; each Train call runs a complete
// multi-segment (optionally multi-rank) PPO run against a named environment.
package strategos

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"strategos/internal/comm"
	"strategos/internal/env"
	"strategos/internal/model"
	"strategos/internal/ppo"
	"strategos/internal/stats"
	"strategos/internal/storage"
	"strategos/internal/system"
)

const (
	defaultBenchmarksDir = "benchmarks"
	defaultExportsDir    = "exports"
	defaultDBPath        = "strategos.db"
)

type Options struct {
	StoreKind     string
	DBPath        string
	BenchmarksDir string
	ExportsDir    string
	// Logger receives training progress. Nil disables logging.
	Logger *zerolog.Logger
}

type Client struct {
	store    storage.Store
	registry *system.Registry
	logger   zerolog.Logger

	benchmarksDir string
	exportsDir    string
}

// TrainRequest configures one training run. Zero fields fall back to the
// conventional PPO defaults.
type TrainRequest struct {
	Env       string
	Algorithm string
	Seed      int64
	Ranks     int
	Segments  int

	RolloutCapacity int
	BatchSize       int
	Epochs          int

	Gamma            float64
	GAELambda        float64
	Epsilon          float64
	EntropyLossCoeff float64
	ValueLossCoeff   float64
	TargetKL         float64

	PolicyLR     float64
	CriticLR     float64
	LRSchedule   string
	ScheduleSpan int64

	ReportFrequency int64

	SaveCheckpoint bool
	CheckpointDir  string
}

type TrainSummary struct {
	RunID             string
	ArtifactsDir      string
	Segments          int
	EpisodeRewards    []float64
	FinalMeanReward   float64
	FinalKL           float64
	FinalClipFraction float64
	CheckpointDir     string
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID           string
	CreatedAtUTC    string
	Env             string
	Seed            int64
	Ranks           int
	Segments        int
	FinalMeanReward float64
	FinalKL         float64
}

type DiagnosticsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	benchmarksDir := opts.BenchmarksDir
	if benchmarksDir == "" {
		benchmarksDir = defaultBenchmarksDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	store, err := storage.NewStore(opts.StoreKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:         store,
		registry:      system.NewRegistry(),
		logger:        logger,
		benchmarksDir: benchmarksDir,
		exportsDir:    exportsDir,
	}, nil
}

func (c *Client) Close() error {
	c.registry.Shutdown()
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// Train runs a full training run and persists its artifacts, run record,
// and diagnostics. With Ranks > 1 the run is data-parallel: every rank
// collects its own rollouts and the gradient steps stay synchronized
// through an in-process communicator group.
func (c *Client) Train(ctx context.Context, req TrainRequest) (TrainSummary, error) {
	if req.Algorithm != "" && req.Algorithm != ppo.AlgorithmName {
		return TrainSummary{}, fmt.Errorf("unsupported algorithm: %s", req.Algorithm)
	}
	if req.Ranks <= 0 {
		req.Ranks = 1
	}
	if req.Segments <= 0 {
		req.Segments = 10
	}

	environment, err := env.FromName(req.Env)
	if err != nil {
		return TrainSummary{}, err
	}
	cfg := trainConfig(req, environment)
	if err := cfg.Validate(); err != nil {
		return TrainSummary{}, err
	}

	now := time.Now().UTC()
	runID := uuid.NewString()
	logger := c.logger.With().Str("run_id", runID).Logger()

	systems := make([]*ppo.System, req.Ranks)
	defer func() {
		// this run's systems live only for its duration; other runs on the
		// same client keep their registrations
		for r := 0; r < req.Ranks; r++ {
			c.registry.Deregister(systemKey(runID, r))
		}
	}()
	for r := 0; r < req.Ranks; r++ {
		sys, err := ppo.NewSystem(fmt.Sprintf("%s-rank%d", runID, r), cfg, logger)
		if err != nil {
			return TrainSummary{}, err
		}
		if err := c.registry.Register(systemKey(runID, r), sys); err != nil {
			return TrainSummary{}, err
		}
		systems[r] = sys
	}

	var group []comm.Communicator
	if req.Ranks > 1 {
		group, err = comm.NewGroup(req.Ranks)
		if err != nil {
			return TrainSummary{}, err
		}
		for r, sys := range systems {
			sys.InitComm(group[r])
		}
	}

	systems[0].PrintInfo()

	recorder := &runRecorder{}
	var wg sync.WaitGroup
	errs := make([]error, req.Ranks)
	for r := 0; r < req.Ranks; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			rec := recorder
			if r != 0 {
				rec = nil
			}
			rankEnv, err := env.FromName(req.Env)
			if err != nil {
				errs[r] = err
				return
			}
			errs[r] = runRank(ctx, systems[r], rankEnv, cfg, req.Segments, cfg.Seed+int64(r), rec)
		}(r)
	}
	wg.Wait()
	for r, err := range errs {
		if err != nil {
			return TrainSummary{}, fmt.Errorf("rank %d: %w", r, err)
		}
	}

	episodeRewards, diagnostics := recorder.snapshot()
	meanReward := 0.0
	for _, reward := range episodeRewards {
		meanReward += reward
	}
	if len(episodeRewards) > 0 {
		meanReward /= float64(len(episodeRewards))
	}

	summary := TrainSummary{
		RunID:             runID,
		Segments:          req.Segments,
		EpisodeRewards:    episodeRewards,
		FinalMeanReward:   meanReward,
		FinalKL:           systems[0].CurrentKLDivergence(),
		FinalClipFraction: systems[0].ClipFraction(),
	}

	if req.SaveCheckpoint {
		checkpointDir := req.CheckpointDir
		if checkpointDir == "" {
			checkpointDir = filepath.Join(c.benchmarksDir, runID, "checkpoint")
		}
		if err := systems[0].SaveCheckpoint(checkpointDir); err != nil {
			return TrainSummary{}, err
		}
		summary.CheckpointDir = filepath.Clean(checkpointDir)
	}

	runDir, err := stats.WriteRunArtifacts(c.benchmarksDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:            runID,
			Env:              environment.Name(),
			Algorithm:        ppo.AlgorithmName,
			Seed:             cfg.Seed,
			Ranks:            req.Ranks,
			Segments:         req.Segments,
			RolloutCapacity:  cfg.RolloutCapacity,
			BatchSize:        cfg.BatchSize,
			Epochs:           cfg.Epochs,
			Gamma:            cfg.Gamma,
			GAELambda:        cfg.GAELambda,
			Epsilon:          cfg.Epsilon,
			EntropyLossCoeff: cfg.EntropyLossCoeff,
			ValueLossCoeff:   cfg.ValueLossCoeff,
			TargetKL:         cfg.TargetKL,
			PolicyLR:         cfg.PolicyLR,
			CriticLR:         cfg.CriticLR,
			LRSchedule:       cfg.LRSchedule,
		},
		Diagnostics:     diagnostics,
		EpisodeRewards:  episodeRewards,
		FinalMeanReward: meanReward,
	})
	if err != nil {
		return TrainSummary{}, err
	}
	summary.ArtifactsDir = filepath.Clean(runDir)

	record := model.RunRecord{
		VersionedRecord:  storage.StampVersion(),
		RunID:            runID,
		Env:              environment.Name(),
		Seed:             cfg.Seed,
		Ranks:            req.Ranks,
		Segments:         req.Segments,
		FinalMeanReward:  meanReward,
		FinalKL:          summary.FinalKL,
		FinalClipFrac:    summary.FinalClipFraction,
		CreatedAtUTC:     now.Format(time.RFC3339Nano),
		CheckpointSaved:  req.SaveCheckpoint,
		DiagnosticsCount: len(diagnostics),
	}
	if err := stats.AppendRunIndex(c.benchmarksDir, record); err != nil {
		return TrainSummary{}, err
	}
	if err := c.store.SaveRunRecord(ctx, record); err != nil {
		return TrainSummary{}, err
	}
	if err := c.store.SaveDiagnostics(ctx, runID, diagnostics); err != nil {
		return TrainSummary{}, err
	}

	logger.Info().
		Int("episodes", len(episodeRewards)).
		Float64("mean_reward", meanReward).
		Float64("final_kl", summary.FinalKL).
		Msg("training run complete")
	return summary, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.benchmarksDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:           e.RunID,
			CreatedAtUTC:    e.CreatedAtUTC,
			Env:             e.Env,
			Seed:            e.Seed,
			Ranks:           e.Ranks,
			Segments:        e.Segments,
			FinalMeanReward: e.FinalMeanReward,
			FinalKL:         e.FinalKL,
		})
	}
	return out, nil
}

func (c *Client) Diagnostics(ctx context.Context, req DiagnosticsRequest) ([]model.TrainDiagnostics, error) {
	if req.RunID != "" && req.Latest {
		return nil, errors.New("use either run id or latest")
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}

	runID := req.RunID
	if req.Latest {
		entries, err := stats.ListRunIndex(c.benchmarksDir)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, errors.New("no runs available")
		}
		runID = entries[0].RunID
	}
	if runID == "" {
		return nil, errors.New("diagnostics requires run id or latest")
	}

	diagnostics, ok, err := c.store.GetDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// runs from earlier processes only exist in the artifacts dir
		diagnostics, ok, err = stats.ReadDiagnostics(c.benchmarksDir, runID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
		}
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[:req.Limit]
	}
	out := make([]model.TrainDiagnostics, len(diagnostics))
	copy(out, diagnostics)
	return out, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	runID := req.RunID
	if req.Latest {
		entries, err := stats.ListRunIndex(c.benchmarksDir)
		if err != nil {
			return ExportSummary{}, err
		}
		if len(entries) == 0 {
			return ExportSummary{}, errors.New("no runs available to export")
		}
		runID = entries[0].RunID
	}

	exportedDir, err := stats.ExportRunArtifacts(c.benchmarksDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// runRecorder collects rank-0 training observations.
type runRecorder struct {
	mu             sync.Mutex
	episodeRewards []float64
	diagnostics    []model.TrainDiagnostics
}

func (r *runRecorder) addEpisode(reward float64) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.episodeRewards = append(r.episodeRewards, reward)
}

func (r *runRecorder) addDiagnostics(d model.TrainDiagnostics) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diagnostics = append(r.diagnostics, d)
}

func (r *runRecorder) snapshot() ([]float64, []model.TrainDiagnostics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.episodeRewards...),
		append([]model.TrainDiagnostics(nil), r.diagnostics...)
}

// runRank drives one rank's collect-then-train loop for the requested
// number of segments.
func runRank(ctx context.Context, sys *ppo.System, environment env.Env, cfg ppo.Config, segments int, envSeed int64, rec *runRecorder) error {
	rng := rand.New(rand.NewSource(envSeed))
	state := environment.Reset(rng)
	episodeReward := 0.0

	for seg := 0; seg < segments; seg++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		for i := 0; i < cfg.RolloutCapacity; i++ {
			action, logProb := sys.SampleAction(state)
			value := sys.Evaluate(state, action)
			next, reward, done := environment.Step(action)
			sys.UpdateRolloutBuffer(state, action, reward, value, logProb, done)
			episodeReward += reward
			if done {
				rec.addEpisode(episodeReward)
				episodeReward = 0
				state = environment.Reset(rng)
			} else {
				state = next
			}
		}
		finalAction := sys.Predict(state)
		sys.FinalizeRolloutBuffer(sys.Evaluate(state, finalAction), false)

		for sys.IsReady() {
			if _, _, err := sys.TrainStep(); err != nil {
				return err
			}
			rec.addDiagnostics(sys.LastDiagnostics())
		}
	}
	return nil
}

func trainConfig(req TrainRequest, environment env.Env) ppo.Config {
	cfg := ppo.DefaultConfig()
	cfg.StateDim = environment.StateDim()
	cfg.ActionDim = environment.ActionDim()
	cfg.ActionLow = -1
	cfg.ActionHigh = 1
	cfg.Seed = req.Seed
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if req.RolloutCapacity > 0 {
		cfg.RolloutCapacity = req.RolloutCapacity
	}
	if req.BatchSize > 0 {
		cfg.BatchSize = req.BatchSize
	}
	if req.Epochs > 0 {
		cfg.Epochs = req.Epochs
	}
	if req.Gamma > 0 {
		cfg.Gamma = req.Gamma
	}
	if req.GAELambda > 0 {
		cfg.GAELambda = req.GAELambda
	}
	if req.Epsilon > 0 {
		cfg.Epsilon = req.Epsilon
	}
	if req.EntropyLossCoeff > 0 {
		cfg.EntropyLossCoeff = req.EntropyLossCoeff
	}
	if req.ValueLossCoeff > 0 {
		cfg.ValueLossCoeff = req.ValueLossCoeff
	}
	if req.TargetKL > 0 {
		cfg.TargetKL = req.TargetKL
	}
	if req.PolicyLR > 0 {
		cfg.PolicyLR = req.PolicyLR
	}
	if req.CriticLR > 0 {
		cfg.CriticLR = req.CriticLR
	}
	if req.LRSchedule != "" {
		cfg.LRSchedule = req.LRSchedule
	}
	if req.ScheduleSpan > 0 {
		cfg.ScheduleSpan = req.ScheduleSpan
	}
	if req.ReportFrequency > 0 {
		cfg.ReportFrequency = req.ReportFrequency
	}
	return cfg
}

func systemKey(runID string, rank int) string {
	return fmt.Sprintf("%s/%d", runID, rank)
}

// ConsoleLogger returns a human-readable logger for CLI use.
func ConsoleLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}
