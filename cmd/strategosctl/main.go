package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"strategos/internal/storage"
	"strategos/pkg/strategos"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "train":
		return runTrain(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\n\nusage: strategosctl <command> [flags]\n\ncommands:\n"+
		"  init         initialize the persistence backend\n"+
		"  train        run a training run\n"+
		"  runs         list past runs\n"+
		"  diagnostics  show a run's per-step training diagnostics\n"+
		"  export       copy a run's artifacts to the exports directory", msg)
}

func addClientFlags(fs *flag.FlagSet) (storeKind, dbPath, benchmarksDir, exportsDir *string) {
	storeKind = fs.String("store", "memory", "store backend: memory|sqlite")
	dbPath = fs.String("db-path", "strategos.db", "sqlite database path")
	benchmarksDir = fs.String("benchmarks-dir", "benchmarks", "run artifacts directory")
	exportsDir = fs.String("exports-dir", "exports", "export target directory")
	return
}

func newClient(ctx context.Context, storeKind, dbPath, benchmarksDir, exportsDir string, verbose bool) (*strategos.Client, error) {
	opts := strategos.Options{
		StoreKind:     storeKind,
		DBPath:        dbPath,
		BenchmarksDir: benchmarksDir,
		ExportsDir:    exportsDir,
	}
	if verbose {
		logger := strategos.ConsoleLogger()
		opts.Logger = &logger
	}

	client, err := strategos.New(opts)
	if err != nil {
		return nil, err
	}
	if err := client.Init(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind, dbPath, _, _ := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := storage.NewStore(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()
	if err := store.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runTrain(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	storeKind, dbPath, benchmarksDir, exportsDir := addClientFlags(fs)
	configPath := fs.String("config", "", "optional train config JSON path")
	envName := fs.String("env", "cartpole", "environment name")
	seed := fs.Int64("seed", 1, "rng seed")
	ranks := fs.Int("ranks", 1, "data-parallel rank count")
	segments := fs.Int("segments", 10, "rollout segments to train")
	capacity := fs.Int("capacity", 1024, "rollout buffer capacity")
	batchSize := fs.Int("batch", 64, "minibatch size")
	epochs := fs.Int("epochs", 4, "training epochs per segment")
	gamma := fs.Float64("gamma", 0.99, "discount factor")
	gaeLambda := fs.Float64("gae-lambda", 0.95, "GAE smoothing factor")
	epsilon := fs.Float64("epsilon", 0.2, "surrogate clip range")
	entropyCoeff := fs.Float64("entropy-coeff", 0.0, "entropy bonus coefficient")
	valueCoeff := fs.Float64("value-coeff", 0.5, "critic loss coefficient")
	targetKL := fs.Float64("target-kl", 0.0, "KL early-stop threshold (0 disables)")
	policyLR := fs.Float64("policy-lr", 3e-4, "policy learning rate")
	criticLR := fs.Float64("critic-lr", 1e-3, "critic learning rate")
	lrSchedule := fs.String("lr-schedule", "constant", "learning rate schedule: constant|linear|cosine")
	scheduleSpan := fs.Int64("schedule-span", 0, "decay horizon in steps for non-constant schedules")
	reportFrequency := fs.Int64("report-freq", 100, "log cadence in train steps (0 disables)")
	saveCheckpoint := fs.Bool("save-checkpoint", false, "persist a checkpoint at the end of the run")
	checkpointDir := fs.String("checkpoint-dir", "", "checkpoint directory (defaults inside the run's artifacts)")
	verbose := fs.Bool("verbose", false, "log training progress to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	req, err := loadOrDefaultTrainRequest(*configPath)
	if err != nil {
		return err
	}
	if *configPath == "" {
		req = strategos.TrainRequest{
			Env:              *envName,
			Seed:             *seed,
			Ranks:            *ranks,
			Segments:         *segments,
			RolloutCapacity:  *capacity,
			BatchSize:        *batchSize,
			Epochs:           *epochs,
			Gamma:            *gamma,
			GAELambda:        *gaeLambda,
			Epsilon:          *epsilon,
			EntropyLossCoeff: *entropyCoeff,
			ValueLossCoeff:   *valueCoeff,
			TargetKL:         *targetKL,
			PolicyLR:         *policyLR,
			CriticLR:         *criticLR,
			LRSchedule:       *lrSchedule,
			ScheduleSpan:     *scheduleSpan,
			ReportFrequency:  *reportFrequency,
			SaveCheckpoint:   *saveCheckpoint,
			CheckpointDir:    *checkpointDir,
		}
	} else {
		overrideTrainRequest(&req, setFlags, map[string]any{
			"env":             *envName,
			"seed":            *seed,
			"ranks":           *ranks,
			"segments":        *segments,
			"capacity":        *capacity,
			"batch":           *batchSize,
			"epochs":          *epochs,
			"gamma":           *gamma,
			"gae-lambda":      *gaeLambda,
			"epsilon":         *epsilon,
			"entropy-coeff":   *entropyCoeff,
			"value-coeff":     *valueCoeff,
			"target-kl":       *targetKL,
			"policy-lr":       *policyLR,
			"critic-lr":       *criticLR,
			"lr-schedule":     *lrSchedule,
			"schedule-span":   *scheduleSpan,
			"report-freq":     *reportFrequency,
			"save-checkpoint": *saveCheckpoint,
			"checkpoint-dir":  *checkpointDir,
		})
	}

	client, err := newClient(ctx, *storeKind, *dbPath, *benchmarksDir, *exportsDir, *verbose)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Train(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("run_id=%s\n", summary.RunID)
	fmt.Printf("artifacts=%s\n", summary.ArtifactsDir)
	fmt.Printf("segments=%d episodes=%d mean_reward=%.3f\n", summary.Segments, len(summary.EpisodeRewards), summary.FinalMeanReward)
	fmt.Printf("final_kl=%.6f final_clip_fraction=%.4f\n", summary.FinalKL, summary.FinalClipFraction)
	if summary.CheckpointDir != "" {
		fmt.Printf("checkpoint=%s\n", summary.CheckpointDir)
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	storeKind, dbPath, benchmarksDir, exportsDir := addClientFlags(fs)
	limit := fs.Int("limit", 20, "maximum runs to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(ctx, *storeKind, *dbPath, *benchmarksDir, *exportsDir, false)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, strategos.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}
	for _, item := range runs {
		fmt.Printf("%s  %s  env=%s seed=%d ranks=%d segments=%d mean_reward=%.3f kl=%.6f\n",
			item.RunID, item.CreatedAtUTC, item.Env, item.Seed, item.Ranks, item.Segments,
			item.FinalMeanReward, item.FinalKL)
	}
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	storeKind, dbPath, benchmarksDir, exportsDir := addClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	limit := fs.Int("limit", 0, "maximum rows to print (0 prints all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(ctx, *storeKind, *dbPath, *benchmarksDir, *exportsDir, false)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	diagnostics, err := client.Diagnostics(ctx, strategos.DiagnosticsRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	for _, d := range diagnostics {
		fmt.Printf("step=%d policy_loss=%.6f critic_loss=%.6f kl=%.6f clip_fraction=%.4f policy_lr=%.6g critic_lr=%.6g\n",
			d.Step, d.PolicyLoss, d.CriticLoss, d.KLDivergence, d.ClipFraction, d.PolicyLR, d.CriticLR)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	storeKind, dbPath, benchmarksDir, exportsDir := addClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run")
	outDir := fs.String("out", "", "destination directory (defaults to exports-dir)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(ctx, *storeKind, *dbPath, *benchmarksDir, *exportsDir, false)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Export(ctx, strategos.ExportRequest{
		RunID:  *runID,
		Latest: *latest,
		OutDir: *outDir,
	})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s dir=%s\n", summary.RunID, summary.Directory)
	return nil
}
