// Package stats writes per-run artifact directories: the effective
// configuration, the training diagnostics series, episode rewards, and a
// cross-run index file for listing past runs.
package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"strategos/internal/model"
)

const runIndexFile = "run_index.json"

// RunConfig is the training configuration persisted alongside a run.
type RunConfig struct {
	RunID            string  `json:"run_id"`
	Env              string  `json:"env"`
	Algorithm        string  `json:"algorithm"`
	Seed             int64   `json:"seed"`
	Ranks            int     `json:"ranks"`
	Segments         int     `json:"segments"`
	RolloutCapacity  int     `json:"rollout_capacity"`
	BatchSize        int     `json:"batch_size"`
	Epochs           int     `json:"epochs"`
	Gamma            float64 `json:"gamma"`
	GAELambda        float64 `json:"gae_lambda"`
	Epsilon          float64 `json:"epsilon"`
	EntropyLossCoeff float64 `json:"entropy_loss_coeff"`
	ValueLossCoeff   float64 `json:"value_loss_coeff"`
	TargetKL         float64 `json:"target_kl"`
	PolicyLR         float64 `json:"policy_lr"`
	CriticLR         float64 `json:"critic_lr"`
	LRSchedule       string  `json:"lr_schedule"`
}

// RunArtifacts is everything a finished run leaves on disk.
type RunArtifacts struct {
	Config          RunConfig                `json:"config"`
	Diagnostics     []model.TrainDiagnostics `json:"diagnostics,omitempty"`
	EpisodeRewards  []float64                `json:"episode_rewards,omitempty"`
	FinalMeanReward float64                  `json:"final_mean_reward"`
}

// WriteRunArtifacts lays out one run's directory under baseDir and returns
// its path.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "diagnostics.json"), artifacts.Diagnostics); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "episode_rewards.json"), map[string]any{
		"episode_rewards":   artifacts.EpisodeRewards,
		"final_mean_reward": artifacts.FinalMeanReward,
	}); err != nil {
		return "", err
	}
	if err := WriteDiagnosticsSeries(runDir, artifacts.Diagnostics); err != nil {
		return "", err
	}

	return runDir, nil
}

// AppendRunIndex inserts or replaces the run's entry in the cross-run index.
func AppendRunIndex(baseDir string, entry model.RunRecord) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the index sorted newest first. A missing index reads
// as empty.
func ListRunIndex(baseDir string) ([]model.RunRecord, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []model.RunRecord{}, nil
		}
		return nil, err
	}

	var entries []model.RunRecord
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry model.RunRecord
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]model.RunRecord, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies a run directory under outDir and returns the
// destination path.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	files := []string{"config.json", "diagnostics.json", "episode_rewards.json", "diagnostics_series.csv"}
	for _, file := range files {
		path := filepath.Join(src, file)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", err
		}
		if err := copyFile(path, filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}

	return dst, nil
}

// ReadRunConfig loads a run's persisted configuration.
func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	path := filepath.Join(baseDir, runID, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RunConfig{}, false, nil
		}
		return RunConfig{}, false, err
	}

	var cfg RunConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, false, err
	}
	return cfg, true, nil
}

// ReadDiagnostics loads a run's training diagnostics series.
func ReadDiagnostics(baseDir, runID string) ([]model.TrainDiagnostics, bool, error) {
	path := filepath.Join(baseDir, runID, "diagnostics.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var diagnostics []model.TrainDiagnostics
	if err := json.Unmarshal(data, &diagnostics); err != nil {
		return nil, false, err
	}
	return diagnostics, true, nil
}

// WriteDiagnosticsSeries writes the per-step scalars as CSV for spreadsheet
// and plotting tools.
func WriteDiagnosticsSeries(runDir string, diagnostics []model.TrainDiagnostics) error {
	path := filepath.Join(runDir, "diagnostics_series.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"step", "policy_loss", "critic_loss", "kl_divergence", "clip_fraction", "policy_lr", "critic_lr"}); err != nil {
		return err
	}
	for _, d := range diagnostics {
		if err := writer.Write([]string{
			strconv.FormatInt(d.Step, 10),
			strconv.FormatFloat(d.PolicyLoss, 'f', -1, 64),
			strconv.FormatFloat(d.CriticLoss, 'f', -1, 64),
			strconv.FormatFloat(d.KLDivergence, 'f', -1, 64),
			strconv.FormatFloat(d.ClipFraction, 'f', -1, 64),
			strconv.FormatFloat(d.PolicyLR, 'f', -1, 64),
			strconv.FormatFloat(d.CriticLR, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadDiagnosticsSeries loads the CSV written by WriteDiagnosticsSeries.
func ReadDiagnosticsSeries(baseDir, runID string) ([]model.TrainDiagnostics, bool, error) {
	path := filepath.Join(baseDir, runID, "diagnostics_series.csv")
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []model.TrainDiagnostics{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 7 {
		return nil, false, fmt.Errorf("diagnostics series header must have 7 columns")
	}

	series := make([]model.TrainDiagnostics, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 7 {
			return nil, false, fmt.Errorf("diagnostics series row must have 7 columns")
		}
		step, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			return nil, false, err
		}
		values := make([]float64, 6)
		for i := range values {
			values[i], err = strconv.ParseFloat(record[i+1], 64)
			if err != nil {
				return nil, false, err
			}
		}
		series = append(series, model.TrainDiagnostics{
			Step:         step,
			PolicyLoss:   values[0],
			CriticLoss:   values[1],
			KLDivergence: values[2],
			ClipFraction: values[3],
			PolicyLR:     values[4],
			CriticLR:     values[5],
		})
	}
	return series, true, nil
}

// WriteRunConfig persists a run configuration on its own, for runs that
// fail before producing artifacts.
func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = strings.TrimSpace(runID)
	}
	if cfg.RunID != strings.TrimSpace(runID) {
		return fmt.Errorf("run config run id mismatch: got=%s want=%s", cfg.RunID, strings.TrimSpace(runID))
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, "config.json"), cfg)
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
