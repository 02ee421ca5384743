// Command carprice trains a random forest on used-vehicle listings and
// writes log-price predictions for a held-out file.
//
// Example usage:
//
//	carprice --train data/train.csv --test data/test.csv --out out \
//	  --identity "Jane Analyst" --id ja123
//
//	carprice schema
//	carprice inspect data/train.csv
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Noofbiz/carPrice/config"
	"github.com/Noofbiz/carPrice/metrics"
	"github.com/Noofbiz/carPrice/pipeline"
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"train":         "train_path",
	"test":          "test_path",
	"out":           "out_dir",
	"dump-matrices": "dump_matrices",
	"seed":          "seed",
	"trees":         "trees",
	"min-node-size": "min_node_size",
	"max-features":  "max_features",
	"workers":       "workers",
	"identity":      "identity",
	"id":            "identifier",
	"log-level":     "log_level",
	"log-format":    "log_format",
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "carprice",
		Short:         "Predict used-vehicle log prices with a random forest",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runPipeline,
	}

	pf := cmd.PersistentFlags()
	pf.String("config", "", "YAML config file (default: $"+config.ConfigEnv+")")
	pf.String("env-file", ".env", "dotenv file merged into the environment")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json)")

	f := cmd.Flags()
	f.String("train", "", "training CSV (with price)")
	f.String("test", "", "test CSV (without price)")
	f.String("out", "", "output directory")
	f.Bool("dump-matrices", false, "also write encoded matrices as tensor files")
	f.Int64("seed", 0, "random seed")
	f.Int("trees", 0, "number of trees")
	f.Int("min-node-size", 0, "minimum samples on each side of a split")
	f.Int("max-features", 0, "candidate features per split (0 = floor(sqrt(p)))")
	f.Int("workers", 0, "trees fitted in parallel (0 = one per CPU)")
	f.String("identity", "", "submission identity line")
	f.String("id", "", "submission identifier line")
	f.Bool("no-progress", false, "disable the progress bar")

	cmd.AddCommand(newSchemaCmd(), newInspectCmd())
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig layers file, environment and explicitly set flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")

	overrides := make(map[string]any)
	for flag, key := range flagKeys {
		fl := cmd.Flags().Lookup(flag)
		if fl == nil || !fl.Changed {
			continue
		}
		// Typed values so validation sees ints and bools, not strings.
		switch fl.Value.Type() {
		case "int":
			v, _ := cmd.Flags().GetInt(flag)
			overrides[key] = v
		case "int64":
			v, _ := cmd.Flags().GetInt64(flag)
			overrides[key] = v
		case "bool":
			v, _ := cmd.Flags().GetBool(flag)
			overrides[key] = v
		default:
			overrides[key] = fl.Value.String()
		}
	}

	return config.Load(config.LoadOptions{
		ConfigPath: path,
		EnvFile:    envFile,
		Overrides:  overrides,
	})
}

// setupLogging builds the process logger from configuration.
func setupLogging(w io.Writer, cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	logger := setupLogging(cmd.ErrOrStderr(), cfg).With("run_id", runID)
	m := metrics.NewManager(metrics.WithConstLabels(map[string]string{"run_id": runID}))

	opts := pipeline.Options{Logger: logger, Metrics: m}
	if noProgress, _ := cmd.Flags().GetBool("no-progress"); !noProgress {
		bar := progressbar.NewOptions(cfg.Trees,
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetDescription("fitting trees"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
		opts.OnTreeDone = func(int) { _ = bar.Add(1) }
	}

	logger.Info("starting run", "train", cfg.TrainPath, "test", cfg.TestPath, "out", cfg.OutDir)
	res, err := pipeline.Run(cmd.Context(), cfg, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "R-squared (log price, in-sample): %s\n", formatScore(res.RSquared))
	fmt.Fprintf(out, "Submission written to %s (%d predictions)\n", res.SubmissionPath, len(res.Predictions))
	fmt.Fprintf(out, "Calibration plot written to %s\n", res.PlotPath)
	fmt.Fprintf(out, "Recipe written to %s\n", res.RecipePath)
	fmt.Fprintf(out, "Metrics written to %s\n", res.MetricsPath)
	return nil
}

func formatScore(v float64) string {
	return fmt.Sprintf("%.4f", v)
}
