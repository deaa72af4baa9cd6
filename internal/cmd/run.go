package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coldrunhq/coldrun/internal/observability"
	"github.com/coldrunhq/coldrun/pkg/experiment"
	"github.com/coldrunhq/coldrun/pkg/manifest"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run (or resume) an experiment",
	Long: `Run one scheduled benchmark job, persist progress, and terminate the process
so the next invocation starts clean. Invoked repeatedly (by reboot cycles or
by self re-exec) until the schedule is exhausted.

Example:
  coldrun run --job experiment.yaml
  coldrun run --job experiment.yaml --quick --dry-run`,
	RunE: runRun,
}

var (
	runJobPath    string
	runResultsDir string
	runPexecs     int
	runIters      int
	runQuick      bool
	runDryRun     bool
	runReboot     bool
	runTempPause  time.Duration
)

func init() {
	rootCmd.AddCommand(runCmd)

	// Required
	runCmd.Flags().StringVarP(&runJobPath, "job", "j", "", "Path to experiment manifest (required)")
	_ = runCmd.MarkFlagRequired("job")

	// Manifest overrides
	runCmd.Flags().StringVarP(&runResultsDir, "results-dir", "d", "", "Override the manifest's results directory")
	runCmd.Flags().IntVar(&runPexecs, "pexecs", 0, "Override the number of process executions")
	runCmd.Flags().IntVar(&runIters, "iters", 0, "Override the in-process iteration count")
	runCmd.Flags().BoolVarP(&runQuick, "quick", "q", false, "Run jobs back to back without reboots. For development only")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Don't really run the benchmarks. For development only")
	runCmd.Flags().BoolVar(&runReboot, "reboot", false, "Hardware-reboot between jobs instead of re-exec")
	runCmd.Flags().DurationVar(&runTempPause, "temp-read-pause", 0, "Override the settle pause before each job")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	m, err := manifest.Load(runJobPath)
	if err != nil {
		observability.CLILogger.Error("Failed to load experiment manifest",
			zap.String("path", runJobPath), zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid experiment manifest", err)
	}

	benches, err := manifest.Resolve(m)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Cannot resolve benchmarks", err)
	}

	pause, err := m.TempReadPause()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid experiment manifest", err)
	}

	resultsDir := m.ResultsDir
	if settings.ResultsDir != "" {
		resultsDir = settings.ResultsDir
	}
	if cmd.Flags().Changed("results-dir") {
		resultsDir = runResultsDir
	}

	b := experiment.NewBuilder().
		ResultsDir(resultsDir).
		Pexecs(m.Execution.Pexecs).
		InProcIters(m.Execution.InProcIters).
		Quick(m.Execution.Quick).
		DryRun(m.Execution.DryRun).
		Reboot(m.Execution.Reboot).
		TempReadPause(pause).
		MailTo(settings.MailTo).
		Logger(observability.CLILogger)
	for _, bench := range benches {
		b.Benchmark(bench)
	}

	// Flags beat the manifest.
	if cmd.Flags().Changed("pexecs") {
		b.Pexecs(runPexecs)
	}
	if cmd.Flags().Changed("iters") {
		b.InProcIters(runIters)
	}
	if cmd.Flags().Changed("quick") {
		b.Quick(runQuick)
	}
	if cmd.Flags().Changed("dry-run") {
		b.DryRun(runDryRun)
	}
	if cmd.Flags().Changed("reboot") {
		b.Reboot(runReboot)
	}
	if cmd.Flags().Changed("temp-read-pause") {
		b.TempReadPause(runTempPause)
	}

	observability.CLILogger.Info("Starting experiment invocation",
		zap.String("manifest", runJobPath),
		zap.String("results_dir", resultsDir),
		zap.Int("benchmarks", len(benches)))

	storePath, err := b.Build().Run(ctx)
	if err != nil {
		if errors.Is(err, ctx.Err()) && ctx.Err() != nil {
			return exitError(foundry.ExitSignalInt, "Experiment interrupted", err)
		}
		observability.CLILogger.Error("Experiment failed", zap.Error(err))
		return fmt.Errorf("run experiment: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), storePath)
	return nil
}
