// Package experiment drives a schedule of benchmark jobs across process
// lifetimes: one job per invocation, followed by a deliberate reboot or
// process re-exec, until the on-disk schedule is exhausted.
package experiment

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/coldrunhq/coldrun/pkg/benchmark"
	"github.com/coldrunhq/coldrun/pkg/reboot"
	"github.com/coldrunhq/coldrun/pkg/resultstore"
	"github.com/coldrunhq/coldrun/pkg/schedule"
)

// Config holds the run-time settings for one experiment.
type Config struct {
	// ResultsDir is the directory holding the manifest header and the
	// result store. It identifies the experiment.
	ResultsDir string

	// Pexecs is the number of process executions: full repetitions of the
	// benchmark set.
	Pexecs int

	// InProcIters is the in-process iteration count passed to each
	// benchmark invocation.
	InProcIters int

	// Quick runs jobs back to back without reboots. Development only.
	Quick bool

	// DryRun records jobs as done without invoking any benchmark.
	DryRun bool

	// Reboot selects a hardware reboot between jobs instead of a process
	// re-exec.
	Reboot bool

	// MailTo is the notification recipient list, carried for external
	// tooling.
	MailTo []string

	// TempReadPause is the settle time before each measured job.
	TempReadPause time.Duration
}

// Experiment executes a benchmark schedule to completion. Construct one
// through a Builder.
type Experiment struct {
	cfg        Config
	benchmarks []*benchmark.Benchmark
	rebooter   reboot.Rebooter
	log        *zap.Logger
}

// Run executes the experiment and returns the result store's path once the
// schedule is exhausted.
//
// In normal operation Run does not reach its own return: after one job it
// hands the process to the rebooter, which either replaces the process image
// (the re-invocation resumes from the manifest on disk) or shuts the host
// down. Only a rebooter that declines to terminate, such as a test double or
// quick mode's absent reboot, lets the loop continue in-process; each loop
// iteration still re-reads all state from disk exactly as a fresh process
// would.
func (e *Experiment) Run(ctx context.Context) (string, error) {
	if len(e.benchmarks) == 0 {
		return "", fmt.Errorf("experiment has no benchmarks")
	}
	if e.cfg.Pexecs < 1 {
		return "", fmt.Errorf("pexecs must be >= 1, got %d", e.cfg.Pexecs)
	}
	if err := os.MkdirAll(e.cfg.ResultsDir, 0755); err != nil {
		return "", fmt.Errorf("create results directory: %w", err)
	}

	if len(e.cfg.MailTo) > 0 {
		e.log.Info("Notification recipients configured", zap.Strings("mail_to", e.cfg.MailTo))
	}

	progress := rate.Sometimes{Interval: 5 * time.Second}
	for {
		finished, storePath, err := e.runIteration(ctx)
		if err != nil {
			return "", err
		}
		if finished {
			e.log.Info("Experiment complete", zap.String("store", storePath))
			return storePath, nil
		}

		if e.cfg.Quick {
			progress.Do(func() {
				e.log.Info("Quick mode progress", zap.String("results_dir", e.cfg.ResultsDir))
			})
			continue
		}

		if err := e.rebooter.Reboot(e.cfg.Reboot); err != nil {
			return "", fmt.Errorf("terminate process after job: %w", err)
		}
	}
}

// runIteration performs at most one job, exactly as a standalone process
// invocation would: open the manifest, run, persist, close.
func (e *Experiment) runIteration(ctx context.Context) (finished bool, storePath string, err error) {
	numJobs := e.cfg.Pexecs * len(e.benchmarks)

	hdr, err := schedule.OpenOrCreate(e.cfg.ResultsDir, numJobs)
	if err != nil {
		return false, "", err
	}
	mgr := schedule.NewManager(hdr)

	store, err := resultstore.OpenDir(ctx, e.cfg.ResultsDir)
	if err != nil {
		return false, "", err
	}
	defer func() { _ = store.Close() }()

	if err := store.EnsureSchema(ctx, numJobs, e.cfg.Pexecs); err != nil {
		return false, "", err
	}
	if err := store.SeedJobs(ctx, e.jobs()); err != nil {
		return false, "", err
	}

	jobID, ok := mgr.NextJob()
	if !ok {
		return true, store.Path(), nil
	}

	bench := e.benchmarks[schedule.BenchmarkIndex(jobID, len(e.benchmarks))]
	e.log.Info("Running job",
		zap.Int("job_id", jobID),
		zap.String("key", bench.ResultsKey()),
		zap.Int("pexec", schedule.PexecIndex(jobID, len(e.benchmarks))),
		zap.Int("next_idx", hdr.NextIdx()),
		zap.Int("num_jobs", numJobs))

	status, runErr := e.executeJob(ctx, bench)
	// Operator cancellation is not a job outcome: abort before recording
	// anything, exactly as a kill would. The on-disk state stays as it was.
	if ctx.Err() != nil {
		return false, "", fmt.Errorf("experiment interrupted: %w", ctx.Err())
	}
	if runErr != nil {
		e.log.Warn("Job did not complete cleanly",
			zap.Int("job_id", jobID),
			zap.String("status", status.String()),
			zap.Error(runErr))
	} else {
		e.log.Info("Job finished", zap.Int("job_id", jobID), zap.String("status", status.String()))
	}

	if err := mgr.RecordOutcome(status); err != nil {
		return false, "", err
	}
	if err := mgr.NoteReboot(); err != nil {
		return false, "", err
	}
	if err := mgr.Flush(ctx, store); err != nil {
		return false, "", err
	}
	return false, store.Path(), nil
}

// executeJob runs one benchmark and classifies the outcome. Failures are
// converted to a status here, never propagated: the loop always reaches the
// persistence step.
func (e *Experiment) executeJob(ctx context.Context, bench *benchmark.Benchmark) (schedule.Status, error) {
	if e.cfg.DryRun {
		return schedule.StatusDone, nil
	}

	if e.cfg.TempReadPause > 0 && !e.cfg.Quick {
		e.log.Debug("Waiting for temperature to settle",
			zap.Duration("pause", e.cfg.TempReadPause))
		select {
		case <-time.After(e.cfg.TempReadPause):
		case <-ctx.Done():
			return schedule.StatusOutstanding, ctx.Err()
		}
	}

	err := bench.VM().Invoke(ctx, bench, e.cfg.InProcIters)
	return classify(err), err
}

// jobs materializes the full job list: one job per (pexec, benchmark) pair,
// ids assigned sequentially.
func (e *Experiment) jobs() []schedule.Job {
	out := make([]schedule.Job, 0, e.cfg.Pexecs*len(e.benchmarks))
	id := 0
	for p := 0; p < e.cfg.Pexecs; p++ {
		for _, bench := range e.benchmarks {
			out = append(out, schedule.NewJob(id, bench.ResultsKey()))
			id++
		}
	}
	return out
}
