package experiment

import (
	"time"

	"go.uber.org/zap"

	"github.com/coldrunhq/coldrun/pkg/benchmark"
	"github.com/coldrunhq/coldrun/pkg/reboot"
)

// Builder assembles an Experiment from configuration values and benchmarks.
type Builder struct {
	cfg        Config
	benchmarks []*benchmark.Benchmark
	rebooter   reboot.Rebooter
	log        *zap.Logger
}

// NewBuilder returns a builder with development-friendly defaults: one
// pexec, 40 in-process iterations, a 60s temperature settle pause, and the
// host rebooter.
func NewBuilder() *Builder {
	return &Builder{
		cfg: Config{
			Pexecs:        1,
			InProcIters:   40,
			TempReadPause: 60 * time.Second,
		},
		rebooter: reboot.NewHost(),
		log:      zap.NewNop(),
	}
}

// ResultsDir sets the experiment's results directory.
func (b *Builder) ResultsDir(dir string) *Builder {
	b.cfg.ResultsDir = dir
	return b
}

// Pexecs sets the number of process executions (full repetitions of the
// benchmark set).
func (b *Builder) Pexecs(n int) *Builder {
	b.cfg.Pexecs = n
	return b
}

// InProcIters sets the number of in-process iterations per benchmark run.
func (b *Builder) InProcIters(n int) *Builder {
	b.cfg.InProcIters = n
	return b
}

// Quick enables quick mode: jobs run back to back in one process, with no
// reboot or re-exec between them. For development only; measurements taken
// in quick mode are not isolated.
func (b *Builder) Quick(quick bool) *Builder {
	b.cfg.Quick = quick
	return b
}

// DryRun schedules and records jobs without invoking any benchmark.
func (b *Builder) DryRun(dryRun bool) *Builder {
	b.cfg.DryRun = dryRun
	return b
}

// Reboot selects a full hardware reboot (rather than a process re-exec)
// between jobs.
func (b *Builder) Reboot(hardReboot bool) *Builder {
	b.cfg.Reboot = hardReboot
	return b
}

// MailTo records the notification recipient list. Delivery is handled by
// external tooling; the list is carried in configuration only.
func (b *Builder) MailTo(recipients []string) *Builder {
	b.cfg.MailTo = recipients
	return b
}

// TempReadPause sets how long to wait before each measured job so the
// machine settles thermally after boot.
func (b *Builder) TempReadPause(d time.Duration) *Builder {
	b.cfg.TempReadPause = d
	return b
}

// Benchmark appends a benchmark to the experiment. Job ids are derived from
// the order benchmarks are added, so the order must be stable across
// invocations of the same experiment.
func (b *Builder) Benchmark(bench *benchmark.Benchmark) *Builder {
	b.benchmarks = append(b.benchmarks, bench)
	return b
}

// Rebooter overrides the process termination capability.
func (b *Builder) Rebooter(r reboot.Rebooter) *Builder {
	b.rebooter = r
	return b
}

// Logger sets the experiment's logger.
func (b *Builder) Logger(log *zap.Logger) *Builder {
	b.log = log
	return b
}

// Build consumes the builder and creates the Experiment.
func (b *Builder) Build() *Experiment {
	return &Experiment{
		cfg:        b.cfg,
		benchmarks: b.benchmarks,
		rebooter:   b.rebooter,
		log:        b.log,
	}
}
