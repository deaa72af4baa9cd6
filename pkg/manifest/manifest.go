// Package manifest provides loading and validation of coldrun experiment
// manifests.
//
// An experiment manifest is a YAML or JSON file that configures everything
// about an experiment: where results live, how many repetitions to run, the
// language implementations (VMs), and the benchmark programs bound to them.
//
// Manifests are validated against a JSON Schema before use. The schema
// enforces strict typing and rejects unknown properties.
//
// Example manifest (YAML):
//
//	version: "1.0"
//	results_dir: ./results/warmup
//	execution:
//	  pexecs: 30
//	  in_proc_iters: 40
//	  reboot: true
//	  temp_read_pause: 60s
//	vms:
//	  - name: cpython
//	    interpreter: /usr/bin/python3
//	    env:
//	      PYTHONHASHSEED: "0"
//	benchmarks:
//	  - path: benchmarks/binarytrees/binarytrees.py
//	    vm: cpython
//	  - glob: "benchmarks/clbg/**/*.py"
//	    vm: cpython
package manifest

import (
	"fmt"
	"time"
)

// Manifest represents a validated experiment manifest.
type Manifest struct {
	// Schema is an optional JSON Schema reference for editor support.
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Version is the manifest schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// ResultsDir is the experiment's results directory. All durable state
	// (manifest header, result store) lives under it.
	ResultsDir string `json:"results_dir" yaml:"results_dir"`

	// Execution configures how jobs are run (optional).
	Execution ExecutionConfig `json:"execution,omitempty" yaml:"execution,omitempty"`

	// VMs declares the language implementations benchmarks run on.
	VMs []VMConfig `json:"vms" yaml:"vms"`

	// Benchmarks declares the benchmark programs. Entry order is part of
	// the experiment's identity: job ids are derived from it, so entries
	// must not be reordered once an experiment has started.
	Benchmarks []BenchmarkConfig `json:"benchmarks" yaml:"benchmarks"`
}

// ExecutionConfig configures run-time behavior.
type ExecutionConfig struct {
	// Pexecs is the number of process executions (full repetitions of the
	// benchmark set). Defaults to 1.
	Pexecs int `json:"pexecs,omitempty" yaml:"pexecs,omitempty"`

	// InProcIters is the in-process iteration count passed to benchmarks.
	// Defaults to 40.
	InProcIters int `json:"in_proc_iters,omitempty" yaml:"in_proc_iters,omitempty"`

	// Quick runs jobs back to back without reboots. Development only.
	Quick bool `json:"quick,omitempty" yaml:"quick,omitempty"`

	// DryRun records jobs as done without invoking benchmarks.
	DryRun bool `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`

	// Reboot selects a hardware reboot between jobs instead of a process
	// re-exec.
	Reboot bool `json:"reboot,omitempty" yaml:"reboot,omitempty"`

	// TempReadPause is the settle time before each measured job, as a Go
	// duration string. Defaults to "60s".
	TempReadPause string `json:"temp_read_pause,omitempty" yaml:"temp_read_pause,omitempty"`
}

// VMConfig declares one language implementation.
type VMConfig struct {
	// Name is the identifier benchmarks refer to.
	Name string `json:"name" yaml:"name"`

	// Kind is "interpreter" (default) or "native".
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`

	// Interpreter is the interpreter binary: an absolute path, or a bare
	// name resolved against $PATH. Required for interpreter VMs.
	Interpreter string `json:"interpreter,omitempty" yaml:"interpreter,omitempty"`

	// Env is extra environment for benchmark subprocesses.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

// BenchmarkConfig declares one benchmark entry. Exactly one of Path or Glob
// must be set; a glob expands to one benchmark per matching file, in sorted
// order so job ids stay stable.
type BenchmarkConfig struct {
	// Path is the benchmark program path.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Glob is a doublestar pattern expanded against the filesystem.
	Glob string `json:"glob,omitempty" yaml:"glob,omitempty"`

	// VM names the implementation this benchmark runs on.
	VM string `json:"vm" yaml:"vm"`

	// Name overrides the display name (path entries only).
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Args is extra arguments passed before the iteration count.
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`

	// StackLimKiB is the advisory stack limit in KiB.
	StackLimKiB uint64 `json:"stack_lim_kib,omitempty" yaml:"stack_lim_kib,omitempty"`

	// HeapLimKiB is the advisory heap limit in KiB.
	HeapLimKiB uint64 `json:"heap_lim_kib,omitempty" yaml:"heap_lim_kib,omitempty"`

	// Tags is free-form metadata recorded on every expanded benchmark.
	Tags map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// ApplyDefaults fills optional execution fields with their defaults.
func (m *Manifest) ApplyDefaults() {
	if m.Execution.Pexecs == 0 {
		m.Execution.Pexecs = 1
	}
	if m.Execution.InProcIters == 0 {
		m.Execution.InProcIters = 40
	}
	if m.Execution.TempReadPause == "" {
		m.Execution.TempReadPause = "60s"
	}
	for i := range m.VMs {
		if m.VMs[i].Kind == "" {
			m.VMs[i].Kind = "interpreter"
		}
	}
}

// TempReadPause parses the configured settle pause.
func (m *Manifest) TempReadPause() (time.Duration, error) {
	d, err := time.ParseDuration(m.Execution.TempReadPause)
	if err != nil {
		return 0, fmt.Errorf("invalid temp_read_pause %q: %w", m.Execution.TempReadPause, err)
	}
	return d, nil
}
