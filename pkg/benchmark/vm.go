package benchmark

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
)

// VM is a language implementation that can execute benchmarks.
type VM interface {
	// ResultsKey identifies this implementation in results keys.
	ResultsKey() string

	// Invoke runs the benchmark for iters in-process iterations and blocks
	// until the subprocess exits. A non-zero exit or a launch failure is
	// returned as an *ExecutionError.
	Invoke(ctx context.Context, b *Benchmark, iters int) error
}

// ExecutionError reports that a benchmark's external process failed. It is a
// permanent, non-retried failure class.
type ExecutionError struct {
	Key      string
	ExitCode int
	Err      error
}

func (e *ExecutionError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("benchmark %s exited with code %d", e.Key, e.ExitCode)
	}
	return fmt.Sprintf("benchmark %s failed to execute: %v", e.Key, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Environment variables exported to benchmark subprocesses. Limits are
// advisory: the VM under test decides how to honor them.
const (
	EnvStackLimBytes = "COLDRUN_STACK_LIM_BYTES"
	EnvHeapLimBytes  = "COLDRUN_HEAP_LIM_BYTES"
)

// ScriptingVM runs benchmarks through an interpreter binary:
//
//	<interpreter> <benchmark path> [extra args...] <iters>
type ScriptingVM struct {
	interpPath string
	env        map[string]string
}

// NewScriptingVM creates a VM for the interpreter at path. Use
// FindExecutable to resolve a bare binary name against $PATH first.
func NewScriptingVM(path string) *ScriptingVM {
	return &ScriptingVM{interpPath: path, env: map[string]string{}}
}

// Env sets an environment variable for benchmark subprocesses and returns
// the VM for chaining.
func (vm *ScriptingVM) Env(key, val string) *ScriptingVM {
	vm.env[key] = val
	return vm
}

// ResultsKey is the interpreter path's base name.
func (vm *ScriptingVM) ResultsKey() string {
	return filepath.Base(vm.interpPath)
}

// Invoke runs the interpreter on the benchmark program.
func (vm *ScriptingVM) Invoke(ctx context.Context, b *Benchmark, iters int) error {
	args := append([]string{b.Path()}, b.ExtraArgs()...)
	args = append(args, strconv.Itoa(iters))
	return runProcess(ctx, b, vm.interpPath, args, vm.env)
}

// NativeCode runs benchmarks that are standalone executables: the benchmark
// path itself is the binary to launch.
type NativeCode struct {
	name string
	env  map[string]string
}

// NewNativeCode creates a native-code VM identified by name in results keys.
func NewNativeCode(name string) *NativeCode {
	return &NativeCode{name: name, env: map[string]string{}}
}

// Env sets an environment variable for benchmark subprocesses and returns
// the VM for chaining.
func (vm *NativeCode) Env(key, val string) *NativeCode {
	vm.env[key] = val
	return vm
}

func (vm *NativeCode) ResultsKey() string { return vm.name }

// Invoke launches the benchmark binary directly.
func (vm *NativeCode) Invoke(ctx context.Context, b *Benchmark, iters int) error {
	args := append([]string{}, b.ExtraArgs()...)
	args = append(args, strconv.Itoa(iters))
	return runProcess(ctx, b, b.Path(), args, vm.env)
}

func runProcess(ctx context.Context, b *Benchmark, bin string, args []string, env map[string]string) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = append(os.Environ(), sortedEnv(env)...)
	if b.StackLim != nil {
		cmd.Env = append(cmd.Env, EnvStackLimBytes+"="+strconv.FormatUint(b.StackLim.Bytes(), 10))
	}
	if b.HeapLim != nil {
		cmd.Env = append(cmd.Env, EnvHeapLimBytes+"="+strconv.FormatUint(b.HeapLim.Bytes(), 10))
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return &ExecutionError{Key: b.ResultsKey(), ExitCode: exitErr.ExitCode(), Err: err}
		}
		return &ExecutionError{Key: b.ResultsKey(), Err: err}
	}
	return nil
}

// sortedEnv renders the env map as KEY=VALUE pairs in a stable order.
func sortedEnv(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
