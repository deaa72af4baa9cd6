package manifest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/coldrunhq/coldrun/pkg/benchmark"
)

// Resolve materializes the manifest's benchmark matrix: VM declarations
// become live VM instances and benchmark entries expand (globs included)
// into concrete benchmarks, in a deterministic order.
//
// Determinism matters: job ids are assigned from benchmark positions, so the
// same manifest must always resolve to the same sequence. Glob matches are
// therefore sorted before expansion.
func Resolve(m *Manifest) ([]*benchmark.Benchmark, error) {
	vms := make(map[string]benchmark.VM, len(m.VMs))
	for _, cfg := range m.VMs {
		vm, err := buildVM(cfg)
		if err != nil {
			return nil, err
		}
		vms[cfg.Name] = vm
	}

	var out []*benchmark.Benchmark
	for i, cfg := range m.Benchmarks {
		vm := vms[cfg.VM]
		paths, err := expandPaths(cfg)
		if err != nil {
			return nil, fmt.Errorf("benchmarks[%d]: %w", i, err)
		}
		for _, path := range paths {
			out = append(out, buildBenchmark(cfg, path, vm))
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("manifest resolves to no benchmarks")
	}
	return out, nil
}

func buildVM(cfg VMConfig) (benchmark.VM, error) {
	switch cfg.Kind {
	case "native":
		vm := benchmark.NewNativeCode(cfg.Name)
		for _, k := range sortedKeys(cfg.Env) {
			vm.Env(k, cfg.Env[k])
		}
		return vm, nil
	case "", "interpreter":
		interp := cfg.Interpreter
		// A bare binary name is resolved against $PATH; anything with a
		// path separator is taken literally.
		if !strings.ContainsRune(interp, '/') {
			resolved, err := benchmark.FindExecutable(interp)
			if err != nil {
				return nil, fmt.Errorf("vm %q: %w", cfg.Name, err)
			}
			interp = resolved
		}
		vm := benchmark.NewScriptingVM(interp)
		for _, k := range sortedKeys(cfg.Env) {
			vm.Env(k, cfg.Env[k])
		}
		return vm, nil
	default:
		return nil, fmt.Errorf("vm %q has unknown kind %q", cfg.Name, cfg.Kind)
	}
}

func expandPaths(cfg BenchmarkConfig) ([]string, error) {
	if cfg.Path != "" {
		return []string{cfg.Path}, nil
	}

	matches, err := doublestar.FilepathGlob(cfg.Glob)
	if err != nil {
		return nil, fmt.Errorf("invalid glob %q: %w", cfg.Glob, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("glob %q matches no files", cfg.Glob)
	}
	sort.Strings(matches)
	return matches, nil
}

func buildBenchmark(cfg BenchmarkConfig, path string, vm benchmark.VM) *benchmark.Benchmark {
	b := benchmark.New(path, vm)
	if cfg.Name != "" {
		b.Tag(benchmark.TagName, cfg.Name)
	}
	for _, k := range sortedKeys(cfg.Tags) {
		b.Tag(k, cfg.Tags[k])
	}
	if len(cfg.Args) > 0 {
		b.Args(cfg.Args...)
	}
	if cfg.StackLimKiB > 0 {
		b.WithStackLim(benchmark.KiB(cfg.StackLimKiB))
	}
	if cfg.HeapLimKiB > 0 {
		b.WithHeapLim(benchmark.KiB(cfg.HeapLimKiB))
	}
	return b
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
