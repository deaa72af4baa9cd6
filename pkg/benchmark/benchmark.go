// Package benchmark models a single benchmark program and the language
// implementations (VMs) it runs on.
//
// The scheduler does not know how a benchmark is launched; it only asks for a
// stable results key and an invocation. Everything about interpreters,
// arguments, and environment lives here.
package benchmark

import "path/filepath"

// Tag keys with defined meaning. Any other tag is free-form user metadata
// recorded alongside results.
const (
	// TagPath is mandatory: the benchmark cannot run without a program path.
	TagPath = "path"

	// TagName is the human-readable benchmark name used in results keys.
	// Defaults to the path's base name without extension.
	TagName = "benchmark_name"
)

// TagStore is a collection of key-value tags associated with a benchmark.
type TagStore map[string]string

// Benchmark is one benchmark program bound to one VM.
type Benchmark struct {
	tags TagStore
	vm   VM

	// StackLim is the stack size limit, nil when unlimited.
	StackLim *Limit
	// HeapLim is the heap size limit, nil when unlimited.
	HeapLim *Limit

	args []string
}

// New creates a benchmark for the program at path, to be run on vm.
func New(path string, vm VM) *Benchmark {
	b := &Benchmark{tags: TagStore{}, vm: vm}
	return b.Tag(TagPath, path)
}

// Tag sets tag key to val and returns the benchmark for chaining.
func (b *Benchmark) Tag(key, val string) *Benchmark {
	b.tags[key] = val
	return b
}

// TagValue returns the value of the tag with the given key.
func (b *Benchmark) TagValue(key string) (string, bool) {
	v, ok := b.tags[key]
	return v, ok
}

// Path returns the benchmark program path.
func (b *Benchmark) Path() string {
	return b.tags[TagPath]
}

// Name returns the benchmark's display name: the benchmark_name tag if set,
// otherwise the path's base name without extension.
func (b *Benchmark) Name() string {
	if name, ok := b.tags[TagName]; ok && name != "" {
		return name
	}
	base := filepath.Base(b.Path())
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}

// VM returns the language implementation this benchmark runs on.
func (b *Benchmark) VM() VM { return b.vm }

// Args sets extra arguments passed to the benchmark program.
func (b *Benchmark) Args(args ...string) *Benchmark {
	b.args = append(b.args, args...)
	return b
}

// ExtraArgs returns the configured extra program arguments.
func (b *Benchmark) ExtraArgs() []string { return b.args }

// WithStackLim sets the stack size limit.
func (b *Benchmark) WithStackLim(lim Limit) *Benchmark {
	b.StackLim = &lim
	return b
}

// WithHeapLim sets the heap size limit.
func (b *Benchmark) WithHeapLim(lim Limit) *Benchmark {
	b.HeapLim = &lim
	return b
}

// ResultsKey identifies this benchmark/VM combination in the result store's
// job table. Two jobs with the same key are repetitions of the same
// measurement.
func (b *Benchmark) ResultsKey() string {
	return b.Name() + ":" + b.vm.ResultsKey()
}
