package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
version: "1.0"
results_dir: ./results
execution:
  pexecs: 3
  in_proc_iters: 20
  reboot: true
  temp_read_pause: 30s
vms:
  - name: cpython
    interpreter: /usr/bin/python3
    env:
      PYTHONHASHSEED: "0"
benchmarks:
  - path: benchmarks/binarytrees.py
    vm: cpython
    name: binarytrees
    heap_lim_kib: 2097152
`

func TestLoadFromBytes_ValidYAML(t *testing.T) {
	m, err := LoadFromBytes([]byte(validYAML), "exp.yaml")
	require.NoError(t, err)

	assert.Equal(t, "1.0", m.Version)
	assert.Equal(t, "./results", m.ResultsDir)
	assert.Equal(t, 3, m.Execution.Pexecs)
	assert.Equal(t, 20, m.Execution.InProcIters)
	assert.True(t, m.Execution.Reboot)

	pause, err := m.TempReadPause()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, pause)

	require.Len(t, m.VMs, 1)
	assert.Equal(t, "interpreter", m.VMs[0].Kind)
	require.Len(t, m.Benchmarks, 1)
	assert.Equal(t, uint64(2097152), m.Benchmarks[0].HeapLimKiB)
}

func TestLoadFromBytes_AppliesDefaults(t *testing.T) {
	minimal := `
version: "1.0"
results_dir: ./r
vms:
  - name: py
    interpreter: /usr/bin/python3
benchmarks:
  - path: b.py
    vm: py
`
	m, err := LoadFromBytes([]byte(minimal), "exp.yaml")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Execution.Pexecs)
	assert.Equal(t, 40, m.Execution.InProcIters)
	assert.Equal(t, "60s", m.Execution.TempReadPause)
}

func TestLoadFromBytes_RejectsUnknownFields(t *testing.T) {
	bad := `
version: "1.0"
results_dir: ./r
bogus_field: true
vms:
  - name: py
    interpreter: /usr/bin/python3
benchmarks:
  - path: b.py
    vm: py
`
	_, err := LoadFromBytes([]byte(bad), "exp.yaml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidationFailed))
}

func TestLoadFromBytes_RejectsBadVersion(t *testing.T) {
	bad := `
version: "2.0"
results_dir: ./r
vms:
  - name: py
    interpreter: /usr/bin/python3
benchmarks:
  - path: b.py
    vm: py
`
	_, err := LoadFromBytes([]byte(bad), "exp.yaml")
	require.Error(t, err)
}

func TestLoadFromBytes_SemanticChecks(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "undeclared vm",
			yaml: `
version: "1.0"
results_dir: ./r
vms:
  - name: py
    interpreter: /usr/bin/python3
benchmarks:
  - path: b.py
    vm: lua
`,
			wantErr: "undeclared vm",
		},
		{
			name: "path and glob together",
			yaml: `
version: "1.0"
results_dir: ./r
vms:
  - name: py
    interpreter: /usr/bin/python3
benchmarks:
  - path: b.py
    glob: "*.py"
    vm: py
`,
			wantErr: "exactly one of path or glob",
		},
		{
			name: "interpreter vm without interpreter",
			yaml: `
version: "1.0"
results_dir: ./r
vms:
  - name: py
benchmarks:
  - path: b.py
    vm: py
`,
			wantErr: "needs an interpreter",
		},
		{
			name: "duplicate vm",
			yaml: `
version: "1.0"
results_dir: ./r
vms:
  - name: py
    interpreter: /usr/bin/python3
  - name: py
    interpreter: /usr/bin/pypy
benchmarks:
  - path: b.py
    vm: py
`,
			wantErr: "duplicate vm",
		},
		{
			name: "name with glob",
			yaml: `
version: "1.0"
results_dir: ./r
vms:
  - name: py
    interpreter: /usr/bin/python3
benchmarks:
  - glob: "*.py"
    vm: py
    name: custom
`,
			wantErr: "name cannot be combined with glob",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml), "exp.yaml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_JSONManifest(t *testing.T) {
	jsonManifest := `{
  "version": "1.0",
  "results_dir": "./r",
  "vms": [{"name": "py", "interpreter": "/usr/bin/python3"}],
  "benchmarks": [{"path": "b.py", "vm": "py"}]
}`
	path := filepath.Join(t.TempDir(), "exp.json")
	require.NoError(t, os.WriteFile(path, []byte(jsonManifest), 0644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "./r", m.ResultsDir)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestResolve_PathAndGlob(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"fasta.py", "nbody.py", "spectral.py"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("pass"), 0644))
	}

	m := &Manifest{
		Version:    "1.0",
		ResultsDir: "./r",
		VMs: []VMConfig{
			{Name: "py", Kind: "interpreter", Interpreter: "/usr/bin/python3"},
		},
		Benchmarks: []BenchmarkConfig{
			{Path: filepath.Join(dir, "fasta.py"), VM: "py", Name: "fasta-main", Args: []string{"--big"}},
			{Glob: filepath.Join(dir, "*.py"), VM: "py", Tags: map[string]string{"suite": "clbg"}},
		},
	}
	m.ApplyDefaults()

	benches, err := Resolve(m)
	require.NoError(t, err)
	// 1 explicit + 3 glob matches (sorted).
	require.Len(t, benches, 4)
	assert.Equal(t, "fasta-main", benches[0].Name())
	assert.Equal(t, []string{"--big"}, benches[0].ExtraArgs())
	assert.Equal(t, "fasta", benches[1].Name())
	assert.Equal(t, "nbody", benches[2].Name())
	assert.Equal(t, "spectral", benches[3].Name())

	suite, ok := benches[1].TagValue("suite")
	require.True(t, ok)
	assert.Equal(t, "clbg", suite)
}

func TestResolve_EmptyGlobFails(t *testing.T) {
	m := &Manifest{
		VMs: []VMConfig{{Name: "py", Kind: "interpreter", Interpreter: "/usr/bin/python3"}},
		Benchmarks: []BenchmarkConfig{
			{Glob: filepath.Join(t.TempDir(), "*.py"), VM: "py"},
		},
	}
	_, err := Resolve(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matches no files")
}

func TestResolve_NativeVM(t *testing.T) {
	m := &Manifest{
		VMs: []VMConfig{{Name: "rustbin", Kind: "native"}},
		Benchmarks: []BenchmarkConfig{
			{Path: "/opt/bench/binarytrees", VM: "rustbin"},
		},
	}
	benches, err := Resolve(m)
	require.NoError(t, err)
	require.Len(t, benches, 1)
	assert.Equal(t, "binarytrees:rustbin", benches[0].ResultsKey())
}
