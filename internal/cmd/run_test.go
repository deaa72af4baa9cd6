package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldrunhq/coldrun/pkg/resultstore"
	"github.com/coldrunhq/coldrun/pkg/schedule"
)

// writeRunManifest writes a quick dry-run manifest with 2 benchmarks x 2
// pexecs and returns the manifest path and the results directory.
func writeRunManifest(t *testing.T) (string, string) {
	t.Helper()

	dir := t.TempDir()
	resultsDir := filepath.Join(dir, "results")
	manifest := `version: "1.0"
results_dir: ` + resultsDir + `
execution:
  pexecs: 2
  quick: true
  dry_run: true
vms:
  - name: sh
    interpreter: /bin/sh
benchmarks:
  - path: alpha.sh
    vm: sh
  - path: beta.sh
    vm: sh
`
	path := filepath.Join(dir, "experiment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0644))
	return path, resultsDir
}

func TestRunCommand_QuickDryRunCompletes(t *testing.T) {
	manifestPath, resultsDir := writeRunManifest(t)

	out, err := executeCLI(t, "run", "--job", manifestPath)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(resultsDir, resultstore.DBFileName))

	hdr, err := schedule.Open(resultsDir)
	require.NoError(t, err)
	assert.Equal(t, 4, hdr.NumJobs())
	assert.Equal(t, 4, hdr.NextIdx())

	ctx := context.Background()
	store, err := resultstore.OpenDir(ctx, resultsDir)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	counts, err := store.StatusCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, counts[schedule.StatusDone])
	assert.Equal(t, 0, counts[schedule.StatusOutstanding])
	assert.Equal(t, 0, counts[schedule.StatusError])
}

func TestRunCommand_ResultsDirFlagOverridesManifest(t *testing.T) {
	manifestPath, _ := writeRunManifest(t)
	override := filepath.Join(t.TempDir(), "elsewhere")

	out, err := executeCLI(t, "run", "--job", manifestPath, "--results-dir", override)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(override, resultstore.DBFileName))

	hdr, err := schedule.Open(override)
	require.NoError(t, err)
	assert.Equal(t, 4, hdr.NextIdx())
}

func TestRunCommand_InvalidManifestFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: \"2.0\"\n"), 0644))

	out, err := executeCLI(t, "run", "--job", path)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "Invalid experiment manifest") ||
		strings.Contains(out, "Invalid experiment manifest"))
}

func TestRunCommand_MissingJobFlagFails(t *testing.T) {
	_, err := executeCLI(t, "run")
	require.Error(t, err)
}
