package schedule

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenOrCreate_FreshHeaderIsPermutation(t *testing.T) {
	for _, numJobs := range []int{1, 2, 7, 100} {
		dir := t.TempDir()
		hdr, err := OpenOrCreate(dir, numJobs)
		require.NoError(t, err)

		assert.Equal(t, 0, hdr.NumReboots())
		assert.Equal(t, 0, hdr.NextIdx())
		require.Len(t, hdr.Ordering(), numJobs)

		seen := make(map[int]bool, numJobs)
		for _, id := range hdr.Ordering() {
			require.GreaterOrEqual(t, id, 0)
			require.Less(t, id, numJobs)
			require.False(t, seen[id], "job id %d appears twice", id)
			seen[id] = true
		}
	}
}

func TestOpenOrCreate_ReopenNeverChangesOrdering(t *testing.T) {
	dir := t.TempDir()
	hdr, err := OpenOrCreate(dir, 50)
	require.NoError(t, err)
	want := hdr.Ordering()

	// Simulate many process restarts: every open is a fresh parse.
	for i := 0; i < 10; i++ {
		reopened, err := OpenOrCreate(dir, 50)
		require.NoError(t, err)
		assert.Equal(t, want, reopened.Ordering())
	}
}

func TestOpenOrCreate_RejectsJobCountMismatch(t *testing.T) {
	dir := t.TempDir()
	_, err := OpenOrCreate(dir, 10)
	require.NoError(t, err)

	_, err = OpenOrCreate(dir, 12)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "records 10 jobs")
}

func TestOpenOrCreate_RejectsInvalidJobCounts(t *testing.T) {
	dir := t.TempDir()

	_, err := OpenOrCreate(dir, 0)
	require.Error(t, err)

	// The final cursor value (numJobs) must fit the 6-byte next_idx field.
	_, err = OpenOrCreate(dir, 10_000_000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds fixed field width")
}

func TestOpenOrCreate_ExistingDirWithoutHeader(t *testing.T) {
	// A results directory created by a process that died before writing the
	// header is indistinguishable from a fresh experiment; the header is
	// synthesized as on first creation.
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0644))

	hdr, err := OpenOrCreate(dir, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, hdr.NumJobs())
}

// writeHeaderFile writes a header with a known ordering so tests can pin the
// execution sequence.
func writeHeaderFile(t *testing.T, dir, numReboots, nextIdx, ordering string) string {
	t.Helper()
	path := filepath.Join(dir, HeaderFileName)
	content := "num_reboots=" + numReboots + "\nnext_idx=" + nextIdx + "\nordering=" + ordering + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseHeader_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "num_reboots wrong width",
			content: "num_reboots=000\nnext_idx=000000\nordering=0\n",
			wantErr: "width",
		},
		{
			name:    "next_idx non-numeric",
			content: "num_reboots=00000000\nnext_idx=00a000\nordering=0\n",
			wantErr: "non-numeric",
		},
		{
			name:    "missing ordering",
			content: "num_reboots=00000000\nnext_idx=000000\n",
			wantErr: "missing the ordering",
		},
		{
			name:    "duplicate job id",
			content: "num_reboots=00000000\nnext_idx=000000\nordering=0,1,1\n",
			wantErr: "duplicate job id",
		},
		{
			name:    "out of range job id",
			content: "num_reboots=00000000\nnext_idx=000000\nordering=0,1,5\n",
			wantErr: "out-of-range",
		},
		{
			name:    "unexpected key",
			content: "num_reboots=00000000\nnext_idx=000000\nordering=0\nbogus=1\n",
			wantErr: "unexpected manifest header key",
		},
		{
			name:    "cursor past end",
			content: "num_reboots=00000000\nnext_idx=000004\nordering=2,0,1\n",
			wantErr: "exceeds job count",
		},
		{
			name:    "line without separator",
			content: "num_reboots 00000000\n",
			wantErr: "key=value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), HeaderFileName)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := parseHeader(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHeader_SyncRoundTrip(t *testing.T) {
	dir := t.TempDir()
	hdr, err := OpenOrCreate(dir, 9)
	require.NoError(t, err)

	require.NoError(t, hdr.Advance())
	require.NoError(t, hdr.Advance())
	require.NoError(t, hdr.IncrementReboots())
	require.NoError(t, hdr.IncrementReboots())
	require.NoError(t, hdr.IncrementReboots())
	require.NoError(t, hdr.Sync())

	reopened, err := OpenOrCreate(dir, 9)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.NextIdx())
	assert.Equal(t, 3, reopened.NumReboots())
	assert.Equal(t, hdr.Ordering(), reopened.Ordering())
}

func TestHeader_SyncPatchesInPlace(t *testing.T) {
	dir := t.TempDir()
	path := writeHeaderFile(t, dir, "00000000", "000000", "2,0,1")

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	hdr, err := OpenOrCreate(dir, 3)
	require.NoError(t, err)
	require.NoError(t, hdr.Advance())
	require.NoError(t, hdr.IncrementReboots())
	require.NoError(t, hdr.Sync())

	after, err := os.ReadFile(path)
	require.NoError(t, err)

	// Only the two counter slices change; the file length and the ordering
	// payload are untouched.
	require.Equal(t, len(before), len(after))
	assert.Equal(t, "num_reboots=00000001\nnext_idx=000001\nordering=2,0,1\n", string(after))
}

func TestHeader_AdvanceExhaustsSchedule(t *testing.T) {
	dir := t.TempDir()
	hdr, err := OpenOrCreate(dir, 4)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, ok := hdr.NextJobID()
		require.True(t, ok)
		require.NoError(t, hdr.Advance())
	}

	_, ok := hdr.NextJobID()
	assert.False(t, ok)
	assert.Error(t, hdr.Advance())
}

func TestFormatIntField(t *testing.T) {
	s, err := formatIntField(42, 6)
	require.NoError(t, err)
	assert.Equal(t, "000042", s)

	s, err = formatIntField(0, 8)
	require.NoError(t, err)
	assert.Equal(t, "00000000", s)

	// Width overflow is a detectable error, never silent truncation.
	_, err = formatIntField(1_000_000, 6)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds fixed field width")
}

func TestHeader_ToleratesPartialSync(t *testing.T) {
	// A crash between the two field patches leaves one counter stale. The
	// header must still parse, yielding the last durably written cursor.
	dir := t.TempDir()
	path := writeHeaderFile(t, dir, "00000003", "000002", "2,0,1")

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	require.NoError(t, err)
	// Patch only num_reboots, as if the process died before next_idx.
	_, err = f.WriteAt([]byte("00000004"), int64(len("num_reboots=")))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	hdr, err := OpenOrCreate(dir, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, hdr.NumReboots())
	assert.Equal(t, 2, hdr.NextIdx())
}
