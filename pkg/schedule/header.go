package schedule

import (
	"bufio"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// HeaderFileName is the name of the manifest header file inside a results
// directory.
const HeaderFileName = "manifest.crn"

// Header field keys and fixed widths.
//
// The two counter fields are written zero-padded to a fixed byte width so
// that updates can patch the file in place without ever changing its length.
// The widths are a hard ceiling: a counter whose decimal representation would
// no longer fit is an unrecoverable error, not a reason to grow the file
// (growing would invalidate every recorded byte offset).
const (
	numRebootsKey   = "num_reboots"
	numRebootsWidth = 8

	nextIdxKey   = "next_idx"
	nextIdxWidth = 6

	orderingKey = "ordering"
)

// Header is the durable record of experiment progress.
//
// The on-disk layout is line-oriented, one key=value record per line, in this
// order:
//
//	num_reboots=00000000
//	next_idx=000000
//	ordering=2,0,1
//
// The ordering line is written once when the header is created and never
// rewritten; only the two fixed-width counters are patched in place. Byte
// offsets for those counters are recomputed by re-parsing the file on every
// open, since each process invocation is a fresh instance with no memory of
// the prior layout.
type Header struct {
	path string

	numReboots       int
	numRebootsOffset int64

	nextIdx       int
	nextIdxOffset int64

	// ordering is a permutation of 0..len(ordering); ordering[nextIdx] is
	// the id of the next job to run.
	ordering []int
}

// OpenOrCreate opens the manifest header in resultsDir, creating it with a
// fresh random ordering of numJobs jobs if it does not exist yet.
//
// When the header already exists, numJobs must match the persisted schedule;
// a mismatch means the experiment configuration changed mid-run and is
// treated as fatal rather than silently rescheduling.
func OpenOrCreate(resultsDir string, numJobs int) (*Header, error) {
	if numJobs <= 0 {
		return nil, fmt.Errorf("schedule needs at least one job, got %d", numJobs)
	}
	// The final cursor value is numJobs itself; it must fit the fixed field.
	if _, err := formatIntField(numJobs, nextIdxWidth); err != nil {
		return nil, fmt.Errorf("too many jobs for %s field: %w", nextIdxKey, err)
	}

	path := filepath.Join(resultsDir, HeaderFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeNewHeader(path, randomOrdering(numJobs)); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat manifest header: %w", err)
	}

	hdr, err := parseHeader(path)
	if err != nil {
		return nil, err
	}
	if len(hdr.ordering) != numJobs {
		return nil, fmt.Errorf("manifest header records %d jobs but the experiment defines %d; delete %s to restart the experiment",
			len(hdr.ordering), numJobs, resultsDir)
	}
	return hdr, nil
}

// Open opens an existing manifest header without creating one. Inspection
// commands use it so that looking at an experiment never mutates it.
func Open(resultsDir string) (*Header, error) {
	path := filepath.Join(resultsDir, HeaderFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("no manifest header in %s; has the experiment ever run?", resultsDir)
	}
	return parseHeader(path)
}

// randomOrdering returns a uniformly random permutation of 0..numJobs.
// Randomizing execution order decouples job identity from schedule position,
// so position-dependent effects (thermal drift and the like) do not bias any
// particular benchmark.
func randomOrdering(numJobs int) []int {
	return rand.Perm(numJobs)
}

// writeNewHeader materializes a blank header with the given ordering. The
// ordering payload written here is permanent for the life of the experiment.
func writeNewHeader(path string, ordering []int) error {
	numReboots, err := formatIntField(0, numRebootsWidth)
	if err != nil {
		return err
	}
	nextIdx, err := formatIntField(0, nextIdxWidth)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s=%s\n", numRebootsKey, numReboots)
	fmt.Fprintf(&b, "%s=%s\n", nextIdxKey, nextIdx)
	fmt.Fprintf(&b, "%s=%s\n", orderingKey, orderingString(ordering))

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("write manifest header: %w", err)
	}
	return nil
}

func orderingString(ordering []int) string {
	parts := make([]string, len(ordering))
	for i, id := range ordering {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// parseHeader reads the header file and reconstructs the byte offsets of the
// two mutable fields. Any structural problem (missing field, wrong width,
// non-numeric value, ordering that is not a permutation) is an error: a
// malformed header cannot be repaired automatically and the operator must
// decide whether to restore or restart the experiment.
func parseHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest header: %w", err)
	}
	defer func() { _ = f.Close() }()

	hdr := &Header{path: path, numRebootsOffset: -1, nextIdxOffset: -1}
	var haveOrdering bool

	// Byte offset of the current line within the file.
	var offset int64

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("manifest header line %q is not a key=value pair", line)
		}
		// Offset of the value within the file: skip the key and the '='.
		valOffset := offset + int64(len(key)) + 1

		switch key {
		case numRebootsKey:
			n, err := parseIntField(key, value, numRebootsWidth)
			if err != nil {
				return nil, err
			}
			hdr.numReboots = n
			hdr.numRebootsOffset = valOffset
		case nextIdxKey:
			n, err := parseIntField(key, value, nextIdxWidth)
			if err != nil {
				return nil, err
			}
			hdr.nextIdx = n
			hdr.nextIdxOffset = valOffset
		case orderingKey:
			ordering, err := parseOrdering(value)
			if err != nil {
				return nil, err
			}
			hdr.ordering = ordering
			haveOrdering = true
		default:
			return nil, fmt.Errorf("unexpected manifest header key %q", key)
		}

		// Account for the newline terminating this line.
		offset += int64(len(line)) + 1
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest header: %w", err)
	}

	if hdr.numRebootsOffset < 0 {
		return nil, fmt.Errorf("manifest header is missing the %s field", numRebootsKey)
	}
	if hdr.nextIdxOffset < 0 {
		return nil, fmt.Errorf("manifest header is missing the %s field", nextIdxKey)
	}
	if !haveOrdering {
		return nil, fmt.Errorf("manifest header is missing the %s field", orderingKey)
	}
	if hdr.nextIdx > len(hdr.ordering) {
		return nil, fmt.Errorf("manifest header cursor %d exceeds job count %d", hdr.nextIdx, len(hdr.ordering))
	}
	return hdr, nil
}

func parseIntField(key, value string, width int) (int, error) {
	if len(value) != width {
		return 0, fmt.Errorf("manifest header field %s has width %d, expected %d", key, len(value), width)
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("manifest header field %s has non-numeric value %q", key, value)
	}
	return n, nil
}

// parseOrdering parses the comma-separated permutation and verifies it is a
// bijection on 0..n: every job id appears exactly once.
func parseOrdering(value string) ([]int, error) {
	parts := strings.Split(value, ",")
	ordering := make([]int, 0, len(parts))
	seen := make(map[int]bool, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(p)
		if err != nil || id < 0 {
			return nil, fmt.Errorf("manifest header ordering contains invalid job id %q", p)
		}
		if id >= len(parts) {
			return nil, fmt.Errorf("manifest header ordering contains out-of-range job id %d", id)
		}
		if seen[id] {
			return nil, fmt.Errorf("manifest header ordering contains duplicate job id %d", id)
		}
		seen[id] = true
		ordering = append(ordering, id)
	}
	return ordering, nil
}

// formatIntField renders value zero-padded to exactly width bytes. A value
// whose decimal representation exceeds the width is an error.
func formatIntField(value, width int) (string, error) {
	s := strconv.Itoa(value)
	if len(s) > width {
		return "", fmt.Errorf("value %d exceeds fixed field width of %d bytes", value, width)
	}
	return strings.Repeat("0", width-len(s)) + s, nil
}

// NumJobs returns the total number of jobs in the schedule.
func (h *Header) NumJobs() int { return len(h.ordering) }

// NumReboots returns the in-memory reboot counter.
func (h *Header) NumReboots() int { return h.numReboots }

// NextIdx returns the in-memory schedule cursor.
func (h *Header) NextIdx() int { return h.nextIdx }

// Ordering returns a copy of the persisted job ordering.
func (h *Header) Ordering() []int {
	out := make([]int, len(h.ordering))
	copy(out, h.ordering)
	return out
}

// NextJobID returns the id of the next job to execute. The second return is
// false when the schedule is exhausted.
func (h *Header) NextJobID() (int, bool) {
	if h.nextIdx < len(h.ordering) {
		return h.ordering[h.nextIdx], true
	}
	return 0, false
}

// Advance moves the schedule cursor past the current job. The new cursor
// value must still fit the fixed field width.
func (h *Header) Advance() error {
	if h.nextIdx >= len(h.ordering) {
		return fmt.Errorf("cannot advance cursor past the end of the schedule (%d jobs)", len(h.ordering))
	}
	if _, err := formatIntField(h.nextIdx+1, nextIdxWidth); err != nil {
		return fmt.Errorf("advance %s: %w", nextIdxKey, err)
	}
	h.nextIdx++
	return nil
}

// IncrementReboots bumps the reboot counter. The new value must still fit the
// fixed field width.
func (h *Header) IncrementReboots() error {
	if _, err := formatIntField(h.numReboots+1, numRebootsWidth); err != nil {
		return fmt.Errorf("increment %s: %w", numRebootsKey, err)
	}
	h.numReboots++
	return nil
}

// Sync patches the two mutable counters into the header file at the offsets
// recorded at parse time. Only those fixed-width byte ranges are written; the
// rest of the file, including the ordering payload, is never touched.
//
// A crash between the two patches leaves one field stale. That is tolerated:
// the next invocation re-parses whatever was durably written and the header
// remains structurally valid because neither patch changes the file length.
func (h *Header) Sync() error {
	numReboots, err := formatIntField(h.numReboots, numRebootsWidth)
	if err != nil {
		return fmt.Errorf("sync %s: %w", numRebootsKey, err)
	}
	nextIdx, err := formatIntField(h.nextIdx, nextIdxWidth)
	if err != nil {
		return fmt.Errorf("sync %s: %w", nextIdxKey, err)
	}

	f, err := os.OpenFile(h.path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open manifest header for sync: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := patchField(f, h.numRebootsOffset, numReboots); err != nil {
		return fmt.Errorf("patch %s: %w", numRebootsKey, err)
	}
	if err := patchField(f, h.nextIdxOffset, nextIdx); err != nil {
		return fmt.Errorf("patch %s: %w", nextIdxKey, err)
	}
	return nil
}

// patchField overwrites exactly len(value) bytes at offset. It is the only
// write primitive used after header creation.
func patchField(f *os.File, offset int64, value string) error {
	n, err := f.WriteAt([]byte(value), offset)
	if err != nil {
		return err
	}
	if n != len(value) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(value))
	}
	return nil
}
