// Package schedule maintains the durable, crash-consistent schedule of an
// experiment: which jobs exist, in what (randomized) order they run, and how
// far execution has progressed across process restarts.
//
// All scheduling state lives in a small on-disk header file inside the
// results directory. A process never relies on in-memory state surviving: it
// re-reads the header on start and patches two fixed-width fields in place as
// jobs complete.
package schedule

import "fmt"

// Status is the lifecycle state of a scheduled job.
//
// NOTE: The numeric values are persisted in the result store's job table and
// are part of the stable on-disk contract.
type Status int

const (
	// StatusOutstanding marks a job that has not yet completed. It is the
	// only non-terminal state: a job that fails transiently is put back to
	// Outstanding and retried on the next invocation.
	StatusOutstanding Status = 0

	// StatusDone marks a successfully completed job.
	StatusDone Status = 1

	// StatusError marks a permanently failed job. Error jobs are not
	// retried; the schedule moves past them.
	StatusError Status = 2
)

// Terminal reports whether the status closes a job's schedule slot.
// Terminal outcomes advance the schedule cursor; Outstanding does not.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

func (s Status) String() string {
	switch s {
	case StatusOutstanding:
		return "outstanding"
	case StatusDone:
		return "done"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Job is one scheduled (benchmark, repetition) execution unit.
//
// Jobs are created in bulk when the schedule is first materialized, one per
// (pexec repetition x benchmark) pair, with ids assigned sequentially:
//
//	id = pexec_index*benchmark_count + benchmark_index
//
// A job is never mutated after creation except for its status.
type Job struct {
	// ID is the unique job identifier, used as the primary key in the
	// result store's job table.
	ID int

	// Key identifies the benchmark/VM combination this job executes.
	Key string

	// Status is the job's current lifecycle state.
	Status Status
}

// NewJob returns an Outstanding job with the given identity.
func NewJob(id int, key string) Job {
	return Job{ID: id, Key: key, Status: StatusOutstanding}
}

// BenchmarkIndex maps a job id to the index of the benchmark it executes
// within an experiment of benchCount benchmarks.
func BenchmarkIndex(jobID, benchCount int) int {
	return jobID % benchCount
}

// PexecIndex maps a job id to the repetition it belongs to.
func PexecIndex(jobID, benchCount int) int {
	return jobID / benchCount
}
