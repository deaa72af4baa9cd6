package experiment

import (
	"errors"

	"github.com/coldrunhq/coldrun/pkg/schedule"
)

// ErrRerun signals a transient condition (an environment glitch, a flaky
// external resource) for which the same job should be retried on the next
// invocation. VMs and collaborators wrap or return it to request a retry.
var ErrRerun = errors.New("transient failure, rerun job")

// classify converts a job execution outcome into a schedule status.
//
// ErrRerun maps to Outstanding: the cursor is not advanced and the job runs
// again. Everything else, whether a subprocess failure or an unclassified
// error, is a permanent Error that closes the job's slot without retry.
func classify(err error) schedule.Status {
	switch {
	case err == nil:
		return schedule.StatusDone
	case errors.Is(err, ErrRerun):
		return schedule.StatusOutstanding
	default:
		return schedule.StatusError
	}
}
