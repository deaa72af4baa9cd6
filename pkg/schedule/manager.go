package schedule

import (
	"context"
	"fmt"
)

// StatusSink receives job status transitions for reporting. It is implemented
// by the result store; the scheduler treats it purely as a sink whose rows
// must eventually reflect the same transitions as the header.
type StatusSink interface {
	UpdateStatus(ctx context.Context, jobID int, status Status) error
}

// Manager is the state machine driving the manifest header: it interprets a
// job's outcome, advances the cursor on terminal outcomes, and coordinates
// durability with the result store.
type Manager struct {
	hdr *Header

	// pending is the outcome of the job just executed, held in memory
	// until Flush.
	pending struct {
		jobID  int
		status Status
		valid  bool
	}
}

// NewManager wraps an open header.
func NewManager(hdr *Header) *Manager {
	return &Manager{hdr: hdr}
}

// Header exposes the underlying manifest header for read-only inspection.
func (m *Manager) Header() *Header { return m.hdr }

// NextJob returns the id of the next job to run. The second return is false
// when the whole experiment is complete.
func (m *Manager) NextJob() (int, bool) {
	return m.hdr.NextJobID()
}

// RecordOutcome stores status as the pending outcome of the current job.
// Terminal outcomes (Done, Error) close the job's schedule slot and advance
// the cursor; Outstanding signals an explicit retry and leaves the cursor
// untouched, so the same job id is returned again on the next invocation.
func (m *Manager) RecordOutcome(status Status) error {
	jobID, ok := m.hdr.NextJobID()
	if !ok {
		return fmt.Errorf("no job outstanding to record an outcome for")
	}
	m.pending.jobID = jobID
	m.pending.status = status
	m.pending.valid = true

	if status.Terminal() {
		if err := m.hdr.Advance(); err != nil {
			return err
		}
	}
	return nil
}

// NoteReboot increments the header's reboot counter. It is called once per
// run-loop iteration regardless of the job's outcome, so restarts consumed
// and jobs completed stay independently auditable.
func (m *Manager) NoteReboot() error {
	return m.hdr.IncrementReboots()
}

// Flush persists the header's mutable fields, then writes the pending
// outcome to the store.
//
// Order matters for recovery: the header's cursor advance is the
// authoritative "this job slot is closed" signal, while the store row is
// best-effort bookkeeping for reporting. A crash between the two leaves the
// store lagging the header by at most one job, which the next flush of the
// same row repairs (the update is an idempotent overwrite).
func (m *Manager) Flush(ctx context.Context, sink StatusSink) error {
	if err := m.hdr.Sync(); err != nil {
		return err
	}
	if !m.pending.valid {
		return nil
	}
	if err := sink.UpdateStatus(ctx, m.pending.jobID, m.pending.status); err != nil {
		return fmt.Errorf("record job %d status in store: %w", m.pending.jobID, err)
	}
	return nil
}
