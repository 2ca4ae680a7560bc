/*
Package payrun orchestrates payroll runs across a pay group.

PURPOSE:
  A Run is one execution of payroll for a set of employees over one pay
  period. This file models the run itself: its one-way status lifecycle,
  its per-employee records and failures, its derived totals, and the
  version counter that makes concurrent edits safe.

LIFECYCLE (one-way, no status is ever skipped or reversed):

  draft -> pending_approval -> approved -> paid

  A run with failures stays in draft until every failed employee is
  recomputed successfully. Approval commits the run to the ledger;
  "paid" is bookkeeping after the money moves.

CONCURRENCY:
  Every mutation is a compare-and-swap on Version. Two reviewers acting
  on the same stale view cannot both win; the loser gets
  ErrConcurrentModification and must re-read.

SEE ALSO:
  - orchestrator.go: RunPayroll / Recompute / Approve / MarkPaid
*/
package payrun

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/employee"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusPaid            Status = "paid"
)

// next is the only legal successor of each status.
func (s Status) next() (Status, bool) {
	switch s {
	case StatusDraft:
		return StatusPendingApproval, true
	case StatusPendingApproval:
		return StatusApproved, true
	case StatusApproved:
		return StatusPaid, true
	}
	return "", false
}

// CanAdvanceTo reports whether to is the immediate successor of s.
func (s Status) CanAdvanceTo(to Status) bool {
	n, ok := s.next()
	return ok && n == to
}

// =============================================================================
// FAILURES AND TOTALS
// =============================================================================

// EmployeeFailure records why one employee's record could not be
// computed. Failures are part of the run, never silently dropped.
type EmployeeFailure struct {
	EmployeeID employee.ID
	Reason     string
}

// Totals are field-by-field sums over the run's records. They are
// always derived from the records, never computed independently, so a
// totals/records mismatch cannot exist.
type Totals struct {
	Gross           decimal.Decimal
	CPP             decimal.Decimal
	CPP2            decimal.Decimal
	EI              decimal.Decimal
	FederalTax      decimal.Decimal
	ProvincialTax   decimal.Decimal
	OtherDeductions decimal.Decimal
	Deductions      decimal.Decimal
	Net             decimal.Decimal
	EmployerCosts   decimal.Decimal
}

func sumTotals(records []*payroll.Record) Totals {
	var t Totals
	for _, r := range records {
		t.Gross = t.Gross.Add(r.Earnings.Total)
		t.CPP = t.CPP.Add(r.Deductions.CPP)
		t.CPP2 = t.CPP2.Add(r.Deductions.CPP2)
		t.EI = t.EI.Add(r.Deductions.EI)
		t.FederalTax = t.FederalTax.Add(r.Deductions.FederalTax)
		t.ProvincialTax = t.ProvincialTax.Add(r.Deductions.ProvincialTax)
		t.OtherDeductions = t.OtherDeductions.Add(
			r.Deductions.RRSP.Add(r.Deductions.UnionDues).Add(r.Deductions.Other).Add(r.Deductions.Garnishment))
		t.Deductions = t.Deductions.Add(r.Deductions.Total)
		t.Net = t.Net.Add(r.NetPay)
		t.EmployerCosts = t.EmployerCosts.Add(r.Employer.Total)
	}
	return t
}

// =============================================================================
// RUN
// =============================================================================

type Run struct {
	ID       payroll.RunID
	PayGroup string

	PeriodStart time.Time
	PeriodEnd   time.Time
	PayDate     time.Time

	Status  Status
	Version int // optimistic concurrency counter, bumped on every save

	Records  []*payroll.Record
	Failures []EmployeeFailure
	Totals   Totals

	CreatedAt  time.Time
	ApprovedAt time.Time
	PaidAt     time.Time
}

// Record returns the run's record for one employee, or nil.
func (r *Run) Record(id employee.ID) *payroll.Record {
	for _, rec := range r.Records {
		if rec.EmployeeID == id {
			return rec
		}
	}
	return nil
}

// =============================================================================
// STORE
// =============================================================================

// RunStore persists runs with compare-and-swap semantics.
type RunStore interface {
	// SaveRun writes the run if its stored version equals expected
	// (0 for a new run) and bumps run.Version to expected+1. Fails with
	// ErrConcurrentModification on a version mismatch.
	SaveRun(ctx context.Context, run *Run, expected int) error

	// GetRun fails with RunNotFoundError for an unknown ID.
	GetRun(ctx context.Context, id payroll.RunID) (*Run, error)

	// ListRuns returns all runs, newest pay date first.
	ListRuns(ctx context.Context) ([]*Run, error)
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrRunNotFound is returned for an unknown run ID.
	ErrRunNotFound = errors.New("payroll run not found")

	// ErrConcurrentModification is returned when a compare-and-swap loses
	// to a concurrent writer. The caller must re-read and retry.
	ErrConcurrentModification = errors.New("run modified concurrently")

	// ErrInvalidTransition is returned for any status change that is not
	// the immediate successor in the lifecycle.
	ErrInvalidTransition = errors.New("invalid run status transition")

	// ErrRunHasFailures blocks approval while any employee failure remains.
	ErrRunHasFailures = errors.New("run has unresolved employee failures")
)

type RunNotFoundError struct {
	RunID payroll.RunID
}

func (e *RunNotFoundError) Error() string {
	return fmt.Sprintf("payroll run %s not found", e.RunID)
}

func (e *RunNotFoundError) Unwrap() error { return ErrRunNotFound }

type TransitionError struct {
	RunID payroll.RunID
	From  Status
	To    Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("run %s: cannot transition %s -> %s", e.RunID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
