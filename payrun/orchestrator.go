/*
orchestrator.go - Running, recomputing, approving and paying runs

PURPOSE:
  The Orchestrator drives a run through its lifecycle. RunPayroll fans
  the per-employee computation out across goroutines; each employee's
  failure is recorded on the run without aborting the others. Approve
  commits the run to the ledger and advances the status under a
  compare-and-swap.

COMMIT ORDERING:
  Approve commits the ledger BEFORE the status CAS. The commit is
  idempotent per run ID, so a crash between commit and save is repaired
  by retrying Approve: the re-commit is a no-op and only the status
  write remains. Mutating operations on one run serialize on a per-run
  lock, so no recompute can slip between the commit and the save and
  leave the ledger holding entries the approved run no longer shows.

SEE ALSO:
  - run.go: Run, RunStore, error kinds
  - payroll: ComputeRecord
  - ledger: Commit / YTDBefore
*/
package payrun

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/payroll-engine/employee"
	"github.com/warp/payroll-engine/jurisdiction"
	"github.com/warp/payroll-engine/ledger"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// ORCHESTRATOR
// =============================================================================

type Orchestrator struct {
	profiles employee.ProfileStore
	rules    *jurisdiction.Table
	ledger   *ledger.Ledger
	runs     RunStore
	now      func() time.Time

	// One lock per run: Recompute, Approve and MarkPaid each hold it for
	// their whole read-check-write cycle, so the ledger commit and the
	// status save inside Approve are observed atomically.
	runLocks sync.Map // payroll.RunID -> *sync.Mutex
}

func (o *Orchestrator) lockRun(id payroll.RunID) func() {
	v, _ := o.runLocks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func NewOrchestrator(profiles employee.ProfileStore, rules *jurisdiction.Table, led *ledger.Ledger, runs RunStore) *Orchestrator {
	return &Orchestrator{
		profiles: profiles,
		rules:    rules,
		ledger:   led,
		runs:     runs,
		now:      time.Now,
	}
}

// =============================================================================
// RUN PAYROLL
// =============================================================================

// RunPayroll computes a new run for the given inputs. Employees are
// computed concurrently; a failure for one employee is recorded on the
// run and never aborts the others. The run lands in pending_approval
// when every employee computed, draft while failures remain.
func (o *Orchestrator) RunPayroll(ctx context.Context, payGroup string, inputs []payroll.PeriodInput) (*Run, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no period inputs", payroll.ErrInvalidPayrollInput)
	}
	if err := validateInputs(inputs, inputs[0].PeriodStart, inputs[0].PeriodEnd, inputs[0].PayDate); err != nil {
		return nil, err
	}

	run := &Run{
		ID:          payroll.RunID(uuid.NewString()),
		PayGroup:    payGroup,
		PeriodStart: inputs[0].PeriodStart,
		PeriodEnd:   inputs[0].PeriodEnd,
		PayDate:     inputs[0].PayDate,
		CreatedAt:   o.now().UTC(),
	}

	run.Records, run.Failures = o.computeAll(ctx, inputs)
	run.Totals = sumTotals(run.Records)

	run.Status = StatusPendingApproval
	if len(run.Failures) > 0 {
		run.Status = StatusDraft
	}

	if err := o.runs.SaveRun(ctx, run, 0); err != nil {
		return nil, err
	}
	return run, nil
}

// computeAll fans the per-employee computation out and joins the
// results in deterministic (employee ID) order.
func (o *Orchestrator) computeAll(ctx context.Context, inputs []payroll.PeriodInput) ([]*payroll.Record, []EmployeeFailure) {
	type outcome struct {
		record  *payroll.Record
		failure *EmployeeFailure
	}

	outcomes := make([]outcome, len(inputs))
	var wg sync.WaitGroup
	for i, input := range inputs {
		wg.Add(1)
		go func(i int, input payroll.PeriodInput) {
			defer wg.Done()
			rec, err := o.computeOne(ctx, input)
			if err != nil {
				outcomes[i] = outcome{failure: &EmployeeFailure{
					EmployeeID: input.EmployeeID,
					Reason:     err.Error(),
				}}
				return
			}
			outcomes[i] = outcome{record: rec}
		}(i, input)
	}
	wg.Wait()

	var records []*payroll.Record
	var failures []EmployeeFailure
	for _, out := range outcomes {
		if out.failure != nil {
			failures = append(failures, *out.failure)
			continue
		}
		records = append(records, out.record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].EmployeeID < records[j].EmployeeID })
	sort.Slice(failures, func(i, j int) bool { return failures[i].EmployeeID < failures[j].EmployeeID })
	return records, failures
}

// validateInputs rejects input sets that cannot form one run: the same
// employee twice (each copy would withhold the full remaining-to-cap
// amount against the same YTD), or period dates that disagree with the
// run's.
func validateInputs(inputs []payroll.PeriodInput, start, end, payDate time.Time) error {
	seen := make(map[employee.ID]struct{}, len(inputs))
	for _, in := range inputs {
		if _, dup := seen[in.EmployeeID]; dup {
			return fmt.Errorf("%w: employee %s submitted twice in one run",
				payroll.ErrInvalidPayrollInput, in.EmployeeID)
		}
		seen[in.EmployeeID] = struct{}{}
		if !in.PeriodStart.Equal(start) || !in.PeriodEnd.Equal(end) || !in.PayDate.Equal(payDate) {
			return fmt.Errorf("%w: employee %s has period dates that disagree with the run",
				payroll.ErrInvalidPayrollInput, in.EmployeeID)
		}
	}
	return nil
}

// computeOne resolves profile, rules and YTD for one employee and runs
// the calculator.
func (o *Orchestrator) computeOne(ctx context.Context, input payroll.PeriodInput) (*payroll.Record, error) {
	profile, err := o.profiles.CurrentAt(ctx, input.EmployeeID, input.PayDate)
	if err != nil {
		return nil, err
	}

	rules, err := o.rules.Resolve(profile.Province, input.PayDate)
	if err != nil {
		return nil, err
	}

	// Committed totals strictly before this run's pay date: the run
	// being computed never sees itself.
	ytd, err := o.ledger.YTDBefore(ctx, input.EmployeeID, input.PayDate.Year(), input.PayDate)
	if err != nil {
		return nil, err
	}

	return payroll.ComputeRecord(profile, input, rules, ytd)
}

// =============================================================================
// RECOMPUTE
// =============================================================================

// Recompute re-runs the calculation for the named employees on a run
// that is not yet approved. Totals are re-derived from the resulting
// records; a failure-free run advances from draft to pending_approval.
func (o *Orchestrator) Recompute(ctx context.Context, runID payroll.RunID, version int, inputs []payroll.PeriodInput) (*Run, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no employees named to recompute", payroll.ErrInvalidPayrollInput)
	}

	unlock := o.lockRun(runID)
	defer unlock()

	run, err := o.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != StatusDraft && run.Status != StatusPendingApproval {
		return nil, &TransitionError{RunID: runID, From: run.Status, To: StatusDraft}
	}
	if err := validateInputs(inputs, run.PeriodStart, run.PeriodEnd, run.PayDate); err != nil {
		return nil, err
	}

	records, failures := o.computeAll(ctx, inputs)

	// Merge: recomputed employees replace their previous record and
	// clear their previous failure.
	for _, rec := range records {
		run.Failures = removeFailure(run.Failures, rec.EmployeeID)
		if existing := run.Record(rec.EmployeeID); existing != nil {
			*existing = *rec
			continue
		}
		run.Records = append(run.Records, rec)
	}
	for _, f := range failures {
		run.Failures = removeFailure(run.Failures, f.EmployeeID)
		run.Failures = append(run.Failures, f)
	}
	sort.Slice(run.Records, func(i, j int) bool { return run.Records[i].EmployeeID < run.Records[j].EmployeeID })
	sort.Slice(run.Failures, func(i, j int) bool { return run.Failures[i].EmployeeID < run.Failures[j].EmployeeID })

	run.Totals = sumTotals(run.Records)
	run.Status = StatusPendingApproval
	if len(run.Failures) > 0 {
		run.Status = StatusDraft
	}

	if err := o.runs.SaveRun(ctx, run, version); err != nil {
		return nil, err
	}
	return run, nil
}

func removeFailure(failures []EmployeeFailure, id employee.ID) []EmployeeFailure {
	out := failures[:0]
	for _, f := range failures {
		if f.EmployeeID != id {
			out = append(out, f)
		}
	}
	return out
}

// =============================================================================
// APPROVE / MARK PAID
// =============================================================================

// Approve commits the run to the ledger and advances it to approved.
// Blocked while failures remain; the version CAS rejects stale callers.
// The run lock keeps the commit and the save atomic with respect to
// Recompute, so the ledger never holds entries for records the approved
// run no longer carries.
func (o *Orchestrator) Approve(ctx context.Context, runID payroll.RunID, version int) (*Run, error) {
	unlock := o.lockRun(runID)
	defer unlock()

	run, err := o.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Version != version {
		return nil, fmt.Errorf("%w: run %s is at version %d, not %d",
			ErrConcurrentModification, runID, run.Version, version)
	}
	if len(run.Failures) > 0 {
		return nil, fmt.Errorf("%w: run %s has %d", ErrRunHasFailures, runID, len(run.Failures))
	}
	if !run.Status.CanAdvanceTo(StatusApproved) {
		return nil, &TransitionError{RunID: runID, From: run.Status, To: StatusApproved}
	}

	entries := make([]ledger.Entry, 0, len(run.Records))
	for _, rec := range run.Records {
		entries = append(entries, ledger.EntryFromRecord(run.ID, rec))
	}
	if err := o.ledger.Commit(ctx, run.ID, entries); err != nil {
		return nil, err
	}

	run.Status = StatusApproved
	run.ApprovedAt = o.now().UTC()
	if err := o.runs.SaveRun(ctx, run, version); err != nil {
		return nil, err
	}
	return run, nil
}

// MarkPaid records that the approved run's payments went out.
func (o *Orchestrator) MarkPaid(ctx context.Context, runID payroll.RunID, version int) (*Run, error) {
	unlock := o.lockRun(runID)
	defer unlock()

	run, err := o.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Version != version {
		return nil, fmt.Errorf("%w: run %s is at version %d, not %d",
			ErrConcurrentModification, runID, run.Version, version)
	}
	if !run.Status.CanAdvanceTo(StatusPaid) {
		return nil, &TransitionError{RunID: runID, From: run.Status, To: StatusPaid}
	}

	run.Status = StatusPaid
	run.PaidAt = o.now().UTC()
	if err := o.runs.SaveRun(ctx, run, version); err != nil {
		return nil, err
	}
	return run, nil
}
