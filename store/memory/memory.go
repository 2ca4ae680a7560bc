/*
Package memory provides in-memory store implementations.

PURPOSE:
  Mutex-guarded implementations of employee.ProfileStore, ledger.Store
  and payrun.RunStore for tests and local development. Semantics match
  the sqlite store: append-only ledger, CAS on run versions, effective
  date resolution for profiles.

SEE ALSO:
  - store/sqlite: the durable implementation
*/
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/payroll-engine/employee"
	"github.com/warp/payroll-engine/ledger"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/payrun"
)

// Compile-time interface checks.
var (
	_ employee.ProfileStore = (*ProfileStore)(nil)
	_ ledger.Store          = (*LedgerStore)(nil)
	_ payrun.RunStore       = (*RunStore)(nil)
)

// =============================================================================
// PROFILE STORE
// =============================================================================

type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[employee.ID][]employee.Profile // sorted by EffectiveFrom
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: make(map[employee.ID][]employee.Profile)}
}

func (s *ProfileStore) Append(_ context.Context, p employee.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	versions := s.profiles[p.EmployeeID]
	// Close the previous open-ended version the day before the new one
	// takes effect.
	if n := len(versions); n > 0 {
		prev := &versions[n-1]
		if !prev.EffectiveFrom.Before(p.EffectiveFrom) {
			return fmt.Errorf("%w: new version effective %s does not follow %s",
				employee.ErrInvalidProfile,
				p.EffectiveFrom.Format("2006-01-02"), prev.EffectiveFrom.Format("2006-01-02"))
		}
		if prev.EffectiveTo.IsZero() {
			prev.EffectiveTo = p.EffectiveFrom.AddDate(0, 0, -1)
		}
	}

	s.profiles[p.EmployeeID] = append(versions, p)
	return nil
}

func (s *ProfileStore) CurrentAt(_ context.Context, id employee.ID, date time.Time) (employee.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.profiles[id] {
		if p.ActiveAt(date) {
			return p, nil
		}
	}
	return employee.Profile{}, &employee.ProfileNotFoundError{EmployeeID: id, AsOf: date}
}

func (s *ProfileStore) History(_ context.Context, id employee.ID) ([]employee.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]employee.Profile, len(s.profiles[id]))
	copy(out, s.profiles[id])
	return out, nil
}

func (s *ProfileStore) ListIDs(_ context.Context) ([]employee.ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]employee.ID, 0, len(s.profiles))
	for id := range s.profiles {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// =============================================================================
// LEDGER STORE
// =============================================================================

type LedgerStore struct {
	mu      sync.RWMutex
	applied map[payroll.RunID]bool
	entries []ledger.Entry
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{applied: make(map[payroll.RunID]bool)}
}

func (s *LedgerStore) RunApplied(_ context.Context, runID payroll.RunID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.applied[runID], nil
}

func (s *LedgerStore) AppendRun(_ context.Context, runID payroll.RunID, entries []ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check under the write lock: two commits of the same run racing
	// past RunApplied must still apply exactly once.
	if s.applied[runID] {
		return nil
	}
	s.applied[runID] = true
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *LedgerStore) EntriesBefore(_ context.Context, id employee.ID, year int, asOf time.Time) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ledger.Entry
	for _, e := range s.entries {
		if e.EmployeeID == id && e.Year == year && e.PayDate.Before(asOf) {
			out = append(out, e)
		}
	}
	return out, nil
}

// =============================================================================
// RUN STORE
// =============================================================================

type RunStore struct {
	mu   sync.RWMutex
	runs map[payroll.RunID]*payrun.Run
}

func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[payroll.RunID]*payrun.Run)}
}

func (s *RunStore) SaveRun(_ context.Context, run *payrun.Run, expected int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.runs[run.ID]
	switch {
	case !ok && expected != 0:
		return &payrun.RunNotFoundError{RunID: run.ID}
	case ok && existing.Version != expected:
		return fmt.Errorf("%w: run %s is at version %d, not %d",
			payrun.ErrConcurrentModification, run.ID, existing.Version, expected)
	}

	run.Version = expected + 1
	s.runs[run.ID] = cloneRun(run)
	return nil
}

func (s *RunStore) GetRun(_ context.Context, id payroll.RunID) (*payrun.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, &payrun.RunNotFoundError{RunID: id}
	}
	return cloneRun(run), nil
}

func (s *RunStore) ListRuns(_ context.Context) ([]*payrun.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*payrun.Run, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, cloneRun(run))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PayDate.After(out[j].PayDate) })
	return out, nil
}

// cloneRun copies the run and its slices so callers cannot mutate the
// stored state without going through SaveRun.
func cloneRun(run *payrun.Run) *payrun.Run {
	clone := *run
	clone.Records = make([]*payroll.Record, len(run.Records))
	for i, rec := range run.Records {
		r := *rec
		clone.Records[i] = &r
	}
	clone.Failures = make([]payrun.EmployeeFailure, len(run.Failures))
	copy(clone.Failures, run.Failures)
	return &clone
}
