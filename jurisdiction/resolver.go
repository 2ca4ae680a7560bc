/*
resolver.go - Rule set publication and resolution

PURPOSE:
  The Table maps (province, pay date) to the unique RuleSet in effect.
  Resolution is the first step of every employee's payroll computation;
  a miss is fatal for that employee's record, never silently defaulted.

PUBLICATION CONTRACT:
  - Publish is append-only. A correction is a NEW dated record; the old
    one keeps serving historical runs (paystub reproducibility).
  - Overlapping effective ranges for the same province are rejected so
    that resolution is always unique.

CONCURRENCY:
  Published rule sets are immutable, so resolution is a read-only range
  scan under an RWMutex. Publishing takes the write lock.

SEE ALSO:
  - ruleset.go: RuleSet definition
  - published.go: the shipped tables
*/
package jurisdiction

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrRuleSetNotFound is returned when no published rule set covers the
	// requested province and date. Callers must surface this, not default.
	ErrRuleSetNotFound = errors.New("no rule set covers the requested date")

	// ErrOverlappingRuleSets is returned when publishing a rule set whose
	// effective range intersects an already-published one.
	ErrOverlappingRuleSets = errors.New("rule set overlaps a published rule set")
)

// RuleSetNotFoundError carries the lookup that failed.
type RuleSetNotFoundError struct {
	Province Province
	PayDate  time.Time
}

func (e *RuleSetNotFoundError) Error() string {
	return fmt.Sprintf("no rule set for %s covering %s", e.Province, e.PayDate.Format("2006-01-02"))
}

func (e *RuleSetNotFoundError) Unwrap() error { return ErrRuleSetNotFound }

// =============================================================================
// TABLE - Published rule sets, resolvable by province + date
// =============================================================================

type Table struct {
	mu   sync.RWMutex
	sets map[Province][]*RuleSet // sorted by EffectiveFrom
}

func NewTable() *Table {
	return &Table{sets: make(map[Province][]*RuleSet)}
}

// Publish adds a rule set to the table. Append-only: published sets are
// never modified or removed. Returns ErrOverlappingRuleSets if the new
// set's effective range intersects an existing one for the same province.
func (t *Table) Publish(rs *RuleSet) error {
	if err := rs.Validate(); err != nil {
		return fmt.Errorf("invalid rule set: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, existing := range t.sets[rs.Province] {
		if existing.Overlaps(rs) {
			return fmt.Errorf("%w: %s conflicts with %s", ErrOverlappingRuleSets, rs.ID(), existing.ID())
		}
	}

	t.sets[rs.Province] = append(t.sets[rs.Province], rs)
	sort.Slice(t.sets[rs.Province], func(i, j int) bool {
		return t.sets[rs.Province][i].EffectiveFrom.Before(t.sets[rs.Province][j].EffectiveFrom)
	})
	return nil
}

// Resolve returns the unique rule set whose effective range contains the
// pay date. Fails with RuleSetNotFoundError when none matches - e.g. a
// pay date beyond the last published year.
func (t *Table) Resolve(province Province, payDate time.Time) (*RuleSet, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, rs := range t.sets[province] {
		if rs.Contains(payDate) {
			return rs, nil
		}
	}
	return nil, &RuleSetNotFoundError{Province: province, PayDate: payDate}
}

// Get returns a published rule set by its ID, or nil if unknown.
// Used to re-resolve the exact table a historical record was computed with.
func (t *Table) Get(id string) *RuleSet {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, sets := range t.sets {
		for _, rs := range sets {
			if rs.ID() == id {
				return rs
			}
		}
	}
	return nil
}

// List returns all published rule sets for a province, oldest first.
func (t *Table) List(province Province) []*RuleSet {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*RuleSet, len(t.sets[province]))
	copy(out, t.sets[province])
	return out
}

// Provinces returns the provinces with at least one published rule set.
func (t *Table) Provinces() []Province {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Province, 0, len(t.sets))
	for p := range t.sets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
