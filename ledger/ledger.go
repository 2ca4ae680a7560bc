/*
Package ledger accumulates committed payroll into year-to-date totals.

PURPOSE:
  The ledger is the system of record for what has actually been paid.
  Approved runs commit one entry per employee; YTDBefore sums those
  entries to seed the next run's calculation. Annual caps (CPP, CPP2,
  EI) are only as correct as this ledger, so commits are atomic and
  idempotent.

IDEMPOTENCY:
  Commit is keyed by run ID. Committing the same run twice is a
  successful no-op, which makes orchestrator retries safe: a retry after
  a lost response cannot double-count a paycheck.

SEE ALSO:
  - payroll: YTD, the shape this ledger accumulates into
  - store/memory, store/sqlite: Store implementations
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/employee"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// ENTRY - One employee's committed totals for one run
// =============================================================================

type Entry struct {
	RunID      payroll.RunID
	EmployeeID employee.ID
	Year       int
	PayDate    time.Time

	Gross         decimal.Decimal
	CPP           decimal.Decimal
	CPP2          decimal.Decimal
	EI            decimal.Decimal
	FederalTax    decimal.Decimal
	ProvincialTax decimal.Decimal
	Net           decimal.Decimal

	// Cumulative-cap inputs: this period's pensionable and insurable
	// earnings (zero for exempt employees).
	Pensionable decimal.Decimal
	Insurable   decimal.Decimal
}

// EntryFromRecord builds the ledger entry an approved record commits.
func EntryFromRecord(runID payroll.RunID, rec *payroll.Record) Entry {
	e := Entry{
		RunID:         runID,
		EmployeeID:    rec.EmployeeID,
		Year:          rec.PayDate.Year(),
		PayDate:       rec.PayDate,
		Gross:         rec.Earnings.Total,
		CPP:           rec.Deductions.CPP,
		CPP2:          rec.Deductions.CPP2,
		EI:            rec.Deductions.EI,
		FederalTax:    rec.Deductions.FederalTax,
		ProvincialTax: rec.Deductions.ProvincialTax,
		Net:           rec.NetPay,
		Pensionable:   rec.YTDAfter.Pensionable.Sub(rec.YTDBefore.Pensionable),
		Insurable:     rec.YTDAfter.Insurable.Sub(rec.YTDBefore.Insurable),
	}
	return e
}

// =============================================================================
// STORE - Persistence contract
// =============================================================================

// Store persists ledger entries. Implementations must make AppendRun
// atomic (all entries or none) and serialize concurrent commits.
type Store interface {
	// RunApplied reports whether the run has already been committed.
	RunApplied(ctx context.Context, runID payroll.RunID) (bool, error)

	// AppendRun records the run as applied and appends its entries,
	// atomically.
	AppendRun(ctx context.Context, runID payroll.RunID, entries []Entry) error

	// EntriesBefore returns the employee's committed entries for the
	// year with a pay date strictly before asOf.
	EntriesBefore(ctx context.Context, id employee.ID, year int, asOf time.Time) ([]Entry, error)
}

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	store Store
}

func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// Commit applies a run's entries to the ledger. Idempotent per run ID:
// an already-applied run returns nil without writing anything.
func (l *Ledger) Commit(ctx context.Context, runID payroll.RunID, entries []Entry) error {
	applied, err := l.store.RunApplied(ctx, runID)
	if err != nil {
		return err
	}
	if applied {
		return nil
	}
	return l.store.AppendRun(ctx, runID, entries)
}

// YTDBefore returns the employee's year-to-date totals from entries
// committed strictly before asOf. Passing a run's own pay date yields
// the totals that run's calculation must start from.
func (l *Ledger) YTDBefore(ctx context.Context, id employee.ID, year int, asOf time.Time) (payroll.YTD, error) {
	entries, err := l.store.EntriesBefore(ctx, id, year, asOf)
	if err != nil {
		return payroll.YTD{}, err
	}

	var ytd payroll.YTD
	for _, e := range entries {
		ytd.Gross = ytd.Gross.Add(e.Gross)
		ytd.CPP = ytd.CPP.Add(e.CPP)
		ytd.CPP2 = ytd.CPP2.Add(e.CPP2)
		ytd.EI = ytd.EI.Add(e.EI)
		ytd.FederalTax = ytd.FederalTax.Add(e.FederalTax)
		ytd.ProvincialTax = ytd.ProvincialTax.Add(e.ProvincialTax)
		ytd.Net = ytd.Net.Add(e.Net)
		ytd.Pensionable = ytd.Pensionable.Add(e.Pensionable)
		ytd.Insurable = ytd.Insurable.Add(e.Insurable)
	}
	return ytd, nil
}
