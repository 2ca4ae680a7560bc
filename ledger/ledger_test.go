package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/employee"
	"github.com/warp/payroll-engine/ledger"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/memory"
)

func entry(runID payroll.RunID, id employee.ID, payDate time.Time, gross, cpp string) ledger.Entry {
	g := decimal.RequireFromString(gross)
	return ledger.Entry{
		RunID:       runID,
		EmployeeID:  id,
		Year:        payDate.Year(),
		PayDate:     payDate,
		Gross:       g,
		CPP:         decimal.RequireFromString(cpp),
		Pensionable: g,
		Insurable:   g,
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestLedger_CommitAccumulatesYTD(t *testing.T) {
	ctx := context.Background()
	led := ledger.New(memory.NewLedgerStore())

	// GIVEN two committed runs for the same employee
	require.NoError(t, led.Commit(ctx, "run-1", []ledger.Entry{
		entry("run-1", "emp-001", date(2025, time.January, 10), "2400.00", "134.79"),
	}))
	require.NoError(t, led.Commit(ctx, "run-2", []ledger.Entry{
		entry("run-2", "emp-001", date(2025, time.January, 24), "2400.00", "134.79"),
	}))

	// WHEN reading YTD as of the next pay date
	ytd, err := led.YTDBefore(ctx, "emp-001", 2025, date(2025, time.February, 7))
	require.NoError(t, err)

	// THEN both runs are summed
	assert.Equal(t, "4800.00", ytd.Gross.StringFixed(2))
	assert.Equal(t, "269.58", ytd.CPP.StringFixed(2))
	assert.Equal(t, "4800.00", ytd.Pensionable.StringFixed(2))
}

func TestLedger_CommitIsIdempotentPerRun(t *testing.T) {
	ctx := context.Background()
	led := ledger.New(memory.NewLedgerStore())

	entries := []ledger.Entry{
		entry("run-1", "emp-001", date(2025, time.January, 10), "2400.00", "134.79"),
	}
	require.NoError(t, led.Commit(ctx, "run-1", entries))

	// A second commit of the same run is a successful no-op.
	require.NoError(t, led.Commit(ctx, "run-1", entries))

	ytd, err := led.YTDBefore(ctx, "emp-001", 2025, date(2025, time.December, 31))
	require.NoError(t, err)
	assert.Equal(t, "2400.00", ytd.Gross.StringFixed(2), "double commit must not double count")
}

func TestLedger_YTDBeforeIsStrictlyBefore(t *testing.T) {
	ctx := context.Background()
	led := ledger.New(memory.NewLedgerStore())

	payDate := date(2025, time.January, 10)
	require.NoError(t, led.Commit(ctx, "run-1", []ledger.Entry{
		entry("run-1", "emp-001", payDate, "2400.00", "134.79"),
	}))

	// The run's own pay date excludes the run itself.
	ytd, err := led.YTDBefore(ctx, "emp-001", 2025, payDate)
	require.NoError(t, err)
	assert.True(t, ytd.Gross.IsZero())

	// The day after includes it.
	ytd, err = led.YTDBefore(ctx, "emp-001", 2025, payDate.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, "2400.00", ytd.Gross.StringFixed(2))
}

func TestLedger_YTDScopedByYearAndEmployee(t *testing.T) {
	ctx := context.Background()
	led := ledger.New(memory.NewLedgerStore())

	require.NoError(t, led.Commit(ctx, "run-2024", []ledger.Entry{
		entry("run-2024", "emp-001", date(2024, time.December, 27), "2400.00", "134.79"),
	}))
	require.NoError(t, led.Commit(ctx, "run-2025", []ledger.Entry{
		entry("run-2025", "emp-001", date(2025, time.January, 10), "2400.00", "134.79"),
		entry("run-2025", "emp-002", date(2025, time.January, 10), "1800.00", "99.12"),
	}))

	// 2025 totals exclude the December 2024 run and the other employee.
	ytd, err := led.YTDBefore(ctx, "emp-001", 2025, date(2025, time.June, 1))
	require.NoError(t, err)
	assert.Equal(t, "2400.00", ytd.Gross.StringFixed(2))
}

func TestEntryFromRecord(t *testing.T) {
	rec := &payroll.Record{
		EmployeeID: "emp-001",
		PayDate:    date(2025, time.June, 13),
		Earnings:   payroll.Earnings{Total: decimal.RequireFromString("2400.00")},
		Deductions: payroll.Deductions{
			CPP:        decimal.RequireFromString("134.79"),
			EI:         decimal.RequireFromString("39.36"),
			FederalTax: decimal.RequireFromString("266.95"),
		},
		NetPay: decimal.RequireFromString("1862.46"),
		YTDBefore: payroll.YTD{
			Pensionable: decimal.RequireFromString("10000"),
			Insurable:   decimal.RequireFromString("10000"),
		},
		YTDAfter: payroll.YTD{
			Pensionable: decimal.RequireFromString("12400"),
			Insurable:   decimal.RequireFromString("12400"),
		},
	}

	e := ledger.EntryFromRecord("run-1", rec)
	assert.Equal(t, payroll.RunID("run-1"), e.RunID)
	assert.Equal(t, 2025, e.Year)
	assert.Equal(t, "2400.00", e.Gross.StringFixed(2))
	// Pensionable/insurable carry this period's delta, not the total.
	assert.Equal(t, "2400.00", e.Pensionable.StringFixed(2))
	assert.Equal(t, "2400.00", e.Insurable.StringFixed(2))
}
