/*
Package payroll computes per-employee payroll records.

PURPOSE:
  The calculator is the heart of the engine: given a compensation
  profile, a period's inputs, the governing rule set and the employee's
  year-to-date totals, it produces a complete PayrollRecord - gross
  earnings, every statutory and voluntary deduction, employer costs and
  net pay.

KEY CONCEPTS IN THIS FILE (types.go):
  - PeriodInput: the per-period facts (hours, bonus, garnishments)
  - Record: the full computed result, itemized per component
  - YTD: running year-to-date totals, the calculator's only memory

DESIGN PRINCIPLES:
  1. Purity: ComputeRecord does no I/O and reads no clock. Same inputs,
     same record, byte for byte.
  2. Precision: decimal.Decimal everywhere. Components are rounded to
     cents when computed, so net = gross - deductions holds exactly.
  3. Caps are YTD-aware: the period that crosses an annual maximum
     withholds exactly the remainder, never a dollar more.

SEE ALSO:
  - calculator.go: ComputeRecord
  - errors.go: ErrInvalidPayrollInput
*/
package payroll

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/employee"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// RunID identifies a payroll run. Defined here so the ledger can key
// entries by run without depending on the orchestrator.
type RunID string

// =============================================================================
// PERIOD INPUT - Per-period facts submitted for one employee
// =============================================================================

type PeriodInput struct {
	EmployeeID  ID
	PeriodStart time.Time
	PeriodEnd   time.Time
	PayDate     time.Time

	// Hourly employees: hours at the regular rate. Salaried employees
	// leave this zero; their regular earnings come from the salary.
	RegularHours decimal.Decimal

	// Hours beyond the overtime threshold, paid at the rule set's
	// overtime multiplier.
	OvertimeHours decimal.Decimal

	// Hours worked on a statutory holiday, paid at the holiday premium.
	HolidayHours decimal.Decimal

	Bonus          decimal.Decimal
	VacationPayout decimal.Decimal

	// Court-ordered garnishment for this period. Never pre-tax.
	Garnishment decimal.Decimal
}

// ID aliases employee.ID for input construction convenience.
type ID = employee.ID

// =============================================================================
// YTD - Year-to-date totals per tracked field
// =============================================================================

// YTD is the calculator's only memory of prior periods. Pensionable and
// Insurable track cumulative earnings (uncapped) so the CPP2 band and
// the EI insurable cap resolve exactly at year boundaries.
type YTD struct {
	Gross         decimal.Decimal
	CPP           decimal.Decimal
	CPP2          decimal.Decimal
	EI            decimal.Decimal
	FederalTax    decimal.Decimal
	ProvincialTax decimal.Decimal
	Net           decimal.Decimal
	Pensionable   decimal.Decimal
	Insurable     decimal.Decimal
}

// =============================================================================
// RECORD COMPONENTS
// =============================================================================

type Earnings struct {
	Regular        decimal.Decimal
	Overtime       decimal.Decimal
	HolidayPremium decimal.Decimal
	Bonus          decimal.Decimal
	VacationPayout decimal.Decimal
	Total          decimal.Decimal
}

type Deductions struct {
	CPP           decimal.Decimal
	CPP2          decimal.Decimal
	EI            decimal.Decimal
	FederalTax    decimal.Decimal
	ProvincialTax decimal.Decimal
	RRSP          decimal.Decimal
	UnionDues     decimal.Decimal
	Other         decimal.Decimal
	Garnishment   decimal.Decimal
	Total         decimal.Decimal
}

// EmployerCosts are amounts the employer owes beyond gross pay. They
// never reduce the employee's net.
type EmployerCosts struct {
	CPP             decimal.Decimal // matches employee contribution 1:1
	CPP2            decimal.Decimal
	EI              decimal.Decimal // employee premium x multiplier
	VacationAccrual decimal.Decimal
	Total           decimal.Decimal
}

// =============================================================================
// RECORD - One employee, one period, fully itemized
// =============================================================================

type Record struct {
	EmployeeID  employee.ID
	PeriodStart time.Time
	PeriodEnd   time.Time
	PayDate     time.Time

	// RuleSetID names the exact rule set this record was computed with,
	// for paystub reproducibility.
	RuleSetID string

	Earnings   Earnings
	Deductions Deductions
	Employer   EmployerCosts
	NetPay     decimal.Decimal

	YTDBefore YTD
	YTDAfter  YTD
}
