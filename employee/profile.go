/*
Package employee models compensation profiles with append-only history.

PURPOSE:
  A compensation profile is everything about an employee that payroll
  needs: how they are paid (salary XOR hourly), where they work, what
  tax credits they claim, whether they are exempt from CPP/EI, and what
  recurring deductions they carry.

KEY CONCEPTS IN THIS FILE (profile.go):
  - Compensation: a closed variant - salaried or hourly, never both
  - Profile: one effective-dated version of an employee's compensation
  - RecurringDeduction: per-period amounts (RRSP, union dues, ...)

APPEND-ONLY HISTORY:
  Compensation changes never edit a profile in place. Each adjustment
  appends a new effective-dated version; "current" is whichever version's
  effective range contains the pay date. This is what keeps a paystub
  from two years ago recomputable with the compensation that applied then.

SEE ALSO:
  - store.go: ProfileStore interface (CurrentAt range resolution)
*/
package employee

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/jurisdiction"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ID string

// =============================================================================
// PAY FREQUENCY
// =============================================================================

type PayFrequency string

const (
	Weekly      PayFrequency = "weekly"
	Biweekly    PayFrequency = "biweekly"
	SemiMonthly PayFrequency = "semimonthly"
	Monthly     PayFrequency = "monthly"
)

// PeriodsPerYear returns the number of pay periods in a calendar year,
// or 0 for an unrecognized frequency.
func (f PayFrequency) PeriodsPerYear() int {
	switch f {
	case Weekly:
		return 52
	case Biweekly:
		return 26
	case SemiMonthly:
		return 24
	case Monthly:
		return 12
	default:
		return 0
	}
}

func (f PayFrequency) Valid() bool { return f.PeriodsPerYear() > 0 }

// =============================================================================
// COMPENSATION - Closed variant: salaried XOR hourly
// =============================================================================

type CompensationKind string

const (
	Salaried CompensationKind = "salary"
	Hourly   CompensationKind = "hourly"
)

// Compensation is how the employee is paid. Exactly one of AnnualSalary
// or HourlyRate is set, matching Kind; both-set is a data entry error
// upstream and is rejected, never reconciled by guessing.
type Compensation struct {
	Kind         CompensationKind
	AnnualSalary decimal.Decimal // Salaried only
	HourlyRate   decimal.Decimal // Hourly only
}

func NewSalaried(annual decimal.Decimal) Compensation {
	return Compensation{Kind: Salaried, AnnualSalary: annual}
}

func NewHourly(rate decimal.Decimal) Compensation {
	return Compensation{Kind: Hourly, HourlyRate: rate}
}

func (c Compensation) validate() error {
	switch c.Kind {
	case Salaried:
		if !c.AnnualSalary.IsPositive() {
			return fmt.Errorf("%w: salaried compensation requires a positive annual salary", ErrInvalidProfile)
		}
		if !c.HourlyRate.IsZero() {
			return fmt.Errorf("%w: salaried compensation must not set an hourly rate", ErrInvalidProfile)
		}
	case Hourly:
		if !c.HourlyRate.IsPositive() {
			return fmt.Errorf("%w: hourly compensation requires a positive hourly rate", ErrInvalidProfile)
		}
		if !c.AnnualSalary.IsZero() {
			return fmt.Errorf("%w: hourly compensation must not set an annual salary", ErrInvalidProfile)
		}
	default:
		return fmt.Errorf("%w: unknown compensation kind %q", ErrInvalidProfile, c.Kind)
	}
	return nil
}

// =============================================================================
// RECURRING DEDUCTIONS
// =============================================================================

type DeductionKind string

const (
	DeductionRRSP      DeductionKind = "rrsp"
	DeductionUnionDues DeductionKind = "union_dues"
	DeductionOther     DeductionKind = "other"
)

// RecurringDeduction is a fixed per-period deduction on the profile.
// ReducesTaxable marks pre-tax deductions: RRSP and union dues reduce
// taxable income, garnishments and most others do not.
type RecurringDeduction struct {
	Kind           DeductionKind
	Amount         decimal.Decimal
	ReducesTaxable bool
}

func NewRRSP(amount decimal.Decimal) RecurringDeduction {
	return RecurringDeduction{Kind: DeductionRRSP, Amount: amount, ReducesTaxable: true}
}

func NewUnionDues(amount decimal.Decimal) RecurringDeduction {
	return RecurringDeduction{Kind: DeductionUnionDues, Amount: amount, ReducesTaxable: true}
}

// =============================================================================
// PROFILE - One effective-dated compensation version
// =============================================================================

type Profile struct {
	EmployeeID ID
	Name       string
	Province   jurisdiction.Province
	Frequency  PayFrequency

	Compensation Compensation

	// Claim amounts for withholding tax. Zero means "use the rule set's
	// basic personal amount".
	FederalClaim    decimal.Decimal
	ProvincialClaim decimal.Decimal

	CPPExempt bool
	EIExempt  bool

	Deductions []RecurringDeduction

	// Vacation accrual rate. The statutory minimum from the rule set
	// applies when this is lower (or zero).
	VacationRate decimal.Decimal

	// Effective range of this version. Zero EffectiveTo = still current.
	EffectiveFrom time.Time
	EffectiveTo   time.Time
}

// ActiveAt reports whether this version is in effect on the given date.
func (p Profile) ActiveAt(date time.Time) bool {
	if date.Before(p.EffectiveFrom) {
		return false
	}
	if p.EffectiveTo.IsZero() {
		return true
	}
	return !date.After(p.EffectiveTo)
}

// Validate checks the profile for structural errors before it is used
// in a calculation or persisted.
func (p Profile) Validate() error {
	if p.EmployeeID == "" {
		return fmt.Errorf("%w: missing employee ID", ErrInvalidProfile)
	}
	if !p.Province.Valid() {
		return fmt.Errorf("%w: invalid province %q", ErrInvalidProfile, p.Province)
	}
	if !p.Frequency.Valid() {
		return fmt.Errorf("%w: invalid pay frequency %q", ErrInvalidProfile, p.Frequency)
	}
	if err := p.Compensation.validate(); err != nil {
		return err
	}
	if p.FederalClaim.IsNegative() || p.ProvincialClaim.IsNegative() {
		return fmt.Errorf("%w: negative claim amount", ErrInvalidProfile)
	}
	if p.VacationRate.IsNegative() {
		return fmt.Errorf("%w: negative vacation rate", ErrInvalidProfile)
	}
	for _, ded := range p.Deductions {
		if ded.Amount.IsNegative() {
			return fmt.Errorf("%w: negative recurring deduction (%s)", ErrInvalidProfile, ded.Kind)
		}
	}
	if p.EffectiveFrom.IsZero() {
		return fmt.Errorf("%w: missing effective-from date", ErrInvalidProfile)
	}
	if !p.EffectiveTo.IsZero() && p.EffectiveTo.Before(p.EffectiveFrom) {
		return fmt.Errorf("%w: effective-to before effective-from", ErrInvalidProfile)
	}
	return nil
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidProfile is returned for structurally invalid profiles
	// (both compensation kinds set, missing fields, negative amounts).
	ErrInvalidProfile = errors.New("invalid compensation profile")

	// ErrProfileNotFound is returned when no profile version covers the
	// requested employee and date.
	ErrProfileNotFound = errors.New("compensation profile not found")
)

// ProfileNotFoundError carries the lookup that failed.
type ProfileNotFoundError struct {
	EmployeeID ID
	AsOf       time.Time
}

func (e *ProfileNotFoundError) Error() string {
	return fmt.Sprintf("no compensation profile for %s effective %s",
		e.EmployeeID, e.AsOf.Format("2006-01-02"))
}

func (e *ProfileNotFoundError) Unwrap() error { return ErrProfileNotFound }
