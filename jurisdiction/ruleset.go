/*
Package jurisdiction provides the statutory rule tables for payroll calculation.

PURPOSE:
  Every deduction a Canadian paycheck carries - CPP, CPP2, EI, federal and
  provincial income tax - is governed by parameters that change by province
  and by year. This package models those parameters as immutable, dated
  RuleSets and resolves the correct one for a given province and pay date.

KEY CONCEPTS IN THIS FILE (ruleset.go):
  - RuleSet: the complete statutory parameters for one province over one
    effective date range
  - TaxBracket: one rung of a progressive tax ladder
  - CPPRules / CPP2Rules / EIRules: contribution rates and annual caps

DESIGN PRINCIPLES:
  1. Immutability: a published RuleSet is never edited. Corrections are
     published as new dated records so historical payroll stays reproducible.
  2. Precision: all rates and thresholds are decimal.Decimal.
  3. No guessing: resolution fails loudly when no rule set covers a date.
     A guessed tax table produces a legally incorrect paycheck.

SEE ALSO:
  - resolver.go: Table.Resolve / Table.Publish
  - loader.go: YAML rule-table documents
  - published.go: the shipped federal/provincial tables
*/
package jurisdiction

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PROVINCE - Province/territory of employment
// =============================================================================

type Province string

const (
	Alberta              Province = "AB"
	BritishColumbia      Province = "BC"
	Manitoba             Province = "MB"
	NewBrunswick         Province = "NB"
	NewfoundlandLabrador Province = "NL"
	NovaScotia           Province = "NS"
	NorthwestTerritories Province = "NT"
	Nunavut              Province = "NU"
	Ontario              Province = "ON"
	PrinceEdwardIsland   Province = "PE"
	Quebec               Province = "QC"
	Saskatchewan         Province = "SK"
	Yukon                Province = "YT"
)

// Valid reports whether p is a recognized province/territory code.
func (p Province) Valid() bool {
	switch p {
	case Alberta, BritishColumbia, Manitoba, NewBrunswick, NewfoundlandLabrador,
		NovaScotia, NorthwestTerritories, Nunavut, Ontario, PrinceEdwardIsland,
		Quebec, Saskatchewan, Yukon:
		return true
	}
	return false
}

// =============================================================================
// TAX BRACKETS - Progressive rate ladder
// =============================================================================

// TaxBracket is one rung of a progressive tax ladder.
// UpTo is the inclusive upper bound of the bracket; nil means no ceiling
// (the top bracket). Brackets must be ordered ascending and non-overlapping.
type TaxBracket struct {
	UpTo *decimal.Decimal
	Rate decimal.Decimal
}

// TaxOn computes tax on an annual taxable income using the bracket ladder.
// Returns the unrounded total; callers round once at the period level.
func TaxOn(brackets []TaxBracket, income decimal.Decimal) decimal.Decimal {
	tax := decimal.Zero
	if !income.IsPositive() {
		return tax
	}
	lower := decimal.Zero
	for _, b := range brackets {
		if b.UpTo == nil || income.LessThanOrEqual(*b.UpTo) {
			// Income tops out inside this bracket.
			return tax.Add(income.Sub(lower).Mul(b.Rate))
		}
		tax = tax.Add(b.UpTo.Sub(lower).Mul(b.Rate))
		lower = *b.UpTo
	}
	return tax
}

// validateBrackets checks ordering and rate sanity.
func validateBrackets(brackets []TaxBracket) error {
	if len(brackets) == 0 {
		return fmt.Errorf("no brackets defined")
	}
	lower := decimal.Zero
	for i, b := range brackets {
		if b.Rate.IsNegative() {
			return fmt.Errorf("bracket %d: negative rate", i)
		}
		if b.UpTo == nil {
			if i != len(brackets)-1 {
				return fmt.Errorf("bracket %d: open-ended bracket must be last", i)
			}
			continue
		}
		if !b.UpTo.GreaterThan(lower) {
			return fmt.Errorf("bracket %d: bounds not strictly ascending", i)
		}
		lower = *b.UpTo
	}
	if brackets[len(brackets)-1].UpTo != nil {
		return fmt.Errorf("last bracket must be open-ended")
	}
	return nil
}

// =============================================================================
// CONTRIBUTION RULES - CPP, CPP2, EI
// =============================================================================

// CPPRules are the base Canada Pension Plan parameters for one year.
type CPPRules struct {
	Rate           decimal.Decimal // employee rate (employer matches 1:1)
	BasicExemption decimal.Decimal // annual basic exemption
	MaxPensionable decimal.Decimal // YMPE: year's maximum pensionable earnings
	MaxEmployee    decimal.Decimal // annual employee contribution cap
}

// CPP2Rules are the second-tier CPP parameters. CPP2 applies to pensionable
// earnings between the YMPE and the YAMPE.
type CPP2Rules struct {
	Rate           decimal.Decimal
	MaxPensionable decimal.Decimal // YAMPE: year's additional maximum pensionable earnings
	MaxEmployee    decimal.Decimal
}

// EIRules are the Employment Insurance premium parameters for one year.
type EIRules struct {
	EmployeeRate       decimal.Decimal
	MaxInsurable       decimal.Decimal // MIE: maximum insurable earnings
	MaxEmployee        decimal.Decimal // annual employee premium cap
	EmployerMultiplier decimal.Decimal // employer pays employee premium x this (typically 1.4)
}

// =============================================================================
// STATUTORY HOLIDAYS
// =============================================================================

type Holiday struct {
	Name string
	Date time.Time
}

// =============================================================================
// RULE SET - Complete statutory parameters for (province, date range)
// =============================================================================

// RuleSet holds every statutory parameter the calculator needs for one
// province over one effective date range. Immutable once published.
type RuleSet struct {
	Province      Province
	EffectiveFrom time.Time
	EffectiveTo   time.Time // zero = open-ended

	CPP  CPPRules
	CPP2 CPP2Rules
	EI   EIRules

	FederalBrackets    []TaxBracket
	ProvincialBrackets []TaxBracket
	FederalBPA         decimal.Decimal // federal basic personal amount
	ProvincialBPA      decimal.Decimal

	OvertimeMultiplier decimal.Decimal // 1.5 unless the jurisdiction overrides
	HolidayPremium     decimal.Decimal // premium rate for hours worked on a stat holiday
	VacationMinRate    decimal.Decimal // statutory vacation pay minimum (e.g. 0.04)

	Holidays []Holiday
}

// ID returns the stable identifier recorded on every PayrollRecord so a
// historical paystub can name the exact table it was computed with.
func (rs *RuleSet) ID() string {
	return fmt.Sprintf("%s-%s", rs.Province, rs.EffectiveFrom.Format("2006-01-02"))
}

// Contains reports whether the effective range covers the given date.
// The range is inclusive on both ends; a zero EffectiveTo is open-ended.
func (rs *RuleSet) Contains(date time.Time) bool {
	if date.Before(rs.EffectiveFrom) {
		return false
	}
	if rs.EffectiveTo.IsZero() {
		return true
	}
	return !date.After(rs.EffectiveTo)
}

// Overlaps reports whether two rule sets' effective ranges intersect.
func (rs *RuleSet) Overlaps(other *RuleSet) bool {
	if !rs.EffectiveTo.IsZero() && other.EffectiveFrom.After(rs.EffectiveTo) {
		return false
	}
	if !other.EffectiveTo.IsZero() && rs.EffectiveFrom.After(other.EffectiveTo) {
		return false
	}
	return true
}

// Validate checks internal consistency before publication.
func (rs *RuleSet) Validate() error {
	if !rs.Province.Valid() {
		return fmt.Errorf("invalid province %q", rs.Province)
	}
	if rs.EffectiveFrom.IsZero() {
		return fmt.Errorf("missing effective-from date")
	}
	if !rs.EffectiveTo.IsZero() && rs.EffectiveTo.Before(rs.EffectiveFrom) {
		return fmt.Errorf("effective-to before effective-from")
	}
	if err := validateBrackets(rs.FederalBrackets); err != nil {
		return fmt.Errorf("federal brackets: %w", err)
	}
	if err := validateBrackets(rs.ProvincialBrackets); err != nil {
		return fmt.Errorf("provincial brackets: %w", err)
	}
	if rs.CPP.Rate.IsNegative() || rs.EI.EmployeeRate.IsNegative() {
		return fmt.Errorf("negative contribution rate")
	}
	if rs.EI.EmployerMultiplier.IsZero() {
		return fmt.Errorf("missing EI employer multiplier")
	}
	return nil
}
