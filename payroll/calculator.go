/*
calculator.go - The period payroll computation

PURPOSE:
  ComputeRecord turns (profile, period input, rule set, YTD) into a
  complete PayrollRecord. Order of operations:

    1. Gross earnings (regular, overtime, holiday premium, bonus,
       vacation payout)
    2. CPP base contribution (exemption prorated per period, YMPE cap,
       annual employee max)
    3. CPP2 on the YMPE..YAMPE band
    4. EI premium (MIE cap, annual employee max)
    5. Federal and provincial withholding tax (annualize, subtract
       claim, bracket ladder, de-annualize)
    6. Recurring and per-period deductions
    7. Employer costs (CPP/CPP2 match, EI x multiplier, vacation accrual)
    8. Net pay and YTD rollforward

ROUNDING:
  Each money component is rounded to cents the moment it is computed.
  Totals are sums of rounded components, so NetPay = TotalGross -
  TotalDeductions holds exactly with no reconciliation step.

SEE ALSO:
  - types.go: Record, YTD
  - jurisdiction: TaxOn, RuleSet
*/
package payroll

import (
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/employee"
	"github.com/warp/payroll-engine/jurisdiction"
)

// standardHoursPerYear derives an effective hourly rate for salaried
// employees who log overtime or holiday hours (40 hours x 52 weeks).
var standardHoursPerYear = decimal.NewFromInt(2080)

// ComputeRecord computes one employee's payroll record for one period.
// Pure: no I/O, no clock. ytdBefore must cover the same calendar year
// as the pay date and exclude the run being computed.
func ComputeRecord(profile employee.Profile, input PeriodInput, rules *jurisdiction.RuleSet, ytdBefore YTD) (*Record, error) {
	if err := validateInput(profile, input, rules); err != nil {
		return nil, err
	}

	periods := decimal.NewFromInt(int64(profile.Frequency.PeriodsPerYear()))

	// ----- Step 1: gross earnings --------------------------------------------
	earnings := computeEarnings(profile, input, rules, periods)

	rec := &Record{
		EmployeeID:  profile.EmployeeID,
		PeriodStart: input.PeriodStart,
		PeriodEnd:   input.PeriodEnd,
		PayDate:     input.PayDate,
		RuleSetID:   rules.ID(),
		Earnings:    earnings,
		YTDBefore:   ytdBefore,
	}

	// Zero-hours hourly employee with no other earnings: an all-zero
	// record, not an error. YTD passes through unchanged. A garnishment
	// submitted for the period is a court-ordered amount that must be
	// withheld, so it cannot silently vanish with the rest of the record.
	if earnings.Total.IsZero() {
		if input.Garnishment.IsPositive() {
			return nil, invalidInput(profile.EmployeeID,
				"garnishment %s cannot be withheld from zero earnings",
				input.Garnishment.StringFixed(2))
		}
		rec.YTDAfter = ytdBefore
		return rec, nil
	}

	gross := earnings.Total

	// ----- Steps 2-3: CPP and CPP2 -------------------------------------------
	var ded Deductions
	var employer EmployerCosts
	if !profile.CPPExempt {
		ded.CPP = computeCPP(gross, rules.CPP, ytdBefore, periods)
		ded.CPP2 = computeCPP2(gross, rules.CPP, rules.CPP2, ytdBefore)
		employer.CPP = ded.CPP
		employer.CPP2 = ded.CPP2
	}

	// ----- Step 4: EI --------------------------------------------------------
	if !profile.EIExempt {
		ded.EI = computeEI(gross, rules.EI, ytdBefore)
		employer.EI = ded.EI.Mul(rules.EI.EmployerMultiplier).Round(2)
	}

	// ----- Step 6 (first half): recurring deductions, for the pre-tax total --
	var pretax decimal.Decimal
	for _, rd := range profile.Deductions {
		amount := rd.Amount.Round(2)
		if rd.ReducesTaxable {
			pretax = pretax.Add(amount)
		}
		switch rd.Kind {
		case employee.DeductionRRSP:
			ded.RRSP = ded.RRSP.Add(amount)
		case employee.DeductionUnionDues:
			ded.UnionDues = ded.UnionDues.Add(amount)
		default:
			ded.Other = ded.Other.Add(amount)
		}
	}
	ded.Garnishment = input.Garnishment.Round(2)

	// ----- Step 5: withholding tax -------------------------------------------
	taxable := gross.Sub(pretax)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	annualTaxable := taxable.Mul(periods)

	fedClaim := profile.FederalClaim
	if fedClaim.IsZero() {
		fedClaim = rules.FederalBPA
	}
	provClaim := profile.ProvincialClaim
	if provClaim.IsZero() {
		provClaim = rules.ProvincialBPA
	}

	ded.FederalTax = periodTax(rules.FederalBrackets, annualTaxable, fedClaim, periods)
	ded.ProvincialTax = periodTax(rules.ProvincialBrackets, annualTaxable, provClaim, periods)

	// ----- Step 7: employer vacation accrual ---------------------------------
	vacRate := decimal.Max(profile.VacationRate, rules.VacationMinRate)
	vacationable := gross.Sub(earnings.VacationPayout)
	employer.VacationAccrual = vacationable.Mul(vacRate).Round(2)
	employer.Total = employer.CPP.Add(employer.CPP2).Add(employer.EI).Add(employer.VacationAccrual)

	// ----- Step 8: net pay and YTD rollforward -------------------------------
	ded.Total = ded.CPP.Add(ded.CPP2).Add(ded.EI).
		Add(ded.FederalTax).Add(ded.ProvincialTax).
		Add(ded.RRSP).Add(ded.UnionDues).Add(ded.Other).Add(ded.Garnishment)

	net := gross.Sub(ded.Total)
	if net.IsNegative() {
		return nil, invalidInput(profile.EmployeeID,
			"deductions %s exceed gross %s", ded.Total.StringFixed(2), gross.StringFixed(2))
	}

	rec.Deductions = ded
	rec.Employer = employer
	rec.NetPay = net
	rec.YTDAfter = rollForward(ytdBefore, profile, gross, ded, net)
	return rec, nil
}

// =============================================================================
// EARNINGS
// =============================================================================

func computeEarnings(profile employee.Profile, input PeriodInput, rules *jurisdiction.RuleSet, periods decimal.Decimal) Earnings {
	var e Earnings

	// Effective hourly rate: the contract rate for hourly employees,
	// annual salary over standard hours for salaried ones.
	var hourly decimal.Decimal
	switch profile.Compensation.Kind {
	case employee.Salaried:
		e.Regular = profile.Compensation.AnnualSalary.Div(periods).Round(2)
		hourly = profile.Compensation.AnnualSalary.Div(standardHoursPerYear)
	case employee.Hourly:
		hourly = profile.Compensation.HourlyRate
		e.Regular = hourly.Mul(input.RegularHours).Round(2)
	}

	e.Overtime = hourly.Mul(rules.OvertimeMultiplier).Mul(input.OvertimeHours).Round(2)
	e.HolidayPremium = hourly.Mul(rules.HolidayPremium).Mul(input.HolidayHours).Round(2)
	e.Bonus = input.Bonus.Round(2)
	e.VacationPayout = input.VacationPayout.Round(2)

	e.Total = e.Regular.Add(e.Overtime).Add(e.HolidayPremium).Add(e.Bonus).Add(e.VacationPayout)
	return e
}

// =============================================================================
// STATUTORY CONTRIBUTIONS
// =============================================================================

// computeCPP returns the base CPP employee contribution for the period.
// The basic exemption is prorated per period; pensionable earnings stop
// at the YMPE and the contribution stops at the annual employee max.
func computeCPP(gross decimal.Decimal, cpp jurisdiction.CPPRules, ytd YTD, periods decimal.Decimal) decimal.Decimal {
	roomYMPE := cpp.MaxPensionable.Sub(ytd.Pensionable)
	if roomYMPE.IsNegative() {
		roomYMPE = decimal.Zero
	}
	pensionable := decimal.Min(gross, roomYMPE)

	exemption := cpp.BasicExemption.Div(periods).Round(2)
	base := pensionable.Sub(exemption)
	if base.IsNegative() {
		base = decimal.Zero
	}

	contrib := base.Mul(cpp.Rate).Round(2)
	remaining := cpp.MaxEmployee.Sub(ytd.CPP)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return decimal.Min(contrib, remaining)
}

// computeCPP2 returns the second-tier contribution: the rate applied to
// the portion of this period's pensionable earnings that falls in the
// YMPE..YAMPE band, tracked via cumulative pensionable earnings.
func computeCPP2(gross decimal.Decimal, cpp jurisdiction.CPPRules, cpp2 jurisdiction.CPP2Rules, ytd YTD) decimal.Decimal {
	lo := decimal.Max(ytd.Pensionable, cpp.MaxPensionable)
	hi := decimal.Min(ytd.Pensionable.Add(gross), cpp2.MaxPensionable)
	band := hi.Sub(lo)
	if !band.IsPositive() {
		return decimal.Zero
	}

	contrib := band.Mul(cpp2.Rate).Round(2)
	remaining := cpp2.MaxEmployee.Sub(ytd.CPP2)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return decimal.Min(contrib, remaining)
}

// computeEI returns the employee EI premium for the period, capped by
// remaining insurable earnings and the annual employee max.
func computeEI(gross decimal.Decimal, ei jurisdiction.EIRules, ytd YTD) decimal.Decimal {
	room := ei.MaxInsurable.Sub(ytd.Insurable)
	if room.IsNegative() {
		room = decimal.Zero
	}
	insurable := decimal.Min(gross, room)

	premium := insurable.Mul(ei.EmployeeRate).Round(2)
	remaining := ei.MaxEmployee.Sub(ytd.EI)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return decimal.Min(premium, remaining)
}

// =============================================================================
// WITHHOLDING TAX
// =============================================================================

// periodTax runs the annualized taxable income minus the claim amount
// through the bracket ladder and de-annualizes back to the period.
func periodTax(brackets []jurisdiction.TaxBracket, annualTaxable, claim, periods decimal.Decimal) decimal.Decimal {
	taxed := annualTaxable.Sub(claim)
	if !taxed.IsPositive() {
		return decimal.Zero
	}
	return jurisdiction.TaxOn(brackets, taxed).Div(periods).Round(2)
}

// =============================================================================
// YTD ROLLFORWARD
// =============================================================================

func rollForward(before YTD, profile employee.Profile, gross decimal.Decimal, ded Deductions, net decimal.Decimal) YTD {
	after := YTD{
		Gross:         before.Gross.Add(gross),
		CPP:           before.CPP.Add(ded.CPP),
		CPP2:          before.CPP2.Add(ded.CPP2),
		EI:            before.EI.Add(ded.EI),
		FederalTax:    before.FederalTax.Add(ded.FederalTax),
		ProvincialTax: before.ProvincialTax.Add(ded.ProvincialTax),
		Net:           before.Net.Add(net),
		Pensionable:   before.Pensionable,
		Insurable:     before.Insurable,
	}
	// Exempt employees have no pensionable/insurable earnings to accrue.
	if !profile.CPPExempt {
		after.Pensionable = after.Pensionable.Add(gross)
	}
	if !profile.EIExempt {
		after.Insurable = after.Insurable.Add(gross)
	}
	return after
}

// =============================================================================
// INPUT VALIDATION
// =============================================================================

func validateInput(profile employee.Profile, input PeriodInput, rules *jurisdiction.RuleSet) error {
	if err := profile.Validate(); err != nil {
		return invalidInput(profile.EmployeeID, "profile: %v", err)
	}
	if rules == nil {
		return invalidInput(profile.EmployeeID, "nil rule set")
	}
	if input.PayDate.IsZero() {
		return invalidInput(profile.EmployeeID, "missing pay date")
	}
	if input.PeriodStart.IsZero() || input.PeriodEnd.IsZero() || input.PeriodEnd.Before(input.PeriodStart) {
		return invalidInput(profile.EmployeeID, "invalid period range")
	}
	for _, f := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"regular hours", input.RegularHours},
		{"overtime hours", input.OvertimeHours},
		{"holiday hours", input.HolidayHours},
		{"bonus", input.Bonus},
		{"vacation payout", input.VacationPayout},
		{"garnishment", input.Garnishment},
	} {
		if f.value.IsNegative() {
			return invalidInput(profile.EmployeeID, "negative %s", f.name)
		}
	}
	return nil
}
