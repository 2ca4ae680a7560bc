package payroll

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/employee"
	"github.com/warp/payroll-engine/jurisdiction"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================

func ontarioRules(t *testing.T) *jurisdiction.RuleSet {
	t.Helper()
	table := jurisdiction.PublishedTable()
	rs, err := table.Resolve(jurisdiction.Ontario, date(2025, time.June, 13))
	require.NoError(t, err)
	return rs
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func salariedProfile(annual string) employee.Profile {
	return employee.Profile{
		EmployeeID:    "emp-001",
		Name:          "Avery Chen",
		Province:      jurisdiction.Ontario,
		Frequency:     employee.Biweekly,
		Compensation:  employee.NewSalaried(money(annual)),
		EffectiveFrom: date(2024, time.January, 1),
	}
}

func hourlyProfile(rate string) employee.Profile {
	p := salariedProfile("0")
	p.EmployeeID = "emp-002"
	p.Compensation = employee.NewHourly(money(rate))
	return p
}

func biweeklyInput(id employee.ID) PeriodInput {
	return PeriodInput{
		EmployeeID:  id,
		PeriodStart: date(2025, time.June, 2),
		PeriodEnd:   date(2025, time.June, 15),
		PayDate:     date(2025, time.June, 13),
	}
}

// assertMoney compares a decimal against its expected cents rendering.
func assertMoney(t *testing.T, expected string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, expected, got.StringFixed(2), msgAndArgs...)
}

// =============================================================================
// SALARIED COMPUTATION
// =============================================================================

func TestComputeRecord_SalariedBiweeklyOntario(t *testing.T) {
	// GIVEN a $62,400 salaried employee paid biweekly in Ontario, 2025,
	// with no year-to-date history
	profile := salariedProfile("62400")
	rules := ontarioRules(t)

	// WHEN a regular period is computed
	rec, err := ComputeRecord(profile, biweeklyInput(profile.EmployeeID), rules, YTD{})
	require.NoError(t, err)

	// THEN regular gross is exactly annual/26
	assertMoney(t, "2400.00", rec.Earnings.Regular)
	assertMoney(t, "2400.00", rec.Earnings.Total)

	// AND statutory deductions match the published parameters
	assertMoney(t, "134.79", rec.Deductions.CPP, "(2400 - 3500/26) x 0.0595")
	assertMoney(t, "0.00", rec.Deductions.CPP2, "below the YMPE all year")
	assertMoney(t, "39.36", rec.Deductions.EI, "2400 x 0.0164")
	assertMoney(t, "266.95", rec.Deductions.FederalTax)
	assertMoney(t, "96.44", rec.Deductions.ProvincialTax)

	// AND net is gross minus deductions exactly
	assertMoney(t, "537.54", rec.Deductions.Total)
	assertMoney(t, "1862.46", rec.NetPay)
	assert.True(t, rec.Earnings.Total.Sub(rec.Deductions.Total).Equal(rec.NetPay))

	// AND employer costs carry the match, the EI multiplier and vacation
	assertMoney(t, "134.79", rec.Employer.CPP)
	assertMoney(t, "55.10", rec.Employer.EI, "39.36 x 1.4")
	assertMoney(t, "96.00", rec.Employer.VacationAccrual, "2400 x 0.04")

	// AND the record names the rule set it was computed with
	assert.Equal(t, "ON-2025-01-01", rec.RuleSetID)
}

func TestComputeRecord_SalariedWithPreTaxRRSP(t *testing.T) {
	// GIVEN the same salaried employee with a $100/period RRSP deduction
	profile := salariedProfile("62400")
	profile.Deductions = []employee.RecurringDeduction{employee.NewRRSP(money("100"))}
	rules := ontarioRules(t)

	rec, err := ComputeRecord(profile, biweeklyInput(profile.EmployeeID), rules, YTD{})
	require.NoError(t, err)

	// THEN tax is computed on the reduced taxable income
	assertMoney(t, "251.95", rec.Deductions.FederalTax, "(62400 - 2600 - 16129) x 0.15 / 26")
	assertMoney(t, "91.39", rec.Deductions.ProvincialTax)

	// AND CPP/EI still apply to full gross
	assertMoney(t, "134.79", rec.Deductions.CPP)
	assertMoney(t, "39.36", rec.Deductions.EI)

	assertMoney(t, "100.00", rec.Deductions.RRSP)
	assertMoney(t, "1782.51", rec.NetPay)
}

// =============================================================================
// HOURLY COMPUTATION
// =============================================================================

func TestComputeRecord_HourlyWithOvertime(t *testing.T) {
	// GIVEN a $25/hr employee with 80 regular and 10 overtime hours
	profile := hourlyProfile("25")
	input := biweeklyInput(profile.EmployeeID)
	input.RegularHours = money("80")
	input.OvertimeHours = money("10")
	rules := ontarioRules(t)

	rec, err := ComputeRecord(profile, input, rules, YTD{})
	require.NoError(t, err)

	// THEN overtime pays at 1.5x
	assertMoney(t, "2000.00", rec.Earnings.Regular)
	assertMoney(t, "375.00", rec.Earnings.Overtime)
	assertMoney(t, "2375.00", rec.Earnings.Total)
	assert.True(t, rec.Earnings.Total.Sub(rec.Deductions.Total).Equal(rec.NetPay))
}

func TestComputeRecord_HolidayPremiumAndBonus(t *testing.T) {
	profile := hourlyProfile("25")
	input := biweeklyInput(profile.EmployeeID)
	input.RegularHours = money("72")
	input.HolidayHours = money("8")
	input.Bonus = money("500")
	rules := ontarioRules(t)

	rec, err := ComputeRecord(profile, input, rules, YTD{})
	require.NoError(t, err)

	assertMoney(t, "1800.00", rec.Earnings.Regular)
	assertMoney(t, "300.00", rec.Earnings.HolidayPremium, "8 hrs x 25 x 1.5")
	assertMoney(t, "500.00", rec.Earnings.Bonus)
	assertMoney(t, "2600.00", rec.Earnings.Total)
}

func TestComputeRecord_ZeroHoursProducesZeroRecord(t *testing.T) {
	// GIVEN an hourly employee with no hours and no other earnings
	profile := hourlyProfile("25")
	profile.Deductions = []employee.RecurringDeduction{employee.NewRRSP(money("100"))}
	ytd := YTD{Gross: money("12000"), CPP: money("600")}
	rules := ontarioRules(t)

	rec, err := ComputeRecord(profile, biweeklyInput(profile.EmployeeID), rules, ytd)
	require.NoError(t, err)

	// THEN the record is all-zero, recurring deductions included
	assertMoney(t, "0.00", rec.Earnings.Total)
	assertMoney(t, "0.00", rec.Deductions.Total)
	assertMoney(t, "0.00", rec.NetPay)

	// AND YTD passes through unchanged
	assert.Equal(t, ytd, rec.YTDAfter)
}

func TestComputeRecord_GarnishmentNeedsEarnings(t *testing.T) {
	// GIVEN an hourly employee with no hours but a court-ordered
	// garnishment submitted for the period
	profile := hourlyProfile("25")
	input := biweeklyInput(profile.EmployeeID)
	input.Garnishment = money("250")
	rules := ontarioRules(t)

	// THEN the period fails instead of dropping the garnishment
	_, err := ComputeRecord(profile, input, rules, YTD{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPayrollInput)
	assert.Contains(t, err.Error(), "garnishment")
}

// =============================================================================
// ANNUAL CAPS
// =============================================================================

func TestComputeRecord_CPPStopsAtAnnualMax(t *testing.T) {
	// GIVEN an employee whose YTD CPP is $34.10 short of the 2025 max
	profile := salariedProfile("62400")
	ytd := YTD{
		CPP:         money("4000.00"),
		Pensionable: money("67000"),
		Insurable:   money("67000"),
	}
	rules := ontarioRules(t)

	rec, err := ComputeRecord(profile, biweeklyInput(profile.EmployeeID), rules, ytd)
	require.NoError(t, err)

	// THEN the boundary period withholds exactly the remainder
	assertMoney(t, "34.10", rec.Deductions.CPP)
	assertMoney(t, "4034.10", rec.YTDAfter.CPP)
}

func TestComputeRecord_CPP2AppliesOnlyInBand(t *testing.T) {
	// GIVEN YTD pensionable earnings just below the 2025 YMPE (71300)
	profile := salariedProfile("62400")
	ytd := YTD{Pensionable: money("70000"), Insurable: money("70000")}
	rules := ontarioRules(t)

	rec, err := ComputeRecord(profile, biweeklyInput(profile.EmployeeID), rules, ytd)
	require.NoError(t, err)

	// THEN base CPP applies only to the room left under the YMPE
	assertMoney(t, "69.34", rec.Deductions.CPP, "(71300 - 70000 - 134.62) x 0.0595")

	// AND CPP2 applies to the 1100 of this period inside [YMPE, YAMPE]
	assertMoney(t, "44.00", rec.Deductions.CPP2, "(72400 - 71300) x 0.04")
}

func TestComputeRecord_EICapsAtInsurableAndAnnualMax(t *testing.T) {
	profile := salariedProfile("62400")
	rules := ontarioRules(t)

	// GIVEN insurable earnings near the 2025 MIE (65700)
	ytd := YTD{Pensionable: money("65000"), Insurable: money("65000")}
	rec, err := ComputeRecord(profile, biweeklyInput(profile.EmployeeID), rules, ytd)
	require.NoError(t, err)
	assertMoney(t, "11.48", rec.Deductions.EI, "only 700 insurable remains")

	// GIVEN YTD premiums near the annual max (1077.48)
	ytd = YTD{EI: money("1070.00")}
	rec, err = ComputeRecord(profile, biweeklyInput(profile.EmployeeID), rules, ytd)
	require.NoError(t, err)
	assertMoney(t, "7.48", rec.Deductions.EI)
	assertMoney(t, "1077.48", rec.YTDAfter.EI)
}

func TestComputeRecord_YearSimulationNeverExceedsMaxima(t *testing.T) {
	// GIVEN a $120,000 salary, high enough to hit every cap
	profile := salariedProfile("120000")
	rules := ontarioRules(t)

	var ytd YTD
	for period := 0; period < 26; period++ {
		input := biweeklyInput(profile.EmployeeID)
		input.PayDate = date(2025, time.January, 10).AddDate(0, 0, period*14)
		input.PeriodStart = input.PayDate.AddDate(0, 0, -13)
		input.PeriodEnd = input.PayDate

		rec, err := ComputeRecord(profile, input, rules, ytd)
		require.NoError(t, err)

		// Net identity holds every period.
		assert.True(t, rec.Earnings.Total.Sub(rec.Deductions.Total).Equal(rec.NetPay))

		ytd = rec.YTDAfter
		assert.True(t, ytd.CPP.LessThanOrEqual(rules.CPP.MaxEmployee),
			"period %d: CPP %s exceeds max", period, ytd.CPP)
		assert.True(t, ytd.CPP2.LessThanOrEqual(rules.CPP2.MaxEmployee),
			"period %d: CPP2 %s exceeds max", period, ytd.CPP2)
		assert.True(t, ytd.EI.LessThanOrEqual(rules.EI.MaxEmployee),
			"period %d: EI %s exceeds max", period, ytd.EI)
	}

	// CPP2 covers the full YMPE..YAMPE band over the year.
	assertMoney(t, "396.00", ytd.CPP2)
}

// =============================================================================
// EXEMPTIONS
// =============================================================================

func TestComputeRecord_ExemptFlagsZeroWithholding(t *testing.T) {
	profile := salariedProfile("62400")
	profile.CPPExempt = true
	profile.EIExempt = true
	rules := ontarioRules(t)

	rec, err := ComputeRecord(profile, biweeklyInput(profile.EmployeeID), rules, YTD{})
	require.NoError(t, err)

	// Employee and employer sides both zero.
	assertMoney(t, "0.00", rec.Deductions.CPP)
	assertMoney(t, "0.00", rec.Deductions.CPP2)
	assertMoney(t, "0.00", rec.Deductions.EI)
	assertMoney(t, "0.00", rec.Employer.CPP)
	assertMoney(t, "0.00", rec.Employer.EI)

	// Tax still applies.
	assertMoney(t, "266.95", rec.Deductions.FederalTax)

	// No pensionable or insurable earnings accrue.
	assertMoney(t, "0.00", rec.YTDAfter.Pensionable)
	assertMoney(t, "0.00", rec.YTDAfter.Insurable)
}

// =============================================================================
// ERRORS
// =============================================================================

func TestComputeRecord_NegativeNetRejected(t *testing.T) {
	// GIVEN a garnishment larger than the whole paycheck
	profile := hourlyProfile("25")
	input := biweeklyInput(profile.EmployeeID)
	input.RegularHours = money("10")
	input.Garnishment = money("5000")
	rules := ontarioRules(t)

	_, err := ComputeRecord(profile, input, rules, YTD{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPayrollInput)

	var invalid *InvalidInputError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, profile.EmployeeID, invalid.EmployeeID)
}

func TestComputeRecord_NegativeInputsRejected(t *testing.T) {
	profile := hourlyProfile("25")
	input := biweeklyInput(profile.EmployeeID)
	input.RegularHours = money("-8")
	rules := ontarioRules(t)

	_, err := ComputeRecord(profile, input, rules, YTD{})
	assert.ErrorIs(t, err, ErrInvalidPayrollInput)
}

// =============================================================================
// REPRODUCIBILITY
// =============================================================================

func TestComputeRecord_Deterministic(t *testing.T) {
	// Same inputs, same rule set, byte-identical record.
	profile := salariedProfile("62400")
	profile.Deductions = []employee.RecurringDeduction{employee.NewUnionDues(money("25.50"))}
	input := biweeklyInput(profile.EmployeeID)
	input.Bonus = money("150")
	ytd := YTD{Gross: money("31200"), CPP: money("1752.27")}
	rules := ontarioRules(t)

	first, err := ComputeRecord(profile, input, rules, ytd)
	require.NoError(t, err)
	second, err := ComputeRecord(profile, input, rules, ytd)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestComputeRecord_HistoricalRuleSet(t *testing.T) {
	// A 2024 pay date resolves the 2024 table and uses its parameters.
	profile := salariedProfile("62400")
	input := biweeklyInput(profile.EmployeeID)
	input.PeriodStart = date(2024, time.June, 3)
	input.PeriodEnd = date(2024, time.June, 16)
	input.PayDate = date(2024, time.June, 14)

	table := jurisdiction.PublishedTable()
	rules, err := table.Resolve(jurisdiction.Ontario, input.PayDate)
	require.NoError(t, err)

	rec, err := ComputeRecord(profile, input, rules, YTD{})
	require.NoError(t, err)

	assert.Equal(t, "ON-2024-01-01", rec.RuleSetID)
	// 2024 federal BPA was 15705: (62400 - 15705) x 0.15 / 26
	assertMoney(t, "269.39", rec.Deductions.FederalTax)
}
