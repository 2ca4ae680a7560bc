/*
dto.go - Request/response data structures

PURPOSE:
  JSON shapes for the HTTP API. Money travels as strings ("2400.00") in
  both directions; parsing goes through decimal so the wire never sees
  float rounding.

SEE ALSO:
  - handlers.go: where these are consumed and produced
*/
package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/employee"
	"github.com/warp/payroll-engine/jurisdiction"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/payrun"
)

const dateLayout = "2006-01-02"

// =============================================================================
// EMPLOYEE / PROFILE DTOs
// =============================================================================

type CompensationDTO struct {
	Kind         string `json:"kind"` // "salary" | "hourly"
	AnnualSalary string `json:"annual_salary,omitempty"`
	HourlyRate   string `json:"hourly_rate,omitempty"`
}

type RecurringDeductionDTO struct {
	Kind           string `json:"kind"`
	Amount         string `json:"amount"`
	ReducesTaxable bool   `json:"reduces_taxable"`
}

type ProfileRequest struct {
	EmployeeID      string                  `json:"employee_id"`
	Name            string                  `json:"name"`
	Province        string                  `json:"province"`
	Frequency       string                  `json:"frequency"`
	Compensation    CompensationDTO         `json:"compensation"`
	FederalClaim    string                  `json:"federal_claim,omitempty"`
	ProvincialClaim string                  `json:"provincial_claim,omitempty"`
	CPPExempt       bool                    `json:"cpp_exempt,omitempty"`
	EIExempt        bool                    `json:"ei_exempt,omitempty"`
	Deductions      []RecurringDeductionDTO `json:"deductions,omitempty"`
	VacationRate    string                  `json:"vacation_rate,omitempty"`
	EffectiveFrom   string                  `json:"effective_from"`
}

type ProfileDTO struct {
	EmployeeID      string                  `json:"employee_id"`
	Name            string                  `json:"name"`
	Province        string                  `json:"province"`
	Frequency       string                  `json:"frequency"`
	Compensation    CompensationDTO         `json:"compensation"`
	FederalClaim    string                  `json:"federal_claim"`
	ProvincialClaim string                  `json:"provincial_claim"`
	CPPExempt       bool                    `json:"cpp_exempt"`
	EIExempt        bool                    `json:"ei_exempt"`
	Deductions      []RecurringDeductionDTO `json:"deductions,omitempty"`
	VacationRate    string                  `json:"vacation_rate"`
	EffectiveFrom   string                  `json:"effective_from"`
	EffectiveTo     string                  `json:"effective_to,omitempty"`
}

func (req ProfileRequest) toProfile() (employee.Profile, error) {
	p := employee.Profile{
		EmployeeID: employee.ID(req.EmployeeID),
		Name:       req.Name,
		Province:   jurisdiction.Province(req.Province),
		Frequency:  employee.PayFrequency(req.Frequency),
		CPPExempt:  req.CPPExempt,
		EIExempt:   req.EIExempt,
	}

	switch employee.CompensationKind(req.Compensation.Kind) {
	case employee.Salaried:
		annual, err := parseAmount(req.Compensation.AnnualSalary, "annual_salary")
		if err != nil {
			return p, err
		}
		p.Compensation = employee.NewSalaried(annual)
	case employee.Hourly:
		rate, err := parseAmount(req.Compensation.HourlyRate, "hourly_rate")
		if err != nil {
			return p, err
		}
		p.Compensation = employee.NewHourly(rate)
	default:
		return p, fmt.Errorf("unknown compensation kind %q", req.Compensation.Kind)
	}

	var err error
	if p.FederalClaim, err = parseOptionalAmount(req.FederalClaim, "federal_claim"); err != nil {
		return p, err
	}
	if p.ProvincialClaim, err = parseOptionalAmount(req.ProvincialClaim, "provincial_claim"); err != nil {
		return p, err
	}
	if p.VacationRate, err = parseOptionalAmount(req.VacationRate, "vacation_rate"); err != nil {
		return p, err
	}

	for _, d := range req.Deductions {
		amount, err := parseAmount(d.Amount, "deduction amount")
		if err != nil {
			return p, err
		}
		p.Deductions = append(p.Deductions, employee.RecurringDeduction{
			Kind:           employee.DeductionKind(d.Kind),
			Amount:         amount,
			ReducesTaxable: d.ReducesTaxable,
		})
	}

	if p.EffectiveFrom, err = time.Parse(dateLayout, req.EffectiveFrom); err != nil {
		return p, fmt.Errorf("effective_from: %w", err)
	}
	return p, nil
}

func profileDTO(p employee.Profile) ProfileDTO {
	dto := ProfileDTO{
		EmployeeID:      string(p.EmployeeID),
		Name:            p.Name,
		Province:        string(p.Province),
		Frequency:       string(p.Frequency),
		FederalClaim:    p.FederalClaim.StringFixed(2),
		ProvincialClaim: p.ProvincialClaim.StringFixed(2),
		CPPExempt:       p.CPPExempt,
		EIExempt:        p.EIExempt,
		VacationRate:    p.VacationRate.String(),
		EffectiveFrom:   p.EffectiveFrom.Format(dateLayout),
	}
	if !p.EffectiveTo.IsZero() {
		dto.EffectiveTo = p.EffectiveTo.Format(dateLayout)
	}

	dto.Compensation.Kind = string(p.Compensation.Kind)
	switch p.Compensation.Kind {
	case employee.Salaried:
		dto.Compensation.AnnualSalary = p.Compensation.AnnualSalary.StringFixed(2)
	case employee.Hourly:
		dto.Compensation.HourlyRate = p.Compensation.HourlyRate.StringFixed(2)
	}

	for _, d := range p.Deductions {
		dto.Deductions = append(dto.Deductions, RecurringDeductionDTO{
			Kind:           string(d.Kind),
			Amount:         d.Amount.StringFixed(2),
			ReducesTaxable: d.ReducesTaxable,
		})
	}
	return dto
}

// =============================================================================
// RUN DTOs
// =============================================================================

type PeriodInputDTO struct {
	EmployeeID     string `json:"employee_id"`
	RegularHours   string `json:"regular_hours,omitempty"`
	OvertimeHours  string `json:"overtime_hours,omitempty"`
	HolidayHours   string `json:"holiday_hours,omitempty"`
	Bonus          string `json:"bonus,omitempty"`
	VacationPayout string `json:"vacation_payout,omitempty"`
	Garnishment    string `json:"garnishment,omitempty"`
}

type RunRequest struct {
	PayGroup    string           `json:"pay_group"`
	PeriodStart string           `json:"period_start"`
	PeriodEnd   string           `json:"period_end"`
	PayDate     string           `json:"pay_date"`
	Inputs      []PeriodInputDTO `json:"inputs"`
}

func (req RunRequest) toInputs() ([]payroll.PeriodInput, error) {
	start, err := time.Parse(dateLayout, req.PeriodStart)
	if err != nil {
		return nil, fmt.Errorf("period_start: %w", err)
	}
	end, err := time.Parse(dateLayout, req.PeriodEnd)
	if err != nil {
		return nil, fmt.Errorf("period_end: %w", err)
	}
	payDate, err := time.Parse(dateLayout, req.PayDate)
	if err != nil {
		return nil, fmt.Errorf("pay_date: %w", err)
	}

	inputs := make([]payroll.PeriodInput, 0, len(req.Inputs))
	for i, in := range req.Inputs {
		input := payroll.PeriodInput{
			EmployeeID:  employee.ID(in.EmployeeID),
			PeriodStart: start,
			PeriodEnd:   end,
			PayDate:     payDate,
		}
		for _, f := range []struct {
			dst  *decimal.Decimal
			src  string
			name string
		}{
			{&input.RegularHours, in.RegularHours, "regular_hours"},
			{&input.OvertimeHours, in.OvertimeHours, "overtime_hours"},
			{&input.HolidayHours, in.HolidayHours, "holiday_hours"},
			{&input.Bonus, in.Bonus, "bonus"},
			{&input.VacationPayout, in.VacationPayout, "vacation_payout"},
			{&input.Garnishment, in.Garnishment, "garnishment"},
		} {
			if *f.dst, err = parseOptionalAmount(f.src, f.name); err != nil {
				return nil, fmt.Errorf("input %d: %w", i, err)
			}
		}
		inputs = append(inputs, input)
	}
	return inputs, nil
}

type EarningsDTO struct {
	Regular        string `json:"regular"`
	Overtime       string `json:"overtime"`
	HolidayPremium string `json:"holiday_premium"`
	Bonus          string `json:"bonus"`
	VacationPayout string `json:"vacation_payout"`
	Total          string `json:"total"`
}

type DeductionsDTO struct {
	CPP           string `json:"cpp"`
	CPP2          string `json:"cpp2"`
	EI            string `json:"ei"`
	FederalTax    string `json:"federal_tax"`
	ProvincialTax string `json:"provincial_tax"`
	RRSP          string `json:"rrsp"`
	UnionDues     string `json:"union_dues"`
	Other         string `json:"other"`
	Garnishment   string `json:"garnishment"`
	Total         string `json:"total"`
}

type EmployerCostsDTO struct {
	CPP             string `json:"cpp"`
	CPP2            string `json:"cpp2"`
	EI              string `json:"ei"`
	VacationAccrual string `json:"vacation_accrual"`
	Total           string `json:"total"`
}

type YTDDTO struct {
	Gross         string `json:"gross"`
	CPP           string `json:"cpp"`
	CPP2          string `json:"cpp2"`
	EI            string `json:"ei"`
	FederalTax    string `json:"federal_tax"`
	ProvincialTax string `json:"provincial_tax"`
	Net           string `json:"net"`
	Pensionable   string `json:"pensionable"`
	Insurable     string `json:"insurable"`
}

type RecordDTO struct {
	EmployeeID  string           `json:"employee_id"`
	PeriodStart string           `json:"period_start"`
	PeriodEnd   string           `json:"period_end"`
	PayDate     string           `json:"pay_date"`
	RuleSetID   string           `json:"rule_set_id"`
	Earnings    EarningsDTO      `json:"earnings"`
	Deductions  DeductionsDTO    `json:"deductions"`
	Employer    EmployerCostsDTO `json:"employer"`
	NetPay      string           `json:"net_pay"`
	YTDAfter    YTDDTO           `json:"ytd_after"`
}

type FailureDTO struct {
	EmployeeID string `json:"employee_id"`
	Reason     string `json:"reason"`
}

type TotalsDTO struct {
	Gross           string `json:"gross"`
	CPP             string `json:"cpp"`
	CPP2            string `json:"cpp2"`
	EI              string `json:"ei"`
	FederalTax      string `json:"federal_tax"`
	ProvincialTax   string `json:"provincial_tax"`
	OtherDeductions string `json:"other_deductions"`
	Deductions      string `json:"deductions"`
	Net             string `json:"net"`
	EmployerCosts   string `json:"employer_costs"`
}

type RunDTO struct {
	ID          string       `json:"id"`
	PayGroup    string       `json:"pay_group"`
	PeriodStart string       `json:"period_start"`
	PeriodEnd   string       `json:"period_end"`
	PayDate     string       `json:"pay_date"`
	Status      string       `json:"status"`
	Version     int          `json:"version"`
	Totals      TotalsDTO    `json:"totals"`
	Records     []RecordDTO  `json:"records,omitempty"`
	Failures    []FailureDTO `json:"failures,omitempty"`
	CreatedAt   string       `json:"created_at"`
	ApprovedAt  string       `json:"approved_at,omitempty"`
	PaidAt      string       `json:"paid_at,omitempty"`
}

func recordDTO(rec *payroll.Record) RecordDTO {
	return RecordDTO{
		EmployeeID:  string(rec.EmployeeID),
		PeriodStart: rec.PeriodStart.Format(dateLayout),
		PeriodEnd:   rec.PeriodEnd.Format(dateLayout),
		PayDate:     rec.PayDate.Format(dateLayout),
		RuleSetID:   rec.RuleSetID,
		Earnings: EarningsDTO{
			Regular:        rec.Earnings.Regular.StringFixed(2),
			Overtime:       rec.Earnings.Overtime.StringFixed(2),
			HolidayPremium: rec.Earnings.HolidayPremium.StringFixed(2),
			Bonus:          rec.Earnings.Bonus.StringFixed(2),
			VacationPayout: rec.Earnings.VacationPayout.StringFixed(2),
			Total:          rec.Earnings.Total.StringFixed(2),
		},
		Deductions: DeductionsDTO{
			CPP:           rec.Deductions.CPP.StringFixed(2),
			CPP2:          rec.Deductions.CPP2.StringFixed(2),
			EI:            rec.Deductions.EI.StringFixed(2),
			FederalTax:    rec.Deductions.FederalTax.StringFixed(2),
			ProvincialTax: rec.Deductions.ProvincialTax.StringFixed(2),
			RRSP:          rec.Deductions.RRSP.StringFixed(2),
			UnionDues:     rec.Deductions.UnionDues.StringFixed(2),
			Other:         rec.Deductions.Other.StringFixed(2),
			Garnishment:   rec.Deductions.Garnishment.StringFixed(2),
			Total:         rec.Deductions.Total.StringFixed(2),
		},
		Employer: EmployerCostsDTO{
			CPP:             rec.Employer.CPP.StringFixed(2),
			CPP2:            rec.Employer.CPP2.StringFixed(2),
			EI:              rec.Employer.EI.StringFixed(2),
			VacationAccrual: rec.Employer.VacationAccrual.StringFixed(2),
			Total:           rec.Employer.Total.StringFixed(2),
		},
		NetPay:   rec.NetPay.StringFixed(2),
		YTDAfter: ytdDTO(rec.YTDAfter),
	}
}

func ytdDTO(ytd payroll.YTD) YTDDTO {
	return YTDDTO{
		Gross:         ytd.Gross.StringFixed(2),
		CPP:           ytd.CPP.StringFixed(2),
		CPP2:          ytd.CPP2.StringFixed(2),
		EI:            ytd.EI.StringFixed(2),
		FederalTax:    ytd.FederalTax.StringFixed(2),
		ProvincialTax: ytd.ProvincialTax.StringFixed(2),
		Net:           ytd.Net.StringFixed(2),
		Pensionable:   ytd.Pensionable.StringFixed(2),
		Insurable:     ytd.Insurable.StringFixed(2),
	}
}

func runDTO(run *payrun.Run, includeRecords bool) RunDTO {
	dto := RunDTO{
		ID:          string(run.ID),
		PayGroup:    run.PayGroup,
		PeriodStart: run.PeriodStart.Format(dateLayout),
		PeriodEnd:   run.PeriodEnd.Format(dateLayout),
		PayDate:     run.PayDate.Format(dateLayout),
		Status:      string(run.Status),
		Version:     run.Version,
		Totals: TotalsDTO{
			Gross:           run.Totals.Gross.StringFixed(2),
			CPP:             run.Totals.CPP.StringFixed(2),
			CPP2:            run.Totals.CPP2.StringFixed(2),
			EI:              run.Totals.EI.StringFixed(2),
			FederalTax:      run.Totals.FederalTax.StringFixed(2),
			ProvincialTax:   run.Totals.ProvincialTax.StringFixed(2),
			OtherDeductions: run.Totals.OtherDeductions.StringFixed(2),
			Deductions:      run.Totals.Deductions.StringFixed(2),
			Net:             run.Totals.Net.StringFixed(2),
			EmployerCosts:   run.Totals.EmployerCosts.StringFixed(2),
		},
		CreatedAt: run.CreatedAt.Format(time.RFC3339),
	}
	if !run.ApprovedAt.IsZero() {
		dto.ApprovedAt = run.ApprovedAt.Format(time.RFC3339)
	}
	if !run.PaidAt.IsZero() {
		dto.PaidAt = run.PaidAt.Format(time.RFC3339)
	}
	for _, f := range run.Failures {
		dto.Failures = append(dto.Failures, FailureDTO{
			EmployeeID: string(f.EmployeeID),
			Reason:     f.Reason,
		})
	}
	if includeRecords {
		for _, rec := range run.Records {
			dto.Records = append(dto.Records, recordDTO(rec))
		}
	}
	return dto
}

// =============================================================================
// RULE SET DTO
// =============================================================================

type RuleSetDTO struct {
	ID            string `json:"id"`
	Province      string `json:"province"`
	EffectiveFrom string `json:"effective_from"`
	EffectiveTo   string `json:"effective_to,omitempty"`
	FederalBPA    string `json:"federal_bpa"`
	ProvincialBPA string `json:"provincial_bpa"`
	CPPRate       string `json:"cpp_rate"`
	CPP2Rate      string `json:"cpp2_rate"`
	EIRate        string `json:"ei_rate"`
}

func ruleSetDTO(rs *jurisdiction.RuleSet) RuleSetDTO {
	dto := RuleSetDTO{
		ID:            rs.ID(),
		Province:      string(rs.Province),
		EffectiveFrom: rs.EffectiveFrom.Format(dateLayout),
		FederalBPA:    rs.FederalBPA.StringFixed(2),
		ProvincialBPA: rs.ProvincialBPA.StringFixed(2),
		CPPRate:       rs.CPP.Rate.String(),
		CPP2Rate:      rs.CPP2.Rate.String(),
		EIRate:        rs.EI.EmployeeRate.String(),
	}
	if !rs.EffectiveTo.IsZero() {
		dto.EffectiveTo = rs.EffectiveTo.Format(dateLayout)
	}
	return dto
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseAmount(s, name string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, fmt.Errorf("missing %s", name)
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

func parseOptionalAmount(s, name string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return parseAmount(s, name)
}
