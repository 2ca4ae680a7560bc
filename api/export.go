/*
export.go - CSV payroll register export

PURPOSE:
  Renders a run as the payroll register accountants reconcile against:
  one row per employee, one column per money component, plus a totals
  row. CSV because every downstream tool ingests it.
*/
package api

import (
	"encoding/csv"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/payroll-engine/payroll"
)

var registerHeader = []string{
	"employee_id", "pay_date", "rule_set",
	"regular", "overtime", "holiday_premium", "bonus", "vacation_payout", "gross",
	"cpp", "cpp2", "ei", "federal_tax", "provincial_tax",
	"rrsp", "union_dues", "other", "garnishment", "total_deductions",
	"net_pay", "employer_costs",
}

// ExportRun writes the run's payroll register as CSV.
func (h *Handler) ExportRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Runs.GetRun(r.Context(), payroll.RunID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="register-%s.csv"`, run.ID))

	cw := csv.NewWriter(w)
	cw.Write(registerHeader)

	for _, rec := range run.Records {
		cw.Write([]string{
			string(rec.EmployeeID),
			rec.PayDate.Format(dateLayout),
			rec.RuleSetID,
			rec.Earnings.Regular.StringFixed(2),
			rec.Earnings.Overtime.StringFixed(2),
			rec.Earnings.HolidayPremium.StringFixed(2),
			rec.Earnings.Bonus.StringFixed(2),
			rec.Earnings.VacationPayout.StringFixed(2),
			rec.Earnings.Total.StringFixed(2),
			rec.Deductions.CPP.StringFixed(2),
			rec.Deductions.CPP2.StringFixed(2),
			rec.Deductions.EI.StringFixed(2),
			rec.Deductions.FederalTax.StringFixed(2),
			rec.Deductions.ProvincialTax.StringFixed(2),
			rec.Deductions.RRSP.StringFixed(2),
			rec.Deductions.UnionDues.StringFixed(2),
			rec.Deductions.Other.StringFixed(2),
			rec.Deductions.Garnishment.StringFixed(2),
			rec.Deductions.Total.StringFixed(2),
			rec.NetPay.StringFixed(2),
			rec.Employer.Total.StringFixed(2),
		})
	}

	cw.Write([]string{
		"TOTAL", run.PayDate.Format(dateLayout), "",
		"", "", "", "", "", run.Totals.Gross.StringFixed(2),
		run.Totals.CPP.StringFixed(2),
		run.Totals.CPP2.StringFixed(2),
		run.Totals.EI.StringFixed(2),
		run.Totals.FederalTax.StringFixed(2),
		run.Totals.ProvincialTax.StringFixed(2),
		"", "", "", "", run.Totals.Deductions.StringFixed(2),
		run.Totals.Net.StringFixed(2),
		run.Totals.EmployerCosts.StringFixed(2),
	})

	cw.Flush()
}
