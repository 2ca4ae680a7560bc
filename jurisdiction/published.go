/*
published.go - Shipped rule tables

PURPOSE:
  The structured form of the statutory reference documentation: federal
  parameters plus provincial tables for Ontario, British Columbia and
  Alberta, for the 2024 and 2025 tax years.

NOTES:
  - Claim amounts use the flat basic personal amount. The income-tested
    federal BPA phase-out is not modeled; employees with claim amounts
    above the BPA set them on their profile.
  - Quebec is deliberately absent: QPP/QPIP replace CPP/EI with different
    structures. Resolving a QC employee surfaces RuleSetNotFound.

SEE ALSO:
  - resolver.go: Table.Publish / Resolve
  - loader.go: loading additional tables from YAML
*/
package jurisdiction

import (
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic("bad decimal literal: " + s)
	}
	return v
}

func upTo(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func day(year int, month time.Month, dom int) time.Time {
	return time.Date(year, month, dom, 0, 0, 0, 0, time.UTC)
}

// yearRange returns the calendar-year effective range.
func yearRange(year int) (time.Time, time.Time) {
	return day(year, time.January, 1), day(year, time.December, 31)
}

// =============================================================================
// FEDERAL PARAMETERS (shared across provincial rule sets per year)
// =============================================================================

type federalYear struct {
	brackets []TaxBracket
	bpa      decimal.Decimal
	cpp      CPPRules
	cpp2     CPP2Rules
	ei       EIRules
}

func federal2025() federalYear {
	return federalYear{
		brackets: []TaxBracket{
			{UpTo: upTo("57375"), Rate: d("0.15")},
			{UpTo: upTo("114750"), Rate: d("0.205")},
			{UpTo: upTo("177882"), Rate: d("0.26")},
			{UpTo: upTo("253414"), Rate: d("0.29")},
			{Rate: d("0.33")},
		},
		bpa: d("16129"),
		cpp: CPPRules{
			Rate:           d("0.0595"),
			BasicExemption: d("3500"),
			MaxPensionable: d("71300"),
			MaxEmployee:    d("4034.10"),
		},
		cpp2: CPP2Rules{
			Rate:           d("0.04"),
			MaxPensionable: d("81200"),
			MaxEmployee:    d("396.00"),
		},
		ei: EIRules{
			EmployeeRate:       d("0.0164"),
			MaxInsurable:       d("65700"),
			MaxEmployee:        d("1077.48"),
			EmployerMultiplier: d("1.4"),
		},
	}
}

func federal2024() federalYear {
	return federalYear{
		brackets: []TaxBracket{
			{UpTo: upTo("55867"), Rate: d("0.15")},
			{UpTo: upTo("111733"), Rate: d("0.205")},
			{UpTo: upTo("173205"), Rate: d("0.26")},
			{UpTo: upTo("246752"), Rate: d("0.29")},
			{Rate: d("0.33")},
		},
		bpa: d("15705"),
		cpp: CPPRules{
			Rate:           d("0.0595"),
			BasicExemption: d("3500"),
			MaxPensionable: d("68500"),
			MaxEmployee:    d("3867.50"),
		},
		cpp2: CPP2Rules{
			Rate:           d("0.04"),
			MaxPensionable: d("73200"),
			MaxEmployee:    d("188.00"),
		},
		ei: EIRules{
			EmployeeRate:       d("0.0166"),
			MaxInsurable:       d("63200"),
			MaxEmployee:        d("1049.12"),
			EmployerMultiplier: d("1.4"),
		},
	}
}

func provincialRuleSet(province Province, year int, fed federalYear, brackets []TaxBracket, bpa, vacationMin decimal.Decimal, holidays []Holiday) *RuleSet {
	from, to := yearRange(year)
	return &RuleSet{
		Province:           province,
		EffectiveFrom:      from,
		EffectiveTo:        to,
		CPP:                fed.cpp,
		CPP2:               fed.cpp2,
		EI:                 fed.ei,
		FederalBrackets:    fed.brackets,
		ProvincialBrackets: brackets,
		FederalBPA:         fed.bpa,
		ProvincialBPA:      bpa,
		OvertimeMultiplier: d("1.5"),
		HolidayPremium:     d("1.5"),
		VacationMinRate:    vacationMin,
		Holidays:           holidays,
	}
}

// =============================================================================
// PROVINCIAL TABLES
// =============================================================================

func ontario2025() *RuleSet {
	return provincialRuleSet(Ontario, 2025, federal2025(),
		[]TaxBracket{
			{UpTo: upTo("52886"), Rate: d("0.0505")},
			{UpTo: upTo("105775"), Rate: d("0.0915")},
			{UpTo: upTo("150000"), Rate: d("0.1116")},
			{UpTo: upTo("220000"), Rate: d("0.1216")},
			{Rate: d("0.1316")},
		},
		d("12747"), d("0.04"),
		[]Holiday{
			{Name: "New Year's Day", Date: day(2025, time.January, 1)},
			{Name: "Family Day", Date: day(2025, time.February, 17)},
			{Name: "Good Friday", Date: day(2025, time.April, 18)},
			{Name: "Victoria Day", Date: day(2025, time.May, 19)},
			{Name: "Canada Day", Date: day(2025, time.July, 1)},
			{Name: "Labour Day", Date: day(2025, time.September, 1)},
			{Name: "Thanksgiving Day", Date: day(2025, time.October, 13)},
			{Name: "Christmas Day", Date: day(2025, time.December, 25)},
			{Name: "Boxing Day", Date: day(2025, time.December, 26)},
		})
}

func ontario2024() *RuleSet {
	return provincialRuleSet(Ontario, 2024, federal2024(),
		[]TaxBracket{
			{UpTo: upTo("51446"), Rate: d("0.0505")},
			{UpTo: upTo("102894"), Rate: d("0.0915")},
			{UpTo: upTo("150000"), Rate: d("0.1116")},
			{UpTo: upTo("220000"), Rate: d("0.1216")},
			{Rate: d("0.1316")},
		},
		d("12399"), d("0.04"),
		[]Holiday{
			{Name: "New Year's Day", Date: day(2024, time.January, 1)},
			{Name: "Family Day", Date: day(2024, time.February, 19)},
			{Name: "Good Friday", Date: day(2024, time.March, 29)},
			{Name: "Victoria Day", Date: day(2024, time.May, 20)},
			{Name: "Canada Day", Date: day(2024, time.July, 1)},
			{Name: "Labour Day", Date: day(2024, time.September, 2)},
			{Name: "Thanksgiving Day", Date: day(2024, time.October, 14)},
			{Name: "Christmas Day", Date: day(2024, time.December, 25)},
			{Name: "Boxing Day", Date: day(2024, time.December, 26)},
		})
}

func britishColumbia2025() *RuleSet {
	return provincialRuleSet(BritishColumbia, 2025, federal2025(),
		[]TaxBracket{
			{UpTo: upTo("49279"), Rate: d("0.0506")},
			{UpTo: upTo("98560"), Rate: d("0.077")},
			{UpTo: upTo("113158"), Rate: d("0.105")},
			{UpTo: upTo("137407"), Rate: d("0.1229")},
			{UpTo: upTo("186306"), Rate: d("0.147")},
			{UpTo: upTo("259829"), Rate: d("0.168")},
			{Rate: d("0.205")},
		},
		d("12932"), d("0.04"),
		[]Holiday{
			{Name: "New Year's Day", Date: day(2025, time.January, 1)},
			{Name: "Family Day", Date: day(2025, time.February, 17)},
			{Name: "Good Friday", Date: day(2025, time.April, 18)},
			{Name: "Victoria Day", Date: day(2025, time.May, 19)},
			{Name: "Canada Day", Date: day(2025, time.July, 1)},
			{Name: "BC Day", Date: day(2025, time.August, 4)},
			{Name: "Labour Day", Date: day(2025, time.September, 1)},
			{Name: "Thanksgiving Day", Date: day(2025, time.October, 13)},
			{Name: "Remembrance Day", Date: day(2025, time.November, 11)},
			{Name: "Christmas Day", Date: day(2025, time.December, 25)},
		})
}

func alberta2025() *RuleSet {
	return provincialRuleSet(Alberta, 2025, federal2025(),
		[]TaxBracket{
			{UpTo: upTo("60000"), Rate: d("0.08")},
			{UpTo: upTo("151234"), Rate: d("0.10")},
			{UpTo: upTo("181481"), Rate: d("0.12")},
			{UpTo: upTo("241974"), Rate: d("0.13")},
			{UpTo: upTo("362961"), Rate: d("0.14")},
			{Rate: d("0.15")},
		},
		d("22323"), d("0.04"),
		[]Holiday{
			{Name: "New Year's Day", Date: day(2025, time.January, 1)},
			{Name: "Family Day", Date: day(2025, time.February, 17)},
			{Name: "Good Friday", Date: day(2025, time.April, 18)},
			{Name: "Victoria Day", Date: day(2025, time.May, 19)},
			{Name: "Canada Day", Date: day(2025, time.July, 1)},
			{Name: "Labour Day", Date: day(2025, time.September, 1)},
			{Name: "Thanksgiving Day", Date: day(2025, time.October, 13)},
			{Name: "Remembrance Day", Date: day(2025, time.November, 11)},
			{Name: "Christmas Day", Date: day(2025, time.December, 25)},
		})
}

// PublishedTable returns a Table preloaded with every shipped rule set.
func PublishedTable() *Table {
	t := NewTable()
	for _, rs := range []*RuleSet{
		ontario2024(),
		ontario2025(),
		britishColumbia2025(),
		alberta2025(),
	} {
		if err := t.Publish(rs); err != nil {
			// Shipped tables are validated by tests; a failure here is a bug.
			panic(err)
		}
	}
	return t
}
