/*
loader.go - YAML rule-table documents

PURPOSE:
  Rule tables originate as reference documentation maintained by the
  compliance team, not as code. The loader parses the structured YAML
  form of those documents into RuleSets, so a new tax year ships as a
  data change.

YAML SCHEMA (one document per rule set, multiple documents per file):

  province: ON
  effective_from: 2025-01-01
  effective_to: 2025-12-31
  cpp:
    rate: "0.0595"
    basic_exemption: "3500"
    max_pensionable: "71300"
    max_employee: "4034.10"
  cpp2:
    rate: "0.04"
    max_pensionable: "81200"
    max_employee: "396.00"
  ei:
    employee_rate: "0.0164"
    max_insurable: "65700"
    max_employee: "1077.48"
    employer_multiplier: "1.4"
  federal_brackets:
    - {up_to: "57375", rate: "0.15"}
    - {rate: "0.33"}          # omitted up_to = top bracket
  provincial_brackets: [...]
  federal_bpa: "16129"
  provincial_bpa: "12747"
  overtime_multiplier: "1.5"
  holiday_premium: "1.5"
  vacation_min_rate: "0.04"
  holidays:
    - {name: "Canada Day", date: 2025-07-01}

  Amounts are quoted strings so YAML never coerces them to floats.

SEE ALSO:
  - resolver.go: Table.Publish (loaded sets go through the same validation)
*/
package jurisdiction

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// YAML DOCUMENT TYPES
// =============================================================================

type ruleSetYAML struct {
	Province           string          `yaml:"province"`
	EffectiveFrom      string          `yaml:"effective_from"`
	EffectiveTo        string          `yaml:"effective_to,omitempty"`
	CPP                cppYAML         `yaml:"cpp"`
	CPP2               cpp2YAML        `yaml:"cpp2"`
	EI                 eiYAML          `yaml:"ei"`
	FederalBrackets    []bracketYAML   `yaml:"federal_brackets"`
	ProvincialBrackets []bracketYAML   `yaml:"provincial_brackets"`
	FederalBPA         string          `yaml:"federal_bpa"`
	ProvincialBPA      string          `yaml:"provincial_bpa"`
	OvertimeMultiplier string          `yaml:"overtime_multiplier,omitempty"`
	HolidayPremium     string          `yaml:"holiday_premium,omitempty"`
	VacationMinRate    string          `yaml:"vacation_min_rate"`
	Holidays           []holidayYAML   `yaml:"holidays,omitempty"`
}

type cppYAML struct {
	Rate           string `yaml:"rate"`
	BasicExemption string `yaml:"basic_exemption"`
	MaxPensionable string `yaml:"max_pensionable"`
	MaxEmployee    string `yaml:"max_employee"`
}

type cpp2YAML struct {
	Rate           string `yaml:"rate"`
	MaxPensionable string `yaml:"max_pensionable"`
	MaxEmployee    string `yaml:"max_employee"`
}

type eiYAML struct {
	EmployeeRate       string `yaml:"employee_rate"`
	MaxInsurable       string `yaml:"max_insurable"`
	MaxEmployee        string `yaml:"max_employee"`
	EmployerMultiplier string `yaml:"employer_multiplier"`
}

type bracketYAML struct {
	UpTo string `yaml:"up_to,omitempty"`
	Rate string `yaml:"rate"`
}

type holidayYAML struct {
	Name string `yaml:"name"`
	Date string `yaml:"date"`
}

// =============================================================================
// LOADER
// =============================================================================

// Load parses all YAML documents from r into validated RuleSets.
func Load(r io.Reader) ([]*RuleSet, error) {
	dec := yaml.NewDecoder(r)
	var out []*RuleSet
	for i := 0; ; i++ {
		var doc ruleSetYAML
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		rs, err := doc.toRuleSet()
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		if err := rs.Validate(); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		out = append(out, rs)
	}
	return out, nil
}

// LoadFile parses rule sets from a YAML file.
func LoadFile(path string) ([]*RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// LoadInto loads rule sets from a YAML file and publishes them all.
func LoadInto(table *Table, path string) error {
	sets, err := LoadFile(path)
	if err != nil {
		return err
	}
	for _, rs := range sets {
		if err := table.Publish(rs); err != nil {
			return err
		}
	}
	return nil
}

func (doc ruleSetYAML) toRuleSet() (*RuleSet, error) {
	rs := &RuleSet{Province: Province(doc.Province)}

	var err error
	if rs.EffectiveFrom, err = parseDate(doc.EffectiveFrom); err != nil {
		return nil, fmt.Errorf("effective_from: %w", err)
	}
	if doc.EffectiveTo != "" {
		if rs.EffectiveTo, err = parseDate(doc.EffectiveTo); err != nil {
			return nil, fmt.Errorf("effective_to: %w", err)
		}
	}

	fields := []struct {
		dst  *decimal.Decimal
		src  string
		name string
	}{
		{&rs.CPP.Rate, doc.CPP.Rate, "cpp.rate"},
		{&rs.CPP.BasicExemption, doc.CPP.BasicExemption, "cpp.basic_exemption"},
		{&rs.CPP.MaxPensionable, doc.CPP.MaxPensionable, "cpp.max_pensionable"},
		{&rs.CPP.MaxEmployee, doc.CPP.MaxEmployee, "cpp.max_employee"},
		{&rs.CPP2.Rate, doc.CPP2.Rate, "cpp2.rate"},
		{&rs.CPP2.MaxPensionable, doc.CPP2.MaxPensionable, "cpp2.max_pensionable"},
		{&rs.CPP2.MaxEmployee, doc.CPP2.MaxEmployee, "cpp2.max_employee"},
		{&rs.EI.EmployeeRate, doc.EI.EmployeeRate, "ei.employee_rate"},
		{&rs.EI.MaxInsurable, doc.EI.MaxInsurable, "ei.max_insurable"},
		{&rs.EI.MaxEmployee, doc.EI.MaxEmployee, "ei.max_employee"},
		{&rs.EI.EmployerMultiplier, doc.EI.EmployerMultiplier, "ei.employer_multiplier"},
		{&rs.FederalBPA, doc.FederalBPA, "federal_bpa"},
		{&rs.ProvincialBPA, doc.ProvincialBPA, "provincial_bpa"},
		{&rs.VacationMinRate, doc.VacationMinRate, "vacation_min_rate"},
	}
	for _, f := range fields {
		if *f.dst, err = parseAmount(f.src, f.name); err != nil {
			return nil, err
		}
	}

	// Optional with statutory defaults.
	if rs.OvertimeMultiplier, err = parseAmountDefault(doc.OvertimeMultiplier, "overtime_multiplier", "1.5"); err != nil {
		return nil, err
	}
	if rs.HolidayPremium, err = parseAmountDefault(doc.HolidayPremium, "holiday_premium", "1.5"); err != nil {
		return nil, err
	}

	if rs.FederalBrackets, err = parseBrackets(doc.FederalBrackets); err != nil {
		return nil, fmt.Errorf("federal_brackets: %w", err)
	}
	if rs.ProvincialBrackets, err = parseBrackets(doc.ProvincialBrackets); err != nil {
		return nil, fmt.Errorf("provincial_brackets: %w", err)
	}

	for _, h := range doc.Holidays {
		date, err := parseDate(h.Date)
		if err != nil {
			return nil, fmt.Errorf("holiday %q: %w", h.Name, err)
		}
		rs.Holidays = append(rs.Holidays, Holiday{Name: h.Name, Date: date})
	}

	return rs, nil
}

func parseBrackets(docs []bracketYAML) ([]TaxBracket, error) {
	out := make([]TaxBracket, 0, len(docs))
	for i, b := range docs {
		rate, err := parseAmount(b.Rate, fmt.Sprintf("bracket %d rate", i))
		if err != nil {
			return nil, err
		}
		bracket := TaxBracket{Rate: rate}
		if b.UpTo != "" {
			upTo, err := parseAmount(b.UpTo, fmt.Sprintf("bracket %d up_to", i))
			if err != nil {
				return nil, err
			}
			bracket.UpTo = &upTo
		}
		out = append(out, bracket)
	}
	return out, nil
}

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

func parseAmountDefault(s, name, fallback string) (decimal.Decimal, error) {
	if s == "" {
		s = fallback
	}
	return parseAmount(s, name)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
