/*
errors.go - Calculator error kinds

PURPOSE:
  Sentinel and structured errors for payroll computation. Callers match
  with errors.Is; the structured type carries enough context to report a
  per-employee failure without re-parsing message strings.
*/
package payroll

import (
	"errors"
	"fmt"

	"github.com/warp/payroll-engine/employee"
)

var (
	// ErrInvalidPayrollInput is returned when a period input is malformed
	// or produces an impossible result (e.g. deductions exceeding gross).
	ErrInvalidPayrollInput = errors.New("invalid payroll input")
)

// InvalidInputError reports why a specific employee's period input could
// not be computed.
type InvalidInputError struct {
	EmployeeID employee.ID
	Reason     string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid payroll input for %s: %s", e.EmployeeID, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidPayrollInput }

func invalidInput(id employee.ID, format string, args ...any) error {
	return &InvalidInputError{EmployeeID: id, Reason: fmt.Sprintf(format, args...)}
}
