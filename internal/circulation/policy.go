// internal/circulation/policy.go
package circulation

import (
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
)

const (
	DefaultLoanPeriodDays       = 14
	DefaultMaxActiveLoans       = 3
	DefaultDailyLateFee   Money = 150
)

// Policy holds the lending rules applied by the engine.
type Policy struct {
	LoanPeriodDays int
	MaxActiveLoans int
	DailyLateFee   Money
}

func DefaultPolicy() Policy {
	return Policy{
		LoanPeriodDays: DefaultLoanPeriodDays,
		MaxActiveLoans: DefaultMaxActiveLoans,
		DailyLateFee:   DefaultDailyLateFee,
	}
}

func (p Policy) Validate() error {
	var errs []error
	if p.LoanPeriodDays < 1 {
		errs = append(errs, fmt.Errorf("loan period must be at least one day, got %d", p.LoanPeriodDays))
	}
	if p.MaxActiveLoans < 1 {
		errs = append(errs, fmt.Errorf("max active loans must be at least one, got %d", p.MaxActiveLoans))
	}
	if p.DailyLateFee < 0 {
		errs = append(errs, fmt.Errorf("daily late fee must not be negative, got %s", p.DailyLateFee))
	}
	return errors.Join(errs...)
}

// LateFee charges the daily fee for every calendar day asOf lies after the
// loan's due date.
func (p Policy) LateFee(loan Loan, asOf civil.Date) Money {
	return p.DailyLateFee.Times(loan.DaysLate(asOf))
}
