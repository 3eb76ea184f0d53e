// internal/circulation/domain.go
package circulation

import (
	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// Loan records one item lent to one member. A loan is active until its
// ReturnDate is set, which happens exactly once.
type Loan struct {
	ID         string      `json:"id"`
	ItemISBN   string      `json:"isbn"`
	MemberID   string      `json:"member_id"`
	LoanDate   civil.Date  `json:"loan_date"`
	DueDate    civil.Date  `json:"due_date"`
	ReturnDate *civil.Date `json:"return_date,omitempty"`
}

// NewLoan opens an active loan starting today and due loanPeriodDays later.
func NewLoan(isbn, memberID string, today civil.Date, loanPeriodDays int) Loan {
	return Loan{
		ID:       uuid.NewString(),
		ItemISBN: isbn,
		MemberID: memberID,
		LoanDate: today,
		DueDate:  today.AddDays(loanPeriodDays),
	}
}

func (l Loan) IsActive() bool {
	return l.ReturnDate == nil
}

// IsOverdue reports whether the loan is active and its due date lies strictly
// before today.
func (l Loan) IsOverdue(today civil.Date) bool {
	return l.IsActive() && today.After(l.DueDate)
}

// DaysLate counts whole calendar days between the due date and asOf, or zero
// when asOf is on or before the due date.
func (l Loan) DaysLate(asOf civil.Date) int {
	if !asOf.After(l.DueDate) {
		return 0
	}
	return asOf.DaysSince(l.DueDate)
}

// MarkReturned closes the loan. Closing a returned loan fails.
func (l *Loan) MarkReturned(today civil.Date) error {
	if !l.IsActive() {
		return newError(ErrLoanAlreadyReturned, l.ID)
	}
	l.ReturnDate = &today
	return nil
}

// LoanStatus is an active loan as seen on a given day.
type LoanStatus struct {
	Loan
	Overdue    bool  `json:"overdue"`
	DaysLate   int   `json:"days_late"`
	AccruedFee Money `json:"accrued_fee"`
}

// Receipt is the outcome of a return.
type Receipt struct {
	LoanID     string     `json:"loan_id"`
	ReturnDate civil.Date `json:"return_date"`
	DaysLate   int        `json:"days_late"`
	Fee        Money      `json:"fee"`
}
