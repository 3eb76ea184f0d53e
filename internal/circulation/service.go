// internal/circulation/service.go
package circulation

import (
	"context"

	"loandesk/internal/catalog"
	"loandesk/internal/membership"
)

// Service defines the interface for the circulation service.
type Service interface {
	// Issue lends an item to a member.
	Issue(ctx context.Context, isbn, memberID string) (*Loan, error)
	// Return closes a loan and returns the late fee owed.
	Return(ctx context.Context, loanID string) (*Receipt, error)
	GetLoan(ctx context.Context, loanID string) (*Loan, error)
	// ActiveLoans lists a member's open loans as of today.
	ActiveLoans(ctx context.Context, memberID string) ([]LoanStatus, error)
}

// Store is the keyed storage the engine works against. Lookups return
// nil, nil when nothing matches. Put methods create or replace without
// validation.
type Store interface {
	GetItem(ctx context.Context, isbn string) (*catalog.Item, error)
	PutItem(ctx context.Context, item catalog.Item) error
	GetMember(ctx context.Context, id string) (*membership.Member, error)
	PutMember(ctx context.Context, member membership.Member) error
	GetLoan(ctx context.Context, id string) (*Loan, error)
	PutLoan(ctx context.Context, loan Loan) error
	// FindActiveLoanForItem returns the single active loan for isbn.
	FindActiveLoanForItem(ctx context.Context, isbn string) (*Loan, error)
	FindActiveLoansForMember(ctx context.Context, memberID string) ([]Loan, error)
}

// Transactor is implemented by stores that can apply a group of writes as
// one unit. Every write made through the Store handed to fn is kept when fn
// returns nil and discarded otherwise.
type Transactor interface {
	Atomically(ctx context.Context, fn func(Store) error) error
}
