// internal/circulation/implementation.go
package circulation

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/civil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"loandesk/internal/clock"
	"loandesk/internal/logger"
)

const instrumentationName = "loandesk/circulation"

// service implements the Service interface.
type service struct {
	store  Store
	clock  clock.Clock
	policy Policy
	log    *logger.Logger
	tracer trace.Tracer

	loansIssued   metric.Int64Counter
	loansReturned metric.Int64Counter
	loansRejected metric.Int64Counter
	lateFees      metric.Int64Counter

	// mu serializes Issue and Return. Both read, check and then write several
	// entities, which is not safe to interleave.
	mu sync.Mutex
}

// NewService creates a circulation engine over store, reading dates from clk.
func NewService(store Store, clk clock.Clock, policy Policy, log *logger.Logger) Service {
	meter := otel.Meter(instrumentationName)
	return &service{
		store:         store,
		clock:         clk,
		policy:        policy,
		log:           log.With("component", "circulation"),
		tracer:        otel.Tracer(instrumentationName),
		loansIssued:   counter(meter, "circulation.loans.issued", "Loans issued"),
		loansReturned: counter(meter, "circulation.loans.returned", "Loans returned"),
		loansRejected: counter(meter, "circulation.loans.rejected", "Issue or return attempts rejected"),
		lateFees:      counter(meter, "circulation.late_fees", "Late fees charged, in hundredths"),
	}
}

func counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}

// Issue lends an item to a member after checking, in order: the item exists,
// is flagged available and has no active loan; the member exists, holds fewer
// than the allowed number of active loans and has nothing overdue.
func (s *service) Issue(ctx context.Context, isbn, memberID string) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.issue",
		trace.WithAttributes(
			attribute.String("item.isbn", isbn),
			attribute.String("member.id", memberID),
		),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.clock.Today()
	var loan Loan
	err := s.atomically(ctx, func(st Store) error {
		var err error
		loan, err = s.issue(ctx, st, isbn, memberID, today)
		return err
	})
	if err != nil {
		s.reject(ctx, span, "issue", err, "isbn", isbn, "member_id", memberID)
		return nil, err
	}

	s.loansIssued.Add(ctx, 1)
	span.SetAttributes(
		attribute.String("loan.id", loan.ID),
		attribute.String("loan.due_date", loan.DueDate.String()),
	)
	s.log.Info("loan issued",
		"loan_id", loan.ID,
		"isbn", isbn,
		"member_id", memberID,
		"due_date", loan.DueDate.String(),
	)
	return &loan, nil
}

func (s *service) issue(ctx context.Context, st Store, isbn, memberID string, today civil.Date) (Loan, error) {
	item, err := st.GetItem(ctx, isbn)
	if err != nil {
		return Loan{}, fmt.Errorf("failed to get item: %w", err)
	}
	if item == nil {
		return Loan{}, newError(ErrItemNotFound, isbn)
	}
	if !item.Available {
		return Loan{}, newError(ErrItemUnavailable, isbn)
	}

	// The flag should already cover this; the loan query catches a flag that
	// drifted from the loans.
	current, err := st.FindActiveLoanForItem(ctx, isbn)
	if err != nil {
		return Loan{}, fmt.Errorf("failed to find active loan for item: %w", err)
	}
	if current != nil {
		return Loan{}, newError(ErrItemAlreadyOnLoan, isbn)
	}

	member, err := st.GetMember(ctx, memberID)
	if err != nil {
		return Loan{}, fmt.Errorf("failed to get member: %w", err)
	}
	if member == nil {
		return Loan{}, newError(ErrMemberNotFound, memberID)
	}

	active, err := st.FindActiveLoansForMember(ctx, memberID)
	if err != nil {
		return Loan{}, fmt.Errorf("failed to find active loans for member: %w", err)
	}
	if len(active) >= s.policy.MaxActiveLoans {
		return Loan{}, newError(ErrLoanLimitReached, memberID)
	}
	for _, l := range active {
		if l.IsOverdue(today) {
			return Loan{}, newError(ErrMemberHasOverdueLoan, memberID)
		}
	}

	loan := NewLoan(isbn, memberID, today, s.policy.LoanPeriodDays)

	item.MarkBorrowed()
	if err := st.PutItem(ctx, *item); err != nil {
		return Loan{}, fmt.Errorf("failed to put item: %w", err)
	}
	member.IncrementLoans()
	if err := st.PutMember(ctx, *member); err != nil {
		return Loan{}, fmt.Errorf("failed to put member: %w", err)
	}
	if err := st.PutLoan(ctx, loan); err != nil {
		return Loan{}, fmt.Errorf("failed to put loan: %w", err)
	}

	return loan, nil
}

// Return closes an active loan, puts the item back on the shelf, releases the
// member's slot and charges the daily fee for each day past the due date.
// The fee is reported, not stored.
func (s *service) Return(ctx context.Context, loanID string) (*Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.return",
		trace.WithAttributes(attribute.String("loan.id", loanID)),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.clock.Today()
	var receipt Receipt
	err := s.atomically(ctx, func(st Store) error {
		var err error
		receipt, err = s.returnLoan(ctx, st, loanID, today)
		return err
	})
	if err != nil {
		s.reject(ctx, span, "return", err, "loan_id", loanID)
		return nil, err
	}

	s.loansReturned.Add(ctx, 1)
	if receipt.Fee > 0 {
		s.lateFees.Add(ctx, int64(receipt.Fee))
	}
	span.SetAttributes(
		attribute.Int("loan.days_late", receipt.DaysLate),
		attribute.Int64("loan.fee", int64(receipt.Fee)),
	)
	s.log.Info("loan returned",
		"loan_id", loanID,
		"days_late", receipt.DaysLate,
		"fee", receipt.Fee.String(),
	)
	return &receipt, nil
}

func (s *service) returnLoan(ctx context.Context, st Store, loanID string, today civil.Date) (Receipt, error) {
	loan, err := st.GetLoan(ctx, loanID)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to get loan: %w", err)
	}
	if loan == nil {
		return Receipt{}, newError(ErrLoanNotFound, loanID)
	}
	if err := loan.MarkReturned(today); err != nil {
		return Receipt{}, err
	}
	if err := st.PutLoan(ctx, *loan); err != nil {
		return Receipt{}, fmt.Errorf("failed to put loan: %w", err)
	}

	item, err := st.GetItem(ctx, loan.ItemISBN)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to get item: %w", err)
	}
	if item == nil {
		return Receipt{}, newError(ErrLoanItemMissing, loan.ItemISBN)
	}
	item.MarkReturned()
	if err := st.PutItem(ctx, *item); err != nil {
		return Receipt{}, fmt.Errorf("failed to put item: %w", err)
	}

	member, err := st.GetMember(ctx, loan.MemberID)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to get member: %w", err)
	}
	if member == nil {
		return Receipt{}, newError(ErrLoanMemberMissing, loan.MemberID)
	}
	member.DecrementLoans()
	if err := st.PutMember(ctx, *member); err != nil {
		return Receipt{}, fmt.Errorf("failed to put member: %w", err)
	}

	return Receipt{
		LoanID:     loan.ID,
		ReturnDate: today,
		DaysLate:   loan.DaysLate(today),
		Fee:        s.policy.LateFee(*loan, today),
	}, nil
}

// GetLoan retrieves a loan by its ID.
func (s *service) GetLoan(ctx context.Context, loanID string) (*Loan, error) {
	loan, err := s.store.GetLoan(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	if loan == nil {
		return nil, newError(ErrLoanNotFound, loanID)
	}
	return loan, nil
}

// ActiveLoans lists the member's open loans with what returning each today
// would cost.
func (s *service) ActiveLoans(ctx context.Context, memberID string) ([]LoanStatus, error) {
	member, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	if member == nil {
		return nil, newError(ErrMemberNotFound, memberID)
	}

	loans, err := s.store.FindActiveLoansForMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to find active loans for member: %w", err)
	}

	today := s.clock.Today()
	statuses := make([]LoanStatus, 0, len(loans))
	for _, l := range loans {
		statuses = append(statuses, LoanStatus{
			Loan:       l,
			Overdue:    l.IsOverdue(today),
			DaysLate:   l.DaysLate(today),
			AccruedFee: s.policy.LateFee(l, today),
		})
	}
	return statuses, nil
}

func (s *service) atomically(ctx context.Context, fn func(Store) error) error {
	if tx, ok := s.store.(Transactor); ok {
		return tx.Atomically(ctx, fn)
	}
	return fn(s.store)
}

// reject records a failed operation. Rule violations are expected and logged
// quietly; consistency faults and backend errors are logged as errors.
func (s *service) reject(ctx context.Context, span trace.Span, op string, err error, keysAndValues ...interface{}) {
	kind := KindOf(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String("error.kind", kind.String()))
	s.loansRejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("kind", kind.String()),
	))

	kv := append([]interface{}{"operation", op, "kind", kind.String(), "error", err.Error()}, keysAndValues...)
	switch kind {
	case KindConsistencyFault:
		s.log.Error("circulation store is inconsistent", kv...)
	case KindUnknown:
		s.log.Error("circulation operation failed", kv...)
	default:
		s.log.Debug("circulation rule rejected request", kv...)
	}
}
