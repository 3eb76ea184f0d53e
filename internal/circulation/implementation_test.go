package circulation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loandesk/internal/catalog"
	"loandesk/internal/circulation"
	"loandesk/internal/clock"
	"loandesk/internal/logger"
	"loandesk/internal/membership"
	"loandesk/internal/store"
)

var day0 = civil.Date{Year: 2025, Month: time.November, Day: 1}

type fixture struct {
	ctx   context.Context
	store *store.Memory
	clock *clock.Fixed
	svc   circulation.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemory()

	for isbn, title := range map[string]string{
		"ISBN-001": "Clean Code",
		"ISBN-002": "Domain-Driven Design",
		"ISBN-003": "Refactoring",
		"ISBN-004": "Patterns",
	} {
		require.NoError(t, s.PutItem(ctx, catalog.NewItem(isbn, title)))
	}
	require.NoError(t, s.PutMember(ctx, membership.NewMember("M-01", "Ana")))
	require.NoError(t, s.PutMember(ctx, membership.NewMember("M-02", "Luis")))

	clk := clock.NewFixed(day0)
	return &fixture{
		ctx:   ctx,
		store: s,
		clock: clk,
		svc:   circulation.NewService(s, clk, circulation.DefaultPolicy(), logger.NewNop()),
	}
}

func (f *fixture) item(t *testing.T, isbn string) catalog.Item {
	t.Helper()
	item, err := f.store.GetItem(f.ctx, isbn)
	require.NoError(t, err)
	require.NotNil(t, item)
	return *item
}

func (f *fixture) member(t *testing.T, id string) membership.Member {
	t.Helper()
	member, err := f.store.GetMember(f.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, member)
	return *member
}

func TestIssueThenReturnOnTime(t *testing.T) {
	f := newFixture(t)

	loan, err := f.svc.Issue(f.ctx, "ISBN-001", "M-01")
	require.NoError(t, err)
	assert.NotEmpty(t, loan.ID)
	assert.Equal(t, day0, loan.LoanDate)
	assert.Equal(t, civil.Date{Year: 2025, Month: time.November, Day: 15}, loan.DueDate)
	assert.True(t, loan.IsActive())
	assert.False(t, f.item(t, "ISBN-001").Available)
	assert.Equal(t, 1, f.member(t, "M-01").ActiveLoans)

	f.clock.Advance(5)
	receipt, err := f.svc.Return(f.ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, circulation.Money(0), receipt.Fee)
	assert.Equal(t, 0, receipt.DaysLate)
	assert.Equal(t, civil.Date{Year: 2025, Month: time.November, Day: 6}, receipt.ReturnDate)

	assert.True(t, f.item(t, "ISBN-001").Available)
	assert.Equal(t, 0, f.member(t, "M-01").ActiveLoans)

	stored, err := f.svc.GetLoan(f.ctx, loan.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ReturnDate)
	assert.Equal(t, receipt.ReturnDate, *stored.ReturnDate)
}

func TestIssueRejectsItemOnLoan(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Issue(f.ctx, "ISBN-002", "M-01")
	require.NoError(t, err)

	_, err = f.svc.Issue(f.ctx, "ISBN-002", "M-02")
	require.ErrorIs(t, err, circulation.ErrItemUnavailable)
	assert.Equal(t, circulation.KindItemUnavailable, circulation.KindOf(err))
	assert.Contains(t, err.Error(), "item unavailable")
	assert.Contains(t, err.Error(), "ISBN-002")
	assert.Equal(t, 0, f.member(t, "M-02").ActiveLoans)
}

func TestIssueLoanLimit(t *testing.T) {
	f := newFixture(t)

	for _, isbn := range []string{"ISBN-001", "ISBN-002"} {
		_, err := f.svc.Issue(f.ctx, isbn, "M-01")
		require.NoError(t, err)
	}

	// Two active loans still allow a third.
	_, err := f.svc.Issue(f.ctx, "ISBN-003", "M-01")
	require.NoError(t, err)

	_, err = f.svc.Issue(f.ctx, "ISBN-004", "M-01")
	require.ErrorIs(t, err, circulation.ErrLoanLimitReached)
	assert.Contains(t, err.Error(), "loan limit reached")
	assert.True(t, f.item(t, "ISBN-004").Available)
	assert.Equal(t, 3, f.member(t, "M-01").ActiveLoans)
}

func TestIssueRejectsMemberWithOverdueLoan(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Issue(f.ctx, "ISBN-001", "M-02")
	require.NoError(t, err)

	f.clock.Advance(20)
	_, err = f.svc.Issue(f.ctx, "ISBN-002", "M-02")
	require.ErrorIs(t, err, circulation.ErrMemberHasOverdueLoan)
	assert.Contains(t, err.Error(), "member has overdue loan")
}

func TestIssueAllowsLoanDueToday(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Issue(f.ctx, "ISBN-001", "M-02")
	require.NoError(t, err)

	// On the due date the loan is not yet overdue.
	f.clock.Advance(14)
	_, err = f.svc.Issue(f.ctx, "ISBN-002", "M-02")
	require.NoError(t, err)

	f.clock.Advance(1)
	_, err = f.svc.Issue(f.ctx, "ISBN-003", "M-02")
	require.ErrorIs(t, err, circulation.ErrMemberHasOverdueLoan)
}

func TestReturnChargesLateFee(t *testing.T) {
	f := newFixture(t)

	loan, err := f.svc.Issue(f.ctx, "ISBN-003", "M-01")
	require.NoError(t, err)

	f.clock.Advance(17)
	receipt, err := f.svc.Return(f.ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, receipt.DaysLate)
	assert.Equal(t, circulation.Money(450), receipt.Fee)
	assert.Equal(t, "4.50", receipt.Fee.String())
}

func TestReturnOnDueDateIsFree(t *testing.T) {
	f := newFixture(t)

	loan, err := f.svc.Issue(f.ctx, "ISBN-001", "M-01")
	require.NoError(t, err)

	f.clock.Set(loan.DueDate)
	receipt, err := f.svc.Return(f.ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, circulation.Money(0), receipt.Fee)
}

func TestReturnTwiceFails(t *testing.T) {
	f := newFixture(t)

	loan, err := f.svc.Issue(f.ctx, "ISBN-001", "M-01")
	require.NoError(t, err)

	_, err = f.svc.Return(f.ctx, loan.ID)
	require.NoError(t, err)

	_, err = f.svc.Return(f.ctx, loan.ID)
	require.ErrorIs(t, err, circulation.ErrLoanAlreadyReturned)
	assert.Contains(t, err.Error(), loan.ID)
	assert.Equal(t, 0, f.member(t, "M-01").ActiveLoans)
}

func TestNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Issue(f.ctx, "ISBN-999", "M-01")
	require.ErrorIs(t, err, circulation.ErrItemNotFound)
	require.ErrorIs(t, err, circulation.ErrNotFound)
	assert.Contains(t, err.Error(), "ISBN-999")

	_, err = f.svc.Issue(f.ctx, "ISBN-001", "M-99")
	require.ErrorIs(t, err, circulation.ErrMemberNotFound)
	assert.NotErrorIs(t, err, circulation.ErrItemNotFound)
	assert.True(t, f.item(t, "ISBN-001").Available)

	_, err = f.svc.Return(f.ctx, "no-such-loan")
	require.ErrorIs(t, err, circulation.ErrLoanNotFound)

	_, err = f.svc.GetLoan(f.ctx, "no-such-loan")
	require.ErrorIs(t, err, circulation.ErrLoanNotFound)

	_, err = f.svc.ActiveLoans(f.ctx, "M-99")
	require.ErrorIs(t, err, circulation.ErrMemberNotFound)
}

func TestIssueCheckOrder(t *testing.T) {
	t.Run("unavailable item before missing member", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Issue(f.ctx, "ISBN-001", "M-01")
		require.NoError(t, err)

		_, err = f.svc.Issue(f.ctx, "ISBN-001", "M-99")
		require.ErrorIs(t, err, circulation.ErrItemUnavailable)
	})

	t.Run("loan limit before overdue", func(t *testing.T) {
		f := newFixture(t)
		for _, isbn := range []string{"ISBN-001", "ISBN-002", "ISBN-003"} {
			_, err := f.svc.Issue(f.ctx, isbn, "M-01")
			require.NoError(t, err)
		}
		f.clock.Advance(30)

		_, err := f.svc.Issue(f.ctx, "ISBN-004", "M-01")
		require.ErrorIs(t, err, circulation.ErrLoanLimitReached)
	})

	t.Run("active loan behind an available flag", func(t *testing.T) {
		f := newFixture(t)
		loan, err := f.svc.Issue(f.ctx, "ISBN-001", "M-01")
		require.NoError(t, err)

		// Desynchronize the flag from the loans.
		require.NoError(t, f.store.PutItem(f.ctx, catalog.NewItem("ISBN-001", "Clean Code")))

		_, err = f.svc.Issue(f.ctx, "ISBN-001", "M-02")
		require.ErrorIs(t, err, circulation.ErrItemAlreadyOnLoan)
		assert.Equal(t, circulation.KindItemUnavailable, circulation.KindOf(err))
		assert.Contains(t, err.Error(), "item already on loan")

		active, err := f.store.FindActiveLoanForItem(f.ctx, "ISBN-001")
		require.NoError(t, err)
		assert.Equal(t, loan.ID, active.ID)
	})
}

func TestLimitUsesStoreNotCounter(t *testing.T) {
	f := newFixture(t)

	// A drifted counter must not block or allow loans on its own.
	require.NoError(t, f.store.PutMember(f.ctx, membership.Member{ID: "M-01", Name: "Ana", ActiveLoans: 7}))

	_, err := f.svc.Issue(f.ctx, "ISBN-001", "M-01")
	require.NoError(t, err)
	assert.Equal(t, 8, f.member(t, "M-01").ActiveLoans)
}

func TestReturnConsistencyFault(t *testing.T) {
	t.Run("missing item", func(t *testing.T) {
		f := newFixture(t)
		orphan := circulation.NewLoan("ISBN-GONE", "M-01", day0, 14)
		require.NoError(t, f.store.PutLoan(f.ctx, orphan))

		_, err := f.svc.Return(f.ctx, orphan.ID)
		require.ErrorIs(t, err, circulation.ErrConsistencyFault)
		require.ErrorIs(t, err, circulation.ErrLoanItemMissing)
		assert.NotErrorIs(t, err, circulation.ErrNotFound)
		assert.Contains(t, err.Error(), "ISBN-GONE")

		// The unit of work is discarded, so the loan stays open.
		stored, err := f.svc.GetLoan(f.ctx, orphan.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsActive())
	})

	t.Run("missing member", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.PutItem(f.ctx, catalog.Item{ISBN: "ISBN-001", Title: "Clean Code"}))
		orphan := circulation.NewLoan("ISBN-001", "M-GONE", day0, 14)
		require.NoError(t, f.store.PutLoan(f.ctx, orphan))

		_, err := f.svc.Return(f.ctx, orphan.ID)
		require.ErrorIs(t, err, circulation.ErrLoanMemberMissing)
		assert.Equal(t, circulation.KindConsistencyFault, circulation.KindOf(err))

		assert.False(t, f.item(t, "ISBN-001").Available)
	})
}

func TestReturnFloorsCounterAtZero(t *testing.T) {
	f := newFixture(t)

	loan, err := f.svc.Issue(f.ctx, "ISBN-001", "M-01")
	require.NoError(t, err)
	require.NoError(t, f.store.PutMember(f.ctx, membership.NewMember("M-01", "Ana")))

	_, err = f.svc.Return(f.ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, f.member(t, "M-01").ActiveLoans)
}

func TestActiveLoans(t *testing.T) {
	f := newFixture(t)

	first, err := f.svc.Issue(f.ctx, "ISBN-001", "M-01")
	require.NoError(t, err)
	f.clock.Advance(10)
	second, err := f.svc.Issue(f.ctx, "ISBN-002", "M-01")
	require.NoError(t, err)

	f.clock.Advance(6)
	loans, err := f.svc.ActiveLoans(f.ctx, "M-01")
	require.NoError(t, err)
	require.Len(t, loans, 2)

	assert.Equal(t, first.ID, loans[0].ID)
	assert.True(t, loans[0].Overdue)
	assert.Equal(t, 2, loans[0].DaysLate)
	assert.Equal(t, circulation.Money(300), loans[0].AccruedFee)

	assert.Equal(t, second.ID, loans[1].ID)
	assert.False(t, loans[1].Overdue)
	assert.Equal(t, circulation.Money(0), loans[1].AccruedFee)
}

func TestCustomPolicy(t *testing.T) {
	f := newFixture(t)
	policy := circulation.Policy{LoanPeriodDays: 7, MaxActiveLoans: 1, DailyLateFee: 25}
	svc := circulation.NewService(f.store, f.clock, policy, logger.NewNop())

	loan, err := svc.Issue(f.ctx, "ISBN-001", "M-01")
	require.NoError(t, err)
	assert.Equal(t, day0.AddDays(7), loan.DueDate)

	_, err = svc.Issue(f.ctx, "ISBN-002", "M-01")
	require.ErrorIs(t, err, circulation.ErrLoanLimitReached)

	f.clock.Advance(11)
	receipt, err := svc.Return(f.ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, circulation.Money(100), receipt.Fee)
}

// plainStore hides the memory store's unit of work.
type plainStore struct {
	circulation.Store
}

func TestWorksWithoutTransactor(t *testing.T) {
	f := newFixture(t)
	svc := circulation.NewService(plainStore{f.store}, f.clock, circulation.DefaultPolicy(), logger.NewNop())

	loan, err := svc.Issue(f.ctx, "ISBN-001", "M-01")
	require.NoError(t, err)

	f.clock.Advance(15)
	receipt, err := svc.Return(f.ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, circulation.Money(150), receipt.Fee)
}

// failingStore fails every loan query.
type failingStore struct {
	circulation.Store
	err error
}

func (s failingStore) FindActiveLoanForItem(context.Context, string) (*circulation.Loan, error) {
	return nil, s.err
}

func TestBackendErrorsAreNotRuleFailures(t *testing.T) {
	f := newFixture(t)
	backend := errors.New("connection reset")
	svc := circulation.NewService(failingStore{Store: f.store, err: backend}, f.clock, circulation.DefaultPolicy(), logger.NewNop())

	_, err := svc.Issue(f.ctx, "ISBN-001", "M-01")
	require.ErrorIs(t, err, backend)
	assert.Equal(t, circulation.KindUnknown, circulation.KindOf(err))
	assert.True(t, f.item(t, "ISBN-001").Available)
}
