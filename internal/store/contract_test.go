package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loandesk/internal/catalog"
	"loandesk/internal/circulation"
	"loandesk/internal/membership"
)

var day0 = civil.Date{Year: 2025, Month: time.November, Day: 1}

// testStoreContract exercises the behaviour every backend must share. Keys
// are randomized so a shared database can be reused between runs.
func testStoreContract(t *testing.T, s Store) {
	ctx := context.Background()
	suffix := uuid.NewString()[:8]
	isbn := "ISBN-" + suffix
	memberID := "M-" + suffix

	t.Run("absent entities", func(t *testing.T) {
		item, err := s.GetItem(ctx, "missing-"+suffix)
		require.NoError(t, err)
		assert.Nil(t, item)

		member, err := s.GetMember(ctx, "missing-"+suffix)
		require.NoError(t, err)
		assert.Nil(t, member)

		loan, err := s.GetLoan(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Nil(t, loan)
	})

	t.Run("items", func(t *testing.T) {
		inserted, err := s.InsertItem(ctx, catalog.NewItem(isbn, "Clean Code"))
		require.NoError(t, err)
		assert.True(t, inserted)

		inserted, err = s.InsertItem(ctx, catalog.NewItem(isbn, "Other"))
		require.NoError(t, err)
		assert.False(t, inserted)

		require.NoError(t, s.PutItem(ctx, catalog.Item{ISBN: isbn, Title: "Clean Code", Available: false}))
		found, err := s.UpdateItemTitle(ctx, isbn, "Clean Code, 2nd ed.")
		require.NoError(t, err)
		assert.True(t, found)

		item, err := s.GetItem(ctx, isbn)
		require.NoError(t, err)
		require.NotNil(t, item)
		assert.Equal(t, catalog.Item{ISBN: isbn, Title: "Clean Code, 2nd ed.", Available: false}, *item)

		found, err = s.UpdateItemTitle(ctx, "missing-"+suffix, "x")
		require.NoError(t, err)
		assert.False(t, found)

		items, err := s.ListItems(ctx)
		require.NoError(t, err)
		assert.Contains(t, items, *item)
	})

	t.Run("members", func(t *testing.T) {
		inserted, err := s.InsertMember(ctx, membership.NewMember(memberID, "Ana"))
		require.NoError(t, err)
		assert.True(t, inserted)

		inserted, err = s.InsertMember(ctx, membership.NewMember(memberID, "Luis"))
		require.NoError(t, err)
		assert.False(t, inserted)

		require.NoError(t, s.PutMember(ctx, membership.Member{ID: memberID, Name: "Ana", ActiveLoans: 2}))
		member, err := s.GetMember(ctx, memberID)
		require.NoError(t, err)
		require.NotNil(t, member)
		assert.Equal(t, 2, member.ActiveLoans)

		members, err := s.ListMembers(ctx)
		require.NoError(t, err)
		assert.Contains(t, members, *member)
	})

	t.Run("loans and active queries", func(t *testing.T) {
		active := circulation.NewLoan(isbn, memberID, day0, 14)
		require.NoError(t, s.PutLoan(ctx, active))

		closed := circulation.NewLoan(isbn, memberID, day0.AddDays(-30), 14)
		require.NoError(t, closed.MarkReturned(day0.AddDays(-20)))
		require.NoError(t, s.PutLoan(ctx, closed))

		got, err := s.GetLoan(ctx, closed.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, closed, *got)

		forItem, err := s.FindActiveLoanForItem(ctx, isbn)
		require.NoError(t, err)
		require.NotNil(t, forItem)
		assert.Equal(t, active, *forItem)

		forMember, err := s.FindActiveLoansForMember(ctx, memberID)
		require.NoError(t, err)
		assert.Equal(t, []circulation.Loan{active}, forMember)

		require.NoError(t, active.MarkReturned(day0.AddDays(3)))
		require.NoError(t, s.PutLoan(ctx, active))

		forItem, err = s.FindActiveLoanForItem(ctx, isbn)
		require.NoError(t, err)
		assert.Nil(t, forItem)

		forMember, err = s.FindActiveLoansForMember(ctx, memberID)
		require.NoError(t, err)
		assert.Empty(t, forMember)

		all, err := s.ListLoans(ctx)
		require.NoError(t, err)
		assert.Contains(t, all, active)
		assert.Contains(t, all, closed)
	})

	t.Run("atomically discards writes on error", func(t *testing.T) {
		boom := errors.New("boom")
		loan := circulation.NewLoan(isbn, memberID, day0, 14)

		err := s.Atomically(ctx, func(tx circulation.Store) error {
			require.NoError(t, tx.PutItem(ctx, catalog.Item{ISBN: isbn, Title: "changed", Available: true}))
			require.NoError(t, tx.PutMember(ctx, membership.Member{ID: memberID, Name: "changed"}))
			require.NoError(t, tx.PutLoan(ctx, loan))
			return boom
		})
		require.ErrorIs(t, err, boom)

		item, err := s.GetItem(ctx, isbn)
		require.NoError(t, err)
		assert.Equal(t, "Clean Code, 2nd ed.", item.Title)
		assert.False(t, item.Available)

		member, err := s.GetMember(ctx, memberID)
		require.NoError(t, err)
		assert.Equal(t, "Ana", member.Name)

		got, err := s.GetLoan(ctx, loan.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("atomically keeps writes on success", func(t *testing.T) {
		loan := circulation.NewLoan(isbn, memberID, day0, 14)

		err := s.Atomically(ctx, func(tx circulation.Store) error {
			if err := tx.PutLoan(ctx, loan); err != nil {
				return err
			}
			got, err := tx.FindActiveLoanForItem(ctx, isbn)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, loan.ID, got.ID)
			return nil
		})
		require.NoError(t, err)

		got, err := s.GetLoan(ctx, loan.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.IsActive())
	})
}
