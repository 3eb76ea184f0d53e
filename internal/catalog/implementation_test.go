package catalog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loandesk/internal/catalog"
	"loandesk/internal/logger"
	"loandesk/internal/store"
)

func TestAddItem(t *testing.T) {
	ctx := context.Background()
	svc := catalog.NewService(store.NewMemory(), logger.NewNop())

	item, err := svc.AddItem(ctx, " ISBN-1 ", " Dune ")
	require.NoError(t, err)
	assert.Equal(t, catalog.Item{ISBN: "ISBN-1", Title: "Dune", Available: true}, *item)

	_, err = svc.AddItem(ctx, "ISBN-1", "Dune Messiah")
	assert.ErrorIs(t, err, catalog.ErrItemExists)

	_, err = svc.AddItem(ctx, "", "No ISBN")
	assert.ErrorIs(t, err, catalog.ErrInvalidItem)

	got, err := svc.GetItem(ctx, "ISBN-1")
	require.NoError(t, err)
	assert.Equal(t, "Dune", got.Title)
}

func TestGetItem_NotFound(t *testing.T) {
	svc := catalog.NewService(store.NewMemory(), logger.NewNop())
	_, err := svc.GetItem(context.Background(), "missing")
	assert.ErrorIs(t, err, catalog.ErrItemNotFound)
}

func TestRetitleItem_KeepsAvailability(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	svc := catalog.NewService(s, logger.NewNop())

	_, err := svc.AddItem(ctx, "ISBN-1", "Dune")
	require.NoError(t, err)
	item, err := s.GetItem(ctx, "ISBN-1")
	require.NoError(t, err)
	item.MarkBorrowed()
	require.NoError(t, s.PutItem(ctx, *item))

	updated, err := svc.RetitleItem(ctx, "ISBN-1", "Dune (2nd ed.)")
	require.NoError(t, err)
	assert.Equal(t, "Dune (2nd ed.)", updated.Title)
	assert.False(t, updated.Available)

	_, err = svc.RetitleItem(ctx, "ISBN-1", "  ")
	assert.ErrorIs(t, err, catalog.ErrInvalidItem)

	_, err = svc.RetitleItem(ctx, "missing", "Title")
	assert.ErrorIs(t, err, catalog.ErrItemNotFound)
}

func TestListItems_Sorted(t *testing.T) {
	ctx := context.Background()
	svc := catalog.NewService(store.NewMemory(), logger.NewNop())
	for _, isbn := range []string{"C", "A", "B"} {
		_, err := svc.AddItem(ctx, isbn, "Title "+isbn)
		require.NoError(t, err)
	}

	items, err := svc.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{items[0].ISBN, items[1].ISBN, items[2].ISBN})
}

type failingRepo struct{ catalog.Repository }

func (failingRepo) InsertItem(context.Context, catalog.Item) (bool, error) {
	return false, errors.New("disk full")
}

func TestAddItem_RepositoryError(t *testing.T) {
	svc := catalog.NewService(failingRepo{store.NewMemory()}, logger.NewNop())
	_, err := svc.AddItem(context.Background(), "ISBN-1", "Dune")
	require.Error(t, err)
	assert.NotErrorIs(t, err, catalog.ErrItemExists)
	assert.Contains(t, err.Error(), "failed to insert item: disk full")
}
