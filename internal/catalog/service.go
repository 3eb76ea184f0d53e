// internal/catalog/service.go
package catalog

import (
	"context"
	"errors"
)

var (
	ErrItemNotFound = errors.New("item not found")
	ErrItemExists   = errors.New("item already exists")
	ErrInvalidItem  = errors.New("invalid item")
)

// Service defines the interface for the catalog service.
type Service interface {
	AddItem(ctx context.Context, isbn, title string) (*Item, error)
	GetItem(ctx context.Context, isbn string) (*Item, error)
	ListItems(ctx context.Context) ([]Item, error)
	RetitleItem(ctx context.Context, isbn, title string) (*Item, error)
}

// Repository is the slice of the entity store the catalog needs. Lookups
// return nil, nil when the item does not exist.
type Repository interface {
	GetItem(ctx context.Context, isbn string) (*Item, error)
	ListItems(ctx context.Context) ([]Item, error)
	// InsertItem stores item unless its ISBN is taken and reports whether it did.
	InsertItem(ctx context.Context, item Item) (bool, error)
	// UpdateItemTitle changes only the title and reports whether the item exists.
	UpdateItemTitle(ctx context.Context, isbn, title string) (bool, error)
}
