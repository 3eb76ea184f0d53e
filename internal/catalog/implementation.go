// internal/catalog/implementation.go
package catalog

import (
	"context"
	"fmt"
	"strings"

	"loandesk/internal/logger"
)

// service implements the Service interface.
type service struct {
	repo Repository
	log  *logger.Logger
}

// NewService creates a new catalog service instance.
func NewService(repo Repository, log *logger.Logger) Service {
	return &service{
		repo: repo,
		log:  log.With("component", "catalog"),
	}
}

// AddItem seeds a new, available item into the catalog.
func (s *service) AddItem(ctx context.Context, isbn, title string) (*Item, error) {
	isbn, title = strings.TrimSpace(isbn), strings.TrimSpace(title)
	if isbn == "" || title == "" {
		return nil, fmt.Errorf("%w: isbn and title are required", ErrInvalidItem)
	}

	item := NewItem(isbn, title)
	inserted, err := s.repo.InsertItem(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("failed to insert item: %w", err)
	}
	if !inserted {
		return nil, fmt.Errorf("%w: %s", ErrItemExists, isbn)
	}

	s.log.Info("item added", "isbn", isbn, "title", title)
	return &item, nil
}

// GetItem retrieves an item from the catalog by its ISBN.
func (s *service) GetItem(ctx context.Context, isbn string) (*Item, error) {
	item, err := s.repo.GetItem(ctx, isbn)
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, isbn)
	}
	return item, nil
}

func (s *service) ListItems(ctx context.Context) ([]Item, error) {
	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

// RetitleItem changes the display title. Availability is owned by circulation
// and is never touched here.
func (s *service) RetitleItem(ctx context.Context, isbn, title string) (*Item, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidItem)
	}

	found, err := s.repo.UpdateItemTitle(ctx, isbn, title)
	if err != nil {
		return nil, fmt.Errorf("failed to update item title: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, isbn)
	}

	s.log.Info("item retitled", "isbn", isbn, "title", title)
	return s.GetItem(ctx, isbn)
}
