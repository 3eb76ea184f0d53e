// internal/membership/service.go
package membership

import (
	"context"
	"errors"
)

var (
	ErrMemberNotFound = errors.New("member not found")
	ErrMemberExists   = errors.New("member already exists")
	ErrInvalidMember  = errors.New("invalid member")
	ErrRateLimited    = errors.New("rate limit exceeded")
)

// Service defines the interface for the membership service.
type Service interface {
	RegisterMember(ctx context.Context, id, name string) (*Member, error)
	GetMember(ctx context.Context, id string) (*Member, error)
	ListMembers(ctx context.Context) ([]Member, error)
}

// Repository is the slice of the entity store membership needs. Lookups
// return nil, nil when the member does not exist.
type Repository interface {
	GetMember(ctx context.Context, id string) (*Member, error)
	ListMembers(ctx context.Context) ([]Member, error)
	// InsertMember stores member unless its ID is taken and reports whether it did.
	InsertMember(ctx context.Context, member Member) (bool, error)
}
