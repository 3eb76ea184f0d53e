// internal/membership/implementation.go
package membership

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"loandesk/internal/logger"
)

// service implements the Service interface.
type service struct {
	repo        Repository
	log         *logger.Logger
	rateLimiter *rate.Limiter
}

// NewService creates a new membership service instance. Registrations are
// limited to registrationsPerMinute; zero or less disables the limit.
func NewService(repo Repository, log *logger.Logger, registrationsPerMinute int) Service {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if registrationsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(registrationsPerMinute)), registrationsPerMinute)
	}

	return &service{
		repo:        repo,
		log:         log.With("component", "membership"),
		rateLimiter: limiter,
	}
}

// RegisterMember creates a new member with no active loans.
func (s *service) RegisterMember(ctx context.Context, id, name string) (*Member, error) {
	if !s.rateLimiter.Allow() {
		return nil, ErrRateLimited
	}

	id, name = strings.TrimSpace(id), strings.TrimSpace(name)
	if id == "" || name == "" {
		return nil, fmt.Errorf("%w: id and name are required", ErrInvalidMember)
	}

	member := NewMember(id, name)
	inserted, err := s.repo.InsertMember(ctx, member)
	if err != nil {
		return nil, fmt.Errorf("failed to insert member: %w", err)
	}
	if !inserted {
		return nil, fmt.Errorf("%w: %s", ErrMemberExists, id)
	}

	s.log.Info("member registered", "member_id", id)
	return &member, nil
}

// GetMember retrieves a member by their ID.
func (s *service) GetMember(ctx context.Context, id string) (*Member, error) {
	member, err := s.repo.GetMember(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	if member == nil {
		return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, id)
	}
	return member, nil
}

func (s *service) ListMembers(ctx context.Context) ([]Member, error) {
	members, err := s.repo.ListMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}
