package users

import (
	"context"
	"fmt"
	"slices"
)

const roleAdmin = "ADMIN"

// Service handles user administration logic. Every operation gates on the
// requester holding the admin role.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns all users for an admin requester.
func (s *Service) ListUsers(ctx context.Context, requesterID int64) ([]User, error) {
	if err := s.requireAdmin(ctx, requesterID); err != nil {
		return nil, err
	}
	return s.repo.ListUsers(ctx)
}

// GetUser returns one user for an admin requester.
func (s *Service) GetUser(ctx context.Context, requesterID, id int64) (*User, error) {
	if err := s.requireAdmin(ctx, requesterID); err != nil {
		return nil, err
	}
	return s.repo.GetUser(ctx, id)
}

// DeleteUser removes a user for an admin requester.
func (s *Service) DeleteUser(ctx context.Context, requesterID, id int64) error {
	if err := s.requireAdmin(ctx, requesterID); err != nil {
		return err
	}
	return s.repo.DeleteUser(ctx, id)
}

func (s *Service) requireAdmin(ctx context.Context, requesterID int64) error {
	requester, err := s.repo.GetUser(ctx, requesterID)
	if err != nil {
		return fmt.Errorf("check requester: %w", err)
	}
	if !slices.Contains(requester.Roles, roleAdmin) {
		return ErrForbidden
	}
	return nil
}
