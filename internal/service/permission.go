package service

import (
	"context"
	"fmt"

	"github.com/syncboard/collab-server/internal/domain/todo"
	"go.uber.org/zap"
)

// MemberReader is the slice of the durable store permission checks need.
type MemberReader interface {
	GetMember(ctx context.Context, listID, userID string) (*todo.Member, error)
}

// PermissionService gates mutations and joins on membership roles.
type PermissionService struct {
	log     *zap.Logger
	members MemberReader
}

func NewPermissionService(log *zap.Logger, members MemberReader) *PermissionService {
	return &PermissionService{
		log:     log.Named("permissions"),
		members: members,
	}
}

// GetUserPermission returns the user's role on a list, or "" when the user
// has no access grant.
func (s *PermissionService) GetUserPermission(ctx context.Context, listID, userID string) (string, error) {
	m, err := s.members.GetMember(ctx, listID, userID)
	if err != nil {
		return "", fmt.Errorf("get member: %w", err)
	}
	if m == nil {
		return "", nil
	}
	return m.Role, nil
}

// CanView reports whether the user holds any role on the list.
func (s *PermissionService) CanView(ctx context.Context, listID, userID string) (bool, error) {
	role, err := s.GetUserPermission(ctx, listID, userID)
	if err != nil {
		return false, err
	}
	return role != "", nil
}

// CanEdit reports whether the user holds an owner or editor role.
func (s *PermissionService) CanEdit(ctx context.Context, listID, userID string) (bool, error) {
	role, err := s.GetUserPermission(ctx, listID, userID)
	if err != nil {
		return false, err
	}
	return todo.RoleCanEdit(role), nil
}

// RequireEditPermission fails with todo.ErrPermissionDenied unless the user
// can edit the list.
func (s *PermissionService) RequireEditPermission(ctx context.Context, listID, userID string) error {
	ok, err := s.CanEdit(ctx, listID, userID)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Debug("edit denied", zap.String("list_id", listID), zap.String("user_id", userID))
		return fmt.Errorf("user %s cannot edit list %s: %w", userID, listID, todo.ErrPermissionDenied)
	}
	return nil
}

// RequireViewPermission fails with todo.ErrPermissionDenied unless the user
// can view the list.
func (s *PermissionService) RequireViewPermission(ctx context.Context, listID, userID string) error {
	ok, err := s.CanView(ctx, listID, userID)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Debug("view denied", zap.String("list_id", listID), zap.String("user_id", userID))
		return fmt.Errorf("user %s cannot view list %s: %w", userID, listID, todo.ErrPermissionDenied)
	}
	return nil
}
