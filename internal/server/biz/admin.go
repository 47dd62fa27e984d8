package biz

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"

	"github.com/looplj/todohub/internal/log"
	"github.com/looplj/todohub/internal/objects"
	"github.com/looplj/todohub/internal/pkg/xtime"
)

type AdminServiceParams struct {
	fx.In

	UserService    *UserService
	SessionService *SessionService
}

// AdminService holds the user management operations reserved to admins.
// Every method checks the acting user itself.
type AdminService struct {
	UserService    *UserService
	SessionService *SessionService
}

func NewAdminService(params AdminServiceParams) *AdminService {
	return &AdminService{
		UserService:    params.UserService,
		SessionService: params.SessionService,
	}
}

func requireAdmin(actor objects.User) error {
	if actor.Role != objects.UserRoleAdmin {
		return fmt.Errorf("%w: admin role required", ErrForbidden)
	}

	return nil
}

type ListUsersResult struct {
	Users  []objects.User `json:"users"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

func (s *AdminService) ListUsers(ctx context.Context, actor objects.User, input ListUsersInput) (*ListUsersResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	users, total, err := s.UserService.ListUsers(ctx, input)
	if err != nil {
		return nil, err
	}

	if users == nil {
		users = []objects.User{}
	}

	return &ListUsersResult{Users: users, Total: total, Limit: input.Limit, Offset: input.Offset}, nil
}

// SetRole changes the global role of a user.
func (s *AdminService) SetRole(ctx context.Context, actor objects.User, userID, role string) (*objects.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	if role != objects.UserRoleUser && role != objects.UserRoleAdmin {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}

	if err := s.UserService.setRole(ctx, userID, role); err != nil {
		return nil, err
	}

	log.Info(ctx, "user role changed", log.String("user_id", userID), log.String("role", role), log.String("by", actor.ID))

	return s.UserService.GetUserByID(ctx, userID)
}

type BanUserInput struct {
	UserID    string  `json:"userId"`
	BanReason *string `json:"banReason"`
	// BanExpiresIn is in seconds, zero bans forever.
	BanExpiresIn int64 `json:"banExpiresIn"`
}

// BanUser bans a user and revokes all of its sessions.
func (s *AdminService) BanUser(ctx context.Context, actor objects.User, input BanUserInput) (*objects.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	if input.UserID == actor.ID {
		return nil, fmt.Errorf("%w: cannot ban yourself", ErrInvalidInput)
	}

	var expires *time.Time

	if input.BanExpiresIn > 0 {
		t := xtime.Now().Add(time.Duration(input.BanExpiresIn) * time.Second)
		expires = &t
	}

	err := s.UserService.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.UserService.setBan(ctx, input.UserID, true, input.BanReason, expires); err != nil {
			return err
		}

		return s.SessionService.RevokeAllSessions(ctx, input.UserID)
	})
	if err != nil {
		return nil, err
	}

	log.Info(ctx, "user banned", log.String("user_id", input.UserID), log.String("by", actor.ID))

	return s.UserService.GetUserByID(ctx, input.UserID)
}

func (s *AdminService) UnbanUser(ctx context.Context, actor objects.User, userID string) (*objects.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	if err := s.UserService.setBan(ctx, userID, false, nil, nil); err != nil {
		return nil, err
	}

	log.Info(ctx, "user unbanned", log.String("user_id", userID), log.String("by", actor.ID))

	return s.UserService.GetUserByID(ctx, userID)
}

func (s *AdminService) ListUserSessions(ctx context.Context, actor objects.User, userID string) ([]objects.Session, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	sessions, err := s.SessionService.ListSessions(ctx, userID)
	if err != nil {
		return nil, err
	}

	if sessions == nil {
		sessions = []objects.Session{}
	}

	return sessions, nil
}

func (s *AdminService) RevokeUserSessions(ctx context.Context, actor objects.User, userID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	return s.SessionService.RevokeAllSessions(ctx, userID)
}

// RemoveUser deletes a user with its sessions and memberships.
func (s *AdminService) RemoveUser(ctx context.Context, actor objects.User, userID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	if userID == actor.ID {
		return fmt.Errorf("%w: cannot remove yourself", ErrInvalidInput)
	}

	if err := s.UserService.deleteUser(ctx, userID); err != nil {
		return err
	}

	log.Info(ctx, "user removed", log.String("user_id", userID), log.String("by", actor.ID))

	return nil
}
