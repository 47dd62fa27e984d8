package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"go.uber.org/fx"

	"github.com/looplj/todohub/internal/log"
	"github.com/looplj/todohub/internal/objects"
	"github.com/looplj/todohub/internal/pkg/xcache"
	"github.com/looplj/todohub/internal/pkg/xtime"
	"github.com/looplj/todohub/internal/server/db"
)

type UserServiceParams struct {
	fx.In

	CacheConfig xcache.Config
	DB          *db.Client
}

type UserService struct {
	*AbstractService

	UserCache xcache.Cache[objects.User]
}

func NewUserService(params UserServiceParams) (*UserService, error) {
	cache, err := xcache.NewFromConfig[objects.User](context.Background(), params.CacheConfig)
	if err != nil {
		return nil, err
	}

	return &UserService{
		AbstractService: &AbstractService{
			db: params.DB,
		},
		UserCache: cache,
	}, nil
}

func buildUserCacheKey(id string) string {
	return "user:" + id
}

// invalidateUserCache drops the cached user once the surrounding transaction commits,
// so concurrent readers cannot cache the row it is about to replace.
func (s *UserService) invalidateUserCache(ctx context.Context, id string) {
	db.AfterCommit(ctx, func(ctx context.Context) {
		if err := s.UserCache.Delete(ctx, buildUserCacheKey(id)); err != nil {
			log.Warn(ctx, "failed to invalidate user cache", log.String("user_id", id), log.Cause(err))
		}
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type createUserInput struct {
	Name     string
	Email    string
	Password string
	Image    *string
	Role     string
}

// createUser inserts a user with an already hashed password.
func (s *UserService) createUser(ctx context.Context, input createUserInput) (*objects.User, error) {
	now := xtime.Now()
	user := objects.User{
		ID:        uuid.NewString(),
		Name:      input.Name,
		Email:     normalizeEmail(input.Email),
		Image:     input.Image,
		Role:      input.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if user.Role == "" {
		user.Role = objects.UserRoleUser
	}

	_, err := s.db.Exec(ctx, s.db.SQL().
		Insert(db.TableUsers).
		Columns("id", "name", "email", "email_verified", "image", "password", "role", "banned", "created_at", "updated_at").
		Values(user.ID, user.Name, user.Email, false, user.Image, input.Password, user.Role, false, now, now))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrUserExists
		}

		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &user, nil
}

// GetUserByID gets a user by ID with caching.
func (s *UserService) GetUserByID(ctx context.Context, id string) (*objects.User, error) {
	cacheKey := buildUserCacheKey(id)

	user, err := s.UserCache.Get(ctx, cacheKey)
	if err == nil {
		return &user, nil
	}

	if !xcache.IsMiss(err) {
		log.Warn(ctx, "failed to read user cache", log.String("user_id", id), log.Cause(err))
	}

	found, err := queryOne(ctx, s.db,
		s.db.SQL().Select(userColumns...).From(entsql.Table(db.TableUsers)).Where(entsql.EQ("id", id)),
		scanUser,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if found == nil {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}

	if err := s.UserCache.Set(ctx, cacheKey, *found); err != nil {
		log.Warn(ctx, "failed to cache user", log.String("user_id", id), log.Cause(err))
	}

	return found, nil
}

// findUserByEmail returns the user and its password hash, nil when no user has the email.
func (s *UserService) findUserByEmail(ctx context.Context, email string) (*objects.User, string, error) {
	var (
		user     objects.User
		password string
	)

	columns := append(append([]string{}, userColumns...), "password")

	err := s.db.QueryRow(ctx,
		s.db.SQL().Select(columns...).From(entsql.Table(db.TableUsers)).Where(entsql.EQ("email", normalizeEmail(email))),
		func(rows *entsql.Rows) error {
			return rows.Scan(&user.ID, &user.Name, &user.Email, &user.EmailVerified, &user.Image, &user.Role,
				&user.Banned, &user.BanReason, &user.BanExpires, &user.CreatedAt, &user.UpdatedAt, &password)
		},
	)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, "", nil
		}

		return nil, "", fmt.Errorf("failed to get user: %w", err)
	}

	return &user, password, nil
}

func (s *UserService) passwordHash(ctx context.Context, id string) (string, error) {
	var password string

	err := s.db.QueryRow(ctx,
		s.db.SQL().Select("password").From(entsql.Table(db.TableUsers)).Where(entsql.EQ("id", id)),
		func(rows *entsql.Rows) error { return rows.Scan(&password) },
	)
	if errors.Is(err, db.ErrNotFound) {
		return "", fmt.Errorf("user %s: %w", id, ErrNotFound)
	}

	return password, err
}

type UpdateUserInput struct {
	Name  *string `json:"name"`
	Image *string `json:"image"`
}

// UpdateUser changes the profile fields of a user.
func (s *UserService) UpdateUser(ctx context.Context, id string, input UpdateUserInput) (*objects.User, error) {
	if input.Name == nil && input.Image == nil {
		return s.GetUserByID(ctx, id)
	}

	set := map[string]any{}
	if input.Name != nil {
		set["name"] = strings.TrimSpace(*input.Name)
	}

	if input.Image != nil {
		set["image"] = input.Image
	}

	if err := s.updateUser(ctx, id, set); err != nil {
		return nil, err
	}

	return s.GetUserByID(ctx, id)
}

func (s *UserService) updateUser(ctx context.Context, id string, set map[string]any) error {
	update := s.db.SQL().Update(db.TableUsers).Set("updated_at", xtime.Now()).Where(entsql.EQ("id", id))
	for _, column := range sortedKeys(set) {
		update.Set(column, set[column])
	}

	res, err := s.db.Exec(ctx, update)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}

	s.invalidateUserCache(ctx, id)

	return nil
}

func (s *UserService) setEmailVerified(ctx context.Context, id string) error {
	return s.updateUser(ctx, id, map[string]any{"email_verified": true})
}

func (s *UserService) setPassword(ctx context.Context, id, hashedPassword string) error {
	return s.updateUser(ctx, id, map[string]any{"password": hashedPassword})
}

func (s *UserService) setRole(ctx context.Context, id, role string) error {
	return s.updateUser(ctx, id, map[string]any{"role": role})
}

func (s *UserService) setBan(ctx context.Context, id string, banned bool, reason *string, expires *time.Time) error {
	return s.updateUser(ctx, id, map[string]any{
		"banned":      banned,
		"ban_reason":  reason,
		"ban_expires": expires,
	})
}

type ListUsersInput struct {
	SearchValue string `json:"searchValue" form:"searchValue"`
	Limit       int    `json:"limit" form:"limit"`
	Offset      int    `json:"offset" form:"offset"`
}

// ListUsers pages through all users, newest first.
func (s *UserService) ListUsers(ctx context.Context, input ListUsersInput) ([]objects.User, int, error) {
	search := strings.TrimSpace(input.SearchValue)

	count := s.db.SQL().Select(entsql.Count("*")).From(entsql.Table(db.TableUsers))
	list := s.db.SQL().Select(userColumns...).From(entsql.Table(db.TableUsers)).
		OrderBy(entsql.Desc("created_at"), "id")

	if search != "" {
		count.Where(entsql.Or(entsql.ContainsFold("email", search), entsql.ContainsFold("name", search)))
		list.Where(entsql.Or(entsql.ContainsFold("email", search), entsql.ContainsFold("name", search)))
	}

	total, err := s.db.Count(ctx, count)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	list.Limit(limit)

	if input.Offset > 0 {
		list.Offset(input.Offset)
	}

	users, err := queryAll(ctx, s.db, list, scanUser)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	return users, total, nil
}

// deleteUser removes a user with its sessions, memberships and the todo lists it owns.
func (s *UserService) deleteUser(ctx context.Context, id string) error {
	return s.RunInTransaction(ctx, func(ctx context.Context) error {
		lists := s.db.SQL().Select("id").From(entsql.Table(db.TableTodoLists)).
			Where(entsql.EQ("owner_id", id))

		if _, err := s.db.Exec(ctx, s.db.SQL().Delete(db.TableTodos).Where(entsql.In("list_id", lists))); err != nil {
			return fmt.Errorf("failed to delete todos of user: %w", err)
		}

		if _, err := s.db.Exec(ctx, s.db.SQL().Delete(db.TableTodoLists).Where(entsql.EQ("owner_id", id))); err != nil {
			return fmt.Errorf("failed to delete todo lists of user: %w", err)
		}

		for _, table := range []string{db.TableSessions, db.TableMembers} {
			if _, err := s.db.Exec(ctx, s.db.SQL().Delete(table).Where(entsql.EQ("user_id", id))); err != nil {
				return fmt.Errorf("failed to delete %s of user: %w", table, err)
			}
		}

		res, err := s.db.Exec(ctx, s.db.SQL().Delete(db.TableUsers).Where(entsql.EQ("id", id)))
		if err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}

		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("user %s: %w", id, ErrNotFound)
		}

		s.invalidateUserCache(ctx, id)

		return nil
	})
}
