package biz

import (
	"context"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/Masterminds/semver/v3"
	"go.uber.org/fx"

	"github.com/looplj/todohub/internal/build"
	"github.com/looplj/todohub/internal/log"
	"github.com/looplj/todohub/internal/pkg/xcache"
	"github.com/looplj/todohub/internal/pkg/xtime"
	"github.com/looplj/todohub/internal/server/db"
)

const (
	// SystemKeyVersion is the version of the server that last started on the database.
	SystemKeyVersion = "system_version"

	// SystemKeySecretKey is the generated signing key used when no auth secret is configured.
	//
	//nolint:gosec // Not a secret.
	SystemKeySecretKey = "system_jwt_secret_key"
)

type SystemServiceParams struct {
	fx.In

	CacheConfig xcache.Config
	DB          *db.Client
}

func NewSystemService(params SystemServiceParams) (*SystemService, error) {
	cache, err := xcache.NewFromConfig[string](context.Background(), params.CacheConfig)
	if err != nil {
		return nil, err
	}

	return &SystemService{
		AbstractService: &AbstractService{
			db: params.DB,
		},
		Cache: cache,
	}, nil
}

type SystemService struct {
	*AbstractService

	Cache xcache.Cache[string]
}

// Initialize makes sure the signing key exists and records the running version.
func (s *SystemService) Initialize(ctx context.Context) error {
	if _, err := s.SecretKey(ctx); err != nil {
		return err
	}

	previous, err := s.getSystemValue(ctx, SystemKeyVersion)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return err
	}

	current := build.GetBuildInfo().Version
	if previous == current {
		return nil
	}

	// A downgraded server keeps the newer version recorded.
	if IsNewerVersion(current, previous) {
		log.Warn(ctx, "database was used by a newer server", log.String("recorded", previous), log.String("running", current))
		return nil
	}

	log.Info(ctx, "system version changed", log.String("from", previous), log.String("to", current))

	return s.setSystemValue(ctx, SystemKeyVersion, current)
}

// IsNewerVersion reports whether latest is a newer semantic version than current, "v" prefixes allowed.
// Unparsable versions are never newer.
func IsNewerVersion(current, latest string) bool {
	vCurrent, err := semver.NewVersion(current)
	if err != nil {
		return false
	}

	vLatest, err := semver.NewVersion(latest)
	if err != nil {
		return false
	}

	return vLatest.GreaterThan(vCurrent)
}

// SecretKey returns the stored signing key, generating it on first use.
func (s *SystemService) SecretKey(ctx context.Context) (string, error) {
	value, err := s.getSystemValue(ctx, SystemKeySecretKey)
	if err == nil {
		return value, nil
	}

	if !errors.Is(err, db.ErrNotFound) {
		return "", fmt.Errorf("failed to get secret key: %w", err)
	}

	secretKey, err := GenerateSecretKey()
	if err != nil {
		return "", err
	}

	now := xtime.Now()

	_, err = s.db.Exec(ctx, s.db.SQL().
		Insert(db.TableSystems).
		Columns("name", "value", "created_at", "updated_at").
		Values(SystemKeySecretKey, secretKey, now, now))
	if err != nil {
		// Another instance won the race, use its key.
		if db.IsUniqueViolation(err) {
			return s.getSystemValue(ctx, SystemKeySecretKey)
		}

		return "", fmt.Errorf("failed to store secret key: %w", err)
	}

	return secretKey, nil
}

// Version returns the version recorded by the last started server.
func (s *SystemService) Version(ctx context.Context) (string, error) {
	value, err := s.getSystemValue(ctx, SystemKeyVersion)
	if errors.Is(err, db.ErrNotFound) {
		return "", nil
	}

	return value, err
}

func (s *SystemService) getSystemValue(ctx context.Context, key string) (string, error) {
	cacheKey := "system:" + key
	if v, err := s.Cache.Get(ctx, cacheKey); err == nil {
		return v, nil
	}

	var value string

	err := s.db.QueryRow(ctx,
		s.db.SQL().Select("value").From(entsql.Table(db.TableSystems)).Where(entsql.EQ("name", key)),
		func(rows *entsql.Rows) error { return rows.Scan(&value) },
	)
	if err != nil {
		return "", err
	}

	_ = s.Cache.Set(ctx, cacheKey, value)

	return value, nil
}

// setSystemValue sets or updates a system key-value pair.
func (s *SystemService) setSystemValue(ctx context.Context, key, value string) error {
	now := xtime.Now()

	_, err := s.db.Exec(ctx, s.db.SQL().
		Insert(db.TableSystems).
		Columns("name", "value", "created_at", "updated_at").
		Values(key, value, now, now).
		OnConflict(
			entsql.ConflictColumns("name"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("value")
				u.SetExcluded("updated_at")
			}),
		))
	if err != nil {
		return fmt.Errorf("failed to set system value: %w", err)
	}

	if err := s.Cache.Delete(ctx, "system:"+key); err != nil {
		log.Warn(ctx, "failed to invalidate cache", log.String("key", key), log.Cause(err))
	}

	return nil
}
