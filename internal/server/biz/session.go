package biz

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/fx"

	"github.com/looplj/todohub/internal/log"
	"github.com/looplj/todohub/internal/objects"
	"github.com/looplj/todohub/internal/pkg/xtime"
	"github.com/looplj/todohub/internal/server/db"
)

const (
	// SessionCookieName carries the signed session token.
	SessionCookieName = "todohub.session_token"

	claimSessionID = "sid"
	claimPurpose   = "purpose"
	claimEmail     = "email"
)

// RequestMeta describes the client a session is issued to.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

type SessionServiceParams struct {
	fx.In

	Config        AuthConfig
	DB            *db.Client
	SystemService *SystemService
	UserService   *UserService
}

func NewSessionService(params SessionServiceParams) *SessionService {
	return &SessionService{
		AbstractService: &AbstractService{
			db: params.DB,
		},
		config:        params.Config.withDefaults(),
		SystemService: params.SystemService,
		UserService:   params.UserService,
	}
}

// SessionService issues, looks up and revokes sessions.
// The client holds an HS256 jwt whose sid claim is the opaque token stored in the sessions table.
type SessionService struct {
	*AbstractService

	config        AuthConfig
	SystemService *SystemService
	UserService   *UserService
}

func generateToken() (string, error) {
	bytes := make([]byte, 32)

	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return hex.EncodeToString(bytes), nil
}

func (s *SessionService) secretKey(ctx context.Context) ([]byte, error) {
	if s.config.Secret != "" {
		return []byte(s.config.Secret), nil
	}

	key, err := s.SystemService.SecretKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get secret key: %w", err)
	}

	return []byte(key), nil
}

// signClaims signs claims expiring at expiresAt.
func (s *SessionService) signClaims(ctx context.Context, claims jwt.MapClaims, expiresAt time.Time) (string, error) {
	secretKey, err := s.secretKey(ctx)
	if err != nil {
		return "", err
	}

	claims["exp"] = expiresAt.Unix()
	claims["iat"] = xtime.Now().Unix()

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return tokenString, nil
}

// parseClaims validates signature and expiry.
func (s *SessionService) parseClaims(ctx context.Context, tokenString string) (jwt.MapClaims, error) {
	secretKey, err := s.secretKey(ctx)
	if err != nil {
		return nil, err
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse jwt token: %w", ErrInvalidJWT, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", ErrInvalidJWT)
	}

	return claims, nil
}

// SignSessionToken returns the jwt handed to the client for a session.
func (s *SessionService) SignSessionToken(ctx context.Context, session objects.Session) (string, error) {
	return s.signClaims(ctx, jwt.MapClaims{claimSessionID: session.Token}, session.ExpiresAt)
}

// CreateSession stores a new session for userID.
func (s *SessionService) CreateSession(ctx context.Context, userID string, rememberMe bool, meta RequestMeta) (*objects.Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	expiresIn := s.config.SessionExpiresIn
	if !rememberMe {
		expiresIn = s.config.ShortSessionExpiresIn
	}

	now := xtime.Now()
	session := objects.Session{
		ID:        uuid.NewString(),
		Token:     token,
		UserID:    userID,
		ExpiresAt: now.Add(expiresIn),
		IPAddress: meta.IPAddress,
		UserAgent: truncate(meta.UserAgent, 1024),
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = s.db.Exec(ctx, s.db.SQL().
		Insert(db.TableSessions).
		Columns(sessionColumns...).
		Values(session.ID, session.Token, session.UserID, session.ExpiresAt, session.IPAddress, session.UserAgent,
			session.ActiveOrganizationID, session.CreatedAt, session.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &session, nil
}

// TokenFromHeader extracts the signed session token, the cookie wins over the bearer header.
func TokenFromHeader(header http.Header) string {
	req := http.Request{Header: header}
	if cookie, err := req.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	auth := header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}

	return ""
}

// GetSession returns the live session carried by header, nil when there is none.
// Missing, malformed, expired and revoked tokens all mean no session.
func (s *SessionService) GetSession(ctx context.Context, header http.Header) (*objects.SessionWithUser, error) {
	tokenString := TokenFromHeader(header)
	if tokenString == "" {
		return nil, nil
	}

	claims, err := s.parseClaims(ctx, tokenString)
	if err != nil {
		if errors.Is(err, ErrInvalidJWT) {
			log.Debug(ctx, "ignoring invalid session token", log.Cause(err))
			return nil, nil
		}

		return nil, err
	}

	sid, _ := claims[claimSessionID].(string)
	if sid == "" {
		return nil, nil
	}

	return s.getSessionByToken(ctx, sid)
}

func (s *SessionService) getSessionByToken(ctx context.Context, token string) (*objects.SessionWithUser, error) {
	session, err := queryOne(ctx, s.db,
		s.db.SQL().Select(sessionColumns...).From(entsql.Table(db.TableSessions)).Where(entsql.EQ("token", token)),
		scanSession,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if session == nil {
		return nil, nil
	}

	if xtime.Expired(session.ExpiresAt) {
		if err := s.deleteSessions(ctx, entsql.EQ("id", session.ID)); err != nil {
			log.Warn(ctx, "failed to delete expired session", log.Cause(err))
		}

		return nil, nil
	}

	user, err := s.UserService.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}

		return nil, err
	}

	if user.IsBanned(xtime.UTCNow()) {
		return nil, nil
	}

	return &objects.SessionWithUser{Session: *session, User: *user}, nil
}

// ListSessions returns the live sessions of a user, newest first.
func (s *SessionService) ListSessions(ctx context.Context, userID string) ([]objects.Session, error) {
	sessions, err := queryAll(ctx, s.db,
		s.db.SQL().Select(sessionColumns...).From(entsql.Table(db.TableSessions)).
			Where(entsql.EQ("user_id", userID)).
			OrderBy(entsql.Desc("created_at")),
		scanSession,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	live := sessions[:0]

	for _, session := range sessions {
		if !xtime.Expired(session.ExpiresAt) {
			live = append(live, session)
		}
	}

	return live, nil
}

// RevokeSession deletes one of the user's own sessions by its token.
func (s *SessionService) RevokeSession(ctx context.Context, userID, token string) error {
	res, err := s.db.Exec(ctx, s.db.SQL().Delete(db.TableSessions).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.EQ("token", token))))
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session: %w", ErrNotFound)
	}

	return nil
}

// RevokeOtherSessions deletes every session of the user except the current one.
func (s *SessionService) RevokeOtherSessions(ctx context.Context, userID, currentToken string) error {
	return s.deleteSessions(ctx, entsql.And(entsql.EQ("user_id", userID), entsql.NEQ("token", currentToken)))
}

// RevokeAllSessions signs the user out everywhere.
func (s *SessionService) RevokeAllSessions(ctx context.Context, userID string) error {
	return s.deleteSessions(ctx, entsql.EQ("user_id", userID))
}

func (s *SessionService) deleteSessions(ctx context.Context, where *entsql.Predicate) error {
	if _, err := s.db.Exec(ctx, s.db.SQL().Delete(db.TableSessions).Where(where)); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}

	return nil
}

// SetActiveOrganization points a session at an organization, nil clears it.
func (s *SessionService) SetActiveOrganization(ctx context.Context, sessionID string, organizationID *string) error {
	_, err := s.db.Exec(ctx, s.db.SQL().Update(db.TableSessions).
		Set("active_organization_id", organizationID).
		Set("updated_at", xtime.Now()).
		Where(entsql.EQ("id", sessionID)))
	if err != nil {
		return fmt.Errorf("failed to set active organization: %w", err)
	}

	return nil
}

// clearActiveOrganization unsets the organization on the sessions of userID, or of every user when userID is empty.
func (s *SessionService) clearActiveOrganization(ctx context.Context, organizationID, userID string) error {
	where := entsql.EQ("active_organization_id", organizationID)
	if userID != "" {
		where = entsql.And(where, entsql.EQ("user_id", userID))
	}

	_, err := s.db.Exec(ctx, s.db.SQL().Update(db.TableSessions).
		SetNull("active_organization_id").
		Set("updated_at", xtime.Now()).
		Where(where))
	if err != nil {
		return fmt.Errorf("failed to clear active organization: %w", err)
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n]
}
