package biz

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"slices"
	"strings"

	"go.uber.org/fx"
	"golang.org/x/crypto/bcrypt"

	"github.com/looplj/todohub/internal/log"
	mailer "github.com/looplj/todohub/internal/mail"
	"github.com/looplj/todohub/internal/objects"
	"github.com/looplj/todohub/internal/pkg/xtime"
	"github.com/looplj/todohub/internal/server/db"
)

type AuthServiceParams struct {
	fx.In

	Config         AuthConfig
	DB             *db.Client
	SessionService *SessionService
	UserService    *UserService
	Mailer         *mailer.Mailer
}

func NewAuthService(params AuthServiceParams) *AuthService {
	return &AuthService{
		AbstractService: &AbstractService{
			db: params.DB,
		},
		config:         params.Config.withDefaults(),
		SessionService: params.SessionService,
		UserService:    params.UserService,
		Mailer:         params.Mailer,
	}
}

// AuthService implements the email and password account flows.
type AuthService struct {
	*AbstractService

	config         AuthConfig
	SessionService *SessionService
	UserService    *UserService
	Mailer         *mailer.Mailer
}

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return hex.EncodeToString(hashedPassword), nil
}

// VerifyPassword verifies a password against a hash.
func VerifyPassword(hashedPassword, password string) error {
	decodedHashedPassword, err := hex.DecodeString(hashedPassword)
	if err != nil {
		return fmt.Errorf("failed to decode hashed password: %w", err)
	}

	return bcrypt.CompareHashAndPassword(decodedHashedPassword, []byte(password))
}

// GenerateSecretKey generates a random secret key for JWT.
func GenerateSecretKey() (string, error) {
	bytes := make([]byte, 32) // 256 bits

	_, err := rand.Read(bytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return hex.EncodeToString(bytes), nil
}

// SignInResult is returned by every flow that opens a session.
type SignInResult struct {
	// Token is the signed session token, also set as the session cookie.
	Token   string          `json:"token"`
	User    objects.User    `json:"user"`
	Session objects.Session `json:"-"`
}

type SignUpInput struct {
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	Image       *string `json:"image"`
	RememberMe  *bool   `json:"rememberMe"`
	CallbackURL string  `json:"callbackURL"`
}

func (s *AuthService) validatePassword(password string) error {
	if len(password) < s.config.MinPasswordLength {
		return fmt.Errorf("%w: password too short", ErrInvalidInput)
	}

	if len(password) > s.config.MaxPasswordLength {
		return fmt.Errorf("%w: password too long", ErrInvalidInput)
	}

	return nil
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}

	return nil
}

// SignUp creates an unverified user, sends the verification mail and signs the user in
// unless email verification is required.
func (s *AuthService) SignUp(ctx context.Context, input SignUpInput, meta RequestMeta) (*SignInResult, error) {
	email := normalizeEmail(input.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	if err := s.validatePassword(input.Password); err != nil {
		return nil, err
	}

	hashedPassword, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	role := objects.UserRoleUser
	if slices.ContainsFunc(s.config.AdminEmails, func(e string) bool { return normalizeEmail(e) == email }) {
		role = objects.UserRoleAdmin
	}

	user, err := s.UserService.createUser(ctx, createUserInput{
		Name:     strings.TrimSpace(input.Name),
		Email:    email,
		Password: hashedPassword,
		Image:    input.Image,
		Role:     role,
	})
	if err != nil {
		return nil, err
	}

	log.Info(ctx, "user signed up", log.String("user_id", user.ID))

	if err := s.SendVerificationEmail(ctx, user.Email, input.CallbackURL); err != nil {
		log.Warn(ctx, "failed to send verification email", log.String("user_id", user.ID), log.Cause(err))
	}

	if s.config.RequireEmailVerification {
		return &SignInResult{User: *user}, nil
	}

	return s.openSession(ctx, user, input.RememberMe == nil || *input.RememberMe, meta)
}

type SignInInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	RememberMe  *bool  `json:"rememberMe"`
	CallbackURL string `json:"callbackURL"`
}

// SignIn authenticates a user with email and password.
func (s *AuthService) SignIn(ctx context.Context, input SignInInput, meta RequestMeta) (*SignInResult, error) {
	user, hashedPassword, err := s.UserService.findUserByEmail(ctx, input.Email)
	if err != nil {
		log.Error(ctx, "failed to get user", log.Cause(err))
		return nil, ErrInternal
	}

	if user == nil {
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$7EqJtq98hPqEX7fNZaFWoOHi5BWXNlJSTMZL2vS5tiS/0p3BA8Qm."), []byte(input.Password))
		return nil, ErrInvalidPassword
	}

	if err := VerifyPassword(hashedPassword, input.Password); err != nil {
		return nil, ErrInvalidPassword
	}

	if user.IsBanned(xtime.UTCNow()) {
		return nil, ErrUserBanned
	}

	if s.config.RequireEmailVerification && !user.EmailVerified {
		if err := s.SendVerificationEmail(ctx, user.Email, input.CallbackURL); err != nil {
			log.Warn(ctx, "failed to send verification email", log.String("user_id", user.ID), log.Cause(err))
		}

		return nil, ErrEmailNotVerified
	}

	log.Debug(ctx, "user authenticated", log.String("user_id", user.ID))

	return s.openSession(ctx, user, input.RememberMe == nil || *input.RememberMe, meta)
}

func (s *AuthService) openSession(ctx context.Context, user *objects.User, rememberMe bool, meta RequestMeta) (*SignInResult, error) {
	session, err := s.SessionService.CreateSession(ctx, user.ID, rememberMe, meta)
	if err != nil {
		return nil, err
	}

	token, err := s.SessionService.SignSessionToken(ctx, *session)
	if err != nil {
		return nil, err
	}

	return &SignInResult{Token: token, User: *user, Session: *session}, nil
}

// SignOut revokes the current session.
func (s *AuthService) SignOut(ctx context.Context, session objects.Session) error {
	return s.SessionService.RevokeSession(ctx, session.UserID, session.Token)
}

type ChangePasswordInput struct {
	CurrentPassword     string `json:"currentPassword"`
	NewPassword         string `json:"newPassword"`
	RevokeOtherSessions bool   `json:"revokeOtherSessions"`
}

// ChangePassword replaces the password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, session objects.Session, input ChangePasswordInput) error {
	if err := s.validatePassword(input.NewPassword); err != nil {
		return err
	}

	current, err := s.UserService.passwordHash(ctx, session.UserID)
	if err != nil {
		return err
	}

	if err := VerifyPassword(current, input.CurrentPassword); err != nil {
		return ErrInvalidPassword
	}

	hashedPassword, err := HashPassword(input.NewPassword)
	if err != nil {
		return err
	}

	return s.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.UserService.setPassword(ctx, session.UserID, hashedPassword); err != nil {
			return err
		}

		if input.RevokeOtherSessions {
			return s.SessionService.RevokeOtherSessions(ctx, session.UserID, session.Token)
		}

		return nil
	})
}

// appURL joins path to the public base url.
func (s *AuthService) appURL(path string, query url.Values) string {
	u := strings.TrimSuffix(s.config.BaseURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	return u
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, db.ErrNotFound)
}
