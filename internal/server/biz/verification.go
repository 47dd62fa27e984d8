package biz

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/looplj/todohub/internal/log"
	"github.com/looplj/todohub/internal/objects"
	"github.com/looplj/todohub/internal/pkg/xtime"
	"github.com/looplj/todohub/internal/server/db"
)

const (
	purposeVerifyEmail = "verify-email"

	resetPasswordPrefix = "reset-password:"
)

// SendVerificationEmail mails a signed verification link. Unknown and verified emails are ignored.
func (s *AuthService) SendVerificationEmail(ctx context.Context, email, callbackURL string) error {
	user, _, err := s.UserService.findUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	if user == nil || user.EmailVerified {
		return nil
	}

	token, err := s.SessionService.signClaims(ctx, jwt.MapClaims{
		claimPurpose: purposeVerifyEmail,
		claimEmail:   user.Email,
	}, xtime.Now().Add(s.config.VerificationExpiresIn))
	if err != nil {
		return err
	}

	query := url.Values{"token": {token}}
	if callbackURL != "" {
		query.Set("callbackURL", callbackURL)
	}

	return s.Mailer.SendVerification(ctx, user.Email, s.appURL("/api/auth/verify-email", query))
}

// VerifyEmail marks the email of the token as verified.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*objects.User, error) {
	claims, err := s.SessionService.parseClaims(ctx, token)
	if err != nil {
		if errors.Is(err, ErrInvalidJWT) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}

		return nil, err
	}

	if purpose, _ := claims[claimPurpose].(string); purpose != purposeVerifyEmail {
		return nil, ErrInvalidToken
	}

	email, _ := claims[claimEmail].(string)

	user, _, err := s.UserService.findUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if user == nil {
		return nil, ErrInvalidToken
	}

	if !user.EmailVerified {
		if err := s.UserService.setEmailVerified(ctx, user.ID); err != nil {
			return nil, err
		}

		log.Info(ctx, "email verified", log.String("user_id", user.ID))
	}

	return s.UserService.GetUserByID(ctx, user.ID)
}

// ForgetPassword mails a reset link. Unknown emails are ignored so callers cannot probe accounts.
func (s *AuthService) ForgetPassword(ctx context.Context, email, redirectTo string) error {
	user, _, err := s.UserService.findUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	if user == nil {
		log.Debug(ctx, "password reset requested for unknown email")
		return nil
	}

	token, err := generateToken()
	if err != nil {
		return err
	}

	now := xtime.Now()

	_, err = s.db.Exec(ctx, s.db.SQL().
		Insert(db.TableVerifications).
		Columns("id", "identifier", "value", "expires_at", "created_at").
		Values(uuid.NewString(), resetPasswordPrefix+token, user.ID, now.Add(s.config.ResetPasswordExpiresIn), now))
	if err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	query := url.Values{}
	if redirectTo != "" {
		query.Set("callbackURL", redirectTo)
	}

	return s.Mailer.SendResetPassword(ctx, user.Email, s.appURL("/api/auth/reset-password/"+token, query))
}

// CheckResetToken reports whether token can still reset a password.
func (s *AuthService) CheckResetToken(ctx context.Context, token string) error {
	_, err := s.lookupResetToken(ctx, token)
	return err
}

func (s *AuthService) lookupResetToken(ctx context.Context, token string) (string, error) {
	var (
		userID    string
		expiresAt = xtime.Now()
	)

	err := s.db.QueryRow(ctx,
		s.db.SQL().Select("value", "expires_at").From(entsql.Table(db.TableVerifications)).
			Where(entsql.EQ("identifier", resetPasswordPrefix+token)),
		func(rows *entsql.Rows) error { return rows.Scan(&userID, &expiresAt) },
	)
	if err != nil {
		if isNotFound(err) {
			return "", ErrInvalidToken
		}

		return "", err
	}

	if xtime.Expired(expiresAt) {
		return "", ErrInvalidToken
	}

	return userID, nil
}

// ResetPassword consumes a reset token, sets the new password and signs the user out everywhere.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := s.validatePassword(newPassword); err != nil {
		return err
	}

	hashedPassword, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	return s.RunInTransaction(ctx, func(ctx context.Context) error {
		userID, err := s.lookupResetToken(ctx, token)
		if err != nil {
			return err
		}

		if _, err := s.db.Exec(ctx, s.db.SQL().Delete(db.TableVerifications).
			Where(entsql.EQ("identifier", resetPasswordPrefix+token))); err != nil {
			return fmt.Errorf("failed to consume reset token: %w", err)
		}

		if err := s.UserService.setPassword(ctx, userID, hashedPassword); err != nil {
			return err
		}

		log.Info(ctx, "password reset", log.String("user_id", userID))

		return s.SessionService.RevokeAllSessions(ctx, userID)
	})
}
