package biz

import (
	"time"
)

type AuthConfig struct {
	// Secret signs session and verification tokens. A random key stored in the database is used when empty.
	Secret string `conf:"secret" yaml:"secret" json:"secret"`

	// BaseURL is the public url of the server, used in the links of outgoing mails.
	BaseURL string `conf:"base_url" yaml:"base_url" json:"base_url"`

	// SessionExpiresIn is the lifetime of a remembered session.
	SessionExpiresIn time.Duration `conf:"session_expires_in" yaml:"session_expires_in" json:"session_expires_in"`

	// ShortSessionExpiresIn is the lifetime of a session signed in with rememberMe=false.
	ShortSessionExpiresIn time.Duration `conf:"short_session_expires_in" yaml:"short_session_expires_in" json:"short_session_expires_in"`

	VerificationExpiresIn  time.Duration `conf:"verification_expires_in" yaml:"verification_expires_in" json:"verification_expires_in"`
	ResetPasswordExpiresIn time.Duration `conf:"reset_password_expires_in" yaml:"reset_password_expires_in" json:"reset_password_expires_in"`
	InvitationExpiresIn    time.Duration `conf:"invitation_expires_in" yaml:"invitation_expires_in" json:"invitation_expires_in"`

	MinPasswordLength int `conf:"min_password_length" yaml:"min_password_length" json:"min_password_length"`
	MaxPasswordLength int `conf:"max_password_length" yaml:"max_password_length" json:"max_password_length"`

	// RequireEmailVerification blocks sign in until the email is verified.
	RequireEmailVerification bool `conf:"require_email_verification" yaml:"require_email_verification" json:"require_email_verification"`

	// AdminEmails get the admin role when they sign up.
	AdminEmails []string `conf:"admin_emails" yaml:"admin_emails" json:"admin_emails"`

	// CookieSecure marks the session cookie Secure.
	CookieSecure bool `conf:"cookie_secure" yaml:"cookie_secure" json:"cookie_secure"`
}

// DefaultAuthConfig mirrors the defaults registered in conf.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		BaseURL:                "http://localhost:8090",
		SessionExpiresIn:       7 * 24 * time.Hour,
		ShortSessionExpiresIn:  24 * time.Hour,
		VerificationExpiresIn:  time.Hour,
		ResetPasswordExpiresIn: time.Hour,
		InvitationExpiresIn:    48 * time.Hour,
		MinPasswordLength:      8,
		MaxPasswordLength:      72,
	}
}

func (c AuthConfig) withDefaults() AuthConfig {
	def := DefaultAuthConfig()

	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}

	if c.SessionExpiresIn <= 0 {
		c.SessionExpiresIn = def.SessionExpiresIn
	}

	if c.ShortSessionExpiresIn <= 0 {
		c.ShortSessionExpiresIn = def.ShortSessionExpiresIn
	}

	if c.VerificationExpiresIn <= 0 {
		c.VerificationExpiresIn = def.VerificationExpiresIn
	}

	if c.ResetPasswordExpiresIn <= 0 {
		c.ResetPasswordExpiresIn = def.ResetPasswordExpiresIn
	}

	if c.InvitationExpiresIn <= 0 {
		c.InvitationExpiresIn = def.InvitationExpiresIn
	}

	if c.MinPasswordLength <= 0 {
		c.MinPasswordLength = def.MinPasswordLength
	}

	if c.MaxPasswordLength <= 0 {
		c.MaxPasswordLength = def.MaxPasswordLength
	}

	return c
}
