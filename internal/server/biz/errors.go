package biz

import (
	"errors"
)

var (
	ErrInvalidJWT      = errors.New("invalid jwt token")
	ErrInvalidPassword = errors.New("invalid email or password")
	ErrInternal        = errors.New("server internal error, please try again later")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")

	ErrUserExists       = errors.New("user already exists")
	ErrUserBanned       = errors.New("user is banned")
	ErrEmailNotVerified = errors.New("email not verified")
	ErrInvalidToken     = errors.New("invalid or expired token")

	ErrSlugTaken         = errors.New("organization slug is taken")
	ErrAlreadyMember     = errors.New("user is already a member of this organization")
	ErrAlreadyInvited    = errors.New("user is already invited to this organization")
	ErrLastOwner         = errors.New("organization must keep at least one owner")
	ErrInvitationExpired = errors.New("invitation expired")
)
