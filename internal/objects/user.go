package objects

import "time"

const (
	UserRoleUser  = "user"
	UserRoleAdmin = "admin"
)

type User struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	EmailVerified bool       `json:"emailVerified"`
	Image         *string    `json:"image,omitempty"`
	Role          string     `json:"role"`
	Banned        bool       `json:"banned"`
	BanReason     *string    `json:"banReason,omitempty"`
	BanExpires    *time.Time `json:"banExpires,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// IsBanned reports whether the ban is still in effect at now.
func (u User) IsBanned(now time.Time) bool {
	if !u.Banned {
		return false
	}

	return u.BanExpires == nil || u.BanExpires.After(now)
}
