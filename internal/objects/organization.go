package objects

import "time"

const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

func IsValidOrganizationRole(role string) bool {
	switch role {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	default:
		return false
	}
}

const (
	InvitationStatusPending  = "pending"
	InvitationStatusAccepted = "accepted"
	InvitationStatusRejected = "rejected"
	InvitationStatusCanceled = "canceled"
)

type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Logo      *string   `json:"logo,omitempty"`
	Metadata  *string   `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type MemberUser struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Image *string `json:"image,omitempty"`
}

type Member struct {
	ID             string      `json:"id"`
	OrganizationID string      `json:"organizationId"`
	UserID         string      `json:"userId"`
	Role           string      `json:"role"`
	CreatedAt      time.Time   `json:"createdAt"`
	User           *MemberUser `json:"user,omitempty"`
}

type Invitation struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Email          string    `json:"email"`
	Role           string    `json:"role"`
	Status         string    `json:"status"`
	ExpiresAt      time.Time `json:"expiresAt"`
	InviterID      string    `json:"inviterId"`
}

// FullOrganization is an organization with its members and pending invitations.
type FullOrganization struct {
	Organization

	Members     []Member     `json:"members"`
	Invitations []Invitation `json:"invitations"`
}

// InvitationDetail is an invitation as shown to its recipient.
type InvitationDetail struct {
	Invitation

	OrganizationName string `json:"organizationName"`
	OrganizationSlug string `json:"organizationSlug"`
	InviterEmail     string `json:"inviterEmail"`
}
