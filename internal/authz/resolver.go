package authz

import (
	"context"
	"fmt"
	"net/http"

	"github.com/samber/lo"

	"github.com/looplj/todohub/internal/log"
	"github.com/looplj/todohub/internal/objects"
)

// SessionLookup finds the session carried by request headers, nil when there is none.
type SessionLookup interface {
	GetSession(ctx context.Context, header http.Header) (*objects.SessionWithUser, error)
}

// OrganizationLookup loads an organization with its members, nil when it does not exist.
type OrganizationLookup interface {
	FindFullOrganization(ctx context.Context, organizationID string) (*objects.FullOrganization, error)
}

// ContextResolver derives the auth user of a data request from its headers.
// It keeps no state between calls.
type ContextResolver struct {
	sessions      SessionLookup
	organizations OrganizationLookup
}

func NewContextResolver(sessions SessionLookup, organizations OrganizationLookup) *ContextResolver {
	return &ContextResolver{
		sessions:      sessions,
		organizations: organizations,
	}
}

// Resolve returns nil for anonymous requests.
// A session user missing from the active organization's members gets a nil role, not an error.
func (r *ContextResolver) Resolve(ctx context.Context, header http.Header) (*AuthUser, error) {
	result, err := r.sessions.GetSession(ctx, header)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if result == nil {
		return nil, nil
	}

	session := result.Session
	user := &AuthUser{
		UserID: session.UserID,
	}

	if session.ActiveOrganizationID == nil || *session.ActiveOrganizationID == "" {
		return user, nil
	}

	user.OrganizationID = lo.ToPtr(*session.ActiveOrganizationID)

	org, err := r.organizations.FindFullOrganization(ctx, *session.ActiveOrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	if org == nil {
		log.Debug(ctx, "active organization not found", log.String("organization_id", *user.OrganizationID))
		return user, nil
	}

	member, found := lo.Find(org.Members, func(m objects.Member) bool {
		return m.UserID == session.UserID
	})
	if !found {
		log.Debug(ctx, "session user is not a member of the active organization",
			log.String("user_id", session.UserID),
			log.String("organization_id", *user.OrganizationID),
		)

		return user, nil
	}

	user.OrganizationRole = lo.ToPtr(member.Role)

	return user, nil
}
