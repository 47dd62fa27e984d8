package biz

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/fx"

	"github.com/looplj/todohub/internal/log"
	mailer "github.com/looplj/todohub/internal/mail"
	"github.com/looplj/todohub/internal/objects"
	"github.com/looplj/todohub/internal/pkg/xtime"
	"github.com/looplj/todohub/internal/server/db"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type OrganizationServiceParams struct {
	fx.In

	Config         AuthConfig
	DB             *db.Client
	SessionService *SessionService
	UserService    *UserService
	Mailer         *mailer.Mailer
}

func NewOrganizationService(params OrganizationServiceParams) *OrganizationService {
	return &OrganizationService{
		AbstractService: &AbstractService{
			db: params.DB,
		},
		config:         params.Config.withDefaults(),
		SessionService: params.SessionService,
		UserService:    params.UserService,
		Mailer:         params.Mailer,
	}
}

// OrganizationService manages organizations, their members and invitations.
type OrganizationService struct {
	*AbstractService

	config         AuthConfig
	SessionService *SessionService
	UserService    *UserService
	Mailer         *mailer.Mailer
}

type CreateOrganizationInput struct {
	Name     string  `json:"name"`
	Slug     string  `json:"slug"`
	Logo     *string `json:"logo"`
	Metadata *string `json:"metadata"`
}

func validateSlug(slug string) error {
	if !slugPattern.MatchString(slug) {
		return fmt.Errorf("%w: slug must contain lowercase letters, digits and dashes", ErrInvalidInput)
	}

	return nil
}

// CreateOrganization creates an organization owned by the session user and makes it the active one.
func (s *OrganizationService) CreateOrganization(ctx context.Context, session objects.Session, input CreateOrganizationInput) (*objects.FullOrganization, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	slug := strings.ToLower(strings.TrimSpace(input.Slug))
	if err := validateSlug(slug); err != nil {
		return nil, err
	}

	now := xtime.Now()
	org := objects.Organization{
		ID:        uuid.NewString(),
		Name:      name,
		Slug:      slug,
		Logo:      input.Logo,
		Metadata:  input.Metadata,
		CreatedAt: now,
	}

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := s.db.Exec(ctx, s.db.SQL().
			Insert(db.TableOrganizations).
			Columns(organizationColumns...).
			Values(org.ID, org.Name, org.Slug, org.Logo, org.Metadata, org.CreatedAt))
		if err != nil {
			if db.IsUniqueViolation(err) {
				return ErrSlugTaken
			}

			return fmt.Errorf("failed to create organization: %w", err)
		}

		if _, err := s.addMember(ctx, org.ID, session.UserID, objects.RoleOwner); err != nil {
			return err
		}

		return s.SessionService.SetActiveOrganization(ctx, session.ID, lo.ToPtr(org.ID))
	})
	if err != nil {
		return nil, err
	}

	log.Info(ctx, "organization created", log.String("organization_id", org.ID), log.String("user_id", session.UserID))

	return s.FindFullOrganization(ctx, org.ID)
}

// CheckSlug returns ErrSlugTaken when an organization already uses slug.
func (s *OrganizationService) CheckSlug(ctx context.Context, slug string) error {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if err := validateSlug(slug); err != nil {
		return err
	}

	n, err := s.db.Count(ctx, s.db.SQL().Select(entsql.Count("*")).From(entsql.Table(db.TableOrganizations)).
		Where(entsql.EQ("slug", slug)))
	if err != nil {
		return fmt.Errorf("failed to check slug: %w", err)
	}

	if n > 0 {
		return ErrSlugTaken
	}

	return nil
}

// ListOrganizations returns the organizations userID is a member of.
func (s *OrganizationService) ListOrganizations(ctx context.Context, userID string) ([]objects.Organization, error) {
	memberships := s.db.SQL().Select("organization_id").From(entsql.Table(db.TableMembers)).
		Where(entsql.EQ("user_id", userID))

	orgs, err := queryAll(ctx, s.db,
		s.db.SQL().Select(organizationColumns...).From(entsql.Table(db.TableOrganizations)).
			Where(entsql.In("id", memberships)).
			OrderBy("created_at", "id"),
		scanOrganization,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}

	return orgs, nil
}

// SetActiveOrganization switches the session to an organization the user belongs to, nil clears it.
func (s *OrganizationService) SetActiveOrganization(ctx context.Context, session objects.Session, organizationID *string) (*objects.FullOrganization, error) {
	if organizationID == nil || *organizationID == "" {
		return nil, s.SessionService.SetActiveOrganization(ctx, session.ID, nil)
	}

	org, err := s.GetFullOrganization(ctx, session.UserID, *organizationID)
	if err != nil {
		return nil, err
	}

	if err := s.SessionService.SetActiveOrganization(ctx, session.ID, organizationID); err != nil {
		return nil, err
	}

	return org, nil
}

func (s *OrganizationService) getOrganization(ctx context.Context, organizationID string) (*objects.Organization, error) {
	org, err := queryOne(ctx, s.db,
		s.db.SQL().Select(organizationColumns...).From(entsql.Table(db.TableOrganizations)).
			Where(entsql.EQ("id", organizationID)),
		scanOrganization,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return org, nil
}

// FindFullOrganization loads an organization with its members and pending invitations.
// It returns nil when the organization does not exist.
func (s *OrganizationService) FindFullOrganization(ctx context.Context, organizationID string) (*objects.FullOrganization, error) {
	org, err := s.getOrganization(ctx, organizationID)
	if err != nil || org == nil {
		return nil, err
	}

	members, err := s.listMembers(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	invitations, err := queryAll(ctx, s.db,
		s.db.SQL().Select(invitationColumns...).From(entsql.Table(db.TableInvitations)).
			Where(entsql.And(
				entsql.EQ("organization_id", organizationID),
				entsql.EQ("status", objects.InvitationStatusPending),
			)).
			OrderBy("created_at", "id"),
		scanInvitation,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}

	return &objects.FullOrganization{
		Organization: *org,
		Members:      lo.Ternary(members == nil, []objects.Member{}, members),
		Invitations:  lo.Ternary(invitations == nil, []objects.Invitation{}, invitations),
	}, nil
}

// GetFullOrganization is FindFullOrganization restricted to members.
func (s *OrganizationService) GetFullOrganization(ctx context.Context, userID, organizationID string) (*objects.FullOrganization, error) {
	org, err := s.FindFullOrganization(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	if org == nil {
		return nil, fmt.Errorf("organization %s: %w", organizationID, ErrNotFound)
	}

	if !lo.ContainsBy(org.Members, func(m objects.Member) bool { return m.UserID == userID }) {
		return nil, fmt.Errorf("%w: not a member of this organization", ErrForbidden)
	}

	return org, nil
}

func (s *OrganizationService) listMembers(ctx context.Context, organizationID string) ([]objects.Member, error) {
	b := s.db.SQL()
	m := b.Table(db.TableMembers).As("m")
	u := b.Table(db.TableUsers).As("u")

	q := b.Select(
		m.C("id"), m.C("organization_id"), m.C("user_id"), m.C("role"), m.C("created_at"),
		u.C("name"), u.C("email"), u.C("image"),
	).
		From(m).
		Join(u).On(m.C("user_id"), u.C("id")).
		Where(entsql.EQ(m.C("organization_id"), organizationID)).
		OrderBy(m.C("created_at"), m.C("id"))

	members, err := queryAll(ctx, s.db, q, func(rows *entsql.Rows) (objects.Member, error) {
		var (
			member objects.Member
			user   objects.MemberUser
		)

		err := rows.Scan(&member.ID, &member.OrganizationID, &member.UserID, &member.Role, &member.CreatedAt,
			&user.Name, &user.Email, &user.Image)
		user.ID = member.UserID
		member.User = &user

		return member, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	return members, nil
}

// getMember returns the membership of userID, nil when the user is not a member.
func (s *OrganizationService) getMember(ctx context.Context, organizationID, userID string) (*objects.Member, error) {
	member, err := queryOne(ctx, s.db,
		s.db.SQL().Select(memberColumns...).From(entsql.Table(db.TableMembers)).
			Where(entsql.And(entsql.EQ("organization_id", organizationID), entsql.EQ("user_id", userID))),
		scanMember,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return member, nil
}

// requireRole returns the membership of userID when it holds one of roles.
func (s *OrganizationService) requireRole(ctx context.Context, organizationID, userID string, roles ...string) (*objects.Member, error) {
	member, err := s.getMember(ctx, organizationID, userID)
	if err != nil {
		return nil, err
	}

	if member == nil {
		org, err := s.getOrganization(ctx, organizationID)
		if err != nil {
			return nil, err
		}

		if org == nil {
			return nil, fmt.Errorf("organization %s: %w", organizationID, ErrNotFound)
		}

		return nil, fmt.Errorf("%w: not a member of this organization", ErrForbidden)
	}

	if len(roles) > 0 && !lo.Contains(roles, member.Role) {
		return nil, fmt.Errorf("%w: requires role %s", ErrForbidden, strings.Join(roles, " or "))
	}

	return member, nil
}

func (s *OrganizationService) addMember(ctx context.Context, organizationID, userID, role string) (*objects.Member, error) {
	member := objects.Member{
		ID:             uuid.NewString(),
		OrganizationID: organizationID,
		UserID:         userID,
		Role:           role,
		CreatedAt:      xtime.Now(),
	}

	_, err := s.db.Exec(ctx, s.db.SQL().
		Insert(db.TableMembers).
		Columns(memberColumns...).
		Values(member.ID, member.OrganizationID, member.UserID, member.Role, member.CreatedAt))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrAlreadyMember
		}

		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	return &member, nil
}

func (s *OrganizationService) countOwners(ctx context.Context, organizationID string) (int, error) {
	n, err := s.db.Count(ctx, s.db.SQL().Select(entsql.Count("*")).From(entsql.Table(db.TableMembers)).
		Where(entsql.And(entsql.EQ("organization_id", organizationID), entsql.EQ("role", objects.RoleOwner))))
	if err != nil {
		return 0, fmt.Errorf("failed to count owners: %w", err)
	}

	return n, nil
}

// ensureNotLastOwner fails when member is the only owner left.
func (s *OrganizationService) ensureNotLastOwner(ctx context.Context, member *objects.Member) error {
	if member.Role != objects.RoleOwner {
		return nil
	}

	owners, err := s.countOwners(ctx, member.OrganizationID)
	if err != nil {
		return err
	}

	if owners <= 1 {
		return ErrLastOwner
	}

	return nil
}

type UpdateOrganizationInput struct {
	Name     *string `json:"name"`
	Slug     *string `json:"slug"`
	Logo     *string `json:"logo"`
	Metadata *string `json:"metadata"`
}

// UpdateOrganization changes the organization fields, owners and admins only.
func (s *OrganizationService) UpdateOrganization(ctx context.Context, userID, organizationID string, input UpdateOrganizationInput) (*objects.FullOrganization, error) {
	if _, err := s.requireRole(ctx, organizationID, userID, objects.RoleOwner, objects.RoleAdmin); err != nil {
		return nil, err
	}

	update := s.db.SQL().Update(db.TableOrganizations).Where(entsql.EQ("id", organizationID))
	changed := false

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
		}

		update.Set("name", name)

		changed = true
	}

	if input.Slug != nil {
		slug := strings.ToLower(strings.TrimSpace(*input.Slug))
		if err := validateSlug(slug); err != nil {
			return nil, err
		}

		update.Set("slug", slug)

		changed = true
	}

	if input.Logo != nil {
		update.Set("logo", input.Logo)

		changed = true
	}

	if input.Metadata != nil {
		update.Set("metadata", input.Metadata)

		changed = true
	}

	if changed {
		if _, err := s.db.Exec(ctx, update); err != nil {
			if db.IsUniqueViolation(err) {
				return nil, ErrSlugTaken
			}

			return nil, fmt.Errorf("failed to update organization: %w", err)
		}
	}

	return s.FindFullOrganization(ctx, organizationID)
}

// DeleteOrganization removes an organization with its members, invitations and todo lists. Owners only.
func (s *OrganizationService) DeleteOrganization(ctx context.Context, userID, organizationID string) error {
	if _, err := s.requireRole(ctx, organizationID, userID, objects.RoleOwner); err != nil {
		return err
	}

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		lists := s.db.SQL().Select("id").From(entsql.Table(db.TableTodoLists)).
			Where(entsql.EQ("organization_id", organizationID))

		if _, err := s.db.Exec(ctx, s.db.SQL().Delete(db.TableTodos).Where(entsql.In("list_id", lists))); err != nil {
			return fmt.Errorf("failed to delete todos: %w", err)
		}

		for _, table := range []string{db.TableTodoLists, db.TableInvitations, db.TableMembers} {
			if _, err := s.db.Exec(ctx, s.db.SQL().Delete(table).Where(entsql.EQ("organization_id", organizationID))); err != nil {
				return fmt.Errorf("failed to delete %s: %w", table, err)
			}
		}

		if _, err := s.db.Exec(ctx, s.db.SQL().Delete(db.TableOrganizations).Where(entsql.EQ("id", organizationID))); err != nil {
			return fmt.Errorf("failed to delete organization: %w", err)
		}

		return s.SessionService.clearActiveOrganization(ctx, organizationID, "")
	})
	if err != nil {
		return err
	}

	log.Info(ctx, "organization deleted", log.String("organization_id", organizationID), log.String("user_id", userID))

	return nil
}

type InviteMemberInput struct {
	Email  string `json:"email"`
	Role   string `json:"role"`
	Resend bool   `json:"resend"`
}

// InviteMember invites an email to the organization and mails the accept link.
// Owners and admins may invite, only owners may invite owners.
func (s *OrganizationService) InviteMember(ctx context.Context, inviter objects.User, organizationID string, input InviteMemberInput) (*objects.Invitation, error) {
	email := normalizeEmail(input.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	role := lo.Ternary(input.Role == "", objects.RoleMember, input.Role)
	if !objects.IsValidOrganizationRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}

	member, err := s.requireRole(ctx, organizationID, inviter.ID, objects.RoleOwner, objects.RoleAdmin)
	if err != nil {
		return nil, err
	}

	if role == objects.RoleOwner && member.Role != objects.RoleOwner {
		return nil, fmt.Errorf("%w: only owners can invite owners", ErrForbidden)
	}

	invitee, _, err := s.UserService.findUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if invitee != nil {
		existing, err := s.getMember(ctx, organizationID, invitee.ID)
		if err != nil {
			return nil, err
		}

		if existing != nil {
			return nil, ErrAlreadyMember
		}
	}

	pending, err := s.findPendingInvitation(ctx, organizationID, email)
	if err != nil {
		return nil, err
	}

	var invitation *objects.Invitation

	switch {
	case pending != nil && !input.Resend:
		return nil, ErrAlreadyInvited
	case pending != nil:
		pending.ExpiresAt = xtime.Now().Add(s.config.InvitationExpiresIn)
		pending.Role = role

		_, err = s.db.Exec(ctx, s.db.SQL().Update(db.TableInvitations).
			Set("expires_at", pending.ExpiresAt).
			Set("role", pending.Role).
			Where(entsql.EQ("id", pending.ID)))
		if err != nil {
			return nil, fmt.Errorf("failed to renew invitation: %w", err)
		}

		invitation = pending
	default:
		now := xtime.Now()
		invitation = &objects.Invitation{
			ID:             uuid.NewString(),
			OrganizationID: organizationID,
			Email:          email,
			Role:           role,
			Status:         objects.InvitationStatusPending,
			ExpiresAt:      now.Add(s.config.InvitationExpiresIn),
			InviterID:      inviter.ID,
		}

		_, err = s.db.Exec(ctx, s.db.SQL().
			Insert(db.TableInvitations).
			Columns(append(append([]string{}, invitationColumns...), "created_at")...).
			Values(invitation.ID, invitation.OrganizationID, invitation.Email, invitation.Role, invitation.Status,
				invitation.ExpiresAt, invitation.InviterID, now))
		if err != nil {
			return nil, fmt.Errorf("failed to create invitation: %w", err)
		}
	}

	org, err := s.getOrganization(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	err = s.Mailer.SendInvitation(ctx, mailer.Invitation{
		Email:             email,
		InvitedByUsername: inviter.Name,
		InvitedByEmail:    inviter.Email,
		TeamName:          org.Name,
		URL:               strings.TrimSuffix(s.config.BaseURL, "/") + "/accept-invitation/" + invitation.ID,
	})
	if err != nil {
		log.Warn(ctx, "failed to send invitation email", log.String("invitation_id", invitation.ID), log.Cause(err))
	}

	return invitation, nil
}

func (s *OrganizationService) findPendingInvitation(ctx context.Context, organizationID, email string) (*objects.Invitation, error) {
	invitation, err := queryOne(ctx, s.db,
		s.db.SQL().Select(invitationColumns...).From(entsql.Table(db.TableInvitations)).
			Where(entsql.And(
				entsql.EQ("organization_id", organizationID),
				entsql.EQ("email", email),
				entsql.EQ("status", objects.InvitationStatusPending),
			)),
		scanInvitation,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}

	return invitation, nil
}

func (s *OrganizationService) getInvitation(ctx context.Context, invitationID string) (*objects.Invitation, error) {
	invitation, err := queryOne(ctx, s.db,
		s.db.SQL().Select(invitationColumns...).From(entsql.Table(db.TableInvitations)).
			Where(entsql.EQ("id", invitationID)),
		scanInvitation,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}

	if invitation == nil {
		return nil, fmt.Errorf("invitation %s: %w", invitationID, ErrNotFound)
	}

	return invitation, nil
}

// recipientInvitation returns a pending, unexpired invitation addressed to user.
func (s *OrganizationService) recipientInvitation(ctx context.Context, user objects.User, invitationID string) (*objects.Invitation, error) {
	invitation, err := s.getInvitation(ctx, invitationID)
	if err != nil {
		return nil, err
	}

	if invitation.Email != normalizeEmail(user.Email) {
		return nil, fmt.Errorf("%w: invitation is addressed to another email", ErrForbidden)
	}

	if invitation.Status != objects.InvitationStatusPending {
		return nil, fmt.Errorf("invitation %s: %w", invitationID, ErrNotFound)
	}

	if xtime.Expired(invitation.ExpiresAt) {
		return nil, ErrInvitationExpired
	}

	return invitation, nil
}

func (s *OrganizationService) setInvitationStatus(ctx context.Context, invitationID, status string) error {
	_, err := s.db.Exec(ctx, s.db.SQL().Update(db.TableInvitations).
		Set("status", status).
		Where(entsql.EQ("id", invitationID)))
	if err != nil {
		return fmt.Errorf("failed to update invitation: %w", err)
	}

	return nil
}

// AcceptInvitation joins the organization of the invitation and makes it the session's active organization.
func (s *OrganizationService) AcceptInvitation(ctx context.Context, session objects.SessionWithUser, invitationID string) (*objects.Invitation, *objects.Member, error) {
	invitation, err := s.recipientInvitation(ctx, session.User, invitationID)
	if err != nil {
		return nil, nil, err
	}

	var member *objects.Member

	err = s.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.setInvitationStatus(ctx, invitation.ID, objects.InvitationStatusAccepted); err != nil {
			return err
		}

		var err error

		member, err = s.addMember(ctx, invitation.OrganizationID, session.User.ID, invitation.Role)
		if err != nil {
			return err
		}

		return s.SessionService.SetActiveOrganization(ctx, session.Session.ID, lo.ToPtr(invitation.OrganizationID))
	})
	if err != nil {
		return nil, nil, err
	}

	invitation.Status = objects.InvitationStatusAccepted

	log.Info(ctx, "invitation accepted",
		log.String("invitation_id", invitation.ID),
		log.String("organization_id", invitation.OrganizationID),
		log.String("user_id", session.User.ID),
	)

	return invitation, member, nil
}

// RejectInvitation declines an invitation addressed to user.
func (s *OrganizationService) RejectInvitation(ctx context.Context, user objects.User, invitationID string) (*objects.Invitation, error) {
	invitation, err := s.recipientInvitation(ctx, user, invitationID)
	if err != nil {
		return nil, err
	}

	if err := s.setInvitationStatus(ctx, invitation.ID, objects.InvitationStatusRejected); err != nil {
		return nil, err
	}

	invitation.Status = objects.InvitationStatusRejected

	return invitation, nil
}

// CancelInvitation withdraws a pending invitation, owners and admins only.
func (s *OrganizationService) CancelInvitation(ctx context.Context, userID, invitationID string) (*objects.Invitation, error) {
	invitation, err := s.getInvitation(ctx, invitationID)
	if err != nil {
		return nil, err
	}

	if _, err := s.requireRole(ctx, invitation.OrganizationID, userID, objects.RoleOwner, objects.RoleAdmin); err != nil {
		return nil, err
	}

	if invitation.Status != objects.InvitationStatusPending {
		return nil, fmt.Errorf("%w: invitation is %s", ErrInvalidInput, invitation.Status)
	}

	if err := s.setInvitationStatus(ctx, invitation.ID, objects.InvitationStatusCanceled); err != nil {
		return nil, err
	}

	invitation.Status = objects.InvitationStatusCanceled

	return invitation, nil
}

// GetInvitation returns a pending invitation with its organization for the recipient.
func (s *OrganizationService) GetInvitation(ctx context.Context, user objects.User, invitationID string) (*objects.InvitationDetail, error) {
	invitation, err := s.recipientInvitation(ctx, user, invitationID)
	if err != nil {
		return nil, err
	}

	org, err := s.getOrganization(ctx, invitation.OrganizationID)
	if err != nil {
		return nil, err
	}

	if org == nil {
		return nil, fmt.Errorf("organization %s: %w", invitation.OrganizationID, ErrNotFound)
	}

	detail := &objects.InvitationDetail{
		Invitation:       *invitation,
		OrganizationName: org.Name,
		OrganizationSlug: org.Slug,
	}

	inviter, err := s.UserService.GetUserByID(ctx, invitation.InviterID)
	switch {
	case err == nil:
		detail.InviterEmail = inviter.Email
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	return detail, nil
}

// ListInvitations returns every invitation of an organization to its members.
func (s *OrganizationService) ListInvitations(ctx context.Context, userID, organizationID string) ([]objects.Invitation, error) {
	if _, err := s.requireRole(ctx, organizationID, userID); err != nil {
		return nil, err
	}

	invitations, err := queryAll(ctx, s.db,
		s.db.SQL().Select(invitationColumns...).From(entsql.Table(db.TableInvitations)).
			Where(entsql.EQ("organization_id", organizationID)).
			OrderBy(entsql.Desc("created_at"), "id"),
		scanInvitation,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}

	return lo.Ternary(invitations == nil, []objects.Invitation{}, invitations), nil
}

// ListUserInvitations returns the pending invitations addressed to user.
func (s *OrganizationService) ListUserInvitations(ctx context.Context, user objects.User) ([]objects.Invitation, error) {
	invitations, err := queryAll(ctx, s.db,
		s.db.SQL().Select(invitationColumns...).From(entsql.Table(db.TableInvitations)).
			Where(entsql.And(
				entsql.EQ("email", normalizeEmail(user.Email)),
				entsql.EQ("status", objects.InvitationStatusPending),
			)).
			OrderBy(entsql.Desc("created_at"), "id"),
		scanInvitation,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}

	live := lo.Filter(invitations, func(i objects.Invitation, _ int) bool { return !xtime.Expired(i.ExpiresAt) })

	return live, nil
}

// findMember resolves a member by id, falling back to the email of its user.
func (s *OrganizationService) findMember(ctx context.Context, organizationID, memberIDOrEmail string) (*objects.Member, error) {
	members, err := s.listMembers(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	email := normalizeEmail(memberIDOrEmail)

	member, ok := lo.Find(members, func(m objects.Member) bool {
		return m.ID == memberIDOrEmail || (m.User != nil && m.User.Email == email)
	})
	if !ok {
		return nil, fmt.Errorf("member %s: %w", memberIDOrEmail, ErrNotFound)
	}

	return &member, nil
}

// RemoveMember removes a member by id or email. Admins cannot remove owners, the last owner always stays.
func (s *OrganizationService) RemoveMember(ctx context.Context, userID, organizationID, memberIDOrEmail string) (*objects.Member, error) {
	actor, err := s.requireRole(ctx, organizationID, userID, objects.RoleOwner, objects.RoleAdmin)
	if err != nil {
		return nil, err
	}

	member, err := s.findMember(ctx, organizationID, memberIDOrEmail)
	if err != nil {
		return nil, err
	}

	if member.Role == objects.RoleOwner && actor.Role != objects.RoleOwner {
		return nil, fmt.Errorf("%w: only owners can remove owners", ErrForbidden)
	}

	if err := s.removeMember(ctx, member); err != nil {
		return nil, err
	}

	return member, nil
}

func (s *OrganizationService) removeMember(ctx context.Context, member *objects.Member) error {
	return s.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.ensureNotLastOwner(ctx, member); err != nil {
			return err
		}

		if _, err := s.db.Exec(ctx, s.db.SQL().Delete(db.TableMembers).Where(entsql.EQ("id", member.ID))); err != nil {
			return fmt.Errorf("failed to remove member: %w", err)
		}

		return s.SessionService.clearActiveOrganization(ctx, member.OrganizationID, member.UserID)
	})
}

// UpdateMemberRole changes the role of a member. Only owners may grant or revoke the owner role.
func (s *OrganizationService) UpdateMemberRole(ctx context.Context, userID, organizationID, memberID, role string) (*objects.Member, error) {
	if !objects.IsValidOrganizationRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}

	actor, err := s.requireRole(ctx, organizationID, userID, objects.RoleOwner, objects.RoleAdmin)
	if err != nil {
		return nil, err
	}

	member, err := s.findMember(ctx, organizationID, memberID)
	if err != nil {
		return nil, err
	}

	if (member.Role == objects.RoleOwner || role == objects.RoleOwner) && actor.Role != objects.RoleOwner {
		return nil, fmt.Errorf("%w: only owners can change owner roles", ErrForbidden)
	}

	if member.Role == role {
		return member, nil
	}

	err = s.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.ensureNotLastOwner(ctx, member); err != nil {
			return err
		}

		_, err := s.db.Exec(ctx, s.db.SQL().Update(db.TableMembers).
			Set("role", role).
			Where(entsql.EQ("id", member.ID)))
		if err != nil {
			return fmt.Errorf("failed to update member role: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	member.Role = role

	return member, nil
}

// LeaveOrganization removes the user's own membership.
func (s *OrganizationService) LeaveOrganization(ctx context.Context, userID, organizationID string) error {
	member, err := s.requireRole(ctx, organizationID, userID)
	if err != nil {
		return err
	}

	return s.removeMember(ctx, member)
}

// GetActiveMember returns the membership of the session user in the session's active organization.
func (s *OrganizationService) GetActiveMember(ctx context.Context, session objects.Session) (*objects.Member, error) {
	if session.ActiveOrganizationID == nil {
		return nil, fmt.Errorf("%w: no active organization", ErrNotFound)
	}

	member, err := s.getMember(ctx, *session.ActiveOrganizationID, session.UserID)
	if err != nil {
		return nil, err
	}

	if member == nil {
		return nil, fmt.Errorf("member: %w", ErrNotFound)
	}

	return member, nil
}
