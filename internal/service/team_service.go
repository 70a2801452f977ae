package service

import (
	"context"
	"net/url"
	"strings"

	"taskflow/internal/apperror"
	"taskflow/internal/auth"
	"taskflow/internal/model"
	"taskflow/internal/policy"
	"taskflow/internal/realtime"
	"taskflow/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Mailer delivers password reset links.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, name, link string) error
}

type ResetTokens interface {
	GenerateResetToken(userID uuid.UUID, passwordHash string) (string, error)
	ParseResetToken(token string) (uuid.UUID, string, error)
}

type TeamService struct {
	members   MemberStore
	companies CompanyStore
	events    Publisher
	mailer    Mailer
	tokens    ResetTokens
	resetURL  string
	log       logrus.FieldLogger
}

func NewTeamService(members MemberStore, companies CompanyStore, events Publisher, mailer Mailer, tokens ResetTokens, resetURL string, log logrus.FieldLogger) *TeamService {
	return &TeamService{
		members:   members,
		companies: companies,
		events:    events,
		mailer:    mailer,
		tokens:    tokens,
		resetURL:  resetURL,
		log:       log,
	}
}

type MemberQuery struct {
	CompanyID *uuid.UUID
	Personal  bool
}

type CreateMemberInput struct {
	Email     string
	FullName  string
	Password  string
	Role      string
	CompanyID *uuid.UUID
}

// List returns the members p may see. Company members see their company
// without system admins; system admins see everyone, optionally narrowed to
// one company or to personal accounts.
func (s *TeamService) List(ctx context.Context, p model.Principal, q MemberQuery) ([]model.Member, error) {
	var filter repository.MemberFilter
	switch {
	case p.IsSystemAdmin():
		filter.CompanyID = q.CompanyID
		filter.PersonalOnly = q.Personal && q.CompanyID == nil
	case p.CompanyID != nil:
		filter.CompanyID = p.CompanyID
		filter.ExcludeSystemAdmin = true
	default:
		filter.OnlyID = &p.ID
	}

	members, err := s.members.List(ctx, filter)
	if err != nil {
		return nil, storeErr("failed to list members", err)
	}
	return members, nil
}

func (s *TeamService) Create(ctx context.Context, p model.Principal, in CreateMemberInput) (*model.Member, error) {
	if err := decide(s.log, "member.create", p, policy.CanCreateMember(p), "Only admins can add members"); err != nil {
		return nil, err
	}

	role := model.RoleUser
	if in.Role != "" {
		parsed, ok := model.ParseRole(in.Role)
		if !ok {
			return nil, apperror.Validation("Invalid role")
		}
		role = parsed
	}
	if err := decide(s.log, "member.create", p, policy.CanGrantRole(p, role), "You cannot grant this role"); err != nil {
		return nil, err
	}

	companyID := p.CompanyID
	if !p.IsSystemAdmin() {
		if in.CompanyID != nil && !model.SameCompany(in.CompanyID, p.CompanyID) {
			return nil, decide(s.log, "member.create", p, false, "You can only add members to your own company")
		}
	} else {
		companyID = in.CompanyID
		if companyID != nil {
			if _, err := s.companies.GetByID(ctx, *companyID); err != nil {
				if apperror.KindOf(err) == apperror.KindNotFound {
					return nil, apperror.Validation("Company does not exist")
				}
				return nil, storeErr("failed to load company", err)
			}
		}
	}
	if role == model.RoleCompanyAdmin && companyID == nil {
		return nil, apperror.Validation("Company admins must belong to a company")
	}

	email, fullName, err := normalizeAccount(in.Email, in.FullName)
	if err != nil {
		return nil, err
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	existing, err := s.members.FindByEmail(ctx, email)
	if err != nil {
		return nil, storeErr("failed to look up email", err)
	}
	if existing != nil {
		return nil, apperror.Validation("User with this email already exists")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperror.Store("failed to hash password", err)
	}

	member := &model.Member{
		ID:             uuid.New(),
		CompanyID:      companyID,
		Role:           role,
		Email:          email,
		FullName:       fullName,
		HashedPassword: hash,
	}
	if err := s.members.Create(ctx, member); err != nil {
		return nil, storeErr("failed to create member", err)
	}

	s.publish(ctx, realtime.EventInsert, member, nil, member)
	return member, nil
}

func (s *TeamService) SetRole(ctx context.Context, p model.Principal, targetID uuid.UUID, requested string) (*model.Member, error) {
	role, ok := model.ParseRole(requested)
	if !ok {
		return nil, apperror.Validation("Invalid role")
	}
	target, err := s.members.GetByID(ctx, targetID)
	if err != nil {
		return nil, storeErr("failed to load member", err)
	}
	if err := decide(s.log, "member.set_role", p, policy.CanSetRole(p, target, role), "You cannot change this member's role"); err != nil {
		return nil, err
	}
	if role == model.RoleCompanyAdmin && target.CompanyID == nil {
		return nil, apperror.Validation("Company admins must belong to a company")
	}

	before := *target
	if err := s.members.UpdateRole(ctx, target.ID, role); err != nil {
		return nil, storeErr("failed to update role", err)
	}
	target.Role = role

	s.log.WithFields(logrus.Fields{
		"actor_id":  p.ID,
		"target_id": target.ID,
		"from":      before.Role,
		"to":        role,
	}).Info("Member role changed")

	s.publish(ctx, realtime.EventUpdate, target, &before, target)
	return target, nil
}

// SetPassword is the system admin path: the new password is stored directly
// and the action is written to the audit log.
func (s *TeamService) SetPassword(ctx context.Context, p model.Principal, targetID uuid.UUID, password string) error {
	target, err := s.members.GetByID(ctx, targetID)
	if err != nil {
		return storeErr("failed to load member", err)
	}
	mode := policy.CanResetPassword(p, target)
	if err := decide(s.log, "member.set_password", p, mode == policy.ResetDirect, "Only system admins can set passwords directly"); err != nil {
		return err
	}
	if err := auth.ValidatePassword(password); err != nil {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return apperror.Store("failed to hash password", err)
	}
	if err := s.members.UpdatePassword(ctx, target.ID, hash); err != nil {
		return storeErr("failed to update password", err)
	}

	s.log.WithFields(logrus.Fields{
		"audit":     true,
		"actor_id":  p.ID,
		"target_id": target.ID,
	}).Warn("Password set by administrator")
	return nil
}

// SendPasswordReset mails a reset link to the target's own address. The
// caller never sees the token.
func (s *TeamService) SendPasswordReset(ctx context.Context, p model.Principal, targetID uuid.UUID) error {
	target, err := s.members.GetByID(ctx, targetID)
	if err != nil {
		return storeErr("failed to load member", err)
	}
	mode := policy.CanResetPassword(p, target)
	if err := decide(s.log, "member.reset_email", p, mode != policy.ResetDenied, "You cannot reset this member's password"); err != nil {
		return err
	}

	token, err := s.tokens.GenerateResetToken(target.ID, target.HashedPassword)
	if err != nil {
		return apperror.Store("failed to issue reset token", err)
	}
	link := s.resetURL + "?token=" + url.QueryEscape(token)
	if err := s.mailer.SendPasswordReset(ctx, target.Email, target.FullName, link); err != nil {
		return apperror.Store("failed to send reset email", err)
	}

	s.log.WithFields(logrus.Fields{"actor_id": p.ID, "target_id": target.ID}).Info("Password reset email sent")
	return nil
}

func (s *TeamService) Delete(ctx context.Context, p model.Principal, targetID uuid.UUID) error {
	target, err := s.members.GetByID(ctx, targetID)
	if err != nil {
		return storeErr("failed to load member", err)
	}
	if err := decide(s.log, "member.delete", p, policy.CanDeleteMember(p, target), "You cannot delete this member"); err != nil {
		return err
	}
	if err := s.members.Delete(ctx, target.ID); err != nil {
		return storeErr("failed to delete member", err)
	}

	s.log.WithFields(logrus.Fields{"actor_id": p.ID, "target_id": target.ID}).Info("Member deleted")
	s.publish(ctx, realtime.EventDelete, target, target, nil)
	return nil
}

func (s *TeamService) publish(ctx context.Context, typ realtime.EventType, row, before, after *model.Member) {
	if s.events == nil {
		return
	}
	var old, cur interface{}
	adminOnly := false
	if before != nil {
		old = before
		adminOnly = before.Role == model.RoleSystemAdmin
	}
	if after != nil {
		cur = after
		adminOnly = adminOnly || after.Role == model.RoleSystemAdmin
	}
	ev := realtime.NewEvent(realtime.TableMembers, typ, row.ID, row.CompanyID, row.ID, old, cur)
	// System admin accounts stay out of company member views, before and after a role change.
	ev.AdminOnly = adminOnly
	s.events.Publish(ctx, ev)
}

func normalizeAccount(email, fullName string) (string, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validate.Var(email, "required,email"); err != nil {
		return "", "", apperror.Validation("A valid email is required")
	}
	fullName = strings.TrimSpace(fullName)
	if len(fullName) < 2 {
		return "", "", apperror.Validation("Full name must be at least 2 characters")
	}
	return email, fullName, nil
}
