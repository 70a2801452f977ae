package service

import (
	"context"
	"strings"

	"taskflow/internal/apperror"
	"taskflow/internal/auth"
	"taskflow/internal/model"
	"taskflow/internal/realtime"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type SessionTokens interface {
	GenerateToken(userID uuid.UUID) (string, error)
}

// AccountService covers sign-up, sign-in and self-service profile changes.
type AccountService struct {
	members   MemberStore
	companies CompanyStore
	sessions  SessionTokens
	resets    ResetTokens
	events    Publisher
	log       logrus.FieldLogger
}

func NewAccountService(members MemberStore, companies CompanyStore, sessions SessionTokens, resets ResetTokens, events Publisher, log logrus.FieldLogger) *AccountService {
	return &AccountService{
		members:   members,
		companies: companies,
		sessions:  sessions,
		resets:    resets,
		events:    events,
		log:       log,
	}
}

type RegisterInput struct {
	Email       string
	FullName    string
	Password    string
	CompanyName string
}

// Register creates a personal account, or a company together with its first
// company admin when CompanyName is set.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*model.Member, string, error) {
	email, fullName, err := normalizeAccount(in.Email, in.FullName)
	if err != nil {
		return nil, "", err
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return nil, "", err
	}

	existing, err := s.members.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", storeErr("failed to look up email", err)
	}
	if existing != nil {
		return nil, "", apperror.Validation("User with this email already exists")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, "", apperror.Store("failed to hash password", err)
	}

	member := &model.Member{
		ID:             uuid.New(),
		Role:           model.RoleUser,
		Email:          email,
		FullName:       fullName,
		HashedPassword: hash,
	}

	if name := strings.TrimSpace(in.CompanyName); name != "" {
		company := &model.Company{ID: uuid.New(), Name: name, Status: model.CompanyActive}
		if err := s.companies.CreateWithAdmin(ctx, company, member); err != nil {
			return nil, "", storeErr("failed to create company", err)
		}
		s.log.WithFields(logrus.Fields{"company_id": company.ID, "user_id": member.ID}).Info("Company registered")
	} else if err := s.members.Create(ctx, member); err != nil {
		return nil, "", storeErr("failed to create account", err)
	}

	token, err := s.sessions.GenerateToken(member.ID)
	if err != nil {
		return nil, "", apperror.Store("failed to issue token", err)
	}

	if s.events != nil {
		s.events.Publish(ctx, realtime.NewEvent(realtime.TableMembers, realtime.EventInsert, member.ID, member.CompanyID, member.ID, nil, member))
	}
	return member, token, nil
}

func (s *AccountService) Login(ctx context.Context, email, password string) (*model.Member, string, error) {
	member, err := s.members.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, "", storeErr("failed to look up email", err)
	}
	if member == nil || !auth.CheckPassword(member.HashedPassword, password) {
		return nil, "", apperror.Unauthenticated("Invalid credentials")
	}

	token, err := s.sessions.GenerateToken(member.ID)
	if err != nil {
		return nil, "", apperror.Store("failed to issue token", err)
	}
	return member, token, nil
}

func (s *AccountService) Me(ctx context.Context, p model.Principal) (*model.Member, error) {
	member, err := s.members.GetByID(ctx, p.ID)
	if err != nil {
		return nil, storeErr("failed to load account", err)
	}
	return member, nil
}

// UpdateProfile lets any member change their own display name.
func (s *AccountService) UpdateProfile(ctx context.Context, p model.Principal, fullName string) (*model.Member, error) {
	fullName = strings.TrimSpace(fullName)
	if len(fullName) < 2 {
		return nil, apperror.Validation("Full name must be at least 2 characters")
	}
	if err := s.members.UpdateName(ctx, p.ID, fullName); err != nil {
		return nil, storeErr("failed to update profile", err)
	}
	return s.Me(ctx, p)
}

// ConfirmPasswordReset consumes a mailed reset token. The token is bound to the
// password it was issued against, so it works once.
func (s *AccountService) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	invalid := apperror.Validation("Reset link is invalid or has expired")

	userID, fingerprint, err := s.resets.ParseResetToken(token)
	if err != nil {
		return invalid
	}
	if err := auth.ValidatePassword(password); err != nil {
		return err
	}

	member, err := s.members.GetByID(ctx, userID)
	if err != nil {
		if apperror.KindOf(err) == apperror.KindNotFound {
			return invalid
		}
		return storeErr("failed to load account", err)
	}
	if !auth.MatchesPassword(fingerprint, member.HashedPassword) {
		s.log.WithField("user_id", userID).Warn("Rejected a reused password reset token")
		return invalid
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return apperror.Store("failed to hash password", err)
	}
	if err := s.members.UpdatePassword(ctx, userID, hash); err != nil {
		if apperror.KindOf(err) == apperror.KindNotFound {
			return invalid
		}
		return storeErr("failed to update password", err)
	}

	s.log.WithField("user_id", userID).Info("Password reset completed")
	return nil
}
