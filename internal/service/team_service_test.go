package service_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"taskflow/internal/apperror"
	"taskflow/internal/auth"
	"taskflow/internal/model"
	"taskflow/internal/repository"
	"taskflow/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	to, name, link string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (m *fakeMailer) SendPasswordReset(ctx context.Context, to, name, link string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, name: name, link: link})
	return nil
}

type teamFixture struct {
	members   *MockMemberStore
	companies *MockCompanyStore
	mailer    *fakeMailer
	tokens    *auth.TokenManager
	events    *recorder
	svc       *service.TeamService
}

func newTeamFixture() *teamFixture {
	f := &teamFixture{
		members:   new(MockMemberStore),
		companies: new(MockCompanyStore),
		mailer:    &fakeMailer{},
		tokens:    auth.NewTokenManager("test-secret", time.Hour, 30*time.Minute),
		events:    &recorder{},
	}
	f.svc = service.NewTeamService(f.members, f.companies, f.events, f.mailer, f.tokens, "http://localhost:3000/reset-password", quietLogger())
	return f
}

func TestTeamService_List_CompanyViewHidesSystemAdmins(t *testing.T) {
	f := newTeamFixture()
	company := uuid.New()
	p := principal(model.RoleUser, &company)
	f.members.On("List", mock.Anything, repository.MemberFilter{CompanyID: &company, ExcludeSystemAdmin: true}).Return([]model.Member{}, nil)

	_, err := f.svc.List(context.Background(), p, service.MemberQuery{CompanyID: ptr(uuid.New())})

	require.NoError(t, err)
	f.members.AssertExpectations(t)
}

func TestTeamService_List_PersonalSeesOnlySelf(t *testing.T) {
	f := newTeamFixture()
	p := principal(model.RoleUser, nil)
	f.members.On("List", mock.Anything, repository.MemberFilter{OnlyID: &p.ID}).Return([]model.Member{{ID: p.ID}}, nil)

	members, err := f.svc.List(context.Background(), p, service.MemberQuery{})

	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestTeamService_Create_CompanyAdminAddsMember(t *testing.T) {
	f := newTeamFixture()
	company := uuid.New()
	p := principal(model.RoleCompanyAdmin, &company)
	f.members.On("FindByEmail", mock.Anything, "new@example.com").Return(nil, nil)
	f.members.On("Create", mock.Anything, mock.AnythingOfType("*model.Member")).Return(nil)

	member, err := f.svc.Create(context.Background(), p, service.CreateMemberInput{
		Email:    " New@Example.com ",
		FullName: "New Member",
		Password: "password123",
	})

	require.NoError(t, err)
	assert.Equal(t, "new@example.com", member.Email)
	assert.Equal(t, &company, member.CompanyID)
	assert.Equal(t, model.RoleUser, member.Role)
	assert.True(t, auth.CheckPassword(member.HashedPassword, "password123"))
	assert.Len(t, f.events.all(), 1)
}

func TestTeamService_Create_CompanyAdminCannotGrantSystemAdmin(t *testing.T) {
	f := newTeamFixture()
	company := uuid.New()

	_, err := f.svc.Create(context.Background(), principal(model.RoleCompanyAdmin, &company), service.CreateMemberInput{
		Email: "x@example.com", FullName: "Someone", Password: "password123", Role: "system_admin",
	})

	assert.ErrorIs(t, err, apperror.ErrForbidden)
	f.members.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestTeamService_Create_UserIsForbidden(t *testing.T) {
	f := newTeamFixture()
	company := uuid.New()

	_, err := f.svc.Create(context.Background(), principal(model.RoleUser, &company), service.CreateMemberInput{
		Email: "x@example.com", FullName: "Someone", Password: "password123",
	})

	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestTeamService_Create_DuplicateEmail(t *testing.T) {
	f := newTeamFixture()
	company := uuid.New()
	f.members.On("FindByEmail", mock.Anything, "taken@example.com").Return(&model.Member{ID: uuid.New()}, nil)

	_, err := f.svc.Create(context.Background(), principal(model.RoleCompanyAdmin, &company), service.CreateMemberInput{
		Email: "taken@example.com", FullName: "Someone", Password: "password123",
	})

	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestTeamService_Create_PersonalCompanyAdminIsInvalid(t *testing.T) {
	f := newTeamFixture()

	_, err := f.svc.Create(context.Background(), principal(model.RoleSystemAdmin, nil), service.CreateMemberInput{
		Email: "x@example.com", FullName: "Someone", Password: "password123", Role: "company_admin",
	})

	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestTeamService_SetRole_CompanyAdminCannotDemoteSelf(t *testing.T) {
	f := newTeamFixture()
	company := uuid.New()
	self := &model.Member{ID: uuid.New(), CompanyID: &company, Role: model.RoleCompanyAdmin}
	f.members.On("GetByID", mock.Anything, self.ID).Return(self, nil)

	_, err := f.svc.SetRole(context.Background(), self.Principal(), self.ID, "user")

	assert.ErrorIs(t, err, apperror.ErrForbidden)
	assert.Equal(t, model.RoleCompanyAdmin, self.Role)
	f.members.AssertNotCalled(t, "UpdateRole", mock.Anything, mock.Anything, mock.Anything)
}

func TestTeamService_SetRole_PromoteMember(t *testing.T) {
	f := newTeamFixture()
	company := uuid.New()
	target := &model.Member{ID: uuid.New(), CompanyID: &company, Role: model.RoleUser}
	f.members.On("GetByID", mock.Anything, target.ID).Return(target, nil)
	f.members.On("UpdateRole", mock.Anything, target.ID, model.RoleCompanyAdmin).Return(nil)

	updated, err := f.svc.SetRole(context.Background(), principal(model.RoleCompanyAdmin, &company), target.ID, "company_admin")

	require.NoError(t, err)
	assert.Equal(t, model.RoleCompanyAdmin, updated.Role)
	f.members.AssertExpectations(t)
}

func TestTeamService_SetRole_AcceptsLegacyAlias(t *testing.T) {
	f := newTeamFixture()
	target := &model.Member{ID: uuid.New(), Role: model.RoleUser}
	f.members.On("GetByID", mock.Anything, target.ID).Return(target, nil)
	f.members.On("UpdateRole", mock.Anything, target.ID, model.RoleSystemAdmin).Return(nil)

	updated, err := f.svc.SetRole(context.Background(), principal(model.RoleSystemAdmin, nil), target.ID, "sys_admin")

	require.NoError(t, err)
	assert.Equal(t, model.RoleSystemAdmin, updated.Role)
}

func TestTeamService_SetRole_SystemAdminEventsAreAdminOnly(t *testing.T) {
	f := newTeamFixture()
	company := uuid.New()
	target := &model.Member{ID: uuid.New(), CompanyID: &company, Role: model.RoleSystemAdmin}
	f.members.On("GetByID", mock.Anything, target.ID).Return(target, nil)
	f.members.On("UpdateRole", mock.Anything, target.ID, model.RoleUser).Return(nil)

	_, err := f.svc.SetRole(context.Background(), principal(model.RoleSystemAdmin, nil), target.ID, "user")

	require.NoError(t, err)
	events := f.events.all()
	require.Len(t, events, 1)
	assert.True(t, events[0].AdminOnly)
}

func TestTeamService_SetRole_MemberEventsAreShared(t *testing.T) {
	f := newTeamFixture()
	company := uuid.New()
	target := &model.Member{ID: uuid.New(), CompanyID: &company, Role: model.RoleUser}
	f.members.On("GetByID", mock.Anything, target.ID).Return(target, nil)
	f.members.On("UpdateRole", mock.Anything, target.ID, model.RoleCompanyAdmin).Return(nil)

	_, err := f.svc.SetRole(context.Background(), principal(model.RoleCompanyAdmin, &company), target.ID, "company_admin")

	require.NoError(t, err)
	events := f.events.all()
	require.Len(t, events, 1)
	assert.False(t, events[0].AdminOnly)
}

func TestTeamService_SetRole_UnknownRole(t *testing.T) {
	f := newTeamFixture()

	_, err := f.svc.SetRole(context.Background(), principal(model.RoleSystemAdmin, nil), uuid.New(), "owner")

	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestTeamService_SetPassword_OnlySystemAdmin(t *testing.T) {
	f := newTeamFixture()
	company := uuid.New()
	target := &model.Member{ID: uuid.New(), CompanyID: &company, Role: model.RoleUser}
	f.members.On("GetByID", mock.Anything, target.ID).Return(target, nil)

	err := f.svc.SetPassword(context.Background(), principal(model.RoleCompanyAdmin, &company), target.ID, "password123")

	assert.ErrorIs(t, err, apperror.ErrForbidden)
	f.members.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
}

func TestTeamService_SetPassword_SystemAdmin(t *testing.T) {
	f := newTeamFixture()
	company := uuid.New()
	target := &model.Member{ID: uuid.New(), CompanyID: &company, Role: model.RoleUser}
	f.members.On("GetByID", mock.Anything, target.ID).Return(target, nil)
	f.members.On("UpdatePassword", mock.Anything, target.ID, mock.MatchedBy(func(hash string) bool {
		return auth.CheckPassword(hash, "password123")
	})).Return(nil)

	err := f.svc.SetPassword(context.Background(), principal(model.RoleSystemAdmin, nil), target.ID, "password123")

	require.NoError(t, err)
	f.members.AssertExpectations(t)
}

func TestTeamService_SetPassword_TooShort(t *testing.T) {
	f := newTeamFixture()
	target := &model.Member{ID: uuid.New(), Role: model.RoleUser}
	f.members.On("GetByID", mock.Anything, target.ID).Return(target, nil)

	err := f.svc.SetPassword(context.Background(), principal(model.RoleSystemAdmin, nil), target.ID, "short")

	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestTeamService_SendPasswordReset_MailsTarget(t *testing.T) {
	f := newTeamFixture()
	company := uuid.New()
	target := &model.Member{ID: uuid.New(), CompanyID: &company, Role: model.RoleUser, Email: "ann@example.com", FullName: "Ann", HashedPassword: "$2a$10$ann"}
	f.members.On("GetByID", mock.Anything, target.ID).Return(target, nil)

	err := f.svc.SendPasswordReset(context.Background(), principal(model.RoleCompanyAdmin, &company), target.ID)

	require.NoError(t, err)
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "ann@example.com", f.mailer.sent[0].to)
	assert.True(t, strings.HasPrefix(f.mailer.sent[0].link, "http://localhost:3000/reset-password?token="))

	link, err := url.Parse(f.mailer.sent[0].link)
	require.NoError(t, err)
	id, fingerprint, err := f.tokens.ParseResetToken(link.Query().Get("token"))
	require.NoError(t, err)
	assert.Equal(t, target.ID, id)
	assert.True(t, auth.MatchesPassword(fingerprint, target.HashedPassword))
}

func TestTeamService_SendPasswordReset_OtherCompany(t *testing.T) {
	f := newTeamFixture()
	company := uuid.New()
	other := uuid.New()
	target := &model.Member{ID: uuid.New(), CompanyID: &other, Role: model.RoleUser}
	f.members.On("GetByID", mock.Anything, target.ID).Return(target, nil)

	err := f.svc.SendPasswordReset(context.Background(), principal(model.RoleCompanyAdmin, &company), target.ID)

	assert.ErrorIs(t, err, apperror.ErrForbidden)
	assert.Empty(t, f.mailer.sent)
}

func TestTeamService_SendPasswordReset_MailerFailure(t *testing.T) {
	f := newTeamFixture()
	f.mailer.err = errors.New("smtp down")
	company := uuid.New()
	target := &model.Member{ID: uuid.New(), CompanyID: &company, Role: model.RoleUser}
	f.members.On("GetByID", mock.Anything, target.ID).Return(target, nil)

	err := f.svc.SendPasswordReset(context.Background(), principal(model.RoleCompanyAdmin, &company), target.ID)

	assert.ErrorIs(t, err, apperror.ErrStore)
}

func TestTeamService_Delete(t *testing.T) {
	f := newTeamFixture()
	company := uuid.New()
	p := principal(model.RoleCompanyAdmin, &company)
	target := &model.Member{ID: uuid.New(), CompanyID: &company, Role: model.RoleUser}
	f.members.On("GetByID", mock.Anything, target.ID).Return(target, nil)
	f.members.On("Delete", mock.Anything, target.ID).Return(nil)

	err := f.svc.Delete(context.Background(), p, target.ID)

	require.NoError(t, err)
	f.members.AssertExpectations(t)
	assert.Len(t, f.events.all(), 1)
}

func TestTeamService_Delete_Self(t *testing.T) {
	f := newTeamFixture()
	company := uuid.New()
	self := &model.Member{ID: uuid.New(), CompanyID: &company, Role: model.RoleCompanyAdmin}
	f.members.On("GetByID", mock.Anything, self.ID).Return(self, nil)

	err := f.svc.Delete(context.Background(), self.Principal(), self.ID)

	assert.ErrorIs(t, err, apperror.ErrForbidden)
	f.members.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestTeamService_Delete_NotFound(t *testing.T) {
	f := newTeamFixture()
	id := uuid.New()
	f.members.On("GetByID", mock.Anything, id).Return(nil, repository.ErrMemberNotFound)

	err := f.svc.Delete(context.Background(), principal(model.RoleSystemAdmin, nil), id)

	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
