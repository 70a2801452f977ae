package service_test

import (
	"context"
	"io"
	"sync"

	"taskflow/internal/model"
	"taskflow/internal/realtime"
	"taskflow/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

type MockCompanyStore struct {
	mock.Mock
}

func (m *MockCompanyStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Company, error) {
	args := m.Called(ctx, id)
	company := args.Get(0)
	if company == nil {
		return nil, args.Error(1)
	}
	return company.(*model.Company), args.Error(1)
}

func (m *MockCompanyStore) CreateWithAdmin(ctx context.Context, company *model.Company, admin *model.Member) error {
	args := m.Called(ctx, company, admin)
	return args.Error(0)
}

type MockMemberStore struct {
	mock.Mock
}

func (m *MockMemberStore) Create(ctx context.Context, member *model.Member) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *MockMemberStore) FindByEmail(ctx context.Context, email string) (*model.Member, error) {
	args := m.Called(ctx, email)
	member := args.Get(0)
	if member == nil {
		return nil, args.Error(1)
	}
	return member.(*model.Member), args.Error(1)
}

func (m *MockMemberStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Member, error) {
	args := m.Called(ctx, id)
	member := args.Get(0)
	if member == nil {
		return nil, args.Error(1)
	}
	return member.(*model.Member), args.Error(1)
}

func (m *MockMemberStore) List(ctx context.Context, f repository.MemberFilter) ([]model.Member, error) {
	args := m.Called(ctx, f)
	members := args.Get(0)
	if members == nil {
		return nil, args.Error(1)
	}
	return members.([]model.Member), args.Error(1)
}

func (m *MockMemberStore) UpdateRole(ctx context.Context, id uuid.UUID, role model.Role) error {
	args := m.Called(ctx, id, role)
	return args.Error(0)
}

func (m *MockMemberStore) UpdatePassword(ctx context.Context, id uuid.UUID, hashed string) error {
	args := m.Called(ctx, id, hashed)
	return args.Error(0)
}

func (m *MockMemberStore) UpdateName(ctx context.Context, id uuid.UUID, fullName string) error {
	args := m.Called(ctx, id, fullName)
	return args.Error(0)
}

func (m *MockMemberStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockProjectStore struct {
	mock.Mock
}

func (m *MockProjectStore) Create(ctx context.Context, project *model.Project) error {
	args := m.Called(ctx, project)
	return args.Error(0)
}

func (m *MockProjectStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	args := m.Called(ctx, id)
	project := args.Get(0)
	if project == nil {
		return nil, args.Error(1)
	}
	return project.(*model.Project), args.Error(1)
}

func (m *MockProjectStore) List(ctx context.Context, scope repository.Scope, status *model.ProjectStatus) ([]model.Project, error) {
	args := m.Called(ctx, scope, status)
	projects := args.Get(0)
	if projects == nil {
		return nil, args.Error(1)
	}
	return projects.([]model.Project), args.Error(1)
}

func (m *MockProjectStore) Update(ctx context.Context, project *model.Project) error {
	args := m.Called(ctx, project)
	return args.Error(0)
}

func (m *MockProjectStore) DeleteCascade(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, id)
	ids := args.Get(0)
	if ids == nil {
		return nil, args.Error(1)
	}
	return ids.([]uuid.UUID), args.Error(1)
}

type MockTaskStore struct {
	mock.Mock
}

func (m *MockTaskStore) Create(ctx context.Context, task *model.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	args := m.Called(ctx, id)
	task := args.Get(0)
	if task == nil {
		return nil, args.Error(1)
	}
	return task.(*model.Task), args.Error(1)
}

func (m *MockTaskStore) List(ctx context.Context, f repository.TaskFilter) ([]model.Task, error) {
	args := m.Called(ctx, f)
	tasks := args.Get(0)
	if tasks == nil {
		return nil, args.Error(1)
	}
	return tasks.([]model.Task), args.Error(1)
}

func (m *MockTaskStore) StatusCounts(ctx context.Context, f repository.TaskFilter) ([]repository.StatusCount, error) {
	args := m.Called(ctx, f)
	rows := args.Get(0)
	if rows == nil {
		return nil, args.Error(1)
	}
	return rows.([]repository.StatusCount), args.Error(1)
}

func (m *MockTaskStore) NextPosition(ctx context.Context, task *model.Task) (int, error) {
	args := m.Called(ctx, task)
	return args.Int(0), args.Error(1)
}

func (m *MockTaskStore) Update(ctx context.Context, task *model.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockTaskStore) Relocate(ctx context.Context, task, from *model.Task) error {
	args := m.Called(ctx, task, from)
	return args.Error(0)
}

func (m *MockTaskStore) Move(ctx context.Context, task *model.Task, fromStatus model.TaskStatus, fromPosition int) error {
	args := m.Called(ctx, task, fromStatus, fromPosition)
	return args.Error(0)
}

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (r *recorder) Publish(ctx context.Context, ev realtime.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []realtime.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]realtime.Event(nil), r.events...)
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func ptr(id uuid.UUID) *uuid.UUID {
	return &id
}

func principal(role model.Role, company *uuid.UUID) model.Principal {
	return model.Principal{ID: uuid.New(), CompanyID: company, Role: role}
}
