// Package service applies user intents in a fixed order: tenant guard,
// authorization policy, store write, change event. Nothing reaches the
// store unless the policy allowed it.
package service

import (
	"context"
	"errors"
	"time"

	"taskflow/internal/apperror"
	"taskflow/internal/metrics"
	"taskflow/internal/model"
	"taskflow/internal/realtime"
	"taskflow/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// validate checks input that can reach services without HTTP binding.
var validate = validator.New()

type CompanyStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Company, error)
	CreateWithAdmin(ctx context.Context, company *model.Company, admin *model.Member) error
}

type MemberStore interface {
	Create(ctx context.Context, member *model.Member) error
	FindByEmail(ctx context.Context, email string) (*model.Member, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Member, error)
	List(ctx context.Context, f repository.MemberFilter) ([]model.Member, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role model.Role) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hashed string) error
	UpdateName(ctx context.Context, id uuid.UUID, fullName string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type ProjectStore interface {
	Create(ctx context.Context, project *model.Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Project, error)
	List(ctx context.Context, scope repository.Scope, status *model.ProjectStatus) ([]model.Project, error)
	Update(ctx context.Context, project *model.Project) error
	DeleteCascade(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
}

type TaskStore interface {
	Create(ctx context.Context, task *model.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error)
	List(ctx context.Context, f repository.TaskFilter) ([]model.Task, error)
	StatusCounts(ctx context.Context, f repository.TaskFilter) ([]repository.StatusCount, error)
	NextPosition(ctx context.Context, task *model.Task) (int, error)
	Update(ctx context.Context, task *model.Task) error
	Relocate(ctx context.Context, task, from *model.Task) error
	Move(ctx context.Context, task *model.Task, fromStatus model.TaskStatus, fromPosition int) error
}

// Publisher receives change events after a successful write.
type Publisher interface {
	Publish(ctx context.Context, ev realtime.Event)
}

// Clock is swapped in tests.
type Clock func() time.Time

// ScopeFor returns the listing scope of p: everything for system admins,
// otherwise the principal's company or personal rows.
func ScopeFor(p model.Principal) repository.Scope {
	if p.IsSystemAdmin() {
		return repository.Scope{All: true}
	}
	return repository.Scope{CompanyID: p.CompanyID, OwnerID: p.ID}
}

// storeErr passes typed errors through and wraps anything else as a store failure.
func storeErr(msg string, err error) error {
	if apperror.KindOf(err) != apperror.KindUnknown {
		return err
	}
	return apperror.Store(msg, err)
}

// decide records an authorization outcome and turns a denial into err.
func decide(log logrus.FieldLogger, action string, p model.Principal, allowed bool, msg string) error {
	metrics.RecordDecision(action, allowed)
	if allowed {
		return nil
	}
	log.WithFields(logrus.Fields{"action": action, "user_id": p.ID, "role": p.Role}).Info("Authorization denied")
	return apperror.Forbidden(msg)
}

// check is decide for policy functions that already return a typed error.
func check(log logrus.FieldLogger, action string, p model.Principal, err error) error {
	metrics.RecordDecision(action, err == nil)
	if err != nil && errors.Is(err, apperror.ErrForbidden) {
		log.WithFields(logrus.Fields{"action": action, "user_id": p.ID, "role": p.Role}).Info("Authorization denied")
	}
	return err
}
