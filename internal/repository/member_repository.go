package repository

import (
	"context"
	"errors"

	"taskflow/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MemberRepository struct {
	db *gorm.DB
}

// MemberFilter selects members for listing. Zero value lists everyone.
type MemberFilter struct {
	CompanyID          *uuid.UUID
	PersonalOnly       bool
	ExcludeSystemAdmin bool
	OnlyID             *uuid.UUID
}

func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

func (r *MemberRepository) Create(ctx context.Context, member *model.Member) error {
	return r.db.WithContext(ctx).Create(member).Error
}

// FindByEmail returns nil, nil when no member has the address.
func (r *MemberRepository) FindByEmail(ctx context.Context, email string) (*model.Member, error) {
	var member model.Member
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *MemberRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Member, error) {
	var member model.Member
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *MemberRepository) List(ctx context.Context, f MemberFilter) ([]model.Member, error) {
	q := r.db.WithContext(ctx).Model(&model.Member{})
	if f.OnlyID != nil {
		q = q.Where("id = ?", *f.OnlyID)
	}
	if f.CompanyID != nil {
		q = q.Where("company_id = ?", *f.CompanyID)
	}
	if f.PersonalOnly {
		q = q.Where("company_id IS NULL")
	}
	if f.ExcludeSystemAdmin {
		q = q.Where("role <> ?", model.RoleSystemAdmin)
	}

	var members []model.Member
	err := q.Order("full_name").Find(&members).Error
	return members, err
}

func (r *MemberRepository) UpdateRole(ctx context.Context, id uuid.UUID, role model.Role) error {
	return r.updateColumn(ctx, id, "role", role)
}

func (r *MemberRepository) UpdatePassword(ctx context.Context, id uuid.UUID, hashed string) error {
	return r.updateColumn(ctx, id, "hashed_password", hashed)
}

func (r *MemberRepository) UpdateName(ctx context.Context, id uuid.UUID, fullName string) error {
	return r.updateColumn(ctx, id, "full_name", fullName)
}

func (r *MemberRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&model.Member{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (r *MemberRepository) updateColumn(ctx context.Context, id uuid.UUID, column string, value interface{}) error {
	result := r.db.WithContext(ctx).Model(&model.Member{}).Where("id = ?", id).Update(column, value)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}
