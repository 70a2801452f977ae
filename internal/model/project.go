package model

import (
	"time"

	"github.com/google/uuid"
)

type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectArchived  ProjectStatus = "archived"
)

// ParseProjectStatus accepts the lower-case wire form of a project status.
func ParseProjectStatus(s string) (ProjectStatus, bool) {
	switch ProjectStatus(s) {
	case ProjectActive, ProjectCompleted, ProjectArchived:
		return ProjectStatus(s), true
	}
	return "", false
}

// Project groups tasks. A nil CompanyID marks a personal project owned by CreatedBy.
type Project struct {
	ID          uuid.UUID     `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CompanyID   *uuid.UUID    `gorm:"type:uuid;index" json:"company_id"`
	Name        string        `gorm:"not null" json:"name"`
	Description string        `json:"description"`
	Status      ProjectStatus `gorm:"not null;default:active" json:"status"`
	CreatedBy   uuid.UUID     `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
