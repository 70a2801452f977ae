package model

import (
	"time"

	"github.com/google/uuid"
)

type CompanyStatus string

const (
	CompanyActive    CompanyStatus = "active"
	CompanySuspended CompanyStatus = "suspended"
)

type Company struct {
	ID        uuid.UUID     `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name      string        `gorm:"not null" json:"name"`
	Status    CompanyStatus `gorm:"not null;default:active" json:"status"`
	CreatedAt time.Time     `gorm:"autoCreateTime" json:"created_at"`
}
