package model

import (
	"time"

	"github.com/google/uuid"
)

// Member is the membership record backing a Principal.
type Member struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CompanyID      *uuid.UUID `gorm:"type:uuid;index" json:"company_id"`
	Role           Role       `gorm:"not null;default:user" json:"role"`
	Email          string     `gorm:"uniqueIndex;not null" json:"email"`
	FullName       string     `gorm:"not null" json:"full_name"`
	HashedPassword string     `gorm:"not null" json:"-"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// Principal returns the acting identity described by this record.
func (m *Member) Principal() Principal {
	return Principal{ID: m.ID, CompanyID: m.CompanyID, Role: m.Role}
}
