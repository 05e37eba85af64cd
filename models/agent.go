package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Agent represents a commission-earning role-holder (referrer or consultant)
// in the sales directory. This core only reads agents to resolve beneficiaries;
// account management lives elsewhere.
type Agent struct {
	ID   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"uuid"`

	FullName string `gorm:"type:varchar(255);not null" json:"full_name"`
	Email    string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	IsActive bool   `gorm:"not null;default:true;index" json:"is_active"`

	// Audit fields
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// BeforeCreate ensures UUID is set
func (a *Agent) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == uuid.Nil {
		a.UUID = uuid.New()
	}
	return nil
}

// DisplayName returns the agent's name, falling back to email
func (a *Agent) DisplayName() string {
	if a.FullName != "" {
		return a.FullName
	}
	return a.Email
}

// TableName specifies the table name for GORM
func (Agent) TableName() string {
	return "agents"
}

// AgentFilter represents filter criteria for agent queries
type AgentFilter struct {
	ID       *uint      `json:"id,omitempty"`
	UUID     *uuid.UUID `json:"uuid,omitempty"`
	Email    *string    `json:"email,omitempty"`
	IsActive *bool      `json:"is_active,omitempty"`
}
