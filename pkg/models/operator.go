package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Operator is an enrolled console account. PasswordHash is the bcrypt hash of
// the digest the console sends, never the digest itself.
type Operator struct {
	ID           string         `gorm:"primaryKey;type:uuid" json:"id"`
	LoginID      string         `gorm:"column:login_id;uniqueIndex;not null" json:"login_id"`
	PasswordHash string         `gorm:"column:password_hash;not null" json:"-"` // Not show in JSON
	Username     string         `json:"username,omitempty"`
	CarModel     string         `gorm:"column:car_model" json:"car_model,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	LastLogin    *time.Time     `json:"last_login,omitempty"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook to set UUID before creating an Operator
func (o *Operator) BeforeCreate(tx *gorm.DB) (err error) {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	return
}

func (Operator) TableName() string {
	return "operators"
}
