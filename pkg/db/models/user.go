package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/keystock/keystock-backend/pkg/enums"
	"gorm.io/gorm"
)

// User is an account that can sign in and register usage.
type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Username     string     `gorm:"column:username;not null;uniqueIndex:users_username_key"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	Role         enums.Role `gorm:"column:role;type:text;not null;default:user"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the primary key in code so SQLite and Postgres share
// the same schema.
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// IsAdmin reports whether the account holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == enums.RoleAdmin
}
