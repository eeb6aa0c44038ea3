package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UsageRecord is one consumption event: Quantity units of an accessory used
// on a vehicle. UserID is nil once the acting account has been removed.
type UsageRecord struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	AccessoryID uuid.UUID  `gorm:"column:accessory_id;type:uuid;not null"`
	UserID      *uuid.UUID `gorm:"column:user_id;type:uuid"`
	Brand       string     `gorm:"column:brand;not null"`
	Model       string     `gorm:"column:model;not null"`
	Year        int        `gorm:"column:year;not null"`
	Quantity    int        `gorm:"column:quantity;not null"`
	Flagged     bool       `gorm:"column:flagged;not null;default:false"`
	UsedAt      time.Time  `gorm:"column:used_at;not null"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *UsageRecord) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
