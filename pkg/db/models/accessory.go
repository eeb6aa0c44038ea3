package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Accessory is a stocked key blank, remote shell, chip or similar part.
// MinQuantity of zero disables low-stock alerting.
type Accessory struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	Description *string   `gorm:"column:description"`
	Quantity    int       `gorm:"column:quantity;not null;default:0"`
	MinQuantity int       `gorm:"column:min_quantity;not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *Accessory) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
