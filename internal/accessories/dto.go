package accessories

import (
	"time"

	"github.com/google/uuid"
	"github.com/keystock/keystock-backend/internal/alerts"
	"github.com/keystock/keystock-backend/pkg/db/models"
)

// AccessoryDTO is the accessory payload returned to clients.
type AccessoryDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Quantity    int       `json:"quantity"`
	MinQuantity int       `json:"min_quantity"`
	LowStock    bool      `json:"low_stock"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewAccessoryDTO maps the model onto its API shape.
func NewAccessoryDTO(m *models.Accessory) *AccessoryDTO {
	if m == nil {
		return nil
	}
	return &AccessoryDTO{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Quantity:    m.Quantity,
		MinQuantity: m.MinQuantity,
		LowStock:    alerts.IsLow(*m),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// NewAccessoryDTOs maps a slice of models, never returning nil.
func NewAccessoryDTOs(rows []models.Accessory) []AccessoryDTO {
	out := make([]AccessoryDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *NewAccessoryDTO(&rows[i]))
	}
	return out
}
