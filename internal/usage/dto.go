package usage

import (
	"time"

	"github.com/google/uuid"
	"github.com/keystock/keystock-backend/internal/accessories"
)

// RecordDTO is a usage history row as returned to clients. UsedAt is
// rendered in the shop's time zone.
type RecordDTO struct {
	ID            uuid.UUID  `json:"id"`
	AccessoryID   uuid.UUID  `json:"accessory_id"`
	AccessoryName string     `json:"accessory_name"`
	UserID        *uuid.UUID `json:"user_id,omitempty"`
	UserName      *string    `json:"user_name,omitempty"`
	Brand         string     `json:"brand"`
	Model         string     `json:"model"`
	Year          int        `json:"year"`
	Quantity      int        `json:"quantity"`
	Flagged       bool       `json:"flagged"`
	UsedAt        time.Time  `json:"used_at"`
}

// ResultDTO is returned by register, edit and delete: the affected record,
// the live accessory state and whether it is now low on stock.
type ResultDTO struct {
	Record    *RecordDTO                `json:"record,omitempty"`
	Accessory *accessories.AccessoryDTO `json:"accessory"`
	Alert     bool                      `json:"alert"`
}

// NewRecordDTO maps a joined row onto its API shape.
func NewRecordDTO(row *Row, loc *time.Location) *RecordDTO {
	if row == nil {
		return nil
	}
	usedAt := row.UsedAt
	if loc != nil {
		usedAt = usedAt.In(loc)
	}
	return &RecordDTO{
		ID:            row.ID,
		AccessoryID:   row.AccessoryID,
		AccessoryName: row.AccessoryName,
		UserID:        row.UserID,
		UserName:      row.UserName,
		Brand:         row.Brand,
		Model:         row.Model,
		Year:          row.Year,
		Quantity:      row.Quantity,
		Flagged:       row.Flagged,
		UsedAt:        usedAt,
	}
}

// NewRecordDTOs maps history rows, never returning nil.
func NewRecordDTOs(rows []Row, loc *time.Location) []RecordDTO {
	out := make([]RecordDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *NewRecordDTO(&rows[i], loc))
	}
	return out
}

// NewResultDTO maps a ledger mutation result.
func NewResultDTO(result *Result, loc *time.Location) *ResultDTO {
	if result == nil {
		return nil
	}
	return &ResultDTO{
		Record:    NewRecordDTO(result.Record, loc),
		Accessory: accessories.NewAccessoryDTO(result.Accessory),
		Alert:     result.Alert,
	}
}
