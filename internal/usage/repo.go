package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/keystock/keystock-backend/internal/repo"
	"github.com/keystock/keystock-backend/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Row is a usage record joined with the accessory and user names shown in
// the history view. UserName is nil once the account has been removed.
type Row struct {
	ID            uuid.UUID  `gorm:"column:id"`
	AccessoryID   uuid.UUID  `gorm:"column:accessory_id"`
	AccessoryName string     `gorm:"column:accessory_name"`
	UserID        *uuid.UUID `gorm:"column:user_id"`
	UserName      *string    `gorm:"column:user_name"`
	Brand         string     `gorm:"column:brand"`
	Model         string     `gorm:"column:model"`
	Year          int        `gorm:"column:year"`
	Quantity      int        `gorm:"column:quantity"`
	Flagged       bool       `gorm:"column:flagged"`
	UsedAt        time.Time  `gorm:"column:used_at"`
}

const rowColumns = `ur.id, ur.accessory_id, a.name AS accessory_name, ur.user_id, u.username AS user_name,
ur.brand, ur.model, ur.year, ur.quantity, ur.flagged, ur.used_at`

// Repository persists usage records.
type Repository struct {
	repo.Base
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Base.WithTx(tx)}
}

// Create appends a record to the ledger.
func (r *Repository) Create(ctx context.Context, record *models.UsageRecord) error {
	return r.DB(ctx).Create(record).Error
}

// FindByID loads a bare record.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.UsageRecord, error) {
	var record models.UsageRecord
	if err := r.DB(ctx).First(&record, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByIDForUpdate loads a record and, on Postgres, row-locks it until the
// transaction ends so concurrent edits of the same record serialize.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.UsageRecord, error) {
	var record models.UsageRecord
	if err := r.DB(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		First(&record, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// UpdateDetails writes the editable columns of the record.
func (r *Repository) UpdateDetails(ctx context.Context, record *models.UsageRecord) error {
	return r.DB(ctx).
		Model(record).
		Select("brand", "model", "year", "quantity", "updated_at").
		Updates(record).Error
}

// ToggleFlag inverts the flag in place and reports whether a row matched.
func (r *Repository) ToggleFlag(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.DB(ctx).
		Model(&models.UsageRecord{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"flagged":    gorm.Expr("NOT flagged"),
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// Delete removes a record and reports whether a row matched.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.DB(ctx).Where("id = ?", id).Delete(&models.UsageRecord{})
	return res.RowsAffected, res.Error
}

// FindRow loads a single enriched record.
func (r *Repository) FindRow(ctx context.Context, id uuid.UUID) (*Row, error) {
	var rows []Row
	if err := r.rows(ctx).Where("ur.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rows[0], nil
}

// ListBetween returns records with from <= used_at < to, newest first. When
// userID is set only that user's records are returned.
func (r *Repository) ListBetween(ctx context.Context, from, to time.Time, userID *uuid.UUID) ([]Row, error) {
	q := r.rows(ctx).Where("ur.used_at >= ? AND ur.used_at < ?", from.UTC(), to.UTC())
	if userID != nil {
		q = q.Where("ur.user_id = ?", *userID)
	}
	rows := []Row{}
	if err := q.Order("ur.used_at DESC").Order("ur.id DESC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SumByAccessory returns the total quantity recorded against an accessory.
func (r *Repository) SumByAccessory(ctx context.Context, accessoryID uuid.UUID) (int, error) {
	var total int
	err := r.DB(ctx).
		Model(&models.UsageRecord{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("accessory_id = ?", accessoryID).
		Scan(&total).Error
	return total, err
}

func (r *Repository) rows(ctx context.Context) *gorm.DB {
	return r.DB(ctx).
		Table("usage_records AS ur").
		Select(rowColumns).
		Joins("JOIN accessories a ON a.id = ur.accessory_id").
		Joins("LEFT JOIN users u ON u.id = ur.user_id")
}
