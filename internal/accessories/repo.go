package accessories

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/keystock/keystock-backend/internal/repo"
	"github.com/keystock/keystock-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository persists accessories and the conditional stock updates the
// ledger depends on.
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

// Create inserts a new accessory.
func (r *Repository) Create(ctx context.Context, accessory *models.Accessory) error {
	return r.DB(ctx).Create(accessory).Error
}

// FindByID loads an accessory by id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Accessory, error) {
	var accessory models.Accessory
	if err := r.DB(ctx).First(&accessory, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &accessory, nil
}

// Update writes every editable column of the accessory.
func (r *Repository) Update(ctx context.Context, accessory *models.Accessory) error {
	return r.DB(ctx).
		Model(accessory).
		Select("name", "description", "quantity", "min_quantity", "updated_at").
		Updates(accessory).Error
}

// Delete removes the accessory row and reports how many rows went away.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.DB(ctx).Where("id = ?", id).Delete(&models.Accessory{})
	return res.RowsAffected, res.Error
}

// DeleteUsage removes every usage record that references the accessory.
func (r *Repository) DeleteUsage(ctx context.Context, accessoryID uuid.UUID) (int64, error) {
	res := r.DB(ctx).Where("accessory_id = ?", accessoryID).Delete(&models.UsageRecord{})
	return res.RowsAffected, res.Error
}

// List returns every accessory ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.Accessory, error) {
	var rows []models.Accessory
	if err := r.DB(ctx).Order("name ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SearchInStock returns accessories with stock whose name contains query,
// ignoring case.
func (r *Repository) SearchInStock(ctx context.Context, query string) ([]models.Accessory, error) {
	q := r.DB(ctx).Where("quantity > 0")
	if query = strings.TrimSpace(query); query != "" {
		q = q.Where(`LOWER(name) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(query))+"%")
	}
	var rows []models.Accessory
	if err := q.Order("name ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListLowStock returns accessories at or below a non-zero threshold.
func (r *Repository) ListLowStock(ctx context.Context) ([]models.Accessory, error) {
	var rows []models.Accessory
	if err := r.DB(ctx).
		Where("min_quantity > 0 AND quantity <= min_quantity").
		Order("name ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ApplyDelta adds change (negative to consume) to the accessory quantity in a
// single conditional statement. Zero rows affected means the accessory is
// missing or the result would be negative.
func (r *Repository) ApplyDelta(ctx context.Context, id uuid.UUID, change int) (int64, error) {
	res := r.DB(ctx).
		Model(&models.Accessory{}).
		Where("id = ? AND quantity + ? >= 0", id, change).
		UpdateColumns(map[string]any{
			"quantity":   gorm.Expr("quantity + ?", change),
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
