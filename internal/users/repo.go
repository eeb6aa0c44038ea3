package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/keystock/keystock-backend/internal/repo"
	"github.com/keystock/keystock-backend/pkg/db/models"
	"github.com/keystock/keystock-backend/pkg/enums"
	"gorm.io/gorm"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	repo.Base
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Base.WithTx(tx)}
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, user *models.User) error {
	return r.DB(ctx).Create(user).Error
}

// FindByUsername retrieves the user matching the provided username exactly.
func (r *Repository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.DB(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.DB(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// List returns every account in creation order.
func (r *Repository) List(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := r.DB(ctx).Order("created_at ASC").Order("username ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Update writes the mutable account columns.
func (r *Repository) Update(ctx context.Context, user *models.User) error {
	return r.DB(ctx).
		Model(user).
		Select("username", "password_hash", "role", "updated_at").
		Updates(user).Error
}

// UpdatePasswordHash replaces only the stored hash.
func (r *Repository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.DB(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{"password_hash": hash, "updated_at": time.Now().UTC()}).Error
}

// Delete removes the account and reports whether a row matched.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.DB(ctx).Where("id = ?", id).Delete(&models.User{})
	return res.RowsAffected, res.Error
}

// Count returns the number of accounts.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&models.User{}).Count(&count).Error
	return count, err
}

// CountByRole returns the number of accounts holding role.
func (r *Repository) CountByRole(ctx context.Context, role enums.Role) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&models.User{}).Where("role = ?", role).Count(&count).Error
	return count, err
}

// DetachUsage clears the author of every usage record registered by the user.
// The foreign key does the same on delete, but SQLite only enforces it when
// foreign keys are switched on for the connection.
func (r *Repository) DetachUsage(ctx context.Context, id uuid.UUID) error {
	return r.DB(ctx).
		Model(&models.UsageRecord{}).
		Where("user_id = ?", id).
		UpdateColumn("user_id", gorm.Expr("NULL")).Error
}
