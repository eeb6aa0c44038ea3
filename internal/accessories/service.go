package accessories

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/keystock/keystock-backend/internal/repo"
	"github.com/keystock/keystock-backend/pkg/db/models"
	pkgerrors "github.com/keystock/keystock-backend/pkg/errors"
	"gorm.io/gorm"
)

// Service exposes accessory management for the stock catalogue.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Accessory, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Accessory, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Accessory, error)
	Delete(ctx context.Context, id uuid.UUID) (*DeleteResult, error)
	List(ctx context.Context) ([]models.Accessory, error)
	Search(ctx context.Context, query string) ([]models.Accessory, error)
}

// CreateInput holds the payload to add an accessory.
type CreateInput struct {
	Name        string
	Description *string
	Quantity    int
	MinQuantity int
}

// UpdateInput holds optional mutation values. A Quantity set here becomes the
// new baseline and is not reconciled against the usage ledger.
type UpdateInput struct {
	Name        *string
	Description *string
	Quantity    *int
	MinQuantity *int
}

// DeleteResult reports what an accessory delete removed.
type DeleteResult struct {
	Accessory    *models.Accessory
	UsageRemoved int64
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo *Repository
	tx   txRunner
}

// NewService constructs the accessory service.
func NewService(repo *Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("accessories repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Accessory, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, validationError("name", "name is required")
	}
	if err := validateQuantities(&input.Quantity, &input.MinQuantity); err != nil {
		return nil, err
	}

	accessory := &models.Accessory{
		Name:        name,
		Description: normalizeDescription(input.Description),
		Quantity:    input.Quantity,
		MinQuantity: input.MinQuantity,
	}
	if err := s.repo.Create(ctx, accessory); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert accessory")
	}
	return accessory, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Accessory, error) {
	accessory, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err, id)
	}
	return accessory, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Accessory, error) {
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, validationError("name", "name cannot be empty")
	}
	if err := validateQuantities(input.Quantity, input.MinQuantity); err != nil {
		return nil, err
	}

	var updated *models.Accessory
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		accessory, err := txRepo.FindByID(ctx, id)
		if err != nil {
			return mapLookupError(err, id)
		}

		if input.Name != nil {
			accessory.Name = strings.TrimSpace(*input.Name)
		}
		if input.Description != nil {
			accessory.Description = normalizeDescription(input.Description)
		}
		if input.Quantity != nil {
			accessory.Quantity = *input.Quantity
		}
		if input.MinQuantity != nil {
			accessory.MinQuantity = *input.MinQuantity
		}

		if err := txRepo.Update(ctx, accessory); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update accessory")
		}
		updated = accessory
		return nil
	})
	if err != nil {
		return nil, asTyped(err, "update accessory")
	}
	return updated, nil
}

// Delete removes the accessory and every usage record that references it in
// one transaction so no orphaned ledger entries survive.
func (s *service) Delete(ctx context.Context, id uuid.UUID) (*DeleteResult, error) {
	result := &DeleteResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		accessory, err := txRepo.FindByID(ctx, id)
		if err != nil {
			return mapLookupError(err, id)
		}

		removed, err := txRepo.DeleteUsage(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete accessory usage")
		}
		deleted, err := txRepo.Delete(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete accessory")
		}
		if deleted == 0 {
			return pkgerrors.NotFound("accessory", id.String())
		}

		result.Accessory = accessory
		result.UsageRemoved = removed
		return nil
	})
	if err != nil {
		return nil, asTyped(err, "delete accessory")
	}
	return result, nil
}

func (s *service) List(ctx context.Context) ([]models.Accessory, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list accessories")
	}
	return rows, nil
}

// Search matches name substrings case-insensitively and only returns
// accessories that still have stock. An empty query lists all in-stock items.
func (s *service) Search(ctx context.Context, query string) ([]models.Accessory, error) {
	rows, err := s.repo.SearchInStock(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search accessories")
	}
	return rows, nil
}

func validateQuantities(quantity, minQuantity *int) error {
	details := map[string]string{}
	if quantity != nil && *quantity < 0 {
		details["quantity"] = "must be zero or greater"
	}
	if minQuantity != nil && *minQuantity < 0 {
		details["min_quantity"] = "must be zero or greater"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantities cannot be negative").WithDetails(details)
	}
	return nil
}

func validationError(field, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(map[string]string{field: message})
}

func normalizeDescription(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func mapLookupError(err error, id uuid.UUID) error {
	err = repo.TranslateNotFound(err, "accessory", id.String())
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load accessory")
}

func asTyped(err error, message string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}
