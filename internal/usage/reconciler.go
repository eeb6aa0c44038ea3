package usage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/keystock/keystock-backend/internal/accessories"
	"github.com/keystock/keystock-backend/internal/repo"
	"github.com/keystock/keystock-backend/pkg/db/models"
	pkgerrors "github.com/keystock/keystock-backend/pkg/errors"
	"gorm.io/gorm"
)

// Reconciler keeps accessory quantities in step with the usage ledger. Every
// method must run inside the caller's transaction so the stock change and the
// ledger write commit or roll back together.
type Reconciler struct {
	accessories *accessories.Repository
}

// NewReconciler builds a reconciler over the accessory store.
func NewReconciler(accessoriesRepo *accessories.Repository) (*Reconciler, error) {
	if accessoriesRepo == nil {
		return nil, fmt.Errorf("accessories repository required")
	}
	return &Reconciler{accessories: accessoriesRepo}, nil
}

// Consume takes qty units from the accessory.
func (r *Reconciler) Consume(ctx context.Context, tx *gorm.DB, accessoryID uuid.UUID, qty int) (*models.Accessory, error) {
	if qty < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	return r.apply(ctx, tx, accessoryID, -qty)
}

// Restore gives qty units back to the accessory.
func (r *Reconciler) Restore(ctx context.Context, tx *gorm.DB, accessoryID uuid.UUID, qty int) (*models.Accessory, error) {
	if qty < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	return r.apply(ctx, tx, accessoryID, qty)
}

// Adjust applies a usage delta from ComputeDelta. A zero delta only reloads
// the accessory.
func (r *Reconciler) Adjust(ctx context.Context, tx *gorm.DB, accessoryID uuid.UUID, delta int) (*models.Accessory, error) {
	if delta == 0 {
		return r.load(ctx, tx, accessoryID)
	}
	return r.apply(ctx, tx, accessoryID, stockChange(delta))
}

// apply runs the compare-and-update. The store evaluates the sufficiency check
// and the write as one statement, so concurrent callers cannot both pass the
// check against the same stale quantity.
func (r *Reconciler) apply(ctx context.Context, tx *gorm.DB, accessoryID uuid.UUID, change int) (*models.Accessory, error) {
	txRepo := r.accessories.WithTx(tx)

	affected, err := txRepo.ApplyDelta(ctx, accessoryID, change)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: adjust accessory quantity")
	}
	if affected == 0 {
		current, err := r.load(ctx, tx, accessoryID)
		if err != nil {
			return nil, err
		}
		return nil, pkgerrors.InsufficientStock(accessoryID.String(), current.Quantity, -change)
	}

	return r.load(ctx, tx, accessoryID)
}

func (r *Reconciler) load(ctx context.Context, tx *gorm.DB, accessoryID uuid.UUID) (*models.Accessory, error) {
	accessory, err := r.accessories.WithTx(tx).FindByID(ctx, accessoryID)
	if err != nil {
		err = repo.TranslateNotFound(err, "accessory", accessoryID.String())
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load accessory")
	}
	return accessory, nil
}
