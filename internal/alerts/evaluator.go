// Package alerts derives the low-stock set from current accessory state.
package alerts

import (
	"context"
	"fmt"

	"github.com/keystock/keystock-backend/pkg/db/models"
	pkgerrors "github.com/keystock/keystock-backend/pkg/errors"
)

// IsLow reports whether the accessory sits at or below its alert threshold.
// A threshold of zero disables alerting for the accessory.
func IsLow(accessory models.Accessory) bool {
	return accessory.MinQuantity > 0 && accessory.Quantity <= accessory.MinQuantity
}

type lowStockLister interface {
	ListLowStock(ctx context.Context) ([]models.Accessory, error)
}

type gaugeSetter interface {
	SetLowStock(count int)
}

// Evaluator reads the low-stock set straight from the store on every call.
type Evaluator struct {
	lister lowStockLister
	gauge  gaugeSetter
}

// NewEvaluator wires the evaluator; gauge may be nil.
func NewEvaluator(lister lowStockLister, gauge gaugeSetter) (*Evaluator, error) {
	if lister == nil {
		return nil, fmt.Errorf("low stock lister required")
	}
	return &Evaluator{lister: lister, gauge: gauge}, nil
}

// LowStock returns every accessory with min_quantity > 0 and
// quantity <= min_quantity, ordered by name.
func (e *Evaluator) LowStock(ctx context.Context) ([]models.Accessory, error) {
	rows, err := e.lister.ListLowStock(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock accessories")
	}
	if e.gauge != nil {
		e.gauge.SetLowStock(len(rows))
	}
	return rows, nil
}
