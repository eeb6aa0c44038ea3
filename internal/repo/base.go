package repo

import (
	"context"
	"errors"

	pkgerrors "github.com/keystock/keystock-backend/pkg/errors"
	"gorm.io/gorm"
)

// Base provides a shared foundation for domain repositories.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// WithTx returns a copy bound to the supplied transaction.
func (b Base) WithTx(tx *gorm.DB) Base {
	return Base{db: tx}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// TranslateNotFound maps gorm.ErrRecordNotFound onto a typed NOT_FOUND error
// naming the resource. Any other error is returned unchanged.
func TranslateNotFound(err error, resource, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.NotFound(resource, id)
	}
	return err
}
