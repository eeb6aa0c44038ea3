package usage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/keystock/keystock-backend/internal/alerts"
	"github.com/keystock/keystock-backend/internal/repo"
	"github.com/keystock/keystock-backend/pkg/db/models"
	"github.com/keystock/keystock-backend/pkg/enums"
	pkgerrors "github.com/keystock/keystock-backend/pkg/errors"
	"github.com/keystock/keystock-backend/pkg/logger"
	"gorm.io/gorm"
)

// Service is the usage ledger: every mutation moves accessory stock through
// the Reconciler in the same transaction as the ledger write.
type Service interface {
	Register(ctx context.Context, actor Actor, input RegisterInput) (*Result, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*Result, error)
	Delete(ctx context.Context, id uuid.UUID) (*Result, error)
	ToggleFlag(ctx context.Context, actor Actor, id uuid.UUID) (*Row, error)
	History(ctx context.Context, actor Actor, day time.Time) ([]Row, error)
	Get(ctx context.Context, id uuid.UUID) (*Row, error)
}

// Actor identifies the authenticated caller.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

// IsAdmin reports whether the caller may act on every record.
func (a Actor) IsAdmin() bool {
	return a.Role == enums.RoleAdmin
}

// RegisterInput is a new consumption event.
type RegisterInput struct {
	AccessoryID uuid.UUID
	Brand       string
	Model       string
	Year        int
	Quantity    int
}

// UpdateInput holds optional edits. The accessory cannot be reassigned.
type UpdateInput struct {
	Brand    *string
	Model    *string
	Year     *int
	Quantity *int
}

// Result is the outcome of a ledger mutation. Alert is evaluated against the
// accessory after the stock change.
type Result struct {
	Record    *Row
	Accessory *models.Accessory
	Alert     bool
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockRecorder interface {
	AddUnits(movement enums.StockMovement, qty int)
	ObserveOperation(operation string, err error, duration time.Duration)
	IncRejected(reason string)
}

// ServiceParams bundles the dependencies required to build the ledger.
type ServiceParams struct {
	Repo        *Repository
	Reconciler  *Reconciler
	Tx          txRunner
	Metrics     stockRecorder
	Logger      *logger.Logger
	Location    *time.Location
	MaxQuantity int
	Now         func() time.Time
}

type service struct {
	repo       *Repository
	reconciler *Reconciler
	tx         txRunner
	metrics    stockRecorder
	logg       *logger.Logger
	loc        *time.Location
	maxQty     int
	now        func() time.Time
}

// NewService constructs the usage ledger service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("usage repository required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("stock reconciler required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Location == nil {
		params.Location = time.Local
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	return &service{
		repo:       params.Repo,
		reconciler: params.Reconciler,
		tx:         params.Tx,
		metrics:    params.Metrics,
		logg:       params.Logger,
		loc:        params.Location,
		maxQty:     params.MaxQuantity,
		now:        params.Now,
	}, nil
}

func (s *service) Register(ctx context.Context, actor Actor, input RegisterInput) (result *Result, err error) {
	defer s.observe("register", time.Now(), &err)

	brand, model := strings.TrimSpace(input.Brand), strings.TrimSpace(input.Model)
	if err := s.validateRegister(input, brand, model); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		accessory, err := s.reconciler.Consume(ctx, tx, input.AccessoryID, input.Quantity)
		if err != nil {
			return err
		}

		record := &models.UsageRecord{
			AccessoryID: input.AccessoryID,
			Brand:       brand,
			Model:       model,
			Year:        input.Year,
			Quantity:    input.Quantity,
			UsedAt:      s.now().UTC(),
		}
		if actor.UserID != uuid.Nil {
			userID := actor.UserID
			record.UserID = &userID
		}

		txRepo := s.repo.WithTx(tx)
		if err := txRepo.Create(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert usage record")
		}
		row, err := txRepo.FindRow(ctx, record.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load usage record")
		}

		result = &Result{Record: row, Accessory: accessory, Alert: alerts.IsLow(*accessory)}
		return nil
	})
	if err != nil {
		return nil, s.typed(err, "register usage")
	}

	s.record(enums.StockMovementConsume, input.Quantity)
	s.logMutation(ctx, "usage registered", result)
	return result, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (result *Result, err error) {
	defer s.observe("update", time.Now(), &err)

	if err := validateUpdate(input); err != nil {
		return nil, err
	}

	var delta int
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		record, err := txRepo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return lookupError(err, id)
		}

		newQty := record.Quantity
		if input.Quantity != nil {
			newQty = *input.Quantity
		}
		delta = ComputeDelta(record.Quantity, newQty)

		accessory, err := s.reconciler.Adjust(ctx, tx, record.AccessoryID, delta)
		if err != nil {
			return err
		}

		if input.Brand != nil {
			record.Brand = strings.TrimSpace(*input.Brand)
		}
		if input.Model != nil {
			record.Model = strings.TrimSpace(*input.Model)
		}
		if input.Year != nil {
			record.Year = *input.Year
		}
		record.Quantity = newQty

		if err := txRepo.UpdateDetails(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update usage record")
		}
		row, err := txRepo.FindRow(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load usage record")
		}

		result = &Result{Record: row, Accessory: accessory, Alert: alerts.IsLow(*accessory)}
		return nil
	})
	if err != nil {
		return nil, s.typed(err, "update usage")
	}

	s.record(movementFor(delta), abs(delta))
	s.logMutation(s.logg.WithField(ctx, "delta", delta), "usage updated", result)
	return result, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) (result *Result, err error) {
	defer s.observe("delete", time.Now(), &err)

	var restored int
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		record, err := txRepo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return lookupError(err, id)
		}
		row, err := txRepo.FindRow(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load usage record")
		}

		deleted, err := txRepo.Delete(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete usage record")
		}
		if deleted == 0 {
			return pkgerrors.NotFound("usage record", id.String())
		}

		accessory, err := s.reconciler.Restore(ctx, tx, record.AccessoryID, record.Quantity)
		if err != nil {
			return err
		}
		restored = record.Quantity

		result = &Result{Record: row, Accessory: accessory, Alert: alerts.IsLow(*accessory)}
		return nil
	})
	if err != nil {
		return nil, s.typed(err, "delete usage")
	}

	s.record(enums.StockMovementRestore, restored)
	s.logMutation(ctx, "usage deleted", result)
	return result, nil
}

// ToggleFlag inverts the review flag. It never touches stock. Non-admins may
// only flag records they registered.
func (s *service) ToggleFlag(ctx context.Context, actor Actor, id uuid.UUID) (*Row, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, id)
	}
	if !actor.IsAdmin() && (record.UserID == nil || *record.UserID != actor.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the registering user or an admin can flag this record")
	}

	affected, err := s.repo.ToggleFlag(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: toggle usage flag")
	}
	if affected == 0 {
		return nil, pkgerrors.NotFound("usage record", id.String())
	}
	return s.Get(ctx, id)
}

// History lists the records used on the calendar day of day in the shop's
// time zone, newest first. A zero day means today.
func (s *service) History(ctx context.Context, actor Actor, day time.Time) ([]Row, error) {
	if day.IsZero() {
		day = s.now()
	}
	from, to := dayBounds(day, s.loc)

	var only *uuid.UUID
	if !actor.IsAdmin() {
		userID := actor.UserID
		only = &userID
	}

	rows, err := s.repo.ListBetween(ctx, from, to, only)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list usage history")
	}
	return rows, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Row, error) {
	row, err := s.repo.FindRow(ctx, id)
	if err != nil {
		return nil, lookupError(err, id)
	}
	return row, nil
}

func (s *service) validateRegister(input RegisterInput, brand, model string) error {
	details := map[string]string{}
	if input.AccessoryID == uuid.Nil {
		details["accessory_id"] = "is required"
	}
	if brand == "" {
		details["brand"] = "is required"
	}
	if model == "" {
		details["model"] = "is required"
	}
	if input.Year <= 0 {
		details["year"] = "is required"
	}
	switch {
	case input.Quantity < 1:
		details["quantity"] = "must be at least 1"
	case s.maxQty > 0 && input.Quantity > s.maxQty:
		details["quantity"] = fmt.Sprintf("must be at most %d", s.maxQty)
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid usage registration").WithDetails(details)
	}
	return nil
}

func validateUpdate(input UpdateInput) error {
	details := map[string]string{}
	if input.Brand != nil && strings.TrimSpace(*input.Brand) == "" {
		details["brand"] = "cannot be empty"
	}
	if input.Model != nil && strings.TrimSpace(*input.Model) == "" {
		details["model"] = "cannot be empty"
	}
	if input.Year != nil && *input.Year <= 0 {
		details["year"] = "must be positive"
	}
	if input.Quantity != nil && *input.Quantity < 1 {
		details["quantity"] = "must be at least 1"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid usage update").WithDetails(details)
	}
	return nil
}

func lookupError(err error, id uuid.UUID) error {
	err = repo.TranslateNotFound(err, "usage record", id.String())
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load usage record")
}

func (s *service) typed(err error, message string) error {
	if typed := pkgerrors.As(err); typed != nil {
		if typed.Code() == pkgerrors.CodeInsufficientStock && s.metrics != nil {
			s.metrics.IncRejected("insufficient_stock")
		}
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}

func (s *service) observe(operation string, start time.Time, err *error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveOperation(operation, *err, time.Since(start))
}

func (s *service) record(movement enums.StockMovement, qty int) {
	if s.metrics == nil {
		return
	}
	s.metrics.AddUnits(movement, qty)
}

func (s *service) logMutation(ctx context.Context, msg string, result *Result) {
	if result == nil || result.Accessory == nil {
		return
	}
	ctx = s.logg.WithAccessoryID(ctx, result.Accessory.ID.String())
	if result.Record != nil {
		ctx = s.logg.WithUsageID(ctx, result.Record.ID.String())
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"quantity": result.Accessory.Quantity, "alert": result.Alert})
	s.logg.Info(ctx, msg)
}
