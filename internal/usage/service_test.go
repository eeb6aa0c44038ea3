package usage

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/keystock/keystock-backend/internal/accessories"
	"github.com/keystock/keystock-backend/pkg/db"
	"github.com/keystock/keystock-backend/pkg/db/dbtest"
	"github.com/keystock/keystock-backend/pkg/db/models"
	"github.com/keystock/keystock-backend/pkg/enums"
	pkgerrors "github.com/keystock/keystock-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shopZone = time.FixedZone("shop", -6*60*60)

type fakeRecorder struct {
	mu       sync.Mutex
	units    map[enums.StockMovement]int
	rejected map[string]int
	ops      map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		units:    map[enums.StockMovement]int{},
		rejected: map[string]int{},
		ops:      map[string]int{},
	}
}

func (f *fakeRecorder) AddUnits(movement enums.StockMovement, qty int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.units[movement] += qty
}

func (f *fakeRecorder) ObserveOperation(operation string, _ error, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops[operation]++
}

func (f *fakeRecorder) IncRejected(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected[reason]++
}

type ledgerFixture struct {
	svc         Service
	usage       *Repository
	accessories *accessories.Repository
	client      *db.Client
	metrics     *fakeRecorder
	now         time.Time
}

func newLedger(t *testing.T) *ledgerFixture {
	t.Helper()
	client := dbtest.New(t)
	accRepo := accessories.NewRepository(client.DB())
	reconciler, err := NewReconciler(accRepo)
	require.NoError(t, err)

	f := &ledgerFixture{
		usage:       NewRepository(client.DB()),
		accessories: accRepo,
		client:      client,
		metrics:     newFakeRecorder(),
		now:         time.Date(2026, 3, 10, 15, 0, 0, 0, shopZone),
	}
	f.svc, err = NewService(ServiceParams{
		Repo:        f.usage,
		Reconciler:  reconciler,
		Tx:          client,
		Metrics:     f.metrics,
		Location:    shopZone,
		MaxQuantity: 5,
		Now:         func() time.Time { return f.now },
	})
	require.NoError(t, err)
	return f
}

func (f *ledgerFixture) accessory(t *testing.T, name string, qty, minQty int) *models.Accessory {
	t.Helper()
	accessory := &models.Accessory{Name: name, Quantity: qty, MinQuantity: minQty}
	require.NoError(t, f.accessories.Create(context.Background(), accessory))
	return accessory
}

func (f *ledgerFixture) user(t *testing.T, username string, role enums.Role) Actor {
	t.Helper()
	user := &models.User{Username: username, PasswordHash: "unused", Role: role}
	require.NoError(t, f.client.DB().Create(user).Error)
	return Actor{UserID: user.ID, Role: role}
}

func (f *ledgerFixture) quantity(t *testing.T, id uuid.UUID) int {
	t.Helper()
	accessory, err := f.accessories.FindByID(context.Background(), id)
	require.NoError(t, err)
	return accessory.Quantity
}

func registration(accessoryID uuid.UUID, qty int) RegisterInput {
	return RegisterInput{AccessoryID: accessoryID, Brand: "Toyota", Model: "Corolla", Year: 2018, Quantity: qty}
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestRegisterDecrementsAndFlagsAlert(t *testing.T) {
	f := newLedger(t)
	ctx := context.Background()
	actor := f.user(t, "tech", enums.RoleUser)
	accessory := f.accessory(t, "TOY43 blank", 5, 2)

	result, err := f.svc.Register(ctx, actor, registration(accessory.ID, 4))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Accessory.Quantity)
	assert.True(t, result.Alert)
	require.NotNil(t, result.Record)
	assert.Equal(t, "TOY43 blank", result.Record.AccessoryName)
	require.NotNil(t, result.Record.UserName)
	assert.Equal(t, "tech", *result.Record.UserName)
	assert.Equal(t, 4, result.Record.Quantity)
	assert.False(t, result.Record.Flagged)
	assert.True(t, result.Record.UsedAt.Equal(f.now))

	_, err = f.svc.Register(ctx, actor, registration(accessory.ID, 2))
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())
	assert.Equal(t, pkgerrors.StockDetails{AccessoryID: accessory.ID.String(), Available: 1, Requested: 2}, typed.Details())

	assert.Equal(t, 1, f.quantity(t, accessory.ID))
	total, err := f.usage.SumByAccessory(ctx, accessory.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, total)

	assert.Equal(t, 4, f.metrics.units[enums.StockMovementConsume])
	assert.Equal(t, 1, f.metrics.rejected["insufficient_stock"])
	assert.Equal(t, 2, f.metrics.ops["register"])
}

func TestRegisterWithoutThresholdNeverAlerts(t *testing.T) {
	f := newLedger(t)
	actor := f.user(t, "tech", enums.RoleUser)
	accessory := f.accessory(t, "Battery CR2032", 1, 0)

	result, err := f.svc.Register(context.Background(), actor, registration(accessory.ID, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Accessory.Quantity)
	assert.False(t, result.Alert)
}

func TestRegisterValidation(t *testing.T) {
	f := newLedger(t)
	ctx := context.Background()
	actor := f.user(t, "tech", enums.RoleUser)
	accessory := f.accessory(t, "HU66 blank", 10, 0)

	cases := map[string]RegisterInput{
		"missing accessory": registration(uuid.Nil, 1),
		"blank brand":       {AccessoryID: accessory.ID, Brand: "  ", Model: "Golf", Year: 2015, Quantity: 1},
		"blank model":       {AccessoryID: accessory.ID, Brand: "VW", Model: "", Year: 2015, Quantity: 1},
		"missing year":      {AccessoryID: accessory.ID, Brand: "VW", Model: "Golf", Quantity: 1},
		"zero quantity":     registration(accessory.ID, 0),
		"over max quantity": registration(accessory.ID, 6),
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Register(ctx, actor, input)
			assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
	assert.Equal(t, 10, f.quantity(t, accessory.ID))
}

func TestRegisterUnknownAccessory(t *testing.T) {
	f := newLedger(t)
	actor := f.user(t, "tech", enums.RoleUser)

	_, err := f.svc.Register(context.Background(), actor, registration(uuid.New(), 1))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestRegisterTrimsVehicleFields(t *testing.T) {
	f := newLedger(t)
	actor := f.user(t, "tech", enums.RoleUser)
	accessory := f.accessory(t, "Fob", 3, 0)

	result, err := f.svc.Register(context.Background(), actor, RegisterInput{
		AccessoryID: accessory.ID, Brand: " Honda ", Model: " Civic\t", Year: 2020, Quantity: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "Honda", result.Record.Brand)
	assert.Equal(t, "Civic", result.Record.Model)
}

func TestDeleteIsInverseOfRegister(t *testing.T) {
	f := newLedger(t)
	ctx := context.Background()
	actor := f.user(t, "tech", enums.RoleUser)
	accessory := f.accessory(t, "Transponder", 7, 3)

	registered, err := f.svc.Register(ctx, actor, registration(accessory.ID, 3))
	require.NoError(t, err)
	assert.Equal(t, 4, registered.Accessory.Quantity)

	deleted, err := f.svc.Delete(ctx, registered.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, deleted.Accessory.Quantity)
	assert.False(t, deleted.Alert)
	assert.Equal(t, registered.Record.ID, deleted.Record.ID)

	assert.Equal(t, 7, f.quantity(t, accessory.ID))
	_, err = f.svc.Get(ctx, registered.Record.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Delete(ctx, registered.Record.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
	assert.Equal(t, 3, f.metrics.units[enums.StockMovementRestore])
}

func TestUpdateAppliesOnlyTheDelta(t *testing.T) {
	f := newLedger(t)
	ctx := context.Background()
	actor := f.user(t, "tech", enums.RoleUser)
	accessory := f.accessory(t, "Smart key", 12, 0)

	registered, err := f.svc.Register(ctx, actor, registration(accessory.ID, 2))
	require.NoError(t, err)
	assert.Equal(t, 10, registered.Accessory.Quantity)

	updated, err := f.svc.Update(ctx, registered.Record.ID, UpdateInput{Quantity: intPtr(5)})
	require.NoError(t, err)
	assert.Equal(t, 7, updated.Accessory.Quantity)
	assert.Equal(t, 5, updated.Record.Quantity)
	assert.Equal(t, "Toyota", updated.Record.Brand)

	updated, err = f.svc.Update(ctx, registered.Record.ID, UpdateInput{Quantity: intPtr(1), Brand: strPtr(" Lexus "), Year: intPtr(2019)})
	require.NoError(t, err)
	assert.Equal(t, 11, updated.Accessory.Quantity)
	assert.Equal(t, "Lexus", updated.Record.Brand)
	assert.Equal(t, 2019, updated.Record.Year)

	updated, err = f.svc.Update(ctx, registered.Record.ID, UpdateInput{Model: strPtr("RX")})
	require.NoError(t, err)
	assert.Equal(t, 11, updated.Accessory.Quantity)
	assert.Equal(t, "RX", updated.Record.Model)
}

func TestUpdateRejectsOverdraw(t *testing.T) {
	f := newLedger(t)
	ctx := context.Background()
	actor := f.user(t, "tech", enums.RoleUser)
	accessory := f.accessory(t, "Remote", 3, 1)

	registered, err := f.svc.Register(ctx, actor, registration(accessory.ID, 2))
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, registered.Record.ID, UpdateInput{Quantity: intPtr(4), Brand: strPtr("Ford")})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())
	assert.Equal(t, pkgerrors.StockDetails{AccessoryID: accessory.ID.String(), Available: 1, Requested: 2}, typed.Details())

	row, err := f.svc.Get(ctx, registered.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, row.Quantity)
	assert.Equal(t, "Toyota", row.Brand)
	assert.Equal(t, 1, f.quantity(t, accessory.ID))
}

func TestUpdateValidationAndNotFound(t *testing.T) {
	f := newLedger(t)
	ctx := context.Background()

	_, err := f.svc.Update(ctx, uuid.New(), UpdateInput{Quantity: intPtr(0)})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.Update(ctx, uuid.New(), UpdateInput{Brand: strPtr(" ")})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.Update(ctx, uuid.New(), UpdateInput{Quantity: intPtr(2)})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestReconciliationHoldsAcrossOperations(t *testing.T) {
	f := newLedger(t)
	ctx := context.Background()
	actor := f.user(t, "tech", enums.RoleUser)
	const initial = 40
	accessory := f.accessory(t, "Blade", initial, 5)

	rng := rand.New(rand.NewSource(7))
	var live []uuid.UUID
	for i := 0; i < 60; i++ {
		switch op := rng.Intn(3); {
		case op == 0 || len(live) == 0:
			result, err := f.svc.Register(ctx, actor, registration(accessory.ID, 1+rng.Intn(5)))
			if err == nil {
				live = append(live, result.Record.ID)
			} else {
				require.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientStock), "unexpected %v", err)
			}
		case op == 1:
			id := live[rng.Intn(len(live))]
			_, err := f.svc.Update(ctx, id, UpdateInput{Quantity: intPtr(1 + rng.Intn(5))})
			if err != nil {
				require.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientStock), "unexpected %v", err)
			}
		default:
			idx := rng.Intn(len(live))
			_, err := f.svc.Delete(ctx, live[idx])
			require.NoError(t, err)
			live = append(live[:idx], live[idx+1:]...)
		}

		total, err := f.usage.SumByAccessory(ctx, accessory.ID)
		require.NoError(t, err)
		qty := f.quantity(t, accessory.ID)
		require.Equal(t, initial-total, qty, "step %d", i)
		require.GreaterOrEqual(t, qty, 0)
	}
}

func TestConcurrentRegistrationsNeverOverdraw(t *testing.T) {
	f := newLedger(t)
	ctx := context.Background()
	actor := f.user(t, "tech", enums.RoleUser)
	accessory := f.accessory(t, "Contended blank", 5, 0)

	const workers = 12
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		succeeded    int
		insufficient int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Register(ctx, actor, registration(accessory.ID, 1))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case pkgerrors.Is(err, pkgerrors.CodeInsufficientStock):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, workers-5, insufficient)
	assert.Equal(t, 0, f.quantity(t, accessory.ID))
	total, err := f.usage.SumByAccessory(ctx, accessory.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
}

func TestToggleFlagOwnership(t *testing.T) {
	f := newLedger(t)
	ctx := context.Background()
	owner := f.user(t, "owner", enums.RoleUser)
	other := f.user(t, "other", enums.RoleUser)
	admin := f.user(t, "boss", enums.RoleAdmin)
	accessory := f.accessory(t, "Fob", 5, 0)

	registered, err := f.svc.Register(ctx, owner, registration(accessory.ID, 1))
	require.NoError(t, err)

	row, err := f.svc.ToggleFlag(ctx, owner, registered.Record.ID)
	require.NoError(t, err)
	assert.True(t, row.Flagged)

	_, err = f.svc.ToggleFlag(ctx, other, registered.Record.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden))

	row, err = f.svc.ToggleFlag(ctx, admin, registered.Record.ID)
	require.NoError(t, err)
	assert.False(t, row.Flagged)

	_, err = f.svc.ToggleFlag(ctx, admin, uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	assert.Equal(t, 4, f.quantity(t, accessory.ID))
}

func TestHistoryFiltersByLocalDayAndOwner(t *testing.T) {
	f := newLedger(t)
	ctx := context.Background()
	alice := f.user(t, "alice", enums.RoleUser)
	bob := f.user(t, "bob", enums.RoleUser)
	admin := f.user(t, "boss", enums.RoleAdmin)
	accessory := f.accessory(t, "Blank", 20, 0)

	// 23:30 local on the 10th is already the 11th in UTC.
	f.now = time.Date(2026, 3, 10, 23, 30, 0, 0, shopZone)
	late, err := f.svc.Register(ctx, alice, registration(accessory.ID, 1))
	require.NoError(t, err)

	f.now = time.Date(2026, 3, 10, 8, 0, 0, 0, shopZone)
	early, err := f.svc.Register(ctx, bob, registration(accessory.ID, 1))
	require.NoError(t, err)

	f.now = time.Date(2026, 3, 11, 0, 30, 0, 0, shopZone)
	next, err := f.svc.Register(ctx, alice, registration(accessory.ID, 1))
	require.NoError(t, err)

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, shopZone)
	rows, err := f.svc.History(ctx, admin, day)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, late.Record.ID, rows[0].ID)
	assert.Equal(t, early.Record.ID, rows[1].ID)

	rows, err = f.svc.History(ctx, alice, day)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, late.Record.ID, rows[0].ID)

	rows, err = f.svc.History(ctx, bob, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = f.svc.History(ctx, alice, time.Time{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, next.Record.ID, rows[0].ID)
}

func TestResultDTORendersLocalTime(t *testing.T) {
	f := newLedger(t)
	actor := f.user(t, "tech", enums.RoleUser)
	accessory := f.accessory(t, "Blank", 3, 3)

	result, err := f.svc.Register(context.Background(), actor, registration(accessory.ID, 1))
	require.NoError(t, err)

	dto := NewResultDTO(result, shopZone)
	require.NotNil(t, dto.Record)
	assert.Equal(t, shopZone, dto.Record.UsedAt.Location())
	assert.Equal(t, 15, dto.Record.UsedAt.Hour())
	assert.True(t, dto.Alert)
	assert.True(t, dto.Accessory.LowStock)
	assert.Equal(t, 2, dto.Accessory.Quantity)
	assert.Empty(t, NewRecordDTOs(nil, shopZone))
}
