package alerts_test

import (
	"context"
	"errors"
	"testing"

	"github.com/keystock/keystock-backend/internal/accessories"
	"github.com/keystock/keystock-backend/internal/alerts"
	"github.com/keystock/keystock-backend/pkg/db/dbtest"
	"github.com/keystock/keystock-backend/pkg/db/models"
	pkgerrors "github.com/keystock/keystock-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingGauge struct {
	last  int
	calls int
}

func (g *recordingGauge) SetLowStock(count int) {
	g.last = count
	g.calls++
}

type failingLister struct{}

func (failingLister) ListLowStock(context.Context) ([]models.Accessory, error) {
	return nil, errors.New("db down")
}

func TestIsLow(t *testing.T) {
	cases := []struct {
		name string
		qty  int
		min  int
		want bool
	}{
		{name: "disabled threshold", qty: 0, min: 0, want: false},
		{name: "below threshold", qty: 1, min: 2, want: true},
		{name: "at threshold", qty: 2, min: 2, want: true},
		{name: "above threshold", qty: 3, min: 2, want: false},
		{name: "empty with threshold", qty: 0, min: 1, want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, alerts.IsLow(models.Accessory{Quantity: tc.qty, MinQuantity: tc.min}))
		})
	}
}

func TestLowStockMatchesPredicate(t *testing.T) {
	ctx := context.Background()
	client := dbtest.New(t)
	repo := accessories.NewRepository(client.DB())

	fixtures := []models.Accessory{
		{Name: "Transponder chip", Quantity: 1, MinQuantity: 2},
		{Name: "Blank key Ford", Quantity: 2, MinQuantity: 2},
		{Name: "Remote shell", Quantity: 9, MinQuantity: 2},
		{Name: "Battery CR2032", Quantity: 0, MinQuantity: 0},
	}
	for i := range fixtures {
		require.NoError(t, repo.Create(ctx, &fixtures[i]))
	}

	gauge := &recordingGauge{}
	evaluator, err := alerts.NewEvaluator(repo, gauge)
	require.NoError(t, err)

	low, err := evaluator.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 2)
	assert.Equal(t, "Blank key Ford", low[0].Name)
	assert.Equal(t, "Transponder chip", low[1].Name)
	for _, a := range low {
		assert.True(t, alerts.IsLow(a))
	}
	assert.Equal(t, 2, gauge.last)

	// Never cached: the next call sees the restock.
	require.NoError(t, client.DB().Model(&models.Accessory{}).Where("id = ?", fixtures[0].ID).Update("quantity", 10).Error)
	low, err = evaluator.LowStock(ctx)
	require.NoError(t, err)
	assert.Len(t, low, 1)
	assert.Equal(t, 1, gauge.last)
	assert.Equal(t, 2, gauge.calls)
}

func TestLowStockWrapsStoreErrors(t *testing.T) {
	evaluator, err := alerts.NewEvaluator(failingLister{}, nil)
	require.NoError(t, err)

	_, err = evaluator.LowStock(context.Background())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeDependency))
}

func TestNewEvaluatorRequiresLister(t *testing.T) {
	_, err := alerts.NewEvaluator(nil, nil)
	assert.Error(t, err)
}
