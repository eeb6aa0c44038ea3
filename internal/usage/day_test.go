package usage

import (
	"testing"
	"time"

	pkgerrors "github.com/keystock/keystock-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDay(t *testing.T) {
	loc, err := time.LoadLocation("America/Mexico_City")
	require.NoError(t, err)

	day, err := ParseDay("2026-03-14", loc)
	require.NoError(t, err)
	assert.Equal(t, 14, day.Day())
	assert.Equal(t, loc, day.Location())

	zero, err := ParseDay("  ", loc)
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	_, err = ParseDay("14/03/2026", loc)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestDayBoundsUseLocalMidnight(t *testing.T) {
	loc := time.FixedZone("UTC-6", -6*60*60)
	at := time.Date(2026, 3, 14, 23, 30, 0, 0, loc)

	start, end := dayBounds(at, loc)
	assert.True(t, time.Date(2026, 3, 15, 6, 0, 0, 0, time.UTC).Equal(end), "end=%s", end)
	assert.True(t, time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC).Equal(start), "start=%s", start)
	assert.Equal(t, time.UTC, start.Location())
}

func TestDayBoundsAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	start, end := dayBounds(time.Date(2026, 3, 8, 12, 0, 0, 0, loc), loc)
	assert.Equal(t, 23*time.Hour, end.Sub(start))
}
