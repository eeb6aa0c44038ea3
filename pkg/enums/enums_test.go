package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" Admin ")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)

	_, err = ParseRole("owner")
	assert.Error(t, err)

	assert.True(t, RoleUser.IsValid())
	assert.False(t, Role("root").IsValid())
}

func TestParseStockMovement(t *testing.T) {
	movement, err := ParseStockMovement("restore")
	require.NoError(t, err)
	assert.Equal(t, StockMovementRestore, movement)

	_, err = ParseStockMovement("teleport")
	assert.Error(t, err)
}
