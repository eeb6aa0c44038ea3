// Package dbtest builds isolated, fully migrated SQLite databases for tests.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/keystock/keystock-backend/pkg/config"
	"github.com/keystock/keystock-backend/pkg/db"
	"github.com/keystock/keystock-backend/pkg/logger"
	"github.com/keystock/keystock-backend/pkg/migrate"
	"github.com/stretchr/testify/require"
)

// New opens a private in-memory SQLite database, applies the embedded
// migrations and closes it when the test ends.
func New(t testing.TB) *db.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	client, err := db.New(context.Background(), config.DBConfig{DSN: dsn, Driver: config.DriverSQLite}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	sqlDB, err := client.SQL()
	require.NoError(t, err)
	_, err = migrate.Up(context.Background(), sqlDB, client.Driver())
	require.NoError(t, err)

	return client
}
