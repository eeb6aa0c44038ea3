package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string)}
}

func (m *mockStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *mockStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return val, nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *mockStore) AccessSessionKey(accessID string) string {
	return fmt.Sprintf("sess:%s", accessID)
}

func newTestManager() (*Manager, *mockStore) {
	store := newMockStore()
	return &Manager{store: store, keyer: store, ttl: time.Hour}, store
}

func TestManagerGenerateAndRotate(t *testing.T) {
	manager, store := newTestManager()
	ctx := context.Background()
	userID := uuid.New()

	token, err := manager.Generate(ctx, userID, "access-123")
	require.NoError(t, err)

	_, err = manager.Rotate(ctx, "access-123", "wrong")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	rotation, err := manager.Rotate(ctx, "access-123", token)
	require.NoError(t, err)
	assert.Equal(t, userID, rotation.UserID)
	assert.NotEqual(t, "access-123", rotation.AccessID)
	assert.NotEqual(t, token, rotation.RefreshToken)

	_, exists := store.data[store.AccessSessionKey("access-123")]
	assert.False(t, exists, "old access key left behind")

	ok, err := manager.HasSession(ctx, rotation.AccessID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = manager.Rotate(ctx, "access-123", token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken, "refresh tokens are single use")
}

func TestManagerRevoke(t *testing.T) {
	manager, _ := newTestManager()
	ctx := context.Background()

	_, err := manager.Generate(ctx, uuid.New(), "access-1")
	require.NoError(t, err)
	require.NoError(t, manager.Revoke(ctx, "access-1"))

	ok, err := manager.HasSession(ctx, "access-1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Error(t, manager.Revoke(ctx, " "))
}

func TestManagerRejectsCorruptValue(t *testing.T) {
	manager, store := newTestManager()
	store.data[store.AccessSessionKey("access-x")] = "not-a-session"

	_, err := manager.Rotate(context.Background(), "access-x", "not-a-session")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestGenerateRequiresIdentifiers(t *testing.T) {
	manager, _ := newTestManager()
	_, err := manager.Generate(context.Background(), uuid.Nil, "access")
	assert.Error(t, err)
	_, err = manager.Generate(context.Background(), uuid.New(), "")
	assert.Error(t, err)
}
