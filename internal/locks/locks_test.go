package locks

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestNilLockerGrantsEveryLease(t *testing.T) {
	ctx := context.Background()

	for _, l := range []*Locker{nil, NewLocker(nil, "")} {
		lease, err := l.Acquire(ctx, "demo.myshop.no", time.Minute)
		require.NoError(t, err)
		assert.NoError(t, lease.Extend(ctx, time.Minute))
		assert.NoError(t, lease.Release(ctx))
	}
}

func TestLockerWithRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	client := startRedis(ctx, t)
	locker := NewLocker(client, "test:lock:")

	lease, err := locker.Acquire(ctx, "demo.myshop.no", time.Minute)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "demo.myshop.no", time.Minute)
	assert.ErrorIs(t, err, ErrNotHeld)

	other, err := locker.Acquire(ctx, "other.myshop.no", time.Minute)
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lease.Extend(ctx, 2*time.Minute))
	ttl, err := client.PTTL(ctx, "test:lock:demo.myshop.no").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Minute)

	require.NoError(t, lease.Release(ctx))
	assert.ErrorIs(t, lease.Extend(ctx, time.Minute), ErrNotHeld)

	again, err := locker.Acquire(ctx, "demo.myshop.no", time.Minute)
	require.NoError(t, err)
	assert.NoError(t, again.Release(ctx))
}

func startRedis(ctx context.Context, t *testing.T) *redis.Client {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { client.Close() })
	return client
}
