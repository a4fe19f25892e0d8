package infrastructure

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
			Labels:       map[string]string{"test": "stakehub-infrastructure", "cleanup": "auto"},
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate redis container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}

func TestRedisLock_SingleHolder(t *testing.T) {
	t.Parallel()
	url := setupRedis(t)
	ctx := context.Background()

	client, err := NewRedisClient(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	lock := NewRedisLock(client)

	release, ok, err := lock.TryAcquire(ctx, "sweep:test", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = lock.TryAcquire(ctx, "sweep:test", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	release()

	release2, ok, err := lock.TryAcquire(ctx, "sweep:test", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	release2()
}

func TestRedisLock_StaleReleaseKeepsNewHolder(t *testing.T) {
	t.Parallel()
	url := setupRedis(t)
	ctx := context.Background()

	client, err := NewRedisClient(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	lock := NewRedisLock(client)

	staleRelease, ok, err := lock.TryAcquire(ctx, "sweep:ttl", 100*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(250 * time.Millisecond)

	release, ok, err := lock.TryAcquire(ctx, "sweep:ttl", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	staleRelease()

	_, ok, err = lock.TryAcquire(ctx, "sweep:ttl", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "expired holder must not release the new lease")
}
