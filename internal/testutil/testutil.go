// Package testutil provides shared test infrastructure: a quiet logger and
// a disposable Redis container for integration tests.
//
// Usage in TestMain:
//
//	func TestMain(m *testing.M) {
//	    rc, err := testutil.StartRedis(context.Background())
//	    if err == nil {
//	        testRedis = rc.Client
//	        defer rc.Terminate()
//	    }
//	    os.Exit(m.Run())
//	}
//
// A nil client means Docker is unavailable; integration tests skip.
package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// RedisContainer wraps a running Redis container and a client connected to it.
type RedisContainer struct {
	Container testcontainers.Container
	Client    *redis.Client
	URL       string
}

// StartRedis starts a redis:7-alpine container and pings it.
func StartRedis(ctx context.Context) (rc *RedisContainer, err error) {
	// testcontainers panics when no Docker host can be found; surface that
	// as an error so callers skip integration tests as documented above.
	defer func() {
		if r := recover(); r != nil {
			rc, err = nil, fmt.Errorf("testutil: docker unavailable: %v", r)
		}
	}()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("testutil: start redis container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("testutil: container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("testutil: container port: %w", err)
	}

	addr := fmt.Sprintf("%s:%s", host, port.Port())
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("testutil: ping redis: %w", err)
	}

	return &RedisContainer{Container: container, Client: client, URL: "redis://" + addr}, nil
}

// Terminate closes the client and removes the container.
func (rc *RedisContainer) Terminate() {
	_ = rc.Client.Close()
	_ = rc.Container.Terminate(context.Background())
}

// TestLogger returns a logger configured for test output (warns only).
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
