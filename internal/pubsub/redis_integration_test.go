package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"crashgame/internal/game"
)

// redisAddr is set by TestMain when a Redis container is running.
var redisAddr string

func mustStartRedisContainer() (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	// Create context with timeout to prevent hanging
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, err
	}

	host, err := container.Host(context.Background())
	if err != nil {
		return container.Terminate, err
	}

	port, err := container.MappedPort(context.Background(), "6379/tcp")
	if err != nil {
		return container.Terminate, err
	}

	redisAddr = fmt.Sprintf("%s:%s", host, port.Port())
	return container.Terminate, nil
}

func TestMain(m *testing.M) {
	var teardown func(context.Context, ...testcontainers.TerminateOption) error

	// Unit tests still run when Docker is missing; the container tests skip.
	if os.Getenv("SKIP_INTEGRATION") == "" && isDockerAvailable() {
		var err error
		teardown, err = mustStartRedisContainer()
		if err != nil {
			redisAddr = ""
		}
	}

	code := m.Run()

	if teardown != nil {
		teardown(context.Background())
	}

	os.Exit(code)
}

func isDockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	_, err = provider.DaemonHost(ctx)
	return err == nil
}

func requireRedis(t *testing.T) {
	t.Helper()
	if redisAddr == "" {
		t.Skip("redis container not available")
	}
}

func TestPublish_DeliversToSubscribers(t *testing.T) {
	requireRedis(t)

	cfg := Config{Addr: redisAddr, Channel: "crash:test"}
	svc, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer svc.Close()

	sub := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	subscription := sub.Subscribe(ctx, cfg.Channel)
	defer subscription.Close()
	if _, err := subscription.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	svc.Publish(game.Event{
		Type:    game.EventCrash,
		RoundID: 3,
		Data:    game.CrashMessage{CrashPoint: 2.5},
	})

	msg, err := subscription.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("ReceiveMessage() error = %v", err)
	}

	var decoded struct {
		Type    string `json:"type"`
		RoundID int64  `json:"round_id"`
		Data    struct {
			CrashPoint float64 `json:"crash_point"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(msg.Payload), &decoded); err != nil {
		t.Fatalf("could not unmarshal payload %q: %v", msg.Payload, err)
	}
	if decoded.Type != "crash" || decoded.RoundID != 3 || decoded.Data.CrashPoint != 2.5 {
		t.Errorf("payload = %+v, want crash event for round 3 at 2.5", decoded)
	}
}

func TestHealth(t *testing.T) {
	requireRedis(t)

	svc, err := New(Config{Addr: redisAddr, Channel: "crash:test"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer svc.Close()

	stats := svc.Health()

	if stats["status"] != "up" {
		t.Fatalf("expected status to be up, got %s", stats["status"])
	}

	if _, ok := stats["error"]; ok {
		t.Fatalf("expected error not to be present")
	}

	if stats["channel"] != "crash:test" {
		t.Errorf("expected channel crash:test, got %s", stats["channel"])
	}
}

func TestClose(t *testing.T) {
	requireRedis(t)

	svc, err := New(Config{Addr: redisAddr, Channel: "crash:test"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if svc.Close() != nil {
		t.Fatalf("expected Close() to return nil")
	}
}
