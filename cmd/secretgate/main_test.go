package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "test-config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

// freePort asks the kernel for an unused TCP port.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding free port: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv(configPathEnv, "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingSessionSecret verifies config validation stops startup.
func TestRun_MissingSessionSecret(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "secretgate.db")
	t.Setenv(configPathEnv, writeConfig(t, fmt.Sprintf(`
database:
  driver: sqlite
  path: %q
logging:
  level: error
`, dbPath)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail without a session secret")
	}
	if _, err := os.Stat(dbPath); err == nil {
		t.Error("database should not be created when config is invalid")
	}
}

// TestRun_MQTTUnreachable verifies an enabled but unreachable broker fails startup.
func TestRun_MQTTUnreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping broker connection test in short mode")
	}

	t.Setenv(configPathEnv, writeConfig(t, fmt.Sprintf(`
database:
  driver: sqlite
  path: %q
session:
  secret: "test-secret-key-at-least-32-chars!"
mqtt:
  enabled: true
  broker:
    host: "127.0.0.1"
    port: %d
logging:
  level: error
`, filepath.Join(t.TempDir(), "secretgate.db"), freePort(t))))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail when the MQTT broker is unreachable")
	}
}

// TestRun_ServesAndShutsDown starts the full service, checks /health and
// cancels the context.
func TestRun_ServesAndShutsDown(t *testing.T) {
	port := freePort(t)
	t.Setenv(configPathEnv, writeConfig(t, fmt.Sprintf(`
database:
  driver: sqlite
  path: %q
http:
  host: "127.0.0.1"
  port: %d
session:
  secret: "test-secret-key-at-least-32-chars!"
  cleanup_interval: 1
security:
  password:
    algorithm: argon2id
logging:
  level: error
`, filepath.Join(t.TempDir(), "secretgate.db"), port)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	deadline := time.Now().Add(10 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("GET /health status = %d, want 200", resp.StatusCode)
			}
			break
		}
		select {
		case err := <-done:
			t.Fatalf("run() exited early: %v", err)
		default:
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not come up: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v, want nil on clean shutdown", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancellation")
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv(configPathEnv, "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv(configPathEnv, "/etc/secretgate/config.yaml")
	if got := getConfigPath(); got != "/etc/secretgate/config.yaml" {
		t.Errorf("getConfigPath() = %q, want env value", got)
	}
}
