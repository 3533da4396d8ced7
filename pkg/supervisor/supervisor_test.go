package supervisor

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0kaguya/cargo-lambda/pkg/build"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubLauncher swaps the go run command for an arbitrary executable so tests
// don't need a compilable project.
func stubLauncher(argv ...string) *ProcessLauncher {
	l := New(Options{ManifestPath: "does-not-exist.yaml", NoReload: true}, testLogger())
	l.commandFor = func(ctx context.Context, target string) *exec.Cmd {
		return exec.Command(argv[0], argv[1:]...)
	}
	return l
}

// effectiveEnv resolves a key the way exec does: the last occurrence wins.
func effectiveEnv(env []string, key string) string {
	value := ""
	for _, kv := range env {
		if strings.HasPrefix(kv, key+"=") {
			value = strings.TrimPrefix(kv, key+"=")
		}
	}
	return value
}

func TestProcessEnvSchedulerValuesCannotBeShadowed(t *testing.T) {
	meta := map[string]string{
		"AWS_LAMBDA_RUNTIME_API":   "metadata-wins",
		"AWS_LAMBDA_FUNCTION_NAME": "metadata-wins",
		"DATABASE_URL":             "postgres://localhost/dev",
	}

	env := processEnv("orders", "127.0.0.1:9000/orders", meta)

	assert.Equal(t, "127.0.0.1:9000/orders", effectiveEnv(env, "AWS_LAMBDA_RUNTIME_API"))
	assert.Equal(t, "orders", effectiveEnv(env, "AWS_LAMBDA_FUNCTION_NAME"))
	assert.Equal(t, "postgres://localhost/dev", effectiveEnv(env, "DATABASE_URL"))
}

func TestProcessEnvMetadataOverridesDefaults(t *testing.T) {
	env := processEnv("orders", "127.0.0.1:9000/orders", map[string]string{
		"AWS_LAMBDA_FUNCTION_VERSION": "42",
	})

	assert.Equal(t, "42", effectiveEnv(env, "AWS_LAMBDA_FUNCTION_VERSION"))
	assert.Equal(t, "4096", effectiveEnv(env, "AWS_LAMBDA_FUNCTION_MEMORY_SIZE"))
}

func TestProcessEnvLogLevelPassthrough(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	env := processEnv("orders", "127.0.0.1:9000/orders", nil)
	assert.Equal(t, "debug", effectiveEnv(env, "LOG_LEVEL"))
}

func TestLaunchNaturalExitSendsDeathNotification(t *testing.T) {
	l := stubLauncher("true")
	died := make(chan string, 1)

	err := l.Launch(context.Background(), "orders", "127.0.0.1:9000/orders", died)
	require.NoError(t, err)

	select {
	case name := <-died:
		assert.Equal(t, "orders", name)
	default:
		t.Fatal("expected a death notification after the process exited")
	}
}

func TestLaunchShutdownKillsWithoutNotification(t *testing.T) {
	l := stubLauncher("sleep", "30")
	died := make(chan string, 1)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		result <- l.Launch(ctx, "orders", "127.0.0.1:9000/orders", died)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not terminate the process")
	}
	assert.Empty(t, died)
}

func TestLaunchRestartsOnSourceChange(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "main.go")
	require.NoError(t, os.WriteFile(file, []byte("package main"), 0o644))

	l := New(Options{
		ManifestPath: "does-not-exist.yaml",
		Build:        build.Options{Dir: root},
	}, testLogger())

	var spawns atomic.Int32
	l.commandFor = func(ctx context.Context, target string) *exec.Cmd {
		spawns.Add(1)
		return exec.Command("sleep", "30")
	}

	ctx, cancel := context.WithCancel(context.Background())
	died := make(chan string, 1)
	result := make(chan error, 1)
	go func() {
		result <- l.Launch(ctx, "orders", "127.0.0.1:9000/orders", died)
	}()

	require.Eventually(t, func() bool { return spawns.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(file, []byte("package main // changed"), 0o644))
	require.Eventually(t, func() bool { return spawns.Load() == 2 }, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not stop the reload loop")
	}
	assert.Empty(t, died)
}

func TestLaunchSpawnFailure(t *testing.T) {
	l := stubLauncher("/this/binary/does/not/exist")
	died := make(chan string, 1)

	err := l.Launch(context.Background(), "orders", "127.0.0.1:9000/orders", died)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spawning function orders")
	assert.Empty(t, died)
}
