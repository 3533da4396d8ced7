package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLauncher records launches and lets each test script the process exit.
type fakeLauncher struct {
	launched chan string
	// exit simulates the supervised process; the default blocks until
	// shutdown like a healthy long-running function.
	exit func(ctx context.Context, name string, died chan<- string) error
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{launched: make(chan string, 16)}
}

func (f *fakeLauncher) Launch(ctx context.Context, name, runtimeAPI string, died chan<- string) error {
	f.launched <- name
	if f.exit != nil {
		return f.exit(ctx, name, died)
	}
	<-ctx.Done()
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startScheduler(t *testing.T, launcher Launcher) (*Scheduler, context.Context, context.CancelFunc) {
	t.Helper()
	s := New("127.0.0.1:9000", launcher, testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s, ctx, cancel
}

func TestSchedulerSpawnsOncePerFunction(t *testing.T) {
	launcher := newFakeLauncher()
	s, ctx, _ := startScheduler(t, launcher)

	for _, id := range []string{"r1", "r2", "r3"} {
		inv, _ := NewInvoke("orders", id, nil)
		require.NoError(t, s.Submit(ctx, inv))
	}

	select {
	case name := <-launcher.launched:
		assert.Equal(t, "orders", name)
	case <-time.After(time.Second):
		t.Fatal("expected a process launch")
	}

	var got []string
	assert.Eventually(t, func() bool {
		if inv := s.Next("orders"); inv != nil {
			got = append(got, inv.RequestID)
		}
		return len(got) == 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"r1", "r2", "r3"}, got)
	assert.Nil(t, s.Next("orders"))

	select {
	case <-launcher.launched:
		t.Fatal("function must only be spawned once")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSchedulerResolvesCallerOnce(t *testing.T) {
	launcher := newFakeLauncher()
	s, ctx, _ := startScheduler(t, launcher)

	inv, respCh := NewInvoke("orders", "r1", []byte(`{"n":1}`))
	require.NoError(t, s.Submit(ctx, inv))

	var picked *Invoke
	require.Eventually(t, func() bool {
		picked = s.Next("orders")
		return picked != nil
	}, time.Second, 5*time.Millisecond)

	s.Resolve("r1", &Response{Payload: []byte("first")})
	s.Resolve("r1", &Response{Payload: []byte("second")})

	resp := <-respCh
	assert.Equal(t, "first", string(resp.Payload))

	select {
	case extra := <-respCh:
		t.Fatalf("unexpected second response: %s", extra.Payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestResolveUnknownRequestIsNoop(t *testing.T) {
	launcher := newFakeLauncher()
	s, _, _ := startScheduler(t, launcher)

	assert.NotPanics(t, func() {
		s.Resolve("nonexistent", &Response{Payload: []byte("{}")})
	})
}

func TestDeathNotificationRearmsSpawn(t *testing.T) {
	launcher := newFakeLauncher()
	launcher.exit = func(ctx context.Context, name string, died chan<- string) error {
		died <- name
		return nil
	}
	s, ctx, _ := startScheduler(t, launcher)

	inv, _ := NewInvoke("orders", "r1", nil)
	require.NoError(t, s.Submit(ctx, inv))
	<-launcher.launched

	// the process died; a later submission must start a fresh one
	assert.Eventually(t, func() bool {
		inv, _ := NewInvoke("orders", "r2", nil)
		if err := s.Submit(ctx, inv); err != nil {
			return false
		}
		select {
		case <-launcher.launched:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSpawnFailureTreatedAsDeath(t *testing.T) {
	launcher := newFakeLauncher()
	launcher.exit = func(ctx context.Context, name string, died chan<- string) error {
		return errors.New("no such binary")
	}
	s, ctx, _ := startScheduler(t, launcher)

	inv, _ := NewInvoke("orders", "r1", nil)
	require.NoError(t, s.Submit(ctx, inv))
	<-launcher.launched

	// the failed spawn must not strand the function name forever
	assert.Eventually(t, func() bool {
		inv, _ := NewInvoke("orders", "r2", nil)
		if err := s.Submit(ctx, inv); err != nil {
			return false
		}
		select {
		case <-launcher.launched:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestShutdownStopsLoopWithoutCleanup(t *testing.T) {
	launcher := newFakeLauncher()
	s := New("127.0.0.1:9000", launcher, testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()

	inv, _ := NewInvoke("orders", "r1", nil)
	require.NoError(t, s.Submit(ctx, inv))
	<-launcher.launched

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on shutdown")
	}

	// shutdown is a global teardown: no death notification, no Clean. The
	// registry entry for the function must still be present.
	again, _ := NewInvoke("orders", "r2", nil)
	_, started := s.requests.Upsert(again)
	assert.False(t, started)
}
