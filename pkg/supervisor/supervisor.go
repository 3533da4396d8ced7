// Package supervisor owns the lifecycle of locally-spawned function
// processes: it composes the run command and the emulated Lambda environment,
// restarts the process on source changes when live reload is enabled, and
// reports natural process deaths back to the scheduler.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"

	"github.com/0kaguya/cargo-lambda/pkg/build"
	"github.com/0kaguya/cargo-lambda/pkg/manifest"
	"github.com/0kaguya/cargo-lambda/pkg/watcher"
)

// Options configures every process the launcher starts.
type Options struct {
	// ManifestPath locates the project manifest used for env metadata.
	ManifestPath string
	// Build is forwarded to the go run command of each function.
	Build build.Options
	// NoReload disables the file-watching restart loop.
	NoReload bool
}

// ProcessLauncher implements scheduler.Launcher on top of os/exec.
type ProcessLauncher struct {
	opts   Options
	logger *slog.Logger

	// commandFor builds the run command for a resolved package target.
	// Swapped out in tests to avoid spawning the real toolchain.
	commandFor func(ctx context.Context, target string) *exec.Cmd
}

func New(opts Options, logger *slog.Logger) *ProcessLauncher {
	l := &ProcessLauncher{opts: opts, logger: logger}
	l.commandFor = func(ctx context.Context, target string) *exec.Cmd {
		return build.RunCommand(ctx, l.opts.Build, target)
	}
	return l
}

// Launch runs the named function's process until it exits on its own or ctx
// is canceled. Natural exits are reported on died; shutdown kills the process
// and reports nothing, the whole system is tearing down anyway.
func (l *ProcessLauncher) Launch(ctx context.Context, name, runtimeAPI string, died chan<- string) error {
	l.logger.Info("starting lambda function", "function", name, "manifest", l.opts.ManifestPath)

	var meta map[string]string
	var pkgDir string
	if m, err := manifest.Load(l.opts.ManifestPath); err != nil {
		l.logger.Warn("ignoring invalid function metadata", "error", err)
	} else {
		meta = m.FunctionEnv(name)
		pkgDir = m.FunctionDir(name)
	}

	target := build.Target(name, pkgDir)
	env := processEnv(name, runtimeAPI, meta)

	if l.opts.NoReload {
		return l.superviseOnce(ctx, name, target, env, died)
	}
	return l.superviseReload(ctx, name, target, env, died)
}

func (l *ProcessLauncher) superviseOnce(ctx context.Context, name, target string, env []string, died chan<- string) error {
	cmd, waitCh, err := l.spawn(ctx, name, target, env)
	if err != nil {
		return err
	}

	select {
	case err := <-waitCh:
		l.logger.Info("function process exited", "function", name, "error", err)
		l.notifyDeath(ctx, name, died)
	case <-ctx.Done():
		l.kill(name, cmd, waitCh)
	}
	return nil
}

// superviseReload keeps one process alive across source changes: a change
// kills and respawns it, a natural exit with no pending change is a death.
func (l *ProcessLauncher) superviseReload(ctx context.Context, name, target string, env []string, died chan<- string) error {
	changes, err := watcher.New(l.opts.Build.Dir, l.logger).Watch(ctx)
	if err != nil {
		l.logger.Warn("live reload unavailable, running without it", "function", name, "error", err)
		return l.superviseOnce(ctx, name, target, env, died)
	}

	for {
		cmd, waitCh, err := l.spawn(ctx, name, target, env)
		if err != nil {
			return err
		}

		select {
		case err := <-waitCh:
			l.logger.Info("function process exited", "function", name, "error", err)
			l.notifyDeath(ctx, name, died)
			return nil
		case <-changes:
			l.logger.Info("sources changed, restarting function", "function", name)
			l.kill(name, cmd, waitCh)
		case <-ctx.Done():
			l.kill(name, cmd, waitCh)
			return nil
		}
	}
}

func (l *ProcessLauncher) spawn(ctx context.Context, name, target string, env []string) (*exec.Cmd, <-chan error, error) {
	cmd := l.commandFor(ctx, target)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	l.logger.Debug("spawning run command", "function", name, "command", cmd.String())

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("spawning function %s: %w", name, err)
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()
	return cmd, waitCh, nil
}

func (l *ProcessLauncher) notifyDeath(ctx context.Context, name string, died chan<- string) {
	select {
	case died <- name:
	case <-ctx.Done():
		l.logger.Error("failed to notify scheduler about dead function", "function", name)
	}
}

func (l *ProcessLauncher) kill(name string, cmd *exec.Cmd, waitCh <-chan error) {
	l.logger.Info("terminating lambda function", "function", name)
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	<-waitCh
}

// processEnv composes the environment layers of a function process. exec
// resolves duplicate keys to the last occurrence, so later entries override
// earlier ones; the runtime API address and function name are appended last
// and cannot be shadowed by manifest metadata.
func processEnv(name, runtimeAPI string, meta map[string]string) []string {
	env := []string{
		"LOG_LEVEL=" + os.Getenv("LOG_LEVEL"),
		"AWS_LAMBDA_FUNCTION_VERSION=1",
		"AWS_LAMBDA_FUNCTION_MEMORY_SIZE=4096",
	}

	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+meta[k])
	}

	return append(env,
		"AWS_LAMBDA_RUNTIME_API="+runtimeAPI,
		"AWS_LAMBDA_FUNCTION_NAME="+name,
	)
}
