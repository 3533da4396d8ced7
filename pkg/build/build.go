// Package build constructs the go toolchain commands used to run functions
// locally and to cross-compile them for deployment.
package build

import (
	"context"
	"os/exec"
	"path/filepath"
)

// DefaultFunctionName is the reserved name addressing the root package of a
// project that contains a single unnamed function.
const DefaultFunctionName = "_"

// Options carries the build configuration forwarded to every go command.
type Options struct {
	// Dir is the root of the function project.
	Dir string
	// Tags are build tags passed through to the toolchain.
	Tags string
	// Release strips debug info and paths from the produced binaries.
	Release bool
}

// IsValidBinName reports whether name selects a concrete binary, as opposed
// to the reserved default-package name that lets the toolchain infer it.
func IsValidBinName(name string) bool {
	return name != "" && name != DefaultFunctionName
}

// Target resolves the package to build for a function. An explicit dir from
// the project manifest wins; a valid binary name selects ./cmd/<name>;
// anything else falls back to the project root package.
func Target(name, manifestDir string) string {
	if manifestDir != "" {
		return manifestDir
	}
	if IsValidBinName(name) {
		return "./" + filepath.Join("cmd", name)
	}
	return "."
}

// RunCommand returns the `go run` command for one function process.
func RunCommand(ctx context.Context, opts Options, target string) *exec.Cmd {
	args := []string{"run"}
	args = append(args, flags(opts)...)
	args = append(args, target)

	cmd := exec.CommandContext(ctx, "go", args...)
	cmd.Dir = opts.Dir
	return cmd
}

// BinaryCommand returns the `go build` command producing the bootstrap
// binary for deployment, cross-compiled for the Lambda execution environment.
func BinaryCommand(ctx context.Context, opts Options, target, goarch, output string) *exec.Cmd {
	args := []string{"build"}
	args = append(args, flags(opts)...)
	args = append(args, "-o", output, target)

	cmd := exec.CommandContext(ctx, "go", args...)
	cmd.Dir = opts.Dir
	cmd.Env = append(cmd.Environ(), "GOOS=linux", "GOARCH="+goarch, "CGO_ENABLED=0")
	return cmd
}

func flags(opts Options) []string {
	var args []string
	if opts.Tags != "" {
		args = append(args, "-tags", opts.Tags)
	}
	if opts.Release {
		args = append(args, "-trimpath", "-ldflags", "-s -w")
	}
	return args
}
