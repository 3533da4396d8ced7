package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/0kaguya/cargo-lambda/pkg/build"
	"github.com/0kaguya/cargo-lambda/pkg/deploy"
	"github.com/0kaguya/cargo-lambda/pkg/manifest"
	"github.com/0kaguya/cargo-lambda/pkg/utils"
)

func deployCommand() *cli.Command {
	return &cli.Command{
		Name:      "deploy",
		Usage:     "build, package and upload a function to AWS Lambda",
		ArgsUsage: "function name",
		Flags: []cli.Flag{
			manifestFlag,
			&cli.StringFlag{
				Name:    "profile",
				Usage:   "AWS configuration profile to authorize with",
				Aliases: []string{"p"},
			},
			&cli.StringFlag{
				Name:    "region",
				Usage:   "AWS region to deploy to",
				Aliases: []string{"r"},
			},
			&cli.StringFlag{
				Name:  "alias",
				Usage: "Lambda alias to associate with the published version",
			},
			&cli.IntFlag{
				Name:  "retry-attempts",
				Usage: "number of attempts for failed AWS operations",
				Value: 1,
			},
			&cli.StringFlag{
				Name:  "s3-bucket",
				Usage: "stage the code archive in this S3 bucket instead of uploading it directly",
			},
			&cli.StringFlag{
				Name:  "iam-role",
				Usage: "IAM role ARN the function assumes (required on first deploy)",
			},
			&cli.Int32Flag{
				Name:  "memory",
				Usage: "memory size in MB",
			},
			&cli.Int32Flag{
				Name:  "timeout",
				Usage: "function timeout in seconds",
			},
			&cli.StringFlag{
				Name:  "arch",
				Usage: "target architecture (x86_64 or arm64)",
				Value: "x86_64",
			},
			&cli.StringFlag{
				Name:  "tags",
				Usage: "build tags forwarded to the go toolchain",
			},
			&cli.BoolFlag{
				Name:  "release",
				Usage: "build the function binary with release flags",
				Value: true,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger := utils.SetupLogger(cmd.String("log-level"), cmd.String("log-format"), "")

			name := cmd.Args().Get(0)
			if name == "" {
				return fmt.Errorf("missing function name argument")
			}

			fc := deploy.FunctionConfig{
				MemorySize:   cmd.Int32("memory"),
				Timeout:      cmd.Int32("timeout"),
				Role:         cmd.String("iam-role"),
				Architecture: cmd.String("arch"),
				Alias:        cmd.String("alias"),
			}

			var pkgDir string
			if m, err := manifest.Load(cmd.String("manifest-path")); err != nil {
				logger.Warn("ignoring invalid function metadata", "error", err)
			} else {
				pkgDir = m.FunctionDir(name)
				fc.Env = m.FunctionEnv(name)
				if fn, err := m.Function(name); err == nil {
					if fc.MemorySize == 0 {
						fc.MemorySize = fn.MemorySize
					}
					if fc.Timeout == 0 {
						fc.Timeout = fn.Timeout
					}
					if fc.Role == "" {
						fc.Role = fn.Role
					}
				}
			}

			opts := build.Options{Dir: ".", Tags: cmd.String("tags"), Release: cmd.Bool("release")}
			goarch := "amd64"
			if fc.Architecture == "arm64" {
				goarch = "arm64"
			}

			archive, err := buildPackage(ctx, opts, name, pkgDir, goarch)
			if err != nil {
				return err
			}

			rc := deploy.RemoteConfig{
				Profile:       cmd.String("profile"),
				Region:        cmd.String("region"),
				RetryAttempts: int(cmd.Int("retry-attempts")),
			}
			cfg, err := rc.SDKConfig(ctx)
			if err != nil {
				return fmt.Errorf("loading AWS configuration: %w", err)
			}

			out, err := deploy.NewDeployer(cfg, logger).Deploy(ctx, name, archive, fc, cmd.String("s3-bucket"))
			if err != nil {
				return err
			}

			fmt.Printf("deployed %s (version %s)\n", out.FunctionArn, out.Version)
			return nil
		},
	}
}

// buildPackage cross-compiles the function and zips it as a bootstrap archive.
func buildPackage(ctx context.Context, opts build.Options, name, pkgDir, goarch string) ([]byte, error) {
	tmp, err := os.MkdirTemp("", "cargo-lambda-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	binPath := filepath.Join(tmp, deploy.BootstrapName)
	target := build.Target(name, pkgDir)

	cmd := build.BinaryCommand(ctx, opts, target, goarch, binPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("building function %s: %w", name, err)
	}

	return deploy.Package(binPath)
}
