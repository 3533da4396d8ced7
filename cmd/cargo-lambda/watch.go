package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/0kaguya/cargo-lambda/pkg/api"
	"github.com/0kaguya/cargo-lambda/pkg/build"
	"github.com/0kaguya/cargo-lambda/pkg/scheduler"
	"github.com/0kaguya/cargo-lambda/pkg/supervisor"
	"github.com/0kaguya/cargo-lambda/pkg/utils"
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:    "watch",
		Aliases: []string{"start"},
		Usage:   "run the project's functions locally behind an emulated Lambda runtime API",
		Flags: []cli.Flag{
			addressFlag,
			manifestFlag,
			&cli.StringFlag{
				Name:  "tags",
				Usage: "build tags forwarded to the go toolchain",
			},
			&cli.BoolFlag{
				Name:  "release",
				Usage: "build function binaries with release flags",
			},
			&cli.BoolFlag{
				Name:  "no-reload",
				Usage: "do not restart function processes when sources change",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger := utils.SetupLogger(cmd.String("log-level"), cmd.String("log-format"), "")

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			addr := cmd.String("invoke-address")

			launcher := supervisor.New(supervisor.Options{
				ManifestPath: cmd.String("manifest-path"),
				Build: build.Options{
					Dir:     ".",
					Tags:    cmd.String("tags"),
					Release: cmd.Bool("release"),
				},
				NoReload: cmd.Bool("no-reload"),
			}, logger)

			sched := scheduler.New(addr, launcher, logger)
			server := api.NewServer(addr, sched, logger)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return sched.Run(ctx) })
			g.Go(func() error { return server.Start(ctx) })
			return g.Wait()
		},
	}
}
