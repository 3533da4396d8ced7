package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"
)

var logLevelFlag = &cli.StringFlag{
	Name:  "log-level",
	Usage: "log level (debug, info, warn, error)",
	Value: "info",
}

var logFormatFlag = &cli.StringFlag{
	Name:  "log-format",
	Usage: "log format (text, json or dev)",
	Value: "dev",
}

var addressFlag = &cli.StringFlag{
	Name:    "invoke-address",
	Usage:   "address the local invoke server listens on",
	Aliases: []string{"a"},
	Value:   "127.0.0.1:9000",
}

var manifestFlag = &cli.StringFlag{
	Name:  "manifest-path",
	Usage: "path to the project manifest",
	Value: "lambda.yaml",
}

func main() {
	cmd := &cli.Command{
		Name:  "cargo-lambda",
		Usage: "run, invoke and deploy Go Lambda functions from your machine",
		Commands: []*cli.Command{
			watchCommand(),
			invokeCommand(),
			deployCommand(),
		},
		Flags: []cli.Flag{
			logLevelFlag,
			logFormatFlag,
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
