package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/0kaguya/cargo-lambda/pkg/build"
	"github.com/0kaguya/cargo-lambda/pkg/utils"
)

func invokeCommand() *cli.Command {
	return &cli.Command{
		Name:      "invoke",
		Usage:     "send an invocation payload to a function running under watch",
		ArgsUsage: "function name",
		Flags: []cli.Flag{
			addressFlag,
			&cli.StringFlag{
				Name:    "data-ascii",
				Usage:   "JSON payload to send",
				Aliases: []string{"d"},
				Value:   "{}",
			},
			&cli.StringFlag{
				Name:  "data-file",
				Usage: "read the payload from a file instead",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			name := cmd.Args().Get(0)
			if name == "" {
				name = build.DefaultFunctionName
			}

			payload := []byte(cmd.String("data-ascii"))
			if file := cmd.String("data-file"); file != "" {
				var err error
				if payload, err = os.ReadFile(file); err != nil {
					return fmt.Errorf("reading payload file: %w", err)
				}
			}

			body, functionError, err := invokeLocal(ctx, cmd.String("invoke-address"), name, payload)
			if err != nil {
				return err
			}

			fmt.Println(strings.TrimSpace(string(body)))
			if functionError != "" {
				return fmt.Errorf("function %s returned an error (%s)", name, functionError)
			}
			return nil
		},
	}
}

// invokeLocal posts the payload to the emulator's invocation endpoint and
// returns the response body plus the function error marker, if any. Transport
// errors are retried briefly so an invoke issued right after `watch` starts
// still lands.
func invokeLocal(ctx context.Context, addr, name string, payload []byte) ([]byte, string, error) {
	url := fmt.Sprintf("http://%s/2015-03-31/functions/%s/invocations", addr, name)

	resp, err := utils.CallWithRetry(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return http.DefaultClient.Do(req)
	}, 3, 500*time.Millisecond)
	if err != nil {
		return nil, "", fmt.Errorf("calling local invoke server (is `cargo-lambda watch` running?): %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	return body, resp.Header.Get("X-Amz-Function-Error"), nil
}
