// Package main provides the comfyflow command line, which runs ComfyUI and X
// media nodes once or hosts them behind an HTTP API.
package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:                  "comfyflow",
		Usage:                 "Run ComfyUI generation and X media upload nodes",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			RunCommand(),
			ServeCommand(),
			NodesCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
