package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dukex/comfyflow/pkg/cmd"
	"github.com/dukex/comfyflow/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func NodesCommand() *cli.Command {
	return &cli.Command{
		Name:  "nodes",
		Usage: "List the registered node types",
		Flags: commonFlags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			registry, err := cmd.NewRegistry(log.WithModule("comfyflow"), command.String("plugins-path"))
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tNAME\tDESCRIPTION")

			for _, node := range registry.ListNodes() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", node.ID, node.Name, node.Description)
			}

			return w.Flush()
		},
	}
}
