package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dukex/comfyflow/pkg/cmd"
	"github.com/dukex/comfyflow/pkg/config"
	"github.com/dukex/comfyflow/pkg/executor"
	"github.com/dukex/comfyflow/pkg/log"
	"github.com/dukex/comfyflow/pkg/models"
	"github.com/gabriel-vasile/mimetype"
	cli "github.com/urfave/cli/v3"
)

func RunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Execute one node and print its results as JSON",
		Flags: append(commonFlags(),
			&cli.StringFlag{
				Name:     "node",
				Aliases:  []string{"n"},
				Usage:    "Node type, see the nodes command",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "YAML or JSON file with the node configuration",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "context",
				Usage: "YAML or JSON file with the execution context (variables, trigger data, attachments)",
			},
			&cli.StringSliceFlag{
				Name:  "attach",
				Usage: "Binary attachment as property=path, repeatable",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Directory the binary outputs are written to",
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("comfyflow")

			tracer, shutdown := cmd.NewTracer(ctx, command.Bool("tracing"), logger)
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error("Failed to shutdown tracer", "error", err)
				}
			}()

			registry, err := cmd.NewRegistry(logger, command.String("plugins-path"))
			if err != nil {
				return err
			}

			nodeType := command.String("node")

			nodeConfig, err := config.LoadNodeConfig(command.String("config"))
			if err != nil {
				return err
			}

			var execCtx models.ExecutionContext
			if path := command.String("context"); path != "" {
				if execCtx, err = config.LoadExecutionContext(path); err != nil {
					return err
				}
			}

			if err := attachFiles(&execCtx, command.StringSlice("attach")); err != nil {
				return err
			}

			exec := executor.New(registry, executor.WithTracer(tracer), executor.WithLogger(logger))

			results, runErr := exec.Execute(ctx, executor.Request{
				NodeType: nodeType,
				NodeID:   nodeType,
				Config:   newCredentialDefaults(command).apply(nodeType, nodeConfig),
				Context:  execCtx,
			})

			if out := command.String("out"); out != "" && runErr == nil {
				if err := writeBinaries(out, results); err != nil {
					return err
				}
			}

			if err := printResults(results); err != nil {
				return err
			}

			return runErr
		},
	}
}

func attachFiles(execCtx *models.ExecutionContext, specs []string) error {
	for _, spec := range specs {
		property, path, ok := strings.Cut(spec, "=")
		if !ok || property == "" || path == "" {
			return fmt.Errorf("invalid attachment '%s', expected property=path", spec)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read attachment %s: %w", path, err)
		}

		mtype := mimetype.Detect(data)

		if execCtx.Binary == nil {
			execCtx.Binary = make(map[string]models.BinaryData)
		}

		execCtx.Binary[property] = models.BinaryData{
			Data:          data,
			MimeType:      mtype.String(),
			FileName:      filepath.Base(path),
			FileExtension: strings.TrimPrefix(mtype.Extension(), "."),
		}
	}

	return nil
}

// writeBinaries stores every binary of the success port items under dir.
func writeBinaries(dir string, results map[string]models.NodeResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for i, item := range results["success"].Items {
		for property, bin := range item.Binary {
			name := bin.FileName
			if name == "" {
				name = property + "_" + strconv.Itoa(i)
				if bin.FileExtension != "" {
					name += "." + bin.FileExtension
				}
			}

			if err := os.WriteFile(filepath.Join(dir, filepath.Base(name)), bin.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", name, err)
			}
		}
	}

	return nil
}

// printResults writes results to stdout without the binary payloads.
func printResults(results map[string]models.NodeResult) error {
	printable := make(map[string]models.NodeResult, len(results))

	for port, result := range results {
		items := make([]models.Item, len(result.Items))

		for i, item := range result.Items {
			items[i] = models.Item{JSON: item.JSON}

			if len(item.Binary) > 0 {
				items[i].Binary = make(map[string]models.BinaryData, len(item.Binary))

				for property, bin := range item.Binary {
					bin.Data = nil
					items[i].Binary[property] = bin
				}
			}
		}

		result.Items = items
		printable[port] = result
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(printable)
}
