package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dukex/comfyflow/pkg/cmd"
	"github.com/dukex/comfyflow/pkg/comfyui"
	"github.com/dukex/comfyflow/pkg/eventbus"
	"github.com/dukex/comfyflow/pkg/events"
	"github.com/dukex/comfyflow/pkg/executor"
	"github.com/dukex/comfyflow/pkg/log"
	"github.com/dukex/comfyflow/pkg/monitor"
	"github.com/dukex/comfyflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

const (
	defaultPort     = 9091
	shutdownTimeout = 10 * time.Second
)

func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Host the registered nodes behind an HTTP API",
		Flags: append(commonFlags(),
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "worker-id",
				Usage:   "Worker ID stamped on published events (auto-generated if not provided)",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:    "probe-schedule",
				Usage:   "Cron schedule of the ComfyUI readiness probe, e.g. '@every 1m' (disabled when empty)",
				Sources: cli.EnvVars("PROBE_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "probe-url",
				Usage:   "ComfyUI server probed for readiness, defaults to --comfyui-api-url",
				Sources: cli.EnvVars("PROBE_URL"),
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("comfyflow").With("worker_id", workerID)

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

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

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.Error("Failed to close event bus", "error", err)
				}
			}()

			if err := subscribeEventLog(ctx, eventBus, logger); err != nil {
				return err
			}

			var readiness web.Readiness

			mon, err := newMonitor(command, eventBus, logger)
			if err != nil {
				return err
			}

			if mon != nil {
				if err := mon.Start(ctx); err != nil {
					return err
				}
				defer mon.Stop()

				readiness = mon
			}

			exec := executor.New(registry,
				executor.WithPublisher(eventBus),
				executor.WithTracer(tracer),
				executor.WithWorkerID(workerID),
				executor.WithLogger(logger))

			app := web.NewAPIHandlers(registry, exec, validator.New(validator.WithRequiredStructEnabled()), readiness).App()

			errCh := make(chan error, 1)

			go func() {
				logger.Info("Starting comfyflow API", "port", command.Int("port"))
				errCh <- app.Listen(":" + strconv.Itoa(int(command.Int("port"))))
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("Shutting down comfyflow API")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			return app.ShutdownWithContext(shutdownCtx)
		},
	}
}

func newMonitor(command *cli.Command, publisher eventbus.EventPublisher, logger *slog.Logger) (*monitor.Monitor, error) {
	schedule := command.String("probe-schedule")
	if schedule == "" {
		return nil, nil
	}

	probeURL := command.String("probe-url")
	if probeURL == "" {
		probeURL = command.String("comfyui-api-url")
	}

	if probeURL == "" {
		return nil, errors.New("--probe-schedule needs --probe-url or --comfyui-api-url")
	}

	client, err := comfyui.NewClient(comfyui.Credentials{
		APIURL: probeURL,
		APIKey: command.String("comfyui-api-key"),
	}, comfyui.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	return monitor.New(client, logger, monitor.WithSchedule(schedule), monitor.WithPublisher(publisher))
}

// subscribeEventLog logs every event seen on the bus.
func subscribeEventLog(ctx context.Context, bus eventbus.EventBus, logger *slog.Logger) error {
	eventTypes := []events.EventType{
		events.NodeExecutionStartedEvent,
		events.NodeExecutionFinishedEvent,
		events.NodeExecutionFailedEvent,
		events.ComfyUIProbedEvent,
	}

	for _, eventType := range eventTypes {
		err := bus.Handle(eventType, func(ctx context.Context, event any) error {
			logger.DebugContext(ctx, "Event received", "event_type", eventType, "event", event)

			return nil
		})
		if err != nil {
			return err
		}
	}

	return bus.Subscribe(ctx)
}
