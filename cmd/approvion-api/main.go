package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dukex/approvion/pkg/cmd"
	"github.com/dukex/approvion/pkg/engine"
	"github.com/dukex/approvion/pkg/log"
	"github.com/dukex/approvion/pkg/notification"
	"github.com/dukex/approvion/pkg/otelhelper"
	"github.com/dukex/approvion/pkg/registry"
	"github.com/dukex/approvion/pkg/workflows"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9090

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "approvion-api",
		Usage:                 "Create, submit and decide approval requests",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for cross-process request locking (optional)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Approvion API")

			tracerProvider, err := otelhelper.InitTracer(ctx, "approvion-api")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}

			defer func() {
				if err := tracerProvider.Shutdown(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
				}
			}()

			persist := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				if err := persist.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			locker := cmd.NewLocker(command.String("redis-url"))

			reg := registry.NewRegistry(logger)
			eng := engine.New(reg, persist, eventBus, locker, logger)

			if err := workflows.RegisterAll(reg, eng); err != nil {
				return err
			}

			consumer := notification.NewConsumer(eventBus, &notification.LogSender{Logger: logger}, logger)
			if err := consumer.Start(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to start notification consumer", "error", err)
			}

			api := NewAPI(
				logger,
				persist,
				reg,
				eng,
				eventBus,
			)

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
