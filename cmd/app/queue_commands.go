package main

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/allisson/mailqueue/cmd/app/commands"
	"github.com/allisson/mailqueue/internal/app"
	"github.com/allisson/mailqueue/internal/config"
)

var formatFlag = &cli.StringFlag{
	Name:    "format",
	Aliases: []string{"f"},
	Value:   "text",
	Usage:   "Output format: 'text' or 'json'",
}

// withContainer builds a container from validated configuration and shuts it down once
// fn returns.
func withContainer(ctx context.Context, fn func(container *app.Container) error) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	container := app.NewContainer(cfg)
	defer func() {
		if err := container.Shutdown(ctx); err != nil {
			container.Logger().Error("failed to shutdown container", slog.Any("error", err))
		}
	}()

	return fn(container)
}

func getQueueCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "process-queue",
			Usage: "Run one queue processor pass and print the summary",
			Flags: []cli.Flag{formatFlag},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(container *app.Container) error {
					processor, err := container.QueueProcessor()
					if err != nil {
						return err
					}
					return commands.RunProcessQueue(
						ctx,
						processor,
						container.Logger(),
						cmd.Root().Writer,
						cmd.String("format"),
					)
				})
			},
		},
		{
			Name:  "requeue-job",
			Usage: "Move a failed or dead job back to the queue",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "id",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "Job ID (UUID)",
				},
				&cli.BoolFlag{
					Name:    "reset",
					Aliases: []string{"r"},
					Value:   true,
					Usage:   "Reset the retry count to zero; --reset=false keeps spent retries",
				},
				formatFlag,
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(container *app.Container) error {
					emailJobUseCase, err := container.EmailJobUseCase()
					if err != nil {
						return err
					}
					return commands.RunRequeueJob(
						ctx,
						emailJobUseCase,
						container.Logger(),
						cmd.Root().Writer,
						cmd.String("id"),
						cmd.Bool("reset"),
						cmd.String("format"),
					)
				})
			},
		},
		{
			Name:  "reclaim-stale",
			Usage: "Requeue jobs stuck in processing for longer than the given minutes",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:     "minutes",
					Aliases:  []string{"m"},
					Required: true,
					Usage:    "Reclaim processing jobs not updated for this many minutes",
				},
				formatFlag,
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(container *app.Container) error {
					emailJobUseCase, err := container.EmailJobUseCase()
					if err != nil {
						return err
					}
					return commands.RunReclaimStale(
						ctx,
						emailJobUseCase,
						container.Logger(),
						cmd.Root().Writer,
						int(cmd.Int("minutes")),
						cmd.String("format"),
					)
				})
			},
		},
	}
}
