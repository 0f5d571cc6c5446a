package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/mailqueue/cmd/app/commands"
	"github.com/allisson/mailqueue/internal/app"
	"github.com/allisson/mailqueue/internal/config"
	mailService "github.com/allisson/mailqueue/internal/mail/service"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the HTTP API server",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:  "worker",
			Usage: "Run the queue processor on QUEUE_SCHEDULE",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunWorker(ctx, version)
			},
		},
		{
			Name:  "migrate",
			Usage: "Run database migrations",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
			},
		},
		{
			Name:  "hash-admin-key",
			Usage: "Hash an admin API key for ADMIN_API_KEY_HASH, generating one when omitted",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "key",
					Aliases: []string{"k"},
					Value:   "",
					Usage:   "Admin key to hash (omit to generate a random key)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunHashAdminKey(
					mailService.NewAdminKeyService(""),
					cmd.Root().Writer,
					cmd.String("key"),
				)
			},
		},
	}
}
