/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "newsdeck",
		Usage: "Aggregate RSS and Atom feeds into a single news deck",
		Description: `Fetches a configured list of RSS and Atom feeds in parallel,
		merges their entries newest first and serves the result over an HTTP API.

		Feeds that fail to load are reported next to the articles instead of
		failing the whole refresh. Feeds are refreshed on a fixed interval and
		on demand.

		Flags can generally be set via environment variables, e.g.:

		--config => NEWSDECK_CONFIG=config/feeds.toml
		--port => NEWSDECK_PORT=3000

		A .env file in the working directory is loaded on startup.
		`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (trace, debug, info, warn, error)",
				EnvVars: []string{"NEWSDECK_LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:    "log-json",
				Usage:   "Log as JSON lines",
				EnvVars: []string{"NEWSDECK_LOG_JSON"},
			},
		},
		Before: func(ctx *cli.Context) error {
			level, err := log.ParseLevel(ctx.String("log-level"))
			if err != nil {
				return fmt.Errorf("invalid log level: %w", err)
			}
			log.SetLevel(level)
			if ctx.Bool("log-json") {
				log.SetFormatter(&log.JSONFormatter{})
			}
			return nil
		},
		Commands: []*cli.Command{
			serveCmd(),
			fetchCmd(),
			sourcesCmd(),
			migrateCmd(),
			rollbackCmd(),
			tidyCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}
