/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"newsdeck/aggregator"
	"newsdeck/config"
	"newsdeck/registry"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func fetchCmd() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Fetch all feeds once and print the result",
		Description: `Runs a single aggregation cycle over the configured feeds and
prints the report as JSON.

With --lines each article is printed as a JSON object on a single line instead,
followed by one line per failed source. Use a tool like jq to process the output.

Prints all other log messages to stderr.`,
		Flags: append([]cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of articles, defaults to max_articles from the config",
			},
			&cli.BoolFlag{
				Name:  "lines",
				Usage: "Print one JSON object per line",
			},
		}, clientFlags()...),
		Action: func(ctx *cli.Context) error {
			log.SetOutput(os.Stderr)

			cfg, err := config.LoadConfig(ctx.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			sources, err := registry.Normalize(cfg.Feeds)
			if err != nil {
				return err
			}

			limit := ctx.Int("limit")
			if limit <= 0 {
				limit = cfg.MaxArticles
			}

			report, err := aggregator.New(newFeedClient(ctx, cfg)).FetchAll(ctx.Context, sources, limit, cfg.SourceTimeout)
			if err != nil {
				return err
			}

			if !ctx.Bool("lines") {
				return printJson(report)
			}
			for _, article := range report.Articles {
				printJson(article)
			}
			for _, failure := range report.FailedSources {
				printJson(failure)
			}
			return nil
		},
	}
}

// printJson prints v as a single JSON line on stdout
func printJson(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
