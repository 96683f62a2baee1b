/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"newsdeck/config"
	"newsdeck/models"
	"newsdeck/registry"

	"github.com/cqroot/prompt"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
)

func sourcesCmd() *cli.Command {
	return &cli.Command{
		Name:  "sources",
		Usage: "Manage the feeds in the configuration file",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List configured feeds",
				Flags: []cli.Flag{configFlag()},
				Action: func(ctx *cli.Context) error {
					cfg, err := loadOrDefault(ctx.String("config"))
					if err != nil {
						return err
					}
					sources, err := registry.Normalize(cfg.Feeds)
					if err != nil {
						return err
					}
					for _, source := range sources {
						fmt.Printf("%s\t%s\n", source.ResolvedName(), source.Url)
					}
					return nil
				},
			},
			{
				Name:  "add",
				Usage: "Add a feed",
				Description: `Adds a feed to the configuration file. Asks for the URL and
display name when they are not given as flags.

A running server picks up the change on SIGHUP.`,
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "url", Usage: "Feed URL"},
					&cli.StringFlag{Name: "name", Usage: "Display name, defaults to the feed host"},
				},
				Action: func(ctx *cli.Context) error {
					path := ctx.String("config")
					cfg, err := loadOrDefault(path)
					if err != nil {
						return err
					}

					feedUrl, name := ctx.String("url"), ctx.String("name")
					if feedUrl == "" {
						if feedUrl, err = prompt.New().Ask("Feed URL:").Input("https://"); err != nil {
							return err
						}
						if name, err = prompt.New().Ask("Display name (optional):").Input(""); err != nil {
							return err
						}
					}

					feeds, err := addSource(cfg.Feeds, models.RawSource{Url: feedUrl, Name: name})
					if err != nil {
						return err
					}
					cfg.Feeds = feeds

					if err := config.SaveConfig(path, *cfg); err != nil {
						return err
					}
					fmt.Printf("Added %s to %s\n", strings.TrimSpace(feedUrl), path)
					return nil
				},
			},
			{
				Name:  "remove",
				Usage: "Remove a feed",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "url", Usage: "Feed URL, asks when empty"},
				},
				Action: func(ctx *cli.Context) error {
					path := ctx.String("config")
					cfg, err := config.LoadConfig(path)
					if err != nil {
						return fmt.Errorf("failed to load config: %w", err)
					}

					feedUrl := ctx.String("url")
					if feedUrl == "" {
						if len(cfg.Feeds) == 0 {
							return errors.New("no feeds configured")
						}
						urls := lo.Map(cfg.Feeds, func(f models.RawSource, _ int) string { return f.Url })
						if feedUrl, err = prompt.New().Ask("Remove which feed?").Choose(urls); err != nil {
							return err
						}
					}

					feeds, err := removeSource(cfg.Feeds, feedUrl)
					if err != nil {
						return err
					}
					cfg.Feeds = feeds

					if err := config.SaveConfig(path, *cfg); err != nil {
						return err
					}
					fmt.Printf("Removed %s from %s\n", feedUrl, path)
					return nil
				},
			},
		},
	}
}

// loadOrDefault treats a missing file as an empty configuration
func loadOrDefault(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := config.Default()
		return &cfg, nil
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func addSource(feeds []models.RawSource, source models.RawSource) ([]models.RawSource, error) {
	source.Url = strings.TrimSpace(source.Url)
	source.Name = strings.TrimSpace(source.Name)

	if err := registry.ValidateUrl(source.Url); err != nil {
		return nil, err
	}
	if lo.ContainsBy(feeds, func(f models.RawSource) bool { return strings.TrimSpace(f.Url) == source.Url }) {
		return nil, fmt.Errorf("feed %s is already configured", source.Url)
	}
	return append(feeds, source), nil
}

func removeSource(feeds []models.RawSource, feedUrl string) ([]models.RawSource, error) {
	feedUrl = strings.TrimSpace(feedUrl)
	kept := lo.Reject(feeds, func(f models.RawSource, _ int) bool { return strings.TrimSpace(f.Url) == feedUrl })
	if len(kept) == len(feeds) {
		return nil, fmt.Errorf("feed %s is not configured", feedUrl)
	}
	return kept, nil
}
