/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"time"

	"newsdeck/readstate"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func tidyCmd() *cli.Command {
	return &cli.Command{
		Name:  "tidy",
		Usage: "Tidy up the read state database",
		Description: `Forget which articles were read a long time ago.

		Articles marked read longer ago than --older-than are removed from the
		database. Feeds rarely keep entries that old, so they will not show up again.`,
		Flags: append(dbFlags(),
			&cli.DurationFlag{
				Name:    "older-than",
				Value:   90 * 24 * time.Hour,
				Usage:   "Remove read marks older than this",
				EnvVars: []string{"NEWSDECK_TIDY_OLDER_THAN"},
			},
		),
		Action: func(ctx *cli.Context) error {
			settings := dbSettingsFrom(ctx)
			fmt.Printf("Database configured: %s:%d/%s\n", settings.host, settings.port, settings.name)

			db, err := readstate.Open(settings.host, settings.port, settings.user, settings.password, settings.name)
			if err != nil {
				return err
			}
			defer db.Close()

			cutoff := time.Now().Add(-ctx.Duration("older-than"))
			removed, err := readstate.NewPostgresStore(db).Tidy(ctx.Context, cutoff)
			if err != nil {
				return err
			}

			log.WithFields(log.Fields{
				"removed": removed,
				"cutoff":  cutoff.Format(time.RFC3339),
			}).Info("Tidied read state")
			return nil
		},
	}
}
