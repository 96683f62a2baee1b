/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"newsdeck/readstate"

	"github.com/urfave/cli/v2"
)

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:        "migrate",
		Usage:       "Run database migrations",
		Description: `Creates or upgrades the read state tables in the configured PostgreSQL database.`,
		Flags:       dbFlags(),
		Action: func(ctx *cli.Context) error {
			db := dbSettingsFrom(ctx)
			fmt.Printf("Database configured: %s:%d/%s\n", db.host, db.port, db.name)
			return readstate.Migrate(db.host, db.port, db.user, db.password, db.name)
		},
	}
}

func rollbackCmd() *cli.Command {
	return &cli.Command{
		Name:        "rollback",
		Usage:       "Rollback database migration",
		Description: `Rolls back the last database migration`,
		Flags:       dbFlags(),
		Action: func(ctx *cli.Context) error {
			db := dbSettingsFrom(ctx)
			fmt.Printf("Database configured: %s:%d/%s\n", db.host, db.port, db.name)
			return readstate.Rollback(db.host, db.port, db.user, db.password, db.name)
		},
	}
}
