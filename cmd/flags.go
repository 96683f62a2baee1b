package cmd

import (
	"github.com/urfave/cli/v2"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Value:   "config/feeds.toml",
		Usage:   "Path to feeds configuration file",
		EnvVars: []string{"NEWSDECK_CONFIG"},
	}
}

func dbFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "db-host",
			Usage:   "PostgreSQL host",
			EnvVars: []string{"NEWSDECK_DB_HOST"},
			Value:   "localhost",
		},
		&cli.IntFlag{
			Name:    "db-port",
			Usage:   "PostgreSQL port",
			EnvVars: []string{"NEWSDECK_DB_PORT"},
			Value:   5432,
		},
		&cli.StringFlag{
			Name:    "db-user",
			Usage:   "PostgreSQL user",
			EnvVars: []string{"NEWSDECK_DB_USER"},
			Value:   "newsdeck",
		},
		&cli.StringFlag{
			Name:    "db-password",
			Usage:   "PostgreSQL password",
			EnvVars: []string{"NEWSDECK_DB_PASSWORD"},
			Value:   "newsdeck",
		},
		&cli.StringFlag{
			Name:    "db-name",
			Usage:   "PostgreSQL database name",
			EnvVars: []string{"NEWSDECK_DB_NAME"},
			Value:   "newsdeck",
		},
	}
}

type dbSettings struct {
	host     string
	port     int
	user     string
	password string
	name     string
}

func dbSettingsFrom(ctx *cli.Context) dbSettings {
	return dbSettings{
		host:     ctx.String("db-host"),
		port:     ctx.Int("db-port"),
		user:     ctx.String("db-user"),
		password: ctx.String("db-password"),
		name:     ctx.String("db-name"),
	}
}

func clientFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Uint64Flag{
			Name:    "retries",
			Value:   2,
			Usage:   "Extra attempts for a feed after a transient error",
			EnvVars: []string{"NEWSDECK_RETRIES"},
		},
		&cli.IntFlag{
			Name:    "burst",
			Value:   4,
			Usage:   "Requests allowed at once when requests_per_second is set",
			EnvVars: []string{"NEWSDECK_BURST"},
		},
	}
}
