/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"newsdeck/cache"
	"newsdeck/config"
	"newsdeck/deck"
	"newsdeck/feedclient"
	"newsdeck/readstate"
	"newsdeck/server"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the news deck",
		Description: `Starts the HTTP server and the refresh scheduler.

Feeds listed in the configuration file are fetched right away and then on the
configured interval. Send SIGHUP to reload the configuration file; only the
settings that changed take effect, and changing max_articles alone does not
refetch anything.`,
		Flags: append(append([]cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:    "host",
				Value:   "0.0.0.0",
				Usage:   "Host to listen on",
				EnvVars: []string{"NEWSDECK_HOST"},
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   3000,
				Usage:   "Port to listen on",
				EnvVars: []string{"NEWSDECK_PORT"},
			},
			&cli.StringFlag{
				Name:    "allow-origins",
				Usage:   "Comma separated origins allowed to call the API from a browser",
				EnvVars: []string{"NEWSDECK_ALLOW_ORIGINS"},
			},
			&cli.StringFlag{
				Name:    "read-state",
				Value:   "memory",
				Usage:   "Where read marks are kept (memory or postgres)",
				EnvVars: []string{"NEWSDECK_READ_STATE"},
			},
		}, dbFlags()...), clientFlags()...),
		Action: func(ctx *cli.Context) error {
			log.Info("Starting newsdeck...")

			configPath := ctx.String("config")
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			store, closeStore, err := openReadState(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			runCtx, cancel := context.WithCancel(ctx.Context)
			defer cancel()

			bc := server.NewBroadcaster()
			d := deck.New(runCtx, newFeedClient(ctx, cfg), cache.New())
			d.Subscribe(bc.Broadcast)

			if err := d.Apply(*cfg); err != nil {
				return fmt.Errorf("failed to apply config: %w", err)
			}

			app := server.Server(&server.ServerConfig{
				Deck:         d,
				ReadState:    store,
				Broadcaster:  bc,
				AllowOrigins: ctx.String("allow-origins"),
			})

			signals := make(chan os.Signal, 1)
			signal.Notify(signals, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
			defer signal.Stop(signals)

			listenErr := make(chan error, 1)
			go func() {
				addr := fmt.Sprintf("%s:%d", ctx.String("host"), ctx.Int("port"))
				log.Infof("Starting server on %s", addr)
				listenErr <- app.Listen(addr)
			}()

			for {
				select {
				case err := <-listenErr:
					d.Stop()
					bc.Shutdown()
					return err

				case sig := <-signals:
					if sig == syscall.SIGHUP {
						reload(d, configPath)
						continue
					}

					log.Info("Gracefully shutting down...")
					d.Stop()
					bc.Shutdown()
					if err := app.ShutdownWithTimeout(60 * time.Second); err != nil {
						log.Errorf("Error shutting down server: %v", err)
					}
					log.Info("Done!")
					return nil
				}
			}
		},
	}
}

func reload(d *deck.Deck, path string) {
	log.WithFields(log.Fields{
		"path": path,
	}).Info("Reloading configuration")

	cfg, err := config.LoadConfig(path)
	if err != nil {
		log.Errorf("Keeping previous configuration: %v", err)
		return
	}
	if err := d.Apply(*cfg); err != nil {
		log.Errorf("Keeping previous configuration: %v", err)
	}
}

func newFeedClient(ctx *cli.Context, cfg *config.Config) *feedclient.HTTPClient {
	return feedclient.New(feedclient.Config{
		UserAgent:         cfg.UserAgent,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             ctx.Int("burst"),
		MaxRetries:        ctx.Uint64("retries"),
		SummaryLength:     cfg.SummaryLength,
	})
}

func openReadState(ctx *cli.Context) (readstate.Store, func(), error) {
	switch ctx.String("read-state") {
	case "memory":
		return readstate.NewMemoryStore(), func() {}, nil
	case "postgres":
		settings := dbSettingsFrom(ctx)
		db, err := readstate.Open(settings.host, settings.port, settings.user, settings.password, settings.name)
		if err != nil {
			return nil, nil, err
		}
		return readstate.NewPostgresStore(db), func() { db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown read state store %q, expected memory or postgres", ctx.String("read-state"))
	}
}
