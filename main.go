package main

import (
	"errors"
	"os"

	"newsdeck/cmd"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	_ "golang.org/x/crypto/x509roots/fallback" // We need this to make TLS work in scratch containers
)

func main() {
	// Flags read their environment variables while parsing, so .env must be loaded first
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("Could not load .env file: %v", err)
	}

	if err := cmd.RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
