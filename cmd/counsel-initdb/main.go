// Command counsel-initdb creates the session_summary table and its indexes so
// deployments do not depend on first-write schema creation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/theimaginaryfoundation/socratic-counsel/counsel"
	"github.com/theimaginaryfoundation/socratic-counsel/counsel/store"
)

type Config struct {
	Driver string
	DSN    string
}

func (c Config) Validate() error {
	if c.Driver == "" {
		return errors.New("missing -driver")
	}
	if c.DSN == "" {
		return errors.New("missing -dsn")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Driver: "sqlite",
		DSN:    "counsel.db",
	}
}

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	log, err := counsel.NewLogger("prod")
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.Driver, cfg.DSN, 1, 1, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Init(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	log.Infow("session_summary schema ready", "driver", cfg.Driver)
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)
	fs.StringVar(&cfg.Driver, "driver", cfg.Driver, "Database driver: sqlite or pgx")
	fs.StringVar(&cfg.DSN, "dsn", cfg.DSN, "Database DSN (file path for sqlite, connection URL for pgx)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
