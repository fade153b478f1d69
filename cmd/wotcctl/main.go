package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/edvart/wotc-admin/internal/kv"
	"github.com/edvart/wotc-admin/internal/publish"
	"github.com/edvart/wotc-admin/internal/store"
	"github.com/edvart/wotc-admin/internal/tally"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type globalCmd struct {
	Backend  string `help:"Record store backend (redis or sqlite)." env:"STORE_BACKEND" default:"sqlite" enum:"redis,sqlite"`
	RedisURL string `help:"Redis URL or host:port." env:"REDIS_URL"`
	Database string `help:"SQLite database path." env:"DATABASE_PATH" default:"./data/wotc.db"`
	Verbose  bool   `help:"Log store writes." short:"v"`
}

// app bundles what every command needs.
type app struct {
	store     *store.KVStore
	publisher *publish.Manager
	tally     *tally.Engine
	close     func() error
}

func (g *globalCmd) open(ctx context.Context) (*app, error) {
	url := g.Database
	if g.Backend == "redis" {
		if g.RedisURL == "" {
			return nil, fmt.Errorf("--redis-url or REDIS_URL required for the redis backend")
		}
		url = g.RedisURL
	}
	records, err := kv.Open(ctx, g.Backend, url)
	if err != nil {
		return nil, err
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.WarnLevel)
	if g.Verbose {
		log.SetLevel(logrus.InfoLevel)
	}

	s := store.NewKVStore(records)
	return &app{
		store:     s,
		publisher: publish.NewManager(s, log),
		tally:     tally.NewEngine(s, log),
		close:     records.Close,
	}, nil
}

var CLI struct {
	globalCmd

	Sets     setsCmd     `cmd:"" help:"List weekly sets."`
	Publish  publishCmd  `cmd:"" help:"Write or publish a weekly set."`
	Active   activeCmd   `cmd:"" help:"Show the set the mobile app currently sees."`
	Stats    statsCmd    `cmd:"" help:"Show or export vote tallies for a weekly set."`
	Generate generateCmd `cmd:"" help:"Generate random matches for a week."`
	Reset    resetCmd    `cmd:"" help:"Delete matches, weekly sets and tallies, or everything."`
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	ctx := kong.Parse(&CLI,
		kong.Name("wotcctl"),
		kong.Description("Operator tool for the WOTC prediction store."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&CLI.globalCmd)
	ctx.FatalIfErrorf(err)
}
