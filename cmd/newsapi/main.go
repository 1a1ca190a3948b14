package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/clicknbit/newsapi/pkg/cache"
	"github.com/clicknbit/newsapi/pkg/config"
	"github.com/clicknbit/newsapi/pkg/feed"
	"github.com/clicknbit/newsapi/pkg/repository"
	"github.com/clicknbit/newsapi/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"CONFIG" default:"newsapi.yml" description:"config file path"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	setupLog(opts.Debug, opts.NoColor)

	log.Printf("[INFO] starting newsapi version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	if err := run(ctx, opts); err != nil {
		log.Printf("[ERROR] %v", err)
		cancel()
		os.Exit(1)
	}

	cancel()
	log.Print("[INFO] shutdown complete")
}

func run(ctx context.Context, opts Opts) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	repos, err := repository.NewRepositories(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer func() {
		if err := repos.Close(); err != nil {
			log.Printf("[WARN] database close failed: %v", err)
		}
	}()

	cacheStore := makeCache(ctx, cfg)
	defer cacheStore.Close()

	feedSvc := feed.NewService(
		repos.Content, repos.Engagement, repos.Override, repos.Setting, repos.Preference,
		cacheStore, feed.Params{
			MaxLookbackDays:         cfg.Feed.MaxLookbackDays,
			TopListSize:             cfg.Feed.TopListSize,
			AdPoolSize:              cfg.Feed.AdPoolSize,
			DefaultAdFrequency:      cfg.Feed.DefaultAdFrequency,
			DefaultAstonAdFrequency: cfg.Feed.DefaultAstonAdFrequency,
			TopListTTL:              cfg.Feed.TopListTTL,
			FeedTTL:                 cfg.Feed.FeedTTL,
			BannerTTL:               cfg.Feed.BannerTTL,
			DetailTTL:               cfg.Feed.DetailTTL,
			SettingsTTL:             cfg.Feed.SettingsTTL,
		})

	srv := server.New(server.Deps{
		Config:      cfg,
		Feed:        feedSvc,
		Content:     repos.Content,
		Engagement:  repos.Engagement,
		Preferences: repos.Preference,
		Overrides:   repos.Override,
		Settings:    repos.Setting,
		Secret:      cfg.Auth.Secret,
		Version:     revision,
		Debug:       opts.Debug,
	})

	return srv.Run(ctx)
}

// makeCache builds the cache store: Valkey behind a fail-open wrapper when
// enabled, a no-op store otherwise. A dead Valkey at startup degrades to the
// no-op store rather than refusing to start.
func makeCache(ctx context.Context, cfg *config.Config) cache.Store {
	if !cfg.Cache.Enabled {
		log.Print("[INFO] cache disabled, serving without it")
		return cache.NewNop()
	}

	valkey, err := cache.NewValkey(ctx, cache.Config{
		Address:  cfg.Cache.Address,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	})
	if err != nil {
		log.Printf("[WARN] valkey unavailable, serving without cache: %v", err)
		return cache.NewNop()
	}

	log.Printf("[INFO] valkey cache connected at %s", cfg.Cache.Address)
	return cache.NewFailOpen(valkey)
}

func setupLog(dbg, noColor bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	if !noColor {
		colorizer := lgr.Mapper{
			ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
			WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
			InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
			DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
			CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
			TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
		}
		logOpts = append(logOpts, lgr.Map(colorizer))
	}

	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
