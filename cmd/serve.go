package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pseudocoder/diffcore/internal/config"
	"github.com/pseudocoder/diffcore/internal/diff"
	"github.com/pseudocoder/diffcore/internal/server"
	"github.com/pseudocoder/diffcore/internal/storage"
	"github.com/pseudocoder/diffcore/internal/watch"
)

// metricsRetention is how long parse events are kept by "serve".
const metricsRetention = 7 * 24 * time.Hour

// ServeConfig holds the flags of "diffcore serve".
type ServeConfig struct {
	Config  string
	Addr    string
	Store   string
	NoStore bool
	Watch   string
	PollMs  int
}

func runServe(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)

	cfg := &ServeConfig{}
	fs.StringVar(&cfg.Config, "config", "", "Path to config file (default: ~/.diffcore/config.toml)")
	fs.StringVar(&cfg.Addr, "addr", "", "Listen address (default: 127.0.0.1:7171)")
	fs.StringVar(&cfg.Store, "store", "", "Path to diff store (default: ~/.diffcore/diffcore.db)")
	fs.BoolVar(&cfg.NoStore, "no-store", false, "Run without a diff store")
	fs.StringVar(&cfg.Watch, "watch", "", "Diff file to poll; changes are broadcast to WebSocket clients as diff.updated")
	fs.IntVar(&cfg.PollMs, "poll-ms", 0, "Watch polling interval in ms (default: 1000)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: diffcore serve [options]\n\nStart the HTTP/WebSocket parse server.\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	settings, err := loadSettings(cfg.Config, func(c *config.Config) {
		if cfg.Addr != "" {
			c.Addr = cfg.Addr
		}
		if cfg.Store != "" {
			c.Store = cfg.Store
		}
		if cfg.Watch != "" {
			c.WatchFile = cfg.Watch
		}
		if cfg.PollMs != 0 {
			c.WatchPollMs = cfg.PollMs
		}
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	var store server.Store
	var sqlStore *storage.SQLiteStore
	if !cfg.NoStore {
		sqlStore, err = openStore(settings)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer sqlStore.Close()
		store = sqlStore

		if n, err := sqlStore.CleanupMetrics(metricsRetention); err != nil {
			log.Printf("serve: metrics cleanup failed: %v", err)
		} else if n > 0 {
			log.Printf("serve: removed %d old parse events", n)
		}
	}

	srv := server.New(server.Options{
		Addr:          settings.Addr,
		ParserOptions: settings.ParserOptions(),
		RateLimit:     settings.RateLimit,
		RateBurst:     settings.RateBurst,
		MaxBodyBytes:  int64(settings.MaxDiffBytes),
		Debug:         settings.LogLevel == "debug",
	}, store)

	if err := <-srv.StartAsync(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer srv.Stop()

	fmt.Fprintf(stdout, "Listening on http://%s\n", settings.Addr)
	fmt.Fprintf(stdout, "Connect to ws://%s/ws to parse diffs over WebSocket.\n", settings.Addr)

	if settings.WatchFile != "" {
		w := watch.New(watchConfig(settings, func(cs *diff.ChangeSet, raw string) {
			srv.BroadcastChangeSet(cs, raw)
		}))
		w.Start()
		defer w.Stop()
		srv.SetWatching(true)
		fmt.Fprintf(stdout, "Watching %s\n", settings.WatchFile)
	}

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	sig := <-sigCh
	fmt.Fprintf(stdout, "\nReceived signal %v, stopping...\n", sig)
	return 0
}

// watchConfig builds a watcher config from settings. Errors are logged and
// polling continues.
func watchConfig(settings *config.Config, onChange func(cs *diff.ChangeSet, raw string)) watch.Config {
	return watch.Config{
		Path:     settings.WatchFile,
		Interval: time.Duration(settings.WatchPollMs) * time.Millisecond,
		Parser:   diff.NewParser(settings.ParserOptions()...),
		OnChange: onChange,
		OnError: func(err error) {
			log.Printf("watch: %v", err)
		},
	}
}
