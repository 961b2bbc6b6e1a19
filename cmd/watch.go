package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pseudocoder/diffcore/internal/config"
	"github.com/pseudocoder/diffcore/internal/diff"
	"github.com/pseudocoder/diffcore/internal/watch"
)

// WatchConfig holds the flags of "diffcore watch".
type WatchConfig struct {
	Config string
	PollMs int
	JSON   bool
	Once   bool
}

func runWatch(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)

	cfg := &WatchConfig{}
	fs.StringVar(&cfg.Config, "config", "", "Path to config file (default: ~/.diffcore/config.toml)")
	fs.IntVar(&cfg.PollMs, "poll-ms", 0, "Polling interval in ms (default: 1000)")
	fs.BoolVar(&cfg.JSON, "json", false, "Print each change set as JSON")
	fs.BoolVar(&cfg.Once, "once", false, "Poll once, print the result and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: diffcore watch [options] [file]\n\nPoll a diff file and print each new version of it.\nThe file defaults to watch_file from the config.\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	if fs.NArg() > 1 {
		fs.Usage()
		return 1
	}

	settings, err := loadSettings(cfg.Config, func(c *config.Config) {
		if fs.NArg() == 1 {
			c.WatchFile = fs.Arg(0)
		}
		if cfg.PollMs != 0 {
			c.WatchPollMs = cfg.PollMs
		}
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if settings.WatchFile == "" {
		fmt.Fprintln(stderr, "Error: no file to watch (pass one or set watch_file)")
		return 1
	}

	// Output happens on the poll goroutine; mu keeps reports whole.
	var mu sync.Mutex
	report := func(cs *diff.ChangeSet) {
		mu.Lock()
		defer mu.Unlock()
		if cfg.JSON {
			if err := writeChangeSetJSON(stdout, "", cs); err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
			}
			return
		}
		fmt.Fprintf(stdout, "[%s] ", time.Now().Format(time.TimeOnly))
		if cs == nil || cs.Len() == 0 {
			fmt.Fprintln(stdout, "no changes")
			return
		}
		fmt.Fprintln(stdout, "diff changed")
		printChangeSet(stdout, cs)
	}

	wcfg := watchConfig(settings, func(cs *diff.ChangeSet, _ string) { report(cs) })
	wcfg.OnError = func(err error) {
		mu.Lock()
		defer mu.Unlock()
		printError(stderr, err)
	}
	w := watch.New(wcfg)

	if cfg.Once {
		cs, _, err := w.PollOnce()
		if err != nil {
			printError(stderr, err)
			return 1
		}
		report(cs)
		return 0
	}

	w.Start()
	defer w.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	<-sigCh
	return 0
}
