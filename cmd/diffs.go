package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/pseudocoder/diffcore/internal/config"
	"github.com/pseudocoder/diffcore/internal/storage"
)

// StoreConfig holds the flags shared by the stored diff commands.
type StoreConfig struct {
	Config string
	Store  string
}

func (c *StoreConfig) register(fs *flag.FlagSet) {
	fs.StringVar(&c.Config, "config", "", "Path to config file (default: ~/.diffcore/config.toml)")
	fs.StringVar(&c.Store, "store", "", "Path to diff store (default: ~/.diffcore/diffcore.db)")
}

func (c *StoreConfig) load() (*config.Config, error) {
	return loadSettings(c.Config, func(cfg *config.Config) {
		if c.Store != "" {
			cfg.Store = c.Store
		}
	})
}

func parseStoreFlags(name, usage string, args []string, stderr io.Writer, extra func(fs *flag.FlagSet)) (*StoreConfig, *flag.FlagSet, int, bool) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	cfg := &StoreConfig{}
	cfg.register(fs)
	if extra != nil {
		extra(fs)
	}

	fs.Usage = func() {
		fmt.Fprintf(stderr, "%s\n\nOptions:\n", usage)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, nil, 0, false
		}
		return nil, nil, 1, false
	}
	return cfg, fs, 0, true
}

func runList(args []string, stdout, stderr io.Writer) int {
	var limit int
	var jsonOutput bool
	cfg, _, code, ok := parseStoreFlags("list", "Usage: diffcore list [options]\n\nList stored diffs, newest first.", args, stderr, func(fs *flag.FlagSet) {
		fs.IntVar(&limit, "limit", 50, "Maximum number of diffs to list")
		fs.BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	})
	if !ok {
		return code
	}
	if limit < 0 {
		fmt.Fprintln(stderr, "Error: --limit must not be negative")
		return 1
	}

	settings, err := cfg.load()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	exists, err := storeExists(settings)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if !exists {
		fmt.Fprintln(stdout, "No stored diffs found.")
		return 0
	}

	store, err := openStore(settings)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()

	records, err := store.ListDiffs(limit)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to list diffs: %v\n", err)
		return 1
	}

	if jsonOutput {
		return encodeJSON(stdout, stderr, records)
	}

	if len(records) == 0 {
		fmt.Fprintln(stdout, "No stored diffs found.")
		return 0
	}

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tCREATED\tFILES\tCHANGES")
	fmt.Fprintln(w, "--\t------\t-------\t-----\t-------")

	now := time.Now()
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t+%d -%d\n",
			rec.ID,
			rec.Source,
			formatDuration(now.Sub(rec.CreatedAt)),
			rec.Files,
			rec.AddedLines,
			rec.DeletedLines,
		)
	}
	w.Flush()

	return 0
}

func runShow(args []string, stdout, stderr io.Writer) int {
	var jsonOutput bool
	cfg, fs, code, ok := parseStoreFlags("show", "Usage: diffcore show [options] <id>\n\nShow the changes of a stored diff.", args, stderr, func(fs *flag.FlagSet) {
		fs.BoolVar(&jsonOutput, "json", false, "Output change dictionaries as JSON")
	})
	if !ok {
		return code
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 1
	}
	id := fs.Arg(0)

	store, code := openExistingStore(cfg, id, stderr)
	if store == nil {
		return code
	}
	defer store.Close()

	rec, cs, err := store.GetDiff(id)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", describeStoreError(id, err))
		return 1
	}

	if jsonOutput {
		if err := writeChangeSetJSON(stdout, rec.ID, cs); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	fmt.Fprintf(stdout, "Diff %s from %s, stored %s\n\n",
		rec.ID, rec.Source, rec.CreatedAt.Local().Format(time.DateTime))
	printChangeSet(stdout, cs)
	return 0
}

func runDelete(args []string, stdout, stderr io.Writer) int {
	cfg, fs, code, ok := parseStoreFlags("delete", "Usage: diffcore delete [options] <id>\n\nDelete a stored diff.", args, stderr, nil)
	if !ok {
		return code
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 1
	}
	id := fs.Arg(0)

	store, code := openExistingStore(cfg, id, stderr)
	if store == nil {
		return code
	}
	defer store.Close()

	if err := store.DeleteDiff(id); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", describeStoreError(id, err))
		return 1
	}

	fmt.Fprintf(stdout, "Deleted diff %s\n", id)
	return 0
}

// openExistingStore opens the store for a command that needs a diff to
// exist. A missing database file is reported as a missing diff.
func openExistingStore(cfg *StoreConfig, id string, stderr io.Writer) (*storage.SQLiteStore, int) {
	settings, err := cfg.load()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return nil, 1
	}

	exists, err := storeExists(settings)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return nil, 1
	}
	if !exists {
		fmt.Fprintf(stderr, "Error: %v\n", describeStoreError(id, storage.ErrDiffNotFound))
		return nil, 1
	}

	store, err := openStore(settings)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return nil, 1
	}
	return store, 0
}

func describeStoreError(id string, err error) error {
	if errors.Is(err, storage.ErrDiffNotFound) {
		return fmt.Errorf("diff not found: %s", id)
	}
	return err
}
