package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pseudocoder/diffcore/internal/config"
	"github.com/pseudocoder/diffcore/internal/diff"
)

// ParseConfig holds the flags of "diffcore parse".
type ParseConfig struct {
	Config           string
	Store            string
	JSON             bool
	Save             bool
	Source           string
	DetectBinary     bool
	Encoding         string
	IgnoreWhitespace bool
	MaxBytes         int
}

func runParse(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("parse", flag.ContinueOnError)
	fs.SetOutput(stderr)

	cfg := &ParseConfig{}
	fs.StringVar(&cfg.Config, "config", "", "Path to config file (default: ~/.diffcore/config.toml)")
	fs.StringVar(&cfg.Store, "store", "", "Path to diff store (default: ~/.diffcore/diffcore.db)")
	fs.BoolVar(&cfg.JSON, "json", false, "Output change dictionaries as JSON")
	fs.BoolVar(&cfg.Save, "save", false, "Store the parsed diff")
	fs.StringVar(&cfg.Source, "source", "", "Label for the stored diff (default: file name or stdin)")
	fs.BoolVar(&cfg.DetectBinary, "detect-binary", false, "Treat hunks that are not valid UTF-8 as binary")
	fs.StringVar(&cfg.Encoding, "encoding", "", "Encoding to try before treating a hunk as binary (requires --detect-binary)")
	fs.BoolVar(&cfg.IgnoreWhitespace, "ignore-whitespace", false, "Drop hunks that only change trailing whitespace")
	fs.IntVar(&cfg.MaxBytes, "max-bytes", 0, "Reject diffs larger than this many bytes (default: 16MB)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: diffcore parse [options] [file|-]\n\nParse a diff from a file or stdin.\n\nOptions:\n")
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

	explicit := explicitFlags(fs)
	settings, err := loadSettings(cfg.Config, func(c *config.Config) {
		if cfg.Store != "" {
			c.Store = cfg.Store
		}
		if explicit["detect-binary"] {
			c.DetectBinary = cfg.DetectBinary
		}
		if cfg.Encoding != "" {
			c.TryEncoding = cfg.Encoding
		}
		if explicit["ignore-whitespace"] {
			c.IgnoreWhitespace = cfg.IgnoreWhitespace
		}
		if cfg.MaxBytes != 0 {
			c.MaxDiffBytes = cfg.MaxBytes
		}
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	name := fs.Arg(0)
	raw, err := readInput(name, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	cs, err := diff.NewParser(settings.ParserOptions()...).Parse(raw)
	if err != nil {
		printError(stderr, err)
		return 1
	}

	id := ""
	if cfg.Save {
		store, err := openStore(settings)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer store.Close()

		source := cfg.Source
		if source == "" {
			source = name
		}
		if source == "" || source == "-" {
			source = "stdin"
		}
		rec, err := store.SaveDiff(source, cs)
		if err != nil {
			fmt.Fprintf(stderr, "Error: failed to save diff: %v\n", err)
			return 1
		}
		id = rec.ID
	}

	if cfg.JSON {
		if err := writeChangeSetJSON(stdout, id, cs); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	printChangeSet(stdout, cs)
	if id != "" {
		fmt.Fprintf(stdout, "Stored as %s\n", id)
	}
	return 0
}

// readInput reads the named file, or stdin when name is empty or "-".
func readInput(name string, stdin io.Reader) (string, error) {
	if name == "" || name == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("failed to read diff: %w", err)
	}
	return string(data), nil
}
