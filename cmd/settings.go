package main

// settings.go holds helpers shared by every command: config loading with
// CLI overrides, store opening and change set printing.

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pseudocoder/diffcore/internal/config"
	"github.com/pseudocoder/diffcore/internal/diff"
	"github.com/pseudocoder/diffcore/internal/storage"
)

// explicitFlags reports which flags were set on the command line, so that
// "--flag=false" can override a true value from the config file.
func explicitFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

// loadSettings loads the config file at path, lets override apply CLI
// flags on top, then fills defaults and validates the result.
func loadSettings(path string, override func(cfg *config.Config)) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if override != nil {
		override(cfg)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// storePath returns the configured store path or the default one.
func storePath(cfg *config.Config) (string, error) {
	if cfg.Store != "" {
		return cfg.Store, nil
	}
	return config.DefaultStorePath()
}

// openStore opens the diff store, creating its directory if needed.
func openStore(cfg *config.Config) (*storage.SQLiteStore, error) {
	path, err := storePath(cfg)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	store, err := storage.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return store, nil
}

// storeExists reports whether the store file is present, so read-only
// commands do not create an empty database.
func storeExists(cfg *config.Config) (bool, error) {
	path, err := storePath(cfg)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

// changeSetJSON is the --json output of parse, show and watch.
type changeSetJSON struct {
	ID      string            `json:"id,omitempty"`
	Changes []diff.Dictionary `json:"changes"`
	Stats   *diff.Stats       `json:"stats"`
	Large   bool              `json:"large"`
}

func writeChangeSetJSON(w io.Writer, id string, cs *diff.ChangeSet) error {
	stats := diff.CalculateStats(cs)
	out := changeSetJSON{
		ID:      id,
		Changes: []diff.Dictionary{},
		Stats:   stats,
		Large:   diff.IsLargeDiff(stats),
	}
	if cs != nil {
		out.Changes = cs.ToDictionaries()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// printChangeSet writes one line per change followed by a stats summary.
func printChangeSet(w io.Writer, cs *diff.ChangeSet) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, c := range cs.Changes() {
		if c.Type() == diff.ChangeMessage {
			subject, _, _ := strings.Cut(strings.TrimSpace(c.Message()), "\n")
			hash := c.CommitHash()
			if len(hash) > 12 {
				hash = hash[:12]
			}
			fmt.Fprintf(tw, "commit\t%s\t%s\n", hash, subject)
			continue
		}

		path := c.CurrentPath()
		if path == "" {
			path = c.OldPath()
		}
		switch c.Type() {
		case diff.ChangeMoveHere, diff.ChangeCopyHere:
			if c.OldPath() != "" {
				path = c.OldPath() + " -> " + path
			}
		}

		added, deleted := 0, 0
		for _, h := range c.Hunks() {
			added += h.AddLines()
			deleted += h.DelLines()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t+%d -%d\n",
			c.Type().SummaryCharacter(), c.FileType().ShortName(), path, added, deleted)
	}
	tw.Flush()

	s := diff.CalculateStats(cs)
	fmt.Fprintf(w, "%d file(s), %d hunk(s), +%d -%d", s.Files, s.Hunks, s.AddedLines, s.DeletedLines)
	if s.BinaryFiles > 0 {
		fmt.Fprintf(w, ", %d binary", s.BinaryFiles)
	}
	fmt.Fprintln(w)
	if diff.IsLargeDiff(s) {
		fmt.Fprintln(w, "Warning: large diff")
	}
}

// printError writes err to w. Parse errors also get the failing line's
// context so the user can see what the parser choked on.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	var pe *diff.ParseError
	if errors.As(err, &pe) && pe.Context != "" {
		fmt.Fprintf(w, "\n%s\n", strings.TrimRight(pe.Context, "\n"))
	}
}

// formatDuration formats a duration in a human-readable way.
// Examples: "just now", "5m ago", "2h ago", "3d ago"
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "in the future"
	}
	if d < time.Minute {
		return "just now"
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(d.Hours()/24))
}

// encodeJSON writes v as indented JSON and returns the exit code.
func encodeJSON(stdout, stderr io.Writer, v any) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
