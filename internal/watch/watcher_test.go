package watch

import (
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/pseudocoder/diffcore/internal/diff"
)

const sampleDiff = `diff --git a/main.go b/main.go
index 1111111..2222222 100644
--- a/main.go
+++ b/main.go
@@ -1 +1 @@
-package old
+package main
`

// writeDiff writes content to the watched file.
func writeDiff(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestPollOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "current.diff")
	writeDiff(t, path, sampleDiff)

	w := New(Config{Path: path})
	cs, raw, err := w.PollOnce()
	if err != nil {
		t.Fatalf("PollOnce() error: %v", err)
	}
	if raw != sampleDiff {
		t.Errorf("raw = %q, want %q", raw, sampleDiff)
	}
	c, ok := cs.Get("main.go")
	if !ok {
		t.Fatal("change for main.go not found")
	}
	if c.Type() != diff.ChangeChange {
		t.Errorf("Type() = %v, want %v", c.Type(), diff.ChangeChange)
	}
}

func TestPollOnce_EmptyOrMissing(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.diff")
	writeDiff(t, empty, "")

	for _, path := range []string{empty, filepath.Join(dir, "missing.diff")} {
		w := New(Config{Path: path})
		cs, raw, err := w.PollOnce()
		if err != nil {
			t.Fatalf("PollOnce(%s) error: %v", path, err)
		}
		if cs != nil || raw != "" {
			t.Errorf("PollOnce(%s) = %v, %q; want nil, empty", path, cs, raw)
		}
	}
}

func TestPollOnce_ReadFails(t *testing.T) {
	// Reading a directory fails with something other than "not exist".
	w := New(Config{Path: t.TempDir()})
	if _, _, err := w.PollOnce(); err == nil {
		t.Error("PollOnce() expected error when the path is a directory")
	}

	if _, _, err := New(Config{}).PollOnce(); err == nil {
		t.Error("PollOnce() expected error without a path")
	}
}

func TestPollOnce_ParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "current.diff")
	writeDiff(t, path, "--- a\n+++ b\n@@ -1,5 +1,5 @@\n x\n")

	w := New(Config{Path: path})
	_, raw, err := w.PollOnce()
	if err == nil {
		t.Fatal("PollOnce() expected parse error")
	}
	if raw == "" {
		t.Error("raw output should be returned alongside the parse error")
	}
}

// TestWatcher_NotifiesOnlyOnChange verifies duplicate output is suppressed
// and that clearing the diff is reported as a nil ChangeSet.
func TestWatcher_NotifiesOnlyOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "current.diff")
	writeDiff(t, path, sampleDiff)

	var mu sync.Mutex
	var events []string
	notify := make(chan struct{}, 16)

	w := New(Config{
		Path:     path,
		Interval: 10 * time.Millisecond,
		OnChange: func(cs *diff.ChangeSet, raw string) {
			mu.Lock()
			if cs == nil {
				events = append(events, "clean")
			} else {
				events = append(events, cs.Keys()[0])
			}
			mu.Unlock()
			notify <- struct{}{}
		},
	})

	w.Start()
	defer w.Stop()

	waitFor(t, notify)
	// Several ticks with identical output must not notify again.
	time.Sleep(50 * time.Millisecond)

	writeDiff(t, path, "")
	waitFor(t, notify)

	w.Stop()

	mu.Lock()
	defer mu.Unlock()
	if want := []string{"main.go", "clean"}; !reflect.DeepEqual(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestWatcher_ReportsErrors(t *testing.T) {
	errs := make(chan error, 4)
	w := New(Config{
		Path:     t.TempDir(),
		Interval: time.Hour,
		OnError:  func(err error) { errs <- err },
	})

	w.Start()
	defer w.Stop()

	select {
	case err := <-errs:
		if err == nil {
			t.Error("OnError called with nil error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for OnError")
	}
}

func TestWatcher_StopIsIdempotentAndRestartable(t *testing.T) {
	w := New(Config{Path: filepath.Join(t.TempDir(), "none.diff"), Interval: time.Hour})

	w.Stop()
	w.Start()
	done := w.Done()
	w.Stop()
	w.Stop()

	select {
	case <-done:
	default:
		t.Error("Done() channel not closed after Stop")
	}

	w.Start()
	w.Stop()
}

func TestNew_DefaultParser(t *testing.T) {
	w := New(Config{})
	if w.config.Parser == nil {
		t.Error("Parser should default to a new parser")
	}
}

func TestPollOnce_UsesParserOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "current.diff")
	writeDiff(t, path, sampleDiff)

	w := New(Config{Path: path, Parser: diff.NewParser(diff.WithMaxBytes(8))})
	if _, _, err := w.PollOnce(); err == nil {
		t.Error("PollOnce() expected the parser size limit to apply")
	}
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watcher notification")
	}
}
