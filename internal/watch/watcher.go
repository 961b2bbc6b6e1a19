// Package watch polls a diff or patch file on an interval and reports every
// new version of its content as a parsed ChangeSet. Whatever writes the file
// (an editor hook, a CI step) owns talking to the VCS.
package watch

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pseudocoder/diffcore/internal/diff"
	apperrors "github.com/pseudocoder/diffcore/internal/errors"
)

// DefaultInterval is used when Config.Interval is zero or negative.
const DefaultInterval = time.Second

// Config holds configuration for the watcher.
type Config struct {
	// Path is the diff file to poll. A missing file counts as no changes.
	Path string

	// Interval is how often to read the file.
	Interval time.Duration

	// Parser converts file content. Defaults to diff.NewParser().
	Parser *diff.Parser

	// OnChange is called whenever the file content differs from the
	// previous poll. cs is nil when the file is empty or missing.
	OnChange func(cs *diff.ChangeSet, raw string)

	// OnError is called when reading or parsing fails.
	// If nil, errors are silently ignored.
	OnError func(err error)
}

// Watcher reads the file periodically and emits parsed results.
// It tracks the previous content hash to avoid duplicate notifications.
type Watcher struct {
	config   Config        // Immutable config for polling behavior.
	stopCh   chan struct{} // Signals the polling loop to stop.
	doneCh   chan struct{} // Closes when the polling loop exits.
	mu       sync.Mutex    // Guards lifecycle state and lastHash updates.
	lastHash string        // Tracks last content hash to suppress duplicates.
	polled   bool          // True once any poll has recorded a hash.
	running  bool          // True while a pollLoop goroutine is active.
	stopping bool          // True while Stop is waiting for pollLoop to exit.
}

// New creates a watcher with the given configuration.
func New(config Config) *Watcher {
	if config.Parser == nil {
		config.Parser = diff.NewParser()
	}
	return &Watcher{
		config: config,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins polling in a goroutine. It is safe to call after Stop; the
// watcher restarts with fresh channels.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.running || w.stopping {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.pollLoop()
}

// Stop halts the polling loop and waits for it to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running || w.stopping {
		w.mu.Unlock()
		return
	}
	w.stopping = true
	stopCh := w.stopCh
	doneCh := w.doneCh
	w.mu.Unlock()

	close(stopCh)
	<-doneCh

	w.mu.Lock()
	w.running = false
	w.stopping = false
	w.mu.Unlock()
}

// Done returns a channel that closes when the watcher has stopped.
// The channel is recreated on each Start, so call Done after Start.
func (w *Watcher) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.doneCh
}

func (w *Watcher) pollLoop() {
	w.mu.Lock()
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()
	defer close(doneCh)

	w.poll()

	interval := w.config.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *Watcher) poll() {
	content, err := w.read()
	if err != nil {
		w.reportError(err)
		return
	}

	if !w.swapHash(hashContent(content)) {
		return
	}

	cs, err := w.parse(content)
	if err != nil {
		w.reportError(err)
		return
	}
	if w.config.OnChange != nil {
		w.config.OnChange(cs, content)
	}
}

// swapHash records the hash and reports whether it differs from the last one.
func (w *Watcher) swapHash(hash string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	changed := !w.polled || hash != w.lastHash
	w.lastHash = hash
	w.polled = true
	return changed
}

func (w *Watcher) reportError(err error) {
	if w.config.OnError != nil {
		w.config.OnError(err)
	}
}

// parse treats empty content as "no changes" rather than an error.
func (w *Watcher) parse(content string) (*diff.ChangeSet, error) {
	cs, err := w.config.Parser.Parse(content)
	if apperrors.IsCode(err, apperrors.CodeDiffEmpty) {
		return nil, nil
	}
	return cs, err
}

// PollOnce reads the file a single time and returns the parsed result and
// raw content. It also resets duplicate detection to this state.
func (w *Watcher) PollOnce() (*diff.ChangeSet, string, error) {
	content, err := w.read()
	if err != nil {
		return nil, "", err
	}
	w.swapHash(hashContent(content))

	cs, err := w.parse(content)
	if err != nil {
		return nil, content, err
	}
	return cs, content, nil
}

func (w *Watcher) read() (string, error) {
	if w.config.Path == "" {
		return "", errors.New("no file to watch")
	}
	data, err := os.ReadFile(w.config.Path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read diff file: %w", err)
	}
	return string(data), nil
}

func hashContent(content string) string {
	if content == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}
