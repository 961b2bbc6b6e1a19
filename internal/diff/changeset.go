package diff

import "fmt"

// ChangeSet is the result of parsing a diff: Changes in the order they were
// first seen, addressable by key. The key is the current path, falling back
// to the old path for pure deletions, "commit:<hash>" for commit messages,
// and "message:<n>" for messages without a hash.
type ChangeSet struct {
	changes []*Change

	// byPath indexes changes created for a known path, so a later header for
	// the same path (or a move/copy source) reuses the existing Change.
	byPath map[string]*Change
}

func newChangeSet() *ChangeSet {
	return &ChangeSet{byPath: make(map[string]*Change)}
}

// buildChange returns the change registered for path, creating it if
// needed. An empty path always creates a new, unindexed change.
func (cs *ChangeSet) buildChange(path string) *Change {
	if path != "" {
		if c, ok := cs.byPath[path]; ok {
			return c
		}
	}

	c := newChange()
	c.setCurrentPath(path)
	cs.changes = append(cs.changes, c)
	if path != "" {
		cs.byPath[path] = c
	}
	return c
}

// index registers c under its current path unless another change already
// owns that path. Used when a header renames a change after creation.
func (cs *ChangeSet) index(c *Change) {
	if c.currentPath == "" {
		return
	}
	if _, ok := cs.byPath[c.currentPath]; !ok {
		cs.byPath[c.currentPath] = c
	}
}

// Len returns the number of changes.
func (cs *ChangeSet) Len() int { return len(cs.changes) }

// Changes returns the changes in insertion order.
func (cs *ChangeSet) Changes() []*Change {
	return append([]*Change(nil), cs.changes...)
}

// Keys returns the key of every change in insertion order.
func (cs *ChangeSet) Keys() []string {
	keys := make([]string, 0, len(cs.changes))
	messages := 0
	for _, c := range cs.changes {
		keys = append(keys, changeKey(c, &messages))
	}
	return keys
}

// Get returns the change stored under key.
func (cs *ChangeSet) Get(key string) (*Change, bool) {
	messages := 0
	for _, c := range cs.changes {
		if changeKey(c, &messages) == key {
			return c, true
		}
	}
	return nil, false
}

// Paths returns the set of current and old paths touched by the diff,
// excluding commit messages.
func (cs *ChangeSet) Paths() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range cs.changes {
		for _, p := range []string{c.currentPath, c.oldPath} {
			if p != "" && !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}

func changeKey(c *Change, messages *int) string {
	switch {
	case c.currentPath != "":
		return c.currentPath
	case c.oldPath != "":
		return c.oldPath
	case c.commitHash != "":
		return "commit:" + c.commitHash
	}
	key := fmt.Sprintf("message:%d", *messages)
	*messages++
	return key
}
