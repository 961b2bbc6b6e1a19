// Package diff parses textual diffs produced by git, Subversion, Mercurial
// and plain diff(1) into a VCS-agnostic model of file changes.
//
// Parse returns a ChangeSet: an insertion-ordered collection of Change
// values, each holding the paths, type, properties, metadata and Hunks of
// one file-level change.
package diff

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Hunk is one contiguous block of changed lines within a file, bounded by an
// "@@ -a,b +c,d @@" header. Hunks are built by the parser and are read-only
// afterwards.
type Hunk struct {
	oldOffset int
	oldLength int
	newOffset int
	newLength int

	// corpus keeps the raw body lines, prefixes and newlines included.
	corpus string

	addLines int
	delLines int

	isMissingOldNewline bool
	isMissingNewNewline bool
}

// OldOffset is the 1-based first line in the old file (0 if the file did
// not exist).
func (h *Hunk) OldOffset() int { return h.oldOffset }

// OldLength is the number of old-side lines the hunk covers.
func (h *Hunk) OldLength() int { return h.oldLength }

// NewOffset is the 1-based first line in the new file.
func (h *Hunk) NewOffset() int { return h.newOffset }

// NewLength is the number of new-side lines the hunk covers.
func (h *Hunk) NewLength() int { return h.newLength }

// Corpus returns the raw hunk body.
func (h *Hunk) Corpus() string { return h.corpus }

// AddLines is the number of "+" lines in the body.
func (h *Hunk) AddLines() int { return h.addLines }

// DelLines is the number of "-" lines in the body.
func (h *Hunk) DelLines() int { return h.delLines }

// IsMissingOldNewline reports whether the old side ended without a newline.
func (h *Hunk) IsMissingOldNewline() bool { return h.isMissingOldNewline }

// IsMissingNewNewline reports whether the new side ended without a newline.
func (h *Hunk) IsMissingNewNewline() bool { return h.isMissingNewNewline }

// Header renders the "@@ -a,b +c,d @@" line for the hunk.
func (h *Hunk) Header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.oldOffset, h.oldLength, h.newOffset, h.newLength)
}

// ID returns a short content hash of the hunk, stable across parses of the
// same text. Uses the first 12 hex chars of SHA256.
func (h *Hunk) ID() string {
	data := fmt.Sprintf("%d:%d:%d:%d:%s", h.oldOffset, h.oldLength, h.newOffset, h.newLength, h.corpus)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])[:12]
}

// Lines splits the corpus into lines without their trailing newlines.
func (h *Hunk) Lines() []string {
	body := strings.TrimSuffix(h.corpus, "\n")
	if body == "" {
		return nil
	}
	return strings.Split(body, "\n")
}

// firstChangedLine returns the new-side line number of the first added or
// removed line, or 0 if the hunk has none.
func (h *Hunk) firstChangedLine() int {
	line := h.newOffset
	for _, l := range h.Lines() {
		if l == "" {
			line++
			continue
		}
		switch l[0] {
		case '+', '-':
			return line
		case ' ':
			line++
		}
	}
	return 0
}

// isWhitespaceOnly reports whether the removed and added lines of the hunk
// are identical once trailing whitespace is ignored.
func (h *Hunk) isWhitespaceOnly() bool {
	var removed, added []string
	for _, l := range h.Lines() {
		if l == "" {
			continue
		}
		switch l[0] {
		case '-':
			removed = append(removed, strings.TrimRight(l[1:], " \t\r"))
		case '+':
			added = append(added, strings.TrimRight(l[1:], " \t\r"))
		}
	}
	if len(removed) != len(added) {
		return false
	}
	for i := range removed {
		if removed[i] != added[i] {
			return false
		}
	}
	return true
}
