package diff

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const devNull = "/dev/null"

// hunkTarget is one parsed "--- path" or "+++ path" line.
type hunkTarget struct {
	path string

	// Markers svn writes after the path for files that do not exist on that
	// side: "(revision 0)" before 1.7, "(nonexistent)" after.
	revisionZero bool
	nonexistent  bool
}

func (t hunkTarget) absent() bool {
	return t.path == devNull || t.nonexistent
}

var (
	targetSuffixRegex = regexp.MustCompile(`^(.*?)\s*(\([^()]*\))$`)
	dateSuffixRegex   = regexp.MustCompile(`\s+\d{4}-\d{2}-\d{2}[ \d:.+-]*$`)
)

// cleanUnifiedPath drops the timestamp diff(1) appends to file names.
func cleanUnifiedPath(path string) string {
	if i := strings.IndexByte(path, '\t'); i >= 0 {
		path = path[:i]
	}
	path = dateSuffixRegex.ReplaceAllString(path, "")
	return strings.TrimRight(path, " ")
}

// parseTargets reads the "---" and "+++" lines of a block.
func (s *parseState) parseTargets(d dialect) (oldTarget, newTarget hunkTarget, err error) {
	if oldTarget, err = s.parseHunkTarget(d, "--- "); err != nil {
		return
	}
	newTarget, err = s.parseHunkTarget(d, "+++ ")
	return
}

func (s *parseState) parseHunkTarget(d dialect, prefix string) (hunkTarget, error) {
	line := s.trimmed()
	if !strings.HasPrefix(line, prefix) {
		return hunkTarget{}, s.fail("Expected hunk target '%spath/to/file.ext (revision N)'.", prefix)
	}
	rest := line[len(prefix):]

	var remainder string
	if i := strings.IndexByte(rest, '\t'); i >= 0 {
		rest, remainder = rest[:i], rest[i+1:]
	} else if d == dialectSVN || d == dialectUnified {
		if m := targetSuffixRegex.FindStringSubmatch(rest); m != nil {
			rest, remainder = m[1], m[2]
		}
	}

	var t hunkTarget
	switch d {
	case dialectGit:
		t.path = StripGitPathPrefix(unescapeFilename(rest))
	case dialectHg:
		t.path = rest
		if strings.HasPrefix(rest, "a/") || strings.HasPrefix(rest, "b/") {
			t.path = rest[2:]
		}
	case dialectUnified:
		t.path = cleanUnifiedPath(rest)
	default:
		t.path = rest
	}

	t.revisionZero = strings.Contains(remainder, "(revision 0)")
	t.nonexistent = strings.Contains(remainder, "(nonexistent)")

	s.next()
	return t, nil
}

// stripPairedPrefixes drops git's "a/" and "b/" from unified targets when
// both sides carry them, as in "git diff" output saved without its
// "diff --git" lines. A /dev/null side counts as matching.
func stripPairedPrefixes(oldTarget, newTarget *hunkTarget) {
	if oldTarget.path == devNull && newTarget.path == devNull {
		return
	}
	oldOK := oldTarget.path == devNull || strings.HasPrefix(oldTarget.path, "a/")
	newOK := newTarget.path == devNull || strings.HasPrefix(newTarget.path, "b/")
	if !oldOK || !newOK {
		return
	}
	if oldTarget.path != devNull {
		oldTarget.path = oldTarget.path[2:]
	}
	if newTarget.path != devNull {
		newTarget.path = newTarget.path[2:]
	}
}

// applyTargets records the target paths on c and infers additions and
// deletions for dialects without explicit file mode headers.
func applyTargets(c *Change, d dialect, oldTarget, newTarget hunkTarget) {
	if oldTarget.path != devNull {
		c.setOldPath(oldTarget.path)
	}
	if d == dialectUnified {
		if newTarget.absent() {
			c.setCurrentPath(oldTarget.path)
		} else {
			c.setCurrentPath(newTarget.path)
		}
	}

	if c.changeType != ChangeChange {
		return
	}
	switch {
	case oldTarget.absent() || oldTarget.revisionZero:
		c.setType(ChangeAdd)
	case newTarget.absent():
		c.setType(ChangeDelete)
		if c.currentPath == "" {
			c.setCurrentPath(c.oldPath)
		}
	}
}

var hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// parseChangeset reads every hunk of a block. A later block for the same
// path replaces the hunks of an earlier one.
func (s *parseState) parseChangeset(c *Change, d dialect) error {
	c.dropHunks()

	m := hunkHeaderRegex.FindStringSubmatch(s.trimmed())
	if m == nil {
		// svn 1.7 writes empty targets followed by the property changes when
		// only properties changed.
		if !s.eof() && strings.TrimSpace(s.cur()) == "" {
			s.nextNonEmpty()
			if !svnPropertyRegex.MatchString(s.trimmed()) {
				return s.fail("Confused by empty line")
			}
			s.next()
			return s.parsePropertyHunk(c)
		}
		return s.fail("Expected hunk header '@@ -NN,NN +NN,NN @@'.")
	}

	for m != nil {
		h, err := s.parseHunk(m)
		if err != nil {
			return err
		}

		corpus := h.corpus
		binary := false
		if s.parser.detectBinary && !utf8.ValidString(corpus) {
			binary = true
			if s.parser.tryEncoding != "" && !isHeuristicBinary(corpus) {
				converted, err := convertToUTF8(corpus, s.parser.tryEncoding)
				if err != nil {
					return err
				}
				h.corpus = converted
				binary = false
			}
		}

		switch {
		case binary:
			c.setFileType(FileBinary)
		case h.addLines == 0 && h.delLines == 0:
			// Context-only hunks carry nothing to review.
		case (d == dialectSVN || s.parser.ignoreWhitespace) && h.isWhitespaceOnly():
		default:
			c.addHunk(h)
		}

		for !s.eof() && strings.TrimSpace(s.cur()) == "" {
			s.next()
		}
		m = hunkHeaderRegex.FindStringSubmatch(s.trimmed())
	}

	if c.fileType == FileBinary {
		c.dropHunks()
	}
	return nil
}

// parseHunk reads one hunk whose header matched m. On return the cursor is
// at the first line that is not part of the hunk.
func (s *parseState) parseHunk(m []string) (*Hunk, error) {
	var nums [4]int
	for i, v := range m[1:5] {
		if v == "" {
			nums[i] = 1
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, s.fail("Hunk header numbers are unparseable.")
		}
		nums[i] = n
	}

	h := &Hunk{
		oldOffset: nums[0],
		oldLength: nums[1],
		newOffset: nums[2],
		newLength: nums[3],
	}

	oldLeft, newLeft := h.oldLength, h.newLength
	var body strings.Builder

	s.next()
loop:
	for !s.eof() {
		line := s.cur()

		// Some editors strip the single space from empty context lines.
		ch := byte(' ')
		if strings.TrimRight(line, "\r\n") != "" {
			ch = line[0]
		}

		if oldLeft == 0 && newLeft == 0 && ch != '\\' {
			break
		}

		switch ch {
		case '\\':
			if !strings.HasPrefix(line, `\ No newline at end of file`) {
				return nil, s.fail("Expected '\\ No newline at end of file'.")
			}
			body.WriteString(line)
			if newLeft > 0 {
				h.isMissingOldNewline = true
			} else {
				h.isMissingNewNewline = true
				s.next()
				break loop
			}
		case '+':
			h.addLines++
			newLeft--
			body.WriteString(line)
		case '-':
			// The "---" of the next file after a pure-addition hunk.
			if oldLeft == 0 {
				break loop
			}
			h.delLines++
			oldLeft--
			body.WriteString(line)
		case ' ':
			oldLeft--
			newLeft--
			if line == "\n" || line == "\r\n" {
				line = " " + line
			}
			body.WriteString(line)
		default:
			break loop
		}

		s.next()
	}

	if oldLeft != 0 || newLeft != 0 {
		return nil, s.fail("Found the wrong number of hunk lines.")
	}

	h.corpus = body.String()
	return h, nil
}
