package diff

import (
	"regexp"
	"strings"
)

var (
	svnIndexRegex     = regexp.MustCompile(`^Index: (.+)$`)
	svnlookRegex      = regexp.MustCompile(`^(Modified|Added|Deleted|Copied): (.+)$`)
	svnPropertyRegex  = regexp.MustCompile(`^Property changes on: (.+)$`)
	gitCommitRegex    = regexp.MustCompile(`^commit ([a-f0-9]+)(?: \(.*\))?$`)
	gitDiffRegex      = regexp.MustCompile(`^diff --git (.+)$`)
	unifiedOldRegex   = regexp.MustCompile(`^--- (.+)$`)
	binaryFilesRegex  = regexp.MustCompile(`^(?:Binary files|Files) (.+) and (.+) differ$`)
	hgDiffRegex       = regexp.MustCompile(`^diff -r [a-f0-9]{12,40} (?:-r [a-f0-9]{12,40} )?(.+)$`)
	svnlookCopiedFrom = regexp.MustCompile(`^(.+) \(from rev \d+, (.+)\)$`)

	// Lines "diff -r" (recursive diff(1), not hg) writes between files.
	plainDiffRegex  = regexp.MustCompile(`^diff (?:-{1,2}\S+ )*\S+ \S+$`)
	diffRecurseNote = regexp.MustCompile(`^(?:Only in .+: .+|Common subdirectories: .+ and .+)$`)

	// diffStartRegex finds the first real diff after a preamble such as the
	// header of "hg export".
	diffStartRegex = regexp.MustCompile(`^\s*diff\s+-(?:r|-git)`)

	// blockStartRegex matches lines that always begin a new change block.
	blockStartRegex = regexp.MustCompile(`^(?:Index: |Property changes on: |diff --git |diff -r |commit [a-f0-9]+)`)
)

// parseBlock reads one change block starting at the current, non-empty line.
func (s *parseState) parseBlock() error {
	line := s.trimmed()

	if m := svnIndexRegex.FindStringSubmatch(line); m != nil {
		s.sawHeader = true
		c := s.changes.buildChange(m[1])
		s.next()
		return s.parseIndexHunk(c, dialectSVN)
	}

	if m := svnlookRegex.FindStringSubmatch(line); m != nil {
		s.sawHeader = true
		return s.parseSvnlookBlock(m[1], m[2])
	}

	if m := svnPropertyRegex.FindStringSubmatch(line); m != nil {
		s.sawHeader = true
		c := s.changes.buildChange(m[1])
		s.next()
		return s.parsePropertyHunk(c)
	}

	if m := gitCommitRegex.FindStringSubmatch(line); m != nil {
		s.sawHeader = true
		c := s.changes.buildChange("")
		c.setCommitHash(m[1])
		s.next()
		return s.parseCommitMessage(c)
	}

	if m := gitDiffRegex.FindStringSubmatch(line); m != nil {
		s.sawHeader = true
		oldPath, newPath, err := SplitGitDiffPaths(m[1])
		if err != nil {
			return err
		}
		c := s.changes.buildChange(newPath)
		c.setOldPath(oldPath)
		s.next()
		return s.parseIndexHunk(c, dialectGit)
	}

	if m := hgDiffRegex.FindStringSubmatch(line); m != nil {
		s.sawHeader = true
		c := s.changes.buildChange(m[1])
		s.next()
		return s.parseIndexHunk(c, dialectHg)
	}

	// The "diff -ru a/f b/f" line before a unified or binary block carries
	// nothing the "---"/"+++" targets do not.
	if plainDiffRegex.MatchString(line) && s.startsUnifiedBlock(1) {
		s.sawHeader = true
		s.next()
		return nil
	}
	if diffRecurseNote.MatchString(line) {
		s.nextNonEmpty()
		return nil
	}

	if m := binaryFilesRegex.FindStringSubmatch(line); m != nil {
		s.sawHeader = true
		oldPath := cleanUnifiedPath(m[1])
		newPath := cleanUnifiedPath(m[2])

		var c *Change
		switch {
		case oldPath == devNull:
			c = s.changes.buildChange(newPath)
			c.setType(ChangeAdd)
		case newPath == devNull:
			c = s.changes.buildChange(oldPath)
			c.setType(ChangeDelete)
			c.setOldPath(oldPath)
		default:
			c = s.changes.buildChange(newPath)
			c.setOldPath(oldPath)
		}
		c.setFileType(FileBinary)
		s.nextNonEmpty()
		return nil
	}

	if unifiedOldRegex.MatchString(line) && strings.HasPrefix(s.peek(), "+++ ") {
		s.sawHeader = true
		oldTarget, newTarget, err := s.parseTargets(dialectUnified)
		if err != nil {
			return err
		}
		stripPairedPrefixes(&oldTarget, &newTarget)
		path := newTarget.path
		if newTarget.absent() {
			path = oldTarget.path
		}
		c := s.changes.buildChange(path)
		applyTargets(c, dialectUnified, oldTarget, newTarget)
		return s.parseChangeset(c, dialectUnified)
	}

	if !s.sawHeader {
		return s.skipPreamble()
	}

	return s.fail("Expected a hunk header, like 'Index: /path/to/file.ext' (svn), " +
		"'Property changes on: /path/to/file.ext' (svn properties), " +
		"'commit 59bcc3ad6775562f845953cf01624225' (git show), " +
		"'diff --git' (git diff), '--- filename' (unified diff), or " +
		"'diff -r' (hg diff or patch).")
}

// peek returns the line after the current one, or "".
func (s *parseState) peek() string { return s.peekAt(1) }

// peekAt returns the line n lines ahead of the current one, or "".
func (s *parseState) peekAt(n int) string {
	if s.pos+n >= len(s.lines) {
		return ""
	}
	return s.lines[s.pos+n]
}

// startsUnifiedBlock reports whether the line n ahead begins a "---"/"+++"
// target pair or a binary marker.
func (s *parseState) startsUnifiedBlock(n int) bool {
	line := strings.TrimRight(s.peekAt(n), "\r\n")
	if binaryFilesRegex.MatchString(line) {
		return true
	}
	return strings.HasPrefix(line, "--- ") && strings.HasPrefix(s.peekAt(n+1), "+++ ")
}

// skipPreamble jumps over free text before the first diff, keeping the
// commit message when the text is an "hg export" header.
func (s *parseState) skipPreamble() error {
	start := s.pos
	for i := start; i < len(s.lines); i++ {
		if !diffStartRegex.MatchString(s.lines[i]) {
			continue
		}

		if msg, hash, ok := parseHgExportHeader(s.lines[start:i]); ok {
			c := s.changes.buildChange("")
			c.setType(ChangeMessage)
			c.setCommitHash(hash)
			c.setMetadata(MetadataMessage, msg)
		}

		s.sawHeader = true
		s.pos = i
		return nil
	}

	return s.fail("Expected a hunk header, like 'Index: /path/to/file.ext' (svn), " +
		"'diff --git' (git diff), '--- filename' (unified diff), or " +
		"'diff -r' (hg diff or patch).")
}

// parseSvnlookBlock handles the per-file headers of "svnlook diff".
func (s *parseState) parseSvnlookBlock(op, path string) error {
	var c *Change
	switch op {
	case "Added":
		c = s.changes.buildChange(path)
		c.setType(ChangeAdd)
	case "Deleted":
		c = s.changes.buildChange(path)
		c.setType(ChangeDelete)
	case "Copied":
		m := svnlookCopiedFrom.FindStringSubmatch(path)
		if m == nil {
			return s.fail("Expected 'Copied: path (from rev N, source)'.")
		}
		c = s.changes.buildChange(m[1])
		c.setType(ChangeCopyHere)
		c.setOldPath(m[2])

		src := s.changes.buildChange(m[2])
		if src.changeType == ChangeMoveAway {
			src.setType(ChangeMultiCopy)
		} else if src.changeType != ChangeMultiCopy {
			src.setType(ChangeCopyAway)
		}
		src.addAwayPath(m[1])
	default:
		c = s.changes.buildChange(path)
	}

	// Copies and property-only changes may have no content section.
	s.next()
	for !s.eof() && strings.TrimSpace(s.cur()) == "" {
		s.next()
	}
	if !svnDividerRegex.MatchString(s.trimmed()) {
		return nil
	}
	return s.parseIndexHunk(c, dialectSVN)
}

var (
	svnDividerRegex    = regexp.MustCompile(`^=+\s*$`)
	gitIndexRegex      = regexp.MustCompile(`^index ([a-f0-9]+)\.\.([a-f0-9]+)(?: (\d+))?$`)
	binaryDiffRegex    = regexp.MustCompile(`^(?:Binary files|Files) .+ and .+ differ$`)
	hgBinaryRegex      = regexp.MustCompile(`^Binary file .+ has changed$`)
	newFileModeRegex   = regexp.MustCompile(`^new file mode (\d+)$`)
	deletedModeRegex   = regexp.MustCompile(`^deleted file mode (\d+)$`)
	oldModeRegex       = regexp.MustCompile(`^old mode (\d+)$`)
	newModeRegex       = regexp.MustCompile(`^new mode (\d+)$`)
	similarityRegex    = regexp.MustCompile(`^(?:dis)?similarity index \d+%$`)
	renameFromRegex    = regexp.MustCompile(`^rename from (.+)$`)
	renameToRegex      = regexp.MustCompile(`^rename to (.+)$`)
	copyFromRegex      = regexp.MustCompile(`^copy from (.+)$`)
	copyToRegex        = regexp.MustCompile(`^copy to (.+)$`)
	unknownHeaderRegex = regexp.MustCompile(`^[a-z][a-z-]*(?: [a-z][a-z-]*)* \S`)
)

// parseIndexHunk reads the rest of a block once its first header line has
// been consumed: extended headers, then either a binary marker or the
// hunk targets and hunks.
func (s *parseState) parseIndexHunk(c *Change, d dialect) error {
	if d == dialectGit {
		done, err := s.parseGitHeaders(c)
		if err != nil || done {
			return err
		}
	}

	switch d {
	case dialectSVN:
		if !svnDividerRegex.MatchString(s.trimmed()) {
			return s.fail("Expected '=============================' divider line.")
		}
		s.nextNonEmpty()
	case dialectGit:
		if m := gitIndexRegex.FindStringSubmatch(s.trimmed()); m != nil {
			c.setIndex(m[1], m[2])
			if m[3] != "" {
				if ft := fileTypeForMode(m[3]); ft != 0 {
					c.setFileType(ft)
				}
			}
			s.nextNonEmpty()
		}
	}

	// A header with nothing after it: an empty file, or an svn change that
	// only touched properties.
	if s.eof() || blockStartRegex.MatchString(s.cur()) {
		return nil
	}

	line := strings.TrimRight(s.cur(), " \t\r\n")
	switch {
	case line == "Cannot display: file marked as a binary type.":
		// Followed by "svn:mime-type = application/octet-stream".
		c.setFileType(FileBinary)
		s.next()
		s.nextNonEmpty()
		return nil
	case binaryDiffRegex.MatchString(line), hgBinaryRegex.MatchString(line):
		c.setFileType(FileBinary)
		s.nextNonEmpty()
		return nil
	case line == "GIT binary patch":
		c.setFileType(FileBinary)
		s.next()
		if err := s.parseGitBinaryPatch(); err != nil {
			return err
		}
		// Reversible patches carry a second block for the reverse direction.
		if l := s.cur(); strings.HasPrefix(l, "literal ") || strings.HasPrefix(l, "delta ") {
			return s.parseGitBinaryPatch()
		}
		return nil
	}

	oldTarget, newTarget, err := s.parseTargets(d)
	if err != nil {
		return err
	}
	applyTargets(c, d, oldTarget, newTarget)
	return s.parseChangeset(c, d)
}

// parseGitHeaders consumes git's extended header lines. It reports done
// when the block has no content part at all, as for pure renames or mode
// changes.
func (s *parseState) parseGitHeaders(c *Change) (done bool, err error) {
	for !s.eof() {
		line := s.trimmed()

		switch {
		case gitDiffRegex.MatchString(line), gitCommitRegex.MatchString(line):
			return true, nil

		case newFileModeRegex.MatchString(line):
			mode := newFileModeRegex.FindStringSubmatch(line)[1]
			c.setNewProperty(propFileMode, mode)
			// "deleted file mode" followed by "new file mode" is a file that
			// was replaced, e.g. by a symlink.
			if c.changeType == ChangeDelete {
				c.setType(ChangeChange)
			} else {
				c.setType(ChangeAdd)
			}
			if ft := fileTypeForMode(mode); ft != 0 {
				c.setFileType(ft)
			}

		case deletedModeRegex.MatchString(line):
			mode := deletedModeRegex.FindStringSubmatch(line)[1]
			c.setOldProperty(propFileMode, mode)
			c.setType(ChangeDelete)
			if ft := fileTypeForMode(mode); ft != 0 {
				c.setFileType(ft)
			}

		case oldModeRegex.MatchString(line):
			c.setOldProperty(propFileMode, oldModeRegex.FindStringSubmatch(line)[1])

		case newModeRegex.MatchString(line):
			mode := newModeRegex.FindStringSubmatch(line)[1]
			c.setNewProperty(propFileMode, mode)
			if ft := fileTypeForMode(mode); ft != 0 {
				c.setFileType(ft)
			}

		case similarityRegex.MatchString(line):

		case renameFromRegex.MatchString(line):
			c.setOldPath(unescapeFilename(renameFromRegex.FindStringSubmatch(line)[1]))

		case renameToRegex.MatchString(line):
			to := unescapeFilename(renameToRegex.FindStringSubmatch(line)[1])
			c.setCurrentPath(to)
			s.changes.index(c)
			c.setType(ChangeMoveHere)

			src := s.changes.buildChange(c.oldPath)
			if src.changeType == ChangeMoveAway || src.changeType == ChangeCopyAway {
				src.setType(ChangeMultiCopy)
			} else if src.changeType != ChangeMultiCopy {
				src.setType(ChangeMoveAway)
			}
			src.addAwayPath(to)

		case copyFromRegex.MatchString(line):
			c.setOldPath(unescapeFilename(copyFromRegex.FindStringSubmatch(line)[1]))

		case copyToRegex.MatchString(line):
			to := unescapeFilename(copyToRegex.FindStringSubmatch(line)[1])
			c.setCurrentPath(to)
			s.changes.index(c)
			c.setType(ChangeCopyHere)

			src := s.changes.buildChange(c.oldPath)
			if src.changeType == ChangeMoveAway {
				src.setType(ChangeMultiCopy)
			} else if src.changeType != ChangeMultiCopy {
				src.setType(ChangeCopyAway)
			}
			src.addAwayPath(to)

		case gitIndexRegex.MatchString(line),
			strings.HasPrefix(line, "--- "),
			strings.HasPrefix(line, "@@ "),
			strings.HasPrefix(line, "Binary files "),
			line == "GIT binary patch":
			return false, nil

		case strings.TrimSpace(line) == "":

		case unknownHeaderRegex.MatchString(line):
			// Headers from newer git versions are safe to skip.

		default:
			return false, nil
		}

		s.next()
	}

	return true, nil
}

var binaryPatchLineRegex = regexp.MustCompile(`^[a-zA-Z]`)

// parseGitBinaryPatch skips one "literal N" or "delta N" block of base85
// data. The content itself is not decoded.
func (s *parseState) parseGitBinaryPatch() error {
	line := s.trimmed()
	if !strings.HasPrefix(line, "literal ") && !strings.HasPrefix(line, "delta ") {
		return s.fail("Expected 'literal NNNN' or 'delta NNNN' to start git binary patch.")
	}

	for {
		s.next()
		if s.eof() {
			return nil
		}
		line = s.trimmed()
		if strings.TrimSpace(line) == "" {
			s.nextNonEmpty()
			return nil
		}
		if !binaryPatchLineRegex.MatchString(line) {
			return s.fail("Expected base85 line length character (a-zA-Z).")
		}
	}
}
