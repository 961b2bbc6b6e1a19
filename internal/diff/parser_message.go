package diff

import (
	"regexp"
	"strings"
)

var commitHeaderRegex = regexp.MustCompile(`^(?:AuthorDate|Commit|CommitDate): `)

// parseCommitMessage reads the header and indented message that follow a
// "commit <hash>" line in "git log -p" or "git show" output.
func (s *parseState) parseCommitMessage(c *Change) error {
	c.setType(ChangeMessage)

	if strings.HasPrefix(s.cur(), "Merge: ") {
		s.next()
	}
	if !strings.HasPrefix(s.cur(), "Author: ") {
		return s.fail("Expected 'Author:'.")
	}
	s.next()
	if !strings.HasPrefix(s.cur(), "Date: ") && !strings.HasPrefix(s.cur(), "AuthorDate: ") {
		return s.fail("Expected 'Date:'.")
	}
	s.next()

	// --format=fuller adds committer lines.
	for commitHeaderRegex.MatchString(s.cur()) {
		s.next()
	}

	var b strings.Builder
	for !s.eof() {
		line := s.cur()
		if trimmed := strings.TrimRight(line, "\r\n"); trimmed != "" && trimmed[0] != ' ' {
			break
		}
		b.WriteString(strings.TrimPrefix(line, "    "))
		s.next()
	}

	msg := strings.TrimLeft(b.String(), "\r\n")
	c.setMetadata(MetadataMessage, strings.TrimRight(msg, " \t\r\n"))
	return nil
}

// patchMessage is the commit message recovered from "git format-patch"
// mail or an "hg export" header.
type patchMessage struct {
	hash string
	text string
}

var (
	// formatPatchRegex recognizes format-patch output by its "---"
	// separator and the version signature at the end.
	formatPatchRegex = regexp.MustCompile(`(?ms)^---$.*^-- ?\n[\s\d.]+\z`)

	patchSeparatorRegex = regexp.MustCompile(`(?m)^---$`)
	signatureRegex      = regexp.MustCompile(`(?m)^-- ?$`)
	diffLineRegex       = regexp.MustCompile(`(?m)^diff `)
	mailFromRegex       = regexp.MustCompile(`^From ([a-f0-9]{40}) `)
	mailSubjectRegex    = regexp.MustCompile(`(?mi)^Subject: (?:\[PATCH[^\]]*\] )?(.*)$`)
)

// stripGitFormatPatch splits "git format-patch" output into the commit
// message and the diff. It reports false if text is not laid out as
// expected, in which case the caller parses text unchanged.
func stripGitFormatPatch(text string) (*patchMessage, string, bool) {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	sep := patchSeparatorRegex.FindStringIndex(text)
	if sep == nil {
		return nil, "", false
	}
	head, tail := text[:sep[0]], text[sep[1]:]

	// The signature is the last "-- " line; earlier ones may be diff content.
	sigs := signatureRegex.FindAllStringIndex(tail, -1)
	if len(sigs) == 0 {
		return nil, "", false
	}
	tail = tail[:sigs[len(sigs)-1][0]]

	mailHeaders, mailBody, ok := strings.Cut(head, "\n\n")
	if !ok {
		return nil, "", false
	}

	// Skip the diffstat, if any.
	start := diffLineRegex.FindStringIndex(tail)
	if start == nil {
		return nil, "", false
	}
	body := tail[start[0]:]

	msg := &patchMessage{}
	if m := mailFromRegex.FindStringSubmatch(mailHeaders); m != nil {
		msg.hash = m[1]
	}

	text = strings.TrimSpace(mailBody)
	if m := mailSubjectRegex.FindStringSubmatch(mailHeaders); m != nil {
		subject := strings.TrimSpace(m[1])
		if text == "" {
			text = subject
		} else {
			text = subject + "\n\n" + text
		}
	}
	msg.text = strings.TrimRight(text, " \t\r\n")

	return msg, body, true
}

var (
	hgNodeIDRegex = regexp.MustCompile(`^# Node ID ([a-f0-9]+)`)
)

// parseHgExportHeader extracts the node ID and message from the lines
// "hg export" writes before the first diff.
func parseHgExportHeader(lines []string) (msg, hash string, ok bool) {
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "# HG changeset patch" {
		return "", "", false
	}

	var b strings.Builder
	for _, line := range lines[1:] {
		if strings.HasPrefix(line, "#") {
			if m := hgNodeIDRegex.FindStringSubmatch(line); m != nil {
				hash = m[1]
			}
			continue
		}
		b.WriteString(line)
	}

	return strings.TrimSpace(b.String()), hash, true
}
