package diff

import (
	"regexp"
	"strings"
)

var (
	propDividerRegex    = regexp.MustCompile(`^_+$`)
	propOperationRegex  = regexp.MustCompile(`^(Name|Modified|Added|Deleted): (.+)$`)
	propTerminatorRegex = regexp.MustCompile(`^(?:(?:Name|Modified|Added|Deleted|Index|Property changes on): |diff --git )`)
)

// parsePropertyHunk reads the body of a "Property changes on:" block,
// starting at its underscore divider.
func (s *parseState) parsePropertyHunk(c *Change) error {
	if !propDividerRegex.MatchString(strings.TrimSpace(s.cur())) {
		return s.fail("Expected '______________________'.")
	}
	s.next()

	for !s.eof() {
		line := s.trimmed()
		if strings.HasPrefix(line, "Index: ") ||
			strings.HasPrefix(line, "Property changes on: ") ||
			strings.HasPrefix(line, "diff --git ") {
			return nil
		}
		if strings.TrimSpace(line) == "" {
			s.next()
			continue
		}

		m := propOperationRegex.FindStringSubmatch(line)
		if m == nil {
			return s.fail("Expected 'Name', 'Added', 'Deleted', or 'Modified'.")
		}
		op, prop := m[1], strings.TrimSpace(m[2])

		oldValue, newValue, err := s.parseSVNProperty(op)
		if err != nil {
			return err
		}
		if oldValue != "" {
			c.setOldProperty(prop, oldValue)
		}
		if newValue != "" {
			c.setNewProperty(prop, newValue)
		}
	}

	return nil
}

// parseSVNProperty reads the "-" and "+" value lines after a property
// operation. svn before 1.7 indents values ("   + value"); later versions
// write a "## -1 +1 ##" header followed by bare "+value" lines.
func (s *parseState) parseSVNProperty(op string) (oldValue, newValue string, err error) {
	var oldParts, newParts []string
	var target *[]string
	prefixLen := 2

	s.next()
	for !s.eof() {
		line := s.cur()
		if propTerminatorRegex.MatchString(line) {
			break
		}

		trimmed := strings.TrimLeft(line, " \t\r\n\v\x00")
		if strings.HasPrefix(trimmed, "#") {
			prefixLen = 1
			s.next()
			if s.eof() {
				break
			}
			line = s.cur()
			if propTerminatorRegex.MatchString(line) {
				break
			}
			trimmed = strings.TrimLeft(line, " \t\r\n\v\x00")
		}

		// "\ No newline at end of property"
		if strings.HasPrefix(trimmed, `\`) {
			s.next()
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "+"):
			if op == "Deleted" {
				return "", "", s.fail("Unexpected '+' section in property deletion.")
			}
			target = &newParts
			line = substrFrom(trimmed, prefixLen)
		case strings.HasPrefix(trimmed, "-"):
			if op == "Added" {
				return "", "", s.fail("Unexpected '-' section in property addition.")
			}
			target = &oldParts
			line = substrFrom(trimmed, prefixLen)
		case strings.HasPrefix(trimmed, "Merged "), strings.HasPrefix(trimmed, "Reverse-merged "):
			// svn:mergeinfo summaries are not property values.
			target = nil
		}

		// Lines without a prefix continue the previous multi-line value.
		if target != nil {
			*target = append(*target, line)
		}

		s.next()
	}

	return trimPropertyValue(oldParts), trimPropertyValue(newParts), nil
}

func substrFrom(s string, i int) string {
	if i >= len(s) {
		return ""
	}
	return s[i:]
}

func trimPropertyValue(parts []string) string {
	return strings.TrimRight(strings.Join(parts, ""), " \t\r\n\v\x00")
}
