// Package comments strips trailing comment blocks from free-form text such as
// commit messages and Subversion property values.
package comments

import "strings"

// RemoveComments removes the trailing block of "#" comment lines from body,
// along with any blank lines mixed into or directly above that block.
// A line is a comment only if "#" is its first character, so indented
// "  # x" lines are kept, as is every comment that appears before the last
// non-comment line.
//
// The result is trimmed and ends with a single newline, or is empty if
// nothing but comments remained.
func RemoveComments(body string) string {
	lines := strings.Split(strings.TrimSpace(body), "\n")

	end := len(lines)
	for end > 0 {
		line := strings.TrimRight(lines[end-1], "\r")
		if line != "" && line[0] != '#' {
			break
		}
		end--
	}

	out := strings.TrimSpace(strings.Join(lines[:end], "\n"))
	if out == "" {
		return ""
	}
	return out + "\n"
}
