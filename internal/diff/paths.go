package diff

import (
	"errors"
	"regexp"
	"strings"

	apperrors "github.com/pseudocoder/diffcore/internal/errors"
)

// ErrAmbiguousPaths is the cause of the error returned when the two paths on
// a "diff --git" line cannot be told apart.
var ErrAmbiguousPaths = errors.New("ambiguous diff --git paths")

// gitPathPrefixes are the default "a/" and "b/" prefixes plus the ones git
// emits when diff.mnemonicprefix is set.
var gitPathPrefixes = []string{"a/", "b/", "i/", "c/", "w/", "o/", "1/", "2/"}

// StripGitPathPrefix removes a default or mnemonic git prefix ("a/", "b/",
// "i/", "c/", "w/", "o/", "1/", "2/") from path. The whole first path
// component must match, so "src/file.c" is returned unchanged. Custom
// prefixes set with --src-prefix/--dst-prefix are left alone.
func StripGitPathPrefix(path string) string {
	for _, prefix := range gitPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return path[len(prefix):]
		}
	}
	return path
}

var (
	// Both names quoted, as git does for non-ASCII names or names with quotes.
	bothQuotedRegex = regexp.MustCompile(`^("(?:\\.|[^"\\])+") ("(?:\\.|[^"\\])+")$`)

	// One side quoted, e.g. a rename from a unicode name to a plain one.
	quotedFirstRegex  = regexp.MustCompile(`^("(?:\\.|[^"\\])+") ([^" ][^ ]*)$`)
	quotedSecondRegex = regexp.MustCompile(`^([^" ][^ ]*) ("(?:\\.|[^"\\])+")$`)

	// Neither name contains a space.
	noSpacesRegex = regexp.MustCompile(`^([^ ]+) ([^ ]+)$`)

	// Both names carry a well-known prefix.
	knownPrefixRegex = regexp.MustCompile(`^([abicwo12]/.*) ([abicwo12]/.*)$`)
)

// SplitGitDiffPaths splits the text after "diff --git " into the old and
// new paths, unquoting and removing git prefixes from each.
//
// Names with spaces are only split when both sides carry a known prefix or
// when the line is the same name twice. Anything else returns an error
// with code diff.ambiguous_paths that wraps ErrAmbiguousPaths.
func SplitGitDiffPaths(paths string) (oldPath, newPath string, err error) {
	paths = strings.TrimRight(paths, "\r\n")

	old, cur, ok := splitPathPair(paths)
	if !ok {
		return "", "", apperrors.AmbiguousPaths("diff --git "+paths, ErrAmbiguousPaths)
	}

	return StripGitPathPrefix(unescapeFilename(old)), StripGitPathPrefix(unescapeFilename(cur)), nil
}

func splitPathPair(paths string) (string, string, bool) {
	for _, re := range []*regexp.Regexp{
		bothQuotedRegex,
		quotedFirstRegex,
		quotedSecondRegex,
		noSpacesRegex,
		knownPrefixRegex,
	} {
		if m := re.FindStringSubmatch(paths); m != nil {
			return m[1], m[2], true
		}
	}

	// The exact same name twice, e.g. "my file my file". This can misfire on
	// a move from "old file old" to "file" under custom prefixes, which is
	// obscure enough to accept.
	if len(paths)%2 == 1 {
		mid := len(paths) / 2
		if paths[mid] == ' ' && paths[:mid] == paths[mid+1:] {
			return paths[:mid], paths[mid+1:], true
		}
	}

	return "", "", false
}

// unescapeFilename decodes a C-style quoted name produced by git. Unquoted
// names are returned as-is. Octal escapes decode to raw bytes, so quoted
// UTF-8 names come back as UTF-8.
func unescapeFilename(name string) string {
	if len(name) < 3 || name[0] != '"' || name[len(name)-1] != '"' {
		return name
	}
	return stripCSlashes(name[1 : len(name)-1])
}

// stripCSlashes interprets backslash escapes: \a \b \f \n \r \t \v, octal
// \NNN (one to three digits), hex \xHH, and any other escaped byte as
// itself.
func stripCSlashes(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i == len(s)-1 {
			b.WriteByte(s[i])
			continue
		}

		i++
		switch c := s[i]; c {
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'v':
			b.WriteByte('\v')
		case 'x':
			v, n := 0, 0
			for n < 2 && i+1 < len(s) && isHexDigit(s[i+1]) {
				i++
				v = v*16 + hexValue(s[i])
				n++
			}
			if n == 0 {
				b.WriteByte('x')
			} else {
				b.WriteByte(byte(v))
			}
		default:
			if c >= '0' && c <= '7' {
				v := int(c - '0')
				for n := 1; n < 3 && i+1 < len(s) && s[i+1] >= '0' && s[i+1] <= '7'; n++ {
					i++
					v = v*8 + int(s[i]-'0')
				}
				b.WriteByte(byte(v))
			} else {
				b.WriteByte(c)
			}
		}
	}

	return b.String()
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	}
	return int(c-'A') + 10
}
