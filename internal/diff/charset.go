package diff

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"

	apperrors "github.com/pseudocoder/diffcore/internal/errors"
)

// isHeuristicBinary guesses whether text is binary content rather than text
// in some non-UTF-8 encoding. A NUL byte is the only signal used.
func isHeuristicBinary(text string) bool {
	return strings.IndexByte(text, 0) >= 0
}

// convertToUTF8 decodes text from the named encoding (any WHATWG label such
// as "latin1", "windows-1252" or "shift_jis").
func convertToUTF8(text, encoding string) (string, error) {
	enc, name := charset.Lookup(encoding)
	if enc == nil {
		return "", apperrors.EncodingFailed(encoding, fmt.Errorf("unknown encoding %q", encoding))
	}

	out, _, err := transform.String(enc.NewDecoder(), text)
	if err != nil {
		return "", apperrors.EncodingFailed(name, err)
	}
	if !utf8.ValidString(out) {
		return "", apperrors.EncodingFailed(name, fmt.Errorf("result is not valid UTF-8"))
	}
	return out, nil
}

// ValidEncoding reports whether name is an encoding label the parser can
// convert from.
func ValidEncoding(name string) bool {
	enc, _ := charset.Lookup(name)
	return enc != nil
}
