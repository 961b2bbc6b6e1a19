package diff

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	apperrors "github.com/pseudocoder/diffcore/internal/errors"
)

// Parser converts raw diff text into a ChangeSet.
//
// A Parser only holds configuration; every call to Parse works on its own
// state, so one Parser may be shared between goroutines.
type Parser struct {
	detectBinary     bool
	tryEncoding      string
	ignoreWhitespace bool
	maxBytes         int

	// failureDir, when set, receives a copy of any diff that fails to parse.
	failureDir         string
	writeDiffOnFailure bool
}

// Option configures a Parser.
type Option func(*Parser)

// WithDetectBinary marks a change as binary when one of its hunks is not
// valid UTF-8. Subversion happily diffs binary files that lack a binary
// mime type; this catches them.
func WithDetectBinary(enabled bool) Option {
	return func(p *Parser) { p.detectBinary = enabled }
}

// WithTryEncoding makes binary detection first try to read non-UTF-8 hunks
// in the given encoding. Hunks without NUL bytes are converted to UTF-8
// instead of being treated as binary. Has no effect without
// WithDetectBinary.
func WithTryEncoding(encoding string) Option {
	return func(p *Parser) { p.tryEncoding = encoding }
}

// WithIgnoreWhitespace drops hunks whose only differences are trailing
// whitespace, for every dialect. Subversion hunks are always filtered.
func WithIgnoreWhitespace(enabled bool) Option {
	return func(p *Parser) { p.ignoreWhitespace = enabled }
}

// WithMaxBytes rejects input larger than n bytes. Zero means no limit.
func WithMaxBytes(n int) Option {
	return func(p *Parser) { p.maxBytes = n }
}

// WithWriteDiffOnFailure writes the raw input of a failed parse to a
// temporary file in dir (os.TempDir() if empty) and reports its path in the
// ParseError.
func WithWriteDiffOnFailure(dir string) Option {
	return func(p *Parser) {
		p.writeDiffOnFailure = true
		p.failureDir = dir
	}
}

// NewParser creates a parser with the given options.
func NewParser(opts ...Option) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses raw with a default Parser.
func Parse(raw string) (*ChangeSet, error) {
	return NewParser().Parse(raw)
}

// ParseError describes where a structural parse failure happened. It is the
// cause of the diff.parse_failed CodedError returned by Parse.
type ParseError struct {
	Line     int    // 1-based line in the normalized input
	Message  string // what the parser expected
	Context  string // surrounding lines, the failing one marked with ">>>"
	DiffFile string // copy of the raw input, if WithWriteDiffOnFailure is set
}

func (e *ParseError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "line %d: %s", e.Line, e.Message)
	if e.DiffFile != "" {
		fmt.Fprintf(&b, " (raw diff written to %s)", e.DiffFile)
	}
	return b.String()
}

// dialect is the header convention in effect for one change block.
type dialect int

const (
	dialectUnified dialect = iota
	dialectGit
	dialectSVN
	dialectHg
)

func (d dialect) String() string {
	switch d {
	case dialectGit:
		return "git"
	case dialectSVN:
		return "svn"
	case dialectHg:
		return "hg"
	}
	return "unified"
}

// Parse converts raw into a ChangeSet. Any structural problem aborts the
// whole parse; no partial result is returned.
func (p *Parser) Parse(raw string) (*ChangeSet, error) {
	if p.maxBytes > 0 && len(raw) > p.maxBytes {
		return nil, apperrors.DiffTooLarge(len(raw), p.maxBytes)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, apperrors.EmptyDiff()
	}

	s := &parseState{
		parser:  p,
		raw:     raw,
		changes: newChangeSet(),
	}
	if err := s.run(); err != nil {
		return nil, err
	}
	return s.changes, nil
}

// parseState is the cursor and result of a single Parse call.
type parseState struct {
	parser *Parser
	raw    string

	lines []string // normalized input, each line keeps its "\n"
	pos   int

	changes   *ChangeSet
	sawHeader bool
}

var (
	// ansiColorRegex matches SGR color codes. They are only stripped when one
	// starts a line, which means the whole diff was colorized.
	ansiColorRegex          = regexp.MustCompile(`\x1b\[[\d;]*m`)
	ansiColorLineStartRegex = regexp.MustCompile(`(?m)^\x1b\[[\d;]*m`)
)

func (s *parseState) run() error {
	text := strings.ReplaceAll(s.raw, "\r\n", "\n")

	var message *patchMessage
	if formatPatchRegex.MatchString(text) {
		if m, body, ok := stripGitFormatPatch(text); ok {
			message, text = m, body
		}
	}

	s.load(text)

	if message != nil {
		c := s.changes.buildChange("")
		c.setType(ChangeMessage)
		c.setCommitHash(message.hash)
		c.setMetadata(MetadataMessage, message.text)
	}

	for !s.eof() {
		if strings.TrimSpace(s.cur()) == "" {
			s.next()
			continue
		}
		if err := s.parseBlock(); err != nil {
			return err
		}
	}

	s.finish()
	return nil
}

// load normalizes line endings, strips color codes and splits text into
// lines.
func (s *parseState) load(text string) {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	// Leading whitespace shows up when the first change is an SVN property
	// change.
	text = strings.TrimLeft(text, " \t\n\r")

	if ansiColorLineStartRegex.MatchString(text) {
		text = ansiColorRegex.ReplaceAllString(text, "")
	}

	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}

	s.lines = strings.SplitAfter(text, "\n")
	if n := len(s.lines); n > 0 && s.lines[n-1] == "" {
		s.lines = s.lines[:n-1]
	}
	s.pos = 0
}

func (s *parseState) eof() bool { return s.pos >= len(s.lines) }

// cur returns the current line including its newline, or "" at EOF.
func (s *parseState) cur() string {
	if s.eof() {
		return ""
	}
	return s.lines[s.pos]
}

// trimmed returns the current line without its line terminator.
func (s *parseState) trimmed() string {
	return strings.TrimRight(s.cur(), "\r\n")
}

func (s *parseState) next() { s.pos++ }

// nextNonEmpty advances past the current line and any blank lines after it.
func (s *parseState) nextNonEmpty() {
	s.pos++
	for !s.eof() && strings.TrimSpace(s.cur()) == "" {
		s.pos++
	}
}

// fail builds the diff.parse_failed error for the current line.
func (s *parseState) fail(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)

	const window = 5
	lo := max(0, s.pos-window)
	hi := min(s.pos+window, len(s.lines)-1)

	var ctx strings.Builder
	for i := lo; i <= hi; i++ {
		marker := ""
		if i == s.pos {
			marker = ">>>"
		}
		line := s.lines[i]
		if !strings.HasSuffix(line, "\n") {
			line += "\n"
		}
		fmt.Fprintf(&ctx, "%8.8s %6d   %s", marker, i+1, line)
	}

	perr := &ParseError{
		Line:    s.pos + 1,
		Message: msg,
		Context: ctx.String(),
	}

	if s.parser.writeDiffOnFailure {
		if f, err := os.CreateTemp(s.parser.failureDir, "diffcore-parse-*.diff"); err == nil {
			if _, err := f.WriteString(s.raw); err == nil {
				perr.DiffFile = f.Name()
			}
			f.Close()
		}
	}

	return apperrors.ParseFailed(msg, perr)
}

// finish fills in derived data once every block has been read.
func (s *parseState) finish() {
	for _, c := range s.changes.changes {
		if c.changeType == ChangeAdd {
			c.oldPath = ""
		}

		applyMimeType(c)

		first := 0
		for _, h := range c.hunks {
			if line := h.firstChangedLine(); line > 0 && (first == 0 || line < first) {
				first = line
			}
		}
		if first > 0 {
			c.setMetadata(MetadataFirstLine, first)
		}
	}
}

// applyMimeType uses an explicit svn:mime-type property to classify the
// file. Non-text types carry no reviewable hunks.
func applyMimeType(c *Change) {
	mime, ok := c.newProperties.get("svn:mime-type")
	if !ok {
		mime, ok = c.oldProperties.get("svn:mime-type")
	}
	if !ok || strings.HasPrefix(mime, "text/") {
		return
	}

	if strings.HasPrefix(mime, "image/") {
		c.setFileType(FileImage)
	} else {
		c.setFileType(FileBinary)
	}
	c.dropHunks()
}
