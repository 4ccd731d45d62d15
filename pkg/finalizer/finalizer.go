// Package finalizer normalizes line endings and the end of file of a
// composed script before it is written.
package finalizer

import (
	"fmt"
	"strings"
)

// LineEnding is the newline style of the output.
type LineEnding string

const (
	LF   LineEnding = "lf"
	CRLF LineEnding = "crlf"
)

// ParseLineEnding validates a line ending name. The empty string means LF.
func ParseLineEnding(s string) (LineEnding, error) {
	switch LineEnding(strings.ToLower(strings.TrimSpace(s))) {
	case "", LF:
		return LF, nil
	case CRLF:
		return CRLF, nil
	}
	return "", fmt.Errorf("invalid line ending %q: must be 'lf' or 'crlf'", s)
}

// Sequence returns the literal newline for e.
func (e LineEnding) Sequence() string {
	if e == CRLF {
		return "\r\n"
	}
	return "\n"
}

// Finalize converts every newline to the requested style and makes the
// content end with exactly one newline. Trailing spaces are kept.
func Finalize(content string, ending LineEnding) (out string, changed bool) {
	original := content

	content = NormalizeLineEndings(content)
	content = ensureSingleTrailingNewline(content)
	if ending == CRLF {
		content = strings.ReplaceAll(content, "\n", "\r\n")
	}
	return content, content != original
}

// NormalizeLineEndings converts CRLF and lone CR to LF
func NormalizeLineEndings(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.ReplaceAll(content, "\r", "\n")
}

// DetectLineEnding reports the dominant style of content, defaulting to LF
func DetectLineEnding(content string) LineEnding {
	crlf := strings.Count(content, "\r\n")
	lf := strings.Count(content, "\n") - crlf
	if crlf > lf {
		return CRLF
	}
	return LF
}

// ensureSingleTrailingNewline collapses trailing blank lines into one newline
func ensureSingleTrailingNewline(content string) string {
	if content == "" {
		return "\n"
	}
	trimmed := strings.TrimRight(content, "\n")
	return trimmed + "\n"
}
