/*
Package listfile reads gazetteer list files.

A list file holds one entry per line:

	phrase<sep>name1=value1<sep>name2=value2…

The separator defaults to a TAB. If a line does not contain the separator,
the whole line is the phrase. Empty fields between separators are skipped.
Lists may be gzip-compressed (file suffix ".gz") and may start with a
byte order mark.
*/
package listfile

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// MaxFeatures is the maximum number of features of a single entry.
const MaxFeatures = 500

// DefaultSeparator separates the phrase and the features of an entry,
// unless configured otherwise.
const DefaultSeparator = "\t"

// maxLineLength limits the length of a single list line.
const maxLineLength = 16 << 20

// ParseError reports a malformed line of a list file.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// UnescapeSeparator resolves backslash escapes like `\t` or `\u00a6` in a
// configured separator. Strings which are not valid Go escapes are taken
// literally. An empty separator selects DefaultSeparator.
func UnescapeSeparator(sep string) string {
	if sep == "" {
		return DefaultSeparator
	}
	if !strings.Contains(sep, `\`) {
		return sep
	}
	if s, err := strconv.Unquote(`"` + strings.ReplaceAll(sep, `"`, `\"`) + `"`); err == nil && s != "" {
		return s
	}
	return sep
}

// Reader streams entries from a list file.
type Reader struct {
	scanner  *bufio.Scanner
	name     string
	sep      string
	line     int
	features []string
}

// NewReader creates a reader for list data from r. name is used in error
// messages, sep is the (already unescaped) feature separator.
func NewReader(r io.Reader, name, sep string) *Reader {
	if sep == "" {
		sep = DefaultSeparator
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	return &Reader{
		scanner:  scanner,
		name:     name,
		sep:      sep,
		features: make([]string, 0, 16),
	}
}

// Line returns the number of the line most recently read.
func (r *Reader) Line() int {
	return r.line
}

// Next returns the next entry as (phrase, features), with features as
// interleaved name/value strings. Lines without any non-space character
// are skipped. Next returns io.EOF when exhausted.
// The returned slice is reused by subsequent calls.
func (r *Reader) Next() (string, []string, error) {
	for r.scanner.Scan() {
		r.line++
		line := r.scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		phrase, rest, found := strings.Cut(line, r.sep)
		r.features = r.features[:0]
		if !found {
			return phrase, r.features, nil
		}
		for field := range strings.SplitSeq(rest, r.sep) {
			if field == "" {
				continue
			}
			if len(r.features) == 2*MaxFeatures {
				return "", nil, r.errorf("more than %d features", MaxFeatures)
			}
			name, value, ok := strings.Cut(field, "=")
			if !ok {
				return "", nil, r.errorf("not a proper feature=value: %q", field)
			}
			r.features = append(r.features, name, value)
		}
		return phrase, r.features, nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", nil, fmt.Errorf("%s: line %d: %w", r.name, r.line+1, err)
	}
	return "", nil, io.EOF
}

func (r *Reader) errorf(format string, args ...any) *ParseError {
	return &ParseError{File: r.name, Line: r.line, Msg: fmt.Sprintf(format, args...)}
}
