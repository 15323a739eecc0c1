/*
Package defconfig parses gazetteer configurations.

A configuration names the list files of a gazetteer together with the
metadata shared by all entries of a list. It comes in two dialects,
selected by file extension.

Flat ".def" files hold one list per line, fields separated by colons:

	listFileName : majorType : minorType : languages : annotationType

Trailing fields are optional. Structured ".defyaml" files are YAML documents,
either a mapping

	cacheDir: /var/cache/gaz
	cacheFile: cities.gazbin
	listFiles:
	  - file: cities.lst
	    majorType: location
	    minorType: city
	    featureSeparator: "\t"
	    population: large

or a bare sequence of list entries. Keys of a list entry not known to the
parser become additional list features.

Both dialects produce the same Config.
*/
package defconfig

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/npillmayer/schuko/tracing"
)

// tracer writes to trace with key 'gazetteer'
func tracer() tracing.Trace {
	return tracing.Select("gazetteer")
}

// DefaultAnnotationType is used for lists which do not name an annotation type.
const DefaultAnnotationType = "Lookup"

// maxDefFields is the number of fields of a .def line.
const maxDefFields = 5

// Format is the dialect of a configuration file.
type Format int

const (
	Def     Format = iota // colon separated lines
	DefYAML               // YAML document
)

func (f Format) String() string {
	if f == DefYAML {
		return ".defyaml"
	}
	return ".def"
}

// ErrBadExtension is returned for configuration files which are neither
// .def nor .defyaml files.
var ErrBadExtension = errors.New("configuration must have extension .def or .defyaml")

// FormatOf selects the dialect for a configuration path or URL.
func FormatOf(name string) (Format, error) {
	switch path.Ext(name) {
	case ".def":
		return Def, nil
	case ".defyaml":
		return DefYAML, nil
	}
	return Def, fmt.Errorf("%s: %w", name, ErrBadExtension)
}

// ConfigError reports a malformed configuration, with file and line.
type ConfigError struct {
	File string
	Line int
	Msg  string
}

func (e *ConfigError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s: %s", e.File, e.Msg)
	}
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// ListSpec describes one list file of a configuration.
type ListSpec struct {
	File           string `yaml:"file" validate:"required"`
	MajorType      string `yaml:"majorType"`
	MinorType      string `yaml:"minorType"`
	Languages      string `yaml:"languages"`
	AnnotationType string `yaml:"annotationType"` // DefaultAnnotationType if empty
	// Separator overrides the feature separator for this list. It is
	// given in escaped form, e.g. `\t`.
	Separator string `yaml:"featureSeparator"`
	// Extra holds further list features as interleaved name/value pairs.
	Extra []string `yaml:"-"`
	// Line is the line in the configuration where the list is declared.
	Line int `yaml:"-"`
}

// Config is a parsed gazetteer configuration.
type Config struct {
	Lists     []ListSpec
	CacheDir  string // empty: next to the configuration
	CacheFile string // empty: derived from the configuration name
}

// Parse reads a configuration in the dialect selected by the extension
// of name.
func Parse(r io.Reader, name string) (*Config, error) {
	format, err := FormatOf(name)
	if err != nil {
		return nil, err
	}
	if format == DefYAML {
		return ParseYAML(r, name)
	}
	lists, err := ParseDef(r, name)
	if err != nil {
		return nil, err
	}
	return &Config{Lists: lists}, nil
}

// ParseDef reads a flat configuration. Fields are trimmed, and trailing
// empty fields are ignored. Blank lines are skipped with a warning.
func ParseDef(r io.Reader, name string) ([]ListSpec, error) {
	var lists []ListSpec
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		fields := strings.Split(scanner.Text(), ":")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		for len(fields) > 0 && fields[len(fields)-1] == "" {
			fields = fields[:len(fields)-1]
		}
		if len(fields) == 0 {
			tracer().Infof("%s:%d: empty line in configuration", name, lineno)
			continue
		}
		if len(fields) > maxDefFields {
			return nil, &ConfigError{File: name, Line: lineno,
				Msg: fmt.Sprintf("line has more than %d fields", maxDefFields)}
		}
		if fields[0] == "" {
			return nil, &ConfigError{File: name, Line: lineno, Msg: "missing list file name"}
		}
		fields = append(fields, make([]string, maxDefFields-len(fields))...)
		spec := ListSpec{
			File:           fields[0],
			MajorType:      fields[1],
			MinorType:      fields[2],
			Languages:      fields[3],
			AnnotationType: fields[4],
			Line:           lineno,
		}
		if spec.AnnotationType == "" {
			spec.AnnotationType = DefaultAnnotationType
		}
		lists = append(lists, spec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return lists, nil
}
