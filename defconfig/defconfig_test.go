package defconfig

import (
	"errors"
	"strings"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/stretchr/testify/require"
)

func TestFormatOf(t *testing.T) {
	f, err := FormatOf("/a/b/t.def")
	require.NoError(t, err)
	require.Equal(t, Def, f)
	f, err = FormatOf("https://example.org/x/t.defyaml")
	require.NoError(t, err)
	require.Equal(t, DefYAML, f)
	_, err = FormatOf("t.lst")
	require.ErrorIs(t, err, ErrBadExtension)
}

func TestParseDef(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "gazetteer")
	defer teardown()
	//
	src := "lst1.lst:Type:Sub::Lookup\n\n  cities.lst : location : city \n::\nx.lst:a:b:en,de:Place:\n"
	lists, err := ParseDef(strings.NewReader(src), "t.def")
	require.NoError(t, err)
	require.Len(t, lists, 3)
	require.Equal(t, ListSpec{File: "lst1.lst", MajorType: "Type", MinorType: "Sub",
		AnnotationType: "Lookup", Line: 1}, lists[0])
	require.Equal(t, ListSpec{File: "cities.lst", MajorType: "location", MinorType: "city",
		AnnotationType: DefaultAnnotationType, Line: 3}, lists[1])
	require.Equal(t, "en,de", lists[2].Languages)
	require.Equal(t, "Place", lists[2].AnnotationType)
}

func TestParseDefErrors(t *testing.T) {
	tests := []struct {
		name, src string
		line      int
	}{
		{"too many fields", "a.lst:b\nl.lst:1:2:3:4:5\n", 2},
		{"missing file", ":major:minor\n", 1},
	}
	for _, tt := range tests {
		_, err := ParseDef(strings.NewReader(tt.src), "t.def")
		var cerr *ConfigError
		require.True(t, errors.As(err, &cerr), tt.name)
		require.Equal(t, "t.def", cerr.File, tt.name)
		require.Equal(t, tt.line, cerr.Line, tt.name)
	}
}

func TestParseYAMLMapping(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "gazetteer")
	defer teardown()
	//
	src := `
cacheDir: /tmp/gazcache
chacheFile: old.gazbin
listFiles:
  - file: cities.lst
    majorType: location
    minorType: city
    languages: [en, de]
    featureSeparator: '\t'
    population: large
  - plain.lst
`
	c, err := ParseYAML(strings.NewReader(src), "t.defyaml")
	require.NoError(t, err)
	require.Equal(t, "/tmp/gazcache", c.CacheDir)
	require.Equal(t, "old.gazbin", c.CacheFile)
	require.Len(t, c.Lists, 2)
	cities := c.Lists[0]
	require.Equal(t, "cities.lst", cities.File)
	require.Equal(t, "en,de", cities.Languages)
	require.Equal(t, `\t`, cities.Separator)
	require.Equal(t, DefaultAnnotationType, cities.AnnotationType)
	require.Equal(t, []string{"population", "large"}, cities.Extra)
	require.Equal(t, 5, cities.Line)
	require.Equal(t, "plain.lst", c.Lists[1].File)
}

func TestParseYAMLCacheFileWins(t *testing.T) {
	src := "cacheFile: new.gazbin\nchacheFile: old.gazbin\nlistFiles: [a.lst]\n"
	c, err := ParseYAML(strings.NewReader(src), "t.defyaml")
	require.NoError(t, err)
	require.Equal(t, "new.gazbin", c.CacheFile)
}

func TestParseYAMLSequence(t *testing.T) {
	src := "- file: a.lst\n  annotationType: Place\n- file: b.lst.gz\n"
	c, err := Parse(strings.NewReader(src), "dir/t.defyaml")
	require.NoError(t, err)
	require.Len(t, c.Lists, 2)
	require.Equal(t, "Place", c.Lists[0].AnnotationType)
	require.Equal(t, "b.lst.gz", c.Lists[1].File)
	require.Empty(t, c.CacheDir)
}

func TestParseYAMLEmptyAnnotationType(t *testing.T) {
	src := "- file: a.lst\n  annotationType: \"\"\n- file: b.lst\n  annotationType: \" \"\n"
	c, err := Parse(strings.NewReader(src), "t.defyaml")
	require.NoError(t, err)
	require.Len(t, c.Lists, 2)
	for _, spec := range c.Lists {
		require.Equal(t, DefaultAnnotationType, spec.AnnotationType, spec.File)
	}
	flat, err := Parse(strings.NewReader("a.lst::::\n"), "t.def")
	require.NoError(t, err)
	require.Equal(t, flat.Lists[0].AnnotationType, c.Lists[0].AnnotationType)
}

func TestParseYAMLErrors(t *testing.T) {
	tests := []struct {
		name, src string
		line      int
	}{
		{"missing file", "listFiles:\n  - majorType: x\n", 2},
		{"nested value", "- file: a.lst\n  majorType: {a: b}\n", 2},
		{"no lists", "cacheDir: /tmp\n", 1},
		{"scalar document", "hello\n", 1},
		{"bad entry", "- [a, b]\n", 1},
	}
	for _, tt := range tests {
		_, err := ParseYAML(strings.NewReader(tt.src), "t.defyaml")
		var cerr *ConfigError
		require.True(t, errors.As(err, &cerr), "%s: %v", tt.name, err)
		require.Equal(t, tt.line, cerr.Line, tt.name)
	}
	_, err := ParseYAML(strings.NewReader(""), "t.defyaml")
	require.Error(t, err)
}
