package defconfig

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// ParseYAML reads a structured configuration.
func ParseYAML(r io.Reader, name string) (*Config, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ConfigError{File: name, Msg: "empty configuration"}
		}
		return nil, &ConfigError{File: name, Msg: err.Error()}
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	c := &Config{}
	var lists *yaml.Node
	switch root.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(root.Content); i += 2 {
			key, value := root.Content[i], root.Content[i+1]
			switch key.Value {
			case "cacheDir":
				if err := scalar(name, key.Value, value, &c.CacheDir); err != nil {
					return nil, err
				}
			case "cacheFile":
				if err := scalar(name, key.Value, value, &c.CacheFile); err != nil {
					return nil, err
				}
			case "chacheFile":
				tracer().Infof("%s:%d: key 'chacheFile' is deprecated, use 'cacheFile'", name, key.Line)
				if c.CacheFile != "" {
					continue
				}
				if err := scalar(name, key.Value, value, &c.CacheFile); err != nil {
					return nil, err
				}
			case "listFiles":
				lists = value
			default:
				tracer().Infof("%s:%d: ignoring unknown key %q", name, key.Line, key.Value)
			}
		}
		if lists == nil {
			return nil, &ConfigError{File: name, Line: root.Line, Msg: "no listFiles in configuration"}
		}
	case yaml.SequenceNode:
		lists = root
	default:
		return nil, &ConfigError{File: name, Line: root.Line,
			Msg: "configuration must be a mapping or a sequence of list entries"}
	}
	if lists.Kind != yaml.SequenceNode {
		return nil, &ConfigError{File: name, Line: lists.Line, Msg: "listFiles must be a sequence"}
	}
	for _, entry := range lists.Content {
		spec, err := listEntry(name, entry)
		if err != nil {
			return nil, err
		}
		c.Lists = append(c.Lists, spec)
	}
	return c, nil
}

// listEntry converts a sequence element into a ListSpec. Elements are either
// mappings or plain scalars naming the list file.
func listEntry(name string, entry *yaml.Node) (ListSpec, error) {
	spec := ListSpec{Line: entry.Line}
	switch entry.Kind {
	case yaml.ScalarNode:
		spec.File = strings.TrimSpace(entry.Value)
	case yaml.MappingNode:
		for i := 0; i+1 < len(entry.Content); i += 2 {
			key, value := entry.Content[i], entry.Content[i+1]
			var v string
			if err := scalar(name, key.Value, value, &v); err != nil {
				return spec, err
			}
			switch key.Value {
			case "file":
				spec.File = strings.TrimSpace(v)
			case "majorType":
				spec.MajorType = v
			case "minorType":
				spec.MinorType = v
			case "languages":
				spec.Languages = v
			case "annotationType":
				spec.AnnotationType = strings.TrimSpace(v)
			case "featureSeparator":
				spec.Separator = v
			default:
				spec.Extra = append(spec.Extra, key.Value, v)
			}
		}
	default:
		return spec, &ConfigError{File: name, Line: entry.Line, Msg: "list entry must be a mapping or a file name"}
	}
	if spec.AnnotationType == "" {
		spec.AnnotationType = DefaultAnnotationType
	}
	if err := validate.Struct(spec); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return spec, &ConfigError{File: name, Line: entry.Line,
				Msg: fmt.Sprintf("list entry: field %q failed on %q", verrs[0].Field(), verrs[0].Tag())}
		}
		return spec, &ConfigError{File: name, Line: entry.Line, Msg: err.Error()}
	}
	return spec, nil
}

// scalar decodes a scalar value node. Sequences of scalars are joined by
// commas, e.g. for multiple languages.
func scalar(name, key string, value *yaml.Node, v *string) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*v = value.Value
		return nil
	case yaml.SequenceNode:
		parts := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode {
				break
			}
			parts = append(parts, item.Value)
		}
		if len(parts) == len(value.Content) {
			*v = strings.Join(parts, ",")
			return nil
		}
	}
	return &ConfigError{File: name, Line: value.Line, Msg: fmt.Sprintf("value of %q must be a scalar", key)}
}
