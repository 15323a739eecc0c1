package gazetteer

import (
	"fmt"
	"os"
	"sync"

	"github.com/npillmayer/gazetteer/gazbin"
	"github.com/npillmayer/schuko"
)

// Config selects a gazetteer: its configuration file together with the
// parameters the compiled store depends on.
type Config struct {
	Path          string // path or URL of a .def or .defyaml file
	CaseSensitive bool
	Language      string // case conversion language, default "en"
	Separator     string // escaped feature separator, default TAB
	Codec         string // cache codec; empty selects the configured default
}

func (c Config) language() string {
	if c.Language == "" {
		return DefaultLanguage
	}
	return c.Language
}

// key identifies a store in a registry.
func (c Config) key() string {
	return fmt.Sprintf("cs=%t url=%s lang=%s", c.CaseSensitive, c.Path, c.language())
}

func (c Config) codec() gazbin.Codec {
	if c.Codec == "" {
		return defaultCodec()
	}
	codec, err := gazbin.ParseCodec(c.Codec)
	if err != nil {
		tracer().Errorf("%v, writing cache uncompressed", err)
		return gazbin.CodecNone
	}
	return codec
}

// Configuration keys read by this package.
const (
	ProfileKey = "gazetteer.profile"     // bool: trace build time, memory and statistics
	CodecKey   = "gazetteer.cache.codec" // string: none, zstd or lz4
)

// ProfileEnv is an environment variable which, if set to a non-empty value,
// turns on profiling of store builds.
const ProfileEnv = "GAZETTEER_PROFILE"

var (
	confMu sync.RWMutex
	conf   schuko.Configuration
)

// Configure installs the application configuration this package reads its
// settings from. Passing nil restores the defaults.
func Configure(c schuko.Configuration) {
	confMu.Lock()
	defer confMu.Unlock()
	conf = c
}

func configuration() schuko.Configuration {
	confMu.RLock()
	defer confMu.RUnlock()
	return conf
}

func profiling() bool {
	if os.Getenv(ProfileEnv) != "" {
		return true
	}
	c := configuration()
	return c != nil && c.GetBool(ProfileKey)
}

func defaultCodec() gazbin.Codec {
	c := configuration()
	if c == nil || !c.IsSet(CodecKey) {
		return gazbin.CodecNone
	}
	codec, err := gazbin.ParseCodec(c.GetString(CodecKey))
	if err != nil {
		tracer().Errorf("configuration key %s: %v", CodecKey, err)
		return gazbin.CodecNone
	}
	return codec
}
