package gazetteer

import (
	"bytes"
	"testing"

	"github.com/npillmayer/gazetteer/gazbin"
	"github.com/npillmayer/schuko/schukonf/testconfig"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

// codecOf reads the codec from the header of a cache image.
func codecOf(image []byte) gazbin.Codec {
	return gazbin.Codec(image[len(gazbin.Magic)+2])
}

func TestConfiguredCodec(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "gazetteer")
	defer teardown()
	defer Configure(nil)
	//
	store := sampleStore(t)
	var buf bytes.Buffer
	if _, err := store.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	if c := codecOf(buf.Bytes()); c != gazbin.CodecNone {
		t.Errorf("expected uncompressed cache by default, got %s", c)
	}
	Configure(testconfig.Conf{CodecKey: "zstd"})
	buf.Reset()
	if _, err := store.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	if c := codecOf(buf.Bytes()); c != gazbin.CodecZstd {
		t.Errorf("expected zstd, got %s", c)
	}
	if (Config{Codec: "lz4"}).codec() != gazbin.CodecLZ4 {
		t.Errorf("explicit codec must win over configuration")
	}
	Configure(testconfig.Conf{CodecKey: "snappy"})
	if c := defaultCodec(); c != gazbin.CodecNone {
		t.Errorf("expected fallback to none for unknown codec, got %s", c)
	}
}

func TestProfiling(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "gazetteer")
	defer teardown()
	defer Configure(nil)
	//
	t.Setenv(ProfileEnv, "")
	if profiling() {
		t.Errorf("profiling must be off by default")
	}
	Configure(testconfig.Conf{ProfileKey: "true"})
	if !profiling() {
		t.Errorf("expected profiling to be switched on by configuration")
	}
	Configure(nil)
	t.Setenv(ProfileEnv, "1")
	if !profiling() {
		t.Errorf("expected profiling to be switched on by environment")
	}
	_, def := minimalDef(t)
	if _, err := Build(Config{Path: def}); err != nil {
		t.Fatal(err)
	}
}
