package listfile

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// IsRemote reports whether src denotes an http or https resource.
func IsRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// LocalPath returns the file system path of a local source, stripping a
// "file://" scheme. For remote sources it returns "" and false.
func LocalPath(src string) (string, bool) {
	if IsRemote(src) {
		return "", false
	}
	if strings.HasPrefix(src, "file://") {
		u, err := url.Parse(src)
		if err != nil {
			return strings.TrimPrefix(src, "file://"), true
		}
		return filepath.FromSlash(u.Path), true
	}
	return src, true
}

// Resolve resolves a list reference relative to the location of the
// configuration it appears in. Absolute references and URLs are returned
// unchanged.
func Resolve(config, ref string) string {
	if IsRemote(ref) || strings.HasPrefix(ref, "file://") {
		return ref
	}
	if IsRemote(config) {
		base, err := url.Parse(config)
		if err != nil {
			return ref
		}
		r, err := url.Parse(ref)
		if err != nil {
			return ref
		}
		return base.ResolveReference(r).String()
	}
	if filepath.IsAbs(ref) {
		return ref
	}
	if strings.HasPrefix(config, "file://") {
		return "file://" + path.Join(path.Dir(strings.TrimPrefix(config, "file://")), filepath.ToSlash(ref))
	}
	return filepath.Join(filepath.Dir(config), ref)
}

// Open opens a list or configuration source for reading. Sources ending in
// ".gz" are decompressed, and a leading UTF-8 or UTF-16 byte order mark is
// removed. Callers must close the result.
func Open(src string) (io.ReadCloser, error) {
	raw, err := openRaw(src)
	if err != nil {
		return nil, err
	}
	s := &source{closers: []io.Closer{raw}}
	var r io.Reader = raw
	if strings.HasSuffix(strings.ToLower(src), ".gz") {
		zr, err := gzip.NewReader(raw)
		if err != nil {
			raw.Close()
			return nil, fmt.Errorf("%s: %w", src, err)
		}
		s.closers = append(s.closers, zr)
		r = zr
	}
	s.Reader = transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	return s, nil
}

func openRaw(src string) (io.ReadCloser, error) {
	if p, ok := LocalPath(src); ok {
		return os.Open(p)
	}
	resp, err := http.Get(src)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%s: %s", src, resp.Status)
	}
	return resp.Body, nil
}

// source chains a decoding reader with the closers of its underlying streams.
type source struct {
	io.Reader
	closers []io.Closer
}

func (s *source) Close() error {
	var err error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if cerr := s.closers[i].Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
