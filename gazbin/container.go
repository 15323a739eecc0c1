package gazbin

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"golang.org/x/exp/mmap"
)

// Magic identifies gazetteer cache files.
const Magic = "GAZB"

// Version is the current cache format version. Files written with any other
// version are rejected by Decode.
const Version uint16 = 1

// Header layout (little endian):
//
//	magic    [4]byte
//	version  uint16
//	codec    uint8
//	reserved uint8
//	rawLen   uint64  length of the uncompressed body
//	storeLen uint64  length of the stored (possibly compressed) body
//	checksum uint32  CRC32 (IEEE) of the stored body
const HeaderSize = 4 + 2 + 1 + 1 + 8 + 8 + 4

// ErrCacheFormat is wrapped by every error caused by a cache file which is
// not readable by this version of the package.
var ErrCacheFormat = errors.New("gazbin: invalid cache format")

// Codec selects the compression of the cache body.
type Codec uint8

const (
	CodecNone Codec = iota
	CodecZstd
	CodecLZ4
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecZstd:
		return "zstd"
	case CodecLZ4:
		return "lz4"
	}
	return fmt.Sprintf("codec(%d)", uint8(c))
}

// ParseCodec maps a codec name to a Codec. The empty string selects CodecNone.
func ParseCodec(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return CodecNone, nil
	case "zstd":
		return CodecZstd, nil
	case "lz4":
		return CodecLZ4, nil
	}
	return CodecNone, fmt.Errorf("gazbin: unknown codec %q", name)
}

type header struct {
	codec    Codec
	rawLen   uint64
	storeLen uint64
	checksum uint32
}

func (h header) marshal() []byte {
	b := make([]byte, HeaderSize)
	copy(b[0:4], Magic)
	binary.LittleEndian.PutUint16(b[4:6], Version)
	b[6] = byte(h.codec)
	binary.LittleEndian.PutUint64(b[8:16], h.rawLen)
	binary.LittleEndian.PutUint64(b[16:24], h.storeLen)
	binary.LittleEndian.PutUint32(b[24:28], h.checksum)
	return b
}

func parseHeader(b []byte) (header, error) {
	var h header
	if len(b) < HeaderSize {
		return h, fmt.Errorf("%w: short header (%d bytes)", ErrCacheFormat, len(b))
	}
	if string(b[0:4]) != Magic {
		return h, fmt.Errorf("%w: bad magic %q", ErrCacheFormat, b[0:4])
	}
	if v := binary.LittleEndian.Uint16(b[4:6]); v != Version {
		return h, fmt.Errorf("%w: version %d, expected %d", ErrCacheFormat, v, Version)
	}
	h.codec = Codec(b[6])
	if h.codec > CodecLZ4 {
		return h, fmt.Errorf("%w: unknown codec %d", ErrCacheFormat, b[6])
	}
	if b[7] != 0 {
		return h, fmt.Errorf("%w: reserved header byte is 0x%02x", ErrCacheFormat, b[7])
	}
	h.rawLen = binary.LittleEndian.Uint64(b[8:16])
	h.storeLen = binary.LittleEndian.Uint64(b[16:24])
	h.checksum = binary.LittleEndian.Uint32(b[24:28])
	return h, nil
}

func compress(body []byte, codec Codec) ([]byte, error) {
	switch codec {
	case CodecNone:
		return body, nil
	case CodecZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(body, make([]byte, 0, len(body)/2)), nil
	case CodecLZ4:
		var buf bytes.Buffer
		zw := lz4.NewWriter(&buf)
		if _, err := zw.Write(body); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("gazbin: unknown codec %d", codec)
}

func decompress(stored []byte, h header) ([]byte, error) {
	var body []byte
	var err error
	switch h.codec {
	case CodecNone:
		body = stored
	case CodecZstd:
		var dec *zstd.Decoder
		if dec, err = zstd.NewReader(nil); err != nil {
			return nil, err
		}
		defer dec.Close()
		body, err = dec.DecodeAll(stored, make([]byte, 0, h.rawLen))
	case CodecLZ4:
		body, err = io.ReadAll(lz4.NewReader(bytes.NewReader(stored)))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s body: %v", ErrCacheFormat, h.codec, err)
	}
	if uint64(len(body)) != h.rawLen {
		return nil, fmt.Errorf("%w: body has %d bytes, header says %d", ErrCacheFormat, len(body), h.rawLen)
	}
	return body, nil
}

// Write writes body as a complete cache image to w, compressed with codec.
// It returns the number of bytes written.
func Write(w io.Writer, body []byte, codec Codec) (int64, error) {
	stored, err := compress(body, codec)
	if err != nil {
		return 0, err
	}
	h := header{
		codec:    codec,
		rawLen:   uint64(len(body)),
		storeLen: uint64(len(stored)),
		checksum: crc32.ChecksumIEEE(stored),
	}
	n, err := w.Write(h.marshal())
	if err != nil {
		return int64(n), err
	}
	m, err := w.Write(stored)
	return int64(n + m), err
}

// Decode validates a complete cache image and returns its uncompressed body.
func Decode(image []byte) ([]byte, error) {
	h, err := parseHeader(image)
	if err != nil {
		return nil, err
	}
	stored := image[HeaderSize:]
	if uint64(len(stored)) != h.storeLen {
		return nil, fmt.Errorf("%w: stored body has %d bytes, header says %d",
			ErrCacheFormat, len(stored), h.storeLen)
	}
	if sum := crc32.ChecksumIEEE(stored); sum != h.checksum {
		return nil, fmt.Errorf("%w: checksum mismatch (0x%08x != 0x%08x)", ErrCacheFormat, sum, h.checksum)
	}
	return decompress(stored, h)
}

// Read reads a complete cache image from r and returns its body.
func Read(r io.Reader) ([]byte, error) {
	image, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Decode(image)
}

// WriteFile writes a cache image to path. It refuses to replace an existing
// file; a partially written file is removed.
func WriteFile(path string, body []byte, codec Codec) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	_, err = Write(f, body, codec)
	return err
}

// ReadFile memory-maps the cache file at path, validates it, and returns
// its body. The header is checked before the body is touched, so files of
// a foreign version cost a single small read.
func ReadFile(path string) ([]byte, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	hdr := make([]byte, HeaderSize)
	if r.Len() < HeaderSize {
		return nil, fmt.Errorf("%w: file too short (%d bytes)", ErrCacheFormat, r.Len())
	}
	if _, err = r.ReadAt(hdr, 0); err != nil {
		return nil, err
	}
	h, err := parseHeader(hdr)
	if err != nil {
		return nil, err
	}
	if uint64(r.Len()-HeaderSize) != h.storeLen {
		return nil, fmt.Errorf("%w: stored body has %d bytes, header says %d",
			ErrCacheFormat, r.Len()-HeaderSize, h.storeLen)
	}
	stored := make([]byte, h.storeLen)
	if _, err = r.ReadAt(stored, HeaderSize); err != nil && err != io.EOF {
		return nil, err
	}
	if sum := crc32.ChecksumIEEE(stored); sum != h.checksum {
		return nil, fmt.Errorf("%w: checksum mismatch (0x%08x != 0x%08x)", ErrCacheFormat, sum, h.checksum)
	}
	return decompress(stored, h)
}
