/*
Package gazbin implements the container format of gazetteer cache files.

A cache file consists of a fixed-size header followed by a body. The header
carries a magic number, the format version, the compression codec, body
lengths and a CRC32 checksum of the stored body. The body itself is an
opaque sequence of varint-encoded sections, written and read through
Encoder and Decoder by the packages owning the respective data structures.

Any mismatch between a file and the running format version is reported
as an error wrapping ErrCacheFormat. Callers are expected to treat such
errors as a reason to rebuild, never as fatal.
*/
package gazbin
