// Package source reads collision files from disk, transparently
// decompressing gzip, zstd and lz4-framed dumps.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies the container a file was stored in.
type Codec uint8

const (
	CodecNone Codec = iota
	CodecGzip
	CodecZstd
	CodecLZ4
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecGzip:
		return "gzip"
	case CodecZstd:
		return "zstd"
	case CodecLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("Codec(%d)", uint8(c))
	}
}

// DefaultMaxSize caps decompressed output. Stage collision files are a few
// megabytes at most.
const DefaultMaxSize = 256 << 20

// ErrTooLarge is returned when decompressed data exceeds the size cap.
var ErrTooLarge = errors.New("decompressed data exceeds size limit")

var (
	magicGzip = []byte{0x1F, 0x8B}
	magicZstd = []byte{0x28, 0xB5, 0x2F, 0xFD}
	magicLZ4  = []byte{0x04, 0x22, 0x4D, 0x18}
)

// compressedExts are stripped by Stem.
var compressedExts = map[string]Codec{
	".gz":  CodecGzip,
	".zst": CodecZstd,
	".lz4": CodecLZ4,
}

// Detect sniffs the codec from leading magic bytes.
func Detect(data []byte) Codec {
	switch {
	case bytes.HasPrefix(data, magicGzip):
		return CodecGzip
	case bytes.HasPrefix(data, magicZstd):
		return CodecZstd
	case bytes.HasPrefix(data, magicLZ4):
		return CodecLZ4
	default:
		return CodecNone
	}
}

// Decode returns data with any recognised compression removed. Raw KCL,
// DZB and PLC files never start with one of the sniffed magics, so
// uncompressed input is returned unchanged.
func Decode(data []byte, maxSize int64) ([]byte, Codec, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	codec := Detect(data)
	var r io.Reader
	switch codec {
	case CodecNone:
		return data, codec, nil
	case CodecGzip:
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, codec, fmt.Errorf("gzip header: %w", err)
		}
		defer zr.Close()
		r = zr
	case CodecZstd:
		dec, err := zstd.NewReader(bytes.NewReader(data), zstd.WithDecoderMaxMemory(uint64(maxSize)))
		if err != nil {
			return nil, codec, fmt.Errorf("zstd reader: %w", err)
		}
		defer dec.Close()
		r = dec
	case CodecLZ4:
		r = lz4.NewReader(bytes.NewReader(data))
	}

	out, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, codec, fmt.Errorf("%s decode: %w", codec, err)
	}
	if int64(len(out)) > maxSize {
		return nil, codec, fmt.Errorf("%s: %w (%d bytes)", codec, ErrTooLarge, maxSize)
	}
	return out, codec, nil
}

// ReadFile reads path and decompresses it if needed.
func ReadFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data, _, err := Decode(raw, DefaultMaxSize)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}

// Stem returns the file name without directory, compression suffix and
// format extension: "rooms/r00.kcl.zst" -> "r00".
func Stem(path string) string {
	name := filepath.Base(path)
	if _, ok := compressedExts[strings.ToLower(filepath.Ext(name))]; ok {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Ext returns the lower-cased format extension, ignoring a compression
// suffix: "r00.KCL.gz" -> ".kcl".
func Ext(path string) string {
	name := filepath.Base(path)
	if _, ok := compressedExts[strings.ToLower(filepath.Ext(name))]; ok {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	return strings.ToLower(filepath.Ext(name))
}
