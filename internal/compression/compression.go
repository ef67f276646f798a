// Package compression provides block compression for log store chunks.
package compression

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// Type represents a compression algorithm.
type Type string

const (
	// TypeNone means no compression.
	TypeNone Type = "none"
	// TypeGzip uses gzip compression.
	TypeGzip Type = "gzip"
	// TypeZstd uses zstd compression.
	TypeZstd Type = "zstd"
	// TypeSnappy uses the snappy block format, encoded with s2.
	TypeSnappy Type = "snappy"
	// TypeS2 uses the s2 block format.
	TypeS2 Type = "s2"
	// TypeZlib uses zlib compression.
	TypeZlib Type = "zlib"
	// TypeDeflate uses raw deflate compression.
	TypeDeflate Type = "deflate"
)

// Level represents compression level settings.
type Level int

// Common compression levels (algorithm-specific mappings).
const (
	// LevelDefault uses the default compression level for the algorithm.
	LevelDefault Level = 0
	// LevelFastest uses the fastest compression (lowest ratio).
	LevelFastest Level = 1
	// LevelBest uses the best compression (highest ratio).
	LevelBest Level = 9
)

// zstd levels
const (
	ZstdSpeedFastest           Level = 1
	ZstdSpeedDefault           Level = 3
	ZstdSpeedBetterCompression Level = 6
	ZstdSpeedBestCompression   Level = 11
)

// Config holds compression configuration.
type Config struct {
	// Type is the compression algorithm to use.
	Type Type
	// Level is the compression level (algorithm-specific).
	Level Level
}

// ParseType parses a compression type string.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return TypeNone, nil
	case "gzip":
		return TypeGzip, nil
	case "zstd":
		return TypeZstd, nil
	case "snappy":
		return TypeSnappy, nil
	case "s2":
		return TypeS2, nil
	case "zlib":
		return TypeZlib, nil
	case "deflate":
		return TypeDeflate, nil
	default:
		return TypeNone, fmt.Errorf("unsupported compression type: %s", s)
	}
}

// Compress compresses data using the specified compression type and level.
// TypeNone returns data unchanged.
func Compress(data []byte, cfg Config) ([]byte, error) {
	switch cfg.Type {
	case TypeNone, "":
		return data, nil
	case TypeSnappy:
		return s2.EncodeSnappy(nil, data), nil
	case TypeS2:
		if cfg.Level >= LevelBest {
			return s2.EncodeBest(nil, data), nil
		}
		return s2.Encode(nil, data), nil
	case TypeZstd:
		return compressZstd(data, cfg.Level), nil
	}

	buf := GetBuffer()
	defer ReleaseBuffer(buf)

	var err error
	switch cfg.Type {
	case TypeGzip:
		err = compressGzip(buf, data, cfg.Level)
	case TypeZlib:
		err = compressZlib(buf, data, cfg.Level)
	case TypeDeflate:
		err = compressDeflate(buf, data, cfg.Level)
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

// Decompress decompresses data using the specified compression type.
func Decompress(data []byte, compressionType Type) ([]byte, error) {
	switch compressionType {
	case TypeNone, "":
		return data, nil
	case TypeSnappy, TypeS2:
		// s2.Decode reads both the snappy and s2 block formats.
		return s2.Decode(nil, data)
	case TypeZstd:
		return decompressZstd(data)
	case TypeGzip:
		return decompressGzip(data)
	case TypeZlib:
		return decompressZlib(data)
	case TypeDeflate:
		return decompressDeflate(data)
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", compressionType)
	}
}

func compressGzip(w io.Writer, data []byte, level Level) error {
	gzLevel := gzip.DefaultCompression
	if level != LevelDefault {
		gzLevel = int(level)
	}
	gw, err := gzip.NewWriterLevel(w, gzLevel)
	if err != nil {
		return fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if _, err := gw.Write(data); err != nil {
		return fmt.Errorf("failed to write gzip data: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return nil
}

func decompressGzip(data []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gr.Close()
	return io.ReadAll(gr)
}

func compressZlib(w io.Writer, data []byte, level Level) error {
	zlibLevel := zlib.DefaultCompression
	if level != LevelDefault {
		zlibLevel = int(level)
	}
	zw, err := zlib.NewWriterLevel(w, zlibLevel)
	if err != nil {
		return fmt.Errorf("failed to create zlib writer: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		return fmt.Errorf("failed to write zlib data: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to close zlib writer: %w", err)
	}
	return nil
}

func decompressZlib(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create zlib reader: %w", err)
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func compressDeflate(w io.Writer, data []byte, level Level) error {
	deflateLevel := flate.DefaultCompression
	if level != LevelDefault {
		deflateLevel = int(level)
	}
	fw, err := flate.NewWriter(w, deflateLevel)
	if err != nil {
		return fmt.Errorf("failed to create deflate writer: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("failed to write deflate data: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to close deflate writer: %w", err)
	}
	return nil
}

func decompressDeflate(data []byte) ([]byte, error) {
	fr := flate.NewReader(bytes.NewReader(data))
	defer fr.Close()
	return io.ReadAll(fr)
}

func zstdEncoderLevel(level Level) zstd.EncoderLevel {
	switch level {
	case ZstdSpeedFastest:
		return zstd.SpeedFastest
	case ZstdSpeedBetterCompression:
		return zstd.SpeedBetterCompression
	case ZstdSpeedBestCompression:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}
