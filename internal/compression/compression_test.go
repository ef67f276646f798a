package compression

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		input    string
		expected Type
		wantErr  bool
	}{
		{"", TypeNone, false},
		{"none", TypeNone, false},
		{"gzip", TypeGzip, false},
		{"GZIP", TypeGzip, false},
		{"zstd", TypeZstd, false},
		{"snappy", TypeSnappy, false},
		{" s2 ", TypeS2, false},
		{"zlib", TypeZlib, false},
		{"deflate", TypeDeflate, false},
		{"lz4", TypeNone, true},
		{"unknown", TypeNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseType(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseType(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.expected {
				t.Errorf("ParseType(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCompressDecompress(t *testing.T) {
	payload := []byte(strings.Repeat(`{"seq":1,"msg":"log line payload"}`+"\n", 200))

	tests := []struct {
		name string
		cfg  Config
	}{
		{"none", Config{Type: TypeNone}},
		{"gzip", Config{Type: TypeGzip}},
		{"gzip best", Config{Type: TypeGzip, Level: LevelBest}},
		{"zstd", Config{Type: TypeZstd}},
		{"zstd fastest", Config{Type: TypeZstd, Level: ZstdSpeedFastest}},
		{"zstd best", Config{Type: TypeZstd, Level: ZstdSpeedBestCompression}},
		{"snappy", Config{Type: TypeSnappy}},
		{"s2", Config{Type: TypeS2}},
		{"s2 best", Config{Type: TypeS2, Level: LevelBest}},
		{"zlib", Config{Type: TypeZlib}},
		{"deflate", Config{Type: TypeDeflate, Level: LevelFastest}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compressed, err := Compress(payload, tt.cfg)
			if err != nil {
				t.Fatalf("Compress() error = %v", err)
			}
			if tt.cfg.Type != TypeNone && len(compressed) >= len(payload) {
				t.Errorf("compressed %d bytes to %d", len(payload), len(compressed))
			}

			got, err := Decompress(compressed, tt.cfg.Type)
			if err != nil {
				t.Fatalf("Decompress() error = %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Error("round trip mismatch")
			}
		})
	}
}

func TestCompress_EmptyInput(t *testing.T) {
	for _, typ := range []Type{TypeGzip, TypeZstd, TypeSnappy, TypeS2, TypeZlib, TypeDeflate} {
		t.Run(string(typ), func(t *testing.T) {
			compressed, err := Compress(nil, Config{Type: typ})
			if err != nil {
				t.Fatalf("Compress() error = %v", err)
			}
			got, err := Decompress(compressed, typ)
			if err != nil {
				t.Fatalf("Decompress() error = %v", err)
			}
			if len(got) != 0 {
				t.Errorf("expected empty output, got %d bytes", len(got))
			}
		})
	}
}

func TestSnappyReadableAsS2(t *testing.T) {
	payload := []byte(strings.Repeat("abc", 1000))
	compressed, _ := Compress(payload, Config{Type: TypeSnappy})
	got, err := Decompress(compressed, TypeS2)
	if err != nil || !bytes.Equal(got, payload) {
		t.Fatalf("snappy block not readable as s2: %v", err)
	}
}

func TestDecompress_Corrupt(t *testing.T) {
	garbage := []byte("definitely not compressed data")
	for _, typ := range []Type{TypeGzip, TypeZstd, TypeSnappy, TypeZlib} {
		t.Run(string(typ), func(t *testing.T) {
			if _, err := Decompress(garbage, typ); err == nil {
				t.Error("expected error for corrupt input")
			}
		})
	}
}

func TestUnsupportedType(t *testing.T) {
	if _, err := Compress([]byte("x"), Config{Type: "lz4"}); err == nil {
		t.Error("expected error compressing with unsupported type")
	}
	if _, err := Decompress([]byte("x"), "lz4"); err == nil {
		t.Error("expected error decompressing with unsupported type")
	}
}

func TestBufferPool(t *testing.T) {
	ResetPoolStats()

	buf := GetBuffer()
	buf.WriteString("data")
	ReleaseBuffer(buf)

	big := GetBuffer()
	big.Grow(maxPoolBufSize + 1)
	ReleaseBuffer(big)

	stats := PoolStats()
	if stats.BufferPoolGets != 2 || stats.BufferPoolPuts != 1 {
		t.Errorf("gets=%d puts=%d", stats.BufferPoolGets, stats.BufferPoolPuts)
	}
	if stats.CompressionPoolDiscards != 1 {
		t.Errorf("expected oversized buffer discarded, discards=%d", stats.CompressionPoolDiscards)
	}
	if stats.BuffersActive != 0 {
		t.Errorf("active buffers = %d", stats.BuffersActive)
	}

	next := GetBuffer()
	defer ReleaseBuffer(next)
	if next.Len() != 0 {
		t.Error("pooled buffer not reset")
	}
}

var errMismatch = errors.New("round trip mismatch")

func TestConcurrentZstd(t *testing.T) {
	payload := []byte(strings.Repeat("concurrent zstd payload ", 500))

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				c, err := Compress(payload, Config{Type: TypeZstd})
				if err != nil {
					errs <- err
					return
				}
				d, err := Decompress(c, TypeZstd)
				if err != nil {
					errs <- err
					return
				}
				if !bytes.Equal(d, payload) {
					errs <- errMismatch
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent round trip failed: %v", err)
	}
}
