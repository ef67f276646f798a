package compression

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/klauspost/compress/zstd"
)

// maxPoolBufSize is the largest buffer returned to the pool; bigger ones are
// left to the GC so one huge chunk does not pin memory.
const maxPoolBufSize = 4 << 20

var (
	compressionPoolGets     atomic.Int64
	compressionPoolPuts     atomic.Int64
	compressionPoolDiscards atomic.Int64
	compressionPoolNews     atomic.Int64
	bufferPoolGets          atomic.Int64
	bufferPoolPuts          atomic.Int64
	bufferActive            atomic.Int64
)

var bufferPool = sync.Pool{
	New: func() any { return bytes.NewBuffer(make([]byte, 0, 32*1024)) },
}

// GetBuffer returns an empty buffer from the pool.
func GetBuffer() *bytes.Buffer {
	bufferPoolGets.Add(1)
	bufferActive.Add(1)
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// ReleaseBuffer returns buf to the pool. buf must not be used afterwards.
func ReleaseBuffer(buf *bytes.Buffer) {
	bufferActive.Add(-1)
	if buf.Cap() > maxPoolBufSize {
		compressionPoolDiscards.Add(1)
		return
	}
	bufferPoolPuts.Add(1)
	bufferPool.Put(buf)
}

// One encoder pool per zstd level; decoders are level independent.
var (
	zstdEncoderPools sync.Map // zstd.EncoderLevel -> *sync.Pool
	zstdDecoderPool  sync.Pool
)

func zstdEncoderPool(level zstd.EncoderLevel) *sync.Pool {
	if p, ok := zstdEncoderPools.Load(level); ok {
		return p.(*sync.Pool)
	}
	p, _ := zstdEncoderPools.LoadOrStore(level, &sync.Pool{
		New: func() any {
			compressionPoolNews.Add(1)
			enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
			if err != nil {
				return nil
			}
			return enc
		},
	})
	return p.(*sync.Pool)
}

func compressZstd(data []byte, level Level) []byte {
	pool := zstdEncoderPool(zstdEncoderLevel(level))
	compressionPoolGets.Add(1)
	enc, _ := pool.Get().(*zstd.Encoder)
	if enc == nil {
		// Options are static, so NewWriter cannot fail here in practice.
		enc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstdEncoderLevel(level)))
		out := enc.EncodeAll(data, nil)
		enc.Close()
		compressionPoolDiscards.Add(1)
		return out
	}
	out := enc.EncodeAll(data, make([]byte, 0, len(data)/2+64))
	pool.Put(enc)
	compressionPoolPuts.Add(1)
	return out
}

func decompressZstd(data []byte) ([]byte, error) {
	compressionPoolGets.Add(1)
	dec, _ := zstdDecoderPool.Get().(*zstd.Decoder)
	if dec == nil {
		compressionPoolNews.Add(1)
		var err error
		dec, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
	}
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		// A decoder that failed mid-frame is dropped rather than reused.
		dec.Close()
		compressionPoolDiscards.Add(1)
		return nil, fmt.Errorf("failed to decode zstd data: %w", err)
	}
	zstdDecoderPool.Put(dec)
	compressionPoolPuts.Add(1)
	return out, nil
}

// Stats is a snapshot of pool counters.
type Stats struct {
	CompressionPoolGets     int64
	CompressionPoolPuts     int64
	CompressionPoolDiscards int64
	CompressionPoolNews     int64
	BufferPoolGets          int64
	BufferPoolPuts          int64
	BuffersActive           int64
}

// PoolStats returns the current pool counters.
func PoolStats() Stats {
	return Stats{
		CompressionPoolGets:     compressionPoolGets.Load(),
		CompressionPoolPuts:     compressionPoolPuts.Load(),
		CompressionPoolDiscards: compressionPoolDiscards.Load(),
		CompressionPoolNews:     compressionPoolNews.Load(),
		BufferPoolGets:          bufferPoolGets.Load(),
		BufferPoolPuts:          bufferPoolPuts.Load(),
		BuffersActive:           bufferActive.Load(),
	}
}

// ResetPoolStats zeroes the pool counters. Intended for tests.
func ResetPoolStats() {
	compressionPoolGets.Store(0)
	compressionPoolPuts.Store(0)
	compressionPoolDiscards.Store(0)
	compressionPoolNews.Store(0)
	bufferPoolGets.Store(0)
	bufferPoolPuts.Store(0)
	bufferActive.Store(0)
}
