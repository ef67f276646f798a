package pebblelog

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func openTestStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	if cfg.Dir == "" {
		cfg.Dir = t.TempDir()
	}
	s, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func payloads(from, n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte(fmt.Sprintf("entry-%d", from+i))
	}
	return out
}

func TestParseFsyncMode(t *testing.T) {
	tests := []struct {
		in      string
		want    FsyncMode
		wantErr bool
	}{
		{"", FsyncInterval, false},
		{"always", FsyncAlways, false},
		{" NEVER ", FsyncNever, false},
		{"interval", FsyncInterval, false},
		{"sometimes", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFsyncMode(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestAppendAndRead(t *testing.T) {
	s := openTestStore(t, Config{Fsync: FsyncNever})
	ctx := context.Background()

	recs, err := s.Append(payloads(0, 3)...)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, uint64(2), recs[2].Seq)
	assert.Equal(t, uint64(3), s.LastSeq())

	_, err = s.Append(payloads(3, 2)...)
	require.NoError(t, err)

	got, err := s.ReadLogs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i, r := range got {
		assert.Equal(t, uint64(i+1), r.Seq)
		assert.Equal(t, fmt.Sprintf("entry-%d", i+1), string(r.Payload))
	}

	got, err = s.ReadLogs(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadBatchLimit(t *testing.T) {
	s := openTestStore(t, Config{ReadBatch: 3})
	_, err := s.Append(payloads(0, 10)...)
	require.NoError(t, err)

	got, err := s.ReadLogs(context.Background(), 4)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, uint64(4), got[0].Seq)
	assert.Equal(t, uint64(6), got[2].Seq)
}

func TestReopenKeepsPositions(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(Config{Dir: dir, StartSeq: 50, Fsync: FsyncAlways})
	require.NoError(t, err)
	_, err = s.Append(payloads(0, 5)...)
	require.NoError(t, err)
	_, err = s.TruncateBefore(52)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(Config{Dir: dir})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, uint64(52), s.FirstSeq())
	assert.Equal(t, uint64(55), s.LastSeq())

	recs, err := s.Append([]byte("next"))
	require.NoError(t, err)
	assert.Equal(t, uint64(55), recs[0].Seq)

	got, err := s.ReadLogs(context.Background(), 52)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestTruncateBefore(t *testing.T) {
	s := openTestStore(t, Config{})
	_, err := s.Append(payloads(0, 10)...)
	require.NoError(t, err)

	n, err := s.TruncateBefore(4)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, uint64(4), s.FirstSeq())

	_, err = s.ReadLogs(context.Background(), 2)
	assert.ErrorIs(t, err, ErrSeqNotFound)

	n, err = s.TruncateBefore(3)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.TruncateBefore(1000)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, uint64(10), s.FirstSeq())

	got, err := s.ReadLogs(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClosedStore(t *testing.T) {
	s, err := Open(Config{Dir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Append([]byte("x"))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.ReadLogs(context.Background(), 0)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.TruncateBefore(1)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Sync(), ErrClosed)
}

func TestOpenRequiresDir(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestLeakCheck_Store(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s, err := Open(Config{Dir: t.TempDir()})
	require.NoError(t, err)
	_, err = s.Append(payloads(0, 3)...)
	require.NoError(t, err)
	require.NoError(t, s.Sync())
	require.NoError(t, s.Close())
}
