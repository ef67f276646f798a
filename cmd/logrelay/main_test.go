package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/szibis/logrelay/internal/config"
	"github.com/szibis/logrelay/internal/queue"
	"github.com/szibis/logrelay/internal/record"
	"github.com/szibis/logrelay/internal/relay"
)

func testConfig(t *testing.T, lines int) *config.Config {
	t.Helper()
	dir := t.TempDir()

	var b strings.Builder
	for i := 0; i < lines; i++ {
		fmt.Fprintf(&b, "event-%d\n", i)
	}
	in := filepath.Join(dir, "in.log")
	if err := os.WriteFile(in, []byte(b.String()), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.QueueName = t.Name()
	cfg.StorePath = filepath.Join(dir, "store")
	cfg.InputPath = in
	cfg.OutputPath = filepath.Join(dir, "out.jsonl")
	cfg.ListenAddr = ""
	cfg.RelayPollInterval = 5 * time.Millisecond
	cfg.WALSyncMode = "async"
	return cfg
}

func readOutput(t *testing.T, path string) []relay.Line {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var out []relay.Line
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var l relay.Line
		if err := json.Unmarshal(sc.Bytes(), &l); err != nil {
			t.Fatalf("bad output line %q: %v", sc.Text(), err)
		}
		out = append(out, l)
	}
	if err := sc.Err(); err != nil {
		t.Fatal(err)
	}
	return out
}

func runWithTimeout(t *testing.T, cfg *config.Config) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := run(ctx, cfg); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("run() only stopped at the deadline")
	}
}

func assertLines(t *testing.T, got []relay.Line, from, n int) {
	t.Helper()
	if len(got) != n {
		t.Fatalf("got %d output lines, want %d", len(got), n)
	}
	for i, l := range got {
		seq := from + i
		if l.Seq != uint64(seq) {
			t.Fatalf("line %d seq = %d, want %d", i, l.Seq, seq)
		}
		if want := fmt.Sprintf("event-%d", seq); l.Payload != want {
			t.Fatalf("line %d payload = %q, want %q", i, l.Payload, want)
		}
	}
}

func TestRun_RelaysInputInOrder(t *testing.T) {
	for _, tc := range []struct {
		name      string
		store     string
		watermark string
		sizer     string
	}{
		{"wal atomic", config.StoreWAL, config.WatermarkAtomic, "count"},
		{"wal log", config.StoreWAL, config.WatermarkLog, "bytes"},
		{"pebble atomic", config.StorePebble, config.WatermarkAtomic, "encoded"},
		{"pebble log", config.StorePebble, config.WatermarkLog, "range"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t, 200)
			cfg.StoreType = tc.store
			cfg.WatermarkSource = tc.watermark
			cfg.QueueSizer = tc.sizer
			// Small enough that most records replay from the store.
			cfg.QueueMaxSize = 16
			cfg.StoreReadBatch = 8

			runWithTimeout(t, cfg)
			assertLines(t, readOutput(t, cfg.OutputPath), 0, 200)
		})
	}
}

func TestRun_RestartResumesFromStart(t *testing.T) {
	cfg := testConfig(t, 50)
	runWithTimeout(t, cfg)

	// Second run over the same store with an empty input: start=end
	// delivers nothing, start=first replays the whole history.
	empty := filepath.Join(t.TempDir(), "empty.log")
	if err := os.WriteFile(empty, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	cfg.InputPath = empty
	cfg.QueueStart = config.StartEnd
	cfg.OutputPath = filepath.Join(t.TempDir(), "end.jsonl")
	runWithTimeout(t, cfg)
	if got := readOutput(t, cfg.OutputPath); len(got) != 0 {
		t.Errorf("start=end delivered %d lines", len(got))
	}

	cfg.QueueStart = "20"
	cfg.OutputPath = filepath.Join(t.TempDir(), "from20.jsonl")
	runWithTimeout(t, cfg)
	assertLines(t, readOutput(t, cfg.OutputPath), 20, 30)
}

func TestRun_TruncatesDelivered(t *testing.T) {
	cfg := testConfig(t, 40)
	cfg.StoreType = config.StorePebble
	cfg.RelayTruncate = true
	runWithTimeout(t, cfg)

	store, err := openStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if store.FirstSeq() != 40 || store.LastSeq() != 40 {
		t.Errorf("store bounds = [%d, %d), want [40, 40)", store.FirstSeq(), store.LastSeq())
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	cfg := testConfig(t, 0)
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()
	// A pipe with no writer activity keeps the input open.
	cfg.InputPath = fmt.Sprintf("/dev/fd/%d", r.Fd())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run() did not stop after cancel")
	}
}

func TestRun_BadInput(t *testing.T) {
	cfg := testConfig(t, 0)
	cfg.InputPath = filepath.Join(t.TempDir(), "missing.log")
	if err := run(context.Background(), cfg); err == nil {
		t.Fatal("missing input should fail")
	}
}

func TestNewSizer(t *testing.T) {
	rec := record.Record{Seq: 5, Count: 3, Payload: []byte("abcd")}
	tests := []struct {
		kind string
		want int64
	}{
		{"", 1},
		{"count", 1},
		{"range", 3},
		{"bytes", record.BytesSizer{}.Size(rec)},
		{"encoded", record.EncodedSizer{}.Size(rec)},
	}
	for _, tt := range tests {
		s, err := newSizer(tt.kind)
		if err != nil {
			t.Fatalf("newSizer(%q): %v", tt.kind, err)
		}
		if got := s.Size(rec); got != tt.want {
			t.Errorf("newSizer(%q).Size = %d, want %d", tt.kind, got, tt.want)
		}
	}
	if _, err := newSizer("weight"); err == nil {
		t.Error("unknown sizer should fail")
	}
	var _ queue.Sizer[record.Record] = record.BytesSizer{}
}

func TestNewWatermark(t *testing.T) {
	cfg := testConfig(t, 0)
	store, err := openStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if _, err := store.Append([]byte("a"), []byte("b")); err != nil {
		t.Fatal(err)
	}

	cfg.WatermarkSource = config.WatermarkAtomic
	src, mark, release, err := newWatermark(context.Background(), cfg, store)
	if err != nil {
		t.Fatal(err)
	}
	defer release()
	if mark == nil {
		t.Fatal("atomic watermark should advance")
	}
	if hw, _ := src.HighWater(); hw != 2 {
		t.Errorf("atomic high water = %d, want 2", hw)
	}

	cfg.WatermarkSource = config.WatermarkLog
	src, mark, release2, err := newWatermark(context.Background(), cfg, store)
	if err != nil {
		t.Fatal(err)
	}
	defer release2()
	if mark != nil {
		t.Error("log watermark needs no advancer")
	}
	if hw, _ := src.HighWater(); hw != 2 {
		t.Errorf("log high water = %d, want 2", hw)
	}
}

func TestOpenOutputAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out")
	for i := 0; i < 2; i++ {
		w, err := openOutput(path)
		if err != nil {
			t.Fatal(err)
		}
		fmt.Fprintln(w, "x")
		w.Close()
	}
	data, _ := os.ReadFile(path)
	if string(data) != "x\nx\n" {
		t.Errorf("output = %q", data)
	}
}
