package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	defaultLogger.mu.Lock()
	original := defaultLogger.output
	defaultLogger.mu.Unlock()
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(original)
		SetLevel(LevelInfo)
	})
	return &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var entries []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("failed to unmarshal log entry %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestF(t *testing.T) {
	tests := []struct {
		name     string
		keyvals  []interface{}
		expected map[string]interface{}
	}{
		{
			name:     "single pair",
			keyvals:  []interface{}{"key", "value"},
			expected: map[string]interface{}{"key": "value"},
		},
		{
			name:     "multiple pairs",
			keyvals:  []interface{}{"key1", "val1", "key2", 123, "key3", true},
			expected: map[string]interface{}{"key1": "val1", "key2": 123, "key3": true},
		},
		{
			name:     "odd number of args (last ignored)",
			keyvals:  []interface{}{"key1", "val1", "key2"},
			expected: map[string]interface{}{"key1": "val1"},
		},
		{
			name:     "non-string key (ignored)",
			keyvals:  []interface{}{123, "value", "realkey", "realvalue"},
			expected: map[string]interface{}{"realkey": "realvalue"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := F(tt.keyvals...)
			for k, v := range tt.expected {
				if result[k] != v {
					t.Errorf("F() key '%s' = %v, expected %v", k, result[k], v)
				}
			}
			if len(result) != len(tt.expected) {
				t.Errorf("F() returned %d fields, expected %d", len(result), len(tt.expected))
			}
		})
	}
}

func TestLevels(t *testing.T) {
	buf := captureOutput(t)

	Info("info message", F("key", "value"))
	Warn("warn message")
	Error("error message", F("error_code", 500))

	entries := decodeLines(t, buf)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	want := []struct {
		text   string
		number int
	}{{"INFO", 9}, {"WARN", 13}, {"ERROR", 17}}
	for i, w := range want {
		if entries[i].SeverityText != w.text {
			t.Errorf("entry %d: expected SeverityText %s, got %s", i, w.text, entries[i].SeverityText)
		}
		if entries[i].SeverityNumber != w.number {
			t.Errorf("entry %d: expected SeverityNumber %d, got %d", i, w.number, entries[i].SeverityNumber)
		}
	}
	if entries[0].Attributes["key"] != "value" {
		t.Errorf("expected attribute key='value', got '%v'", entries[0].Attributes["key"])
	}
}

func TestDebugFilteredByDefault(t *testing.T) {
	buf := captureOutput(t)

	Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug to be filtered at INFO, got %q", buf.String())
	}

	SetLevel(LevelDebug)
	Debug("visible", F("n", 1))
	entries := decodeLines(t, buf)
	if len(entries) != 1 || entries[0].SeverityNumber != 5 {
		t.Fatalf("expected one DEBUG entry, got %+v", entries)
	}
}

func TestSetLevelWarnDropsInfo(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelWarn)

	Info("dropped")
	Warn("kept")

	entries := decodeLines(t, buf)
	if len(entries) != 1 || entries[0].Body != "kept" {
		t.Fatalf("expected only the WARN entry, got %+v", entries)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		" error ": LevelError,
		"fatal":   LevelFatal,
		"bogus":   LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestResourceIncluded(t *testing.T) {
	buf := captureOutput(t)
	SetResource(map[string]string{"service.name": "logrelay"})
	defer SetResource(nil)

	Info("with resource")

	entries := decodeLines(t, buf)
	if entries[0].Resource["service.name"] != "logrelay" {
		t.Errorf("expected resource service.name=logrelay, got %v", entries[0].Resource)
	}
}

func TestHookCalled(t *testing.T) {
	captureOutput(t)

	var mu sync.Mutex
	var got []string
	SetHook(func(level Level, msg string, attrs map[string]interface{}) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, string(level)+":"+msg)
	})
	defer SetHook(nil)

	Info("one")
	Error("two")

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != "INFO:one" || got[1] != "ERROR:two" {
		t.Fatalf("unexpected hook calls: %v", got)
	}
}

func TestComponentMergesAttributes(t *testing.T) {
	buf := captureOutput(t)

	c := With("component", "queue", "queue", "q1")
	c.Info("accepted", F("seq", 10))
	c.With("component", "catchup").Warn("lagging")

	entries := decodeLines(t, buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Attributes["component"] != "queue" || entries[0].Attributes["queue"] != "q1" {
		t.Errorf("bound attributes missing: %v", entries[0].Attributes)
	}
	if entries[0].Attributes["seq"] != float64(10) {
		t.Errorf("call attributes missing: %v", entries[0].Attributes)
	}
	if entries[1].Attributes["component"] != "catchup" {
		t.Errorf("override not applied: %v", entries[1].Attributes)
	}
}

func TestConcurrentLogging(t *testing.T) {
	buf := captureOutput(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				Info("concurrent", F("writer", id, "n", j))
			}
		}(i)
	}
	wg.Wait()

	if got := len(decodeLines(t, buf)); got != 400 {
		t.Fatalf("expected 400 well-formed lines, got %d", got)
	}
}
