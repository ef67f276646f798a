package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"max size", func(c *Config) { c.QueueMaxSize = 0 }, "queue-max-size must be positive"},
		{"sizer", func(c *Config) { c.QueueSizer = "weight" }, "queue-sizer must be"},
		{"recent ratio", func(c *Config) { c.QueueRecentRatio = 1.5 }, "queue-recent-ratio must be in"},
		{"log read ratio", func(c *Config) { c.QueueLogReadRatio = 0 }, "queue-log-read-ratio must be in"},
		{"start", func(c *Config) { c.QueueStart = "latest" }, "queue-start must be"},
		{"store path", func(c *Config) { c.StorePath = "" }, "store-path must not be empty"},
		{"read batch", func(c *Config) { c.StoreReadBatch = 0 }, "store-read-batch must be positive"},
		{"store type", func(c *Config) { c.StoreType = "bolt" }, "store-type must be wal or pebble"},
		{"chunk size", func(c *Config) { c.WALChunkSize = -1 }, "wal-chunk-size must be positive"},
		{"compression", func(c *Config) { c.WALCompression = "brotli" }, "wal-compression is invalid"},
		{"sync mode", func(c *Config) { c.WALSyncMode = "sometimes" }, "wal-sync-mode must be"},
		{"pebble fsync", func(c *Config) { c.StoreType = StorePebble; c.PebbleFsync = "maybe" }, "pebble-fsync is invalid"},
		{"watermark", func(c *Config) { c.WatermarkSource = "etcd" }, "watermark-source must be"},
		{"redis key", func(c *Config) { c.WatermarkSource = WatermarkRedis; c.RedisKey = "" }, "redis-key is required"},
		{"workers", func(c *Config) { c.ExecutorWorkers = 0 }, "executor-workers must be positive"},
		{"backlog", func(c *Config) { c.ExecutorBacklog = -3 }, "executor-backlog must be positive"},
		{"poll", func(c *Config) { c.RelayPollInterval = 0 }, "relay-poll-interval must be positive"},
		{"retries", func(c *Config) { c.RelaySinkRetries = -1 }, "relay-sink-retries must not be negative"},
		{"line size", func(c *Config) { c.RelayMaxLineSize = 0 }, "relay-max-line-size must be positive"},
		{"telemetry", func(c *Config) { c.TelemetryEndpoint = "x:1"; c.TelemetryProtocol = "udp" }, "telemetry-protocol must be"},
		{"memory", func(c *Config) { c.MemoryLimitRatio = 2 }, "memory-limit-ratio must be between"},
		{"profile", func(c *Config) { c.Profile = "turbo" }, "profile must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QueueMaxSize = 0
	cfg.StoreReadBatch = 0
	cfg.ExecutorWorkers = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	if !strings.HasPrefix(msg, validationPrefix) {
		t.Errorf("unexpected prefix: %q", msg)
	}
	if n := strings.Count(msg, "\n  - "); n != 3 {
		t.Errorf("got %d items, want 3: %s", n, msg)
	}
}

func TestValidate_WALOptionsIgnoredForPebble(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StoreType = StorePebble
	cfg.WALSyncMode = "bogus"
	if err := cfg.Validate(); err != nil {
		t.Errorf("wal options should not be checked for pebble: %v", err)
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logrelay.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func issueFields(res *ValidationResult, sev ValidationSeverity) map[string]bool {
	out := make(map[string]bool)
	for _, is := range res.Issues {
		if is.Severity == sev {
			out[is.Field] = true
		}
	}
	return out
}

func TestValidateFile(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		res := ValidateFile(writeFile(t, "queue:\n  max_size: 100\n"))
		if !res.Valid {
			t.Fatalf("expected valid, got %+v", res.Issues)
		}
	})

	t.Run("errors by field", func(t *testing.T) {
		res := ValidateFile(writeFile(t, "queue:\n  sizer: weight\nstore:\n  type: bolt\n"))
		if res.Valid {
			t.Fatal("expected invalid")
		}
		errs := issueFields(res, SeverityError)
		if !errs["queue-sizer"] || !errs["store-type"] {
			t.Errorf("error fields = %v", errs)
		}
	})

	t.Run("profile warnings", func(t *testing.T) {
		res := ValidateFile(writeFile(t, "profile: minimal\n"))
		if !res.Valid {
			t.Fatalf("expected valid, got %+v", res.Issues)
		}
		if !issueFields(res, SeverityWarning)["store.wal.sync_mode"] {
			t.Errorf("minimal profile should warn about async syncs: %+v", res.Issues)
		}
	})

	t.Run("truncate with late start", func(t *testing.T) {
		res := ValidateFile(writeFile(t, "queue:\n  start: end\nrelay:\n  truncate: true\n"))
		if !issueFields(res, SeverityWarning)["relay.truncate"] {
			t.Errorf("expected truncate warning: %+v", res.Issues)
		}
	})

	t.Run("parse error", func(t *testing.T) {
		res := ValidateFile(writeFile(t, "queue: [\n"))
		if res.Valid || !issueFields(res, SeverityError)["yaml"] {
			t.Errorf("expected yaml error: %+v", res)
		}
	})

	t.Run("missing", func(t *testing.T) {
		res := ValidateFile(filepath.Join(t.TempDir(), "nope.yaml"))
		if res.Valid || !issueFields(res, SeverityError)["file"] {
			t.Errorf("expected file error: %+v", res)
		}
	})

	t.Run("directory", func(t *testing.T) {
		res := ValidateFile(t.TempDir())
		if res.Valid {
			t.Error("directory should be invalid")
		}
	})
}

func TestValidationResult_JSON(t *testing.T) {
	res := ValidateFile(writeFile(t, "executor:\n  workers: 4\n"))
	var decoded ValidationResult
	if err := json.Unmarshal([]byte(res.JSON()), &decoded); err != nil {
		t.Fatalf("JSON output should decode: %v", err)
	}
	if !decoded.Valid {
		t.Error("warnings alone should keep the file valid")
	}
	if !issueFields(&decoded, SeverityWarning)["executor.workers"] {
		t.Errorf("expected workers warning: %+v", decoded.Issues)
	}
}

func TestParseValidationError(t *testing.T) {
	tests := []struct {
		in        string
		wantField string
	}{
		{"queue-max-size must be positive, got 0", "queue-max-size"},
		{"redis-key is required for the redis watermark", "redis-key"},
		{"something odd happened", "config"},
	}
	for _, tt := range tests {
		field, msg := parseValidationError(tt.in)
		if field != tt.wantField {
			t.Errorf("field(%q) = %q, want %q", tt.in, field, tt.wantField)
		}
		if msg != tt.in {
			t.Errorf("message = %q, want %q", msg, tt.in)
		}
	}
}
