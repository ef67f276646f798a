package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the YAML configuration file structure.
type YAMLConfig struct {
	Profile  string `yaml:"profile"`
	LogLevel string `yaml:"log_level"`

	Queue     QueueYAMLConfig     `yaml:"queue"`
	Store     StoreYAMLConfig     `yaml:"store"`
	Watermark WatermarkYAMLConfig `yaml:"watermark"`
	Executor  ExecutorYAMLConfig  `yaml:"executor"`
	Relay     RelayYAMLConfig     `yaml:"relay"`
	Server    ServerYAMLConfig    `yaml:"server"`
	Telemetry TelemetryYAMLConfig `yaml:"telemetry"`
	Memory    MemoryYAMLConfig    `yaml:"memory"`
}

// QueueYAMLConfig holds in-memory queue settings.
type QueueYAMLConfig struct {
	Name         string  `yaml:"name"`
	MaxSize      int64   `yaml:"max_size"`
	Sizer        string  `yaml:"sizer"`          // count, bytes, encoded, range
	RecentRatio  float64 `yaml:"recent_ratio"`   // share of max_size for out-of-order offers
	LogReadRatio float64 `yaml:"log_read_ratio"` // catch-up fill threshold
	Start        string  `yaml:"start"`          // first, end or a sequence number
}

// StoreYAMLConfig holds log store settings.
type StoreYAMLConfig struct {
	Type      string           `yaml:"type"` // wal or pebble
	Path      string           `yaml:"path"`
	StartSeq  uint64           `yaml:"start_seq"`
	ReadBatch int              `yaml:"read_batch"`
	WAL       WALYAMLConfig    `yaml:"wal"`
	Pebble    PebbleYAMLConfig `yaml:"pebble"`
}

// WALYAMLConfig holds chunked WAL settings.
type WALYAMLConfig struct {
	ChunkSize       ByteSize `yaml:"chunk_size"`
	WriteBufferSize ByteSize `yaml:"write_buffer_size"`
	Compression     string   `yaml:"compression"`
	SyncMode        string   `yaml:"sync_mode"` // immediate, batched, async
	SyncBatchSize   int      `yaml:"sync_batch_size"`
	SyncInterval    Duration `yaml:"sync_interval"`
}

// PebbleYAMLConfig holds Pebble store settings.
type PebbleYAMLConfig struct {
	Fsync         string   `yaml:"fsync"` // always, interval, never
	FsyncInterval Duration `yaml:"fsync_interval"`
}

// WatermarkYAMLConfig holds high-water mark settings.
type WatermarkYAMLConfig struct {
	Source string          `yaml:"source"` // atomic, log, redis
	Redis  RedisYAMLConfig `yaml:"redis"`
}

// RedisYAMLConfig holds the redis watermark connection.
type RedisYAMLConfig struct {
	Addr         string   `yaml:"addr"`
	Password     string   `yaml:"password"`
	DB           int      `yaml:"db"`
	Key          string   `yaml:"key"`
	PollInterval Duration `yaml:"poll_interval"`
}

// ExecutorYAMLConfig holds catch-up worker pool settings.
type ExecutorYAMLConfig struct {
	Workers int `yaml:"workers"`
	Backlog int `yaml:"backlog"`
}

// RelayYAMLConfig holds relay settings.
type RelayYAMLConfig struct {
	Input        string   `yaml:"input"`
	Output       string   `yaml:"output"`
	PollInterval Duration `yaml:"poll_interval"`
	SinkRetries  int      `yaml:"sink_retries"`
	Truncate     *bool    `yaml:"truncate"`
	MaxLineSize  ByteSize `yaml:"max_line_size"`
}

// ServerYAMLConfig holds the HTTP endpoint settings.
type ServerYAMLConfig struct {
	Address         string   `yaml:"address"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// TelemetryYAMLConfig holds OTLP self-monitoring telemetry configuration.
type TelemetryYAMLConfig struct {
	Endpoint        string            `yaml:"endpoint"`         // OTLP endpoint (empty = disabled)
	Protocol        string            `yaml:"protocol"`         // "grpc" or "http" (default: "grpc")
	Insecure        *bool             `yaml:"insecure"`         // Use insecure connection (default: true)
	Timeout         Duration          `yaml:"timeout"`          // Per-export timeout (0 = SDK default 10s)
	PushInterval    Duration          `yaml:"push_interval"`    // Metric push interval (default: 30s)
	Compression     string            `yaml:"compression"`      // "gzip" or "" (default: "")
	ShutdownTimeout Duration          `yaml:"shutdown_timeout"` // Shutdown grace period (default: 5s)
	Headers         map[string]string `yaml:"headers"`          // Custom headers (auth, etc.)
}

// MemoryYAMLConfig holds memory limit configuration.
type MemoryYAMLConfig struct {
	// LimitRatio is the ratio of container memory to use for GOMEMLIMIT (0.0-1.0)
	LimitRatio float64 `yaml:"limit_ratio"`
}

// Duration is a wrapper for time.Duration that supports YAML unmarshaling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	duration, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// ByteSize is a wrapper for int64 that supports human-readable YAML values.
// Accepted formats: raw integer (bytes), or suffixed: Ki, Mi, Gi, Ti.
type ByteSize int64

// UnmarshalYAML implements yaml.Unmarshaler for ByteSize.
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	var n int64
	if err := value.Decode(&n); err == nil {
		*b = ByteSize(n)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseByteSize(s)
	if err != nil {
		return err
	}
	*b = ByteSize(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for ByteSize.
func (b ByteSize) MarshalYAML() (interface{}, error) {
	return FormatByteSize(int64(b)), nil
}

var byteSuffixes = []struct {
	name string
	mult int64
}{
	{"Ti", 1 << 40},
	{"Gi", 1 << 30},
	{"Mi", 1 << 20},
	{"Ki", 1 << 10},
}

// ParseByteSize parses a human-readable byte size string.
// Accepted suffixes: Ki, Mi, Gi, Ti. Plain integers are treated as bytes.
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	for _, sf := range byteSuffixes {
		if strings.HasSuffix(s, sf.name) {
			numStr := strings.TrimSpace(strings.TrimSuffix(s, sf.name))
			// Support float values like "1.5Gi"
			var f float64
			if _, err := fmt.Sscanf(numStr, "%f", &f); err != nil {
				return 0, fmt.Errorf("invalid byte size: %q", s)
			}
			return int64(f * float64(sf.mult)), nil
		}
	}
	// Reject strings with non-numeric trailing characters (e.g. "256MB")
	var n int64
	var trail string
	if _, err := fmt.Sscanf(s, "%d%s", &n, &trail); err == nil && trail != "" {
		return 0, fmt.Errorf("invalid byte size: %q (use Ki, Mi, Gi, or Ti suffixes)", s)
	}
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}
	return n, nil
}

// FormatByteSize formats bytes as a human-readable string with binary suffix.
func FormatByteSize(b int64) string {
	for _, sf := range byteSuffixes {
		if b >= sf.mult && b%sf.mult == 0 {
			return fmt.Sprintf("%d%s", b/sf.mult, sf.name)
		}
	}
	return fmt.Sprintf("%d", b)
}

// LoadYAML loads configuration from a YAML file.
func LoadYAML(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseYAML(data)
}

// ParseYAML parses YAML configuration from bytes. Unknown keys are errors.
func ParseYAML(data []byte) (*YAMLConfig, error) {
	cfg := &YAMLConfig{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

// ToConfig converts the YAML file into a Config overlay. Fields absent
// from the file keep their zero value; mergeYAMLIntoConfig skips them.
func (y *YAMLConfig) ToConfig() *Config {
	cfg := &Config{
		Profile:  y.Profile,
		LogLevel: y.LogLevel,

		QueueName:         y.Queue.Name,
		QueueMaxSize:      y.Queue.MaxSize,
		QueueSizer:        y.Queue.Sizer,
		QueueRecentRatio:  y.Queue.RecentRatio,
		QueueLogReadRatio: y.Queue.LogReadRatio,
		QueueStart:        y.Queue.Start,

		StoreType:           y.Store.Type,
		StorePath:           y.Store.Path,
		StoreStartSeq:       y.Store.StartSeq,
		StoreReadBatch:      y.Store.ReadBatch,
		WALChunkSize:        int64(y.Store.WAL.ChunkSize),
		WALWriteBufferSize:  int(y.Store.WAL.WriteBufferSize),
		WALCompression:      y.Store.WAL.Compression,
		WALSyncMode:         y.Store.WAL.SyncMode,
		WALSyncBatchSize:    y.Store.WAL.SyncBatchSize,
		WALSyncInterval:     time.Duration(y.Store.WAL.SyncInterval),
		PebbleFsync:         y.Store.Pebble.Fsync,
		PebbleFsyncInterval: time.Duration(y.Store.Pebble.FsyncInterval),

		WatermarkSource:   y.Watermark.Source,
		RedisAddr:         y.Watermark.Redis.Addr,
		RedisPassword:     y.Watermark.Redis.Password,
		RedisDB:           y.Watermark.Redis.DB,
		RedisKey:          y.Watermark.Redis.Key,
		RedisPollInterval: time.Duration(y.Watermark.Redis.PollInterval),

		ExecutorWorkers: y.Executor.Workers,
		ExecutorBacklog: y.Executor.Backlog,

		InputPath:         y.Relay.Input,
		OutputPath:        y.Relay.Output,
		RelayPollInterval: time.Duration(y.Relay.PollInterval),
		RelaySinkRetries:  y.Relay.SinkRetries,
		RelayMaxLineSize:  int64(y.Relay.MaxLineSize),

		ListenAddr:      y.Server.Address,
		ShutdownTimeout: time.Duration(y.Server.ShutdownTimeout),

		TelemetryEndpoint:        y.Telemetry.Endpoint,
		TelemetryProtocol:        y.Telemetry.Protocol,
		TelemetryTimeout:         time.Duration(y.Telemetry.Timeout),
		TelemetryPushInterval:    time.Duration(y.Telemetry.PushInterval),
		TelemetryCompression:     y.Telemetry.Compression,
		TelemetryHeaders:         headersMapToString(y.Telemetry.Headers),
		TelemetryShutdownTimeout: time.Duration(y.Telemetry.ShutdownTimeout),

		MemoryLimitRatio: y.Memory.LimitRatio,
	}
	if y.Relay.Truncate != nil {
		cfg.RelayTruncate = *y.Relay.Truncate
	}
	if y.Telemetry.Insecure != nil {
		cfg.TelemetryInsecure = *y.Telemetry.Insecure
	}
	return cfg
}

// headersMapToString converts headers to the "k1=v1,k2=v2" flag format,
// sorted by key.
func headersMapToString(headers map[string]string) string {
	if len(headers) == 0 {
		return ""
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+headers[k])
	}
	return strings.Join(pairs, ",")
}
