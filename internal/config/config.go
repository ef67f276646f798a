package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/szibis/logrelay/internal/compression"
	"github.com/szibis/logrelay/internal/executor"
	"github.com/szibis/logrelay/internal/pebblelog"
	"github.com/szibis/logrelay/internal/queue"
	"github.com/szibis/logrelay/internal/relay"
	"github.com/szibis/logrelay/internal/telemetry"
	"github.com/szibis/logrelay/internal/wal"
)

// version is set at build time via ldflags
var version = "dev"

// GetVersion returns the build version.
func GetVersion() string { return version }

// Store types.
const (
	StoreWAL    = "wal"
	StorePebble = "pebble"
)

// Watermark sources.
const (
	WatermarkAtomic = "atomic"
	WatermarkLog    = "log"
	WatermarkRedis  = "redis"
)

// Queue start positions besides a literal sequence number.
const (
	StartFirst = "first"
	StartEnd   = "end"
)

// Config holds the application configuration.
type Config struct {
	ConfigFile string
	Profile    string
	LogLevel   string

	// Queue
	QueueName         string
	QueueMaxSize      int64
	QueueSizer        string // count, bytes, encoded or range
	QueueRecentRatio  float64
	QueueLogReadRatio float64
	QueueStart        string // first, end or a sequence number

	// Log store
	StoreType           string
	StorePath           string
	StoreStartSeq       uint64
	StoreReadBatch      int
	WALChunkSize        int64
	WALWriteBufferSize  int
	WALCompression      string
	WALSyncMode         string
	WALSyncBatchSize    int
	WALSyncInterval     time.Duration
	PebbleFsync         string
	PebbleFsyncInterval time.Duration

	// Watermark
	WatermarkSource   string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	RedisKey          string
	RedisPollInterval time.Duration

	// Executor
	ExecutorWorkers int
	ExecutorBacklog int

	// Relay
	RelayPollInterval time.Duration
	RelaySinkRetries  int
	RelayTruncate     bool
	RelayMaxLineSize  int64
	InputPath         string // "-" or empty reads stdin
	OutputPath        string // "-" or empty writes stdout

	// Server
	ListenAddr      string
	ShutdownTimeout time.Duration

	// Telemetry
	TelemetryEndpoint        string
	TelemetryProtocol        string
	TelemetryInsecure        bool
	TelemetryTimeout         time.Duration
	TelemetryPushInterval    time.Duration
	TelemetryCompression     string
	TelemetryHeaders         string // key1=value1,key2=value2
	TelemetryShutdownTimeout time.Duration

	// Memory
	MemoryLimitRatio float64

	// Flags
	ShowHelp     bool
	ShowVersion  bool
	ShowProfile  string
	ValidateFile string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:                 "info",
		QueueName:                "relay",
		QueueMaxSize:             10000,
		QueueSizer:               "count",
		QueueRecentRatio:         queue.DefaultRecentQueueRatio,
		QueueLogReadRatio:        queue.DefaultLogReadRatio,
		QueueStart:               StartFirst,
		StoreType:                StoreWAL,
		StorePath:                "./data",
		StoreReadBatch:           1024,
		WALChunkSize:             64 << 20,
		WALWriteBufferSize:       256 << 10,
		WALCompression:           string(compression.TypeSnappy),
		WALSyncMode:              string(wal.SyncBatched),
		WALSyncBatchSize:         100,
		WALSyncInterval:          100 * time.Millisecond,
		PebbleFsync:              string(pebblelog.FsyncInterval),
		PebbleFsyncInterval:      5 * time.Millisecond,
		WatermarkSource:          WatermarkAtomic,
		RedisAddr:                "localhost:6379",
		RedisKey:                 "logrelay:watermark",
		RedisPollInterval:        100 * time.Millisecond,
		ExecutorWorkers:          1,
		ExecutorBacklog:          64,
		RelayPollInterval:        50 * time.Millisecond,
		RelaySinkRetries:         3,
		RelayTruncate:            false,
		RelayMaxLineSize:         1 << 20,
		InputPath:                "-",
		OutputPath:               "-",
		ListenAddr:               ":9090",
		ShutdownTimeout:          30 * time.Second,
		TelemetryProtocol:        "grpc",
		TelemetryInsecure:        true,
		TelemetryPushInterval:    30 * time.Second,
		TelemetryShutdownTimeout: 5 * time.Second,
		MemoryLimitRatio:         0.9,
	}
}

// registerFlags binds every command line flag to a field of cfg.
func registerFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.ConfigFile, "config", "", "Path to YAML configuration file")
	fs.StringVar(&cfg.Profile, "profile", "", "Configuration profile: minimal, balanced or durable")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")

	// Queue flags
	fs.StringVar(&cfg.QueueName, "queue-name", cfg.QueueName, "Queue name used in metrics and logs")
	fs.Int64Var(&cfg.QueueMaxSize, "queue-max-size", cfg.QueueMaxSize, "Soft weight limit of the in-memory queue")
	fs.StringVar(&cfg.QueueSizer, "queue-sizer", cfg.QueueSizer, "Entry weight: count, bytes, encoded or range")
	fs.Float64Var(&cfg.QueueRecentRatio, "queue-recent-ratio", cfg.QueueRecentRatio, "Share of queue-max-size usable by out-of-order offers")
	fs.Float64Var(&cfg.QueueLogReadRatio, "queue-log-read-ratio", cfg.QueueLogReadRatio, "Fill level below which catch-up reads from the log store")
	fs.StringVar(&cfg.QueueStart, "queue-start", cfg.QueueStart, "Where delivery starts: first, end or a sequence number")

	// Store flags
	fs.StringVar(&cfg.StoreType, "store-type", cfg.StoreType, "Log store: wal or pebble")
	fs.StringVar(&cfg.StorePath, "store-path", cfg.StorePath, "Log store directory")
	fs.Uint64Var(&cfg.StoreStartSeq, "store-start-seq", cfg.StoreStartSeq, "First sequence of a new log store")
	fs.IntVar(&cfg.StoreReadBatch, "store-read-batch", cfg.StoreReadBatch, "Maximum records returned by one log read")
	fs.Int64Var(&cfg.WALChunkSize, "wal-chunk-size", cfg.WALChunkSize, "WAL chunk file size in bytes")
	fs.IntVar(&cfg.WALWriteBufferSize, "wal-write-buffer-size", cfg.WALWriteBufferSize, "WAL write buffer size in bytes")
	fs.StringVar(&cfg.WALCompression, "wal-compression", cfg.WALCompression, "WAL block compression: none, snappy, s2, zstd, gzip, zlib or deflate")
	fs.StringVar(&cfg.WALSyncMode, "wal-sync-mode", cfg.WALSyncMode, "WAL sync mode: immediate, batched or async")
	fs.IntVar(&cfg.WALSyncBatchSize, "wal-sync-batch-size", cfg.WALSyncBatchSize, "Appends between syncs in batched mode")
	fs.DurationVar(&cfg.WALSyncInterval, "wal-sync-interval", cfg.WALSyncInterval, "Background WAL sync interval")
	fs.StringVar(&cfg.PebbleFsync, "pebble-fsync", cfg.PebbleFsync, "Pebble fsync mode: always, interval or never")
	fs.DurationVar(&cfg.PebbleFsyncInterval, "pebble-fsync-interval", cfg.PebbleFsyncInterval, "Pebble group-commit sync interval")

	// Watermark flags
	fs.StringVar(&cfg.WatermarkSource, "watermark-source", cfg.WatermarkSource, "High-water mark source: atomic, log or redis")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for the redis watermark")
	fs.StringVar(&cfg.RedisPassword, "redis-password", "", "Redis password")
	fs.IntVar(&cfg.RedisDB, "redis-db", cfg.RedisDB, "Redis database number")
	fs.StringVar(&cfg.RedisKey, "redis-key", cfg.RedisKey, "Redis key holding the high-water mark")
	fs.DurationVar(&cfg.RedisPollInterval, "redis-poll-interval", cfg.RedisPollInterval, "Redis watermark refresh interval")

	// Executor flags
	fs.IntVar(&cfg.ExecutorWorkers, "executor-workers", cfg.ExecutorWorkers, "Background catch-up workers")
	fs.IntVar(&cfg.ExecutorBacklog, "executor-backlog", cfg.ExecutorBacklog, "Tasks that may wait for a worker")

	// Relay flags
	fs.DurationVar(&cfg.RelayPollInterval, "relay-poll-interval", cfg.RelayPollInterval, "Idle wait between empty polls")
	fs.IntVar(&cfg.RelaySinkRetries, "relay-sink-retries", cfg.RelaySinkRetries, "Retries of a failed output write")
	fs.BoolVar(&cfg.RelayTruncate, "relay-truncate", cfg.RelayTruncate, "Drop delivered records from the log store")
	fs.Int64Var(&cfg.RelayMaxLineSize, "relay-max-line-size", cfg.RelayMaxLineSize, "Maximum input line size in bytes")
	fs.StringVar(&cfg.InputPath, "input", cfg.InputPath, "Input file, - for stdin")
	fs.StringVar(&cfg.OutputPath, "output", cfg.OutputPath, "Output file, - for stdout")

	// Server flags
	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "Metrics and health HTTP listen address")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "Graceful shutdown timeout")

	// Telemetry flags
	fs.StringVar(&cfg.TelemetryEndpoint, "telemetry-endpoint", "", "OTLP endpoint for self-monitoring (empty = disabled)")
	fs.StringVar(&cfg.TelemetryProtocol, "telemetry-protocol", cfg.TelemetryProtocol, "OTLP protocol: grpc or http")
	fs.BoolVar(&cfg.TelemetryInsecure, "telemetry-insecure", cfg.TelemetryInsecure, "Use insecure OTLP connection")
	fs.DurationVar(&cfg.TelemetryTimeout, "telemetry-timeout", cfg.TelemetryTimeout, "Per-export timeout (0 = SDK default)")
	fs.DurationVar(&cfg.TelemetryPushInterval, "telemetry-push-interval", cfg.TelemetryPushInterval, "Metric push interval")
	fs.StringVar(&cfg.TelemetryCompression, "telemetry-compression", "", "OTLP compression: gzip or empty")
	fs.StringVar(&cfg.TelemetryHeaders, "telemetry-headers", "", "OTLP headers (format: key1=value1,key2=value2)")
	fs.DurationVar(&cfg.TelemetryShutdownTimeout, "telemetry-shutdown-timeout", cfg.TelemetryShutdownTimeout, "Telemetry shutdown grace period")

	// Memory flags
	fs.Float64Var(&cfg.MemoryLimitRatio, "memory-limit-ratio", cfg.MemoryLimitRatio, "Share of container memory used for GOMEMLIMIT (0 disables)")

	// Help and version
	fs.BoolVar(&cfg.ShowHelp, "help", false, "Show help message")
	fs.BoolVar(&cfg.ShowHelp, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show version (shorthand)")
	fs.StringVar(&cfg.ShowProfile, "show-profile", "", "Print the values a profile sets and exit")
	fs.StringVar(&cfg.ValidateFile, "validate", "", "Validate a YAML configuration file and exit")
}

// ParseFlags parses the process command line, loads the YAML file named by
// -config and applies explicitly set flags on top. Errors are fatal.
func ParseFlags() *Config {
	res, err := BuildConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return res.Config
}

// applyFlagOverrides copies the flags explicitly set on fs from cli to dst.
func applyFlagOverrides(fs *flag.FlagSet, dst, cli *Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config":
			dst.ConfigFile = cli.ConfigFile
		case "profile":
			dst.Profile = cli.Profile
		case "log-level":
			dst.LogLevel = cli.LogLevel
		case "queue-name":
			dst.QueueName = cli.QueueName
		case "queue-max-size":
			dst.QueueMaxSize = cli.QueueMaxSize
		case "queue-sizer":
			dst.QueueSizer = cli.QueueSizer
		case "queue-recent-ratio":
			dst.QueueRecentRatio = cli.QueueRecentRatio
		case "queue-log-read-ratio":
			dst.QueueLogReadRatio = cli.QueueLogReadRatio
		case "queue-start":
			dst.QueueStart = cli.QueueStart
		case "store-type":
			dst.StoreType = cli.StoreType
		case "store-path":
			dst.StorePath = cli.StorePath
		case "store-start-seq":
			dst.StoreStartSeq = cli.StoreStartSeq
		case "store-read-batch":
			dst.StoreReadBatch = cli.StoreReadBatch
		case "wal-chunk-size":
			dst.WALChunkSize = cli.WALChunkSize
		case "wal-write-buffer-size":
			dst.WALWriteBufferSize = cli.WALWriteBufferSize
		case "wal-compression":
			dst.WALCompression = cli.WALCompression
		case "wal-sync-mode":
			dst.WALSyncMode = cli.WALSyncMode
		case "wal-sync-batch-size":
			dst.WALSyncBatchSize = cli.WALSyncBatchSize
		case "wal-sync-interval":
			dst.WALSyncInterval = cli.WALSyncInterval
		case "pebble-fsync":
			dst.PebbleFsync = cli.PebbleFsync
		case "pebble-fsync-interval":
			dst.PebbleFsyncInterval = cli.PebbleFsyncInterval
		case "watermark-source":
			dst.WatermarkSource = cli.WatermarkSource
		case "redis-addr":
			dst.RedisAddr = cli.RedisAddr
		case "redis-password":
			dst.RedisPassword = cli.RedisPassword
		case "redis-db":
			dst.RedisDB = cli.RedisDB
		case "redis-key":
			dst.RedisKey = cli.RedisKey
		case "redis-poll-interval":
			dst.RedisPollInterval = cli.RedisPollInterval
		case "executor-workers":
			dst.ExecutorWorkers = cli.ExecutorWorkers
		case "executor-backlog":
			dst.ExecutorBacklog = cli.ExecutorBacklog
		case "relay-poll-interval":
			dst.RelayPollInterval = cli.RelayPollInterval
		case "relay-sink-retries":
			dst.RelaySinkRetries = cli.RelaySinkRetries
		case "relay-truncate":
			dst.RelayTruncate = cli.RelayTruncate
		case "relay-max-line-size":
			dst.RelayMaxLineSize = cli.RelayMaxLineSize
		case "input":
			dst.InputPath = cli.InputPath
		case "output":
			dst.OutputPath = cli.OutputPath
		case "listen":
			dst.ListenAddr = cli.ListenAddr
		case "shutdown-timeout":
			dst.ShutdownTimeout = cli.ShutdownTimeout
		case "telemetry-endpoint":
			dst.TelemetryEndpoint = cli.TelemetryEndpoint
		case "telemetry-protocol":
			dst.TelemetryProtocol = cli.TelemetryProtocol
		case "telemetry-insecure":
			dst.TelemetryInsecure = cli.TelemetryInsecure
		case "telemetry-timeout":
			dst.TelemetryTimeout = cli.TelemetryTimeout
		case "telemetry-push-interval":
			dst.TelemetryPushInterval = cli.TelemetryPushInterval
		case "telemetry-compression":
			dst.TelemetryCompression = cli.TelemetryCompression
		case "telemetry-headers":
			dst.TelemetryHeaders = cli.TelemetryHeaders
		case "telemetry-shutdown-timeout":
			dst.TelemetryShutdownTimeout = cli.TelemetryShutdownTimeout
		case "memory-limit-ratio":
			dst.MemoryLimitRatio = cli.MemoryLimitRatio
		case "help", "h":
			dst.ShowHelp = cli.ShowHelp
		case "version", "v":
			dst.ShowVersion = cli.ShowVersion
		case "show-profile":
			dst.ShowProfile = cli.ShowProfile
		case "validate":
			dst.ValidateFile = cli.ValidateFile
		}
	})
}

// QueueConfig returns the queue settings.
func (c *Config) QueueConfig(rangeStart uint64) queue.Config {
	return queue.Config{
		Name:             c.QueueName,
		RangeStart:       rangeStart,
		MaxSize:          c.QueueMaxSize,
		RecentQueueRatio: c.QueueRecentRatio,
		LogReadRatio:     c.QueueLogReadRatio,
	}
}

// ResolveStart turns QueueStart into a sequence given the store's bounds.
// A literal sequence outside [first, end] is clamped into it.
func (c *Config) ResolveStart(first, end uint64) (uint64, error) {
	switch strings.ToLower(strings.TrimSpace(c.QueueStart)) {
	case "", StartFirst:
		return first, nil
	case StartEnd:
		return end, nil
	}
	seq, err := strconv.ParseUint(strings.TrimSpace(c.QueueStart), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("queue-start must be first, end or a sequence number, got %q", c.QueueStart)
	}
	return min(max(seq, first), end), nil
}

// WALConfig returns the chunked WAL store settings.
func (c *Config) WALConfig() wal.Config {
	return wal.Config{
		Path:            c.StorePath,
		StartSeq:        c.StoreStartSeq,
		ChunkFileSize:   c.WALChunkSize,
		WriteBufferSize: c.WALWriteBufferSize,
		Compression:     compression.Type(strings.ToLower(c.WALCompression)),
		SyncMode:        wal.SyncMode(strings.ToLower(c.WALSyncMode)),
		SyncBatchSize:   c.WALSyncBatchSize,
		SyncInterval:    c.WALSyncInterval,
		ReadBatch:       c.StoreReadBatch,
	}
}

// PebbleConfig returns the Pebble store settings.
func (c *Config) PebbleConfig() pebblelog.Config {
	fsync, _ := pebblelog.ParseFsyncMode(c.PebbleFsync) // checked by Validate
	return pebblelog.Config{
		Dir:           c.StorePath,
		StartSeq:      c.StoreStartSeq,
		Fsync:         fsync,
		FsyncInterval: c.PebbleFsyncInterval,
		ReadBatch:     c.StoreReadBatch,
	}
}

// RedisOptions returns client options for the redis watermark.
func (c *Config) RedisOptions() *redis.Options {
	return &redis.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// ExecutorConfig returns the catch-up worker pool settings.
func (c *Config) ExecutorConfig() executor.Config {
	return executor.Config{
		Name:    c.QueueName,
		Workers: c.ExecutorWorkers,
		Backlog: c.ExecutorBacklog,
	}
}

// RelayConfig returns the relay settings. A configured retry count of zero
// disables retries.
func (c *Config) RelayConfig() relay.Config {
	retries := c.RelaySinkRetries
	if retries == 0 {
		retries = -1
	}
	return relay.Config{
		Name:              c.QueueName,
		PollInterval:      c.RelayPollInterval,
		SinkRetries:       retries,
		TruncateDelivered: c.RelayTruncate,
		MaxLineSize:       int(c.RelayMaxLineSize),
	}
}

// TelemetryConfig returns the OTLP self-monitoring settings.
func (c *Config) TelemetryConfig() telemetry.Config {
	return telemetry.Config{
		Endpoint:        c.TelemetryEndpoint,
		Protocol:        c.TelemetryProtocol,
		Insecure:        c.TelemetryInsecure,
		Timeout:         c.TelemetryTimeout,
		PushInterval:    c.TelemetryPushInterval,
		Compression:     c.TelemetryCompression,
		Headers:         parseHeaders(c.TelemetryHeaders),
		ShutdownTimeout: c.TelemetryShutdownTimeout,
		RetryEnabled:    true,
	}
}

// parseHeaders parses "k1=v1,k2=v2". Malformed pairs are skipped.
func parseHeaders(s string) map[string]string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		out[k] = strings.TrimSpace(v)
	}
	return out
}

// PrintUsage prints the help message.
func PrintUsage() {
	fmt.Fprintf(os.Stderr, `logrelay - ordered log relay backed by a durable log store

USAGE:
    logrelay [OPTIONS]

DESCRIPTION:
    Reads lines from an input, commits each one to a local log store and
    delivers them in sequence order to an output as JSON lines. An in-memory
    queue feeds the output; when it fills up or sees a gap, delivery
    continues from the log store until the queue catches up.

OPTIONS:
    Configuration:
        -config <path>                   Path to YAML configuration file
                                         CLI flags override config file values
        -profile <name>                  minimal, balanced or durable
        -show-profile <name>             Print a profile's values and exit
        -validate <path>                 Validate a config file and exit
        -log-level <level>               debug, info, warn, error (default: "info")

    Queue:
        -queue-name <name>               Queue name for metrics and logs (default: "relay")
        -queue-max-size <n>              Soft weight limit (default: 10000)
        -queue-sizer <kind>              count, bytes, encoded or range (default: "count")
        -queue-recent-ratio <f>          Out-of-order share of the limit (default: 0.5)
        -queue-log-read-ratio <f>        Catch-up fill threshold (default: 0.5)
        -queue-start <pos>               first, end or a sequence number (default: "first")

    Log store:
        -store-type <type>               wal or pebble (default: "wal")
        -store-path <dir>                Store directory (default: "./data")
        -store-start-seq <n>             First sequence of a new store (default: 0)
        -store-read-batch <n>            Records per log read (default: 1024)
        -wal-chunk-size <bytes>          Chunk file size (default: 67108864)
        -wal-write-buffer-size <bytes>   Write buffer size (default: 262144)
        -wal-compression <codec>         Block codec (default: "snappy")
        -wal-sync-mode <mode>            immediate, batched or async (default: "batched")
        -wal-sync-batch-size <n>         Appends between syncs (default: 100)
        -wal-sync-interval <dur>         Background sync interval (default: 100ms)
        -pebble-fsync <mode>             always, interval or never (default: "interval")
        -pebble-fsync-interval <dur>     Group-commit interval (default: 5ms)

    Watermark:
        -watermark-source <src>          atomic, log or redis (default: "atomic")
        -redis-addr <addr>               Redis address (default: "localhost:6379")
        -redis-password <pw>             Redis password
        -redis-db <n>                    Redis database (default: 0)
        -redis-key <key>                 Key holding the mark (default: "logrelay:watermark")
        -redis-poll-interval <dur>       Refresh interval (default: 100ms)

    Executor:
        -executor-workers <n>            Catch-up workers (default: 1)
        -executor-backlog <n>            Pending task limit (default: 64)

    Relay:
        -input <path>                    Input file, - for stdin (default: "-")
        -output <path>                   Output file, - for stdout (default: "-")
        -relay-poll-interval <dur>       Idle poll interval (default: 50ms)
        -relay-sink-retries <n>          Output write retries (default: 3)
        -relay-truncate                  Drop delivered records from the store
        -relay-max-line-size <bytes>     Maximum input line (default: 1048576)

    Server:
        -listen <addr>                   /metrics, /live and /ready address (default: ":9090")
        -shutdown-timeout <dur>          Graceful shutdown timeout (default: 30s)

    Telemetry:
        -telemetry-endpoint <addr>       OTLP endpoint (empty = disabled)
        -telemetry-protocol <proto>      grpc or http (default: "grpc")
        -telemetry-insecure              Insecure OTLP connection (default: true)
        -telemetry-timeout <dur>         Per-export timeout
        -telemetry-push-interval <dur>   Metric push interval (default: 30s)
        -telemetry-compression <c>       gzip or empty
        -telemetry-headers <k=v,...>     Extra OTLP headers
        -telemetry-shutdown-timeout <d>  Shutdown grace period (default: 5s)

    Memory:
        -memory-limit-ratio <f>          GOMEMLIMIT share of container memory (default: 0.9)

    General:
        -h, -help                        Show this help message
        -v, -version                     Show version

`)
}

// PrintVersion prints the version.
func PrintVersion() {
	fmt.Printf("logrelay version %s\n", version)
}
