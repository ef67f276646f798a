package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/szibis/logrelay/internal/compression"
	"github.com/szibis/logrelay/internal/pebblelog"
)

// ValidationSeverity indicates the severity of a validation issue.
type ValidationSeverity string

const (
	// SeverityError indicates a configuration error that prevents startup.
	SeverityError ValidationSeverity = "error"
	// SeverityWarning indicates a potential issue that won't prevent startup.
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue represents a single validation finding.
type ValidationIssue struct {
	Severity ValidationSeverity `json:"severity"`
	Field    string             `json:"field"`
	Message  string             `json:"message"`
}

// ValidationResult holds the complete validation output.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	File   string            `json:"file"`
	Issues []ValidationIssue `json:"issues,omitempty"`
}

// JSON returns the validation result as formatted JSON.
func (r *ValidationResult) JSON() string {
	data, _ := json.MarshalIndent(r, "", "  ")
	return string(data)
}

const validationPrefix = "configuration validation failed:\n  - "

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if !IsValidProfile(c.Profile) {
		add("profile must be one of %v, got %q", ValidProfileNames(), c.Profile)
	}

	// Queue
	if c.QueueMaxSize <= 0 {
		add("queue-max-size must be positive, got %d", c.QueueMaxSize)
	}
	switch c.QueueSizer {
	case "count", "bytes", "encoded", "range":
	default:
		add("queue-sizer must be count, bytes, encoded or range, got %q", c.QueueSizer)
	}
	if c.QueueRecentRatio <= 0 || c.QueueRecentRatio > 1 {
		add("queue-recent-ratio must be in (0, 1], got %v", c.QueueRecentRatio)
	}
	if c.QueueLogReadRatio <= 0 || c.QueueLogReadRatio > 1 {
		add("queue-log-read-ratio must be in (0, 1], got %v", c.QueueLogReadRatio)
	}
	if _, err := c.ResolveStart(0, ^uint64(0)); err != nil {
		add("%v", err)
	}

	// Store
	if c.StorePath == "" {
		add("store-path must not be empty")
	}
	if c.StoreReadBatch <= 0 {
		add("store-read-batch must be positive, got %d", c.StoreReadBatch)
	}
	switch c.StoreType {
	case StoreWAL:
		if c.WALChunkSize <= 0 {
			add("wal-chunk-size must be positive, got %d", c.WALChunkSize)
		}
		if _, err := compression.ParseType(c.WALCompression); err != nil {
			add("wal-compression is invalid: %v", err)
		}
		switch strings.ToLower(c.WALSyncMode) {
		case "immediate", "batched", "async":
		default:
			add("wal-sync-mode must be immediate, batched or async, got %q", c.WALSyncMode)
		}
	case StorePebble:
		if _, err := pebblelog.ParseFsyncMode(c.PebbleFsync); err != nil {
			add("pebble-fsync is invalid: %v", err)
		}
	default:
		add("store-type must be wal or pebble, got %q", c.StoreType)
	}

	// Watermark
	switch c.WatermarkSource {
	case WatermarkAtomic, WatermarkLog:
	case WatermarkRedis:
		if c.RedisAddr == "" {
			add("redis-addr is required for the redis watermark")
		}
		if c.RedisKey == "" {
			add("redis-key is required for the redis watermark")
		}
	default:
		add("watermark-source must be atomic, log or redis, got %q", c.WatermarkSource)
	}

	// Executor
	if c.ExecutorWorkers <= 0 {
		add("executor-workers must be positive, got %d", c.ExecutorWorkers)
	}
	if c.ExecutorBacklog <= 0 {
		add("executor-backlog must be positive, got %d", c.ExecutorBacklog)
	}

	// Relay
	if c.RelayPollInterval <= 0 {
		add("relay-poll-interval must be positive, got %v", c.RelayPollInterval)
	}
	if c.RelaySinkRetries < 0 {
		add("relay-sink-retries must not be negative, got %d", c.RelaySinkRetries)
	}
	if c.RelayMaxLineSize <= 0 {
		add("relay-max-line-size must be positive, got %d", c.RelayMaxLineSize)
	}

	// Telemetry
	if c.TelemetryEndpoint != "" && c.TelemetryProtocol != "grpc" && c.TelemetryProtocol != "http" {
		add("telemetry-protocol must be grpc or http, got %q", c.TelemetryProtocol)
	}

	// Memory
	if c.MemoryLimitRatio < 0 || c.MemoryLimitRatio > 1 {
		add("memory-limit-ratio must be between 0.0 and 1.0, got %v", c.MemoryLimitRatio)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s%s", validationPrefix, strings.Join(errs, "\n  - "))
	}
	return nil
}

// ValidateFile loads a YAML config file and validates it, returning structured results.
func ValidateFile(path string) *ValidationResult {
	result := &ValidationResult{
		Valid: true,
		File:  path,
	}

	info, err := os.Stat(path)
	if err != nil {
		result.Valid = false
		result.Issues = append(result.Issues, ValidationIssue{
			Severity: SeverityError,
			Field:    "file",
			Message:  fmt.Sprintf("cannot access file: %v", err),
		})
		return result
	}
	if info.IsDir() {
		result.Valid = false
		result.Issues = append(result.Issues, ValidationIssue{
			Severity: SeverityError,
			Field:    "file",
			Message:  "path is a directory, expected a file",
		})
		return result
	}

	yamlCfg, err := LoadYAML(path)
	if err != nil {
		result.Valid = false
		result.Issues = append(result.Issues, ValidationIssue{
			Severity: SeverityError,
			Field:    "yaml",
			Message:  fmt.Sprintf("YAML parse error: %v", err),
		})
		return result
	}

	// Start from defaults so fields not in YAML get valid default values.
	cfg := DefaultConfig()
	if yamlCfg.Profile != "" && IsValidProfile(yamlCfg.Profile) {
		_ = ApplyProfile(cfg, ProfileName(yamlCfg.Profile), nil)
	}
	mergeYAMLIntoConfig(cfg, yamlCfg)
	cfg.ConfigFile = path

	if err := cfg.Validate(); err != nil {
		result.Valid = false
		msg := err.Error()
		if strings.HasPrefix(msg, validationPrefix) {
			for _, item := range strings.Split(strings.TrimPrefix(msg, validationPrefix), "\n  - ") {
				field, message := parseValidationError(item)
				result.Issues = append(result.Issues, ValidationIssue{
					Severity: SeverityError,
					Field:    field,
					Message:  message,
				})
			}
		} else {
			result.Issues = append(result.Issues, ValidationIssue{
				Severity: SeverityError,
				Field:    "config",
				Message:  msg,
			})
		}
	}

	addWarnings(cfg, result)
	return result
}

// parseValidationError extracts field and message from a validation error string.
// e.g. "queue-max-size must be positive, got 0" → field="queue-max-size", message=...
func parseValidationError(s string) (string, string) {
	s = strings.TrimSpace(s)
	for _, sep := range []string{" must ", " is ", " should "} {
		if idx := strings.Index(s, sep); idx > 0 {
			field := s[:idx]
			if !strings.Contains(field, " ") {
				return field, s
			}
		}
	}
	return "config", s
}

// addWarnings checks for non-fatal issues that are worth flagging.
func addWarnings(cfg *Config, result *ValidationResult) {
	warn := func(field, format string, args ...interface{}) {
		result.Issues = append(result.Issues, ValidationIssue{
			Severity: SeverityWarning,
			Field:    field,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	if cfg.StoreType == StoreWAL && strings.ToLower(cfg.WALSyncMode) == "async" {
		warn("store.wal.sync_mode", "async sync mode may lose the last %v of appends on crash", cfg.WALSyncInterval)
	}
	if cfg.StoreType == StorePebble && cfg.PebbleFsync == string(pebblelog.FsyncNever) {
		warn("store.pebble.fsync", "fsync never leaves durability to the OS page cache")
	}
	if int64(cfg.StoreReadBatch) > cfg.QueueMaxSize && cfg.QueueSizer == "count" {
		warn("store.read_batch", "read_batch (%d) is larger than queue max_size (%d); catch-up batches overshoot the limit",
			cfg.StoreReadBatch, cfg.QueueMaxSize)
	}
	if cfg.RelayTruncate && cfg.QueueStart != StartFirst && cfg.QueueStart != "" {
		warn("relay.truncate", "truncation with queue start %q drops history that was never delivered", cfg.QueueStart)
	}
	if cfg.ExecutorWorkers > 1 {
		// Only one catch-up task runs per queue.
		warn("executor.workers", "%d workers configured; a single queue uses at most one at a time", cfg.ExecutorWorkers)
	}
}

// mergeYAMLIntoConfig overlays values present in the YAML file onto a
// defaults-based config. Fields absent from the file keep their defaults.
func mergeYAMLIntoConfig(dst *Config, y *YAMLConfig) {
	src := y.ToConfig()

	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	setString(&dst.Profile, src.Profile)
	setString(&dst.LogLevel, src.LogLevel)

	// Queue
	setString(&dst.QueueName, src.QueueName)
	if src.QueueMaxSize != 0 {
		dst.QueueMaxSize = src.QueueMaxSize
	}
	setString(&dst.QueueSizer, src.QueueSizer)
	if src.QueueRecentRatio != 0 {
		dst.QueueRecentRatio = src.QueueRecentRatio
	}
	if src.QueueLogReadRatio != 0 {
		dst.QueueLogReadRatio = src.QueueLogReadRatio
	}
	setString(&dst.QueueStart, src.QueueStart)

	// Store
	setString(&dst.StoreType, src.StoreType)
	setString(&dst.StorePath, src.StorePath)
	if src.StoreStartSeq != 0 {
		dst.StoreStartSeq = src.StoreStartSeq
	}
	if src.StoreReadBatch != 0 {
		dst.StoreReadBatch = src.StoreReadBatch
	}
	if src.WALChunkSize != 0 {
		dst.WALChunkSize = src.WALChunkSize
	}
	if src.WALWriteBufferSize != 0 {
		dst.WALWriteBufferSize = src.WALWriteBufferSize
	}
	setString(&dst.WALCompression, src.WALCompression)
	setString(&dst.WALSyncMode, src.WALSyncMode)
	if src.WALSyncBatchSize != 0 {
		dst.WALSyncBatchSize = src.WALSyncBatchSize
	}
	if src.WALSyncInterval != 0 {
		dst.WALSyncInterval = src.WALSyncInterval
	}
	setString(&dst.PebbleFsync, src.PebbleFsync)
	if src.PebbleFsyncInterval != 0 {
		dst.PebbleFsyncInterval = src.PebbleFsyncInterval
	}

	// Watermark
	setString(&dst.WatermarkSource, src.WatermarkSource)
	setString(&dst.RedisAddr, src.RedisAddr)
	setString(&dst.RedisPassword, src.RedisPassword)
	if src.RedisDB != 0 {
		dst.RedisDB = src.RedisDB
	}
	setString(&dst.RedisKey, src.RedisKey)
	if src.RedisPollInterval != 0 {
		dst.RedisPollInterval = src.RedisPollInterval
	}

	// Executor
	if src.ExecutorWorkers != 0 {
		dst.ExecutorWorkers = src.ExecutorWorkers
	}
	if src.ExecutorBacklog != 0 {
		dst.ExecutorBacklog = src.ExecutorBacklog
	}

	// Relay
	setString(&dst.InputPath, src.InputPath)
	setString(&dst.OutputPath, src.OutputPath)
	if src.RelayPollInterval != 0 {
		dst.RelayPollInterval = src.RelayPollInterval
	}
	if src.RelaySinkRetries != 0 {
		dst.RelaySinkRetries = src.RelaySinkRetries
	}
	if y.Relay.Truncate != nil {
		dst.RelayTruncate = src.RelayTruncate
	}
	if src.RelayMaxLineSize != 0 {
		dst.RelayMaxLineSize = src.RelayMaxLineSize
	}

	// Server
	setString(&dst.ListenAddr, src.ListenAddr)
	if src.ShutdownTimeout != 0 {
		dst.ShutdownTimeout = src.ShutdownTimeout
	}

	// Telemetry
	setString(&dst.TelemetryEndpoint, src.TelemetryEndpoint)
	setString(&dst.TelemetryProtocol, src.TelemetryProtocol)
	if y.Telemetry.Insecure != nil {
		dst.TelemetryInsecure = src.TelemetryInsecure
	}
	if src.TelemetryTimeout != 0 {
		dst.TelemetryTimeout = src.TelemetryTimeout
	}
	if src.TelemetryPushInterval != 0 {
		dst.TelemetryPushInterval = src.TelemetryPushInterval
	}
	setString(&dst.TelemetryCompression, src.TelemetryCompression)
	setString(&dst.TelemetryHeaders, src.TelemetryHeaders)
	if src.TelemetryShutdownTimeout != 0 {
		dst.TelemetryShutdownTimeout = src.TelemetryShutdownTimeout
	}

	// Memory
	if src.MemoryLimitRatio != 0 {
		dst.MemoryLimitRatio = src.MemoryLimitRatio
	}
}
