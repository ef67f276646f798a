package config

import (
	"flag"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExplicitFlags returns the names of flags that were set on fs.
// Uses fs.Visit which only visits flags that were set.
func ExplicitFlags(fs *flag.FlagSet) map[string]bool {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		explicit[f.Name] = true
	})
	return explicit
}

// ExplicitYAMLFields parses raw YAML data and returns a set of field "paths"
// that are present in the YAML. This enables distinguishing "not specified" from
// "set to zero/empty". Both the dotted YAML path and the matching CLI flag
// name are recorded.
func ExplicitYAMLFields(data []byte) (map[string]bool, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	explicit := make(map[string]bool)
	flattenYAML("", raw, explicit)
	return explicit, nil
}

// flattenYAML recursively walks a map and records all leaf key paths.
func flattenYAML(prefix string, m map[string]interface{}, result map[string]bool) {
	for key, value := range m {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		// headers is a free-form map; it is one setting.
		if v, ok := value.(map[string]interface{}); ok && path != "telemetry.headers" {
			flattenYAML(path, v, result)
			continue
		}
		if cliName := yamlPathToCLIFlag(path); cliName != "" {
			result[cliName] = true
		}
		result[path] = true
	}
}

// yamlPathToCLIFlag converts a YAML field path to its corresponding CLI flag name.
func yamlPathToCLIFlag(path string) string {
	directMap := map[string]string{
		"profile":   "profile",
		"log_level": "log-level",

		// Queue
		"queue.name":           "queue-name",
		"queue.max_size":       "queue-max-size",
		"queue.sizer":          "queue-sizer",
		"queue.recent_ratio":   "queue-recent-ratio",
		"queue.log_read_ratio": "queue-log-read-ratio",
		"queue.start":          "queue-start",

		// Store
		"store.type":                  "store-type",
		"store.path":                  "store-path",
		"store.start_seq":             "store-start-seq",
		"store.read_batch":            "store-read-batch",
		"store.wal.chunk_size":        "wal-chunk-size",
		"store.wal.write_buffer_size": "wal-write-buffer-size",
		"store.wal.compression":       "wal-compression",
		"store.wal.sync_mode":         "wal-sync-mode",
		"store.wal.sync_batch_size":   "wal-sync-batch-size",
		"store.wal.sync_interval":     "wal-sync-interval",
		"store.pebble.fsync":          "pebble-fsync",
		"store.pebble.fsync_interval": "pebble-fsync-interval",

		// Watermark
		"watermark.source":              "watermark-source",
		"watermark.redis.addr":          "redis-addr",
		"watermark.redis.password":      "redis-password",
		"watermark.redis.db":            "redis-db",
		"watermark.redis.key":           "redis-key",
		"watermark.redis.poll_interval": "redis-poll-interval",

		// Executor
		"executor.workers": "executor-workers",
		"executor.backlog": "executor-backlog",

		// Relay
		"relay.input":         "input",
		"relay.output":        "output",
		"relay.poll_interval": "relay-poll-interval",
		"relay.sink_retries":  "relay-sink-retries",
		"relay.truncate":      "relay-truncate",
		"relay.max_line_size": "relay-max-line-size",

		// Server
		"server.address":          "listen",
		"server.shutdown_timeout": "shutdown-timeout",

		// Telemetry
		"telemetry.endpoint":         "telemetry-endpoint",
		"telemetry.protocol":         "telemetry-protocol",
		"telemetry.insecure":         "telemetry-insecure",
		"telemetry.timeout":          "telemetry-timeout",
		"telemetry.push_interval":    "telemetry-push-interval",
		"telemetry.compression":      "telemetry-compression",
		"telemetry.shutdown_timeout": "telemetry-shutdown-timeout",
		"telemetry.headers":          "telemetry-headers",

		// Memory
		"memory.limit_ratio": "memory-limit-ratio",
	}

	if cliName, ok := directMap[path]; ok {
		return cliName
	}

	// Fallback: convert separators to hyphens for unknown paths
	return strings.NewReplacer("_", "-", ".", "-").Replace(path)
}

// MergeExplicitFields combines CLI and YAML explicit field sets.
func MergeExplicitFields(cli, yamlFields map[string]bool) map[string]bool {
	merged := make(map[string]bool, len(cli)+len(yamlFields))
	for k, v := range yamlFields {
		merged[k] = v
	}
	for k, v := range cli {
		merged[k] = v
	}
	return merged
}
