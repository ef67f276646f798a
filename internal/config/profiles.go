package config

import (
	"fmt"
	"strings"
	"time"
)

// ProfileName identifies a configuration profile.
type ProfileName string

const (
	ProfileMinimal  ProfileName = "minimal"
	ProfileBalanced ProfileName = "balanced"
	ProfileDurable  ProfileName = "durable"
)

// ValidProfileNames returns the set of recognized profile names.
func ValidProfileNames() []ProfileName {
	return []ProfileName{ProfileMinimal, ProfileBalanced, ProfileDurable}
}

// IsValidProfile reports whether name is a recognized profile (or empty).
func IsValidProfile(name string) bool {
	if name == "" {
		return true
	}
	for _, p := range ValidProfileNames() {
		if string(p) == name {
			return true
		}
	}
	return false
}

// ProfilePrerequisite describes a resource requirement for a profile.
type ProfilePrerequisite struct {
	Type        string // "disk", "memory", "network"
	Description string
	Severity    string // "required", "recommended"
}

// ProfileConfig holds the values that a profile sets.
// Pointer fields: nil means "not set by this profile" (use default or user override).
type ProfileConfig struct {
	Name        ProfileName
	Description string

	// Queue
	QueueMaxSize      *int64
	QueueLogReadRatio *float64

	// Store
	StoreType       *string
	StoreReadBatch  *int
	WALCompression  *string
	WALSyncMode     *string
	WALSyncInterval *time.Duration
	PebbleFsync     *string

	// Executor
	ExecutorBacklog *int

	// Relay
	RelayPollInterval *time.Duration
	RelaySinkRetries  *int
	RelayTruncate     *bool

	// Memory
	MemoryLimitRatio *float64
}

// helper functions for pointer creation
func intPtr(v int) *int                     { return &v }
func int64Ptr(v int64) *int64               { return &v }
func boolPtr(v bool) *bool                  { return &v }
func strPtr(v string) *string               { return &v }
func float64Ptr(v float64) *float64         { return &v }
func durPtr(v time.Duration) *time.Duration { return &v }

// GetProfile returns the ProfileConfig for the given name.
func GetProfile(name ProfileName) (*ProfileConfig, error) {
	switch name {
	case ProfileMinimal:
		return minimalProfile(), nil
	case ProfileBalanced:
		return balancedProfile(), nil
	case ProfileDurable:
		return durableProfile(), nil
	default:
		return nil, fmt.Errorf("unknown profile %q (valid: minimal, balanced, durable)", name)
	}
}

// minimalProfile keeps memory and disk small: a short queue, compressed
// chunks and delivered history dropped.
func minimalProfile() *ProfileConfig {
	return &ProfileConfig{
		Name:              ProfileMinimal,
		Description:       "small footprint, delivered history truncated",
		QueueMaxSize:      int64Ptr(1000),
		QueueLogReadRatio: float64Ptr(0.5),
		StoreType:         strPtr(StoreWAL),
		StoreReadBatch:    intPtr(256),
		WALCompression:    strPtr("zstd"),
		WALSyncMode:       strPtr("async"),
		WALSyncInterval:   durPtr(time.Second),
		ExecutorBacklog:   intPtr(8),
		RelayPollInterval: durPtr(200 * time.Millisecond),
		RelaySinkRetries:  intPtr(3),
		RelayTruncate:     boolPtr(true),
		MemoryLimitRatio:  float64Ptr(0.8),
	}
}

func balancedProfile() *ProfileConfig {
	return &ProfileConfig{
		Name:              ProfileBalanced,
		Description:       "defaults: batched syncs, snappy chunks",
		QueueMaxSize:      int64Ptr(10000),
		QueueLogReadRatio: float64Ptr(0.5),
		StoreType:         strPtr(StoreWAL),
		StoreReadBatch:    intPtr(1024),
		WALCompression:    strPtr("snappy"),
		WALSyncMode:       strPtr("batched"),
		WALSyncInterval:   durPtr(100 * time.Millisecond),
		ExecutorBacklog:   intPtr(64),
		RelayPollInterval: durPtr(50 * time.Millisecond),
		RelaySinkRetries:  intPtr(3),
		RelayTruncate:     boolPtr(false),
		MemoryLimitRatio:  float64Ptr(0.9),
	}
}

// durableProfile syncs every append and never drops history.
func durableProfile() *ProfileConfig {
	return &ProfileConfig{
		Name:              ProfileDurable,
		Description:       "every append synced, history kept",
		QueueMaxSize:      int64Ptr(10000),
		QueueLogReadRatio: float64Ptr(0.25),
		StoreType:         strPtr(StorePebble),
		StoreReadBatch:    intPtr(512),
		PebbleFsync:       strPtr("always"),
		WALSyncMode:       strPtr("immediate"),
		ExecutorBacklog:   intPtr(64),
		RelayPollInterval: durPtr(50 * time.Millisecond),
		RelaySinkRetries:  intPtr(10),
		RelayTruncate:     boolPtr(false),
		MemoryLimitRatio:  float64Ptr(0.9),
	}
}

// Prerequisites returns resource requirements for the profile.
func (p *ProfileConfig) Prerequisites() []ProfilePrerequisite {
	switch p.Name {
	case ProfileDurable:
		return []ProfilePrerequisite{
			{Type: "disk", Description: "fast local disk (every append is fsynced)", Severity: "required"},
		}
	case ProfileMinimal:
		return []ProfilePrerequisite{
			{Type: "disk", Description: "async syncs may lose the last second of input on crash", Severity: "recommended"},
		}
	}
	return nil
}

// ApplyProfile applies profile values to cfg, skipping fields present in explicitFields.
// explicitFields maps flag names to true when the user explicitly set them.
func ApplyProfile(cfg *Config, profile ProfileName, explicitFields map[string]bool) error {
	p, err := GetProfile(profile)
	if err != nil {
		return err
	}

	set := func(fieldName string, apply func()) {
		if !explicitFields[fieldName] {
			apply()
		}
	}

	if p.QueueMaxSize != nil {
		set("queue-max-size", func() { cfg.QueueMaxSize = *p.QueueMaxSize })
	}
	if p.QueueLogReadRatio != nil {
		set("queue-log-read-ratio", func() { cfg.QueueLogReadRatio = *p.QueueLogReadRatio })
	}
	if p.StoreType != nil {
		set("store-type", func() { cfg.StoreType = *p.StoreType })
	}
	if p.StoreReadBatch != nil {
		set("store-read-batch", func() { cfg.StoreReadBatch = *p.StoreReadBatch })
	}
	if p.WALCompression != nil {
		set("wal-compression", func() { cfg.WALCompression = *p.WALCompression })
	}
	if p.WALSyncMode != nil {
		set("wal-sync-mode", func() { cfg.WALSyncMode = *p.WALSyncMode })
	}
	if p.WALSyncInterval != nil {
		set("wal-sync-interval", func() { cfg.WALSyncInterval = *p.WALSyncInterval })
	}
	if p.PebbleFsync != nil {
		set("pebble-fsync", func() { cfg.PebbleFsync = *p.PebbleFsync })
	}
	if p.ExecutorBacklog != nil {
		set("executor-backlog", func() { cfg.ExecutorBacklog = *p.ExecutorBacklog })
	}
	if p.RelayPollInterval != nil {
		set("relay-poll-interval", func() { cfg.RelayPollInterval = *p.RelayPollInterval })
	}
	if p.RelaySinkRetries != nil {
		set("relay-sink-retries", func() { cfg.RelaySinkRetries = *p.RelaySinkRetries })
	}
	if p.RelayTruncate != nil {
		set("relay-truncate", func() { cfg.RelayTruncate = *p.RelayTruncate })
	}
	if p.MemoryLimitRatio != nil {
		set("memory-limit-ratio", func() { cfg.MemoryLimitRatio = *p.MemoryLimitRatio })
	}

	cfg.Profile = string(profile)
	return nil
}

// profileParam describes one parameter set by a profile, for DumpProfile output.
type profileParam struct {
	Name        string
	Value       string
	Description string
}

// DumpProfile returns a human-readable table of all values the given profile sets.
func DumpProfile(name ProfileName) (string, error) {
	p, err := GetProfile(name)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Profile: %s", name)
	if name == ProfileBalanced {
		b.WriteString(" (default)")
	}
	fmt.Fprintf(&b, "\n%s\n%s\n\n", p.Description, strings.Repeat("=", 60))

	if prereqs := p.Prerequisites(); len(prereqs) > 0 {
		b.WriteString("Prerequisites:\n")
		for _, pr := range prereqs {
			marker := "o"
			if pr.Severity == "required" {
				marker = "!"
			}
			fmt.Fprintf(&b, "  %s %s  %s\n", marker, strings.ToUpper(pr.Severity), pr.Description)
		}
		b.WriteString("\n")
	}

	b.WriteString("Parameters:\n")
	b.WriteString(strings.Repeat("-", 60))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  %-28s %-12s %s\n", "Parameter", "Value", "Description")
	b.WriteString(strings.Repeat("-", 60))
	b.WriteString("\n")
	for _, param := range collectProfileParams(p) {
		fmt.Fprintf(&b, "  %-28s %-12s %s\n", param.Name, param.Value, param.Description)
	}
	return b.String(), nil
}

func collectProfileParams(p *ProfileConfig) []profileParam {
	var params []profileParam
	add := func(name, value, desc string) {
		params = append(params, profileParam{name, value, desc})
	}

	if p.QueueMaxSize != nil {
		add("queue.max_size", fmt.Sprintf("%d", *p.QueueMaxSize), "In-memory queue weight limit")
	}
	if p.QueueLogReadRatio != nil {
		add("queue.log_read_ratio", fmt.Sprintf("%.2f", *p.QueueLogReadRatio), "Catch-up fill threshold")
	}
	if p.StoreType != nil {
		add("store.type", *p.StoreType, "Log store backend")
	}
	if p.StoreReadBatch != nil {
		add("store.read_batch", fmt.Sprintf("%d", *p.StoreReadBatch), "Records per log read")
	}
	if p.WALCompression != nil {
		add("store.wal.compression", *p.WALCompression, "WAL block codec")
	}
	if p.WALSyncMode != nil {
		add("store.wal.sync_mode", *p.WALSyncMode, "WAL durability")
	}
	if p.WALSyncInterval != nil {
		add("store.wal.sync_interval", p.WALSyncInterval.String(), "Background sync period")
	}
	if p.PebbleFsync != nil {
		add("store.pebble.fsync", *p.PebbleFsync, "Pebble durability")
	}
	if p.ExecutorBacklog != nil {
		add("executor.backlog", fmt.Sprintf("%d", *p.ExecutorBacklog), "Pending catch-up tasks")
	}
	if p.RelayPollInterval != nil {
		add("relay.poll_interval", p.RelayPollInterval.String(), "Idle poll period")
	}
	if p.RelaySinkRetries != nil {
		add("relay.sink_retries", fmt.Sprintf("%d", *p.RelaySinkRetries), "Output write retries")
	}
	if p.RelayTruncate != nil {
		add("relay.truncate", fmt.Sprintf("%t", *p.RelayTruncate), "Drop delivered history")
	}
	if p.MemoryLimitRatio != nil {
		add("memory.limit_ratio", fmt.Sprintf("%.2f", *p.MemoryLimitRatio), "GOMEMLIMIT share")
	}
	return params
}
