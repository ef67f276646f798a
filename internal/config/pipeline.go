package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// BuildResult holds the output of the full configuration pipeline.
type BuildResult struct {
	Config         *Config
	ExplicitFields map[string]bool
	ProfileApplied ProfileName
}

// BuildConfig runs the configuration resolution pipeline on args:
//
//	DefaultConfig → Profile → YAML → CLI → Validate
//
// The profile comes from -profile, else from the YAML file. Profile values
// never override a field the user set in either place.
func BuildConfig(fs *flag.FlagSet, args []string) (*BuildResult, error) {
	cli := DefaultConfig()
	registerFlags(fs, cli)
	fs.Usage = PrintUsage
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	result := &BuildResult{}
	cfg := DefaultConfig()
	cliExplicit := ExplicitFlags(fs)

	profileName := ""
	if cliExplicit["profile"] {
		profileName = cli.Profile
	}

	var yamlCfg *YAMLConfig
	yamlExplicit := make(map[string]bool)
	if cli.ConfigFile != "" {
		data, err := os.ReadFile(cli.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", cli.ConfigFile, err)
		}
		yamlExplicit, err = ExplicitYAMLFields(data)
		if err != nil {
			return nil, fmt.Errorf("analyzing config file %s: %w", cli.ConfigFile, err)
		}
		yamlCfg, err = ParseYAML(data)
		if err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", cli.ConfigFile, err)
		}
		if profileName == "" {
			profileName = yamlCfg.Profile
		}
	}

	result.ExplicitFields = MergeExplicitFields(cliExplicit, yamlExplicit)

	if profileName != "" {
		if err := ApplyProfile(cfg, ProfileName(profileName), result.ExplicitFields); err != nil {
			return nil, fmt.Errorf("applying profile %q: %w", profileName, err)
		}
		result.ProfileApplied = ProfileName(profileName)
	}
	if yamlCfg != nil {
		mergeYAMLIntoConfig(cfg, yamlCfg)
	}
	applyFlagOverrides(fs, cfg, cli)
	result.Config = cfg

	// Introspection flags print and exit; the rest of the config may be incomplete.
	if cfg.ShowHelp || cfg.ShowVersion || cfg.ShowProfile != "" || cfg.ValidateFile != "" {
		return result, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}

// HandleEarlyExits checks for flags like -show-profile, -validate, -help and
// -version that print output and stop. It returns true with the process exit
// code when the program should exit.
func HandleEarlyExits(cfg *Config) (bool, int) {
	if cfg.ShowHelp {
		PrintUsage()
		return true, 0
	}

	if cfg.ShowVersion {
		PrintVersion()
		return true, 0
	}

	if cfg.ShowProfile != "" {
		output, err := DumpProfile(ProfileName(cfg.ShowProfile))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return true, 1
		}
		fmt.Println(output)
		return true, 0
	}

	if cfg.ValidateFile != "" {
		res := ValidateFile(cfg.ValidateFile)
		fmt.Println(res.JSON())
		if !res.Valid {
			return true, 1
		}
		return true, 0
	}

	return false, 0
}

// DumpEffectiveConfig returns the effective config as a human-readable summary.
func DumpEffectiveConfig(result *BuildResult) string {
	var b strings.Builder
	cfg := result.Config

	b.WriteString("Effective Configuration\n")
	b.WriteString(strings.Repeat("=", 60))
	b.WriteString("\n")
	if result.ProfileApplied != "" {
		fmt.Fprintf(&b, "Profile: %s\n", result.ProfileApplied)
	}
	b.WriteString("\n")

	b.WriteString("Queue:\n")
	fmt.Fprintf(&b, "  name: %s\n", cfg.QueueName)
	fmt.Fprintf(&b, "  max_size: %d (%s)\n", cfg.QueueMaxSize, cfg.QueueSizer)
	fmt.Fprintf(&b, "  recent_ratio: %.2f\n", cfg.QueueRecentRatio)
	fmt.Fprintf(&b, "  log_read_ratio: %.2f\n", cfg.QueueLogReadRatio)
	fmt.Fprintf(&b, "  start: %s\n", cfg.QueueStart)
	b.WriteString("\n")

	b.WriteString("Store:\n")
	fmt.Fprintf(&b, "  type: %s\n", cfg.StoreType)
	fmt.Fprintf(&b, "  path: %s\n", cfg.StorePath)
	fmt.Fprintf(&b, "  read_batch: %d\n", cfg.StoreReadBatch)
	switch cfg.StoreType {
	case StoreWAL:
		fmt.Fprintf(&b, "  chunk_size: %s\n", FormatByteSize(cfg.WALChunkSize))
		fmt.Fprintf(&b, "  compression: %s\n", cfg.WALCompression)
		fmt.Fprintf(&b, "  sync_mode: %s\n", cfg.WALSyncMode)
	case StorePebble:
		fmt.Fprintf(&b, "  fsync: %s\n", cfg.PebbleFsync)
	}
	b.WriteString("\n")

	b.WriteString("Watermark:\n")
	fmt.Fprintf(&b, "  source: %s\n", cfg.WatermarkSource)
	if cfg.WatermarkSource == WatermarkRedis {
		fmt.Fprintf(&b, "  redis: %s key=%s\n", cfg.RedisAddr, cfg.RedisKey)
	}
	b.WriteString("\n")

	b.WriteString("Relay:\n")
	fmt.Fprintf(&b, "  input: %s\n", cfg.InputPath)
	fmt.Fprintf(&b, "  output: %s\n", cfg.OutputPath)
	fmt.Fprintf(&b, "  sink_retries: %d\n", cfg.RelaySinkRetries)
	fmt.Fprintf(&b, "  truncate: %t\n", cfg.RelayTruncate)
	b.WriteString("\n")

	b.WriteString("Memory:\n")
	fmt.Fprintf(&b, "  limit_ratio: %.2f\n", cfg.MemoryLimitRatio)
	return b.String()
}

// LogProfileInfo logs the profile startup message and its prerequisites.
func LogProfileInfo(profileName ProfileName, logFn func(msg string, fields map[string]interface{})) {
	p, err := GetProfile(profileName)
	if err != nil {
		return
	}

	fields := map[string]interface{}{
		"profile": string(profileName),
	}
	if p.StoreType != nil {
		fields["store"] = *p.StoreType
	}
	if p.WALSyncMode != nil {
		fields["wal_sync_mode"] = *p.WALSyncMode
	}
	if p.RelayTruncate != nil {
		fields["truncate"] = *p.RelayTruncate
	}
	logFn(fmt.Sprintf("profile=%s settings applied", profileName), fields)

	for _, pr := range p.Prerequisites() {
		logFn(fmt.Sprintf("profile prerequisite: %s", pr.Description), map[string]interface{}{
			"type":     pr.Type,
			"severity": pr.Severity,
		})
	}
}
