// Package config loads the event-builder's static configuration with
// viper: one process-wide GlobalConfig plus a list of per-pipe PipeConfig
// entries, each naming a ring-source adapter and glommer to wire together.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// CommonFields are settings every pipe's components can see regardless of
// kind — currently just a human label used in logging and metrics.
type CommonFields struct {
	Name string `mapstructure:"name"`
}

// RingSourceConfig mirrors the adapter configuration options in
// SPEC_FULL.md §6, loaded under `pipes[].ringsource`.
type RingSourceConfig struct {
	TransportURL        string   `mapstructure:"transport_url"`
	PermittedSourceIDs  []uint32 `mapstructure:"permitted_source_ids"`
	ExpectBodyHeaders   bool     `mapstructure:"expect_body_headers"`
	OneShot             bool     `mapstructure:"one_shot"`
	EndRunCount         uint32   `mapstructure:"end_run_count"`
	TimeoutSecs         uint32   `mapstructure:"timeout_secs"`
	TickOffset          int64    `mapstructure:"tick_offset"`
	Source              string   `mapstructure:"source"`
	WarnSuppressWindow  string   `mapstructure:"warn_suppress_window"`
}

// GlomConfig mirrors the glommer options in SPEC_FULL.md §6, loaded under
// `pipes[].glom`.
type GlomConfig struct {
	Building        bool   `mapstructure:"building"`
	CoincidenceDt   uint64 `mapstructure:"dt"`
	TimestampPolicy string `mapstructure:"timestamp_policy"` // "first" | "last" | "average"
	SourceID        uint32 `mapstructure:"source_id"`
}

// PipeConfig is one source->orderer->glommer->sink pipeline.
type PipeConfig struct {
	Common      CommonFields     `mapstructure:"common"`
	RingSource  RingSourceConfig `mapstructure:"ringsource"`
	Glom        GlomConfig       `mapstructure:"glom"`
	BuildWindow uint64           `mapstructure:"build_window"`
	Sources     []uint32         `mapstructure:"sources"` // pre-declared source ids
	Sink        SinkConfig       `mapstructure:"sink"`
}

// SinkConfig configures the downstream composite-item writer.
type SinkConfig struct {
	Type    string   `mapstructure:"type"` // "console" | "kafka"
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// MetricsConfig configures the Prometheus HTTP server.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// GlobalConfig holds settings shared across every pipe.
type GlobalConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// RootConfig is the top-level configuration document.
type RootConfig struct {
	Log    LoggerConfigAlias `mapstructure:"log"`
	Global GlobalConfig      `mapstructure:"global"`
	Pipes  []PipeConfig      `mapstructure:"pipes"`
}

// LoggerConfigAlias decouples internal/config from internal/log's type so
// neither package imports the other; internal/config only needs to decode
// and hand the raw fields to log.Init.
type LoggerConfigAlias struct {
	Level     string                   `mapstructure:"level"`
	Pattern   string                   `mapstructure:"pattern"`
	Time      string                   `mapstructure:"time"`
	Appenders []map[string]interface{} `mapstructure:"appenders"`
}

// Load reads and validates path (YAML, TOML, or JSON — whatever viper's
// extension sniffing detects) into a RootConfig. Environment variables
// override file values using DAQEVB_ as the key prefix, with "." replaced
// by "_" (e.g. DAQEVB_GLOBAL_METRICS_LISTEN).
func Load(path string) (*RootConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	v.SetEnvPrefix("daqevb")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root RootConfig
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := root.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &root, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pattern", "%time [%level] %field %msg\n")
	v.SetDefault("log.time", "2006-01-02T15:04:05.000Z07:00")

	v.SetDefault("global.metrics.enabled", true)
	v.SetDefault("global.metrics.listen", ":9090")
	v.SetDefault("global.metrics.path", "/metrics")
}

// Validate checks cross-field invariants Load's defaults don't already
// cover: every pipe needs at least one permitted source id, and a
// nonempty transport URL.
func (r *RootConfig) Validate() error {
	for i, p := range r.Pipes {
		if p.RingSource.TransportURL == "" {
			return fmt.Errorf("pipes[%d].ringsource.transport_url is required", i)
		}
		if len(p.RingSource.PermittedSourceIDs) == 0 {
			return fmt.Errorf("pipes[%d].ringsource.permitted_source_ids must be non-empty", i)
		}
		seen := make(map[uint32]bool, len(p.RingSource.PermittedSourceIDs))
		for _, id := range p.RingSource.PermittedSourceIDs {
			if seen[id] {
				return fmt.Errorf("pipes[%d].ringsource.permitted_source_ids contains duplicate id %d", i, id)
			}
			seen[id] = true
		}
	}
	return nil
}

// Hostname returns os.Hostname(), falling back to "unknown" — used to tag
// metrics and log lines with an identifiable origin.
func Hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
