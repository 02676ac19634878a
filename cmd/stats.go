package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"daqevb.dev/evbcore/internal/config"
)

var statsYAML bool

// pipeSummary is the YAML-marshalable view of one configured pipe,
// separate from config.PipeConfig so the output shape is stable even if
// the mapstructure tags on the config types change.
type pipeSummary struct {
	Name             string   `yaml:"name"`
	Transport        string   `yaml:"transport"`
	PermittedSources []uint32 `yaml:"permitted_sources"`
	OneShot          bool     `yaml:"one_shot"`
	EndRunCount      uint32   `yaml:"end_run_count"`
	BuildWindow      uint64   `yaml:"build_window"`
	GlomBuilding     bool     `yaml:"glom_building"`
	GlomDt           uint64   `yaml:"glom_dt"`
	GlomPolicy       string   `yaml:"glom_policy"`
	Sink             string   `yaml:"sink"`
}

// statsCmd prints a static summary of a config file's pipes without
// starting them — the permitted source ids, build window, coincidence
// window, and sink each pipe would wire up. There is no running daemon
// to query for live Statistics() snapshots; those are only ever read
// from inside the owning orderer task (internal/runner.Pipe) and
// published as Prometheus gauges, per SPEC_FULL.md §5.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print a summary of the pipes a config file would start",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		summaries := make([]pipeSummary, 0, len(root.Pipes))
		for _, pc := range root.Pipes {
			sinkType := pc.Sink.Type
			if sinkType == "" {
				sinkType = "console"
			}
			summaries = append(summaries, pipeSummary{
				Name:             pc.Common.Name,
				Transport:        pc.RingSource.TransportURL,
				PermittedSources: pc.RingSource.PermittedSourceIDs,
				OneShot:          pc.RingSource.OneShot,
				EndRunCount:      pc.RingSource.EndRunCount,
				BuildWindow:      pc.BuildWindow,
				GlomBuilding:     pc.Glom.Building,
				GlomDt:           pc.Glom.CoincidenceDt,
				GlomPolicy:       pc.Glom.TimestampPolicy,
				Sink:             sinkType,
			})
		}

		if statsYAML {
			out, err := yaml.Marshal(summaries)
			if err != nil {
				return fmt.Errorf("marshaling summary: %w", err)
			}
			fmt.Print(string(out))
			return nil
		}

		if len(summaries) == 0 {
			fmt.Println("no pipes configured")
			return nil
		}
		for _, s := range summaries {
			fmt.Printf("pipe %q\n", s.Name)
			fmt.Printf("  transport:          %s\n", s.Transport)
			fmt.Printf("  permitted sources:  %v\n", s.PermittedSources)
			fmt.Printf("  one-shot:           %v (end_run_count=%d)\n", s.OneShot, s.EndRunCount)
			fmt.Printf("  build window:       %d ticks\n", s.BuildWindow)
			fmt.Printf("  glom:               building=%v dt=%d policy=%s\n", s.GlomBuilding, s.GlomDt, s.GlomPolicy)
			fmt.Printf("  sink:               %s\n", s.Sink)
		}
		if root.Global.Metrics.Enabled {
			fmt.Printf("metrics endpoint:     %s%s\n", root.Global.Metrics.Listen, root.Global.Metrics.Path)
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsYAML, "yaml", false, "print the summary as YAML instead of plain text")
}
