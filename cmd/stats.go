package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/imgpress-cli/internal/codec"
	"github.com/AnyUserName/imgpress-cli/internal/manifest"
	"github.com/AnyUserName/imgpress-cli/internal/tui"
)

var statsCmd = &cobra.Command{
	Use:   "stats <out_dir|manifest|archive.tar.zst>",
	Short: "Display statistics for an export",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(_ *cobra.Command, args []string) error {
	src, err := openExport(args[0])
	if err != nil {
		return err
	}
	printStats(src.manifest)
	return nil
}

func printStats(m *manifest.Manifest) {
	fmt.Println()
	fmt.Printf("  Manifest version: %d\n", m.Version)
	fmt.Printf("  Generated:        %s\n", m.GeneratedAt)
	fmt.Printf("  Profile:          %s\n", m.Profile)
	if m.EngineInfo != nil {
		fmt.Printf("  Deep engine:      %s (%s)\n", m.EngineInfo.Deep, m.EngineInfo.Engine)
	}
	fmt.Println()

	s := m.Stats
	fmt.Printf("  Total images:     %d\n", s.TotalImages)
	fmt.Printf("  Total artifacts:  %d\n", s.TotalArtifacts)
	fmt.Printf("  Input size:       %s\n", tui.FormatBytes(s.TotalInputBytes))
	fmt.Printf("  Output size:      %s\n", tui.FormatBytes(s.TotalOutputBytes))
	if s.Skipped > 0 {
		fmt.Printf("  Skipped:          %d\n", s.Skipped)
	}
	fmt.Println()

	// Per-codec breakdown.
	type codecStat struct {
		count   int
		bytes   int64
		input   int64
		elapsed int64
	}
	codecStats := map[string]codecStat{}
	for _, img := range m.Images {
		for _, a := range img.Artifacts {
			cs := codecStats[a.Codec]
			cs.count++
			cs.bytes += a.Size
			cs.input += img.Original.Size
			cs.elapsed += a.ElapsedMs
			codecStats[a.Codec] = cs
		}
	}

	fmt.Println("  Codec breakdown:")
	for _, k := range codec.Priority {
		cs, ok := codecStats[k.ID()]
		if !ok {
			continue
		}
		ratio := 0.0
		if cs.input > 0 {
			ratio = float64(cs.bytes) / float64(cs.input) * 100
		}
		fmt.Printf("    %-9s  %4d files  %10s  %5.1f%%  avg %dms\n",
			k.ID(), cs.count, tui.FormatBytes(cs.bytes), ratio, cs.elapsed/int64(cs.count))
	}
	fmt.Println()

	// Best codec per image.
	wins := map[string]int{}
	for _, img := range m.Images {
		best := -1
		for i, a := range img.Artifacts {
			if best < 0 || a.Size < img.Artifacts[best].Size {
				best = i
			}
		}
		if best >= 0 {
			wins[img.Artifacts[best].Codec]++
		}
	}
	var winners []string
	for c := range wins {
		winners = append(winners, c)
	}
	sort.Slice(winners, func(i, j int) bool {
		if wins[winners[i]] != wins[winners[j]] {
			return wins[winners[i]] > wins[winners[j]]
		}
		return winners[i] < winners[j]
	})
	if len(winners) > 0 {
		fmt.Println("  Smallest output per image:")
		for _, c := range winners {
			fmt.Printf("    %-9s  %4d images\n", c, wins[c])
		}
		fmt.Println()
	}

	// Warnings.
	var warnings []string
	for key, img := range m.Images {
		if len(img.Artifacts) == 0 {
			warnings = append(warnings, fmt.Sprintf("image %q has no artifacts", key))
		}
		for _, a := range img.Artifacts {
			if a.Size >= img.Original.Size {
				warnings = append(warnings, fmt.Sprintf("image %q: %s output is not smaller than the original", key, a.Codec))
			}
		}
	}
	if len(warnings) > 0 {
		sort.Strings(warnings)
		fmt.Printf("  Warnings (%d):\n", len(warnings))
		for _, w := range warnings {
			fmt.Printf("    ⚠ %s\n", w)
		}
		fmt.Println()
	}
}
