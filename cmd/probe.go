package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/imgpress-cli/internal/codec"
	"github.com/AnyUserName/imgpress-cli/internal/engine"
	"github.com/AnyUserName/imgpress-cli/internal/orchestrator"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Report which compression engines are usable here",
	Args:  cobra.NoArgs,
	RunE:  runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(_ *cobra.Command, _ []string) error {
	o, err := orchestrator.New(orchestrator.Config{
		Codecs: codec.Config{AVIFEncPath: envOr("IMGPRESS_AVIFENC", "")},
		Engine: &engine.ZopfliPNG{Path: envOr("IMGPRESS_ZOPFLIPNG", "")},
		Logf:   logVerbose,
	})
	if err != nil {
		return err
	}

	status := o.ProbeEngine(context.Background())
	fmt.Println()
	fmt.Printf("  %s\n", o.Registry())
	fmt.Println()
	for _, k := range codec.Priority {
		fmt.Printf("  %-9s  %s\n", k.ID(), describeCodec(o, k, status))
	}
	fmt.Println()
	if err := o.EngineError(); err != nil {
		fmt.Printf("  deep engine: %v\n\n", err)
	}
	return nil
}

func describeCodec(o *orchestrator.Orchestrator, k codec.Kind, deep engine.Status) string {
	switch k {
	case codec.DeepIterativeLossless:
		if deep == engine.Available {
			return "✓ zopflipng"
		}
		return "~ fallback (png best compression)"
	case codec.AVIF:
		if a, ok := o.Registry().Get(k).(*codec.AVIFAdapter); ok && a.Available() {
			return "✓ avifenc"
		}
		return "✗ avifenc not found"
	case codec.WebP:
		return "✓ libwebp (built in)"
	default:
		return "✓ built in"
	}
}
