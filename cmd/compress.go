package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AnyUserName/imgpress-cli/internal/codec"
	"github.com/AnyUserName/imgpress-cli/internal/engine"
	"github.com/AnyUserName/imgpress-cli/internal/export"
	"github.com/AnyUserName/imgpress-cli/internal/manifest"
	"github.com/AnyUserName/imgpress-cli/internal/orchestrator"
	"github.com/AnyUserName/imgpress-cli/internal/pipeline"
	"github.com/AnyUserName/imgpress-cli/internal/profile"
	"github.com/AnyUserName/imgpress-cli/internal/progress"
	"github.com/AnyUserName/imgpress-cli/internal/raster"
	"github.com/AnyUserName/imgpress-cli/internal/scheduler"
	"github.com/AnyUserName/imgpress-cli/internal/tui"
)

var (
	compressOutDir       string
	compressArchive      string
	compressProfile      string
	compressCodecs       []string
	compressExport       []string
	compressWorkers      int
	compressQuality      int
	compressAVIFQuality  int
	compressLevel        int
	compressIterations   int
	compressWebPLossless bool
	compressDither       bool
	compressDitherLevels int
	compressThrottle     time.Duration
	compressNoEngine     bool
	compressRetryEngine  bool
	compressNoRegress    bool
	compressProgress     bool
)

var compressCmd = &cobra.Command{
	Use:   "compress <input_dir_or_file>",
	Short: "Compress images with every engine and export the results",
	Long: `Scans the input for images (png, jpg, jpeg, gif, webp, bmp, tiff) and
runs each one through the enabled codecs in fast-first order:

  quantized  palette PNG (median cut, optional alpha dither)
  webp       libwebp, lossy or lossless
  avif       avifenc
  optimized  lossless PNG re-deflate, metadata stripped
  deep       zopflipng trials, best-compression PNG fallback

Results are exported as <name>_<codec><ext> into --out (or a .tar.zst
bundle with --archive) together with imgpress.manifest.json.

Engine binaries can be overridden with IMGPRESS_ZOPFLIPNG and
IMGPRESS_AVIFENC.`,
	Args: cobra.ExactArgs(1),
	RunE: runCompress,
}

func init() {
	f := compressCmd.Flags()
	f.StringVarP(&compressOutDir, "out", "o", "./imgpress_out", "output directory")
	f.StringVar(&compressArchive, "archive", "", "write a .tar.zst bundle instead of a directory")
	f.StringVarP(&compressProfile, "profile", "p", profile.DefaultName, "settings profile (balanced, small, fast)")
	f.StringSliceVar(&compressCodecs, "codecs", nil, "codecs to run (overrides profile)")
	f.StringSliceVar(&compressExport, "export", nil, "codecs to export (default: all that ran)")
	f.IntVarP(&compressWorkers, "workers", "w", 0, "parallel decode workers (0 = NumCPU)")
	f.IntVarP(&compressQuality, "quality", "q", 0, "quantized/webp quality 1-100 (0 = profile default)")
	f.IntVar(&compressAVIFQuality, "avif-quality", 0, "avif quality 1-100 (0 = profile default)")
	f.IntVar(&compressLevel, "level", -1, "lossless optimize level 0-6 (-1 = profile default)")
	f.IntVar(&compressIterations, "iterations", 0, "deep engine iterations (0 = profile default)")
	f.BoolVar(&compressWebPLossless, "webp-lossless", false, "pixel-identical webp")
	f.BoolVar(&compressDither, "dither", true, "alpha dither before palette reduction")
	f.IntVar(&compressDitherLevels, "dither-levels", 0, "alpha levels for the dither (0 = profile default)")
	f.DurationVar(&compressThrottle, "throttle", export.DefaultDelay, "pause between exported files")
	f.BoolVar(&compressNoEngine, "no-deep-engine", false, "never use zopflipng; deep runs use the fallback")
	f.BoolVar(&compressRetryEngine, "retry-engine", false, "re-probe an unavailable deep engine before each image")
	f.BoolVar(&compressNoRegress, "no-regress-size", true, "skip exporting results not smaller than the original")
	f.BoolVar(&compressProgress, "progress", true, "interactive progress view (only on a terminal)")
	rootCmd.AddCommand(compressCmd)
}

func runCompress(cmd *cobra.Command, args []string) error {
	start := time.Now()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	prof, err := resolveProfile(cmd)
	if err != nil {
		return err
	}
	logVerbose("profile: %s (codecs=%v, quality=%d, level=%d, iterations=%d)",
		prof.Name, prof.Codecs, prof.Quality, prof.Level, prof.Iterations)

	batch, err := pipeline.Load(ctx, pipeline.Config{
		Root:    args[0],
		Workers: compressWorkers,
		Logf:    logVerbose,
	})
	if err != nil {
		return fmt.Errorf("intake: %w", err)
	}
	// Report errors but don't fail the run for partial failures.
	for _, e := range batch.Errors {
		logf("error: %v", e)
	}

	useTUI := compressProgress && !verbose && isatty.IsTerminal(os.Stderr.Fd())
	var updates chan tui.Update
	if useTUI {
		updates = make(chan tui.Update, 64)
	}

	outcomes := newOutcomes()
	o, err := orchestrator.New(orchestrator.Config{
		Profile:     prof,
		Codecs:      codec.Config{AVIFEncPath: envOr("IMGPRESS_AVIFENC", "")},
		Engine:      &engine.ZopfliPNG{Path: envOr("IMGPRESS_ZOPFLIPNG", "")},
		NoEngine:    compressNoEngine,
		ExportDelay: compressThrottle,
		NoRegress:   compressNoRegress,
		OnEvent: func(ev scheduler.Event) {
			outcomes.record(ev)
			notify(ev, updates)
		},
		Logf: logVerbose,
	})
	if err != nil {
		return err
	}
	for _, img := range batch.Images {
		o.AddImage(img)
	}
	logVerbose("%s", o.Registry())

	uiDone := make(chan struct{})
	fwdDone := make(chan struct{})
	var sub chan progress.State
	if useTUI {
		program := tea.NewProgram(tui.NewModel(updates, len(batch.Images)), tea.WithOutput(os.Stderr))
		go func() {
			_, _ = program.Run()
			// The view may quit early; keep draining so senders never block.
			for range updates {
			}
			close(uiDone)
		}()
		sub = o.Progress().Subscribe(64)
		go func() {
			defer close(fwdDone)
			forwardProgress(sub, updates)
		}()
	} else {
		close(uiDone)
		close(fwdDone)
	}

	runErr := o.CompressAll(ctx, func(img *raster.SourceImage) {
		if compressRetryEngine && o.EngineStatus() == engine.Unavailable {
			logVerbose("retrying deep engine probe")
			o.ResetEngine()
		}
		if updates != nil {
			updates <- tui.Update{Kind: tui.ImageStarted, Image: img.Name}
		}
		logVerbose("compressing: %s (%dx%d)", img.Name, img.Width(), img.Height())
	})
	if useTUI {
		o.Progress().Unsubscribe(sub)
		<-fwdDone
		close(updates)
	}
	<-uiDone
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	for _, img := range o.Images() {
		fmt.Println(tui.RenderResults(img.Name, outcomes.rows(img, o.Results(img.ID))))
	}
	if err := o.EngineError(); err != nil {
		logVerbose("deep engine: %v", err)
	}
	if runErr != nil {
		return fmt.Errorf("interrupted: %w", runErr)
	}

	m, target, err := exportAll(ctx, o, prof)
	if err != nil {
		return err
	}
	printCompressReport(m, target, time.Since(start))
	return nil
}

// resolveProfile applies explicitly set flags on top of the named profile.
func resolveProfile(cmd *cobra.Command) (profile.Profile, error) {
	prof := profile.Get(compressProfile)
	if compressCodecs != nil {
		prof.Codecs = nil
		for _, id := range compressCodecs {
			k, err := codec.ParseKind(id)
			if err != nil {
				return prof, err
			}
			prof.Codecs = append(prof.Codecs, k.ID())
		}
	}
	if compressQuality > 0 {
		prof.Quality = compressQuality
	}
	if compressAVIFQuality > 0 {
		prof.AVIFQuality = compressAVIFQuality
	}
	if compressLevel >= 0 {
		prof.Level = compressLevel
	}
	if compressIterations > 0 {
		prof.Iterations = compressIterations
	}
	if compressDitherLevels > 0 {
		prof.DitherLevels = compressDitherLevels
	}
	if cmd.Flags().Changed("webp-lossless") {
		prof.WebPLossless = compressWebPLossless
	}
	if cmd.Flags().Changed("dither") {
		prof.Dither = compressDither
	}

	// Surface range errors before any image is decoded.
	for _, k := range codec.All {
		if err := prof.Settings(k).Validate(k); err != nil {
			return prof, err
		}
	}
	return prof, nil
}

// notify turns a scheduler event into a progress-view update or, without
// the view, a log line. Codec failures are always reported.
func notify(ev scheduler.Event, updates chan<- tui.Update) {
	switch ev.Type {
	case scheduler.Failed:
		var re *codec.RunError
		msg := fmt.Sprint(ev.Err)
		if errors.As(ev.Err, &re) {
			msg = re.Err.Error()
		}
		if updates != nil {
			updates <- tui.Update{Kind: tui.CodecFailed, Codec: ev.Kind.ID(), Err: msg}
			return
		}
		logf("%s failed: %s", ev.Kind.ID(), msg)
	case scheduler.Succeeded:
		if updates != nil {
			saved := int64(0)
			if ev.Result != nil {
				saved = int64(float64(ev.Result.Size)/ev.Result.Ratio) - ev.Result.Size
			}
			updates <- tui.Update{Kind: tui.CodecDone, Codec: ev.Kind.ID(), Saved: saved}
		}
	case scheduler.Discarded:
		logVerbose("%s result discarded", ev.Kind.ID())
	}
}

// forwardProgress relays tracker states to the progress view until sub
// is closed.
func forwardProgress(sub <-chan progress.State, updates chan<- tui.Update) {
	for st := range sub {
		if !st.Active {
			continue
		}
		updates <- tui.Update{
			Kind:     tui.CodecProgress,
			Codec:    st.Key,
			Fraction: st.Fraction,
			Phase:    st.Phase,
			ETA:      st.ETA,
		}
	}
}

// outcomes remembers the last failure per image and codec so the final
// table can show it next to the successful results.
type outcomes struct {
	failed map[string]map[codec.Kind]string
}

func newOutcomes() *outcomes {
	return &outcomes{failed: make(map[string]map[codec.Kind]string)}
}

func (c *outcomes) record(ev scheduler.Event) {
	switch ev.Type {
	case scheduler.Failed:
		if c.failed[ev.ImageID] == nil {
			c.failed[ev.ImageID] = make(map[codec.Kind]string)
		}
		var re *codec.RunError
		msg := fmt.Sprint(ev.Err)
		if errors.As(ev.Err, &re) {
			msg = re.Err.Error()
		}
		c.failed[ev.ImageID][ev.Kind] = msg
	case scheduler.Succeeded:
		delete(c.failed[ev.ImageID], ev.Kind)
	}
}

func (c *outcomes) rows(img *raster.SourceImage, results map[codec.Kind]*codec.Result) []tui.ResultRow {
	var rows []tui.ResultRow
	for _, k := range codec.Priority {
		if msg, ok := c.failed[img.ID][k]; ok {
			rows = append(rows, tui.ResultRow{Codec: k.ID(), Err: msg})
			continue
		}
		r, ok := results[k]
		if !ok {
			continue
		}
		rows = append(rows, tui.ResultRow{
			Codec:   k.ID(),
			Size:    r.Size,
			Ratio:   r.Ratio,
			Elapsed: fmt.Sprintf("%dms", r.ElapsedMillis()),
			Engine:  r.Engine,
		})
	}
	return rows
}

// exportAll writes every requested codec's results into one sink and
// finishes with the combined manifest.
func exportAll(ctx context.Context, o *orchestrator.Orchestrator, prof profile.Profile) (*manifest.Manifest, string, error) {
	kinds, err := exportKinds(prof)
	if err != nil {
		return nil, "", err
	}

	var sink export.Sink
	target := compressOutDir
	if compressArchive != "" {
		if !export.IsArchivePath(compressArchive) {
			return nil, "", fmt.Errorf("--archive must end in .tar.zst: %s", compressArchive)
		}
		target = compressArchive
		sink, err = export.NewArchiveSink(compressArchive)
	} else {
		sink, err = export.NewDirSink(compressOutDir)
	}
	if err != nil {
		return nil, "", err
	}
	if abs, absErr := filepath.Abs(target); absErr == nil {
		target = abs
	}
	logVerbose("export:  %s", target)

	m := manifest.New(prof.Name)
	for _, k := range kinds {
		rep, err := o.Export(ctx, k, sink, false)
		if err != nil {
			sink.Close()
			return nil, "", err
		}
		for _, name := range rep.Larger {
			logVerbose("not exported (no smaller than original): %s %s", name, k.ID())
		}
		m.Merge(rep.Manifest)
	}

	data, err := manifest.Encode(m)
	if err != nil {
		sink.Close()
		return nil, "", err
	}
	if err := sink.Write(manifest.FileName, data); err != nil {
		sink.Close()
		return nil, "", fmt.Errorf("write manifest: %w", err)
	}
	if err := sink.Close(); err != nil {
		return nil, "", err
	}
	return m, target, nil
}

func exportKinds(prof profile.Profile) ([]codec.Kind, error) {
	ids := compressExport
	if ids == nil {
		ids = prof.Codecs
	}
	var kinds []codec.Kind
	for _, id := range ids {
		k, err := codec.ParseKind(id)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func printCompressReport(m *manifest.Manifest, target string, elapsed time.Duration) {
	s := m.Stats
	ratio := "-"
	if s.TotalInputBytes > 0 {
		ratio = fmt.Sprintf("%.1f%% of original", float64(s.TotalOutputBytes)/float64(s.TotalInputBytes)*100)
	}
	rows := []tui.SummaryRow{
		{Label: "Images", Value: fmt.Sprintf("%d", s.TotalImages)},
		{Label: "Artifacts", Value: fmt.Sprintf("%d", s.TotalArtifacts)},
		{Label: "Input size", Value: tui.FormatBytes(s.TotalInputBytes)},
		{Label: "Output size", Value: tui.FormatBytes(s.TotalOutputBytes)},
		{Label: "Ratio", Value: ratio},
		{Label: "Time", Value: elapsed.Round(time.Millisecond).String()},
	}
	if s.Skipped > 0 {
		rows = append(rows, tui.SummaryRow{Label: "Skipped", Value: fmt.Sprintf("%d", s.Skipped)})
	}
	if m.EngineInfo != nil {
		rows = append(rows, tui.SummaryRow{Label: "Deep engine", Value: m.EngineInfo.Deep + " (" + m.EngineInfo.Engine + ")"})
	}
	fmt.Println()
	fmt.Println(tui.RenderSummary(rows))
	fmt.Printf("Exported to: %s\n", target)
}
