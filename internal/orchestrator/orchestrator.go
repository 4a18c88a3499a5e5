// Package orchestrator owns one compression session: the working set of
// images, the codec settings, the engine capability, the result store and
// the scheduler that fills it.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/AnyUserName/imgpress-cli/internal/codec"
	"github.com/AnyUserName/imgpress-cli/internal/engine"
	"github.com/AnyUserName/imgpress-cli/internal/export"
	"github.com/AnyUserName/imgpress-cli/internal/manifest"
	"github.com/AnyUserName/imgpress-cli/internal/profile"
	"github.com/AnyUserName/imgpress-cli/internal/progress"
	"github.com/AnyUserName/imgpress-cli/internal/raster"
	"github.com/AnyUserName/imgpress-cli/internal/scheduler"
	"github.com/AnyUserName/imgpress-cli/internal/store"
)

// Config holds the session parameters.
type Config struct {
	Profile profile.Profile
	Codecs  codec.Config

	// Engine is the deep engine. Nil means zopflipng from PATH. NoEngine
	// wins over Engine.
	Engine   engine.Engine
	NoEngine bool

	ExportDelay time.Duration
	NoRegress   bool // export only results smaller than the original

	Yield   func()
	OnEvent func(scheduler.Event)
	Logf    func(format string, args ...any)
}

// Orchestrator is safe for use from one host goroutine plus the goroutine
// driving Run.
type Orchestrator struct {
	cfg        Config
	capability *engine.Capability
	registry   *codec.Registry
	settings   *codec.Set
	store      *store.Store
	tracker    *progress.Tracker
	sched      *scheduler.Scheduler

	images []*raster.SourceImage // selection order
}

// New creates a session with the profile's settings applied.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Profile.Name == "" {
		cfg.Profile = profile.Get(profile.DefaultName)
	}
	eng := cfg.Engine
	switch {
	case cfg.NoEngine:
		eng = nil
	case eng == nil:
		eng = &engine.ZopfliPNG{}
	}

	o := &Orchestrator{
		cfg:        cfg,
		capability: engine.NewCapability(eng),
		settings:   codec.NewSet(),
		store:      store.New(),
		tracker:    progress.NewTracker(),
	}
	if err := cfg.Profile.Apply(o.settings); err != nil {
		return nil, fmt.Errorf("profile %s: %w", cfg.Profile.Name, err)
	}
	o.registry = codec.NewRegistry(cfg.Codecs, o.capability)
	o.sched = scheduler.New(scheduler.Config{
		Registry: o.registry,
		Store:    o.store,
		Settings: o.settings,
		Tracker:  o.tracker,
		Yield:    cfg.Yield,
		OnEvent:  cfg.OnEvent,
		Logf:     cfg.Logf,
	})
	return o, nil
}

// Registry exposes the adapters, mainly so tests can swap one out.
func (o *Orchestrator) Registry() *codec.Registry { return o.registry }

// LoadImage decodes in and adds it to the working set.
func (o *Orchestrator) LoadImage(in raster.Input) (*raster.SourceImage, error) {
	img, err := raster.Load(in)
	if err != nil {
		return nil, err
	}
	o.AddImage(img)
	return img, nil
}

// AddImage appends img to the working set. Adding an image twice is a
// no-op.
func (o *Orchestrator) AddImage(img *raster.SourceImage) {
	if o.find(img.ID) >= 0 {
		return
	}
	o.images = append(o.images, img)
}

// Images returns the working set in selection order.
func (o *Orchestrator) Images() []*raster.SourceImage {
	return append([]*raster.SourceImage(nil), o.images...)
}

// Select makes the image with id active. Work queued for the previous
// image is abandoned.
func (o *Orchestrator) Select(id string) error {
	i := o.find(id)
	if i < 0 {
		return fmt.Errorf("unknown image %q", id)
	}
	o.sched.SetActiveImage(o.images[i])
	return nil
}

// Active returns the active image, or nil.
func (o *Orchestrator) Active() *raster.SourceImage { return o.sched.Active() }

// RemoveImage drops an image and releases all of its results.
func (o *Orchestrator) RemoveImage(id string) error {
	i := o.find(id)
	if i < 0 {
		return fmt.Errorf("unknown image %q", id)
	}
	if a := o.sched.Active(); a != nil && a.ID == id {
		o.sched.SetActiveImage(nil)
	}
	o.store.DropImage(id)
	o.images = append(o.images[:i], o.images[i+1:]...)
	return nil
}

// Settings returns the current settings for kind.
func (o *Orchestrator) Settings(kind codec.Kind) codec.Settings {
	return o.settings.Get(kind)
}

// UpdateSettings changes one codec's settings. Only that codec's result
// for the active image is recomputed.
func (o *Orchestrator) UpdateSettings(kind codec.Kind, s codec.Settings) error {
	return o.sched.UpdateSettings(kind, s)
}

// Run drives the scheduler until the active image's queue is drained.
func (o *Orchestrator) Run(ctx context.Context) error {
	return o.sched.Run(ctx)
}

// CompressAll selects every image in turn and runs its queue. It is the
// batch mode of the CLI host. before, if set, is called as each image
// becomes active.
func (o *Orchestrator) CompressAll(ctx context.Context, before func(*raster.SourceImage)) error {
	for _, img := range o.Images() {
		if before != nil {
			before(img)
		}
		o.sched.SetActiveImage(img)
		if err := o.sched.Run(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Results returns the cached results for an image, keyed by codec.
func (o *Orchestrator) Results(id string) map[codec.Kind]*codec.Result {
	return o.store.ForImage(id)
}

// Result returns one cached result.
func (o *Orchestrator) Result(id string, kind codec.Kind) (*codec.Result, bool) {
	return o.store.Get(store.Key{ImageID: id, Kind: kind})
}

// Export writes kind's results for the whole working set to sink, in
// selection order, with the configured throttle.
func (o *Orchestrator) Export(ctx context.Context, kind codec.Kind, sink export.Sink, withManifest bool) (*export.Report, error) {
	ex := &export.Exporter{
		Store:      o.store,
		Delay:      o.cfg.ExportDelay,
		Profile:    o.cfg.Profile.Name,
		Manifest:   withManifest,
		EngineInfo: o.engineInfo(kind),
		NoRegress:  o.cfg.NoRegress,
		Logf:       o.cfg.Logf,
	}
	return ex.Export(ctx, kind, o.Images(), sink)
}

func (o *Orchestrator) engineInfo(kind codec.Kind) *manifest.EngineInfo {
	if kind != codec.DeepIterativeLossless {
		return nil
	}
	info := &manifest.EngineInfo{Deep: o.capability.Status().String(), Engine: "fallback"}
	if o.capability.Status() == engine.Available && o.capability.Engine() != nil {
		info.Engine = o.capability.Engine().Name()
	}
	return info
}

// EngineStatus reports the deep engine's availability without probing.
func (o *Orchestrator) EngineStatus() engine.Status { return o.capability.Status() }

// EngineError returns the reason the deep engine is unavailable, if any.
func (o *Orchestrator) EngineError() error { return o.capability.Err() }

// ProbeEngine probes the deep engine now instead of on first use.
func (o *Orchestrator) ProbeEngine(ctx context.Context) engine.Status {
	return o.capability.Ensure(ctx)
}

// ResetEngine forces the next deep run to probe the engine again.
func (o *Orchestrator) ResetEngine() { o.capability.Reset() }

// ForceEngine pins the engine status.
func (o *Orchestrator) ForceEngine(s engine.Status) { o.capability.Force(s) }

// Progress returns the tracker observers subscribe to.
func (o *Orchestrator) Progress() *progress.Tracker { return o.tracker }

// State returns the scheduler state.
func (o *Orchestrator) State() scheduler.State { return o.sched.State() }

func (o *Orchestrator) find(id string) int {
	for i, img := range o.images {
		if img.ID == id {
			return i
		}
	}
	return -1
}
