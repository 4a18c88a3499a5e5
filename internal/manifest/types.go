package manifest

// FileName is the manifest's name inside an export directory or archive.
const FileName = "imgpress.manifest.json"

// Manifest describes one export: every artifact emitted across the
// selected images.
type Manifest struct {
	Version     int              `json:"version"`
	GeneratedAt string           `json:"generated_at"`
	Profile     string           `json:"profile"`
	Codecs      []string         `json:"codecs"`
	BasePath    string           `json:"base_path"`
	EngineInfo  *EngineInfo      `json:"engine_info,omitempty"`
	Images      map[string]Image `json:"images"`
	Stats       Stats            `json:"stats"`
}

// EngineInfo captures the optional deep engine's state at export time.
type EngineInfo struct {
	Deep   string `json:"deep"`   // "available", "unavailable", "untested"
	Engine string `json:"engine"` // engine that produced the deep results
}

// Image describes one source image and the artifacts exported for it.
type Image struct {
	Original  OriginalInfo `json:"original"`
	Artifacts []Artifact   `json:"artifacts"`
}

// OriginalInfo holds metadata about the source image.
type OriginalInfo struct {
	Name     string `json:"name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Format   string `json:"format"` // mime type
	Size     int64  `json:"size"`
	HasAlpha bool   `json:"has_alpha"`
}

// Artifact is one exported compression result.
type Artifact struct {
	Codec     string  `json:"codec"` // "quantized", "optimized", "deep", "webp", "avif"
	Mime      string  `json:"mime"`
	Size      int64   `json:"size"`  // bytes written
	Ratio     float64 `json:"ratio"` // size / original size
	ElapsedMs int64   `json:"elapsed_ms"`
	Engine    string  `json:"engine,omitempty"`
	Hash      string  `json:"hash"` // first 16 hex chars of xxhash64
	Path      string  `json:"path"` // relative to base_path
}

// Stats aggregates export metrics.
type Stats struct {
	TotalInputBytes  int64 `json:"total_input_bytes"`
	TotalOutputBytes int64 `json:"total_output_bytes"`
	TotalImages      int   `json:"total_images"`
	TotalArtifacts   int   `json:"total_artifacts"`
	NotSmaller       int   `json:"not_smaller,omitempty"` // artifacts at least as large as their original
	Skipped          int   `json:"skipped,omitempty"`     // image/codec pairs with nothing exported
}

// SupportedManifestVersion is the current schema version.
const SupportedManifestVersion = 1
