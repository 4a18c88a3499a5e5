package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"time"
)

// New creates an empty manifest with defaults.
func New(profileName string, codecIDs ...string) *Manifest {
	return &Manifest{
		Version:     SupportedManifestVersion,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Profile:     profileName,
		Codecs:      append([]string{}, codecIDs...),
		BasePath:    "./",
		Images:      make(map[string]Image),
	}
}

// Merge folds other's codecs and artifacts into m. Original info already
// present in m wins.
func (m *Manifest) Merge(other *Manifest) {
	for _, c := range other.Codecs {
		if !slices.Contains(m.Codecs, c) {
			m.Codecs = append(m.Codecs, c)
		}
	}
	if m.EngineInfo == nil {
		m.EngineInfo = other.EngineInfo
	}
	for key, img := range other.Images {
		cur, ok := m.Images[key]
		if !ok {
			cur.Original = img.Original
		}
		cur.Artifacts = append(cur.Artifacts, img.Artifacts...)
		m.Images[key] = cur
	}
	m.Stats.Skipped += other.Stats.Skipped
	m.ComputeStats()
}

// ComputeStats recalculates aggregate statistics from images. The skip
// count is tracked by the exporter and left as it is.
func (m *Manifest) ComputeStats() {
	s := Stats{Skipped: m.Stats.Skipped}
	s.TotalImages = len(m.Images)
	for _, img := range m.Images {
		s.TotalInputBytes += img.Original.Size
		s.TotalArtifacts += len(img.Artifacts)
		for _, a := range img.Artifacts {
			s.TotalOutputBytes += a.Size
			if a.Size >= img.Original.Size {
				s.NotSmaller++
			}
		}
	}
	m.Stats = s
}

// Encode serializes the manifest as indented JSON with stable ordering.
func Encode(m *Manifest) ([]byte, error) {
	m.ComputeStats()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Decode parses a manifest. Unknown fields are ignored.
func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Images == nil {
		m.Images = make(map[string]Image)
	}
	return &m, nil
}

// WriteJSON serializes the manifest to a JSON file.
func WriteJSON(m *Manifest, path string) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadJSON loads a manifest file.
func ReadJSON(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Decode(data)
}
