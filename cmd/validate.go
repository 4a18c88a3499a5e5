package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/imgpress-cli/internal/codec"
	"github.com/AnyUserName/imgpress-cli/internal/export"
	"github.com/AnyUserName/imgpress-cli/internal/hasher"
	"github.com/AnyUserName/imgpress-cli/internal/manifest"
)

var validateHashes bool

var validateCmd = &cobra.Command{
	Use:   "validate <out_dir|manifest|archive.tar.zst>",
	Short: "Validate an export manifest and check referenced files exist",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateHashes, "hashes", true, "re-hash every artifact")
	rootCmd.AddCommand(validateCmd)
}

// exportSource is a loaded export: its manifest plus a way to read the
// artifacts it references.
type exportSource struct {
	manifest *manifest.Manifest
	read     func(rel string) ([]byte, error)
}

// openExport accepts an export directory, a manifest file or a .tar.zst
// bundle.
func openExport(path string) (*exportSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if !info.IsDir() && export.IsArchivePath(path) {
		files, err := export.ReadArchive(path)
		if err != nil {
			return nil, err
		}
		data, ok := files[manifest.FileName]
		if !ok {
			return nil, fmt.Errorf("%s: no %s in archive", path, manifest.FileName)
		}
		m, err := manifest.Decode(data)
		if err != nil {
			return nil, err
		}
		return &exportSource{manifest: m, read: func(rel string) ([]byte, error) {
			data, ok := files[rel]
			if !ok {
				return nil, os.ErrNotExist
			}
			return data, nil
		}}, nil
	}

	// If path is a directory, look for manifest inside.
	if info.IsDir() {
		path = filepath.Join(path, manifest.FileName)
	}
	m, err := manifest.ReadJSON(path)
	if err != nil {
		return nil, err
	}
	baseDir := filepath.Dir(path)
	return &exportSource{manifest: m, read: func(rel string) ([]byte, error) {
		return os.ReadFile(filepath.Join(baseDir, filepath.FromSlash(rel)))
	}}, nil
}

func runValidate(_ *cobra.Command, args []string) error {
	src, err := openExport(args[0])
	if err != nil {
		return err
	}

	errs := validateManifest(src, validateHashes)
	m := src.manifest
	if len(errs) == 0 {
		fmt.Println("  ✓ Manifest is valid")
		fmt.Printf("  ✓ %d images, %d artifacts, all files present\n", m.Stats.TotalImages, m.Stats.TotalArtifacts)
		return nil
	}

	fmt.Printf("  ✗ Manifest has %d error(s):\n", len(errs))
	for _, e := range errs {
		fmt.Printf("    • %s\n", e)
	}
	return fmt.Errorf("validation failed with %d errors", len(errs))
}

func validateManifest(src *exportSource, hashes bool) []string {
	m := src.manifest
	var errs []string

	if m.Version != manifest.SupportedManifestVersion {
		errs = append(errs, fmt.Sprintf("unsupported manifest version: %d", m.Version))
	}
	for _, c := range m.Codecs {
		if _, err := codec.ParseKind(c); err != nil {
			errs = append(errs, fmt.Sprintf("codecs: %v", err))
		}
	}

	seenPaths := map[string]string{}
	for key, img := range m.Images {
		if img.Original.Width <= 0 || img.Original.Height <= 0 {
			errs = append(errs, fmt.Sprintf("image %q: invalid original dimensions %dx%d",
				key, img.Original.Width, img.Original.Height))
		}
		if img.Original.Size <= 0 {
			errs = append(errs, fmt.Sprintf("image %q: invalid original size %d", key, img.Original.Size))
		}
		if len(img.Artifacts) == 0 {
			errs = append(errs, fmt.Sprintf("image %q: no artifacts", key))
		}

		for i, a := range img.Artifacts {
			k, err := codec.ParseKind(a.Codec)
			if err != nil {
				errs = append(errs, fmt.Sprintf("image %q artifact[%d]: %v", key, i, err))
			} else if a.Mime != k.Mime() {
				errs = append(errs, fmt.Sprintf("image %q artifact[%d]: mime %q does not match codec %s", key, i, a.Mime, k))
			}
			if a.Ratio <= 0 {
				errs = append(errs, fmt.Sprintf("image %q artifact[%d]: invalid ratio %.4f", key, i, a.Ratio))
			} else if img.Original.Size > 0 {
				want := float64(a.Size) / float64(img.Original.Size)
				if diff := a.Ratio - want; diff > 1e-9 || diff < -1e-9 {
					errs = append(errs, fmt.Sprintf("image %q artifact[%d]: ratio %.6f != size/original %.6f", key, i, a.Ratio, want))
				}
			}
			if a.Hash == "" {
				errs = append(errs, fmt.Sprintf("image %q artifact[%d]: missing hash", key, i))
			}
			if a.Path == "" {
				errs = append(errs, fmt.Sprintf("image %q artifact[%d]: missing path", key, i))
				continue
			}

			// Check duplicate paths.
			if other, dup := seenPaths[a.Path]; dup {
				errs = append(errs, fmt.Sprintf("image %q artifact[%d]: path %q already used by %q", key, i, a.Path, other))
			}
			seenPaths[a.Path] = key

			data, err := src.read(a.Path)
			if err != nil {
				errs = append(errs, fmt.Sprintf("image %q artifact[%d]: file not found: %s", key, i, a.Path))
				continue
			}
			if int64(len(data)) != a.Size {
				errs = append(errs, fmt.Sprintf("image %q artifact[%d]: size mismatch: manifest=%d, file=%d",
					key, i, a.Size, len(data)))
			}
			if hashes && a.Hash != "" && hasher.ContentHash(data, len(a.Hash)) != a.Hash {
				errs = append(errs, fmt.Sprintf("image %q artifact[%d]: hash mismatch for %s", key, i, a.Path))
			}
		}
	}

	// Verify stats consistency.
	artifactCount := 0
	for _, img := range m.Images {
		artifactCount += len(img.Artifacts)
	}
	if m.Stats.TotalImages != len(m.Images) {
		errs = append(errs, fmt.Sprintf("stats.total_images mismatch: %d != %d", m.Stats.TotalImages, len(m.Images)))
	}
	if m.Stats.TotalArtifacts != artifactCount {
		errs = append(errs, fmt.Sprintf("stats.total_artifacts mismatch: %d != %d", m.Stats.TotalArtifacts, artifactCount))
	}

	return errs
}
