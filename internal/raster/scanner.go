package raster

import (
	"os"
	"path/filepath"
	"strings"
)

// File is an image discovered on disk by Scan.
type File struct {
	// Path is the absolute path to the file.
	Path string
	// RelPath is the path relative to the scanned root, slash-separated.
	RelPath string
	// Mime is derived from the extension; Load re-checks it.
	Mime string
	// Size is the file size in bytes.
	Size int64
}

// Scan walks root and returns every file with a recognised image
// extension. A root that is itself a file yields that one file.
func Scan(root string) ([]File, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []File{{
			Path:    abs,
			RelPath: filepath.Base(abs),
			Mime:    MimeForExt(strings.ToLower(filepath.Ext(abs))),
			Size:    info.Size(),
		}}, nil
	}

	var files []File
	err = filepath.Walk(abs, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			// Skip hidden directories.
			if strings.HasPrefix(info.Name(), ".") && path != abs {
				return filepath.SkipDir
			}
			return nil
		}

		mime := MimeForExt(strings.ToLower(filepath.Ext(path)))
		if mime == "" {
			return nil
		}

		rel, err := filepath.Rel(abs, path)
		if err != nil {
			return err
		}
		files = append(files, File{
			Path:    path,
			RelPath: filepath.ToSlash(rel),
			Mime:    mime,
			Size:    info.Size(),
		})
		return nil
	})
	return files, err
}

// ReadInput reads f from disk into a loader Input.
func ReadInput(f File) (Input, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return Input{}, err
	}
	return Input{Name: f.RelPath, Mime: f.Mime, Data: data}, nil
}
