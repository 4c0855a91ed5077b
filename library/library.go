// Package library enumerates the images the slideshow plays
package library

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"github.com/aouyang1/photoslideshow/util"
	mapset "github.com/deckarep/golang-set/v2"
)

// ErrEmptyLibrary is returned when none of the folders hold a supported image.
var ErrEmptyLibrary = errors.New("no images found")

// Image is one enumerated image file.
type Image struct {
	Path   string `json:"path"`
	Folder string `json:"folder"`
	Order  int    `json:"order"`
}

// Scan walks folders recursively and returns every supported image. Folders
// are visited in the given order and files within a folder in lexical path
// order, so an unchanged tree always yields the same sequence. Missing folders
// are skipped.
func Scan(folders []string) ([]Image, error) {
	seen := mapset.NewThreadUnsafeSet[string]()
	var images []Image

	for _, folder := range folders {
		paths, err := scanFolder(folder)
		if err != nil {
			slog.Warn("skipping image folder", "folder", folder, "error", err)
			continue
		}
		for _, path := range paths {
			if !seen.Add(path) {
				continue
			}
			images = append(images, Image{
				Path:   path,
				Folder: folder,
				Order:  len(images),
			})
		}
	}

	if len(images) == 0 {
		return nil, fmt.Errorf("%w in folders %v", ErrEmptyLibrary, folders)
	}
	return images, nil
}

func scanFolder(folder string) ([]string, error) {
	root, err := filepath.Abs(folder)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", folder)
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable sub directory, keep walking the rest
			slog.Warn("unable to read path while scanning", "path", path, "error", err)
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !util.IsSupported(d.Name()) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(paths)
	return paths, nil
}

// Shuffle returns a reordered copy of images using seed, with Order renumbered
// to match the new position.
func Shuffle(images []Image, seed int64) []Image {
	out := make([]Image, len(images))
	copy(out, images)

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	for i := range out {
		out[i].Order = i
	}
	return out
}

// Paths returns the file paths of images in order.
func Paths(images []Image) []string {
	paths := make([]string, len(images))
	for i, img := range images {
		paths[i] = img.Path
	}
	return paths
}
