package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aouyang1/photoslideshow/library"
	mapset "github.com/deckarep/golang-set/v2"
)

// LocalManager rescans the image folders and signals Updated when the set of
// images changes.
type LocalManager struct {
	folders  []string
	interval time.Duration

	trackedFiles mapset.Set[string]

	Updated chan struct{}
}

func NewLocalManager(folders []string, interval time.Duration) *LocalManager {
	l := &LocalManager{
		folders:      folders,
		interval:     interval,
		trackedFiles: mapset.NewSet[string](),
		Updated:      make(chan struct{}, 1),
	}

	currentFiles, err := l.getCurrentFiles()
	if err != nil {
		slog.Warn("error reading image folders on initialization", "folders", folders, "error", err)
	} else {
		l.trackedFiles = currentFiles
	}
	return l
}

func (l *LocalManager) getCurrentFiles() (mapset.Set[string], error) {
	images, err := library.Scan(l.folders)
	if errors.Is(err, library.ErrEmptyLibrary) {
		return mapset.NewSet[string](), nil
	}
	if err != nil {
		return nil, err
	}
	return mapset.NewSet(library.Paths(images)...), nil
}

// Run rescans every interval until ctx is done. A zero interval disables it.
func (l *LocalManager) Run(ctx context.Context) {
	if l.interval <= 0 {
		return
	}
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Check()
		}
	}
}

// Check rescans once and reports whether the set of images changed.
func (l *LocalManager) Check() bool {
	currentFiles, err := l.getCurrentFiles()
	if err != nil {
		slog.Warn("error reading image folders", "folders", l.folders, "error", err)
		return false
	}

	added := currentFiles.Difference(l.trackedFiles)
	removed := l.trackedFiles.Difference(currentFiles)
	l.trackedFiles = currentFiles
	if added.Cardinality() == 0 && removed.Cardinality() == 0 {
		return false
	}

	slog.Info("image folders changed", "added", added.Cardinality(), "removed", removed.Cardinality())
	select {
	case l.Updated <- struct{}{}:
	default:
		// update already pending
	}
	return true
}
