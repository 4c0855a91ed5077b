// Package cache keeps recently prepared slideshow frames and prefetches upcoming ones
package cache

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

const queueSize = 32

// Loader prepares the frame for the image at path.
type Loader func(path string) (*image.RGBA, error)

// FrameCache is an LRU of prepared frames with a single background worker
// filling it ahead of playback. Frames handed out are shared and must not be
// modified.
type FrameCache struct {
	frames *lru.Cache[string, *image.RGBA]
	load   Loader

	queue   chan string
	pending mapset.Set[string]

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func New(size int, load Loader) (*FrameCache, error) {
	if load == nil {
		return nil, errors.New("no loader provided for frame cache")
	}
	frames, err := lru.New[string, *image.RGBA](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create frame cache: %w", err)
	}

	c := &FrameCache{
		frames:  frames,
		load:    load,
		queue:   make(chan string, queueSize),
		pending: mapset.NewSet[string](),
		done:    make(chan struct{}),
	}

	c.wg.Add(1)
	go c.worker()
	return c, nil
}

// Get returns the frame for path, preparing it on the calling goroutine when it
// is not cached yet.
func (c *FrameCache) Get(path string) (*image.RGBA, error) {
	if frame, ok := c.frames.Get(path); ok {
		return frame, nil
	}

	frame, err := c.load(path)
	if err != nil {
		return nil, err
	}
	c.frames.Add(path, frame)
	return frame, nil
}

// Prefetch queues paths for background preparation. Paths already cached or
// queued are ignored, and so are paths that do not fit in a full queue.
func (c *FrameCache) Prefetch(paths ...string) {
	for _, path := range paths {
		if c.frames.Contains(path) || !c.pending.Add(path) {
			continue
		}
		select {
		case c.queue <- path:
		default:
			c.pending.Remove(path)
			slog.Debug("prefetch queue full, dropping", "path", path)
		}
	}
}

func (c *FrameCache) Contains(path string) bool {
	return c.frames.Contains(path)
}

func (c *FrameCache) Len() int {
	return c.frames.Len()
}

// Close stops the prefetch worker and waits for it to exit.
func (c *FrameCache) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	c.wg.Wait()
}

func (c *FrameCache) worker() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case path := <-c.queue:
			if !c.frames.Contains(path) {
				frame, err := c.load(path)
				if err != nil {
					slog.Warn("unable to prefetch image", "path", path, "error", err)
				} else {
					c.frames.Add(path, frame)
				}
			}
			c.pending.Remove(path)
		}
	}
}
