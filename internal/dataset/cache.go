package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"superstore-dashboard/internal/models"
)

// Load sources reported to a LoadObserver.
const (
	SourceMemory   = "memory"
	SourceSnapshot = "snapshot"
	SourceFile     = "file"
)

type LoadObserver interface {
	ObserveLoad(source string, duration time.Duration)
}

type CacheOptions struct {
	// SnapshotDir enables on-disk snapshots when non-empty.
	SnapshotDir string
	Observer    LoadObserver
	Logger      *slog.Logger
}

type cacheEntry struct {
	modTime time.Time
	size    int64
	dataset *models.Dataset
}

// Cache holds loaded datasets keyed by path. An entry stays valid while the
// file's modification time and size are unchanged.
type Cache struct {
	loader   *Loader
	snapshot *SnapshotStore
	observer LoadObserver
	logger   *slog.Logger

	mu      sync.RWMutex
	entries map[string]cacheEntry
	group   singleflight.Group
}

func NewCache(loader *Loader, opts CacheOptions) *Cache {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		loader:   loader,
		observer: opts.Observer,
		logger:   logger,
		entries:  make(map[string]cacheEntry),
	}
	if opts.SnapshotDir != "" {
		c.snapshot = NewSnapshotStore(opts.SnapshotDir)
	}
	return c
}

// Get returns the dataset for path, loading it only when no valid entry exists.
func (c *Cache) Get(ctx context.Context, path string) (*models.Dataset, error) {
	start := time.Now()

	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Op: "stat", Path: path, Err: err}
	}

	if ds, ok := c.lookup(path, info); ok {
		c.observe(SourceMemory, start)
		return ds, nil
	}

	key := fmt.Sprintf("%s|%d|%d", path, info.ModTime().UnixNano(), info.Size())
	v, err, _ := c.group.Do(key, func() (any, error) {
		if ds, ok := c.lookup(path, info); ok {
			return ds, nil
		}
		ds, source, err := c.load(ctx, path, info)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[path] = cacheEntry{modTime: info.ModTime(), size: info.Size(), dataset: ds}
		c.mu.Unlock()

		c.observe(source, start)
		return ds, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Dataset), nil
}

func (c *Cache) lookup(path string, info os.FileInfo) (*models.Dataset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[path]
	if !ok || !entry.modTime.Equal(info.ModTime()) || entry.size != info.Size() {
		return nil, false
	}
	return entry.dataset, true
}

func (c *Cache) load(ctx context.Context, path string, info os.FileInfo) (*models.Dataset, string, error) {
	if c.snapshot != nil {
		if ds, err := c.snapshot.Load(path, info.ModTime()); err == nil {
			c.logger.Info("dataset restored from snapshot", "path", path, "rows", len(ds.Rows))
			return ds, SourceSnapshot, nil
		}
	}

	ds, err := c.loader.Load(ctx, path)
	if err != nil {
		return nil, "", err
	}
	// Stamp with the stat taken before loading so the entry matches its key.
	ds.ModTime = info.ModTime()

	if c.snapshot != nil {
		if err := c.snapshot.Save(ds); err != nil {
			c.logger.Warn("failed to save dataset snapshot", "path", path, "error", err)
		}
	}
	return ds, SourceFile, nil
}

func (c *Cache) observe(source string, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveLoad(source, time.Since(start))
	}
}

// Invalidate drops the entry for path; the next Get reloads it.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
