// Package imagecache persists notification icon images to disk.
//
// Inline image data delivered with a notification is decoded once,
// scaled to a fixed thumbnail size, and written as a PNG named after
// the owning record. Named icons resolve synchronously and are never
// cached. Files are reclaimed when the owning record is destroyed.
package imagecache

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // decoder for inline icon data
	_ "image/jpeg" // decoder for inline icon data
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nfnt/resize"

	"github.com/fluxshell/notifd/internal/model"
)

// ThumbnailSize is the edge length inline icons are scaled to before
// being persisted.
const ThumbnailSize = 48

// ErrDecode is returned when inline image data cannot be decoded.
// It is non-fatal to callers, which fall back to a default icon.
var ErrDecode = errors.New("image decode failed")

// Cache owns the on-disk icon files for active and retained records.
type Cache struct {
	mu      sync.Mutex
	dir     string
	logger  *slog.Logger
	entries map[string]string // record id -> persisted file path
}

// New creates a cache rooted at dir, creating the directory if needed.
func New(dir string, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	return &Cache{
		dir:     dir,
		logger:  logger,
		entries: make(map[string]string),
	}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// Acquire resolves an icon for the given record. Named icons resolve
// synchronously without touching disk; inline data is decoded once,
// scaled, and persisted, and repeated calls for the same record return
// the existing file. The returned string is a filesystem path for
// inline and file-backed icons, or the bare lookup key for themed
// icons.
func (c *Cache) Acquire(recordID string, icon model.Icon) (string, error) {
	switch icon.Kind {
	case model.IconNone:
		return "", nil
	case model.IconNamed:
		return resolveNamed(icon.Name), nil
	case model.IconInline:
		return c.persistInline(recordID, icon.Data)
	default:
		return "", nil
	}
}

// resolveNamed normalizes a named icon reference. file:// URIs and
// absolute paths pass through as paths; anything else is a themed
// icon key the rendering layer looks up itself.
func resolveNamed(name string) string {
	if strings.HasPrefix(name, "file://") {
		return strings.TrimPrefix(name, "file://")
	}
	return name
}

// persistInline decodes, scales, and writes the inline icon, keyed by
// record id. The decode-once guarantee: a second call for the same
// record returns the already-persisted path without re-decoding.
func (c *Cache) persistInline(recordID string, data []byte) (string, error) {
	c.mu.Lock()
	if path, ok := c.entries[recordID]; ok {
		c.mu.Unlock()
		return path, nil
	}
	c.mu.Unlock()

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}

	thumb := resize.Resize(ThumbnailSize, ThumbnailSize, img, resize.Bilinear)

	path := filepath.Join(c.dir, "notification_"+recordID+".png")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to create cache file: %w", err)
	}
	if err := png.Encode(f, thumb); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}

	c.mu.Lock()
	c.entries[recordID] = path
	c.mu.Unlock()

	c.logger.Debug("cached notification image",
		"record_id", recordID,
		"format", format,
		"path", path,
	)
	return path, nil
}

// Adopt registers an existing on-disk file as the cache entry for a
// record. Used on startup to reclaim ownership of files referenced by
// hydrated history entries, so Sweep does not treat them as orphans.
func (c *Cache) Adopt(recordID, path string) {
	if recordID == "" || path == "" {
		return
	}
	if filepath.Dir(path) != c.dir {
		return
	}
	c.mu.Lock()
	c.entries[recordID] = path
	c.mu.Unlock()
}

// Path returns the persisted file path for a record, if one exists.
func (c *Cache) Path(recordID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	path, ok := c.entries[recordID]
	return path, ok
}

// Release deletes the persisted file for a record. Releasing an id
// with no cached file is not an error, and releasing twice is safe.
func (c *Cache) Release(recordID string) {
	c.mu.Lock()
	path, ok := c.entries[recordID]
	if ok {
		delete(c.entries, recordID)
	}
	c.mu.Unlock()

	if !ok {
		return
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("failed to delete cached image", "path", path, "error", err)
		return
	}
	c.logger.Debug("deleted cached image", "record_id", recordID, "path", path)
}

// Len returns the number of live cache entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep removes cache files on disk that no live entry owns. Called at
// startup to reclaim files orphaned by a crash.
func (c *Cache) Sweep() error {
	c.mu.Lock()
	owned := make(map[string]bool, len(c.entries))
	for _, path := range c.entries {
		owned[path] = true
	}
	c.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(c.dir, "notification_*.png"))
	if err != nil {
		return err
	}

	removed := 0
	for _, path := range matches {
		if owned[path] {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("failed to sweep cache file", "path", path, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		c.logger.Info("swept orphaned cache files", "count", removed)
	}
	return nil
}
