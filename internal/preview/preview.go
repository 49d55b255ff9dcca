// Package preview reads the source line shown next to each reference.
package preview

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/GaxGuy/agpl-BifrostMCP/internal/fileuri"
	"github.com/GaxGuy/agpl-BifrostMCP/internal/logging"
)

// ErrLineOutOfRange is returned when a requested line is past the end of the file.
var ErrLineOutOfRange = errors.New("line out of range")

// DefaultCacheSize is the number of files kept when no size is configured.
const DefaultCacheSize = 256

// Reader returns trimmed source lines by document URI, caching file contents.
// When watching is enabled, a cached file is evicted as soon as it changes on disk.
type Reader struct {
	cache *lru.Cache[string, []string]
	// changes counts evictions; a read that overlaps one is not cached.
	changes atomic.Uint64

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	watched map[string]bool // directories
	done    chan struct{}
}

// NewReader creates a Reader holding up to size files. With watch set, an
// fsnotify watcher keeps the cache coherent with the file system.
func NewReader(size int, watch bool) (*Reader, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []string](size)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		cache:   cache,
		watched: make(map[string]bool),
		done:    make(chan struct{}),
	}

	if watch {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("create watcher: %w", err)
		}
		r.watcher = w
		go r.watch()
	}

	return r, nil
}

// Line returns the whitespace-trimmed text of a zero-based line.
func (r *Reader) Line(_ context.Context, uri string, line int) (string, error) {
	if line < 0 {
		return "", ErrLineOutOfRange
	}

	path, err := fileuri.ToPath(uri)
	if err != nil {
		return "", err
	}

	lines, err := r.lines(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	if line >= len(lines) {
		return "", fmt.Errorf("%w: %d of %d in %s", ErrLineOutOfRange, line, len(lines), path)
	}
	return strings.TrimSpace(lines[line]), nil
}

func (r *Reader) lines(path string) ([]string, error) {
	if lines, ok := r.cache.Get(path); ok {
		return lines, nil
	}

	// Watch before reading so an edit landing in between still evicts.
	gen := r.changes.Load()
	r.track(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(data), "\n")

	r.store(path, gen, lines)
	return lines, nil
}

// store caches lines read at generation gen unless an eviction happened
// since.
func (r *Reader) store(path string, gen uint64, lines []string) {
	if r.changes.Load() != gen {
		return
	}
	r.cache.Add(path, lines)
}

func (r *Reader) evict(path string) {
	r.changes.Add(1)
	r.cache.Remove(path)
}

// track starts watching the directory holding path.
func (r *Reader) track(path string) {
	if r.watcher == nil {
		return
	}
	dir := filepath.Dir(path)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watched[dir] {
		return
	}
	if err := r.watcher.Add(dir); err != nil {
		logging.Debug().Err(err).Str("dir", dir).Msg("preview watch failed")
		return
	}
	r.watched[dir] = true
}

func (r *Reader) watch() {
	for {
		select {
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Create) {
				r.evict(filepath.Clean(ev.Name))
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn().Err(err).Msg("preview watcher error")
			// events may have been lost
			r.changes.Add(1)
			r.cache.Purge()
		case <-r.done:
			return
		}
	}
}

// Invalidate drops a cached file.
func (r *Reader) Invalidate(uri string) {
	if path, err := fileuri.ToPath(uri); err == nil {
		r.evict(filepath.Clean(path))
	}
}

// Len reports the number of cached files.
func (r *Reader) Len() int {
	return r.cache.Len()
}

// Close stops the watcher.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	default:
	}
	close(r.done)

	if r.watcher != nil {
		return r.watcher.Close()
	}
	return nil
}
