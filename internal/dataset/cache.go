package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"shapelab/internal/logging"
)

// Table is a parsed CSV file. Callers must treat it as read-only.
type Table struct {
	Header []string
	Rows   [][]string
}

// CacheStats tracks cache activity.
type CacheStats struct {
	Hits      int
	Misses    int
	Evictions int
	Errors    int
}

// Cache keeps parsed CSV tables in memory and drops an entry as soon as its
// file is written, replaced or removed. Parent directories are watched rather
// than files so editors that save by rename are still seen.
type Cache struct {
	mu      sync.Mutex
	watcher *fsnotify.Watcher
	tables  map[string]*Table
	dirs    map[string]bool
	stats   CacheStats

	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

// NewCache creates a cache and starts its watcher goroutine. Call Close to
// stop it.
func NewCache() (*Cache, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	c := &Cache{
		watcher: watcher,
		tables:  make(map[string]*Table),
		dirs:    make(map[string]bool),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go c.run()
	return c, nil
}

// Table returns the parsed file at path. header=false means the file has no
// header row; the caller supplies column names.
func (c *Cache) Table(path string, header bool) (*Table, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	key := cacheKey(abs, header)

	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.tables[key]; ok {
		c.stats.Hits++
		return t, nil
	}
	c.stats.Misses++

	// The watch goes in before the read so a write racing the read still
	// evicts the entry.
	dir := filepath.Dir(abs)
	if !c.dirs[dir] {
		if err := c.watcher.Add(dir); err != nil {
			logging.Get(logging.CategoryDataset).Warn("cache: watch failed, not caching",
				zap.String("dir", dir), zap.Error(err))
			c.stats.Errors++
			return ReadTable(abs, header)
		}
		c.dirs[dir] = true
	}

	t, err := ReadTable(abs, header)
	if err != nil {
		return nil, err
	}
	c.tables[key] = t
	return t, nil
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Close stops the watcher and waits for the event loop to exit.
func (c *Cache) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stopCh)
		<-c.doneCh
		err = c.watcher.Close()
	})
	return err
}

func (c *Cache) run() {
	defer close(c.doneCh)

	for {
		select {
		case <-c.stopCh:
			return

		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			c.handleEvent(event)

		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryDataset).Warn("cache: watcher error", zap.Error(err))
			c.mu.Lock()
			c.stats.Errors++
			c.mu.Unlock()
		}
	}
}

func (c *Cache) handleEvent(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return
	}

	name := filepath.Clean(event.Name)
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, header := range []bool{true, false} {
		key := cacheKey(name, header)
		if _, ok := c.tables[key]; ok {
			delete(c.tables, key)
			c.stats.Evictions++
			logging.Get(logging.CategoryDataset).Debug("cache: evicted",
				zap.String("path", name), zap.String("op", event.Op.String()))
		}
	}
}

func cacheKey(path string, header bool) string {
	if header {
		return path
	}
	return path + "#noheader"
}

// ReadTable parses a CSV file. Leading spaces in fields are trimmed and rows
// may have differing lengths; short rows are padded with empty fields later.
func ReadTable(path string, header bool) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()
	return parseTable(f, header)
}

func parseTable(r io.Reader, header bool) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}

	t := &Table{}
	if header {
		if len(records) == 0 {
			return nil, fmt.Errorf("csv has no header row")
		}
		t.Header = records[0]
		records = records[1:]
	}
	t.Rows = records
	return t, nil
}
