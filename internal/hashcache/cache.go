package hashcache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"vidfinder/internal/failures"
	"vidfinder/internal/fileutil"
	"vidfinder/internal/logging"
	"vidfinder/internal/phash"
	"vidfinder/internal/video"
)

// writeFile is replaced in tests to observe or stall disk writes.
var writeFile = fileutil.WriteFileAtomic

// Options configures a Cache.
type Options struct {
	Path          string
	Frames        int
	HashSize      int
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration
	// PruneOnClose drops entries whose file no longer exists during the final write.
	PruneOnClose bool
	Logger       *slog.Logger
}

// Stats counts cache traffic for one run.
type Stats struct {
	Loaded    int   `json:"loaded" yaml:"loaded"`
	Entries   int   `json:"entries" yaml:"entries"`
	Hits      int64 `json:"hits" yaml:"hits"`
	Misses    int64 `json:"misses" yaml:"misses"`
	Stale     int64 `json:"stale" yaml:"stale"`
	Stored    int64 `json:"stored" yaml:"stored"`
	Flushes   int64 `json:"flushes" yaml:"flushes"`
	Pruned    int   `json:"pruned" yaml:"pruned"`
	Discarded bool  `json:"discarded" yaml:"discarded"`
}

// Cache is the persistent fingerprint map for one scan directory.
type Cache struct {
	opts   Options
	logger *slog.Logger
	lock   *flock.Flock

	mu      sync.RWMutex
	entries map[string]Entry
	dirty   bool

	sendMu sync.RWMutex
	closed bool
	queue  chan Entry
	done   chan struct{}

	fatalMu sync.Mutex
	fatal   error

	loaded    int
	discarded bool
	pruned    int
	hits      atomic.Int64
	misses    atomic.Int64
	stale     atomic.Int64
	stored    atomic.Int64
	flushes   atomic.Int64

	closeOnce sync.Once
	closeErr  error
}

// Open locks the cache, loads the file at opts.Path and starts the committer.
func Open(opts Options) (*Cache, error) {
	if opts.Path == "" {
		return nil, failures.Wrap(failures.ErrConfiguration, "hashcache", "open", "empty cache path", nil)
	}
	if opts.Frames < 1 || opts.HashSize < 2 {
		return nil, failures.Wrap(failures.ErrConfiguration, "hashcache", "open",
			fmt.Sprintf("invalid parameters frames=%d hash_size=%d", opts.Frames, opts.HashSize), nil)
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 2 * time.Second
	}

	lock := flock.New(opts.Path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, failures.Wrap(failures.ErrCacheUnwritable, "hashcache", "lock", lock.Path(), err)
	}
	if !locked {
		return nil, failures.Wrap(failures.ErrCacheLocked, "hashcache", "lock", opts.Path, nil)
	}

	c := &Cache{
		opts:    opts,
		logger:  logging.NewComponentLogger(opts.Logger, "hashcache"),
		lock:    lock,
		entries: make(map[string]Entry),
		queue:   make(chan Entry, opts.QueueSize),
		done:    make(chan struct{}),
	}
	if err := c.load(); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	go c.commit()
	return c, nil
}

// Path returns the cache file location.
func (c *Cache) Path() string { return c.opts.Path }

// Lookup returns the cached entry for f when path, size and mtime all match.
func (c *Cache) Lookup(f video.File) (Entry, bool) {
	c.mu.RLock()
	entry, found := c.entries[f.Path]
	c.mu.RUnlock()

	switch {
	case !found:
		c.misses.Add(1)
		return Entry{}, false
	case !entry.Matches(f):
		c.stale.Add(1)
		c.logger.Debug("stale cache entry",
			logging.String(logging.FieldPath, f.Path),
			logging.Int64("cached_size", entry.Size),
			logging.Int64("size", f.Size),
			logging.Int64("cached_mtime_ns", entry.ModTimeNS),
			logging.Int64("mtime_ns", f.ModUnixNano()),
		)
		return Entry{}, false
	default:
		c.hits.Add(1)
		return entry, true
	}
}

// Submit queues a freshly computed fingerprint for f. It blocks while the
// queue is full and returns early when ctx ends or the committer has failed.
func (c *Cache) Submit(ctx context.Context, f video.File, fp phash.Fingerprint) error {
	if err := c.Err(); err != nil {
		return err
	}
	entry := Entry{
		Path:        f.Path,
		Size:        f.Size,
		ModTimeNS:   f.ModUnixNano(),
		Duration:    f.Duration.Truncate(time.Millisecond),
		Fingerprint: fp,
	}

	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.closed {
		return errors.New("hashcache: submit after close")
	}
	select {
	case c.queue <- entry:
		return nil
	case <-ctx.Done():
		return failures.Interrupted(ctx.Err())
	case <-c.done:
		if err := c.Err(); err != nil {
			return err
		}
		return errors.New("hashcache: committer stopped")
	}
}

// Err returns the committer's fatal error, if any.
func (c *Cache) Err() error {
	c.fatalMu.Lock()
	defer c.fatalMu.Unlock()
	return c.fatal
}

func (c *Cache) setFatal(err error) {
	c.fatalMu.Lock()
	defer c.fatalMu.Unlock()
	if c.fatal == nil {
		c.fatal = err
	}
}

// Entries returns a copy of every cached entry.
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	return out
}

// Prune removes entries whose file no longer exists. The change is written on
// the next flush.
func (c *Cache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := c.pruneLocked()
	c.pruned += removed
	return removed
}

func (c *Cache) pruneLocked() int {
	removed := 0
	for path := range c.entries {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			delete(c.entries, path)
			removed++
		}
	}
	if removed > 0 {
		c.dirty = true
		c.logger.Debug("pruned missing files", logging.Int("count", removed))
	}
	return removed
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	entries := len(c.entries)
	pruned := c.pruned
	c.mu.RUnlock()
	return Stats{
		Loaded:    c.loaded,
		Entries:   entries,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Stale:     c.stale.Load(),
		Stored:    c.stored.Load(),
		Flushes:   c.flushes.Load(),
		Pruned:    pruned,
		Discarded: c.discarded,
	}
}

// Close stops accepting entries, waits for the committer to drain the queue
// and write the final batch, then releases the lock.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() {
		c.sendMu.Lock()
		c.closed = true
		close(c.queue)
		c.sendMu.Unlock()
		<-c.done

		c.closeErr = c.Err()
		if err := c.lock.Unlock(); err != nil && c.closeErr == nil {
			c.closeErr = fmt.Errorf("release cache lock: %w", err)
		}
	})
	return c.closeErr
}

func (c *Cache) commit() {
	defer close(c.done)

	ticker := time.NewTicker(c.opts.FlushInterval)
	defer ticker.Stop()

	pending := 0
	for {
		select {
		case entry, ok := <-c.queue:
			if !ok {
				c.finalFlush()
				return
			}
			if c.Err() != nil {
				continue
			}
			c.apply(entry)
			pending++
			if pending >= c.opts.BatchSize {
				c.flush()
				pending = 0
			}
		case <-ticker.C:
			if pending > 0 {
				c.flush()
				pending = 0
			}
		}
	}
}

func (c *Cache) apply(entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.Path] = entry
	c.dirty = true
	c.stored.Add(1)
}

func (c *Cache) finalFlush() {
	if c.Err() != nil {
		return
	}
	if c.opts.PruneOnClose {
		c.mu.Lock()
		c.pruned += c.pruneLocked()
		c.mu.Unlock()
	}
	c.flush()
}

// flush runs only on the committer goroutine. The lock covers the snapshot;
// encoding and the disk write happen without it so Lookup never waits on I/O.
func (c *Cache) flush() {
	c.mu.Lock()
	if !c.dirty {
		c.mu.Unlock()
		return
	}
	snapshot := maps.Clone(c.entries)
	c.dirty = false
	c.mu.Unlock()

	data, err := encode(c.opts.Frames, c.opts.HashSize, snapshot)
	if err == nil {
		err = writeFile(c.opts.Path, data, 0o644)
	}
	if err != nil {
		c.mu.Lock()
		c.dirty = true
		c.mu.Unlock()
		wrapped := failures.Wrap(failures.ErrCacheUnwritable, "hashcache", "persist", c.opts.Path, err)
		c.setFatal(wrapped)
		logging.ErrorWithContext(c.logger, "cache write failed", "cache_unwritable",
			logging.String(logging.FieldPath, c.opts.Path),
			logging.Error(wrapped),
			logging.String(logging.FieldErrorHint, "check permissions and free space for the cache directory"),
		)
		return
	}
	c.flushes.Add(1)
	c.logger.Debug("cache flushed",
		logging.Int("entries", len(snapshot)),
		logging.Int("bytes", len(data)),
	)
}

func (c *Cache) load() error {
	data, err := os.ReadFile(c.opts.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return failures.Wrap(failures.ErrCacheUnwritable, "hashcache", "read", c.opts.Path, err)
	}
	if len(data) == 0 {
		c.discard(errors.New("empty file"))
		return nil
	}

	doc, err := decode(data)
	if err != nil {
		c.discard(err)
		return nil
	}
	if doc.Frames != c.opts.Frames || doc.HashSize != c.opts.HashSize {
		c.discard(fmt.Errorf("built with frames=%d hash_size=%d, run uses frames=%d hash_size=%d",
			doc.Frames, doc.HashSize, c.opts.Frames, c.opts.HashSize))
		return nil
	}

	bad := 0
	for _, d := range doc.Entries {
		entry, err := toEntry(d, doc.HashSize)
		if err != nil || entry.Path == "" {
			bad++
			continue
		}
		c.entries[entry.Path] = entry
	}
	c.loaded = len(c.entries)
	if bad > 0 {
		c.dirty = true
		logging.WarnWithContext(c.logger, "dropped unreadable cache entries", "cache_corrupt",
			logging.String(logging.FieldPath, c.opts.Path),
			logging.Int("dropped", bad),
			logging.Error(failures.Wrap(failures.ErrCacheCorruption, "hashcache", "load", "bad entries", nil)),
			logging.String(logging.FieldImpact, "affected files will be re-hashed"),
		)
	}
	c.logger.Debug("loaded cache",
		logging.String(logging.FieldPath, c.opts.Path),
		logging.Int("entry_count", c.loaded),
	)
	return nil
}

func (c *Cache) discard(reason error) {
	c.discarded = true
	c.dirty = true
	logging.WarnWithContext(c.logger, "discarding cache file", "cache_corrupt",
		logging.String(logging.FieldPath, c.opts.Path),
		logging.Error(failures.Wrap(failures.ErrCacheCorruption, "hashcache", "load", c.opts.Path, reason)),
		logging.String(logging.FieldErrorHint, "the cache is rebuilt automatically"),
		logging.String(logging.FieldImpact, "every file is hashed again this run"),
	)
}
