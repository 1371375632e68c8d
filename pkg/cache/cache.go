// Package cache keeps built CFG units in an LRU cache keyed by source content, with
// msgpack persistence so repeated builds skip unchanged files.
package cache

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/minio/highwayhash"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/l3aro/go-prime-paths/pkg/cfg"
)

// ErrKeyNotFound is returned when a key is not found in the cache.
var ErrKeyNotFound = errors.New("key not found")

// hashKey is the fixed highwayhash key; cache keys only need to be stable, not secret.
var hashKey = []byte("gpp-cfg-cache-key-0123456789ABCD")

// formatVersion is bumped whenever the cached CFG layout changes.
const formatVersion = 2

// Key returns the cache key of a source file: a hash of its language and content.
func Key(language string, content []byte) (string, error) {
	h, err := highwayhash.New64(hashKey)
	if err != nil {
		return "", fmt.Errorf("creating hash: %w", err)
	}
	h.Write([]byte(language))
	h.Write([]byte{0})
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Entry represents a cache entry with metadata.
type Entry struct {
	Key        string    `msgpack:"key"`
	Unit       *cfg.Unit `msgpack:"unit"`
	AccessedAt time.Time `msgpack:"accessed_at"`
	CreatedAt  time.Time `msgpack:"created_at"`
	Size       int       `msgpack:"size"` // encoded size in bytes
}

// Stats returns cache statistics.
type Stats struct {
	Length       int   `json:"length"`
	CurrentBytes int64 `json:"current_bytes"`
	HitCount     int64 `json:"hit_count"`
	MissCount    int64 `json:"miss_count"`
}

// Options configures the LRU cache.
type Options struct {
	// MaxSize is the maximum number of entries.
	// 0 means unlimited.
	MaxSize int

	// MaxBytes is the approximate maximum size in bytes.
	// 0 means unlimited.
	MaxBytes int64

	// OnEvict is called when an entry is evicted.
	OnEvict func(key string, unit *cfg.Unit)
}

// LRUCache is an in-memory LRU cache of CFG units with optional disk persistence.
// It is safe for concurrent use.
type LRUCache struct {
	mu           sync.Mutex
	items        map[string]*listItem
	lru          *list // doubly-linked list (most recent at front)
	maxSize      int
	maxBytes     int64
	currentBytes int64
	onEvict      func(key string, unit *cfg.Unit)
	hits         int64
	misses       int64
}

// listItem is an item in the doubly-linked list.
type listItem struct {
	Entry
	prev *listItem
	next *listItem
}

// list represents a doubly-linked list.
type list struct {
	head *listItem // most recently accessed
	tail *listItem // least recently accessed
	len  int
}

// moveToFront moves an item to the front (most recently used).
func (l *list) moveToFront(item *listItem) {
	if item == l.head {
		return
	}
	l.unlink(item)
	l.len++
	l.pushFrontLinked(item)
}

// pushFront adds an item to the front of the list.
func (l *list) pushFront(item *listItem) {
	l.pushFrontLinked(item)
	l.len++
}

func (l *list) pushFrontLinked(item *listItem) {
	item.prev = nil
	item.next = l.head
	if l.head != nil {
		l.head.prev = item
	}
	l.head = item
	if l.tail == nil {
		l.tail = item
	}
}

// unlink removes item from the list.
func (l *list) unlink(item *listItem) {
	if item.prev != nil {
		item.prev.next = item.next
	} else {
		l.head = item.next
	}
	if item.next != nil {
		item.next.prev = item.prev
	} else {
		l.tail = item.prev
	}
	item.prev, item.next = nil, nil
	l.len--
}

// New creates a new LRU cache with the given options.
func New(opts Options) *LRUCache {
	return &LRUCache{
		items:    make(map[string]*listItem),
		lru:      &list{},
		maxSize:  opts.MaxSize,
		maxBytes: opts.MaxBytes,
		onEvict:  opts.OnEvict,
	}
}

// Get retrieves a unit from the cache.
func (c *LRUCache) Get(key string) (*cfg.Unit, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		c.misses++
		return nil, false
	}

	c.hits++
	item.AccessedAt = time.Now()
	c.lru.moveToFront(item)
	return item.Unit, true
}

// Lookup is Get with an error result: ErrKeyNotFound when key is absent.
func (c *LRUCache) Lookup(key string) (*cfg.Unit, error) {
	unit, ok := c.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return unit, nil
}

// Set stores a unit in the cache.
func (c *LRUCache) Set(key string, unit *cfg.Unit) {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := estimateSize(unit)
	now := time.Now()

	if item, exists := c.items[key]; exists {
		c.currentBytes += int64(size - item.Size)
		item.Unit = unit
		item.Size = size
		item.AccessedAt = now
		c.lru.moveToFront(item)
		c.evictIfNeeded()
		return
	}

	item := &listItem{Entry: Entry{
		Key:        key,
		Unit:       unit,
		AccessedAt: now,
		CreatedAt:  now,
		Size:       size,
	}}
	c.items[key] = item
	c.lru.pushFront(item)
	c.currentBytes += int64(size)
	c.evictIfNeeded()
}

// Delete removes a key from the cache.
func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		return
	}
	c.lru.unlink(item)
	delete(c.items, key)
	c.currentBytes -= int64(item.Size)
}

// Clear removes all entries from the cache.
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*listItem)
	c.lru = &list{}
	c.currentBytes = 0
}

// Len returns the number of entries in the cache.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns the current cache statistics.
func (c *LRUCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Length:       len(c.items),
		CurrentBytes: c.currentBytes,
		HitCount:     c.hits,
		MissCount:    c.misses,
	}
}

// evictIfNeeded evicts least recently used entries while the cache exceeds its limits.
// The most recent entry is never evicted.
func (c *LRUCache) evictIfNeeded() {
	for c.shouldEvict() && c.lru.len > 1 {
		item := c.lru.tail
		c.lru.unlink(item)
		delete(c.items, item.Key)
		c.currentBytes -= int64(item.Size)
		if c.onEvict != nil {
			c.onEvict(item.Key, item.Unit)
		}
	}
}

// shouldEvict returns true if the cache should evict entries.
func (c *LRUCache) shouldEvict() bool {
	if c.maxSize > 0 && len(c.items) > c.maxSize {
		return true
	}
	return c.maxBytes > 0 && c.currentBytes > c.maxBytes
}

// snapshot is the persisted form of the cache, entries from most to least recent.
type snapshot struct {
	Version int     `msgpack:"version"`
	Entries []Entry `msgpack:"entries"`
}

// Save persists the cache to a writer using msgpack.
func (c *LRUCache) Save(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data := snapshot{Version: formatVersion, Entries: make([]Entry, 0, len(c.items))}
	for item := c.lru.head; item != nil; item = item.next {
		data.Entries = append(data.Entries, item.Entry)
	}
	if err := msgpack.NewEncoder(w).Encode(&data); err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}
	return nil
}

// Load restores the cache from a reader using msgpack. A snapshot written by another
// format version is discarded and leaves the cache empty.
func (c *LRUCache) Load(r io.Reader) error {
	var data snapshot
	if err := msgpack.NewDecoder(r).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*listItem)
	c.lru = &list{}
	c.currentBytes = 0
	if data.Version != formatVersion {
		return nil
	}

	for i := len(data.Entries) - 1; i >= 0; i-- {
		item := &listItem{Entry: data.Entries[i]}
		c.items[item.Key] = item
		c.lru.pushFront(item)
		c.currentBytes += int64(item.Size)
	}
	c.evictIfNeeded()
	return nil
}

// PersistToFile saves the cache to a file, creating its directory if needed.
func PersistToFile(c *LRUCache, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer f.Close()

	return c.Save(f)
}

// LoadFromFile loads the cache from a file.
func LoadFromFile(c *LRUCache, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No cache file is not an error
		}
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()

	return c.Load(f)
}

// estimateSize estimates the size of a unit as its encoded length.
func estimateSize(unit *cfg.Unit) int {
	b, err := msgpack.Marshal(unit)
	if err != nil {
		return 0
	}
	return len(b)
}
