// Package cache implements the shared, process-wide bounded LRU described
// in spec.md §4.3: two independent tables (parsed templates, compiled
// fragments) that share one high-/low-watermark pair. Each table is a
// doubly linked list plus a map, generalizing the single-watermark design
// in the teacher's filesystem-loader cache to the high/low pair spec.md
// requires.
//
// Thread-safety: each table is guarded by its own sync.Mutex, matching
// spec.md §5 option (b) — "protect each LRU table with a mutex whose
// critical sections cover get_or_insert and trim atomically". Watermarks
// live on the Cache itself and are read under the same discipline. No
// ordering is promised between two concurrent misses on the same key: both
// may build, and whichever insert runs last wins (spec.md §5); callers must
// supply pure build functions.
package cache

import (
	"sync"

	"go.uber.org/zap"
)

// entry is one doubly-linked-list node in a table.
type entry struct {
	key        uint64
	value      any
	prev, next *entry
}

// table is one LRU table (parsed templates, or compiled fragments).
type table struct {
	name    string
	mu      sync.Mutex
	items   map[uint64]*entry
	head    *entry // sentinel: head.next is most-recently-used
	tail    *entry // sentinel: tail.prev is least-recently-used
	hits    int64
	misses  int64
}

func newTable(name string) *table {
	t := &table{name: name, items: make(map[uint64]*entry)}
	t.head = &entry{}
	t.tail = &entry{}
	t.head.next = t.tail
	t.tail.prev = t.head
	return t
}

func (t *table) addFront(e *entry) {
	e.prev = t.head
	e.next = t.head.next
	t.head.next.prev = e
	t.head.next = e
}

func (t *table) unlink(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
}

func (t *table) moveFront(e *entry) {
	t.unlink(e)
	t.addFront(e)
}

// size must be called with t.mu held.
func (t *table) size() int { return len(t.items) }

// trimToLow evicts least-recently-used entries until size <= low, logging
// the eviction count at Debug level when logger is non-nil (spec.md §1.1
// ambient logging: "cache trim events (Debug)"). Must be called with t.mu
// held.
func (t *table) trimToLow(low int, logger *zap.Logger) {
	before := len(t.items)
	for len(t.items) > low {
		lru := t.tail.prev
		if lru == t.head {
			break
		}
		t.unlink(lru)
		delete(t.items, lru.key)
	}
	if logger != nil && before > len(t.items) {
		logger.Debug("cache: trimmed table",
			zap.String("table", t.name),
			zap.Int("evicted", before-len(t.items)),
			zap.Int("low_watermark", low),
		)
	}
}

// getOrInsert looks up key; on miss it calls build (outside any lock held
// by the caller must not re-enter the cache) and inserts the result,
// trimming to the low watermark once the table's size reaches the high
// watermark.
func (t *table) getOrInsert(key uint64, high, low int, logger *zap.Logger, build func() any) any {
	t.mu.Lock()
	if e, ok := t.items[key]; ok {
		t.hits++
		t.moveFront(e)
		v := e.value
		t.mu.Unlock()
		return v
	}
	t.misses++
	t.mu.Unlock()

	v := build()

	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.items[key]; ok {
		// Someone else inserted concurrently; the later insert wins
		// (spec.md §5) — overwrite and move to front.
		e.value = v
		t.moveFront(e)
		return e.value
	}
	e := &entry{key: key, value: v}
	t.items[key] = e
	t.addFront(e)
	if len(t.items) >= high {
		t.trimToLow(low, logger)
	}
	return v
}

func (t *table) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = make(map[uint64]*entry)
	t.head.next = t.tail
	t.tail.prev = t.head
	t.hits, t.misses = 0, 0
}

// Stats summarizes one Cache's counters and current sizes (spec.md §4.3
// sizes() plus cache_sizes(), extended with hit/miss counters for
// observability).
type Stats struct {
	ParsedHits      int64
	ParsedMisses    int64
	ParsedSize      int
	FragmentHits    int64
	FragmentMisses  int64
	FragmentSize    int
}

const (
	defaultHighWatermark = 10000
	defaultLowWatermark  = 5000
)

// Cache is the shared two-table LRU. A process normally uses the single
// instance returned by Global, but New is exported so tests (and a
// processor configured for isolation) can build an independent instance.
type Cache struct {
	wmMu sync.Mutex
	high int
	low  int

	logMu  sync.Mutex
	logger *zap.Logger

	parsed    *table
	fragments *table
}

// New builds a Cache with the given watermark pair.
func New(high, low int) *Cache {
	return &Cache{
		high:      high,
		low:       low,
		parsed:    newTable("parsed"),
		fragments: newTable("fragments"),
	}
}

// SetLogger installs a *zap.Logger used to report trim events at Debug
// level. A nil logger (the default) disables this logging.
func (c *Cache) SetLogger(logger *zap.Logger) {
	c.logMu.Lock()
	c.logger = logger
	c.logMu.Unlock()
}

func (c *Cache) loggerOrNil() *zap.Logger {
	c.logMu.Lock()
	defer c.logMu.Unlock()
	return c.logger
}

var (
	globalOnce sync.Once
	global     *Cache
)

// Global returns the process-wide Cache, initializing it with the default
// watermarks (10000 / 5000) on first access (spec.md §9 "process-wide state
// object with explicit initialization on first access").
func Global() *Cache {
	globalOnce.Do(func() {
		global = New(defaultHighWatermark, defaultLowWatermark)
	})
	return global
}

func (c *Cache) watermarks() (high, low int) {
	c.wmMu.Lock()
	defer c.wmMu.Unlock()
	return c.high, c.low
}

// GetOrInsertParsed implements spec.md §4.3's get_or_insert for the
// parsed-template table.
func (c *Cache) GetOrInsertParsed(key uint64, build func() any) any {
	high, low := c.watermarks()
	return c.parsed.getOrInsert(key, high, low, c.loggerOrNil(), build)
}

// GetOrInsertFragment implements spec.md §4.3's get_or_insert for the
// compiled-fragment table.
func (c *Cache) GetOrInsertFragment(key uint64, build func() any) any {
	high, low := c.watermarks()
	return c.fragments.getOrInsert(key, high, low, c.loggerOrNil(), build)
}

// HighWatermark returns the current high watermark.
func (c *Cache) HighWatermark() int {
	c.wmMu.Lock()
	defer c.wmMu.Unlock()
	return c.high
}

// SetHighWatermark sets the high watermark. If it drops below either
// table's current size, that table is trimmed to the low watermark
// immediately (spec.md §4.3: "setting the high watermark below the current
// size triggers immediate trimming").
func (c *Cache) SetHighWatermark(n int) {
	c.wmMu.Lock()
	c.high = n
	low := c.low
	c.wmMu.Unlock()
	c.trimIfOverHighwater(n, low)
}

// LowWatermark returns the current low watermark.
func (c *Cache) LowWatermark() int {
	c.wmMu.Lock()
	defer c.wmMu.Unlock()
	return c.low
}

// SetLowWatermark sets the low watermark.
func (c *Cache) SetLowWatermark(n int) {
	c.wmMu.Lock()
	c.low = n
	c.wmMu.Unlock()
}

// trimIfOverHighwater implements spec.md §4.3's trim_if_over_highwater for
// both tables under the given pair.
func (c *Cache) trimIfOverHighwater(high, low int) {
	logger := c.loggerOrNil()
	for _, t := range []*table{c.parsed, c.fragments} {
		t.mu.Lock()
		if len(t.items) >= high {
			t.trimToLow(low, logger)
		}
		t.mu.Unlock()
	}
}

// ClearAll empties both tables (spec.md §4.3 clear_cache()).
func (c *Cache) ClearAll() {
	c.parsed.clear()
	c.fragments.clear()
}

// Sizes returns (parsed_count, fragment_count), spec.md §4.3/§6
// cache_sizes().
func (c *Cache) Sizes() (parsed, fragments int) {
	c.parsed.mu.Lock()
	parsed = c.parsed.size()
	c.parsed.mu.Unlock()
	c.fragments.mu.Lock()
	fragments = c.fragments.size()
	c.fragments.mu.Unlock()
	return
}

// StatsSnapshot returns the current counters and sizes for both tables.
func (c *Cache) StatsSnapshot() Stats {
	c.parsed.mu.Lock()
	ps := Stats{ParsedHits: c.parsed.hits, ParsedMisses: c.parsed.misses, ParsedSize: c.parsed.size()}
	c.parsed.mu.Unlock()
	c.fragments.mu.Lock()
	ps.FragmentHits = c.fragments.hits
	ps.FragmentMisses = c.fragments.misses
	ps.FragmentSize = c.fragments.size()
	c.fragments.mu.Unlock()
	return ps
}
