// Package cache implements the script resource cache of spec.md §4.5: a
// compile-once, reference-counted store of parsed scripts keyed by source
// text plus patch-variable overrides.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/nksplang/nksp/internal/metrics"
	"github.com/nksplang/nksp/internal/parser"
)

// Compiler parses source text into a *parser.Result. overrides holds raw
// replacement text for patch-variable initializers (spec.md §4.1: "Host-
// provided overrides replace the declared initializer expression
// textually"); the cache calls this at most once per key regardless of how
// many goroutines request the same key concurrently.
type Compiler func(source string, overrides map[string]string) (*parser.Result, error)

// Entry is a reference-counted handle to one compiled script. Multiple
// consumers (voices, editor sessions) share the same *parser.Result and
// call Release when done with it; the underlying parse result is dropped
// from the cache once the last reference is released.
type Entry struct {
	Result *parser.Result

	cache *Cache
	key   string
	mu    sync.Mutex
	refs  int
}

// Release drops one reference. The entry is evicted from the cache once
// refs reaches zero (spec.md §4.5: "when the count drops to zero the entry
// is destroyed").
func (e *Entry) Release() {
	e.mu.Lock()
	e.refs--
	dead := e.refs <= 0
	e.mu.Unlock()
	if dead {
		e.cache.evict(e.key)
	}
}

func (e *Entry) retain() *Entry {
	e.mu.Lock()
	e.refs++
	e.mu.Unlock()
	return e
}

// Cache is the at-most-one-compile script cache of spec.md §4.5. The zero
// value is not usable; construct with New.
type Cache struct {
	compile Compiler
	metrics *metrics.Metrics

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*Entry

	// wildcard records each source hash that has been compiled, as a
	// value-less go-cache item with no expiry. Nothing reads it and
	// eviction does not remove from it; ByWildcardSource scans entries.
	wildcard *gocache.Cache
	wmu      sync.Mutex
}

// New constructs a Cache that compiles misses with fn. m may be nil, in
// which case the cache's hit/miss counters (spec.md §5's metrics seam) are
// simply not collected.
func New(fn Compiler, m *metrics.Metrics) *Cache {
	return &Cache{
		compile:  fn,
		metrics:  m,
		entries:  make(map[string]*Entry),
		wildcard: gocache.New(gocache.NoExpiration, gocache.NoExpiration),
	}
}

// Load returns the cached Entry for (source, overrides), compiling it if
// this is the first request for that key. The returned Entry is already
// retained on the caller's behalf; callers must call Release when done.
func (c *Cache) Load(source string, overrides map[string]string) (*Entry, error) {
	key := cacheKey(source, overrides)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.mu.Unlock()
		c.metrics.IncCacheHit()
		return e.retain(), nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.Lock()
		if e, ok := c.entries[key]; ok {
			c.mu.Unlock()
			c.metrics.IncCacheHit()
			return e, nil
		}
		c.mu.Unlock()

		c.metrics.IncCacheMiss()
		res, err := c.compile(source, overrides)
		if err != nil {
			return nil, err
		}
		e := &Entry{Result: res, cache: c, key: key}

		c.mu.Lock()
		c.entries[key] = e
		c.mu.Unlock()

		c.wmu.Lock()
		c.wildcard.Set(sourceHash(source), nil, gocache.NoExpiration)
		c.wmu.Unlock()

		return e, nil
	})
	if err != nil {
		return nil, err
	}
	e := v.(*Entry)
	return e.retain(), nil
}

// ByWildcardSource returns every entry currently cached whose source text
// hashes to the same value as source, regardless of patch-variable
// overrides (spec.md §4.5's wildcard lookup, used by tooling to find all
// consumers of a given script).
func (c *Cache) ByWildcardSource(source string) []*Entry {
	h := sourceHash(source)
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*Entry
	for _, e := range c.entries {
		if keyHasSourceHash(e.key, h) {
			out = append(out, e)
		}
	}
	return out
}

func (c *Cache) evict(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return
	}
	e.mu.Lock()
	dead := e.refs <= 0
	e.mu.Unlock()
	if dead {
		delete(c.entries, key)
	}
}

func sourceHash(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// cacheKey combines a source hash with an overrides hash, separated by a
// byte that cannot appear in hex output, so ByWildcardSource can recover
// the source-hash prefix without re-hashing anything.
func cacheKey(source string, overrides map[string]string) string {
	return sourceHash(source) + ":" + overridesHash(overrides)
}

func keyHasSourceHash(key, h string) bool {
	return len(key) > len(h) && key[:len(h)] == h && key[len(h)] == ':'
}

func overridesHash(overrides map[string]string) string {
	if len(overrides) == 0 {
		return sourceHash("")
	}
	names := make([]string, 0, len(overrides))
	for k := range overrides {
		names = append(names, k)
	}
	sort.Strings(names)
	ordered := make([]struct {
		Name  string
		Value string
	}, len(names))
	for i, n := range names {
		ordered[i].Name = n
		ordered[i].Value = overrides[n]
	}
	b, _ := json.Marshal(ordered)
	return sourceHash(string(b))
}
