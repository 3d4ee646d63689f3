package convert

import (
	"math"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// ResultCache remembers ranked candidates for recent (resources, context,
// buffer) tuples. Least recently used entries are evicted first.
type ResultCache struct {
	results     map[string][]Candidate
	accessTime  map[string]int64
	accessCount int64
	hits        int64
	misses      int64
	maxEntries  int
	mu          sync.Mutex
}

func NewResultCache(maxEntries int) *ResultCache {
	return &ResultCache{
		results:    make(map[string][]Candidate, maxEntries),
		accessTime: make(map[string]int64, maxEntries),
		maxEntries: maxEntries,
	}
}

func cacheKey(dictPath, weightPath, leftContext string, units []rune) string {
	var b strings.Builder
	b.Grow(len(dictPath) + len(weightPath) + len(leftContext) + len(units)*3 + 3)
	b.WriteString(dictPath)
	b.WriteByte(0)
	b.WriteString(weightPath)
	b.WriteByte(0)
	b.WriteString(leftContext)
	b.WriteByte(0)
	b.WriteString(string(units))
	return b.String()
}

// Get returns a copy of the cached candidates for key.
func (rc *ResultCache) Get(key string) ([]Candidate, bool) {
	if rc == nil || rc.maxEntries <= 0 {
		return nil, false
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()

	cands, ok := rc.results[key]
	if !ok {
		rc.misses++
		return nil, false
	}
	rc.hits++
	rc.markAccessed(key)
	return append([]Candidate(nil), cands...), true
}

// Put stores a copy of cands under key.
func (rc *ResultCache) Put(key string, cands []Candidate) {
	if rc == nil || rc.maxEntries <= 0 {
		return
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if _, exists := rc.results[key]; !exists && len(rc.results) >= rc.maxEntries {
		rc.evictLRU()
	}
	rc.results[key] = append([]Candidate(nil), cands...)
	rc.markAccessed(key)
}

// Purge drops every entry.
func (rc *ResultCache) Purge() {
	if rc == nil {
		return
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	clear(rc.results)
	clear(rc.accessTime)
}

func (rc *ResultCache) Stats() map[string]int {
	if rc == nil {
		return map[string]int{}
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()

	return map[string]int{
		"cacheEntries": len(rc.results),
		"maxCache":     rc.maxEntries,
		"cacheHits":    int(rc.hits),
		"cacheMisses":  int(rc.misses),
	}
}

func (rc *ResultCache) markAccessed(key string) {
	rc.accessCount++
	rc.accessTime[key] = rc.accessCount
}

func (rc *ResultCache) evictLRU() {
	var oldestKey string
	var oldestTime int64 = math.MaxInt64

	for key, accessTime := range rc.accessTime {
		if accessTime < oldestTime {
			oldestTime = accessTime
			oldestKey = key
		}
	}

	if oldestTime != math.MaxInt64 {
		delete(rc.results, oldestKey)
		delete(rc.accessTime, oldestKey)
		log.Debugf("Evicted %q from result cache", oldestKey)
	}
}
