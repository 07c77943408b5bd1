package history

import (
	"sync"

	"github.com/richinex/patchscout/cache"
	"github.com/richinex/patchscout/model"
)

// CacheConfig sizes the three history caches.
type CacheConfig struct {
	DetailBytes   int
	DiffBytes     int
	LogBytes      int
	LogMaxEntries int
}

// DefaultCacheConfig returns the sizes used when nothing is configured.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		DetailBytes:   64 << 20,
		DiffBytes:     128 << 20,
		LogBytes:      32 << 20,
		LogMaxEntries: 64,
	}
}

// Caches bundles the commit detail, diff and range log caches, plus the
// commits implicated by each build error. Entries are keyed by
// content-addressed identifiers and never mutated.
type Caches struct {
	Details    *cache.LRU[string, model.Commit]
	Diffs      *cache.LRU[string, string]
	Logs       *cache.LRU[string, []string]
	Implicated *cache.LRU[string, []string]
}

// NewCaches creates an independent set of caches.
func NewCaches(cfg CacheConfig) *Caches {
	def := DefaultCacheConfig()
	if cfg.DetailBytes <= 0 {
		cfg.DetailBytes = def.DetailBytes
	}
	if cfg.DiffBytes <= 0 {
		cfg.DiffBytes = def.DiffBytes
	}
	if cfg.LogBytes <= 0 {
		cfg.LogBytes = def.LogBytes
	}
	if cfg.LogMaxEntries <= 0 {
		cfg.LogMaxEntries = def.LogMaxEntries
	}

	return &Caches{
		Details: cache.New("commit_detail", cfg.DetailBytes,
			func(sha string, c model.Commit) int { return len(sha) + c.Size() }),
		Diffs: cache.New("diff", cfg.DiffBytes,
			func(sha, diff string) int { return len(sha) + len(diff) }),
		Logs: cache.New("commit_log", cfg.LogBytes, weighSHAs,
			cache.WithMaxEntries(cfg.LogMaxEntries)),
		Implicated: cache.New("implicated", cfg.LogBytes/4, weighSHAs,
			cache.WithMaxEntries(cfg.LogMaxEntries)),
	}
}

func weighSHAs(key string, shas []string) int {
	n := len(key)
	for _, s := range shas {
		n += len(s)
	}
	return n
}

var (
	shared     *Caches
	sharedOnce sync.Once
)

// SharedCaches returns the process-wide caches. The configuration of the
// first call wins.
func SharedCaches(cfg CacheConfig) *Caches {
	sharedOnce.Do(func() {
		shared = NewCaches(cfg)
	})
	return shared
}
