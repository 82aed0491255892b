package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// RistrettoCache backs the read-side API with a Ristretto cache. Entries
// are order and pool snapshots keyed by entity id, counted as one cost
// unit each, so MaxCost is an item count rather than a byte budget.
type RistrettoCache struct {
	cache  *ristretto.Cache
	logger *zap.Logger
}

// RistrettoConfig holds the sizing knobs for the snapshot cache.
type RistrettoConfig struct {
	NumCounters int64 // frequency counters, 10x the expected item count
	MaxCost     int64 // maximum number of cached snapshots
	BufferItems int64 // keys per Get buffer
	Logger      *zap.Logger
}

// NewRistrettoCache creates a Ristretto-backed snapshot cache.
func NewRistrettoCache(cfg *RistrettoConfig) (Cache, error) {
	inner, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}

	return &RistrettoCache{
		cache:  inner,
		logger: cfg.Logger,
	}, nil
}

// Get looks up a cached snapshot.
func (r *RistrettoCache) Get(key string) (interface{}, bool) {
	value, found := r.cache.Get(key)
	if found {
		CacheHitsTotal.Inc()
		r.logger.Debug("snapshot-cache-hit", zap.String("key", key))
		return value, true
	}
	CacheMissesTotal.Inc()
	r.logger.Debug("snapshot-cache-miss", zap.String("key", key))
	return nil, false
}

// Set stores a snapshot at unit cost until the TTL expires. Ristretto
// admission may reject the write; callers treat that as a cache miss on
// the next read, never as an error.
func (r *RistrettoCache) Set(key string, value interface{}, ttl time.Duration) bool {
	admitted := r.cache.SetWithTTL(key, value, 1, ttl)
	if admitted {
		CacheSetsTotal.Inc()
		r.logger.Debug("snapshot-cached",
			zap.String("key", key),
			zap.Duration("ttl", ttl))
	}
	return admitted
}

// Delete drops a snapshot, typically after the underlying entity mutated.
func (r *RistrettoCache) Delete(key string) {
	r.cache.Del(key)
	CacheDeletesTotal.Inc()
	r.logger.Debug("snapshot-evicted", zap.String("key", key))
}

// Clear drops every cached snapshot.
func (r *RistrettoCache) Clear() {
	r.cache.Clear()
	r.logger.Info("snapshot-cache-cleared")
}

// Close releases the cache's internal goroutines and buffers.
func (r *RistrettoCache) Close() {
	r.cache.Close()
	r.logger.Info("snapshot-cache-closed")
}

// Wait blocks until pending writes have been admitted or dropped. Reads
// immediately after a Set are only deterministic once this returns.
func (r *RistrettoCache) Wait() {
	r.cache.Wait()
}
