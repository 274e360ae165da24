package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/hadoobidoop/stock-tracker/internal/market"
)

// cachedTable is the wire form of an indicator table. JSON cannot carry NaN,
// so warm-up cells travel as null and are restored to NaN on decode.
type cachedTable struct {
	Ticker  string                `json:"ticker"`
	Bars    []market.Bar          `json:"bars"`
	Columns map[string][]*float64 `json:"columns"`
}

func encodeTable(t *market.IndicatorTable) cachedTable {
	columns := make(map[string][]*float64, len(t.Columns))
	for name, values := range t.Columns {
		cells := make([]*float64, len(values))
		for i, v := range values {
			if !math.IsNaN(v) {
				v := v
				cells[i] = &v
			}
		}
		columns[name] = cells
	}
	return cachedTable{Ticker: t.Ticker, Bars: t.Bars, Columns: columns}
}

func (ct cachedTable) decode() *market.IndicatorTable {
	table := market.NewIndicatorTable(ct.Ticker, ct.Bars)
	for name, cells := range ct.Columns {
		values := make([]float64, len(cells))
		for i, cell := range cells {
			if cell == nil {
				values[i] = math.NaN()
			} else {
				values[i] = *cell
			}
		}
		table.SetColumn(name, values)
	}
	return table
}

// TableCacheEntry wraps a cached indicator table with freshness metadata.
type TableCacheEntry struct {
	Table     cachedTable `json:"table"`
	CachedAt  time.Time   `json:"cached_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// TableCacheStats tracks cache performance counters.
type TableCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	mu     sync.RWMutex
}

// TableCache stores computed indicator tables in Redis. The key combines the
// ticker with the indicator config signature, so a parameter change never
// serves stale columns. A nil Redis client disables the cache: every Get is
// a miss and every Set is a no-op.
type TableCache struct {
	redis  *redis.Client
	ttl    time.Duration
	stats  *TableCacheStats
	prefix string
	logger *logrus.Logger
}

// NewTableCache creates a Redis-backed indicator table cache.
func NewTableCache(redisClient *redis.Client, ttl time.Duration, logger *logrus.Logger) *TableCache {
	return &TableCache{
		redis:  redisClient,
		ttl:    ttl,
		stats:  &TableCacheStats{},
		prefix: "indicator_table:",
		logger: logger,
	}
}

func (c *TableCache) key(ticker, signature string) string {
	return fmt.Sprintf("%s%s:%s", c.prefix, ticker, signature)
}

func (c *TableCache) miss() {
	c.stats.mu.Lock()
	c.stats.Misses++
	c.stats.mu.Unlock()
}

// Get retrieves a cached table for a ticker and indicator config signature.
func (c *TableCache) Get(ctx context.Context, ticker, signature string) (*market.IndicatorTable, bool) {
	if c.redis == nil {
		c.miss()
		return nil, false
	}
	data, err := c.redis.Get(ctx, c.key(ticker, signature)).Result()
	if err == redis.Nil {
		c.miss()
		return nil, false
	}
	if err != nil {
		c.logger.WithError(err).WithField("ticker", ticker).Warn("Redis error reading indicator table")
		c.miss()
		return nil, false
	}

	var entry TableCacheEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		c.logger.WithError(err).WithField("ticker", ticker).Warn("Discarding undecodable cached table")
		c.miss()
		return nil, false
	}
	table := entry.Table.decode()
	if table.Validate() != nil {
		c.miss()
		return nil, false
	}

	c.stats.mu.Lock()
	c.stats.Hits++
	c.stats.mu.Unlock()
	return table, true
}

// Set stores a table under the ticker and config signature with the cache TTL.
func (c *TableCache) Set(ctx context.Context, signature string, table *market.IndicatorTable) {
	if c.redis == nil || table == nil {
		return
	}
	now := time.Now().UTC()
	entry := TableCacheEntry{
		Table:     encodeTable(table),
		CachedAt:  now,
		ExpiresAt: now.Add(c.ttl),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.WithError(err).WithField("ticker", table.Ticker).Warn("Failed to serialize indicator table")
		return
	}
	if err := c.redis.Set(ctx, c.key(table.Ticker, signature), data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("ticker", table.Ticker).Warn("Redis error caching indicator table")
		return
	}

	c.stats.mu.Lock()
	c.stats.Sets++
	c.stats.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"ticker": table.Ticker,
		"rows":   table.Len(),
		"ttl":    c.ttl,
	}).Debug("Cached indicator table")
}

// Invalidate removes every cached table for a ticker, across all signatures.
func (c *TableCache) Invalidate(ctx context.Context, ticker string) error {
	if c.redis == nil {
		return nil
	}
	pattern := c.prefix + ticker + ":*"
	var keys []string
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scanning cache keys for %s: %w", ticker, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidating cache for %s: %w", ticker, err)
	}
	c.logger.WithFields(logrus.Fields{
		"ticker": ticker,
		"keys":   len(keys),
	}).Info("Invalidated cached tables")
	return nil
}

// Stats returns a copy of the current counters.
func (c *TableCache) Stats() TableCacheStats {
	c.stats.mu.RLock()
	defer c.stats.mu.RUnlock()
	return TableCacheStats{
		Hits:   c.stats.Hits,
		Misses: c.stats.Misses,
		Sets:   c.stats.Sets,
	}
}

// LogStats logs the hit rate since startup.
func (c *TableCache) LogStats() {
	stats := c.Stats()
	total := stats.Hits + stats.Misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	c.logger.WithFields(logrus.Fields{
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"sets":     stats.Sets,
		"hit_rate": fmt.Sprintf("%.2f%%", hitRate),
	}).Info("Indicator table cache stats")
}
