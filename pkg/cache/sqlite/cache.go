package sqlite

import (
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/routebench/pkg/models"
)

// Cache stores catalog response bodies keyed by endpoint, backed by SQLite.
// Expired entries stay readable through GetStale until cleared.
type Cache struct {
	db     *sql.DB
	ttl    time.Duration
	now    func() time.Time
	hits   atomic.Int64
	misses atomic.Int64
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS catalog_responses (
	key TEXT PRIMARY KEY,
	body BLOB NOT NULL,
	fetched_at DATETIME NOT NULL,
	ttl_seconds INTEGER NOT NULL
);
`

// New creates a Cache with the given database path and TTL.
func New(dbPath string, ttl time.Duration) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &Cache{db: db, ttl: ttl, now: time.Now}, nil
}

func (c *Cache) lookup(key string) (body []byte, fresh bool, err error) {
	var fetchedAt time.Time
	var ttlSeconds int64
	err = c.db.QueryRow(
		`SELECT body, fetched_at, ttl_seconds FROM catalog_responses WHERE key = ?`, key,
	).Scan(&body, &fetchedAt, &ttlSeconds)
	if err != nil {
		return nil, false, err
	}
	fresh = c.now().Sub(fetchedAt) <= time.Duration(ttlSeconds)*time.Second
	return body, fresh, nil
}

// Get returns a cached body that has not expired.
func (c *Cache) Get(key string) ([]byte, bool) {
	body, fresh, err := c.lookup(key)
	if err != nil || !fresh {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return body, true
}

// GetStale returns a cached body regardless of age.
func (c *Cache) GetStale(key string) ([]byte, bool) {
	body, _, err := c.lookup(key)
	if err != nil {
		return nil, false
	}
	return body, true
}

// Put stores a body under key.
func (c *Cache) Put(key string, body []byte) error {
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO catalog_responses (key, body, fetched_at, ttl_seconds) VALUES (?, ?, ?, ?)`,
		key, body, c.now().UTC(), int64(c.ttl.Seconds()),
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Stats returns cache metrics. Stale counts expired rows still on disk.
func (c *Cache) Stats() (models.CacheStats, error) {
	var count int64
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM catalog_responses`).Scan(&count); err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}

	rows, err := c.db.Query(`SELECT fetched_at, ttl_seconds FROM catalog_responses`)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	defer rows.Close()
	var stale int64
	for rows.Next() {
		var fetchedAt time.Time
		var ttlSeconds int64
		if err := rows.Scan(&fetchedAt, &ttlSeconds); err != nil {
			return models.CacheStats{}, fmt.Errorf("scan cache row: %w", err)
		}
		if c.now().Sub(fetchedAt) > time.Duration(ttlSeconds)*time.Second {
			stale++
		}
	}
	if err := rows.Err(); err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}

	return models.CacheStats{
		Entries: count,
		Stale:   stale,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Clear removes entries. If expiredOnly is true, only expired entries are removed.
func (c *Cache) Clear(expiredOnly bool) error {
	var query string
	if expiredOnly {
		query = `DELETE FROM catalog_responses WHERE (julianday('now') - julianday(fetched_at)) * 86400 > ttl_seconds`
	} else {
		query = `DELETE FROM catalog_responses`
	}
	if _, err := c.db.Exec(query); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}
