package twitter

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// UserCache keeps resolved user profiles in sqlite so repeated username
// lookups do not spend API quota.
type UserCache struct {
	db     *sql.DB
	ttl    time.Duration
	now    func() time.Time
	mu     sync.Mutex
	hits   atomic.Int64
	misses atomic.Int64
}

type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int64 `json:"entries"`
}

func OpenUserCache(dbPath string, ttl time.Duration) (*UserCache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	cache := &UserCache{db: db, ttl: ttl, now: time.Now}
	if err := cache.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	if purged, err := cache.Purge(context.Background()); err == nil && purged > 0 {
		log.Info("purged expired cached users", "count", purged)
	}

	return cache, nil
}

func (c *UserCache) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		username_key TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		fetched_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_fetched_at ON users(fetched_at);
	`

	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := c.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func cacheKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (c *UserCache) Get(ctx context.Context, username string) (*User, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var payload string
	var fetchedAt int64
	err := c.db.QueryRowContext(ctx,
		"SELECT payload, fetched_at FROM users WHERE username_key = ?",
		cacheKey(username),
	).Scan(&payload, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		c.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if c.now().Sub(time.UnixMilli(fetchedAt)) >= c.ttl {
		c.misses.Add(1)
		if _, err := c.db.ExecContext(ctx, "DELETE FROM users WHERE username_key = ?", cacheKey(username)); err != nil {
			log.Warn("failed to evict expired user", "username", username, "error", err)
		}
		return nil, false, nil
	}

	var user User
	if err := json.Unmarshal([]byte(payload), &user); err != nil {
		c.misses.Add(1)
		return nil, false, nil
	}

	c.hits.Add(1)
	return &user, true, nil
}

func (c *UserCache) Put(ctx context.Context, user *User) error {
	if user == nil || user.Username == "" {
		return fmt.Errorf("cannot cache user without username")
	}

	payload, err := json.Marshal(user)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO users (username_key, user_id, payload, fetched_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(username_key) DO UPDATE SET user_id = excluded.user_id, payload = excluded.payload, fetched_at = excluded.fetched_at`,
		cacheKey(user.Username), user.ID, string(payload), c.now().UnixMilli(),
	)
	return err
}

// Purge deletes every entry older than the TTL.
func (c *UserCache) Purge(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.ttl).UnixMilli()
	result, err := c.db.ExecContext(ctx, "DELETE FROM users WHERE fetched_at <= ?", cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (c *UserCache) Stats(ctx context.Context) CacheStats {
	stats := CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&stats.Entries); err != nil {
		log.Warn("failed to count cached users", "error", err)
	}
	return stats
}

func (c *UserCache) Close() error {
	return c.db.Close()
}

// CachedClient serves UserByUsername from a UserCache and passes every other
// call through.
type CachedClient struct {
	Client
	cache *UserCache
}

func NewCachedClient(inner Client, cache *UserCache) *CachedClient {
	return &CachedClient{Client: inner, cache: cache}
}

func (c *CachedClient) UserByUsername(ctx context.Context, username string) (*User, error) {
	user, ok, err := c.cache.Get(ctx, username)
	if err != nil {
		log.Warn("user cache read failed", "username", username, "error", err)
	}
	if ok {
		return user, nil
	}

	user, err = c.Client.UserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Put(ctx, user); err != nil {
		log.Warn("user cache write failed", "username", username, "error", err)
	}
	return user, nil
}

func (c *CachedClient) CacheStats(ctx context.Context) CacheStats {
	return c.cache.Stats(ctx)
}
