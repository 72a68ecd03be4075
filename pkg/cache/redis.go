package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

type LinkCacheInterface interface {
	Get(ctx context.Context, code string) (*CachedLink, error)
	Set(ctx context.Context, code string, link *CachedLink, ttl time.Duration) error
	SetIfAbsent(ctx context.Context, code string, link *CachedLink, ttl time.Duration) (bool, error)
}

type LinkCache struct {
	client *redis.Client
}

// CachedLink is what the redirect path needs to answer without the store.
// Missing marks a negative entry for a code the store does not know.
type CachedLink struct {
	OriginalURL string     `json:"original_url,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Missing     bool       `json:"missing,omitempty"`
}

func NewLinkCache(client *redis.Client) *LinkCache {
	return &LinkCache{client: client}
}

func linkKey(code string) string {
	return "link:" + code
}

// Get returns (nil, nil) on a cache miss.
func (c *LinkCache) Get(ctx context.Context, code string) (*CachedLink, error) {
	val, err := c.client.Get(ctx, linkKey(code)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cached CachedLink
	if err := json.Unmarshal(val, &cached); err != nil {
		return nil, err
	}
	return &cached, nil
}

func (c *LinkCache) Set(ctx context.Context, code string, link *CachedLink, ttl time.Duration) error {
	data, err := json.Marshal(link)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, linkKey(code), data, ttl).Err()
}

// SetIfAbsent writes link only when no entry exists for code and reports
// whether it did. Read-through fills use it so they never replace an entry
// written by a create or delete.
func (c *LinkCache) SetIfAbsent(ctx context.Context, code string, link *CachedLink, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(link)
	if err != nil {
		return false, err
	}
	return c.client.SetNX(ctx, linkKey(code), data, ttl).Result()
}
