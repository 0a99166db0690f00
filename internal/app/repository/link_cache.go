package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sifan077/linkgate/internal/app/model"
)

const linkCachePrefix = "link:"

// LinkCache keeps recently resolved links close to the redirect path. A miss
// is reported as (nil, nil).
type LinkCache interface {
	Get(ctx context.Context, slug string) (*model.Link, error)
	Set(ctx context.Context, link *model.Link) error
	Delete(ctx context.Context, slugs ...string) error
}

// cachedLink carries the fields resolution needs. The click counter is not
// cached; stats always read the store.
type cachedLink struct {
	ID             string     `json:"id"`
	Slug           string     `json:"slug"`
	Target         string     `json:"target"`
	PasswordDigest *string    `json:"password_digest,omitempty"`
	IsActive       bool       `json:"is_active"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

type redisLinkCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLinkCache returns a LinkCache storing JSON entries with the given TTL.
func NewRedisLinkCache(client *redis.Client, ttl time.Duration) LinkCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &redisLinkCache{client: client, ttl: ttl}
}

func (c *redisLinkCache) Get(ctx context.Context, slug string) (*model.Link, error) {
	val, err := c.client.Get(ctx, linkCachePrefix+slug).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cached cachedLink
	if err := json.Unmarshal(val, &cached); err != nil {
		return nil, err
	}
	return &model.Link{
		ID:             cached.ID,
		Slug:           cached.Slug,
		Target:         cached.Target,
		PasswordDigest: cached.PasswordDigest,
		IsActive:       cached.IsActive,
		ExpiresAt:      cached.ExpiresAt,
	}, nil
}

func (c *redisLinkCache) Set(ctx context.Context, link *model.Link) error {
	data, err := json.Marshal(cachedLink{
		ID:             link.ID,
		Slug:           link.Slug,
		Target:         link.Target,
		PasswordDigest: link.PasswordDigest,
		IsActive:       link.IsActive,
		ExpiresAt:      link.ExpiresAt,
	})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, linkCachePrefix+link.Slug, data, c.ttl).Err()
}

func (c *redisLinkCache) Delete(ctx context.Context, slugs ...string) error {
	if len(slugs) == 0 {
		return nil
	}
	keys := make([]string, len(slugs))
	for i, slug := range slugs {
		keys[i] = linkCachePrefix + slug
	}
	return c.client.Del(ctx, keys...).Err()
}
