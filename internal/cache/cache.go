package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/neexbeast/hotel-offers/internal/offer"
)

const (
	// DefaultTTL is how long a merged offer list stays cached.
	DefaultTTL = time.Hour

	keyPrefix = "offers:"
	scanBatch = 100
)

// Entry is a cached merged offer list for one city.
type Entry struct {
	City      string              `json:"city"`
	Offers    []offer.MergedOffer `json:"offers"`
	ExpiresAt time.Time           `json:"expires_at"`
}

// Stats summarizes what the cache currently holds.
type Stats struct {
	Keys   int    `json:"keys"`
	Memory string `json:"memory"`
}

// Cache wraps a Redis client and stores merged offer lists per city.
type Cache struct {
	client *redis.Client
}

// NewCache constructs a Cache over the given client.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// normalizeCity returns the lowercased, trimmed city used in keys.
func normalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

// key returns the Redis key for the given city.
func key(city string) string {
	return keyPrefix + normalizeCity(city)
}

// Get retrieves the cached entry for city.
// Returns nil, nil on a cache miss (not an error).
func (c *Cache) Get(ctx context.Context, city string) (*Entry, error) {
	val, err := c.client.Get(ctx, key(city)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get for city %s: %w", city, err)
	}

	var entry Entry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return nil, fmt.Errorf("unmarshaling cached offers for city %s: %w", city, err)
	}

	return &entry, nil
}

// Put stores offers for city with the given TTL, replacing whatever was there.
func (c *Cache) Put(ctx context.Context, city string, offers []offer.MergedOffer, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if offers == nil {
		offers = []offer.MergedOffer{}
	}

	entry := Entry{
		City:      normalizeCity(city),
		Offers:    offers,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}

	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling offers for city %s: %w", city, err)
	}

	if err := c.client.Set(ctx, key(city), b, ttl).Err(); err != nil {
		return fmt.Errorf("cache set for city %s: %w", city, err)
	}

	return nil
}

// FilterCached returns the cached offers for city narrowed to r.
// A miss yields an empty list.
func (c *Cache) FilterCached(ctx context.Context, city string, r offer.PriceRange) ([]offer.MergedOffer, error) {
	entry, err := c.Get(ctx, city)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return []offer.MergedOffer{}, nil
	}
	return offer.Filter(entry.Offers, r), nil
}

// Clear removes the cached entry for city, or every offer entry when city is empty.
func (c *Cache) Clear(ctx context.Context, city string) error {
	if normalizeCity(city) != "" {
		if err := c.client.Del(ctx, key(city)).Err(); err != nil {
			return fmt.Errorf("cache delete for city %s: %w", city, err)
		}
		return nil
	}

	keys, err := c.offerKeys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache delete all offers: %w", err)
	}
	return nil
}

var usedMemoryRe = regexp.MustCompile(`used_memory_human:([^\r\n]+)`)

// Stats counts cached cities and reports Redis memory usage when available.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	keys, err := c.offerKeys(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Keys: len(keys), Memory: "unknown"}
	info, err := c.client.Info(ctx, "memory").Result()
	if err == nil {
		if m := usedMemoryRe.FindStringSubmatch(info); m != nil {
			stats.Memory = strings.TrimSpace(m[1])
		}
	}

	return stats, nil
}

// Ping checks Redis connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) offerKeys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning offer keys: %w", err)
	}
	return keys, nil
}
