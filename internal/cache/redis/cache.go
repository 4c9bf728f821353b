// Package redis implements the response cache: normalized query text hashed
// into a key, Response JSON as the value, confidence-tiered TTL decided by
// the aggregator.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/askroute/backend/internal/models"
	"github.com/askroute/backend/pkg/logger"
	"github.com/askroute/backend/pkg/utils"
)

const keyPrefix = "answer:"

type Cache struct {
	client *redis.Client
	salt   string
}

// NewCache connects to Redis. The active source set salts every key so a
// config change to the source list naturally misses old entries instead of
// serving answers a removed source produced.
func NewCache(host string, port int, password string, db int, activeSources []string) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Response cache initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Cache{client: client, salt: sourceSalt(activeSources)}, nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) Get(ctx context.Context, queryText string) (*models.Response, bool, error) {
	data, err := c.client.Get(ctx, c.Key(queryText)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached response: %w", err)
	}

	var response models.Response
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached response: %w", err)
	}

	logger.Debug("Cache hit", zap.String("query", queryText))
	return &response, true, nil
}

func (c *Cache) Set(ctx context.Context, queryText string, response *models.Response, ttl time.Duration) error {
	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	if err := c.client.Set(ctx, c.Key(queryText), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cached response: %w", err)
	}

	logger.Debug("Response cached", zap.String("query", queryText), zap.Duration("ttl", ttl))
	return nil
}

// Invalidate removes every cached response whose key matches pattern
// (normalized-text glob, e.g. "*" or "how to*").
func (c *Cache) Invalidate(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+pattern, 0).Iterator()
	removed := 0
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.String("key", iter.Val()), zap.Error(err))
			continue
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Cache invalidated", zap.String("pattern", pattern), zap.Int("removed", removed))
	return nil
}

func (c *Cache) Key(queryText string) string {
	return keyPrefix + utils.HashString(NormalizeQuery(queryText)+"|"+c.salt)
}

// NormalizeQuery folds trivially different phrasings onto one cache key:
// lowercase, trimmed, punctuation stripped, whitespace collapsed.
func NormalizeQuery(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(strings.TrimSpace(text)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func sourceSalt(sources []string) string {
	sorted := append([]string{}, sources...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
