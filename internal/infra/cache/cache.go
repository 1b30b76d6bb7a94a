// Package cache provides an optional Redis-backed result cache. Identical
// document text maps to the same cache key, so re-analyzing an unchanged
// change request skips the provider chain entirely. The cache degrades
// silently: any Redis error is logged and treated as a miss.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fluxadm/analyzer/internal/analysis/metrics"
	"github.com/fluxadm/analyzer/internal/core/domain"
)

const defaultTTL = time.Hour

// Config holds Redis connection configuration.
type Config struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	TTL      time.Duration `yaml:"ttl"`
}

// ResultCache caches analysis results keyed by document content.
type ResultCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

// New creates a result cache and verifies the connection.
func New(cfg Config) (*ResultCache, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &ResultCache{rdb: rdb, ttl: ttl, log: slog.Default()}, nil
}

// Close closes the Redis connection.
func (c *ResultCache) Close() error {
	return c.rdb.Close()
}

// Key derives the cache key for a document's text.
func Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "analysis:" + hex.EncodeToString(sum[:])
}

// Get looks up a cached result for the given document text. A Redis error
// counts as a miss.
func (c *ResultCache) Get(ctx context.Context, text string) (domain.AnalysisResult, bool) {
	var res domain.AnalysisResult

	val, err := c.rdb.Get(ctx, Key(text)).Bytes()
	if err == redis.Nil {
		metrics.CacheHitsTotal.WithLabelValues("miss").Inc()
		return res, false
	}
	if err != nil {
		c.log.Warn("Cache lookup failed", "error", err)
		metrics.CacheHitsTotal.WithLabelValues("error").Inc()
		return res, false
	}

	if err := json.Unmarshal(val, &res); err != nil {
		c.log.Warn("Cache entry corrupt, discarding", "error", err)
		metrics.CacheHitsTotal.WithLabelValues("error").Inc()
		return res, false
	}

	metrics.CacheHitsTotal.WithLabelValues("hit").Inc()
	return res, true
}

// Set stores a result. Rule-based fallbacks are not cached; a provider may
// recover before the entry would expire.
func (c *ResultCache) Set(ctx context.Context, text string, res domain.AnalysisResult) {
	if res.Source == domain.SourceRuleBased {
		return
	}

	data, err := json.Marshal(res)
	if err != nil {
		c.log.Warn("Failed to marshal result for cache", "error", err)
		return
	}
	if err := c.rdb.Set(ctx, Key(text), data, c.ttl).Err(); err != nil {
		c.log.Warn("Cache store failed", "error", err)
	}
}
