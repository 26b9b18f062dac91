// File: internal/usecase/cache_uc.go
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"finiq-ai-pipeline/internal/domain"
	"finiq-ai-pipeline/internal/domain/model"
	"finiq-ai-pipeline/internal/domain/ports/repository"
	"finiq-ai-pipeline/internal/infra/metrics"
)

// Cache namespaces. Every key this service touches starts with one of these.
const (
	NamespaceBlueprint = "blueprint:"
	NamespacePipeline  = "pipeline:"
	NamespaceRateLimit = "rate_limit:"
	NamespaceSession   = "session:"
	NamespaceDraft     = "draft:"
)

// Namespaces lists the known prefixes in stats order.
var Namespaces = []string{
	NamespaceBlueprint,
	NamespacePipeline,
	NamespaceRateLimit,
	NamespaceSession,
	NamespaceDraft,
}

const statsSampleSize = 5

// NamespaceStats describes one namespace in the admin stats reply.
type NamespaceStats struct {
	Keys   int      `json:"keys"`
	Sample []string `json:"sample,omitempty"`
}

// CacheStats is the admin-facing snapshot of the whole cache.
type CacheStats struct {
	TotalKeys  int                       `json:"total_keys"`
	Namespaces map[string]NamespaceStats `json:"namespaces"`
}

// Compile-time check
var _ CacheService = (*cacheUC)(nil)

// CacheService is the namespaced cache surface shared by the pipeline and
// the admin API. Reads miss with domain.ErrCacheMiss; writes always carry
// a TTL; Delete is idempotent.
type CacheService interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete reports whether the key existed.
	Delete(ctx context.Context, key string) (bool, error)
	// Increment is atomic. The first write stamps the namespace TTL so
	// counters cannot outlive their window.
	Increment(ctx context.Context, key string, delta int64) (int64, error)
	Keys(ctx context.Context, pattern string) ([]string, error)

	StoreStrategy(ctx context.Context, blueprintID string, s *model.FinanceStrategy) error
	GetStrategy(ctx context.Context, blueprintID string) (*model.FinanceStrategy, error)

	Stats(ctx context.Context) (*CacheStats, error)
	ClearNamespace(ctx context.Context, namespace string) (int, error)
	ClearAll(ctx context.Context) (int, error)
	WarmUp(ctx context.Context, blueprintIDs []string) (int, error)
}

type cacheUC struct {
	kv         repository.KVStore
	blueprints repository.BlueprintRepository
	defaultTTL time.Duration
	log        zerolog.Logger
}

// NewCacheService builds the cache service. blueprints may be nil when no
// database is configured; WarmUp then reports zero entries.
func NewCacheService(kv repository.KVStore, blueprints repository.BlueprintRepository, defaultTTL time.Duration, logger *zerolog.Logger) *cacheUC {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &cacheUC{
		kv:         kv,
		blueprints: blueprints,
		defaultTTL: defaultTTL,
		log:        logger.With().Str("component", "cache").Logger(),
	}
}

// namespaceOf extracts the metric label from a key, "other" when the key
// carries no known prefix.
func namespaceOf(key string) string {
	for _, ns := range Namespaces {
		if strings.HasPrefix(key, ns) {
			return strings.TrimSuffix(ns, ":")
		}
	}
	return "other"
}

func (c *cacheUC) Get(ctx context.Context, key string) (string, error) {
	val, err := c.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrCacheMiss) {
			metrics.IncCacheRequest(namespaceOf(key), "miss")
		}
		return "", err
	}
	metrics.IncCacheRequest(namespaceOf(key), "hit")
	return val, nil
}

func (c *cacheUC) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	return c.kv.Set(ctx, key, value, ttl)
}

func (c *cacheUC) Delete(ctx context.Context, key string) (bool, error) {
	n, err := c.kv.Del(ctx, key)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *cacheUC) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := c.kv.IncrBy(ctx, key, delta)
	if err != nil {
		return 0, err
	}
	if n == delta {
		// First write for this key; bound its lifetime.
		if err := c.kv.Expire(ctx, key, c.defaultTTL); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("expire after increment failed")
		}
	}
	return n, nil
}

func (c *cacheUC) Keys(ctx context.Context, pattern string) ([]string, error) {
	return c.kv.Keys(ctx, pattern)
}

func (c *cacheUC) strategyKey(blueprintID string) string {
	return NamespaceBlueprint + "strategy:" + blueprintID
}

func (c *cacheUC) StoreStrategy(ctx context.Context, blueprintID string, s *model.FinanceStrategy) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.kv.Set(ctx, c.strategyKey(blueprintID), string(data), c.defaultTTL)
}

func (c *cacheUC) GetStrategy(ctx context.Context, blueprintID string) (*model.FinanceStrategy, error) {
	data, err := c.Get(ctx, c.strategyKey(blueprintID))
	if err != nil {
		return nil, err
	}
	var s model.FinanceStrategy
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *cacheUC) Stats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{Namespaces: make(map[string]NamespaceStats, len(Namespaces))}
	for _, ns := range Namespaces {
		keys, err := c.kv.Keys(ctx, ns+"*")
		if err != nil {
			return nil, err
		}
		sort.Strings(keys)
		sample := keys
		if len(sample) > statsSampleSize {
			sample = sample[:statsSampleSize]
		}
		stats.Namespaces[strings.TrimSuffix(ns, ":")] = NamespaceStats{
			Keys:   len(keys),
			Sample: sample,
		}
		stats.TotalKeys += len(keys)
	}
	return stats, nil
}

func (c *cacheUC) ClearNamespace(ctx context.Context, namespace string) (int, error) {
	if !strings.HasSuffix(namespace, ":") {
		namespace += ":"
	}
	keys, err := c.kv.Keys(ctx, namespace+"*")
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := c.kv.Del(ctx, keys...)
	if err != nil {
		return 0, err
	}
	label := strings.TrimSuffix(namespace, ":")
	metrics.AddCacheCleared(label, int(n))
	c.log.Info().Str("namespace", label).Int64("removed", n).Msg("namespace cleared")
	return int(n), nil
}

func (c *cacheUC) ClearAll(ctx context.Context) (int, error) {
	total := 0
	for _, ns := range Namespaces {
		n, err := c.ClearNamespace(ctx, ns)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// WarmUp preloads strategies for the given blueprints, or for the most
// recent ones when no IDs are passed. Blueprints without a stored strategy
// are skipped.
func (c *cacheUC) WarmUp(ctx context.Context, blueprintIDs []string) (int, error) {
	if c.blueprints == nil {
		return 0, nil
	}
	ids := blueprintIDs
	if len(ids) == 0 {
		var err error
		ids, err = c.blueprints.ListIDs(ctx, 20)
		if err != nil {
			return 0, err
		}
	}
	warmed := 0
	for _, id := range ids {
		bp, err := c.blueprints.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return warmed, err
		}
		if bp.Strategy == nil {
			continue
		}
		if err := c.StoreStrategy(ctx, bp.ID, bp.Strategy); err != nil {
			return warmed, err
		}
		warmed++
	}
	c.log.Info().Int("warmed", warmed).Msg("cache warm-up done")
	return warmed, nil
}
