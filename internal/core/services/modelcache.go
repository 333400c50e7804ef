package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nulzo/prism-console/internal/core/ports"
	"github.com/nulzo/prism-console/internal/store/cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ModelCache holds the model list of each provider, keyed by provider uuid
// and shared by every rule row. A missing key means "not fetched yet"; an
// empty list means the provider reported no models.
type ModelCache struct {
	source ports.ModelSource
	shared cache.CacheService // optional second level, may be nil
	ttl    time.Duration
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[string][]string
	group   singleflight.Group
}

// ModelCacheOption configures a ModelCache.
type ModelCacheOption func(*ModelCache)

// WithSharedCache consults and fills a second-level cache so several console
// processes can reuse fetched lists.
func WithSharedCache(c cache.CacheService, ttl time.Duration) ModelCacheOption {
	return func(m *ModelCache) {
		m.shared = c
		m.ttl = ttl
	}
}

// WithCacheLogger sets the logger.
func WithCacheLogger(l *zap.Logger) ModelCacheOption {
	return func(m *ModelCache) {
		m.logger = l
	}
}

func NewModelCache(source ports.ModelSource, opts ...ModelCacheOption) *ModelCache {
	m := &ModelCache{
		source:  source,
		entries: make(map[string][]string),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Models returns the cached list. found is false when the provider was
// never fetched.
func (m *ModelCache) Models(providerID string) (models []string, found bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list, ok := m.entries[providerID]
	if !ok {
		return nil, false
	}
	return append([]string{}, list...), true
}

// Ensure fetches the provider's models unless they are already cached.
// Concurrent calls for the same provider share one request. The shared
// request is detached from ctx, so a caller that gives up only stops
// waiting; the fetch still completes and fills the cache for the others.
func (m *ModelCache) Ensure(ctx context.Context, providerID string) error {
	if providerID == "" {
		return nil
	}
	if _, ok := m.Models(providerID); ok {
		return nil
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := m.group.DoChan("ensure:"+providerID, func() (interface{}, error) {
		// another caller may have filled it while we waited on the group
		if list, ok := m.Models(providerID); ok {
			return list, nil
		}

		if list, ok := m.fromShared(fetchCtx, providerID); ok {
			m.store(providerID, list)
			return list, nil
		}

		m.logger.Debug("Fetching provider models", zap.String("provider", providerID))
		list, err := m.source.ProviderModels(fetchCtx, providerID)
		if err != nil {
			return nil, err
		}
		m.store(providerID, list)
		m.toShared(fetchCtx, providerID, list)
		return list, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			m.logger.Warn("Failed to fetch provider models", zap.String("provider", providerID), zap.Error(res.Err))
			return fmt.Errorf("fetch models for provider %s: %w", providerID, res.Err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("fetch models for provider %s: %w", providerID, ctx.Err())
	}
}

// Refresh re-probes the provider upstream and overwrites the cached entry.
func (m *ModelCache) Refresh(ctx context.Context, providerID string) ([]string, error) {
	if providerID == "" {
		return nil, fmt.Errorf("refresh models: provider is required")
	}

	list, err := m.source.RefreshProviderModels(ctx, providerID)
	if err != nil {
		m.logger.Warn("Failed to refresh provider models", zap.String("provider", providerID), zap.Error(err))
		return nil, fmt.Errorf("refresh models for provider %s: %w", providerID, err)
	}

	m.store(providerID, list)
	m.toShared(ctx, providerID, list)
	m.logger.Info("Provider models refreshed", zap.String("provider", providerID), zap.Int("models_count", len(list)))
	return append([]string{}, list...), nil
}

func (m *ModelCache) store(providerID string, list []string) {
	if list == nil {
		list = []string{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[providerID] = append([]string{}, list...)
}

func sharedKey(providerID string) string {
	return "provider-models:" + providerID
}

func (m *ModelCache) fromShared(ctx context.Context, providerID string) ([]string, bool) {
	if m.shared == nil {
		return nil, false
	}
	var list []string
	if err := m.shared.Get(ctx, sharedKey(providerID), &list); err != nil {
		if !cache.IsMiss(err) {
			m.logger.Warn("Shared cache read failed", zap.String("provider", providerID), zap.Error(err))
		}
		return nil, false
	}
	return list, true
}

func (m *ModelCache) toShared(ctx context.Context, providerID string, list []string) {
	if m.shared == nil {
		return
	}
	if list == nil {
		list = []string{}
	}
	if err := m.shared.Set(ctx, sharedKey(providerID), list, m.ttl); err != nil {
		m.logger.Warn("Shared cache write failed", zap.String("provider", providerID), zap.Error(err))
	}
}
