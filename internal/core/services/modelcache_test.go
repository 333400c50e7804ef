package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nulzo/prism-console/internal/store/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestModelCache_EnsureFetchesOnce(t *testing.T) {
	src := new(MockModelSource)
	src.On("ProviderModels", mock.Anything, "p1").Return([]string{"gpt-4", "gpt-4o"}, nil).Once()

	c := NewModelCache(src)
	ctx := context.Background()

	_, found := c.Models("p1")
	assert.False(t, found)

	require.NoError(t, c.Ensure(ctx, "p1"))
	require.NoError(t, c.Ensure(ctx, "p1"))

	models, found := c.Models("p1")
	assert.True(t, found)
	assert.Equal(t, []string{"gpt-4", "gpt-4o"}, models)
	src.AssertNumberOfCalls(t, "ProviderModels", 1)
}

func TestModelCache_EmptyIsNotUnfetched(t *testing.T) {
	src := new(MockModelSource)
	src.On("ProviderModels", mock.Anything, "p1").Return(nil, nil).Once()

	c := NewModelCache(src)
	require.NoError(t, c.Ensure(context.Background(), "p1"))

	models, found := c.Models("p1")
	assert.True(t, found)
	assert.Empty(t, models)

	require.NoError(t, c.Ensure(context.Background(), "p1"))
	src.AssertNumberOfCalls(t, "ProviderModels", 1)
}

func TestModelCache_EnsureIgnoresUnselectedProvider(t *testing.T) {
	src := new(MockModelSource)
	c := NewModelCache(src)

	assert.NoError(t, c.Ensure(context.Background(), ""))
	src.AssertNotCalled(t, "ProviderModels", mock.Anything, mock.Anything)
}

func TestModelCache_FailedEnsureLeavesKeyAbsent(t *testing.T) {
	src := new(MockModelSource)
	src.On("ProviderModels", mock.Anything, "p1").Return(nil, errors.New("boom")).Once()
	src.On("ProviderModels", mock.Anything, "p1").Return([]string{"m"}, nil).Once()

	c := NewModelCache(src)
	err := c.Ensure(context.Background(), "p1")
	assert.Error(t, err)

	_, found := c.Models("p1")
	assert.False(t, found)

	require.NoError(t, c.Ensure(context.Background(), "p1"))
	models, _ := c.Models("p1")
	assert.Equal(t, []string{"m"}, models)
}

type gatedSource struct {
	calls atomic.Int32
	gate  chan struct{}
}

func (g *gatedSource) ProviderModels(ctx context.Context, providerID string) ([]string, error) {
	g.calls.Add(1)
	<-g.gate
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []string{"llama3"}, nil
}

func (g *gatedSource) RefreshProviderModels(ctx context.Context, providerID string) ([]string, error) {
	return nil, errors.New("not used")
}

func TestModelCache_ConcurrentEnsureSharesRequest(t *testing.T) {
	src := &gatedSource{gate: make(chan struct{})}
	c := NewModelCache(src)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Ensure(context.Background(), "p1"))
		}()
	}

	// let the first fetch start, then release it
	assert.Eventually(t, func() bool { return src.calls.Load() >= 1 }, time.Second, time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	models, found := c.Models("p1")
	assert.True(t, found)
	assert.Equal(t, []string{"llama3"}, models)
}

func TestModelCache_CancelledCallerDoesNotFailOthers(t *testing.T) {
	src := &gatedSource{gate: make(chan struct{})}
	c := NewModelCache(src)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := make(chan error, 1)
	go func() { first <- c.Ensure(ctx, "p1") }()
	assert.Eventually(t, func() bool { return src.calls.Load() >= 1 }, time.Second, time.Millisecond)

	second := make(chan error, 1)
	go func() { second <- c.Ensure(context.Background(), "p1") }()

	cancel()
	select {
	case err := <-first:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting")
	}

	close(src.gate)
	select {
	case err := <-second:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("second caller never returned")
	}

	models, found := c.Models("p1")
	assert.True(t, found)
	assert.Equal(t, []string{"llama3"}, models)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestModelCache_RefreshOverwrites(t *testing.T) {
	src := new(MockModelSource)
	src.On("ProviderModels", mock.Anything, "p1").Return([]string{"old"}, nil).Once()
	src.On("RefreshProviderModels", mock.Anything, "p1").Return([]string{"new-a", "new-b"}, nil).Once()

	c := NewModelCache(src)
	ctx := context.Background()
	require.NoError(t, c.Ensure(ctx, "p1"))

	got, err := c.Refresh(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"new-a", "new-b"}, got)

	models, _ := c.Models("p1")
	assert.Equal(t, []string{"new-a", "new-b"}, models)

	// ensure after refresh is still a cache hit
	require.NoError(t, c.Ensure(ctx, "p1"))
	src.AssertNumberOfCalls(t, "ProviderModels", 1)
}

func TestModelCache_RefreshFailureKeepsEntry(t *testing.T) {
	src := new(MockModelSource)
	src.On("ProviderModels", mock.Anything, "p1").Return([]string{"old"}, nil).Once()
	src.On("RefreshProviderModels", mock.Anything, "p1").Return(nil, errors.New("upstream down")).Once()

	c := NewModelCache(src)
	ctx := context.Background()
	require.NoError(t, c.Ensure(ctx, "p1"))

	_, err := c.Refresh(ctx, "p1")
	assert.ErrorContains(t, err, "upstream down")

	models, _ := c.Models("p1")
	assert.Equal(t, []string{"old"}, models)
}

func TestModelCache_EntriesAreIndependentPerProvider(t *testing.T) {
	src := new(MockModelSource)
	src.On("ProviderModels", mock.Anything, "p1").Return([]string{"a"}, nil).Once()
	src.On("ProviderModels", mock.Anything, "p2").Return([]string{"b"}, nil).Once()
	src.On("RefreshProviderModels", mock.Anything, "p2").Return([]string{"c"}, nil).Once()

	c := NewModelCache(src)
	ctx := context.Background()
	require.NoError(t, c.Ensure(ctx, "p1"))
	require.NoError(t, c.Ensure(ctx, "p2"))
	_, err := c.Refresh(ctx, "p2")
	require.NoError(t, err)

	models, _ := c.Models("p1")
	assert.Equal(t, []string{"a"}, models)
}

func TestModelCache_SharedCache(t *testing.T) {
	shared := cache.NewMemoryCache()
	ctx := context.Background()

	first := new(MockModelSource)
	first.On("ProviderModels", mock.Anything, "p1").Return([]string{"gpt-4"}, nil).Once()
	require.NoError(t, NewModelCache(first, WithSharedCache(shared, time.Minute)).Ensure(ctx, "p1"))

	// a second process reuses the shared entry without hitting the API
	second := new(MockModelSource)
	c := NewModelCache(second, WithSharedCache(shared, time.Minute))
	require.NoError(t, c.Ensure(ctx, "p1"))

	models, found := c.Models("p1")
	assert.True(t, found)
	assert.Equal(t, []string{"gpt-4"}, models)
	second.AssertNotCalled(t, "ProviderModels", mock.Anything, mock.Anything)
}
