package metadata

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFetcher struct {
	mu     sync.Mutex
	calls  atomic.Int32
	models []Metadata
	err    error
	delay  time.Duration
}

func (f *countingFetcher) ListModels(ctx context.Context) ([]Metadata, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.models, nil
}

func (f *countingFetcher) set(models []Metadata, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.models = models
	f.err = err
}

func testModels() []Metadata {
	return []Metadata{
		{ID: "vendor/alpha", ContextWindowTokens: 32000, SupportsToolCalling: true, SupportedParameters: []string{"tools"}},
		{ID: "vendor/beta", ContextWindowTokens: 8000},
	}
}

func TestResolveCachesWithinTTL(t *testing.T) {
	f := &countingFetcher{models: testModels()}
	c := NewCatalog(f)

	first, err := c.Resolve(context.Background(), "vendor/alpha")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := c.Resolve(context.Background(), "vendor/alpha")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	assert.Equal(t, int32(1), f.calls.Load())
}

func TestResolveUnknownModel(t *testing.T) {
	f := &countingFetcher{models: testModels()}
	c := NewCatalog(f)

	_, err := c.Resolve(context.Background(), "vendor/missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestResolveRefetchesAfterTTL(t *testing.T) {
	f := &countingFetcher{models: testModels()}
	c := NewCatalog(f, func(o *CatalogOptions) { o.TTL = time.Minute })

	now := time.Unix(1700000000, 0)
	c.now = func() time.Time { return now }

	_, err := c.Resolve(context.Background(), "vendor/alpha")
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.calls.Load())

	now = now.Add(2 * time.Minute)

	// N concurrent callers after expiry trigger exactly one re-fetch.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Resolve(context.Background(), "vendor/alpha")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(2), f.calls.Load())
}

func TestConcurrentColdResolveSingleFetch(t *testing.T) {
	f := &countingFetcher{models: testModels(), delay: 20 * time.Millisecond}
	c := NewCatalog(f)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Resolve(context.Background(), "vendor/beta")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), f.calls.Load())
}

func TestResolveServesStaleWithinGrace(t *testing.T) {
	f := &countingFetcher{models: testModels()}
	c := NewCatalog(f, func(o *CatalogOptions) {
		o.TTL = time.Minute
		o.Grace = time.Minute
	})

	now := time.Unix(1700000000, 0)
	c.now = func() time.Time { return now }

	_, err := c.Resolve(context.Background(), "vendor/alpha")
	require.NoError(t, err)

	// Expire the snapshot but stay inside the grace window; make fetches fail.
	now = now.Add(90 * time.Second)
	f.set(nil, errors.New("serving api down"))

	meta, err := c.Resolve(context.Background(), "vendor/alpha")
	require.NoError(t, err)
	assert.Equal(t, "vendor/alpha", meta.ID)

	// Beyond TTL+grace the failure becomes ErrUnavailable.
	now = now.Add(5 * time.Minute)
	_, err = c.Resolve(context.Background(), "vendor/alpha")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestResolveCallerCancellationDoesNotKillFetch(t *testing.T) {
	f := &countingFetcher{models: testModels(), delay: 50 * time.Millisecond}
	c := NewCatalog(f)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := c.Resolve(ctx, "vendor/alpha")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The shared fetch keeps running and later callers get its result
	// without a second network call.
	require.Eventually(t, func() bool {
		_, err := c.Resolve(context.Background(), "vendor/alpha")
		return err == nil
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestEffectiveOutputTokens(t *testing.T) {
	m := Metadata{MaxCompletionTokens: 4096}
	assert.Equal(t, 4096, m.EffectiveOutputTokens(8192))
	assert.Equal(t, 2048, m.EffectiveOutputTokens(2048))

	unknown := Metadata{}
	assert.Equal(t, 8192, unknown.EffectiveOutputTokens(8192))
}

func TestSupportsParameter(t *testing.T) {
	m := Metadata{SupportedParameters: []string{"tools", "tool_choice"}}
	assert.True(t, m.SupportsParameter("tools"))
	assert.False(t, m.SupportsParameter("include_reasoning"))
}
