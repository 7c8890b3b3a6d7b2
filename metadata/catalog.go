package metadata

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tandemrev/tandemrev/logging"
)

// Fetcher is the boundary to the external model-serving API.
type Fetcher interface {
	// ListModels returns capability metadata for every available model.
	ListModels(ctx context.Context) ([]Metadata, error)
}

// CatalogOptions configures a Catalog.
type CatalogOptions struct {
	// TTL bounds snapshot freshness. Default one hour.
	TTL time.Duration
	// Grace extends how long a stale snapshot may serve after a failed
	// re-fetch. Default equals TTL.
	Grace time.Duration
	// FetchTimeout bounds one metadata fetch. The fetch runs detached from
	// caller contexts so one reviewer's cancellation never kills a fetch
	// other callers are awaiting.
	FetchTimeout time.Duration
	Logger       logging.Logger
}

// Catalog caches model capability metadata with TTL eviction. It is the only
// state shared across concurrent review requests and is safe for concurrent
// use; duplicate concurrent fetches are collapsed into one network call.
type Catalog struct {
	fetcher Fetcher
	ttl     time.Duration
	grace   time.Duration
	timeout time.Duration
	logger  logging.Logger
	now     func() time.Time

	group singleflight.Group

	// snapshot is replaced wholesale on refresh, never mutated.
	snapshot atomic.Pointer[snapshot]
}

type snapshot struct {
	models    map[string]Metadata
	fetchedAt time.Time
}

// NewCatalog creates a Catalog over the given fetcher.
func NewCatalog(fetcher Fetcher, optFns ...func(o *CatalogOptions)) *Catalog {
	opts := CatalogOptions{
		TTL:          time.Hour,
		FetchTimeout: 30 * time.Second,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Grace == 0 {
		opts.Grace = opts.TTL
	}

	return &Catalog{
		fetcher: fetcher,
		ttl:     opts.TTL,
		grace:   opts.Grace,
		timeout: opts.FetchTimeout,
		logger:  opts.Logger,
		now:     time.Now,
	}
}

// Resolve returns the capability metadata for modelID, fetching from the
// serving API on miss or TTL expiry. On fetch failure a stale snapshot still
// within the grace window is served instead. A model absent from a fresh
// snapshot resolves to ErrUnavailable.
func (c *Catalog) Resolve(ctx context.Context, modelID string) (Metadata, error) {
	snap, err := c.current(ctx)
	if err != nil {
		return Metadata{}, err
	}
	meta, ok := snap.models[modelID]
	if !ok {
		return Metadata{}, fmt.Errorf("%w: model %q not listed by serving API", ErrUnavailable, modelID)
	}
	return meta, nil
}

// current returns a usable snapshot, refreshing through singleflight when the
// cached one has expired. The caller's context bounds only the wait: the
// shared fetch itself runs under the catalog's own timeout so that unrelated
// callers can still receive its result after this caller gives up.
func (c *Catalog) current(ctx context.Context) (*snapshot, error) {
	if snap := c.snapshot.Load(); snap != nil && c.now().Sub(snap.fetchedAt) < c.ttl {
		return snap, nil
	}

	ch := c.group.DoChan("models", func() (any, error) {
		// Re-check freshness: a concurrent flight may have refreshed already.
		if snap := c.snapshot.Load(); snap != nil && c.now().Sub(snap.fetchedAt) < c.ttl {
			return snap, nil
		}
		return c.refresh()
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*snapshot), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Catalog) refresh() (*snapshot, error) {
	fetchCtx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	models, err := c.fetcher.ListModels(fetchCtx)
	if err != nil {
		if stale := c.snapshot.Load(); stale != nil && c.now().Sub(stale.fetchedAt) < c.ttl+c.grace {
			c.logger.Warn("metadata fetch failed, serving stale snapshot",
				"error", err.Error(), "age", c.now().Sub(stale.fetchedAt).String())
			return stale, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	byID := make(map[string]Metadata, len(models))
	fetchedAt := c.now()
	for _, m := range models {
		m.FetchedAt = fetchedAt
		byID[m.ID] = m
	}
	snap := &snapshot{models: byID, fetchedAt: fetchedAt}
	c.snapshot.Store(snap)
	c.logger.Debug("model metadata refreshed", "models", len(byID))
	return snap, nil
}
