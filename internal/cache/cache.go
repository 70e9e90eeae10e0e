package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"fabricmcp/internal/api"
	"fabricmcp/pkg/logging"
)

const (
	// minInterval keeps a misconfigured deployment from hammering the
	// upstream resource endpoints.
	minInterval = 30 * time.Second

	minMaxFetch     = 100
	defaultPageSize = 500
)

// Snapshot is the point-in-time copy of one collection's records. It is
// replaced atomically on refresh and never mutated afterwards, so readers
// holding a reference see a consistent view regardless of concurrent swaps.
type Snapshot struct {
	Records    []api.Record
	CapturedAt time.Time
}

// Fetcher is the slice of the upstream client the cache needs.
type Fetcher interface {
	FetchPage(ctx context.Context, collection api.Collection, bearer string, offset, limit int) ([]api.Record, bool, error)
}

// ResourceCache maintains one snapshot per inventory collection, refreshed
// by a background loop on a fixed interval. Reads are lock-free and never
// trigger network I/O; a failed refresh keeps the previous snapshot and is
// observable only through the snapshot's age.
type ResourceCache struct {
	fetcher  Fetcher
	interval time.Duration
	maxFetch int
	pageSize int

	snaps map[api.Collection]*atomic.Pointer[Snapshot]

	// Latest bearer seen on an authenticated request. Refreshes use it when
	// available and fall back to the public resource view otherwise.
	tokenMu       sync.Mutex
	lastGoodToken string

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a cache over the given fetcher. Intervals below 30s and fetch
// caps below 100 are raised to those floors.
func New(fetcher Fetcher, interval time.Duration, maxFetch int) *ResourceCache {
	if interval < minInterval {
		interval = minInterval
	}
	if maxFetch < minMaxFetch {
		maxFetch = minMaxFetch
	}
	snaps := make(map[api.Collection]*atomic.Pointer[Snapshot], len(api.Collections()))
	for _, c := range api.Collections() {
		snaps[c] = &atomic.Pointer[Snapshot]{}
	}
	return &ResourceCache{
		fetcher:  fetcher,
		interval: interval,
		maxFetch: maxFetch,
		pageSize: defaultPageSize,
		snaps:    snaps,
	}
}

// Start performs the initial blocking fetch and launches the periodic
// refresh loop. A failed initial fetch is logged, not fatal: reads fall
// back to live fetches until the first successful refresh.
func (rc *ResourceCache) Start(ctx context.Context) {
	rc.runMu.Lock()
	defer rc.runMu.Unlock()
	if rc.done != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	rc.cancel = cancel
	rc.done = make(chan struct{})

	rc.RefreshOnce(loopCtx)
	go rc.refreshLoop(loopCtx)
}

// Stop cancels the refresh loop and waits for it to exit.
func (rc *ResourceCache) Stop() {
	rc.runMu.Lock()
	cancel, done := rc.cancel, rc.done
	rc.cancel, rc.done = nil, nil
	rc.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// NoteToken records the latest bearer seen on an authenticated request, so
// subsequent refreshes can use the authenticated resource view.
func (rc *ResourceCache) NoteToken(bearer string) {
	if bearer == "" {
		return
	}
	rc.tokenMu.Lock()
	rc.lastGoodToken = bearer
	rc.tokenMu.Unlock()
}

func (rc *ResourceCache) refreshToken() string {
	rc.tokenMu.Lock()
	defer rc.tokenMu.Unlock()
	return rc.lastGoodToken
}

// Snapshot returns the current snapshot of a collection. ok is false until
// the first successful refresh of that collection. Readers take a reference
// and are unaffected by a concurrent swap.
func (rc *ResourceCache) Snapshot(collection api.Collection) ([]api.Record, time.Time, bool) {
	ptr, known := rc.snaps[collection]
	if !known {
		return nil, time.Time{}, false
	}
	snap := ptr.Load()
	if snap == nil {
		return nil, time.Time{}, false
	}
	return snap.Records, snap.CapturedAt, true
}

// HasData reports whether any collection has a populated snapshot.
func (rc *ResourceCache) HasData() bool {
	for _, ptr := range rc.snaps {
		if snap := ptr.Load(); snap != nil && len(snap.Records) > 0 {
			return true
		}
	}
	return false
}

func (rc *ResourceCache) refreshLoop(ctx context.Context) {
	defer close(rc.done)

	ticker := time.NewTicker(rc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rc.RefreshOnce(ctx)
		}
	}
}

// RefreshOnce fetches every collection and swaps the snapshots that
// succeeded. Per-collection failures are absorbed: the previous snapshot
// stays in place and the next tick retries.
func (rc *ResourceCache) RefreshOnce(ctx context.Context) {
	bearer := rc.refreshToken()

	for _, collection := range api.Collections() {
		records, err := rc.fetchAll(ctx, collection, bearer)
		if err != nil {
			logging.Warn("Cache", "refresh of %s failed, serving previous snapshot: %v", collection, err)
			continue
		}
		rc.snaps[collection].Store(&Snapshot{Records: records, CapturedAt: time.Now()})
		logging.Debug("Cache", "refreshed %s: %d records", collection, len(records))
	}
}

// fetchAll pages through one collection, stopping at the fetch cap or a
// short page (end of collection).
func (rc *ResourceCache) fetchAll(ctx context.Context, collection api.Collection, bearer string) ([]api.Record, error) {
	var out []api.Record
	offset := 0
	for {
		limit := rc.pageSize
		if remaining := rc.maxFetch - len(out); remaining < limit {
			limit = remaining
		}
		if limit <= 0 {
			break
		}

		page, hasMore, err := rc.fetcher.FetchPage(ctx, collection, bearer, offset, limit)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if !hasMore || len(page) == 0 {
			break
		}
		offset += len(page)
	}
	return out, nil
}
