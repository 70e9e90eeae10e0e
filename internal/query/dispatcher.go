package query

import (
	"context"
	"time"

	"fabricmcp/internal/api"
	"fabricmcp/internal/filter"
	"fabricmcp/internal/mcperr"
	"fabricmcp/pkg/logging"
)

// Limits holds the pagination ceilings enforced before any work is done.
// Sorted queries get a higher ceiling because sorting is assumed to precede
// client-side truncation; unsorted queries are kept small.
type Limits struct {
	DefaultLimit int
	MaxUnsorted  int
	MaxSorted    int
}

// DefaultLimits matches the standard deployment profile.
func DefaultLimits() Limits {
	return Limits{DefaultLimit: 200, MaxUnsorted: 500, MaxSorted: 5000}
}

// SnapshotProvider serves the current point-in-time copy of a collection.
// ok is false when no snapshot has been captured yet.
type SnapshotProvider interface {
	Snapshot(collection api.Collection) (records []api.Record, capturedAt time.Time, ok bool)
}

// LiveFetcher fetches one page of a collection directly from the upstream,
// used only when the cache has nothing to serve. hasMore is false on the
// last page.
type LiveFetcher interface {
	FetchPage(ctx context.Context, collection api.Collection, bearer string, offset, limit int) (records []api.Record, hasMore bool, err error)
}

// Dispatcher orchestrates the read path: snapshot (or bounded live fetch),
// filter, sort, paginate, ceiling enforcement. Filtering and sorting are
// pure computations over an already-resident snapshot; the only suspension
// point is the live-fetch fallback.
type Dispatcher struct {
	provider SnapshotProvider
	fetcher  LiveFetcher
	limits   Limits

	// liveFetchCap bounds how many records a live fallback may pull.
	liveFetchCap int
	pageSize     int
}

// NewDispatcher creates a read-path dispatcher. fetcher may be nil, in which
// case queries against an unpopulated cache fail as upstream errors would.
func NewDispatcher(provider SnapshotProvider, fetcher LiveFetcher, limits Limits, liveFetchCap int) *Dispatcher {
	if limits.DefaultLimit <= 0 {
		limits = DefaultLimits()
	}
	if liveFetchCap <= 0 {
		liveFetchCap = limits.MaxSorted
	}
	return &Dispatcher{
		provider:     provider,
		fetcher:      fetcher,
		limits:       limits,
		liveFetchCap: liveFetchCap,
		pageSize:     500,
	}
}

// Query runs one list query against a collection. bearer is the caller's
// credential, used only if a live fetch is needed; the cached path performs
// no network I/O.
func (d *Dispatcher) Query(ctx context.Context, collection api.Collection, req api.QueryRequest, bearer string) (*api.QueryResult, error) {
	if !collection.Valid() {
		return nil, mcperr.ClientError("unknown collection %q", collection)
	}
	if req.Offset < 0 {
		return nil, mcperr.ClientError("offset must be non-negative, got %d", req.Offset)
	}
	if req.Limit < 0 {
		return nil, mcperr.ClientError("limit must be non-negative, got %d", req.Limit)
	}

	limit := req.Limit
	if limit == 0 {
		limit = d.limits.DefaultLimit
	}

	ceiling := d.limits.MaxUnsorted
	if req.Sort != nil && req.Sort.Field != "" {
		ceiling = d.limits.MaxSorted
	}
	if limit > ceiling {
		return nil, mcperr.LimitExceeded("limit %d exceeds ceiling %d; lower the request or add a sort", limit, ceiling)
	}
	if req.Sort != nil && req.Sort.Direction != "" && req.Sort.Direction != "asc" && req.Sort.Direction != "desc" {
		return nil, mcperr.ClientError("sort direction must be \"asc\" or \"desc\", got %q", req.Sort.Direction)
	}

	records, capturedAt, ok := d.provider.Snapshot(collection)
	source := api.SourceCache
	if !ok || len(records) == 0 {
		live, err := d.fetchLive(ctx, collection, bearer)
		if err != nil {
			return nil, err
		}
		records = live
		capturedAt = time.Now()
		source = api.SourceLive
	}

	matched := ApplyFilter(records, filter.Expression(req.Filters))
	ordered := ApplySort(matched, req.Sort)
	page := Paginate(ordered, limit, req.Offset)

	result := &api.QueryResult{
		Records:    page,
		Source:     source,
		CapturedAt: capturedAt,
	}
	if len(page) == limit && req.Offset+limit < len(ordered) {
		result.Truncated = true
		result.Limit = limit
	}
	return result, nil
}

// fetchLive pulls the collection directly from the upstream in pages,
// stopping at the fetch cap or the end of the collection. Used only while
// the cache is still empty (before the first successful refresh).
func (d *Dispatcher) fetchLive(ctx context.Context, collection api.Collection, bearer string) ([]api.Record, error) {
	if d.fetcher == nil {
		return nil, mcperr.New(mcperr.CodeUpstreamServer, "no data available for %s and live fetch is disabled", collection)
	}
	logging.Debug("Query", "cache empty for %s, falling back to live fetch", collection)

	var out []api.Record
	offset := 0
	for {
		page, hasMore, err := d.fetcher.FetchPage(ctx, collection, bearer, offset, d.pageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if !hasMore || len(page) == 0 || len(out) >= d.liveFetchCap {
			break
		}
		offset += len(page)
	}
	if len(out) > d.liveFetchCap {
		out = out[:d.liveFetchCap]
	}
	return out, nil
}
