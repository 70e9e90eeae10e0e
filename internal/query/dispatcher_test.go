package query

import (
	"context"
	"testing"
	"time"

	"fabricmcp/internal/api"
	"fabricmcp/internal/mcperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	records    map[api.Collection][]api.Record
	capturedAt time.Time
}

func (f *fakeProvider) Snapshot(c api.Collection) ([]api.Record, time.Time, bool) {
	recs, ok := f.records[c]
	return recs, f.capturedAt, ok
}

type fakeFetcher struct {
	records []api.Record
	calls   int
	err     error
}

func (f *fakeFetcher) FetchPage(_ context.Context, _ api.Collection, _ string, offset, limit int) ([]api.Record, bool, error) {
	f.calls++
	if f.err != nil {
		return nil, false, f.err
	}
	if offset >= len(f.records) {
		return nil, false, nil
	}
	end := offset + limit
	if end > len(f.records) {
		end = len(f.records)
	}
	return f.records[offset:end], end < len(f.records), nil
}

func siteRecords(n int) []api.Record {
	out := make([]api.Record, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, api.Record{"name": "site", "rank": float64(i)})
	}
	return out
}

func newTestDispatcher(provider SnapshotProvider, fetcher LiveFetcher) *Dispatcher {
	return NewDispatcher(provider, fetcher, DefaultLimits(), 0)
}

func TestQueryServesFromCache(t *testing.T) {
	ts := time.Now().Add(-time.Minute)
	provider := &fakeProvider{
		records:    map[api.Collection][]api.Record{api.CollectionSites: siteRecords(10)},
		capturedAt: ts,
	}
	fetcher := &fakeFetcher{}
	d := newTestDispatcher(provider, fetcher)

	res, err := d.Query(context.Background(), api.CollectionSites, api.QueryRequest{}, "tok")
	require.NoError(t, err)
	assert.Equal(t, api.SourceCache, res.Source)
	assert.Equal(t, ts, res.CapturedAt)
	assert.Len(t, res.Records, 10)
	assert.Zero(t, fetcher.calls, "cached reads must not touch the upstream")
}

func TestQueryLiveFallbackWhenCacheEmpty(t *testing.T) {
	provider := &fakeProvider{records: map[api.Collection][]api.Record{}}
	fetcher := &fakeFetcher{records: siteRecords(7)}
	d := newTestDispatcher(provider, fetcher)

	res, err := d.Query(context.Background(), api.CollectionHosts, api.QueryRequest{}, "tok")
	require.NoError(t, err)
	assert.Equal(t, api.SourceLive, res.Source)
	assert.Len(t, res.Records, 7)
	assert.Positive(t, fetcher.calls)
}

func TestQueryLimitCeilings(t *testing.T) {
	provider := &fakeProvider{
		records: map[api.Collection][]api.Record{api.CollectionSites: siteRecords(5)},
	}
	d := newTestDispatcher(provider, nil)

	// Unsorted over the low ceiling fails.
	_, err := d.Query(context.Background(), api.CollectionSites, api.QueryRequest{Limit: 10000}, "tok")
	require.Error(t, err)
	assert.Equal(t, mcperr.CodeLimitExceeded, mcperr.CodeOf(err))

	// The same limit with a sort spec is under the sorted ceiling.
	_, err = d.Query(context.Background(), api.CollectionSites, api.QueryRequest{
		Limit: 4000,
		Sort:  &api.SortSpec{Field: "rank", Direction: "asc"},
	}, "tok")
	assert.NoError(t, err)

	// But unsorted 4000 still fails.
	_, err = d.Query(context.Background(), api.CollectionSites, api.QueryRequest{Limit: 4000}, "tok")
	require.Error(t, err)
	assert.Equal(t, mcperr.CodeLimitExceeded, mcperr.CodeOf(err))
}

func TestQueryValidation(t *testing.T) {
	provider := &fakeProvider{records: map[api.Collection][]api.Record{}}
	d := newTestDispatcher(provider, &fakeFetcher{})

	_, err := d.Query(context.Background(), api.Collection("bogus"), api.QueryRequest{}, "tok")
	assert.Equal(t, mcperr.CodeClientError, mcperr.CodeOf(err))

	_, err = d.Query(context.Background(), api.CollectionSites, api.QueryRequest{Offset: -1}, "tok")
	assert.Equal(t, mcperr.CodeClientError, mcperr.CodeOf(err))

	_, err = d.Query(context.Background(), api.CollectionSites, api.QueryRequest{Limit: -2}, "tok")
	assert.Equal(t, mcperr.CodeClientError, mcperr.CodeOf(err))

	_, err = d.Query(context.Background(), api.CollectionSites, api.QueryRequest{
		Sort: &api.SortSpec{Field: "rank", Direction: "sideways"},
	}, "tok")
	assert.Equal(t, mcperr.CodeClientError, mcperr.CodeOf(err))
}

func TestQueryFilterSortPaginatePipeline(t *testing.T) {
	recs := []api.Record{
		{"name": "d", "cores": float64(16), "site": "UCSD"},
		{"name": "a", "cores": float64(64), "site": "UCSD"},
		{"name": "b", "cores": float64(32), "site": "RENC"},
		{"name": "c", "cores": float64(128), "site": "UCSD"},
	}
	provider := &fakeProvider{
		records:    map[api.Collection][]api.Record{api.CollectionHosts: recs},
		capturedAt: time.Now(),
	}
	d := newTestDispatcher(provider, nil)

	res, err := d.Query(context.Background(), api.CollectionHosts, api.QueryRequest{
		Filters: map[string]any{"site": "UCSD"},
		Sort:    &api.SortSpec{Field: "cores", Direction: "desc"},
		Limit:   2,
	}, "tok")
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "c", res.Records[0]["name"])
	assert.Equal(t, "a", res.Records[1]["name"])
	assert.True(t, res.Truncated)
	assert.Equal(t, 2, res.Limit)
}

func TestQueryTruncationNote(t *testing.T) {
	provider := &fakeProvider{
		records:    map[api.Collection][]api.Record{api.CollectionSites: siteRecords(30)},
		capturedAt: time.Now(),
	}
	d := newTestDispatcher(provider, nil)

	// Exact fit: page equals limit but nothing remains, not truncated.
	res, err := d.Query(context.Background(), api.CollectionSites, api.QueryRequest{Limit: 30}, "tok")
	require.NoError(t, err)
	assert.False(t, res.Truncated)

	res, err = d.Query(context.Background(), api.CollectionSites, api.QueryRequest{Limit: 10}, "tok")
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Equal(t, 10, res.Limit)

	// Offset near the end leaves a short page, not truncated.
	res, err = d.Query(context.Background(), api.CollectionSites, api.QueryRequest{Limit: 10, Offset: 25}, "tok")
	require.NoError(t, err)
	assert.Len(t, res.Records, 5)
	assert.False(t, res.Truncated)
}

func TestQueryLiveFetchPropagatesUpstreamError(t *testing.T) {
	provider := &fakeProvider{records: map[api.Collection][]api.Record{}}
	fetcher := &fakeFetcher{err: mcperr.UpstreamTimeout("no response within 30s")}
	d := newTestDispatcher(provider, fetcher)

	_, err := d.Query(context.Background(), api.CollectionLinks, api.QueryRequest{}, "tok")
	require.Error(t, err)
	assert.Equal(t, mcperr.CodeUpstreamTimeout, mcperr.CodeOf(err))
}
