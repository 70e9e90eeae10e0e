package upstream

import (
	"context"

	"fabricmcp/internal/api"
)

// SliceQuery narrows a slice listing. States filters server-side by
// lifecycle state; Name matches the slice name; AsSelf restricts the listing
// to slices owned by the caller.
type SliceQuery struct {
	States []string
	Name   string
	AsSelf bool
	Limit  int
	Offset int
}

// CreateSliceRequest carries everything the orchestrator needs to provision
// a new slice. GraphModel is the serialized topology (GRAPHML or JSON); its
// format is opaque to the proxy and forwarded verbatim.
type CreateSliceRequest struct {
	Name           string
	GraphModel     string
	SSHKeys        []string
	LifetimeDays   int
	LeaseStartTime string
	LeaseEndTime   string
}

// POARequest is a "perform operational action" request against one sliver.
type POARequest struct {
	SliverID  string
	Operation string
	Vars      map[string]any
}

// Client is the abstract upstream orchestrator surface the proxy depends on.
// Every method carries the caller's bearer credential and a context whose
// deadline bounds the call; failures are returned as mcperr errors.
type Client interface {
	// FetchPage fetches one page of an inventory collection. hasMore is
	// false on the final page. An empty bearer selects the public
	// (unauthenticated) resource view.
	FetchPage(ctx context.Context, collection api.Collection, bearer string, offset, limit int) (records []api.Record, hasMore bool, err error)

	ListSlices(ctx context.Context, bearer string, q SliceQuery) (records []api.Record, hasMore bool, err error)
	GetSlice(ctx context.Context, bearer, sliceID string, asSelf bool) (api.Record, error)
	ListSlivers(ctx context.Context, bearer, sliceID string, asSelf bool) ([]api.Record, error)

	CreateSlice(ctx context.Context, bearer string, req CreateSliceRequest) ([]api.Record, error)
	ModifySlice(ctx context.Context, bearer, sliceID, graphModel string) ([]api.Record, error)
	AcceptModify(ctx context.Context, bearer, sliceID string) (api.Record, error)
	RenewSlice(ctx context.Context, bearer, sliceID, leaseEndTime string) error
	DeleteSlice(ctx context.Context, bearer, sliceID string) error

	POA(ctx context.Context, bearer string, req POARequest) ([]api.Record, error)

	GetProjects(ctx context.Context, bearer, projectName, projectID, userUUID string) ([]api.Record, error)
	ListProjectUsers(ctx context.Context, bearer, projectUUID string) ([]api.Record, error)
	GetUserKeys(ctx context.Context, bearer, userUUID, keyType string) ([]api.Record, error)
}
