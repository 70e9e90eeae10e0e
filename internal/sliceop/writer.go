package sliceop

import (
	"context"
	"sync"

	"fabricmcp/internal/api"
	"fabricmcp/internal/mcperr"
	"fabricmcp/internal/token"
	"fabricmcp/internal/upstream"
	"fabricmcp/pkg/logging"
)

// Orchestrator is the slice of the upstream client the write path needs.
type Orchestrator interface {
	GetSlice(ctx context.Context, bearer, sliceID string, asSelf bool) (api.Record, error)
	CreateSlice(ctx context.Context, bearer string, req upstream.CreateSliceRequest) ([]api.Record, error)
	ModifySlice(ctx context.Context, bearer, sliceID, graphModel string) ([]api.Record, error)
	AcceptModify(ctx context.Context, bearer, sliceID string) (api.Record, error)
	RenewSlice(ctx context.Context, bearer, sliceID, leaseEndTime string) error
	DeleteSlice(ctx context.Context, bearer, sliceID string) error
	POA(ctx context.Context, bearer string, req upstream.POARequest) ([]api.Record, error)
}

// Writer dispatches slice write operations: credential check, state-machine
// validation, upstream call, local state update — in that order. Operations
// on one slice ID are serialized; distinct slices proceed concurrently.
type Writer struct {
	machine *Machine
	client  Orchestrator
	tokens  *token.Manager

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// NewWriter creates a write dispatcher.
func NewWriter(machine *Machine, client Orchestrator, tokens *token.Manager) *Writer {
	return &Writer{
		machine: machine,
		client:  client,
		tokens:  tokens,
		locks:   make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing operations on one slice. Locks are
// retained for the process lifetime; the population is bounded by the
// number of distinct slices touched.
func (w *Writer) lockFor(sliceID string) *sync.Mutex {
	w.lockMu.Lock()
	defer w.lockMu.Unlock()
	mu, ok := w.locks[sliceID]
	if !ok {
		mu = &sync.Mutex{}
		w.locks[sliceID] = mu
	}
	return mu
}

// credential resolves the bearer to use for one call. A caller-supplied
// bearer is recorded with the lifecycle manager and used directly; without
// one the manager must produce a valid credential, refreshing if needed.
func (w *Writer) credential(ctx context.Context, bearer string) (string, error) {
	if bearer != "" {
		w.tokens.Observe(bearer)
		return bearer, nil
	}
	cred, err := w.tokens.EnsureValid(ctx, true)
	if err != nil {
		return "", err
	}
	return cred.Token.Value(), nil
}

// resolveState returns the slice's state, reconciling with upstream when
// the local copy is missing or was invalidated by an earlier failure.
func (w *Writer) resolveState(ctx context.Context, bearer, sliceID string) (State, error) {
	if state, ok := w.machine.Lookup(sliceID); ok {
		return state, nil
	}
	record, err := w.client.GetSlice(ctx, bearer, sliceID, true)
	if err != nil {
		return "", err
	}
	reported, _ := record["state"].(string)
	state, ok := ParseState(reported)
	if !ok {
		return "", mcperr.New(mcperr.CodeUpstreamServer, "upstream reported unrecognized state for slice %s", sliceID)
	}
	w.machine.Record(sliceID, reported)
	return state, nil
}

// Create provisions a new slice. The accepted slice starts in Nascent.
func (w *Writer) Create(ctx context.Context, bearer string, req upstream.CreateSliceRequest) ([]api.Record, error) {
	if req.Name == "" {
		return nil, mcperr.ClientError("slice name is required")
	}
	if req.GraphModel == "" {
		return nil, mcperr.ClientError("graph_model is required")
	}
	if len(req.SSHKeys) == 0 {
		return nil, mcperr.ClientError("at least one ssh key is required")
	}

	cred, err := w.credential(ctx, bearer)
	if err != nil {
		return nil, err
	}
	slivers, err := w.client.CreateSlice(ctx, cred, req)
	if err != nil {
		return nil, err
	}
	for _, sliver := range slivers {
		if id, ok := sliver["slice_id"].(string); ok && id != "" {
			w.machine.Record(id, string(StateNascent))
			break
		}
	}
	logging.Info("SliceWriter", "created slice %q (%d slivers)", req.Name, len(slivers))
	return slivers, nil
}

// Modify submits a new topology for an existing slice.
func (w *Writer) Modify(ctx context.Context, bearer, sliceID, graphModel string) ([]api.Record, error) {
	if sliceID == "" {
		return nil, mcperr.ClientError("slice_id is required")
	}
	if graphModel == "" {
		return nil, mcperr.ClientError("graph_model is required")
	}
	mu := w.lockFor(sliceID)
	mu.Lock()
	defer mu.Unlock()

	cred, err := w.credential(ctx, bearer)
	if err != nil {
		return nil, err
	}
	state, err := w.resolveState(ctx, cred, sliceID)
	if err != nil {
		return nil, err
	}
	if err := Guard(OpModify, state); err != nil {
		return nil, err
	}

	slivers, err := w.client.ModifySlice(ctx, cred, sliceID, graphModel)
	if err != nil {
		w.machine.MarkStale(sliceID)
		return nil, err
	}
	w.machine.Record(sliceID, string(StateModifying))
	return slivers, nil
}

// AcceptModify accepts a pending modification.
func (w *Writer) AcceptModify(ctx context.Context, bearer, sliceID string) (api.Record, error) {
	if sliceID == "" {
		return nil, mcperr.ClientError("slice_id is required")
	}
	mu := w.lockFor(sliceID)
	mu.Lock()
	defer mu.Unlock()

	cred, err := w.credential(ctx, bearer)
	if err != nil {
		return nil, err
	}
	state, err := w.resolveState(ctx, cred, sliceID)
	if err != nil {
		return nil, err
	}
	if err := Guard(OpAcceptModify, state); err != nil {
		return nil, err
	}

	record, err := w.client.AcceptModify(ctx, cred, sliceID)
	if err != nil {
		w.machine.MarkStale(sliceID)
		return nil, err
	}
	if reported, ok := record["state"].(string); ok {
		w.machine.Record(sliceID, reported)
	}
	return record, nil
}

// Renew extends a slice's lease.
func (w *Writer) Renew(ctx context.Context, bearer, sliceID, leaseEndTime string) error {
	if sliceID == "" {
		return mcperr.ClientError("slice_id is required")
	}
	if leaseEndTime == "" {
		return mcperr.ClientError("lease_end_time is required")
	}
	mu := w.lockFor(sliceID)
	mu.Lock()
	defer mu.Unlock()

	cred, err := w.credential(ctx, bearer)
	if err != nil {
		return err
	}
	state, err := w.resolveState(ctx, cred, sliceID)
	if err != nil {
		return err
	}
	if err := Guard(OpRenew, state); err != nil {
		return err
	}

	if err := w.client.RenewSlice(ctx, cred, sliceID, leaseEndTime); err != nil {
		w.machine.MarkStale(sliceID)
		return err
	}
	return nil
}

// Delete begins slice deletion. On acceptance the slice enters Closing.
func (w *Writer) Delete(ctx context.Context, bearer, sliceID string) error {
	if sliceID == "" {
		return mcperr.ClientError("slice_id is required")
	}
	mu := w.lockFor(sliceID)
	mu.Lock()
	defer mu.Unlock()

	cred, err := w.credential(ctx, bearer)
	if err != nil {
		return err
	}
	state, err := w.resolveState(ctx, cred, sliceID)
	if err != nil {
		return err
	}
	if err := Guard(OpDelete, state); err != nil {
		return err
	}

	if err := w.client.DeleteSlice(ctx, cred, sliceID); err != nil {
		w.machine.MarkStale(sliceID)
		return err
	}
	w.machine.Record(sliceID, string(StateClosing))
	return nil
}

// POA forwards a per-sliver operational action (addkey, removekey, reboot).
// POAs target slivers, not slice lifecycle state, so no state validation
// applies beyond the credential gate.
func (w *Writer) POA(ctx context.Context, bearer string, req upstream.POARequest) ([]api.Record, error) {
	if req.SliverID == "" {
		return nil, mcperr.ClientError("sliver_id is required")
	}
	if req.Operation == "" {
		return nil, mcperr.ClientError("operation is required")
	}
	cred, err := w.credential(ctx, bearer)
	if err != nil {
		return nil, err
	}
	return w.client.POA(ctx, cred, req)
}
