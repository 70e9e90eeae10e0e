package sliceop

import (
	"sync"

	"fabricmcp/internal/mcperr"
	"fabricmcp/pkg/logging"
)

// Op is a write operation validated against a slice's last-known state
// before anything is sent upstream.
type Op string

const (
	OpModify       Op = "modify"
	OpAcceptModify Op = "accept-modify"
	OpRenew        Op = "renew"
	OpDelete       Op = "delete"
)

// Guard validates op against the slice's last-known state. An incompatible
// pair fails locally as client_error; the upstream is never called for it.
func Guard(op Op, state State) error {
	if state.Terminal() {
		return mcperr.ClientError("cannot %s a slice in state %s", op, state)
	}
	switch op {
	case OpModify:
		if state != StateStableOK && state != StateModifyOK && state != StateModifyError {
			return mcperr.ClientError("cannot modify a slice in state %s; slice must be stable", state)
		}
	case OpAcceptModify:
		if state != StateModifyOK && state != StateModifyError {
			return mcperr.ClientError("no pending modification to accept in state %s", state)
		}
	case OpRenew, OpDelete:
		if state == StateClosing {
			return mcperr.ClientError("cannot %s a slice in state %s; deletion already in progress", op, state)
		}
	default:
		return mcperr.ClientError("unknown slice operation %q", op)
	}
	return nil
}

// Machine is the local registry of slice states. It is a cache of upstream
// truth: entries are recorded only from upstream responses, and an entry is
// dropped whenever a failed write makes it suspect, forcing a re-query.
type Machine struct {
	mu     sync.RWMutex
	states map[string]State
}

// NewMachine creates an empty state registry.
func NewMachine() *Machine {
	return &Machine{states: make(map[string]State)}
}

// Lookup returns the last-known state of a slice.
func (m *Machine) Lookup(sliceID string) (State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[sliceID]
	return s, ok
}

// Record stores a state reported by an upstream response. Unknown state
// strings are ignored; a transition the table does not allow is recorded
// anyway (upstream is the authority) but logged, since it means the local
// copy had drifted.
func (m *Machine) Record(sliceID, reported string) {
	state, ok := ParseState(reported)
	if !ok {
		logging.Warn("SliceState", "upstream reported unknown state %q for slice %s", reported, sliceID)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, known := m.states[sliceID]; known && prev != state && !CanTransition(prev, state) {
		logging.Debug("SliceState", "slice %s jumped %s -> %s; local copy was stale", sliceID, prev, state)
	}
	m.states[sliceID] = state
}

// MarkStale drops the local entry for a slice, forcing the next operation
// to reconcile with upstream before validating.
func (m *Machine) MarkStale(sliceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, sliceID)
}
