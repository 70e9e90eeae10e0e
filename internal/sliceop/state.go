package sliceop

// State is a slice's lifecycle tag as reported by the orchestrator. The
// proxy never invents states; it only records what upstream responses say.
type State string

const (
	StateNascent        State = "Nascent"
	StateConfiguring    State = "Configuring"
	StateStableOK       State = "StableOK"
	StateStableError    State = "StableError"
	StateModifying      State = "Modifying"
	StateModifyOK       State = "ModifyOK"
	StateModifyError    State = "ModifyError"
	StateAllocatedOK    State = "AllocatedOK"
	StateAllocatedError State = "AllocatedError"
	StateClosing        State = "Closing"
	StateDead           State = "Dead"
)

// ParseState converts an upstream state string. ok is false for states this
// proxy does not know, which are treated as unknown rather than rejected.
func ParseState(s string) (State, bool) {
	switch State(s) {
	case StateNascent, StateConfiguring, StateStableOK, StateStableError,
		StateModifying, StateModifyOK, StateModifyError,
		StateAllocatedOK, StateAllocatedError, StateClosing, StateDead:
		return State(s), true
	}
	return "", false
}

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateDead
}

// forwardEdges is the provisioning progression. Closing and Dead are handled
// separately: any non-terminal state may begin deletion.
var forwardEdges = map[State][]State{
	StateNascent:     {StateConfiguring},
	StateConfiguring: {StateStableOK, StateStableError},
	StateStableOK:    {StateModifying},
	StateModifying:   {StateModifyOK, StateModifyError},
	StateModifyOK:    {StateModifying},
	StateModifyError: {StateModifying},
	StateClosing:     {StateDead},
}

// CanTransition reports whether from → to is a legal edge. Every
// non-terminal state may enter Closing; only Closing reaches Dead.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateClosing {
		return from != StateClosing
	}
	for _, next := range forwardEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}
