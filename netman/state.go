package netman

// State is the connectivity lifecycle state. There is a single authoritative
// instance per Manager, mutated only by the event handler and the retry
// tick.
type State uint8

const (
	// StateUninitialized: no association has ever been attempted.
	StateUninitialized State = iota
	// StateAwaitingAssociation: an association request has been issued and
	// its outcome has not arrived yet.
	StateAwaitingAssociation
	// StateAssociated: associated with an address acquired.
	StateAssociated
	// StateDisconnected: the link dropped or the address was lost.
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAwaitingAssociation:
		return "awaiting-association"
	case StateAssociated:
		return "associated"
	case StateDisconnected:
		return "disconnected"
	default:
		return "invalid"
	}
}
