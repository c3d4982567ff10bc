package mesh

// Role fixes which side of a pair initiates and which side yields on glare.
// The member that joined later (and saw the other in its room-joined
// snapshot) is impolite; the member that learned of the other through a
// user-joined notice is polite.
type Role int

const (
	RolePolite Role = iota
	RoleImpolite
)

func (r Role) String() string {
	if r == RoleImpolite {
		return "impolite"
	}
	return "polite"
}

// Initiator reports whether this side creates the data channel and the
// first offer.
func (r Role) Initiator() bool {
	return r == RoleImpolite
}

// NegotiationState replaces the loose makingOffer/ignoreOffer flag pair.
// Ignoring only exists while a local offer is outstanding, and both
// transient states are left before control returns to the actor loop.
type NegotiationState int

const (
	NegotiationStable NegotiationState = iota
	NegotiationMakingOffer
	NegotiationAwaitingAnswer
	NegotiationIgnoring
	NegotiationAnswering
)

func (s NegotiationState) String() string {
	switch s {
	case NegotiationStable:
		return "stable"
	case NegotiationMakingOffer:
		return "making-offer"
	case NegotiationAwaitingAnswer:
		return "awaiting-answer"
	case NegotiationIgnoring:
		return "ignoring"
	case NegotiationAnswering:
		return "answering"
	default:
		return "unknown"
	}
}

// MakingOffer is true between starting a local offer and adopting it.
func (s NegotiationState) MakingOffer() bool {
	return s == NegotiationMakingOffer
}

// IgnoringOffer is true after an impolite side discarded a colliding offer
// and until its own offer is answered or a new offer is honored.
func (s NegotiationState) IgnoringOffer() bool {
	return s == NegotiationIgnoring
}

// offerAction is what to do with an inbound offer.
type offerAction int

const (
	offerAccept offerAction = iota
	offerRollbackAndAccept
	offerIgnore
)

func (a offerAction) String() string {
	switch a {
	case offerAccept:
		return "accept"
	case offerRollbackAndAccept:
		return "rollback-and-accept"
	default:
		return "ignore"
	}
}

// decideOffer applies the perfect-negotiation collision rule.
func decideOffer(role Role, state NegotiationState, signaling SignalingState) offerAction {
	collision := state.MakingOffer() || signaling != SignalingStable
	switch {
	case !collision:
		return offerAccept
	case role == RoleImpolite:
		return offerIgnore
	case signaling == SignalingHaveLocalOffer:
		return offerRollbackAndAccept
	default:
		return offerAccept
	}
}

// ChannelState tracks the data channel of a peer link. A closed channel is
// never reopened; a fresh link is created instead.
type ChannelState int

const (
	ChannelNone ChannelState = iota
	ChannelConnecting
	ChannelOpen
	ChannelClosed
)

func (s ChannelState) String() string {
	switch s {
	case ChannelNone:
		return "none"
	case ChannelConnecting:
		return "connecting"
	case ChannelOpen:
		return "open"
	case ChannelClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func (s ChannelState) canMoveTo(next ChannelState) bool {
	switch s {
	case ChannelNone:
		return next == ChannelConnecting || next == ChannelClosed
	case ChannelConnecting:
		return next == ChannelOpen || next == ChannelClosed
	case ChannelOpen:
		return next == ChannelClosed
	default:
		return false
	}
}
