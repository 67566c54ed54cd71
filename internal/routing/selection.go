package routing

// Selection is the outcome of picking an agent for a new bridge.
//
// It must contain only what the bridge needs to dial the agent.
// Reason is intended for internal logs/metrics.

type Selection struct {
	Agent  Agent  `json:"agent"`
	Reason Reason `json:"reason"`
}

type Reason string

const (
	ReasonWeighted Reason = "weighted"
	ReasonPinned   Reason = "pinned"
)
