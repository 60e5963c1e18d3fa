package game

import "time"

// ActionType names a player intent.
type ActionType string

const (
	ActionRoll             ActionType = "roll"
	ActionBuildRoad        ActionType = "buildRoad"
	ActionBuildSettlement  ActionType = "buildSettlement"
	ActionBuildCity        ActionType = "buildCity"
	ActionBuyCard          ActionType = "buyCard"
	ActionPlayCard         ActionType = "playCard"
	ActionMoveRobber       ActionType = "moveRobber"
	ActionStealResource    ActionType = "stealResource"
	ActionDiscard          ActionType = "discard"
	ActionBankTrade        ActionType = "bankTrade"
	ActionPortTrade        ActionType = "portTrade"
	ActionCreateTradeOffer ActionType = "createTradeOffer"
	ActionAcceptTrade      ActionType = "acceptTrade"
	ActionRejectTrade      ActionType = "rejectTrade"
	ActionCancelTrade      ActionType = "cancelTrade"
	ActionEndTurn          ActionType = "endTurn"
)

// KnownActionType reports whether t is handled by Apply.
func KnownActionType(t ActionType) bool {
	switch t {
	case ActionRoll, ActionBuildRoad, ActionBuildSettlement, ActionBuildCity,
		ActionBuyCard, ActionPlayCard, ActionMoveRobber, ActionStealResource,
		ActionDiscard, ActionBankTrade, ActionPortTrade, ActionCreateTradeOffer,
		ActionAcceptTrade, ActionRejectTrade, ActionCancelTrade, ActionEndTurn:
		return true
	}
	return false
}

// Action is a player intent submitted to the engine.
//
// Anything random (dice faces, the stolen card index, new trade ids) is
// carried on the action so that applying it is deterministic. The engine
// fills these in when the submitter leaves them empty.
type Action struct {
	ID           string     `json:"id"`
	Type         ActionType `json:"type"`
	PlayerID     string     `json:"playerId"`
	ExpectedTurn *int       `json:"expectedTurn,omitempty"`
	Payload      Payload    `json:"payload"`
	Timestamp    time.Time  `json:"timestamp"`
}

// Payload carries type-specific action arguments. Only the fields relevant
// to the action type are read.
type Payload struct {
	Die1 int `json:"die1,omitempty"`
	Die2 int `json:"die2,omitempty"`

	VertexID *int `json:"vertexId,omitempty"`
	EdgeID   *int `json:"edgeId,omitempty"`
	HexID    *int `json:"hexId,omitempty"`

	Card DevCardKind `json:"card,omitempty"`
	// Resource is the monopoly target.
	Resource Resource `json:"resource,omitempty"`
	// Resources is the year-of-plenty pick or the discard bundle.
	Resources Resources `json:"resources,omitempty"`

	Give    Resource `json:"give,omitempty"`
	Receive Resource `json:"receive,omitempty"`
	Amount  int      `json:"amount,omitempty"`

	TradeID  string    `json:"tradeId,omitempty"`
	TargetID string    `json:"targetId,omitempty"`
	Offer    Resources `json:"offer,omitempty"`
	Request  Resources `json:"request,omitempty"`

	VictimID   string `json:"victimId,omitempty"`
	StealIndex *int   `json:"stealIndex,omitempty"`
}

// Int returns a pointer to n for payload fields.
func Int(n int) *int { return &n }
