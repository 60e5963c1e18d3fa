package game

// EventType names something that happened while applying an action.
type EventType string

const (
	EventDiceRolled              EventType = "diceRolled"
	EventResourcesDistributed    EventType = "resourcesDistributed"
	EventDiscardRequired         EventType = "discardRequired"
	EventResourcesDiscarded      EventType = "resourcesDiscarded"
	EventRobberMoved             EventType = "robberMoved"
	EventResourceStolen          EventType = "resourceStolen"
	EventRoadBuilt               EventType = "roadBuilt"
	EventSettlementBuilt         EventType = "settlementBuilt"
	EventCityBuilt               EventType = "cityBuilt"
	EventDevelopmentCardPurchase EventType = "developmentCardPurchased"
	EventDevelopmentCardPlayed   EventType = "developmentCardPlayed"
	EventPlacementModeStarted    EventType = "placementModeStarted"
	EventPlacementModeEnded      EventType = "placementModeEnded"
	EventMonopoly                EventType = "monopolyCollected"
	EventYearOfPlenty            EventType = "yearOfPlentyCollected"
	EventBankTrade               EventType = "bankTradeCompleted"
	EventPortTrade               EventType = "portTradeCompleted"
	EventTradeOffered            EventType = "tradeOffered"
	EventTradeAccepted           EventType = "tradeAccepted"
	EventTradeRejected           EventType = "tradeRejected"
	EventTradeCancelled          EventType = "tradeCancelled"
	EventTradeExpired            EventType = "tradeExpired"
	EventLongestRoadChanged      EventType = "longestRoadChanged"
	EventLargestArmyChanged      EventType = "largestArmyChanged"
	EventPhaseChanged            EventType = "phaseChanged"
	EventTurnEnded               EventType = "turnEnded"
	EventTurnStarted             EventType = "turnStarted"
	EventGameEnded               EventType = "gameEnded"
)

// Event is an outcome of an applied action, broadcast to clients and recorded
// in the action history.
type Event struct {
	Type     EventType      `json:"type"`
	PlayerID string         `json:"playerId,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// HasEvent reports whether events contains one of type t.
func HasEvent(events []Event, t EventType) bool {
	for _, e := range events {
		if e.Type == t {
			return true
		}
	}
	return false
}
