package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hexsettle/backend/internal/ai"
	"github.com/hexsettle/backend/internal/game"
)

// Outbound message types.
const (
	TypeGameStateUpdate = "gameStateUpdate"
	TypeActionResult    = "actionResult"
	TypeTurnStarted     = "turnStarted"
	TypeTurnEnded       = "turnEnded"
	TypeGamePaused      = "gamePaused"
	TypeGameResumed     = "gameResumed"
	TypeGameEnded       = "gameEnded"
	TypeGameSync        = "gameSync"
	TypeError           = "error"
	TypePong            = "pong"
)

// Inbound control types. Inbound action types are the game.ActionType names.
const (
	TypeRequestGameSync = "requestGameSync"
	TypeEnableAutoMode  = "enableAutoMode"
	TypeDisableAutoMode = "disableAutoMode"
	TypePing            = "ping"
)

// WSMessage is the envelope for both directions.
type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type outbound struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Every inbound message carries these. A playerId that does not match the
// authenticated seat is refused.
type inboundHeader struct {
	GameID       string `json:"gameId"`
	PlayerID     string `json:"playerId,omitempty"`
	ActionID     string `json:"actionId,omitempty"`
	ExpectedTurn *int   `json:"expectedTurn,omitempty"`
}

type vertexData struct {
	VertexID *int `json:"vertexId"`
}

type edgeData struct {
	EdgeID *int `json:"edgeId"`
}

type hexData struct {
	HexID *int `json:"hexId"`
}

type playCardData struct {
	Card      game.DevCardKind `json:"card"`
	Resource  game.Resource    `json:"resource,omitempty"`
	Resources game.Resources   `json:"resources,omitempty"`
}

type stealData struct {
	VictimID string `json:"victimId"`
}

type discardData struct {
	Resources game.Resources `json:"resources"`
}

type bankTradeData struct {
	Give    game.Resource `json:"give"`
	Receive game.Resource `json:"receive"`
	Amount  int           `json:"amount,omitempty"`
}

type tradeOfferData struct {
	TargetID string         `json:"targetId,omitempty"`
	Offer    game.Resources `json:"offer"`
	Request  game.Resources `json:"request"`
}

type tradeRefData struct {
	TradeID string `json:"tradeId"`
}

type autoModeData struct {
	Personality ai.Personality `json:"personality,omitempty"`
	Difficulty  ai.Difficulty  `json:"difficulty,omitempty"`
}

// decodeAction turns an inbound action message into an engine action. Dice,
// steal draws, new trade ids and timestamps are never taken from the client.
func decodeAction(msgType string, raw json.RawMessage) (game.Action, error) {
	t := game.ActionType(msgType)
	a := game.Action{Type: t}
	var err error
	switch t {
	case game.ActionRoll, game.ActionBuyCard, game.ActionEndTurn:
	case game.ActionBuildRoad:
		var d edgeData
		err = unmarshal(raw, &d)
		a.Payload.EdgeID = d.EdgeID
	case game.ActionBuildSettlement, game.ActionBuildCity:
		var d vertexData
		err = unmarshal(raw, &d)
		a.Payload.VertexID = d.VertexID
	case game.ActionMoveRobber:
		var d hexData
		err = unmarshal(raw, &d)
		a.Payload.HexID = d.HexID
	case game.ActionPlayCard:
		var d playCardData
		err = unmarshal(raw, &d)
		a.Payload.Card, a.Payload.Resource, a.Payload.Resources = d.Card, d.Resource, d.Resources
	case game.ActionStealResource:
		var d stealData
		err = unmarshal(raw, &d)
		a.Payload.VictimID = d.VictimID
	case game.ActionDiscard:
		var d discardData
		err = unmarshal(raw, &d)
		a.Payload.Resources = d.Resources
	case game.ActionBankTrade, game.ActionPortTrade:
		var d bankTradeData
		err = unmarshal(raw, &d)
		a.Payload.Give, a.Payload.Receive, a.Payload.Amount = d.Give, d.Receive, d.Amount
	case game.ActionCreateTradeOffer:
		var d tradeOfferData
		err = unmarshal(raw, &d)
		a.Payload.TargetID, a.Payload.Offer, a.Payload.Request = d.TargetID, d.Offer, d.Request
	case game.ActionAcceptTrade, game.ActionRejectTrade, game.ActionCancelTrade:
		var d tradeRefData
		err = unmarshal(raw, &d)
		a.Payload.TradeID = d.TradeID
	default:
		return a, fmt.Errorf("unknown message type %q", msgType)
	}
	if err != nil {
		return a, fmt.Errorf("invalid %s data: %w", msgType, err)
	}
	return a, nil
}

func unmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

type stateUpdateData struct {
	GameID    string          `json:"gameId"`
	Sequence  uint64          `json:"sequence"`
	Timestamp string          `json:"timestamp"`
	State     *game.GameState `json:"state"`
	Events    []game.Event    `json:"events"`
	ActionID  string          `json:"actionId,omitempty"`
	PlayerID  string          `json:"playerId,omitempty"`
}

type actionResultData struct {
	GameID    string `json:"gameId"`
	Sequence  uint64 `json:"sequence"`
	Timestamp string `json:"timestamp"`
	ActionID  string `json:"actionId"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
}

type turnData struct {
	GameID    string `json:"gameId"`
	Sequence  uint64 `json:"sequence"`
	Timestamp string `json:"timestamp"`
	PlayerID  string `json:"playerId"`
	Turn      int    `json:"turn"`
	Automated bool   `json:"automated"`
}

type gameEndedData struct {
	GameID    string         `json:"gameId"`
	Sequence  uint64         `json:"sequence"`
	Timestamp string         `json:"timestamp"`
	WinnerID  string         `json:"winnerId"`
	Scores    map[string]int `json:"scores"`
}

type pauseData struct {
	GameID    string `json:"gameId"`
	Sequence  uint64 `json:"sequence"`
	Timestamp string `json:"timestamp"`
	Reason    string `json:"reason"`
	PlayerID  string `json:"playerId,omitempty"`
}

type syncData struct {
	GameID     string          `json:"gameId"`
	Sequence   uint64          `json:"sequence"`
	Timestamp  string          `json:"timestamp"`
	State      *game.GameState `json:"state"`
	PlayerID   string          `json:"playerId,omitempty"`
	Spectator  bool            `json:"spectator,omitempty"`
	Connected  []string        `json:"connected"`
	Spectators int             `json:"spectators"`
	Automated  []string        `json:"automated"`
	Paused     bool            `json:"paused"`
}

type errorData struct {
	GameID    string `json:"gameId,omitempty"`
	Timestamp string `json:"timestamp"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	ActionID  string `json:"actionId,omitempty"`
}

// errorCode maps engine errors onto stable codes clients can switch on.
func errorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, game.ErrGameNotFound):
		return "gameNotFound"
	case errors.Is(err, game.ErrGameEnded):
		return "gameEnded"
	case errors.Is(err, game.ErrNotYourTurn):
		return "notYourTurn"
	case errors.Is(err, game.ErrWrongPhase):
		return "wrongPhase"
	case errors.Is(err, game.ErrIllegalAction):
		return "illegalAction"
	case errors.Is(err, game.ErrInvalidAction):
		return "invalidAction"
	case errors.Is(err, game.ErrStaleAction):
		return "staleAction"
	case errors.Is(err, game.ErrDuplicateAction):
		return "duplicateAction"
	}
	return "internal"
}
