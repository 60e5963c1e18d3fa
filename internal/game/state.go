package game

import (
	"time"
)

// Phase is the game's turn-structure state.
type Phase string

const (
	PhaseSetup1     Phase = "setup1"
	PhaseSetup2     Phase = "setup2"
	PhaseRoll       Phase = "roll"
	PhaseActions    Phase = "actions"
	PhaseDiscard    Phase = "discard"
	PhaseMoveRobber Phase = "moveRobber"
	PhaseSteal      Phase = "steal"
	PhaseEnded      Phase = "ended"
)

// IsSetup reports whether p is one of the initial placement rounds.
func (p Phase) IsSetup() bool {
	return p == PhaseSetup1 || p == PhaseSetup2
}

// DevCardKind identifies a development card.
type DevCardKind string

const (
	CardKnight       DevCardKind = "knight"
	CardVictoryPoint DevCardKind = "victoryPoint"
	CardRoadBuilding DevCardKind = "roadBuilding"
	CardYearOfPlenty DevCardKind = "yearOfPlenty"
	CardMonopoly     DevCardKind = "monopoly"
)

// DevCard is a development card held by a player. BoughtTurn blocks playing
// a card on the turn it was bought.
type DevCard struct {
	Kind       DevCardKind `json:"kind"`
	BoughtTurn int         `json:"boughtTurn"`
}

// Player is a seat in the game.
type Player struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Color             string    `json:"color"`
	Resources         Resources `json:"resources"`
	DevCards          []DevCard `json:"devCards"`
	KnightsPlayed     int       `json:"knightsPlayed"`
	RoadsLeft         int       `json:"roadsLeft"`
	SettlementsLeft   int       `json:"settlementsLeft"`
	CitiesLeft        int       `json:"citiesLeft"`
	LongestRoadLength int       `json:"longestRoadLength"`
	VictoryPoints     int       `json:"victoryPoints"`
	PendingDiscard    int       `json:"pendingDiscard"`
}

// Dice is the most recent roll of the current turn.
type Dice struct {
	Die1     int       `json:"die1"`
	Die2     int       `json:"die2"`
	Sum      int       `json:"sum"`
	RolledAt time.Time `json:"rolledAt"`
}

// TradeOffer is a pending player-to-player trade.
type TradeOffer struct {
	ID          string    `json:"id"`
	InitiatorID string    `json:"initiatorId"`
	TargetID    string    `json:"targetId,omitempty"`
	Offer       Resources `json:"offer"`
	Request     Resources `json:"request"`
	RejectedBy  []string  `json:"rejectedBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// IsOpen reports whether any player may respond.
func (t TradeOffer) IsOpen() bool { return t.TargetID == "" }

// Expired reports whether the offer is at or past its expiry.
func (t TradeOffer) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t TradeOffer) rejected(playerID string) bool {
	for _, id := range t.RejectedBy {
		if id == playerID {
			return true
		}
	}
	return false
}

// PendingRoadBuilding is the placement sub-state entered by a road building card.
type PendingRoadBuilding struct {
	PlayerID       string `json:"playerId"`
	RoadsRemaining int    `json:"roadsRemaining"`
}

// Settings are fixed at game creation.
type Settings struct {
	VictoryPoints int           `json:"victoryPoints"`
	DiscardLimit  int           `json:"discardLimit"`
	TradeTTL      time.Duration `json:"tradeTtl"`
}

// DefaultSettings returns the standard rule set.
func DefaultSettings() Settings {
	return Settings{
		VictoryPoints: 10,
		DiscardLimit:  7,
		TradeTTL:      60 * time.Second,
	}
}

const recentActionWindow = 64

// GameState is the authoritative state of one game. A committed state is
// never mutated; every accepted action produces a new value via Apply.
type GameState struct {
	ID                    string               `json:"id"`
	Phase                 Phase                `json:"phase"`
	Turn                  int                  `json:"turn"`
	CurrentPlayer         string               `json:"currentPlayer"`
	TurnOrder             []string             `json:"turnOrder"`
	Players               []Player             `json:"players"`
	Board                 *Board               `json:"board"`
	Dice                  *Dice                `json:"dice,omitempty"`
	Bank                  Resources            `json:"bank"`
	DevelopmentDeck       []DevCardKind        `json:"-"`
	DevelopmentDeckSize   int                  `json:"developmentDeckSize"`
	DiscardPile           []DevCardKind        `json:"discardPile"`
	ActiveTrades          []TradeOffer         `json:"activeTrades"`
	PendingRoadBuilding   *PendingRoadBuilding `json:"pendingRoadBuilding,omitempty"`
	RobberVictims         []string             `json:"robberVictims,omitempty"`
	RobberReturnPhase     Phase                `json:"robberReturnPhase,omitempty"`
	SetupSettlement       int                  `json:"setupSettlement"`
	SetupRoadPlaced       bool                 `json:"setupRoadPlaced"`
	DevCardPlayedThisTurn bool                 `json:"devCardPlayedThisTurn"`
	LongestRoadHolder     string               `json:"longestRoadHolder,omitempty"`
	LargestArmyHolder     string               `json:"largestArmyHolder,omitempty"`
	Winner                string               `json:"winner,omitempty"`
	Settings              Settings             `json:"settings"`
	Version               uint64               `json:"version"`
	RecentActionIDs       []string             `json:"-"`
	CreatedAt             time.Time            `json:"createdAt"`
	UpdatedAt             time.Time            `json:"updatedAt"`
}

// Player returns the player with id, or nil.
func (s *GameState) Player(id string) *Player {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i]
		}
	}
	return nil
}

// Seat returns the turn-order index of id, or -1.
func (s *GameState) Seat(id string) int {
	for i, pid := range s.TurnOrder {
		if pid == id {
			return i
		}
	}
	return -1
}

// Trade returns the active trade with id, or nil.
func (s *GameState) Trade(id string) *TradeOffer {
	for i := range s.ActiveTrades {
		if s.ActiveTrades[i].ID == id {
			return &s.ActiveTrades[i]
		}
	}
	return nil
}

func (s *GameState) removeTrade(id string) {
	out := s.ActiveTrades[:0]
	for _, t := range s.ActiveTrades {
		if t.ID != id {
			out = append(out, t)
		}
	}
	s.ActiveTrades = out
}

// SeenAction reports whether an action id was among the recently applied ones.
func (s *GameState) SeenAction(id string) bool {
	for _, seen := range s.RecentActionIDs {
		if seen == id {
			return true
		}
	}
	return false
}

func (s *GameState) rememberAction(id string) {
	if id == "" {
		return
	}
	s.RecentActionIDs = append(s.RecentActionIDs, id)
	if n := len(s.RecentActionIDs); n > recentActionWindow {
		s.RecentActionIDs = append([]string(nil), s.RecentActionIDs[n-recentActionWindow:]...)
	}
}

// Clone returns a deep copy. Board adjacency is immutable and shared.
func (s *GameState) Clone() *GameState {
	c := *s
	c.TurnOrder = append([]string(nil), s.TurnOrder...)
	c.Players = make([]Player, len(s.Players))
	for i, p := range s.Players {
		p.DevCards = append([]DevCard(nil), p.DevCards...)
		c.Players[i] = p
	}
	if s.Board != nil {
		c.Board = s.Board.Clone()
	}
	if s.Dice != nil {
		d := *s.Dice
		c.Dice = &d
	}
	c.DevelopmentDeck = append([]DevCardKind(nil), s.DevelopmentDeck...)
	c.DiscardPile = append([]DevCardKind(nil), s.DiscardPile...)
	c.ActiveTrades = make([]TradeOffer, len(s.ActiveTrades))
	for i, t := range s.ActiveTrades {
		t.RejectedBy = append([]string(nil), t.RejectedBy...)
		c.ActiveTrades[i] = t
	}
	if s.PendingRoadBuilding != nil {
		p := *s.PendingRoadBuilding
		c.PendingRoadBuilding = &p
	}
	c.RobberVictims = append([]string(nil), s.RobberVictims...)
	c.RecentActionIDs = append([]string(nil), s.RecentActionIDs...)
	return &c
}

// TotalResources sums every resource held by players and the bank.
func (s *GameState) TotalResources() Resources {
	total := s.Bank
	for _, p := range s.Players {
		total = total.Plus(p.Resources)
	}
	return total
}
