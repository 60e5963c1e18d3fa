package game

import (
	"encoding/json"
	"fmt"
	"time"
)

// recordSchema is bumped whenever StateRecord changes incompatibly.
const recordSchema = 1

// StateRecord is the persisted form of a GameState. Board adjacency is not
// stored; it is rebuilt from the fixed topology on decode.
type StateRecord struct {
	Schema              int                  `json:"schema"`
	ID                  string               `json:"id"`
	Phase               string               `json:"phase"`
	Turn                int                  `json:"turn"`
	CurrentPlayer       string               `json:"currentPlayer"`
	TurnOrder           []string             `json:"turnOrder"`
	Players             []PlayerRecord       `json:"players"`
	Board               BoardRecord          `json:"board"`
	Dice                *DiceRecord          `json:"dice,omitempty"`
	Bank                Resources            `json:"bank"`
	Deck                []string             `json:"deck"`
	DiscardPile         []string             `json:"discardPile"`
	Trades              []TradeRecord        `json:"trades"`
	PendingRoadBuilding *PendingRoadBuilding `json:"pendingRoadBuilding,omitempty"`
	RobberVictims       []string             `json:"robberVictims,omitempty"`
	RobberReturnPhase   string               `json:"robberReturnPhase,omitempty"`
	SetupSettlement     int                  `json:"setupSettlement"`
	SetupRoadPlaced     bool                 `json:"setupRoadPlaced"`
	DevCardPlayed       bool                 `json:"devCardPlayed"`
	LongestRoadHolder   string               `json:"longestRoadHolder,omitempty"`
	LargestArmyHolder   string               `json:"largestArmyHolder,omitempty"`
	Winner              string               `json:"winner,omitempty"`
	VictoryPointTarget  int                  `json:"victoryPointTarget"`
	DiscardLimit        int                  `json:"discardLimit"`
	TradeTTLMillis      int64                `json:"tradeTtlMillis"`
	Version             uint64               `json:"version"`
	RecentActionIDs     []string             `json:"recentActionIds"`
	CreatedAt           string               `json:"createdAt"`
	UpdatedAt           string               `json:"updatedAt"`
}

type PlayerRecord struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Color             string          `json:"color"`
	Resources         Resources       `json:"resources"`
	DevCards          []DevCardRecord `json:"devCards"`
	KnightsPlayed     int             `json:"knightsPlayed"`
	RoadsLeft         int             `json:"roadsLeft"`
	SettlementsLeft   int             `json:"settlementsLeft"`
	CitiesLeft        int             `json:"citiesLeft"`
	LongestRoadLength int             `json:"longestRoadLength"`
	VictoryPoints     int             `json:"victoryPoints"`
	PendingDiscard    int             `json:"pendingDiscard"`
}

type DevCardRecord struct {
	Kind       string `json:"kind"`
	BoughtTurn int    `json:"boughtTurn"`
}

type BoardRecord struct {
	Hexes     []HexRecord      `json:"hexes"`
	Ports     []PortRecord     `json:"ports"`
	Buildings []BuildingRecord `json:"buildings"`
	Roads     []RoadRecord     `json:"roads"`
	RobberHex int              `json:"robberHex"`
}

type HexRecord struct {
	Terrain string `json:"terrain"`
	Number  int    `json:"number"`
}

type PortRecord struct {
	Vertex int    `json:"vertex"`
	Kind   string `json:"kind"`
}

type BuildingRecord struct {
	Vertex int    `json:"vertex"`
	Owner  string `json:"owner"`
	Kind   string `json:"kind"`
}

type RoadRecord struct {
	Edge  int    `json:"edge"`
	Owner string `json:"owner"`
}

type DiceRecord struct {
	Die1     int    `json:"die1"`
	Die2     int    `json:"die2"`
	RolledAt string `json:"rolledAt"`
}

type TradeRecord struct {
	ID          string    `json:"id"`
	InitiatorID string    `json:"initiatorId"`
	TargetID    string    `json:"targetId,omitempty"`
	Offer       Resources `json:"offer"`
	Request     Resources `json:"request"`
	RejectedBy  []string  `json:"rejectedBy,omitempty"`
	CreatedAt   string    `json:"createdAt"`
	ExpiresAt   string    `json:"expiresAt"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// ToRecord converts s to its persisted form.
func ToRecord(s *GameState) StateRecord {
	r := StateRecord{
		Schema:              recordSchema,
		ID:                  s.ID,
		Phase:               string(s.Phase),
		Turn:                s.Turn,
		CurrentPlayer:       s.CurrentPlayer,
		TurnOrder:           s.TurnOrder,
		Bank:                s.Bank,
		PendingRoadBuilding: s.PendingRoadBuilding,
		RobberVictims:       s.RobberVictims,
		RobberReturnPhase:   string(s.RobberReturnPhase),
		SetupSettlement:     s.SetupSettlement,
		SetupRoadPlaced:     s.SetupRoadPlaced,
		DevCardPlayed:       s.DevCardPlayedThisTurn,
		LongestRoadHolder:   s.LongestRoadHolder,
		LargestArmyHolder:   s.LargestArmyHolder,
		Winner:              s.Winner,
		VictoryPointTarget:  s.Settings.VictoryPoints,
		DiscardLimit:        s.Settings.DiscardLimit,
		TradeTTLMillis:      s.Settings.TradeTTL.Milliseconds(),
		Version:             s.Version,
		RecentActionIDs:     s.RecentActionIDs,
		CreatedAt:           formatTime(s.CreatedAt),
		UpdatedAt:           formatTime(s.UpdatedAt),
		Deck:                kindsToStrings(s.DevelopmentDeck),
		DiscardPile:         kindsToStrings(s.DiscardPile),
		Trades:              make([]TradeRecord, 0, len(s.ActiveTrades)),
	}
	for _, p := range s.Players {
		pr := PlayerRecord{
			ID: p.ID, Name: p.Name, Color: p.Color, Resources: p.Resources,
			KnightsPlayed: p.KnightsPlayed, RoadsLeft: p.RoadsLeft,
			SettlementsLeft: p.SettlementsLeft, CitiesLeft: p.CitiesLeft,
			LongestRoadLength: p.LongestRoadLength, VictoryPoints: p.VictoryPoints,
			PendingDiscard: p.PendingDiscard,
			DevCards:       make([]DevCardRecord, 0, len(p.DevCards)),
		}
		for _, c := range p.DevCards {
			pr.DevCards = append(pr.DevCards, DevCardRecord{Kind: string(c.Kind), BoughtTurn: c.BoughtTurn})
		}
		r.Players = append(r.Players, pr)
	}
	if s.Dice != nil {
		r.Dice = &DiceRecord{Die1: s.Dice.Die1, Die2: s.Dice.Die2, RolledAt: formatTime(s.Dice.RolledAt)}
	}
	for _, t := range s.ActiveTrades {
		r.Trades = append(r.Trades, TradeRecord{
			ID: t.ID, InitiatorID: t.InitiatorID, TargetID: t.TargetID,
			Offer: t.Offer, Request: t.Request, RejectedBy: t.RejectedBy,
			CreatedAt: formatTime(t.CreatedAt), ExpiresAt: formatTime(t.ExpiresAt),
		})
	}

	b := s.Board
	r.Board.RobberHex = b.RobberHex
	for _, h := range b.Hexes {
		r.Board.Hexes = append(r.Board.Hexes, HexRecord{Terrain: string(h.Terrain), Number: h.Number})
	}
	for _, v := range b.Vertices {
		if v.Port != PortNone {
			r.Board.Ports = append(r.Board.Ports, PortRecord{Vertex: v.ID, Kind: string(v.Port)})
		}
		if v.Building != BuildingNone {
			r.Board.Buildings = append(r.Board.Buildings, BuildingRecord{Vertex: v.ID, Owner: v.Owner, Kind: string(v.Building)})
		}
	}
	for _, e := range b.Edges {
		if e.Owner != "" {
			r.Board.Roads = append(r.Board.Roads, RoadRecord{Edge: e.ID, Owner: e.Owner})
		}
	}
	return r
}

// FromRecord rebuilds a GameState, rejecting records that do not fit the board.
func FromRecord(r StateRecord) (*GameState, error) {
	if r.Schema != recordSchema {
		return nil, fmt.Errorf("unsupported state record schema %d", r.Schema)
	}
	s := &GameState{
		ID:                    r.ID,
		Phase:                 Phase(r.Phase),
		Turn:                  r.Turn,
		CurrentPlayer:         r.CurrentPlayer,
		TurnOrder:             r.TurnOrder,
		Bank:                  r.Bank,
		DevelopmentDeck:       stringsToKinds(r.Deck),
		DiscardPile:           stringsToKinds(r.DiscardPile),
		ActiveTrades:          make([]TradeOffer, 0, len(r.Trades)),
		PendingRoadBuilding:   r.PendingRoadBuilding,
		RobberVictims:         r.RobberVictims,
		RobberReturnPhase:     Phase(r.RobberReturnPhase),
		SetupSettlement:       r.SetupSettlement,
		SetupRoadPlaced:       r.SetupRoadPlaced,
		DevCardPlayedThisTurn: r.DevCardPlayed,
		LongestRoadHolder:     r.LongestRoadHolder,
		LargestArmyHolder:     r.LargestArmyHolder,
		Winner:                r.Winner,
		Settings: Settings{
			VictoryPoints: r.VictoryPointTarget,
			DiscardLimit:  r.DiscardLimit,
			TradeTTL:      time.Duration(r.TradeTTLMillis) * time.Millisecond,
		},
		Version:         r.Version,
		RecentActionIDs: r.RecentActionIDs,
	}
	s.DevelopmentDeckSize = len(s.DevelopmentDeck)

	var err error
	if s.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return nil, fmt.Errorf("createdAt: %w", err)
	}
	if s.UpdatedAt, err = parseTime(r.UpdatedAt); err != nil {
		return nil, fmt.Errorf("updatedAt: %w", err)
	}

	for _, pr := range r.Players {
		p := Player{
			ID: pr.ID, Name: pr.Name, Color: pr.Color, Resources: pr.Resources,
			KnightsPlayed: pr.KnightsPlayed, RoadsLeft: pr.RoadsLeft,
			SettlementsLeft: pr.SettlementsLeft, CitiesLeft: pr.CitiesLeft,
			LongestRoadLength: pr.LongestRoadLength, VictoryPoints: pr.VictoryPoints,
			PendingDiscard: pr.PendingDiscard,
			DevCards:       make([]DevCard, 0, len(pr.DevCards)),
		}
		for _, c := range pr.DevCards {
			p.DevCards = append(p.DevCards, DevCard{Kind: DevCardKind(c.Kind), BoughtTurn: c.BoughtTurn})
		}
		s.Players = append(s.Players, p)
	}
	if r.Dice != nil {
		at, err := parseTime(r.Dice.RolledAt)
		if err != nil {
			return nil, fmt.Errorf("dice: %w", err)
		}
		s.Dice = &Dice{Die1: r.Dice.Die1, Die2: r.Dice.Die2, Sum: r.Dice.Die1 + r.Dice.Die2, RolledAt: at}
	}
	for _, tr := range r.Trades {
		t := TradeOffer{
			ID: tr.ID, InitiatorID: tr.InitiatorID, TargetID: tr.TargetID,
			Offer: tr.Offer, Request: tr.Request, RejectedBy: tr.RejectedBy,
		}
		if t.CreatedAt, err = parseTime(tr.CreatedAt); err != nil {
			return nil, fmt.Errorf("trade %s: %w", tr.ID, err)
		}
		if t.ExpiresAt, err = parseTime(tr.ExpiresAt); err != nil {
			return nil, fmt.Errorf("trade %s: %w", tr.ID, err)
		}
		s.ActiveTrades = append(s.ActiveTrades, t)
	}

	b := newTopology()
	if len(r.Board.Hexes) != len(b.Hexes) {
		return nil, fmt.Errorf("board has %d hexes, want %d", len(r.Board.Hexes), len(b.Hexes))
	}
	if r.Board.RobberHex < 0 || r.Board.RobberHex >= len(b.Hexes) {
		return nil, fmt.Errorf("robber hex %d out of range", r.Board.RobberHex)
	}
	b.RobberHex = r.Board.RobberHex
	for i, h := range r.Board.Hexes {
		b.Hexes[i].Terrain = Terrain(h.Terrain)
		b.Hexes[i].Number = h.Number
	}
	for _, p := range r.Board.Ports {
		if p.Vertex < 0 || p.Vertex >= len(b.Vertices) {
			return nil, fmt.Errorf("port vertex %d out of range", p.Vertex)
		}
		b.Vertices[p.Vertex].Port = PortKind(p.Kind)
	}
	for _, bl := range r.Board.Buildings {
		if bl.Vertex < 0 || bl.Vertex >= len(b.Vertices) {
			return nil, fmt.Errorf("building vertex %d out of range", bl.Vertex)
		}
		b.Vertices[bl.Vertex].Owner = bl.Owner
		b.Vertices[bl.Vertex].Building = BuildingKind(bl.Kind)
	}
	for _, rd := range r.Board.Roads {
		if rd.Edge < 0 || rd.Edge >= len(b.Edges) {
			return nil, fmt.Errorf("road edge %d out of range", rd.Edge)
		}
		b.Edges[rd.Edge].Owner = rd.Owner
	}
	s.Board = b
	return s, nil
}

// EncodeState serializes s for storage.
func EncodeState(s *GameState) ([]byte, error) {
	return json.Marshal(ToRecord(s))
}

// DecodeState parses bytes written by EncodeState.
func DecodeState(data []byte) (*GameState, error) {
	var r StateRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode state record: %w", err)
	}
	return FromRecord(r)
}

func kindsToStrings(kinds []DevCardKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

func stringsToKinds(ss []string) []DevCardKind {
	out := make([]DevCardKind, len(ss))
	for i, s := range ss {
		out[i] = DevCardKind(s)
	}
	return out
}
