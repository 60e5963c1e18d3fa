package game

import (
	"fmt"
	"math/rand"
	"time"
)

const (
	MinPlayers = 2
	MaxPlayers = 4

	bankPerResource    = 19
	roadsPerPlayer     = 15
	settlementsPerSeat = 5
	citiesPerSeat      = 4
)

var deckComposition = map[DevCardKind]int{
	CardKnight:       14,
	CardVictoryPoint: 5,
	CardRoadBuilding: 2,
	CardYearOfPlenty: 2,
	CardMonopoly:     2,
}

var deckOrder = []DevCardKind{CardKnight, CardVictoryPoint, CardRoadBuilding, CardYearOfPlenty, CardMonopoly}

var seatColors = []string{"red", "blue", "white", "orange"}

// Seat describes a player joining a new game.
type Seat struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// NewGame builds the initial state: a fresh board and deck from seed and
// every seat at the start of the first setup round. Seats play in the given
// order.
func NewGame(id string, seats []Seat, settings Settings, seed int64, now time.Time) (*GameState, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: game id is required", ErrInvalidAction)
	}
	if len(seats) < MinPlayers || len(seats) > MaxPlayers {
		return nil, fmt.Errorf("%w: need %d-%d players, got %d", ErrInvalidAction, MinPlayers, MaxPlayers, len(seats))
	}
	defaults := DefaultSettings()
	if settings.VictoryPoints <= 0 {
		settings.VictoryPoints = defaults.VictoryPoints
	}
	if settings.DiscardLimit <= 0 {
		settings.DiscardLimit = defaults.DiscardLimit
	}
	if settings.TradeTTL <= 0 {
		settings.TradeTTL = defaults.TradeTTL
	}

	s := &GameState{
		ID:              id,
		Phase:           PhaseSetup1,
		Turn:            1,
		Board:           NewBoard(seed),
		Bank:            Resources{bankPerResource, bankPerResource, bankPerResource, bankPerResource, bankPerResource},
		ActiveTrades:    []TradeOffer{},
		SetupSettlement: -1,
		Settings:        settings,
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
	}

	seen := map[string]bool{}
	for i, seat := range seats {
		if seat.ID == "" {
			return nil, fmt.Errorf("%w: seat %d has no player id", ErrInvalidAction, i)
		}
		if seen[seat.ID] {
			return nil, fmt.Errorf("%w: duplicate player id %q", ErrInvalidAction, seat.ID)
		}
		seen[seat.ID] = true
		color := seat.Color
		if color == "" {
			color = seatColors[i]
		}
		name := seat.Name
		if name == "" {
			name = seat.ID
		}
		s.TurnOrder = append(s.TurnOrder, seat.ID)
		s.Players = append(s.Players, Player{
			ID:              seat.ID,
			Name:            name,
			Color:           color,
			DevCards:        []DevCard{},
			RoadsLeft:       roadsPerPlayer,
			SettlementsLeft: settlementsPerSeat,
			CitiesLeft:      citiesPerSeat,
		})
	}
	s.CurrentPlayer = s.TurnOrder[0]

	rng := rand.New(rand.NewSource(seed ^ 0x5eed))
	for _, kind := range deckOrder {
		for i := 0; i < deckComposition[kind]; i++ {
			s.DevelopmentDeck = append(s.DevelopmentDeck, kind)
		}
	}
	rng.Shuffle(len(s.DevelopmentDeck), func(i, j int) {
		s.DevelopmentDeck[i], s.DevelopmentDeck[j] = s.DevelopmentDeck[j], s.DevelopmentDeck[i]
	})
	s.DevelopmentDeckSize = len(s.DevelopmentDeck)
	return s, nil
}
