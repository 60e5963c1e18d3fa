package game

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func seats(n int) []Seat {
	out := make([]Seat, n)
	for i := range out {
		id := string(rune('A' + i))
		out[i] = Seat{ID: id, Name: "Player " + id}
	}
	return out
}

func newTestGame(t *testing.T, players int) *GameState {
	t.Helper()
	s, err := NewGame("g1", seats(players), DefaultSettings(), 42, t0)
	require.NoError(t, err)
	return s
}

func mustApply(t *testing.T, s *GameState, a Action) *GameState {
	t.Helper()
	if a.Timestamp.IsZero() {
		a.Timestamp = t0
	}
	next, _, err := Apply(s, a)
	require.NoError(t, err, "%s by %s", a.Type, a.PlayerID)
	return next
}

// completeSetup places each seat's settlement and road on the first legal
// spots until the first roll.
func completeSetup(t *testing.T, s *GameState) *GameState {
	t.Helper()
	for s.Phase.IsSetup() {
		p := s.CurrentPlayer
		vs := LegalSettlementVertices(s, p)
		require.NotEmpty(t, vs)
		s = mustApply(t, s, Action{Type: ActionBuildSettlement, PlayerID: p, Payload: Payload{VertexID: Int(vs[0])}})
		es := LegalRoadEdges(s, p)
		require.NotEmpty(t, es)
		s = mustApply(t, s, Action{Type: ActionBuildRoad, PlayerID: p, Payload: Payload{EdgeID: Int(es[0])}})
		s = mustApply(t, s, Action{Type: ActionEndTurn, PlayerID: p})
	}
	return s
}

// rollNonSeven rolls a two for the current player.
func rollNonSeven(t *testing.T, s *GameState) *GameState {
	t.Helper()
	return mustApply(t, s, Action{Type: ActionRoll, PlayerID: s.CurrentPlayer, Payload: Payload{Die1: 1, Die2: 1}})
}

// grant moves cards from the bank to a player on a state the test owns.
func grant(s *GameState, playerID string, r Resources) {
	p := s.Player(playerID)
	p.Resources = p.Resources.Plus(r)
	s.Bank = s.Bank.Minus(r)
}

// emptyHand returns a player's cards to the bank.
func emptyHand(s *GameState, playerID string) {
	p := s.Player(playerID)
	s.Bank = s.Bank.Plus(p.Resources)
	p.Resources = Resources{}
}

// takeCards picks n cards from r in resource order.
func takeCards(r Resources, n int) Resources {
	var out Resources
	for _, res := range AllResources {
		k := min(n, r.Get(res))
		out.add(res, k)
		n -= k
	}
	return out
}

func toJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func actionID(i int) string {
	return fmt.Sprintf("act-%d", i)
}

var fullBank = Resources{19, 19, 19, 19, 19}
