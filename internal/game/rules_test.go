package game

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGameValidation(t *testing.T) {
	_, err := NewGame("g", seats(1), DefaultSettings(), 1, t0)
	assert.ErrorIs(t, err, ErrInvalidAction)

	_, err = NewGame("g", []Seat{{ID: "A"}, {ID: "A"}}, DefaultSettings(), 1, t0)
	assert.ErrorIs(t, err, ErrInvalidAction)

	s, err := NewGame("g", seats(3), Settings{}, 1, t0)
	require.NoError(t, err)
	assert.Equal(t, PhaseSetup1, s.Phase)
	assert.Equal(t, "A", s.CurrentPlayer)
	assert.Equal(t, DefaultSettings(), s.Settings)
	assert.Equal(t, fullBank, s.Bank)
	assert.Len(t, s.DevelopmentDeck, 25)
	assert.Equal(t, 25, s.DevelopmentDeckSize)
}

func TestSetupSnakeOrder(t *testing.T) {
	s := newTestGame(t, 4)
	var order []string
	for s.Phase.IsSetup() {
		order = append(order, s.CurrentPlayer)
		p := s.CurrentPlayer
		s = mustApply(t, s, Action{Type: ActionBuildSettlement, PlayerID: p, Payload: Payload{VertexID: Int(LegalSettlementVertices(s, p)[0])}})
		s = mustApply(t, s, Action{Type: ActionBuildRoad, PlayerID: p, Payload: Payload{EdgeID: Int(LegalRoadEdges(s, p)[0])}})
		s = mustApply(t, s, Action{Type: ActionEndTurn, PlayerID: p})
	}
	assert.Equal(t, []string{"A", "B", "C", "D", "D", "C", "B", "A"}, order)
	assert.Equal(t, PhaseRoll, s.Phase)
	assert.Equal(t, "A", s.CurrentPlayer)
	assert.Equal(t, 9, s.Turn)

	for _, p := range s.Players {
		assert.Equal(t, 3, p.SettlementsLeft)
		assert.Equal(t, 13, p.RoadsLeft)
		assert.Equal(t, 2, p.VictoryPoints)
	}
	assert.Equal(t, fullBank, s.TotalResources())
}

func TestSetupRequiresSettlementThenRoad(t *testing.T) {
	s := newTestGame(t, 2)

	_, _, err := Apply(s, Action{Type: ActionBuildRoad, PlayerID: "A", Payload: Payload{EdgeID: Int(0)}})
	assert.ErrorIs(t, err, ErrIllegalAction)

	_, _, err = Apply(s, Action{Type: ActionEndTurn, PlayerID: "A"})
	assert.ErrorIs(t, err, ErrIllegalAction)

	s = mustApply(t, s, Action{Type: ActionBuildSettlement, PlayerID: "A", Payload: Payload{VertexID: Int(0)}})
	_, _, err = Apply(s, Action{Type: ActionBuildSettlement, PlayerID: "A", Payload: Payload{VertexID: Int(20)}})
	assert.ErrorIs(t, err, ErrIllegalAction)

	// the road must touch the new settlement
	far := -1
	for _, e := range s.Board.Edges {
		if e.Vertices[0] != 0 && e.Vertices[1] != 0 {
			far = e.ID
			break
		}
	}
	_, _, err = Apply(s, Action{Type: ActionBuildRoad, PlayerID: "A", Payload: Payload{EdgeID: Int(far)}})
	assert.ErrorIs(t, err, ErrIllegalAction)
}

func TestSecondSetupSettlementYieldsResources(t *testing.T) {
	s := newTestGame(t, 3)
	for s.Phase.IsSetup() {
		p := s.CurrentPlayer
		v := LegalSettlementVertices(s, p)[0]
		var want Resources
		if s.Phase == PhaseSetup2 {
			for _, h := range s.Board.Vertices[v].Hexes {
				if res, ok := s.Board.Hexes[h].Terrain.Produces(); ok {
					want.add(res, 1)
				}
			}
		}
		before := s.Player(p).Resources
		s = mustApply(t, s, Action{Type: ActionBuildSettlement, PlayerID: p, Payload: Payload{VertexID: Int(v)}})
		assert.Equal(t, before.Plus(want), s.Player(p).Resources, "player %s", p)
		s = mustApply(t, s, Action{Type: ActionBuildRoad, PlayerID: p, Payload: Payload{EdgeID: Int(LegalRoadEdges(s, p)[0])}})
		s = mustApply(t, s, Action{Type: ActionEndTurn, PlayerID: p})
	}
	assert.Equal(t, fullBank, s.TotalResources())
}

func TestApplyIsDeterministic(t *testing.T) {
	s := completeSetup(t, newTestGame(t, 3))
	a := Action{ID: "roll-1", Type: ActionRoll, PlayerID: "A", Payload: Payload{Die1: 3, Die2: 5}, Timestamp: t0}

	n1, e1, err1 := Apply(s, a)
	n2, e2, err2 := Apply(s, a)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, toJSON(t, n1), toJSON(t, n2))
	assert.Equal(t, toJSON(t, e1), toJSON(t, e2))
}

func TestRejectionLeavesStateUntouched(t *testing.T) {
	s := rollNonSeven(t, completeSetup(t, newTestGame(t, 3))).Clone()
	emptyHand(s, "A")
	before := toJSON(t, ToRecord(s))

	city := LegalCityVertices(s, "A")[0]
	_, _, err := Apply(s, Action{Type: ActionBuildCity, PlayerID: "A", Payload: Payload{VertexID: Int(city)}})
	require.ErrorIs(t, err, ErrIllegalAction)

	_, _, err = Apply(s, Action{Type: ActionBankTrade, PlayerID: "A", Payload: Payload{Give: Ore, Receive: Ore}})
	require.ErrorIs(t, err, ErrInvalidAction)

	assert.Equal(t, before, toJSON(t, ToRecord(s)))
}

func TestOnlyCurrentPlayerActs(t *testing.T) {
	s := completeSetup(t, newTestGame(t, 3))

	_, _, err := Apply(s, Action{Type: ActionRoll, PlayerID: "B", Payload: Payload{Die1: 1, Die2: 2}})
	assert.ErrorIs(t, err, ErrNotYourTurn)
	assert.True(t, IsStale(err))

	_, _, err = Apply(s, Action{Type: ActionEndTurn, PlayerID: "A"})
	assert.ErrorIs(t, err, ErrWrongPhase)

	_, _, err = Apply(s, Action{Type: ActionRoll, PlayerID: "nobody", Payload: Payload{Die1: 1, Die2: 2}})
	assert.ErrorIs(t, err, ErrInvalidAction)

	_, _, err = Apply(s, Action{Type: "teleport", PlayerID: "A"})
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestDuplicateAndStaleActions(t *testing.T) {
	s := completeSetup(t, newTestGame(t, 2))
	s = mustApply(t, s, Action{ID: "x1", Type: ActionRoll, PlayerID: "A", Payload: Payload{Die1: 1, Die2: 1}})

	_, _, err := Apply(s, Action{ID: "x1", Type: ActionEndTurn, PlayerID: "A"})
	assert.ErrorIs(t, err, ErrDuplicateAction)

	_, _, err = Apply(s, Action{ID: "x2", Type: ActionEndTurn, PlayerID: "A", ExpectedTurn: Int(s.Turn - 1)})
	assert.ErrorIs(t, err, ErrStaleAction)

	s = mustApply(t, s, Action{ID: "x3", Type: ActionEndTurn, PlayerID: "A", ExpectedTurn: Int(s.Turn)})
	assert.Equal(t, "B", s.CurrentPlayer)
}

func TestRecentActionWindowIsBounded(t *testing.T) {
	s := newTestGame(t, 2)
	for i := 0; i < recentActionWindow+10; i++ {
		s.rememberAction(actionID(i))
	}
	assert.Len(t, s.RecentActionIDs, recentActionWindow)
	assert.False(t, s.SeenAction(actionID(0)))
	assert.True(t, s.SeenAction(actionID(recentActionWindow+9)))
}

func TestEndTurnWrapsAround(t *testing.T) {
	s := completeSetup(t, newTestGame(t, 4))
	s = s.Clone()
	s.Phase = PhaseActions
	s.CurrentPlayer = "D"
	s.Dice = &Dice{Die1: 2, Die2: 3, Sum: 5}
	turn := s.Turn

	next, events, err := Apply(s, Action{Type: ActionEndTurn, PlayerID: "D", Timestamp: t0})
	require.NoError(t, err)
	assert.Equal(t, "A", next.CurrentPlayer)
	assert.Equal(t, turn+1, next.Turn)
	assert.Equal(t, PhaseRoll, next.Phase)
	assert.Nil(t, next.Dice)
	assert.True(t, HasEvent(events, EventTurnEnded))
	assert.True(t, HasEvent(events, EventTurnStarted))
}

func TestSevenWithLargeHandRequiresDiscard(t *testing.T) {
	s := completeSetup(t, newTestGame(t, 3)).Clone()
	grant(s, "A", Resources{Brick: 5, Ore: 4})
	owed := s.Player("A").Resources.Total() / 2
	require.Greater(t, s.Player("A").Resources.Total(), s.Settings.DiscardLimit)

	next, events, err := Apply(s, Action{Type: ActionRoll, PlayerID: "A", Payload: Payload{Die1: 3, Die2: 4}, Timestamp: t0})
	require.NoError(t, err)
	assert.Equal(t, PhaseDiscard, next.Phase)
	assert.Equal(t, owed, next.Player("A").PendingDiscard)
	assert.True(t, HasEvent(events, EventDiscardRequired))
	s = next

	_, _, err = Apply(s, Action{Type: ActionDiscard, PlayerID: "B"})
	assert.ErrorIs(t, err, ErrIllegalAction)

	_, _, err = Apply(s, Action{Type: ActionDiscard, PlayerID: "A", Payload: Payload{Resources: Resources{Brick: 1}}})
	assert.ErrorIs(t, err, ErrIllegalAction)

	_, _, err = Apply(s, Action{Type: ActionMoveRobber, PlayerID: "A", Payload: Payload{HexID: Int(0)}})
	assert.ErrorIs(t, err, ErrWrongPhase)

	bundle := takeCards(s.Player("A").Resources, owed)
	s = mustApply(t, s, Action{Type: ActionDiscard, PlayerID: "A", Payload: Payload{Resources: bundle}})
	assert.Equal(t, PhaseMoveRobber, s.Phase)
	assert.Zero(t, s.Player("A").PendingDiscard)
	assert.Equal(t, fullBank, s.TotalResources())
}

func TestSevenWithoutLargeHandsMovesRobber(t *testing.T) {
	s := completeSetup(t, newTestGame(t, 3))
	s = mustApply(t, s, Action{Type: ActionRoll, PlayerID: "A", Payload: Payload{Die1: 6, Die2: 1}})
	assert.Equal(t, PhaseMoveRobber, s.Phase)

	_, _, err := Apply(s, Action{Type: ActionMoveRobber, PlayerID: "A", Payload: Payload{HexID: Int(s.Board.RobberHex)}})
	assert.ErrorIs(t, err, ErrIllegalAction)
}

func TestRobberStealsFromVictim(t *testing.T) {
	s := completeSetup(t, newTestGame(t, 2)).Clone()
	grant(s, "B", Resources{Wool: 2})
	s = mustApply(t, s, Action{Type: ActionRoll, PlayerID: "A", Payload: Payload{Die1: 5, Die2: 2}})
	require.Equal(t, PhaseMoveRobber, s.Phase)

	target := -1
	for _, h := range s.Board.Hexes {
		if h.ID != s.Board.RobberHex && len(RobberVictimsAt(s, h.ID, "A")) > 0 {
			target = h.ID
			break
		}
	}
	require.NotEqual(t, -1, target, "B should have a settlement next to some hex")

	s = mustApply(t, s, Action{Type: ActionMoveRobber, PlayerID: "A", Payload: Payload{HexID: Int(target)}})
	require.Equal(t, PhaseSteal, s.Phase)
	assert.Equal(t, []string{"B"}, s.RobberVictims)

	_, _, err := Apply(s, Action{Type: ActionStealResource, PlayerID: "A", Payload: Payload{VictimID: "A", StealIndex: Int(0)}})
	assert.ErrorIs(t, err, ErrIllegalAction)

	before := s.Player("B").Resources.Total()
	aBefore := s.Player("A").Resources.Total()
	s = mustApply(t, s, Action{Type: ActionStealResource, PlayerID: "A", Payload: Payload{VictimID: "B", StealIndex: Int(12345)}})
	assert.Equal(t, before-1, s.Player("B").Resources.Total())
	assert.Equal(t, aBefore+1, s.Player("A").Resources.Total())
	assert.Equal(t, PhaseActions, s.Phase)
	assert.Empty(t, s.RobberVictims)
}

func TestBankShortageGivesNobodyTheResource(t *testing.T) {
	s := completeSetup(t, newTestGame(t, 2)).Clone()

	var hex Hex
	for _, h := range s.Board.Hexes {
		if _, ok := h.Terrain.Produces(); ok && h.ID != s.Board.RobberHex {
			hex = h
			break
		}
	}
	res, _ := hex.Terrain.Produces()
	for i, owner := range map[int]string{0: "A", 3: "B"} {
		v := &s.Board.Vertices[hex.Vertices[i]]
		v.Owner = owner
		v.Building = BuildingSettlement
	}
	s.Bank = s.Bank.Minus(Single(res, s.Bank.Get(res)-1))
	aBefore, bBefore := s.Player("A").Resources.Get(res), s.Player("B").Resources.Get(res)

	d1 := min(6, hex.Number-1)
	s = mustApply(t, s, Action{Type: ActionRoll, PlayerID: "A", Payload: Payload{Die1: d1, Die2: hex.Number - d1}})
	assert.Equal(t, aBefore, s.Player("A").Resources.Get(res))
	assert.Equal(t, bBefore, s.Player("B").Resources.Get(res))
	assert.Equal(t, 1, s.Bank.Get(res))
}

func TestBankShortageWithSingleClaimant(t *testing.T) {
	s := completeSetup(t, newTestGame(t, 2)).Clone()

	var hex Hex
	for _, h := range s.Board.Hexes {
		if _, ok := h.Terrain.Produces(); ok && h.ID != s.Board.RobberHex {
			hex = h
			break
		}
	}
	res, _ := hex.Terrain.Produces()
	for _, v := range hex.Vertices {
		s.Board.Vertices[v].Owner = ""
		s.Board.Vertices[v].Building = BuildingNone
	}
	city := &s.Board.Vertices[hex.Vertices[0]]
	city.Owner = "A"
	city.Building = BuildingCity
	s.Bank = s.Bank.Minus(Single(res, s.Bank.Get(res)-1))
	before := s.Player("A").Resources.Get(res)

	d1 := min(6, hex.Number-1)
	s = mustApply(t, s, Action{Type: ActionRoll, PlayerID: "A", Payload: Payload{Die1: d1, Die2: hex.Number - d1}})
	assert.Equal(t, before, s.Player("A").Resources.Get(res))
	assert.Equal(t, 1, s.Bank.Get(res))
}

func TestBuildingCostsAndPlacement(t *testing.T) {
	s := rollNonSeven(t, completeSetup(t, newTestGame(t, 2))).Clone()
	grant(s, "A", Resources{Brick: 3, Lumber: 3, Wool: 1, Grain: 3, Ore: 3})

	edges := LegalRoadEdges(s, "A")
	require.NotEmpty(t, edges)
	before := s.Player("A").Resources
	s = mustApply(t, s, Action{Type: ActionBuildRoad, PlayerID: "A", Payload: Payload{EdgeID: Int(edges[0])}})
	assert.Equal(t, before.Minus(CostRoad), s.Player("A").Resources)
	assert.Equal(t, "A", s.Board.Edges[edges[0]].Owner)

	_, _, err := Apply(s, Action{Type: ActionBuildRoad, PlayerID: "A", Payload: Payload{EdgeID: Int(edges[0])}})
	assert.ErrorIs(t, err, ErrIllegalAction)

	city := LegalCityVertices(s, "A")[0]
	s = mustApply(t, s, Action{Type: ActionBuildCity, PlayerID: "A", Payload: Payload{VertexID: Int(city)}})
	assert.Equal(t, BuildingCity, s.Board.Vertices[city].Building)
	assert.Equal(t, 3, s.Player("A").VictoryPoints)
	assert.Equal(t, 3, s.Player("A").CitiesLeft)
	assert.Equal(t, 4, s.Player("A").SettlementsLeft)
	assert.Equal(t, fullBank, s.TotalResources())

	_, _, err = Apply(s, Action{Type: ActionBuildCity, PlayerID: "A", Payload: Payload{VertexID: Int(city)}})
	assert.ErrorIs(t, err, ErrIllegalAction)
}

func TestDevelopmentCards(t *testing.T) {
	s := rollNonSeven(t, completeSetup(t, newTestGame(t, 2))).Clone()
	grant(s, "A", CostDevCard)

	s = mustApply(t, s, Action{Type: ActionBuyCard, PlayerID: "A"})
	require.Len(t, s.Player("A").DevCards, 1)
	assert.Equal(t, 24, s.DevelopmentDeckSize)
	bought := s.Player("A").DevCards[0]
	assert.Equal(t, s.Turn, bought.BoughtTurn)

	if bought.Kind != CardVictoryPoint {
		_, _, err := Apply(s, Action{Type: ActionPlayCard, PlayerID: "A", Payload: Payload{Card: bought.Kind, Resource: Ore, Resources: Resources{Ore: 2}}})
		assert.ErrorIs(t, err, ErrIllegalAction)
	}

	_, _, err := Apply(s, Action{Type: ActionPlayCard, PlayerID: "A", Payload: Payload{Card: CardVictoryPoint}})
	assert.ErrorIs(t, err, ErrIllegalAction)
}

func TestKnightBeforeRollReturnsToRoll(t *testing.T) {
	s := completeSetup(t, newTestGame(t, 2)).Clone()
	p := s.Player("A")
	p.DevCards = append(p.DevCards, DevCard{Kind: CardKnight, BoughtTurn: s.Turn - 1})

	_, _, err := Apply(s, Action{Type: ActionPlayCard, PlayerID: "A", Payload: Payload{Card: CardMonopoly, Resource: Ore}})
	assert.ErrorIs(t, err, ErrWrongPhase)

	s = mustApply(t, s, Action{Type: ActionPlayCard, PlayerID: "A", Payload: Payload{Card: CardKnight}})
	assert.Equal(t, PhaseMoveRobber, s.Phase)
	assert.Equal(t, 1, s.Player("A").KnightsPlayed)
	assert.True(t, s.DevCardPlayedThisTurn)

	empty := -1
	for _, h := range s.Board.Hexes {
		if h.ID != s.Board.RobberHex && len(RobberVictimsAt(s, h.ID, "A")) == 0 {
			empty = h.ID
			break
		}
	}
	require.NotEqual(t, -1, empty)
	s = mustApply(t, s, Action{Type: ActionMoveRobber, PlayerID: "A", Payload: Payload{HexID: Int(empty)}})
	assert.Equal(t, PhaseRoll, s.Phase)
	assert.Equal(t, []DevCardKind{CardKnight}, s.DiscardPile)
}

func TestMonopolyAndYearOfPlenty(t *testing.T) {
	s := rollNonSeven(t, completeSetup(t, newTestGame(t, 3))).Clone()
	grant(s, "B", Resources{Wool: 2})
	grant(s, "C", Resources{Wool: 3})
	p := s.Player("A")
	p.DevCards = append(p.DevCards,
		DevCard{Kind: CardMonopoly, BoughtTurn: 0},
		DevCard{Kind: CardYearOfPlenty, BoughtTurn: 0})
	aWool := p.Resources.Wool
	bWool, cWool := s.Player("B").Resources.Wool, s.Player("C").Resources.Wool

	s = mustApply(t, s, Action{Type: ActionPlayCard, PlayerID: "A", Payload: Payload{Card: CardMonopoly, Resource: Wool}})
	assert.Equal(t, aWool+bWool+cWool, s.Player("A").Resources.Wool)
	assert.Zero(t, s.Player("B").Resources.Wool)
	assert.Zero(t, s.Player("C").Resources.Wool)

	_, _, err := Apply(s, Action{Type: ActionPlayCard, PlayerID: "A", Payload: Payload{Card: CardYearOfPlenty, Resources: Resources{Ore: 2}}})
	assert.ErrorIs(t, err, ErrIllegalAction, "one development card per turn")
	assert.Equal(t, fullBank, s.TotalResources())
}

func TestRoadBuildingPlacementMode(t *testing.T) {
	s := rollNonSeven(t, completeSetup(t, newTestGame(t, 2))).Clone()
	p := s.Player("A")
	p.DevCards = append(p.DevCards, DevCard{Kind: CardRoadBuilding, BoughtTurn: 0})
	before := p.Resources

	next, events, err := Apply(s, Action{Type: ActionPlayCard, PlayerID: "A", Payload: Payload{Card: CardRoadBuilding}, Timestamp: t0})
	require.NoError(t, err)
	assert.True(t, HasEvent(events, EventPlacementModeStarted))
	require.NotNil(t, next.PendingRoadBuilding)
	assert.Equal(t, 2, next.PendingRoadBuilding.RoadsRemaining)
	s = next

	_, _, err = Apply(s, Action{Type: ActionEndTurn, PlayerID: "A"})
	assert.ErrorIs(t, err, ErrWrongPhase)

	for i := 0; i < 2; i++ {
		s = mustApply(t, s, Action{Type: ActionBuildRoad, PlayerID: "A", Payload: Payload{EdgeID: Int(LegalRoadEdges(s, "A")[0])}})
	}
	assert.Nil(t, s.PendingRoadBuilding)
	assert.Equal(t, before, s.Player("A").Resources, "roads were free")
	assert.Equal(t, 11, s.Player("A").RoadsLeft)
}

func TestBankAndPortTrades(t *testing.T) {
	s := rollNonSeven(t, completeSetup(t, newTestGame(t, 2))).Clone()
	grant(s, "A", Resources{Brick: 4})
	before := s.Player("A").Resources

	s = mustApply(t, s, Action{Type: ActionBankTrade, PlayerID: "A", Payload: Payload{Give: Brick, Receive: Ore}})
	assert.Equal(t, before.Minus(Resources{Brick: 4}).Plus(Resources{Ore: 1}), s.Player("A").Resources)

	if TradeRatio(s, "A", Brick) == 4 {
		_, _, err := Apply(s, Action{Type: ActionPortTrade, PlayerID: "A", Payload: Payload{Give: Brick, Receive: Ore}})
		assert.ErrorIs(t, err, ErrIllegalAction)
	}
	assert.Equal(t, fullBank, s.TotalResources())
}

func TestPortRatio(t *testing.T) {
	s := newTestGame(t, 2)
	var generic, brick int = -1, -1
	for _, v := range s.Board.Vertices {
		switch v.Port {
		case PortGeneric:
			generic = v.ID
		case PortKind(Brick):
			brick = v.ID
		}
	}
	require.NotEqual(t, -1, generic)
	require.NotEqual(t, -1, brick)

	assert.Equal(t, 4, TradeRatio(s, "A", Brick))
	s.Board.Vertices[generic].Owner, s.Board.Vertices[generic].Building = "A", BuildingSettlement
	assert.Equal(t, 3, TradeRatio(s, "A", Brick))
	s.Board.Vertices[brick].Owner, s.Board.Vertices[brick].Building = "A", BuildingSettlement
	assert.Equal(t, 2, TradeRatio(s, "A", Brick))
	assert.Equal(t, 3, TradeRatio(s, "A", Ore))
}

func TestPlayerTrades(t *testing.T) {
	s := rollNonSeven(t, completeSetup(t, newTestGame(t, 3))).Clone()
	grant(s, "A", Resources{Brick: 2})
	grant(s, "B", Resources{Wool: 2})
	aBefore, bBefore := s.Player("A").Resources, s.Player("B").Resources

	offer := Payload{TradeID: "t1", TargetID: "B", Offer: Resources{Brick: 1}, Request: Resources{Wool: 1}}
	s = mustApply(t, s, Action{Type: ActionCreateTradeOffer, PlayerID: "A", Payload: offer})
	require.Len(t, s.ActiveTrades, 1)
	assert.Equal(t, t0.Add(s.Settings.TradeTTL), s.ActiveTrades[0].ExpiresAt)

	_, _, err := Apply(s, Action{Type: ActionAcceptTrade, PlayerID: "C", Payload: Payload{TradeID: "t1"}, Timestamp: t0})
	assert.ErrorIs(t, err, ErrIllegalAction, "targeted at B")

	_, _, err = Apply(s, Action{Type: ActionAcceptTrade, PlayerID: "A", Payload: Payload{TradeID: "t1"}, Timestamp: t0})
	assert.ErrorIs(t, err, ErrIllegalAction, "own trade")

	_, _, err = Apply(s, Action{Type: ActionAcceptTrade, PlayerID: "B", Payload: Payload{TradeID: "t1"}, Timestamp: t0.Add(time.Hour)})
	assert.ErrorIs(t, err, ErrIllegalAction, "expired")

	s = mustApply(t, s, Action{Type: ActionAcceptTrade, PlayerID: "B", Payload: Payload{TradeID: "t1"}})
	assert.Empty(t, s.ActiveTrades)
	assert.Equal(t, aBefore.Minus(Resources{Brick: 1}).Plus(Resources{Wool: 1}), s.Player("A").Resources)
	assert.Equal(t, bBefore.Minus(Resources{Wool: 1}).Plus(Resources{Brick: 1}), s.Player("B").Resources)
}

func TestOpenTradeClosesWhenEveryoneRejects(t *testing.T) {
	s := rollNonSeven(t, completeSetup(t, newTestGame(t, 3))).Clone()
	grant(s, "A", Resources{Ore: 1})

	s = mustApply(t, s, Action{Type: ActionCreateTradeOffer, PlayerID: "A", Payload: Payload{TradeID: "open", Offer: Resources{Ore: 1}, Request: Resources{Grain: 1}}})
	s = mustApply(t, s, Action{Type: ActionRejectTrade, PlayerID: "B", Payload: Payload{TradeID: "open"}})
	require.Len(t, s.ActiveTrades, 1)
	assert.Equal(t, []string{"B"}, s.ActiveTrades[0].RejectedBy)

	_, _, err := Apply(s, Action{Type: ActionRejectTrade, PlayerID: "B", Payload: Payload{TradeID: "open"}, Timestamp: t0})
	assert.ErrorIs(t, err, ErrIllegalAction)

	s = mustApply(t, s, Action{Type: ActionRejectTrade, PlayerID: "C", Payload: Payload{TradeID: "open"}})
	assert.Empty(t, s.ActiveTrades)
}

func TestEndTurnClearsTrades(t *testing.T) {
	s := rollNonSeven(t, completeSetup(t, newTestGame(t, 2))).Clone()
	grant(s, "A", Resources{Ore: 1})
	s = mustApply(t, s, Action{Type: ActionCreateTradeOffer, PlayerID: "A", Payload: Payload{TradeID: "t", Offer: Resources{Ore: 1}, Request: Resources{Grain: 1}}})

	next, events, err := Apply(s, Action{Type: ActionEndTurn, PlayerID: "A", Timestamp: t0})
	require.NoError(t, err)
	assert.Empty(t, next.ActiveTrades)
	assert.True(t, HasEvent(events, EventTradeCancelled))
}

func TestPruneExpiredTrades(t *testing.T) {
	s := rollNonSeven(t, completeSetup(t, newTestGame(t, 2))).Clone()
	grant(s, "A", Resources{Ore: 1})
	s = mustApply(t, s, Action{Type: ActionCreateTradeOffer, PlayerID: "A", Payload: Payload{TradeID: "t", Offer: Resources{Ore: 1}, Request: Resources{Grain: 1}}})
	expires := s.ActiveTrades[0].ExpiresAt

	same, events, removed := PruneExpiredTrades(s, expires.Add(-time.Millisecond))
	assert.False(t, removed)
	assert.Same(t, s, same)
	assert.Empty(t, events)

	next, events, removed := PruneExpiredTrades(s, expires.Add(time.Millisecond))
	assert.True(t, removed)
	assert.Empty(t, next.ActiveTrades)
	assert.Len(t, s.ActiveTrades, 1, "input untouched")
	assert.True(t, HasEvent(events, EventTradeExpired))
}

func TestVictoryEndsGame(t *testing.T) {
	s := rollNonSeven(t, completeSetup(t, newTestGame(t, 2))).Clone()
	s.Settings.VictoryPoints = 3
	grant(s, "A", CostCity)

	next, events, err := Apply(s, Action{Type: ActionBuildCity, PlayerID: "A", Payload: Payload{VertexID: Int(LegalCityVertices(s, "A")[0])}, Timestamp: t0})
	require.NoError(t, err)
	assert.Equal(t, PhaseEnded, next.Phase)
	assert.Equal(t, "A", next.Winner)
	assert.True(t, HasEvent(events, EventGameEnded))

	_, _, err = Apply(next, Action{Type: ActionEndTurn, PlayerID: "A"})
	assert.ErrorIs(t, err, ErrGameEnded)
	assert.True(t, IsStale(err))
}

// playRandomly drives the game with simple legal choices and checks that no
// card is ever created or destroyed.
func TestResourceConservation(t *testing.T) {
	s := completeSetup(t, newTestGame(t, 4))
	rng := rand.New(rand.NewSource(3))

	for step := 0; step < 400 && s.Phase != PhaseEnded; step++ {
		a := nextAction(s, rng)
		next, _, err := Apply(s, a)
		require.NoError(t, err, "step %d: %s by %s in %s", step, a.Type, a.PlayerID, s.Phase)
		s = next

		require.Equal(t, fullBank, s.TotalResources(), "step %d", step)
		for _, p := range s.Players {
			require.True(t, p.Resources.NonNegative())
		}
		require.True(t, s.Bank.NonNegative())
	}
	assert.Greater(t, s.Turn, 20)
}

func nextAction(s *GameState, rng *rand.Rand) Action {
	cur := s.CurrentPlayer
	a := Action{PlayerID: cur, Timestamp: t0}
	switch s.Phase {
	case PhaseRoll:
		a.Type = ActionRoll
		a.Payload.Die1, a.Payload.Die2 = rng.Intn(6)+1, rng.Intn(6)+1
	case PhaseDiscard:
		for _, p := range s.Players {
			if p.PendingDiscard > 0 {
				a.PlayerID = p.ID
				a.Type = ActionDiscard
				a.Payload.Resources = takeCards(p.Resources, p.PendingDiscard)
				break
			}
		}
	case PhaseMoveRobber:
		a.Type = ActionMoveRobber
		a.Payload.HexID = Int((s.Board.RobberHex + 1 + rng.Intn(len(s.Board.Hexes)-1)) % len(s.Board.Hexes))
	case PhaseSteal:
		a.Type = ActionStealResource
		a.Payload.VictimID = s.RobberVictims[0]
		a.Payload.StealIndex = Int(rng.Intn(100))
	case PhaseActions:
		p := s.Player(cur)
		if cities := LegalCityVertices(s, cur); len(cities) > 0 && p.Resources.Covers(CostCity) && p.CitiesLeft > 0 {
			a.Type = ActionBuildCity
			a.Payload.VertexID = Int(cities[0])
			return a
		}
		if vs := LegalSettlementVertices(s, cur); len(vs) > 0 && p.Resources.Covers(CostSettlement) && p.SettlementsLeft > 0 {
			a.Type = ActionBuildSettlement
			a.Payload.VertexID = Int(vs[0])
			return a
		}
		if es := LegalRoadEdges(s, cur); len(es) > 0 && p.Resources.Covers(CostRoad) && p.RoadsLeft > 0 {
			a.Type = ActionBuildRoad
			a.Payload.EdgeID = Int(es[rng.Intn(len(es))])
			return a
		}
		for _, give := range AllResources {
			if p.Resources.Get(give) >= 4 {
				for _, recv := range AllResources {
					if recv != give && s.Bank.Get(recv) > 0 {
						a.Type = ActionBankTrade
						a.Payload.Give, a.Payload.Receive = give, recv
						return a
					}
				}
			}
		}
		a.Type = ActionEndTurn
	}
	return a
}

func TestIsRejection(t *testing.T) {
	assert.True(t, IsRejection(reject(ErrIllegalAction, "x")))
	assert.False(t, IsRejection(ErrInternal))
	assert.False(t, IsRejection(errors.New("boom")))
}
