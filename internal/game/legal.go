package game

var phaseActions = map[Phase][]ActionType{
	PhaseSetup1:     {ActionBuildSettlement, ActionBuildRoad, ActionEndTurn},
	PhaseSetup2:     {ActionBuildSettlement, ActionBuildRoad, ActionEndTurn},
	PhaseRoll:       {ActionRoll, ActionPlayCard},
	PhaseDiscard:    {ActionDiscard},
	PhaseMoveRobber: {ActionMoveRobber},
	PhaseSteal:      {ActionStealResource},
	PhaseActions: {
		ActionBuildRoad, ActionBuildSettlement, ActionBuildCity, ActionBuyCard,
		ActionPlayCard, ActionBankTrade, ActionPortTrade, ActionCreateTradeOffer,
		ActionAcceptTrade, ActionRejectTrade, ActionCancelTrade, ActionEndTurn,
	},
}

// AllowedInPhase reports whether t may be submitted while the game is in p.
func AllowedInPhase(p Phase, t ActionType) bool {
	for _, allowed := range phaseActions[p] {
		if allowed == t {
			return true
		}
	}
	return false
}

// respondsOutOfTurn reports whether t may come from a player other than the
// current one: discards owed after a seven, and answers to trade offers.
func respondsOutOfTurn(t ActionType) bool {
	return t == ActionDiscard || t == ActionAcceptTrade || t == ActionRejectTrade
}

// CheckPreconditions validates the parts of an action that do not depend on
// its payload: game status, duplicate and stale detection, actor and phase.
func CheckPreconditions(s *GameState, a Action) error {
	if s.Phase == PhaseEnded {
		return ErrGameEnded
	}
	if !KnownActionType(a.Type) {
		return reject(ErrInvalidAction, "unknown action type %q", a.Type)
	}
	if s.Player(a.PlayerID) == nil {
		return reject(ErrInvalidAction, "player %q is not in this game", a.PlayerID)
	}
	if a.ID != "" && s.SeenAction(a.ID) {
		return reject(ErrDuplicateAction, "action %s already applied", a.ID)
	}
	if a.ExpectedTurn != nil && *a.ExpectedTurn != s.Turn {
		return reject(ErrStaleAction, "expected turn %d but game is on turn %d", *a.ExpectedTurn, s.Turn)
	}
	if a.PlayerID != s.CurrentPlayer && !respondsOutOfTurn(a.Type) {
		return ErrNotYourTurn
	}
	if !AllowedInPhase(s.Phase, a.Type) {
		return reject(ErrWrongPhase, "%s not allowed during %s", a.Type, s.Phase)
	}
	if s.PendingRoadBuilding != nil && a.Type != ActionBuildRoad {
		return reject(ErrWrongPhase, "place the remaining road building roads first")
	}
	return nil
}

// MustAct reports whether the game is waiting on playerID: the current player
// outside discard, or anyone who still owes a discard.
func MustAct(s *GameState, playerID string) bool {
	switch s.Phase {
	case PhaseEnded:
		return false
	case PhaseDiscard:
		p := s.Player(playerID)
		return p != nil && p.PendingDiscard > 0
	}
	return s.CurrentPlayer == playerID
}

// PendingResponses returns the active trades playerID may still answer.
func PendingResponses(s *GameState, playerID string) []TradeOffer {
	if s.Phase != PhaseActions {
		return nil
	}
	var out []TradeOffer
	for _, t := range s.ActiveTrades {
		if t.InitiatorID == playerID || t.rejected(playerID) {
			continue
		}
		if t.IsOpen() || t.TargetID == playerID {
			out = append(out, t)
		}
	}
	return out
}

func (s *GameState) buildingOwnedBy(v int, playerID string) bool {
	return s.Board.Vertices[v].Owner == playerID && s.Board.Vertices[v].Building != BuildingNone
}

func (s *GameState) distanceRuleOK(v int) bool {
	vx := s.Board.Vertices[v]
	if vx.Building != BuildingNone {
		return false
	}
	for _, n := range vx.Neighbors {
		if s.Board.Vertices[n].Building != BuildingNone {
			return false
		}
	}
	return true
}

func (s *GameState) touchesOwnRoad(v int, playerID string) bool {
	for _, e := range s.Board.Vertices[v].Edges {
		if s.Board.Edges[e].Owner == playerID {
			return true
		}
	}
	return false
}

// roadConnects reports whether a road on e would join playerID's network:
// an end holds their building, or an end touches their road and is not
// blocked by an opponent's building.
func (s *GameState) roadConnects(e int, playerID string) bool {
	for _, v := range s.Board.Edges[e].Vertices {
		vx := s.Board.Vertices[v]
		if vx.Building != BuildingNone {
			if vx.Owner == playerID {
				return true
			}
			continue
		}
		for _, other := range vx.Edges {
			if other != e && s.Board.Edges[other].Owner == playerID {
				return true
			}
		}
	}
	return false
}

func (s *GameState) canPlaceSettlement(v int, playerID string) bool {
	if v < 0 || v >= len(s.Board.Vertices) || !s.distanceRuleOK(v) {
		return false
	}
	return s.Phase.IsSetup() || s.touchesOwnRoad(v, playerID)
}

func (s *GameState) canPlaceRoad(e int, playerID string) bool {
	if e < 0 || e >= len(s.Board.Edges) || s.Board.Edges[e].Owner != "" {
		return false
	}
	if s.Phase.IsSetup() {
		ends := s.Board.Edges[e].Vertices
		return s.SetupSettlement >= 0 && (ends[0] == s.SetupSettlement || ends[1] == s.SetupSettlement)
	}
	return s.roadConnects(e, playerID)
}

// LegalSettlementVertices lists vertices where playerID may place a settlement now.
func LegalSettlementVertices(s *GameState, playerID string) []int {
	var out []int
	for v := range s.Board.Vertices {
		if s.canPlaceSettlement(v, playerID) {
			out = append(out, v)
		}
	}
	return out
}

// LegalRoadEdges lists edges where playerID may place a road now.
func LegalRoadEdges(s *GameState, playerID string) []int {
	var out []int
	for e := range s.Board.Edges {
		if s.canPlaceRoad(e, playerID) {
			out = append(out, e)
		}
	}
	return out
}

// LegalCityVertices lists playerID's settlements that can be upgraded.
func LegalCityVertices(s *GameState, playerID string) []int {
	var out []int
	for _, vx := range s.Board.Vertices {
		if vx.Owner == playerID && vx.Building == BuildingSettlement {
			out = append(out, vx.ID)
		}
	}
	return out
}

// PlayableCards lists the distinct development cards playerID could play
// right now, ignoring payload requirements.
func PlayableCards(s *GameState, playerID string) []DevCardKind {
	p := s.Player(playerID)
	if p == nil || s.DevCardPlayedThisTurn || s.CurrentPlayer != playerID || s.PendingRoadBuilding != nil {
		return nil
	}
	if s.Phase != PhaseRoll && s.Phase != PhaseActions {
		return nil
	}
	seen := map[DevCardKind]bool{}
	var out []DevCardKind
	for _, c := range p.DevCards {
		if c.Kind == CardVictoryPoint || c.BoughtTurn >= s.Turn || seen[c.Kind] {
			continue
		}
		if s.Phase == PhaseRoll && c.Kind != CardKnight {
			continue
		}
		seen[c.Kind] = true
		out = append(out, c.Kind)
	}
	return out
}

// TradeRatio returns how many of give playerID must hand the bank for one
// card: 2 with a matching port, 3 with a generic port, otherwise 4.
func TradeRatio(s *GameState, playerID string, give Resource) int {
	ratio := 4
	for _, vx := range s.Board.Vertices {
		if vx.Owner != playerID || vx.Building == BuildingNone {
			continue
		}
		switch vx.Port {
		case PortKind(give):
			return 2
		case PortGeneric:
			ratio = 3
		}
	}
	return ratio
}

// RobberVictimsAt lists players other than thief with a building on hex and
// at least one card, in seat order.
func RobberVictimsAt(s *GameState, hex int, thief string) []string {
	owners := map[string]bool{}
	for _, v := range s.Board.Hexes[hex].Vertices {
		vx := s.Board.Vertices[v]
		if vx.Building != BuildingNone && vx.Owner != thief {
			owners[vx.Owner] = true
		}
	}
	var out []string
	for _, id := range s.TurnOrder {
		if owners[id] && s.Player(id).Resources.Total() > 0 {
			out = append(out, id)
		}
	}
	return out
}
