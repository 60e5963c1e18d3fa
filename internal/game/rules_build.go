package game

func (ap *applier) buildRoad() error {
	s := ap.s
	e := ap.a.Payload.EdgeID
	if e == nil || *e < 0 || *e >= len(s.Board.Edges) {
		return reject(ErrInvalidAction, "a valid edge is required")
	}
	p := ap.actor()
	if p.RoadsLeft == 0 {
		return reject(ErrIllegalAction, "no roads left")
	}
	setup := s.Phase.IsSetup()
	if setup {
		if s.SetupSettlement < 0 {
			return reject(ErrIllegalAction, "place a settlement first")
		}
		if s.SetupRoadPlaced {
			return reject(ErrIllegalAction, "setup road already placed")
		}
	}
	if !s.canPlaceRoad(*e, p.ID) {
		return reject(ErrIllegalAction, "cannot build a road on edge %d", *e)
	}
	pending := s.PendingRoadBuilding
	if !setup && pending == nil {
		if err := ap.pay(p, CostRoad, "build a road"); err != nil {
			return err
		}
	}

	s.Board.Edges[*e].Owner = p.ID
	p.RoadsLeft--
	if setup {
		s.SetupRoadPlaced = true
	}
	ap.emit(Event{Type: EventRoadBuilt, PlayerID: p.ID, Data: map[string]any{"edgeId": *e, "free": setup || pending != nil}})

	if pending != nil {
		pending.RoadsRemaining--
		if pending.RoadsRemaining == 0 || p.RoadsLeft == 0 || len(LegalRoadEdges(s, p.ID)) == 0 {
			s.PendingRoadBuilding = nil
			ap.emit(Event{Type: EventPlacementModeEnded, PlayerID: p.ID, Data: map[string]any{"mode": CardRoadBuilding}})
		}
	}
	return nil
}

func (ap *applier) buildSettlement() error {
	s := ap.s
	v := ap.a.Payload.VertexID
	if v == nil || *v < 0 || *v >= len(s.Board.Vertices) {
		return reject(ErrInvalidAction, "a valid vertex is required")
	}
	p := ap.actor()
	if p.SettlementsLeft == 0 {
		return reject(ErrIllegalAction, "no settlements left")
	}
	setup := s.Phase.IsSetup()
	if setup && s.SetupSettlement >= 0 {
		return reject(ErrIllegalAction, "settlement already placed this turn")
	}
	if !s.canPlaceSettlement(*v, p.ID) {
		return reject(ErrIllegalAction, "cannot build a settlement on vertex %d", *v)
	}
	if !setup {
		if err := ap.pay(p, CostSettlement, "build a settlement"); err != nil {
			return err
		}
	}

	vx := &s.Board.Vertices[*v]
	vx.Owner = p.ID
	vx.Building = BuildingSettlement
	p.SettlementsLeft--
	ap.emit(Event{Type: EventSettlementBuilt, PlayerID: p.ID, Data: map[string]any{"vertexId": *v}})

	if !setup {
		return nil
	}
	s.SetupSettlement = *v
	if s.Phase != PhaseSetup2 {
		return nil
	}
	var gain Resources
	for _, h := range vx.Hexes {
		if res, ok := s.Board.Hexes[h].Terrain.Produces(); ok && s.Bank.Get(res) > gain.Get(res) {
			gain.add(res, 1)
		}
	}
	if !gain.IsZero() {
		ap.fromBank(p, gain)
		ap.emit(Event{Type: EventResourcesDistributed, Data: map[string]any{"setup": true, "gains": map[string]Resources{p.ID: gain}}})
	}
	return nil
}

func (ap *applier) buildCity() error {
	s := ap.s
	v := ap.a.Payload.VertexID
	if v == nil || *v < 0 || *v >= len(s.Board.Vertices) {
		return reject(ErrInvalidAction, "a valid vertex is required")
	}
	p := ap.actor()
	if p.CitiesLeft == 0 {
		return reject(ErrIllegalAction, "no cities left")
	}
	vx := &s.Board.Vertices[*v]
	if vx.Owner != p.ID || vx.Building != BuildingSettlement {
		return reject(ErrIllegalAction, "vertex %d is not your settlement", *v)
	}
	if err := ap.pay(p, CostCity, "build a city"); err != nil {
		return err
	}
	vx.Building = BuildingCity
	p.CitiesLeft--
	p.SettlementsLeft++
	ap.emit(Event{Type: EventCityBuilt, PlayerID: p.ID, Data: map[string]any{"vertexId": *v}})
	return nil
}

func (ap *applier) buyCard() error {
	s := ap.s
	if len(s.DevelopmentDeck) == 0 {
		return reject(ErrIllegalAction, "development deck is empty")
	}
	p := ap.actor()
	if err := ap.pay(p, CostDevCard, "buy a development card"); err != nil {
		return err
	}
	kind := s.DevelopmentDeck[0]
	s.DevelopmentDeck = s.DevelopmentDeck[1:]
	p.DevCards = append(p.DevCards, DevCard{Kind: kind, BoughtTurn: s.Turn})
	ap.emit(Event{Type: EventDevelopmentCardPurchase, PlayerID: p.ID, Data: map[string]any{"remaining": len(s.DevelopmentDeck)}})
	return nil
}

func (ap *applier) playCard() error {
	s := ap.s
	kind := ap.a.Payload.Card
	switch kind {
	case CardKnight, CardRoadBuilding, CardYearOfPlenty, CardMonopoly:
	case CardVictoryPoint:
		return reject(ErrIllegalAction, "victory point cards are not played")
	default:
		return reject(ErrInvalidAction, "unknown card %q", kind)
	}
	if s.DevCardPlayedThisTurn {
		return reject(ErrIllegalAction, "a development card was already played this turn")
	}
	if s.Phase == PhaseRoll && kind != CardKnight {
		return reject(ErrWrongPhase, "only a knight may be played before rolling")
	}

	p := ap.actor()
	idx, held := -1, false
	for i, c := range p.DevCards {
		if c.Kind != kind {
			continue
		}
		held = true
		if c.BoughtTurn < s.Turn {
			idx = i
			break
		}
	}
	if idx < 0 {
		if held {
			return reject(ErrIllegalAction, "a card cannot be played on the turn it was bought")
		}
		return reject(ErrIllegalAction, "you do not hold a %s card", kind)
	}

	played := Event{Type: EventDevelopmentCardPlayed, PlayerID: p.ID, Data: map[string]any{"card": kind}}
	switch kind {
	case CardKnight:
		ap.emit(played)
		p.KnightsPlayed++
		s.RobberReturnPhase = s.Phase
		ap.setPhase(PhaseMoveRobber)

	case CardRoadBuilding:
		n := min(2, p.RoadsLeft)
		if n == 0 || len(LegalRoadEdges(s, p.ID)) == 0 {
			return reject(ErrIllegalAction, "no road can be placed")
		}
		ap.emit(played)
		s.PendingRoadBuilding = &PendingRoadBuilding{PlayerID: p.ID, RoadsRemaining: n}
		ap.emit(Event{Type: EventPlacementModeStarted, PlayerID: p.ID, Data: map[string]any{"mode": CardRoadBuilding, "roads": n}})

	case CardYearOfPlenty:
		pick := ap.a.Payload.Resources
		if !pick.NonNegative() || pick.Total() != 2 {
			return reject(ErrInvalidAction, "choose exactly two resources")
		}
		if !s.Bank.Covers(pick) {
			return reject(ErrIllegalAction, "the bank cannot supply that")
		}
		ap.emit(played)
		ap.fromBank(p, pick)
		ap.emit(Event{Type: EventYearOfPlenty, PlayerID: p.ID, Data: map[string]any{"resources": pick}})

	case CardMonopoly:
		res := ap.a.Payload.Resource
		if !res.Valid() {
			return reject(ErrInvalidAction, "a valid resource is required")
		}
		ap.emit(played)
		collected := 0
		for i := range s.Players {
			other := &s.Players[i]
			if other.ID == p.ID {
				continue
			}
			n := other.Resources.Get(res)
			other.Resources = other.Resources.Minus(Single(res, n))
			collected += n
		}
		p.Resources = p.Resources.Plus(Single(res, collected))
		ap.emit(Event{Type: EventMonopoly, PlayerID: p.ID, Data: map[string]any{"resource": res, "amount": collected}})
	}

	p.DevCards = append(p.DevCards[:idx], p.DevCards[idx+1:]...)
	s.DiscardPile = append(s.DiscardPile, kind)
	s.DevCardPlayedThisTurn = true
	return nil
}
