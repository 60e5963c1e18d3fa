package game

// Apply validates a against s and returns the successor state together with
// the events the action produced. s is never modified: on rejection the
// caller's state is exactly as it was, and on success the returned state is
// a fresh value. Apply is deterministic for a given (s, a).
func Apply(s *GameState, a Action) (*GameState, []Event, error) {
	if err := CheckPreconditions(s, a); err != nil {
		return nil, nil, err
	}

	ap := &applier{s: s.Clone(), a: a}
	var err error
	switch a.Type {
	case ActionRoll:
		err = ap.roll()
	case ActionDiscard:
		err = ap.discard()
	case ActionMoveRobber:
		err = ap.moveRobber()
	case ActionStealResource:
		err = ap.steal()
	case ActionBuildRoad:
		err = ap.buildRoad()
	case ActionBuildSettlement:
		err = ap.buildSettlement()
	case ActionBuildCity:
		err = ap.buildCity()
	case ActionBuyCard:
		err = ap.buyCard()
	case ActionPlayCard:
		err = ap.playCard()
	case ActionBankTrade:
		err = ap.bankTrade()
	case ActionPortTrade:
		err = ap.portTrade()
	case ActionCreateTradeOffer:
		err = ap.createTradeOffer()
	case ActionAcceptTrade:
		err = ap.acceptTrade()
	case ActionRejectTrade:
		err = ap.rejectTrade()
	case ActionCancelTrade:
		err = ap.cancelTrade()
	case ActionEndTurn:
		err = ap.endTurn()
	default:
		err = reject(ErrInvalidAction, "unknown action type %q", a.Type)
	}
	if err != nil {
		return nil, nil, err
	}

	ap.refreshScores()
	ap.checkVictory()
	ap.s.DevelopmentDeckSize = len(ap.s.DevelopmentDeck)
	ap.s.rememberAction(a.ID)
	if !a.Timestamp.IsZero() {
		ap.s.UpdatedAt = a.Timestamp
	}
	return ap.s, ap.events, nil
}

// applier mutates a private clone while one action is applied.
type applier struct {
	s      *GameState
	a      Action
	events []Event
}

func (ap *applier) emit(e Event) {
	ap.events = append(ap.events, e)
}

func (ap *applier) actor() *Player {
	return ap.s.Player(ap.a.PlayerID)
}

func (ap *applier) setPhase(p Phase) {
	if ap.s.Phase == p {
		return
	}
	ap.emit(Event{Type: EventPhaseChanged, Data: map[string]any{"from": ap.s.Phase, "to": p}})
	ap.s.Phase = p
}

func (ap *applier) toBank(p *Player, r Resources) {
	p.Resources = p.Resources.Minus(r)
	ap.s.Bank = ap.s.Bank.Plus(r)
}

func (ap *applier) fromBank(p *Player, r Resources) {
	p.Resources = p.Resources.Plus(r)
	ap.s.Bank = ap.s.Bank.Minus(r)
}

func (ap *applier) pay(p *Player, cost Resources, what string) error {
	if !p.Resources.Covers(cost) {
		return reject(ErrIllegalAction, "not enough resources to %s", what)
	}
	ap.toBank(p, cost)
	return nil
}

func (ap *applier) checkVictory() {
	s := ap.s
	if s.Phase == PhaseEnded || s.Phase.IsSetup() {
		return
	}
	cur := s.Player(s.CurrentPlayer)
	if cur == nil || cur.VictoryPoints < s.Settings.VictoryPoints {
		return
	}
	s.Winner = cur.ID
	s.PendingRoadBuilding = nil
	ap.setPhase(PhaseEnded)
	scores := make(map[string]int, len(s.Players))
	for _, p := range s.Players {
		scores[p.ID] = p.VictoryPoints
	}
	ap.emit(Event{Type: EventGameEnded, PlayerID: cur.ID, Data: map[string]any{"winner": cur.ID, "scores": scores}})
}

func (ap *applier) roll() error {
	d1, d2 := ap.a.Payload.Die1, ap.a.Payload.Die2
	if d1 < 1 || d1 > 6 || d2 < 1 || d2 > 6 {
		return reject(ErrInvalidAction, "dice faces must be 1-6, got %d and %d", d1, d2)
	}
	sum := d1 + d2
	ap.s.Dice = &Dice{Die1: d1, Die2: d2, Sum: sum, RolledAt: ap.a.Timestamp}
	ap.emit(Event{Type: EventDiceRolled, PlayerID: ap.a.PlayerID, Data: map[string]any{"die1": d1, "die2": d2, "sum": sum}})

	if sum == 7 {
		ap.startRobber(PhaseActions)
		return nil
	}
	ap.distribute(sum)
	ap.setPhase(PhaseActions)
	return nil
}

// distribute pays out every hex showing sum. When the bank cannot cover all
// claims on a resource nobody receives it.
func (ap *applier) distribute(sum int) {
	s := ap.s
	claims := map[string]Resources{}
	for _, h := range s.Board.Hexes {
		if h.Number != sum || h.ID == s.Board.RobberHex {
			continue
		}
		res, ok := h.Terrain.Produces()
		if !ok {
			continue
		}
		for _, v := range h.Vertices {
			vx := s.Board.Vertices[v]
			n := 0
			switch vx.Building {
			case BuildingSettlement:
				n = 1
			case BuildingCity:
				n = 2
			default:
				continue
			}
			c := claims[vx.Owner]
			c.add(res, n)
			claims[vx.Owner] = c
		}
	}

	gains := map[string]Resources{}
	for _, res := range AllResources {
		total := 0
		for _, id := range s.TurnOrder {
			total += claims[id].Get(res)
		}
		if total == 0 || total > s.Bank.Get(res) {
			continue
		}
		for _, id := range s.TurnOrder {
			n := claims[id].Get(res)
			if n == 0 {
				continue
			}
			ap.fromBank(s.Player(id), Single(res, n))
			g := gains[id]
			g.add(res, n)
			gains[id] = g
		}
	}
	if len(gains) > 0 {
		ap.emit(Event{Type: EventResourcesDistributed, Data: map[string]any{"roll": sum, "gains": gains}})
	}
}

// startRobber handles a seven or a knight. Players over the discard limit
// owe half their hand first; the robber phase returns to ret afterwards.
func (ap *applier) startRobber(ret Phase) {
	s := ap.s
	s.RobberReturnPhase = ret
	owed := map[string]int{}
	for i := range s.Players {
		p := &s.Players[i]
		if total := p.Resources.Total(); total > s.Settings.DiscardLimit {
			p.PendingDiscard = total / 2
			owed[p.ID] = p.PendingDiscard
		}
	}
	if len(owed) > 0 {
		ap.setPhase(PhaseDiscard)
		ap.emit(Event{Type: EventDiscardRequired, Data: map[string]any{"owed": owed}})
		return
	}
	ap.setPhase(PhaseMoveRobber)
}

func (ap *applier) discard() error {
	p := ap.actor()
	if p.PendingDiscard == 0 {
		return reject(ErrIllegalAction, "no discard owed")
	}
	r := ap.a.Payload.Resources
	if !r.NonNegative() {
		return reject(ErrInvalidAction, "discard counts must not be negative")
	}
	if r.Total() != p.PendingDiscard {
		return reject(ErrIllegalAction, "must discard exactly %d cards, got %d", p.PendingDiscard, r.Total())
	}
	if !p.Resources.Covers(r) {
		return reject(ErrIllegalAction, "cannot discard cards you do not hold")
	}
	ap.toBank(p, r)
	p.PendingDiscard = 0
	ap.emit(Event{Type: EventResourcesDiscarded, PlayerID: p.ID, Data: map[string]any{"resources": r}})

	for _, other := range ap.s.Players {
		if other.PendingDiscard > 0 {
			return nil
		}
	}
	ap.setPhase(PhaseMoveRobber)
	return nil
}

func (ap *applier) moveRobber() error {
	s := ap.s
	h := ap.a.Payload.HexID
	if h == nil || *h < 0 || *h >= len(s.Board.Hexes) {
		return reject(ErrInvalidAction, "a valid hex is required")
	}
	if *h == s.Board.RobberHex {
		return reject(ErrIllegalAction, "the robber must move to a different hex")
	}
	s.Board.RobberHex = *h
	victims := RobberVictimsAt(s, *h, ap.a.PlayerID)
	ap.emit(Event{Type: EventRobberMoved, PlayerID: ap.a.PlayerID, Data: map[string]any{"hexId": *h, "victims": victims}})
	if len(victims) > 0 {
		s.RobberVictims = victims
		ap.setPhase(PhaseSteal)
		return nil
	}
	ap.finishRobber()
	return nil
}

func (ap *applier) finishRobber() {
	next := ap.s.RobberReturnPhase
	if next == "" {
		next = PhaseActions
	}
	ap.s.RobberVictims = nil
	ap.s.RobberReturnPhase = ""
	ap.setPhase(next)
}

func (ap *applier) steal() error {
	s := ap.s
	victimID := ap.a.Payload.VictimID
	eligible := false
	for _, id := range s.RobberVictims {
		if id == victimID {
			eligible = true
		}
	}
	if !eligible {
		return reject(ErrIllegalAction, "cannot steal from %q", victimID)
	}
	idx := ap.a.Payload.StealIndex
	if idx == nil || *idx < 0 {
		return reject(ErrInvalidAction, "steal index is required")
	}
	victim := s.Player(victimID)
	total := victim.Resources.Total()
	if total == 0 {
		return reject(ErrIllegalAction, "%s has no cards", victimID)
	}

	pick := *idx % total
	var taken Resource
	for _, r := range AllResources {
		n := victim.Resources.Get(r)
		if pick < n {
			taken = r
			break
		}
		pick -= n
	}
	card := Single(taken, 1)
	victim.Resources = victim.Resources.Minus(card)
	thief := ap.actor()
	thief.Resources = thief.Resources.Plus(card)
	ap.emit(Event{Type: EventResourceStolen, PlayerID: thief.ID, Data: map[string]any{"victim": victimID, "resource": taken}})
	ap.finishRobber()
	return nil
}

func (ap *applier) endTurn() error {
	s := ap.s
	if s.Phase.IsSetup() {
		if s.SetupSettlement < 0 || !s.SetupRoadPlaced {
			return reject(ErrIllegalAction, "place a settlement and a road before ending the turn")
		}
		ap.advanceSetup()
		return nil
	}

	for _, t := range s.ActiveTrades {
		ap.emit(Event{Type: EventTradeCancelled, PlayerID: t.InitiatorID, Data: map[string]any{"tradeId": t.ID, "reason": "turnEnded"}})
	}
	s.ActiveTrades = []TradeOffer{}

	prev := s.CurrentPlayer
	next := s.TurnOrder[(s.Seat(prev)+1)%len(s.TurnOrder)]
	s.Turn++
	s.CurrentPlayer = next
	s.Dice = nil
	s.DevCardPlayedThisTurn = false
	ap.emit(Event{Type: EventTurnEnded, PlayerID: prev, Data: map[string]any{"turn": s.Turn - 1}})
	ap.setPhase(PhaseRoll)
	ap.emit(Event{Type: EventTurnStarted, PlayerID: next, Data: map[string]any{"turn": s.Turn}})
	return nil
}

// advanceSetup walks the snake order: forward through setup1, the last seat
// places twice, then backward through setup2 before the first roll.
func (ap *applier) advanceSetup() {
	s := ap.s
	prev := s.CurrentPlayer
	idx := s.Seat(prev)
	last := len(s.TurnOrder) - 1

	var nextPhase Phase
	next := idx
	switch s.Phase {
	case PhaseSetup1:
		nextPhase = PhaseSetup1
		if idx < last {
			next = idx + 1
		} else {
			nextPhase = PhaseSetup2
		}
	case PhaseSetup2:
		nextPhase = PhaseSetup2
		if idx > 0 {
			next = idx - 1
		} else {
			nextPhase = PhaseRoll
			next = 0
		}
	}

	s.Turn++
	s.CurrentPlayer = s.TurnOrder[next]
	s.SetupSettlement = -1
	s.SetupRoadPlaced = false
	ap.emit(Event{Type: EventTurnEnded, PlayerID: prev, Data: map[string]any{"turn": s.Turn - 1}})
	ap.setPhase(nextPhase)
	ap.emit(Event{Type: EventTurnStarted, PlayerID: s.CurrentPlayer, Data: map[string]any{"turn": s.Turn}})
}
