package game

import "time"

func (ap *applier) bankTrade() error {
	return ap.tradeWithBank(4, EventBankTrade)
}

func (ap *applier) portTrade() error {
	give := ap.a.Payload.Give
	if !give.Valid() {
		return reject(ErrInvalidAction, "a valid resource to give is required")
	}
	ratio := TradeRatio(ap.s, ap.a.PlayerID, give)
	if ratio == 4 {
		return reject(ErrIllegalAction, "no port for %s", give)
	}
	return ap.tradeWithBank(ratio, EventPortTrade)
}

func (ap *applier) tradeWithBank(ratio int, evt EventType) error {
	pl := ap.a.Payload
	amount := pl.Amount
	if amount == 0 {
		amount = 1
	}
	if amount < 0 {
		return reject(ErrInvalidAction, "amount must be positive")
	}
	if !pl.Give.Valid() || !pl.Receive.Valid() {
		return reject(ErrInvalidAction, "valid give and receive resources are required")
	}
	if pl.Give == pl.Receive {
		return reject(ErrInvalidAction, "cannot trade a resource for itself")
	}
	p := ap.actor()
	cost := Single(pl.Give, ratio*amount)
	gain := Single(pl.Receive, amount)
	if !p.Resources.Covers(cost) {
		return reject(ErrIllegalAction, "need %d %s", ratio*amount, pl.Give)
	}
	if !ap.s.Bank.Covers(gain) {
		return reject(ErrIllegalAction, "the bank is out of %s", pl.Receive)
	}
	ap.toBank(p, cost)
	ap.fromBank(p, gain)
	ap.emit(Event{Type: evt, PlayerID: p.ID, Data: map[string]any{
		"give": pl.Give, "receive": pl.Receive, "ratio": ratio, "amount": amount,
	}})
	return nil
}

func (ap *applier) createTradeOffer() error {
	s := ap.s
	pl := ap.a.Payload
	if pl.TradeID == "" {
		return reject(ErrInvalidAction, "trade id is required")
	}
	if s.Trade(pl.TradeID) != nil {
		return reject(ErrInvalidAction, "trade %s already exists", pl.TradeID)
	}
	if !pl.Offer.NonNegative() || !pl.Request.NonNegative() || pl.Offer.IsZero() || pl.Request.IsZero() {
		return reject(ErrInvalidAction, "offer and request must both name cards")
	}
	if pl.TargetID != "" {
		if pl.TargetID == ap.a.PlayerID || s.Player(pl.TargetID) == nil {
			return reject(ErrInvalidAction, "invalid trade target %q", pl.TargetID)
		}
	}
	p := ap.actor()
	if !p.Resources.Covers(pl.Offer) {
		return reject(ErrIllegalAction, "cannot offer cards you do not hold")
	}

	t := TradeOffer{
		ID:          pl.TradeID,
		InitiatorID: p.ID,
		TargetID:    pl.TargetID,
		Offer:       pl.Offer,
		Request:     pl.Request,
		CreatedAt:   ap.a.Timestamp,
		ExpiresAt:   ap.a.Timestamp.Add(s.Settings.TradeTTL),
	}
	s.ActiveTrades = append(s.ActiveTrades, t)
	ap.emit(Event{Type: EventTradeOffered, PlayerID: p.ID, Data: map[string]any{"trade": t}})
	return nil
}

// respondable finds a trade the actor may answer.
func (ap *applier) respondable() (*TradeOffer, error) {
	t := ap.s.Trade(ap.a.Payload.TradeID)
	if t == nil {
		return nil, reject(ErrIllegalAction, "trade %q not found", ap.a.Payload.TradeID)
	}
	if !ap.a.Timestamp.IsZero() && t.Expired(ap.a.Timestamp) {
		return nil, reject(ErrIllegalAction, "trade %s has expired", t.ID)
	}
	if t.InitiatorID == ap.a.PlayerID {
		return nil, reject(ErrIllegalAction, "cannot answer your own trade")
	}
	if !t.IsOpen() && t.TargetID != ap.a.PlayerID {
		return nil, reject(ErrIllegalAction, "trade %s was offered to another player", t.ID)
	}
	if t.rejected(ap.a.PlayerID) {
		return nil, reject(ErrIllegalAction, "trade %s already rejected", t.ID)
	}
	return t, nil
}

func (ap *applier) acceptTrade() error {
	t, err := ap.respondable()
	if err != nil {
		return err
	}
	initiator := ap.s.Player(t.InitiatorID)
	acceptor := ap.actor()
	if !initiator.Resources.Covers(t.Offer) {
		return reject(ErrIllegalAction, "%s no longer holds the offered cards", initiator.ID)
	}
	if !acceptor.Resources.Covers(t.Request) {
		return reject(ErrIllegalAction, "not enough resources to accept")
	}
	initiator.Resources = initiator.Resources.Minus(t.Offer).Plus(t.Request)
	acceptor.Resources = acceptor.Resources.Minus(t.Request).Plus(t.Offer)

	done := *t
	ap.s.removeTrade(done.ID)
	ap.emit(Event{Type: EventTradeAccepted, PlayerID: acceptor.ID, Data: map[string]any{
		"tradeId": done.ID, "initiatorId": done.InitiatorID, "acceptedBy": acceptor.ID,
		"offer": done.Offer, "request": done.Request,
	}})
	return nil
}

// rejectTrade closes a targeted offer outright; an open offer closes once
// every other player has turned it down.
func (ap *applier) rejectTrade() error {
	t, err := ap.respondable()
	if err != nil {
		return err
	}
	closed := true
	if t.IsOpen() {
		t.RejectedBy = append(t.RejectedBy, ap.a.PlayerID)
		closed = len(t.RejectedBy) >= len(ap.s.Players)-1
	}
	id := t.ID
	if closed {
		ap.s.removeTrade(id)
	}
	ap.emit(Event{Type: EventTradeRejected, PlayerID: ap.a.PlayerID, Data: map[string]any{"tradeId": id, "closed": closed}})
	return nil
}

func (ap *applier) cancelTrade() error {
	t := ap.s.Trade(ap.a.Payload.TradeID)
	if t == nil {
		return reject(ErrIllegalAction, "trade %q not found", ap.a.Payload.TradeID)
	}
	if t.InitiatorID != ap.a.PlayerID {
		return reject(ErrIllegalAction, "only the initiator may cancel a trade")
	}
	id := t.ID
	ap.s.removeTrade(id)
	ap.emit(Event{Type: EventTradeCancelled, PlayerID: ap.a.PlayerID, Data: map[string]any{"tradeId": id, "reason": "cancelled"}})
	return nil
}

// PruneExpiredTrades drops every trade at or past its expiry. It returns s
// itself and false when nothing expired.
func PruneExpiredTrades(s *GameState, now time.Time) (*GameState, []Event, bool) {
	var expired []TradeOffer
	for _, t := range s.ActiveTrades {
		if t.Expired(now) {
			expired = append(expired, t)
		}
	}
	if len(expired) == 0 {
		return s, nil, false
	}
	next := s.Clone()
	events := make([]Event, 0, len(expired))
	for _, t := range expired {
		next.removeTrade(t.ID)
		events = append(events, Event{Type: EventTradeExpired, PlayerID: t.InitiatorID, Data: map[string]any{"tradeId": t.ID}})
	}
	next.UpdatedAt = now.UTC()
	return next, events, true
}
