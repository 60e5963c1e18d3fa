package ai

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"

	"github.com/google/uuid"
	"github.com/hexsettle/backend/internal/game"
)

// Decision is what a seat should submit next. TurnComplete means the seat
// has nothing more to do until the game asks it again.
type Decision struct {
	Actions      []game.Action
	TurnComplete bool
}

// Decider picks moves for an automated seat. It must not modify s.
type Decider interface {
	Decide(ctx context.Context, s *game.GameState, playerID string, cfg Config) (Decision, error)
}

// maxPlan bounds the actions planned in one decision.
const maxPlan = 16

// HeuristicDecider plans moves from the rules' legal move lists, scoring
// board positions by production and the seat's personality. It plans ahead
// on a private copy of the state and stops at anything that needs the
// engine's dice or card draw.
type HeuristicDecider struct{}

func NewHeuristicDecider() *HeuristicDecider { return &HeuristicDecider{} }

func (d *HeuristicDecider) Decide(ctx context.Context, s *game.GameState, playerID string, cfg Config) (Decision, error) {
	if s.Player(playerID) == nil {
		return Decision{}, fmt.Errorf("player %s is not in game %s", playerID, s.ID)
	}
	p := newPlanner(s, playerID, cfg)

	var out Decision
	for len(out.Actions) < maxPlan {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		a, ok := p.next()
		if !ok {
			out.TurnComplete = true
			break
		}
		a.ID = uuid.NewString()
		a.PlayerID = playerID
		a.ExpectedTurn = game.Int(p.sim.Turn)

		if a.Type == game.ActionRoll || a.Type == game.ActionStealResource {
			out.Actions = append(out.Actions, a)
			break
		}
		planned := a
		planned.Timestamp = p.sim.UpdatedAt
		next, _, err := game.Apply(p.sim, planned)
		if err != nil {
			if len(out.Actions) == 0 {
				return out, fmt.Errorf("planned %s is not legal: %w", a.Type, err)
			}
			break
		}
		out.Actions = append(out.Actions, a)
		p.sim = next
		p.note(a)
		if a.Type == game.ActionEndTurn || !needsToAct(p.sim, playerID) {
			out.TurnComplete = true
			break
		}
	}
	return out, nil
}

var personalityWeights = map[Personality]map[game.Resource]float64{
	PersonalityBalanced: {game.Brick: 1, game.Lumber: 1, game.Wool: 1, game.Grain: 1, game.Ore: 1},
	PersonalityBuilder:  {game.Brick: 1.3, game.Lumber: 1.3, game.Wool: 0.9, game.Grain: 1.1, game.Ore: 0.9},
	PersonalityTrader:   {game.Brick: 1, game.Lumber: 1, game.Wool: 1, game.Grain: 1, game.Ore: 1},
	PersonalityAggressive: {
		game.Brick: 0.9, game.Lumber: 0.9, game.Wool: 1.2, game.Grain: 1.2, game.Ore: 1.3,
	},
}

// pips is the number of dice combinations that roll each token.
var pips = map[int]float64{2: 1, 3: 2, 4: 3, 5: 4, 6: 5, 8: 5, 9: 4, 10: 3, 11: 2, 12: 1}

type planner struct {
	sim      *game.GameState
	playerID string
	cfg      Config
	weights  map[game.Resource]float64
	rng      *rand.Rand

	trades int
	roads  int
}

func newPlanner(s *game.GameState, playerID string, cfg Config) *planner {
	w, ok := personalityWeights[cfg.Personality]
	if !ok {
		w = personalityWeights[PersonalityBalanced]
	}
	h := fnv.New64a()
	fmt.Fprintf(h, "%s/%d/%s", s.ID, s.Version, playerID)
	return &planner{
		sim:      s,
		playerID: playerID,
		cfg:      cfg,
		weights:  w,
		rng:      rand.New(rand.NewSource(int64(h.Sum64()))),
	}
}

func (p *planner) note(a game.Action) {
	switch a.Type {
	case game.ActionBankTrade, game.ActionPortTrade:
		p.trades++
	case game.ActionBuildRoad:
		p.roads++
	}
}

func (p *planner) me() *game.Player { return p.sim.Player(p.playerID) }

func (p *planner) next() (game.Action, bool) {
	s := p.sim
	switch {
	case s.Phase == game.PhaseEnded:
		return game.Action{}, false
	case s.Phase == game.PhaseDiscard:
		if owed := p.me().PendingDiscard; owed > 0 {
			return game.Action{Type: game.ActionDiscard, Payload: game.Payload{Resources: p.discardBundle(owed)}}, true
		}
		return game.Action{}, false
	case s.CurrentPlayer != p.playerID:
		return p.respond()
	}

	switch s.Phase {
	case game.PhaseSetup1, game.PhaseSetup2:
		return p.setupMove()
	case game.PhaseRoll:
		if p.wantsKnight() {
			return playCard(game.CardKnight), true
		}
		return game.Action{Type: game.ActionRoll}, true
	case game.PhaseMoveRobber:
		return game.Action{Type: game.ActionMoveRobber, Payload: game.Payload{HexID: game.Int(p.robberTarget())}}, true
	case game.PhaseSteal:
		if len(s.RobberVictims) == 0 {
			return game.Action{}, false
		}
		return game.Action{Type: game.ActionStealResource, Payload: game.Payload{VictimID: p.richest(s.RobberVictims)}}, true
	case game.PhaseActions:
		return p.turnMove()
	}
	return game.Action{}, false
}

func playCard(kind game.DevCardKind) game.Action {
	return game.Action{Type: game.ActionPlayCard, Payload: game.Payload{Card: kind}}
}

func (p *planner) setupMove() (game.Action, bool) {
	s := p.sim
	switch {
	case s.SetupSettlement < 0:
		v, ok := p.pickVertex(game.LegalSettlementVertices(s, p.playerID))
		if !ok {
			return game.Action{}, false
		}
		return game.Action{Type: game.ActionBuildSettlement, Payload: game.Payload{VertexID: game.Int(v)}}, true
	case !s.SetupRoadPlaced:
		e, ok := p.pickEdge(game.LegalRoadEdges(s, p.playerID))
		if !ok {
			return game.Action{}, false
		}
		return game.Action{Type: game.ActionBuildRoad, Payload: game.Payload{EdgeID: game.Int(e)}}, true
	}
	return game.Action{Type: game.ActionEndTurn}, true
}

func (p *planner) turnMove() (game.Action, bool) {
	s := p.sim
	me := p.me()

	if s.PendingRoadBuilding != nil {
		e, ok := p.pickEdge(game.LegalRoadEdges(s, p.playerID))
		if !ok {
			return game.Action{}, false
		}
		return game.Action{Type: game.ActionBuildRoad, Payload: game.Payload{EdgeID: game.Int(e)}}, true
	}

	if a, ok := p.cardMove(); ok {
		return a, true
	}

	if me.Resources.Covers(game.CostCity) && me.CitiesLeft > 0 {
		if v, ok := p.pickVertex(game.LegalCityVertices(s, p.playerID)); ok {
			return game.Action{Type: game.ActionBuildCity, Payload: game.Payload{VertexID: game.Int(v)}}, true
		}
	}

	spots := game.LegalSettlementVertices(s, p.playerID)
	if me.Resources.Covers(game.CostSettlement) && me.SettlementsLeft > 0 {
		if v, ok := p.pickVertex(spots); ok {
			return game.Action{Type: game.ActionBuildSettlement, Payload: game.Payload{VertexID: game.Int(v)}}, true
		}
	}

	if me.Resources.Covers(game.CostRoad) && me.RoadsLeft > 0 && p.roads < 2 {
		expand := len(spots) == 0 || (p.cfg.Personality == PersonalityAggressive && p.roads == 0)
		if expand {
			if e, ok := p.pickEdge(game.LegalRoadEdges(s, p.playerID)); ok {
				return game.Action{Type: game.ActionBuildRoad, Payload: game.Payload{EdgeID: game.Int(e)}}, true
			}
		}
	}

	if me.Resources.Covers(game.CostDevCard) && s.DevelopmentDeckSize > 0 && p.wantsCard() {
		return game.Action{Type: game.ActionBuyCard}, true
	}

	if a, ok := p.bankMove(); ok {
		return a, true
	}
	return game.Action{Type: game.ActionEndTurn}, true
}

func (p *planner) wantsCard() bool {
	me := p.me()
	switch p.cfg.Personality {
	case PersonalityAggressive:
		return true
	case PersonalityBuilder:
		return me.SettlementsLeft == 0 && me.CitiesLeft == 0
	}
	return p.cfg.Difficulty == DifficultyHard || me.Resources.Total() > p.sim.Settings.DiscardLimit
}

// goal is the next build the seat is saving for.
func (p *planner) goal() game.Resources {
	me := p.me()
	switch {
	case me.CitiesLeft > 0 && len(game.LegalCityVertices(p.sim, p.playerID)) > 0:
		return game.CostCity
	case me.SettlementsLeft > 0 && len(game.LegalSettlementVertices(p.sim, p.playerID)) > 0:
		return game.CostSettlement
	case me.RoadsLeft > 0:
		return game.CostRoad
	}
	return game.CostDevCard
}

func (p *planner) maxTrades() int {
	n := map[Difficulty]int{DifficultyEasy: 0, DifficultyMedium: 1, DifficultyHard: 2}[p.cfg.Difficulty]
	if p.cfg.Personality == PersonalityTrader {
		n += 2
	}
	return n
}

// bankMove trades a surplus resource for one the current goal lacks.
func (p *planner) bankMove() (game.Action, bool) {
	if p.trades >= p.maxTrades() {
		return game.Action{}, false
	}
	me := p.me()
	goal := p.goal()
	missing := me.Resources.Missing(goal)
	if missing.IsZero() {
		return game.Action{}, false
	}
	var want game.Resource
	for _, r := range game.AllResources {
		if missing.Get(r) > 0 && p.sim.Bank.Get(r) > 0 {
			want = r
			break
		}
	}
	if want == "" {
		return game.Action{}, false
	}
	var give game.Resource
	bestSurplus := 0
	ratio := 4
	for _, r := range game.AllResources {
		if r == want {
			continue
		}
		rr := game.TradeRatio(p.sim, p.playerID, r)
		surplus := me.Resources.Get(r) - goal.Get(r)
		if surplus >= rr && surplus-rr >= bestSurplus {
			give, bestSurplus, ratio = r, surplus-rr, rr
		}
	}
	if give == "" {
		return game.Action{}, false
	}
	t := game.ActionBankTrade
	if ratio < 4 {
		t = game.ActionPortTrade
	}
	return game.Action{Type: t, Payload: game.Payload{Give: give, Receive: want, Amount: 1}}, true
}

func (p *planner) cardMove() (game.Action, bool) {
	if p.cfg.Difficulty == DifficultyEasy && p.rng.Intn(2) == 0 {
		return game.Action{}, false
	}
	s := p.sim
	me := p.me()
	for _, kind := range game.PlayableCards(s, p.playerID) {
		switch kind {
		case game.CardMonopoly:
			r, n := p.monopolyTarget()
			if n >= 2 {
				a := playCard(kind)
				a.Payload.Resource = r
				return a, true
			}
		case game.CardYearOfPlenty:
			if pick, ok := p.plentyPick(); ok {
				a := playCard(kind)
				a.Payload.Resources = pick
				return a, true
			}
		case game.CardRoadBuilding:
			if me.RoadsLeft > 0 && len(game.LegalRoadEdges(s, p.playerID)) > 0 {
				return playCard(kind), true
			}
		case game.CardKnight:
			if p.wantsKnight() {
				return playCard(kind), true
			}
		}
	}
	return game.Action{}, false
}

// wantsKnight is true when a playable knight would move the robber off the
// seat's own production, or always for aggressive seats.
func (p *planner) wantsKnight() bool {
	playable := false
	for _, k := range game.PlayableCards(p.sim, p.playerID) {
		if k == game.CardKnight {
			playable = true
		}
	}
	if !playable {
		return false
	}
	return p.cfg.Personality == PersonalityAggressive || p.robbed(p.playerID)
}

// robbed reports whether the robber sits on a hex playerID builds on.
func (p *planner) robbed(playerID string) bool {
	b := p.sim.Board
	for _, v := range b.Hexes[b.RobberHex].Vertices {
		if b.Vertices[v].Owner == playerID && b.Vertices[v].Building != game.BuildingNone {
			return true
		}
	}
	return false
}

func (p *planner) monopolyTarget() (game.Resource, int) {
	var best game.Resource = game.AllResources[0]
	bestN := -1
	for _, r := range game.AllResources {
		n := 0
		for _, pl := range p.sim.Players {
			if pl.ID != p.playerID {
				n += pl.Resources.Get(r)
			}
		}
		if n > bestN {
			best, bestN = r, n
		}
	}
	return best, bestN
}

func (p *planner) plentyPick() (game.Resources, bool) {
	missing := p.me().Resources.Missing(p.goal())
	var pick game.Resources
	bank := p.sim.Bank
	n := 0
	for _, r := range game.AllResources {
		for missing.Get(r) > 0 && n < 2 && bank.Minus(pick).Get(r) > 0 {
			pick = pick.Plus(game.Single(r, 1))
			missing = missing.Minus(game.Single(r, 1))
			n++
		}
	}
	if n == 0 {
		return game.Resources{}, false
	}
	for _, r := range game.AllResources {
		for n < 2 && bank.Minus(pick).Get(r) > 0 {
			pick = pick.Plus(game.Single(r, 1))
			n++
		}
	}
	return pick, n == 2
}

// respond answers the first trade offer waiting on the seat.
func (p *planner) respond() (game.Action, bool) {
	pending := game.PendingResponses(p.sim, p.playerID)
	if len(pending) == 0 {
		return game.Action{}, false
	}
	t := pending[0]
	a := game.Action{Type: game.ActionRejectTrade, Payload: game.Payload{TradeID: t.ID}}
	if p.acceptable(t) {
		a.Type = game.ActionAcceptTrade
	}
	return a, true
}

func (p *planner) acceptable(t game.TradeOffer) bool {
	me := p.me()
	initiator := p.sim.Player(t.InitiatorID)
	if initiator == nil || !initiator.Resources.Covers(t.Offer) || !me.Resources.Covers(t.Request) {
		return false
	}
	if p.cfg.Personality == PersonalityAggressive && initiator.VictoryPoints > me.VictoryPoints {
		return false
	}
	if p.cfg.Difficulty == DifficultyEasy {
		return p.rng.Intn(2) == 0
	}
	threshold := 1.0
	if p.cfg.Personality == PersonalityTrader {
		threshold = 0.8
	}
	gain := p.value(t.Offer)
	// cards the current goal lacks are worth more
	missing := me.Resources.Missing(p.goal())
	for _, r := range game.AllResources {
		gain += 0.5 * float64(min(missing.Get(r), t.Offer.Get(r)))
	}
	return gain >= threshold*p.value(t.Request)
}

func (p *planner) value(r game.Resources) float64 {
	v := 0.0
	for _, res := range game.AllResources {
		v += float64(r.Get(res)) * p.weights[res]
	}
	return v
}

// discardBundle gives up n cards, most plentiful and least valued first.
func (p *planner) discardBundle(n int) game.Resources {
	hand := p.me().Resources
	var out game.Resources
	for ; n > 0; n-- {
		var pick game.Resource
		best := -1.0
		for _, r := range game.AllResources {
			left := hand.Get(r) - out.Get(r)
			if left == 0 {
				continue
			}
			score := float64(left) / p.weights[r]
			if score > best {
				pick, best = r, score
			}
		}
		if pick == "" {
			break
		}
		out = out.Plus(game.Single(pick, 1))
	}
	return out
}

// robberTarget picks the hex that costs opponents the most production,
// leaning on the leader and never the seat's own hexes when avoidable.
func (p *planner) robberTarget() int {
	s := p.sim
	b := s.Board
	best, bestScore := -1, -1e9
	for _, h := range b.Hexes {
		if h.ID == b.RobberHex {
			continue
		}
		score := 0.0
		for _, v := range h.Vertices {
			vx := b.Vertices[v]
			if vx.Building == game.BuildingNone {
				continue
			}
			weight := 1.0
			if vx.Building == game.BuildingCity {
				weight = 2
			}
			if vx.Owner == p.playerID {
				score -= 10 * weight
				continue
			}
			owner := s.Player(vx.Owner)
			score += weight * (1 + 0.25*float64(owner.VictoryPoints))
			if owner.Resources.Total() > 0 {
				score += 0.5
			}
		}
		score *= 1 + pips[h.Number]/5
		if p.cfg.Difficulty == DifficultyEasy {
			score = p.rng.Float64()
		}
		if score > bestScore {
			best, bestScore = h.ID, score
		}
	}
	return best
}

func (p *planner) richest(ids []string) string {
	best, n := ids[0], -1
	for _, id := range ids {
		if c := p.sim.Player(id).Resources.Total(); c > n {
			best, n = id, c
		}
	}
	return best
}

func (p *planner) vertexScore(v int) float64 {
	b := p.sim.Board
	vx := b.Vertices[v]
	score := 0.0
	kinds := map[game.Resource]bool{}
	for _, h := range vx.Hexes {
		hex := b.Hexes[h]
		r, ok := hex.Terrain.Produces()
		if !ok {
			continue
		}
		val := pips[hex.Number] * p.weights[r]
		if h == b.RobberHex {
			val /= 2
		}
		score += val
		kinds[r] = true
	}
	score += 0.5 * float64(len(kinds))
	if vx.Port != game.PortNone {
		if p.cfg.Personality == PersonalityTrader {
			score += 2
		} else {
			score += 0.5
		}
	}
	return score
}

// open reports whether a settlement could ever go on v.
func (p *planner) open(v int) bool {
	b := p.sim.Board
	if b.Vertices[v].Building != game.BuildingNone {
		return false
	}
	for _, n := range b.Vertices[v].Neighbors {
		if b.Vertices[n].Building != game.BuildingNone {
			return false
		}
	}
	return true
}

func (p *planner) edgeScore(e int) float64 {
	b := p.sim.Board
	best := 0.0
	for _, v := range b.Edges[e].Vertices {
		potential := 0.0
		if p.open(v) {
			potential = p.vertexScore(v)
		}
		for _, n := range b.Vertices[v].Neighbors {
			if p.open(n) {
				potential = max(potential, 0.5*p.vertexScore(n))
			}
		}
		best = max(best, potential)
	}
	return best
}

func (p *planner) pickVertex(cands []int) (int, bool) {
	return p.pick(cands, p.vertexScore)
}

func (p *planner) pickEdge(cands []int) (int, bool) {
	return p.pick(cands, p.edgeScore)
}

// pick chooses among candidates by difficulty: easy at random, medium among
// the top three, hard the best.
func (p *planner) pick(cands []int, score func(int) float64) (int, bool) {
	if len(cands) == 0 {
		return 0, false
	}
	if p.cfg.Difficulty == DifficultyEasy {
		return cands[p.rng.Intn(len(cands))], true
	}
	ranked := append([]int(nil), cands...)
	scores := make(map[int]float64, len(ranked))
	for _, c := range ranked {
		scores[c] = score(c)
	}
	// insertion sort keeps equal scores in candidate order
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && scores[ranked[j]] > scores[ranked[j-1]]; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}
	if p.cfg.Difficulty == DifficultyMedium {
		top := min(3, len(ranked))
		return ranked[p.rng.Intn(top)], true
	}
	return ranked[0], true
}
