package game

const (
	longestRoadMinimum = 5
	largestArmyMinimum = 3
	awardPoints        = 2
)

// LongestRoad returns the length of playerID's longest continuous road. An
// opponent's building splits a road at its vertex.
func LongestRoad(s *GameState, playerID string) int {
	b := s.Board
	used := make([]bool, len(b.Edges))
	var walk func(v int) int
	walk = func(v int) int {
		best := 0
		for _, e := range b.Vertices[v].Edges {
			if used[e] || b.Edges[e].Owner != playerID {
				continue
			}
			used[e] = true
			next := b.OtherEnd(e, v)
			length := 1
			nv := b.Vertices[next]
			if nv.Building == BuildingNone || nv.Owner == playerID {
				length += walk(next)
			}
			if length > best {
				best = length
			}
			used[e] = false
		}
		return best
	}

	best := 0
	for v := range b.Vertices {
		if l := walk(v); l > best {
			best = l
		}
	}
	return best
}

// refreshScores recomputes road lengths, both awards and every player's
// victory points, appending award change events.
func (ap *applier) refreshScores() {
	s := ap.s
	for i := range s.Players {
		s.Players[i].LongestRoadLength = LongestRoad(s, s.Players[i].ID)
	}

	road := awardHolder(s, s.LongestRoadHolder, longestRoadMinimum, func(p *Player) int { return p.LongestRoadLength })
	if road != s.LongestRoadHolder {
		ap.emit(Event{Type: EventLongestRoadChanged, PlayerID: road, Data: map[string]any{"previous": s.LongestRoadHolder}})
		s.LongestRoadHolder = road
	}
	army := awardHolder(s, s.LargestArmyHolder, largestArmyMinimum, func(p *Player) int { return p.KnightsPlayed })
	if army != s.LargestArmyHolder {
		ap.emit(Event{Type: EventLargestArmyChanged, PlayerID: army, Data: map[string]any{"previous": s.LargestArmyHolder}})
		s.LargestArmyHolder = army
	}

	for i := range s.Players {
		s.Players[i].VictoryPoints = victoryPoints(s, &s.Players[i])
	}
}

// awardHolder decides who holds an award. The holder keeps it on a tie; when
// the holder falls behind it passes to a unique leader or to nobody.
func awardHolder(s *GameState, holder string, minimum int, score func(*Player) int) string {
	best := 0
	for i := range s.Players {
		if v := score(&s.Players[i]); v > best {
			best = v
		}
	}
	if best < minimum {
		return ""
	}
	if holder != "" {
		if p := s.Player(holder); p != nil && score(p) == best {
			return holder
		}
	}
	leader := ""
	for i := range s.Players {
		if score(&s.Players[i]) == best {
			if leader != "" {
				return ""
			}
			leader = s.Players[i].ID
		}
	}
	return leader
}

func victoryPoints(s *GameState, p *Player) int {
	points := 0
	for _, vx := range s.Board.Vertices {
		if vx.Owner != p.ID {
			continue
		}
		switch vx.Building {
		case BuildingSettlement:
			points++
		case BuildingCity:
			points += 2
		}
	}
	for _, c := range p.DevCards {
		if c.Kind == CardVictoryPoint {
			points++
		}
	}
	if s.LongestRoadHolder == p.ID {
		points += awardPoints
	}
	if s.LargestArmyHolder == p.ID {
		points += awardPoints
	}
	return points
}
