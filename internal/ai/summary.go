package ai

import (
	"sort"
	"time"
)

type SeatSummary struct {
	PlayerID string    `json:"playerId"`
	Mode     Mode      `json:"mode"`
	Config   Config    `json:"config"`
	Stats    Stats     `json:"stats"`
	Since    time.Time `json:"since"`
}

type GameSummary struct {
	GameID              string        `json:"gameId"`
	AutoModePlayers     int           `json:"autoModePlayers"`
	DisconnectedPlayers int           `json:"disconnectedPlayers"`
	Seats               []SeatSummary `json:"seats"`
}

// Summary is a point-in-time view of every automation. AutoModePlayers
// counts voluntary seats and DisconnectedPlayers counts takeovers.
type Summary struct {
	TotalGames          int           `json:"totalGames"`
	TotalAIPlayers      int           `json:"totalAIPlayers"`
	AutoModePlayers     int           `json:"autoModePlayers"`
	DisconnectedPlayers int           `json:"disconnectedPlayers"`
	Games               []GameSummary `json:"games"`
}

func (s *Scheduler) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Summary{TotalGames: len(s.games), Games: make([]GameSummary, 0, len(s.games))}
	for id, g := range s.games {
		gs := GameSummary{GameID: id, Seats: make([]SeatSummary, 0, len(g.seats))}
		for _, seat := range g.seats {
			gs.Seats = append(gs.Seats, SeatSummary{
				PlayerID: seat.playerID,
				Mode:     seat.mode,
				Config:   seat.cfg,
				Stats:    seat.stats,
				Since:    seat.createdAt,
			})
			switch seat.mode {
			case ModeVoluntary:
				gs.AutoModePlayers++
			case ModeInvoluntary:
				gs.DisconnectedPlayers++
			}
		}
		sort.Slice(gs.Seats, func(i, j int) bool { return gs.Seats[i].PlayerID < gs.Seats[j].PlayerID })
		out.TotalAIPlayers += len(gs.Seats)
		out.AutoModePlayers += gs.AutoModePlayers
		out.DisconnectedPlayers += gs.DisconnectedPlayers
		out.Games = append(out.Games, gs)
	}
	sort.Slice(out.Games, func(i, j int) bool { return out.Games[i].GameID < out.Games[j].GameID })
	return out
}
