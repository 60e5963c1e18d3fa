package game

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"
)

// History records committed actions and finished games.
type History interface {
	RecordAction(ctx context.Context, gameID string, seq uint64, a Action, events []Event) error
	RecordResult(ctx context.Context, s *GameState) error
}

// ActionLog is the Postgres-backed History.
type ActionLog struct {
	db *sqlx.DB
}

func NewActionLog(db *sqlx.DB) *ActionLog {
	return &ActionLog{db: db}
}

// RecordAction appends one accepted action. Re-recording the same sequence
// number is a no-op.
func (l *ActionLog) RecordAction(ctx context.Context, gameID string, seq uint64, a Action, events []Event) error {
	payload, err := json.Marshal(a.Payload)
	if err != nil {
		return err
	}
	evs, err := json.Marshal(events)
	if err != nil {
		return err
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO game_actions (game_id, sequence, action_id, action_type, player_id, payload, events, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8)
		ON CONFLICT (game_id, sequence) DO NOTHING`,
		gameID, int64(seq), a.ID, string(a.Type), a.PlayerID, string(payload), string(evs), a.Timestamp)
	return err
}

// RecordResult stores the final standings of an ended game.
func (l *ActionLog) RecordResult(ctx context.Context, s *GameState) error {
	scores := make(map[string]int, len(s.Players))
	for _, p := range s.Players {
		scores[p.ID] = p.VictoryPoints
	}
	data, err := json.Marshal(scores)
	if err != nil {
		return err
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO game_results (game_id, winner_id, turns, scores, finished_at)
		VALUES ($1, $2, $3, $4::jsonb, $5)
		ON CONFLICT (game_id) DO NOTHING`,
		s.ID, s.Winner, s.Turn, string(data), s.UpdatedAt)
	return err
}

// ActionEntry is a row of the action log.
type ActionEntry struct {
	Sequence   int64           `db:"sequence" json:"sequence"`
	ActionID   string          `db:"action_id" json:"actionId"`
	ActionType string          `db:"action_type" json:"actionType"`
	PlayerID   string          `db:"player_id" json:"playerId"`
	Events     json.RawMessage `db:"events" json:"events"`
}

// Recent returns the last limit actions of a game, oldest first.
func (l *ActionLog) Recent(ctx context.Context, gameID string, limit int) ([]ActionEntry, error) {
	var rows []ActionEntry
	err := l.db.SelectContext(ctx, &rows, `
		SELECT sequence, action_id, action_type, player_id, events FROM (
			SELECT sequence, action_id, action_type, player_id, events::text AS events
			FROM game_actions WHERE game_id = $1 ORDER BY sequence DESC LIMIT $2
		) recent ORDER BY sequence ASC`, gameID, limit)
	return rows, err
}
