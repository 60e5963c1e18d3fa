package models

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// GameSnapshot is the durable copy of a game's latest state.
type GameSnapshot struct {
	GameID    string          `db:"game_id" json:"game_id"`
	Version   int64           `db:"version" json:"version"`
	Phase     string          `db:"phase" json:"phase"`
	State     json.RawMessage `db:"state" json:"state"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// GameResult is written once when a game ends.
type GameResult struct {
	GameID     string          `db:"game_id" json:"game_id"`
	WinnerID   string          `db:"winner_id" json:"winner_id"`
	Turns      int             `db:"turns" json:"turns"`
	Scores     json.RawMessage `db:"scores" json:"scores"`
	FinishedAt time.Time       `db:"finished_at" json:"finished_at"`
}

// OperatorAccount may drive automation over the operator API.
type OperatorAccount struct {
	Name        string         `db:"name" json:"name"`
	DisplayName string         `db:"display_name" json:"display_name"`
	TokenHash   string         `db:"token_hash" json:"-"`
	Roles       pq.StringArray `db:"roles" json:"roles"`
	AllowedIPs  pq.StringArray `db:"allowed_ips" json:"allowed_ips"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// OperatorAudit records one operator request.
type OperatorAudit struct {
	ID        int             `db:"id" json:"id"`
	Operator  string          `db:"operator" json:"operator"`
	IP        string          `db:"ip" json:"ip"`
	Route     string          `db:"route" json:"route"`
	Action    string          `db:"action" json:"action"`
	Details   json.RawMessage `db:"details" json:"details"`
	Success   bool            `db:"success" json:"success"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
