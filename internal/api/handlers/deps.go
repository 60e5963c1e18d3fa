package handlers

import (
	"context"

	"github.com/hexsettle/backend/internal/ai"
	"github.com/hexsettle/backend/internal/game"
	"github.com/hexsettle/backend/internal/models"
)

// Engine is the part of the game manager the HTTP surface uses.
type Engine interface {
	CreateGame(ctx context.Context, id string, seats []game.Seat, settings game.Settings, seed int64) (*game.GameState, error)
	State(ctx context.Context, gameID string) (*game.GameState, error)
	Games() []string
}

// Automation is the part of the scheduler the HTTP surface uses.
type Automation interface {
	RegisterGame(gameID string)
	UnregisterGame(gameID string)
	EnableAutoMode(gameID, playerID string, cfg ai.Config) error
	DisableAutoMode(gameID, playerID string) error
	IsPlayerAI(gameID, playerID string) bool
	Summary() ai.Summary
}

// Connections reports live socket state per game.
type Connections interface {
	Connected(gameID string) []string
	Spectators(gameID string) int
	Paused(gameID string) bool
}

// Operators authenticates operators and keeps their audit trail.
type Operators interface {
	Authenticate(ctx context.Context, name, token, ip string) (*models.OperatorAccount, error)
	LogAction(ctx context.Context, operator, ip, route, action string, details map[string]any, success bool) error
}
