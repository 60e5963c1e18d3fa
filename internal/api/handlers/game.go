package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hexsettle/backend/internal/ai"
	"github.com/hexsettle/backend/internal/config"
	"github.com/hexsettle/backend/internal/game"
	"github.com/hexsettle/backend/internal/ws"
	"go.uber.org/zap"
)

// GetGame returns the current snapshot of a game with its connection and
// automation status.
func GetGame(engine Engine, auto Automation, conns Connections) gin.HandlerFunc {
	return func(c *gin.Context) {
		gameID := c.Param("id")
		st, err := engine.State(c.Request.Context(), gameID)
		if errors.Is(err, game.ErrGameNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load game"})
			return
		}

		automated := []string{}
		for _, pid := range st.TurnOrder {
			if auto.IsPlayerAI(gameID, pid) {
				automated = append(automated, pid)
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"game_id":    st.ID,
			"sequence":   st.Version,
			"state":      st,
			"connected":  conns.Connected(gameID),
			"spectators": conns.Spectators(gameID),
			"automated":  automated,
			"paused":     conns.Paused(gameID),
		})
	}
}

// RegisterGame puts an existing game under the scheduler.
func RegisterGame(engine Engine, auto Automation) gin.HandlerFunc {
	return func(c *gin.Context) {
		gameID := c.Param("id")
		if _, err := engine.State(c.Request.Context(), gameID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
			return
		}
		auto.RegisterGame(gameID)
		c.JSON(http.StatusOK, gin.H{"game_id": gameID, "registered": true})
	}
}

// UnregisterGame drops every automation of a game.
func UnregisterGame(auto Automation) gin.HandlerFunc {
	return func(c *gin.Context) {
		gameID := c.Param("id")
		auto.UnregisterGame(gameID)
		c.JSON(http.StatusOK, gin.H{"game_id": gameID, "registered": false})
	}
}

// GetAISummary reports every automated seat.
func GetAISummary(auto Automation) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, auto.Summary())
	}
}

type testGameRequest struct {
	Players       int      `json:"players"`
	Names         []string `json:"names"`
	Seed          int64    `json:"seed"`
	VictoryPoints int      `json:"victory_points"`
	AISeats       []string `json:"ai_seats"`
}

type seatInfo struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Token    string `json:"token"`
	WSPath   string `json:"ws_path"`
	AI       bool   `json:"ai"`
}

// CreateTestGame creates a game and issues a seat token per seat (dev mode only)
func CreateTestGame(engine Engine, auto Automation, cfg *config.Config, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.IsProduction() {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}

		var req testGameRequest
		// an empty body takes every default
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if req.Players == 0 {
			req.Players = 4
		}
		if req.Players < 2 || req.Players > 4 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "players must be between 2 and 4"})
			return
		}
		if req.Seed == 0 {
			req.Seed = time.Now().UnixNano()
		}

		seats := make([]game.Seat, req.Players)
		for i := range seats {
			seats[i] = game.Seat{ID: fmt.Sprintf("player_%d", i+1), Name: fmt.Sprintf("Player %d", i+1)}
			if i < len(req.Names) && req.Names[i] != "" {
				seats[i].Name = req.Names[i]
			}
		}
		settings := game.DefaultSettings()
		settings.TradeTTL = cfg.TradeTTL
		settings.VictoryPoints = cfg.VictoryPoints
		if req.VictoryPoints > 0 {
			settings.VictoryPoints = req.VictoryPoints
		}

		st, err := engine.CreateGame(c.Request.Context(), "", seats, settings, req.Seed)
		if err != nil {
			logger.Error("test game creation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		auto.RegisterGame(st.ID)

		aiSeats := make(map[string]bool, len(req.AISeats))
		for _, id := range req.AISeats {
			if st.Player(id) == nil {
				continue
			}
			if err := auto.EnableAutoMode(st.ID, id, ai.Config{}); err != nil {
				logger.Warn("auto mode not enabled for test seat", zap.String("game_id", st.ID), zap.String("player_id", id), zap.Error(err))
				continue
			}
			aiSeats[id] = true
		}

		now := time.Now()
		out := make([]seatInfo, 0, len(seats))
		for _, s := range seats {
			token, err := ws.IssueSeatToken([]byte(cfg.JWTSecret), st.ID, s.ID, cfg.SeatTokenTTL, now)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue seat token"})
				return
			}
			out = append(out, seatInfo{
				PlayerID: s.ID,
				Name:     s.Name,
				Token:    token,
				WSPath:   "/api/v1/games/" + st.ID + "/ws?token=" + token,
				AI:       aiSeats[s.ID],
			})
		}

		spectatorToken, err := ws.IssueSpectatorToken([]byte(cfg.JWTSecret), st.ID, cfg.SeatTokenTTL, now)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue spectator token"})
			return
		}

		logger.Info("test game created", zap.String("game_id", st.ID), zap.Int("players", len(seats)), zap.Int("ai_seats", len(aiSeats)))
		c.JSON(http.StatusOK, gin.H{
			"game_id":         st.ID,
			"seed":            req.Seed,
			"seats":           out,
			"spectator_token": spectatorToken,
			"spectator_path":  "/api/v1/games/" + st.ID + "/ws?token=" + spectatorToken,
			"state":           st,
		})
	}
}
